package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

// State is the supervisor's view of one streaming provider's session.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateFailed       State = "failed"
)

// Supervisor watches streaming-session connections and replays the last
// known init params with bounded, fixed-interval retries when one drops.
// Stateless providers never register here: each of their calls is
// independent, so there is nothing to reconnect.
type Supervisor struct {
	registry    *Registry
	notifier    Notifier
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration

	// set by NewRouter; same package, no interface needed
	router *Router

	mu     sync.Mutex
	states map[domain.Provider]*providerState
}

type providerState struct {
	state    State
	attempts int
}

func NewSupervisor(registry *Registry, notifier Notifier, logger *slog.Logger, maxAttempts int, baseDelay time.Duration) *Supervisor {
	return &Supervisor{
		registry:    registry,
		notifier:    notifier,
		logger:      logger,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		states:      make(map[domain.Provider]*providerState),
	}
}

func (s *Supervisor) stateFor(p domain.Provider) *providerState {
	st, ok := s.states[p]
	if !ok {
		st = &providerState{state: StateIdle}
		s.states[p] = st
	}
	return st
}

// State returns the supervisor state for a provider.
func (s *Supervisor) State(p domain.Provider) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateFor(p).state
}

// Attempts returns the current reconnection attempt count.
func (s *Supervisor) Attempts(p domain.Provider) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateFor(p).attempts
}

// Reset clears the attempt counter after a fresh (non-reconnection)
// initialize. A successful reconnect does not reset it; only this does.
func (s *Supervisor) Reset(p domain.Provider) {
	s.mu.Lock()
	st := s.stateFor(p)
	st.attempts = 0
	st.state = StateConnected
	s.mu.Unlock()
}

// Watch observes a live connection and triggers recovery when it drops.
// Connections without a done channel (stateless providers) are ignored.
func (s *Supervisor) Watch(ctx context.Context, p domain.Provider, conn Conn) {
	done := conn.Done()
	if done == nil {
		return
	}

	s.mu.Lock()
	s.stateFor(p).state = StateConnected
	s.mu.Unlock()

	go func() {
		select {
		case cause := <-done:
			// A replaced or manually closed connection is not a failure.
			if !s.registry.IsCurrent(p, conn) {
				return
			}
			s.handleDisconnect(ctx, p, cause)
		case <-ctx.Done():
		}
	}()
}

func (s *Supervisor) handleDisconnect(ctx context.Context, p domain.Provider, cause error) {
	s.logger.Warn("streaming session lost", "provider", p, "cause", cause)

	for {
		s.mu.Lock()
		st := s.stateFor(p)
		if st.attempts >= s.maxAttempts {
			st.state = StateFailed
			s.mu.Unlock()
			s.registry.Fail(p)
			s.notifier.Status(fmt.Sprintf("Reconnection failed after %d attempts. Please start a new session.", s.maxAttempts))
			s.logger.Error("reconnection exhausted", "provider", p, "max_attempts", s.maxAttempts)
			return
		}
		st.attempts++
		attempt := st.attempts
		st.state = StateDisconnected
		s.mu.Unlock()

		s.notifier.Status(fmt.Sprintf("Connection lost. Reconnecting (attempt %d/%d)...", attempt, s.maxAttempts))

		select {
		case <-time.After(s.baseDelay):
		case <-ctx.Done():
			return
		}

		// Manual close clears lastParams; stop quietly if the user gave up
		// on the session while we were waiting.
		if _, ok := s.registry.LastParams(p); !ok {
			s.setState(p, StateIdle)
			return
		}

		s.setState(p, StateConnecting)
		err := s.router.redial(ctx, p)
		if err == nil {
			s.setState(p, StateConnected)
			s.notifier.Status("Reconnected")
			s.logger.Info("streaming session reconnected", "provider", p, "attempt", attempt)
			return
		}
		if domain.IsBusy(err) {
			// A manual initialize is racing us; let it win.
			s.setState(p, StateIdle)
			return
		}
		if !domain.IsNetwork(err) {
			// Auth, invalid model and vendor errors are not retryable.
			s.setState(p, StateFailed)
			s.registry.Fail(p)
			s.notifier.Status("Reconnection failed: " + err.Error())
			s.logger.Error("reconnection aborted", "provider", p, "error", err)
			return
		}
		s.logger.Warn("reconnection attempt failed", "provider", p, "attempt", attempt, "error", err)
	}
}

func (s *Supervisor) setState(p domain.Provider, state State) {
	s.mu.Lock()
	s.stateFor(p).state = state
	s.mu.Unlock()
}
