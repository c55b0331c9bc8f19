package session

import (
	"sync"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

// slot is the owned mutable state for one provider. The mutex serializes
// bookkeeping only; it is never held across network I/O, so a slow backend
// call on one provider cannot block operations on another.
type slot struct {
	mu           sync.Mutex
	initializing bool
	session      *domain.Session
	conn         Conn
	lastParams   *InitParams
}

// Registry maps each provider to its session slot. It replaces ambient
// "current session" globals: the router receives it by injection and every
// mutation of shared handle state goes through here. Slots persist
// independently, so switching the active provider mid-run does not destroy
// the other provider's session.
type Registry struct {
	slots map[domain.Provider]*slot
}

func NewRegistry() *Registry {
	return &Registry{
		slots: map[domain.Provider]*slot{
			domain.ProviderGemini: {},
			domain.ProviderOpenAI: {},
			domain.ProviderLorem:  {},
		},
	}
}

func (r *Registry) slotFor(p domain.Provider) *slot {
	s, ok := r.slots[p]
	if !ok {
		// Unknown providers share a throwaway slot; operations on it fail
		// at the capability gate before reaching here.
		return &slot{}
	}
	return s
}

// BeginInit claims the slot for an initialize. A second initialize observed
// while one is pending is rejected immediately rather than queued or raced:
// session creation mutates the slot with no transactional isolation.
func (r *Registry) BeginInit(p domain.Provider) error {
	s := r.slotFor(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initializing {
		return domain.Errorf(domain.KindBusy, "an initialize call for %s is already in progress", p)
	}
	s.initializing = true
	return nil
}

// AbortInit releases the claim after a failed initialize.
func (r *Registry) AbortInit(p domain.Provider) {
	s := r.slotFor(p)
	s.mu.Lock()
	s.initializing = false
	s.mu.Unlock()
}

// FinishInit installs a freshly created session after a manual initialize
// and records its params for later reconnection. Any previous session in the
// slot is deactivated and its connection closed.
func (r *Registry) FinishInit(p domain.Provider, sess *domain.Session, conn Conn, params InitParams) {
	s := r.slotFor(p)
	s.mu.Lock()
	old := s.conn
	if s.session != nil {
		s.session.Deactivate()
	}
	s.session = sess
	s.conn = conn
	s.lastParams = &params
	s.initializing = false
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// FinishReconnect swaps in the replacement session after a reconnection.
// lastParams is deliberately left untouched: only a fresh manual initialize
// may update it.
func (r *Registry) FinishReconnect(p domain.Provider, sess *domain.Session, conn Conn) {
	s := r.slotFor(p)
	s.mu.Lock()
	old := s.conn
	if s.session != nil {
		s.session.Deactivate()
	}
	s.session = sess
	s.conn = conn
	s.initializing = false
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// Active returns the slot's session and connection if the session is live.
func (r *Registry) Active(p domain.Provider) (*domain.Session, Conn, bool) {
	s := r.slotFor(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || !s.session.Active() || s.conn == nil {
		return nil, nil, false
	}
	return s.session, s.conn, true
}

// IsCurrent reports whether conn is still the slot's live connection. The
// reconnection supervisor uses this to ignore disconnect events from
// connections that were already replaced or manually closed.
func (r *Registry) IsCurrent(p domain.Provider, conn Conn) bool {
	s := r.slotFor(p)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.conn == conn
}

// LastParams returns a copy of the params the slot's session was created
// with, if any are retained.
func (r *Registry) LastParams(p domain.Provider) (InitParams, bool) {
	s := r.slotFor(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastParams == nil {
		return InitParams{}, false
	}
	return *s.lastParams, true
}

// Close tears down the slot. The session is deactivated before the network
// connection is touched, so an in-flight send observes active=false the
// moment close is requested. Idempotent: closing an empty slot is a no-op.
func (r *Registry) Close(p domain.Provider) {
	s := r.slotFor(p)
	s.mu.Lock()
	sess, conn := s.session, s.conn
	s.session = nil
	s.conn = nil
	s.lastParams = nil
	s.mu.Unlock()

	if sess != nil {
		sess.Deactivate()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// Fail tears down the slot after reconnection gave up. Like Close, but
// driven by the supervisor instead of the caller.
func (r *Registry) Fail(p domain.Provider) {
	r.Close(p)
}

// Teardown closes every slot. Called once at process shutdown.
func (r *Registry) Teardown() {
	for p := range r.slots {
		r.Close(p)
	}
}
