package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antmikinka/cheating-daddy/internal/capabilities"
	"github.com/antmikinka/cheating-daddy/internal/domain"
	"github.com/antmikinka/cheating-daddy/internal/service/prompt"
)

// Router is the single entry point for every session operation. It resolves
// the active provider, gates unsupported capabilities, dispatches to the
// matching adapter through the registry, and normalizes every outcome so the
// boundary never observes provider-specific shapes.
type Router struct {
	registry *Registry
	adapters map[domain.Provider]Adapter
	caps     *capabilities.Registry
	log      *Log
	selector *Selector
	notifier Notifier
	sup      *Supervisor
	logger   *slog.Logger
	timeout  time.Duration
}

func NewRouter(
	registry *Registry,
	adapters map[domain.Provider]Adapter,
	caps *capabilities.Registry,
	log *Log,
	selector *Selector,
	notifier Notifier,
	sup *Supervisor,
	logger *slog.Logger,
	timeout time.Duration,
) *Router {
	rt := &Router{
		registry: registry,
		adapters: adapters,
		caps:     caps,
		log:      log,
		selector: selector,
		notifier: notifier,
		sup:      sup,
		logger:   logger,
		timeout:  timeout,
	}
	sup.router = rt
	return rt
}

// InitRequest carries the caller-supplied inputs for a fresh session.
type InitRequest struct {
	APIKey        string
	CustomPrompt  string
	Profile       string
	Language      string
	SearchEnabled bool
}

// Initialize creates a fresh session for the currently selected provider.
// Blank credentials fail before any backend is contacted.
func (rt *Router) Initialize(ctx context.Context, req InitRequest) (*domain.Session, error) {
	provider := rt.selector.Provider()

	if strings.TrimSpace(req.APIKey) == "" {
		return nil, domain.NewError(domain.KindAuth, "API key is required")
	}

	model := rt.selector.Model()
	if model == "" {
		var err error
		if model, err = rt.caps.DefaultModel(provider); err != nil {
			return nil, domain.Errorf(domain.KindInvalidModel, "no model available for provider %s", provider)
		}
	} else if !rt.caps.KnownModel(provider, model) {
		return nil, domain.Errorf(domain.KindInvalidModel, "model %q is not available for provider %s", model, provider)
	}

	params := InitParams{
		APIKey:        req.APIKey,
		ModelID:       model,
		CustomPrompt:  req.CustomPrompt,
		Profile:       req.Profile,
		Language:      req.Language,
		SearchEnabled: req.SearchEnabled,
	}
	return rt.connect(ctx, provider, params, false)
}

// connect runs the shared initialize path. Reconnection mode replays params
// without resetting the conversation log, the attempt counter, or the
// retained lastParams.
func (rt *Router) connect(ctx context.Context, provider domain.Provider, params InitParams, reconnection bool) (*domain.Session, error) {
	adapter, ok := rt.adapters[provider]
	if !ok {
		return nil, domain.Errorf(domain.KindInvalidModel, "provider %s is not configured", provider)
	}

	if err := rt.registry.BeginInit(provider); err != nil {
		return nil, err
	}

	rt.notifier.SessionInitializing(true)
	defer rt.notifier.SessionInitializing(false)

	systemPrompt := prompt.Build(params.Profile, params.CustomPrompt, params.Language, params.SearchEnabled)

	cctx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	conn, err := adapter.Connect(cctx, params, systemPrompt)
	if err != nil {
		rt.registry.AbortInit(provider)
		rt.logger.Error("session initialize failed", "provider", provider, "kind", domain.KindOf(err))
		return nil, err
	}

	sess := domain.NewSession(uuid.NewString(), provider, params.ModelID, systemPrompt)
	if reconnection {
		rt.registry.FinishReconnect(provider, sess, conn)
	} else {
		rt.registry.FinishInit(provider, sess, conn, params)
		rt.log.StartNew()
		rt.sup.Reset(provider)
	}

	if rt.caps.Streaming(provider) {
		rt.sup.Watch(context.WithoutCancel(ctx), provider, conn)
	}

	rt.logger.Info("session ready", "provider", provider, "model", params.ModelID, "reconnection", reconnection)
	rt.notifier.Status("Live")
	return sess, nil
}

// redial is the supervisor's entry point: replay the retained params as a
// reconnection. lastParams is read, never written, on this path.
func (rt *Router) redial(ctx context.Context, provider domain.Provider) error {
	params, ok := rt.registry.LastParams(provider)
	if !ok {
		return domain.NewError(domain.KindNotActive, "no session parameters retained")
	}
	_, err := rt.connect(ctx, provider, params, true)
	return err
}

// SendText routes a text turn to the active provider.
func (rt *Router) SendText(ctx context.Context, text string) (string, error) {
	return rt.send(ctx, domain.CapabilityText, text, func(ctx context.Context, conn Conn) (string, error) {
		return conn.SendText(ctx, text)
	})
}

// SendImage routes a base64 JPEG to the active provider. The conversation
// log records a fixed placeholder, never the payload.
func (rt *Router) SendImage(ctx context.Context, imageB64 string) (string, error) {
	return rt.send(ctx, domain.CapabilityImage, domain.ImageSentSummary, func(ctx context.Context, conn Conn) (string, error) {
		return conn.SendImage(ctx, imageB64)
	})
}

// SendAudio routes an audio chunk to the active provider. Providers without
// audio are rejected at the capability gate before any I/O.
func (rt *Router) SendAudio(ctx context.Context, audioB64, mimeType string) (string, error) {
	return rt.send(ctx, domain.CapabilityAudio, domain.AudioSentSummary, func(ctx context.Context, conn Conn) (string, error) {
		return conn.SendAudio(ctx, audioB64, mimeType)
	})
}

// send is the shared dispatch path: capability gate, active-session check,
// bounded backend call, then conversation log append on success.
func (rt *Router) send(ctx context.Context, capability domain.Capability, inputSummary string, do func(context.Context, Conn) (string, error)) (string, error) {
	provider := rt.selector.Provider()

	// Gate before anything else: the check holds whether or not a session
	// is active, and a gated call must produce zero network I/O.
	if !rt.caps.Supports(provider, capability) {
		return "", domain.Errorf(domain.KindUnsupportedCapability,
			"%s input is not supported by the %s provider", capabilityNoun(capability), provider)
	}

	sess, conn, ok := rt.registry.Active(provider)
	if !ok {
		return "", domain.NewError(domain.KindNotActive, "no active session - initialize a model first")
	}

	cctx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	response, err := do(cctx, conn)
	if err != nil {
		rt.logger.Warn("send failed", "provider", provider, "capability", capability, "kind", domain.KindOf(err))
		return "", err
	}

	// Fire-and-forget inputs (audio chunks on the live stream) legitimately
	// produce no reply; nothing to record.
	if response == "" {
		return "", nil
	}

	// A close that raced this send wins: its result is discarded and the
	// conversation log stays untouched.
	if !sess.Active() {
		return "", domain.NewError(domain.KindNotActive, "session was closed before the response arrived")
	}

	turn, snapshot := rt.log.Append(inputSummary, response)
	rt.notifier.Response(response)
	rt.notifier.TurnSaved(snapshot, turn)
	return response, nil
}

// Close tears down the active provider's session. Idempotent: closing with
// no live session is still a success.
func (rt *Router) Close(ctx context.Context) {
	provider := rt.selector.Provider()
	rt.registry.Close(provider)
	rt.notifier.Status("Session closed")
	rt.logger.Info("session closed", "provider", provider)
}

// CurrentSession returns the conversation id and full turn history.
func (rt *Router) CurrentSession() domain.Conversation {
	return rt.log.Snapshot()
}

// StartNewSession resets the conversation log and returns the new id. The
// backend session, if any, stays up: only the logical conversation restarts.
func (rt *Router) StartNewSession() string {
	conv := rt.log.StartNew()
	rt.logger.Info("new conversation started", "session_id", conv.SessionID)
	return conv.SessionID
}

// Teardown closes every provider slot at process shutdown.
func (rt *Router) Teardown() {
	rt.registry.Teardown()
}

func capabilityNoun(c domain.Capability) string {
	switch c {
	case domain.CapabilityText:
		return "Text"
	case domain.CapabilityImage:
		return "Image"
	case domain.CapabilityAudio:
		return "Audio"
	}
	return string(c)
}
