package session

import (
	"context"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

// InitParams is the exact input used to create a session. The registry
// retains a copy while the session is active so the reconnection supervisor
// can replay it verbatim; an explicit close clears it.
type InitParams struct {
	APIKey        string
	ModelID       string
	CustomPrompt  string
	Profile       string
	Language      string
	SearchEnabled bool
}

// Conn is one live backend session produced by an adapter.
//
// For a streaming provider the connection is long-lived and stateful: sends
// push onto the open stream. For a stateless provider every send issues one
// self-contained request, re-sending the system prompt each time; continuity
// exists only client-side.
type Conn interface {
	// SendText sends a text turn and returns the backend's reply.
	SendText(ctx context.Context, text string) (string, error)
	// SendImage sends a base64 JPEG and returns the backend's reply.
	SendImage(ctx context.Context, imageB64 string) (string, error)
	// SendAudio pushes a base64 audio chunk. Providers without audio return
	// an unsupported-capability error; streaming providers may return an
	// empty reply, which records no conversation turn.
	SendAudio(ctx context.Context, audioB64, mimeType string) (string, error)
	// Done reports an unexpected loss of the backend connection. Stateless
	// adapters return nil: there is nothing to lose between calls.
	Done() <-chan error
	// Close tears down the backend connection. Idempotent.
	Close() error
}

// Adapter normalizes one backend's session lifecycle behind a common
// contract. Connect failures and every Conn error must already be mapped to
// the domain error taxonomy when they are returned.
type Adapter interface {
	Provider() domain.Provider
	Connect(ctx context.Context, params InitParams, systemPrompt string) (Conn, error)
}

// Notifier receives the push notifications the routing layer emits toward
// the UI shell. Implementations must not block.
type Notifier interface {
	SessionInitializing(inProgress bool)
	Status(status string)
	Response(text string)
	TurnSaved(conv domain.Conversation, turn domain.Turn)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) SessionInitializing(bool)                   {}
func (NopNotifier) Status(string)                              {}
func (NopNotifier) Response(string)                            {}
func (NopNotifier) TurnSaved(domain.Conversation, domain.Turn) {}
