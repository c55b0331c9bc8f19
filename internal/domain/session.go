package domain

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Provider identifies one of the supported backends.
type Provider string

const (
	// ProviderGemini is the streaming realtime backend: one long-lived
	// bidirectional connection per conversation.
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is the stateless chat-completions backend: independent
	// request/response calls with no server-side session continuity.
	ProviderOpenAI Provider = "openai"
	// ProviderLorem is the placeholder third backend. It generates filler
	// replies locally and needs no API access.
	ProviderLorem Provider = "lorem"
)

// ParseProvider validates an externally supplied provider name.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGemini, ProviderOpenAI, ProviderLorem:
		return Provider(s), nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Capability is a named input modality a provider may or may not accept.
type Capability string

const (
	CapabilityText  Capability = "text"
	CapabilityImage Capability = "image"
	CapabilityAudio Capability = "audio"
)

// Session is the handle for one logical connection to a backend. It carries
// the metadata the router needs; the live transport (websocket, HTTP client
// state) stays inside the adapter that created it.
type Session struct {
	ID           string
	Provider     Provider
	ModelID      string
	SystemPrompt string
	CreatedAt    time.Time

	// active is atomic so close-session can flip it immediately while a
	// send is still in flight on another goroutine.
	active atomic.Bool
}

// NewSession creates an active session handle.
func NewSession(id string, provider Provider, modelID, systemPrompt string) *Session {
	s := &Session{
		ID:           id,
		Provider:     provider,
		ModelID:      modelID,
		SystemPrompt: systemPrompt,
		CreatedAt:    time.Now(),
	}
	s.active.Store(true)
	return s
}

// Active reports whether the session may still be used. Once Deactivate has
// been called no operation against this handle succeeds again.
func (s *Session) Active() bool {
	return s != nil && s.active.Load()
}

// Deactivate marks the session closed. Idempotent, never flips back.
func (s *Session) Deactivate() {
	if s != nil {
		s.active.Store(false)
	}
}
