package session

import (
	"sync"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

// Selector holds the externally supplied provider (and optional model)
// selection. The router only ever reads it; the UI shell updates it through
// the settings endpoint. Reads are pure: routing never mutates selection.
type Selector struct {
	mu       sync.RWMutex
	provider domain.Provider
	model    string
}

func NewSelector(provider domain.Provider, model string) *Selector {
	return &Selector{provider: provider, model: model}
}

// Provider returns the currently selected provider.
func (s *Selector) Provider() domain.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

// Model returns the selected model id, or "" for the provider default.
func (s *Selector) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Update swaps the selection. Existing sessions keep their slots; switching
// back later finds the other provider's session where it was left.
func (s *Selector) Update(provider domain.Provider, model string) {
	s.mu.Lock()
	s.provider = provider
	s.model = model
	s.mu.Unlock()
}
