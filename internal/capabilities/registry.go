package capabilities

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry holds the fixed capability sets for every supported provider.
// Loaded once at startup from embedded YAML; safe for concurrent reads.
type Registry struct {
	providers map[domain.Provider]*ProviderCapabilities
	mu        sync.RWMutex
}

// NewRegistry loads the embedded capability files for all providers.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		providers: make(map[domain.Provider]*ProviderCapabilities),
	}

	for _, p := range []domain.Provider{domain.ProviderGemini, domain.ProviderOpenAI, domain.ProviderLorem} {
		if err := r.loadProviderFile(p); err != nil {
			return nil, fmt.Errorf("load %s capabilities: %w", p, err)
		}
	}

	return r, nil
}

func (r *Registry) loadProviderFile(provider domain.Provider) error {
	filename := fmt.Sprintf("config/%s.yaml", provider)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read %s: %w", filename, err)
	}

	var caps ProviderCapabilities
	if err := yaml.Unmarshal(data, &caps); err != nil {
		return fmt.Errorf("unmarshal %s: %w", filename, err)
	}
	if caps.Provider != string(provider) {
		return fmt.Errorf("%s declares provider %q", filename, caps.Provider)
	}
	if caps.DefaultModel != "" {
		if _, ok := caps.Models[caps.DefaultModel]; !ok {
			return fmt.Errorf("%s default model %q is not listed", filename, caps.DefaultModel)
		}
	}

	r.mu.Lock()
	r.providers[provider] = &caps
	r.mu.Unlock()

	return nil
}

// Get returns the capability record for a provider.
func (r *Registry) Get(provider domain.Provider) (*ProviderCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	return caps, nil
}

// Supports reports whether the provider accepts the modality. Unknown
// providers support nothing.
func (r *Registry) Supports(provider domain.Provider, c domain.Capability) bool {
	caps, err := r.Get(provider)
	if err != nil {
		return false
	}
	return caps.Supports(c)
}

// Streaming reports whether the provider holds a long-lived session and is
// therefore eligible for automatic reconnection.
func (r *Registry) Streaming(provider domain.Provider) bool {
	caps, err := r.Get(provider)
	if err != nil {
		return false
	}
	return caps.Streaming
}

// DefaultModel returns the model used when the caller does not pick one.
func (r *Registry) DefaultModel(provider domain.Provider) (string, error) {
	caps, err := r.Get(provider)
	if err != nil {
		return "", err
	}
	if caps.DefaultModel == "" {
		return "", fmt.Errorf("provider %s has no default model", provider)
	}
	return caps.DefaultModel, nil
}

// KnownModel reports whether the model id is listed for the provider.
func (r *Registry) KnownModel(provider domain.Provider, model string) bool {
	caps, err := r.Get(provider)
	if err != nil {
		return false
	}
	_, ok := caps.Models[model]
	return ok
}
