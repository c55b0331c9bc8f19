package capabilities

import "github.com/antmikinka/cheating-daddy/internal/domain"

// ModelInfo is display metadata for one selectable model.
type ModelInfo struct {
	DisplayName   string `yaml:"display_name" json:"display_name"`
	Description   string `yaml:"description" json:"description"`
	ContextWindow int    `yaml:"context_window" json:"context_window"`
}

// ProviderCapabilities describes one backend: which input modalities it
// accepts, whether it holds a long-lived streaming session, and which models
// it exposes. The modality set is fixed per provider, not per session.
type ProviderCapabilities struct {
	Provider     string               `yaml:"provider" json:"provider"`
	Streaming    bool                 `yaml:"streaming" json:"streaming"`
	Modalities   []string             `yaml:"modalities" json:"modalities"`
	DefaultModel string               `yaml:"default_model" json:"default_model"`
	Models       map[string]ModelInfo `yaml:"models" json:"models"`
}

// Supports reports whether the provider accepts the given modality.
func (p *ProviderCapabilities) Supports(c domain.Capability) bool {
	for _, m := range p.Modalities {
		if m == string(c) {
			return true
		}
	}
	return false
}
