// Package openai implements the stateless chat-completions provider. Every
// send issues one self-contained request that replays the system prompt and
// the client-side message history; the backend holds no session state.
package openai

import (
	"context"
	"net/http"
	"time"

	"github.com/antmikinka/cheating-daddy/internal/domain"
	"github.com/antmikinka/cheating-daddy/internal/service/session"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config controls the chat-completions client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Adapter implements session.Adapter over the chat-completions API.
type Adapter struct {
	cfg Config
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderOpenAI
}

// Connect builds a local session handle. No request is issued here: with no
// backend-side session to create, credential and model problems surface on
// the first send, normalized into the same error kinds an initialize would
// report.
func (a *Adapter) Connect(ctx context.Context, params session.InitParams, systemPrompt string) (session.Conn, error) {
	return newConn(a.cfg, params.APIKey, params.ModelID, systemPrompt), nil
}
