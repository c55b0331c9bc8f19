// Package gemini implements the streaming realtime provider. One long-lived
// websocket carries the whole conversation: sends push onto the live
// connection and never create new backend sessions per call.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antmikinka/cheating-daddy/internal/domain"
	"github.com/antmikinka/cheating-daddy/internal/service/session"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	bidiPath       = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// setupTimeout bounds the wait for the server's setupComplete ack.
	setupTimeout = 15 * time.Second
)

// Config controls the realtime websocket settings.
type Config struct {
	APIBaseURL string
	Dialer     *websocket.Dialer
}

// Adapter implements session.Adapter for the realtime API.
type Adapter struct {
	cfg Config
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderGemini
}

// Connect dials the bidirectional stream, sends the setup frame, and waits
// for the server's ack before handing the live session to the router.
func (a *Adapter) Connect(ctx context.Context, params session.InitParams, systemPrompt string) (session.Conn, error) {
	wsURL, err := buildStreamURL(a.cfg.APIBaseURL, params.APIKey)
	if err != nil {
		return nil, domain.WrapError(err, domain.KindNetwork, "invalid realtime endpoint")
	}

	ws, resp, err := a.cfg.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, domain.NewError(domain.KindAuth, "realtime API rejected the credentials")
		}
		return nil, domain.WrapError(err, domain.KindNetwork, "failed to connect to the realtime API")
	}

	c := newConn(ws)
	if err := c.setup(ctx, params.ModelID, systemPrompt); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// buildStreamURL converts the HTTP base into the websocket endpoint. The
// key travels as a query parameter, the way the realtime API expects it.
func buildStreamURL(base, apiKey string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + bidiPath
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
