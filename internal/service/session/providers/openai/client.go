package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// conn simulates session continuity client-side: the system prompt and the
// accumulated turn history are replayed on every request. Sends are
// serialized per connection so the history stays coherent; slots of other
// providers are unaffected.
type conn struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string

	mu       sync.Mutex
	closed   bool
	messages []message
}

func newConn(cfg Config, apiKey, model, systemPrompt string) *conn {
	return &conn{
		client:  cfg.HTTPClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		messages: []message{
			{Role: "system", Content: systemPrompt},
		},
	}
}

func (c *conn) SendText(ctx context.Context, text string) (string, error) {
	return c.exchange(ctx, message{Role: "user", Content: text})
}

func (c *conn) SendImage(ctx context.Context, imageB64 string) (string, error) {
	return c.exchange(ctx, message{Role: "user", Content: []contentPart{
		{Type: "text", Text: "Help me respond to what is on my screen."},
		{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + imageB64}},
	}})
}

func (c *conn) SendAudio(ctx context.Context, audioB64, mimeType string) (string, error) {
	return "", domain.NewError(domain.KindUnsupportedCapability, "Audio input is not supported by the openai provider")
}

// Done returns nil: independent requests have no connection to lose.
func (c *conn) Done() <-chan error { return nil }

func (c *conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// exchange appends the user message, performs one chat-completions call with
// the full history, and appends the assistant reply on success. A failed
// call leaves the history exactly as it was.
func (c *conn) exchange(ctx context.Context, userMsg message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", domain.NewError(domain.KindNotActive, "chat session is closed")
	}

	payload := chatRequest{
		Model:    c.model,
		Messages: append(append([]message{}, c.messages...), userMsg),
	}

	reply, err := c.complete(ctx, payload)
	if err != nil {
		return "", err
	}

	c.messages = append(c.messages, userMsg, message{Role: "assistant", Content: reply})
	return reply, nil
}

func (c *conn) complete(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", domain.WrapError(err, domain.KindBackend, "encode chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", domain.WrapError(err, domain.KindBackend, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.WrapError(err, domain.KindNetwork, "chat completions request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.WrapError(err, domain.KindNetwork, "read chat completions response")
	}

	if resp.StatusCode >= 400 {
		return "", classifyAPIError(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", domain.WrapError(err, domain.KindBackend, "decode chat completions response")
	}
	if len(parsed.Choices) == 0 {
		return "", domain.NewError(domain.KindBackend, "chat completions returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// classifyAPIError maps an HTTP status plus vendor error body onto the
// domain taxonomy. The vendor message is surfaced verbatim where present.
func classifyAPIError(status int, body []byte) error {
	msg := gjson.GetBytes(body, "error.message").String()
	code := gjson.GetBytes(body, "error.code").String()
	if msg == "" {
		msg = fmt.Sprintf("chat completions request failed with status %d", status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewError(domain.KindAuth, msg)
	case code == "model_not_found" || (status == http.StatusNotFound && strings.Contains(msg, "model")):
		return domain.NewError(domain.KindInvalidModel, msg)
	default:
		return domain.NewError(domain.KindBackend, msg)
	}
}
