package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antmikinka/cheating-daddy/internal/capabilities"
	"github.com/antmikinka/cheating-daddy/internal/config"
	"github.com/antmikinka/cheating-daddy/internal/domain"
	"github.com/antmikinka/cheating-daddy/internal/service/session"
	"github.com/antmikinka/cheating-daddy/internal/service/session/providers/lorem"
)

// newTestServer wires a real router against the lorem provider, so handler
// tests exercise the full boundary without any network backend.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	caps, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("capabilities.NewRegistry() error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := session.NewRegistry()
	selector := session.NewSelector(domain.ProviderLorem, "")
	sup := session.NewSupervisor(registry, session.NopNotifier{}, logger, 3, time.Millisecond)
	router := session.NewRouter(
		registry,
		map[domain.Provider]session.Adapter{domain.ProviderLorem: lorem.NewAdapter()},
		caps,
		session.NewLog(),
		selector,
		session.NopNotifier{},
		sup,
		logger,
		5*time.Second,
	)

	mux := http.NewServeMux()
	NewSessionHandler(router, selector, caps, &config.Config{}, logger).RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	t.Cleanup(router.Teardown)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path string, body any) domain.Result {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := ts.Client().Post(ts.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s error: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s status = %d, want 200", path, resp.StatusCode)
	}
	var result domain.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func initialize(t *testing.T, ts *httptest.Server) {
	t.Helper()
	if res := post(t, ts, "/api/session/initialize", map[string]any{"apiKey": "test-key"}); !res.Success {
		t.Fatalf("initialize failed: %s", res.Error)
	}
}

func TestInitializeEnvelope(t *testing.T) {
	tests := []struct {
		name        string
		body        map[string]any
		wantSuccess bool
		wantErr     string
	}{
		{
			name:        "valid key succeeds",
			body:        map[string]any{"apiKey": "test-key", "profile": "interview"},
			wantSuccess: true,
		},
		{
			name:    "missing key with no server fallback fails",
			body:    map[string]any{},
			wantErr: "API key",
		},
		{
			name:    "blank key with no server fallback fails",
			body:    map[string]any{"apiKey": "   "},
			wantErr: "API key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			res := post(t, ts, "/api/session/initialize", tt.body)
			if res.Success != tt.wantSuccess {
				t.Fatalf("success = %v, want %v (error: %s)", res.Success, tt.wantSuccess, res.Error)
			}
			if tt.wantErr != "" && !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", res.Error, tt.wantErr)
			}
			if !tt.wantSuccess && res.Data != nil {
				t.Errorf("failed envelope carries data: %v", res.Data)
			}
		})
	}
}

func TestSendTextEnvelope(t *testing.T) {
	ts := newTestServer(t)
	initialize(t, ts)

	res := post(t, ts, "/api/session/text", map[string]any{"text": "hello"})
	if !res.Success {
		t.Fatalf("send failed: %s", res.Error)
	}
	data, ok := res.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %#v, want an object", res.Data)
	}
	if response, _ := data["response"].(string); response == "" {
		t.Error("data.response is empty")
	}
}

func TestSendTextValidation(t *testing.T) {
	ts := newTestServer(t)
	initialize(t, ts)

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"over limit", strings.Repeat("a", 8001)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := post(t, ts, "/api/session/text", map[string]any{"text": tt.text})
			if res.Success {
				t.Errorf("text %q accepted, want validation failure", tt.name)
			}
		})
	}
}

func TestSendTextWithoutSession(t *testing.T) {
	ts := newTestServer(t)

	res := post(t, ts, "/api/session/text", map[string]any{"text": "hello"})
	if res.Success {
		t.Fatal("send without session succeeded")
	}
	if !strings.Contains(res.Error, "no active session") {
		t.Errorf("error = %q, want a no-active-session message", res.Error)
	}
}

func TestSendImageValidation(t *testing.T) {
	ts := newTestServer(t)
	initialize(t, ts)

	res := post(t, ts, "/api/session/image", map[string]any{"data": "tiny"})
	if res.Success {
		t.Fatal("undersized image accepted")
	}
	if !strings.Contains(res.Error, "too small") {
		t.Errorf("error = %q, want a too-small message", res.Error)
	}

	res = post(t, ts, "/api/session/image", map[string]any{"data": strings.Repeat("A", 200)})
	if !res.Success {
		t.Fatalf("valid image rejected: %s", res.Error)
	}
}

func TestSendAudioGatedByCapability(t *testing.T) {
	ts := newTestServer(t)
	initialize(t, ts)

	res := post(t, ts, "/api/session/audio", map[string]any{"data": "UklGRg=="})
	if res.Success {
		t.Fatal("audio accepted on a text-only provider")
	}
	if !strings.Contains(res.Error, "not supported") {
		t.Errorf("error = %q, want a not-supported message", res.Error)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ts := newTestServer(t)

	if res := post(t, ts, "/api/session/close", map[string]any{}); !res.Success {
		t.Fatalf("close without session failed: %s", res.Error)
	}

	initialize(t, ts)
	if res := post(t, ts, "/api/session/close", map[string]any{}); !res.Success {
		t.Fatalf("close failed: %s", res.Error)
	}
	if res := post(t, ts, "/api/session/text", map[string]any{"text": "hello"}); res.Success {
		t.Fatal("send after close succeeded")
	}
}

func TestGetCurrentSessionHistory(t *testing.T) {
	ts := newTestServer(t)
	initialize(t, ts)
	post(t, ts, "/api/session/text", map[string]any{"text": "hello"})

	resp, err := ts.Client().Get(ts.URL + "/api/session")
	if err != nil {
		t.Fatalf("GET /api/session error: %v", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			SessionID string        `json:"sessionId"`
			History   []domain.Turn `json:"history"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success {
		t.Fatal("get current session failed")
	}
	if result.Data.SessionID == "" {
		t.Error("sessionId is empty")
	}
	if len(result.Data.History) != 1 {
		t.Errorf("history has %d turns, want 1", len(result.Data.History))
	}
	if result.Data.History[0].InputSummary != "hello" {
		t.Errorf("inputSummary = %q", result.Data.History[0].InputSummary)
	}
}

func TestStartNewSession(t *testing.T) {
	ts := newTestServer(t)
	initialize(t, ts)
	post(t, ts, "/api/session/text", map[string]any{"text": "hello"})

	res := post(t, ts, "/api/session/new", map[string]any{})
	if !res.Success {
		t.Fatalf("start new session failed: %s", res.Error)
	}
	data, _ := res.Data.(map[string]any)
	if id, _ := data["sessionId"].(string); id == "" {
		t.Error("new session id is empty")
	}

	// History is reset.
	resp, err := ts.Client().Get(ts.URL + "/api/session")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var result struct {
		Data struct {
			History []domain.Turn `json:"history"`
		} `json:"data"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data.History) != 0 {
		t.Errorf("history has %d turns after reset, want 0", len(result.Data.History))
	}
}

func TestUpdateSettings(t *testing.T) {
	tests := []struct {
		name        string
		body        map[string]any
		wantSuccess bool
	}{
		{"valid provider", map[string]any{"provider": "lorem"}, true},
		{"valid provider and model", map[string]any{"provider": "lorem", "model": "lorem-slow"}, true},
		{"unknown provider", map[string]any{"provider": "cohere"}, false},
		{"unknown model", map[string]any{"provider": "lorem", "model": "gpt-4o"}, false},
		{"missing provider", map[string]any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			res := post(t, ts, "/api/settings", tt.body)
			if res.Success != tt.wantSuccess {
				t.Errorf("success = %v, want %v (error: %s)", res.Success, tt.wantSuccess, res.Error)
			}
		})
	}
}

func TestMalformedJSONRejected(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Post(ts.URL+"/api/session/text", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var result domain.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Success {
		t.Fatal("malformed JSON accepted")
	}
}
