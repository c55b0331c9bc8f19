package handler

import (
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/antmikinka/cheating-daddy/internal/capabilities"
	"github.com/antmikinka/cheating-daddy/internal/config"
	"github.com/antmikinka/cheating-daddy/internal/domain"
	"github.com/antmikinka/cheating-daddy/internal/httputil"
	"github.com/antmikinka/cheating-daddy/internal/service/session"
)

// SessionHandler exposes the session operations to the UI shell. Every
// response uses the uniform {success, data?, error?} envelope.
type SessionHandler struct {
	router   *session.Router
	selector *session.Selector
	caps     *capabilities.Registry
	cfg      *config.Config
	logger   *slog.Logger
}

func NewSessionHandler(router *session.Router, selector *session.Selector, caps *capabilities.Registry, cfg *config.Config, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		router:   router,
		selector: selector,
		caps:     caps,
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterRoutes mounts the boundary operations.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/session/initialize", h.Initialize)
	mux.HandleFunc("POST /api/session/text", h.SendText)
	mux.HandleFunc("POST /api/session/image", h.SendImage)
	mux.HandleFunc("POST /api/session/audio", h.SendAudio)
	mux.HandleFunc("POST /api/session/close", h.Close)
	mux.HandleFunc("GET /api/session", h.GetCurrent)
	mux.HandleFunc("POST /api/session/new", h.StartNew)
	mux.HandleFunc("POST /api/settings", h.UpdateSettings)
}

type initializeRequest struct {
	APIKey        string `json:"apiKey"`
	CustomPrompt  string `json:"customPrompt"`
	Profile       string `json:"profile"`
	Language      string `json:"language"`
	SearchEnabled *bool  `json:"searchEnabled"`
}

func (h *SessionHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}

	// A request without credentials falls back to the server-side key for
	// the selected provider; the router rejects whatever is still blank.
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = h.fallbackKey()
	}

	searchEnabled := true
	if req.SearchEnabled != nil {
		searchEnabled = *req.SearchEnabled
	}

	sess, err := h.router.Initialize(r.Context(), session.InitRequest{
		APIKey:        apiKey,
		CustomPrompt:  req.CustomPrompt,
		Profile:       req.Profile,
		Language:      req.Language,
		SearchEnabled: searchEnabled,
	})
	if err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}

	httputil.RespondResult(w, domain.Ok(map[string]any{
		"provider": sess.Provider,
		"model":    sess.ModelID,
	}))
}

// fallbackKey returns the configured server-side API key for the selected
// provider, if any.
func (h *SessionHandler) fallbackKey() string {
	switch h.selector.Provider() {
	case domain.ProviderGemini:
		return h.cfg.GeminiAPIKey
	case domain.ProviderOpenAI:
		return h.cfg.OpenAIAPIKey
	}
	return ""
}

type textRequest struct {
	Text string `json:"text"`
}

func (r textRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text,
			validation.Required.Error("message text is required"),
			validation.By(notBlank("message text")),
			validation.Length(1, config.MaxTextMessageLength),
		),
	)
}

func (h *SessionHandler) SendText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}

	response, err := h.router.SendText(r.Context(), req.Text)
	if err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}
	httputil.RespondResult(w, domain.Ok(map[string]any{"response": response}))
}

type imageRequest struct {
	Data string `json:"data"`
}

func (r imageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Data,
			validation.Required.Error("image data is required"),
			// Anything below the minimum plausible size is a broken capture.
			validation.Length(config.MinImagePayloadBytes, 0).Error("image payload is too small to be a screenshot"),
		),
	)
}

func (h *SessionHandler) SendImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}

	response, err := h.router.SendImage(r.Context(), req.Data)
	if err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}
	httputil.RespondResult(w, domain.Ok(map[string]any{"response": response}))
}

type audioRequest struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (r audioRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Data, validation.Required.Error("audio data is required")),
	)
}

func (h *SessionHandler) SendAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}

	response, err := h.router.SendAudio(r.Context(), req.Data, req.MimeType)
	if err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}
	httputil.RespondResult(w, domain.Ok(map[string]any{"response": response}))
}

// Close is idempotent: closing with no live session still reports success.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.router.Close(r.Context())
	httputil.RespondResult(w, domain.Ok(nil))
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	httputil.RespondResult(w, domain.Ok(h.router.CurrentSession()))
}

func (h *SessionHandler) StartNew(w http.ResponseWriter, r *http.Request) {
	id := h.router.StartNewSession()
	httputil.RespondResult(w, domain.Ok(map[string]any{"sessionId": id}))
}

type settingsRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (r settingsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Provider, validation.Required.Error("provider is required")),
	)
}

// UpdateSettings swaps the provider/model selection the router reads on
// every call. Existing sessions keep their slots.
func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		httputil.RespondResult(w, domain.Err(err))
		return
	}
	if req.Model != "" && !h.caps.KnownModel(provider, req.Model) {
		httputil.RespondResult(w, domain.Err(
			domain.Errorf(domain.KindInvalidModel, "model %q is not available for provider %s", req.Model, provider)))
		return
	}

	h.selector.Update(provider, req.Model)
	h.logger.Info("settings updated", "provider", provider, "model", req.Model)
	httputil.RespondResult(w, domain.Ok(nil))
}

// notBlank rejects whitespace-only strings that pass Required.
func notBlank(field string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return validation.NewError("validation_blank", field+" cannot be blank")
		}
		return nil
	}
}
