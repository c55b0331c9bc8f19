package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/antmikinka/cheating-daddy/internal/capabilities"
	"github.com/antmikinka/cheating-daddy/internal/config"
	"github.com/antmikinka/cheating-daddy/internal/domain"
	"github.com/antmikinka/cheating-daddy/internal/handler"
	"github.com/antmikinka/cheating-daddy/internal/middleware"
	"github.com/antmikinka/cheating-daddy/internal/service/session"
	"github.com/antmikinka/cheating-daddy/internal/service/session/providers/gemini"
	"github.com/antmikinka/cheating-daddy/internal/service/session/providers/lorem"
	"github.com/antmikinka/cheating-daddy/internal/service/session/providers/openai"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logOut := io.Writer(os.Stdout)
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"default_provider", cfg.DefaultProvider,
	)

	// Capability registry (embedded YAML, one file per provider)
	capabilityRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize capability registry: %v", err)
	}
	logger.Info("capability registry initialized")

	// Provider adapters
	adapters := map[domain.Provider]session.Adapter{
		domain.ProviderGemini: gemini.NewAdapter(gemini.Config{}),
		domain.ProviderOpenAI: openai.NewAdapter(openai.Config{}),
		domain.ProviderLorem:  lorem.NewAdapter(),
	}

	defaultProvider, err := domain.ParseProvider(cfg.DefaultProvider)
	if err != nil {
		log.Fatalf("Invalid DEFAULT_PROVIDER: %v", err)
	}
	if cfg.DefaultModel != "" && !capabilityRegistry.KnownModel(defaultProvider, cfg.DefaultModel) {
		log.Fatalf("DEFAULT_MODEL %q is not available for provider %s", cfg.DefaultModel, defaultProvider)
	}

	// Session routing core
	events := handler.NewEventStream(logger)
	registry := session.NewRegistry()
	conversationLog := session.NewLog()
	selector := session.NewSelector(defaultProvider, cfg.DefaultModel)
	supervisor := session.NewSupervisor(registry, events, logger, cfg.ReconnectMaxAttempts, cfg.ReconnectBaseDelay)
	router := session.NewRouter(registry, adapters, capabilityRegistry, conversationLog, selector, events, supervisor, logger, cfg.RequestTimeout)

	logger.Info("session router initialized",
		"providers", len(adapters),
		"reconnect_max_attempts", cfg.ReconnectMaxAttempts,
	)

	sessionHandler := handler.NewSessionHandler(router, selector, capabilityRegistry, cfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	sessionHandler.RegisterRoutes(mux)
	mux.Handle("GET /api/events", events)

	// Build middleware chain: CORS → Recovery → Routes
	var httpHandler http.Handler = mux
	httpHandler = middleware.Recovery(logger)(httpHandler)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: close every provider slot before the listener.
	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		logger.Info("shutting down")
		router.Teardown()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
