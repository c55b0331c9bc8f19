package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string

	// Provider selection
	DefaultProvider string
	DefaultModel    string

	// API key fallbacks when the UI does not supply credentials
	GeminiAPIKey string
	OpenAIAPIKey string

	// Backend call budget
	RequestTimeout time.Duration

	// Reconnection supervisor
	ReconnectMaxAttempts int
	ReconnectBaseDelay   time.Duration

	// File logging; empty LogDir keeps logs on stdout only
	LogDir      string
	LogMaxFiles int

	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),

		DefaultProvider: getEnv("DEFAULT_PROVIDER", "gemini"),
		DefaultModel:    getEnv("DEFAULT_MODEL", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),

		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT_MS", DefaultRequestTimeout),

		ReconnectMaxAttempts: getIntEnv("RECONNECT_MAX_ATTEMPTS", DefaultReconnectMaxAttempts),
		ReconnectBaseDelay:   getDurationEnv("RECONNECT_BASE_DELAY_MS", DefaultReconnectBaseDelay),

		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getIntEnv("LOG_MAX_FILES", DefaultLogMaxFiles),

		// Debug defaults to true outside production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getDurationEnv reads a millisecond count from the environment.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return defaultValue
}
