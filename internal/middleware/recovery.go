package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/antmikinka/cheating-daddy/internal/domain"
	"github.com/antmikinka/cheating-daddy/internal/httputil"
)

// Recovery converts a handler panic into the standard failure envelope so a
// crashed request never takes the process or the UI shell down with it.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(debug.Stack()),
					)

					httputil.RespondResult(w, domain.Result{Success: false, Error: "internal server error"})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
