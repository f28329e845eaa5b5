package api

import (
	"net/http"

	"github.com/fusionmc/server/internal/auth"
	"github.com/fusionmc/server/internal/config"
)

// SetupAuthRoutes registers the operator token exchange with per-IP rate limiting.
func SetupAuthRoutes(mux *http.ServeMux, cfg *config.Config, limits RateLimitConfig) {
	authHandlers := newAuthHandlers(cfg)
	authRateLimit := RateLimitMiddleware(limits.AuthLimit, limits.AuthWindow)

	mux.Handle("/api/auth/token", authRateLimit(http.HandlerFunc(authHandlers.Token)))
}

func newAuthHandlers(cfg *config.Config) *auth.AuthHandlers {
	return auth.NewAuthHandlers(auth.NewJWTService(cfg), auth.NewPasswordService(cfg))
}

// SecurityHeadersMiddleware wraps auth.SecurityHeadersMiddleware for use in main
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return auth.SecurityHeadersMiddleware(next)
}
