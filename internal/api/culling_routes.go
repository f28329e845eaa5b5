package api

import (
	"net/http"
	"strings"

	"github.com/fusionmc/server/internal/auth"
	"github.com/fusionmc/server/internal/config"
	"github.com/fusionmc/server/internal/database"
	"github.com/fusionmc/server/internal/engine"
)

// SetupCullingRoutes registers the culling API behind operator auth and per-operator
// rate limiting. history and hub may be nil.
func SetupCullingRoutes(mux *http.ServeMux, e *engine.Engine, history *database.StatsHistory, hub *OverlayHub, cfg *config.Config, limits RateLimitConfig) {
	handlers := NewCullingHandlers(e, history, hub)
	authHandlers := newAuthHandlers(cfg)
	operatorRateLimit := OperatorRateLimitMiddleware(limits.OperatorLimit, limits.OperatorWindow)

	cullingHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/culling")
		path = strings.Trim(path, "/")

		switch {
		case r.Method == http.MethodGet && path == "stats":
			handlers.GetStats(w, r)
		case r.Method == http.MethodGet && path == "status":
			handlers.GetStatus(w, r)
		case r.Method == http.MethodPost && path == "toggle":
			handlers.Toggle(w, r)
		case r.Method == http.MethodPost && path == "clear":
			handlers.ClearCache(w, r)
		case r.Method == http.MethodPost && path == "reload":
			handlers.Reload(w, r)
		case r.Method == http.MethodPost && path == "reset":
			handlers.Reset(w, r)
		case r.Method == http.MethodPost && path == "command":
			handlers.Command(w, r)
		case r.Method == http.MethodPost && path == "tick":
			handlers.Tick(w, r)
		case r.Method == http.MethodGet && path == "history":
			handlers.GetHistory(w, r)
		case r.Method == http.MethodPost && path == "history":
			handlers.RecordHistory(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	// Auth runs first so the limiter can key on the operator.
	protected := authHandlers.AuthMiddleware(
		authHandlers.RequireRole(auth.RoleOperator)(
			operatorRateLimit(cullingHandler)))

	mux.Handle("/api/culling/", protected)
	mux.Handle("/api/culling", protected)
}
