package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// ContextKey is a type for context keys
type ContextKey string

const (
	// OperatorKey is the context key for the operator name
	OperatorKey ContextKey = "operator"
	// RoleKey is the context key for the token role
	RoleKey ContextKey = "role"
)

// AuthMiddleware validates operator tokens and adds the operator to the request context.
// Browsers cannot set headers on websocket upgrades, so upgrade requests may carry the
// token in a "token" query parameter instead.
func (h *AuthHandlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			h.sendError(w, http.StatusUnauthorized, "MissingToken", "Authorization header required")
			return
		}

		claims, err := h.jwtService.ValidateToken(tokenString)
		if err != nil {
			h.sendError(w, http.StatusUnauthorized, "InvalidToken", "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole middleware ensures the token carries the required role
func (h *AuthHandlers) RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetRole(r)
			if !ok || role != requiredRole {
				h.sendError(w, http.StatusForbidden, "InsufficientPermissions", "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims stores the operator and role from claims in ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, OperatorKey, claims.Operator)
	return context.WithValue(ctx, RoleKey, claims.Role)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if !websocket.IsWebSocketUpgrade(r) {
			return "", false
		}
		q := r.URL.Query().Get("token")
		return q, q != ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetOperator extracts the operator name from request context
func GetOperator(r *http.Request) (string, bool) {
	operator, ok := r.Context().Value(OperatorKey).(string)
	return operator, ok
}

// GetRole extracts role from request context
func GetRole(r *http.Request) (string, bool) {
	role, ok := r.Context().Value(RoleKey).(string)
	return role, ok
}
