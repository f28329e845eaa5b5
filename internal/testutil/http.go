package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fusionmc/server/internal/auth"
	"github.com/fusionmc/server/internal/config"
)

// TestJWTSecret signs tokens issued by OperatorToken.
const TestJWTSecret = "test_jwt_secret_key_32_bytes_long!!"

// HTTPTestHelper provides utilities for HTTP testing
type HTTPTestHelper struct {
	Handler http.Handler
	// Token, when set, is sent as a bearer token on every request.
	Token string
}

// NewHTTPTestHelper creates a new HTTP test helper
func NewHTTPTestHelper(handler http.Handler) *HTTPTestHelper {
	return &HTTPTestHelper{Handler: handler}
}

// MakeRequest creates and executes an HTTP request, returning the response
func (h *HTTPTestHelper) MakeRequest(method, path string, body interface{}) *httptest.ResponseRecorder {
	return h.MakeRequestWithHeaders(method, path, body, nil)
}

// MakeRequestWithHeaders creates and executes an HTTP request with custom headers
func (h *HTTPTestHelper) MakeRequestWithHeaders(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			panic(err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(reqBody))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rr := httptest.NewRecorder()
	h.Handler.ServeHTTP(rr, req)
	return rr
}

// ParseJSONResponse parses a JSON response body into a target struct
func ParseJSONResponse(t interface{}, body *bytes.Buffer) error {
	return json.NewDecoder(body).Decode(t)
}

// TestConfig returns a configuration suitable for handler tests. The operator
// password hash is left empty; callers set it when they exercise token exchange.
func TestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Auth: config.AuthConfig{
			JWTSecret:     TestJWTSecret,
			JWTExpiration: 15 * time.Minute,
			BCryptCost:    4,
		},
		Culling: config.CullingConfig{
			EnableBlockEntityCulling: true,
			EnableChunkCulling:       true,
			EnableDistanceCulling:    true,
			EnableFrustumCulling:     true,
			EnableLOD:                true,
			EnableChunkRenderingOpt:  true,
			MaxRenderDistance:        4,
			UpdateInterval:           5,
			CacheWatchdogThreshold:   500,
			StatsInterval:            time.Second,
		},
	}
}

// OperatorToken issues a valid operator token for cfg.
func OperatorToken(t *testing.T, cfg *config.Config, operator string) string {
	t.Helper()
	token, _, err := auth.NewJWTService(cfg).GenerateToken(operator)
	if err != nil {
		t.Fatalf("Failed to generate operator token: %v", err)
	}
	return token
}
