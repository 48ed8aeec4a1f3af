package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/narvanalabs/envkeep/internal/api/errors"
	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/pkg/logger"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newAuthService(t *testing.T, cfg auth.Config) *auth.Service {
	t.Helper()
	if cfg.JWTSecret == nil {
		cfg.JWTSecret = testSecret
	}
	if cfg.TokenExpiry == 0 {
		cfg.TokenExpiry = time.Hour
	}
	return auth.NewService(&cfg, slog.Default())
}

// echoPrincipal writes back the principal the middleware stored.
func echoPrincipal(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]string{
		"principal_id": GetPrincipalID(r.Context()),
		"email":        GetPrincipalEmail(r.Context()),
	})
}

func newAuthRouter(svc *auth.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(NewAuthMiddleware(svc, slog.Default()).Authenticate)
	r.Get("/", echoPrincipal)
	return r
}

// Any principal carried by a valid token reaches the handler unchanged.
func TestPropertyAuthenticatedPrincipalInContext(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	svc := newAuthService(t, auth.Config{})
	router := newAuthRouter(svc)

	properties.Property("principal propagates", prop.ForAll(
		func(principalID string) bool {
			token, err := svc.GenerateToken(principalID, principalID+"@example.com")
			if err != nil {
				return false
			}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			var body map[string]string
			if rr.Code != http.StatusOK || json.NewDecoder(rr.Body).Decode(&body) != nil {
				return false
			}
			return body["principal_id"] == principalID && body["email"] == principalID+"@example.com"
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestAuthenticateRejects(t *testing.T) {
	valid := newAuthService(t, auth.Config{})
	expired := newAuthService(t, auth.Config{TokenExpiry: -time.Minute})
	other := newAuthService(t, auth.Config{JWTSecret: []byte("ffffffffffffffffffffffffffffffff")})
	restricted := newAuthService(t, auth.Config{AuthorizedDomains: []string{"corp.example"}})

	expiredToken, err := expired.GenerateToken("p1", "p1@example.com")
	require.NoError(t, err)
	foreignToken, err := other.GenerateToken("p1", "p1@example.com")
	require.NoError(t, err)
	outsiderToken, err := valid.GenerateToken("p1", "p1@example.com")
	require.NoError(t, err)

	tests := []struct {
		name    string
		svc     *auth.Service
		header  string
		message string
	}{
		{"missing header", valid, "", "Missing authentication"},
		{"wrong scheme", valid, "Basic abc", "Missing authentication"},
		{"garbage", valid, "Bearer not-a-jwt", "Invalid token"},
		{"foreign signature", valid, "Bearer " + foreignToken, "Invalid token"},
		{"expired", valid, "Bearer " + expiredToken, "Token has expired"},
		{"outside allowlist", restricted, "Bearer " + outsiderToken, "Principal is not authorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			newAuthRouter(tt.svc).ServeHTTP(rr, req)

			require.Equal(t, http.StatusUnauthorized, rr.Code)
			var body apierrors.APIError
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, apierrors.CodeUnauthorized, body.Code)
			assert.Equal(t, tt.message, body.Message)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestRecoveryWritesInternalError(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, slog.LevelInfo, logger.FormatJSON)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Recovery(log.Logger))
	r.Get("/", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body apierrors.APIError
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, apierrors.CodeInternalError, body.Code)
	assert.Equal(t, "An unexpected error occurred", body.Message)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "boom")
}

func TestRequestLoggerRecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, slog.LevelInfo, logger.FormatJSON)

	var seen string
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogger(log.Logger))
	r.Get("/things", func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/things", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "/things", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, entry["request_id"])
}
