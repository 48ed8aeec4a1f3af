package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/narvanalabs/envkeep/internal/api/errors"
	"github.com/narvanalabs/envkeep/internal/auth"
	"github.com/narvanalabs/envkeep/pkg/logger"
)

type contextKey string

// PrincipalEmailKey is the context key for the authenticated principal's email.
const PrincipalEmailKey contextKey = "principal_email"

// GetPrincipalID extracts the authenticated principal from the request context.
func GetPrincipalID(ctx context.Context) string {
	return logger.PrincipalIDFromContext(ctx)
}

// GetPrincipalEmail extracts the authenticated principal's email from the request context.
func GetPrincipalEmail(ctx context.Context) string {
	if v, ok := ctx.Value(PrincipalEmailKey).(string); ok {
		return v
	}
	return ""
}

// AuthMiddleware validates bearer tokens issued by the session service.
type AuthMiddleware struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(authService *auth.Service, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		logger:      logger,
	}
}

// Authenticate rejects requests without a valid bearer token and stores the
// principal in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeUnauthorized(w, r, "Missing authentication")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			m.logger.Debug("token validation failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				writeUnauthorized(w, r, "Token has expired")
			case errors.Is(err, auth.ErrNotAuthorized):
				writeUnauthorized(w, r, "Principal is not authorized")
			default:
				writeUnauthorized(w, r, "Invalid token")
			}
			return
		}

		ctx := logger.ContextWithPrincipalID(r.Context(), claims.PrincipalID)
		ctx = context.WithValue(ctx, PrincipalEmailKey, claims.Email)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	apierrors.WriteErrorWithRequestID(w, apierrors.NewUnauthorizedError(message), middleware.GetReqID(r.Context()))
}
