// Package auth provides authentication and authorization services.
//
// Tokens are issued by an external identity provider and validated here with
// a shared HS256 secret. Authorization is per application: a principal's
// Membership role is resolved from the resource being touched and checked
// against the minimum role of the requested Action.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors returned by the auth service.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrMissingClaims    = errors.New("missing required claims")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrNotAuthorized    = errors.New("principal is not on the authorized list")
)

// Claims represents the validated identity carried by a bearer token.
type Claims struct {
	PrincipalID string    `json:"sub"`
	Email       string    `json:"email"`
	Exp         time.Time `json:"exp"`
}

// Config holds authentication configuration.
type Config struct {
	JWTSecret   []byte
	TokenExpiry time.Duration
	// AuthorizedEmails and AuthorizedDomains restrict which principals may
	// sign in. Both empty means every validly signed token is accepted.
	AuthorizedEmails  []string
	AuthorizedDomains []string
}

// Service validates bearer tokens.
type Service struct {
	jwtSecret   []byte
	tokenExpiry time.Duration
	emails      map[string]struct{}
	domains     map[string]struct{}
	logger      *slog.Logger
}

// NewService creates a new authentication service.
func NewService(cfg *Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		jwtSecret:   cfg.JWTSecret,
		tokenExpiry: cfg.TokenExpiry,
		emails:      make(map[string]struct{}, len(cfg.AuthorizedEmails)),
		domains:     make(map[string]struct{}, len(cfg.AuthorizedDomains)),
		logger:      logger,
	}
	for _, e := range cfg.AuthorizedEmails {
		if e = normalize(e); e != "" {
			s.emails[e] = struct{}{}
		}
	}
	for _, d := range cfg.AuthorizedDomains {
		if d = strings.TrimPrefix(normalize(d), "@"); d != "" {
			s.domains[d] = struct{}{}
		}
	}
	return s
}

// GenerateToken creates a signed token for a principal. Used by operator
// tooling and tests; production tokens come from the identity provider.
func (s *Service) GenerateToken(principalID, email string) (string, error) {
	if principalID == "" {
		return "", ErrMissingClaims
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   principalID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenExpiry).Unix(),
		"nbf":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signedToken, nil
}

// ValidateToken validates a bearer token, applies the allowlist and returns
// the principal's claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		if errors.Is(err, jwt.ErrTokenRequiredClaimMissing) {
			return nil, ErrMissingClaims
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	principalID, ok := mapClaims["sub"].(string)
	if !ok || principalID == "" {
		return nil, ErrMissingClaims
	}

	email, _ := mapClaims["email"].(string)

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrMissingClaims
	}

	if !s.Authorized(email) {
		s.logger.Warn("rejected principal outside allowlist", "principal_id", principalID)
		return nil, ErrNotAuthorized
	}

	return &Claims{
		PrincipalID: principalID,
		Email:       email,
		Exp:         exp.Time,
	}, nil
}

// Authorized reports whether an email passes the configured allowlist.
func (s *Service) Authorized(email string) bool {
	if len(s.emails) == 0 && len(s.domains) == 0 {
		return true
	}
	email = normalize(email)
	if email == "" {
		return false
	}
	if _, ok := s.emails[email]; ok {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	_, ok := s.domains[email[at+1:]]
	return ok
}

// ExtractBearerToken extracts the token from a Bearer authorization header.
func ExtractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
