// Package auth authenticates requests with bearer tokens and authorizes
// them against role permissions cached in Redis.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/alsubhan/versal/internal/platform/httpx"
	"github.com/alsubhan/versal/internal/shared"
)

// ErrInvalidToken indicates a missing, malformed or expired bearer token.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT payload the service issues and accepts.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator validates bearer tokens and injects the principal into the
// request context.
type Authenticator struct {
	secret []byte
	logger *slog.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(secret string, logger *slog.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), logger: logger}
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.authenticate(r)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (shared.Principal, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return shared.Principal{}, ErrInvalidToken
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return shared.Principal{}, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return shared.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return shared.Principal{UserID: userID, Role: claims.Role}, nil
}

// IssueToken signs a token for the given user, used by tests and tooling.
func (a *Authenticator) IssueToken(userID uuid.UUID, role string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID.String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: role, RegisteredClaims: claims})
	return token.SignedString(a.secret)
}
