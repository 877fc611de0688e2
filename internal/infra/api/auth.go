package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"dynamic-qr-platform/internal/domain/model"
)

// AuthManager verifies bearer tokens on the management API. Tokens are
// HS256-signed JWTs whose subject is the caller's external identity id; the
// verified subject is normalized into the canonical owner id.
type AuthManager struct {
	secret []byte
}

func NewAuthManager(secret string) *AuthManager {
	return &AuthManager{secret: []byte(secret)}
}

type ownerKeyType struct{}

var ownerKey ownerKeyType

// OwnerFromContext returns the authenticated owner id set by RequireAuth.
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey).(string)
	return id, ok
}

type apiClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ParseFromRequest extracts and verifies the bearer token, returning the
// canonical owner id and the email claim if present.
func (a *AuthManager) ParseFromRequest(r *http.Request) (string, string, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return "", "", errors.New("missing token")
	}
	tok := strings.TrimSpace(hdr[7:])

	claims := &apiClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return "", "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", "", errors.New("token missing subject")
	}
	return model.FormatOwnerID(claims.Subject), claims.Email, nil
}

// RequireAuth rejects unauthenticated requests and stashes the owner id in the
// request context for downstream handlers.
func (a *AuthManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, _, err := a.ParseFromRequest(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
