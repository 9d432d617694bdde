package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-identity-service/token"
	"github.com/rs/zerolog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClaims stores the verified token claims
	ContextKeyClaims ContextKey = "claims"
	// ContextKeyToken stores the raw bearer token
	ContextKeyToken ContextKey = "token"
)

// RequireAuth is middleware that admits requests carrying a valid, unrevoked
// Bearer token. Every rejection is the same 401.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			rawToken, ok := bearerToken(r)
			if !ok {
				logger.Debug().Msg("auth: missing or malformed authorization header")
				writeUnauthorized(w)
				return
			}

			claims, err := s.auth.Authenticate(rawToken)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			ctx = context.WithValue(ctx, ContextKeyToken, rawToken)
			next(w, r.WithContext(ctx))
		}
	}
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok
}

// TokenFromContext returns the raw bearer token stored by RequireAuth.
func TokenFromContext(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(ContextKeyToken).(string)
	return raw, ok && raw != ""
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}
