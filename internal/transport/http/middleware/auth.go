package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/yuutasakka/zeroshin-verify/internal/application/tokens"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
	jwtinfra "github.com/yuutasakka/zeroshin-verify/internal/infrastructure/jwt"
)

type contextKey string

const (
	ClaimsKey  contextKey = "claims"
	SessionKey contextKey = "session"
)

// Auth returns middleware that validates the Bearer access token and injects
// its claims into the request context.
func Auth(mgr *tokens.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, `{"error":"missing or invalid authorization header"}`, http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims := mgr.Verify(tokenStr, domain.TokenTypeAccess)
			if claims == nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext extracts access-token claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}
