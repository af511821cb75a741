package middleware

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"

	"github.com/yuutasakka/zeroshin-verify/internal/application/csrf"
	"github.com/yuutasakka/zeroshin-verify/internal/application/session"
	"github.com/yuutasakka/zeroshin-verify/internal/domain"
)

// Cookie and header names shared with the csrf-token handler.
const (
	SessionIDCookie    = "session_id"
	CSRFCookie         = "_csrf"
	CSRFHeader         = "X-CSRF-Token"
	SessionTokenHeader = "X-Session-Token"
)

// CSRF enforces the header/cookie pair on pre-authentication state-changing
// requests. The header must match the _csrf cookie (double submit) and the
// registry must recognise it for the caller's session id; success consumes
// the token.
func CSRF(registry *csrf.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sidCookie, err := r.Cookie(SessionIDCookie)
			if err != nil || sidCookie.Value == "" {
				http.Error(w, `{"error":"csrf validation failed","error_code":"CSRF_INVALID"}`, http.StatusForbidden)
				return
			}
			header := r.Header.Get(CSRFHeader)
			tokenCookie, err := r.Cookie(CSRFCookie)
			if header == "" || err != nil ||
				subtle.ConstantTimeCompare([]byte(header), []byte(tokenCookie.Value)) != 1 {
				http.Error(w, `{"error":"csrf validation failed","error_code":"CSRF_INVALID"}`, http.StatusForbidden)
				return
			}
			if !registry.Validate(sidCookie.Value, header, ClientIP(r)) {
				http.Error(w, `{"error":"csrf validation failed","error_code":"CSRF_INVALID"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession gates an operation behind a valid session: 401 without one,
// 403 when the paired CSRF header does not match the session's bound token.
// The resolved record is injected into the request context.
func RequireSession(mgr *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := r.Header.Get(SessionTokenHeader)
			if tok == "" {
				http.Error(w, `{"error":"unauthenticated","error_code":"UNAUTHENTICATED"}`, http.StatusUnauthorized)
				return
			}
			rec := mgr.Validate(tok)
			if rec == nil || !rec.Authenticated {
				http.Error(w, `{"error":"unauthenticated","error_code":"UNAUTHENTICATED"}`, http.StatusUnauthorized)
				return
			}
			header := r.Header.Get(CSRFHeader)
			if subtle.ConstantTimeCompare([]byte(header), []byte(rec.CSRFToken)) != 1 {
				http.Error(w, `{"error":"csrf validation failed","error_code":"CSRF_INVALID"}`, http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), SessionKey, rec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext extracts the session record injected by RequireSession.
func SessionFromContext(ctx context.Context) (*domain.SessionRecord, bool) {
	rec, ok := ctx.Value(SessionKey).(*domain.SessionRecord)
	return rec, ok
}

// ClientIP returns the remote address without its port. chi's RealIP
// middleware has already rewritten RemoteAddr from X-Forwarded-For when the
// service sits behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
