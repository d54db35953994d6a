// Package middleware provides HTTP middleware for the gateway: session
// gating via a session cookie (in place of the teacher's Bearer/JWT
// scheme, since this protocol authenticates with a server-side session
// store rather than self-contained tokens).
package middleware

import (
	"context"
	"net/http"

	"github.com/pineappleswan/treasury/pkg/auth"
)

// CookieName is the name of the session cookie set on successful login.
const CookieName = "session_token"

type contextKey string

const sessionContextKey contextKey = "session"

// GetSessionFromContext retrieves the authenticated session entry from the
// request context. Returns nil if RequireSession has not run, or ran and
// found no session.
func GetSessionFromContext(ctx context.Context) *auth.SessionEntry {
	entry, _ := ctx.Value(sessionContextKey).(*auth.SessionEntry)
	return entry
}

// RequireSession rejects requests lacking a valid session cookie with 401,
// and stores the resolved SessionEntry in the request context otherwise.
func RequireSession(service *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, `{"message":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			entry, err := service.RequireSession(cookie.Value)
			if err != nil {
				http.Error(w, `{"message":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetSessionCookie writes the session cookie with the configured security
// flags: HTTP-only always, SameSite=Strict always, Secure per deployment
// mode.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie expires the session cookie on logout.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
