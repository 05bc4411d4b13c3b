package api

import (
	"context"
	"net/http"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
	"github.com/Muhammadazeem-eng/acne-detect/internal/session"
)

// SessionCookie is the cookie that binds a visitor to a session.
const SessionCookie = "session_id"

type sessionKey struct{}

// SessionMiddleware attaches the visitor's session to the request context,
// creating one (and setting the cookie) on first contact or after the
// previous session expired.
func SessionMiddleware(reg *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}

			sess, created := reg.GetOrCreate(id)
			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sess.ID(),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionFrom returns the session attached by SessionMiddleware.
func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

// RequireAuth rejects requests whose session is not logged in.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess == nil || !sess.Authenticated() {
			writeError(w, apperr.New(apperr.CodeUnauthenticated, "please log in first"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
