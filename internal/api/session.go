package api

import (
	"context"
	"net/http"

	"meridian/banking-api/internal/session"
)

// sessionCookie carries the session ID between requests. The cookie is the
// only handle a client holds; a handler can reach no session other than the
// one its cookie resolves to.
const sessionCookie = "session_id"

type sessionKey struct{}

// withSession resolves (or creates) the request's session from the session
// cookie and stores it in the request context. A fresh session sets the
// cookie on the response.
func withSession(m *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(sessionCookie); err == nil {
				id = c.Value
			}

			sess := m.GetOrCreate(id)
			if sess.ID() != id {
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookie,
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

// sessionFrom returns the session placed in the context by withSession.
func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return sess
}
