package web

import (
	"net/http"

	"github.com/JonMunkholm/enricher/internal/logging"
	"github.com/JonMunkholm/enricher/internal/session"
)

// sessionMiddleware attaches the caller's wizard session to the request,
// starting a new one and setting its cookie when the cookie is missing or
// refers to an expired session.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(session.CookieName); err == nil {
			id = c.Value
		}

		sess, created := s.sessions.GetOrCreate(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     session.CookieName,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.cfg.Session.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
			logging.FromContext(r.Context()).Debug("session started", "session_id", sess.ID)
		}

		ctx := session.NewContext(r.Context(), sess)
		ctx = logging.WithSessionID(ctx, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentSession returns the session attached by sessionMiddleware.
func currentSession(r *http.Request) (*session.Session, bool) {
	return session.FromContext(r.Context())
}
