package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-authz-server/internal/errors"
	"github.com/jrsteele09/go-authz-server/oauthmodel"
	"github.com/jrsteele09/go-authz-server/sessions"
	"github.com/rs/zerolog/log"
)

const sessionCookieName = "authz_session"

type sessionKey struct{}

// requestSession is the session a request works on, plus the ID the browser
// presented so a rotated ID can be sent back.
type requestSession struct {
	session  *sessions.Session
	cookieID string
}

// SessionMiddleware loads the browser session named by the session cookie,
// or starts a new one. Every request pushes the expiry forward; the flow
// persists the session when it advances.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := s.now()
		rs := &requestSession{}

		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			sess, err := s.repos.Sessions.Get(r.Context(), cookie.Value)
			switch {
			case err == nil:
				rs.session = sess
				rs.cookieID = cookie.Value
			case autherrors.Is(err, autherrors.ErrNotFound), autherrors.Is(err, autherrors.ErrSessionExpired):
				log.Debug().Str("session_id", cookie.Value).Msg("Starting a new session")
			default:
				log.Err(err).Msg("Failed to load session")
				s.renderHardError(w, oauthmodel.HardWrap(oauthmodel.ErrCodeServerError, "failed to load session", err))
				return
			}
		}

		if rs.session == nil {
			rs.session = &sessions.Session{ID: uuid.NewString(), CreatedAt: now}
		}
		if s.sessionTTL > 0 {
			rs.session.ExpiresAt = now.Add(s.sessionTTL)
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, rs)
		next(w, r.WithContext(ctx))
	}
}

func sessionFromContext(ctx context.Context) *requestSession {
	rs, _ := ctx.Value(sessionKey{}).(*requestSession)
	return rs
}

// syncSessionCookie sends the session cookie when the browser does not yet
// hold the current session ID.
func (s *Server) syncSessionCookie(w http.ResponseWriter, rs *requestSession) {
	if rs == nil || rs.session.ID == rs.cookieID {
		return
	}
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    rs.session.ID,
		Path:     "/oauth2/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if s.sessionTTL > 0 {
		cookie.MaxAge = int(s.sessionTTL.Seconds())
	}
	http.SetCookie(w, cookie)
	rs.cookieID = rs.session.ID
}
