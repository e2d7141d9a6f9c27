package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/tubedeck/internal/services"
	"go.uber.org/zap"
)

// touchInterval throttles last-seen writes.
const touchInterval = time.Minute

var (
	errNoCookie       = errors.New("no session cookie")
	errBadCookie      = errors.New("invalid session cookie")
	errSessionExpired = errors.New("session expired")
	errWrongUser      = errors.New("session belongs to another user")
)

// LoadSession attaches the signed-in identity, if any, to the request
// context. Invalid or expired cookies are cleared and the request
// continues anonymously. Lookup failures leave the cookie in place.
func (m *Module) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.sessions == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, err := m.identify(r)
		switch {
		case err == nil:
			r = r.WithContext(WithIdentity(r.Context(), id))
		case errors.Is(err, errNoCookie):
		case errors.Is(err, errBadCookie),
			errors.Is(err, errSessionExpired),
			errors.Is(err, errWrongUser),
			errors.Is(err, services.ErrNotFound):
			m.logger.Debug("dropping session cookie", zap.Error(err))
			m.clearCookie(w, m.cookieName, "/")
		default:
			m.logger.Warn("session lookup failed", zap.Error(err))
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticated reports whether LoadSession found a session for r.
func (m *Module) Authenticated(r *http.Request) bool {
	_, ok := FromContext(r.Context())
	return ok
}

func (m *Module) identify(r *http.Request) (*Identity, error) {
	sid, subject, err := m.sessionFromCookie(r)
	if err != nil {
		return nil, err
	}
	ctx := r.Context()
	sess, err := m.sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if sess.Expired(now) {
		return nil, errSessionExpired
	}
	if sess.UserID != subject {
		return nil, errWrongUser
	}
	user, err := m.users.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if now.Sub(sess.LastSeen) >= touchInterval {
		if err := m.sessions.Touch(ctx, sess.ID, now); err != nil {
			m.logger.Debug("session touch failed", zap.Error(err))
		} else {
			sess.LastSeen = now.UTC()
		}
	}
	return &Identity{Session: sess, User: user}, nil
}

// sessionFromCookie verifies the session cookie and returns the session
// id and user id it names.
func (m *Module) sessionFromCookie(r *http.Request) (string, string, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return "", "", errNoCookie
	}
	var claims sessionClaims
	if err := m.parse(c.Value, sessionAudience, &claims); err != nil {
		return "", "", fmt.Errorf("%w: %w", errBadCookie, err)
	}
	return claims.SessionID, claims.Subject, nil
}
