package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/HerbHall/tubedeck/internal/services"
	"github.com/HerbHall/tubedeck/pkg/plugin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// handleLogin starts the Google sign-in flow.
func (m *Module) handleLogin(w http.ResponseWriter, r *http.Request) {
	if m.oauth.ClientID == "" {
		writeProblem(w, http.StatusServiceUnavailable, "Google sign-in is not configured")
		return
	}

	state := oauth2.GenerateVerifier()
	verifier := oauth2.GenerateVerifier()
	expires := m.now().Add(loginTTL)
	raw, err := m.sign(&loginClaims{
		State:            state,
		Verifier:         verifier,
		RegisteredClaims: m.registered(loginAudience, "", expires),
	})
	if err != nil {
		m.logger.Error("failed to sign login state", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "failed to start sign-in")
		return
	}
	m.setCookie(w, loginCookie, raw, loginPath, expires)

	url := m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	http.Redirect(w, r, url, http.StatusFound)
}

// handleCallback completes sign-in: it verifies the state, exchanges the
// code and opens a session.
func (m *Module) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		m.logger.Info("sign-in was not completed", zap.String("reason", reason))
		m.clearCookie(w, loginCookie, loginPath)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	c, err := r.Cookie(loginCookie)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "missing sign-in state")
		return
	}
	var login loginClaims
	if err := m.parse(c.Value, loginAudience, &login); err != nil {
		writeProblem(w, http.StatusBadRequest, "sign-in state is invalid or expired")
		return
	}
	if subtle.ConstantTimeCompare([]byte(login.State), []byte(q.Get("state"))) != 1 {
		writeProblem(w, http.StatusBadRequest, "sign-in state mismatch")
		return
	}
	code := q.Get("code")
	if code == "" {
		writeProblem(w, http.StatusBadRequest, "missing authorization code")
		return
	}
	m.clearCookie(w, loginCookie, loginPath)

	ctx := r.Context()
	tok, err := m.oauth.Exchange(m.oauthContext(ctx), code, oauth2.VerifierOption(login.Verifier))
	if err != nil {
		m.logger.Warn("authorization code exchange failed", zap.Error(err))
		writeProblem(w, http.StatusBadGateway, "could not complete sign-in with Google")
		return
	}

	sess, err := m.openSession(ctx, tok)
	if err != nil {
		m.logger.Error("failed to open session", zap.Error(err))
		writeProblem(w, http.StatusBadGateway, "could not complete sign-in with Google")
		return
	}

	raw, err := m.sign(&sessionClaims{
		SessionID:        sess.ID,
		RegisteredClaims: m.registered(sessionAudience, sess.UserID, sess.ExpiresAt),
	})
	if err != nil {
		m.logger.Error("failed to sign session", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	m.setCookie(w, m.cookieName, raw, "/", sess.ExpiresAt)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// openSession records the user behind tok and stores a new session.
func (m *Module) openSession(ctx context.Context, tok *oauth2.Token) (*services.Session, error) {
	profile, err := m.profiles.FetchProfile(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return nil, err
	}
	user := &services.User{
		ID:      profile.ID,
		Email:   profile.Email,
		Name:    profile.Name,
		Picture: profile.Picture,
	}
	if err := m.users.Upsert(ctx, user); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	sess := &services.Session{
		UserID:    user.ID,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(m.sessionTTL),
	}
	sess.SetToken(tok)
	if sess.TokenType == "" {
		sess.TokenType = "Bearer"
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.Info("session started",
		zap.String("user_id", user.ID),
		zap.String("session_id", sess.ID),
	)
	m.publish(ctx, plugin.TopicSessionStarted, sess)
	return sess, nil
}

// EndSession deletes a session and announces it. Ending an unknown
// session is not an error.
func (m *Module) EndSession(ctx context.Context, sessionID, userID string) error {
	if err := m.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("end session: %w", err)
	}
	m.logger.Info("session ended", zap.String("session_id", sessionID))
	m.publish(ctx, plugin.TopicSessionEnded, &services.Session{ID: sessionID, UserID: userID})
	return nil
}

func (m *Module) publish(ctx context.Context, topic string, sess *services.Session) {
	if m.bus == nil {
		return
	}
	_ = m.bus.Publish(ctx, plugin.Event{
		Topic:     topic,
		Source:    "auth",
		Timestamp: m.now().UTC(),
		Payload:   plugin.SessionEvent{SessionID: sess.ID, UserID: sess.UserID},
	})
}

// handleLogout ends the current session and clears the cookie.
func (m *Module) handleLogout(w http.ResponseWriter, r *http.Request) {
	var sid, uid string
	if id, ok := FromContext(r.Context()); ok {
		sid, uid = id.Session.ID, id.Session.UserID
	} else if s, u, err := m.sessionFromCookie(r); err == nil {
		sid, uid = s, u
	}

	if sid != "" {
		if err := m.EndSession(r.Context(), sid, uid); err != nil {
			m.logger.Error("logout failed", zap.Error(err))
			writeProblem(w, http.StatusInternalServerError, "failed to sign out")
			return
		}
	}
	m.clearCookie(w, m.cookieName, "/")

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type sessionResponse struct {
	User    *services.User    `json:"user"`
	Session *services.Session `json:"session"`
}

// handleSession returns the signed-in user.
func (m *Module) handleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := FromContext(r.Context())
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{User: id.User, Session: id.Session})
}

// -- helpers --

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://tubedeck.dev/problems/" + strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "-"),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
