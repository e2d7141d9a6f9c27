package auth

import (
	"context"
	"sync"

	"github.com/HerbHall/tubedeck/internal/services"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// TokenSource returns the session's Google credentials. Expired access
// tokens are refreshed and the refreshed token is written back to the
// session. The source outlives the request that created it.
func (m *Module) TokenSource(sess *services.Session) oauth2.TokenSource {
	base := m.oauth.TokenSource(m.oauthContext(context.Background()), sess.Token())
	return &persistingSource{
		base:      base,
		sessionID: sess.ID,
		last:      sess.AccessToken,
		sessions:  m.sessions,
		logger:    m.logger,
	}
}

type persistingSource struct {
	base      oauth2.TokenSource
	sessionID string
	sessions  services.SessionRepository
	logger    *zap.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.sessions.UpdateToken(context.Background(), s.sessionID, tok); err != nil {
			s.logger.Warn("failed to store refreshed token",
				zap.String("session_id", s.sessionID),
				zap.Error(err),
			)
		} else {
			s.logger.Debug("stored refreshed token", zap.String("session_id", s.sessionID))
		}
	}
	return tok, nil
}
