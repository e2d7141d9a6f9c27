// Package library serves a signed-in user's YouTube library: playlists,
// playlist videos, search and account stats. View state is kept per
// browser session so "load more" continues where the last page ended.
package library

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/HerbHall/tubedeck/internal/auth"
	"github.com/HerbHall/tubedeck/internal/cache"
	"github.com/HerbHall/tubedeck/internal/metrics"
	"github.com/HerbHall/tubedeck/internal/services"
	"github.com/HerbHall/tubedeck/internal/youtube"
	"github.com/HerbHall/tubedeck/pkg/plugin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
)

// TokenProvider supplies Google credentials for a session.
type TokenProvider interface {
	TokenSource(sess *services.Session) oauth2.TokenSource
}

// Module implements the library plugin.
type Module struct {
	logger  *zap.Logger
	yt      youtube.Service
	tokens  TokenProvider
	cache   *cache.Cache
	metrics *metrics.Metrics
	views   *Views
}

// Option configures a Module.
type Option func(*Module)

// WithCache caches playlist details and account stats.
func WithCache(c *cache.Cache) Option {
	return func(m *Module) { m.cache = c }
}

// WithMetrics records view fetches and active sessions.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Module) { m.metrics = mt }
}

// New creates the library module.
func New(yt youtube.Service, tokens TokenProvider, opts ...Option) *Module {
	m := &Module{yt: yt, tokens: tokens}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "library",
		Version:      "0.1.0",
		Description:  "Playlists, videos and search for the signed-in user",
		Dependencies: []string{"auth"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	cfg := deps.Config

	views, err := NewViews(ViewsConfig{
		MaxSessions:  cfg.GetInt("views.max_sessions"),
		TTL:          cfg.GetDuration("views.ttl"),
		MaxPlaylists: cfg.GetInt("views.max_playlists"),
	}, m.yt, m.logger, m.metrics)
	if err != nil {
		return fmt.Errorf("library views: %w", err)
	}
	m.views = views

	m.logger.Info("library module initialized",
		zap.Int("max_sessions", cfg.GetInt("views.max_sessions")),
		zap.Duration("views_ttl", cfg.GetDuration("views.ttl")),
	)
	return nil
}

func (m *Module) Start(_ context.Context) error {
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.views != nil {
		m.views.Close()
	}
	return nil
}

// Subscriptions drops a session's views when it ends.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: plugin.TopicSessionEnded, Handler: m.handleSessionEnded},
	}
}

func (m *Module) handleSessionEnded(_ context.Context, event plugin.Event) {
	payload, ok := event.Payload.(plugin.SessionEvent)
	if !ok || m.views == nil {
		return
	}
	if m.views.Purge(payload.SessionID) {
		m.logger.Debug("purged session views", zap.String("session_id", payload.SessionID))
	}
}

func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	details := map[string]string{"cache_entries": strconv.Itoa(m.cache.Len())}
	if m.views != nil {
		details["active_sessions"] = strconv.Itoa(m.views.Len())
	}
	return plugin.HealthStatus{Status: "ok", Details: details}
}

// Workspace returns the view state of the identity's session, creating it
// on first use.
func (m *Module) Workspace(id *auth.Identity) (*Workspace, error) {
	return m.views.Get(id.Session.ID, id.User.ID, func() oauth2.TokenSource {
		return m.tokens.TokenSource(id.Session)
	})
}

// PlaylistDetails returns a playlist's metadata. Found playlists are
// cached per user.
func (m *Module) PlaylistDetails(ctx context.Context, ws *Workspace, playlistID string) (youtube.Playlist, error) {
	key := cache.Key("playlist", ws.UserID, playlistID)
	if p, ok := cache.LoadJSON[youtube.Playlist](ctx, m.cache, key); ok {
		return p, nil
	}
	p, err := m.yt.FetchPlaylistDetails(ctx, ws.TokenSource(), playlistID)
	if err != nil {
		return youtube.Playlist{}, err
	}
	cache.StoreJSON(ctx, m.cache, key, p)
	return p, nil
}

// Stats returns the user's account statistics, cached per user.
func (m *Module) Stats(ctx context.Context, ws *Workspace) (youtube.UserStats, error) {
	key := cache.Key("stats", ws.UserID)
	if s, ok := cache.LoadJSON[youtube.UserStats](ctx, m.cache, key); ok {
		return s, nil
	}
	s, err := m.yt.FetchUserStats(ctx, ws.TokenSource())
	if err != nil {
		return youtube.UserStats{}, err
	}
	cache.StoreJSON(ctx, m.cache, key, s)
	return s, nil
}

// IsNotFound reports whether err means the requested resource does not
// exist for this user.
func IsNotFound(err error) bool {
	return errors.Is(err, youtube.ErrNotFound)
}
