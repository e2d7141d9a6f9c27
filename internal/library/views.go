package library

import (
	"errors"
	"sync"
	"time"

	"github.com/HerbHall/tubedeck/internal/metrics"
	"github.com/HerbHall/tubedeck/internal/paging"
	"github.com/HerbHall/tubedeck/internal/youtube"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// View names, used in logs and metrics.
const (
	ViewPlaylists      = "playlists"
	ViewPlaylistVideos = "playlist_videos"
	ViewSearch         = "search"
)

// ViewsConfig bounds the view registry.
type ViewsConfig struct {
	MaxSessions  int
	TTL          time.Duration
	MaxPlaylists int
}

// Views holds one Workspace per browser session. Idle sessions expire
// after TTL; the least recently used are evicted beyond MaxSessions.
type Views struct {
	cfg     ViewsConfig
	yt      youtube.Service
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	workspaces *expirable.LRU[string, *Workspace]
}

// NewViews creates an empty registry.
func NewViews(cfg ViewsConfig, yt youtube.Service, logger *zap.Logger, m *metrics.Metrics) (*Views, error) {
	if cfg.MaxSessions <= 0 {
		return nil, errors.New("max sessions must be positive")
	}
	if cfg.MaxPlaylists <= 0 {
		return nil, errors.New("max playlists must be positive")
	}
	v := &Views{cfg: cfg, yt: yt, logger: logger, metrics: m}
	v.workspaces = expirable.NewLRU(cfg.MaxSessions, func(_ string, ws *Workspace) {
		ws.close()
	}, cfg.TTL)
	return v, nil
}

// Get returns the workspace of sessionID, creating it with a token source
// from newSource. Each access extends the workspace's lifetime.
func (v *Views) Get(sessionID, userID string, newSource func() oauth2.TokenSource) (*Workspace, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ws, ok := v.workspaces.Get(sessionID)
	if ok && ws.UserID != userID {
		ws.close()
		ok = false
	}
	if !ok {
		var err error
		ws, err = v.newWorkspace(sessionID, userID, newSource())
		if err != nil {
			return nil, err
		}
		v.logger.Debug("created session views", zap.String("session_id", sessionID))
	}
	v.workspaces.Add(sessionID, ws)
	v.metrics.SetActiveViews(v.workspaces.Len())
	return ws, nil
}

// Purge drops a session's workspace and cancels its in-flight fetches.
func (v *Views) Purge(sessionID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	removed := v.workspaces.Remove(sessionID)
	v.metrics.SetActiveViews(v.workspaces.Len())
	return removed
}

// Len returns the number of live workspaces.
func (v *Views) Len() int {
	return v.workspaces.Len()
}

// Close drops every workspace.
func (v *Views) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.workspaces.Purge()
	v.metrics.SetActiveViews(0)
}

func (v *Views) newWorkspace(sessionID, userID string, ts oauth2.TokenSource) (*Workspace, error) {
	ws := &Workspace{
		SessionID: sessionID,
		UserID:    userID,
		ts:        ts,
		yt:        v.yt,
		logger:    v.logger.With(zap.String("session_id", sessionID)),
	}
	if v.metrics != nil {
		ws.opts = []paging.Option{paging.WithRecorder(v.metrics)}
	}
	ws.Playlists = paging.New(ViewPlaylists, playlistSource(v.yt, ts), ws.logger, ws.opts...)
	ws.Search = paging.New(ViewSearch, searchSource(v.yt, ts), ws.logger, ws.opts...)

	videos, err := lru.NewWithEvict(v.cfg.MaxPlaylists, func(_ string, c *paging.Controller[youtube.Video]) {
		c.Close()
	})
	if err != nil {
		return nil, err
	}
	ws.videos = videos
	return ws, nil
}

// Workspace is the view state of one browser session.
type Workspace struct {
	SessionID string
	UserID    string
	Playlists *paging.Controller[youtube.Playlist]
	Search    *paging.Controller[youtube.SearchResult]

	ts     oauth2.TokenSource
	yt     youtube.Service
	logger *zap.Logger
	opts   []paging.Option

	mu     sync.Mutex
	videos *lru.Cache[string, *paging.Controller[youtube.Video]]
}

// Scope returns the paging scope of this session's user. parent names a
// playlist for video views and is empty otherwise.
func (w *Workspace) Scope(parent string) paging.Scope {
	return paging.Scope{Identity: w.UserID, Parent: parent}
}

// TokenSource returns the session's Google credentials.
func (w *Workspace) TokenSource() oauth2.TokenSource {
	return w.ts
}

// Videos returns the video view of a playlist, creating it on first use.
// Only the most recently used playlists keep their view.
func (w *Workspace) Videos(playlistID string) *paging.Controller[youtube.Video] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.videos.Get(playlistID); ok {
		return c
	}
	c := paging.New(ViewPlaylistVideos, videoSource(w.yt, w.ts), w.logger.With(zap.String("playlist_id", playlistID)), w.opts...)
	w.videos.Add(playlistID, c)
	return c
}

func (w *Workspace) close() {
	w.Playlists.Close()
	w.Search.Close()
	w.mu.Lock()
	w.videos.Purge()
	w.mu.Unlock()
}
