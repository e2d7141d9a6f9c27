package dashboard

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/HerbHall/tubedeck/internal/auth"
	"github.com/HerbHall/tubedeck/internal/legal"
	"github.com/HerbHall/tubedeck/internal/library"
	"github.com/HerbHall/tubedeck/internal/paging"
	"github.com/HerbHall/tubedeck/internal/services"
	"github.com/HerbHall/tubedeck/internal/youtube"
	"go.uber.org/zap"
)

// YouTube video ids are 11 characters of the URL-safe base64 alphabet.
var videoID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

type homeContent struct {
	View      paging.State[youtube.Playlist]
	Skeletons []int
}

type playlistContent struct {
	Playlist  youtube.Playlist
	Videos    paging.State[youtube.Video]
	NotFound  bool
	Error     string
	Skeletons []int
}

type searchContent struct {
	View      paging.State[youtube.SearchResult]
	Skeletons []int
}

type profileContent struct {
	User       *services.User
	Stats      *youtube.UserStats
	StatsError string
}

type embedContent struct {
	VideoID string
}

// identity returns the signed-in identity, or renders the login screen.
func (m *Module) identity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		m.render(w, http.StatusOK, pageLogin, view{Title: "Sign in"})
		return nil, false
	}
	return id, true
}

// workspace resolves the session's view state for a page request.
func (m *Module) workspace(w http.ResponseWriter, r *http.Request) (*auth.Identity, *library.Workspace, bool) {
	id, ok := m.identity(w, r)
	if !ok {
		return nil, nil, false
	}
	ws, err := m.lib.Workspace(id)
	if err != nil {
		m.logger.Error("open session views", zap.String("session_id", id.Session.ID), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return nil, nil, false
	}
	return id, ws, true
}

// postWorkspace is workspace for form posts: anonymous requests are sent
// back to the home page instead of getting the login screen.
func (m *Module) postWorkspace(w http.ResponseWriter, r *http.Request) (*library.Workspace, bool) {
	if _, ok := auth.FromContext(r.Context()); !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil, false
	}
	_, ws, ok := m.workspace(w, r)
	return ws, ok
}

func (m *Module) skeletonRows() []int {
	return make([]int, m.skeletons)
}

func (m *Module) handleHome(w http.ResponseWriter, r *http.Request) {
	id, ws, ok := m.workspace(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var err error
	if r.URL.Query().Get("refresh") == "true" {
		err = ws.Playlists.Load(ctx, ws.Scope(""))
	} else {
		err = ws.Playlists.Mount(ctx, ws.Scope(""))
	}
	if err != nil {
		m.logger.Warn("mount playlists view", zap.Error(err))
	}
	m.render(w, http.StatusOK, pageHome, view{
		Title:   "Playlists",
		Active:  "home",
		User:    id.User,
		Content: homeContent{View: ws.Playlists.State(), Skeletons: m.skeletonRows()},
	})
}

func (m *Module) handleMorePlaylists(w http.ResponseWriter, r *http.Request) {
	ws, ok := m.postWorkspace(w, r)
	if !ok {
		return
	}
	if err := ws.Playlists.LoadMore(r.Context()); err != nil {
		m.logger.Debug("load more playlists", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (m *Module) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	id, ws, ok := m.workspace(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	playlistID := r.PathValue("id")
	v := view{Title: "Playlist", Active: "home", User: id.User}

	playlist, err := m.lib.PlaylistDetails(ctx, ws, playlistID)
	switch {
	case library.IsNotFound(err):
		v.Title = "Playlist not found"
		v.Content = playlistContent{NotFound: true}
		m.render(w, http.StatusNotFound, pagePlaylist, v)
		return
	case err != nil:
		m.logger.Warn("fetch playlist details", zap.String("playlist_id", playlistID), zap.Error(err))
		v.Content = playlistContent{Error: err.Error()}
		m.render(w, http.StatusBadGateway, pagePlaylist, v)
		return
	}

	videos := ws.Videos(playlistID)
	if err := videos.Mount(ctx, ws.Scope(playlistID)); err != nil {
		m.logger.Warn("mount playlist videos", zap.Error(err))
	}
	if err := library.SubmitQuery(ctx, videos, r.URL.Query().Get("q")); err != nil {
		m.logger.Warn("search playlist videos", zap.Error(err))
	}

	v.Title = playlist.Title
	v.Content = playlistContent{
		Playlist:  playlist,
		Videos:    videos.State(),
		Skeletons: m.skeletonRows(),
	}
	m.render(w, http.StatusOK, pagePlaylist, v)
}

func (m *Module) handleMoreVideos(w http.ResponseWriter, r *http.Request) {
	playlistID := r.PathValue("id")
	ws, ok := m.postWorkspace(w, r)
	if !ok {
		return
	}
	if err := ws.Videos(playlistID).LoadMore(r.Context()); err != nil {
		m.logger.Debug("load more videos", zap.String("playlist_id", playlistID), zap.Error(err))
	}
	http.Redirect(w, r, "/playlist/"+playlistID, http.StatusSeeOther)
}

func (m *Module) handleSearch(w http.ResponseWriter, r *http.Request) {
	id, ws, ok := m.workspace(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := ws.Search.Mount(ctx, ws.Scope("")); err != nil {
		m.logger.Warn("mount search view", zap.Error(err))
	}
	if q := r.URL.Query(); q.Has("q") {
		if err := library.SubmitQuery(ctx, ws.Search, q.Get("q")); err != nil {
			m.logger.Warn("search", zap.Error(err))
		}
	}
	m.render(w, http.StatusOK, pageSearch, view{
		Title:   "Search",
		Active:  "search",
		User:    id.User,
		Content: searchContent{View: ws.Search.State(), Skeletons: m.skeletonRows()},
	})
}

func (m *Module) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, ws, ok := m.workspace(w, r)
	if !ok {
		return
	}
	content := profileContent{User: id.User}
	stats, err := m.lib.Stats(r.Context(), ws)
	if err != nil {
		m.logger.Warn("fetch account stats", zap.Error(err))
		content.StatsError = err.Error()
	} else {
		content.Stats = &stats
	}
	m.render(w, http.StatusOK, pageProfile, view{
		Title:   "Profile",
		Active:  "profile",
		User:    id.User,
		Content: content,
	})
}

func (m *Module) handleEmbed(w http.ResponseWriter, r *http.Request) {
	id, ok := m.identity(w, r)
	if !ok {
		return
	}
	vid := r.PathValue("videoID")
	if !videoID.MatchString(vid) {
		m.render(w, http.StatusNotFound, pageNotFound, view{Title: "Page Not Found", User: id.User})
		return
	}
	m.render(w, http.StatusOK, pageEmbed, view{
		Title:   "Player",
		User:    id.User,
		Content: embedContent{VideoID: vid},
	})
}

func (m *Module) handleLegal(slug string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := m.docs.Get(slug)
		if err != nil {
			if !errors.Is(err, legal.ErrNotFound) {
				m.logger.Error("load legal document", zap.String("slug", slug), zap.Error(err))
			}
			m.handleNotFound(w, r)
			return
		}
		v := view{Title: doc.Title, Content: doc}
		if id, ok := auth.FromContext(r.Context()); ok {
			v.User = id.User
		}
		m.render(w, http.StatusOK, pageLegal, v)
	}
}

// handleNotFound renders the 404 page for signed-in users. Anyone else
// lands on the login screen.
func (m *Module) handleNotFound(w http.ResponseWriter, r *http.Request) {
	id, ok := m.identity(w, r)
	if !ok {
		return
	}
	m.render(w, http.StatusNotFound, pageNotFound, view{Title: "Page Not Found", User: id.User})
}
