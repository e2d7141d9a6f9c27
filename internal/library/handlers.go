package library

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/HerbHall/tubedeck/internal/auth"
	"github.com/HerbHall/tubedeck/internal/paging"
	"github.com/HerbHall/tubedeck/internal/youtube"
	"github.com/HerbHall/tubedeck/pkg/plugin"
	"go.uber.org/zap"
)

// playlistResponse is the body of GET /playlists/{id}.
type playlistResponse struct {
	Playlist youtube.Playlist            `json:"playlist"`
	Videos   paging.State[youtube.Video] `json:"videos"`
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/playlists", Handler: m.handlePlaylists},
		{Method: "POST", Path: "/playlists/more", Handler: m.handleMorePlaylists},
		{Method: "GET", Path: "/playlists/{id}", Handler: m.handlePlaylist},
		{Method: "POST", Path: "/playlists/{id}/more", Handler: m.handleMoreVideos},
		{Method: "GET", Path: "/search", Handler: m.handleSearch},
		{Method: "GET", Path: "/stats", Handler: m.handleStats},
	}
}

// handlePlaylists returns the playlists view, loading the first page on
// the session's first visit.
func (m *Module) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	ws, ok := m.workspace(w, r)
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
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Playlists.State())
}

// handleMorePlaylists appends the next page of playlists.
func (m *Module) handleMorePlaylists(w http.ResponseWriter, r *http.Request) {
	ws, ok := m.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Playlists.LoadMore(r.Context()); err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Playlists.State())
}

// handlePlaylist returns a playlist and its video view. A q parameter
// applies an in-playlist search; an empty q clears it.
func (m *Module) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	ws, ok := m.workspace(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	id := r.PathValue("id")

	playlist, err := m.PlaylistDetails(ctx, ws, id)
	if err != nil {
		m.writeFetchError(w, err, "playlist not found")
		return
	}

	videos := ws.Videos(id)
	if err := videos.Mount(ctx, ws.Scope(id)); err != nil {
		writeViewError(w, err)
		return
	}
	if q := r.URL.Query(); q.Has("q") {
		if err := SubmitQuery(ctx, videos, q.Get("q")); err != nil {
			writeViewError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, playlistResponse{Playlist: playlist, Videos: videos.State()})
}

// handleMoreVideos appends the next page of a playlist's videos.
func (m *Module) handleMoreVideos(w http.ResponseWriter, r *http.Request) {
	ws, ok := m.workspace(w, r)
	if !ok {
		return
	}
	videos := ws.Videos(r.PathValue("id"))
	if err := videos.LoadMore(r.Context()); err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videos.State())
}

// handleSearch searches the user's playlists and uploads.
func (m *Module) handleSearch(w http.ResponseWriter, r *http.Request) {
	ws, ok := m.workspace(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := ws.Search.Mount(ctx, ws.Scope("")); err != nil {
		writeViewError(w, err)
		return
	}
	if q := r.URL.Query(); q.Has("q") {
		if err := SubmitQuery(ctx, ws.Search, q.Get("q")); err != nil {
			writeViewError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, ws.Search.State())
}

// handleStats returns account statistics.
func (m *Module) handleStats(w http.ResponseWriter, r *http.Request) {
	ws, ok := m.workspace(w, r)
	if !ok {
		return
	}
	stats, err := m.Stats(r.Context(), ws)
	if err != nil {
		m.writeFetchError(w, err, "stats not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// -- helpers --

// SubmitQuery applies a submitted search to a view. A non-empty query is
// always fetched again; an empty one clears an active search and is a
// no-op otherwise.
func SubmitQuery[T any](ctx context.Context, view *paging.Controller[T], query string) error {
	query = strings.TrimSpace(query)
	if query == "" && view.State().Query == "" {
		return nil
	}
	return view.SetQuery(ctx, query)
}

func (m *Module) workspace(w http.ResponseWriter, r *http.Request) (*Workspace, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "sign in to view your library")
		return nil, false
	}
	ws, err := m.Workspace(id)
	if err != nil {
		m.logger.Error("failed to create session views", zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, "failed to load library")
		return nil, false
	}
	return ws, true
}

// writeViewError maps controller precondition errors onto 409.
func writeViewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, paging.ErrNoMorePages),
		errors.Is(err, paging.ErrQueryActive),
		errors.Is(err, paging.ErrFetchInProgress):
		writeProblem(w, http.StatusConflict, err.Error())
	case errors.Is(err, paging.ErrNoScope):
		writeProblem(w, http.StatusBadRequest, err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, err.Error())
	}
}

func (m *Module) writeFetchError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case IsNotFound(err):
		writeProblem(w, http.StatusNotFound, notFound)
	case errors.Is(err, youtube.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Google rejected the session credentials; sign in again")
	case errors.Is(err, youtube.ErrQuotaExceeded):
		writeProblem(w, http.StatusTooManyRequests, "YouTube quota exceeded; try again later")
	default:
		m.logger.Warn("youtube request failed", zap.Error(err))
		writeProblem(w, http.StatusBadGateway, "YouTube request failed")
	}
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
