// Package dashboard serves the server-rendered TubeDeck pages: the login
// screen, the playlists grid, playlist detail with in-playlist search,
// global search, the profile page, the embed player and the legal pages.
package dashboard

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/HerbHall/tubedeck/internal/format"
	"github.com/HerbHall/tubedeck/internal/legal"
	"github.com/HerbHall/tubedeck/internal/library"
	"github.com/HerbHall/tubedeck/internal/services"
	"github.com/HerbHall/tubedeck/internal/version"
	"github.com/HerbHall/tubedeck/pkg/plugin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Compile-time interface guards.
var (
	_ plugin.Plugin       = (*Module)(nil)
	_ plugin.PageProvider = (*Module)(nil)
)

// Page names. Each maps to templates/<name>.html rendered inside the layout.
const (
	pageLogin    = "login"
	pageHome     = "home"
	pagePlaylist = "playlist"
	pageSearch   = "search"
	pageProfile  = "profile"
	pageEmbed    = "embed"
	pageLegal    = "legal"
	pageNotFound = "notfound"
)

var pageNames = []string{
	pageLogin, pageHome, pagePlaylist, pageSearch,
	pageProfile, pageEmbed, pageLegal, pageNotFound,
}

// Module implements the dashboard plugin.
type Module struct {
	logger    *zap.Logger
	lib       *library.Module
	docs      *legal.Documents
	pages     map[string]*template.Template
	skeletons int
}

// New creates the dashboard module.
func New(lib *library.Module, docs *legal.Documents) *Module {
	return &Module{lib: lib, docs: docs}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "dashboard",
		Version:      "0.1.0",
		Description:  "Server-rendered playlist dashboard",
		Dependencies: []string{"library"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.skeletons = deps.Config.GetInt("dashboard.skeleton_cards")
	if m.skeletons <= 0 {
		m.skeletons = 6
	}

	pages, err := parsePages()
	if err != nil {
		return err
	}
	m.pages = pages

	// Fail at startup rather than on the first request for a legal page.
	if _, err := m.docs.Slugs(); err != nil {
		return fmt.Errorf("load legal documents: %w", err)
	}

	m.logger.Info("dashboard module initialized", zap.Int("pages", len(m.pages)))
	return nil
}

func (m *Module) Start(_ context.Context) error { return nil }

func (m *Module) Stop(_ context.Context) error { return nil }

// RegisterRoutes implements plugin.PageProvider.
func (m *Module) RegisterRoutes(mux *http.ServeMux) {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.HandleFunc("GET /{$}", m.handleHome)
	mux.HandleFunc("POST /playlists/more", m.handleMorePlaylists)
	mux.HandleFunc("GET /playlist/{id}", m.handlePlaylist)
	mux.HandleFunc("POST /playlist/{id}/more", m.handleMoreVideos)
	mux.HandleFunc("GET /search", m.handleSearch)
	mux.HandleFunc("GET /profile", m.handleProfile)
	mux.HandleFunc("GET /embed/{videoID}", m.handleEmbed)
	mux.HandleFunc("GET /privacy", m.handleLegal("privacy"))
	mux.HandleFunc("GET /terms", m.handleLegal("terms"))
	mux.HandleFunc("/", m.handleNotFound)
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"duration": format.Duration,
		"count":    format.Count,
		"plural":   format.Plural,
		"privacy":  format.Privacy,
		"ago":      format.Ago,
		"watchURL": format.WatchURL,
		"embedURL": format.EmbedURL,
		"date":     formatDate,
		"dict":     dict,
	}
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs()).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

// view is the data every page renders with.
type view struct {
	Title   string
	Active  string
	User    *services.User
	Version string
	Content any
}

// render executes a page into a buffer so a template error can still
// produce a clean 500.
func (m *Module) render(w http.ResponseWriter, status int, name string, v view) {
	t, ok := m.pages[name]
	if !ok {
		m.logger.Error("unknown page", zap.String("page", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	v.Version = version.Short()

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		m.logger.Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func formatDate(t time.Time, layout string) string {
	var l string
	switch layout {
	case "long":
		l = format.LongDate
	case "clock":
		l = format.Clock
	case "datetime":
		l = format.DateTime
	default:
		l = format.ShortDate
	}
	return format.Date(t, l)
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		out[key] = pairs[i+1]
	}
	return out, nil
}
