package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/HerbHall/tubedeck/internal/metrics"
	"github.com/HerbHall/tubedeck/internal/registry"
	"github.com/HerbHall/tubedeck/internal/version"
	"go.uber.org/zap"
)

// SessionGate resolves the browser session of a request. The auth plugin
// implements it.
type SessionGate interface {
	// LoadSession attaches the signed-in identity (if any) to the request.
	LoadSession(next http.Handler) http.Handler
	// Authenticated reports whether LoadSession found a valid session.
	Authenticated(r *http.Request) bool
}

// publicAPI lists the API paths served without a session.
var publicAPI = map[string]bool{
	"/api/v1/health": true,
}

// Server is the main TubeDeck server.
type Server struct {
	httpServer *http.Server
	registry   *registry.Registry
	logger     *zap.Logger
	mux        *http.ServeMux
	metrics    *metrics.Metrics
	sessions   SessionGate
	limiter    *limiter
	handler    http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics and serves GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithSessions loads sessions for every request and requires one for
// non-public API routes.
func WithSessions(g SessionGate) Option {
	return func(s *Server) { s.sessions = g }
}

// WithRateLimit limits API and form-post requests per client address.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = newLimiter(rps, burst)
		}
	}
}

// WithTimeouts overrides the read and write timeouts.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.httpServer.ReadTimeout = read
		}
		if write > 0 {
			s.httpServer.WriteTimeout = write
		}
	}
}

// New creates a new Server instance.
func New(addr string, reg *registry.Registry, logger *zap.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		registry: reg,
		logger:   logger,
		mux:      mux,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerCoreRoutes()
	s.mountPluginRoutes()
	s.mountPageRoutes()

	s.handler = s.middleware(mux)
	s.httpServer.Handler = s.handler
	return s
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
	s.mux.HandleFunc("/api/", s.handleAPINotFound)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// mountPluginRoutes registers all plugin routes under /api/v1/{plugin}/.
func (s *Server) mountPluginRoutes() {
	allRoutes := s.registry.AllRoutes()
	for pluginName, routes := range allRoutes {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, pluginName, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("plugin", pluginName),
				zap.String("pattern", pattern),
			)
		}
	}
}

// mountPageRoutes lets page providers register routes outside /api/v1.
func (s *Server) mountPageRoutes() {
	for _, p := range s.registry.PageProviders() {
		p.RegisterRoutes(s.mux)
	}
}

// middleware wraps the mux, outermost first: recover, request log,
// metrics, rate limit, session loading, API session gate.
func (s *Server) middleware(mux *http.ServeMux) http.Handler {
	var h http.Handler = recordPattern(mux)
	h = s.requireSession(h)
	if s.sessions != nil {
		h = s.sessions.LoadSession(h)
	}
	if s.limiter != nil {
		h = s.rateLimit(h)
	}
	h = s.instrument(h)
	h = s.logRequests(h)
	return s.recoverPanics(h)
}

// requireSession rejects non-public API requests that carry no session.
func (s *Server) requireSession(next http.Handler) http.Handler {
	if s.sessions == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && !publicAPI[r.URL.Path] && !s.sessions.Authenticated(r) {
			Unauthorized(w, "sign in required", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server and plugin health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	plugins := s.registry.Health(r.Context())
	status := "ok"
	for _, h := range plugins {
		if h.Status != "ok" && h.Status != "disabled" {
			status = "degraded"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-TubeDeck-Version", version.Short())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"service": "tubedeck",
		"version": version.Map(),
		"plugins": plugins,
	})
}

// handlePlugins returns the list of registered plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	plugins := s.registry.All()
	type pluginResponse struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
		Enabled     bool   `json:"enabled"`
	}
	info := make([]pluginResponse, 0, len(plugins))
	for _, p := range plugins {
		pi := p.Info()
		info = append(info, pluginResponse{
			Name:        pi.Name,
			Version:     pi.Version,
			Description: pi.Description,
			Enabled:     !s.registry.IsDisabled(pi.Name),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-TubeDeck-Version", version.Short())
	_ = json.NewEncoder(w).Encode(info)
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	NotFound(w, "no such endpoint", r.URL.Path)
}
