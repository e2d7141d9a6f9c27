// Package auth implements Google sign-in and browser sessions.
//
// Sign-in uses the OAuth 2.0 authorization code flow with PKCE. The OAuth
// state and verifier travel in a short-lived signed cookie; once the code
// is exchanged, the Google tokens are stored server-side with the session
// and the browser only holds a signed session id.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/tubedeck/internal/services"
	"github.com/HerbHall/tubedeck/pkg/plugin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.PageProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

const secretSettingKey = "auth.session_secret"

// Module implements the auth plugin.
type Module struct {
	logger   *zap.Logger
	bus      plugin.EventBus
	users    services.UserRepository
	sessions services.SessionRepository

	oauth      *oauth2.Config
	endpoint   *oauth2.Endpoint
	httpClient *http.Client
	profiles   ProfileFetcher
	now        func() time.Time

	secret          []byte
	cookieName      string
	secureCookies   bool
	sessionTTL      time.Duration
	cleanupInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Module.
type Option func(*Module)

// WithProfileFetcher replaces the Google userinfo lookup.
func WithProfileFetcher(p ProfileFetcher) Option {
	return func(m *Module) { m.profiles = p }
}

// WithEndpoint replaces the Google OAuth endpoint.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(m *Module) { m.endpoint = &e }
}

// WithHTTPClient sets the client used for token exchange and refresh.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Module) { m.httpClient = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// New creates the auth module.
func New(opts ...Option) *Module {
	m := &Module{
		profiles: NewGoogleProfiles(""),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "auth",
		Version:     "0.1.0",
		Description: "Google sign-in and browser sessions",
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	cfg := deps.Config

	if err := services.MigrateAuth(ctx, deps.Store); err != nil {
		return err
	}
	m.users = services.NewSQLiteUserRepository(deps.Store.DB())
	m.sessions = services.NewSQLiteSessionRepository(deps.Store.DB())

	secret, err := m.loadSecret(ctx, cfg.GetString("session.secret"), deps.Store)
	if err != nil {
		return err
	}
	m.secret = []byte(secret)

	m.cookieName = cfg.GetString("session.cookie_name")
	m.secureCookies = cfg.GetBool("session.secure")
	m.sessionTTL = cfg.GetDuration("session.ttl")
	m.cleanupInterval = cfg.GetDuration("session.cleanup_interval")

	redirect := cfg.GetString("oauth.redirect_url")
	if redirect == "" {
		redirect = strings.TrimRight(cfg.GetString("server.base_url"), "/") + "/auth/callback"
	}
	endpoint := google.Endpoint
	if m.endpoint != nil {
		endpoint = *m.endpoint
	}
	m.oauth = &oauth2.Config{
		ClientID:     cfg.GetString("oauth.client_id"),
		ClientSecret: cfg.GetString("oauth.client_secret"),
		RedirectURL:  redirect,
		Scopes:       cfg.GetStringSlice("oauth.scopes"),
		Endpoint:     endpoint,
	}
	if m.oauth.ClientID == "" {
		m.logger.Warn("oauth.client_id is not set; sign-in is unavailable")
	}

	m.logger.Info("auth module initialized",
		zap.String("redirect_url", redirect),
		zap.Duration("session_ttl", m.sessionTTL),
	)
	return nil
}

// loadSecret returns the configured signing secret, or a generated one
// persisted in settings so sessions survive restarts.
func (m *Module) loadSecret(ctx context.Context, configured string, store plugin.Store) (string, error) {
	if configured != "" {
		return configured, nil
	}
	settings, err := services.NewSQLiteSettingsRepository(ctx, store)
	if err != nil {
		return "", err
	}
	secret, err := settings.GetOrCreate(ctx, secretSettingKey, generateSecret)
	if err != nil {
		return "", fmt.Errorf("session secret: %w", err)
	}
	return secret, nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (m *Module) Start(ctx context.Context) error {
	if m.cleanupInterval <= 0 {
		return nil
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.cleanupLoop(ctx)
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	return nil
}

func (m *Module) cleanupLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()
	for {
		if _, err := m.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("expired session cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PurgeExpired deletes sessions past their lifetime.
func (m *Module) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("purged expired sessions", zap.Int64("count", n))
	}
	return n, nil
}

// Health reports whether sign-in is configured.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	details := map[string]string{"oauth": "configured"}
	status := "ok"
	if m.oauth == nil || m.oauth.ClientID == "" {
		details["oauth"] = "missing client id"
		status = "degraded"
	}
	if m.users != nil {
		if n, err := m.users.Count(ctx); err == nil {
			details["users"] = strconv.Itoa(n)
		}
	}
	return plugin.HealthStatus{Status: status, Details: details}
}

// RegisterRoutes mounts the browser sign-in flow.
func (m *Module) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/login", m.handleLogin)
	mux.HandleFunc("GET /auth/callback", m.handleCallback)
	mux.HandleFunc("POST /auth/logout", m.handleLogout)
}

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/session", Handler: m.handleSession},
	}
}

func (m *Module) oauthContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}
