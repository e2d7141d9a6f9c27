// Package config wraps viper behind a small read-only interface so plugins
// never depend on viper directly.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the read-only view of configuration handed to plugins.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
	IsSet(key string) bool
	Sub(key string) Config
	Unmarshal(target any) error
}

// Compile-time interface guard.
var _ Config = (*ViperConfig)(nil)

// ViperConfig implements Config on top of a *viper.Viper.
type ViperConfig struct {
	v *viper.Viper
}

// New wraps v. A nil v behaves as an empty configuration.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

// GetString returns the value at key as a string.
func (c *ViperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns the value at key as an int.
func (c *ViperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool returns the value at key as a bool.
func (c *ViperConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetDuration parses the value at key as a duration ("5s", "2h").
func (c *ViperConfig) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

// GetStringSlice returns the value at key as a string slice.
func (c *ViperConfig) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// IsSet reports whether key has a value from any source.
func (c *ViperConfig) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// Unmarshal decodes the whole tree into target using mapstructure tags.
func (c *ViperConfig) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

// Sub returns the subtree at key. A missing subtree yields an empty Config,
// never nil.
func (c *ViperConfig) Sub(key string) Config {
	sub := c.v.Sub(key)
	if sub == nil {
		return New(nil)
	}
	return New(sub)
}

// Viper exposes the underlying viper instance for the entrypoint.
func (c *ViperConfig) Viper() *viper.Viper {
	return c.v
}

// Load reads configuration from path (optional), applies TUBEDECK_* env
// overrides, and fills in defaults.
func Load(path string) (*ViperConfig, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("TUBEDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("tubedeck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tubedeck")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return New(v), nil
}

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "tubedeck.db")

	v.SetDefault("oauth.scopes", []string{
		"openid",
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/userinfo.profile",
		"https://www.googleapis.com/auth/youtube.readonly",
	})

	v.SetDefault("session.ttl", 7*24*time.Hour)
	v.SetDefault("session.cookie_name", "tubedeck_session")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.cleanup_interval", time.Hour)

	v.SetDefault("youtube.page_size", 12)
	v.SetDefault("youtube.search_max_pages", 10)

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_entries", 1000)

	v.SetDefault("views.max_sessions", 500)
	v.SetDefault("views.ttl", 2*time.Hour)
	v.SetDefault("views.max_playlists", 20)

	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("dashboard.skeleton_cards", 6)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	for _, name := range []string{"auth", "library", "dashboard"} {
		v.SetDefault("plugins."+name+".enabled", true)
	}
}
