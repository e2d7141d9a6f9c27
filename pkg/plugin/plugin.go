// Package plugin defines the contract every TubeDeck module implements and
// the shared types (routes, events, storage) modules exchange.
package plugin

import (
	"context"
	"net/http"

	"github.com/HerbHall/tubedeck/internal/config"
	"go.uber.org/zap"
)

// API versions understood by the registry.
const (
	APIVersionMin     = 1
	APIVersionCurrent = 1
)

// PluginInfo describes a plugin to the registry.
type PluginInfo struct {
	Name         string
	Version      string
	Description  string
	Dependencies []string
	Required     bool
	APIVersion   int
}

// Dependencies are the shared services handed to a plugin during Init.
type Dependencies struct {
	Config config.Config
	Logger *zap.Logger
	Store  Store
	Bus    EventBus
}

// Plugin defines the interface that all TubeDeck modules must implement.
type Plugin interface {
	// Info returns static metadata used for validation and ordering.
	Info() PluginInfo

	// Init wires the plugin to its dependencies. Called once, in dependency order.
	Init(ctx context.Context, deps Dependencies) error

	// Start begins background work, if any.
	Start(ctx context.Context) error

	// Stop releases resources. Called in reverse order.
	Stop(ctx context.Context) error
}

// Route represents an HTTP route exposed by a plugin under /api/v1/{plugin}.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}
