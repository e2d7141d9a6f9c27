package plugin

import (
	"context"
	"net/http"
)

// HTTPProvider is implemented by plugins that expose REST API routes.
type HTTPProvider interface {
	Routes() []Route
}

// PageProvider is implemented by plugins that serve routes outside the
// /api/v1 prefix (HTML pages, OAuth redirects).
type PageProvider interface {
	RegisterRoutes(mux *http.ServeMux)
}

// HealthChecker is implemented by plugins that report their health status.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// EventSubscriber is implemented by plugins that declare event subscriptions at init.
type EventSubscriber interface {
	Subscriptions() []Subscription
}

// HealthStatus is the result of a plugin health check.
type HealthStatus struct {
	Status  string            `json:"status"`
	Details map[string]string `json:"details,omitempty"`
}

// Subscription binds a handler to an event topic.
type Subscription struct {
	Topic   string
	Handler EventHandler
}
