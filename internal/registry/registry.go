// Package registry manages plugin lifecycle: registration, dependency
// validation, ordered init/start, and reverse-order stop.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/HerbHall/tubedeck/pkg/plugin"
	"go.uber.org/zap"
)

// Registry holds registered plugins and their resolved order.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	order    []string
	disabled map[string]string // name -> reason
	unsubs   []func()
	logger   *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		disabled: make(map[string]string),
		logger:   logger,
	}
}

// Register adds p. Names must be unique and non-empty.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Info().Name
	if name == "" {
		return errors.New("plugin name is empty")
	}
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}

	r.plugins[name] = p
	r.order = append(r.order, name)
	r.logger.Info("plugin registered", zap.String("name", name), zap.String("version", p.Info().Version))
	return nil
}

// Disable marks a plugin as disabled before validation (e.g. by config).
func (r *Registry) Disable(name, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[name]; ok {
		r.disabled[name] = reason
	}
}

// Validate checks API versions and dependencies, disables optional plugins
// that cannot run, and sorts the registry topologically. A required plugin
// that cannot run is an error.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		info := r.plugins[name].Info()
		if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
			reason := fmt.Sprintf("unsupported API version %d (supported %d-%d)",
				info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
			if err := r.disableLocked(name, reason); err != nil {
				return err
			}
		}
	}

	// Cascade: repeat until no new plugin gets disabled.
	for changed := true; changed; {
		changed = false
		for _, name := range r.order {
			if _, off := r.disabled[name]; off {
				continue
			}
			for _, dep := range r.plugins[name].Info().Dependencies {
				_, exists := r.plugins[dep]
				_, depOff := r.disabled[dep]
				if exists && !depOff {
					continue
				}
				reason := fmt.Sprintf("dependency %q unavailable", dep)
				if err := r.disableLocked(name, reason); err != nil {
					return err
				}
				changed = true
				break
			}
		}
	}

	sorted, err := r.topoSortLocked()
	if err != nil {
		return err
	}
	r.order = sorted
	return nil
}

func (r *Registry) disableLocked(name, reason string) error {
	if r.plugins[name].Info().Required {
		return fmt.Errorf("required plugin %q cannot run: %s", name, reason)
	}
	r.disabled[name] = reason
	r.logger.Warn("plugin disabled", zap.String("name", name), zap.String("reason", reason))
	return nil
}

// topoSortLocked orders plugins so dependencies come first. Registration
// order breaks ties.
func (r *Registry) topoSortLocked() ([]string, error) {
	index := make(map[string]int, len(r.order))
	for i, name := range r.order {
		index[name] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.order))
	sorted := make([]string, 0, len(r.order))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("dependency cycle detected at plugin %q", name)
		case done:
			return nil
		}
		state[name] = visiting
		deps := append([]string(nil), r.plugins[name].Info().Dependencies...)
		sort.Slice(deps, func(i, j int) bool { return index[deps[i]] < index[deps[j]] })
		for _, dep := range deps {
			if _, ok := r.plugins[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		sorted = append(sorted, name)
		return nil
	}

	for _, name := range r.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// IsDisabled reports whether name was disabled during validation or init.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, off := r.disabled[name]
	return off
}

// InitAll initializes enabled plugins in order. deps builds the
// dependencies for a plugin by name. An optional plugin whose Init fails
// is disabled; a required one aborts startup.
func (r *Registry) InitAll(ctx context.Context, deps func(name string) plugin.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			r.logger.Info("plugin disabled, skipping", zap.String("name", name))
			continue
		}
		p := r.plugins[name]
		d := deps(name)

		r.logger.Info("initializing plugin", zap.String("name", name))
		if err := p.Init(ctx, d); err != nil {
			if p.Info().Required {
				return fmt.Errorf("failed to initialize plugin %q: %w", name, err)
			}
			r.disabled[name] = "init failed: " + err.Error()
			r.logger.Warn("optional plugin init failed, disabling", zap.String("name", name), zap.Error(err))
			continue
		}

		if sub, ok := p.(plugin.EventSubscriber); ok && d.Bus != nil {
			for _, s := range sub.Subscriptions() {
				r.unsubs = append(r.unsubs, d.Bus.Subscribe(s.Topic, s.Handler))
			}
		}
	}
	return nil
}

// StartAll starts enabled plugins in order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := r.plugins[name].Start(ctx); err != nil {
			return fmt.Errorf("failed to start plugin %q: %w", name, err)
		}
	}
	return nil
}

// StopAll stops enabled plugins in reverse order and drops subscriptions.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil

	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if _, off := r.disabled[name]; off {
			continue
		}
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := r.plugins[name].Stop(ctx); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
		}
	}
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// All returns every registered plugin in resolved order.
func (r *Registry) All() []plugin.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]plugin.Plugin, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}
	return result
}

// AllRoutes returns API routes from enabled HTTPProvider plugins, keyed by
// plugin name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		if hp, ok := r.plugins[name].(plugin.HTTPProvider); ok {
			if pr := hp.Routes(); len(pr) > 0 {
				routes[name] = pr
			}
		}
	}
	return routes
}

// PageProviders returns enabled plugins that register their own routes.
func (r *Registry) PageProviders() []plugin.PageProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []plugin.PageProvider
	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		if pp, ok := r.plugins[name].(plugin.PageProvider); ok {
			out = append(out, pp)
		}
	}
	return out
}

// Health collects health from enabled HealthChecker plugins.
func (r *Registry) Health(ctx context.Context) map[string]plugin.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]plugin.HealthStatus)
	for _, name := range r.order {
		if reason, off := r.disabled[name]; off {
			out[name] = plugin.HealthStatus{Status: "disabled", Details: map[string]string{"reason": reason}}
			continue
		}
		if hc, ok := r.plugins[name].(plugin.HealthChecker); ok {
			out[name] = hc.Health(ctx)
		}
	}
	return out
}
