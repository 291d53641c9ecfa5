package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"czstreams/internal/domain"
)

// Registry holds the resolvers known to the process. It is built once at
// startup and passed explicitly to whoever needs it.
type Registry struct {
	mu       sync.RWMutex
	all      []Resolver
	active   []Resolver
	byName   map[string]Resolver
	initDone bool
	logger   *slog.Logger
}

type RegistryOption func(*Registry)

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(resolvers []Resolver, opts ...RegistryOption) *Registry {
	registry := &Registry{
		byName: make(map[string]Resolver, len(resolvers)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(registry)
	}
	for _, item := range resolvers {
		if item == nil {
			continue
		}
		name := strings.TrimSpace(item.Name())
		if name == "" {
			continue
		}
		if _, exists := registry.byName[normalizeName(name)]; exists {
			registry.logger.Warn("duplicate resolver ignored", slog.String("resolver", name))
			continue
		}
		registry.byName[normalizeName(name)] = item
		registry.all = append(registry.all, item)
	}
	return registry
}

// Init runs every resolver's Init gate and keeps those that pass.
// Calling it again re-evaluates the gates.
func (r *Registry) Init() []Resolver {
	active := make([]Resolver, 0, len(r.all))
	for _, item := range r.all {
		if !item.Init() {
			r.logger.Info("resolver disabled", slog.String("resolver", item.Name()))
			continue
		}
		active = append(active, item)
	}

	r.mu.Lock()
	r.active = active
	r.initDone = true
	r.mu.Unlock()

	r.logger.Info("resolvers initialized",
		slog.Int("registered", len(r.all)),
		slog.Int("active", len(active)),
		slog.Any("names", names(active)),
	)
	return append([]Resolver(nil), active...)
}

// Resolvers returns the initialized resolvers in registration order.
func (r *Registry) Resolvers() []Resolver {
	r.mu.RLock()
	done := r.initDone
	r.mu.RUnlock()
	if !done {
		r.Init()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Resolver(nil), r.active...)
}

func (r *Registry) Names() []string {
	return names(r.Resolvers())
}

// Lookup finds an initialized resolver by name, case-insensitively.
func (r *Registry) Lookup(name string) (Resolver, error) {
	key := normalizeName(name)
	for _, item := range r.Resolvers() {
		if normalizeName(item.Name()) == key {
			return item, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownResolver, strings.TrimSpace(name))
}

// ConfigFields aggregates the declared fields of all initialized resolvers.
// The first declaration of a key wins.
func (r *Registry) ConfigFields() []domain.ConfigField {
	var fields []domain.ConfigField
	seen := make(map[string]struct{})
	for _, item := range r.Resolvers() {
		for _, field := range item.ConfigFields() {
			if _, exists := seen[field.Key]; exists {
				continue
			}
			seen[field.Key] = struct{}{}
			fields = append(fields, field)
		}
	}
	return fields
}

func (r *Registry) Info() []domain.ResolverInfo {
	resolvers := r.Resolvers()
	items := make([]domain.ResolverInfo, 0, len(resolvers))
	for _, item := range resolvers {
		_, cleanable := item.(Cleaner)
		fields := item.ConfigFields()
		if fields == nil {
			fields = []domain.ConfigField{}
		}
		items = append(items, domain.ResolverInfo{
			Name:         item.Name(),
			ConfigFields: fields,
			Cleanable:    cleanable,
		})
	}
	return items
}

// Cleanup releases cached state on every resolver that has any.
func (r *Registry) Cleanup(ctx context.Context) error {
	var errs []error
	for _, item := range r.Resolvers() {
		cleaner, ok := item.(Cleaner)
		if !ok {
			continue
		}
		if err := cleaner.Cleanup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", item.Name(), err))
			continue
		}
		r.logger.Info("resolver cache cleared", slog.String("resolver", item.Name()))
	}
	return errors.Join(errs...)
}

func (r *Registry) Debug() map[string]any {
	out := make(map[string]any)
	for _, item := range r.Resolvers() {
		if debugger, ok := item.(Debugger); ok {
			out[item.Name()] = debugger.Debug()
		}
	}
	return out
}

func names(resolvers []Resolver) []string {
	out := make([]string, 0, len(resolvers))
	for _, item := range resolvers {
		out = append(out, item.Name())
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
