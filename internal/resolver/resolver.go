package resolver

import (
	"context"
	"errors"

	"czstreams/internal/domain"
)

var (
	ErrUnknownResolver = errors.New("unknown resolver")
	ErrNoVideo         = errors.New("no playable video found")
)

// Resolver is one content source. Implementations must be safe for
// concurrent use: a single request issues many calls in parallel.
type Resolver interface {
	Name() string
	// Init reports whether the resolver can work at all. Resolvers returning
	// false are left out of the registry regardless of configuration.
	Init() bool
	ConfigFields() []domain.ConfigField
	// ValidateConfig reports whether the resolver is usable with cfg.
	// Ordinary invalid input yields (false, nil).
	ValidateConfig(ctx context.Context, cfg domain.Configuration) (bool, error)
	Search(ctx context.Context, term string, cfg domain.Configuration) ([]domain.SearchHit, error)
	Resolve(ctx context.Context, resolverID string, cfg domain.Configuration) (domain.StreamDetails, error)
}

// Cleaner is implemented by resolvers that own cached state.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// Debugger exposes a diagnostics snapshot of resolver-internal state.
type Debugger interface {
	Debug() any
}
