package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/iter"

	"czstreams/internal/domain"
	"czstreams/internal/resolver"
)

// ActiveResolvers returns the resolvers that accept cfg, in input order.
// Validation runs concurrently. An error or panic counts as rejection.
func ActiveResolvers(ctx context.Context, resolvers []resolver.Resolver, cfg domain.Configuration) []resolver.Resolver {
	return defaultEngine().ActiveResolvers(ctx, resolvers, cfg)
}

func (e *Engine) ActiveResolvers(ctx context.Context, resolvers []resolver.Resolver, cfg domain.Configuration) []resolver.Resolver {
	if len(resolvers) == 0 {
		return nil
	}
	valid := iter.Map(resolvers, func(item *resolver.Resolver) bool {
		return e.validate(ctx, *item, cfg)
	})

	active := make([]resolver.Resolver, 0, len(resolvers))
	for i, ok := range valid {
		if ok {
			active = append(active, resolvers[i])
		}
	}
	return active
}

func (e *Engine) validate(ctx context.Context, item resolver.Resolver, cfg domain.Configuration) (ok bool) {
	if item == nil {
		return false
	}
	name := item.Name()
	startedAt := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("validate panicked: %v", recovered)
			e.health.record(name, opValidate, err, time.Since(startedAt))
			e.logger.Error("resolver validation panicked", slog.String("resolver", name), slog.Any("panic", recovered))
			ok = false
		}
	}()

	valid, err := item.ValidateConfig(ctx, cfg)
	e.health.record(name, opValidate, err, time.Since(startedAt))
	if err != nil {
		e.logger.Warn("resolver validation failed",
			slog.String("resolver", name),
			slog.String("error", err.Error()),
		)
		return false
	}
	if !valid {
		e.logger.Debug("resolver not configured", slog.String("resolver", name))
	}
	return valid
}
