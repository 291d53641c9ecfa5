package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"czstreams/internal/domain"
	"czstreams/internal/metrics"
	"czstreams/internal/resolver"
)

const (
	// DefaultCap is how many scored hits one (resolver, term) search keeps.
	DefaultCap = 7
	// DefaultMaxConcurrency limits in-flight resolver calls per lookup.
	DefaultMaxConcurrency = 16
)

// Engine turns metadata into a ranked list of playable streams by querying
// resolvers concurrently. An Engine is safe for concurrent use and holds no
// per-request state.
type Engine struct {
	cap            int
	maxConcurrency int64
	scorer         Scorer
	logger         *slog.Logger
	tracer         trace.Tracer
	health         *healthBook
}

type Option func(*Engine)

func WithCap(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cap = n
		}
	}
}

func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = int64(n)
		}
	}
}

func WithScorer(scorer Scorer) Option {
	return func(e *Engine) {
		if scorer != nil {
			e.scorer = scorer
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	engine := &Engine{
		cap:            DefaultCap,
		maxConcurrency: DefaultMaxConcurrency,
		scorer:         Score,
		logger:         slog.Default(),
		tracer:         otel.Tracer("czstreams/search"),
		health:         newHealthBook(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func defaultEngine() *Engine {
	return NewEngine()
}

// Lookup is the outcome of one engine run.
type Lookup struct {
	Terms     []string
	Resolvers []string
	Streams   []domain.ResolvedStream
	Elapsed   time.Duration
}

// GetTopItems runs a lookup with default settings.
func GetTopItems(ctx context.Context, meta domain.Metadata, resolvers []resolver.Resolver, cfg domain.Configuration) []domain.ResolvedStream {
	return defaultEngine().TopItems(ctx, meta, resolvers, cfg)
}

// TopItems returns the resolved streams for meta, best first. It never fails:
// resolvers that error out simply contribute nothing.
func (e *Engine) TopItems(ctx context.Context, meta domain.Metadata, resolvers []resolver.Resolver, cfg domain.Configuration) []domain.ResolvedStream {
	return e.Run(ctx, meta, resolvers, cfg).Streams
}

func (e *Engine) Run(ctx context.Context, meta domain.Metadata, resolvers []resolver.Resolver, cfg domain.Configuration) Lookup {
	ctx, span := e.tracer.Start(ctx, "search.lookup", trace.WithAttributes(
		attribute.String("meta.id", meta.ID),
		attribute.String("meta.type", string(meta.Type)),
	))
	defer span.End()

	startedAt := time.Now()
	active := e.ActiveResolvers(ctx, resolvers, cfg)
	terms := SearchTerms(meta)
	metrics.ActiveResolvers.Observe(float64(len(active)))

	lookup := Lookup{
		Terms:     terms,
		Resolvers: resolverNames(active),
		Streams:   []domain.ResolvedStream{},
	}
	span.SetAttributes(
		attribute.Int("resolvers.active", len(active)),
		attribute.Int("terms", len(terms)),
	)
	if len(active) == 0 || len(terms) == 0 {
		e.logger.Info("stream lookup skipped",
			slog.String("metaId", meta.ID),
			slog.Int("activeResolvers", len(active)),
			slog.Int("terms", len(terms)),
		)
		lookup.Elapsed = time.Since(startedAt)
		metrics.StreamsReturned.Observe(0)
		metrics.LookupDuration.Observe(lookup.Elapsed.Seconds())
		return lookup
	}

	hits := Dedupe(e.searchAll(ctx, meta, active, terms, cfg))
	streams := e.resolveAll(ctx, hits, active, cfg)
	Rank(streams)

	lookup.Streams = streams
	lookup.Elapsed = time.Since(startedAt)
	metrics.StreamsReturned.Observe(float64(len(streams)))
	metrics.LookupDuration.Observe(lookup.Elapsed.Seconds())
	span.SetAttributes(attribute.Int("streams", len(streams)))

	e.logger.Info("stream lookup finished",
		slog.String("metaId", meta.ID),
		slog.Any("resolvers", lookup.Resolvers),
		slog.Int("terms", len(terms)),
		slog.Int("candidates", len(hits)),
		slog.Int("streams", len(streams)),
		slog.Int64("durationMs", lookup.Elapsed.Milliseconds()),
	)
	return lookup
}

type searchTask struct {
	resolver resolver.Resolver
	term     string
}

// searchAll queries every (resolver, term) pair. Output order follows the
// pairs, not completion.
func (e *Engine) searchAll(ctx context.Context, meta domain.Metadata, active []resolver.Resolver, terms []string, cfg domain.Configuration) []domain.ScoredHit {
	tasks := make([]searchTask, 0, len(active)*len(terms))
	for _, item := range active {
		for _, term := range terms {
			tasks = append(tasks, searchTask{resolver: item, term: term})
		}
	}

	slots := make([][]domain.ScoredHit, len(tasks))
	sem := semaphore.NewWeighted(e.maxConcurrency)
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(index int, task searchTask) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				e.logger.Warn("resolver search not started",
					slog.String("resolver", task.resolver.Name()),
					slog.String("term", task.term),
					slog.String("error", err.Error()),
				)
				return
			}
			defer sem.Release(1)

			hits, err := e.searchOne(ctx, meta, task, cfg)
			if err != nil {
				e.logger.Warn("resolver search failed",
					slog.String("resolver", task.resolver.Name()),
					slog.String("term", task.term),
					slog.String("error", err.Error()),
				)
				return
			}
			slots[index] = hits
		}(i, task)
	}
	wg.Wait()

	var out []domain.ScoredHit
	for _, slot := range slots {
		out = append(out, slot...)
	}
	return out
}

func (e *Engine) searchOne(ctx context.Context, meta domain.Metadata, task searchTask, cfg domain.Configuration) (hits []domain.ScoredHit, err error) {
	name := task.resolver.Name()
	ctx, span := e.tracer.Start(ctx, "resolver.search", trace.WithAttributes(
		attribute.String("resolver", name),
		attribute.String("term", task.term),
	))
	defer span.End()

	startedAt := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("search panicked: %v", recovered)
		}
		e.health.record(name, opSearch, err, time.Since(startedAt))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	raw, err := task.resolver.Search(ctx, task.term, cfg)
	if err != nil {
		return nil, err
	}
	hits = e.scoreHits(meta, name, raw)
	span.SetAttributes(attribute.Int("hits", len(raw)), attribute.Int("kept", len(hits)))
	return hits, nil
}

// scoreHits scores raw hits, drops non-positive scores, sorts best first
// keeping input order on ties and caps the list.
func (e *Engine) scoreHits(meta domain.Metadata, resolverName string, raw []domain.SearchHit) []domain.ScoredHit {
	scored := make([]domain.ScoredHit, 0, len(raw))
	for _, hit := range raw {
		score := e.scorer(meta, hit)
		if !(score > 0) {
			continue
		}
		scored = append(scored, domain.ScoredHit{
			SearchHit:    hit,
			ResolverName: resolverName,
			Score:        score,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > e.cap {
		scored = scored[:e.cap]
	}
	return scored
}

// Dedupe keeps the first hit per (resolver, resolverId).
func Dedupe(hits []domain.ScoredHit) []domain.ScoredHit {
	out := make([]domain.ScoredHit, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		key := hit.ResolverName + "\x00" + hit.ResolverID
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, hit)
	}
	return out
}

func (e *Engine) resolveAll(ctx context.Context, hits []domain.ScoredHit, active []resolver.Resolver, cfg domain.Configuration) []domain.ResolvedStream {
	owners := make(map[string]resolver.Resolver, len(active))
	for _, item := range active {
		owners[item.Name()] = item
	}

	slots := make([]*domain.ResolvedStream, len(hits))
	sem := semaphore.NewWeighted(e.maxConcurrency)
	var wg sync.WaitGroup
	for i, hit := range hits {
		owner, ok := owners[hit.ResolverName]
		if !ok {
			e.logger.Debug("hit dropped, resolver not active",
				slog.String("resolver", hit.ResolverName),
				slog.String("resolverId", hit.ResolverID),
			)
			continue
		}
		wg.Add(1)
		go func(index int, hit domain.ScoredHit, owner resolver.Resolver) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				e.logger.Warn("resolve not started",
					slog.String("resolver", hit.ResolverName),
					slog.String("resolverId", hit.ResolverID),
					slog.String("error", err.Error()),
				)
				return
			}
			defer sem.Release(1)

			stream, err := e.resolveOne(ctx, hit, owner, cfg)
			if err != nil {
				e.logger.Warn("resolve failed",
					slog.String("resolver", hit.ResolverName),
					slog.String("resolverId", hit.ResolverID),
					slog.String("error", err.Error()),
				)
				return
			}
			slots[index] = &stream
		}(i, hit, owner)
	}
	wg.Wait()

	streams := make([]domain.ResolvedStream, 0, len(hits))
	for _, slot := range slots {
		if slot != nil {
			streams = append(streams, *slot)
		}
	}
	return streams
}

func (e *Engine) resolveOne(ctx context.Context, hit domain.ScoredHit, owner resolver.Resolver, cfg domain.Configuration) (stream domain.ResolvedStream, err error) {
	ctx, span := e.tracer.Start(ctx, "resolver.resolve", trace.WithAttributes(
		attribute.String("resolver", hit.ResolverName),
		attribute.String("resolverId", hit.ResolverID),
	))
	defer span.End()

	startedAt := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("resolve panicked: %v", recovered)
		}
		e.health.record(hit.ResolverName, opResolve, err, time.Since(startedAt))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	details, err := owner.Resolve(ctx, hit.ResolverID, cfg)
	if err != nil {
		return domain.ResolvedStream{}, err
	}
	if details.Video == "" {
		return domain.ResolvedStream{}, resolver.ErrNoVideo
	}
	return hit.Merge(details), nil
}

// Rank orders streams by score, best first. Equal scores keep their order.
func Rank(streams []domain.ResolvedStream) {
	sort.SliceStable(streams, func(i, j int) bool {
		return streams[i].Score > streams[j].Score
	})
}

func resolverNames(resolvers []resolver.Resolver) []string {
	out := make([]string, 0, len(resolvers))
	for _, item := range resolvers {
		out = append(out, item.Name())
	}
	return out
}
