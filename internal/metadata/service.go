package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"czstreams/internal/domain"
	"czstreams/internal/metadata/cinemeta"
)

var (
	ErrUnsupportedType = cinemeta.ErrUnsupportedType
	ErrNotFound        = cinemeta.ErrNotFound
)

// MetaSource provides canonical metadata for a Stremio (type, id) pair.
type MetaSource interface {
	Meta(ctx context.Context, mediaType domain.MediaType, id string) (domain.Metadata, error)
}

// NameSource provides localized titles for an IMDb id.
type NameSource interface {
	Enabled() bool
	Language() string
	LocalizedNames(ctx context.Context, imdbID, lang string) (map[string]string, error)
}

type Service struct {
	meta   MetaSource
	names  NameSource
	cache  *Cache
	retry  RetryConfig
	logger *slog.Logger
}

type Option func(*Service)

// WithNames adds a localized-name source queried next to the meta source.
func WithNames(names NameSource) Option {
	return func(s *Service) {
		s.names = names
	}
}

func WithCache(cache *Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithRetry(cfg RetryConfig) Option {
	return func(s *Service) {
		s.retry = cfg
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(meta MetaSource, opts ...Option) *Service {
	s := &Service{
		meta:   meta,
		retry:  DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns the metadata for a Stremio (type, id) pair with names
// merged from every source: "en" from the meta source, then the localized
// source's names on top.
func (s *Service) Lookup(ctx context.Context, mediaType domain.MediaType, id string) (domain.Metadata, error) {
	if mediaType != domain.MediaTypeMovie && mediaType != domain.MediaTypeSeries {
		return domain.Metadata{}, fmt.Errorf("lookup %s: %w", mediaType, ErrUnsupportedType)
	}
	imdbID, _, err := cinemeta.ParseID(mediaType, id)
	if err != nil {
		return domain.Metadata{}, err
	}

	key := cacheKey(mediaType, id)
	if s.cache != nil {
		if meta, ok := s.cache.Get(ctx, key); ok {
			return meta, nil
		}
	}

	start := time.Now()
	var (
		wg       sync.WaitGroup
		meta     domain.Metadata
		metaErr  error
		names    map[string]string
		namesErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		meta, metaErr = withRetry(ctx, s.retry, func() (domain.Metadata, error) {
			return s.meta.Meta(ctx, mediaType, id)
		})
	}()
	if s.names != nil && s.names.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			names, namesErr = withRetry(ctx, s.retry, func() (map[string]string, error) {
				return s.names.LocalizedNames(ctx, imdbID, s.names.Language())
			})
		}()
	}
	wg.Wait()

	if metaErr != nil {
		return domain.Metadata{}, metaErr
	}
	if namesErr != nil && !errors.Is(namesErr, context.Canceled) {
		s.logger.Warn("localized names lookup failed",
			slog.String("id", imdbID),
			slog.String("error", namesErr.Error()),
		)
	}

	merged := make(map[string]string, len(names)+1)
	if meta.Name != "" {
		merged["en"] = meta.Name
	}
	for lang, name := range names {
		if name != "" {
			merged[lang] = name
		}
	}
	meta.Names = merged

	s.logger.Debug("metadata resolved",
		slog.String("type", string(mediaType)),
		slog.String("id", id),
		slog.Int("names", len(merged)),
		slog.Int64("durationMs", time.Since(start).Milliseconds()),
	)
	if s.cache != nil {
		s.cache.Set(ctx, key, meta)
	}
	return meta, nil
}

// Ping reports whether the cache backend is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Ping(ctx)
}
