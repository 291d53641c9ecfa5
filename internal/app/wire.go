package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"czstreams/internal/history"
	"czstreams/internal/metadata"
	"czstreams/internal/metadata/cinemeta"
	"czstreams/internal/metadata/tmdb"
	mongorepo "czstreams/internal/repository/mongo"
	"czstreams/internal/resolver"
	"czstreams/internal/resolvers/common"
	"czstreams/internal/resolvers/fastshare"
	"czstreams/internal/resolvers/hellspy"
	"czstreams/internal/resolvers/prehrajto"
	"czstreams/internal/resolvers/sledujteto"
	"czstreams/internal/resolvers/sosac"
	"czstreams/internal/resolvers/webshare"
	"czstreams/internal/search"
)

// newResolver builds one resolver by its RESOLVERS key.
func newResolver(key string, cfg Config, logger *slog.Logger) resolver.Resolver {
	client := common.NewHTTPClient(cfg.ResolverTimeout)
	switch key {
	case "prehrajto":
		return prehrajto.New(prehrajto.Config{Client: client, UserAgent: cfg.UserAgent, AuthTTL: cfg.AuthCacheTTL, Logger: logger})
	case "webshare":
		return webshare.New(webshare.Config{Client: client, UserAgent: cfg.UserAgent, AuthTTL: cfg.AuthCacheTTL, Logger: logger})
	case "hellspy":
		return hellspy.New(hellspy.Config{Client: client, UserAgent: cfg.UserAgent, Logger: logger})
	case "sosac":
		return sosac.New(sosac.Config{Client: client, UserAgent: cfg.UserAgent, Logger: logger})
	case "fastshare":
		return fastshare.New(fastshare.Config{Client: client, UserAgent: cfg.UserAgent, Logger: logger, Enabled: cfg.EnableFastshare})
	case "sledujteto":
		return sledujteto.New(sledujteto.Config{Client: client, UserAgent: cfg.UserAgent, AuthTTL: cfg.AuthCacheTTL, Logger: logger, Enabled: cfg.EnableSledujteto})
	default:
		return nil
	}
}

// BuildRegistry registers the resolvers named in cfg.Resolvers, in order,
// and runs their Init gates.
func BuildRegistry(cfg Config, logger *slog.Logger) *resolver.Registry {
	items := make([]resolver.Resolver, 0, len(cfg.Resolvers))
	for _, key := range cfg.Resolvers {
		item := newResolver(strings.ToLower(strings.TrimSpace(key)), cfg, logger)
		if item == nil {
			logger.Warn("unknown resolver in configuration", slog.String("resolver", key))
			continue
		}
		items = append(items, item)
	}
	registry := resolver.NewRegistry(items, resolver.WithLogger(logger))
	registry.Init()
	return registry
}

func BuildEngine(cfg Config, logger *slog.Logger) *search.Engine {
	return search.NewEngine(
		search.WithCap(cfg.SearchCap),
		search.WithMaxConcurrency(cfg.SearchMaxConcurrency),
		search.WithLogger(logger),
	)
}

// connectRedis returns nil when no URL is set or the server does not answer.
func connectRedis(ctx context.Context, rawURL string, logger *slog.Logger) *redis.Client {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

// BuildMetadata wires Cinemeta, TMDB and the metadata cache. The returned
// cleanup closes the shared Redis client, if any.
func BuildMetadata(ctx context.Context, cfg Config, logger *slog.Logger) (*metadata.Service, func()) {
	redisClient := connectRedis(ctx, cfg.RedisURL, logger)
	cleanup := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	meta := cinemeta.NewClient(cinemeta.Config{
		BaseURL: cfg.CinemetaBaseURL,
		Client:  common.NewHTTPClient(10 * time.Second),
	})
	opts := []metadata.Option{metadata.WithLogger(logger)}

	if cfg.TMDBAPIKey == "" {
		logger.Info("tmdb api key not configured, localized names disabled")
	} else {
		names := tmdb.NewClient(tmdb.Config{
			APIKey:   cfg.TMDBAPIKey,
			BaseURL:  cfg.TMDBBaseURL,
			Language: cfg.TMDBLanguage,
			Client:   common.NewHTTPClient(10 * time.Second),
			Redis:    redisClient,
			CacheTTL: cfg.TMDBCacheTTL,
			Logger:   logger,
		})
		opts = append(opts, metadata.WithNames(names))
		logger.Info("tmdb client initialized", slog.String("language", names.Language()))
	}

	if cfg.MetaCacheDisabled {
		logger.Info("metadata cache disabled")
	} else {
		var backend metadata.CacheBackend
		if redisClient != nil {
			backend = metadata.NewRedisCacheBackend(redisClient)
		}
		opts = append(opts, metadata.WithCache(metadata.NewCache(cfg.MetaCacheTTL, backend, logger)))
	}
	return metadata.NewService(meta, opts...), cleanup
}

// BuildHistory connects the lookup history store. Without MONGO_URI, or when
// Mongo is unreachable, the recorder is a no-op.
func BuildHistory(ctx context.Context, cfg Config, logger *slog.Logger) (*history.Recorder, func(context.Context)) {
	noop := func(context.Context) {}
	if cfg.MongoURI == "" {
		logger.Info("lookup history disabled")
		return history.NewRecorder(nil, logger), noop
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err == nil {
		err = client.Ping(connectCtx, nil)
	}
	if err != nil {
		logger.Warn("mongo unavailable, lookup history disabled", slog.String("error", err.Error()))
		if client != nil {
			_ = client.Disconnect(context.Background())
		}
		return history.NewRecorder(nil, logger), noop
	}

	repo := mongorepo.NewLookupRepository(client, cfg.MongoDatabase, "")
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}
	logger.Info("lookup history enabled", slog.String("database", cfg.MongoDatabase))

	disconnect := func(ctx context.Context) {
		if err := client.Disconnect(ctx); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}
	return history.NewRecorder(repo, logger), disconnect
}
