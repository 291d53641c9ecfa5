package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "czstreams/internal/api/http"
	"czstreams/internal/app"
	"czstreams/internal/metrics"
	"czstreams/internal/telemetry"
)

var version = "dev"

func main() {
	cfg := app.LoadConfig()
	logger, logCloser := app.NewLogger(cfg)
	defer logCloser.Close()
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:    "czstreams",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Logger:         logger,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "czstreams"),
		slog.String("version", version),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("streamTimeout", cfg.StreamTimeout),
		slog.Duration("resolverTimeout", cfg.ResolverTimeout),
		slog.Int("searchCap", cfg.SearchCap),
		slog.Int("searchMaxConcurrency", cfg.SearchMaxConcurrency),
		slog.Any("resolvers", cfg.Resolvers),
		slog.Bool("mediaRedirect", cfg.MediaRedirect && cfg.PublicURL != ""),
		slog.Bool("hasRedis", cfg.RedisURL != ""),
		slog.Bool("hasTMDBKey", cfg.TMDBAPIKey != ""),
		slog.Bool("hasMongo", cfg.MongoURI != ""),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := app.BuildRegistry(cfg, logger)
	metaService, closeMeta := app.BuildMetadata(rootCtx, cfg, logger)
	defer closeMeta()
	recorder, closeHistory := app.BuildHistory(rootCtx, cfg, logger)
	engine := app.BuildEngine(cfg, logger)

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithVersion(version),
		apihttp.WithHistory(recorder),
		apihttp.WithStreamTimeout(cfg.StreamTimeout),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	if cfg.MediaRedirect {
		serverOpts = append(serverOpts, apihttp.WithMediaRedirect(cfg.PublicURL))
	}

	handler := apihttp.NewServer(registry, engine, metaService, serverOpts...).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Stream lookups run up to StreamTimeout; leave headroom for encoding.
		WriteTimeout: cfg.StreamTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("czstreams addon started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Any("activeResolvers", registry.Names()),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	closeHistory(shutdownCtx)
	logger.Info("czstreams addon stopped")
}
