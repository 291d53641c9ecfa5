package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"czstreams/internal/domain"
	"czstreams/internal/history"
	"czstreams/internal/resolver"
	"czstreams/internal/resolvers/common"
	"czstreams/internal/search"
)

// MetadataService resolves Stremio ids into canonical metadata.
type MetadataService interface {
	Lookup(ctx context.Context, mediaType domain.MediaType, id string) (domain.Metadata, error)
	Ping(ctx context.Context) error
}

// HistoryService records served lookups. *history.Recorder implements it.
type HistoryService interface {
	Enabled() bool
	Record(ctx context.Context, lookup history.Lookup)
	Recent(ctx context.Context, limit int) ([]domain.LookupRecord, error)
}

type Server struct {
	registry      *resolver.Registry
	engine        *search.Engine
	metadata      MetadataService
	history       HistoryService
	logger        *slog.Logger
	version       string
	publicURL     string
	mediaRedirect bool
	streamTimeout time.Duration
	probeClient   *http.Client
	rateLimitRPS  float64
	rateBurst     int
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithHistory(history HistoryService) ServerOption {
	return func(s *Server) {
		s.history = history
	}
}

func WithVersion(version string) ServerOption {
	return func(s *Server) {
		if version != "" {
			s.version = version
		}
	}
}

// WithMediaRedirect makes stream URLs point at this server's /media
// endpoint under publicURL instead of the resolved video.
func WithMediaRedirect(publicURL string) ServerOption {
	return func(s *Server) {
		if publicURL != "" {
			s.publicURL = publicURL
			s.mediaRedirect = true
		}
	}
}

func WithStreamTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.streamTimeout = timeout
		}
	}
}

// WithProbeClient sets the client /test/ uses for its range probe.
func WithProbeClient(client *http.Client) ServerOption {
	return func(s *Server) {
		if client != nil {
			s.probeClient = client
		}
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateLimitRPS = rps
			s.rateBurst = burst
		}
	}
}

func NewServer(registry *resolver.Registry, engine *search.Engine, metadata MetadataService, options ...ServerOption) *Server {
	server := &Server{
		registry:      registry,
		engine:        engine,
		metadata:      metadata,
		logger:        slog.Default(),
		version:       "0.0.0",
		streamTimeout: 40 * time.Second,
		rateLimitRPS:  20,
		rateBurst:     40,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	if server.engine == nil {
		server.engine = search.NewEngine(search.WithLogger(server.logger))
	}
	if server.history == nil {
		server.history = history.NewRecorder(nil, server.logger)
	}
	if server.probeClient == nil {
		server.probeClient = common.NewHTTPClient(0)
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /manifest.json", s.handleManifest)
	mux.HandleFunc("GET /{config}/manifest.json", s.handleManifest)
	mux.HandleFunc("GET /stream/{type}/{id}", s.handleStream)
	mux.HandleFunc("GET /{config}/stream/{type}/{id}", s.handleStream)

	mux.HandleFunc("GET /media/{resolver}/{id}", s.handleMedia)
	mux.HandleFunc("GET /clean/{$}", s.handleClean)
	mux.HandleFunc("GET /test/{$}", s.handleTest)
	mux.HandleFunc("GET /resolvers", s.handleResolvers)
	mux.HandleFunc("GET /history", s.handleHistory)

	logged := requestIDMiddleware(loggingMiddleware(s.logger, mux))
	traced := otelhttp.NewHandler(logged, "czstreams",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, corsMiddleware(rateLimitMiddleware(s.rateLimitRPS, s.rateBurst, metricsMiddleware(traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	payload := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"resolvers": s.registry.Names(),
		"history":   s.history.Enabled(),
	}
	if s.metadata != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.metadata.Ping(ctx); err != nil {
			payload["status"] = "degraded"
			payload["metadataCache"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, payload)
}

func (s *Server) handleResolvers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt":   time.Now().UTC(),
		"items":       s.registry.Info(),
		"diagnostics": s.engine.Diagnostics(),
		"state":       s.registry.Debug(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parsePositiveInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	items, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Warn("history list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": s.history.Enabled(),
		"items":   items,
	})
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.registry.Cleanup(r.Context()); err != nil {
		s.logger.Warn("resolver cleanup failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(err.Error() + "\r\n\r\nerror"))
		return
	}
	_, _ = w.Write([]byte("OK"))
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, strconv.ErrSyntax
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
