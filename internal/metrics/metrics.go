package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "czstreams",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "czstreams",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"method", "path"})

	ResolverRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "czstreams",
		Name:      "resolver_requests_total",
		Help:      "Total resolver calls by resolver, operation and result status.",
	}, []string{"resolver", "operation", "status"})

	ResolverRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "czstreams",
		Name:      "resolver_request_duration_seconds",
		Help:      "Resolver call duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"resolver", "operation"})

	ResolverHealthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "czstreams",
		Name:      "resolver_healthy",
		Help:      "Whether the last call to a resolver succeeded (1) or failed (0).",
	}, []string{"resolver"})

	ActiveResolvers = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "czstreams",
		Name:      "active_resolvers",
		Help:      "Resolvers passing config validation per stream lookup.",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8},
	})

	StreamsReturned = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "czstreams",
		Name:      "streams_returned",
		Help:      "Resolved streams returned per lookup.",
		Buckets:   []float64{0, 1, 3, 5, 10, 20, 40, 80},
	})

	LookupDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "czstreams",
		Name:      "lookup_duration_seconds",
		Help:      "End-to-end stream lookup duration in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 40},
	})

	MetaCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "czstreams",
		Name:      "meta_cache_hits_total",
		Help:      "Total number of metadata cache hits by tier.",
	}, []string{"tier"})

	MetaCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "czstreams",
		Name:      "meta_cache_misses_total",
		Help:      "Total number of metadata cache misses.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ResolverRequestsTotal,
		ResolverRequestDuration,
		ResolverHealthy,
		ActiveResolvers,
		StreamsReturned,
		LookupDuration,
		MetaCacheHitsTotal,
		MetaCacheMissesTotal,
	)
}
