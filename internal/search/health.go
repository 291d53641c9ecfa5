package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"czstreams/internal/domain"
	"czstreams/internal/metrics"
)

const (
	opValidate = "validate"
	opSearch   = "search"
	opResolve  = "resolve"
)

type resolverHealth struct {
	name                string
	consecutiveFailures int
	lastError           string
	lastOperation       string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

// healthBook tracks per-resolver call outcomes. It only reports; no resolver
// is ever skipped because of its record.
type healthBook struct {
	mu    sync.Mutex
	items map[string]*resolverHealth
}

func newHealthBook() *healthBook {
	return &healthBook{items: make(map[string]*resolverHealth)}
}

func (h *healthBook) record(resolverName, operation string, err error, latency time.Duration) {
	if h == nil {
		return
	}
	display := strings.TrimSpace(resolverName)
	key := strings.ToLower(display)
	if key == "" {
		return
	}

	status := "ok"
	timeout := isTimeoutLikeError(err)
	if err != nil {
		status = "error"
		if timeout {
			status = "timeout"
		}
	}
	metrics.ResolverRequestsTotal.WithLabelValues(key, operation, status).Inc()
	if latency > 0 {
		metrics.ResolverRequestDuration.WithLabelValues(key, operation).Observe(latency.Seconds())
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.items[key]
	if state == nil {
		state = &resolverHealth{name: display}
		h.items[key] = state
	}
	state.totalRequests++
	state.lastOperation = operation
	state.lastLatency = latency
	state.lastTimeout = timeout
	if timeout {
		state.timeoutCount++
	}

	now := time.Now()
	if err == nil {
		state.consecutiveFailures = 0
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.ResolverHealthy.WithLabelValues(key).Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()
	metrics.ResolverHealthy.WithLabelValues(key).Set(0)
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

func (h *healthBook) snapshot() []domain.ResolverDiagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()

	items := make([]domain.ResolverDiagnostics, 0, len(h.items))
	for _, state := range h.items {
		item := domain.ResolverDiagnostics{
			Name:                state.name,
			ConsecutiveFailures: state.consecutiveFailures,
			LastError:           state.lastError,
			LastOperation:       state.lastOperation,
			LastLatencyMS:       state.lastLatency.Milliseconds(),
			LastTimeout:         state.lastTimeout,
			TotalRequests:       state.totalRequests,
			TotalFailures:       state.totalFailures,
			TimeoutCount:        state.timeoutCount,
		}
		if !state.lastSuccessAt.IsZero() {
			lastSuccessAt := state.lastSuccessAt
			item.LastSuccessAt = &lastSuccessAt
		}
		if !state.lastFailureAt.IsZero() {
			lastFailureAt := state.lastFailureAt
			item.LastFailureAt = &lastFailureAt
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items
}

// Diagnostics reports call statistics for every resolver the engine has used.
func (e *Engine) Diagnostics() []domain.ResolverDiagnostics {
	return e.health.snapshot()
}
