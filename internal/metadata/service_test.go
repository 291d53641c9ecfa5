package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"czstreams/internal/domain"
	"czstreams/internal/resolvers/common"
)

type fakeMeta struct {
	calls    atomic.Int32
	failures int32
	err      error
	meta     domain.Metadata
}

func (f *fakeMeta) Meta(_ context.Context, mediaType domain.MediaType, id string) (domain.Metadata, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return domain.Metadata{}, f.err
	}
	meta := f.meta
	meta.Type = mediaType
	return meta, nil
}

type fakeNames struct {
	names map[string]string
	err   error
	calls atomic.Int32
}

func (f *fakeNames) Enabled() bool    { return true }
func (f *fakeNames) Language() string { return "cs" }
func (f *fakeNames) LocalizedNames(_ context.Context, imdbID, lang string) (map[string]string, error) {
	f.calls.Add(1)
	if imdbID != "tt0903747" || lang != "cs" {
		return nil, fmt.Errorf("unexpected lookup %s/%s", imdbID, lang)
	}
	return f.names, f.err
}

type memoryBackend struct {
	mu    sync.Mutex
	items map[string]domain.Metadata
}

func (m *memoryBackend) Get(_ context.Context, key string) (domain.Metadata, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.items[key]
	return meta, ok, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, meta domain.Metadata, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = meta
	return nil
}

func (m *memoryBackend) Ping(context.Context) error { return nil }

var fastRetry = RetryConfig{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func seriesMeta() domain.Metadata {
	return domain.Metadata{ID: "tt0903747", Name: "Breaking Bad", Released: "2008", Episode: &domain.Episode{Season: 1, Number: 2}}
}

func TestLookupMergesNames(t *testing.T) {
	meta := &fakeMeta{meta: seriesMeta()}
	names := &fakeNames{names: map[string]string{"cs": "Perníkový táta", "en": "Breaking Bad (original)"}}
	svc := NewService(meta, WithNames(names), WithRetry(fastRetry))

	got, err := svc.Lookup(context.Background(), domain.MediaTypeSeries, "tt0903747:1:2")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want := map[string]string{"en": "Breaking Bad (original)", "cs": "Perníkový táta"}
	if diff := cmp.Diff(want, got.Names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if got.Type != domain.MediaTypeSeries || got.Episode == nil || got.Episode.Number != 2 {
		t.Fatalf("unexpected metadata %+v", got)
	}
}

func TestLookupToleratesNameFailure(t *testing.T) {
	meta := &fakeMeta{meta: seriesMeta()}
	names := &fakeNames{err: errors.New("tmdb down")}
	svc := NewService(meta, WithNames(names), WithRetry(fastRetry))

	got, err := svc.Lookup(context.Background(), domain.MediaTypeSeries, "tt0903747:1:2")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"en": "Breaking Bad"}, got.Names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if names.calls.Load() != 1 {
		t.Fatalf("expected non-transient failure to skip retries, got %d calls", names.calls.Load())
	}
}

func TestLookupRetriesTransientFailures(t *testing.T) {
	meta := &fakeMeta{meta: seriesMeta(), failures: 2, err: &common.StatusError{URL: "u", Status: http.StatusBadGateway}}
	svc := NewService(meta, WithRetry(fastRetry))

	if _, err := svc.Lookup(context.Background(), domain.MediaTypeSeries, "tt0903747:1:2"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if meta.calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", meta.calls.Load())
	}

	failing := &fakeMeta{failures: 10, err: io.ErrUnexpectedEOF}
	svc = NewService(failing, WithRetry(fastRetry))
	if _, err := svc.Lookup(context.Background(), domain.MediaTypeMovie, "tt1"); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected last error, got %v", err)
	}
	if failing.calls.Load() != 3 {
		t.Fatalf("expected attempts to stop at 3, got %d", failing.calls.Load())
	}
}

func TestLookupUnsupportedType(t *testing.T) {
	svc := NewService(&fakeMeta{})
	for _, mediaType := range []domain.MediaType{"channel", "tv"} {
		if _, err := svc.Lookup(context.Background(), mediaType, "x"); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("%s: expected ErrUnsupportedType, got %v", mediaType, err)
		}
	}
}

func TestLookupUsesCacheTiers(t *testing.T) {
	backend := &memoryBackend{items: map[string]domain.Metadata{}}
	meta := &fakeMeta{meta: seriesMeta()}
	svc := NewService(meta, WithCache(NewCache(time.Hour, backend, nil)), WithRetry(fastRetry))
	ctx := context.Background()

	first, err := svc.Lookup(ctx, domain.MediaTypeSeries, "tt0903747:1:2")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, ok := backend.items["series:tt0903747:1:2"]; !ok {
		t.Fatalf("expected backend write, got keys %v", backend.items)
	}

	second, err := svc.Lookup(ctx, domain.MediaTypeSeries, "tt0903747:1:2")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if meta.calls.Load() != 1 {
		t.Fatalf("expected cached second lookup, got %d calls", meta.calls.Load())
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("cached metadata mismatch (-want +got):\n%s", diff)
	}

	// A fresh process sees only the shared backend.
	restarted := NewService(meta, WithCache(NewCache(time.Hour, backend, nil)))
	if _, err := restarted.Lookup(ctx, domain.MediaTypeSeries, "tt0903747:1:2"); err != nil {
		t.Fatalf("restarted lookup: %v", err)
	}
	if meta.calls.Load() != 1 {
		t.Fatalf("expected backend hit after restart, got %d calls", meta.calls.Load())
	}
}

func TestIsTransientError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: context.Canceled, want: false},
		{err: context.DeadlineExceeded, want: true},
		{err: io.EOF, want: true},
		{err: errors.New("read: connection reset by peer"), want: true},
		{err: &common.StatusError{Status: http.StatusTooManyRequests}, want: true},
		{err: fmt.Errorf("wrapped: %w", &common.StatusError{Status: http.StatusServiceUnavailable}), want: true},
		{err: &common.StatusError{Status: http.StatusNotFound, Snippet: "timeout page"}, want: false},
		{err: ErrNotFound, want: false},
	}
	for _, tc := range cases {
		if got := isTransientError(tc.err); got != tc.want {
			t.Fatalf("isTransientError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
