package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAuthCacheReusesSessionPerCredentials(t *testing.T) {
	authCache := NewAuthCache[string](time.Hour)
	var calls atomic.Int32
	login := func(user string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) {
			calls.Add(1)
			return "session-" + user, nil
		}
	}

	ctx := context.Background()
	first, err := authCache.Get(ctx, "alice", "pw", login("alice"))
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, _ := authCache.Get(ctx, "alice", "pw", login("alice"))
	if first != second || calls.Load() != 1 {
		t.Fatalf("expected cached session, got %q/%q with %d logins", first, second, calls.Load())
	}

	other, _ := authCache.Get(ctx, "alice", "other", login("alice2"))
	if other != "session-alice2" || calls.Load() != 2 {
		t.Fatalf("different password must login again, got %q with %d logins", other, calls.Load())
	}
}

func TestAuthCacheExpiresEntries(t *testing.T) {
	authCache := NewAuthCache[int](30 * time.Millisecond)
	var calls atomic.Int32
	login := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	ctx := context.Background()
	if v, _ := authCache.Get(ctx, "u", "p", login); v != 1 {
		t.Fatalf("expected first session 1, got %d", v)
	}
	time.Sleep(60 * time.Millisecond)
	if v, _ := authCache.Get(ctx, "u", "p", login); v != 2 {
		t.Fatalf("expected expired session to be renewed, got %d", v)
	}
}

func TestAuthCacheDoesNotCacheFailures(t *testing.T) {
	authCache := NewAuthCache[string](time.Hour)
	fail := true
	login := func(context.Context) (string, error) {
		if fail {
			return "", errors.New("bad credentials")
		}
		return "ok", nil
	}

	ctx := context.Background()
	if _, err := authCache.Get(ctx, "u", "p", login); err == nil {
		t.Fatal("expected login error")
	}
	if authCache.Len() != 0 {
		t.Fatalf("failed login must not be cached, len=%d", authCache.Len())
	}
	fail = false
	if v, err := authCache.Get(ctx, "u", "p", login); err != nil || v != "ok" {
		t.Fatalf("expected retry after failure to succeed, got %q %v", v, err)
	}
}

func TestAuthCacheCollapsesConcurrentLogins(t *testing.T) {
	authCache := NewAuthCache[string](time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})
	login := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = authCache.Get(context.Background(), "u", "p", login)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single login, got %d", calls.Load())
	}
}

func TestAuthCacheClearAndSnapshot(t *testing.T) {
	authCache := NewAuthCache[string](time.Hour)
	ctx := context.Background()
	login := func(context.Context) (string, error) { return "s", nil }
	_, _ = authCache.Get(ctx, "bob", "secret", login)
	_, _ = authCache.Get(ctx, "alice", "secret", login)

	snapshot := authCache.Snapshot()
	if len(snapshot) != 2 || snapshot[0].Username != "alice" || snapshot[1].Username != "bob" {
		t.Fatalf("unexpected snapshot: %#v", snapshot)
	}
	if !snapshot[0].ExpiresAt.After(snapshot[0].CreatedAt) {
		t.Fatalf("expiry must follow creation: %#v", snapshot[0])
	}

	authCache.Forget("bob", "secret")
	if authCache.Len() != 1 {
		t.Fatalf("expected 1 entry after Forget, got %d", authCache.Len())
	}
	authCache.Clear()
	if authCache.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got %d", authCache.Len())
	}
}

func TestAuthCacheKeysDoNotCollide(t *testing.T) {
	authCache := NewAuthCache[string](time.Hour)
	var calls atomic.Int32
	login := func(context.Context) (string, error) {
		return fmt.Sprintf("session-%d", calls.Add(1)), nil
	}

	ctx := context.Background()
	first, _ := authCache.Get(ctx, "a:b", "c", login)
	second, _ := authCache.Get(ctx, "a", "b:c", login)
	if first == second || calls.Load() != 2 {
		t.Fatalf("expected separate sessions, got %q/%q with %d logins", first, second, calls.Load())
	}
}

func TestAuthCacheSharedLoginSurvivesCancelledCaller(t *testing.T) {
	authCache := NewAuthCache[string](time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	login := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "session", nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := authCache.Get(firstCtx, "alice", "pw", login)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		value string
		err   error
	}
	second := make(chan outcome, 1)
	go func() {
		value, err := authCache.Get(context.Background(), "alice", "pw", login)
		second <- outcome{value, err}
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to return context.Canceled, got %v", err)
	}
	close(release)

	got := <-second
	if got.err != nil || got.value != "session" {
		t.Fatalf("expected the waiting caller to get the session, got %q err=%v", got.value, got.err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one shared login, got %d", calls.Load())
	}
}
