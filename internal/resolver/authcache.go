package resolver

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// DefaultAuthTTL is how long a login result stays valid (2h20m).
const DefaultAuthTTL = 8_400_000 * time.Millisecond

// loginTimeout bounds a shared login, which outlives the caller that started it.
const loginTimeout = 30 * time.Second

type authEntry[T any] struct {
	username string
	created  time.Time
	value    T
}

// AuthEntry describes one cached session without exposing credentials.
type AuthEntry struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthCache keeps login results keyed by credential pair. Entries expire
// after the TTL and are checked on every read. Concurrent misses for the
// same credentials share one login call.
type AuthCache[T any] struct {
	items *cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

func NewAuthCache[T any](ttl time.Duration) *AuthCache[T] {
	if ttl <= 0 {
		ttl = DefaultAuthTTL
	}
	cleanup := ttl / 2
	if cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}
	return &AuthCache[T]{
		items: cache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

func authKey(username, password string) string {
	return username + "\x00" + password
}

// Get returns the cached session for the credentials, calling login on a
// miss. Failed logins are not cached. The shared login is detached from
// ctx and bounded by loginTimeout; a caller returns as soon as its own ctx
// is done.
func (c *AuthCache[T]) Get(ctx context.Context, username, password string, login func(ctx context.Context) (T, error)) (T, error) {
	key := authKey(username, password)
	if cached, ok := c.items.Get(key); ok {
		if entry, ok := cached.(authEntry[T]); ok {
			return entry.value, nil
		}
	}

	results := c.group.DoChan(key, func() (any, error) {
		if cached, ok := c.items.Get(key); ok {
			if entry, ok := cached.(authEntry[T]); ok {
				return entry.value, nil
			}
		}
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loginTimeout)
		defer cancel()
		value, err := login(loginCtx)
		if err != nil {
			return nil, err
		}
		c.items.Set(key, authEntry[T]{
			username: strings.TrimSpace(username),
			created:  time.Now(),
			value:    value,
		}, c.ttl)
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Forget drops the session for the credentials, e.g. after the site rejected it.
func (c *AuthCache[T]) Forget(username, password string) {
	c.items.Delete(authKey(username, password))
}

func (c *AuthCache[T]) Clear() {
	c.items.Flush()
}

func (c *AuthCache[T]) Len() int {
	return c.items.ItemCount()
}

func (c *AuthCache[T]) Snapshot() []AuthEntry {
	items := c.items.Items()
	out := make([]AuthEntry, 0, len(items))
	for _, item := range items {
		entry, ok := item.Object.(authEntry[T])
		if !ok {
			continue
		}
		out = append(out, AuthEntry{
			Username:  entry.username,
			CreatedAt: entry.created,
			ExpiresAt: time.Unix(0, item.Expiration),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
