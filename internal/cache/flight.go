package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds every resolution fetch.
const DefaultFetchTimeout = 15 * time.Second

// FetchFunc loads one content map.
type FetchFunc func(ctx context.Context) (domain.ContentMap, error)

// Flight collapses concurrent fetches of the same key into one request and
// bounds each caller's wait.
type Flight struct {
	group   singleflight.Group
	timeout time.Duration
}

// NewFlight creates a flight group; timeout <= 0 uses DefaultFetchTimeout.
func NewFlight(timeout time.Duration) *Flight {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Flight{timeout: timeout}
}

// Timeout returns the per-call wait bound.
func (f *Flight) Timeout() time.Duration { return f.timeout }

// FlightKey scopes a cache key to an invalidation generation, so a fetch
// started before an invalidation is never joined by a caller after it.
func FlightKey(cacheKey string, generation int64) string {
	return cacheKey + "@" + strconv.FormatInt(generation, 10)
}

// Do runs fn once per key among concurrent callers. A caller gives up when
// its ctx ends or the timeout elapses; the latter yields ErrFetchTimeout.
func (f *Flight) Do(ctx context.Context, key string, fn FetchFunc) (domain.ContentMap, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		var leader atomic.Bool
		ch := f.group.DoChan(key, func() (any, error) {
			leader.Store(true)
			return fn(ctx)
		})

		select {
		case res := <-ch:
			if res.Err != nil {
				// We joined a flight whose owner went away; start our own once.
				if res.Shared && !leader.Load() && errors.Is(res.Err, context.Canceled) && ctx.Err() == nil && attempt == 0 {
					f.group.Forget(key)
					continue
				}
				if errors.Is(res.Err, context.DeadlineExceeded) {
					return nil, fmt.Errorf("%w after %s", domain.ErrFetchTimeout, f.timeout)
				}
				return nil, res.Err
			}
			data, _ := res.Val.(domain.ContentMap)
			return data.Clone(), nil

		case <-ctx.Done():
			if leader.Load() {
				// The fetch may never return; let the next caller start fresh.
				f.group.Forget(key)
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s", domain.ErrFetchTimeout, f.timeout)
			}
			return nil, ctx.Err()
		}
	}
}

// Forget drops an in-flight key so the next call starts a new fetch.
func (f *Flight) Forget(key string) {
	f.group.Forget(key)
}
