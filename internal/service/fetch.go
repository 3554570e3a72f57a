package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/rent-lookup-service/internal/cache"
	"github.com/kjstillabower/rent-lookup-service/internal/observability"
	"github.com/kjstillabower/rent-lookup-service/internal/traffic"
)

// Options configures a store.
type Options struct {
	// CoalesceEnabled collapses concurrent misses for one key into a single fetch.
	// When false, each miss fetches on its own and the last write wins.
	CoalesceEnabled bool
	CoalesceTimeout time.Duration
}

const defaultCoalesceTimeout = 10 * time.Second

// cachedFetch implements the fresh / refetch / stale-or-unavailable read path shared by
// the rate and weather stores. name labels metrics and traffic records.
type cachedFetch[V any] struct {
	name      string
	cache     *cache.TimeBounded[string, V]
	coalescer *requestCoalescer[cache.Entry[V]]
	stampede  *stampedeTracker
}

func newCachedFetch[V any](name string, c *cache.TimeBounded[string, V], opts Options) *cachedFetch[V] {
	f := &cachedFetch[V]{
		name:     name,
		cache:    c,
		stampede: newStampedeTracker(name),
	}
	if opts.CoalesceEnabled {
		timeout := opts.CoalesceTimeout
		if timeout <= 0 {
			timeout = defaultCoalesceTimeout
		}
		f.coalescer = newRequestCoalescer[cache.Entry[V]](timeout)
	}
	return f
}

func (f *cachedFetch[V]) get(ctx context.Context, key string, fetch func(context.Context) (V, error)) Result[V] {
	logger := observability.LoggerFromContext(ctx).With(zap.String("cache", f.name), zap.String("key", key))

	entry, state, err := f.cache.Lookup(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues(f.name, "load").Inc()
		logger.Warn("cache load failed", zap.Error(err))
	}
	observability.CacheLookupsTotal.WithLabelValues(f.name, state.String()).Inc()

	if state == cache.StateFresh {
		logger.Debug("cache hit")
		return Result[V]{Value: entry.Value, Status: StatusCached, Kind: KindNone, FetchedAt: entry.FetchedAt}
	}
	logger.Debug("cache miss, fetching upstream", zap.String("state", state.String()))

	f.stampede.RecordMiss(key)
	defer f.stampede.RecordDone(key)

	load := func(ctx context.Context) (cache.Entry[V], error) {
		v, err := fetch(ctx)
		if err != nil {
			traffic.RecordError(f.name)
			return cache.Entry[V]{}, err
		}
		traffic.RecordSuccess(f.name)
		stored, putErr := f.cache.Put(ctx, key, v)
		if putErr != nil {
			observability.CacheErrorsTotal.WithLabelValues(f.name, "save").Inc()
			logger.Warn("cache save failed", zap.Error(putErr))
		}
		return stored, nil
	}

	var (
		fetched  cache.Entry[V]
		fetchErr error
	)
	if f.coalescer != nil {
		var shared bool
		fetched, shared, fetchErr = f.coalescer.GetOrDo(ctx, key, load)
		if shared {
			observability.CoalescingHitsTotal.WithLabelValues(f.name).Inc()
		}
	} else {
		fetched, fetchErr = load(ctx)
	}

	if fetchErr == nil {
		return Result[V]{Value: fetched.Value, Status: StatusFresh, Kind: KindNone, FetchedAt: fetched.FetchedAt}
	}

	if state == cache.StateStale {
		age := entry.Age(f.cache.Now())
		observability.StaleServesTotal.WithLabelValues(f.name).Inc()
		observability.StaleAgeSeconds.WithLabelValues(f.name).Observe(age.Seconds())
		logger.Info("serving stale cache", zap.Duration("age", age), zap.Error(fetchErr))
		return Result[V]{Value: entry.Value, Status: StatusStale, Kind: KindUpstream, FetchedAt: entry.FetchedAt, Err: fetchErr}
	}

	observability.UnavailableTotal.WithLabelValues(f.name, string(KindUpstream)).Inc()
	logger.Warn("upstream fetch failed, no cached value", zap.Error(fetchErr))
	return unavailable[V](KindUpstream, fetchErr)
}
