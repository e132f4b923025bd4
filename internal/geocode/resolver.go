package geocode

import (
	"context"
	"errors"
	"sync"
	"time"

	"pinbook/pkg/logger"
)

const (
	// DefaultMaxPerMinute stays intentionally below the public Nominatim
	// ceiling of ~50 req/min so a burst of indexing never gets us banned.
	DefaultMaxPerMinute = 40

	// rateWindow is the trailing interval the budget applies to.
	rateWindow = time.Minute

	// sleepMargin pads every rate-limit or throttle-backoff sleep so we
	// wake up strictly after the window has moved on, never exactly at
	// the boundary.
	sleepMargin = 250 * time.Millisecond
)

// flight is one in-progress resolution. place is written exactly once,
// before done is closed.
type flight struct {
	done  chan struct{}
	place *Place
}

// Resolver resolves coordinates to places with caching, single-flight
// de-duplication and sliding-window rate limiting.
//
// All mutable state (cache, in-flight map, grant timestamps) is owned by
// one mutex so the check-then-act sequences stay atomic. Network calls
// and sleeps always run outside the lock; distinct cache keys resolve
// concurrently while identical keys collapse onto one flight.
type Resolver struct {
	geocoder     Geocoder
	maxPerWindow int

	mu       sync.Mutex
	cache    map[string]*Place
	inflight map[string]*flight
	grants   []time.Time

	// overridable in tests; real runs use the wall clock
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewResolver(geocoder Geocoder, maxPerMinute int) *Resolver {
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultMaxPerMinute
	}
	return &Resolver{
		geocoder:     geocoder,
		maxPerWindow: maxPerMinute,
		cache:        make(map[string]*Place),
		inflight:     make(map[string]*flight),
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// Resolve returns the place for a coordinate, or nil when geocoding
// failed or was inconclusive. It never returns an error: "place unknown"
// is an acceptable answer and the photo is still indexed without it.
//
// Cache hits return without suspension. A cancelled caller detaches from
// the in-flight lookup, but the lookup itself runs to completion so the
// cache still gets populated for future callers.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) *Place {
	key := CacheKey(lat, lon)

	r.mu.Lock()
	if p, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return p
	}
	if fl, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		return awaitFlight(ctx, fl)
	}
	fl := &flight{done: make(chan struct{})}
	r.inflight[key] = fl
	r.mu.Unlock()

	// The flight deliberately detaches from the caller's context: even
	// if every waiter gives up, finishing the lookup and caching the
	// answer is cheaper than re-spending a rate-limit slot later.
	go r.runFlight(key, lat, lon, fl)

	return awaitFlight(ctx, fl)
}

// CachedPlaces reports how many grid cells have been resolved so far.
func (r *Resolver) CachedPlaces() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func awaitFlight(ctx context.Context, fl *flight) *Place {
	select {
	case <-fl.done:
		return fl.place
	case <-ctx.Done():
		return nil
	}
}

func (r *Resolver) runFlight(key string, lat, lon float64, fl *flight) {
	place := r.lookup(context.Background(), lat, lon)

	r.mu.Lock()
	if place != nil {
		r.cache[key] = place
	}
	// Failures stay uncached so a later call can retry from scratch.
	delete(r.inflight, key)
	r.mu.Unlock()

	fl.place = place
	close(fl.done)
}

// lookup performs the rate-limited provider call, with a single retry
// when the provider supplied a retry-after hint.
func (r *Resolver) lookup(ctx context.Context, lat, lon float64) *Place {
	if err := r.acquireSlot(ctx); err != nil {
		return nil
	}

	pm, err := r.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		var te *ThrottleError
		if !errors.As(err, &te) || te.RetryAfter <= 0 {
			logger.LogDebug("geocode failed for %.4f,%.4f: %v", lat, lon, err)
			return nil
		}

		logger.LogWarn("Geocode provider throttled; backing off %s", te.RetryAfter)
		if r.sleep(ctx, te.RetryAfter+sleepMargin) != nil {
			return nil
		}
		// The retry is an outbound call like any other, so it spends a
		// fresh rate-limit slot.
		if err := r.acquireSlot(ctx); err != nil {
			return nil
		}
		pm, err = r.geocoder.ReverseGeocode(ctx, lat, lon)
		if err != nil {
			logger.LogDebug("geocode retry failed for %.4f,%.4f: %v", lat, lon, err)
			return nil
		}
	}

	return placeFromPlacemark(pm)
}

// acquireSlot blocks until a grant fits inside the trailing window.
// Guarantees at most maxPerWindow grants in any trailing rateWindow
// interval, independent of call arrival pattern.
func (r *Resolver) acquireSlot(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		cutoff := now.Add(-rateWindow)
		keep := 0
		for keep < len(r.grants) && !r.grants[keep].After(cutoff) {
			keep++
		}
		r.grants = r.grants[keep:]

		if len(r.grants) < r.maxPerWindow {
			r.grants = append(r.grants, now)
			r.mu.Unlock()
			return nil
		}

		wait := r.grants[0].Add(rateWindow).Sub(now) + sleepMargin
		r.mu.Unlock()

		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
