// Package cache implements the optimistic mirror of a per-identity,
// server-owned collection: mutations apply locally first, the backend
// confirms or rejects them, and a session generation tag makes every
// response from a previous identity inert.
package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cookeasy/recipe-client/internal/core/domain"
	"github.com/cookeasy/recipe-client/internal/pkg/metrics"
)

// Session is the slice of the session store the caches depend on.
type Session interface {
	// Generation returns the current session generation. Must be safe to
	// call without locks.
	Generation() uint64
	// NotifyUnauthorized reports a 401 observed on a call issued at gen.
	NotifyUnauthorized(ctx context.Context, gen uint64)
}

// Collection mirrors one server-owned map keyed by K. Mutations on the same
// key are serialized in issue order — at most one request in flight per key,
// later calls queue behind it — so the last-issued mutation always
// determines the committed value even when responses arrive out of order.
type Collection[K comparable, V any] struct {
	name string
	sess Session
	log  zerolog.Logger

	mu    sync.Mutex
	local map[K]V
	// base holds the last server-confirmed value per key, maintained on
	// load and on commit. Failed mutations roll back to it, never to an
	// earlier call's unconfirmed optimistic value.
	base  map[K]V
	tails map[K]chan struct{}
	depth map[K]int
}

// NewCollection builds an empty mirror named for metrics and logs.
func NewCollection[K comparable, V any](name string, sess Session, log zerolog.Logger) *Collection[K, V] {
	return &Collection[K, V]{
		name:  name,
		sess:  sess,
		log:   log.With().Str("collection", name).Logger(),
		local: make(map[K]V),
		base:  make(map[K]V),
		tails: make(map[K]chan struct{}),
		depth: make(map[K]int),
	}
}

// Reset discards everything: local values and the queue bookkeeping.
// Invoked by the session store, under its lock, on any transition away from
// an authenticated identity. Queued mutations are not interrupted — when
// their turn comes they notice the generation moved on and discard
// themselves.
func (c *Collection[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = make(map[K]V)
	c.base = make(map[K]V)
}

// Get reads the local mirror: read-your-writes within the current
// generation, including not-yet-confirmed optimistic values.
func (c *Collection[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.local[key]
	return v, ok
}

// Len returns the number of locally known entries.
func (c *Collection[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.local)
}

// Snapshot returns a copy of the local mirror.
func (c *Collection[K, V]) Snapshot() map[K]V {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[K]V, len(c.local))
	for k, v := range c.local {
		out[k] = v
	}
	return out
}

// Load replaces the mirror wholesale with the server-side collection. The
// response is discarded if the identity changed while the fetch was in
// flight.
func (c *Collection[K, V]) Load(ctx context.Context, fetch func(ctx context.Context) (map[K]V, error)) error {
	gen := c.sess.Generation()

	fetched, err := fetch(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			c.sess.NotifyUnauthorized(ctx, gen)
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.sess.Generation() {
		metrics.StaleResponsesTotal.WithLabelValues(c.name).Inc()
		c.log.Debug().Msg("discarding stale load response")
		return nil
	}
	c.local = fetched
	c.base = make(map[K]V, len(fetched))
	for k, v := range fetched {
		c.base[k] = v
	}
	return nil
}

// Mutate applies value to key optimistically, then confirms it with the
// backend via send and reconciles:
//
//   - success in the current generation commits the server-confirmed value
//     (which may differ from the optimistic one);
//   - failure in the current generation rolls key back to the last
//     server-confirmed value and returns the error, never swallowing it;
//   - a superseded generation discards the outcome silently — the state it
//     would have touched no longer exists.
//
// While further mutations for the key are still queued, a settling call
// only records the confirmed baseline and leaves the latest optimistic
// write readable; the chain's last caller reconciles the mirror, so a key
// always ends on the server's last confirmed value once every call has
// settled.
//
// Concurrent Mutate calls on the same key queue FIFO behind the in-flight
// one. The returned bool reports whether the outcome was applied (false
// when discarded as stale).
func (c *Collection[K, V]) Mutate(ctx context.Context, key K, value V, send func(ctx context.Context, value V) (V, error)) (V, bool, error) {
	var zero V

	c.mu.Lock()
	gen := c.sess.Generation()
	c.local[key] = value

	// Per-key FIFO: wait on the previous caller's done channel, leave ours
	// as the new tail.
	waitFor := c.tails[key]
	done := make(chan struct{})
	c.tails[key] = done
	c.depth[key]++
	c.mu.Unlock()

	// Depth must drop before done closes: a successor woken by the close
	// must not see this call still counted as pending when it settles.
	defer func() {
		c.mu.Lock()
		c.depth[key]--
		if c.depth[key] == 0 {
			delete(c.depth, key)
			delete(c.tails, key)
		}
		c.mu.Unlock()
		close(done)
	}()

	if waitFor != nil {
		select {
		case <-waitFor:
		case <-ctx.Done():
			c.settleFailure(key, gen)
			return zero, false, ctx.Err()
		}
	}

	if gen != c.sess.Generation() {
		// The identity changed while we were queued; the request must not
		// be issued on its behalf.
		metrics.OptimisticMutationsTotal.WithLabelValues(c.name, "discarded").Inc()
		return zero, false, nil
	}

	confirmed, err := send(ctx, value)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			c.sess.NotifyUnauthorized(ctx, gen)
		}
		if c.settleFailure(key, gen) {
			return zero, true, err
		}
		return zero, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.sess.Generation() {
		metrics.StaleResponsesTotal.WithLabelValues(c.name).Inc()
		metrics.OptimisticMutationsTotal.WithLabelValues(c.name, "discarded").Inc()
		c.log.Debug().Msg("discarding stale mutation response")
		return zero, false, nil
	}
	c.base[key] = confirmed
	if c.depth[key] <= 1 {
		c.local[key] = confirmed
	}
	metrics.OptimisticMutationsTotal.WithLabelValues(c.name, "committed").Inc()
	return confirmed, true, nil
}

// Seed records a server-confirmed value obtained outside the mutation path,
// unless the session moved on since gen. The local mirror is only written
// when no mutation for the key is pending, so an optimistic write is never
// clobbered by a slower read.
func (c *Collection[K, V]) Seed(key K, value V, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.sess.Generation() {
		metrics.StaleResponsesTotal.WithLabelValues(c.name).Inc()
		return false
	}
	c.base[key] = value
	if c.depth[key] == 0 {
		c.local[key] = value
	}
	return true
}

// DropIf removes key from the mirror when its current value satisfies cond.
// The server-confirmed baseline is untouched.
func (c *Collection[K, V]) DropIf(key K, cond func(V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.local[key]; ok && cond(v) {
		delete(c.local, key)
	}
}

// settleFailure reverts key to the last server-confirmed value if the
// generation still matches, reporting whether the failure was settled in the
// current generation. While further mutations for the key are pending their
// optimistic write stands; whichever call settles last performs the revert
// or commits, so the key always ends on server truth.
func (c *Collection[K, V]) settleFailure(key K, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.sess.Generation() {
		metrics.OptimisticMutationsTotal.WithLabelValues(c.name, "discarded").Inc()
		return false
	}
	if c.depth[key] <= 1 {
		if base, ok := c.base[key]; ok {
			c.local[key] = base
		} else {
			delete(c.local, key)
		}
	}
	metrics.OptimisticMutationsTotal.WithLabelValues(c.name, "rolled_back").Inc()
	return true
}
