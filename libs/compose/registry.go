package compose

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// instanceCache is the per-key initialization primitive behind both the
// singleton map and each scope's scoped map (spec §4.2). Concurrent
// callers resolving the same id coalesce onto a single factory
// invocation via singleflight; once that invocation succeeds the result
// is cached permanently in done. A failed invocation is never cached, so
// a later resolve retries from scratch, matching the "on activation
// failure, do NOT cache; propagate the error" rule (spec §4.6 step 5).
type instanceCache struct {
	mu    sync.RWMutex
	done  map[ServiceID]any
	group singleflight.Group
}

func newInstanceCache() *instanceCache {
	return &instanceCache{done: make(map[ServiceID]any)}
}

// getOrInit returns the cached instance for id, invoking factory exactly
// once across all concurrent callers if absent.
func (c *instanceCache) getOrInit(id ServiceID, factory func() (any, error)) (any, error) {
	c.mu.RLock()
	if v, ok := c.done[id]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(id.String(), func() (interface{}, error) {
		// Re-check under the group: another goroutine may have completed
		// the factory and populated done between our RUnlock above and
		// entering the singleflight call.
		c.mu.RLock()
		if v, ok := c.done[id]; ok {
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()

		v, err := factory()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.done[id] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// snapshot returns a defensive copy of the currently cached ids, in no
// particular order; used for disposal ordering by callers that track
// insertion order separately (see Scope.Close).
func (c *instanceCache) snapshot() map[ServiceID]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[ServiceID]any, len(c.done))
	for k, v := range c.done {
		out[k] = v
	}
	return out
}
