package compose

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstanceCacheInvokesFactoryOnce(t *testing.T) {
	cache := newInstanceCache()
	id := ServiceIDOf[identityFixtureA]()
	var calls int32

	factory := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return "built", nil
	}

	v1, err := cache.getOrInit(id, factory)
	assert.NoError(t, err)
	v2, err := cache.getOrInit(id, factory)
	assert.NoError(t, err)

	assert.Equal(t, "built", v1)
	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestInstanceCacheConcurrentCallersCoalesce(t *testing.T) {
	cache := newInstanceCache()
	id := ServiceIDOf[identityFixtureA]()
	var calls int32

	factory := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return "built", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.getOrInit(id, factory)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestInstanceCacheDoesNotCacheFailures(t *testing.T) {
	cache := newInstanceCache()
	id := ServiceIDOf[identityFixtureA]()
	var attempt int32

	factory := func() (any, error) {
		n := atomic.AddInt32(&attempt, 1)
		if n == 1 {
			return nil, errors.New("boom")
		}
		return "recovered", nil
	}

	_, err := cache.getOrInit(id, factory)
	assert.Error(t, err)

	v, err := cache.getOrInit(id, factory)
	assert.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestInstanceCacheSnapshotIsDefensiveCopy(t *testing.T) {
	cache := newInstanceCache()
	id := ServiceIDOf[identityFixtureA]()
	_, _ = cache.getOrInit(id, func() (any, error) { return "built", nil })

	snap := cache.snapshot()
	assert.Len(t, snap, 1)
	snap[ServiceIDOf[identityFixtureB]()] = "mutated"

	assert.Len(t, cache.snapshot(), 1)
}
