package compose

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Disposer is implemented by scoped instances that hold a resource which
// must be released when the owning Scope closes (spec §3: "close is O(k)
// ... to invoke their disposal hook if any").
type Disposer interface {
	Dispose() error
}

// ScopeState is Open until Close is called, after which it is Closed and
// the scope can no longer serve Scoped resolves.
type ScopeState int32

const (
	ScopeOpen ScopeState = iota
	ScopeClosed
)

// Scope is a bounded region, typically one HTTP request, within which
// Scoped instances are shared (spec §4.10). Construction is O(1); Close
// is O(k) in the number of cached scoped instances.
type Scope struct {
	id        string
	container *Container

	mu     sync.Mutex
	values map[ServiceID]any
	order  []ServiceID
	group  singleflight.Group
	data   map[string]any

	state int32 // ScopeState, accessed atomically
}

func newScope(c *Container) *Scope {
	return &Scope{
		id:        uuid.NewString(),
		container: c,
		values:    make(map[ServiceID]any),
		data:      make(map[string]any),
		state:     int32(ScopeOpen),
	}
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() string { return s.id }

// State reports whether the scope is still open.
func (s *Scope) State() ScopeState { return ScopeState(atomic.LoadInt32(&s.state)) }

// Container returns the container this scope was opened against.
func (s *Scope) Container() *Container { return s.container }

// getOrInit returns the cached scoped instance for id, constructing it
// via factory exactly once across concurrent callers within this scope.
// Distinct scopes never share state, since each Scope owns its own
// values/group.
func (s *Scope) getOrInit(id ServiceID, factory func() (any, error)) (any, error) {
	if s.State() == ScopeClosed {
		return nil, ErrScopeClosed
	}

	s.mu.Lock()
	if v, ok := s.values[id]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(id.String(), func() (interface{}, error) {
		s.mu.Lock()
		if v, ok := s.values[id]; ok {
			s.mu.Unlock()
			return v, nil
		}
		s.mu.Unlock()

		v, err := factory()
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.values[id] = v
		s.order = append(s.order, id)
		s.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Decorate attaches ambient, scope-lifetime request data under name,
// generalizing the teacher's request-scoped decorator maps
// (libs/core/decorator.go, libs/core/request_container.go) into a single
// per-scope key/value surface.
func (s *Scope) Decorate(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = value
}

// Value retrieves ambient data set via Decorate.
func (s *Scope) Value(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[name]
	return v, ok
}

// Close releases the scope. Scoped instances implementing Disposer are
// disposed in reverse insertion order; disposal errors are logged and
// swallowed so that one failing cleanup does not block the rest (same
// best-effort policy as module shutdown, spec §4.8 step 5). Close is
// idempotent: closing an already-closed scope is a no-op.
func (s *Scope) Close() {
	if !atomic.CompareAndSwapInt32(&s.state, int32(ScopeOpen), int32(ScopeClosed)) {
		return
	}

	s.mu.Lock()
	order := make([]ServiceID, len(s.order))
	copy(order, s.order)
	values := s.values
	s.mu.Unlock()

	logger := s.container.logger
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		v := values[id]
		if d, ok := v.(Disposer); ok {
			if err := d.Dispose(); err != nil {
				logger.Warn("compose: error disposing scoped instance %s in scope %s: %v", id, s.id, err)
			}
		}
	}

	s.container.forgetScope(s.id)
}
