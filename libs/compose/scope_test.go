package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type scopeFixtureService struct{ n int }

func newScopeFixtureService() *scopeFixtureService { return &scopeFixtureService{n: 1} }

type disposableFixture struct{ disposed bool }

func (d *disposableFixture) Dispose() error {
	d.disposed = true
	return nil
}

func buildTestContainer(t *testing.T, configure func(*Builder)) *Container {
	t.Helper()
	b := NewBuilder()
	b.WithLogger(NoopLogger())
	configure(b)
	c, err := NewContainer(b)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	return c
}

func TestScopeCachesInstanceWithinItself(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*scopeFixtureService](b, newScopeFixtureService, WithLifetime(Scoped))
	})

	scope := c.CreateScope()
	defer scope.Close()

	v1, err := ResolveScoped[*scopeFixtureService](scope)
	assert.NoError(t, err)
	v2, err := ResolveScoped[*scopeFixtureService](scope)
	assert.NoError(t, err)
	assert.Same(t, v1, v2)
}

func TestDistinctScopesNeverShareState(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*scopeFixtureService](b, newScopeFixtureService, WithLifetime(Scoped))
	})

	s1 := c.CreateScope()
	defer s1.Close()
	s2 := c.CreateScope()
	defer s2.Close()

	v1, _ := ResolveScoped[*scopeFixtureService](s1)
	v2, _ := ResolveScoped[*scopeFixtureService](s2)
	assert.NotSame(t, v1, v2)
	assert.NotEqual(t, s1.ID(), s2.ID())
}

// orderRecorder is a Disposer that appends its label to a shared log.
type orderRecorder struct {
	disposableFixture
	label string
	log   *[]string
}

func (r *orderRecorder) Dispose() error {
	*r.log = append(*r.log, r.label)
	return r.disposableFixture.Dispose()
}

func TestScopeCloseDisposesInReverseOrder(t *testing.T) {
	var order []string

	type first struct{ *orderRecorder }
	type second struct{ *orderRecorder }

	c := buildTestContainer(t, func(b *Builder) {
		BindFactory[*first](b, func(c *Container) (*first, error) {
			return &first{&orderRecorder{label: "first", log: &order}}, nil
		}, nil, WithLifetime(Scoped))
		BindFactory[*second](b, func(c *Container) (*second, error) {
			return &second{&orderRecorder{label: "second", log: &order}}, nil
		}, nil, WithLifetime(Scoped))
	})

	scope := c.CreateScope()
	f, _ := ResolveScoped[*first](scope)
	s, _ := ResolveScoped[*second](scope)

	scope.Close()
	assert.True(t, f.disposed)
	assert.True(t, s.disposed)
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestScopeRejectsResolveAfterClose(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*scopeFixtureService](b, newScopeFixtureService, WithLifetime(Scoped))
	})

	scope := c.CreateScope()
	scope.Close()

	_, err := ResolveScoped[*scopeFixtureService](scope)
	assert.ErrorIs(t, err, ErrScopeClosed)
}

func TestScopeCloseIsIdempotent(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*scopeFixtureService](b, newScopeFixtureService, WithLifetime(Scoped))
	})
	scope := c.CreateScope()
	scope.Close()
	assert.NotPanics(t, func() { scope.Close() })
}

func TestScopeDecorateAndValue(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {})
	scope := c.CreateScope()
	defer scope.Close()

	_, ok := scope.Value("missing")
	assert.False(t, ok)

	scope.Decorate("requestID", "abc-123")
	v, ok := scope.Value("requestID")
	assert.True(t, ok)
	assert.Equal(t, "abc-123", v)
}
