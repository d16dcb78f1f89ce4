package compose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type containerFixtureRepo struct{ n int }

func newContainerFixtureRepo() *containerFixtureRepo { return &containerFixtureRepo{n: 1} }

type containerFixtureService struct{ repo *containerFixtureRepo }

func newContainerFixtureService(repo *containerFixtureRepo) *containerFixtureService {
	return &containerFixtureService{repo: repo}
}

func TestResolveSingletonReturnsSameInstance(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*containerFixtureRepo](b, newContainerFixtureRepo, WithLifetime(Singleton))
	})

	v1, err := Resolve[*containerFixtureRepo](c)
	assert.NoError(t, err)
	v2, err := Resolve[*containerFixtureRepo](c)
	assert.NoError(t, err)
	assert.Same(t, v1, v2)
}

func TestResolveTransientReturnsFreshInstance(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*containerFixtureRepo](b, newContainerFixtureRepo, WithLifetime(Transient))
	})

	v1, _ := Resolve[*containerFixtureRepo](c)
	v2, _ := Resolve[*containerFixtureRepo](c)
	assert.NotSame(t, v1, v2)
}

func TestResolveChainsConstructorDependencies(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*containerFixtureRepo](b, newContainerFixtureRepo, WithLifetime(Singleton))
		_ = Bind[*containerFixtureService](b, newContainerFixtureService, WithLifetime(Singleton))
	})

	svc, err := Resolve[*containerFixtureService](c)
	assert.NoError(t, err)
	assert.Equal(t, 1, svc.repo.n)
}

func TestResolveScopedWithoutScopeFails(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*containerFixtureRepo](b, newContainerFixtureRepo, WithLifetime(Scoped))
	})

	_, err := Resolve[*containerFixtureRepo](c)
	assert.ErrorIs(t, err, ErrScopeRequired)
}

func TestResolveUnregisteredServiceFails(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {})
	_, err := Resolve[*containerFixtureRepo](c)
	assert.ErrorIs(t, err, ErrServiceNotRegistered)
}

func TestTryResolveReportsPresence(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*containerFixtureRepo](b, newContainerFixtureRepo, WithLifetime(Singleton))
	})

	v, ok := TryResolve[*containerFixtureRepo](c)
	assert.True(t, ok)
	assert.NotNil(t, v)

	_, ok = TryResolve[*containerFixtureService](c)
	assert.False(t, ok)
}

func TestResolveNamedIsIndependentOfDefault(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = Bind[*containerFixtureRepo](b, newContainerFixtureRepo, WithLifetime(Singleton))
		_ = BindNamed[*containerFixtureRepo](b, "alt", func() *containerFixtureRepo {
			return &containerFixtureRepo{n: 99}
		}, WithLifetime(Singleton))
	})

	def, _ := Resolve[*containerFixtureRepo](c)
	alt, _ := ResolveNamed[*containerFixtureRepo](c, "alt")
	assert.Equal(t, 1, def.n)
	assert.Equal(t, 99, alt.n)
}

func TestResolveWrapsActivationFailure(t *testing.T) {
	boom := errors.New("boom")
	c := buildTestContainer(t, func(b *Builder) {
		BindFactory[*containerFixtureRepo](b, func(c *Container) (*containerFixtureRepo, error) {
			return nil, boom
		}, nil, WithLifetime(Transient))
	})

	_, err := Resolve[*containerFixtureRepo](c)
	assert.Error(t, err)
	var resFailed *ResolutionFailedError
	assert.ErrorAs(t, err, &resFailed)
	assert.ErrorIs(t, err, boom)
}

func TestResolveByTokenDefaultAndNamed(t *testing.T) {
	c := buildTestContainer(t, func(b *Builder) {
		_ = BindToken[tokenFixtureInterface, *tokenFixtureImplA](b)
		_ = BindTokenNamed[tokenFixtureInterface, *tokenFixtureImplB](b, "alt")
	})

	def, err := ResolveByToken[tokenFixtureInterface](c)
	assert.NoError(t, err)
	assert.Equal(t, "a", def.Op())

	alt, err := ResolveByTokenNamed[tokenFixtureInterface](c, "alt")
	assert.NoError(t, err)
	assert.Equal(t, "b", alt.Op())
}

func TestBuildFailsOnInvalidGraph(t *testing.T) {
	b := NewBuilder()
	b.WithLogger(NoopLogger())
	_ = Bind[*containerFixtureService](b, newContainerFixtureService, WithLifetime(Singleton))

	_, err := NewContainer(b)
	assert.Error(t, err)
	var verrs *ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}
