package compose

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type bootFixtureRepo struct{}

func newBootFixtureRepo() *bootFixtureRepo { return &bootFixtureRepo{} }

func bootRepoModule() *ModuleDescriptor {
	return &ModuleDescriptor{
		Name: "repo",
		Configure: func(b *Builder) error {
			return Bind[*bootFixtureRepo](b, newBootFixtureRepo, WithLifetime(Singleton), WithModule("repo"))
		},
	}
}

func TestModuleRegistryRejectsDuplicateName(t *testing.T) {
	r := NewModuleRegistry(NoopLogger())
	assert.NoError(t, r.Register(bootRepoModule()))
	assert.Error(t, r.Register(bootRepoModule()))
}

func TestModuleRegistryLoadOrderRespectsImports(t *testing.T) {
	r := NewModuleRegistry(NoopLogger())
	_ = r.Register(&ModuleDescriptor{Name: "b", Imports: []string{"a"}})
	_ = r.Register(&ModuleDescriptor{Name: "a"})

	order, err := r.calculateLoadOrder()
	assert.NoError(t, err)
	assert.Len(t, order, 2)
	assert.Equal(t, "a", order[0].Name)
	assert.Equal(t, "b", order[1].Name)
}

func TestModuleRegistryLoadOrderDetectsMissingDependency(t *testing.T) {
	r := NewModuleRegistry(NoopLogger())
	_ = r.Register(&ModuleDescriptor{Name: "b", Imports: []string{"ghost"}})

	_, err := r.calculateLoadOrder()
	var missing *MissingModuleDependencyError
	assert.ErrorAs(t, err, &missing)
}

func TestModuleRegistryLoadOrderSkipsMissingImportCheckWhenDisabled(t *testing.T) {
	r := NewModuleRegistry(NoopLogger())
	_ = r.Register(&ModuleDescriptor{
		Name:    "b",
		Imports: []string{"ghost"},
		Config:  ModuleConfig{InitTimeout: time.Second, ValidateDependencies: false},
	})

	order, err := r.calculateLoadOrder()
	assert.NoError(t, err)
	assert.Len(t, order, 1)
}

func TestModuleRegistryLoadOrderDetectsCycle(t *testing.T) {
	r := NewModuleRegistry(NoopLogger())
	_ = r.Register(&ModuleDescriptor{Name: "a", Imports: []string{"b"}})
	_ = r.Register(&ModuleDescriptor{Name: "b", Imports: []string{"a"}})

	_, err := r.calculateLoadOrder()
	var cycle *CircularDependencyError
	assert.ErrorAs(t, err, &cycle)
}

func TestBootSequencerHappyPath(t *testing.T) {
	r := NewModuleRegistry(NoopLogger())
	initialized := false
	m := bootRepoModule()
	m.Initialize = func(c *Container) error {
		_, err := Resolve[*bootFixtureRepo](c)
		initialized = err == nil
		return err
	}
	_ = r.Register(m)

	seq := NewBootSequencer(r, nil)
	b, err := seq.Configure()
	assert.NoError(t, err)

	_, err = seq.Build(b)
	assert.NoError(t, err)

	assert.NoError(t, seq.Initialize(context.Background()))
	assert.True(t, initialized)

	status, ok := r.Status("repo")
	assert.True(t, ok)
	assert.Equal(t, PhaseInitialized, status.Phase)

	seq.Serve()
	seq.Shutdown(context.Background())
	status, _ = r.Status("repo")
	assert.Equal(t, PhaseShutdown, status.Phase)
}

func TestBootSequencerInitializeAbortsOnFirstError(t *testing.T) {
	r := NewModuleRegistry(NoopLogger())
	boom := errors.New("boom")

	first := &ModuleDescriptor{Name: "first", Initialize: func(c *Container) error { return boom }}
	second := &ModuleDescriptor{Name: "second", Imports: []string{"first"}, Initialize: func(c *Container) error {
		t.Fatal("second module should never initialize after first fails")
		return nil
	}}
	_ = r.Register(first)
	_ = r.Register(second)

	seq := NewBootSequencer(r, nil)
	b, err := seq.Configure()
	assert.NoError(t, err)
	_, err = seq.Build(b)
	assert.NoError(t, err)

	err = seq.Initialize(context.Background())
	var initErr *InitializationFailedError
	assert.ErrorAs(t, err, &initErr)
	assert.Equal(t, "first", initErr.Module)

	status, _ := r.Status("second")
	assert.Equal(t, PhaseConfigured, status.Phase)
}

func TestBootSequencerInitializeRespectsTimeout(t *testing.T) {
	r := NewModuleRegistry(NoopLogger())
	m := &ModuleDescriptor{
		Name:   "slow",
		Config: ModuleConfig{InitTimeout: 10 * time.Millisecond, ValidateDependencies: true},
		Initialize: func(c *Container) error {
			time.Sleep(50 * time.Millisecond)
			return nil
		},
	}
	_ = r.Register(m)

	seq := NewBootSequencer(r, nil)
	b, err := seq.Configure()
	assert.NoError(t, err)
	_, err = seq.Build(b)
	assert.NoError(t, err)

	err = seq.Initialize(context.Background())
	var initErr *InitializationFailedError
	assert.ErrorAs(t, err, &initErr)
	assert.ErrorIs(t, initErr.Err, context.DeadlineExceeded)
}

func TestBootSequencerShutdownStopsOnCancelledContext(t *testing.T) {
	r := NewModuleRegistry(NoopLogger())
	ran := false
	m := &ModuleDescriptor{Name: "a", Shutdown: func(c *Container) error { ran = true; return nil }}
	_ = r.Register(m)

	seq := NewBootSequencer(r, nil)
	b, _ := seq.Configure()
	_, _ = seq.Build(b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seq.Shutdown(ctx)
	assert.False(t, ran)
}
