package compose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type validatorFixtureA struct{}
type validatorFixtureB struct{ a *validatorFixtureA }
type validatorFixtureC struct{ b *validatorFixtureB }

func descriptor(id, impl ServiceID, lifetime Lifetime, deps ...ServiceID) ServiceDescriptor {
	return ServiceDescriptor{
		ServiceID:        id,
		ImplementationID: impl,
		Lifetime:         lifetime,
		Dependencies:     deps,
		Activation:       ActivationConstructor,
		Constructor:      func([]any) (any, error) { return nil, nil },
	}
}

func TestValidatorDetectsMissingRegistration(t *testing.T) {
	idB := ServiceIDOf[validatorFixtureB]()
	idA := ServiceIDOf[validatorFixtureA]()
	descs := []ServiceDescriptor{descriptor(idB, idB, Transient, idA)} // A never registered

	v := NewValidator(descs)
	report := v.Validate(NewTokenRegistry(), nil)

	assert.False(t, report.IsValid)
	assert.Len(t, report.Errors, 1)
	var missing *MissingRegistrationError
	assert.ErrorAs(t, report.Errors[0], &missing)
}

func TestValidatorProducesTopologicalOrder(t *testing.T) {
	idA := ServiceIDOf[validatorFixtureA]()
	idB := ServiceIDOf[validatorFixtureB]()
	idC := ServiceIDOf[validatorFixtureC]()

	descs := []ServiceDescriptor{
		descriptor(idA, idA, Transient),
		descriptor(idB, idB, Transient, idA),
		descriptor(idC, idC, Transient, idB),
	}

	v := NewValidator(descs)
	report := v.Validate(NewTokenRegistry(), nil)

	assert.True(t, report.IsValid)
	assert.Len(t, report.ResolutionOrder, 3)

	pos := map[ServiceID]int{}
	for i, id := range report.ResolutionOrder {
		pos[id] = i
	}
	assert.Less(t, pos[idA], pos[idB])
	assert.Less(t, pos[idB], pos[idC])
}

func TestValidatorDetectsCircularDependency(t *testing.T) {
	idA := ServiceIDOf[validatorFixtureA]()
	idB := ServiceIDOf[validatorFixtureB]()

	descs := []ServiceDescriptor{
		descriptor(idA, idA, Transient, idB),
		descriptor(idB, idB, Transient, idA),
	}

	v := NewValidator(descs)
	report := v.Validate(NewTokenRegistry(), nil)

	assert.False(t, report.IsValid)
	var cycle *CircularDependencyError
	assert.ErrorAs(t, report.Errors[0], &cycle)
	assert.GreaterOrEqual(t, len(cycle.Cycle), 2)
}

func TestValidatorRejectsSingletonDependingOnScoped(t *testing.T) {
	idA := ServiceIDOf[validatorFixtureA]()
	idB := ServiceIDOf[validatorFixtureB]()

	descs := []ServiceDescriptor{
		descriptor(idA, idA, Scoped),
		descriptor(idB, idB, Singleton, idA),
	}

	v := NewValidator(descs)
	report := v.Validate(NewTokenRegistry(), nil)

	assert.False(t, report.IsValid)
	var conflict *LifetimeConflictError
	assert.ErrorAs(t, report.Errors[0], &conflict)
}

func TestValidatorAllowsTransientDependingOnAnything(t *testing.T) {
	idA := ServiceIDOf[validatorFixtureA]()
	idB := ServiceIDOf[validatorFixtureB]()

	descs := []ServiceDescriptor{
		descriptor(idA, idA, Singleton),
		descriptor(idB, idB, Transient, idA),
	}

	v := NewValidator(descs)
	report := v.Validate(NewTokenRegistry(), nil)
	assert.True(t, report.IsValid)
}

func TestValidatorBatchesCoOccurringErrors(t *testing.T) {
	idA := ServiceIDOf[validatorFixtureA]()
	idB := ServiceIDOf[validatorFixtureB]()
	idC := ServiceIDOf[validatorFixtureC]()

	descs := []ServiceDescriptor{
		// B depends on A, which is never registered (missing registration)...
		descriptor(idB, idB, Scoped, idA),
		// ...and separately C (Singleton) depends on B (Scoped), a lifetime conflict.
		descriptor(idC, idC, Singleton, idB),
	}

	v := NewValidator(descs)
	report := v.Validate(NewTokenRegistry(), nil)

	assert.False(t, report.IsValid)
	var missing *MissingRegistrationError
	var conflict *LifetimeConflictError
	var foundMissing, foundConflict bool
	for _, err := range report.Errors {
		if errors.As(err, &missing) {
			foundMissing = true
		}
		if errors.As(err, &conflict) {
			foundConflict = true
		}
	}
	assert.True(t, foundMissing, "expected a MissingRegistrationError to be reported")
	assert.True(t, foundConflict, "expected a LifetimeConflictError to be reported alongside it")
}

func TestValidatorWarnsOnDanglingExport(t *testing.T) {
	idA := ServiceIDOf[validatorFixtureA]()
	descs := []ServiceDescriptor{descriptor(idA, idA, Transient)}

	modules := []*ModuleDescriptor{{
		Name:    "m1",
		Exports: []string{"NeverBound"},
	}}

	v := NewValidator(descs)
	report := v.Validate(NewTokenRegistry(), modules)

	assert.True(t, report.IsValid)
	assert.NotEmpty(t, report.Warnings)
}
