package compose

import (
	"fmt"
	"reflect"
)

// Lifetime controls how long a constructed instance is shared.
type Lifetime int

const (
	// Singleton instances are constructed once per container and cached
	// forever.
	Singleton Lifetime = iota
	// Scoped instances are constructed once per open Scope.
	Scoped
	// Transient instances are constructed fresh on every resolve.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Scoped:
		return "Scoped"
	case Transient:
		return "Transient"
	default:
		return "Unknown"
	}
}

// ActivationKind selects how a ServiceDescriptor builds its instance.
type ActivationKind int

const (
	// ActivationConstructor resolves each declared dependency and invokes
	// a constructor function with them, in declared order.
	ActivationConstructor ActivationKind = iota
	// ActivationInstance wraps a pre-built value. Implies Singleton.
	ActivationInstance
	// ActivationClosure invokes an opaque builder function with the
	// container itself.
	ActivationClosure
)

func (a ActivationKind) String() string {
	switch a {
	case ActivationConstructor:
		return "Constructor"
	case ActivationInstance:
		return "Instance"
	case ActivationClosure:
		return "Closure"
	default:
		return "Unknown"
	}
}

// ServiceID is the stable identity of a service: a type plus an optional
// disambiguating name. Two ServiceIDs are equal iff both fields match, so
// ServiceID is safe to use directly as a map key.
type ServiceID struct {
	typ  reflect.Type
	name string
}

// ServiceIDOf returns the unnamed identity for T.
func ServiceIDOf[T any]() ServiceID {
	return ServiceID{typ: typeOf[T]()}
}

// ServiceIDNamed returns the named identity for T.
func ServiceIDNamed[T any](name string) ServiceID {
	return ServiceID{typ: typeOf[T](), name: name}
}

// ServiceIDOfType builds an identity from a concrete reflect.Type, used by
// the module composition layer which parses provider declarations as
// strings/types rather than generic type parameters.
func ServiceIDOfType(t reflect.Type, name string) ServiceID {
	return ServiceID{typ: t, name: name}
}

func typeOf[T any]() reflect.Type {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		// T is an interface type; reflect.TypeOf on a nil interface value
		// loses the static type, so recover it via a typed nil pointer.
		t = reflect.TypeOf(&zero).Elem()
	}
	return t
}

// Type returns the underlying reflect.Type of the identity.
func (s ServiceID) Type() reflect.Type { return s.typ }

// Name returns the disambiguating name, or "" for the default identity.
func (s ServiceID) Name() string { return s.name }

// IsNamed reports whether this identity carries a non-default name.
func (s ServiceID) IsNamed() bool { return s.name != "" }

// TypeName is a human-readable type name for diagnostics only; it is not
// part of identity equality.
func (s ServiceID) TypeName() string {
	if s.typ == nil {
		return "<nil>"
	}
	return s.typ.String()
}

// String renders the identity for logs and error messages.
func (s ServiceID) String() string {
	if s.name == "" {
		return s.TypeName()
	}
	return fmt.Sprintf("%s@%s", s.TypeName(), s.name)
}

// ServiceDescriptor is the immutable record describing how to build one
// service. Descriptors are produced by the binding surface (bindings.go)
// and never mutated after being added to a Builder; replacing an
// implementation means registering a new descriptor under the same
// ServiceID (last writer wins, see Builder.add).
type ServiceDescriptor struct {
	ServiceID        ServiceID
	ImplementationID ServiceID
	Lifetime         Lifetime
	Dependencies     []ServiceID
	Activation       ActivationKind

	// Constructor is used when Activation == ActivationConstructor. It
	// receives the resolved dependencies, positionally matching
	// Dependencies, and returns the built instance or an error.
	Constructor func(deps []any) (any, error)

	// Instance is used when Activation == ActivationInstance.
	Instance any

	// Closure is used when Activation == ActivationClosure. It receives
	// the container performing the resolve.
	Closure func(c *Container) (any, error)

	// ModuleName is the module that contributed this descriptor, kept for
	// diagnostics and encapsulation checks; empty for descriptors bound
	// directly on a Builder outside of module composition.
	ModuleName string
}

// Key returns the descriptor's ServiceID, which is the key used by the
// builder and every registry.
func (d ServiceDescriptor) Key() ServiceID { return d.ServiceID }
