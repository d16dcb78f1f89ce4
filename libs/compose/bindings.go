package compose

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// BindOption customizes a single binding call on the Builder.
type BindOption func(*bindOptions)

type bindOptions struct {
	lifetime      *Lifetime
	namedDeps     map[int]string
	moduleName    string
}

// WithLifetime pins the descriptor's lifetime explicitly, bypassing the
// convention engine (§4.9).
func WithLifetime(l Lifetime) BindOption {
	return func(o *bindOptions) { o.lifetime = &l }
}

// WithNamedDependency marks the constructor parameter at position index
// as requiring the named service identity rather than the default one.
func WithNamedDependency(index int, name string) BindOption {
	return func(o *bindOptions) {
		if o.namedDeps == nil {
			o.namedDeps = make(map[int]string)
		}
		o.namedDeps[index] = name
	}
}

// WithModule tags the descriptor with the contributing module name, for
// diagnostics and encapsulation checks.
func WithModule(name string) BindOption {
	return func(o *bindOptions) { o.moduleName = name }
}

func applyOptions(opts []BindOption) bindOptions {
	var o bindOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Builder is the fluent binding surface (C4): it accumulates
// ServiceDescriptors and never performs resolution itself. A Builder is
// consumed once by Container build (NewContainer).
type Builder struct {
	descriptors map[ServiceID]ServiceDescriptor
	order       []ServiceID
	tokens      *TokenRegistry
	logger      Logger
	metrics     *Metrics
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		descriptors: make(map[ServiceID]ServiceDescriptor),
		tokens:      NewTokenRegistry(),
		logger:      DefaultLogger(),
	}
}

// WithLogger overrides the ambient logger the builder uses for
// rebinding-replacement warnings (spec §9 open question decision: a
// warning is logged, last-writer-wins, no strict-mode switch).
func (b *Builder) WithLogger(l Logger) *Builder {
	b.logger = l
	return b
}

// WithMetrics attaches a Metrics collector; every resolve against the
// eventual Container then reports its lifetime to the matching
// Prometheus counter (diagnostics.go).
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

func (b *Builder) add(d ServiceDescriptor) {
	if _, exists := b.descriptors[d.ServiceID]; exists {
		b.logger.Warn("compose: re-binding %s, replacing prior descriptor", d.ServiceID)
	} else {
		b.order = append(b.order, d.ServiceID)
	}
	b.descriptors[d.ServiceID] = d
}

// Bind registers the unnamed service T, activated by calling ctor with
// its resolved dependencies. ctor must be a function whose parameter
// types are themselves resolvable service types and whose results are
// (T) or (T, error); dependencies are derived from ctor's parameter list
// by reflection ("type-introspected factory", spec §3), in declared
// (positional) order.
func Bind[T any](b *Builder, ctor any, opts ...BindOption) error {
	return bindAs(b, ServiceIDOf[T](), ctor, opts...)
}

// BindNamed is Bind for a named service identity.
func BindNamed[T any](b *Builder, name string, ctor any, opts ...BindOption) error {
	return bindAs(b, ServiceIDNamed[T](name), ctor, opts...)
}

func bindAs(b *Builder, id ServiceID, ctor any, opts ...BindOption) error {
	o := applyOptions(opts)

	ctorVal := reflect.ValueOf(ctor)
	ctorType := ctorVal.Type()
	if ctorType.Kind() != reflect.Func {
		return fmt.Errorf("compose: constructor for %s must be a function, got %s", id, ctorType)
	}
	if err := validateConstructorSignature(ctorType); err != nil {
		return fmt.Errorf("compose: constructor for %s: %w", id, err)
	}

	deps := make([]ServiceID, ctorType.NumIn())
	for i := 0; i < ctorType.NumIn(); i++ {
		name := o.namedDeps[i]
		deps[i] = ServiceIDOfType(ctorType.In(i), name)
	}

	lifetime := resolveLifetime(o.lifetime, id.TypeName())

	b.add(ServiceDescriptor{
		ServiceID:        id,
		ImplementationID: id,
		Lifetime:         lifetime,
		Dependencies:     deps,
		Activation:       ActivationConstructor,
		Constructor:      makeConstructor(ctorVal, ctorType),
		ModuleName:       o.moduleName,
	})
	return nil
}

func validateConstructorSignature(t reflect.Type) error {
	switch t.NumOut() {
	case 1:
		return nil
	case 2:
		if !t.Out(1).Implements(errorType) {
			return fmt.Errorf("second return value must be error, got %s", t.Out(1))
		}
		return nil
	default:
		return fmt.Errorf("must return (T) or (T, error), got %d results", t.NumOut())
	}
}

func makeConstructor(ctorVal reflect.Value, ctorType reflect.Type) func([]any) (any, error) {
	numIn := ctorType.NumIn()
	returnsErr := ctorType.NumOut() == 2
	return func(deps []any) (any, error) {
		args := make([]reflect.Value, numIn)
		for i := 0; i < numIn; i++ {
			if deps[i] == nil {
				args[i] = reflect.Zero(ctorType.In(i))
				continue
			}
			args[i] = reflect.ValueOf(deps[i])
		}
		results := ctorVal.Call(args)
		if returnsErr && !results[1].IsNil() {
			return nil, results[1].Interface().(error)
		}
		return results[0].Interface(), nil
	}
}

// BindInstance registers a pre-built value as the unnamed Singleton
// instance for its own type ("instance" activation, spec §3).
func BindInstance[T any](b *Builder, value T, opts ...BindOption) {
	bindInstanceAs(b, ServiceIDOf[T](), value, opts...)
}

// BindInstanceNamed is BindInstance for a named identity.
func BindInstanceNamed[T any](b *Builder, name string, value T, opts ...BindOption) {
	bindInstanceAs(b, ServiceIDNamed[T](name), value, opts...)
}

func bindInstanceAs[T any](b *Builder, id ServiceID, value T, opts ...BindOption) {
	o := applyOptions(opts)
	b.add(ServiceDescriptor{
		ServiceID:        id,
		ImplementationID: id,
		Lifetime:         Singleton,
		Activation:       ActivationInstance,
		Instance:         value,
		ModuleName:       o.moduleName,
	})
}

// BindFactory registers an opaque builder closure ("closure" activation,
// spec §3): given the built container, it produces the instance.
// Dependencies are not reflectively derived for closures since the
// closure may resolve whatever it needs directly from the container; list
// any dependencies that must be validated ahead of time via deps.
func BindFactory[T any](b *Builder, closure func(c *Container) (T, error), deps []ServiceID, opts ...BindOption) {
	bindFactoryAs(b, ServiceIDOf[T](), closure, deps, opts...)
}

// BindFactoryNamed is BindFactory for a named identity.
func BindFactoryNamed[T any](b *Builder, name string, closure func(c *Container) (T, error), deps []ServiceID, opts ...BindOption) {
	bindFactoryAs(b, ServiceIDNamed[T](name), closure, deps, opts...)
}

func bindFactoryAs[T any](b *Builder, id ServiceID, closure func(c *Container) (T, error), deps []ServiceID, opts ...BindOption) {
	o := applyOptions(opts)
	lifetime := resolveLifetime(o.lifetime, id.TypeName())
	b.add(ServiceDescriptor{
		ServiceID:        id,
		ImplementationID: id,
		Lifetime:         lifetime,
		Dependencies:     deps,
		Activation:       ActivationClosure,
		Closure: func(c *Container) (any, error) {
			return closure(c)
		},
		ModuleName: o.moduleName,
	})
}

// BindToken registers Impl as the default implementation of the abstract
// capability Token (spec §4.3). If Impl has no descriptor yet, a bare
// zero-argument constructor descriptor is registered for it (mirrors the
// teacher's ClassProvider "Phase 2: simple struct instantiation" idiom,
// via reflect.New), so that a plain `dyn Trait => Impl` declaration with
// no explicit provider works without requiring a separate Bind call.
func BindToken[Tok, Impl any](b *Builder) error {
	return bindTokenAs(b, tokenType[Tok](), typeOf[Impl](), "", ensureBareConstructor[Impl])
}

// BindTokenNamed registers Impl as a named implementation of Token.
func BindTokenNamed[Tok, Impl any](b *Builder, name string) error {
	return bindTokenAs(b, tokenType[Tok](), typeOf[Impl](), name, ensureBareConstructor[Impl])
}

func ensureBareConstructor[Impl any](b *Builder) {
	id := ServiceIDOf[Impl]()
	if _, exists := b.descriptors[id]; exists {
		return
	}
	implType := typeOf[Impl]()
	b.add(ServiceDescriptor{
		ServiceID:        id,
		ImplementationID: id,
		Lifetime:         resolveLifetime(nil, id.TypeName()),
		Activation:       ActivationConstructor,
		Constructor: func([]any) (any, error) {
			return reflect.New(derefStruct(implType)).Interface(), nil
		},
	})
}

func derefStruct(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

func bindTokenAs(b *Builder, tokType, implType reflect.Type, name string, ensure func(*Builder)) error {
	ensure(b)
	binding := TokenBinding{TokenType: tokType, ServiceType: tokType, ImplementationType: implType}
	if name == "" {
		return b.tokens.Register(binding)
	}
	replaced, err := b.tokens.RegisterNamed(name, binding)
	if replaced {
		b.logger.Warn("compose: re-binding token %s@%s, replacing prior binding", tokType, name)
	}
	return err
}

// Tokens exposes the builder's token registry for inspection by the
// validator and diagnostics surface.
func (b *Builder) Tokens() *TokenRegistry { return b.tokens }

// Descriptors returns a snapshot of the accumulated descriptors in
// binding order.
func (b *Builder) Descriptors() []ServiceDescriptor {
	out := make([]ServiceDescriptor, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.descriptors[id])
	}
	return out
}

// Has reports whether id already has a descriptor bound.
func (b *Builder) Has(id ServiceID) bool {
	_, ok := b.descriptors[id]
	return ok
}
