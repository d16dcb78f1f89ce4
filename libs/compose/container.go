package compose

import (
	"fmt"
	"sync"
)

// Container is the built, immutable resolver (C6). It is produced once by
// NewContainer from a Builder and is safe for concurrent use: every
// Resolve call may run from any number of goroutines, and scopes opened
// against it are independent of one another.
type Container struct {
	descriptors map[ServiceID]ServiceDescriptor
	singletons  *instanceCache
	tokens      *TokenRegistry
	modules     []*ModuleDescriptor
	report      ValidationReport
	logger      Logger
	metrics     *Metrics

	scopesMu sync.Mutex
	scopes   map[string]*Scope
}

// NewContainer freezes a Builder into a Container, running the full
// graph validation (C5) first. Resolution is refused entirely if
// validation fails: the returned error is a *ValidationErrors carrying
// every fatal problem found (spec §7, "validation errors are batched and
// reported together").
func NewContainer(b *Builder) (*Container, error) {
	return newContainer(b, nil)
}

// NewContainerWithModules is NewContainer plus the originating module
// descriptors, so the validator's dangling-export check (§4.5 item 5) has
// something to check against. Used by the boot sequencer (boot.go) once
// module composition has produced a flattened Builder.
func NewContainerWithModules(b *Builder, modules []*ModuleDescriptor) (*Container, error) {
	return newContainer(b, modules)
}

func newContainer(b *Builder, modules []*ModuleDescriptor) (*Container, error) {
	descriptors := b.Descriptors()
	report := NewValidator(descriptors).Validate(b.tokens, modules)
	if !report.IsValid {
		return nil, &ValidationErrors{Errors: report.Errors}
	}

	descMap := make(map[ServiceID]ServiceDescriptor, len(descriptors))
	for _, d := range descriptors {
		descMap[d.ServiceID] = d
	}

	logger := b.logger
	if logger == nil {
		logger = DefaultLogger()
	}

	for _, w := range report.Warnings {
		logger.Warn("compose: %s", w)
	}

	return &Container{
		descriptors: descMap,
		singletons:  newInstanceCache(),
		tokens:      b.tokens,
		modules:     modules,
		report:      report,
		logger:      logger,
		metrics:     b.metrics,
		scopes:      make(map[string]*Scope),
	}, nil
}

// Report returns the validation report produced when the container was
// built, including the advisory resolution order and any non-fatal
// warnings (e.g. dangling exports).
func (c *Container) Report() ValidationReport { return c.report }

// Tokens exposes the container's token registry, e.g. for diagnostics.
func (c *Container) Tokens() *TokenRegistry { return c.tokens }

// CreateScope opens a new Scope bound to this container (spec §4.10).
func (c *Container) CreateScope() *Scope {
	s := newScope(c)
	c.scopesMu.Lock()
	c.scopes[s.id] = s
	c.scopesMu.Unlock()
	return s
}

func (c *Container) forgetScope(id string) {
	c.scopesMu.Lock()
	delete(c.scopes, id)
	c.scopesMu.Unlock()
}

// Resolve activates the unnamed service T, constructing its full
// dependency subgraph as needed (C6, spec §4.6). Resolving a Scoped
// service with no scope open returns ErrScopeRequired; use ResolveScoped.
func Resolve[T any](c *Container) (T, error) {
	return resolveTyped[T](c, nil)
}

// ResolveScoped is Resolve against an open Scope, so Scoped dependencies
// in T's subgraph resolve against that scope's cache.
func ResolveScoped[T any](s *Scope) (T, error) {
	return resolveTyped[T](s.container, s)
}

// ResolveNamed is Resolve for a named service identity.
func ResolveNamed[T any](c *Container, name string) (T, error) {
	return resolveNamedTyped[T](c, nil, name)
}

// ResolveNamedScoped is ResolveNamed against an open Scope.
func ResolveNamedScoped[T any](s *Scope, name string) (T, error) {
	return resolveNamedTyped[T](s.container, s, name)
}

// TryResolve is Resolve but reports ok=false instead of an error, for
// call sites that treat "not registered" as an expected possibility
// rather than a failure to surface.
func TryResolve[T any](c *Container) (T, bool) {
	v, err := Resolve[T](c)
	return v, err == nil
}

func resolveTyped[T any](c *Container, scope *Scope) (T, error) {
	var zero T
	v, err := c.resolve(ServiceIDOf[T](), scope, nil)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("compose: resolved value for %s does not satisfy %T", ServiceIDOf[T](), zero)
	}
	return typed, nil
}

func resolveNamedTyped[T any](c *Container, scope *Scope, name string) (T, error) {
	var zero T
	v, err := c.resolve(ServiceIDNamed[T](name), scope, nil)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("compose: resolved value for %s does not satisfy %T", ServiceIDNamed[T](name), zero)
	}
	return typed, nil
}

// ResolveByToken activates the default implementation bound to the
// abstract capability Tok (spec §4.3/§4.6).
func ResolveByToken[Tok any](c *Container) (Tok, error) {
	return resolveByToken[Tok](c, nil, "")
}

// ResolveByTokenScoped is ResolveByToken against an open Scope.
func ResolveByTokenScoped[Tok any](s *Scope) (Tok, error) {
	return resolveByToken[Tok](s.container, s, "")
}

// ResolveByTokenNamed activates the named implementation bound to Tok.
func ResolveByTokenNamed[Tok any](c *Container, name string) (Tok, error) {
	return resolveByToken[Tok](c, nil, name)
}

// ResolveByTokenNamedScoped is ResolveByTokenNamed against an open Scope.
func ResolveByTokenNamedScoped[Tok any](s *Scope, name string) (Tok, error) {
	return resolveByToken[Tok](s.container, s, name)
}

func resolveByToken[Tok any](c *Container, scope *Scope, name string) (Tok, error) {
	var zero Tok
	tokType := tokenType[Tok]()

	var binding TokenBinding
	var ok bool
	if name == "" {
		binding, ok = c.tokens.GetDefault(tokType)
	} else {
		binding, ok = c.tokens.GetNamed(tokType, name)
	}
	if !ok {
		return zero, fmt.Errorf("%w: no binding for token %s (name=%q)", ErrServiceNotRegistered, tokType, name)
	}

	v, err := c.resolve(ServiceIDOfType(binding.ImplementationType, ""), scope, nil)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(Tok)
	if !ok {
		return zero, fmt.Errorf("compose: implementation %s does not satisfy token %s", binding.ImplementationType, tokType)
	}
	return typed, nil
}

// resolve is the activation algorithm (spec §4.6): check the applicable
// cache, guard against in-flight cycles on this call stack (a defensive
// re-check beyond the build-time validator, since dynamic factory
// closures can introduce dependencies the static graph never saw), then
// recurse over declared dependencies in order before invoking the
// descriptor's activation strategy. Failed activation is never cached,
// so a subsequent resolve retries cleanly.
func (c *Container) resolve(id ServiceID, scope *Scope, chain []ServiceID) (any, error) {
	for _, seen := range chain {
		if seen == id {
			cycle := make([]string, 0, len(chain)+1)
			for _, s := range chain {
				cycle = append(cycle, s.String())
			}
			cycle = append(cycle, id.String())
			return nil, &CircularDependencyError{Cycle: cycle}
		}
	}
	chain = append(chain, id)

	d, ok := c.descriptors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotRegistered, id)
	}

	if c.metrics != nil {
		c.metrics.ObserveResolve(d.Lifetime)
	}

	switch d.Lifetime {
	case Singleton:
		return c.singletons.getOrInit(id, func() (any, error) {
			return c.activate(d, scope, chain)
		})
	case Scoped:
		if scope == nil {
			return nil, ErrScopeRequired
		}
		return scope.getOrInit(id, func() (any, error) {
			return c.activate(d, scope, chain)
		})
	default: // Transient
		return c.activate(d, scope, chain)
	}
}

func (c *Container) activate(d ServiceDescriptor, scope *Scope, chain []ServiceID) (any, error) {
	switch d.Activation {
	case ActivationInstance:
		return d.Instance, nil

	case ActivationClosure:
		v, err := d.Closure(c)
		if err != nil {
			return nil, &ResolutionFailedError{Chain: cloneChain(chain), Err: err}
		}
		return v, nil

	default: // ActivationConstructor
		deps := make([]any, len(d.Dependencies))
		for i, depID := range d.Dependencies {
			v, err := c.resolve(depID, scope, chain)
			if err != nil {
				return nil, err
			}
			deps[i] = v
		}
		v, err := d.Constructor(deps)
		if err != nil {
			return nil, &ResolutionFailedError{Chain: cloneChain(chain), Err: err}
		}
		return v, nil
	}
}

func cloneChain(chain []ServiceID) []ServiceID {
	out := make([]ServiceID, len(chain))
	copy(out, chain)
	return out
}
