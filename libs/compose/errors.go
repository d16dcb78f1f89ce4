package compose

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the simple, payload-free cases in the error
// taxonomy. Structured cases that must carry diagnostic data get their
// own type below, following the same shape as the teacher's own
// plugin.go sentinel errors wrapped with fmt.Errorf("...: %w", err) at
// call sites.
var (
	ErrContainerNotBuilt    = errors.New("compose: resolve called before build")
	ErrScopeRequired        = errors.New("compose: scoped service requested with no open scope")
	ErrScopeClosed          = errors.New("compose: scope is already closed")
	ErrTokenBindingInvalid  = errors.New("compose: self-referential or empty-name token binding")
	ErrTokenDefaultConflict = errors.New("compose: token already has a default binding")
	ErrServiceNotRegistered = errors.New("compose: service has no bound descriptor")
)

// MissingRegistrationError reports a declared dependency with no bound
// descriptor. Fatal at validation time.
type MissingRegistrationError struct {
	Service    ServiceID
	Dependency ServiceID
}

func (e *MissingRegistrationError) Error() string {
	return fmt.Sprintf("compose: service %q depends on unregistered service %q", e.Service, e.Dependency)
}

// CircularDependencyError reports a cycle in the service or module
// dependency graph. Cycle is the path from the back-edge target to the
// current node, inclusive, e.g. ["A","B","C","A"].
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("compose: circular dependency: %s", strings.Join(e.Cycle, " -> "))
}

// LifetimeConflictError reports a disallowed lifetime pairing between a
// service and one of its dependencies.
type LifetimeConflictError struct {
	Service           ServiceID
	ServiceLifetime   Lifetime
	Dependency        ServiceID
	DependencyLifetime Lifetime
}

func (e *LifetimeConflictError) Error() string {
	return fmt.Sprintf("compose: %s service %q may not depend on %s service %q",
		e.ServiceLifetime, e.Service, e.DependencyLifetime, e.Dependency)
}

// MultipleDefaultsError reports two default bindings for the same token.
// It unwraps to ErrTokenDefaultConflict so existing errors.Is checks
// against the sentinel keep working once a caller wants the structured
// detail instead.
type MultipleDefaultsError struct {
	Token           string
	Implementations []string
}

func (e *MultipleDefaultsError) Error() string {
	return fmt.Sprintf("compose: token %q has multiple default implementations: %s",
		e.Token, strings.Join(e.Implementations, ", "))
}

func (e *MultipleDefaultsError) Unwrap() error { return ErrTokenDefaultConflict }

// MissingImportError reports a module import that doesn't resolve to a
// registered module.
type MissingImportError struct {
	Module     string
	RequiredBy string
}

func (e *MissingImportError) Error() string {
	return fmt.Sprintf("compose: module %q imports unregistered module %q", e.RequiredBy, e.Module)
}

// MissingModuleDependencyError is the module-graph analog of
// MissingImportError, used by the boot sequencer's load-order pass.
type MissingModuleDependencyError struct {
	Module     string
	Dependency string
}

func (e *MissingModuleDependencyError) Error() string {
	return fmt.Sprintf("compose: module %q depends on unregistered module %q", e.Module, e.Dependency)
}

// InitializationFailedError wraps a module's Initialize error or timeout.
type InitializationFailedError struct {
	Module string
	Err    error
}

func (e *InitializationFailedError) Error() string {
	return fmt.Sprintf("compose: module %q failed to initialize: %v", e.Module, e.Err)
}

func (e *InitializationFailedError) Unwrap() error { return e.Err }

// ResolutionFailedError wraps an activation failure with the chain of
// service ids attempted, innermost last.
type ResolutionFailedError struct {
	Chain []ServiceID
	Err   error
}

func (e *ResolutionFailedError) Error() string {
	names := make([]string, len(e.Chain))
	for i, id := range e.Chain {
		names[i] = id.String()
	}
	return fmt.Sprintf("compose: resolution failed for chain %s: %v", strings.Join(names, " -> "), e.Err)
}

func (e *ResolutionFailedError) Unwrap() error { return e.Err }

// ValidationErrors batches every fatal error the validator collected so
// the implementer sees the full set at once (spec §7: "validation errors
// are batched and reported together").
type ValidationErrors struct {
	Errors []error
}

func (e *ValidationErrors) Error() string {
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("compose: %d validation error(s): %s", len(e.Errors), strings.Join(parts, "; "))
}
