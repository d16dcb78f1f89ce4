package compose

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Token is a zero-sized identity plus an associated abstract service
// type (spec §4.3). Any interface type may serve as a token; Token is
// used only as a generic type parameter, never instantiated.
type Token any

// TokenBinding records one token -> implementation mapping.
type TokenBinding struct {
	TokenType          reflect.Type
	ServiceType        reflect.Type
	ImplementationType reflect.Type
	Name               string // "" for the default binding
}

func (b TokenBinding) validate() error {
	if b.ServiceType == nil || b.ImplementationType == nil {
		return ErrTokenBindingInvalid
	}
	if b.ServiceType == b.ImplementationType {
		return fmt.Errorf("%w: %s maps to itself", ErrTokenBindingInvalid, b.ServiceType)
	}
	// A pointer to a named type counts as named: its element is checked.
	namedType := func(t reflect.Type) string {
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		return t.Name()
	}
	if namedType(b.ServiceType) == "" || namedType(b.ImplementationType) == "" {
		return fmt.Errorf("%w: anonymous type has no name", ErrTokenBindingInvalid)
	}
	return nil
}

// TokenRegistryStats mirrors original_source's TokenRegistryStats,
// surfaced through introspect() (spec §6).
type TokenRegistryStats struct {
	TotalTokens   int
	TotalBindings int
	NamedBindings int
}

// TokenRegistry maps abstract tokens to concrete implementations, with at
// most one default (unnamed) binding per token and any number of uniquely
// named bindings (spec §4.3).
type TokenRegistry struct {
	mu       sync.RWMutex
	defaults map[reflect.Type]TokenBinding
	named    map[reflect.Type]map[string]TokenBinding
}

// NewTokenRegistry constructs an empty registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		defaults: make(map[reflect.Type]TokenBinding),
		named:    make(map[reflect.Type]map[string]TokenBinding),
	}
}

// Register adds the default binding for a token. A second call for the
// same token returns ErrTokenDefaultConflict; the first registration
// wins and remains in effect.
func (r *TokenRegistry) Register(b TokenBinding) error {
	if err := b.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.defaults[b.TokenType]; exists {
		return &MultipleDefaultsError{
			Token:           b.TokenType.String(),
			Implementations: []string{existing.ImplementationType.String(), b.ImplementationType.String()},
		}
	}
	r.defaults[b.TokenType] = b
	return nil
}

// RegisterNamed adds a named binding. Duplicate (token, name) pairs
// replace the earlier binding (spec §4.3: "duplicate (token, name)
// replaces the earlier binding and records a warning"); the caller is
// responsible for logging the warning since TokenRegistry has no logger
// of its own (kept dependency-free so it composes into other containers
// cheaply).
func (r *TokenRegistry) RegisterNamed(name string, b TokenBinding) (replaced bool, err error) {
	if name == "" {
		return false, fmt.Errorf("%w: named binding requires a non-empty name", ErrTokenBindingInvalid)
	}
	b.Name = name
	if err := b.validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.named[b.TokenType]
	if !ok {
		bucket = make(map[string]TokenBinding)
		r.named[b.TokenType] = bucket
	}
	_, replaced = bucket[name]
	bucket[name] = b
	return replaced, nil
}

// GetDefault returns the default binding for tokenType, if any.
func (r *TokenRegistry) GetDefault(tokenType reflect.Type) (TokenBinding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.defaults[tokenType]
	return b, ok
}

// GetNamed returns the named binding for (tokenType, name), if any.
func (r *TokenRegistry) GetNamed(tokenType reflect.Type, name string) (TokenBinding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket, ok := r.named[tokenType]
	if !ok {
		return TokenBinding{}, false
	}
	b, ok := bucket[name]
	return b, ok
}

// Contains reports whether tokenType has any binding at all, default or
// named.
func (r *TokenRegistry) Contains(tokenType reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.defaults[tokenType]; ok {
		return true
	}
	_, ok := r.named[tokenType]
	return ok
}

// Stats summarizes the registry for the diagnostics surface.
func (r *TokenRegistry) Stats() TokenRegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := TokenRegistryStats{TotalTokens: len(r.defaults)}
	seen := make(map[reflect.Type]bool, len(r.defaults))
	for t := range r.defaults {
		seen[t] = true
	}
	stats.TotalBindings += len(r.defaults)
	for t, bucket := range r.named {
		if !seen[t] {
			seen[t] = true
			stats.TotalTokens++
		}
		stats.NamedBindings += len(bucket)
		stats.TotalBindings += len(bucket)
	}
	return stats
}

// ValidateAllBindings re-checks every stored binding against the same
// rules Register applies and returns a human-readable diagnostic per problem
// found, mirroring original_source's validate_all_bindings. It never
// mutates the registry.
func (r *TokenRegistry) ValidateAllBindings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var problems []string
	for t, b := range r.defaults {
		if err := b.validate(); err != nil {
			problems = append(problems, fmt.Sprintf("default binding for %s: %v", t, err))
		}
	}
	for t, bucket := range r.named {
		for name, b := range bucket {
			if err := b.validate(); err != nil {
				problems = append(problems, fmt.Sprintf("named binding %s@%s: %v", t, name, err))
			}
		}
	}
	sort.Strings(problems)
	return problems
}

// tokenType resolves the reflect.Type identifying a Token generic
// parameter the same way ServiceID does for ordinary services.
func tokenType[T any]() reflect.Type {
	return typeOf[T]()
}
