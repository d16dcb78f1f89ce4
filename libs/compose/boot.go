package compose

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ModulePhase is a module's position in the boot lifecycle (spec §4.8).
type ModulePhase string

const (
	PhaseRegistered  ModulePhase = "registered"
	PhaseConfigured  ModulePhase = "configured"
	PhaseInitialized ModulePhase = "initialized"
	PhaseFailed      ModulePhase = "failed"
	PhaseShutdown    ModulePhase = "shutdown"
)

// ModuleStatus is a module's current phase, plus the failure reason when
// Phase is PhaseFailed.
type ModuleStatus struct {
	Phase ModulePhase
	Err   error
}

// ModuleRegistry holds every registered module and computes the
// dependency-respecting load order the boot sequencer walks.
type ModuleRegistry struct {
	mu      sync.Mutex
	modules map[string]*ModuleDescriptor
	order   []string // registration order, for deterministic iteration
	status  map[string]*ModuleStatus
	logger  Logger
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry(logger Logger) *ModuleRegistry {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &ModuleRegistry{
		modules: make(map[string]*ModuleDescriptor),
		status:  make(map[string]*ModuleStatus),
		logger:  logger,
	}
}

// Register adds a module. A duplicate name is rejected rather than
// silently overwritten, since module identity (unlike service identity)
// has no last-writer-wins semantics in the spec.
func (r *ModuleRegistry) Register(m *ModuleDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("compose: module %q is already registered", m.Name)
	}
	r.modules[m.Name] = m
	r.order = append(r.order, m.Name)
	r.status[m.Name] = &ModuleStatus{Phase: PhaseRegistered}
	return nil
}

// Status returns the current status of a registered module.
func (r *ModuleRegistry) Status(name string) (ModuleStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.status[name]
	if !ok {
		return ModuleStatus{}, false
	}
	return *s, true
}

func (r *ModuleRegistry) setStatus(name string, phase ModulePhase, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[name] = &ModuleStatus{Phase: phase, Err: err}
}

// calculateLoadOrder runs the same tri-color DFS the service graph
// validator uses (validator.go), applied to the module import graph
// instead of the service dependency graph, producing a dependency-first
// order (imports load before importers). A module whose
// ModuleConfig.ValidateDependencies is false skips the missing-import
// check for its own Imports list; the cycle-detection DFS below walks
// every import that names a registered module and skips the rest.
func (r *ModuleRegistry) calculateLoadOrder() ([]*ModuleDescriptor, error) {
	r.mu.Lock()
	modules := make(map[string]*ModuleDescriptor, len(r.modules))
	names := make([]string, len(r.order))
	copy(names, r.order)
	for k, v := range r.modules {
		modules[k] = v
	}
	r.mu.Unlock()

	for _, m := range modules {
		if !m.config().ValidateDependencies {
			continue
		}
		for _, imp := range m.Imports {
			if _, ok := modules[imp]; !ok {
				return nil, &MissingModuleDependencyError{Module: m.Name, Dependency: imp}
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(modules))
	var order []*ModuleDescriptor
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		path = append(path, name)

		for _, imp := range modules[name].Imports {
			if _, ok := modules[imp]; !ok {
				continue
			}
			switch color[imp] {
			case white:
				if err := visit(imp); err != nil {
					return err
				}
			case gray:
				start := 0
				for i, p := range path {
					if p == imp {
						start = i
						break
					}
				}
				cycle := append([]string{}, path[start:]...)
				cycle = append(cycle, imp)
				return &CircularDependencyError{Cycle: cycle}
			}
		}

		color[name] = black
		path = path[:len(path)-1]
		order = append(order, modules[name])
		return nil
	}

	for _, name := range names {
		if color[name] == white {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// BootSequencer drives a ModuleRegistry through the five boot phases
// (spec §4.8): Configure, Build, Initialize, Serve, Shutdown.
type BootSequencer struct {
	registry    *ModuleRegistry
	composition *ModuleComposition
	logger      Logger

	loadOrder []*ModuleDescriptor
	container *Container
	metrics   *Metrics
}

// NewBootSequencer pairs a registry with the composition used to flatten
// its modules into a Builder.
func NewBootSequencer(registry *ModuleRegistry, composition *ModuleComposition) *BootSequencer {
	if composition == nil {
		composition = NewModuleComposition()
	}
	return &BootSequencer{registry: registry, composition: composition, logger: registry.logger}
}

// WithMetrics attaches a Metrics collector; each module's Initialize
// duration is then reported to the module_initialize_seconds histogram.
func (s *BootSequencer) WithMetrics(m *Metrics) *BootSequencer {
	s.metrics = m
	return s
}

// Configure computes the module load order and runs every module's
// Configure callback, producing the flattened Builder.
func (s *BootSequencer) Configure(overrides ...func(*Builder) error) (*Builder, error) {
	order, err := s.registry.calculateLoadOrder()
	if err != nil {
		return nil, err
	}
	s.loadOrder = order

	b, err := s.composition.Compose(order, overrides...)
	if err != nil {
		for _, m := range order {
			s.registry.setStatus(m.Name, PhaseFailed, err)
		}
		return nil, err
	}
	for _, m := range order {
		s.registry.setStatus(m.Name, PhaseConfigured, nil)
	}
	return b, nil
}

// Build validates the composed Builder into a Container (C5 + C6).
func (s *BootSequencer) Build(b *Builder) (*Container, error) {
	c, err := NewContainerWithModules(b, s.loadOrder)
	if err != nil {
		return nil, err
	}
	s.container = c
	return c, nil
}

// Initialize runs each module's Initialize callback, in load order, each
// bounded by its own ModuleConfig.InitTimeout (default 30s). The first
// failure or timeout aborts the whole phase: later modules are left
// PhaseConfigured, not PhaseInitialized, and the error is returned
// immediately (spec §4.8: "abort on first Initialize error").
func (s *BootSequencer) Initialize(ctx context.Context) error {
	for _, m := range s.loadOrder {
		if m.Initialize == nil {
			s.registry.setStatus(m.Name, PhaseInitialized, nil)
			continue
		}

		timeout := m.config().InitTimeout
		initCtx, cancel := context.WithTimeout(ctx, timeout)
		errCh := make(chan error, 1)
		started := time.Now()
		go func(mod *ModuleDescriptor) {
			errCh <- mod.Initialize(s.container)
		}(m)

		var err error
		select {
		case err = <-errCh:
		case <-initCtx.Done():
			err = initCtx.Err()
		}
		cancel()
		if s.metrics != nil {
			s.metrics.ObserveModuleInitialize(time.Since(started))
		}

		if err != nil {
			wrapped := &InitializationFailedError{Module: m.Name, Err: err}
			s.registry.setStatus(m.Name, PhaseFailed, wrapped)
			return wrapped
		}
		s.registry.setStatus(m.Name, PhaseInitialized, nil)
	}
	return nil
}

// Serve logs that the boot sequence is complete; it changes no module
// status. It performs no blocking work itself: the caller's own server
// loop (e.g. a gin router's Run) is what actually serves, after Serve
// returns.
func (s *BootSequencer) Serve() {
	s.logger.Info("compose: boot sequence complete, %d module(s) initialized", len(s.loadOrder))
}

// Shutdown releases every PhaseInitialized module in reverse load order,
// best-effort: every such module's Shutdown runs even if an earlier one
// errors, and errors are logged rather than returned, matching
// Scope.Close's disposal policy. Modules in any other phase are skipped.
func (s *BootSequencer) Shutdown(ctx context.Context) {
	for i := len(s.loadOrder) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("compose: shutdown context done, skipping remaining modules: %v", err)
			return
		}
		m := s.loadOrder[i]
		if st, ok := s.registry.Status(m.Name); !ok || st.Phase != PhaseInitialized {
			continue
		}
		if m.Shutdown == nil {
			s.registry.setStatus(m.Name, PhaseShutdown, nil)
			continue
		}
		if err := m.Shutdown(s.container); err != nil {
			s.logger.Warn("compose: module %q shutdown error: %v", m.Name, err)
		}
		s.registry.setStatus(m.Name, PhaseShutdown, nil)
	}
}
