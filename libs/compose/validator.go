package compose

import "fmt"

// ValidationReport is the validator's verdict (spec §4.5).
// ResolutionOrder is advisory, not mandatory, for the resolver: it is the
// topological order (leaves first) produced during cycle detection.
type ValidationReport struct {
	IsValid         bool
	ServiceCount    int
	DependencyCount int
	ResolutionOrder []ServiceID
	Errors          []error
	Warnings        []string
}

// Validator runs the graph checks in the fixed order spec §4.5 describes,
// running every stage unconditionally and batching every error into one
// report, matching original_source's DependencyValidator driver (its
// validate() runs all five checks and extends one error list, with no
// short-circuiting), generalized to a Go descriptor slice plus a real
// lifetime-rule implementation (the Rust source left that check as a
// TODO stub; spec §4.5 item 3 fully specifies the rule and is
// authoritative here).
type Validator struct {
	descriptors map[ServiceID]ServiceDescriptor
	graph       map[ServiceID][]ServiceID
}

// NewValidator indexes descriptors by id and builds the dependency graph
// adjacency used by every check below.
func NewValidator(descriptors []ServiceDescriptor) *Validator {
	v := &Validator{
		descriptors: make(map[ServiceID]ServiceDescriptor, len(descriptors)),
		graph:       make(map[ServiceID][]ServiceID, len(descriptors)),
	}
	for _, d := range descriptors {
		v.descriptors[d.ServiceID] = d
		v.graph[d.ServiceID] = d.Dependencies
	}
	return v
}

// Validate runs all checks and returns the batched report. modules is
// optional and only used for the dangling-exports warning (check 5); pass
// nil when validating a bare descriptor set with no module layer.
func (v *Validator) Validate(tokens *TokenRegistry, modules []*ModuleDescriptor) ValidationReport {
	report := ValidationReport{ServiceCount: len(v.descriptors)}
	for _, deps := range v.graph {
		report.DependencyCount += len(deps)
	}

	// 1. Missing registration.
	report.Errors = append(report.Errors, v.checkMissingRegistrations()...)

	// 2. Cycle detection, also produces the advisory resolution order.
	// Unregistered dependencies are treated as leaves here (the missing
	// registration is already reported by check 1), so a cycle among the
	// registered nodes is still found even when other deps are dangling.
	order, cycleErr := v.topologicalSort()
	if cycleErr != nil {
		report.Errors = append(report.Errors, cycleErr)
	} else {
		report.ResolutionOrder = order
	}

	// 3. Lifetime compatibility.
	if errs := v.checkLifetimeCompatibility(); len(errs) > 0 {
		report.Errors = append(report.Errors, errs...)
	}

	// 4. Default-binding uniqueness for tokens. The registry structurally
	// rejects a second default at registration time (see tokens.go), so no
	// count is taken here; this step re-runs each stored binding's validity
	// rules instead, a defensive re-check analogous to the resolver's
	// belt-and-suspenders in-flight cycle guard (spec §4.6 step 2, §9).
	if tokens != nil {
		for _, problem := range tokens.ValidateAllBindings() {
			report.Errors = append(report.Errors, fmt.Errorf("%w: %s", ErrTokenBindingInvalid, problem))
		}
	}

	// 5. Dangling exports (warning, not fatal).
	report.Warnings = append(report.Warnings, v.checkDanglingExports(modules)...)

	report.IsValid = len(report.Errors) == 0
	return report
}

func (v *Validator) checkMissingRegistrations() []error {
	var errs []error
	for id, deps := range v.graph {
		for _, dep := range deps {
			if _, ok := v.descriptors[dep]; !ok {
				errs = append(errs, &MissingRegistrationError{Service: id, Dependency: dep})
			}
		}
	}
	return errs
}

// topologicalSort performs the tri-color DFS spec §4.5 item 2 describes,
// following original_source/container/validation.rs's detect_cycle: on a
// back-edge it splices the path from the back-edge target onward and
// appends the closing node, producing a human-readable cycle such as
// ["A","B","C","A"].
func (v *Validator) topologicalSort() ([]ServiceID, error) {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS stack
		black = 2 // fully processed
	)
	color := make(map[ServiceID]int, len(v.descriptors))
	var postOrder []ServiceID
	var path []ServiceID

	var visit func(id ServiceID) *CircularDependencyError
	visit = func(id ServiceID) *CircularDependencyError {
		color[id] = gray
		path = append(path, id)

		for _, dep := range v.graph[id] {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycleIDs := append([]ServiceID{}, path[start:]...)
				cycleIDs = append(cycleIDs, dep)
				names := make([]string, len(cycleIDs))
				for i, c := range cycleIDs {
					names[i] = c.TypeName()
				}
				return &CircularDependencyError{Cycle: names}
			}
		}

		color[id] = black
		path = path[:len(path)-1]
		postOrder = append(postOrder, id)
		return nil
	}

	// Deterministic iteration order keeps resolution_order reproducible
	// across runs, matching original_source/container/module.rs sorting
	// module ids before running calculate_load_order.
	ids := make([]ServiceID, 0, len(v.descriptors))
	for id := range v.descriptors {
		ids = append(ids, id)
	}
	sortServiceIDs(ids)

	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	return postOrder, nil
}

// checkLifetimeCompatibility implements spec §4.5 item 3's truth table
// literally: Scoped may not depend on Transient; Singleton may not depend
// on Scoped or Transient; Transient may depend on anything.
func (v *Validator) checkLifetimeCompatibility() []error {
	var errs []error
	for id, d := range v.descriptors {
		for _, dep := range d.Dependencies {
			depDesc, ok := v.descriptors[dep]
			if !ok {
				continue // already reported by checkMissingRegistrations
			}
			if !lifetimeCompatible(d.Lifetime, depDesc.Lifetime) {
				errs = append(errs, &LifetimeConflictError{
					Service:            id,
					ServiceLifetime:    d.Lifetime,
					Dependency:         dep,
					DependencyLifetime: depDesc.Lifetime,
				})
			}
		}
	}
	return errs
}

func lifetimeCompatible(service, dependency Lifetime) bool {
	switch service {
	case Singleton:
		return dependency == Singleton
	case Scoped:
		return dependency != Transient
	case Transient:
		return true
	default:
		return true
	}
}

func (v *Validator) checkDanglingExports(modules []*ModuleDescriptor) []string {
	var warnings []string
	for _, m := range modules {
		providerNames := make(map[string]bool, len(m.Providers))
		for _, p := range m.Providers {
			providerNames[p.ServiceName()] = true
		}
		for _, export := range m.Exports {
			if !providerNames[export] {
				warnings = append(warnings, fmt.Sprintf(
					"module %q exports %q but it is not among its providers", m.Name, export))
			}
		}
	}
	return warnings
}

func sortServiceIDs(ids []ServiceID) {
	// Simple insertion sort by String(): these slices are small (one per
	// registered service) and this keeps the dependency-free sort local
	// to the validator instead of pulling in "sort" for a single
	// comparator, mirroring the Rust source's plain alphabetical sort of
	// module ids before running its DFS.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1].String() > ids[j].String(); j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
