package compose

import (
	"fmt"
	"strings"
	"time"
)

// ProviderKind distinguishes the three provider declaration shapes a
// module manifest accepts (spec §4.7).
type ProviderKind int

const (
	// ProviderConcrete declares a bare service name, e.g. "UserService".
	ProviderConcrete ProviderKind = iota
	// ProviderTrait declares an abstract-to-concrete mapping,
	// e.g. "dyn EmailService => SmtpEmailService".
	ProviderTrait
	// ProviderNamed declares a named abstract-to-concrete mapping,
	// e.g. "dyn EmailService => SmtpEmailService @ smtp".
	ProviderNamed
)

// ProviderDecl is the parsed form of one provider manifest line. It is a
// declarative record used for module metadata, diagnostics, and the
// validator's dangling-export check (validator.go); the actual binding for a provider
// still happens through a Bind call in the module's Configure function,
// since Go has no runtime type-by-name lookup to drive registration off
// a bare string the way the original macro-based system does.
type ProviderDecl struct {
	Kind     ProviderKind
	Concrete string // ProviderConcrete
	Trait    string // ProviderTrait
	Impl     string // ProviderTrait, ProviderNamed
	Name     string // ProviderNamed
}

// ServiceName is the identifier the module's own Exports entries are
// matched against by the validator's dangling-export check: the
// concrete/impl name for concrete and named declarations,
// the trait name for trait declarations (consumers depend on the trait,
// not the implementation behind it).
func (p ProviderDecl) ServiceName() string {
	switch p.Kind {
	case ProviderTrait:
		return p.Trait
	case ProviderNamed:
		return p.Impl
	default:
		return p.Concrete
	}
}

// ParseProviderDecl parses one manifest line, following
// original_source/bootstrap/providers.rs's parse_provider_declaration
// grammar literally:
//
//	"UserService"                                  -> concrete
//	"dyn EmailService => SmtpEmailService"         -> trait mapping
//	"dyn EmailService => SmtpEmailService @ smtp"  -> named trait mapping
func ParseProviderDecl(s string) (ProviderDecl, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ProviderDecl{}, fmt.Errorf("compose: empty provider declaration")
	}

	arrow := strings.Index(s, " => ")
	if arrow < 0 {
		return ProviderDecl{Kind: ProviderConcrete, Concrete: s}, nil
	}

	traitPart := strings.TrimSpace(s[:arrow])
	implPart := strings.TrimSpace(s[arrow+4:])
	traitPart = strings.TrimPrefix(traitPart, "dyn ")
	traitPart = strings.TrimSpace(traitPart)

	if at := strings.Index(implPart, " @ "); at >= 0 {
		impl := strings.TrimSpace(implPart[:at])
		name := strings.TrimSpace(implPart[at+3:])
		return ProviderDecl{Kind: ProviderNamed, Trait: traitPart, Impl: impl, Name: name}, nil
	}
	return ProviderDecl{Kind: ProviderTrait, Trait: traitPart, Impl: implPart}, nil
}

// ModuleConfig carries per-module boot behavior (supplemented from
// original_source's ModuleConfig; auto_initialize is deliberately not
// carried forward, see SPEC_FULL.md).
type ModuleConfig struct {
	InitTimeout          time.Duration
	ValidateDependencies bool
}

// DefaultModuleConfig is applied to any ModuleDescriptor that leaves
// Config zero-valued.
func DefaultModuleConfig() ModuleConfig {
	return ModuleConfig{InitTimeout: 30 * time.Second, ValidateDependencies: true}
}

// ModuleDescriptor is a composable unit of providers, controllers, and
// cross-module wiring (C7, spec §4.7).
type ModuleDescriptor struct {
	Name        string
	Version     string
	Providers   []ProviderDecl
	Controllers []string
	Imports     []string
	Exports     []string
	Config      ModuleConfig

	// Configure performs the module's actual bindings against the shared
	// Builder. Implementations should tag every Bind call with
	// WithModule(name) so descriptors carry their owning module for the
	// encapsulation check below.
	Configure func(b *Builder) error

	// Initialize runs during the boot sequencer's Initialize phase
	// (C8); nil means the module has no startup work.
	Initialize func(c *Container) error
	// Shutdown runs during the boot sequencer's Shutdown phase, in
	// reverse module order, best-effort; nil means nothing to release.
	Shutdown func(c *Container) error
}

func (m *ModuleDescriptor) config() ModuleConfig {
	if m.Config == (ModuleConfig{}) {
		return DefaultModuleConfig()
	}
	return m.Config
}

// EncapsulationMode controls how strictly cross-module access to
// non-exported providers is treated, generalizing the teacher's
// migration-time EncapsulationMode/CheckEncapsulationViolation
// (libs/core/migration.go) from a package-level global into a
// per-composition setting, so two compositions in the same test binary
// never share enforcement state.
type EncapsulationMode int

const (
	// EncapsulationDisabled performs no cross-module export check.
	EncapsulationDisabled EncapsulationMode = iota
	// EncapsulationWarn logs a violation but still allows the binding.
	EncapsulationWarn
	// EncapsulationEnforce rejects the binding with an error.
	EncapsulationEnforce
)

// EncapsulationViolationError reports a service depending on another
// module's provider without that module importing/exporting it.
type EncapsulationViolationError struct {
	FromModule string
	ToModule   string
	Service    string
}

func (e *EncapsulationViolationError) Error() string {
	return fmt.Sprintf("compose: module %q cannot access unexported provider %q from module %q",
		e.FromModule, e.Service, e.ToModule)
}

// ModuleComposition flattens a set of ModuleDescriptors into a single
// Builder (spec §4.7: "concatenate then override, last writer wins").
type ModuleComposition struct {
	Mode   EncapsulationMode
	Logger Logger
}

// NewModuleComposition returns a composition with warn-level enforcement
// and the default ambient logger. The teacher defaults to
// EncapsulationDisabled (its pre-migration default); this defaults one
// notch stricter since this is native behavior here, not a migration aid.
func NewModuleComposition() *ModuleComposition {
	return &ModuleComposition{Mode: EncapsulationWarn, Logger: DefaultLogger()}
}

// Compose validates the import graph, runs every module's Configure in
// the order modules are given (the boot sequencer passes its load order;
// Compose does not sort them itself), applies any overrides last (so an override
// always wins regardless of module order), and checks cross-module
// export visibility over the resulting descriptor set.
func (mc *ModuleComposition) Compose(modules []*ModuleDescriptor, overrides ...func(*Builder) error) (*Builder, error) {
	byName := make(map[string]*ModuleDescriptor, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
	}
	for _, m := range modules {
		for _, imp := range m.Imports {
			if _, ok := byName[imp]; !ok {
				return nil, &MissingImportError{Module: imp, RequiredBy: m.Name}
			}
		}
	}

	b := NewBuilder()
	if mc.Logger != nil {
		b.WithLogger(mc.Logger)
	}

	for _, m := range modules {
		if m.Configure == nil {
			continue
		}
		if err := m.Configure(b); err != nil {
			return nil, fmt.Errorf("compose: module %q configure failed: %w", m.Name, err)
		}
	}
	for _, override := range overrides {
		if err := override(b); err != nil {
			return nil, fmt.Errorf("compose: override failed: %w", err)
		}
	}

	if err := mc.checkEncapsulation(b, modules); err != nil {
		return nil, err
	}
	return b, nil
}

// checkEncapsulation walks every descriptor's dependencies and flags any
// that cross a module boundary without the owning module exporting the
// dependency and the consuming module importing it.
func (mc *ModuleComposition) checkEncapsulation(b *Builder, modules []*ModuleDescriptor) error {
	if mc.Mode == EncapsulationDisabled {
		return nil
	}

	exportsByModule := make(map[string]map[string]bool, len(modules))
	importsByModule := make(map[string]map[string]bool, len(modules))
	for _, m := range modules {
		exports := make(map[string]bool, len(m.Exports))
		for _, e := range m.Exports {
			exports[e] = true
		}
		exportsByModule[m.Name] = exports

		imports := make(map[string]bool, len(m.Imports))
		for _, i := range m.Imports {
			imports[i] = true
		}
		importsByModule[m.Name] = imports
	}

	for _, d := range b.Descriptors() {
		if d.ModuleName == "" {
			continue
		}
		for _, depID := range d.Dependencies {
			dep, ok := b.descriptors[depID]
			if !ok || dep.ModuleName == "" || dep.ModuleName == d.ModuleName {
				continue
			}
			if !importsByModule[d.ModuleName][dep.ModuleName] || !exportsByModule[dep.ModuleName][depID.TypeName()] {
				err := &EncapsulationViolationError{
					FromModule: d.ModuleName,
					ToModule:   dep.ModuleName,
					Service:    depID.TypeName(),
				}
				if mc.Mode == EncapsulationWarn {
					mc.Logger.Warn("compose: %v", err)
					continue
				}
				return err
			}
		}
	}
	return nil
}
