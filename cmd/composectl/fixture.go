package main

import "github.com/doffcore/compose/libs/compose"

// catalogService and its dependents give every subcommand something real
// to build and introspect: composectl operates on an actual Container,
// not a static source scan, so it needs a composition to stand one up
// against. A future version would load the target service's own
// bootstrap package instead of this fixture.

type catalogInternal struct{}

func newCatalogInternal() *catalogInternal { return &catalogInternal{} }

type catalogService struct {
	internal *catalogInternal
}

func newCatalogService(internal *catalogInternal) *catalogService {
	return &catalogService{internal: internal}
}

type orderService struct {
	catalog *catalogService
}

func newOrderService(catalog *catalogService) *orderService {
	return &orderService{catalog: catalog}
}

func fixtureRegistry() *compose.ModuleRegistry {
	registry := compose.NewModuleRegistry(compose.NoopLogger())

	_ = registry.Register(&compose.ModuleDescriptor{
		Name:    "catalog",
		Exports: []string{"catalogService"},
		Configure: func(b *compose.Builder) error {
			if err := compose.Bind[*catalogInternal](b, newCatalogInternal,
			compose.WithLifetime(compose.Singleton), compose.WithModule("catalog")); err != nil {
				return err
			}
			return compose.Bind[*catalogService](b, newCatalogService, compose.WithModule("catalog"))
		},
	})
	_ = registry.Register(&compose.ModuleDescriptor{
		Name:    "orders",
		Imports: []string{"catalog"},
		Exports: []string{"orderService"},
		Configure: func(b *compose.Builder) error {
			return compose.Bind[*orderService](b, newOrderService, compose.WithModule("orders"))
		},
	})
	return registry
}

// buildFixtureContainer runs the fixture composition through the full
// Configure/Build pipeline, returning the container the other
// subcommands introspect.
func buildFixtureContainer() (*compose.Container, error) {
	sequencer := compose.NewBootSequencer(fixtureRegistry(), compose.NewModuleComposition())
	b, err := sequencer.Configure()
	if err != nil {
		return nil, err
	}
	return sequencer.Build(b)
}
