package compose

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wires the composition core into Prometheus (DOMAIN STACK:
// resolve-call counters per lifetime, module-initialize-duration
// histogram). It is optional: a Container with no Metrics attached
// simply skips every call below.
type Metrics struct {
	resolves        *prometheus.CounterVec
	moduleInitTimes prometheus.Histogram
}

// NewMetrics registers the composition core's collectors on reg and
// returns a handle for Builder.WithMetrics / BootSequencer use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compose",
			Name:      "resolves_total",
			Help:      "Number of Resolve calls, partitioned by service lifetime.",
		}, []string{"lifetime"}),
		moduleInitTimes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "compose",
			Name:      "module_initialize_seconds",
			Help:      "Wall-clock duration of each module's Initialize callback.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.resolves, m.moduleInitTimes)
	return m
}

// ObserveResolve increments the per-lifetime resolve counter.
func (m *Metrics) ObserveResolve(l Lifetime) {
	m.resolves.WithLabelValues(l.String()).Inc()
}

// ObserveModuleInitialize records how long a module's Initialize took.
func (m *Metrics) ObserveModuleInitialize(d time.Duration) {
	m.moduleInitTimes.Observe(d.Seconds())
}

// BindingInfo is one entry of an IntrospectionReport's binding list.
type BindingInfo struct {
	ServiceID  string
	Lifetime   Lifetime
	Activation ActivationKind
	ModuleName string
}

// IntrospectionReport summarizes a built Container for diagnostics and
// the composectl CLI (spec §6): service count, every binding with its
// lifetime, the validator's resolution order and warnings, and token
// registry stats.
type IntrospectionReport struct {
	ServiceCount    int
	Bindings        []BindingInfo
	ResolutionOrder []string
	Warnings        []string
	Tokens          TokenRegistryStats
}

// Introspect builds the report for c.
func Introspect(c *Container) IntrospectionReport {
	report := IntrospectionReport{
		ServiceCount: len(c.descriptors),
		Warnings:     c.report.Warnings,
	}
	for _, id := range c.report.ResolutionOrder {
		report.ResolutionOrder = append(report.ResolutionOrder, id.String())
	}
	for _, d := range c.descriptors {
		report.Bindings = append(report.Bindings, BindingInfo{
			ServiceID:  d.ServiceID.String(),
			Lifetime:   d.Lifetime,
			Activation: d.Activation,
			ModuleName: d.ModuleName,
		})
	}
	if c.tokens != nil {
		report.Tokens = c.tokens.Stats()
	}
	return report
}
