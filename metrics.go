// metrics.go: observability counters for the sandbox.
//
// Per-tick evaluation failures must be visible without ever aborting a tick,
// so they are counted here and logged by the facade. All methods are safe on
// a nil *Metrics, which is the no-op configuration.
package policyscript

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sandbox's Prometheus collectors.
type Metrics struct {
	compileHits     prometheus.Counter
	compileMisses   prometheus.Counter
	compileFailures prometheus.Counter
	registrations   prometheus.Counter
	invokeErrors    *prometheus.CounterVec
	unresolved      prometheus.Counter
}

// NewMetrics registers the sandbox collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		compileHits: f.NewCounter(prometheus.CounterOpts{
			Name: "policyscript_compile_cache_hits_total",
			Help: "Pool lookups served from the compiled-policy cache.",
		}),
		compileMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "policyscript_compile_cache_misses_total",
			Help: "Pool lookups that triggered a compilation.",
		}),
		compileFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "policyscript_compile_failures_total",
			Help: "Registrations rejected by the validator or parser.",
		}),
		registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "policyscript_component_registrations_total",
			Help: "Components accepted into the pool.",
		}),
		invokeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "policyscript_invoke_errors_total",
			Help: "Policy invocations that produced no decision, by reason.",
		}, []string{"reason"}),
		unresolved: f.NewCounter(prometheus.CounterOpts{
			Name: "policyscript_unresolved_components_total",
			Help: "Trait references to components absent from the pool.",
		}),
	}
}

func (m *Metrics) compileHit() {
	if m != nil {
		m.compileHits.Inc()
	}
}

func (m *Metrics) compileMiss() {
	if m != nil {
		m.compileMisses.Inc()
	}
}

func (m *Metrics) compileFailure() {
	if m != nil {
		m.compileFailures.Inc()
	}
}

func (m *Metrics) registration() {
	if m != nil {
		m.registrations.Inc()
	}
}

func (m *Metrics) invokeError(reason EvalReason) {
	if m != nil {
		m.invokeErrors.WithLabelValues(string(reason)).Inc()
	}
}

func (m *Metrics) unresolvedComponent() {
	if m != nil {
		m.unresolved.Inc()
	}
}
