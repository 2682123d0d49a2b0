// sandbox.go: the assembled subsystem: pool + store + budgets + telemetry.
//
// Two surfaces, matching the two external collaborators:
//
//   - the training/evolution producer registers source text through
//     RegisterComponent, the only way new components enter the pool; the
//     sandbox never authors code itself;
//   - the simulation loop resolves a genome trait and invokes its policy
//     through ResolveAndInvoke, which answers "no decision" instead of
//     erroring so a bad policy can never abort a tick.
//
// The Sandbox is an explicit, constructed, injectable object: created at
// process start, passed by reference, closed at process end. There is no
// package-level mutable state.
package policyscript

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/primordium/policyscript/genome"
)

// Sandbox owns a code pool and its collaborators.
type Sandbox struct {
	cfg     Config
	pool    *Pool
	store   ComponentStore
	log     *slog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	latest map[string]int // component id -> newest registered version
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithConfig overrides the default budgets.
func WithConfig(cfg Config) Option { return func(s *Sandbox) { s.cfg = cfg.withDefaults() } }

// WithStore attaches a durable component registry. Registrations write
// through to it and Rehydrate rebuilds the pool from it.
func WithStore(st ComponentStore) Option { return func(s *Sandbox) { s.store = st } }

// WithLogger sets the logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Sandbox) { s.log = l } }

// WithMetrics attaches Prometheus collectors; absent means no-op.
func WithMetrics(m *Metrics) Option { return func(s *Sandbox) { s.metrics = m } }

// NewSandbox assembles a sandbox with the given options.
func NewSandbox(opts ...Option) *Sandbox {
	s := &Sandbox{
		cfg:    DefaultConfig(),
		latest: map[string]int{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.pool = NewPool(s.cfg, s.metrics)
	return s
}

// Pool exposes the underlying cache, mainly for tests and tooling.
func (s *Sandbox) Pool() *Pool { return s.pool }

// RegisterComponent validates, compiles, and caches a component, then writes
// it through to the store when one is attached. It is idempotent for
// identical source; a rejected snippet changes nothing and the returned
// *CompileError names the violated construct.
func (s *Sandbox) RegisterComponent(ctx context.Context, id string, version int, src string) error {
	key := ComponentKey{ID: id, Version: version}
	if _, err := s.pool.GetOrCompile(key, src); err != nil {
		s.log.Error("component rejected", "component", key.String(), "err", err)
		return err
	}
	if s.store != nil {
		if err := s.store.Put(ctx, Component{ID: id, Version: version, Source: src}); err != nil {
			return fmt.Errorf("persist component %s: %w", key, err)
		}
	}
	s.mu.Lock()
	if cur, ok := s.latest[id]; !ok || version > cur {
		s.latest[id] = version
	}
	s.mu.Unlock()
	s.metrics.registration()
	s.log.Info("component registered", "component", key.String())
	return nil
}

// Rehydrate recompiles every stored component into the pool. Components that
// no longer validate are skipped with a logged error rather than aborting
// startup.
func (s *Sandbox) Rehydrate(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	comps, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("rehydrate: %w", err)
	}
	for _, c := range comps {
		if _, err := s.pool.GetOrCompile(c.Key(), c.Source); err != nil {
			s.log.Error("stored component no longer compiles", "component", c.Key().String(), "err", err)
			continue
		}
		s.mu.Lock()
		if cur, ok := s.latest[c.ID]; !ok || c.Version > cur {
			s.latest[c.ID] = c.Version
		}
		s.mu.Unlock()
	}
	return nil
}

// Resolve maps a component id to its newest registered policy.
func (s *Sandbox) Resolve(id string) (*Policy, bool) {
	s.mu.RLock()
	version, ok := s.latest[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.pool.Lookup(ComponentKey{ID: id, Version: version})
}

// ResolveAndInvoke runs the policy a trait references. It returns
// (nil, false) when the trait is absent, the component is unregistered, or
// the invocation fails: never an error, never a panic. Failures are counted
// and logged so they stay observable without touching the tick.
func (s *Sandbox) ResolveAndInvoke(tr genome.CodePolicyTrait, inputs map[string]float64, rng Rand) (map[string]float64, bool) {
	if !tr.Present() {
		return nil, false
	}
	pol, ok := s.Resolve(tr.ComponentID)
	if !ok {
		s.metrics.unresolvedComponent()
		s.log.Warn("trait references unregistered component", "component_id", tr.ComponentID, "kind", tr.Kind)
		return nil, false
	}
	out, err := pol.Invoke(inputs, tr.Params, rng)
	if err != nil {
		reason := EvalType
		if ee, ok := err.(*EvalError); ok {
			reason = ee.Reason
		}
		s.metrics.invokeError(reason)
		s.log.Warn("policy produced no decision",
			"component", pol.Key.String(), "kind", tr.Kind, "reason", string(reason), "err", err)
		return nil, false
	}
	return out, true
}

// Close releases the store, if any.
func (s *Sandbox) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
