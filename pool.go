// pool.go: the code pool: a keyed cache of compiled policies.
//
// Reads are cheap and concurrent (RLock only). The compile-on-miss path runs
// under singleflight so that at most one compilation executes per key no
// matter how many ticks or genome constructions race for it; losers converge
// on the winner's result. A cache entry, once written, is never recompiled
// or replaced; source text is immutable per key, so the first writer wins
// and everyone else hits.
//
// Eviction is deliberately absent: components unreferenced by any live
// genome keep their slot. Pruning belongs to a future garbage-collection
// pass over the population, not to the pool.
package policyscript

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Pool caches compiled policies by component key.
type Pool struct {
	cfg     Config
	metrics *Metrics

	mu      sync.RWMutex
	entries map[ComponentKey]*Policy

	sf singleflight.Group
}

// NewPool creates an empty pool. metrics may be nil.
func NewPool(cfg Config, metrics *Metrics) *Pool {
	return &Pool{
		cfg:     cfg.withDefaults(),
		metrics: metrics,
		entries: map[ComponentKey]*Policy{},
	}
}

// Lookup returns the compiled policy for key, if present. Never compiles.
func (p *Pool) Lookup(key ComponentKey) (*Policy, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pol, ok := p.entries[key]
	return pol, ok
}

// Len reports the number of cached policies.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// GetOrCompile returns the cached policy for key, compiling src on a miss.
// Registering the same (key, src) twice is idempotent; registering a key
// with different source is a *CompileError wrapping ErrSourceMismatch. A
// failed compile leaves the pool unchanged.
func (p *Pool) GetOrCompile(key ComponentKey, src string) (*Policy, error) {
	if pol, ok := p.Lookup(key); ok {
		if !pol.sameSource(src) {
			return nil, &CompileError{Key: key, Err: ErrSourceMismatch}
		}
		p.metrics.compileHit()
		return pol, nil
	}

	v, err, _ := p.sf.Do(key.String(), func() (any, error) {
		// a racing winner may have filled the entry while we queued
		if pol, ok := p.Lookup(key); ok {
			return pol, nil
		}
		p.metrics.compileMiss()
		pol, err := Compile(key, src, p.cfg)
		if err != nil {
			p.metrics.compileFailure()
			return nil, &CompileError{Key: key, Err: err}
		}
		p.mu.Lock()
		p.entries[key] = pol
		p.mu.Unlock()
		return pol, nil
	})
	if err != nil {
		return nil, err
	}
	pol := v.(*Policy)
	if !pol.sameSource(src) {
		return nil, &CompileError{Key: key, Err: ErrSourceMismatch}
	}
	return pol, nil
}
