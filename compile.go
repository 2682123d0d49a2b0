// compile.go: turns validated snippets into invocable policies.
package policyscript

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// ComponentKey identifies an immutable registered component. A new version
// is a new component; source text never changes under an existing key.
type ComponentKey struct {
	ID      string
	Version int
}

func (k ComponentKey) String() string { return fmt.Sprintf("%s@%d", k.ID, k.Version) }

// ErrSourceTooLarge rejects snippets over the configured size ceiling before
// any parsing happens.
var ErrSourceTooLarge = errors.New("source text exceeds the configured size limit")

// ErrSourceMismatch reports a registration whose source text differs from
// the text already compiled under the same key.
var ErrSourceMismatch = errors.New("source text differs from the component already registered under this key")

// CompileError is a terminal registration failure: a parse error, a sandbox
// violation, or a registration-contract breach. The pool is left unchanged.
type CompileError struct {
	Key ComponentKey
	Err error
}

func (e *CompileError) Error() string { return fmt.Sprintf("compile %s: %v", e.Key, e.Err) }
func (e *CompileError) Unwrap() error { return e.Err }

// Policy is a compiled, immutable policy function. It holds no mutable
// state: invocations share only read-only structure, so a single Policy is
// safe to invoke from many goroutines in the same tick.
type Policy struct {
	Key    ComponentKey
	Name   string   // declared function name
	Params []string // the three declared parameter names
	Body   *Node

	cfg     Config
	src     string
	srcHash [sha256.Size]byte
	self    *Env // frozen: globals plus the function's own name, for recursion
}

// Compile validates src and binds it into a Policy using the given budgets.
// The returned error is a *LexError, *ParseError, *Violation, or
// ErrSourceTooLarge; wrapping it per component is the pool's job.
func Compile(key ComponentKey, src string, cfg Config) (*Policy, error) {
	cfg = cfg.withDefaults()
	if cfg.MaxSourceBytes > 0 && len(src) > cfg.MaxSourceBytes {
		return nil, ErrSourceTooLarge
	}
	vp, err := ValidateSource(src)
	if err != nil {
		return nil, err
	}
	p := &Policy{
		Key:     key,
		Name:    vp.Name,
		Params:  vp.Params,
		Body:    vp.Body,
		cfg:     cfg,
		src:     src,
		srcHash: sha256.Sum256([]byte(src)),
	}
	p.self = NewEnv(globalEnv)
	p.self.Define(p.Name, Value{Tag: VTFun, Data: &selfFn{pol: p}})
	return p, nil
}

// Source returns the original snippet text.
func (p *Policy) Source() string { return p.src }

func (p *Policy) selfEnv() *Env { return p.self }

// sameSource reports whether src is byte-identical to the compiled text.
func (p *Policy) sameSource(src string) bool {
	return p.srcHash == sha256.Sum256([]byte(src))
}
