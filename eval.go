// eval.go: dedicated tree-walking evaluator for validated policy bodies.
//
// The evaluator knows how to execute the allow-listed node tags and nothing
// else; there is no delegation to any host-language dynamic evaluator, so a
// construct outside the allow-list has no execution path at all. Hard
// failures travel as panics carrying *EvalError and are recovered at the
// invocation boundary (invoke.go), the interpreter-internal idiom of this
// codebase, and never escape to the caller as panics.
//
// Cost model: every node evaluation burns one step from a per-invocation
// budget, and every policy-function call frame counts against a depth limit.
// Loops and comprehensions are already rejected by the validator, so the
// meters exist to bound the one legal source of unbounded work: recursion.
package policyscript

import (
	"fmt"
	"math"
)

// EvalReason is the machine-readable class of a runtime failure.
type EvalReason string

const (
	EvalArity       EvalReason = "arity"
	EvalType        EvalReason = "type"
	EvalNonFinite   EvalReason = "non_finite"
	EvalMissingKey  EvalReason = "missing_key"
	EvalStepBudget  EvalReason = "step_budget"
	EvalCallDepth   EvalReason = "call_depth"
	EvalMath        EvalReason = "math"
	EvalOutputShape EvalReason = "output_shape"
	EvalName        EvalReason = "name"
)

// EvalError is a recoverable per-invocation failure. The simulation loop
// treats it as "no decision this tick", never as a crash.
type EvalError struct {
	Reason EvalReason
	Msg    string
	Line   int
	Col    int
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("EVAL ERROR at %d:%d: %s (reason %s)", e.Line, e.Col, e.Msg, e.Reason)
	}
	return fmt.Sprintf("EVAL ERROR: %s (reason %s)", e.Msg, e.Reason)
}

// internal panic signals
type returnSig struct{ v Value }
type evalAbort struct{ err *EvalError }

// selfFn makes the policy function callable from its own body.
type selfFn struct{ pol *Policy }

type evaluator struct {
	pol      *Policy
	steps    int
	maxDepth int
	depth    int
}

func (e *evaluator) failf(at *Node, reason EvalReason, format string, args ...any) {
	ee := &EvalError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
	if at != nil {
		ee.Line, ee.Col = at.Line, at.Col
	}
	panic(evalAbort{ee})
}

// step charges one unit of budget for evaluating a node.
func (e *evaluator) step(at *Node) {
	e.steps--
	if e.steps < 0 {
		e.failf(at, EvalStepBudget, "step budget exhausted")
	}
}

// ----- statements -----

func (e *evaluator) execBlock(n *Node, env *Env) {
	for _, st := range n.Kids {
		e.exec(st, env)
	}
}

func (e *evaluator) exec(n *Node, env *Env) {
	e.step(n)
	switch n.Tag {
	case "block":
		e.execBlock(n, env)
	case "pass":
		// no effect
	case "return":
		if len(n.Kids) == 0 {
			panic(returnSig{NoneVal()})
		}
		panic(returnSig{e.eval(n.Kids[0], env)})
	case "if":
		for _, k := range n.Kids {
			switch k.Tag {
			case "branch":
				if e.eval(k.Kids[0], env).Truthy() {
					e.execBlock(k.Kids[1], env)
					return
				}
			case "else":
				e.execBlock(k.Kids[0], env)
				return
			}
		}
	case "assign":
		env.Define(n.Kids[0].Lit.(string), e.eval(n.Kids[1], env))
	case "augassign":
		name := n.Kids[0].Lit.(string)
		cur, ok := env.Get(name)
		if !ok {
			e.failf(n.Kids[0], EvalName, "name %q referenced before assignment", name)
		}
		op := n.Lit.(string)
		e.setBin(n, env, name, cur, op[:len(op)-1], e.eval(n.Kids[1], env))
	case "exprstmt":
		e.eval(n.Kids[0], env)
	default:
		e.failf(n, EvalType, "unsupported construct %q", n.Tag)
	}
}

func (e *evaluator) setBin(n *Node, env *Env, name string, lhs Value, op string, rhs Value) {
	env.Define(name, e.binop(n, op, lhs, rhs))
}

// ----- expressions -----

func (e *evaluator) eval(n *Node, env *Env) Value {
	e.step(n)
	switch n.Tag {
	case "num":
		return Num(n.Lit.(float64))
	case "str":
		return Str(n.Lit.(string))
	case "bool":
		return Bool(n.Lit.(bool))
	case "none":
		return NoneVal()
	case "name":
		id := n.Lit.(string)
		v, ok := env.Get(id)
		if !ok {
			e.failf(n, EvalName, "name %q referenced before assignment", id)
		}
		return v
	case "binop":
		lhs := e.eval(n.Kids[0], env)
		rhs := e.eval(n.Kids[1], env)
		return e.binop(n, n.Lit.(string), lhs, rhs)
	case "unop":
		return e.unop(n, env)
	case "boolop":
		lhs := e.eval(n.Kids[0], env)
		if n.Lit.(string) == "and" {
			if !lhs.Truthy() {
				return lhs
			}
			return e.eval(n.Kids[1], env)
		}
		if lhs.Truthy() {
			return lhs
		}
		return e.eval(n.Kids[1], env)
	case "compare":
		return e.compare(n, env)
	case "ifexp":
		if e.eval(n.Kids[0], env).Truthy() {
			return e.eval(n.Kids[1], env)
		}
		return e.eval(n.Kids[2], env)
	case "call":
		return e.evalCall(n, env)
	case "attr":
		return e.evalAttr(n, env)
	case "index":
		return e.evalIndex(n, env)
	case "dict":
		m := make(map[string]Value, len(n.Kids))
		for _, pair := range n.Kids {
			k := e.eval(pair.Kids[0], env)
			if k.Tag != VTStr {
				e.failf(pair.Kids[0], EvalType, "mapping keys must be strings, got %s", k.Tag)
			}
			m[k.Data.(string)] = e.eval(pair.Kids[1], env)
		}
		return MapVal(m)
	}
	e.failf(n, EvalType, "unsupported construct %q", n.Tag)
	return Value{}
}

func (e *evaluator) unop(n *Node, env *Env) Value {
	v := e.eval(n.Kids[0], env)
	switch n.Lit.(string) {
	case "not":
		return Bool(!v.Truthy())
	case "-":
		if v.Tag != VTNum {
			e.failf(n, EvalType, "unary '-' needs a number, got %s", v.Tag)
		}
		return Num(-v.Data.(float64))
	case "+":
		if v.Tag != VTNum {
			e.failf(n, EvalType, "unary '+' needs a number, got %s", v.Tag)
		}
		return v
	}
	e.failf(n, EvalType, "unknown unary operator")
	return Value{}
}

func (e *evaluator) binop(n *Node, op string, lhs, rhs Value) Value {
	if op == "+" && lhs.Tag == VTStr && rhs.Tag == VTStr {
		return Str(lhs.Data.(string) + rhs.Data.(string))
	}
	if lhs.Tag != VTNum || rhs.Tag != VTNum {
		e.failf(n, EvalType, "operator %q needs numbers, got %s and %s", op, lhs.Tag, rhs.Tag)
	}
	a, b := lhs.Data.(float64), rhs.Data.(float64)
	var r float64
	switch op {
	case "+":
		r = a + b
	case "-":
		r = a - b
	case "*":
		r = a * b
	case "/":
		if b == 0 {
			e.failf(n, EvalMath, "division by zero")
		}
		r = a / b
	case "//":
		if b == 0 {
			e.failf(n, EvalMath, "division by zero")
		}
		r = math.Floor(a / b)
	case "%":
		if b == 0 {
			e.failf(n, EvalMath, "modulo by zero")
		}
		r = math.Mod(a, b)
		// match the source language: result takes the sign of the divisor
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
	case "**":
		r = math.Pow(a, b)
	default:
		e.failf(n, EvalType, "unknown operator %q", op)
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		e.failf(n, EvalNonFinite, "operator %q produced a non-finite result", op)
	}
	return Num(r)
}

func (e *evaluator) compare(n *Node, env *Env) Value {
	ops := n.Lit.([]string)
	lhs := e.eval(n.Kids[0], env)
	for i, op := range ops {
		rhs := e.eval(n.Kids[i+1], env)
		if !e.comparePair(n, op, lhs, rhs) {
			return Bool(false)
		}
		lhs = rhs
	}
	return Bool(true)
}

func (e *evaluator) comparePair(n *Node, op string, lhs, rhs Value) bool {
	switch op {
	case "==", "is":
		return lhs.Equal(rhs)
	case "!=", "is not":
		return !lhs.Equal(rhs)
	case "in", "not in":
		if rhs.Tag != VTMap || lhs.Tag != VTStr {
			e.failf(n, EvalType, "%q needs a string key and a mapping", op)
		}
		_, ok := rhs.Data.(map[string]Value)[lhs.Data.(string)]
		if op == "not in" {
			return !ok
		}
		return ok
	}
	// ordering comparisons
	if lhs.Tag == VTStr && rhs.Tag == VTStr {
		a, b := lhs.Data.(string), rhs.Data.(string)
		switch op {
		case "<":
			return a < b
		case "<=":
			return a <= b
		case ">":
			return a > b
		case ">=":
			return a >= b
		}
	}
	if lhs.Tag != VTNum || rhs.Tag != VTNum {
		e.failf(n, EvalType, "operator %q needs numbers, got %s and %s", op, lhs.Tag, rhs.Tag)
	}
	a, b := lhs.Data.(float64), rhs.Data.(float64)
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	e.failf(n, EvalType, "unknown comparison %q", op)
	return false
}

func (e *evaluator) evalIndex(n *Node, env *Env) Value {
	obj := e.eval(n.Kids[0], env)
	key := e.eval(n.Kids[1], env)
	if obj.Tag != VTMap {
		e.failf(n, EvalType, "subscript needs a mapping, got %s", obj.Tag)
	}
	if key.Tag != VTStr {
		e.failf(n.Kids[1], EvalType, "mapping keys are strings, got %s", key.Tag)
	}
	v, ok := obj.Data.(map[string]Value)[key.Data.(string)]
	if !ok {
		e.failf(n.Kids[1], EvalMissingKey, "unknown key %q", key.Data.(string))
	}
	return v
}

// evalAttr resolves attribute access. The only object with attributes in the
// sandbox is the rng handle, whose methods come back as bound callables.
func (e *evaluator) evalAttr(n *Node, env *Env) Value {
	obj := e.eval(n.Kids[0], env)
	if obj.Tag != VTRand {
		e.failf(n, EvalType, "attribute access is only available on the rng handle, got %s", obj.Tag)
	}
	rng := obj.Data.(Rand)
	name := n.Lit.(string)
	switch name {
	case "random":
		return rngMethod(name, 0, func(a []float64) float64 { return rng.Float64() })
	case "uniform":
		return rngMethod(name, 2, func(a []float64) float64 { return a[0] + (a[1]-a[0])*rng.Float64() })
	case "gauss":
		return rngMethod(name, 2, func(a []float64) float64 { return a[0] + a[1]*rng.NormFloat64() })
	}
	e.failf(n, EvalType, "rng has no method %q", name)
	return Value{}
}

func rngMethod(name string, arity int, fn func([]float64) float64) Value {
	return Value{Tag: VTFun, Data: &builtinFn{
		name:  "rng." + name,
		arity: arity,
		fn:    func(_ *evaluator, _ *Node, args []float64) float64 { return fn(args) },
	}}
}

func (e *evaluator) evalCall(n *Node, env *Env) Value {
	callee := e.eval(n.Kids[0], env)
	args := make([]Value, 0, len(n.Kids)-1)
	for _, a := range n.Kids[1:] {
		args = append(args, e.eval(a, env))
	}
	switch fn := callee.Data.(type) {
	case *builtinFn:
		return e.callBuiltin(n, fn, args)
	case *selfFn:
		return e.callPolicy(n, fn.pol, args)
	}
	e.failf(n, EvalType, "value of type %s is not callable", callee.Tag)
	return Value{}
}

func (e *evaluator) callBuiltin(n *Node, fn *builtinFn, args []Value) Value {
	if fn.arity >= 0 && len(args) != fn.arity {
		e.failf(n, EvalArity, "%s takes %d arguments, got %d", fn.name, fn.arity, len(args))
	}
	if fn.arity < 0 && len(args) == 0 {
		e.failf(n, EvalArity, "%s takes at least one argument", fn.name)
	}
	nums := make([]float64, len(args))
	for i, a := range args {
		if a.Tag != VTNum {
			e.failf(n, EvalType, "%s argument %d must be a number, got %s", fn.name, i+1, a.Tag)
		}
		nums[i] = a.Data.(float64)
	}
	r := fn.fn(e, n, nums)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		e.failf(n, EvalNonFinite, "%s produced a non-finite result", fn.name)
	}
	return Num(r)
}

// callPolicy runs the policy body for a recursive self-call.
func (e *evaluator) callPolicy(n *Node, pol *Policy, args []Value) Value {
	if len(args) != len(pol.Params) {
		e.failf(n, EvalArity, "%s takes %d arguments, got %d", pol.Name, len(pol.Params), len(args))
	}
	e.depth++
	if e.depth > e.maxDepth {
		e.failf(n, EvalCallDepth, "call depth limit exceeded")
	}
	defer func() { e.depth-- }()

	frame := NewEnv(pol.selfEnv())
	for i, p := range pol.Params {
		frame.Define(p, args[i])
	}
	return e.runBody(pol.Body, frame)
}

// runBody executes a block and converts its return signal into a value.
// Falling off the end of the body yields None, like the source language.
func (e *evaluator) runBody(body *Node, frame *Env) (out Value) {
	defer func() {
		if r := recover(); r != nil {
			if sig, ok := r.(returnSig); ok {
				out = sig.v
				return
			}
			panic(r)
		}
	}()
	e.execBlock(body, frame)
	return NoneVal()
}
