// builtins.go: the frozen global environment policies execute against.
//
// This is everything a policy can see beyond its three arguments: a fixed
// set of deterministic numeric builtins and two constants. The environment
// is built once at package init, never written afterwards, and shared by
// every invocation; concurrent reads are safe because nothing mutates it.
// No name here reaches the pool, the file system, or the process
// environment.
package policyscript

import (
	"fmt"
	"math"
)

// globalWhitelist is the validator's view of the global environment: the set
// of names a snippet may reference without defining them.
var globalWhitelist = map[string]bool{
	"abs": true, "min": true, "max": true, "round": true,
	"floor": true, "ceil": true, "sqrt": true, "exp": true, "log": true,
	"pow": true, "sin": true, "cos": true, "tan": true, "tanh": true,
	"clamp": true, "pi": true, "e": true,
}

// builtinFn is a native function exposed to policies. arity < 0 means
// variadic with at least one argument.
type builtinFn struct {
	name  string
	arity int
	fn    func(e *evaluator, at *Node, args []float64) float64
}

var globalEnv = buildGlobals()

func buildGlobals() *Env {
	env := NewEnv(nil)
	def := func(name string, arity int, fn func(e *evaluator, at *Node, args []float64) float64) {
		env.vars[name] = Value{Tag: VTFun, Data: &builtinFn{name: name, arity: arity, fn: fn}}
	}

	def("abs", 1, func(_ *evaluator, _ *Node, a []float64) float64 { return math.Abs(a[0]) })
	def("round", 1, func(_ *evaluator, _ *Node, a []float64) float64 { return math.RoundToEven(a[0]) })
	def("floor", 1, func(_ *evaluator, _ *Node, a []float64) float64 { return math.Floor(a[0]) })
	def("ceil", 1, func(_ *evaluator, _ *Node, a []float64) float64 { return math.Ceil(a[0]) })
	def("exp", 1, func(_ *evaluator, _ *Node, a []float64) float64 { return math.Exp(a[0]) })
	def("sin", 1, func(_ *evaluator, _ *Node, a []float64) float64 { return math.Sin(a[0]) })
	def("cos", 1, func(_ *evaluator, _ *Node, a []float64) float64 { return math.Cos(a[0]) })
	def("tan", 1, func(_ *evaluator, _ *Node, a []float64) float64 { return math.Tan(a[0]) })
	def("tanh", 1, func(_ *evaluator, _ *Node, a []float64) float64 { return math.Tanh(a[0]) })
	def("pow", 2, func(_ *evaluator, _ *Node, a []float64) float64 { return math.Pow(a[0], a[1]) })

	def("sqrt", 1, func(e *evaluator, at *Node, a []float64) float64 {
		if a[0] < 0 {
			e.failf(at, EvalMath, "sqrt of negative number %g", a[0])
		}
		return math.Sqrt(a[0])
	})
	def("log", 1, func(e *evaluator, at *Node, a []float64) float64 {
		if a[0] <= 0 {
			e.failf(at, EvalMath, "log of non-positive number %g", a[0])
		}
		return math.Log(a[0])
	})
	def("clamp", 3, func(e *evaluator, at *Node, a []float64) float64 {
		x, lo, hi := a[0], a[1], a[2]
		if lo > hi {
			e.failf(at, EvalMath, "clamp bounds inverted: %g > %g", lo, hi)
		}
		return math.Min(math.Max(x, lo), hi)
	})
	def("min", -1, func(_ *evaluator, _ *Node, a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	})
	def("max", -1, func(_ *evaluator, _ *Node, a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	})

	env.vars["pi"] = Num(math.Pi)
	env.vars["e"] = Num(math.E)

	// invariant: every callable and constant defined above must be known to
	// the validator, and vice versa
	for name := range env.vars {
		if !globalWhitelist[name] {
			panic(fmt.Sprintf("global %q missing from whitelist", name))
		}
	}
	for name := range globalWhitelist {
		if _, ok := env.vars[name]; !ok {
			panic(fmt.Sprintf("whitelisted name %q has no binding", name))
		}
	}
	return env
}
