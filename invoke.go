// invoke.go: policy invocation.
package policyscript

import "math"

// Invoke runs the policy with explicit inputs, tunable parameters, and an
// explicit random source. Given identical arguments and an identical stream
// consumed from rng, the output is bit-identical on any run and any machine.
//
// Failures come back as *EvalError and never as panics; the caller treats
// them as "no decision this tick". The argument maps are copied on entry and
// the result map is freshly allocated, so no state is shared across
// invocations or entities.
func (p *Policy) Invoke(inputs, params map[string]float64, rng Rand) (map[string]float64, error) {
	e := &evaluator{
		pol:      p,
		steps:    p.cfg.MaxSteps,
		maxDepth: p.cfg.MaxCallDepth,
	}

	var ret Value
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				if ab, ok := r.(evalAbort); ok {
					err = ab.err
					return
				}
				panic(r)
			}
		}()
		frame := NewEnv(p.selfEnv())
		frame.Define(p.Params[0], numMap(inputs))
		frame.Define(p.Params[1], numMap(params))
		frame.Define(p.Params[2], Value{Tag: VTRand, Data: rng})
		ret = e.runBody(p.Body, frame)
		return nil
	}()
	if err != nil {
		return nil, err
	}
	return policyOutput(ret)
}

// policyOutput converts the returned value into the output mapping,
// enforcing shape and finiteness.
func policyOutput(v Value) (map[string]float64, error) {
	if v.Tag != VTMap {
		return nil, &EvalError{Reason: EvalOutputShape,
			Msg: "policy must return a mapping of names to numbers, got " + v.Tag.String()}
	}
	m := v.Data.(map[string]Value)
	out := make(map[string]float64, len(m))
	for k, mv := range m {
		if mv.Tag != VTNum {
			return nil, &EvalError{Reason: EvalOutputShape,
				Msg: "output " + k + " is not a number"}
		}
		f := mv.Data.(float64)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &EvalError{Reason: EvalNonFinite,
				Msg: "output " + k + " is not finite"}
		}
		out[k] = f
	}
	return out, nil
}
