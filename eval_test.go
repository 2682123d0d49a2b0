// eval_test.go
package policyscript

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func compilePolicy(t *testing.T, src string) *Policy {
	t.Helper()
	return compileWith(t, src, DefaultConfig())
}

func compileWith(t *testing.T, src string, cfg Config) *Policy {
	t.Helper()
	pol, err := Compile(ComponentKey{ID: "test", Version: 1}, src, cfg)
	if err != nil {
		t.Fatalf("Compile error: %v\nsource:\n%s", err, src)
	}
	return pol
}

func invoke(t *testing.T, pol *Policy, inputs, params map[string]float64, seed int64) map[string]float64 {
	t.Helper()
	out, err := pol.Invoke(inputs, params, NewSeededRand(seed))
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	return out
}

func wantEvalReason(t *testing.T, pol *Policy, inputs, params map[string]float64, reason EvalReason) *EvalError {
	t.Helper()
	_, err := pol.Invoke(inputs, params, NewSeededRand(1))
	var ee *EvalError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v (%T), want *EvalError", err, err)
	}
	if ee.Reason != reason {
		t.Fatalf("reason = %s, want %s (msg: %s)", ee.Reason, reason, ee.Msg)
	}
	return ee
}

func wantOutput(t *testing.T, out map[string]float64, key string, want float64) {
	t.Helper()
	got, ok := out[key]
	if !ok {
		t.Fatalf("output %q missing from %v", key, out)
	}
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("output %q = %v, want %v", key, got, want)
	}
}

func Test_Eval_Arithmetic_And_Branches(t *testing.T) {
	pol := compilePolicy(t, legalPolicySrc)

	// drive well above 1 gets clamped to 2 regardless of the small jitter
	out := invoke(t, pol, map[string]float64{"prey_distance": 10}, map[string]float64{"aggression": 1}, 1)
	wantOutput(t, out, "speed_mult", 2)

	out = invoke(t, pol, map[string]float64{"prey_distance": 3}, map[string]float64{"aggression": 0.2}, 1)
	wantOutput(t, out, "speed_mult", 0.3)

	out = invoke(t, pol, map[string]float64{"prey_distance": 3}, map[string]float64{"aggression": 0}, 1)
	wantOutput(t, out, "speed_mult", 0.1)
}

func Test_Eval_Determinism_SameSeed_SameOutput(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    a = rng.gauss(0.0, 1.0)
    b = rng.uniform(0.0, 10.0)
    c = rng.random()
    return {"a": a, "b": b, "c": c}
`)
	inputs := map[string]float64{}
	first := invoke(t, pol, inputs, nil, 42)
	second := invoke(t, pol, inputs, nil, 42)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same seed diverged: %v vs %v", first, second)
	}
}

func Test_Eval_Rng_Uniform_WithinBounds(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {"u": rng.uniform(2.0, 3.0)}
`)
	for seed := int64(1); seed <= 20; seed++ {
		out := invoke(t, pol, nil, nil, seed)
		if out["u"] < 2 || out["u"] >= 3 {
			t.Fatalf("uniform(2, 3) = %v out of range (seed %d)", out["u"], seed)
		}
	}
}

func Test_Eval_Recursion_Bounded_ByDepth(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return f(inputs, params, rng)
`)
	wantEvalReason(t, pol, nil, nil, EvalCallDepth)
}

func Test_Eval_Recursion_Bounded_BySteps(t *testing.T) {
	pol := compileWith(t, `def f(inputs, params, rng):
    return f(inputs, params, rng)
`, Config{MaxSteps: 50, MaxCallDepth: 1 << 20})
	wantEvalReason(t, pol, nil, nil, EvalStepBudget)
}

func Test_Eval_Recursion_Legal(t *testing.T) {
	pol := compilePolicy(t, `def fact(inputs, params, rng):
    n = inputs["n"]
    if n <= 1.0:
        return {"v": 1.0}
    return {"v": n * fact({"n": n - 1.0}, params, rng)["v"]}
`)
	out := invoke(t, pol, map[string]float64{"n": 5}, nil, 1)
	wantOutput(t, out, "v", 120)
}

func Test_Eval_MissingKey(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {"a": inputs["nope"]}
`)
	ee := wantEvalReason(t, pol, map[string]float64{}, nil, EvalMissingKey)
	if !strings.Contains(ee.Msg, `"nope"`) {
		t.Fatalf("msg = %q, want the missing key named", ee.Msg)
	}
}

func Test_Eval_DivisionByZero(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {"x": 1.0 / inputs["z"]}
`)
	wantEvalReason(t, pol, map[string]float64{"z": 0}, nil, EvalMath)
}

func Test_Eval_NonFinite_Overflow(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {"x": inputs["big"] * inputs["big"]}
`)
	wantEvalReason(t, pol, map[string]float64{"big": 1e308}, nil, EvalNonFinite)
}

func Test_Eval_OutputShape(t *testing.T) {
	for _, src := range []string{
		"def f(inputs, params, rng):\n    return 1.0\n",
		"def f(inputs, params, rng):\n    pass\n",
		"def f(inputs, params, rng):\n    return {\"a\": \"text\"}\n",
	} {
		pol := compilePolicy(t, src)
		wantEvalReason(t, pol, nil, nil, EvalOutputShape)
	}
}

func Test_Eval_Builtin_WrongArity(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {"x": sqrt(1.0, 2.0)}
`)
	wantEvalReason(t, pol, nil, nil, EvalArity)
}

func Test_Eval_Builtin_MathDomain(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {"x": sqrt(inputs["n"])}
`)
	wantEvalReason(t, pol, map[string]float64{"n": -4}, nil, EvalMath)
}

func Test_Eval_Builtins(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {
        "abs": abs(0.0 - 3.0),
        "min": min(3.0, 1.0, 2.0),
        "max": max(1.0, 5.0),
        "floor": floor(1.9),
        "ceil": ceil(1.1),
        "pow": pow(2.0, 3.0),
        "clamp": clamp(5.0, 0.0, 2.0),
        "pi": pi,
    }
`)
	out := invoke(t, pol, nil, nil, 1)
	wantOutput(t, out, "abs", 3)
	wantOutput(t, out, "min", 1)
	wantOutput(t, out, "max", 5)
	wantOutput(t, out, "floor", 1)
	wantOutput(t, out, "ceil", 2)
	wantOutput(t, out, "pow", 8)
	wantOutput(t, out, "clamp", 2)
	wantOutput(t, out, "pi", math.Pi)
}

func Test_Eval_Modulo_TakesDivisorSign(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {"m": (0.0 - 7.0) % 3.0, "fd": (0.0 - 7.0) // 2.0}
`)
	out := invoke(t, pol, nil, nil, 1)
	wantOutput(t, out, "m", 2)
	wantOutput(t, out, "fd", -4)
}

func Test_Eval_ShortCircuit_SkipsRHS(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    ok = inputs["x"] > 0.0 and 1.0 / inputs["x"] > 0.5
    return {"v": 1.0 if ok else 0.0}
`)
	out := invoke(t, pol, map[string]float64{"x": 0}, nil, 1)
	wantOutput(t, out, "v", 0)
	out = invoke(t, pol, map[string]float64{"x": 1}, nil, 1)
	wantOutput(t, out, "v", 1)
}

func Test_Eval_ChainedComparison(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {"ok": 1.0 if 0.0 < inputs["x"] <= 1.0 else 0.0}
`)
	out := invoke(t, pol, map[string]float64{"x": 0.5}, nil, 1)
	wantOutput(t, out, "ok", 1)
	out = invoke(t, pol, map[string]float64{"x": 2}, nil, 1)
	wantOutput(t, out, "ok", 0)
}

func Test_Eval_Membership(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    return {"has": 1.0 if "a" in inputs else 0.0}
`)
	out := invoke(t, pol, map[string]float64{"a": 1}, nil, 1)
	wantOutput(t, out, "has", 1)
	out = invoke(t, pol, map[string]float64{"b": 1}, nil, 1)
	wantOutput(t, out, "has", 0)
}

func Test_Eval_AugAssign(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    x = 1.0
    x += 2.0
    x *= 3.0
    x -= 1.0
    x /= 2.0
    return {"x": x}
`)
	out := invoke(t, pol, nil, nil, 1)
	wantOutput(t, out, "x", 4)
}

func Test_Eval_InputMaps_NotMutated(t *testing.T) {
	pol := compilePolicy(t, `def f(inputs, params, rng):
    x = inputs["a"] + 1.0
    return {"x": x}
`)
	inputs := map[string]float64{"a": 1}
	invoke(t, pol, inputs, nil, 1)
	if inputs["a"] != 1 || len(inputs) != 1 {
		t.Fatalf("inputs mutated: %v", inputs)
	}
}

func Test_Compile_SourceTooLarge(t *testing.T) {
	_, err := Compile(ComponentKey{ID: "big", Version: 1}, legalPolicySrc,
		Config{MaxSourceBytes: 10})
	if !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("error = %v, want ErrSourceTooLarge", err)
	}
}
