// errors_test.go
package policyscript

import (
	"errors"
	"strings"
	"testing"
)

func Test_WrapError_Violation_CaretSnippet(t *testing.T) {
	src := "def f(inputs, params, rng):\n    while True:\n        pass\n"
	_, err := ValidateSource(src)
	if err == nil {
		t.Fatal("expected a violation")
	}
	msg := WrapErrorWithSource(err, src).Error()
	for _, want := range []string{
		"SANDBOX VIOLATION at 2:5",
		"(code loop)",
		"while True:",
		"|",
		"^",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("rendered error missing %q:\n%s", want, msg)
		}
	}
	// context lines around the error are numbered
	if !strings.Contains(msg, " 1 | def f") || !strings.Contains(msg, " 3 |") {
		t.Fatalf("rendered error missing context lines:\n%s", msg)
	}
}

func Test_WrapError_WithName(t *testing.T) {
	src := "import os\n"
	_, err := ValidateSource(src)
	msg := WrapErrorWithName(err, "policy.py", src).Error()
	if !strings.Contains(msg, "in policy.py") {
		t.Fatalf("rendered error missing source name:\n%s", msg)
	}
}

func Test_WrapError_ParseError(t *testing.T) {
	src := "def f(:\n"
	_, err := Parse(src)
	msg := WrapErrorWithSource(err, src).Error()
	if !strings.Contains(msg, "PARSE ERROR") || !strings.Contains(msg, "^") {
		t.Fatalf("rendered error:\n%s", msg)
	}
}

func Test_WrapError_EvalError_WithLocation(t *testing.T) {
	src := "def f(inputs, params, rng):\n    return {\"x\": 1.0 / inputs[\"z\"]}\n"
	pol := compilePolicy(t, src)
	_, err := pol.Invoke(map[string]float64{"z": 0}, nil, NewSeededRand(1))
	msg := WrapErrorWithSource(err, src).Error()
	if !strings.Contains(msg, "EVAL ERROR") || !strings.Contains(msg, "division by zero") {
		t.Fatalf("rendered error:\n%s", msg)
	}
}

func Test_WrapError_Unrecognized_Passthrough(t *testing.T) {
	err := errors.New("plain")
	if got := WrapErrorWithSource(err, "x = 1\n"); got != err {
		t.Fatalf("unrecognized error was rewritten: %v", got)
	}
}

func Test_WrapError_BadLocation_Clamped(t *testing.T) {
	v := &Violation{Code: ViolationLoop, Line: 99, Col: 99, Detail: "loop constructs are not allowed"}
	msg := WrapErrorWithSource(v, "x = 1\n").Error()
	if !strings.Contains(msg, "^") {
		t.Fatalf("rendered error:\n%s", msg)
	}
}
