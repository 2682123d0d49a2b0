// Package genome carries the heritable side of the policy sandbox: the
// code-policy trait a genome owns, the crossover/mutation operators that
// propagate it, and the schema-versioned serialization.
//
// The trait is an opaque gene. Nothing in this package interprets, resolves,
// or executes the code a trait references; inheritance operates purely on
// the (kind, component id, params) value object and never touches the pool.
package genome

import (
	"fmt"
	"math"
	"sort"
)

// Parameter bounds for trait tunables.
const (
	ParamMin = -10.0
	ParamMax = 10.0
)

// CodePolicyTrait is an optional reference to a compiled policy plus its
// tunable parameters. The zero value is the absent trait.
//
// Invariants (enforced by Validate):
//   - ComponentID set ⇒ Kind set
//   - Params set ⇒ ComponentID set
//   - every param finite and within [ParamMin, ParamMax]
type CodePolicyTrait struct {
	Kind        string             // category tag, e.g. "movement_policy"
	ComponentID string             // pool key
	Params      map[string]float64 // tunables
}

// Present reports whether the trait references a policy.
func (t CodePolicyTrait) Present() bool { return t.ComponentID != "" }

// Clone deep-copies the trait; genomes own their traits by value.
func (t CodePolicyTrait) Clone() CodePolicyTrait {
	out := CodePolicyTrait{Kind: t.Kind, ComponentID: t.ComponentID}
	if t.Params != nil {
		out.Params = make(map[string]float64, len(t.Params))
		for k, v := range t.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Equal is structural equality, for tests and deduplication.
func (t CodePolicyTrait) Equal(o CodePolicyTrait) bool {
	if t.Kind != o.Kind || t.ComponentID != o.ComponentID || len(t.Params) != len(o.Params) {
		return false
	}
	for k, v := range t.Params {
		ov, ok := o.Params[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// paramKeys returns the parameter names sorted, for deterministic iteration.
func (t CodePolicyTrait) paramKeys() []string {
	keys := make([]string, 0, len(t.Params))
	for k := range t.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidationReason classifies a trait invariant violation.
type ValidationReason string

const (
	ReasonMissingKind    ValidationReason = "missing_kind"
	ReasonOrphanKind     ValidationReason = "orphan_kind"
	ReasonOrphanParams   ValidationReason = "orphan_params"
	ReasonParamNotFinite ValidationReason = "param_not_finite"
	ReasonParamRange     ValidationReason = "param_range"
)

// ValidationError reports why a trait is invalid. Invalid traits must be
// caught at genome construction or deserialization, before the genome can
// enter the population.
type ValidationError struct {
	Reason ValidationReason
	Msg    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid code-policy trait: %s (reason %s)", e.Msg, e.Reason)
}

// Validate enforces the trait invariants.
func (t CodePolicyTrait) Validate() error {
	if t.ComponentID == "" {
		if t.Kind != "" {
			return &ValidationError{Reason: ReasonOrphanKind,
				Msg: "kind set without a component id"}
		}
		if len(t.Params) > 0 {
			return &ValidationError{Reason: ReasonOrphanParams,
				Msg: "params set without a component id"}
		}
		return nil
	}
	if t.Kind == "" {
		return &ValidationError{Reason: ReasonMissingKind,
			Msg: "component id set without a kind"}
	}
	for _, k := range t.paramKeys() {
		v := t.Params[k]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Reason: ReasonParamNotFinite,
				Msg: fmt.Sprintf("param %q is not finite", k)}
		}
		if v < ParamMin || v > ParamMax {
			return &ValidationError{Reason: ReasonParamRange,
				Msg: fmt.Sprintf("param %q = %g outside [%g, %g]", k, v, ParamMin, ParamMax)}
		}
	}
	return nil
}
