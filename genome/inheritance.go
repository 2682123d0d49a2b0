// inheritance.go: crossover and mutation over code-policy traits.
//
// Both operators are pure functions of their arguments and the stream drawn
// from rng: a fixed seed and fixed parents always produce the same child.
// Parameter mutation iterates keys in sorted order for exactly that reason:
// Go randomizes map iteration, and a draw consumed for "speed_mult" on one
// run and "turn_rate" on the next would silently break reproducibility.
package genome

// Rand is the draw surface the inheritance operators consume. *math/rand.Rand
// satisfies it.
type Rand interface {
	Float64() float64
	NormFloat64() float64
}

// Inheritance constants. Traits are inherited whole, never field-by-field.
const (
	// geneFlowChance is the unconditional chance of inheriting a trait from
	// the single carrying parent, on top of its weight share. It keeps rare
	// policies circulating even against a heavily favored trait-less mate.
	geneFlowChance = 0.30
	// dropFactor scales with mutation rate into the chance of losing the
	// trait entirely.
	dropFactor = 0.02
	// paramMutateFactor scales with mutation rate into the per-parameter
	// chance of Gaussian jitter.
	paramMutateFactor = 0.15
	// paramSigma is the standard deviation of that jitter.
	paramSigma = 0.1
)

// Crossover combines two parents' traits into a child trait.
//
// Both parents carry one: the child inherits one parent's trait whole,
// chosen with probability proportional to the parents' weights. One parent
// carries one: the child inherits it either through the carrier's weight
// share or through the independent gene-flow chance; the net probability is
// the union of the two. Neither carries one: the child has none.
func Crossover(a CodePolicyTrait, weightA float64, b CodePolicyTrait, weightB float64, rng Rand) CodePolicyTrait {
	shareA := weightShare(weightA, weightB)
	switch {
	case a.Present() && b.Present():
		if rng.Float64() < shareA {
			return a.Clone()
		}
		return b.Clone()
	case a.Present():
		return inheritSingle(a, shareA, rng)
	case b.Present():
		return inheritSingle(b, 1-shareA, rng)
	default:
		return CodePolicyTrait{}
	}
}

// inheritSingle applies the weight draw and the independent gene-flow draw.
func inheritSingle(t CodePolicyTrait, share float64, rng Rand) CodePolicyTrait {
	if rng.Float64() < share {
		return t.Clone()
	}
	if rng.Float64() < geneFlowChance {
		return t.Clone()
	}
	return CodePolicyTrait{}
}

// weightShare normalizes weightA against the pair. Negative weights count as
// zero; two zero weights split evenly.
func weightShare(weightA, weightB float64) float64 {
	if weightA < 0 {
		weightA = 0
	}
	if weightB < 0 {
		weightB = 0
	}
	total := weightA + weightB
	if total == 0 {
		return 0.5
	}
	return weightA / total
}

// Mutate applies trait-level mutation to a child trait. With probability
// dropFactor×mutationRate the trait is dropped whole; kind and component id
// are never altered piecemeal. A surviving trait then has each parameter
// independently jittered with probability paramMutateFactor×mutationRate by
// Gaussian noise (σ = paramSigma), clamped to the legal range.
func Mutate(t CodePolicyTrait, mutationRate float64, rng Rand) CodePolicyTrait {
	if !t.Present() {
		return CodePolicyTrait{}
	}
	if rng.Float64() < clamp01(dropFactor*mutationRate) {
		return CodePolicyTrait{}
	}
	out := t.Clone()
	mutateChance := clamp01(paramMutateFactor * mutationRate)
	for _, k := range out.paramKeys() {
		if rng.Float64() < mutateChance {
			v := out.Params[k] + rng.NormFloat64()*paramSigma
			if v < ParamMin {
				v = ParamMin
			}
			if v > ParamMax {
				v = ParamMax
			}
			out.Params[k] = v
		}
	}
	return out
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
