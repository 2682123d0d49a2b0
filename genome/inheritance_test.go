// inheritance_test.go
package genome

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptRand plays back fixed draw sequences so each branch of the operators
// can be exercised exactly.
type scriptRand struct {
	f []float64
	n []float64
}

func (r *scriptRand) Float64() float64 {
	v := r.f[0]
	r.f = r.f[1:]
	return v
}

func (r *scriptRand) NormFloat64() float64 {
	v := r.n[0]
	r.n = r.n[1:]
	return v
}

func otherTrait() CodePolicyTrait {
	return CodePolicyTrait{
		Kind:        "movement_policy",
		ComponentID: "c2",
		Params:      map[string]float64{"aggression": -2.0},
	}
}

func TestWeightShare(t *testing.T) {
	assert.Equal(t, 0.75, weightShare(3, 1))
	assert.Equal(t, 0.5, weightShare(0, 0), "two zero weights split evenly")
	assert.Equal(t, 0.0, weightShare(-1, 2), "negative weights count as zero")
	assert.Equal(t, 0.5, weightShare(-3, -7))
}

func TestCrossoverBothPresentInheritsWholeTrait(t *testing.T) {
	a, b := movementTrait(), otherTrait()

	// shareA = 0.75; a draw below it picks parent a
	child := Crossover(a, 3, b, 1, &scriptRand{f: []float64{0.5}})
	assert.True(t, child.Equal(a))

	// a draw above it picks parent b
	child = Crossover(a, 3, b, 1, &scriptRand{f: []float64{0.9}})
	assert.True(t, child.Equal(b))
}

func TestCrossoverNeverMixesFields(t *testing.T) {
	a, b := movementTrait(), otherTrait()
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		child := Crossover(a, 1, b, 1, rng)
		if !child.Equal(a) && !child.Equal(b) {
			t.Fatalf("child %v is neither parent's trait", child)
		}
	}
}

func TestCrossoverSingleCarrier(t *testing.T) {
	a := movementTrait()

	// carrier wins its weight draw
	child := Crossover(a, 1, CodePolicyTrait{}, 3, &scriptRand{f: []float64{0.1}})
	assert.True(t, child.Equal(a))

	// weight draw lost, gene-flow draw won
	child = Crossover(a, 1, CodePolicyTrait{}, 3, &scriptRand{f: []float64{0.5, 0.2}})
	assert.True(t, child.Equal(a))

	// both draws lost
	child = Crossover(a, 1, CodePolicyTrait{}, 3, &scriptRand{f: []float64{0.5, 0.9}})
	assert.False(t, child.Present())

	// carrier on the b side uses 1 - shareA
	child = Crossover(CodePolicyTrait{}, 3, a, 1, &scriptRand{f: []float64{0.1}})
	assert.True(t, child.Equal(a))
}

func TestCrossoverNeitherPresent(t *testing.T) {
	child := Crossover(CodePolicyTrait{}, 1, CodePolicyTrait{}, 1, &scriptRand{})
	assert.False(t, child.Present())
}

func TestCrossoverChildOwnsItsParams(t *testing.T) {
	a := movementTrait()
	child := Crossover(a, 1, CodePolicyTrait{}, 0, &scriptRand{f: []float64{0.1}})
	require.True(t, child.Present())
	child.Params["aggression"] = 9
	assert.Equal(t, 1.5, a.Params["aggression"])
}

func TestMutateAbsentStaysAbsent(t *testing.T) {
	// no draws are scripted: an absent trait must consume none
	child := Mutate(CodePolicyTrait{}, 1.0, &scriptRand{})
	assert.False(t, child.Present())
}

func TestMutateDropRemovesWholeTrait(t *testing.T) {
	// at mutation rate 1 the drop chance is dropFactor = 0.02
	child := Mutate(movementTrait(), 1.0, &scriptRand{f: []float64{0.01}})
	assert.False(t, child.Present())
	assert.Empty(t, child.Kind)
	assert.Nil(t, child.Params)
}

func TestMutateJittersSelectedParams(t *testing.T) {
	trait := movementTrait() // sorted keys: aggression, caution
	r := &scriptRand{
		f: []float64{0.5, 0.1, 0.5}, // survive drop; mutate aggression; skip caution
		n: []float64{2.0},
	}
	child := Mutate(trait, 1.0, r)
	require.True(t, child.Present())
	assert.InDelta(t, 1.5+2.0*paramSigma, child.Params["aggression"], 1e-12)
	assert.Equal(t, -0.5, child.Params["caution"])
	assert.Equal(t, trait.Kind, child.Kind)
	assert.Equal(t, trait.ComponentID, child.ComponentID)
}

func TestMutateClampsToRange(t *testing.T) {
	trait := CodePolicyTrait{Kind: "k", ComponentID: "c",
		Params: map[string]float64{"a": 9.95}}

	child := Mutate(trait, 1.0, &scriptRand{f: []float64{0.5, 0.0}, n: []float64{100}})
	assert.Equal(t, ParamMax, child.Params["a"])

	child = Mutate(trait, 1.0, &scriptRand{f: []float64{0.5, 0.0}, n: []float64{-300}})
	assert.Equal(t, ParamMin, child.Params["a"])
}

func TestMutateRateZeroChangesNothing(t *testing.T) {
	trait := movementTrait()
	child := Mutate(trait, 0, rand.New(rand.NewSource(5)))
	assert.True(t, child.Equal(trait))
}

func TestMutateDeterministicPerSeed(t *testing.T) {
	trait := movementTrait()
	a := Mutate(trait, 1.0, rand.New(rand.NewSource(7)))
	b := Mutate(trait, 1.0, rand.New(rand.NewSource(7)))
	assert.True(t, a.Equal(b), "identical seeds must produce identical children")
}

func TestMutateStatistics(t *testing.T) {
	const trials = 100_000
	trait := CodePolicyTrait{Kind: "k", ComponentID: "c",
		Params: map[string]float64{"a": 0.0}}
	rng := rand.New(rand.NewSource(1))

	drops, mutations, survivors := 0, 0, 0
	for i := 0; i < trials; i++ {
		child := Mutate(trait, 1.0, rng)
		if !child.Present() {
			drops++
			continue
		}
		survivors++
		v := child.Params["a"]
		require.GreaterOrEqual(t, v, ParamMin)
		require.LessOrEqual(t, v, ParamMax)
		if v != 0.0 {
			mutations++
		}
	}

	assert.InDelta(t, dropFactor, float64(drops)/trials, 0.005)
	assert.InDelta(t, paramMutateFactor, float64(mutations)/float64(survivors), 0.01)
}

func TestGeneFlowStatistics(t *testing.T) {
	// carrier has weight zero, so only the unconditional gene-flow chance can
	// pass the trait on
	const trials = 100_000
	a := movementTrait()
	rng := rand.New(rand.NewSource(2))

	inherited := 0
	for i := 0; i < trials; i++ {
		if Crossover(a, 0, CodePolicyTrait{}, 1, rng).Present() {
			inherited++
		}
	}
	assert.InDelta(t, geneFlowChance, float64(inherited)/trials, 0.01)
}
