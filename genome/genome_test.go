// genome_test.go
package genome

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsIdentity(t *testing.T) {
	g := New(1.5, 2.5, movementTrait())
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, 1.5, g.Speed)
	assert.True(t, g.Policy.Equal(movementTrait()))
}

func TestCloneFreshIdentityDeepTrait(t *testing.T) {
	g := New(1, 2, movementTrait())
	c := g.Clone()
	assert.NotEqual(t, g.ID, c.ID)
	assert.True(t, g.Policy.Equal(c.Policy))

	c.Policy.Params["aggression"] = 9
	assert.Equal(t, 1.5, g.Policy.Params["aggression"], "clone must not share trait state")
}

func TestGenomeValidate(t *testing.T) {
	g := New(1, 2, movementTrait())
	require.NoError(t, g.Validate())

	bad := New(math.NaN(), 2, CodePolicyTrait{})
	assert.Error(t, bad.Validate())

	badTrait := New(1, 2, CodePolicyTrait{ComponentID: "c1"})
	assert.Error(t, badTrait.Validate())
}

func TestCrossoverGenomesBlendsNumericTraits(t *testing.T) {
	a := New(2, 4, movementTrait())
	b := New(6, 8, movementTrait())

	// fitness 3 vs 1 gives a a 0.75 share; scripted draws keep a's trait,
	// skip the drop, and skip both param jitters
	r := &scriptRand{f: []float64{0.5, 0.9, 0.9, 0.9}}
	child := CrossoverGenomes(a, 3, b, 1, 1.0, r)

	assert.InDelta(t, 3.0, child.Speed, 1e-12)
	assert.InDelta(t, 5.0, child.Sense, 1e-12)
	assert.True(t, child.Policy.Equal(a.Policy))
	assert.NotEmpty(t, child.ID)
	assert.NotEqual(t, a.ID, child.ID)
	assert.NotEqual(t, b.ID, child.ID)
}

func TestCrossoverGenomesPolicyFlowsThroughOperators(t *testing.T) {
	a := New(1, 1, movementTrait())
	b := New(1, 1, CodePolicyTrait{})

	// single carrier with equal weights: weight draw lost, gene-flow lost,
	// so the child carries no policy
	r := &scriptRand{f: []float64{0.9, 0.9}}
	child := CrossoverGenomes(a, 1, b, 1, 1.0, r)
	assert.False(t, child.Policy.Present())
}
