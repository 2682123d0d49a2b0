// genome.go: the minimal owning genome for the code-policy slot.
//
// The broader simulation carries many more traits; this type models just
// enough of a genome to own a code-policy slot by composition: cloning
// copies the trait by value, and reproduction routes the slot through the
// inheritance operators.
package genome

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Genome is one entity's heritable state.
type Genome struct {
	ID     string          // stable identity, not heritable
	Speed  float64         // representative non-code behavior trait
	Sense  float64         // representative non-code behavior trait
	Policy CodePolicyTrait // the code-policy slot; zero value means absent
}

// New returns a genome with fresh identity and the given traits.
func New(speed, sense float64, policy CodePolicyTrait) *Genome {
	return &Genome{ID: uuid.NewString(), Speed: speed, Sense: sense, Policy: policy}
}

// Clone copies the genome under a new identity. The policy trait is copied
// by value, never shared.
func (g *Genome) Clone() *Genome {
	return &Genome{ID: uuid.NewString(), Speed: g.Speed, Sense: g.Sense, Policy: g.Policy.Clone()}
}

// Validate rejects genomes that must not enter the population.
func (g *Genome) Validate() error {
	for name, v := range map[string]float64{"speed": g.Speed, "sense": g.Sense} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("genome trait %s is not finite", name)
		}
	}
	return g.Policy.Validate()
}

// CrossoverGenomes produces an offspring genome. Numeric traits blend by
// fitness-weighted average; the code-policy slot goes through Crossover and
// Mutate. The rng stream fully determines the heritable outcome; only the
// child's identity is fresh.
func CrossoverGenomes(a *Genome, fitnessA float64, b *Genome, fitnessB float64, mutationRate float64, rng Rand) *Genome {
	shareA := weightShare(fitnessA, fitnessB)
	child := &Genome{
		ID:    uuid.NewString(),
		Speed: shareA*a.Speed + (1-shareA)*b.Speed,
		Sense: shareA*a.Sense + (1-shareA)*b.Sense,
	}
	child.Policy = Mutate(Crossover(a.Policy, fitnessA, b.Policy, fitnessB, rng), mutationRate, rng)
	return child
}
