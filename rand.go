// rand.go: the explicit random source handed to policies.
//
// Policies must never obtain randomness any way other than their third
// argument; the sandbox forbids importing anything. Rand is satisfied by
// *math/rand.Rand, so a fixed seed reproduces the exact draw stream; the
// determinism contract leans on that.
package policyscript

import "math/rand"

// Rand is the draw surface a policy invocation consumes.
type Rand interface {
	Float64() float64
	NormFloat64() float64
}

// NewSeededRand returns a deterministic Rand for the given seed. Two Rands
// with the same seed produce identical streams on any machine.
func NewSeededRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}
