package anneal

import (
	"math"
	"math/rand"

	"github.com/verte-zerg/keyopt/internal/layout"
)

// perturbMagnitude is the temperature handed to Perturb by the optimizer.
// The cooling schedule never changes it, so every step moves two letters.
const perturbMagnitude = 2.0

// SwapCount is the number of slots Perturb resamples at a temperature:
// floor(T/100) clamped to [2, n].
func SwapCount(temperature float64, n int) int {
	count := int(math.Floor(temperature / 100))
	if count < 2 {
		count = 2
	}
	if count > n {
		count = n
	}
	return count
}

// Perturb returns a neighbour of g. It picks SwapCount distinct slots and
// redistributes their letters among themselves, so the result is always a
// permutation of g. g is not modified.
func Perturb(g layout.Genome, temperature float64, rng *rand.Rand) layout.Genome {
	out := g.Clone()
	count := SwapCount(temperature, len(g))
	if count < 2 {
		return out
	}

	slots := make([]int, len(g))
	for i := range slots {
		slots[i] = i
	}
	rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
	sources := slots[:count]

	targets := append([]int(nil), sources...)
	rng.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })

	for i, src := range sources {
		out[src] = g[targets[i]]
	}
	return out
}
