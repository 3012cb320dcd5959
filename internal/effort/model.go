// Package effort scores how much work a corpus takes to type on a genome.
package effort

import (
	"fmt"
	"math"

	"github.com/verte-zerg/keyopt/internal/layout"
)

// Weights are the coefficients of the five penalty terms, applied in order
// to distance, double finger, double hand, finger effort and row effort.
type Weights [5]float64

// Penalty term positions in Weights.
const (
	TermDistance = iota
	TermDoubleFinger
	TermDoubleHand
	TermFinger
	TermRow
)

var (
	// DefaultFingerCPM is the characters per minute of each finger id.
	DefaultFingerCPM = [layout.FingerCount]float64{223, 169, 225, 273, 343, 313, 259, 241}
	// DefaultRowCPM is the characters per minute of each row, number row first.
	DefaultRowCPM = [layout.RowCount]float64{131, 166, 276, 192}
	// DefaultWeights keeps double hand and row effort at zero. They stay
	// tunable through config.
	DefaultWeights = Weights{0.7917, 1.0, 0.0, 0.4773, 0.0}
)

// Params are the raw inputs of a Model.
type Params struct {
	FingerCPM          [layout.FingerCount]float64
	RowCPM             [layout.RowCount]float64
	Weights            Weights
	DistanceExponent   int
	DoubleFingerEffort float64
	DoubleHandEffort   float64
}

// DefaultParams returns the shipped effort configuration.
func DefaultParams() Params {
	return Params{
		FingerCPM:          DefaultFingerCPM,
		RowCPM:             DefaultRowCPM,
		Weights:            DefaultWeights,
		DistanceExponent:   1,
		DoubleFingerEffort: 1,
		DoubleHandEffort:   1,
	}
}

// Model holds the derived effort coefficients. It is immutable once built.
type Model struct {
	FingerEffort       [layout.FingerCount]float64
	RowEffort          [layout.RowCount]float64
	Weights            Weights
	DistanceExponent   int
	DoubleFingerEffort float64
	DoubleHandEffort   float64
}

// NewModel derives finger and row effort from typing speeds. Each group is
// turned into negated z-scores; finger effort is shifted so the fastest
// finger is zero, row effort is shifted by the group maximum.
func NewModel(p Params) (*Model, error) {
	if p.DistanceExponent < 1 {
		return nil, fmt.Errorf("distance exponent must be at least 1, got %d", p.DistanceExponent)
	}
	for i, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight %d is not finite", i)
		}
	}
	m := &Model{
		Weights:            p.Weights,
		DistanceExponent:   p.DistanceExponent,
		DoubleFingerEffort: p.DoubleFingerEffort,
		DoubleHandEffort:   p.DoubleHandEffort,
	}

	fz := zscores(p.FingerCPM[:])
	low := math.Inf(1)
	for _, z := range fz {
		low = math.Min(low, z)
	}
	for i, z := range fz {
		m.FingerEffort[i] = z - low
	}

	rz := zscores(p.RowCPM[:])
	high := math.Inf(-1)
	for _, z := range rz {
		high = math.Max(high, z)
	}
	for i, z := range rz {
		m.RowEffort[i] = z - high
	}
	return m, nil
}

// DefaultModel builds the model from DefaultParams.
func DefaultModel() *Model {
	m, err := NewModel(DefaultParams())
	if err != nil {
		panic(err)
	}
	return m
}

// zscores returns -(x-mean)/std with the population deviation. A group
// with no spread scores zero everywhere.
func zscores(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	std := math.Sqrt(sq / float64(len(xs)))
	if std == 0 {
		return out
	}
	for i, x := range xs {
		out[i] = -(x - mean) / std
	}
	return out
}
