// Package anneal searches for low-effort genomes with simulated annealing.
package anneal

import (
	"fmt"
	"math"
)

// Params configures one annealing chain.
type Params struct {
	InitialTemperature float64
	// Epoch is the number of iterations between two cooling steps.
	Epoch         int
	CoolingRate   float64
	MaxIterations int
	Seed          int64
}

// DefaultSeed is the seed used when none is configured.
const DefaultSeed int64 = 114211

// DefaultParams returns the shipped run configuration.
func DefaultParams() Params {
	return Params{
		InitialTemperature: 500,
		Epoch:              20,
		CoolingRate:        0.99,
		MaxIterations:      25000,
		Seed:               DefaultSeed,
	}
}

// Validate checks the ranges the optimizer relies on.
func (p Params) Validate() error {
	if math.IsNaN(p.InitialTemperature) || math.IsInf(p.InitialTemperature, 0) {
		return fmt.Errorf("temperature must be finite")
	}
	if p.InitialTemperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %v", p.InitialTemperature)
	}
	if p.Epoch <= 0 {
		return fmt.Errorf("epoch must be positive, got %d", p.Epoch)
	}
	if !(p.CoolingRate > 0 && p.CoolingRate < 1) {
		return fmt.Errorf("cooling rate must be in (0, 1), got %v", p.CoolingRate)
	}
	if p.MaxIterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", p.MaxIterations)
	}
	return nil
}
