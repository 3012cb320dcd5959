package anneal

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/verte-zerg/keyopt/internal/layout"
)

// Scorer scores a genome against a baseline score.
type Scorer interface {
	Relative(keys []int, g layout.Genome, baseline float64) float64
}

// EventKind tells observers which phase an Event belongs to.
type EventKind int

const (
	EventStart EventKind = iota
	EventIteration
	EventFinish
)

// Event is a snapshot of the chain after one step. BestGenome is shared
// with the optimizer and must not be modified.
type Event struct {
	Kind        EventKind
	Iteration   int
	Temperature float64
	Current     float64
	Candidate   float64
	Best        float64
	Accepted    bool
	Improved    bool
	NewBest     bool
	BestGenome  layout.Genome
}

// Observer receives events synchronously from the chain goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithObserver adds an observer. Observers are called in the order added.
func WithObserver(o Observer) Option {
	return func(opt *Optimizer) {
		if o != nil {
			opt.observers = append(opt.observers, o)
		}
	}
}

// WithInitial starts the chain from g instead of a shuffled letter list.
// The shuffle is still drawn so the random stream stays the same.
func WithInitial(g layout.Genome) Option {
	return func(opt *Optimizer) {
		opt.initial = g.Clone()
	}
}

// Optimizer runs one annealing chain.
type Optimizer struct {
	scorer    Scorer
	letters   []rune
	params    Params
	initial   layout.Genome
	observers []Observer
}

// Result is what a finished chain reports.
type Result struct {
	Best             layout.Genome
	BestScore        float64
	Initial          layout.Genome
	InitialScore     float64
	Iterations       int
	FinalTemperature float64
	Accepted         int
	Improvements     int
	Seed             int64
	// Stopped is set when the context ended the chain early.
	Stopped bool
}

// New builds an optimizer over letters. Callers must also make sure the
// key sequence handed to Run is not empty.
func New(scorer Scorer, letters []rune, params Params, opts ...Option) (*Optimizer, error) {
	if scorer == nil {
		return nil, fmt.Errorf("scorer is nil")
	}
	if len(letters) < 2 {
		return nil, fmt.Errorf("need at least 2 letters, got %d", len(letters))
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	o := &Optimizer{
		scorer:  scorer,
		letters: append([]rune(nil), letters...),
		params:  params,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.initial != nil && !o.initial.IsPermutationOf(o.letters) {
		return nil, layout.ErrNotPermutation
	}
	return o, nil
}

// Params returns the chain configuration.
func (o *Optimizer) Params() Params {
	return o.params
}

// Run anneals from a seeded shuffle of the letter list and returns the
// best genome seen. Scores are relative to baseline.
//
// Every random draw comes from one stream seeded with Params.Seed, in a
// fixed order per iteration: the perturbation shuffles, the acceptance
// draw when the candidate is not better, and the reheat draw when an
// epoch ends.
func (o *Optimizer) Run(keys []int, baseline float64) Result {
	return o.RunContext(context.Background(), keys, baseline)
}

// RunContext is Run but stops before the next iteration once ctx is done.
// The result then holds the best genome found so far.
func (o *Optimizer) RunContext(ctx context.Context, keys []int, baseline float64) Result {
	rng := rand.New(rand.NewSource(o.params.Seed))

	current := layout.Genome(append([]rune(nil), o.letters...))
	rng.Shuffle(len(current), func(i, j int) { current[i], current[j] = current[j], current[i] })
	if o.initial != nil {
		current = o.initial.Clone()
	}
	currentScore := o.scorer.Relative(keys, current, baseline)

	best, bestScore := current, currentScore
	res := Result{
		Initial:      current.Clone(),
		InitialScore: currentScore,
		Seed:         o.params.Seed,
	}

	temperature := o.params.InitialTemperature
	o.notify(Event{
		Kind:        EventStart,
		Temperature: temperature,
		Current:     currentScore,
		Candidate:   currentScore,
		Best:        bestScore,
		BestGenome:  best,
	})

	iteration := 0
	epochCount := 0
	for iteration < o.params.MaxIterations && temperature > 1.0 {
		if ctx.Err() != nil {
			res.Stopped = true
			break
		}
		iteration++

		candidate := Perturb(current, perturbMagnitude, rng)
		candidateScore := o.scorer.Relative(keys, candidate, baseline)
		delta := candidateScore - currentScore

		ev := Event{
			Kind:        EventIteration,
			Iteration:   iteration,
			Temperature: temperature,
			Candidate:   candidateScore,
		}
		if delta < 0 {
			current, currentScore = candidate, candidateScore
			ev.Accepted = true
			ev.Improved = true
			if candidateScore < bestScore {
				best, bestScore = candidate, candidateScore
				ev.NewBest = true
				res.Improvements++
			}
		} else if math.Exp(-delta/temperature) > rng.Float64() {
			current, currentScore = candidate, candidateScore
			ev.Accepted = true
		}
		if ev.Accepted {
			res.Accepted++
		}
		ev.Current = currentScore
		ev.Best = bestScore
		ev.BestGenome = best
		o.notify(ev)

		epochCount++
		if epochCount > o.params.Epoch {
			epochCount = 0
			temperature *= o.params.CoolingRate
			if rng.Float64() < 0.5 {
				current, currentScore = best, bestScore
			}
		}
	}

	res.Best = best.Clone()
	res.BestScore = bestScore
	res.Iterations = iteration
	res.FinalTemperature = temperature
	o.notify(Event{
		Kind:        EventFinish,
		Iteration:   iteration,
		Temperature: temperature,
		Current:     currentScore,
		Candidate:   currentScore,
		Best:        bestScore,
		BestGenome:  best,
	})
	return res
}

func (o *Optimizer) notify(e Event) {
	for _, obs := range o.observers {
		obs.Observe(e)
	}
}
