package effort

import (
	"fmt"

	"github.com/verte-zerg/keyopt/internal/layout"
)

type fingerState struct {
	homeX, homeY int
	x, y         int
	distance     int
	objective    float64
	presses      int
}

// scanState carries the press history the penalty rules look at.
// lastFinger 0 means no finger yet, which is also the left ring finger.
// Without a previous hand the double-hand rule treats the last hand as
// Left.
type scanState struct {
	lastFinger int
	lastHand   layout.Hand
	hasHand    bool
}

func (s scanState) previousHand() layout.Hand {
	if !s.hasHand {
		return layout.Left
	}
	return s.lastHand
}

// Evaluator replays key sequences against genomes on one layout.
// It holds no per-call state and is safe for concurrent use.
type Evaluator struct {
	spec  *layout.Spec
	model *Model
}

// New returns an evaluator for spec using model.
func New(spec *layout.Spec, model *Model) *Evaluator {
	return &Evaluator{spec: spec, model: model}
}

// Spec returns the layout the evaluator scores against.
func (e *Evaluator) Spec() *layout.Spec {
	return e.spec
}

// Evaluate returns the total effort of typing keys on g. With a baseline
// the result is the percentage deviation from it.
func (e *Evaluator) Evaluate(keys []int, g layout.Genome, baseline *float64) float64 {
	fingers := e.scan(keys, g)
	total := totalObjective(&fingers)
	if baseline != nil {
		return (total/(*baseline) - 1) * 100
	}
	return total
}

// Raw is Evaluate without a baseline.
func (e *Evaluator) Raw(keys []int, g layout.Genome) float64 {
	return e.Evaluate(keys, g, nil)
}

// Relative is Evaluate against baseline.
func (e *Evaluator) Relative(keys []int, g layout.Genome, baseline float64) float64 {
	return e.Evaluate(keys, g, &baseline)
}

// FingerStats is the share of one finger in an evaluation.
type FingerStats struct {
	Hand      layout.Hand
	Finger    layout.Finger
	Presses   int
	Distance  int
	Objective float64
}

// Breakdown is a per-finger view of a raw evaluation.
type Breakdown struct {
	Fingers [layout.FingerCount]FingerStats
	Total   float64
}

// Breakdown evaluates g and keeps the per-finger counters.
func (e *Evaluator) Breakdown(keys []int, g layout.Genome) Breakdown {
	fingers := e.scan(keys, g)
	var b Breakdown
	for id := range fingers {
		home := e.spec.HomeKey(id)
		b.Fingers[id] = FingerStats{
			Hand:      home.Hand,
			Finger:    home.Finger,
			Presses:   fingers[id].presses,
			Distance:  fingers[id].distance,
			Objective: fingers[id].objective,
		}
	}
	b.Total = totalObjective(&fingers)
	return b
}

func (e *Evaluator) scan(keys []int, g layout.Genome) [layout.FingerCount]fingerState {
	var fingers [layout.FingerCount]fingerState
	for id := range fingers {
		home := e.spec.HomeKey(id)
		fingers[id] = fingerState{homeX: home.X, homeY: home.Y, x: home.X, y: home.Y}
	}

	slotOf := e.inverse(g)
	var st scanState
	for _, k := range keys {
		st = e.press(&fingers, st, slotOf[k])
	}
	return fingers
}

// inverse maps letter list positions to genome slots.
func (e *Evaluator) inverse(g layout.Genome) []int {
	slotOf := make([]int, len(e.spec.Letters))
	for slot, c := range g {
		idx, ok := e.spec.LetterIndex(c)
		if !ok {
			panic(fmt.Sprintf("effort: genome character %q is not in layout %q", c, e.spec.Name))
		}
		slotOf[idx] = slot
	}
	return slotOf
}

func (e *Evaluator) press(fingers *[layout.FingerCount]fingerState, st scanState, slot int) scanState {
	target := e.spec.Keys[slot]
	id := target.FingerID()

	for other := range fingers {
		if other == id {
			continue
		}
		fingers[other].x = fingers[other].homeX
		fingers[other].y = fingers[other].homeY
	}

	f := &fingers[id]
	distance := abs(target.X-f.x) + abs(target.Y-f.y)

	var terms [5]float64
	terms[TermDistance] = float64(ipow(distance, e.model.DistanceExponent))
	if id != st.lastFinger && st.lastFinger != 0 && distance != 0 {
		terms[TermDoubleFinger] = e.model.DoubleFingerEffort
	}
	prev := st.previousHand()
	if target.Hand != prev && prev != layout.Left {
		terms[TermDoubleHand] = e.model.DoubleHandEffort
	}
	terms[TermFinger] = e.model.FingerEffort[id]
	terms[TermRow] = e.model.RowEffort[target.Row]

	var penalty float64
	for i, term := range terms {
		penalty += e.model.Weights[i] * term
	}

	f.objective += penalty
	f.distance += distance
	f.presses++
	f.x, f.y = target.X, target.Y

	return scanState{lastFinger: id, lastHand: target.Hand, hasHand: true}
}

func totalObjective(fingers *[layout.FingerCount]fingerState) float64 {
	var total float64
	for i := range fingers {
		total += fingers[i].objective
	}
	return total
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func ipow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
