package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/verte-zerg/keyopt/internal/anneal"
	"github.com/verte-zerg/keyopt/internal/layout"
	"github.com/verte-zerg/keyopt/internal/model"
)

// TextLog appends a line for every improving move:
//
//	temperature, iteration, bestObjective, newObjective
//
// bestObjective is the best score before the move.
type TextLog struct {
	w        io.Writer
	prevBest float64
	err      error
}

// NewTextLog writes the run header to w.
func NewTextLog(w io.Writer) *TextLog {
	l := &TextLog{w: w}
	_, l.err = fmt.Fprint(w, "\nStarting new Run\ntemperature | iteration | bestObjective | newObjective\n")
	return l
}

// Observe implements anneal.Observer.
func (l *TextLog) Observe(e anneal.Event) {
	if l.err == nil && e.Kind == anneal.EventIteration && e.Improved {
		_, l.err = fmt.Fprintf(l.w, "%.2f, %d, %.5f, %.5f\n", e.Temperature, e.Iteration, l.prevBest, e.Candidate)
	}
	l.prevBest = e.Best
}

// Err returns the first write error.
func (l *TextLog) Err() error {
	return l.err
}

// SaveMode selects which best keyboards are written to disk.
type SaveMode int

const (
	SaveNone SaveMode = iota
	SaveLast
	SaveFirstAndLast
	SaveAllBest
)

var saveModeNames = []string{"none", "last", "first-last", "all-best"}

func (m SaveMode) String() string {
	if int(m) < len(saveModeNames) {
		return saveModeNames[m]
	}
	return fmt.Sprintf("SaveMode(%d)", int(m))
}

// ParseSaveMode parses none, last, first-last or all-best.
func ParseSaveMode(s string) (SaveMode, error) {
	for i, name := range saveModeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return SaveMode(i), nil
		}
	}
	return SaveNone, fmt.Errorf("unknown save mode %q (expected one of %s)", s, strings.Join(saveModeNames, ", "))
}

// Snapshots writes keyboard renders of the best genome into a directory.
// Files are named <prefix>keyboard-<tag>.txt where tag is 0 for the start,
// the iteration for a new best and final for the end.
type Snapshots struct {
	dir    string
	prefix string
	spec   *layout.Spec
	mode   SaveMode
	err    error
}

// NewSnapshots returns a snapshot writer.
func NewSnapshots(dir, prefix string, spec *layout.Spec, mode SaveMode) *Snapshots {
	return &Snapshots{dir: dir, prefix: prefix, spec: spec, mode: mode}
}

// Observe implements anneal.Observer.
func (s *Snapshots) Observe(e anneal.Event) {
	switch e.Kind {
	case anneal.EventStart:
		if s.mode == SaveFirstAndLast || s.mode == SaveAllBest {
			s.write("0", e)
		}
	case anneal.EventIteration:
		if s.mode == SaveAllBest && e.NewBest {
			s.write(fmt.Sprintf("%d", e.Iteration), e)
		}
	case anneal.EventFinish:
		if s.mode != SaveNone {
			s.write("final", e)
		}
	}
}

// Err returns the first write error.
func (s *Snapshots) Err() error {
	return s.err
}

func (s *Snapshots) write(tag string, e anneal.Event) {
	if s.err != nil {
		return
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.err = fmt.Errorf("create snapshot dir: %w", err)
		return
	}
	text := fmt.Sprintf("iteration %d, best %+.5f%%\n%s\n%s\n", e.Iteration, e.Best, e.BestGenome, RenderKeyboard(s.spec, e.BestGenome, false))
	path := filepath.Join(s.dir, s.prefix+"keyboard-"+tag+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		s.err = fmt.Errorf("write snapshot: %w", err)
	}
}

// Recorder collects new-best events as store updates.
type Recorder struct {
	chain   int
	updates []model.ScoreUpdate
}

// NewRecorder returns a recorder for one chain.
func NewRecorder(chain int) *Recorder {
	return &Recorder{chain: chain}
}

// Observe implements anneal.Observer.
func (r *Recorder) Observe(e anneal.Event) {
	if e.Kind != anneal.EventIteration || !e.NewBest {
		return
	}
	r.updates = append(r.updates, model.ScoreUpdate{
		Chain:          r.chain,
		Iteration:      e.Iteration,
		Temperature:    e.Temperature,
		BestScore:      e.Best,
		CandidateScore: e.Candidate,
		Genome:         e.BestGenome.String(),
	})
}

// Updates returns the collected updates.
func (r *Recorder) Updates() []model.ScoreUpdate {
	return r.updates
}
