package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/verte-zerg/keyopt/internal/anneal"
	"github.com/verte-zerg/keyopt/internal/effort"
	"github.com/verte-zerg/keyopt/internal/layout"
	"github.com/verte-zerg/keyopt/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		idx := int(math.Round((v - lo) / (hi - lo) * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[min(max(idx, 0), len(sparkChars)-1)])
	}
	return b.String()
}

// GenomeDistance is the edit distance between two genomes.
func GenomeDistance(a, b layout.Genome) int {
	return levenshtein.ComputeDistance(a.String(), b.String())
}

// ReferenceScore compares one reference genome with the baseline.
type ReferenceScore struct {
	Name     string
	Raw      float64
	Relative float64
	Moved    int
	Distance int
}

// ScoreReferences scores every reference genome of the layout against the
// baseline reference.
func ScoreReferences(eval *effort.Evaluator, keys []int, baseline string) ([]ReferenceScore, error) {
	spec := eval.Spec()
	base, err := spec.Reference(baseline)
	if err != nil {
		return nil, err
	}
	baseScore := eval.Raw(keys, base)
	names := spec.ReferenceNames()
	out := make([]ReferenceScore, 0, len(names))
	for _, name := range names {
		g, err := spec.Reference(name)
		if err != nil {
			return nil, err
		}
		raw := eval.Raw(keys, g)
		out = append(out, ReferenceScore{
			Name:     name,
			Raw:      raw,
			Relative: (raw/baseScore - 1) * 100,
			Moved:    g.Moved(base),
			Distance: GenomeDistance(g, base),
		})
	}
	return out, nil
}

// RenderReferences prints a reference score table.
func RenderReferences(w io.Writer, baseline string, scores []ReferenceScore) error {
	if len(scores) == 0 {
		_, err := fmt.Fprintln(w, "No reference layouts.")
		return err
	}
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, []string{
			s.Name,
			fmt.Sprintf("%.2f", s.Raw),
			fmt.Sprintf("%+.2f%%", s.Relative),
			fmt.Sprintf("%d", s.Moved),
			fmt.Sprintf("%d", s.Distance),
		})
	}
	headers := []string{"Layout", "Effort", "vs " + baseline, "Moved", "Edits"}
	return writeTable(w, headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true})
}

// RenderRunTable prints one line per stored run.
func RenderRunTable(w io.Writer, runs []model.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, RunRow(r))
	}
	return writeTable(w, RunHeaders(), rows, map[int]bool{3: true, 4: true, 5: true})
}

// RunHeaders are the column titles of RunRow.
func RunHeaders() []string {
	return []string{"ID", "Started", "Layout", "Iterations", "Best", "Duration", "Status"}
}

// RunRow formats a run for tables.
func RunRow(r model.Run) []string {
	best := "-"
	if r.Status == model.StatusFinished {
		best = fmt.Sprintf("%+.2f%%", r.BestScore)
	}
	return []string{
		ShortID(r.ID),
		r.StartedAt.Local().Format("2006-01-02 15:04"),
		r.Config.Layout,
		fmt.Sprintf("%d", r.Iterations),
		best,
		FormatDuration(time.Duration(r.DurationMs) * time.Millisecond),
		r.Status,
	}
}

// ShortID is the id prefix shown in listings.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatDuration rounds d for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

// RenderRun prints a stored run with its score curve. spec may be nil when
// the run's layout is not available; the keyboard is then skipped.
func RenderRun(w io.Writer, run model.Run, updates []model.ScoreUpdate, spec *layout.Spec, opts PlotOptions) error {
	cfg := run.Config
	lines := []string{
		fmt.Sprintf("Run %s (%s)", run.ID, run.Status),
		fmt.Sprintf("Started: %s", run.StartedAt.Local().Format(time.RFC1123)),
		fmt.Sprintf("Layout: %s  Corpus: %s (%d chars, %d key presses)", cfg.Layout, cfg.Corpus, cfg.CorpusChars, cfg.KeyPresses),
		fmt.Sprintf("Baseline: %s (effort %.2f)", cfg.Baseline, cfg.BaselineScore),
		fmt.Sprintf("Temperature %.2f, epoch %d, cooling %.4f, iterations %d, seed %d, chains %d",
			cfg.Temperature, cfg.Epoch, cfg.CoolingRate, cfg.Iterations, cfg.Seed, cfg.Chains),
	}
	if run.Status == model.StatusFinished {
		lines = append(lines,
			fmt.Sprintf("Best: %+.4f%%  Initial: %+.4f%%", run.BestScore, run.InitialScore),
			fmt.Sprintf("Iterations: %d  Accepted: %d  Improvements: %d  Final temperature: %.2f",
				run.Iterations, run.Accepted, run.Improvements, run.FinalTemperature),
			fmt.Sprintf("Duration: %s", FormatDuration(time.Duration(run.DurationMs)*time.Millisecond)),
		)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if spec != nil && run.BestGenome != "" {
		best := layout.ParseGenome(run.BestGenome)
		if err := spec.ValidateGenome(best); err == nil {
			if _, err := fmt.Fprintf(w, "\n%s\n", RenderKeyboard(spec, best, opts.Color)); err != nil {
				return err
			}
			if ref, err := spec.Reference(cfg.Baseline); err == nil {
				if _, err := fmt.Fprintf(w, "%d keys moved from %s, edit distance %d\n", best.Moved(ref), cfg.Baseline, GenomeDistance(best, ref)); err != nil {
					return err
				}
			}
		}
	}

	if len(updates) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	bests := make([]float64, len(updates))
	for i, u := range updates {
		bests[i] = u.BestScore
	}
	return Plot(w, fmt.Sprintf("Best score over %d improvements", len(updates)), []Series{{Name: "best %", Values: bests}}, opts)
}

// RenderResult prints the outcome of a finished optimisation.
func RenderResult(w io.Writer, spec *layout.Spec, res anneal.Result, baseline string, elapsed time.Duration, color bool) error {
	lines := []string{
		fmt.Sprintf("Best layout (seed %d, %d iterations, %s):", res.Seed, res.Iterations, FormatDuration(elapsed)),
		"",
		RenderKeyboard(spec, res.Best, color),
		"",
		fmt.Sprintf("Genome: %s", res.Best),
		fmt.Sprintf("Score: %+.4f%% vs %s (start %+.4f%%)", res.BestScore, baseline, res.InitialScore),
		fmt.Sprintf("Accepted %d moves, %d new bests, final temperature %.2f", res.Accepted, res.Improvements, res.FinalTemperature),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderBreakdown prints the per-finger share of an evaluation.
func RenderBreakdown(w io.Writer, b effort.Breakdown) error {
	rows := make([][]string, 0, len(b.Fingers)+1)
	presses := 0
	for _, f := range b.Fingers {
		presses += f.Presses
	}
	for _, f := range b.Fingers {
		share := 0.0
		if presses > 0 {
			share = float64(f.Presses) / float64(presses) * 100
		}
		rows = append(rows, []string{
			f.Hand.String() + " " + f.Finger.String(),
			fmt.Sprintf("%d", f.Presses),
			fmt.Sprintf("%.1f%%", share),
			fmt.Sprintf("%d", f.Distance),
			fmt.Sprintf("%.2f", f.Objective),
		})
	}
	rows = append(rows, []string{"total", fmt.Sprintf("%d", presses), "", "", fmt.Sprintf("%.2f", b.Total)})
	headers := []string{"Finger", "Presses", "Share", "Distance", "Effort"}
	return writeTable(w, headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true})
}
