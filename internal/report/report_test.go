package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/keyopt/internal/anneal"
	"github.com/verte-zerg/keyopt/internal/effort"
	"github.com/verte-zerg/keyopt/internal/layout"
	"github.com/verte-zerg/keyopt/internal/model"
)

func qwertySpec(t *testing.T) (*layout.Spec, layout.Genome) {
	t.Helper()
	spec, err := layout.Builtin(layout.QwertyEnUS)
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	g, err := spec.Reference("qwerty")
	if err != nil {
		t.Fatalf("Reference: %v", err)
	}
	return spec, g
}

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Layout", "Effort", "Moved"}
	rows := [][]string{
		{"qwerty", "12.50", "0"},
		{"dvorak", "9.10", "33"},
	}
	lines := formatTable(headers, rows, map[int]bool{1: true, 2: true})
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Layout  Effort  Moved" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "qwerty   12.50      0" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "dvorak    9.10     33" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestRenderKeyboardQwerty(t *testing.T) {
	spec, g := qwertySpec(t)
	out := RenderKeyboard(spec, g, false)
	lines := strings.Split(out, "\n")
	want := []string{
		"[~] [1] [2] [3] [4] [5] [6] [7] [8] [9] [0] [-] [+]",
		"      [Q] [W] [E] [R] [T] [Y] [U] [I] [O] [P] [[] []]",
		"       |A| |S| |D| |F| [G] [H] |J| |K| |L| |;| [']",
		"         [Z] [X] [C] [V] [B] [N] [M] [<] [>] [?]",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(lines), out)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d:\n got %q\nwant %q", i, lines[i], want[i])
		}
	}
}

func TestRenderKeyboardColorKeepsLabels(t *testing.T) {
	spec, g := qwertySpec(t)
	out := RenderKeyboard(spec, g, true)
	for _, r := range "QWERTYASDF" {
		if !strings.ContainsRune(out, r) {
			t.Fatalf("expected %q in coloured output", r)
		}
	}
}

func TestClassOf(t *testing.T) {
	cases := map[rune]KeyClass{
		'E': ClassTop,
		'T': ClassCommon,
		'L': ClassCommon,
		'[': ClassRare,
		'7': ClassRare,
		'Q': ClassOther,
		'1': ClassOther,
	}
	for r, want := range cases {
		if got := ClassOf(r); got != want {
			t.Fatalf("ClassOf(%q) = %d, want %d", r, got, want)
		}
	}
}

func TestPlot(t *testing.T) {
	var buf bytes.Buffer
	err := Plot(&buf, "Scores", []Series{
		{Name: "best", Values: []float64{0, -1, -2, -2, -3}},
		{Name: "candidate", Values: []float64{1, 0, -1, 2, -3}},
	}, PlotOptions{Width: 20, Height: 4})
	if err != nil {
		t.Fatalf("Plot failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1+4+1 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Scores" {
		t.Fatalf("unexpected title %q", lines[0])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "2.00") || !strings.HasPrefix(lines[4], "-3.00") {
		t.Fatalf("unexpected axis labels:\n%s", buf.String())
	}
	if !strings.Contains(lines[5], "best  candidate") {
		t.Fatalf("expected legend, got %q", lines[5])
	}
}

func TestPlotSkipsEmptySeries(t *testing.T) {
	var buf bytes.Buffer
	if err := Plot(&buf, "Empty", []Series{{Name: "none"}}, PlotOptions{Width: 10}); err != nil {
		t.Fatalf("Plot failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestResample(t *testing.T) {
	got := resample([]float64{0, 2, 4, 6}, 2)
	if got[0] != 1 || got[1] != 5 {
		t.Fatalf("unexpected downsample %v", got)
	}
	got = resample([]float64{0, 3}, 4)
	if got[0] != 0 || math.Abs(got[1]-1) > 1e-9 || got[3] != 3 {
		t.Fatalf("unexpected upsample %v", got)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 9}); got != " @" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{3, 3, 3}); got != "+++" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
	if Sparkline(nil) != "" {
		t.Fatalf("expected empty sparkline")
	}
}

func TestGenomeDistance(t *testing.T) {
	a := layout.ParseGenome("ABCD")
	if d := GenomeDistance(a, layout.ParseGenome("ABCD")); d != 0 {
		t.Fatalf("expected 0, got %d", d)
	}
	if d := GenomeDistance(a, layout.ParseGenome("BACD")); d != 2 {
		t.Fatalf("expected 2, got %d", d)
	}
}

func TestScoreReferences(t *testing.T) {
	spec, _ := qwertySpec(t)
	eval := effort.New(spec, effort.DefaultModel())
	keys := effort.NewResolver(spec).ResolveText("the quick brown fox jumps over the lazy dog")
	scores, err := ScoreReferences(eval, keys, "qwerty")
	if err != nil {
		t.Fatalf("ScoreReferences: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 references, got %d", len(scores))
	}
	for _, s := range scores {
		if s.Name == "qwerty" && (s.Relative != 0 || s.Moved != 0 || s.Distance != 0) {
			t.Fatalf("baseline should compare equal to itself: %+v", s)
		}
	}
	var buf bytes.Buffer
	if err := RenderReferences(&buf, "qwerty", scores); err != nil {
		t.Fatalf("RenderReferences: %v", err)
	}
	if !strings.Contains(buf.String(), "vs qwerty") || !strings.Contains(buf.String(), "dvorak") {
		t.Fatalf("unexpected table:\n%s", buf.String())
	}

	if _, err := ScoreReferences(eval, keys, "colemak"); err == nil {
		t.Fatalf("expected error for unknown baseline")
	}
}

func TestTextLog(t *testing.T) {
	var buf bytes.Buffer
	log := NewTextLog(&buf)
	events := []anneal.Event{
		{Kind: anneal.EventStart, Temperature: 100, Best: 5},
		{Kind: anneal.EventIteration, Iteration: 1, Temperature: 100, Candidate: 6, Best: 5},
		{Kind: anneal.EventIteration, Iteration: 2, Temperature: 99, Candidate: 4, Best: 4, Improved: true, NewBest: true},
		{Kind: anneal.EventIteration, Iteration: 3, Temperature: 98.01, Candidate: 3.5, Best: 3.5, Improved: true, NewBest: true},
		{Kind: anneal.EventFinish, Iteration: 3, Temperature: 98.01, Best: 3.5},
	}
	for _, e := range events {
		log.Observe(e)
	}
	if err := log.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "\nStarting new Run\n" +
		"temperature | iteration | bestObjective | newObjective\n" +
		"99.00, 2, 5.00000, 4.00000\n" +
		"98.01, 3, 4.00000, 3.50000\n"
	if buf.String() != want {
		t.Fatalf("unexpected log:\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestParseSaveMode(t *testing.T) {
	cases := map[string]SaveMode{
		"none":       SaveNone,
		"last":       SaveLast,
		"First-Last": SaveFirstAndLast,
		" all-best ": SaveAllBest,
	}
	for in, want := range cases {
		got, err := ParseSaveMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseSaveMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSaveMode("sometimes"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestSnapshots(t *testing.T) {
	spec, g := qwertySpec(t)
	events := []anneal.Event{
		{Kind: anneal.EventStart, BestGenome: g},
		{Kind: anneal.EventIteration, Iteration: 1, BestGenome: g},
		{Kind: anneal.EventIteration, Iteration: 2, NewBest: true, BestGenome: g},
		{Kind: anneal.EventFinish, Iteration: 2, BestGenome: g},
	}
	cases := []struct {
		mode  SaveMode
		files []string
	}{
		{SaveNone, nil},
		{SaveLast, []string{"run-keyboard-final.txt"}},
		{SaveFirstAndLast, []string{"run-keyboard-0.txt", "run-keyboard-final.txt"}},
		{SaveAllBest, []string{"run-keyboard-0.txt", "run-keyboard-2.txt", "run-keyboard-final.txt"}},
	}
	for _, tc := range cases {
		dir := filepath.Join(t.TempDir(), "results")
		snaps := NewSnapshots(dir, "run-", spec, tc.mode)
		for _, e := range events {
			snaps.Observe(e)
		}
		if err := snaps.Err(); err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.mode, err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil && len(tc.files) > 0 {
			t.Fatalf("%s: ReadDir: %v", tc.mode, err)
		}
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		if strings.Join(names, ",") != strings.Join(tc.files, ",") {
			t.Fatalf("%s: got files %v, want %v", tc.mode, names, tc.files)
		}
	}
}

func TestRecorderKeepsNewBests(t *testing.T) {
	g := layout.ParseGenome("AB")
	rec := NewRecorder(2)
	rec.Observe(anneal.Event{Kind: anneal.EventStart, Best: 1, BestGenome: g})
	rec.Observe(anneal.Event{Kind: anneal.EventIteration, Iteration: 1, Best: 1, BestGenome: g})
	rec.Observe(anneal.Event{Kind: anneal.EventIteration, Iteration: 2, Temperature: 9, Candidate: 0.5, Best: 0.5, NewBest: true, BestGenome: g})
	updates := rec.Updates()
	if len(updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(updates))
	}
	want := model.ScoreUpdate{Chain: 2, Iteration: 2, Temperature: 9, BestScore: 0.5, CandidateScore: 0.5, Genome: "AB"}
	if updates[0] != want {
		t.Fatalf("unexpected update %+v", updates[0])
	}
}

func TestRenderRunTable(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderRunTable(&buf, nil); err != nil {
		t.Fatalf("RenderRunTable: %v", err)
	}
	if !strings.Contains(buf.String(), "No runs found.") {
		t.Fatalf("unexpected empty output %q", buf.String())
	}

	buf.Reset()
	runs := []model.Run{{
		ID:         "0123456789abcdef",
		StartedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Status:     model.StatusFinished,
		Config:     model.RunConfig{Layout: layout.QwertyEnUS},
		Iterations: 25000,
		BestScore:  -12.5,
		DurationMs: 1500,
	}}
	if err := RenderRunTable(&buf, runs); err != nil {
		t.Fatalf("RenderRunTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"01234567", "qwerty-en-us", "25000", "-12.50%", "1.5s", "finished"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "89abcdef") {
		t.Fatalf("expected shortened id in:\n%s", out)
	}
}

func TestRenderRun(t *testing.T) {
	spec, g := qwertySpec(t)
	run := model.Run{
		ID:         "run-1",
		StartedAt:  time.Now(),
		Status:     model.StatusFinished,
		Config:     model.RunConfig{Layout: layout.QwertyEnUS, Baseline: "qwerty"},
		BestGenome: g.String(),
	}
	updates := []model.ScoreUpdate{{BestScore: 0}, {BestScore: -1}, {BestScore: -2}}
	var buf bytes.Buffer
	if err := RenderRun(&buf, run, updates, spec, PlotOptions{Width: 20, Height: 3}); err != nil {
		t.Fatalf("RenderRun: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Run run-1 (finished)", "|A| |S|", "0 keys moved from qwerty", "Best score over 3 improvements"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}

	buf.Reset()
	run.BestGenome = "not a genome"
	if err := RenderRun(&buf, run, nil, spec, PlotOptions{}); err != nil {
		t.Fatalf("RenderRun: %v", err)
	}
	if strings.Contains(buf.String(), "keys moved") {
		t.Fatalf("expected keyboard to be skipped for invalid genome")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "-",
		1500 * time.Microsecond: "2ms",
		1234 * time.Millisecond: "1.2s",
	}
	for d, want := range cases {
		if got := FormatDuration(d); got != want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestRenderBreakdown(t *testing.T) {
	spec, g := qwertySpec(t)
	eval := effort.New(spec, effort.DefaultModel())
	keys := effort.NewResolver(spec).ResolveText("asdf jkl;")
	var buf bytes.Buffer
	if err := RenderBreakdown(&buf, eval.Breakdown(keys, g)); err != nil {
		t.Fatalf("RenderBreakdown: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1+layout.FingerCount+1 {
		t.Fatalf("expected %d lines, got %d:\n%s", layout.FingerCount+2, len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "left ring") || !strings.HasPrefix(lines[len(lines)-1], "total") {
		t.Fatalf("unexpected breakdown:\n%s", buf.String())
	}
	if !strings.Contains(lines[len(lines)-1], " 8") {
		t.Fatalf("expected 8 presses in total:\n%s", buf.String())
	}
}
