package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/keyopt/internal/anneal"
	"github.com/verte-zerg/keyopt/internal/config"
	"github.com/verte-zerg/keyopt/internal/corpus"
	"github.com/verte-zerg/keyopt/internal/effort"
	"github.com/verte-zerg/keyopt/internal/layout"
	"github.com/verte-zerg/keyopt/internal/model"
	"github.com/verte-zerg/keyopt/internal/report"
	"github.com/verte-zerg/keyopt/internal/runsui"
	"github.com/verte-zerg/keyopt/internal/store"
)

var (
	scoreWatch  bool
	scoreGenome string

	runsLayout string
	runsSince  string
	runsLast   int
	runsPlain  bool

	wordlistLang  string
	wordlistSize  int
	wordlistList  string
	wordlistForce bool
	wordlistShow  bool
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score the reference layouts on a corpus",
		Args:  cobra.NoArgs,
		RunE:  runScoreCmd,
	}
	addLayoutFlags(cmd)
	addCorpusFlags(cmd)
	cmd.Flags().StringVar(&scoreGenome, "genome", "", "also score this genome (one character per key)")
	cmd.Flags().BoolVar(&scoreWatch, "watch", false, "rescore whenever the corpus file changes")
	return cmd
}

func runScoreCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := applyFileConfig(cmd)
	if err != nil {
		return err
	}
	if scoreWatch && optCorpus == "" {
		return fmt.Errorf("--watch needs --corpus")
	}
	sess, err := loadSession(fileCfg)
	if err != nil {
		return err
	}
	var custom layout.Genome
	if scoreGenome != "" {
		custom = layout.ParseGenome(scoreGenome)
		if err := sess.spec.ValidateGenome(custom); err != nil {
			return fmt.Errorf("invalid --genome: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if err := printScores(out, sess.eval, sess.keys, sess.baseline, custom); err != nil {
		return err
	}
	if !scoreWatch {
		return nil
	}

	w, err := corpus.NewWatcher(optCorpus)
	if err != nil {
		return fmt.Errorf("failed to watch corpus: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	logErrf("Watching %s, press Ctrl+C to stop\n", optCorpus)
	resolver := effort.NewResolver(sess.spec)
	return w.Run(ctx, func(text string, err error) {
		if err != nil {
			logErrf("failed to reload corpus: %v\n", err)
			return
		}
		keys, err := resolver.Keys(text)
		if err != nil {
			logErrf("failed to read corpus: %v\n", err)
			return
		}
		if _, err := fmt.Fprintf(out, "\n%s  %d key presses\n", time.Now().Format("15:04:05"), len(keys)); err != nil {
			logErrf("failed to write output: %v\n", err)
			return
		}
		if err := printScores(out, sess.eval, keys, sess.baseline, custom); err != nil {
			logErrf("%v\n", err)
		}
	})
}

func printScores(w io.Writer, eval *effort.Evaluator, keys []int, baseline string, custom layout.Genome) error {
	scores, err := report.ScoreReferences(eval, keys, baseline)
	if err != nil {
		return fmt.Errorf("failed to score references: %w", err)
	}
	if custom != nil {
		ref, err := eval.Spec().Reference(baseline)
		if err != nil {
			return err
		}
		base := eval.Raw(keys, ref)
		raw := eval.Raw(keys, custom)
		scores = append(scores, report.ReferenceScore{
			Name:     "genome",
			Raw:      raw,
			Relative: eval.Relative(keys, custom, base),
			Moved:    custom.Moved(ref),
			Distance: report.GenomeDistance(custom, ref),
		})
	}
	if err := report.RenderReferences(w, baseline, scores); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if custom == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\n%s\n\n", report.RenderKeyboard(eval.Spec(), custom, report.IsTerminal(w))); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := report.RenderBreakdown(w, eval.Breakdown(keys, custom)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newLayoutsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "List built-in layouts",
		Args:  cobra.NoArgs,
		RunE:  runLayoutsCmd,
	}
}

func runLayoutsCmd(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	for _, name := range layout.BuiltinNames() {
		spec, err := layout.Builtin(name)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s  %d keys  references: %s", name, spec.Size(), strings.Join(spec.ReferenceNames(), ", "))
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse stored runs",
		Args:  cobra.NoArgs,
		RunE:  runRunsCmd,
	}
	cmd.Flags().StringVar(&runsLayout, "layout", "", "layout filter")
	cmd.Flags().StringVar(&runsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&runsLast, "last", 0, "limit to last N runs")
	cmd.Flags().BoolVar(&runsPlain, "plain", false, "print a table instead of the TUI")
	return cmd
}

func runRunsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if runsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", runsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if runsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	filter := model.RunsFilter{Layout: runsLayout, Since: sinceTime, Last: runsLast}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if runsPlain {
		runs, err := st.ListRuns(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if err := report.RenderRunTable(cmd.OutOrStdout(), runs); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	m := runsui.NewModel(st, builtinSpec, filter)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run runs TUI: %w", err)
	}
	return nil
}

// builtinSpec resolves a stored layout name, or nil for custom layouts.
func builtinSpec(name string) *layout.Spec {
	spec, err := layout.Builtin(name)
	if err != nil {
		return nil
	}
	return spec
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}
}

func runShowCmd(cmd *cobra.Command, args []string) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := cmd.Context()
	run, err := st.GetRun(ctx, args[0])
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) || errors.Is(err, store.ErrAmbiguousID) {
			return fmt.Errorf("%w: %s (list runs with: keyopt runs --plain)", err, args[0])
		}
		return fmt.Errorf("failed to load run: %w", err)
	}
	updates, err := st.ListUpdates(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load score updates: %w", err)
	}

	out := cmd.OutOrStdout()
	opts := report.PlotOptions{Color: report.IsTerminal(out)}
	if err := report.RenderRun(out, run, updates, builtinSpec(run.Config.Layout), opts); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	p := effort.DefaultParams()
	return fmt.Sprintf(`# keyopt configuration
# Uncomment a value to enable it. CLI flags override config values.

[run]
# layout = %q     # Built-in layout
# layout-file = ""            # JSON layout file (overrides layout)
# corpus = ""                 # Corpus text file, .zst is decompressed
# wordlist = ""               # Word list to generate a corpus from
# words = %d                # Words to generate from the word list
# baseline = ""               # Reference genome (default: the layout's own)
# temperature = %.1f        # Initial temperature
# epoch = %d                  # Iterations between cooling steps
# cooling-rate = %.2f         # Temperature multiplier per epoch
# iterations = %d          # Maximum iterations per chain
# seed = %d              # Random seed
# chains = %d                  # Independent chains run in parallel
# save = %q               # none, last, first-last or all-best

[effort]
# finger-cpm = %s
# row-cpm = %s
# weights = %s
# distance-exponent = %d
# double-finger = %s
# double-hand = %s

[output]
# log-file = ""               # Score log (default: data dir, "-" disables)
# quiet = false               # Print only the final genome
# tui = false                 # Live progress UI
# no-db = false               # Do not record runs
`,
		defaultLayout,
		defaultWords,
		float64(defaultTemperature),
		defaultEpoch,
		defaultCoolingRate,
		defaultIterations,
		anneal.DefaultSeed,
		defaultChains,
		defaultSave,
		tomlFloats(p.FingerCPM[:]),
		tomlFloats(p.RowCPM[:]),
		tomlFloats(p.Weights[:]),
		p.DistanceExponent,
		tomlFloat(p.DoubleFingerEffort),
		tomlFloat(p.DoubleHandEffort),
	)
}

func tomlFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = tomlFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// tomlFloat always carries a fraction so TOML reads it as a float.
func tomlFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func newWordlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordlist",
		Short: "Extract a word list from the wordfreq dataset",
		Args:  cobra.NoArgs,
		RunE:  runWordlistCmd,
	}
	cmd.Flags().StringVar(&wordlistLang, "lang", defaultWordlistLang, "language code or 'all'")
	cmd.Flags().IntVar(&wordlistSize, "size", defaultWordlistSize, "number of words")
	cmd.Flags().StringVar(&wordlistList, "list", "large", "wordfreq list to read: small or large")
	cmd.Flags().BoolVar(&wordlistForce, "force", false, "overwrite existing files")
	cmd.Flags().BoolVar(&wordlistShow, "languages", false, "print the available languages and exit")
	return cmd
}

func runWordlistCmd(cmd *cobra.Command, _ []string) error {
	if wordlistSize <= 0 {
		return fmt.Errorf("--size must be greater than 0")
	}
	if wordlistList != "small" && wordlistList != "large" {
		return fmt.Errorf("--list must be small or large, got %q", wordlistList)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logErrln("Fetching wordfreq metadata...")
	client := &http.Client{Timeout: 60 * time.Second}
	wheel, err := corpus.FetchWheel(ctx, client, corpus.WordfreqIndexURL, config.DefaultWordfreqCacheDir())
	if err != nil {
		return fmt.Errorf("failed to download wordfreq wheel: %w", err)
	}
	if wheel.Cached {
		logErrf("Using cached wordfreq %s\n", wheel.Version)
	} else {
		logErrf("Downloaded wordfreq %s\n", wheel.Version)
	}
	lists, err := corpus.ListWordLists(wheel.Path)
	if err != nil {
		return fmt.Errorf("failed to list languages: %w", err)
	}
	if wordlistShow {
		out := cmd.OutOrStdout()
		for _, lang := range lists.Languages() {
			fmt.Fprintf(out, "%s\t%s\n", lang, strings.Join(lists[lang], ", "))
		}
		return nil
	}

	langs := []string{strings.ToLower(wordlistLang)}
	all := langs[0] == "all"
	if all {
		langs = lists.Languages()
	} else if _, ok := lists[langs[0]]; !ok {
		return fmt.Errorf("unknown language %q (see --languages)", wordlistLang)
	}

	outDir := config.DefaultWordListDir()
	for _, lang := range langs {
		outPath := config.DefaultWordListPath(lang)
		if !wordlistForce {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("word list already exists: %s (use --force to overwrite)", outPath)
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to stat word list: %w", err)
			}
		}
		list := wordlistList
		if !lists.Has(lang, list) {
			if all {
				logErrf("Skipping %s (no %s list)\n", lang, list)
				continue
			}
			list = lists[lang][0]
			logErrf("Using the %s list for %s\n", list, lang)
		}
		words, err := corpus.ExtractWords(wheel.Path, lang, list, wordlistSize)
		if err != nil {
			if all {
				logErrf("Skipping %s: %v\n", lang, err)
				continue
			}
			return fmt.Errorf("failed to extract %s word list: %w", lang, err)
		}
		if err := corpus.WriteWords(outPath, words); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
		logErrf("Wrote %s (%d words)\n", outPath, len(words))
	}

	if err := corpus.WriteAttribution(wheel.Path, outDir); err != nil {
		return fmt.Errorf("failed to write attribution: %w", err)
	}
	logErrln("Wrote ATTRIBUTION.txt and LICENSE.txt")
	return nil
}
