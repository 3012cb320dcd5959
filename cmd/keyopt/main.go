// Package main provides the CLI entrypoint for keyopt.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
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
	"github.com/verte-zerg/keyopt/internal/store"
	"github.com/verte-zerg/keyopt/internal/tui"
)

const (
	defaultLayout      = layout.QwertyEnUS
	defaultWords       = 5000
	defaultTemperature = 500
	defaultEpoch       = 20
	defaultCoolingRate = 0.99
	defaultIterations  = 25000
	defaultChains      = 1
	defaultSave        = "last"

	defaultWordlistLang = "en"
	defaultWordlistSize = 50000
)

var (
	optLayout      string
	optLayoutFile  string
	optCorpus      string
	optWordlist    string
	optWords       int
	optBaseline    string
	optTemperature float64
	optEpoch       int
	optCoolingRate float64
	optIterations  int
	optSeed        int64
	optChains      int
	optTUI         bool
	optSave        string
	optLogFile     string
	optNoDB        bool
	optQuiet       bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keyopt",
		Short:         "Keyboard layout optimiser",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runOptimizeCmd,
	}

	addLayoutFlags(rootCmd)
	addCorpusFlags(rootCmd)
	rootCmd.Flags().Float64Var(&optTemperature, "temperature", defaultTemperature, "initial temperature")
	rootCmd.Flags().IntVar(&optEpoch, "epoch", defaultEpoch, "iterations between cooling steps")
	rootCmd.Flags().Float64Var(&optCoolingRate, "cooling-rate", defaultCoolingRate, "temperature multiplier per epoch (0-1)")
	rootCmd.Flags().IntVar(&optIterations, "iterations", defaultIterations, "maximum iterations per chain")
	rootCmd.Flags().Int64Var(&optSeed, "seed", anneal.DefaultSeed, "random seed; chain i uses seed+i")
	rootCmd.Flags().IntVar(&optChains, "chains", defaultChains, "independent chains to run in parallel")
	rootCmd.Flags().BoolVar(&optTUI, "tui", false, "show live progress in a terminal UI")
	rootCmd.Flags().StringVar(&optSave, "save", defaultSave, "keyboards to save: none, last, first-last, all-best")
	rootCmd.Flags().StringVar(&optLogFile, "log-file", "", "score log path (default: data dir; '-' disables)")
	rootCmd.Flags().BoolVar(&optNoDB, "no-db", false, "do not record the run in the database")
	rootCmd.Flags().BoolVarP(&optQuiet, "quiet", "q", false, "print only the final genome")

	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newLayoutsCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newWordlistCmd())

	return rootCmd
}

func addLayoutFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&optLayout, "layout", defaultLayout, "built-in layout name")
	cmd.Flags().StringVar(&optLayoutFile, "layout-file", "", "JSON layout file (overrides --layout)")
	cmd.Flags().StringVar(&optBaseline, "baseline", "", "reference genome scores are relative to (default: layout's own)")
}

func addCorpusFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&optCorpus, "corpus", "", "corpus text file (.zst is decompressed)")
	cmd.Flags().StringVar(&optWordlist, "wordlist", "", "word list to generate a corpus from (default: extracted en list)")
	cmd.Flags().IntVar(&optWords, "words", defaultWords, "words to generate from --wordlist")
}

// applyFileConfig overlays config file values onto flags the user did not set.
func applyFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	run := fileCfg.Run
	applyStringConfig(cmd, "layout", &optLayout, run.Layout)
	applyStringConfig(cmd, "layout-file", &optLayoutFile, run.LayoutFile)
	applyStringConfig(cmd, "corpus", &optCorpus, run.Corpus)
	applyStringConfig(cmd, "wordlist", &optWordlist, run.Wordlist)
	applyIntConfig(cmd, "words", &optWords, run.Words)
	applyStringConfig(cmd, "baseline", &optBaseline, run.Baseline)
	applyFloatConfig(cmd, "temperature", &optTemperature, run.Temperature)
	applyIntConfig(cmd, "epoch", &optEpoch, run.Epoch)
	applyFloatConfig(cmd, "cooling-rate", &optCoolingRate, run.CoolingRate)
	applyIntConfig(cmd, "iterations", &optIterations, run.Iterations)
	applyInt64Config(cmd, "seed", &optSeed, run.Seed)
	applyIntConfig(cmd, "chains", &optChains, run.Chains)
	applyStringConfig(cmd, "save", &optSave, run.Save)

	out := fileCfg.Output
	applyStringConfig(cmd, "log-file", &optLogFile, out.LogFile)
	applyBoolConfig(cmd, "quiet", &optQuiet, out.Quiet)
	applyBoolConfig(cmd, "tui", &optTUI, out.TUI)
	applyBoolConfig(cmd, "no-db", &optNoDB, out.NoDB)
	return fileCfg, nil
}

// session is everything a scoring or optimising command needs.
type session struct {
	spec          *layout.Spec
	eval          *effort.Evaluator
	corpusName    string
	corpusChars   int
	keys          []int
	baseline      string
	baselineScore float64
}

func loadSession(fileCfg config.FileConfig) (*session, error) {
	spec, err := loadSpec()
	if err != nil {
		return nil, err
	}
	params, err := fileCfg.Effort.Apply(effort.DefaultParams())
	if err != nil {
		return nil, fmt.Errorf("failed to apply effort config: %w", err)
	}
	em, err := effort.NewModel(params)
	if err != nil {
		return nil, fmt.Errorf("invalid effort model: %w", err)
	}

	resolver := effort.NewResolver(spec)
	text, name, err := loadCorpusText(resolver)
	if err != nil {
		return nil, err
	}
	keys, err := resolver.Keys(text)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", name, err)
	}

	baseline := optBaseline
	if baseline == "" {
		baseline = layout.DefaultReference(spec)
	}
	ref, err := spec.Reference(baseline)
	if err != nil {
		return nil, err
	}
	eval := effort.New(spec, em)
	s := &session{
		spec:          spec,
		eval:          eval,
		corpusName:    name,
		corpusChars:   len([]rune(text)),
		keys:          keys,
		baseline:      baseline,
		baselineScore: eval.Raw(keys, ref),
	}
	if s.baselineScore == 0 {
		return nil, fmt.Errorf("baseline %q has zero effort on this corpus", baseline)
	}
	return s, nil
}

func loadSpec() (*layout.Spec, error) {
	if optLayoutFile != "" {
		spec, err := layout.LoadFile(optLayoutFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load layout: %w", err)
		}
		return spec, nil
	}
	return layout.Builtin(optLayout)
}

func loadCorpusText(resolver *effort.Resolver) (string, string, error) {
	switch {
	case optCorpus != "":
		text, err := corpus.Load(optCorpus)
		if err != nil {
			return "", "", fmt.Errorf("failed to load corpus: %w", err)
		}
		return text, optCorpus, nil
	case optWordlist == "":
		fallback := config.DefaultWordListPath(defaultWordlistLang)
		if _, err := os.Stat(fallback); err != nil {
			return "", "", errors.New("no corpus: use --corpus <file> or --wordlist <file>, or run 'keyopt wordlist' first")
		}
		optWordlist = fallback
		return loadCorpusText(resolver)
	default:
		words, err := corpus.LoadWords(optWordlist)
		if err != nil {
			return "", "", fmt.Errorf("failed to load word list: %w", err)
		}
		words = corpus.Filter(words, corpus.Typable(func(r rune) bool {
			_, ok := resolver.Resolve(r)
			return ok
		}))
		text, err := corpus.NewGenerator(optSeed).Generate(words, corpus.GenerateOptions{Count: optWords})
		if err != nil {
			return "", "", fmt.Errorf("failed to generate corpus from %s: %w", optWordlist, err)
		}
		return text, fmt.Sprintf("%s (%d words)", optWordlist, optWords), nil
	}
}

func runOptimizeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := applyFileConfig(cmd)
	if err != nil {
		return err
	}
	if optChains < 1 {
		return fmt.Errorf("--chains must be > 0")
	}
	if optWords <= 0 {
		return fmt.Errorf("--words must be > 0")
	}
	saveMode, err := report.ParseSaveMode(optSave)
	if err != nil {
		return fmt.Errorf("invalid --save: %w", err)
	}
	params := anneal.Params{
		InitialTemperature: optTemperature,
		Epoch:              optEpoch,
		CoolingRate:        optCoolingRate,
		MaxIterations:      optIterations,
		Seed:               optSeed,
	}
	if err := params.Validate(); err != nil {
		return err
	}

	sess, err := loadSession(fileCfg)
	if err != nil {
		return err
	}

	logPath := optLogFile
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	logs, err := openTextLogs(logPath, optChains)
	if err != nil {
		return err
	}
	defer logs.close()

	startedAt := time.Now()
	runCfg := model.RunConfig{
		Layout:        sess.spec.Name,
		Corpus:        sess.corpusName,
		CorpusChars:   sess.corpusChars,
		KeyPresses:    len(sess.keys),
		Baseline:      sess.baseline,
		BaselineScore: sess.baselineScore,
		Temperature:   params.InitialTemperature,
		Epoch:         params.Epoch,
		CoolingRate:   params.CoolingRate,
		Iterations:    params.MaxIterations,
		Seed:          params.Seed,
		Chains:        optChains,
	}
	rec, err := startRecording(cmd.Context(), startedAt, runCfg)
	if err != nil {
		return err
	}
	defer rec.close()

	if !optQuiet && !optTUI {
		logErrf("Optimising %s on %s: %d key presses, baseline %s effort %.2f\n",
			sess.spec.Name, sess.corpusName, len(sess.keys), sess.baseline, sess.baselineScore)
	}

	recorders := make([]*report.Recorder, optChains)
	snapshotDir := filepath.Dir(logPath)
	if logPath == "-" {
		snapshotDir = config.DefaultResultsDir()
	}
	snapshots := make([]*report.Snapshots, optChains)
	var program *tea.Program

	build := func(chain int, seed int64) (*anneal.Optimizer, error) {
		p := params
		p.Seed = seed
		recorders[chain] = report.NewRecorder(chain)
		prefix := ""
		if optChains > 1 {
			prefix = fmt.Sprintf("chain%d-", chain)
		}
		snapshots[chain] = report.NewSnapshots(snapshotDir, prefix, sess.spec, saveMode)
		opts := []anneal.Option{
			anneal.WithObserver(recorders[chain]),
			anneal.WithObserver(snapshots[chain]),
		}
		if l := logs.forChain(chain); l != nil {
			opts = append(opts, anneal.WithObserver(l))
		}
		switch {
		case program != nil:
			opts = append(opts, anneal.WithObserver(tui.NewReporter(program, chain)))
		case !optQuiet:
			opts = append(opts, anneal.WithObserver(progressPrinter(chain, optChains)))
		}
		return anneal.New(sess.eval, sess.spec.Letters, p, opts...)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var chains anneal.Chains
	var runErr error
	if optTUI {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		m := tui.NewModel(sess.spec, params, sess.baseline, optChains, cancel)
		program = tea.NewProgram(m, tea.WithAltScreen())
		done := make(chan struct{})
		go func() {
			defer close(done)
			chains, runErr = anneal.RunChains(ctx, optChains, params.Seed, build, sess.keys, sess.baselineScore)
			program.Send(tui.DoneMsg{Chains: chains, Err: runErr})
		}()
		if _, err := program.Run(); err != nil {
			cancel()
			<-done
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		cancel()
		<-done
	} else {
		chains, runErr = anneal.RunChains(ctx, optChains, params.Seed, build, sess.keys, sess.baselineScore)
	}
	elapsed := time.Since(startedAt)

	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) || len(chains.Results) == 0 {
			return fmt.Errorf("failed to optimise: %w", runErr)
		}
		logErrln("Stopped early; reporting the best layout found so far.")
	}
	for i := range snapshots {
		if snapshots[i] == nil {
			continue
		}
		if err := snapshots[i].Err(); err != nil {
			logErrf("failed to save keyboards: %v\n", err)
		}
	}
	if err := logs.err(); err != nil {
		logErrf("failed to write score log: %v\n", err)
	}

	winner := chains.Winner()
	var updates []model.ScoreUpdate
	for _, r := range recorders {
		if r != nil {
			updates = append(updates, r.Updates()...)
		}
	}
	rec.finish(winner, chains, updates, startedAt, elapsed)

	out := cmd.OutOrStdout()
	if optQuiet {
		if _, err := fmt.Fprintf(out, "%s %.4f\n", winner.Best, winner.BestScore); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := report.RenderResult(out, sess.spec, winner, sess.baseline, elapsed, report.IsTerminal(out)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if optChains > 1 {
		logErrf("Chain %d won (seed %d)\n", chains.Best, winner.Seed)
	}
	if rec.id != "" {
		logErrf("Saved run %s\n", report.ShortID(rec.id))
	}
	return nil
}

// progressPrinter reports every new best on stderr.
func progressPrinter(chain, chainCount int) anneal.Observer {
	prefix := ""
	if chainCount > 1 {
		prefix = fmt.Sprintf("chain %d: ", chain)
	}
	return anneal.ObserverFunc(func(e anneal.Event) {
		if e.Kind == anneal.EventIteration && e.NewBest {
			logErrf("%siteration %d  T %.2f  best %+.4f%%\n", prefix, e.Iteration, e.Temperature, e.Best)
		}
	})
}

// recording persists a run unless --no-db is set.
type recording struct {
	st *store.Store
	id string
}

func startRecording(ctx context.Context, startedAt time.Time, cfg model.RunConfig) (*recording, error) {
	if optNoDB {
		return &recording{}, nil
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	id, err := st.CreateRun(ctx, startedAt, cfg)
	if err != nil {
		if cerr := st.Close(); cerr != nil {
			// Best-effort close after a failed insert.
			_ = cerr
		}
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	return &recording{st: st, id: id}, nil
}

func (r *recording) finish(winner anneal.Result, chains anneal.Chains, updates []model.ScoreUpdate, startedAt time.Time, elapsed time.Duration) {
	if r.st == nil {
		return
	}
	ctx := context.Background()
	if err := r.st.AddUpdates(ctx, r.id, updates); err != nil {
		logErrf("failed to save score updates: %v\n", err)
	}
	var iterations, accepted, improvements int
	for _, res := range chains.Results {
		iterations += res.Iterations
		accepted += res.Accepted
		improvements += res.Improvements
	}
	run := model.Run{
		ID:               r.id,
		EndedAt:          startedAt.Add(elapsed),
		InitialGenome:    winner.Initial.String(),
		InitialScore:     winner.InitialScore,
		BestGenome:       winner.Best.String(),
		BestScore:        winner.BestScore,
		Iterations:       iterations,
		FinalTemperature: winner.FinalTemperature,
		Accepted:         accepted,
		Improvements:     improvements,
		DurationMs:       elapsed.Milliseconds(),
	}
	if err := r.st.FinishRun(ctx, run); err != nil {
		logErrf("failed to save run: %v\n", err)
	}
}

func (r *recording) close() {
	if r.st == nil {
		return
	}
	if cerr := r.st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

// textLogs holds one score log per chain. Chain 0 writes to the given
// path, other chains to path with a -chainN suffix.
type textLogs struct {
	files []*os.File
	logs  []*report.TextLog
}

func openTextLogs(path string, chainCount int) (*textLogs, error) {
	tl := &textLogs{}
	if path == "-" {
		return tl, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	for chain := 0; chain < chainCount; chain++ {
		p := path
		if chain > 0 {
			ext := filepath.Ext(path)
			p = fmt.Sprintf("%s-chain%d%s", strings.TrimSuffix(path, ext), chain, ext)
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			tl.close()
			return nil, fmt.Errorf("failed to open score log: %w", err)
		}
		tl.files = append(tl.files, f)
		tl.logs = append(tl.logs, report.NewTextLog(f))
	}
	return tl, nil
}

func (t *textLogs) forChain(chain int) *report.TextLog {
	if chain < len(t.logs) {
		return t.logs[chain]
	}
	return nil
}

func (t *textLogs) err() error {
	for _, l := range t.logs {
		if err := l.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (t *textLogs) close() {
	for _, f := range t.files {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close score log: %v\n", cerr)
		}
	}
	t.files = nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
