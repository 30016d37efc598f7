// Command gaze-analyse segments eye-tracking recordings into stimulus
// phases and computes gaze features for every phase. Results are stored in
// SQLite and written as plots, dashboards and JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/gaze.report/internal/batch"
	"github.com/banshee-data/gaze.report/internal/config"
	"github.com/banshee-data/gaze.report/internal/db"
	"github.com/banshee-data/gaze.report/internal/pipeline"
	"github.com/banshee-data/gaze.report/internal/report"
	"github.com/banshee-data/gaze.report/internal/session"
	"github.com/banshee-data/gaze.report/internal/session/xdf"
	"github.com/banshee-data/gaze.report/internal/units"
	"github.com/banshee-data/gaze.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to analysis config JSON (defaults built in)")
	workers     = flag.Int("workers", 0, "Concurrent files (0 = config value, else NumCPU)")
	dbPath      = flag.String("db", "gaze_results.db", "SQLite results database (empty disables storage)")
	outDir      = flag.String("out", "reports", "Output directory for plots, dashboards and JSON")
	plots       = flag.Bool("plots", true, "Write PNG plots per phase")
	html        = flag.Bool("html", true, "Write an HTML dashboard per file")
	jsonOut     = flag.Bool("json", true, "Write a JSON feature export per file")
	dpi         = flag.Int("dpi", 0, "Plot resolution (0 = config value)")
	velUnits    = flag.String("units", "", "Velocity units: "+units.GetValidVelocityUnitsString())
	phases      = flag.String("phases", "", "Comma-separated subset of phases to compute")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options is the resolved command line.
type options struct {
	cfg     *config.AnalysisConfig
	inputs  []string
	dbPath  string
	outDir  string
	plots   bool
	html    bool
	json    bool
	phases  []string
	workers int
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <file.xdf|glob>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyFlags(cfg, *workers, *dpi, *velUnits); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	inputs, err := expandInputs(flag.Args())
	if err != nil {
		log.Fatalf("failed to expand inputs: %v", err)
	}
	selected, err := selectPhases(cfg, *phases)
	if err != nil {
		log.Fatalf("invalid -phases: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("%s: analysing %d files", version.String(), len(inputs))
	summary, err := analyse(ctx, options{
		cfg:     cfg,
		inputs:  inputs,
		dbPath:  *dbPath,
		outDir:  *outDir,
		plots:   *plots,
		html:    *html,
		json:    *jsonOut,
		phases:  selected,
		workers: cfg.GetWorkers(),
	})
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	printSummary(os.Stdout, summary)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.AnalysisConfig, error) {
	if path == "" {
		return config.DefaultAnalysisConfig(), nil
	}
	return config.LoadAnalysisConfig(path)
}

// applyFlags overrides config values with non-zero flags.
func applyFlags(cfg *config.AnalysisConfig, workers, dpi int, unit string) error {
	if workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", workers)
	}
	if workers > 0 {
		cfg.Workers = &workers
	}
	if dpi < 0 {
		return fmt.Errorf("dpi must be non-negative, got %d", dpi)
	}
	if dpi > 0 {
		cfg.PlotDPI = &dpi
	}
	if unit != "" {
		cfg.VelocityUnits = &unit
	}
	return cfg.Validate()
}

// expandInputs resolves glob patterns and drops duplicate paths while
// keeping first-seen order. A pattern without matches is kept as a literal
// path so the runner reports it as unreadable.
func expandInputs(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			add(arg)
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

// selectPhases parses a comma-separated phase list and checks every name
// against the configured phases.
func selectPhases(cfg *config.AnalysisConfig, list string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	known := make(map[string]bool)
	for _, name := range cfg.GetPhaseNames() {
		known[name] = true
	}
	var out []string
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !known[name] {
			return nil, fmt.Errorf("unknown phase %q (configured: %s)", name, strings.Join(cfg.GetPhaseNames(), ", "))
		}
		out = append(out, name)
	}
	return out, nil
}

func openXDF(path string) (session.StreamSet, error) {
	set, err := xdf.Open(path)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// analyse runs the batch, writes the reports and stores every result.
// Per-file failures, including failed report or store writes, end up in the
// summary; only setup and run bookkeeping errors are returned.
func analyse(ctx context.Context, o options) (report.RunSummary, error) {
	runner := &batch.Runner{
		Workers:  o.workers,
		Open:     openXDF,
		Pipeline: pipeline.New(o.cfg.PipelineConfig()),
		Phases:   o.phases,
	}
	writer := report.New(report.Options{
		OutDir: o.outDir,
		DPI:    o.cfg.GetPlotDPI(),
		Units:  o.cfg.GetVelocityUnits(),
		Stems:  report.UniqueStems(o.inputs),
	})

	var (
		store *db.DB
		runID string
	)
	if o.dbPath != "" {
		var err error
		store, err = db.NewDB(o.dbPath)
		if err != nil {
			return report.RunSummary{}, fmt.Errorf("failed to open results database: %w", err)
		}
		defer store.Close()

		cfgJSON, err := json.Marshal(o.cfg)
		if err != nil {
			return report.RunSummary{}, fmt.Errorf("failed to encode config: %w", err)
		}
		run, err := store.StartRun(version.Version, version.GitSHA, cfgJSON, time.Now())
		if err != nil {
			return report.RunSummary{}, err
		}
		runID = run.RunID
		log.Printf("started run %s", runID)
	}

	results := make([]batch.FileResult, len(o.inputs))
	for fr := range runner.Stream(ctx, o.inputs) {
		results[fr.Index] = finishFile(store, runID, writer, o, fr)
	}

	if store != nil {
		if err := store.FinishRun(runID, batch.Summarize(results), time.Now()); err != nil {
			return report.RunSummary{}, err
		}
	}

	summary := report.Summarize(runID, version.Version, results)
	if path, err := writer.WriteSummary(summary); err != nil {
		log.Printf("failed to write summary: %v", err)
	} else {
		log.Printf("wrote %s", path)
	}
	return summary, nil
}

// finishFile writes the reports of an analysed file and stores its
// outcome. A file whose reports or store record cannot be written is
// marked failed with a *batch.OutputError.
func finishFile(store *db.DB, runID string, w *report.Writer, o options, fr batch.FileResult) batch.FileResult {
	if fr.OK() {
		if err := writeReports(w, o, fr.Result); err != nil {
			fr = outputFailed(fr, "report", err)
		}
	}
	if store != nil {
		if err := store.RecordFileResult(runID, fr); err != nil {
			log.Printf("failed to store result for %s: %v", fr.Path, err)
			if fr.Err == nil {
				fr = outputFailed(fr, "store", err)
			}
		}
	}
	return fr
}

func outputFailed(fr batch.FileResult, stage string, err error) batch.FileResult {
	fr.Err = &batch.OutputError{Stage: stage, Err: err}
	fr.Kind = batch.ErrorKind(fr.Err)
	log.Printf("%s failed (%s): %v", fr.Path, fr.Kind, fr.Err)
	return fr
}

// writeReports writes every enabled output and joins their errors.
func writeReports(w *report.Writer, o options, res *pipeline.Result) error {
	var errs []error
	if o.json {
		if _, err := w.WriteJSON(res); err != nil {
			errs = append(errs, fmt.Errorf("json export: %w", err))
		}
	}
	if o.plots {
		if _, err := w.WritePlots(res); err != nil {
			errs = append(errs, fmt.Errorf("plots: %w", err))
		}
	}
	if o.html {
		if _, err := w.WriteDashboard(res); err != nil {
			errs = append(errs, fmt.Errorf("dashboard: %w", err))
		}
	}
	return errors.Join(errs...)
}

func printSummary(w io.Writer, s report.RunSummary) {
	fmt.Fprintf(w, "files: %d  succeeded: %d  failed: %d\n", s.Total, s.Succeeded, s.Failed)
	for _, f := range s.Files {
		if f.OK {
			fmt.Fprintf(w, "  ok     %s (%.1f ms)\n", f.Path, f.DurationMs)
			continue
		}
		fmt.Fprintf(w, "  FAILED %s [%s] %s\n", f.Path, f.Kind, f.Error)
	}
	if s.RunID != "" {
		fmt.Fprintf(w, "run: %s\n", s.RunID)
	}
}
