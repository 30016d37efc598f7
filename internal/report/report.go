// Package report writes the outputs of an analysed session: PNG plots per
// phase, an HTML dashboard and a JSON export, plus a per-run summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/gaze.report/internal/batch"
	"github.com/banshee-data/gaze.report/internal/features"
	"github.com/banshee-data/gaze.report/internal/fsutil"
	"github.com/banshee-data/gaze.report/internal/monitoring"
	"github.com/banshee-data/gaze.report/internal/pipeline"
	"github.com/banshee-data/gaze.report/internal/security"
	"github.com/banshee-data/gaze.report/internal/units"
)

var logf = monitoring.Prefixed("[report] ")

// DefaultDPI is the plot resolution when Options.DPI is zero.
const DefaultDPI = 300

// DefaultAssetsHost serves the echarts JavaScript for dashboards.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Plot kinds, used as the last component of plot file names.
const (
	PlotScanpath   = "scanpath"
	PlotDispersion = "dispersion"
	PlotVelocity   = "velocity"
	PlotFrequency  = "frequency"
)

// Options configures a Writer.
type Options struct {
	// OutDir receives every file. It is created on first write.
	OutDir string
	// FS is the target filesystem; fsutil.OSFileSystem when nil.
	FS fsutil.FileSystem
	// DPI of PNG plots.
	DPI int
	// Units of velocity traces in plots and exports.
	Units units.Velocity
	// AssetsHost overrides DefaultAssetsHost in dashboards.
	AssetsHost string
	// Stems maps a session source to the prefix of its output files.
	// Sources not listed use security.Stem. See UniqueStems.
	Stems map[string]string
}

// Writer writes report files for analysed sessions. It is safe for
// concurrent use when its filesystem is.
type Writer struct {
	opts Options

	mu      sync.Mutex
	claimed map[string]string // stem -> source
}

// New returns a Writer with defaults applied to opts.
func New(opts Options) *Writer {
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	if opts.Units == "" {
		opts.Units = units.PerSample
	}
	if opts.AssetsHost == "" {
		opts.AssetsHost = DefaultAssetsHost
	}
	if opts.OutDir == "" {
		opts.OutDir = "."
	}
	return &Writer{opts: opts, claimed: make(map[string]string)}
}

// PlotName returns the file name of one plot: <stem>_<phase>_<kind>.png.
func PlotName(source, phase, kind string) string {
	return plotName(security.Stem(source), phase, kind)
}

func plotName(stem, phase, kind string) string {
	return fmt.Sprintf("%s_%s_%s.png", stem, security.SanitizeFilename(phase), kind)
}

// UniqueStems assigns every path an output stem that no other path shares.
// A file name used in more than one directory is prefixed with its parent
// directory name; a numeric suffix settles anything still taken. Paths are
// handled in order, so the first holder of a stem keeps it.
func UniqueStems(paths []string) map[string]string {
	count := make(map[string]int)
	for _, p := range paths {
		count[security.Stem(p)]++
	}
	out := make(map[string]string, len(paths))
	used := make(map[string]bool, len(paths))
	for _, p := range paths {
		if _, done := out[p]; done {
			continue
		}
		stem := security.Stem(p)
		if count[stem] > 1 {
			if dir := filepath.Base(filepath.Dir(p)); dir != "." && dir != string(filepath.Separator) {
				stem = security.SanitizeFilename(dir) + "_" + stem
			}
		}
		unique := stem
		for n := 2; used[unique]; n++ {
			unique = fmt.Sprintf("%s_%d", stem, n)
		}
		used[unique] = true
		out[p] = unique
	}
	return out
}

// StemCollisionError is returned when two sources would write to the same
// output files.
type StemCollisionError struct {
	Stem   string
	Source string
	Owner  string
}

func (e *StemCollisionError) Error() string {
	return fmt.Sprintf("output stem %q of %s is already used by %s", e.Stem, e.Source, e.Owner)
}

// stem returns the output prefix for source and claims it for the life of
// the writer.
func (w *Writer) stem(source string) (string, error) {
	stem, ok := w.opts.Stems[source]
	if !ok {
		stem = security.Stem(source)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if owner, taken := w.claimed[stem]; taken && owner != source {
		return "", &StemCollisionError{Stem: stem, Source: source, Owner: owner}
	}
	w.claimed[stem] = source
	return stem, nil
}

// create opens name inside the output directory for writing.
func (w *Writer) create(name string) (string, io.WriteCloser, error) {
	path, err := w.prepare(name)
	if err != nil {
		return "", nil, err
	}
	f, err := w.opts.FS.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("create %s: %w", path, err)
	}
	return path, f, nil
}

func (w *Writer) prepare(name string) (string, error) {
	path, err := security.JoinWithin(w.opts.OutDir, name)
	if err != nil {
		return "", err
	}
	if err := w.opts.FS.MkdirAll(w.opts.OutDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	return path, nil
}

func (w *Writer) writeJSON(name string, v interface{}) (string, error) {
	path, err := w.prepare(name)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if err := w.opts.FS.WriteFile(path, append(data, '\n'), os.FileMode(0644)); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// PhaseExport is one phase in a session export.
type PhaseExport struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	features.FeatureSet
}

// FailureExport is one feature that could not be computed.
type FailureExport struct {
	Phase   string `json:"phase"`
	Feature string `json:"feature"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

// SessionExport is the JSON document written for one session.
type SessionExport struct {
	Source        string          `json:"source"`
	SampleRate    float64         `json:"sample_rate"`
	VelocityUnits units.Velocity  `json:"velocity_units"`
	Phases        []PhaseExport   `json:"phases"`
	Failures      []FailureExport `json:"failures,omitempty"`
}

// Export builds the session document with velocity converted to the
// writer's units.
func (w *Writer) Export(res *pipeline.Result) SessionExport {
	out := SessionExport{
		Source:        res.Source,
		SampleRate:    res.SampleRate,
		VelocityUnits: w.opts.Units,
		Phases:        make([]PhaseExport, 0, len(res.Order)),
	}
	for _, name := range res.Order {
		fs := res.Phases[name]
		if fs.Velocity != nil {
			fs.Velocity = units.ConvertTrace(fs.Velocity, res.SampleRate, w.opts.Units)
		}
		pe := PhaseExport{FeatureSet: fs}
		for _, win := range res.Windows {
			if win.Phase == name {
				pe.Start, pe.End = win.Start(), win.End()
				break
			}
		}
		if seg, ok := res.Segment(name); ok {
			pe.StartIndex, pe.EndIndex = seg.StartIndex, seg.EndIndex
		}
		out.Phases = append(out.Phases, pe)
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, FailureExport{
			Phase:   f.Phase,
			Feature: string(f.Feature),
			Kind:    batch.ErrorKind(f.Err),
			Error:   f.Err.Error(),
		})
	}
	return out
}

// WriteJSON writes <stem>_features.json and returns its path.
func (w *Writer) WriteJSON(res *pipeline.Result) (string, error) {
	stem, err := w.stem(res.Source)
	if err != nil {
		return "", err
	}
	path, err := w.writeJSON(stem+"_features.json", w.Export(res))
	if err != nil {
		return "", err
	}
	logf("wrote %s", path)
	return path, nil
}

// FileSummary is one file's line in a run summary.
type FileSummary struct {
	Path       string   `json:"path"`
	OK         bool     `json:"ok"`
	Kind       string   `json:"kind,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMs float64  `json:"duration_ms"`
	Phases     []string `json:"phases,omitempty"`
}

// RunSummary is the document written by WriteSummary.
type RunSummary struct {
	RunID     string         `json:"run_id,omitempty"`
	Version   string         `json:"version"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByKind    map[string]int `json:"by_kind,omitempty"`
	Files     []FileSummary  `json:"files"`
}

// Summarize builds a run summary from batch results.
func Summarize(runID, version string, results []batch.FileResult) RunSummary {
	s := batch.Summarize(results)
	out := RunSummary{
		RunID:     runID,
		Version:   version,
		Total:     s.Total,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Files:     make([]FileSummary, 0, len(results)),
	}
	if len(s.ByKind) > 0 {
		out.ByKind = s.ByKind
	}
	for _, r := range results {
		fs := FileSummary{
			Path:       r.Path,
			OK:         r.OK(),
			Kind:       r.Kind,
			DurationMs: float64(r.Duration.Microseconds()) / 1000,
		}
		if r.Err != nil {
			fs.Error = r.Err.Error()
		}
		if r.Result != nil {
			fs.Phases = append([]string(nil), r.Result.Order...)
		}
		out.Files = append(out.Files, fs)
	}
	return out
}

// WriteSummary writes summary.json for a whole run.
func (w *Writer) WriteSummary(summary RunSummary) (string, error) {
	return w.writeJSON("summary.json", summary)
}
