// Package batch runs the session pipeline over many recording files with a
// bounded pool of workers. A failing file is recorded in its own result and
// never stops the others.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/banshee-data/gaze.report/internal/features"
	"github.com/banshee-data/gaze.report/internal/gaze"
	"github.com/banshee-data/gaze.report/internal/monitoring"
	"github.com/banshee-data/gaze.report/internal/pipeline"
	"github.com/banshee-data/gaze.report/internal/session"
	"github.com/banshee-data/gaze.report/internal/timeutil"
)

var logf = monitoring.Prefixed("[batch] ")

// Opener loads the session stored at path.
type Opener func(path string) (session.StreamSet, error)

// Analyser runs the per-session pipeline. *pipeline.Pipeline implements it.
type Analyser interface {
	Run(set session.StreamSet, only ...string) (*pipeline.Result, error)
}

// Error kinds reported by ErrorKind.
const (
	KindSessionLoad      = "session_load"
	KindUnknownStream    = "unknown_stream"
	KindMissingMarker    = "missing_marker"
	KindOutOfOrder       = "out_of_order"
	KindIntegrity        = "integrity"
	KindInsufficientData = "insufficient_data"
	KindPanic            = "panic"
	KindCanceled         = "canceled"
	KindOutput           = "output"
	KindUnknown          = "unknown"
)

// PanicError carries a panic recovered while processing one file.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// OutputError marks a file whose analysis succeeded but whose results could
// not be stored or written out. Stage names the failing step.
type OutputError struct {
	Stage string
	Err   error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// ErrorKind classifies err for logs and storage. It returns "" for nil.
func ErrorKind(err error) string {
	var (
		pe  *PanicError
		oue *OutputError
		le  *session.LoadError
		ue  *session.UnknownStreamError
		ie  *gaze.IntegrityError
		me  *gaze.MissingMarkerError
		oe  *gaze.OutOfOrderError
		ide *features.InsufficientDataError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return KindPanic
	case errors.As(err, &oue):
		return KindOutput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &le):
		return KindSessionLoad
	case errors.As(err, &ue):
		return KindUnknownStream
	case errors.As(err, &ie):
		return KindIntegrity
	case errors.As(err, &me):
		return KindMissingMarker
	case errors.As(err, &oe):
		return KindOutOfOrder
	case errors.As(err, &ide):
		return KindInsufficientData
	default:
		return KindUnknown
	}
}

// FileResult is the outcome for one file.
type FileResult struct {
	// Index is the position of Path in the input list.
	Index    int
	Path     string
	Result   *pipeline.Result
	Err      error
	Kind     string
	Started  time.Time
	Duration time.Duration
}

// OK reports whether the file was analysed.
func (r FileResult) OK() bool { return r.Err == nil && r.Result != nil }

// Runner processes files concurrently.
type Runner struct {
	// Workers bounds concurrency; runtime.NumCPU() when zero.
	Workers  int
	Open     Opener
	Pipeline Analyser
	// Phases restricts feature computation to a subset of the configured
	// phases. Empty means all.
	Phases []string
	// Clock times each file; timeutil.RealClock when nil.
	Clock timeutil.Clock
}

type task struct {
	index int
	path  string
}

// Run processes every path and returns one result per path in input order.
// Cancelling ctx stops dispatch; files not yet started are reported with
// the context error.
func (r *Runner) Run(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))
	for res := range r.Stream(ctx, paths) {
		results[res.Index] = res
	}
	return results
}

// Stream is like Run but delivers results as files complete. The channel
// is closed once every path has a result.
func (r *Runner) Stream(ctx context.Context, paths []string) <-chan FileResult {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paths) {
		workers = len(paths)
	}
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	tasks := make(chan task)
	out := make(chan FileResult, len(paths))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				out <- r.process(clock, t)
			}
		}()
	}

	go func() {
		defer close(out)
		i := 0
	dispatch:
		for ; i < len(paths); i++ {
			if ctx.Err() != nil {
				break
			}
			select {
			case <-ctx.Done():
				break dispatch
			case tasks <- task{index: i, path: paths[i]}:
			}
		}
		close(tasks)
		for ; i < len(paths); i++ {
			out <- FileResult{Index: i, Path: paths[i], Err: ctx.Err(), Kind: KindCanceled}
		}
		wg.Wait()
	}()
	return out
}

// process analyses one file. Panics are recovered into a *PanicError so a
// bad file cannot take down its siblings.
func (r *Runner) process(clock timeutil.Clock, t task) (res FileResult) {
	path := t.path
	res.Index, res.Path = t.index, path
	res.Started = clock.Now()
	defer func() {
		if v := recover(); v != nil {
			res.Result = nil
			res.Err = &PanicError{Value: v, Stack: debug.Stack()}
		}
		if res.Err == nil && res.Result == nil {
			res.Err = errors.New("pipeline returned no result")
		}
		res.Duration = clock.Since(res.Started)
		res.Kind = ErrorKind(res.Err)
		if res.Err != nil {
			logf("%s failed (%s) after %v: %v", path, res.Kind, res.Duration, res.Err)
		} else {
			logf("%s: %d phases in %v", path, len(res.Result.Phases), res.Duration)
		}
	}()

	set, err := r.Open(path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Result, res.Err = r.Pipeline.Run(set, r.Phases...)
	return res
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	ByKind    map[string]int
}

// Summarize tallies results by error kind.
func Summarize(results []FileResult) Summary {
	s := Summary{Total: len(results), ByKind: make(map[string]int)}
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
			continue
		}
		s.Failed++
		s.ByKind[r.Kind]++
	}
	return s
}
