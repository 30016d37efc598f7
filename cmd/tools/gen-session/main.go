// Command gen-session writes synthetic XDF recordings with the default
// stimulus phases for demos and end-to-end testing of gaze-analyse.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/gaze.report/internal/session"
	"github.com/banshee-data/gaze.report/internal/session/synth"
	"github.com/banshee-data/gaze.report/internal/session/xdf"
)

func main() {
	outDir := flag.String("o", "sessions", "output directory")
	count := flag.Int("n", 3, "number of sessions")
	prefix := flag.String("prefix", "pt", "file name prefix")
	duration := flag.Float64("duration", 10, "seconds per phase")
	rate := flag.Float64("rate", 60, "gaze sample rate in Hz")
	noise := flag.Float64("noise", 0.002, "standard deviation of position noise")
	seed := flag.Uint64("seed", 1, "seed of the first session; later sessions increment it")
	drop := flag.String("drop", "", "marker label to omit, producing sessions that fail integrity checks")
	flag.Parse()

	spec := synth.DefaultSpec()
	spec.PhaseDuration = *duration
	spec.Rate = *rate
	spec.Noise = *noise
	spec.Seed = *seed

	paths, err := generate(*outDir, *prefix, *count, spec, *drop)
	if err != nil {
		log.Fatalf("failed to generate sessions: %v", err)
	}
	for _, p := range paths {
		log.Printf("✓ Created: %s", p)
	}
}

// generate writes n sessions named <prefix>_NNN.xdf into dir.
func generate(dir, prefix string, n int, spec synth.Spec, drop string) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("session count must be positive, got %d", n)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s := spec
		s.Seed = spec.Seed + uint64(i)
		markers := synth.Markers(s)
		if drop != "" {
			markers = withoutLabel(markers, drop)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.xdf", prefix, i+1))
		if err := xdf.Create(path, markers, synth.Gaze(s)); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func withoutLabel(markers session.Stream, label string) session.Stream {
	out := markers
	out.Timestamps, out.Labels = nil, nil
	for i := range markers.Timestamps {
		if markers.Label(i) == label {
			continue
		}
		out.Timestamps = append(out.Timestamps, markers.Timestamps[i])
		out.Labels = append(out.Labels, markers.Labels[i])
	}
	return out
}
