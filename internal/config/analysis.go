package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/banshee-data/gaze.report/internal/pipeline"
	"github.com/banshee-data/gaze.report/internal/units"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// AnalysisConfig is the root configuration for a batch analysis. Fields
// omitted from the JSON keep their defaults through the Get* accessors.
type AnalysisConfig struct {
	// Segmentation
	PhaseNames               *[]string `json:"phase_names,omitempty"`
	StimulusMarkerStreamName *string   `json:"stimulus_marker_stream_name,omitempty"`
	GazeStreamName           *string   `json:"gaze_stream_name,omitempty"`
	XChannel                 *int      `json:"x_channel,omitempty"`
	YChannel                 *int      `json:"y_channel,omitempty"`
	FrequencyCutoffHz        *float64  `json:"frequency_cutoff_hz,omitempty"`

	// Execution and output
	Workers       *int    `json:"workers,omitempty"`
	PlotDPI       *int    `json:"plot_dpi,omitempty"`
	VelocityUnits *string `json:"velocity_units,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrStrings(v []string) *[]string {
	c := append([]string(nil), v...)
	return &c
}

// EmptyAnalysisConfig returns an AnalysisConfig with all fields nil.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field set to its
// default.
func DefaultAnalysisConfig() *AnalysisConfig {
	d := pipeline.DefaultConfig()
	return &AnalysisConfig{
		PhaseNames:               ptrStrings(d.Phases),
		StimulusMarkerStreamName: ptrString(d.MarkerStream),
		GazeStreamName:           ptrString(d.GazeStream),
		XChannel:                 ptrInt(d.XChannel),
		YChannel:                 ptrInt(d.YChannel),
		FrequencyCutoffHz:        ptrFloat64(d.CutoffHz),
		PlotDPI:                  ptrInt(DefaultPlotDPI),
		VelocityUnits:            ptrString(string(units.PerSample)),
	}
}

// DefaultPlotDPI is the resolution of exported PNG plots.
const DefaultPlotDPI = 300

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. The file
// must have a .json extension and be at most 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Intended for tests.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/gen-session/
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.PhaseNames != nil {
		if len(*c.PhaseNames) == 0 {
			return fmt.Errorf("phase_names must not be empty")
		}
		seen := make(map[string]bool, len(*c.PhaseNames))
		for _, name := range *c.PhaseNames {
			if name == "" {
				return fmt.Errorf("phase_names contains an empty name")
			}
			if seen[name] {
				return fmt.Errorf("phase_names contains %q twice", name)
			}
			seen[name] = true
		}
	}
	if c.StimulusMarkerStreamName != nil && *c.StimulusMarkerStreamName == "" {
		return fmt.Errorf("stimulus_marker_stream_name must not be empty")
	}
	if c.GazeStreamName != nil && *c.GazeStreamName == "" {
		return fmt.Errorf("gaze_stream_name must not be empty")
	}
	if x, y := c.GetXChannel(), c.GetYChannel(); x < 0 || y < 0 || x == y {
		return fmt.Errorf("x_channel and y_channel must be distinct and non-negative, got %d and %d", x, y)
	}
	if c.FrequencyCutoffHz != nil && !(*c.FrequencyCutoffHz > 0) {
		return fmt.Errorf("frequency_cutoff_hz must be positive, got %f", *c.FrequencyCutoffHz)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.PlotDPI != nil && (*c.PlotDPI < 36 || *c.PlotDPI > 1200) {
		return fmt.Errorf("plot_dpi must be between 36 and 1200, got %d", *c.PlotDPI)
	}
	if c.VelocityUnits != nil && !units.IsValidVelocityUnit(*c.VelocityUnits) {
		return fmt.Errorf("velocity_units must be one of %s, got %q", units.GetValidVelocityUnitsString(), *c.VelocityUnits)
	}
	return nil
}

// GetPhaseNames returns the phase_names value or the default stimulus order.
func (c *AnalysisConfig) GetPhaseNames() []string {
	if c.PhaseNames == nil {
		return pipeline.DefaultConfig().Phases
	}
	return append([]string(nil), *c.PhaseNames...)
}

// GetStimulusMarkerStreamName returns the marker stream name or the default.
func (c *AnalysisConfig) GetStimulusMarkerStreamName() string {
	if c.StimulusMarkerStreamName == nil {
		return pipeline.DefaultMarkerStream
	}
	return *c.StimulusMarkerStreamName
}

// GetGazeStreamName returns the gaze stream name or the default.
func (c *AnalysisConfig) GetGazeStreamName() string {
	if c.GazeStreamName == nil {
		return pipeline.DefaultGazeStream
	}
	return *c.GazeStreamName
}

// GetXChannel returns the x_channel value or the default.
func (c *AnalysisConfig) GetXChannel() int {
	if c.XChannel == nil {
		return 1
	}
	return *c.XChannel
}

// GetYChannel returns the y_channel value or the default.
func (c *AnalysisConfig) GetYChannel() int {
	if c.YChannel == nil {
		return 2
	}
	return *c.YChannel
}

// GetFrequencyCutoffHz returns the frequency_cutoff_hz value or the default.
func (c *AnalysisConfig) GetFrequencyCutoffHz() float64 {
	if c.FrequencyCutoffHz == nil {
		return 5.0
	}
	return *c.FrequencyCutoffHz
}

// GetWorkers returns the worker count; zero or unset means one per CPU.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetPlotDPI returns the plot_dpi value or the default.
func (c *AnalysisConfig) GetPlotDPI() int {
	if c.PlotDPI == nil {
		return DefaultPlotDPI
	}
	return *c.PlotDPI
}

// GetVelocityUnits returns the velocity_units value or the default.
func (c *AnalysisConfig) GetVelocityUnits() units.Velocity {
	if c.VelocityUnits == nil {
		return units.PerSample
	}
	return units.Velocity(*c.VelocityUnits)
}

// PipelineConfig converts the segmentation settings into a pipeline.Config.
func (c *AnalysisConfig) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Phases:       c.GetPhaseNames(),
		MarkerStream: c.GetStimulusMarkerStreamName(),
		GazeStream:   c.GetGazeStreamName(),
		XChannel:     c.GetXChannel(),
		YChannel:     c.GetYChannel(),
		CutoffHz:     c.GetFrequencyCutoffHz(),
	}
}
