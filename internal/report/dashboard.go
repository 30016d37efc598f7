package report

import (
	"bytes"
	"fmt"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/gaze.report/internal/features"
	"github.com/banshee-data/gaze.report/internal/pipeline"
	"github.com/banshee-data/gaze.report/internal/security"
	"github.com/banshee-data/gaze.report/internal/units"
)

// maxChartPoints bounds the samples per series; longer traces are strided.
const maxChartPoints = 4000

// DashboardName returns the dashboard file name for a session.
func DashboardName(source string) string {
	return security.Stem(source) + "_dashboard.html"
}

// WriteDashboard renders an HTML page with the session's phase summary,
// gaze scatter, and per-phase velocity and spectrum charts.
func (w *Writer) WriteDashboard(res *pipeline.Result) (string, error) {
	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("Gaze features: %s", res.Source))
	page.SetAssetsHost(w.opts.AssetsHost)
	page.AddCharts(w.summaryChart(res), w.gazeChart(res))
	for _, name := range res.Order {
		fs := res.Phases[name]
		if fs.Has(features.KindVelocity) {
			page.AddCharts(w.velocityChart(fs, res.SampleRate))
		}
		if fs.Has(features.KindFrequency) {
			page.AddCharts(w.spectrumChart(fs))
		}
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return "", fmt.Errorf("render dashboard: %w", err)
	}

	stem, err := w.stem(res.Source)
	if err != nil {
		return "", err
	}
	path, f, err := w.create(stem + "_dashboard.html")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	logf("wrote %s", path)
	return path, nil
}

func (w *Writer) initOpts(title string) opts.Initialization {
	return opts.Initialization{PageTitle: title, Width: "100%", Height: "480px", AssetsHost: w.opts.AssetsHost}
}

// stride returns the step that keeps n points within maxChartPoints.
func stride(n int) int {
	if n <= maxChartPoints {
		return 1
	}
	return int(math.Ceil(float64(n) / float64(maxChartPoints)))
}

// summaryChart shows total distance and per-axis spread for every phase.
func (w *Writer) summaryChart(res *pipeline.Result) *charts.Bar {
	distance := make([]opts.BarData, 0, len(res.Order))
	stdX := make([]opts.BarData, 0, len(res.Order))
	stdY := make([]opts.BarData, 0, len(res.Order))
	for _, name := range res.Order {
		fs := res.Phases[name]
		distance = append(distance, opts.BarData{Value: fs.TotalDistance})
		stdX = append(stdX, opts.BarData{Value: fs.StdDev[0]})
		stdY = append(stdY, opts.BarData{Value: fs.StdDev[1]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(w.initOpts("Phase summary")),
		charts.WithTitleOpts(opts.Title{Title: "Phase summary", Subtitle: fmt.Sprintf("%s at %.2f Hz", res.Source, res.SampleRate)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
	)
	bar.SetXAxis(res.Order).
		AddSeries("total distance", distance).
		AddSeries("std x", stdX).
		AddSeries("std y", stdY)
	return bar
}

// gazeChart plots every phase's gaze positions as one scatter series.
func (w *Writer) gazeChart(res *pipeline.Result) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(w.initOpts("Gaze positions")),
		charts.WithTitleOpts(opts.Title{Title: "Gaze positions"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "y", NameLocation: "middle", NameGap: 30}),
	)

	colors := phasePalette(len(res.Order))
	for i, name := range res.Order {
		seg, ok := res.Segment(name)
		if !ok {
			continue
		}
		step := stride(seg.Len())
		data := make([]opts.ScatterData, 0, seg.Len()/step+1)
		for j := 0; j < seg.Len(); j += step {
			data = append(data, opts.ScatterData{Value: []interface{}{seg.X[j], seg.Y[j]}})
		}
		scatter.AddSeries(name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(colors[i])}),
		)
	}
	return scatter
}

func (w *Writer) velocityChart(fs features.FeatureSet, sampleRate float64) *charts.Line {
	step := stride(len(fs.Velocity))
	xs := make([]int, 0, len(fs.Velocity)/step+1)
	data := make([]opts.LineData, 0, cap(xs))
	for i := 0; i < len(fs.Velocity); i += step {
		xs = append(xs, i)
		data = append(data, opts.LineData{Value: units.ConvertVelocity(fs.Velocity[i], sampleRate, w.opts.Units)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(w.initOpts("Velocity " + fs.Phase)),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Velocity of %s data", fs.Phase)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Sample"}),
		charts.WithYAxisOpts(opts.YAxis{Name: w.opts.Units.Label()}),
	)
	line.SetXAxis(xs).AddSeries("velocity", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	return line
}

func (w *Writer) spectrumChart(fs features.FeatureSet) *charts.Line {
	freqs := make([]string, len(fs.SpectrumX))
	xs := make([]opts.LineData, len(fs.SpectrumX))
	for i, b := range fs.SpectrumX {
		freqs[i] = fmt.Sprintf("%.3f", b.FrequencyHz)
		xs[i] = opts.LineData{Value: b.Magnitude}
	}
	ys := make([]opts.LineData, len(fs.SpectrumY))
	for i, b := range fs.SpectrumY {
		ys[i] = opts.LineData{Value: b.Magnitude}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(w.initOpts("Spectrum " + fs.Phase)),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Frequency decomposition of %s data", fs.Phase)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frequency (Hz)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Power"}),
	)
	line.SetXAxis(freqs).
		AddSeries("x", xs, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("y", ys, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}
