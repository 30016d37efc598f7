package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/gaze.report/internal/features"
	"github.com/banshee-data/gaze.report/internal/gaze"
	"github.com/banshee-data/gaze.report/internal/pipeline"
	"github.com/banshee-data/gaze.report/internal/units"
)

// Plot size in inches; pixel size follows from the DPI.
const (
	plotWidth  = 6.4 * vg.Inch
	plotHeight = 4.8 * vg.Inch
)

// ellipsePoints is the number of vertices of a dispersion ellipse outline.
const ellipsePoints = 90

var (
	colorX      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorMean   = color.Black
	colorSpread = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// WritePlots renders the plots of every computed phase and returns the
// written paths. A plot whose feature was not computed is skipped.
func (w *Writer) WritePlots(res *pipeline.Result) ([]string, error) {
	stem, err := w.stem(res.Source)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, name := range res.Order {
		fs := res.Phases[name]
		seg, _ := res.Segment(name)

		plots := make(map[string]*plot.Plot, 4)
		order := []string{PlotScanpath, PlotDispersion, PlotVelocity, PlotFrequency}

		p, err := scanpathPlot(name, seg)
		if err != nil {
			return written, fmt.Errorf("phase %s: scanpath: %w", name, err)
		}
		plots[PlotScanpath] = p

		if fs.Has(features.KindDispersion) {
			if plots[PlotDispersion], err = dispersionPlot(fs, seg); err != nil {
				return written, fmt.Errorf("phase %s: dispersion: %w", name, err)
			}
		}
		if fs.Has(features.KindVelocity) {
			if plots[PlotVelocity], err = w.velocityPlot(fs, res.SampleRate); err != nil {
				return written, fmt.Errorf("phase %s: velocity: %w", name, err)
			}
		}
		if fs.Has(features.KindFrequency) {
			if plots[PlotFrequency], err = frequencyPlot(fs); err != nil {
				return written, fmt.Errorf("phase %s: frequency: %w", name, err)
			}
		}

		for _, kind := range order {
			p, ok := plots[kind]
			if !ok {
				continue
			}
			path, err := w.savePlot(p, plotName(stem, name, kind))
			if err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	logf("%s: wrote %d plots", res.Source, len(written))
	return written, nil
}

func (w *Writer) savePlot(p *plot.Plot, name string) (path string, err error) {
	path, f, err := w.create(name)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := writePNG(p, w.opts.DPI, f); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

// writePNG draws p onto a canvas of the standard size at dpi.
func writePNG(p *plot.Plot, dpi int, out io.Writer) error {
	c := vgimg.NewWith(
		vgimg.UseWH(plotWidth, plotHeight),
		vgimg.UseDPI(dpi),
		vgimg.UseBackgroundColor(color.White),
	)
	p.Draw(draw.New(c))
	_, err := vgimg.PngCanvas{Canvas: c}.WriteTo(out)
	return err
}

func segmentXYs(seg gaze.Segment) plotter.XYs {
	pts := make(plotter.XYs, seg.Len())
	for i := range pts {
		pts[i].X, pts[i].Y = seg.X[i], seg.Y[i]
	}
	return pts
}

func newLine(pts plotter.XYs, c color.Color, width float64) (*plotter.Line, error) {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	l.Color = c
	l.Width = vg.Points(width)
	return l, nil
}

func placeLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

// scanpathPlot draws the gaze trace of a phase in screen coordinates.
func scanpathPlot(phase string, seg gaze.Segment) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = phase
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	line, err := newLine(segmentXYs(seg), colorX, 1)
	if err != nil {
		return nil, err
	}
	p.Add(line)
	return p, nil
}

// dispersionPlot overlays the mean position and an axis-aligned ellipse
// centred on it with radii equal to the per-axis standard deviations.
func dispersionPlot(fs features.FeatureSet, seg gaze.Segment) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Dispersion of %s data", fs.Phase)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	trace, err := newLine(segmentXYs(seg), colorX, 1)
	if err != nil {
		return nil, err
	}

	d := fs.Dispersion()
	ellipse, err := newLine(dispersionEllipse(d), colorSpread, 1.5)
	if err != nil {
		return nil, err
	}

	mean, err := plotter.NewScatter(plotter.XYs{{X: d.MeanX, Y: d.MeanY}})
	if err != nil {
		return nil, err
	}
	mean.Color = colorMean
	mean.Shape = draw.CircleGlyph{}
	mean.Radius = vg.Points(3)

	p.Add(trace, ellipse, mean)
	p.Legend.Add("gaze", trace)
	p.Legend.Add("mean", mean)
	p.Legend.Add("std dev", ellipse)
	placeLegend(p)
	return p, nil
}

// dispersionEllipse outlines one standard deviation around the mean.
func dispersionEllipse(d features.Dispersion) plotter.XYs {
	return ellipseXYs(d.MeanX, d.MeanY, d.StdX, d.StdY)
}

// ellipseXYs returns a closed outline with semi-axes rx and ry.
func ellipseXYs(cx, cy, rx, ry float64) plotter.XYs {
	pts := make(plotter.XYs, ellipsePoints+1)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / ellipsePoints
		pts[i].X = cx + rx*math.Cos(theta)
		pts[i].Y = cy + ry*math.Sin(theta)
	}
	return pts
}

// velocityPlot draws the speed trace against sample index.
func (w *Writer) velocityPlot(fs features.FeatureSet, sampleRate float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Velocity of %s data", fs.Phase)
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = w.opts.Units.Label()

	pts := make(plotter.XYs, len(fs.Velocity))
	for i, v := range fs.Velocity {
		pts[i].X = float64(i)
		pts[i].Y = units.ConvertVelocity(v, sampleRate, w.opts.Units)
	}
	line, err := newLine(pts, colorX, 1)
	if err != nil {
		return nil, err
	}
	p.Add(line)
	return p, nil
}

// frequencyPlot draws the x and y magnitude spectra.
func frequencyPlot(fs features.FeatureSet) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frequency decomposition of %s data", fs.Phase)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Power"

	colors := phasePalette(2)
	for i, ch := range []struct {
		name string
		bins []features.Bin
	}{{"x", fs.SpectrumX}, {"y", fs.SpectrumY}} {
		if len(ch.bins) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(ch.bins))
		for j, b := range ch.bins {
			pts[j].X, pts[j].Y = b.FrequencyHz, b.Magnitude
		}
		line, err := newLine(pts, colors[i], 1)
		if err != nil {
			return nil, err
		}
		p.Add(line)
		p.Legend.Add(ch.name, line)
	}
	placeLegend(p)
	return p, nil
}

// phasePalette returns n colours with evenly spaced hues, one per phase.
func phasePalette(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	out := make([]color.RGBA, n)
	for i := range out {
		out[i] = hsl(360*float64(i)/float64(n), 0.7, 0.5)
	}
	return out
}

// hsl converts a hue in degrees and a saturation and lightness in [0, 1]
// to an opaque colour.
func hsl(h, s, l float64) color.RGBA {
	chroma := (1 - math.Abs(2*l-1)) * s
	sector := math.Mod(h, 360) / 60
	if sector < 0 {
		sector += 6
	}
	x := chroma * (1 - math.Abs(math.Mod(sector, 2)-1))

	var r, g, b float64
	switch {
	case sector < 1:
		r, g = chroma, x
	case sector < 2:
		r, g = x, chroma
	case sector < 3:
		g, b = chroma, x
	case sector < 4:
		g, b = x, chroma
	case sector < 5:
		r, b = x, chroma
	default:
		r, b = chroma, x
	}
	m := l - chroma/2
	channel := func(v float64) uint8 { return uint8(math.Round((v + m) * 255)) }
	return color.RGBA{R: channel(r), G: channel(g), B: channel(b), A: 255}
}

// hexColor formats c as #rrggbb for the dashboard.
func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
