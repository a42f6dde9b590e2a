package report

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	he3spectra "github.com/decibelcooper/he3spectra"
	"github.com/decibelcooper/he3spectra/internal/fitmod"
	"github.com/decibelcooper/he3spectra/internal/spectra"
)

var pointColors = []color.RGBA{
	{A: 255},
	{R: 255, A: 255},
	{B: 255, A: 255},
	{G: 155, A: 255},
}

// errorPoints converts a curve into plottable points with bin-width
// x errors and symmetric y errors. Empty bins, and non-positive ones on
// a log scale, are skipped.
func errorPoints(b *spectra.Binned, logY bool) plotutil.ErrorPoints {
	var points plotter.XYs
	var xErrors plotter.XErrors
	var yErrors plotter.YErrors
	for i := 0; i < b.NBins(); i++ {
		if b.Vals[i] == 0 && b.Errs[i] == 0 {
			continue
		}
		if logY && b.Vals[i] <= 0 {
			continue
		}
		halfWidth := 0.5 * b.Width(i)
		binSigma := halfWidth / math.Sqrt(3)
		yerr := b.Errs[i]
		if logY && yerr >= b.Vals[i] {
			yerr = 0.999 * b.Vals[i]
		}
		points = append(points, plotter.XY{X: b.Center(i), Y: b.Vals[i]})
		xErrors = append(xErrors, struct{ Low, High float64 }{binSigma, binSigma})
		yErrors = append(yErrors, struct{ Low, High float64 }{yerr, b.Errs[i]})
	}
	return plotutil.ErrorPoints{XYs: points, XErrors: xErrors, YErrors: yErrors}
}

// SaveCurves draws one or more curves as error-bar points and writes the
// image to path.
func SaveCurves(path, title, xLabel, yLabel string, logY bool, curves ...*spectra.Binned) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Tick.Marker = he3spectra.PreciseTicks{NSuggestedTicks: 5}
	if logY {
		p.Y.Scale = he3spectra.LogScale{}
		p.Y.Tick.Marker = he3spectra.LogTicks{}
	} else {
		p.Y.Tick.Marker = he3spectra.PreciseTicks{NSuggestedTicks: 5}
	}

	drawn := 0
	for i, b := range curves {
		errPoints := errorPoints(b, logY)
		if len(errPoints.XYs) == 0 {
			continue
		}
		drawn++
		xerr, err := plotter.NewXErrorBars(errPoints)
		if err != nil {
			return errors.Wrap(err, "report: x error bars")
		}
		yerr, err := plotter.NewYErrorBars(errPoints)
		if err != nil {
			return errors.Wrap(err, "report: y error bars")
		}
		c := pointColors[i%len(pointColors)]
		xerr.LineStyle.Color = c
		yerr.LineStyle.Color = c
		p.Add(xerr)
		p.Add(yerr)
		if b.Title != "" {
			scatter, err := plotter.NewScatter(errPoints.XYs)
			if err != nil {
				return errors.Wrap(err, "report: scatter")
			}
			scatter.GlyphStyle.Color = c
			scatter.GlyphStyle.Radius = vg.Points(1.5)
			p.Add(scatter)
			p.Legend.Add(b.Title, scatter)
		}
	}
	if drawn == 0 {
		return errors.Newf("report: %s: no drawable points", path)
	}
	p.Legend.Top = true

	return save(p, path)
}

// SaveFitSnapshot draws a fitted slice: the data histogram, the full
// model and its signal and background components.
func SaveFitSnapshot(path, title string, h *hbook.H1D, m *fitmod.Model, norm []fitmod.Range) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Tick.Marker = he3spectra.PreciseTicks{NSuggestedTicks: 5}
	p.Y.Tick.Marker = he3spectra.PreciseTicks{NSuggestedTicks: 5}

	hh := hplot.NewH1D(h)
	p.Add(hh)

	binWidth := (h.XMax() - h.XMin()) / float64(len(h.Binning.Bins))
	total := plotter.NewFunction(func(x float64) float64 {
		return m.Density(x, norm) * binWidth
	})
	total.Samples = 300
	total.Color = pointColors[1]

	sig := plotter.NewFunction(func(x float64) float64 {
		return m.SignalDensity(x, norm) * binWidth
	})
	sig.Samples = 300
	sig.Color = pointColors[3]
	sig.Dashes = plotutil.Dashes(1)

	bkg := plotter.NewFunction(func(x float64) float64 {
		return m.BackgroundDensity(x, norm) * binWidth
	})
	bkg.Samples = 300
	bkg.Color = pointColors[2]
	bkg.Dashes = plotutil.Dashes(2)

	p.Add(total, sig, bkg)
	p.Legend.Add("model", total)
	p.Legend.Add("signal", sig)
	p.Legend.Add("background", bkg)
	p.Legend.Top = true

	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "report: mkdir")
	}
	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, path), "report: save %s", path)
}
