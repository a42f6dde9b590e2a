package tasks

import (
	"math"

	"github.com/cockroachdb/errors"
	"go-hep.org/x/hep/fit"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/histio"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/spectra"
	"github.com/decibelcooper/he3spectra/internal/xlog"
)

// SecondariesOptions selects the inputs of the secondaries stage.
type SecondariesOptions struct {
	Species nuclei.Species
}

// ComputeSecondaries estimates the primary fraction per pT bin with a
// two-template fit of the data DCAxy distribution: the primary template
// comes from MC, the secondary one from the displaced-vertex data
// selection. The fraction is then smoothed with an exponential fit.
func ComputeSecondaries(cfg *config.Config, dataHists, mcHists, output string, opt SecondariesOptions) error {
	dataArch, err := histio.ReadFile(dataHists)
	if err != nil {
		return err
	}
	mcArch, err := histio.ReadFile(mcHists)
	if err != nil {
		return err
	}

	edges := cfg.Common.PtBins
	set := spectra.NewSet()

	for is := 0; is < 2; is++ {
		l := matterLabels[is]
		frac := spectra.New("hPrimFrac"+l, edges)
		for ib := range frac.Vals {
			// Antimatter has no material knock-out component.
			frac.Set(ib, 1, 0)
		}
		if is == 0 {
			for ib := range frac.Vals {
				dat, err := dataArch.MustGet(sliceName("nuclei/hDCAxy"+l, ib))
				if err != nil {
					return err
				}
				prim, err := mcArch.MustGet(sliceName("nuclei/hDCAxyPrimary"+l, ib))
				if err != nil {
					return err
				}
				sec, err := dataArch.MustGet(sliceName("nuclei/hDCAxySecondary"+l, ib))
				if err != nil {
					return err
				}
				f, ferr, err := fitPrimaryFraction(dat, prim, sec)
				if err != nil {
					xlog.L.Debugw("primary fraction fit skipped",
						"bin", ib, "err", err)
					continue
				}
				frac.Set(ib, f, ferr)
			}
		}
		set.Add(frac)

		smooth := frac.Clone("hPrimFracFit" + l)
		if is == 0 {
			if err := smoothFraction(frac, smooth); err != nil {
				xlog.L.Warnw("primary fraction smoothing failed", "err", err)
				smooth = frac.Clone("hPrimFracFit" + l)
			}
		}
		set.Add(smooth)
	}

	if err := set.SaveFile(output); err != nil {
		return err
	}
	xlog.L.Infow("secondaries stage done",
		"species", opt.Species.String(),
		"output", output,
	)
	return nil
}

// fitPrimaryFraction fits data = N*(f*prim + (1-f)*sec) with normalized
// templates and returns f with its uncertainty.
func fitPrimaryFraction(dat, prim, sec *hbook.H1D) (f, ferr float64, err error) {
	p, errNorm := templateFractions(prim)
	if errNorm != nil {
		return 0, 0, errNorm
	}
	s, errNorm := templateFractions(sec)
	if errNorm != nil {
		return 0, 0, errNorm
	}
	counts := make([]float64, len(dat.Binning.Bins))
	total := 0.0
	for i := range dat.Binning.Bins {
		counts[i] = dat.Binning.Bins[i].SumW()
		total += counts[i]
	}
	if total < 10 {
		return 0, 0, errors.New("secondaries: not enough entries")
	}

	// Extended binned likelihood in (Ntot, f).
	obj := func(x []float64) float64 {
		n, fr := x[0], x[1]
		penalty := 0.0
		if fr < 0 {
			penalty += 1e6 * fr * fr
			fr = 0
		}
		if fr > 1 {
			d := fr - 1
			penalty += 1e6 * d * d
			fr = 1
		}
		if n < 0 {
			penalty += 1e6 * n * n / (total * total)
			n = 0
		}
		nll := 0.0
		for i := range counts {
			mu := n * (fr*p[i] + (1-fr)*s[i])
			if mu < 1e-12 {
				mu = 1e-12
			}
			nll += mu - counts[i]*math.Log(mu)
		}
		return nll + penalty
	}

	res, errFit := optimize.Minimize(optimize.Problem{Func: obj}, []float64{total, 0.9}, nil, &optimize.NelderMead{})
	if errFit != nil {
		return 0, 0, errors.Wrap(errFit, "secondaries: minimize")
	}
	f = math.Min(1, math.Max(0, res.X[1]))

	hess := mat.NewSymDense(2, nil)
	fd.Hessian(hess, obj, res.X, nil)
	var chol mat.Cholesky
	if chol.Factorize(hess) {
		var cov mat.SymDense
		if errInv := chol.InverseTo(&cov); errInv == nil {
			ferr = math.Sqrt(math.Abs(cov.At(1, 1)))
		}
	}
	if ferr == 0 {
		if h := hess.At(1, 1); h > 0 {
			ferr = 1 / math.Sqrt(h)
		}
	}
	return f, ferr, nil
}

// templateFractions normalizes a template histogram to unit integral.
func templateFractions(h *hbook.H1D) ([]float64, error) {
	out := make([]float64, len(h.Binning.Bins))
	total := 0.0
	for i := range h.Binning.Bins {
		out[i] = h.Binning.Bins[i].SumW()
		total += out[i]
	}
	if total <= 0 {
		return nil, errors.New("secondaries: empty template")
	}
	for i := range out {
		out[i] /= total
	}
	return out, nil
}

// smoothFraction fits f(pT) = 1 - a*exp(b*pT) through the fitted bins
// and fills out with the fitted values.
func smoothFraction(frac, out *spectra.Binned) error {
	var xs, ys []float64
	for i := range frac.Vals {
		if frac.Errs[i] == 0 {
			continue
		}
		xs = append(xs, frac.Center(i))
		ys = append(ys, frac.Vals[i])
	}
	if len(xs) < 3 {
		return errors.New("secondaries: too few fitted bins")
	}
	res, err := fit.Curve1D(
		fit.Func1D{
			F: func(x float64, ps []float64) float64 {
				return 1 - ps[0]*math.Exp(ps[1]*x)
			},
			X:  xs,
			Y:  ys,
			Ps: []float64{0.2, -1.0},
		},
		nil, &optimize.NelderMead{},
	)
	if err != nil {
		return errors.Wrap(err, "secondaries: fraction fit")
	}
	for i := range out.Vals {
		v := 1 - res.X[0]*math.Exp(res.X[1]*out.Center(i))
		out.Set(i, math.Min(1, math.Max(0, v)), 0)
	}
	return nil
}
