package fitmod

import (
	"math"

	"github.com/cockroachdb/errors"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

type binDatum struct {
	lo, hi float64
	count  float64
}

// Fit performs an extended binned maximum-likelihood fit of the model to
// h, restricted to the given ranges (the full axis domain when none are
// given). Parameter values and errors are updated in place; Chi2NDF, NDF
// and PValue summarize the goodness of fit.
func (m *Model) Fit(h *hbook.H1D, ranges ...Range) error {
	if len(ranges) == 0 {
		ranges = []Range{m.X}
	}
	if ra, ok := m.Signal.(rangeAware); ok {
		ra.setNorm(ranges)
	}
	if ra, ok := m.Background.(rangeAware); ok {
		ra.setNorm(ranges)
	}

	var bins []binDatum
	for i := range h.Binning.Bins {
		b := &h.Binning.Bins[i]
		mid := b.XMid()
		for _, r := range ranges {
			if r.Contains(mid) {
				bins = append(bins, binDatum{lo: b.XMin(), hi: b.XMax(), count: b.SumW()})
				break
			}
		}
	}
	if len(bins) == 0 {
		return errors.Newf("fitmod: %s: no bins in fit range", m.Name)
	}

	free := m.freeParams()
	if len(free) > 0 {
		obj := func(x []float64) float64 {
			return m.objective(x, free, bins, ranges)
		}
		x0 := make([]float64, len(free))
		for i, p := range free {
			x0[i] = p.Val
		}
		res, err := optimize.Minimize(optimize.Problem{Func: obj}, x0, nil, &optimize.NelderMead{})
		if err != nil && res == nil {
			return errors.Wrapf(err, "fitmod: %s", m.Name)
		}
		for i, p := range free {
			p.Val = p.clamp(res.X[i])
		}
		m.estimateErrors(obj, free)
	}

	m.goodnessOfFit(bins, ranges, len(free))
	return nil
}

// objective is the extended negative log-likelihood plus a quadratic
// penalty outside the parameter bounds.
func (m *Model) objective(x []float64, free []*Param, bins []binDatum, ranges []Range) float64 {
	penalty := 0.0
	for i, p := range free {
		v := x[i]
		if v < p.Min {
			d := (p.Min - v) / math.Max(1e-9, p.Max-p.Min)
			penalty += 1e6 * d * d
		} else if v > p.Max {
			d := (v - p.Max) / math.Max(1e-9, p.Max-p.Min)
			penalty += 1e6 * d * d
		}
		p.Val = p.clamp(v)
	}

	sigVals, bkgVals := m.sigVals(), m.bkgVals()
	sigNorm := integral(m.Signal, sigVals, ranges)
	bkgNorm := integral(m.Background, bkgVals, ranges)

	nll := 0.0
	for _, b := range bins {
		mu := 1e-12
		if sigNorm > 0 {
			mu += m.SigCounts.Val * simpson(m.Signal, sigVals, b.lo, b.hi) / sigNorm
		}
		if bkgNorm > 0 {
			mu += m.BkgCounts.Val * simpson(m.Background, bkgVals, b.lo, b.hi) / bkgNorm
		}
		nll += mu - b.count*math.Log(mu)
	}
	if math.IsNaN(nll) || math.IsInf(nll, 0) {
		return 1e12 + penalty
	}
	return nll + penalty
}

// simpson integrates the raw shape over one histogram bin.
func simpson(s Shape, pars []float64, lo, hi float64) float64 {
	mid := 0.5 * (lo + hi)
	return (hi - lo) / 6 * (s.Raw(lo, pars) + 4*s.Raw(mid, pars) + s.Raw(hi, pars))
}

// estimateErrors derives parameter uncertainties from the inverse of the
// numerical Hessian of the negative log-likelihood at the minimum.
func (m *Model) estimateErrors(obj func([]float64) float64, free []*Param) {
	n := len(free)
	x := make([]float64, n)
	for i, p := range free {
		x[i] = p.Val
	}
	hess := mat.NewSymDense(n, nil)
	fd.Hessian(hess, obj, x, nil)

	var chol mat.Cholesky
	if chol.Factorize(hess) {
		var cov mat.SymDense
		if err := chol.InverseTo(&cov); err == nil {
			for i, p := range free {
				p.Err = math.Sqrt(math.Max(0, cov.At(i, i)))
			}
			return
		}
	}
	// Non positive-definite Hessian: fall back to uncorrelated errors.
	for i, p := range free {
		d := hess.At(i, i)
		if d > 0 {
			p.Err = 1 / math.Sqrt(d)
		} else {
			p.Err = 0
		}
	}
}

func (m *Model) goodnessOfFit(bins []binDatum, ranges []Range, nFree int) {
	sigVals, bkgVals := m.sigVals(), m.bkgVals()
	sigNorm := integral(m.Signal, sigVals, ranges)
	bkgNorm := integral(m.Background, bkgVals, ranges)

	chi2 := 0.0
	used := 0
	for _, b := range bins {
		if b.count <= 0 {
			continue
		}
		mu := 0.0
		if sigNorm > 0 {
			mu += m.SigCounts.Val * simpson(m.Signal, sigVals, b.lo, b.hi) / sigNorm
		}
		if bkgNorm > 0 {
			mu += m.BkgCounts.Val * simpson(m.Background, bkgVals, b.lo, b.hi) / bkgNorm
		}
		d := b.count - mu
		chi2 += d * d / b.count
		used++
	}

	m.NDF = used - nFree
	if m.NDF > 0 {
		m.Chi2NDF = chi2 / float64(m.NDF)
		m.PValue = distuv.ChiSquared{K: float64(m.NDF)}.Survival(chi2)
	} else {
		m.Chi2NDF = 0
		m.PValue = 0
	}
}
