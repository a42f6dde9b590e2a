package fitmod

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// Range is a closed interval on the fit axis.
type Range struct {
	Lo, Hi float64
}

func (r Range) Contains(x float64) bool { return x >= r.Lo && x <= r.Hi }

// Shape is an unnormalized density on the fit axis. Parameters are passed
// positionally, in the order the shape's params method lists them.
type Shape interface {
	// Raw evaluates the unnormalized density at x.
	Raw(x float64, pars []float64) float64
	// NPars is the number of shape parameters.
	NPars() int
}

const quadNodes = 60

// integral computes the integral of the raw shape over the given ranges.
func integral(s Shape, pars []float64, norm []Range) float64 {
	sum := 0.0
	for _, r := range norm {
		if r.Hi <= r.Lo {
			continue
		}
		sum += quad.Fixed(func(x float64) float64 { return s.Raw(x, pars) }, r.Lo, r.Hi, quadNodes, nil, 0)
	}
	return sum
}

// eval evaluates the density at x normalized to unit integral over norm.
func eval(s Shape, x float64, pars []float64, norm []Range) float64 {
	n := integral(s, pars, norm)
	if n <= 0 || math.IsNaN(n) {
		return 0
	}
	return s.Raw(x, pars) / n
}

// gaussShape has parameters mu, sigma.
type gaussShape struct{}

func (gaussShape) NPars() int { return 2 }

func (gaussShape) Raw(x float64, pars []float64) float64 {
	mu, sigma := pars[0], pars[1]
	if sigma <= 0 {
		return 0
	}
	t := (x - mu) / sigma
	return math.Exp(-0.5 * t * t)
}

// gausExpShape is a Gaussian core with an exponential upper tail beyond
// alpha standard deviations. Parameters mu, sigma, alpha.
type gausExpShape struct{}

func (gausExpShape) NPars() int { return 3 }

func (gausExpShape) Raw(x float64, pars []float64) float64 {
	mu, sigma, alpha := pars[0], pars[1], pars[2]
	if sigma <= 0 {
		return 0
	}
	t := (x - mu) / sigma
	if t <= alpha {
		return math.Exp(-0.5 * t * t)
	}
	return math.Exp(0.5*alpha*alpha - alpha*t)
}

// expShape has a single slope parameter tau, with density exp(tau*x).
type expShape struct{}

func (expShape) NPars() int { return 1 }

func (expShape) Raw(x float64, pars []float64) float64 {
	return math.Exp(pars[0] * x)
}

// logNormalShape has parameters m0 (median) and k (shape, > 1). The
// density vanishes for x <= 0.
type logNormalShape struct{}

func (logNormalShape) NPars() int { return 2 }

func (logNormalShape) Raw(x float64, pars []float64) float64 {
	m0, k := pars[0], pars[1]
	if x <= 0 || m0 <= 0 || k <= 1 {
		return 0
	}
	lnk := math.Log(k)
	u := math.Log(x/m0) / lnk
	return math.Exp(-0.5*u*u) / x
}

// rangeAware shapes need the current fit ranges for internal
// normalization.
type rangeAware interface {
	setNorm([]Range)
}

// twoExpShape mixes two exponential slopes with fraction k for the first.
// Parameters tau0, tau1, k. Each component is normalized over the fit
// ranges, so k is a true fraction.
type twoExpShape struct {
	norm []Range
}

func (*twoExpShape) NPars() int { return 3 }

func (s *twoExpShape) setNorm(r []Range) { s.norm = r }

func (s *twoExpShape) Raw(x float64, pars []float64) float64 {
	tau0, tau1, k := pars[0], pars[1], pars[2]
	e0 := eval(expShape{}, x, []float64{tau0}, s.norm)
	e1 := eval(expShape{}, x, []float64{tau1}, s.norm)
	return k*e0 + (1-k)*e1
}
