package fitmod

// Model is an extended signal+background template on a fixed axis domain.
// The named parameter fields alias entries of sigPars/bkgPars; nil fields
// do not exist in the model.
type Model struct {
	Name string
	X    Range

	Signal     Shape
	Background Shape

	SigCounts *Param
	BkgCounts *Param

	Mu     *Param
	Sigma  *Param
	Alpha0 *Param
	Tau0   *Param
	Tau1   *Param
	KBkg   *Param
	MuBkg  *Param
	SigBkg *Param

	sigPars []*Param
	bkgPars []*Param

	// Filled by Fit.
	Chi2NDF float64
	NDF     int
	PValue  float64
}

func newModel(name string, x Range) *Model {
	return &Model{
		Name:      name,
		X:         x,
		SigCounts: newParam("Nsig", 1000, 0, 1e7),
		BkgCounts: newParam("Nbkg", 1000, 0, 1e7),
		Mu:        newParam("mu", 0, -1, 1),
		Sigma:     newParam("sigma", 0.5, 0.05, 2),
	}
}

// NewGausGaus builds a Gaussian signal over a Gaussian background, the
// background sitting far below the signal.
func NewGausGaus(x Range) *Model {
	m := newModel("GausGaus", x)
	m.MuBkg = newParam("muBkg", -4, -5, -3)
	m.SigBkg = newParam("sigmaBkg", 1, 0.01, 2)
	m.Signal = gaussShape{}
	m.Background = gaussShape{}
	m.sigPars = []*Param{m.Mu, m.Sigma}
	m.bkgPars = []*Param{m.MuBkg, m.SigBkg}
	return m
}

// NewExpGaus builds a Gaussian signal over an exponential background.
func NewExpGaus(x Range) *Model {
	m := newModel("ExpGaus", x)
	m.Tau0 = newParam("tau", -1, -5, 0)
	m.Signal = gaussShape{}
	m.Background = expShape{}
	m.sigPars = []*Param{m.Mu, m.Sigma}
	m.bkgPars = []*Param{m.Tau0}
	return m
}

// NewExpTailGaus builds a tailed-Gaussian signal over an exponential
// background.
func NewExpTailGaus(x Range) *Model {
	m := newModel("ExpTailGaus", x)
	m.Tau0 = newParam("tau0", -1, -10, -1e-5)
	m.Alpha0 = newParam("alpha0", 2, 1.6, 3)
	m.Signal = gausExpShape{}
	m.Background = expShape{}
	m.sigPars = []*Param{m.Mu, m.Sigma, m.Alpha0}
	m.bkgPars = []*Param{m.Tau0}
	return m
}

// NewLogNormalLogNormal builds a lognormal signal over a lognormal
// background.
func NewLogNormalLogNormal(x Range) *Model {
	m := newModel("LognormalLognormal", x)
	m.Sigma.SetRange(1.0001, 20)
	m.Sigma.SetVal(2.7)
	m.MuBkg = newParam("muBkg", -4, -6, -3)
	m.SigBkg = newParam("sigmaBkg", 2, 1.0001, 20)
	m.Signal = logNormalShape{}
	m.Background = logNormalShape{}
	m.sigPars = []*Param{m.Mu, m.Sigma}
	m.bkgPars = []*Param{m.MuBkg, m.SigBkg}
	return m
}

// NewExpExpTailGaus builds a tailed-Gaussian signal over a two-slope
// exponential background, used for the sideband fits.
func NewExpExpTailGaus(x Range) *Model {
	m := newModel("ExpExpTailGaus", x)
	m.Tau0 = newParam("tau0", -2, -10, -0.5)
	m.Tau1 = newParam("tau1", -0.2, -0.5, -0.01)
	m.KBkg = newParam("kBkg", 0, 0, 1)
	m.Alpha0 = newParam("alpha0", 2, 1.6, 3)
	m.Signal = gausExpShape{}
	m.Background = &twoExpShape{norm: []Range{x}}
	m.sigPars = []*Param{m.Mu, m.Sigma, m.Alpha0}
	m.bkgPars = []*Param{m.Tau0, m.Tau1, m.KBkg}
	return m
}

// UseSignal enables or disables the signal component. A disabled
// component is pinned to zero yield with all its shape parameters frozen.
func (m *Model) UseSignal(use bool) {
	m.SigCounts.Fixed = !use
	m.SigCounts.Val = 1000 * b2f(use)
	for _, p := range m.sigPars {
		p.Fixed = !use
	}
}

// UseBackground enables or disables the background component.
func (m *Model) UseBackground(use bool) {
	m.BkgCounts.Fixed = !use
	m.BkgCounts.Val = 1000 * b2f(use)
	for _, p := range m.bkgPars {
		p.Fixed = !use
	}
}

func b2f(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// NFloatPars counts the parameters floating in the fit.
func (m *Model) NFloatPars() int {
	return len(m.freeParams())
}

func (m *Model) freeParams() []*Param {
	all := []*Param{m.SigCounts, m.BkgCounts}
	all = append(all, m.sigPars...)
	all = append(all, m.bkgPars...)
	var free []*Param
	for _, p := range all {
		if !p.Fixed {
			free = append(free, p)
		}
	}
	return free
}

func (m *Model) sigVals() []float64 { return vals(m.sigPars) }
func (m *Model) bkgVals() []float64 { return vals(m.bkgPars) }

func vals(ps []*Param) []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = p.Val
	}
	return out
}

// SignalIntegral returns the fitted signal yield inside sub, with the
// shape normalized over norm.
func (m *Model) SignalIntegral(sub Range, norm []Range) float64 {
	tot := integral(m.Signal, m.sigVals(), norm)
	if tot <= 0 {
		return 0
	}
	return m.SigCounts.Val * integral(m.Signal, m.sigVals(), []Range{sub}) / tot
}

// BackgroundIntegral returns the fitted background yield inside sub, with
// the shape normalized over norm.
func (m *Model) BackgroundIntegral(sub Range, norm []Range) float64 {
	tot := integral(m.Background, m.bkgVals(), norm)
	if tot <= 0 {
		return 0
	}
	return m.BkgCounts.Val * integral(m.Background, m.bkgVals(), []Range{sub}) / tot
}

// Density evaluates the full fitted model density at x, in counts per
// unit x, normalized over norm.
func (m *Model) Density(x float64, norm []Range) float64 {
	return m.SigCounts.Val*eval(m.Signal, x, m.sigVals(), norm) +
		m.BkgCounts.Val*eval(m.Background, x, m.bkgVals(), norm)
}

// SignalDensity evaluates only the signal component at x.
func (m *Model) SignalDensity(x float64, norm []Range) float64 {
	return m.SigCounts.Val * eval(m.Signal, x, m.sigVals(), norm)
}

// BackgroundDensity evaluates only the background component at x.
func (m *Model) BackgroundDensity(x float64, norm []Range) float64 {
	return m.BkgCounts.Val * eval(m.Background, x, m.bkgVals(), norm)
}
