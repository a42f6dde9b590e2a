package fitmod

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/hbook"
)

func TestResolveModelMatrix(t *testing.T) {
	matrix, err := ResolveModelMatrix(SupportedTPCModels, SupportedTPCModels)
	require.NoError(t, err)
	require.Len(t, matrix, 4)
	for i, e := range matrix {
		assert.Equal(t, i, e.Index)
	}

	matrix, err = ResolveModelMatrix([]string{"ExpGaus", "GausGaus"}, SupportedTPCModels)
	require.NoError(t, err)
	assert.Equal(t, []ModelEntry{{"ExpGaus", 1}, {"GausGaus", 0}}, matrix)

	_, err = ResolveModelMatrix([]string{"ExpGaus", "ExpGaus"}, SupportedTPCModels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated")

	_, err = ResolveModelMatrix([]string{"ExpGaus", "NotAModel"}, SupportedTPCModels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestDefaultTPCModel(t *testing.T) {
	assert.Equal(t, "ExpGaus", DefaultTPCModel(SupportedTPCModels))
	assert.Equal(t, "GausGaus", DefaultTPCModel([]string{"GausGaus", "ExpTailGaus"}))
}

func TestGausExpContinuity(t *testing.T) {
	s := gausExpShape{}
	pars := []float64{0.1, 0.2, 1.5}
	at := 0.1 + 1.5*0.2
	eps := 1e-7
	assert.InDelta(t, s.Raw(at-eps, pars), s.Raw(at+eps, pars), 1e-5)
	// The tail decays slower than the Gaussian.
	assert.Greater(t, s.Raw(at+0.5, pars), gaussShape{}.Raw(at+0.5, pars[:2]))
}

func TestNormalization(t *testing.T) {
	norm := []Range{{-1.2, 1.5}}
	for _, tc := range []struct {
		shape Shape
		pars  []float64
	}{
		{gaussShape{}, []float64{0.1, 0.15}},
		{gausExpShape{}, []float64{0.1, 0.15, 1.2}},
		{expShape{}, []float64{-1.0}},
		{&twoExpShape{norm: norm}, []float64{-2.0, -0.2, 0.3}},
	} {
		tot := quadSum(tc.shape, tc.pars, norm)
		require.Greater(t, tot, 0.0)
		got := 0.0
		n := 3000
		w := (norm[0].Hi - norm[0].Lo) / float64(n)
		for i := 0; i < n; i++ {
			x := norm[0].Lo + (float64(i)+0.5)*w
			got += eval(tc.shape, x, tc.pars, norm) * w
		}
		assert.InDelta(t, 1.0, got, 1e-3)
	}
}

func quadSum(s Shape, pars []float64, norm []Range) float64 {
	return integral(s, pars, norm)
}

func TestUseSignalUseBackground(t *testing.T) {
	m := NewExpExpTailGaus(Range{-1.2, 1.5})
	nAll := m.NFloatPars()

	m.UseSignal(false)
	assert.Equal(t, 0.0, m.SigCounts.Val)
	assert.True(t, m.SigCounts.Fixed)
	assert.Less(t, m.NFloatPars(), nAll)

	m.UseSignal(true)
	assert.Equal(t, 1000.0, m.SigCounts.Val)
	assert.Equal(t, nAll, m.NFloatPars())

	m.UseBackground(false)
	assert.Equal(t, 0.0, m.BkgCounts.Val)
	assert.Less(t, m.NFloatPars(), nAll)
}

// fillExpected fills h with the exact expected counts of a model state.
func fillExpected(h *hbook.H1D, f func(x float64) float64) {
	for i := range h.Binning.Bins {
		b := &h.Binning.Bins[i]
		h.Fill(b.XMid(), f(b.XMid())*b.XWidth())
	}
}

func TestExpTailGausRecovery(t *testing.T) {
	x := Range{-1.2, 1.5}
	norm := []Range{x}

	truth := NewTOFSignalModel(x)
	truth.SigCounts.SetVal(900)
	truth.BkgCounts.SetVal(400)
	truth.Mu.SetVal(0.05)
	truth.Sigma.SetVal(0.12)
	truth.Alpha0.SetVal(1.4)
	truth.Tau0.SetVal(-1.1)

	h := hbook.NewH1D(100, x.Lo, x.Hi)
	fillExpected(h, func(v float64) float64 { return truth.Density(v, norm) })

	m := NewTOFSignalModel(x)
	require.NoError(t, m.Fit(h))

	assert.InDelta(t, 900, m.SigCounts.Val, 90)
	assert.InDelta(t, 400, m.BkgCounts.Val, 60)
	assert.InDelta(t, 0.05, m.Mu.Val, 0.05)
	assert.InDelta(t, 0.12, m.Sigma.Val, 0.04)
	assert.Greater(t, m.SigCounts.Err, 0.0)
	assert.Greater(t, m.NDF, 0)
	assert.Less(t, m.Chi2NDF, 1.0)
	assert.GreaterOrEqual(t, m.PValue, 0.0)
	assert.LessOrEqual(t, m.PValue, 1.0)
}

func TestSidebandFit(t *testing.T) {
	x := Range{-1.2, 1.5}
	left := Range{-1.2, -0.3}
	right := Range{0.7, 1.5}

	tau := -0.8
	h := hbook.NewH1D(100, x.Lo, x.Hi)
	for i := range h.Binning.Bins {
		b := &h.Binning.Bins[i]
		h.Fill(b.XMid(), 50*math.Exp(tau*b.XMid())*b.XWidth())
	}

	m := NewTOFSidebandModel(x)
	require.NoError(t, m.Fit(h, left, right))

	inSignal := m.BackgroundIntegral(Range{-0.3, 0.7}, []Range{left, right})
	assert.Greater(t, inSignal, 0.0)

	// Integral of the fitted shape over the sidebands matches the yield.
	tot := m.BackgroundIntegral(left, []Range{left, right}) +
		m.BackgroundIntegral(right, []Range{left, right})
	assert.InDelta(t, m.BkgCounts.Val, tot, 1e-6*math.Max(1, m.BkgCounts.Val))
}

func TestBackgroundIntegralAnalytic(t *testing.T) {
	x := Range{0, 2}
	m := NewExpGaus(x)
	m.Tau0.SetVal(-1)
	m.BkgCounts.SetVal(1000)

	// exp(-x) on [0,2], sub [0,1]: fraction = (1-e^-1)/(1-e^-2)
	frac := (1 - math.Exp(-1)) / (1 - math.Exp(-2))
	got := m.BackgroundIntegral(Range{0, 1}, []Range{x})
	assert.InDelta(t, 1000*frac, got, 1e-3)
}

func TestTPCModelFactory(t *testing.T) {
	x := Range{-5, 5}
	for _, name := range SupportedTPCModels {
		m, err := NewTPCModel(name, x)
		require.NoError(t, err, name)
		assert.Equal(t, name, m.Name)
	}
	_, err := NewTPCModel("nope", x)
	assert.Error(t, err)
}

func TestFitRejectsEmptyRange(t *testing.T) {
	x := Range{-5, 5}
	m, err := NewTPCModel("ExpGaus", x)
	require.NoError(t, err)
	h := hbook.NewH1D(10, -5, 5)
	assert.Error(t, m.Fit(h, Range{10, 20}))
}
