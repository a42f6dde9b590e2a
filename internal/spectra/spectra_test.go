package spectra

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinnedBasics(t *testing.T) {
	b := New("raw", []float64{1.0, 2.0, 4.0})
	assert.Equal(t, 2, b.NBins())
	assert.Equal(t, 1.5, b.Center(0))
	assert.Equal(t, 2.0, b.Width(1))

	assert.Equal(t, 0, b.FindBin(1.0))
	assert.Equal(t, 1, b.FindBin(3.9))
	assert.Equal(t, -1, b.FindBin(4.0))
	assert.Equal(t, -1, b.FindBin(0.5))

	b.Set(0, 10, 2)
	c := b.Clone("copy")
	c.Set(0, 20, 3)
	assert.Equal(t, 10.0, b.Vals[0])
	assert.Equal(t, "copy", c.Name)
}

func TestScaleByWidth(t *testing.T) {
	b := New("y", []float64{0.0, 1.0, 3.0})
	b.Set(0, 10, 1)
	b.Set(1, 10, 1)
	b.Scale(0.5, true)

	assert.Equal(t, 5.0, b.Vals[0])
	assert.Equal(t, 2.5, b.Vals[1])
	assert.Equal(t, 0.25, b.Errs[1])
}

func TestDivide(t *testing.T) {
	num := New("num", []float64{0, 1, 2})
	den := New("den", []float64{0, 1, 2})
	num.Set(0, 10, 1)
	den.Set(0, 5, 0.5)
	// den zero in bin 1 zeroes the ratio.
	num.Set(1, 3, 1)

	require.NoError(t, num.Divide(den))
	assert.Equal(t, 2.0, num.Vals[0])
	rel := math.Sqrt(math.Pow(1.0/10, 2) + math.Pow(0.5/5, 2))
	assert.InDelta(t, 2*rel, num.Errs[0], 1e-12)
	assert.Equal(t, 0.0, num.Vals[1])

	other := New("other", []float64{0, 1})
	assert.Error(t, num.Divide(other))
}

func TestEfficiency(t *testing.T) {
	pass := New("pass", []float64{0, 1, 2})
	total := New("total", []float64{0, 1, 2})
	pass.Set(0, 30, 0)
	total.Set(0, 100, 0)

	eff, err := Efficiency("eff", pass, total)
	require.NoError(t, err)
	assert.Equal(t, 0.3, eff.Vals[0])
	assert.InDelta(t, math.Sqrt(0.7*30/1e4), eff.Errs[0], 1e-12)
	assert.Equal(t, 0.0, eff.Vals[1])
}

func TestSetRoundTrip(t *testing.T) {
	s := NewSet()
	a := New("a", []float64{0, 1})
	a.Set(0, 1, 0.1)
	s.Add(a)
	s.Add(New("b", []float64{0, 1}))

	// Adding under an existing name replaces in place.
	a2 := New("a", []float64{0, 1})
	a2.Set(0, 2, 0.2)
	s.Add(a2)
	require.Len(t, s.Curves, 2)
	got, err := s.MustGet("a")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Vals[0])

	path := filepath.Join(t.TempDir(), "curves.json")
	require.NoError(t, s.SaveFile(path))

	loaded, err := LoadSet(path)
	require.NoError(t, err)
	require.Len(t, loaded.Curves, 2)
	got, err = loaded.MustGet("a")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Vals[0])
	assert.Equal(t, 0.2, got.Errs[0])

	_, err = loaded.MustGet("missing")
	assert.Error(t, err)
}
