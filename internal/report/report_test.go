package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/he3spectra/internal/spectra"
)

func TestStatus(t *testing.T) {
	for _, tc := range []struct {
		available, hasMetrics bool
		pValue                float64
		status, class         string
	}{
		{false, false, 0, "MISSING", "missing"},
		{true, false, 0, "UNK", "unknown"},
		{true, true, 0.5, "OK", "ok"},
		{true, true, 0.05, "OK", "ok"},
		{true, true, 0.01, "KO", "ko"},
	} {
		status, class := Status(tc.available, tc.hasMetrics, tc.pValue, 0.05)
		assert.Equal(t, tc.status, status)
		assert.Equal(t, tc.class, class)
	}
}

func TestWriteIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report", "index.html")
	page := Page{
		Title: "he3 LHC22 apass4",
		Sections: []Section{
			{Title: "TOF raw yields", Status: "OK", Class: "ok", Images: []string{"img/a.png"}},
			{Title: "Efficiency", Status: "MISSING", Class: "missing", Note: "no MC pass"},
		},
	}
	require.NoError(t, WriteIndex(path, page))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "<title>he3 LHC22 apass4</title>")
	assert.Contains(t, body, "TOF raw yields")
	assert.Contains(t, body, `class="badge ok"`)
	assert.Contains(t, body, `src="img/a.png"`)
	assert.Contains(t, body, "no MC pass")
	assert.Contains(t, body, `class="badge missing"`)
}

func TestErrorPoints(t *testing.T) {
	b := spectra.New("c", []float64{1, 2, 3, 4})
	b.Set(0, 10, 1)
	b.Set(2, -5, 2)

	pts := errorPoints(b, false)
	require.Len(t, pts.XYs, 2)
	assert.Equal(t, 1.5, pts.XYs[0].X)
	assert.Equal(t, 10.0, pts.XYs[0].Y)
	assert.Equal(t, 1.0, pts.YErrors[0].High)

	// Log scale drops non-positive bins.
	pts = errorPoints(b, true)
	require.Len(t, pts.XYs, 1)
	assert.Equal(t, 10.0, pts.XYs[0].Y)
}

func TestSaveCurves(t *testing.T) {
	b := spectra.New("spectrum", []float64{1, 2, 3})
	b.Title = "matter"
	b.Set(0, 1e-7, 1e-8)
	b.Set(1, 5e-8, 5e-9)

	path := filepath.Join(t.TempDir(), "img", "spectrum.png")
	require.NoError(t, SaveCurves(path, "spectrum", "pT (GeV/c)", "yield", true, b))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
