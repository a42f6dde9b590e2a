package tasks

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/spectra"
)

func TestBarlowPass(t *testing.T) {
	// Deviation well beyond the uncorrelated statistical part.
	assert.True(t, barlowPass(100, 10, 130, 12))
	// Deviation compatible with the trial's extra statistical noise.
	assert.False(t, barlowPass(100, 10, 102, 14))
	// Identical errors: any deviation counts.
	assert.True(t, barlowPass(100, 10, 101, 10))
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, rms(nil))
	assert.InDelta(t, 0.1, rms([]float64{0.1, -0.1}), 1e-12)
	assert.InDelta(t, math.Sqrt(0.02/3), rms([]float64{0.1, -0.1, 0}), 1e-12)
}

func TestReadEventCounts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"n_tvx": 1.5e9}`), 0o644))

	ec, err := readEventCounts(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5e9, ec.NTVX)

	require.NoError(t, os.WriteFile(path, []byte(`{"n_tvx": 0}`), 0o644))
	_, err = readEventCounts(path)
	assert.Error(t, err)
}

func TestComputeSystematics(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	edges := cfg.Common.PtBins
	ib := 6 // 3.0 <= pT < 3.25

	sig := spectra.NewSet()
	for _, l := range []string{"M", "A"} {
		for _, m := range cfg.Common.TPCModels {
			c := spectra.New("nuclei/hTPConly"+l+"0_"+m, edges)
			v := 1000.0
			if m != "ExpGaus" {
				v = 1050.0 // 5% model spread
			}
			c.Set(ib, v, 30)
			sig.Add(c)
		}
		raw := spectra.New("nuclei/hRawCounts"+l+"0", edges)
		raw.Set(ib, 500, 25)
		sig.Add(raw)
		rawBC := spectra.New("nuclei/hRawCountsBinCounting"+l+"0", edges)
		rawBC.Set(ib, 520, 26)
		sig.Add(rawBC)
	}

	mc := spectra.NewSet()
	for _, l := range []string{"M", "A"} {
		effTPC := spectra.New("effTPC"+l, edges)
		effTOF := spectra.New("effTOF"+l, edges)
		for i := range effTPC.Vals {
			effTPC.Set(i, 0.5, 0)
			effTOF.Set(i, 0.25, 0)
		}
		mc.Add(effTPC)
		mc.Add(effTOF)
	}

	// Reweighted default efficiency and one cut trial on the matter side.
	// The trial efficiencies are always unweighted.
	wEffTPCM := spectra.New("WeffTPCM", edges)
	effTrial := spectra.New("effTPCM0", edges)
	for i := range wEffTPCM.Vals {
		wEffTPCM.Set(i, 0.4, 0)
		effTrial.Set(i, 0.5, 0)
	}
	mc.Add(wEffTPCM)
	mc.Add(effTrial)
	trialRaw := spectra.New("nuclei0/hTPConlyM0_ExpGaus", edges)
	trialRaw.Set(ib, 1100, 30)
	sig.Add(trialRaw)

	dir := t.TempDir()
	sigPath := filepath.Join(dir, "signal.json")
	mcPath := filepath.Join(dir, "mc-curves.json")
	eventsPath := filepath.Join(dir, "events.json")
	output := filepath.Join(dir, "systematics.json")
	require.NoError(t, sig.SaveFile(sigPath))
	require.NoError(t, mc.SaveFile(mcPath))
	require.NoError(t, os.WriteFile(eventsPath, []byte(`{"n_tvx": 1e9}`), 0o644))

	require.NoError(t, ComputeSystematics(cfg, sigPath, mcPath, eventsPath, output,
		SystematicsOptions{}))

	out, err := spectra.LoadSet(output)
	require.NoError(t, err)

	nEvents := 1e9 / cfg.Norm.EffTVX * cfg.Norm.VertexingEff
	width := edges[ib+1] - edges[ib]

	statTOF, err := out.MustGet("fStatTOFA")
	require.NoError(t, err)
	wantY := 500.0 / 0.25 / nEvents / width
	assert.InDelta(t, wantY, statTOF.Vals[ib], wantY*1e-9)
	assert.InDelta(t, 25.0/0.25/nEvents/width, statTOF.Errs[ib], wantY*1e-6)

	// TOF extraction spread: rms of {0, 4%}.
	systTOFRel, err := out.MustGet("hSystTOFA")
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.04*0.04/2), systTOFRel.Vals[ib], 1e-9)

	systTOF, err := out.MustGet("fSystTOFA")
	require.NoError(t, err)
	assert.InDelta(t, wantY*systTOFRel.Vals[ib], systTOF.Errs[ib], wantY*1e-6)

	// Model spread: 3 of 4 models deviate by 5%.
	systTPCRel, err := out.MustGet("hSystTPCM")
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(3*0.05*0.05/4), systTPCRel.Vals[ib], 1e-9)

	// The corrected spectrum uses the reweighted efficiency.
	statTPCM, err := out.MustGet("fStatTPCM")
	require.NoError(t, err)
	wantTPC := 1000.0 / 0.4 / nEvents / width
	assert.InDelta(t, wantTPC, statTPCM.Vals[ib], wantTPC*1e-9)

	// The trial spread corrects both sides with the unweighted family:
	// (1100/0.5 - 1000/0.5) / (1000/0.5) = 10%.
	cuts, err := out.MustGet("hSystCutsTPCM")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, cuts.Vals[ib], 1e-9)

	matching, err := out.MustGet("TOFmatchingM")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, matching.Vals[ib], 1e-9)

	pub, err := out.MustGet("pubStat")
	require.NoError(t, err)
	assert.Equal(t, 6, pub.NBins())
	assert.Equal(t, 1.2241e-07, pub.Vals[0])
}
