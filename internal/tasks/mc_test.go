package tasks

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/histio"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/spectra"
)

// makeMCTrack builds a reconstructed primary MC track of the given PDG
// sign.
func makeMCTrack(genPt float64, matter, reconstructed bool) *nuclei.Track {
	trk := makeTrack(genPt, matter)
	trk.GenPt = genPt
	trk.GenEta = 0.1
	trk.PDGCode = nuclei.PDGHe3
	if !matter {
		trk.PDGCode = -nuclei.PDGHe3
	}
	trk.Flags |= nuclei.FlagIsPrimary
	if reconstructed {
		trk.Flags |= nuclei.FlagIsReconstructed
	}
	return trk
}

func TestAnalyseMC(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	input := filepath.Join(dir, "mc-tracks.csv")
	histOutput := filepath.Join(dir, "mc-histos.yoda")
	curveOutput := filepath.Join(dir, "mc-curves.json")

	var tracks []*nuclei.Track
	for i := 0; i < 20; i++ {
		tracks = append(tracks, makeMCTrack(3.0, true, true))
	}
	for i := 0; i < 10; i++ {
		tracks = append(tracks, makeMCTrack(3.0, true, false))
	}
	// Wrong species, ignored entirely.
	bkg := makeMCTrack(3.0, true, true)
	bkg.PDGCode = 1000010030
	tracks = append(tracks, bkg)
	writeTracks(t, input, tracks)

	require.NoError(t, AnalyseMC(cfg, input, histOutput, curveOutput, MCOptions{Species: nuclei.He3}))

	arch, err := histio.ReadFile(histOutput)
	require.NoError(t, err)

	gen, err := arch.MustGet("nuclei/genM")
	require.NoError(t, err)
	assert.Equal(t, int64(30), gen.Entries())

	genA, err := arch.MustGet("nuclei/genA")
	require.NoError(t, err)
	assert.Equal(t, int64(0), genA.Entries())

	set, err := spectra.LoadSet(curveOutput)
	require.NoError(t, err)

	eff, err := set.MustGet("effTPCM")
	require.NoError(t, err)
	ig := findBin(cfg.Common.PtBins, 3.0)
	require.GreaterOrEqual(t, ig, 0)

	// Reco pT sits in a neighbouring bin after the energy-loss correction;
	// the total over bins must still be 20/30.
	sumEff := 0.0
	for _, v := range eff.Vals {
		sumEff += v
	}
	assert.InDelta(t, 20.0/30.0, sumEff, 1e-9)

	// The weighted efficiency exists and stays within [0, 1].
	effW, err := set.MustGet("WeffTPCM")
	require.NoError(t, err)
	for _, v := range effW.Vals {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0+1e-9)
	}

	// Resolution profile around the corrected pT is centred near zero.
	res, err := set.MustGet("hDeltaPtCorr")
	require.NoError(t, err)
	found := false
	for i, v := range res.Vals {
		if res.Errs[i] > 0 || v != 0 {
			found = true
			assert.Less(t, math.Abs(v), 0.5)
		}
	}
	assert.True(t, found)
}
