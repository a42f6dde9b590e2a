package tasks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/tracktab"
)

// signalFor inverts the n-sigma parameterization: the TPC signal that
// puts a track of the given rigidity at nsigma from the species band.
func signalFor(s nuclei.Species, mom, nsigma float64) float64 {
	zero := nuclei.NSigma(s, mom, 0)
	slope := nuclei.NSigma(s, mom, 1) - zero
	return (nsigma - zero) / slope
}

// betaFor is the TOF beta of a particle with the given mass and
// rigidity (|Z|=2).
func betaFor(mass, mom float64) float64 {
	r := mass / (2 * mom)
	return 1 / math.Sqrt(r*r+1)
}

// makeTrack builds a track that passes the base, primary and skim
// selections at ptUncorr, sitting at the center of the TPC and TOF
// signal regions.
func makeTrack(ptUncorr float64, matter bool) *nuclei.Track {
	signedPt := ptUncorr / 2
	if !matter {
		signedPt = -signedPt
	}
	mom := 1.5
	return &nuclei.Track{
		SignedPt:      signedPt,
		Eta:           0.2,
		TPCInnerParam: mom,
		TPCSignal:     signalFor(nuclei.He3, mom, 0),
		Beta:          betaFor(nuclei.MassHe3, mom),
		DCAxy:         0.01,
		DCAz:          0.001,
		TPCnCls:       140,
		ITSClsMap:     0x7f,
		Flags:         nuclei.FlagHe3 | nuclei.FlagHasTOF | nuclei.FlagPositive,
	}
}

func writeTracks(t *testing.T, path string, tracks []*nuclei.Track) {
	t.Helper()
	w, err := tracktab.Create(path)
	require.NoError(t, err)
	for _, trk := range tracks {
		require.NoError(t, w.Write(trk))
	}
	require.NoError(t, w.Close())
}

func TestSliceName(t *testing.T) {
	assert.Equal(t, "nuclei/fMTPCcounts_pt03", sliceName("nuclei/fMTPCcounts", 3))
	assert.Equal(t, "nuclei5/fATOFsignal_pt11", sliceName("nuclei5/fATOFsignal", 11))
}

func TestTrialDir(t *testing.T) {
	assert.Equal(t, "nuclei", trialDir(-1))
	assert.Equal(t, "nuclei0", trialDir(0))
	assert.Equal(t, "nuclei26", trialDir(26))
}

func TestFindBin(t *testing.T) {
	edges := []float64{1.0, 2.0, 3.0, 5.0}
	assert.Equal(t, 0, findBin(edges, 1.0))
	assert.Equal(t, 1, findBin(edges, 2.5))
	assert.Equal(t, 2, findBin(edges, 4.9))
	assert.Equal(t, -1, findBin(edges, 0.5))
	assert.Equal(t, -1, findBin(edges, 5.0))
}

func TestPtSlicedFill(t *testing.T) {
	s := newPtSliced([]float64{1, 2, 3}, 10, -5, 5)
	s.Fill(1.5, 0.0)
	s.Fill(2.5, 1.0)
	s.Fill(2.5, 2.0)
	s.Fill(9.0, 0.0) // out of range

	assert.Equal(t, int64(1), s.hists[0].Entries())
	assert.Equal(t, int64(2), s.hists[1].Entries())
}

func TestMakeTrackPassesSelections(t *testing.T) {
	trk := makeTrack(3.0, true)
	o := nuclei.Derive(trk, nuclei.He3)

	assert.True(t, o.Matter)
	assert.InDelta(t, 0, o.NSigmaTPC, 1e-9)
	assert.InDelta(t, 0, o.DeltaMass, 1e-9)
	assert.True(t, nuclei.BaseSelection(nuclei.He3).Pass(trk, o))
	assert.True(t, nuclei.PrimarySelection().Pass(trk, o))
	assert.True(t, nuclei.SkimPass(trk, o))
	assert.True(t, o.GoodTOFMass(nuclei.He3))
}
