package tasks

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/histio"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
)

func TestAnalyseData(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	input := filepath.Join(dir, "tracks.csv")
	output := filepath.Join(dir, "data-histos.yoda")

	var tracks []*nuclei.Track
	for i := 0; i < 40; i++ {
		tracks = append(tracks, makeTrack(3.0, true))
	}
	for i := 0; i < 25; i++ {
		tracks = append(tracks, makeTrack(3.0, false))
	}
	// Below the first analysis pT bin after the energy-loss correction.
	tracks = append(tracks, makeTrack(0.6, true))
	writeTracks(t, input, tracks)

	require.NoError(t, AnalyseData(cfg, input, output, DataOptions{Species: nuclei.He3}))

	arch, err := histio.ReadFile(output)
	require.NoError(t, err)

	o := nuclei.Derive(makeTrack(3.0, true), nuclei.He3)
	ib := findBin(cfg.Common.PtBins, o.Pt)
	require.GreaterOrEqual(t, ib, 0)

	tpcM, err := arch.MustGet(sliceName("nuclei/fMTPCcounts", ib))
	require.NoError(t, err)
	assert.Equal(t, int64(40), tpcM.Entries())

	tofA, err := arch.MustGet(sliceName("nuclei/fATOFsignal", ib))
	require.NoError(t, err)
	assert.Equal(t, int64(25), tofA.Entries())

	dcaM, err := arch.MustGet(sliceName("nuclei/hDCAxyM", ib))
	require.NoError(t, err)
	assert.Equal(t, int64(40), dcaM.Entries())

	// No trial directories without the Trials option.
	_, ok := arch.Get(sliceName("nuclei0/fMTPCcounts", ib))
	assert.False(t, ok)
}

func TestAnalyseDataTrials(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	input := filepath.Join(dir, "tracks.csv")
	output := filepath.Join(dir, "data-histos.yoda")
	writeTracks(t, input, []*nuclei.Track{makeTrack(3.0, true)})

	require.NoError(t, AnalyseData(cfg, input, output, DataOptions{Species: nuclei.He3, Trials: true}))

	arch, err := histio.ReadFile(output)
	require.NoError(t, err)

	o := nuclei.Derive(makeTrack(3.0, true), nuclei.He3)
	ib := findBin(cfg.Common.PtBins, o.Pt)

	// The synthetic track passes every trial of the grid.
	for it := 0; it < 27; it++ {
		h, err := arch.MustGet(sliceName(trialDir(it)+"/fMTPCcounts", ib))
		require.NoError(t, err)
		assert.Equal(t, int64(1), h.Entries(), "trial %d", it)
	}
}
