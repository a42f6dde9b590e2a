package tasks

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/spectra"
)

// triggerInputs writes the two track tables plus their event-counter
// records and returns the stage inputs.
func triggerInputs(t *testing.T, nSampled, nSkimmed int, evSampled, evSkimmed float64) (string, string, string, TriggerOptions) {
	t.Helper()
	dir := t.TempDir()
	sampledPath := filepath.Join(dir, "sampled.csv")
	skimmedPath := filepath.Join(dir, "skimmed.csv")
	sampledEvents := filepath.Join(dir, "sampled-events.json")
	skimmedEvents := filepath.Join(dir, "skimmed-events.json")

	var sampled, skimmed []*nuclei.Track
	for i := 0; i < nSkimmed; i++ {
		trk := makeTrack(3.0, true)
		skimmed = append(skimmed, trk)
		if i < nSampled {
			sampled = append(sampled, trk)
		}
	}
	writeTracks(t, sampledPath, sampled)
	writeTracks(t, skimmedPath, skimmed)
	writeEventCounts(t, sampledEvents, evSampled)
	writeEventCounts(t, skimmedEvents, evSkimmed)

	opt := TriggerOptions{
		Species:       nuclei.He3,
		SampledEvents: sampledEvents,
		SkimmedEvents: skimmedEvents,
	}
	return sampledPath, skimmedPath, filepath.Join(dir, "trigger-eff.json"), opt
}

func writeEventCounts(t *testing.T, path string, nTVX float64) {
	t.Helper()
	record := `{"n_tvx": ` + strconv.FormatFloat(nTVX, 'g', -1, 64) + `}`
	require.NoError(t, os.WriteFile(path, []byte(record), 0o644))
}

func TestTriggerEfficiency(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	sampledPath, skimmedPath, output, opt := triggerInputs(t, 60, 100, 1000, 1000)
	require.NoError(t, TriggerEfficiency(cfg, sampledPath, skimmedPath, output, opt))

	set, err := spectra.LoadSet(output)
	require.NoError(t, err)

	eff, err := set.MustGet("triggerEffM")
	require.NoError(t, err)

	o := nuclei.Derive(makeTrack(3.0, true), nuclei.He3)
	ib := findBin(cfg.Common.PtBins, o.Pt)
	require.GreaterOrEqual(t, ib, 0)

	// Equal inspected events: the normalization cancels.
	assert.InDelta(t, 0.6, eff.Vals[ib], 1e-12)
	// Fully correlated samples reduce to the binomial uncertainty.
	assert.InDelta(t, math.Sqrt(0.6*0.4/100), eff.Errs[ib], 1e-12)

	// Empty antimatter side.
	effA, err := set.MustGet("triggerEffA")
	require.NoError(t, err)
	assert.Equal(t, 0.0, effA.Vals[ib])
}

func TestTriggerEfficiencyNormalization(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	// The sampled table covers half the inspected events of the skimmed
	// one, so the per-event yields differ from the raw counts.
	sampledPath, skimmedPath, output, opt := triggerInputs(t, 60, 100, 500, 1000)
	require.NoError(t, TriggerEfficiency(cfg, sampledPath, skimmedPath, output, opt))

	set, err := spectra.LoadSet(output)
	require.NoError(t, err)
	eff, err := set.MustGet("triggerEffM")
	require.NoError(t, err)

	o := nuclei.Derive(makeTrack(3.0, true), nuclei.He3)
	ib := findBin(cfg.Common.PtBins, o.Pt)

	// (60/500) / (100/1000) = 1.2
	ratio := 1.2
	assert.InDelta(t, ratio, eff.Vals[ib], 1e-12)

	varS := 60.0 / (500 * 500)
	varK := 100.0 / (1000 * 1000)
	cov := 60.0 / (500 * 1000)
	yK := 100.0 / 1000
	wantVar := (varS + ratio*ratio*varK - 2*ratio*cov) / (yK * yK)
	assert.InDelta(t, math.Sqrt(wantVar), eff.Errs[ib], 1e-12)
}

func TestTriggerEfficiencyRequiresEventCounts(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	err = TriggerEfficiency(cfg, "in", "in", "out", TriggerOptions{Species: nuclei.He3})
	assert.Error(t, err)
}
