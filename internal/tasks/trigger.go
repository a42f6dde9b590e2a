package tasks

import (
	"math"

	"github.com/cockroachdb/errors"
	"go-hep.org/x/hep/hbook"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/spectra"
	"github.com/decibelcooper/he3spectra/internal/tracktab"
	"github.com/decibelcooper/he3spectra/internal/xlog"
)

// TriggerOptions selects the inputs of the trigger-efficiency stage.
// SampledEvents and SkimmedEvents point to the inspected-event counter
// records of the two track tables.
type TriggerOptions struct {
	Species       nuclei.Species
	SampledEvents string
	SkimmedEvents string
}

// TriggerEfficiency compares the per-event candidate yields of the
// sampled data with the ones kept by the software trigger. Each count is
// normalized by the inspected events of its own sample before taking the
// ratio, so the two tables may cover different luminosities. The sampled
// tracks are a subset of the skimmed ones, so the binomial part of the
// uncertainty is corrected for the full overlap between the two samples.
func TriggerEfficiency(cfg *config.Config, sampledInput, skimmedInput, output string, opt TriggerOptions) error {
	s := opt.Species
	edges := cfg.Common.PtBins

	if opt.SampledEvents == "" || opt.SkimmedEvents == "" {
		return errors.New("trigger: both event-counter records are required")
	}
	ecSampled, err := readEventCounts(opt.SampledEvents)
	if err != nil {
		return err
	}
	ecSkimmed, err := readEventCounts(opt.SkimmedEvents)
	if err != nil {
		return err
	}
	normS := 1 / ecSampled.NTVX
	normK := 1 / ecSkimmed.NTVX

	sampled, err := countCandidates(sampledInput, s, edges)
	if err != nil {
		return err
	}
	skimmed, err := countCandidates(skimmedInput, s, edges)
	if err != nil {
		return err
	}

	set := spectra.NewSet()
	for is := 0; is < 2; is++ {
		l := matterLabels[is]
		eff := spectra.New("triggerEff"+l, edges)
		for ib := range eff.Vals {
			bS := &sampled[is].Binning.Bins[ib]
			bK := &skimmed[is].Binning.Bins[ib]
			yK := normK * bK.SumW()
			if yK <= 0 {
				continue
			}
			yS := normS * bS.SumW()
			ratio := yS / yK
			varS := normS * normS * bS.SumW2()
			varK := normK * normK * bK.SumW2()
			// The sampled tracks are contained in the skimmed ones, so the
			// numerator fluctuation is fully correlated with the denominator.
			cov := normS * normK * bS.SumW2()
			variance := (varS + ratio*ratio*varK - 2*ratio*cov) / (yK * yK)
			eff.Set(ib, ratio, math.Sqrt(math.Max(0, variance)))
		}
		set.Add(eff)
	}

	if err := set.SaveFile(output); err != nil {
		return err
	}
	xlog.L.Infow("trigger efficiency done",
		"species", s.String(),
		"sampled_events", ecSampled.NTVX,
		"skimmed_events", ecSkimmed.NTVX,
		"output", output,
	)
	return nil
}

// countCandidates fills per-pT candidate counts of the loose selection,
// split matter/antimatter.
func countCandidates(input string, s nuclei.Species, edges []float64) ([2]*hbook.H1D, error) {
	var counts [2]*hbook.H1D
	for i := 0; i < 2; i++ {
		counts[i] = hbook.NewH1DFromEdges(edges)
	}
	base := nuclei.BaseSelection(s)

	err := tracktab.Each(input, func(t *nuclei.Track) error {
		o := nuclei.Derive(t, s)
		if !base.Pass(t, o) || !nuclei.SkimPass(t, o) {
			return nil
		}
		counts[matterIndex(o.Matter)].Fill(o.Pt, 1)
		return nil
	})
	return counts, err
}
