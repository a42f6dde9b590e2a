package tasks

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/fitmod"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/spectra"
	"github.com/decibelcooper/he3spectra/internal/xlog"
)

// SystematicsOptions selects the inputs of the systematics stage.
type SystematicsOptions struct {
	Species nuclei.Species
	// SecondariesPath, when set, applies the fitted primary fraction to
	// the matter raw yields.
	SecondariesPath string
}

// minEff guards the efficiency correction against empty MC bins.
const minEff = 1e-2

// Published Run 2 pp antihelium-3 spectrum used as reference curves.
var (
	pubBins = []float64{1.0, 1.5, 2.0, 2.5, 3.0, 4.0, 5.0}
	pubY    = []float64{1.2241e-07, 8.4801e-08, 5.0085e-08, 3.2333e-08, 1.7168e-08, 4.8137e-09}
	pubEY   = []float64{1.769e-08, 7.5127e-09, 6.0035e-09, 4.8788e-09, 2.5057e-09, 1.3356e-09}
	pubSY   = []float64{1.3346e-08, 1.0763e-08, 3.2452e-09, 2.1084e-09, 1.1316e-09, 3.1345e-10}
)

// eventCounts is the bookkeeping record written alongside the track
// tables by the skimming production.
type eventCounts struct {
	NTVX float64 `json:"n_tvx"`
}

func readEventCounts(path string) (eventCounts, error) {
	var ec eventCounts
	raw, err := os.ReadFile(path)
	if err != nil {
		return ec, errors.Wrap(err, "read event counts")
	}
	if err := json.Unmarshal(raw, &ec); err != nil {
		return ec, errors.Wrapf(err, "parse event counts %s", path)
	}
	if ec.NTVX <= 0 {
		return ec, errors.Newf("%s: non-positive TVX count", path)
	}
	return ec, nil
}

// ComputeSystematics combines raw yields, efficiencies and the event
// normalization into corrected spectra with statistical and systematic
// uncertainties. The systematic error folds the spread across TPC fit
// models, the TOF extraction methods and the cut-variation trials.
func ComputeSystematics(cfg *config.Config, signalPath, mcCurvesPath, eventsPath, output string, opt SystematicsOptions) error {
	sig, err := spectra.LoadSet(signalPath)
	if err != nil {
		return err
	}
	mc, err := spectra.LoadSet(mcCurvesPath)
	if err != nil {
		return err
	}
	ec, err := readEventCounts(eventsPath)
	if err != nil {
		return err
	}

	var secondaries *spectra.Set
	if opt.SecondariesPath != "" {
		secondaries, err = spectra.LoadSet(opt.SecondariesPath)
		if err != nil {
			return err
		}
	}

	matrix, err := fitmod.ResolveModelMatrix(cfg.Common.TPCModels, fitmod.SupportedTPCModels)
	if err != nil {
		return err
	}
	defModel := fitmod.DefaultTPCModel(cfg.Common.TPCModels)

	nEvents := ec.NTVX / cfg.Norm.EffTVX * cfg.Norm.VertexingEff
	scale := 1 / nEvents

	out := spectra.NewSet()
	for is := 0; is < 2; is++ {
		l := matterLabels[is]

		rawTPC, err := sig.MustGet(fmt.Sprintf("nuclei/hTPConly%s0_%s", l, defModel))
		if err != nil {
			return err
		}
		rawTOF, err := sig.MustGet("nuclei/hRawCounts" + l + "0")
		if err != nil {
			return err
		}
		rawTOFBC, err := sig.MustGet("nuclei/hRawCountsBinCounting" + l + "0")
		if err != nil {
			return err
		}

		effTPC := mustEff(mc, "effTPC"+l)
		effTOF := mustEff(mc, "effTOF"+l)
		if effTPC == nil || effTOF == nil {
			return errors.Newf("systematics: missing efficiencies for %s", l)
		}
		// The per-trial efficiencies are unweighted, so the trial
		// comparison corrects the default with the unweighted family too.
		effTPCFlat := flatEff(mc, "effTPC"+l, effTPC)
		effTOFFlat := flatEff(mc, "effTOF"+l, effTOF)

		// TOF/TPC matching efficiency from the uncorrected default yields.
		matching := rawTOF.Clone("TOFmatching" + l)
		if err := matching.Divide(rawTPC); err != nil {
			return err
		}
		out.Add(matching)

		var frac *spectra.Binned
		if secondaries != nil && is == 0 {
			frac, _ = secondaries.Get("hPrimFracFit" + l)
		}

		// Fit-model spread around the default TPC model.
		systTPCModels := spectra.New("hSystTPC"+l, rawTPC.Edges)
		for ib := range systTPCModels.Vals {
			d := rawTPC.Vals[ib]
			if d == 0 {
				continue
			}
			var devs []float64
			for _, e := range matrix {
				alt, ok := sig.Get(fmt.Sprintf("nuclei/hTPConly%s0_%s", l, e.Name))
				if !ok {
					continue
				}
				devs = append(devs, (alt.Vals[ib]-d)/d)
			}
			systTPCModels.Set(ib, rms(devs), 0)
		}
		out.Add(systTPCModels)

		// TOF extraction spread: template fit vs bin counting.
		systTOFMethods := spectra.New("hSystTOF"+l, rawTOF.Edges)
		for ib := range systTOFMethods.Vals {
			d := rawTOF.Vals[ib]
			if d == 0 {
				continue
			}
			devs := []float64{0, (rawTOFBC.Vals[ib] - d) / d}
			systTOFMethods.Set(ib, rms(devs), 0)
		}
		out.Add(systTOFMethods)

		systCutsTPC := cutSpread(sig, mc,
			func(dir string) string { return fmt.Sprintf("%s/hTPConly%s0_%s", dir, l, defModel) },
			func(i int) string { return fmt.Sprintf("effTPC%s%d", l, i) },
			rawTPC, effTPCFlat, "hSystCutsTPC"+l)
		out.Add(systCutsTPC)
		systCutsTOF := cutSpread(sig, mc,
			func(dir string) string { return fmt.Sprintf("%s/hRawCounts%s0", dir, l) },
			func(i int) string { return fmt.Sprintf("effTOF%s%d", l, i) },
			rawTOF, effTOFFlat, "hSystCutsTOF"+l)
		out.Add(systCutsTOF)

		widen, _ := sig.Get("nuclei/hWidenRangeSyst" + l + "0")

		statTPC, systTPC := corrected(rawTPC, effTPC, frac, "fStatTPC"+l, "fSystTPC"+l,
			func(ib int) float64 {
				return math.Hypot(systTPCModels.Vals[ib], systCutsTPC.Vals[ib])
			})
		statTOF, systTOF := corrected(rawTOF, effTOF, frac, "fStatTOF"+l, "fSystTOF"+l,
			func(ib int) float64 {
				rel := math.Hypot(systTOFMethods.Vals[ib], systCutsTOF.Vals[ib])
				if widen != nil {
					rel = math.Hypot(rel, widen.Vals[ib])
				}
				return rel
			})
		for _, b := range []*spectra.Binned{statTPC, systTPC, statTOF, systTOF} {
			b.Scale(scale, true)
			out.Add(b)
		}
	}

	pubStat := spectra.New("pubStat", pubBins)
	pubSyst := spectra.New("pubSyst", pubBins)
	pubStat.Title = "ALICE pp #sqrt{s} = 13 TeV"
	for i := range pubY {
		pubStat.Set(i, pubY[i], pubEY[i])
		pubSyst.Set(i, pubY[i], pubSY[i])
	}
	out.Add(pubStat)
	out.Add(pubSyst)

	if err := out.SaveFile(output); err != nil {
		return err
	}
	xlog.L.Infow("systematics stage done",
		"species", opt.Species.String(),
		"events", nEvents,
		"default_model", defModel,
		"output", output,
	)
	return nil
}

// mustEff prefers the reweighted efficiency, falling back to the flat
// one.
func mustEff(mc *spectra.Set, name string) *spectra.Binned {
	if eff, ok := mc.Get("W" + name); ok {
		return eff
	}
	eff, ok := mc.Get(name)
	if !ok {
		return nil
	}
	return eff
}

// flatEff is the unweighted default efficiency, the same family as the
// per-trial ones.
func flatEff(mc *spectra.Set, name string, fallback *spectra.Binned) *spectra.Binned {
	if eff, ok := mc.Get(name); ok {
		return eff
	}
	return fallback
}

// cutSpread computes the relative RMS of the efficiency-corrected yields
// across the cut-variation trials, bin by bin. Trials whose deviation
// fails the Barlow check are treated as statistical noise and dropped.
func cutSpread(sig, mc *spectra.Set, rawName func(dir string) string, effName func(i int) string, defRaw, defEff *spectra.Binned, name string) *spectra.Binned {
	out := spectra.New(name, defRaw.Edges)
	for ib := range out.Vals {
		if defEff.Vals[ib] < minEff || defRaw.Vals[ib] == 0 {
			continue
		}
		d := defRaw.Vals[ib] / defEff.Vals[ib]
		sd := defRaw.Errs[ib] / defEff.Vals[ib]
		var devs []float64
		for i := 0; ; i++ {
			raw, ok := sig.Get(rawName(trialDir(i)))
			if !ok {
				break
			}
			eff, ok := mc.Get(effName(i))
			if !ok {
				break
			}
			if eff.Vals[ib] < minEff {
				continue
			}
			y := raw.Vals[ib] / eff.Vals[ib]
			si := raw.Errs[ib] / eff.Vals[ib]
			if !barlowPass(d, sd, y, si) {
				continue
			}
			devs = append(devs, (y-d)/d)
		}
		out.Set(ib, rms(devs), 0)
	}
	return out
}

// barlowPass keeps a trial deviation only when it exceeds the
// uncorrelated part of its statistical uncertainty.
func barlowPass(yDefault, sDefault, yTrial, sTrial float64) bool {
	dev := yTrial - yDefault
	sigma2 := math.Abs(sTrial*sTrial - sDefault*sDefault)
	return dev*dev > sigma2
}

// corrected divides the raw yield by the efficiency and the optional
// primary fraction, producing the statistical and systematic curves.
func corrected(raw, eff, frac *spectra.Binned, statName, systName string, relSyst func(ib int) float64) (*spectra.Binned, *spectra.Binned) {
	statOut := spectra.New(statName, raw.Edges)
	systOut := spectra.New(systName, raw.Edges)
	for ib := range raw.Vals {
		if eff.Vals[ib] < minEff {
			continue
		}
		y := raw.Vals[ib] / eff.Vals[ib]
		ey := raw.Errs[ib] / eff.Vals[ib]
		if frac != nil && frac.Vals[ib] > 0 {
			y *= frac.Vals[ib]
			ey *= frac.Vals[ib]
		}
		statOut.Set(ib, y, ey)
		systOut.Set(ib, y, relSyst(ib)*y)
	}
	return statOut, systOut
}

// rms is the spread of the deviations around zero.
func rms(devs []float64) float64 {
	if len(devs) == 0 {
		return 0
	}
	sq := make([]float64, len(devs))
	for i, d := range devs {
		sq[i] = d * d
	}
	return math.Sqrt(stat.Mean(sq, nil))
}
