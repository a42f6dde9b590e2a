package tasks

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/stat"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/fitmod"
	"github.com/decibelcooper/he3spectra/internal/histio"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/report"
	"github.com/decibelcooper/he3spectra/internal/spectra"
	"github.com/decibelcooper/he3spectra/internal/xlog"
)

// SignalOptions selects the optional parts of the raw-yield extraction.
type SignalOptions struct {
	Species nuclei.Species
	// PlotDir, when set, receives fit snapshot images for the default
	// selection.
	PlotDir string
}

var (
	tofAxis = fitmod.Range{Lo: -0.9, Hi: 1.1}
	tpcAxis = fitmod.Range{Lo: -5, Hi: 5}
	// tpcSpecial trims the left edge for the alternative models at low pT.
	tpcSpecial = fitmod.Range{Lo: -4, Hi: 5}
)

// ExtractSignal fits the TOF mass and TPC n-sigma slices of every
// selection trial in the data archive and records raw yields, bin
// counting results, significances and fit-quality curves.
func ExtractSignal(cfg *config.Config, input, output string, opt SignalOptions) error {
	arch, err := histio.ReadFile(input)
	if err != nil {
		return err
	}

	matrix, err := fitmod.ResolveModelMatrix(cfg.Common.TPCModels, fitmod.SupportedTPCModels)
	if err != nil {
		return err
	}

	set := spectra.NewSet()
	nTrials := 0
	for trial := -1; ; trial++ {
		dir := trialDir(trial)
		if _, ok := arch.Get(sliceName(dir+"/fMTOFsignal", 0)); !ok {
			if trial < 0 {
				return errors.Newf("signal: %s: no TOF histograms in %s", input, dir)
			}
			break
		}
		plotDir := ""
		if trial < 0 {
			plotDir = opt.PlotDir
		}
		if err := extractSignalDir(cfg, arch, set, dir, matrix, opt.Species, plotDir); err != nil {
			return err
		}
		nTrials++
	}

	if err := set.SaveFile(output); err != nil {
		return err
	}
	xlog.L.Infow("signal stage done",
		"species", opt.Species.String(),
		"selections", nTrials,
		"output", output,
	)
	return nil
}

func extractSignalDir(cfg *config.Config, arch *histio.Archive, set *spectra.Set, dir string, matrix []fitmod.ModelEntry, s nuclei.Species, plotDir string) error {
	edges := cfg.Common.PtBins
	nb := len(edges) - 1
	species := s.Names()
	defModel := fitmod.DefaultTPCModel(cfg.Common.TPCModels)

	for is := 0; is < 2; is++ {
		l := matterLabels[is]
		raw := spectra.New(dir+"/hRawCounts"+l+"0", edges)
		rawBC := spectra.New(dir+"/hRawCountsBinCounting"+l+"0", edges)
		sig := spectra.New(dir+"/hSignalGausExpGaus"+l+"0", edges)
		signif := spectra.New(dir+"/hSignificance"+l+"0", edges)
		chi := spectra.New(dir+"/hChiSquare"+l+"0", edges)
		chiTPC := spectra.New(dir+"/hChiSquareTPC"+l+"0", edges)
		nPar := spectra.New(dir+"/hNFloatPars"+l+"0", edges)
		pValue := spectra.New(dir+"/hPValue"+l+"0", edges)
		widen := spectra.New(dir+"/hWidenRangeSyst"+l+"0", edges)
		shift := spectra.New(dir+"/hShiftRangeSyst"+l+"0", edges)
		tpcOnly := make([]*spectra.Binned, len(matrix))
		nParTPC := make([]*spectra.Binned, len(matrix))
		for it, e := range matrix {
			tpcOnly[it] = spectra.New(fmt.Sprintf("%s/hTPConly%s0_%s", dir, l, e.Name), edges)
			nParTPC[it] = spectra.New(fmt.Sprintf("%s/hNFloatParsTPC%s0_%s", dir, l, e.Name), edges)
		}

		for ib := 0; ib < nb; ib++ {
			center := 0.5 * (edges[ib] + edges[ib+1])
			if center < cfg.Common.PtRange[0] || center > cfg.Common.PtRange[1] {
				continue
			}
			if center > cfg.Common.CentPtLimits[0] {
				continue
			}

			dat, err := arch.MustGet(sliceName(dir+"/f"+l+"TOFsignal", ib))
			if err != nil {
				return err
			}

			fSig := fitmod.NewTOFSignalModel(tofAxis)
			fSig.Tau0.SetVal(-0.3)
			if err := fSig.Fit(dat); err != nil {
				return err
			}
			nPar.Set(ib, float64(fSig.NFloatPars()), 0)
			pValue.Set(ib, fSig.PValue, 0)
			sig.Set(ib, fSig.SigCounts.Val, fSig.SigCounts.Err)
			raw.Set(ib, fSig.SigCounts.Val, fSig.SigCounts.Err)

			if plotDir != "" && center > cfg.Common.TOFMinPt {
				name := filepath.Join(plotDir, species[is], "GausExp", fmt.Sprintf("d0_%d.png", ib))
				title := fmt.Sprintf("%.1f <= pT < %.1f GeV/c", edges[ib], edges[ib+1])
				if err := report.SaveFitSnapshot(name, title, dat, fSig, []fitmod.Range{tofAxis}); err != nil {
					return err
				}
			}

			// Sideband fit and bin counting around the fitted peak.
			fBkg := fitmod.NewTOFSidebandModel(tofAxis)
			left, right := countingWindow(dat, fSig.Mu.Val, fSig.Sigma.Val, 3)
			leftSide := fitmod.Range{Lo: tofAxis.Lo, Hi: left}
			rightSide := fitmod.Range{Lo: right, Hi: tofAxis.Hi}
			if err := fBkg.Fit(dat, leftSide, rightSide); err != nil {
				return err
			}
			if plotDir != "" && center > cfg.Common.TOFMinPt {
				name := filepath.Join(plotDir, species[is], "Sidebands", fmt.Sprintf("d0_%d.png", ib))
				title := fmt.Sprintf("%.1f <= pT < %.1f GeV/c", edges[ib], edges[ib+1])
				if err := report.SaveFitSnapshot(name, title, dat, fBkg, []fitmod.Range{leftSide, rightSide}); err != nil {
					return err
				}
			}

			var residuals []float64
			bkgInt := 0.0
			if ib > 8 {
				bkgInt = fBkg.BackgroundIntegral(fitmod.Range{Lo: left, Hi: right}, []fitmod.Range{tofAxis})
				chi.Set(ib, fBkg.Chi2NDF, 0)
			}
			tot := integralRange(dat, left, right)
			sigCount := tot - bkgInt
			rawBC.Set(ib, sigCount, math.Sqrt(tot+bkgInt))
			if tot > 0 {
				signif.Set(ib, sigCount/math.Sqrt(tot), 0)
			}
			residuals = append(residuals, sigCount)
			if raw.Vals[ib] > 0 {
				widen.Set(ib, stat.PopStdDev(residuals, nil)/raw.Vals[ib], 0)
			}
			shift.Set(ib, 0, 0)

			if center < cfg.Common.TPCMaxPt {
				tpcDat, err := arch.MustGet(sliceName(dir+"/f"+l+"TPCcounts", ib))
				if err != nil {
					return err
				}
				for it, e := range matrix {
					m, err := fitmod.NewTPCModel(e.Name, tpcAxis)
					if err != nil {
						return err
					}
					fitRange := tpcAxis
					if it > 0 && center < 1.8 {
						fitRange = tpcSpecial
					}
					if err := m.Fit(tpcDat, fitRange); err != nil {
						return err
					}
					tpcOnly[it].Set(ib, m.SigCounts.Val, m.SigCounts.Err)
					nParTPC[it].Set(ib, float64(m.NFloatPars()), 0)
					if e.Name == defModel {
						chiTPC.Set(ib, m.Chi2NDF, 0)
					}
					if plotDir != "" {
						name := filepath.Join(plotDir, species[is], "TPConly", fmt.Sprintf("d0_%d_%s.png", ib, e.Name))
						title := fmt.Sprintf("%.1f <= pT < %.1f GeV/c", edges[ib], edges[ib+1])
						if err := report.SaveFitSnapshot(name, title, tpcDat, m, []fitmod.Range{fitRange}); err != nil {
							return err
						}
					}
				}
			}
		}

		for _, b := range []*spectra.Binned{raw, rawBC, sig, signif, chi, chiTPC, nPar, pValue, widen, shift} {
			set.Add(b)
		}
		for it := range matrix {
			set.Add(tpcOnly[it])
			set.Add(nParTPC[it])
		}
	}
	return nil
}

// countingWindow snaps the [mu-n*sigma, mu+(n+2)*sigma] window onto the
// histogram's bin edges.
func countingWindow(h *hbook.H1D, mu, sigma, n float64) (lo, hi float64) {
	lo = h.XMin()
	hi = h.XMax()
	want := mu - n*sigma
	for i := range h.Binning.Bins {
		b := &h.Binning.Bins[i]
		if b.XMin() <= want && want < b.XMax() {
			lo = b.XMin()
		}
		want2 := mu + (n+2)*sigma
		if b.XMin() <= want2 && want2 < b.XMax() {
			hi = b.XMax()
		}
	}
	return lo, hi
}

// integralRange sums the bin contents with centers inside [lo, hi].
func integralRange(h *hbook.H1D, lo, hi float64) float64 {
	sum := 0.0
	for i := range h.Binning.Bins {
		b := &h.Binning.Bins[i]
		if m := b.XMid(); m >= lo && m <= hi {
			sum += b.SumW()
		}
	}
	return sum
}
