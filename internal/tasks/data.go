package tasks

import (
	"math"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/histio"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/tracktab"
	"github.com/decibelcooper/he3spectra/internal/xlog"
)

// DataOptions selects the optional parts of the data stage.
type DataOptions struct {
	Species nuclei.Species
	Trials  bool
	Skim    bool
}

// dataBooks holds one trial's histogram families, indexed matter/anti.
type dataBooks struct {
	tpc [2]*ptSliced
	tof [2]*ptSliced
}

// AnalyseData streams the data track table and fills the TPC n-sigma,
// TOF mass and DCA histograms of the default selection and, optionally,
// of every cut trial. With Skim enabled it also writes the loose
// preselection back out as a track table.
func AnalyseData(cfg *config.Config, input, output string, opt DataOptions) error {
	s := opt.Species
	edges := cfg.Common.PtBins
	base := nuclei.BaseSelection(s)
	primary := nuclei.PrimarySelection()
	nsigmaTOF := cfg.NSigmaTOF(s)

	books := dataBooks{}
	var dcaXY, dcaZ, dcaXYSecondary [2]*ptSliced
	for i := 0; i < 2; i++ {
		books.tpc[i] = newPtSliced(edges, 100, -5, 5)
		books.tof[i] = newPtSliced(edges, 100, -0.9, 1.1)
		dcaXY[i] = newPtSliced(edges, 100, -0.2, 0.2)
		dcaZ[i] = newPtSliced(edges, 100, -0.2, 0.2)
		dcaXYSecondary[i] = newPtSliced(edges, 100, -0.2, 0.2)
	}

	var trials []nuclei.Trial
	var trialBooks []dataBooks
	if opt.Trials {
		trials = cfg.CutGrid().Trials()
		trialBooks = make([]dataBooks, len(trials))
		for it := range trials {
			for i := 0; i < 2; i++ {
				trialBooks[it].tpc[i] = newPtSliced(edges, 100, -5, 5)
				trialBooks[it].tof[i] = newPtSliced(edges, 100, -0.9, 1.1)
			}
		}
	}

	var skim *tracktab.Writer
	if opt.Skim {
		var err error
		skim, err = tracktab.Create(cfg.SkimmedTable())
		if err != nil {
			return err
		}
		defer skim.Close()
	}

	nTracks, nBase := 0, 0
	err := tracktab.Each(input, func(t *nuclei.Track) error {
		nTracks++
		o := nuclei.Derive(t, s)
		if !base.Pass(t, o) {
			return nil
		}
		nBase++
		im := matterIndex(o.Matter)

		if skim != nil && nuclei.SkimPass(t, o) {
			if err := skim.Write(t); err != nil {
				return err
			}
		}

		goodMass := o.GoodTOFMass(s)
		if primary.Pass(t, o) {
			if o.NSigmaTPC > -0.5 && o.NSigmaTPC < 3 && goodMass {
				dcaXY[im].Fill(o.Pt, t.DCAxy)
				dcaZ[im].Fill(o.Pt, t.DCAz)
			}
			if goodMass {
				books.tpc[im].Fill(o.Pt, o.NSigmaTPC)
			}
			if math.Abs(o.NSigmaTPC) < nsigmaTOF && o.HasTOF {
				books.tof[im].Fill(o.Pt, o.DeltaMass)
			}
		}
		if nuclei.SecondaryPass(t, o) && o.NSigmaTPC > -0.5 && o.NSigmaTPC < 3 && goodMass {
			dcaXYSecondary[im].Fill(o.Pt, t.DCAxy)
		}

		for it, tr := range trials {
			if !tr.Pass(t, o) || math.Abs(t.DCAxy) >= 0.2 {
				continue
			}
			if goodMass {
				trialBooks[it].tpc[im].Fill(o.Pt, o.NSigmaTPC)
			}
			if math.Abs(o.NSigmaTPC) < nsigmaTOF && o.HasTOF {
				trialBooks[it].tof[im].Fill(o.Pt, o.DeltaMass)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	arch := histio.New()
	for i := 0; i < 2; i++ {
		l := matterLabels[i]
		books.tpc[i].put(arch, trialDir(-1)+"/f"+l+"TPCcounts")
		books.tof[i].put(arch, trialDir(-1)+"/f"+l+"TOFsignal")
		dcaXY[i].put(arch, trialDir(-1)+"/hDCAxy"+l)
		dcaZ[i].put(arch, trialDir(-1)+"/hDCAz"+l)
		dcaXYSecondary[i].put(arch, trialDir(-1)+"/hDCAxySecondary"+l)
	}
	for it := range trials {
		for i := 0; i < 2; i++ {
			l := matterLabels[i]
			trialBooks[it].tpc[i].put(arch, trialDir(it)+"/f"+l+"TPCcounts")
			trialBooks[it].tof[i].put(arch, trialDir(it)+"/f"+l+"TOFsignal")
		}
	}
	if err := arch.WriteFile(output); err != nil {
		return err
	}

	xlog.L.Infow("data stage done",
		"species", s.String(),
		"tracks", nTracks,
		"selected", nBase,
		"trials", len(trials),
		"output", output,
	)
	return nil
}
