package tasks

import (
	"math"
	"path/filepath"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/report"
	"github.com/decibelcooper/he3spectra/internal/spectra"
	"github.com/decibelcooper/he3spectra/internal/xlog"
)

// ReportOptions selects the inputs of the report stage.
type ReportOptions struct {
	Species nuclei.Species
}

// reportBuilder accumulates the summary sections and their images.
type reportBuilder struct {
	outDir   string
	alpha    float64
	sections []report.Section
}

// saveImage renders the curves and returns the relative image path, or
// "" when nothing could be drawn.
func (rb *reportBuilder) saveImage(file, title, yLabel string, logY bool, curves []*spectra.Binned) string {
	if len(curves) == 0 {
		return ""
	}
	path := filepath.Join(rb.outDir, "img", file)
	if err := report.SaveCurves(path, title, "pT (GeV/c)", yLabel, logY, curves...); err != nil {
		xlog.L.Warnw("report image skipped", "file", file, "err", err)
		return ""
	}
	return filepath.Join("img", file)
}

func (rb *reportBuilder) add(sec report.Section) {
	rb.sections = append(rb.sections, sec)
}

// missingSection is the badge for a stage whose output file is absent.
func (rb *reportBuilder) missingSection(title string) report.Section {
	sec := report.Section{Title: title}
	sec.Status, sec.Class = report.Status(false, false, 0, rb.alpha)
	return sec
}

// pick clones the named curves that exist in the set, titling each.
func pick(set *spectra.Set, names ...string) []*spectra.Binned {
	var out []*spectra.Binned
	for _, name := range names {
		if c, ok := set.Get(name); ok {
			cc := c.Clone(name)
			if cc.Title == "" {
				cc.Title = name
			}
			out = append(out, cc)
		}
	}
	return out
}

// BuildReport renders the summary page of a pass: fit quality, raw
// yields, efficiencies and the corrected spectra compared with the
// published reference. Missing stage outputs degrade to MISSING badges
// instead of failing the build.
func BuildReport(cfg *config.Config, outDir string, opt ReportOptions) error {
	sig := loadOptional(cfg.SignalOutput())
	mc := loadOptional(cfg.MCCurves(opt.Species))
	syst := loadOptional(cfg.SystematicsOutput())
	secondaries := loadOptional(cfg.SecondariesOutput())
	trigger := loadOptional(cfg.TriggerEffOutput())

	rb := &reportBuilder{outDir: outDir, alpha: cfg.Report.FitAlpha}

	// TOF raw yields, judged on the template-fit p-values.
	if sig == nil {
		rb.add(rb.missingSection("TOF raw yields"))
	} else {
		sec := report.Section{Title: "TOF raw yields"}
		pMin, hasMetrics := fitPValueFloor(sig)
		sec.Status, sec.Class = report.Status(true, hasMetrics, pMin, rb.alpha)
		if img := rb.saveImage("tof_rawcounts.png", "TOF raw counts", "counts", false,
			pick(sig, "nuclei/hRawCountsM0", "nuclei/hRawCountsA0")); img != "" {
			sec.Images = append(sec.Images, img)
		}
		if img := rb.saveImage("significance.png", "Bin-counting significance", "S/sqrt(S+B)", false,
			pick(sig, "nuclei/hSignificanceM0", "nuclei/hSignificanceA0")); img != "" {
			sec.Images = append(sec.Images, img)
		}
		rb.add(sec)
	}

	// TPC raw yields across the fit models.
	if sig == nil {
		rb.add(rb.missingSection("TPC raw yields"))
	} else {
		sec := report.Section{Title: "TPC raw yields"}
		var names []string
		for _, l := range []string{"M", "A"} {
			for _, m := range cfg.Common.TPCModels {
				names = append(names, "nuclei/hTPConly"+l+"0_"+m)
			}
		}
		curves := pick(sig, names...)
		sec.Status, sec.Class = report.Status(len(curves) > 0, false, 0, rb.alpha)
		if img := rb.saveImage("tpc_rawcounts.png", "TPC raw counts", "counts", false, curves); img != "" {
			sec.Images = append(sec.Images, img)
		}
		rb.add(sec)
	}

	// Efficiencies from MC.
	if mc == nil {
		rb.add(rb.missingSection("Efficiency x acceptance"))
	} else {
		sec := report.Section{Title: "Efficiency x acceptance"}
		curves := pick(mc, "effTPCM", "effTPCA", "effTOFM", "effTOFA")
		sec.Status, sec.Class = report.Status(len(curves) > 0, true, 1, rb.alpha)
		if img := rb.saveImage("efficiency.png", "Efficiency x acceptance", "eff", false, curves); img != "" {
			sec.Images = append(sec.Images, img)
		}
		rb.add(sec)
	}

	// pT resolution from MC.
	if mc == nil {
		rb.add(rb.missingSection("pT resolution"))
	} else {
		sec := report.Section{Title: "pT resolution"}
		curves := pick(mc, "hDeltaPt", "hDeltaPtCorr")
		sec.Status, sec.Class = report.Status(len(curves) > 0, true, 1, rb.alpha)
		if img := rb.saveImage("pt_resolution.png", "pT resolution", "<pT - pT gen> (GeV/c)", false, curves); img != "" {
			sec.Images = append(sec.Images, img)
		}
		rb.add(sec)
	}

	// Corrected spectra against the published reference.
	if syst == nil {
		rb.add(rb.missingSection("Corrected spectra"))
	} else {
		sec := report.Section{Title: "Corrected spectra"}
		curves := pick(syst, "fStatTOFA", "fStatTPCA", "pubStat")
		sec.Status, sec.Class = report.Status(len(curves) > 0, true, 1, rb.alpha)
		if img := rb.saveImage("spectra.png", "Corrected spectra", "1/N d2N/(dpT dy)", true, curves); img != "" {
			sec.Images = append(sec.Images, img)
		}
		rb.add(sec)
	}

	// Primary fraction.
	if secondaries == nil {
		rb.add(rb.missingSection("Primary fraction"))
	} else {
		sec := report.Section{Title: "Primary fraction"}
		curves := pick(secondaries, "hPrimFracM", "hPrimFracFitM")
		sec.Status, sec.Class = report.Status(len(curves) > 0, true, 1, rb.alpha)
		if img := rb.saveImage("primary_fraction.png", "Primary fraction", "fraction", false, curves); img != "" {
			sec.Images = append(sec.Images, img)
		}
		rb.add(sec)
	}

	// Trigger efficiency.
	if trigger == nil {
		rb.add(rb.missingSection("Trigger efficiency"))
	} else {
		sec := report.Section{Title: "Trigger efficiency"}
		curves := pick(trigger, "triggerEffM", "triggerEffA")
		sec.Status, sec.Class = report.Status(len(curves) > 0, true, 1, rb.alpha)
		if img := rb.saveImage("trigger_eff.png", "Trigger efficiency", "eff", false, curves); img != "" {
			sec.Images = append(sec.Images, img)
		}
		rb.add(sec)
	}

	page := report.Page{
		Title:    opt.Species.String() + " " + cfg.Common.Period + " " + cfg.Common.RecoPass,
		Sections: rb.sections,
	}
	if err := report.WriteIndex(filepath.Join(outDir, "index.html"), page); err != nil {
		return err
	}
	xlog.L.Infow("report built",
		"species", opt.Species.String(),
		"dir", outDir,
		"sections", len(rb.sections),
	)
	return nil
}

// fitPValueFloor is the worst TOF fit p-value across filled bins.
func fitPValueFloor(sig *spectra.Set) (pMin float64, hasMetrics bool) {
	pMin = math.Inf(1)
	for _, l := range []string{"M", "A"} {
		p, ok := sig.Get("nuclei/hPValue" + l + "0")
		if !ok {
			continue
		}
		raw, _ := sig.Get("nuclei/hRawCounts" + l + "0")
		for ib, v := range p.Vals {
			if raw != nil && raw.Vals[ib] == 0 {
				continue
			}
			if v > 0 {
				hasMetrics = true
				pMin = math.Min(pMin, v)
			}
		}
	}
	return pMin, hasMetrics
}

func loadOptional(path string) *spectra.Set {
	set, err := spectra.LoadSet(path)
	if err != nil {
		xlog.L.Debugw("report input unavailable", "path", path, "err", err)
		return nil
	}
	return set
}
