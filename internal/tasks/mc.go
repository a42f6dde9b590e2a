package tasks

import (
	"fmt"
	"math"

	"go-hep.org/x/hep/fit"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/optimize"

	"github.com/decibelcooper/he3spectra/internal/config"
	"github.com/decibelcooper/he3spectra/internal/histio"
	"github.com/decibelcooper/he3spectra/internal/nuclei"
	"github.com/decibelcooper/he3spectra/internal/spectra"
	"github.com/decibelcooper/he3spectra/internal/tracktab"
	"github.com/decibelcooper/he3spectra/internal/xlog"
)

// MCOptions selects the optional parts of the MC stage.
type MCOptions struct {
	Species nuclei.Species
	Trials  bool
}

// ptWeight reshapes the flat generated spectrum onto the measured one.
func ptWeight(genPt float64) float64 {
	return (5.04194 / 1.3645054) * genPt * math.Exp(-genPt*1.35934)
}

// profile accumulates a mean per pT bin.
type profile struct {
	edges     []float64
	sum, sum2 []float64
	n         []float64
}

func newProfile(edges []float64) *profile {
	nb := len(edges) - 1
	return &profile{
		edges: edges,
		sum:   make([]float64, nb),
		sum2:  make([]float64, nb),
		n:     make([]float64, nb),
	}
}

func (p *profile) Fill(pt, v float64) {
	i := findBin(p.edges, pt)
	if i < 0 {
		return
	}
	p.sum[i] += v
	p.sum2[i] += v * v
	p.n[i]++
}

// curve converts the profile into a mean curve with errors on the mean.
func (p *profile) curve(name string) *spectra.Binned {
	out := spectra.New(name, p.edges)
	for i := range p.n {
		if p.n[i] == 0 {
			continue
		}
		mean := p.sum[i] / p.n[i]
		variance := math.Max(0, p.sum2[i]/p.n[i]-mean*mean)
		out.Set(i, mean, math.Sqrt(variance/p.n[i]))
	}
	return out
}

// mcCounters holds one trial's reco histograms, indexed matter/anti.
type mcCounters struct {
	tpc, tof   [2]*hbook.H1D
	tpcW, tofW [2]*hbook.H1D
}

func newMCCounters(edges []float64) *mcCounters {
	c := &mcCounters{}
	for i := 0; i < 2; i++ {
		c.tpc[i] = hbook.NewH1DFromEdges(edges)
		c.tof[i] = hbook.NewH1DFromEdges(edges)
		c.tpcW[i] = hbook.NewH1DFromEdges(edges)
		c.tofW[i] = hbook.NewH1DFromEdges(edges)
	}
	return c
}

// AnalyseMC streams the MC track table and produces the efficiency
// curves, the pT resolution profiles and the average momentum-correction
// fit of the species under study.
func AnalyseMC(cfg *config.Config, input, histOutput, curveOutput string, opt MCOptions) error {
	s := opt.Species
	edges := cfg.Common.PtBins
	recoSel := nuclei.MCRecoSelection()
	trackingSel := nuclei.MCTrackingSelection()

	var gen, genW [2]*hbook.H1D
	var dcaXYPrimary [2]*ptSliced
	for i := 0; i < 2; i++ {
		gen[i] = hbook.NewH1DFromEdges(edges)
		genW[i] = hbook.NewH1DFromEdges(edges)
		dcaXYPrimary[i] = newPtSliced(edges, 100, -0.2, 0.2)
	}
	counters := newMCCounters(edges)

	var trials []nuclei.Trial
	var trialCounters []*mcCounters
	if opt.Trials {
		trials = cfg.CutGrid().Trials()
		for range trials {
			trialCounters = append(trialCounters, newMCCounters(edges))
		}
	}

	uniform := uniformEdges(0, 5, 50)
	deltaPtUncorr := newProfile(uniform)
	deltaPtCorr := newProfile(uniform)

	nTarget := 0
	err := tracktab.Each(input, func(t *nuclei.Track) error {
		if t.PDGCode != s.PDG() && t.PDGCode != -s.PDG() {
			return nil
		}
		nTarget++
		w := ptWeight(t.GenPt)

		if t.IsPrimary() && math.Abs(nuclei.GenRapidity(t, s)) < 0.5 {
			ig := matterIndex(t.PDGCode > 0)
			gen[ig].Fill(t.GenPt, 1)
			genW[ig].Fill(t.GenPt, w)
		}

		if !t.IsReconstructed() || !t.IsPrimary() {
			return nil
		}
		o := nuclei.Derive(t, s)
		if !recoSel.Pass(t, o) {
			return nil
		}
		im := matterIndex(o.Matter)

		deltaPtUncorr.Fill(o.PtUncorr, o.PtUncorr-t.GenPt)
		deltaPtCorr.Fill(o.Pt, o.Pt-t.GenPt)
		dcaXYPrimary[im].Fill(o.Pt, t.DCAxy)

		if trackingSel.Pass(t, o) {
			counters.tpc[im].Fill(o.Pt, 1)
			counters.tpcW[im].Fill(o.Pt, w)
			if o.HasTOF {
				counters.tof[im].Fill(o.Pt, 1)
				counters.tofW[im].Fill(o.Pt, w)
			}
		}

		for it, tr := range trials {
			if !tr.Pass(t, o) {
				continue
			}
			c := trialCounters[it]
			c.tpc[im].Fill(o.Pt, 1)
			c.tpcW[im].Fill(o.Pt, w)
			if o.HasTOF {
				c.tof[im].Fill(o.Pt, 1)
				c.tofW[im].Fill(o.Pt, w)
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
		arch.Put("nuclei/gen"+l, gen[i])
		arch.Put("nuclei/gen"+l+"W", genW[i])
		arch.Put("nuclei/TPC"+l, counters.tpc[i])
		arch.Put("nuclei/TOF"+l, counters.tof[i])
		arch.Put("nuclei/TPC"+l+"W", counters.tpcW[i])
		arch.Put("nuclei/TOF"+l+"W", counters.tofW[i])
		dcaXYPrimary[i].put(arch, "nuclei/hDCAxyPrimary"+l)
	}
	for it := range trials {
		c := trialCounters[it]
		for i := 0; i < 2; i++ {
			l := matterLabels[i]
			arch.Put(trialDir(it)+"/TPC"+l, c.tpc[i])
			arch.Put(trialDir(it)+"/TOF"+l, c.tof[i])
			arch.Put(trialDir(it)+"/TPC"+l+"W", c.tpcW[i])
			arch.Put(trialDir(it)+"/TOF"+l+"W", c.tofW[i])
		}
	}
	if err := arch.WriteFile(histOutput); err != nil {
		return err
	}

	set := spectra.NewSet()
	if err := addEfficiencies(set, "", gen, counters, edges); err != nil {
		return err
	}
	if err := addEfficiencies(set, "W", genW, counters, edges); err != nil {
		return err
	}
	for it := range trials {
		suffix := fmt.Sprintf("%d", it)
		if err := addTrialEfficiencies(set, suffix, gen, trialCounters[it], edges); err != nil {
			return err
		}
	}
	set.Add(deltaPtUncorr.curve("hDeltaPt"))
	set.Add(deltaPtCorr.curve("hDeltaPtCorr"))
	if fitCurve, err := fitMomentumCorrection(deltaPtUncorr); err == nil {
		set.Add(fitCurve)
	} else {
		xlog.L.Warnw("momentum correction fit failed", "err", err)
	}
	if err := set.SaveFile(curveOutput); err != nil {
		return err
	}

	xlog.L.Infow("mc stage done",
		"species", s.String(),
		"targets", nTarget,
		"trials", len(trials),
		"hists", histOutput,
		"curves", curveOutput,
	)
	return nil
}

// addEfficiencies appends the TPC and TOF efficiencies of the default
// selection, using the weighted histograms when tag is "W".
func addEfficiencies(set *spectra.Set, tag string, gen [2]*hbook.H1D, c *mcCounters, edges []float64) error {
	tpc, tof := c.tpc, c.tof
	if tag == "W" {
		tpc, tof = c.tpcW, c.tofW
	}
	for i := 0; i < 2; i++ {
		l := matterLabels[i]
		effTPC, err := spectra.Efficiency(tag+"effTPC"+l, binnedFromH1D("", tpc[i], edges), binnedFromH1D("", gen[i], edges))
		if err != nil {
			return err
		}
		effTOF, err := spectra.Efficiency(tag+"effTOF"+l, binnedFromH1D("", tof[i], edges), binnedFromH1D("", gen[i], edges))
		if err != nil {
			return err
		}
		set.Add(effTPC)
		set.Add(effTOF)
	}
	return nil
}

// addTrialEfficiencies appends per-trial efficiencies plus the TOF/TPC
// matching ratio.
func addTrialEfficiencies(set *spectra.Set, suffix string, gen [2]*hbook.H1D, c *mcCounters, edges []float64) error {
	for i := 0; i < 2; i++ {
		l := matterLabels[i]
		effTPC, err := spectra.Efficiency("effTPC"+l+suffix, binnedFromH1D("", c.tpc[i], edges), binnedFromH1D("", gen[i], edges))
		if err != nil {
			return err
		}
		effTOF, err := spectra.Efficiency("effTOF"+l+suffix, binnedFromH1D("", c.tof[i], edges), binnedFromH1D("", gen[i], edges))
		if err != nil {
			return err
		}
		matching := effTOF.Clone("matchingTOF" + l + suffix)
		if err := matching.Divide(effTPC); err != nil {
			return err
		}
		set.Add(effTPC)
		set.Add(effTOF)
		set.Add(matching)
	}
	return nil
}

// fitMomentumCorrection fits the mean reconstructed-minus-generated pT
// with an exponential energy-loss shape and stores the parameters as a
// three-entry curve.
func fitMomentumCorrection(p *profile) (*spectra.Binned, error) {
	var xs, ys []float64
	for i := range p.n {
		if p.n[i] < 10 {
			continue
		}
		xs = append(xs, 0.5*(p.edges[i]+p.edges[i+1]))
		ys = append(ys, p.sum[i]/p.n[i])
	}
	res, err := fit.Curve1D(
		fit.Func1D{
			F: func(x float64, ps []float64) float64 {
				return -(ps[0] + ps[1]*math.Exp(ps[2]*x))
			},
			X:  xs,
			Y:  ys,
			Ps: []float64{0.03, 1.0, -1.5},
		},
		nil, &optimize.NelderMead{},
	)
	if err != nil {
		return nil, err
	}
	out := spectra.New("hMomCorrFit", []float64{0, 1, 2, 3})
	for i, v := range res.X {
		out.Set(i, v, 0)
	}
	return out, nil
}

// binnedFromH1D copies bin contents and errors of h into a curve on the
// same edges.
func binnedFromH1D(name string, h *hbook.H1D, edges []float64) *spectra.Binned {
	out := spectra.New(name, edges)
	for i := range h.Binning.Bins {
		b := &h.Binning.Bins[i]
		out.Set(i, b.SumW(), math.Sqrt(b.SumW2()))
	}
	return out
}

func uniformEdges(lo, hi float64, n int) []float64 {
	out := make([]float64, n+1)
	w := (hi - lo) / float64(n)
	for i := range out {
		out[i] = lo + float64(i)*w
	}
	return out
}
