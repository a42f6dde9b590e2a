package nuclei

import "math"

// Selection is a track-quality cut set applied after column derivation.
type Selection struct {
	MinTPCnCls     int
	MinITScls      int
	MaxAbsEta      float64
	MaxAbsDCAxy    float64
	MaxNSigmaDCAz  float64 // 0 disables the cut
	MaxAbsDCAz     float64 // 0 disables the cut
	MaxAbsRapidity float64 // 0 disables the cut
	PtMin, PtMax   float64 // 0,0 disables the window
}

// Pass applies the selection to a track and its derived observables.
func (sel Selection) Pass(t *Track, o Observables) bool {
	if t.TPCnCls < sel.MinTPCnCls || t.NITSClusters() < sel.MinITScls {
		return false
	}
	if sel.MaxAbsEta > 0 && math.Abs(t.Eta) >= sel.MaxAbsEta {
		return false
	}
	if sel.MaxAbsDCAxy > 0 && math.Abs(t.DCAxy) >= sel.MaxAbsDCAxy {
		return false
	}
	if sel.MaxNSigmaDCAz > 0 && math.Abs(o.NSigmaDCAz) >= sel.MaxNSigmaDCAz {
		return false
	}
	if sel.MaxAbsDCAz > 0 && math.Abs(t.DCAz) >= sel.MaxAbsDCAz {
		return false
	}
	if sel.MaxAbsRapidity > 0 && math.Abs(o.Rapidity) >= sel.MaxAbsRapidity {
		return false
	}
	if sel.PtMax > 0 && (o.Pt <= sel.PtMin || o.Pt >= sel.PtMax) {
		return false
	}
	return true
}

// BaseSelection is the loose track-quality cut shared by every data stage.
func BaseSelection(s Species) Selection {
	ptMin := 0.8
	if s == He4 {
		ptMin = 0.5
	}
	return Selection{
		MinTPCnCls:  110,
		MinITScls:   5,
		MaxAbsEta:   0.9,
		MaxAbsDCAxy: 0.7,
		PtMin:       ptMin,
		PtMax:       9.0,
	}
}

// PrimarySelection is the tight cut used for the signal histograms.
func PrimarySelection() Selection {
	return Selection{
		MinTPCnCls:    121,
		MinITScls:     6,
		MaxNSigmaDCAz: 7,
		MaxAbsDCAxy:   0.2,
	}
}

// SecondaryPass inverts the DCAz part of the primary selection to tag the
// secondary-enriched sample.
func SecondaryPass(t *Track, o Observables) bool {
	return t.TPCnCls > 120 && t.NITSClusters() >= 6 &&
		math.Abs(o.NSigmaDCAz) > 7 && math.Abs(t.DCAxy) < 0.2
}

// SkimPass is the loose preselection written out to the skimmed table.
func SkimPass(t *Track, o Observables) bool {
	return math.Abs(o.NSigmaDCAz) < 8 && math.Abs(t.DCAxy) < 0.2 &&
		math.Abs(o.NSigmaTPC) < 5 && o.Pt > 0.8 && o.Pt < 7.0
}

// MCRecoSelection is the reconstructed-level cut of the efficiency numerator.
func MCRecoSelection() Selection {
	return Selection{
		MinTPCnCls:     111,
		MinITScls:      5,
		MaxAbsEta:      0.9,
		MaxAbsRapidity: 0.5,
	}
}

// MCTrackingSelection is the tracking-quality cut applied on top of
// MCRecoSelection for the efficiency numerator.
func MCTrackingSelection() Selection {
	return Selection{
		MinTPCnCls: 121,
		MinITScls:  6,
		MaxAbsDCAz: 0.7,
	}
}

// CutGrid enumerates the cut-variation trials of the systematic scan.
type CutGrid struct {
	NSigmaDCAz []float64
	TPCnCls    []int
	ITScls     []int
	NSigmaTPC  []float64
}

// DefaultCutGrid matches the nominal trial table.
func DefaultCutGrid() CutGrid {
	return CutGrid{
		NSigmaDCAz: []float64{6, 7, 8},
		TPCnCls:    []int{110, 120, 130},
		ITScls:     []int{5, 6, 7},
		NSigmaTPC:  []float64{3, 4, 5},
	}
}

// Trial is one point of the cut grid.
type Trial struct {
	Index      int
	NSigmaDCAz float64
	TPCnCls    int
	ITScls     int
}

// Trials enumerates the grid in DCAz-major order, matching the trial
// indices used in histogram names.
func (g CutGrid) Trials() []Trial {
	var out []Trial
	i := 0
	for _, dcaz := range g.NSigmaDCAz {
		for _, tpc := range g.TPCnCls {
			for _, its := range g.ITScls {
				out = append(out, Trial{Index: i, NSigmaDCAz: dcaz, TPCnCls: tpc, ITScls: its})
				i++
			}
		}
	}
	return out
}

// Pass applies the trial's varied quality cuts.
func (tr Trial) Pass(t *Track, o Observables) bool {
	return math.Abs(o.NSigmaDCAz) < tr.NSigmaDCAz &&
		t.TPCnCls > tr.TPCnCls && t.NITSClusters() >= tr.ITScls
}
