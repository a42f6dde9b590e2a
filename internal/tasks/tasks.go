// Package tasks implements the stages of the analysis chain: histogram
// production from data and MC, raw-yield extraction, secondaries,
// systematics, trigger efficiency and checkpointing.
package tasks

import (
	"fmt"
	"sort"

	"go-hep.org/x/hep/hbook"

	"github.com/decibelcooper/he3spectra/internal/histio"
)

// matterLabels tags histogram names: index 0 is matter (M), 1 is
// antimatter (A).
var matterLabels = [2]string{"M", "A"}

func matterIndex(matter bool) int {
	if matter {
		return 0
	}
	return 1
}

// ptSliced is a per-pT-bin family of fixed-binning histograms, the slice
// representation of the 2D (pT, x) histograms of the analysis.
type ptSliced struct {
	edges []float64
	hists []*hbook.H1D
}

func newPtSliced(edges []float64, nx int, lo, hi float64) *ptSliced {
	s := &ptSliced{edges: edges}
	for i := 0; i < len(edges)-1; i++ {
		s.hists = append(s.hists, hbook.NewH1D(nx, lo, hi))
	}
	return s
}

// Fill adds x to the slice containing pt, ignoring out-of-range pt.
func (s *ptSliced) Fill(pt, x float64) {
	i := findBin(s.edges, pt)
	if i < 0 {
		return
	}
	s.hists[i].Fill(x, 1)
}

// put stores all slices of the family in the archive, one entry per
// pT bin.
func (s *ptSliced) put(arch *histio.Archive, base string) {
	for i, h := range s.hists {
		arch.Put(sliceName(base, i), h)
	}
}

// sliceName is the archive entry name of one pT slice.
func sliceName(base string, ipt int) string {
	return fmt.Sprintf("%s_pt%02d", base, ipt)
}

// trialDir names the archive directory of one cut trial; trial -1 is the
// default selection.
func trialDir(trial int) string {
	if trial < 0 {
		return "nuclei"
	}
	return fmt.Sprintf("nuclei%d", trial)
}

// findBin locates x in a strictly increasing edge list, -1 when outside.
func findBin(edges []float64, x float64) int {
	if x < edges[0] || x >= edges[len(edges)-1] {
		return -1
	}
	i := sort.SearchFloat64s(edges, x)
	if i < len(edges) && edges[i] == x {
		return i
	}
	return i - 1
}
