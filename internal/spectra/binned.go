// Package spectra holds binned result curves: raw yields, efficiencies and
// corrected spectra defined on a shared pT binning, with one value and one
// uncertainty per bin.
package spectra

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
)

// Binned is a curve defined on variable-width bin edges.
type Binned struct {
	Name  string    `json:"name"`
	Title string    `json:"title,omitempty"`
	Edges []float64 `json:"edges"`
	Vals  []float64 `json:"vals"`
	Errs  []float64 `json:"errs"`
}

func New(name string, edges []float64) *Binned {
	if len(edges) < 2 {
		panic("spectra: need at least 2 bin edges")
	}
	n := len(edges) - 1
	return &Binned{
		Name:  name,
		Edges: append([]float64(nil), edges...),
		Vals:  make([]float64, n),
		Errs:  make([]float64, n),
	}
}

func (b *Binned) NBins() int { return len(b.Edges) - 1 }

func (b *Binned) Center(i int) float64 { return 0.5 * (b.Edges[i] + b.Edges[i+1]) }

func (b *Binned) Width(i int) float64 { return b.Edges[i+1] - b.Edges[i] }

// FindBin returns the bin index containing x, or -1 when x is out of range.
func (b *Binned) FindBin(x float64) int {
	if x < b.Edges[0] || x >= b.Edges[len(b.Edges)-1] {
		return -1
	}
	i := sort.SearchFloat64s(b.Edges, x)
	if i < len(b.Edges) && b.Edges[i] == x {
		return i
	}
	return i - 1
}

func (b *Binned) Set(i int, val, err float64) {
	b.Vals[i] = val
	b.Errs[i] = err
}

func (b *Binned) Clone(name string) *Binned {
	out := New(name, b.Edges)
	out.Title = b.Title
	copy(out.Vals, b.Vals)
	copy(out.Errs, b.Errs)
	return out
}

// Scale multiplies all bins by f; when byWidth is set, each bin is further
// divided by its own width (differential spectra).
func (b *Binned) Scale(f float64, byWidth bool) {
	for i := range b.Vals {
		w := 1.0
		if byWidth {
			w = b.Width(i)
		}
		b.Vals[i] *= f / w
		b.Errs[i] *= f / w
	}
}

// Divide performs an uncorrelated bin-by-bin ratio in place.
func (b *Binned) Divide(den *Binned) error {
	if den.NBins() != b.NBins() {
		return errors.Newf("spectra: binning mismatch: %d vs %d bins", b.NBins(), den.NBins())
	}
	for i := range b.Vals {
		if den.Vals[i] == 0 {
			b.Vals[i], b.Errs[i] = 0, 0
			continue
		}
		r := b.Vals[i] / den.Vals[i]
		var rel2 float64
		if b.Vals[i] != 0 {
			rel2 += math.Pow(b.Errs[i]/b.Vals[i], 2)
		}
		rel2 += math.Pow(den.Errs[i]/den.Vals[i], 2)
		b.Vals[i] = r
		b.Errs[i] = math.Abs(r) * math.Sqrt(rel2)
	}
	return nil
}

// Multiply performs an uncorrelated bin-by-bin product in place.
func (b *Binned) Multiply(o *Binned) error {
	if o.NBins() != b.NBins() {
		return errors.Newf("spectra: binning mismatch: %d vs %d bins", b.NBins(), o.NBins())
	}
	for i := range b.Vals {
		v := b.Vals[i] * o.Vals[i]
		var rel2 float64
		if b.Vals[i] != 0 {
			rel2 += math.Pow(b.Errs[i]/b.Vals[i], 2)
		}
		if o.Vals[i] != 0 {
			rel2 += math.Pow(o.Errs[i]/o.Vals[i], 2)
		}
		b.Vals[i] = v
		b.Errs[i] = math.Abs(v) * math.Sqrt(rel2)
	}
	return nil
}

// Efficiency fills b with pass/total per bin using binomial errors.
func Efficiency(name string, pass, total *Binned) (*Binned, error) {
	if pass.NBins() != total.NBins() {
		return nil, errors.Newf("spectra: binning mismatch: %d vs %d bins", pass.NBins(), total.NBins())
	}
	eff := New(name, pass.Edges)
	for i := range eff.Vals {
		n := total.Vals[i]
		if n <= 0 {
			continue
		}
		k := pass.Vals[i]
		e := k / n
		eff.Vals[i] = e
		eff.Errs[i] = math.Sqrt(math.Max(0, (1-e)*k/(n*n)))
	}
	return eff, nil
}
