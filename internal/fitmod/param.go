// Package fitmod implements the binned signal+background fits of the
// analysis: a set of shape models, an extended maximum-likelihood fitter
// and the bookkeeping around fit quality.
package fitmod

import "fmt"

// Param is one fit parameter with its allowed range.
type Param struct {
	Name  string
	Val   float64
	Min   float64
	Max   float64
	Err   float64
	Fixed bool
}

func newParam(name string, val, min, max float64) *Param {
	return &Param{Name: name, Val: val, Min: min, Max: max}
}

// SetRange updates the bounds and clamps the value into them.
func (p *Param) SetRange(min, max float64) {
	p.Min, p.Max = min, max
	if p.Val < min {
		p.Val = min
	}
	if p.Val > max {
		p.Val = max
	}
}

func (p *Param) SetVal(v float64) { p.Val = v }

func (p *Param) String() string {
	return fmt.Sprintf("%s = %g +- %g [%g, %g]", p.Name, p.Val, p.Err, p.Min, p.Max)
}

// clamp returns the value forced into the parameter bounds.
func (p *Param) clamp(v float64) float64 {
	if v < p.Min {
		return p.Min
	}
	if v > p.Max {
		return p.Max
	}
	return v
}
