// Package nuclei implements the light-nuclei particle identification
// domain: species constants, the TPC Bethe-Bloch response, derived
// per-track observables and the track selections of the analysis.
package nuclei

import "github.com/cockroachdb/errors"

// Species identifies the nucleus under study. The matter/antimatter split
// is carried separately by the sign of the track pT.
type Species int

const (
	He3 Species = iota
	He4
)

const (
	MassHe3 = 2.80839
	MassHe4 = 3.72738

	PDGHe3 = 1000020030
	PDGHe4 = 1000020040
)

// Letter tags histogram names: M for matter, A for antimatter.
var Letter = [2]string{"M", "A"}

func (s Species) String() string {
	switch s {
	case He3:
		return "he3"
	case He4:
		return "he4"
	}
	return "unknown"
}

func (s Species) Mass() float64 {
	if s == He4 {
		return MassHe4
	}
	return MassHe3
}

func (s Species) PDG() int {
	if s == He4 {
		return PDGHe4
	}
	return PDGHe3
}

// Names returns the matter and antimatter directory names, in that order.
func (s Species) Names() [2]string {
	if s == He4 {
		return [2]string{"he4", "antihe4"}
	}
	return [2]string{"he3", "antihe3"}
}

// Labels returns the matter and antimatter axis labels, in that order.
func (s Species) Labels() [2]string {
	if s == He4 {
		return [2]string{"^{4}He", "^{4}#bar{He}"}
	}
	return [2]string{"^{3}He", "^{3}#bar{He}"}
}

func ParseSpecies(name string) (Species, error) {
	switch name {
	case "he3", "He3":
		return He3, nil
	case "he4", "He4":
		return He4, nil
	}
	return He3, errors.Newf("nuclei: unknown species %q", name)
}
