package fitmod

import "github.com/cockroachdb/errors"

// SupportedTPCModels lists the shape models available for the TPC
// n-sigma fits, in their canonical order.
var SupportedTPCModels = []string{"GausGaus", "ExpGaus", "ExpTailGaus", "LognormalLognormal"}

// ModelEntry pairs a configured model name with its index in the
// supported-model list.
type ModelEntry struct {
	Name  string
	Index int
}

// ResolveModelMatrix maps the configured model names onto the supported
// list, preserving the configured order. Duplicated or unknown names are
// rejected.
func ResolveModelMatrix(configured, supported []string) ([]ModelEntry, error) {
	index := make(map[string]int, len(supported))
	for i, name := range supported {
		index[name] = i
	}
	seen := make(map[string]bool, len(configured))
	out := make([]ModelEntry, 0, len(configured))
	for _, name := range configured {
		if seen[name] {
			return nil, errors.Newf("fitmod: duplicated TPC function name %q", name)
		}
		seen[name] = true
		i, ok := index[name]
		if !ok {
			return nil, errors.Newf("fitmod: unsupported TPC function name %q", name)
		}
		out = append(out, ModelEntry{Name: name, Index: i})
	}
	return out, nil
}

// DefaultTPCModel picks the reference model of the TPC matrix: ExpGaus
// when configured, the first configured model otherwise.
func DefaultTPCModel(configured []string) string {
	for _, name := range configured {
		if name == "ExpGaus" {
			return name
		}
	}
	return configured[0]
}

// NewTPCModel builds one of the supported TPC n-sigma models with the
// parameter ranges used by the analysis.
func NewTPCModel(name string, x Range) (*Model, error) {
	var m *Model
	switch name {
	case "GausGaus":
		m = NewGausGaus(x)
		m.Sigma.SetRange(0.2, 1.2)
		m.Sigma.SetVal(1.0)
		m.Mu.SetRange(-0.5, 0.5)
		m.MuBkg.SetRange(-10, -4)
		m.MuBkg.SetVal(-7)
		m.SigBkg.SetRange(0.2, 6.0)
	case "ExpGaus":
		m = NewExpGaus(x)
		m.Sigma.SetRange(0.2, 1.2)
		m.Sigma.SetVal(1.0)
		m.Mu.SetRange(-0.5, 0.5)
	case "ExpTailGaus":
		m = NewExpTailGaus(x)
		m.Sigma.SetRange(0.2, 1.2)
		m.Sigma.SetVal(1.0)
		m.Mu.SetRange(-0.5, 0.5)
	case "LognormalLognormal":
		m = NewLogNormalLogNormal(x)
		m.Sigma.SetRange(1.01, 20)
		m.Sigma.SetVal(2.72)
		m.Mu.SetRange(-0.5, 0.5)
	default:
		return nil, errors.Newf("fitmod: unsupported TPC function name %q", name)
	}
	return m, nil
}

// NewTOFSignalModel builds the tailed-Gaussian TOF mass model with the
// parameter ranges used by the analysis.
func NewTOFSignalModel(x Range) *Model {
	m := NewExpTailGaus(x)
	m.Mu.SetRange(-1, 1)
	m.Mu.SetVal(0.1)
	m.Sigma.SetRange(0.05, 0.40)
	m.Sigma.SetVal(0.1)
	m.Alpha0.SetRange(0.8, 3.0)
	m.Alpha0.SetVal(1.2)
	m.SigCounts.SetRange(0, 5000)
	return m
}

// NewTOFSidebandModel builds the background-only model for the sideband
// fits.
func NewTOFSidebandModel(x Range) *Model {
	m := NewExpExpTailGaus(x)
	m.UseSignal(false)
	return m
}
