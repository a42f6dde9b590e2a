// Package report renders the plots and the HTML summary of an analysis
// pass.
package report

// Status classifies one report section from its fit metrics.
//
// A section without input is MISSING; a section whose fit metrics were
// not recorded is UNK; otherwise the fit p-value decides between OK and
// KO at the configured significance level.
func Status(available, hasMetrics bool, pValue, alpha float64) (status, class string) {
	if !available {
		return "MISSING", "missing"
	}
	if !hasMetrics {
		return "UNK", "unknown"
	}
	if pValue >= alpha {
		return "OK", "ok"
	}
	return "KO", "ko"
}
