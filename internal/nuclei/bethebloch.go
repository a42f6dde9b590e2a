package nuclei

import "math"

// betheBloch is the ALEPH parameterization of the expected TPC energy loss
// as a function of beta*gamma.
func betheBloch(bg, kp1, kp2, kp3, kp4, kp5 float64) float64 {
	beta := bg / math.Sqrt(1+bg*bg)
	aa := math.Pow(beta, kp4)
	bb := math.Pow(1/bg, kp5)
	bb = math.Log(kp3 + bb)
	return (kp2 - aa - bb) * kp1 / aa
}

func bbHe3(mom float64) float64 {
	return betheBloch(mom/MassHe3, -321.34, 0.6539, 1.591, 0.8225, 2.363)
}

func bbH3(mom float64) float64 {
	return betheBloch(mom/2.80892, -136.71, 0.441, 0.2269, 1.347, 0.8035)
}

func bbHe4(mom float64) float64 {
	return betheBloch(mom/MassHe4, -321.34, 0.6539, 1.591, 0.8225, 2.363)
}

// NSigmaHe3 is the normalized TPC signal deviation from the He3 hypothesis.
// The momentum is the rigidity at the TPC inner wall; the factor 2 accounts
// for the |Z|=2 charge.
func NSigmaHe3(mom, signal float64) float64 {
	return (signal/bbHe3(mom*2) - 1 + 2.20376e-02) / 0.055
}

// NSigmaH3 is the normalized TPC signal deviation from the triton hypothesis.
func NSigmaH3(mom, signal float64) float64 {
	return (signal/bbH3(mom) - 1) / 0.07
}

// NSigmaHe4 is the normalized TPC signal deviation from the He4 hypothesis.
func NSigmaHe4(mom, signal float64) float64 {
	return (signal/bbHe4(mom*2) - 1) / 0.07
}

// NSigma dispatches on the species of interest.
func NSigma(s Species, mom, signal float64) float64 {
	if s == He4 {
		return NSigmaHe4(mom, signal)
	}
	return NSigmaHe3(mom, signal)
}

// DCAxyCut is the pT-dependent DCAxy resolution envelope at nsigma widths.
func DCAxyCut(pt, nsigma float64) float64 {
	invPt := 1 / pt
	return (7.62783e-04 + 4.59326e-03*invPt + 6.89163e-03*invPt*invPt) * nsigma
}

// DCAzCut is the pT-dependent DCAz resolution envelope at nsigma widths.
func DCAzCut(pt, nsigma float64) float64 {
	invPt := 1 / pt
	return (5.00000e-04 + 8.73690e-03*invPt + 9.62329e-04*invPt*invPt) * nsigma
}

// NSigmaDCAxy expresses a measured DCAxy in units of its resolution.
func NSigmaDCAxy(pt, dcaxy float64) float64 {
	return dcaxy / DCAxyCut(pt, 1)
}

// NSigmaDCAz expresses a measured DCAz in units of its resolution.
func NSigmaDCAz(pt, dcaz float64) float64 {
	return dcaz / DCAzCut(pt, 1)
}

// CorrectPtHe3 applies the He3 average energy-loss correction to the
// reconstructed pT.
func CorrectPtHe3(ptUncorr float64) float64 {
	return ptUncorr + 0.0343554 + 0.96161*math.Exp(-1.51286*ptUncorr)
}

// CorrectPtHe4 applies the two-step He4 average energy-loss correction.
func CorrectPtHe4(ptUncorr float64) float64 {
	step1 := ptUncorr + 0.0419608 + 1.75861*math.Exp(-1.4019*ptUncorr)
	return step1 + 0.00385223 - 0.442353*math.Exp(-1.59049*step1)
}
