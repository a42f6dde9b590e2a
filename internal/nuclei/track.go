package nuclei

import "math"

// Track flag bits, matching the producer task layout. MC truth flags start
// in the second half of the short.
const (
	FlagDeuteron = 1 << iota
	FlagTriton
	FlagHe3
	FlagHe4
	FlagHasTOF
	FlagIsReconstructed
	FlagIsAmbiguous
	FlagPositive
	_
	FlagIsPrimary
	FlagIsSecondaryFromMaterial
	FlagIsSecondaryFromWeakDecay
)

// Track is one reconstructed-track record of the nuclei table. SignedPt
// carries the charge sign; its magnitude is half the rigidity-scale pT for
// |Z|=2 candidates.
type Track struct {
	SignedPt      float64
	Eta           float64
	Phi           float64
	TPCInnerParam float64
	TPCSignal     float64
	Beta          float64
	DCAxy         float64
	DCAz          float64
	TPCnCls       int
	ITSClsMap     uint8
	Flags         uint32

	// MC columns, zero for data.
	GenPt   float64
	GenEta  float64
	GenPhi  float64
	PDGCode int
}

func (t *Track) HasTOF() bool          { return t.Flags&FlagHasTOF != 0 }
func (t *Track) IsReconstructed() bool { return t.Flags&FlagIsReconstructed != 0 }
func (t *Track) IsPrimary() bool       { return t.Flags&FlagIsPrimary != 0 }
func (t *Track) IsSecondaryFromMaterial() bool {
	return t.Flags&FlagIsSecondaryFromMaterial != 0
}
func (t *Track) IsSecondaryFromWeakDecay() bool {
	return t.Flags&FlagIsSecondaryFromWeakDecay != 0
}

// PIDForTracking is the PID hypothesis nibble used during tracking.
func (t *Track) PIDForTracking() int { return int(t.Flags >> 12) }

// Matter reports whether the track is a matter candidate.
func (t *Track) Matter() bool { return t.SignedPt > 0 }

// NITSClustersIB counts inner-barrel ITS clusters from the layer bitmask.
func (t *Track) NITSClustersIB() int {
	n := 0
	for layer := 0; layer < 3; layer++ {
		if t.ITSClsMap&(1<<layer) != 0 {
			n++
		}
	}
	return n
}

// NITSClusters counts all ITS clusters from the layer bitmask.
func (t *Track) NITSClusters() int {
	n := 0
	for layer := 0; layer < 7; layer++ {
		if t.ITSClsMap&(1<<layer) != 0 {
			n++
		}
	}
	return n
}

// Observables are the per-track derived columns.
type Observables struct {
	PtUncorr float64
	Pt       float64 // energy-loss corrected, species-specific
	P        float64
	TOFMass  float64
	DeltaMass   float64 // TOFMass - species mass
	NSigmaTPC   float64
	NSigmaDCAxy float64
	NSigmaDCAz  float64
	Rapidity    float64
	Matter      bool
	HasTOF      bool
}

// sentinelTOFMass flags tracks without a usable beta measurement.
const sentinelTOFMass = 1e9

// TOFMass computes the mass from the measured velocity and the inner-wall
// rigidity, doubled for |Z|=2.
func TOFMass(tpcInnerParam, beta float64) float64 {
	if beta < 1e-3 {
		return sentinelTOFMass
	}
	if beta >= 1 {
		return 0
	}
	return tpcInnerParam * 2 * math.Sqrt(1/(beta*beta)-1)
}

// Derive computes the observables of t under the species hypothesis.
func Derive(t *Track, s Species) Observables {
	ptUncorr := 2 * math.Abs(t.SignedPt)
	var pt float64
	if s == He4 {
		pt = CorrectPtHe4(ptUncorr)
	} else {
		pt = CorrectPtHe3(ptUncorr)
	}
	tofMass := TOFMass(t.TPCInnerParam, t.Beta)
	mass := s.Mass()
	return Observables{
		PtUncorr:    ptUncorr,
		Pt:          pt,
		P:           pt * math.Cosh(t.Eta),
		TOFMass:     tofMass,
		DeltaMass:   tofMass - mass,
		NSigmaTPC:   NSigma(s, t.TPCInnerParam, t.TPCSignal),
		NSigmaDCAxy: NSigmaDCAxy(pt, t.DCAxy),
		NSigmaDCAz:  NSigmaDCAz(pt, t.DCAz),
		Rapidity:    math.Asinh(pt / math.Hypot(pt, mass) * math.Sinh(t.Eta)),
		Matter:      t.Matter(),
		HasTOF:      t.HasTOF(),
	}
}

// GoodTOFMass requires the TOF mass, when measured, to be compatible with
// the species hypothesis.
func (o Observables) GoodTOFMass(s Species) bool {
	if !o.HasTOF {
		return true
	}
	window := 0.6
	if s == He4 {
		window = 0.3
	}
	return math.Abs(o.DeltaMass) < window
}

// GenRapidity is the generated-level rapidity under the species mass.
func GenRapidity(t *Track, s Species) float64 {
	mt := math.Hypot(s.Mass(), t.GenPt)
	return math.Asinh(t.GenPt / mt * math.Sinh(t.GenEta))
}
