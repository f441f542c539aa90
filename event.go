package cres

import "sort"

// ParticleID is a PDG Monte Carlo particle code.
type ParticleID int

// Pseudo particle codes assigned by the observable builder.
const (
	PIDJet           ParticleID = 81
	PIDDressedLepton ParticleID = 82
)

const (
	pidBottom   ParticleID = 5
	pidElectron ParticleID = 11
	pidNuE      ParticleID = 12
	pidMuon     ParticleID = 13
	pidNuMu     ParticleID = 14
	pidNuTau    ParticleID = 16
	pidGluon    ParticleID = 21
	pidPhoton   ParticleID = 22
)

// Abs returns the code with the antiparticle sign removed.
func (id ParticleID) Abs() ParticleID {
	if id < 0 {
		return -id
	}
	return id
}

// IsParton reports quarks up to bottom and gluons.
func (id ParticleID) IsParton() bool {
	a := id.Abs()
	return (a >= 1 && a <= pidBottom) || a == pidGluon
}

// IsHadron reports composite particle codes (three or more digits).
func (id ParticleID) IsHadron() bool {
	return id.Abs() >= 100
}

// IsNeutrino reports the three neutrino flavours.
func (id ParticleID) IsNeutrino() bool {
	a := id.Abs()
	return a == pidNuE || a == pidNuMu || a == pidNuTau
}

// IsLightLepton reports electrons and muons.
func (id ParticleID) IsLightLepton() bool {
	a := id.Abs()
	return a == pidElectron || a == pidMuon
}

// IsPhoton reports photons.
func (id ParticleID) IsPhoton() bool {
	return id == pidPhoton
}

// Particle is one outgoing final-state particle.
type Particle struct {
	ID ParticleID `json:"id"`
	P  FourVector `json:"p"`
}

// PDFInfo carries the parton distribution information of an event.
type PDFInfo struct {
	ID1      int     `json:"id1,omitempty"`
	ID2      int     `json:"id2,omitempty"`
	X1       float64 `json:"x1,omitempty"`
	X2       float64 `json:"x2,omitempty"`
	ScalePDF float64 `json:"scale_pdf,omitempty"`
	XF1      float64 `json:"xf1,omitempty"`
	XF2      float64 `json:"xf2,omitempty"`
}

// EventMeta is event-level bookkeeping that the resampler passes through
// untouched.
type EventMeta struct {
	ProcessID int     `json:"process_id,omitempty"`
	Scale     float64 `json:"scale,omitempty"`
	AlphaQCD  float64 `json:"alpha_qcd,omitempty"`
	AlphaQED  float64 `json:"alpha_qed,omitempty"`
	PDF       PDFInfo `json:"pdf"`
}

// Event is a weighted Monte Carlo scattering event. Only the weight fields
// are modified by resampling.
type Event struct {
	// ID is the position of the event in the input sequence. It is
	// assigned by the engine.
	ID        int        `json:"id"`
	Particles []Particle `json:"particles"`
	Weight    float64    `json:"weight"`
	// SecondaryWeight is resampled with the same rule as Weight but
	// conserved independently.
	SecondaryWeight float64   `json:"secondary_weight,omitempty"`
	Meta            EventMeta `json:"meta"`
}

// ParticleTypeSet holds the momenta of all objects of one type in an event,
// ordered by descending transverse momentum.
type ParticleTypeSet struct {
	Type    ParticleID
	Momenta []FourVector
}

// EventView is the clustered, distance-comparable projection of an event.
// Type sets are ordered by descending type code and type codes are unique.
// A view must not be modified once built.
type EventView struct {
	TypeSets []ParticleTypeSet
}

// NewEventView groups objects by type. The input slice is not retained.
func NewEventView(objects []Particle) *EventView {
	sorted := make([]Particle, len(objects))
	copy(sorted, objects)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID > sorted[j].ID
		}
		pi, pj := sorted[i].P.Pt2(), sorted[j].P.Pt2()
		if pi != pj {
			return pi > pj
		}
		return sorted[i].P.E() > sorted[j].P.E()
	})

	v := &EventView{}
	for _, o := range sorted {
		n := len(v.TypeSets)
		if n > 0 && v.TypeSets[n-1].Type == o.ID {
			v.TypeSets[n-1].Momenta = append(v.TypeSets[n-1].Momenta, o.P)
			continue
		}
		v.TypeSets = append(v.TypeSets, ParticleTypeSet{Type: o.ID, Momenta: []FourVector{o.P}})
	}
	return v
}

// Len returns the total number of objects in the view.
func (v *EventView) Len() int {
	n := 0
	for _, s := range v.TypeSets {
		n += len(s.Momenta)
	}
	return n
}

// Momenta returns the momenta of the given type, or nil.
func (v *EventView) Momenta(t ParticleID) []FourVector {
	i := sort.Search(len(v.TypeSets), func(i int) bool { return v.TypeSets[i].Type <= t })
	if i < len(v.TypeSets) && v.TypeSets[i].Type == t {
		return v.TypeSets[i].Momenta
	}
	return nil
}

// SameStructure reports whether both views contain the same type codes with
// the same multiplicity each.
func (v *EventView) SameStructure(w *EventView) bool {
	if len(v.TypeSets) != len(w.TypeSets) {
		return false
	}
	for i := range v.TypeSets {
		if v.TypeSets[i].Type != w.TypeSets[i].Type ||
			len(v.TypeSets[i].Momenta) != len(w.TypeSets[i].Momenta) {
			return false
		}
	}
	return true
}
