package cres

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// FourVector is a four-momentum (E, px, py, pz).
type FourVector [4]float64

// NewFourVector returns the four-vector (e, px, py, pz).
func NewFourVector(e, px, py, pz float64) FourVector {
	return FourVector{e, px, py, pz}
}

func (p FourVector) E() float64  { return p[0] }
func (p FourVector) Px() float64 { return p[1] }
func (p FourVector) Py() float64 { return p[2] }
func (p FourVector) Pz() float64 { return p[3] }

// Spatial returns the three-momentum.
func (p FourVector) Spatial() r3.Vec {
	return r3.Vec{X: p[1], Y: p[2], Z: p[3]}
}

// Pt returns the transverse momentum sqrt(px² + py²).
func (p FourVector) Pt() float64 {
	return math.Hypot(p[1], p[2])
}

// Pt2 returns the squared transverse momentum.
func (p FourVector) Pt2() float64 {
	return p[1]*p[1] + p[2]*p[2]
}

// SpatialNorm returns |p⃗|.
func (p FourVector) SpatialNorm() float64 {
	return r3.Norm(p.Spatial())
}

// SpatialNorm2 returns |p⃗|².
func (p FourVector) SpatialNorm2() float64 {
	return r3.Norm2(p.Spatial())
}

// M2 returns the invariant mass squared E² - |p⃗|².
func (p FourVector) M2() float64 {
	return p[0]*p[0] - p.SpatialNorm2()
}

// M returns the invariant mass. Space-like vectors yield a negative mass
// of magnitude sqrt(-M2), matching the usual event-record convention.
func (p FourVector) M() float64 {
	m2 := p.M2()
	if m2 < 0 {
		return -math.Sqrt(-m2)
	}
	return math.Sqrt(m2)
}

func (p FourVector) Add(q FourVector) FourVector {
	return FourVector{p[0] + q[0], p[1] + q[1], p[2] + q[2], p[3] + q[3]}
}

func (p FourVector) Sub(q FourVector) FourVector {
	return FourVector{p[0] - q[0], p[1] - q[1], p[2] - q[2], p[3] - q[3]}
}

// Scale multiplies every component by f.
func (p FourVector) Scale(f float64) FourVector {
	return FourVector{f * p[0], f * p[1], f * p[2], f * p[3]}
}

// Phi returns the azimuthal angle in [0, 2π).
func (p FourVector) Phi() float64 {
	if p[1] == 0 && p[2] == 0 {
		return 0
	}
	phi := math.Atan2(p[2], p[1])
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi
}

// maxRapidity bounds the rapidity of massless particles along the beam axis.
const maxRapidity = 1e5

// Rapidity returns 0.5·ln((E+pz)/(E-pz)), clamped to ±maxRapidity for
// particles with vanishing transverse mass.
func (p FourVector) Rapidity() float64 {
	e, pz := p[0], p[3]
	if p.Pt2() == 0 && math.Abs(pz) >= e {
		if pz >= 0 {
			return maxRapidity
		}
		return -maxRapidity
	}
	num := e + pz
	den := e - pz
	if num <= 0 {
		return -maxRapidity
	}
	if den <= 0 {
		return maxRapidity
	}
	y := 0.5 * math.Log(num/den)
	return math.Max(-maxRapidity, math.Min(maxRapidity, y))
}

// deltaPhi returns the azimuthal separation folded into [0, π].
func deltaPhi(phi1, phi2 float64) float64 {
	d := math.Abs(phi1 - phi2)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// DeltaR returns the rapidity-azimuth distance sqrt(Δy² + Δφ²).
func (p FourVector) DeltaR(q FourVector) float64 {
	dy := p.Rapidity() - q.Rapidity()
	dphi := deltaPhi(p.Phi(), q.Phi())
	return math.Hypot(dy, dphi)
}
