package cres

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// JetAlgorithm selects the sequential recombination algorithm.
type JetAlgorithm string

const (
	AntiKt          JetAlgorithm = "anti-kt"
	Kt              JetAlgorithm = "kt"
	CambridgeAachen JetAlgorithm = "cambridge-aachen"
)

// ParseJetAlgorithm accepts the common spellings of the supported algorithms.
func ParseJetAlgorithm(s string) (JetAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anti-kt", "antikt", "anti_kt":
		return AntiKt, nil
	case "kt":
		return Kt, nil
	case "cambridge-aachen", "cambridge_aachen", "cambridge/aachen", "ca":
		return CambridgeAachen, nil
	}
	return "", fmt.Errorf("cres: unknown jet algorithm %q", s)
}

// exponent returns p in the generalised-kt distance kt^(2p).
func (a JetAlgorithm) exponent() (float64, bool) {
	switch a {
	case AntiKt:
		return -1, true
	case Kt:
		return 1, true
	case CambridgeAachen:
		return 0, true
	}
	return 0, false
}

// JetDefinition configures jet clustering.
type JetDefinition struct {
	Algorithm JetAlgorithm `yaml:"algorithm"`
	// Radius is the jet radius parameter R. Must be > 0.
	Radius float64 `yaml:"radius"`
	// MinPt discards jets with transverse momentum at or below this value.
	MinPt float64 `yaml:"min_pt"`
}

func (d JetDefinition) validate(field string) error {
	if _, ok := d.Algorithm.exponent(); !ok {
		return &ConfigError{Field: field + ".Algorithm", Reason: fmt.Sprintf("unknown jet algorithm %q", d.Algorithm)}
	}
	if !(d.Radius > 0) || math.IsInf(d.Radius, 0) {
		return &ConfigError{Field: field + ".Radius", Reason: fmt.Sprintf("must be a positive finite number, got %g", d.Radius)}
	}
	if !(d.MinPt >= 0) {
		return &ConfigError{Field: field + ".MinPt", Reason: fmt.Sprintf("must be >= 0, got %g", d.MinPt)}
	}
	return nil
}

type pseudoJet struct {
	p    FourVector
	y    float64
	phi  float64
	kt2p float64 // pt^(2p)
}

func newPseudoJet(p FourVector, exp float64) pseudoJet {
	return pseudoJet{p: p, y: p.Rapidity(), phi: p.Phi(), kt2p: ktPower(p.Pt2(), exp)}
}

func ktPower(pt2, exp float64) float64 {
	switch {
	case exp == 0:
		return 1
	case pt2 == 0 && exp < 0:
		return math.Inf(1)
	default:
		return math.Pow(pt2, exp)
	}
}

func geometricDist2(a, b *pseudoJet) float64 {
	dy := a.y - b.y
	dphi := deltaPhi(a.phi, b.phi)
	return dy*dy + dphi*dphi
}

// ClusterJets clusters the momenta with the given definition using E-scheme
// recombination and returns the jets above MinPt, ordered by descending pt.
// The definition is assumed valid.
func ClusterJets(momenta []FourVector, def JetDefinition) []FourVector {
	exp, _ := def.Algorithm.exponent()
	n := len(momenta)
	if n == 0 {
		return nil
	}
	r2 := def.Radius * def.Radius
	minPt2 := def.MinPt * def.MinPt

	jets := make([]pseudoJet, n)
	for i, p := range momenta {
		jets[i] = newPseudoJet(p, exp)
	}
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}
	nn := make([]int, n)
	nnDist := make([]float64, n)

	// updateNN recomputes the geometric nearest neighbour of i.
	updateNN := func(i int) {
		nn[i] = -1
		nnDist[i] = math.Inf(1)
		for k := 0; k < n; k++ {
			if k == i || !active[k] {
				continue
			}
			if d := geometricDist2(&jets[i], &jets[k]); d < nnDist[i] {
				nn[i] = k
				nnDist[i] = d
			}
		}
	}
	for i := 0; i < n; i++ {
		updateNN(i)
	}

	var out []FourVector
	for remaining := n; remaining > 0; {
		best, bestDist := -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			d := jets[i].kt2p
			if j := nn[i]; j >= 0 {
				if dij := math.Min(jets[i].kt2p, jets[j].kt2p) * nnDist[i] / r2; dij < d {
					d = dij
				}
			}
			if best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}

		i := best
		j := nn[i]
		merge := j >= 0 && math.Min(jets[i].kt2p, jets[j].kt2p)*nnDist[i]/r2 < jets[i].kt2p
		if merge {
			jets[i] = newPseudoJet(jets[i].p.Add(jets[j].p), exp)
			active[j] = false
			remaining--
			for k := 0; k < n; k++ {
				if !active[k] || k == i {
					continue
				}
				if nn[k] == i || nn[k] == j {
					updateNN(k)
				} else if d := geometricDist2(&jets[k], &jets[i]); d < nnDist[k] {
					nn[k] = i
					nnDist[k] = d
				}
			}
			updateNN(i)
			continue
		}

		if jets[i].p.Pt2() > minPt2 {
			out = append(out, jets[i].p)
		}
		active[i] = false
		remaining--
		for k := 0; k < n; k++ {
			if active[k] && nn[k] == i {
				updateNN(k)
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Pt2() > out[b].Pt2() })
	return out
}
