package cres

import (
	"math"
	"sort"
)

// EventDistance measures how far apart two events are in phase space.
//
// Implementations must be safe for concurrent use: the engine calls
// Distance from one goroutine per partition. The result must be
// non-negative and never NaN; the engine aborts the run otherwise. Symmetry
// is not required, but SearchTree is only available for distances that
// implement SymmetricDistance.
type EventDistance interface {
	Distance(a, b *EventView) float64
}

// SymmetricDistance is an EventDistance that may declare itself a metric:
// Distance(a, b) == Distance(b, a) and the triangle inequality holds. The
// tree search prunes with both properties.
type SymmetricDistance interface {
	EventDistance
	Symmetric() bool
}

// IsSymmetric reports whether d declares itself symmetric.
func IsSymmetric(d EventDistance) bool {
	s, ok := d.(SymmetricDistance)
	return ok && s.Symmetric()
}

// DistanceFunc adapts a plain function into an EventDistance. It makes no
// symmetry claim, so it is searched linearly.
type DistanceFunc func(a, b *EventView) float64

func (f DistanceFunc) Distance(a, b *EventView) float64 { return f(a, b) }

// SymmetricDistanceFunc adapts a function that the caller guarantees to be
// symmetric and to satisfy the triangle inequality.
type SymmetricDistanceFunc func(a, b *EventView) float64

func (f SymmetricDistanceFunc) Distance(a, b *EventView) float64 { return f(a, b) }

func (SymmetricDistanceFunc) Symmetric() bool { return true }

// WithContext binds a shared, read-only context value to a distance
// function. The context is handed to every call and must not be modified
// by fn.
func WithContext[C any](ctx C, fn func(ctx C, a, b *EventView) float64) DistanceFunc {
	return func(a, b *EventView) float64 { return fn(ctx, a, b) }
}

// exactMatchingLimit is the largest set size matched over all permutations.
const exactMatchingLimit = 7

// ScaledPtMetric is the default event distance: the sum over particle
// types of the minimal paired momentum distance, where a pair contributes
//
//	sqrt(|p⃗ - q⃗|² + (τ·(pt_p - pt_q))²)
//
// with τ = PtWeight. Views with differing type codes or multiplicities are
// infinitely far apart.
type ScaledPtMetric struct {
	PtWeight float64
}

func (m ScaledPtMetric) Distance(a, b *EventView) float64 {
	if !a.SameStructure(b) {
		return math.Inf(1)
	}
	var dist float64
	for i := range a.TypeSets {
		dist += m.setDistance(a.TypeSets[i].Momenta, b.TypeSets[i].Momenta)
	}
	return dist
}

func (ScaledPtMetric) Symmetric() bool { return true }

func (m ScaledPtMetric) pairDistance(p, q FourVector) float64 {
	dpt := m.PtWeight * (p.Pt() - q.Pt())
	return math.Sqrt(p.Sub(q).SpatialNorm2() + dpt*dpt)
}

func (m ScaledPtMetric) setDistance(p, q []FourVector) float64 {
	if len(p) <= exactMatchingLimit {
		return minPermutation(len(p), func(perm []int) float64 {
			var s float64
			for i, j := range perm {
				s += m.pairDistance(p[i], q[j])
			}
			return s
		})
	}
	return math.Min(m.greedyDistance(p, q), m.greedyDistance(q, p))
}

// greedyDistance pairs each momentum of p, in order, with its closest
// still-unpaired partner in q.
func (m ScaledPtMetric) greedyDistance(p, q []FourVector) float64 {
	used := make([]bool, len(q))
	var dist float64
	for _, pi := range p {
		best, bestDist := -1, math.Inf(1)
		for j, qj := range q {
			if used[j] {
				continue
			}
			if d := m.pairDistance(pi, qj); best < 0 || d < bestDist {
				best, bestDist = j, d
			}
		}
		used[best] = true
		dist += bestDist
	}
	return dist
}

// Default scale factors for RelativeDeltaRMetric.
const (
	DefaultMomentumScale = 2.0
	DefaultDeltaRScale   = 1.0
)

// RelativeDeltaRMetric compares events by the largest relative momentum
// difference or angular separation among matched objects:
//
//	max over pairs of max(s_p·|ln(|p⃗|²/|q⃗|²)|, s_R·ΔR(p, q))
//
// minimised over all pairings within each type. Views with differing
// structure are infinitely far apart.
type RelativeDeltaRMetric struct {
	// MomentumScale overrides DefaultMomentumScale per particle type.
	MomentumScale map[ParticleID]float64
	// DeltaRScale overrides DefaultDeltaRScale per particle type.
	DeltaRScale map[ParticleID]float64
}

// NewRelativeDeltaRMetric returns the metric with photons weighted by a
// momentum scale of 10.
func NewRelativeDeltaRMetric() RelativeDeltaRMetric {
	return RelativeDeltaRMetric{
		MomentumScale: map[ParticleID]float64{pidPhoton: 10},
	}
}

func (m RelativeDeltaRMetric) Distance(a, b *EventView) float64 {
	if !a.SameStructure(b) {
		return math.Inf(1)
	}
	var dist float64
	for i := range a.TypeSets {
		t := a.TypeSets[i].Type
		ps, rs := DefaultMomentumScale, DefaultDeltaRScale
		if s, ok := m.MomentumScale[t]; ok {
			ps = s
		}
		if s, ok := m.DeltaRScale[t]; ok {
			rs = s
		}
		p, q := a.TypeSets[i].Momenta, b.TypeSets[i].Momenta
		d := minPermutation(len(p), func(perm []int) float64 {
			var worst float64
			for i, j := range perm {
				worst = math.Max(worst, relativeDistance(ps, rs, p[i], q[j]))
			}
			return worst
		})
		dist = math.Max(dist, d)
	}
	return dist
}

func (RelativeDeltaRMetric) Symmetric() bool { return true }

func relativeDistance(pScale, rScale float64, p, q FourVector) float64 {
	np, nq := p.SpatialNorm2(), q.SpatialNorm2()
	var rel float64
	switch {
	case np == nq:
	case np == 0 || nq == 0:
		rel = math.Inf(1)
	default:
		rel = math.Abs(math.Log(np / nq))
	}
	return math.Max(pScale*rel, rScale*p.DeltaR(q))
}

// minPermutation returns the minimum of cost over all permutations of
// 0..n-1, visited in lexicographic order.
func minPermutation(n int, cost func(perm []int) float64) float64 {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	best := cost(perm)
	for nextPermutation(perm) {
		if c := cost(perm); c < best {
			best = c
		}
	}
	return best
}

// nextPermutation advances perm to the next lexicographic permutation and
// reports false once the last permutation has been reached.
func nextPermutation(perm []int) bool {
	i := len(perm) - 2
	for i >= 0 && perm[i] >= perm[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(perm) - 1
	for perm[j] <= perm[i] {
		j--
	}
	perm[i], perm[j] = perm[j], perm[i]
	sort.Ints(perm[i+1:])
	return true
}

// eventMetric evaluates the distance between events addressed by their
// position in views and enforces the distance contract. ids maps positions
// to event IDs for error reports.
type eventMetric struct {
	dist  EventDistance
	views []*EventView
	ids   []int
}

func (m *eventMetric) len() int { return len(m.views) }

func (m *eventMetric) between(a, b int) (float64, error) {
	d := m.dist.Distance(m.views[a], m.views[b])
	if math.IsNaN(d) || d < 0 {
		return d, &ContractViolationError{EventA: m.ids[a], EventB: m.ids[b], Value: d}
	}
	return d, nil
}
