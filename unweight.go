package cres

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Unweighter reduces the number of small-weight events. An event with
// 0 < |w| <= MinWeight is kept with probability |w|/MinWeight and then
// reweighted to ±MinWeight, or otherwise set to zero weight. Afterwards all
// weights are rescaled by a common factor so that the total weight sum is
// unchanged.
type Unweighter struct {
	MinWeight float64
	rng       *rand.Rand
}

// NewUnweighter returns an Unweighter whose random decisions are fully
// determined by seed.
func NewUnweighter(minWeight float64, seed uint64) *Unweighter {
	return &Unweighter{
		MinWeight: minWeight,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// UnweightStats reports what an Unweight call did.
type UnweightStats struct {
	Kept      int // small-weight events promoted to MinWeight
	Discarded int // small-weight events set to zero
	// Rescale is the common factor applied at the end. It is 1 if nothing
	// changed, and 0 if every weight ended up zero; then no rescaling is
	// possible and the sum is not preserved.
	Rescale float64
}

// Unweight modifies the weights of events in place. Both weight fields of an
// event are scaled by the same factor.
func (u *Unweighter) Unweight(events []Event) UnweightStats {
	stats := UnweightStats{Rescale: 1}
	if u.MinWeight == 0 || len(events) == 0 {
		return stats
	}

	w := make([]float64, len(events))
	for i := range events {
		w[i] = events[i].Weight
	}
	before := floats.SumCompensated(w)

	for i := range events {
		aw := math.Abs(events[i].Weight)
		if aw > u.MinWeight || aw == 0 {
			continue
		}
		if u.rng.Float64()*u.MinWeight < aw {
			scaleWeights(&events[i], u.MinWeight/aw)
			stats.Kept++
		} else {
			scaleWeights(&events[i], 0)
			stats.Discarded++
		}
	}

	for i := range events {
		w[i] = events[i].Weight
	}
	after := floats.SumCompensated(w)
	if after == 0 {
		stats.Rescale = 0
		return stats
	}
	stats.Rescale = before / after
	for i := range events {
		scaleWeights(&events[i], stats.Rescale)
	}
	return stats
}

func scaleWeights(ev *Event, f float64) {
	ev.Weight *= f
	ev.SecondaryWeight *= f
}
