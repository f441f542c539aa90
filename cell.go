package cres

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// conservationTol is the largest relative change of a cell's weight sum
// accepted after resampling, relative to the sum of absolute weights.
const conservationTol = 1e-9

// Cell is a group of phase-space neighbours whose weights are pooled and
// redistributed. Indices are positions within the partition.
type Cell struct {
	Seed int
	// Members lists the cell's events in the order they were absorbed,
	// starting with the seed.
	Members []int
	// Dists[i] is the distance of Members[i] to the seed.
	Dists []float64
	// Radius is the largest member distance to the seed.
	Radius float64
	// WeightBefore is the pooled weight before resampling.
	WeightBefore float64
	// Capped is set when growth stopped while the pooled weight was still
	// negative.
	Capped bool
	// Overflowed is set when the pooled weight exceeded the float64 range
	// and was saturated.
	Overflowed bool
}

// cellLimits bounds cell growth.
type cellLimits struct {
	maxRadius  float64
	maxMembers int // 0 = unbounded
}

// growCell builds a cell around seed by repeatedly absorbing the available
// event nearest to the seed until the pooled weight is non-negative or a
// limit is reached. Absorbed events are removed from s.
func growCell(s NeighbourSearch, seed int, weights []float64, lim cellLimits) (*Cell, error) {
	c := &Cell{Seed: seed, Members: []int{seed}, Dists: []float64{0}}
	s.Remove(seed)
	sum := weights[seed]

	for sum < 0 {
		if lim.maxMembers > 0 && len(c.Members) >= lim.maxMembers {
			break
		}
		nb, ok, err := s.Nearest(seed, lim.maxRadius)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		s.Remove(nb.Index)
		c.Members = append(c.Members, nb.Index)
		c.Dists = append(c.Dists, nb.Dist)
		c.Radius = math.Max(c.Radius, nb.Dist)

		var overflow bool
		sum, overflow = saturatingAdd(sum, weights[nb.Index])
		c.Overflowed = c.Overflowed || overflow
	}
	c.WeightBefore = sum
	c.Capped = sum < 0
	return c, nil
}

// saturatingAdd returns a+b clamped to ±MaxFloat64 and whether clamping
// happened.
func saturatingAdd(a, b float64) (float64, bool) {
	s := a + b
	switch {
	case math.IsInf(s, 1):
		return math.MaxFloat64, true
	case math.IsInf(s, -1):
		return -math.MaxFloat64, true
	}
	return s, false
}

// redistribute replaces w with weights that have the same sum, shared among
// the entries according to rule. The arithmetic is carried out relative to
// the largest absolute weight so that it cannot overflow. The sum is
// verified afterwards with compensated summation.
func redistribute(w []float64, rule Redistribution) error {
	scale := 0.0
	for _, x := range w {
		scale = math.Max(scale, math.Abs(x))
	}
	if scale == 0 {
		return nil
	}

	scaled := make([]float64, len(w))
	abs := make([]float64, len(w))
	for i, x := range w {
		scaled[i] = x / scale
		abs[i] = math.Abs(scaled[i])
	}
	total := floats.SumCompensated(scaled)
	absTotal := floats.SumCompensated(abs)

	switch rule {
	case RedistributeMean:
		mean := total / float64(len(w)) * scale
		for i := range w {
			w[i] = mean
		}
	default:
		share := total / absTotal
		for i, x := range w {
			w[i] = math.Abs(x) * share
		}
	}

	for i, x := range w {
		scaled[i] = x / scale
	}
	if diff := math.Abs(floats.SumCompensated(scaled) - total); diff > conservationTol*absTotal {
		return fmt.Errorf("%w: sum changed by %g of %g", ErrWeightNotConserved, diff*scale, total*scale)
	}
	return nil
}

// resampleCell redistributes the primary and secondary weights of the cell
// members independently.
func resampleCell(c *Cell, events []*Event, rule Redistribution) error {
	w := make([]float64, len(c.Members))
	for i, m := range c.Members {
		w[i] = events[m].Weight
	}
	if err := redistribute(w, rule); err != nil {
		return err
	}
	for i, m := range c.Members {
		events[m].Weight = w[i]
	}

	for i, m := range c.Members {
		w[i] = events[m].SecondaryWeight
	}
	if err := redistribute(w, rule); err != nil {
		return err
	}
	for i, m := range c.Members {
		events[m].SecondaryWeight = w[i]
	}
	return nil
}
