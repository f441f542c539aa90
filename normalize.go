package cres

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// NormalizationFactor returns the factor converting a weight sum into the
// given cross section.
func NormalizationFactor(crossSection, sumWeights float64) (float64, error) {
	if sumWeights == 0 || math.IsNaN(sumWeights) || math.IsInf(sumWeights, 0) {
		return 0, fmt.Errorf("cres: cannot normalize a weight sum of %g", sumWeights)
	}
	f := crossSection / sumWeights
	if !(f > 0) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("cres: normalization factor %g from cross section %g and weight sum %g is not a positive number",
			f, crossSection, sumWeights)
	}
	return f, nil
}

// Normalizer scales output weights by a fixed factor exactly once. A second
// Apply leaves the weights untouched and returns ErrAlreadyNormalized.
type Normalizer struct {
	factor  float64
	applied bool
}

// NewNormalizer returns a Normalizer for a positive, finite factor.
func NewNormalizer(factor float64) (*Normalizer, error) {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return nil, &ConfigError{Field: "WeightNorm", Reason: fmt.Sprintf("must be a positive finite number, got %g", factor)}
	}
	return &Normalizer{factor: factor}, nil
}

// Factor returns the recorded factor.
func (n *Normalizer) Factor() float64 { return n.factor }

// Applied reports whether the factor has been applied.
func (n *Normalizer) Applied() bool { return n.applied }

// Apply multiplies both weights of every event by the factor.
func (n *Normalizer) Apply(events []Event) error {
	if n.applied {
		return ErrAlreadyNormalized
	}
	n.applied = true
	if n.factor == 1 {
		return nil
	}
	for i := range events {
		scaleWeights(&events[i], n.factor)
	}
	return nil
}

// XSection summarises the cross section carried by a sample.
type XSection struct {
	// Value is norm·Σw.
	Value float64
	// Error is norm·sqrt(Σw²).
	Error float64
	// NegativeFraction is the fraction of events with negative weight.
	NegativeFraction float64
}

// CrossSection computes the cross section of events whose weights are to be
// scaled by norm.
func CrossSection(events []Event, norm float64) XSection {
	if len(events) == 0 {
		return XSection{}
	}
	w := make([]float64, len(events))
	var neg int
	for i := range events {
		w[i] = events[i].Weight
		if w[i] < 0 {
			neg++
		}
	}
	return XSection{
		Value:            norm * floats.SumCompensated(w),
		Error:            norm * math.Sqrt(floats.Dot(w, w)),
		NegativeFraction: float64(neg) / float64(len(events)),
	}
}
