package cres

import (
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// lineViews places single photons at the given pz, so that with PtWeight 0
// the distance between two events is |Δpz|.
func lineViews(pz ...float64) []*EventView {
	views := make([]*EventView, len(pz))
	for i, z := range pz {
		views[i] = viewOf(photon(0, 0, z))
	}
	return views
}

func lineSearch(t *testing.T, pz ...float64) NeighbourSearch {
	t.Helper()
	s, err := NewNeighbourSearch(SearchLinear, ScaledPtMetric{}, lineViews(pz...), nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustGrow(t *testing.T, s NeighbourSearch, seed int, weights []float64, lim cellLimits) *Cell {
	t.Helper()
	c, err := growCell(s, seed, weights, lim)
	if err != nil {
		t.Fatalf("growCell: %v", err)
	}
	return c
}

func slicesAlmostEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !almostEqual(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

var unbounded = cellLimits{maxRadius: math.Inf(1)}

// --- redistribute ---

func TestRedistribute_Absolute(t *testing.T) {
	w := []float64{-3, 1, 4}
	if err := redistribute(w, RedistributeAbsolute); err != nil {
		t.Fatal(err)
	}
	// W = 2, Σ|w| = 8
	if want := []float64{0.75, 0.25, 1}; !slicesAlmostEqual(w, want, floatTol) {
		t.Errorf("got %v, want %v", w, want)
	}
}

func TestRedistribute_Mean(t *testing.T) {
	w := []float64{-3, 1, 4}
	if err := redistribute(w, RedistributeMean); err != nil {
		t.Fatal(err)
	}
	if want := []float64{2.0 / 3, 2.0 / 3, 2.0 / 3}; !slicesAlmostEqual(w, want, floatTol) {
		t.Errorf("got %v, want %v", w, want)
	}
}

func TestRedistribute_ZeroSum(t *testing.T) {
	for _, rule := range []Redistribution{RedistributeAbsolute, RedistributeMean} {
		w := []float64{-2, 1, 1}
		if err := redistribute(w, rule); err != nil {
			t.Fatal(err)
		}
		if !slicesAlmostEqual(w, []float64{0, 0, 0}, 0) {
			t.Errorf("%s: got %v, want zeros", rule, w)
		}
	}
}

func TestRedistribute_AllZero(t *testing.T) {
	w := []float64{0, 0}
	if err := redistribute(w, RedistributeAbsolute); err != nil {
		t.Fatal(err)
	}
	if w[0] != 0 || w[1] != 0 {
		t.Errorf("got %v, want zeros", w)
	}
}

func TestRedistribute_NegativeSumKeepsSign(t *testing.T) {
	w := []float64{-5, 1, 2}
	if err := redistribute(w, RedistributeAbsolute); err != nil {
		t.Fatal(err)
	}
	for i, x := range w {
		if x >= 0 {
			t.Errorf("w[%d] = %v, want negative", i, x)
		}
	}
	if s := floats.Sum(w); !almostEqual(s, -2, floatTol) {
		t.Errorf("sum = %v, want -2", s)
	}
}

func TestRedistribute_HugeWeightsDoNotOverflow(t *testing.T) {
	big := math.MaxFloat64
	for _, rule := range []Redistribution{RedistributeAbsolute, RedistributeMean} {
		w := []float64{big, big, -big / 2}
		if err := redistribute(w, rule); err != nil {
			t.Fatalf("%s: %v", rule, err)
		}
		for i, x := range w {
			if math.IsInf(x, 0) || x <= 0 {
				t.Errorf("%s: w[%d] = %v, want finite and positive", rule, i, x)
			}
		}
		// The sum itself exceeds the float64 range; compare scaled values.
		for i := range w {
			w[i] /= big
		}
		if s := floats.SumCompensated(w); !almostEqual(s, 1.5, 1e-12) {
			t.Errorf("%s: scaled sum = %v, want 1.5", rule, s)
		}
	}
}

func TestRedistribute_ConservesSum(t *testing.T) {
	events := generateEvents(200, 9)
	for start := 0; start+10 <= len(events); start += 10 {
		w := make([]float64, 10)
		abs := 0.0
		for i := range w {
			w[i] = events[start+i].Weight
			abs += math.Abs(w[i])
		}
		before := floats.SumCompensated(w)
		if err := redistribute(w, RedistributeAbsolute); err != nil {
			t.Fatal(err)
		}
		if after := floats.SumCompensated(w); !almostEqual(after, before, 1e-9*abs) {
			t.Errorf("block %d: sum %v -> %v", start, before, after)
		}
	}
}

// --- saturatingAdd ---

func TestSaturatingAdd(t *testing.T) {
	for _, tc := range []struct {
		a, b, want float64
		overflow   bool
	}{
		{1, 2, 3, false},
		{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64, true},
		{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64, true},
	} {
		s, overflow := saturatingAdd(tc.a, tc.b)
		if s != tc.want || overflow != tc.overflow {
			t.Errorf("saturatingAdd(%v, %v) = %v, %v; want %v, %v", tc.a, tc.b, s, overflow, tc.want, tc.overflow)
		}
	}
}

// --- growCell ---

func TestGrowCell_StopsWhenBalanced(t *testing.T) {
	s := lineSearch(t, 0, 1, 2, 3, 10)
	c := mustGrow(t, s, 0, []float64{-1, 0.5, 0.7, 5, 1}, unbounded)

	if want := []int{0, 1, 2}; !reflect.DeepEqual(c.Members, want) {
		t.Errorf("Members = %v, want %v", c.Members, want)
	}
	if !slicesAlmostEqual(c.Dists, []float64{0, 1, 2}, floatTol) {
		t.Errorf("Dists = %v", c.Dists)
	}
	if !almostEqual(c.Radius, 2, floatTol) {
		t.Errorf("Radius = %v, want 2", c.Radius)
	}
	if !almostEqual(c.WeightBefore, 0.2, floatTol) {
		t.Errorf("WeightBefore = %v, want 0.2", c.WeightBefore)
	}
	if c.Capped {
		t.Error("balanced cell marked capped")
	}
	for _, m := range c.Members {
		if s.Available(m) {
			t.Errorf("member %d still available", m)
		}
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestGrowCell_RadiusCap(t *testing.T) {
	s := lineSearch(t, 0, 1, 2, 3)
	c := mustGrow(t, s, 0, []float64{-1, 0.5, 0.7, 5}, cellLimits{maxRadius: 1.5})
	if want := []int{0, 1}; !reflect.DeepEqual(c.Members, want) {
		t.Errorf("Members = %v, want %v", c.Members, want)
	}
	if !c.Capped || c.Radius > 1.5 {
		t.Errorf("Capped = %v, Radius = %v", c.Capped, c.Radius)
	}
	if !s.Available(2) {
		t.Error("event beyond the cap was absorbed")
	}
}

func TestGrowCell_MemberCap(t *testing.T) {
	s := lineSearch(t, 0, 1, 2, 3)
	c := mustGrow(t, s, 0, []float64{-10, 1, 1, 1}, cellLimits{maxRadius: math.Inf(1), maxMembers: 3})
	if len(c.Members) != 3 || !c.Capped {
		t.Errorf("Members = %v, Capped = %v; want 3 members, capped", c.Members, c.Capped)
	}
}

func TestGrowCell_NonNegativeSeedIsSingleton(t *testing.T) {
	s := lineSearch(t, 0, 1)
	c := mustGrow(t, s, 0, []float64{2, -1}, unbounded)
	if len(c.Members) != 1 || c.Capped {
		t.Errorf("Members = %v, Capped = %v", c.Members, c.Capped)
	}
}

func TestGrowCell_NeverAbsorbsInfiniteDistance(t *testing.T) {
	views := []*EventView{
		viewOf(photon(0, 0, 1)),
		viewOf(photon(0, 0, 1), photon(0, 1, 0)),
	}
	s, err := NewNeighbourSearch(SearchTree, ScaledPtMetric{}, views, nil)
	if err != nil {
		t.Fatal(err)
	}
	c := mustGrow(t, s, 0, []float64{-1, 5}, unbounded)
	if len(c.Members) != 1 || !c.Capped {
		t.Errorf("Members = %v, Capped = %v; want the seed alone, capped", c.Members, c.Capped)
	}
}

func TestGrowCell_Overflow(t *testing.T) {
	s := lineSearch(t, 0, 1, 2)
	c := mustGrow(t, s, 0, []float64{-math.MaxFloat64, -math.MaxFloat64, math.MaxFloat64}, unbounded)
	if !c.Overflowed || len(c.Members) != 3 {
		t.Errorf("Overflowed = %v, Members = %v", c.Overflowed, c.Members)
	}
}

// --- resampleCell ---

func TestResampleCell_BothWeightsConserved(t *testing.T) {
	evs := []Event{
		{Weight: -2, SecondaryWeight: -1},
		{Weight: 1, SecondaryWeight: 3},
		{Weight: 4, SecondaryWeight: -1},
	}
	c := &Cell{Members: []int{0, 1, 2}}
	if err := resampleCell(c, []*Event{&evs[0], &evs[1], &evs[2]}, RedistributeAbsolute); err != nil {
		t.Fatal(err)
	}

	if s := evs[0].Weight + evs[1].Weight + evs[2].Weight; !almostEqual(s, 3, floatTol) {
		t.Errorf("weight sum = %v, want 3", s)
	}
	if s := evs[0].SecondaryWeight + evs[1].SecondaryWeight + evs[2].SecondaryWeight; !almostEqual(s, 1, floatTol) {
		t.Errorf("secondary sum = %v, want 1", s)
	}
	for i, ev := range evs {
		if ev.Weight < 0 || ev.SecondaryWeight < 0 {
			t.Errorf("event %d has negative weight after resampling: %+v", i, ev)
		}
	}
}

// --- seeds ---

func TestSelectSeeds(t *testing.T) {
	weights := []float64{1, -2, -0.5, 3, -2, -1}
	for _, tc := range []struct {
		strategy SeedStrategy
		want     []int
	}{
		{SeedMostNegative, []int{1, 4, 5, 2}},
		{SeedLeastNegative, []int{2, 5, 1, 4}},
		{SeedNext, []int{1, 2, 4, 5}},
	} {
		if got := selectSeeds(weights, tc.strategy); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.strategy, got, tc.want)
		}
	}
	if got := selectSeeds([]float64{0, 1}, SeedMostNegative); len(got) != 0 {
		t.Errorf("no negative weights gave seeds %v", got)
	}
}
