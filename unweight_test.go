package cres

import (
	"testing"
)

func TestUnweight_Disabled(t *testing.T) {
	events := []Event{{Weight: 0.1}, {Weight: -0.2}}
	stats := NewUnweighter(0, 1).Unweight(events)
	if stats != (UnweightStats{Rescale: 1}) {
		t.Errorf("stats = %+v, want only Rescale 1", stats)
	}
	if events[0].Weight != 0.1 || events[1].Weight != -0.2 {
		t.Errorf("disabled unweighting changed weights: %+v", events)
	}
}

func TestUnweight_PreservesSum(t *testing.T) {
	events := generateEvents(2000, 12)
	sum, abs, _ := weightSums(events)

	stats := NewUnweighter(1, 7).Unweight(events)
	if stats.Rescale == 0 {
		t.Fatal("Rescale = 0")
	}
	if stats.Kept == 0 || stats.Discarded == 0 {
		t.Errorf("Kept = %d, Discarded = %d; want both positive", stats.Kept, stats.Discarded)
	}

	if after, _, _ := weightSums(events); !almostEqual(after, sum, 1e-9*abs) {
		t.Errorf("sum %v -> %v", sum, after)
	}
}

func TestUnweight_SmallWeightsBecomeMinOrZero(t *testing.T) {
	events := generateEvents(500, 13)
	large := make(map[int]float64)
	for i, ev := range events {
		if ev.Weight > 2 || ev.Weight < -2 {
			large[i] = ev.Weight
		}
	}

	stats := NewUnweighter(2, 3).Unweight(events)
	for i, ev := range events {
		if w, ok := large[i]; ok {
			if !almostEqual(ev.Weight, w*stats.Rescale, floatTol) {
				t.Errorf("event %d: weight %v, want %v", i, ev.Weight, w*stats.Rescale)
			}
			continue
		}
		scaled := ev.Weight / stats.Rescale
		if scaled != 0 && !almostEqual(scaled, 2, 1e-9) && !almostEqual(scaled, -2, 1e-9) {
			t.Errorf("event %d has weight %g, want 0 or ±2", i, scaled)
		}
	}
}

func TestUnweight_Deterministic(t *testing.T) {
	base := generateEvents(300, 14)
	a, b := copyEvents(base), copyEvents(base)
	sa := NewUnweighter(1, 99).Unweight(a)
	sb := NewUnweighter(1, 99).Unweight(b)
	if sa != sb {
		t.Errorf("stats differ: %+v vs %+v", sa, sb)
	}
	for i := range a {
		if a[i].Weight != b[i].Weight {
			t.Fatalf("event %d: %v vs %v", i, a[i].Weight, b[i].Weight)
		}
	}

	c := copyEvents(base)
	if sc := NewUnweighter(1, 100).Unweight(c); sc == sa {
		t.Error("a different seed gave identical decisions")
	}
}

func TestUnweight_AllDiscarded(t *testing.T) {
	events := []Event{{Weight: 1e-12}, {Weight: -1e-12}}
	stats := NewUnweighter(1e6, 5).Unweight(events)
	if stats.Kept == 0 {
		if stats.Rescale != 0 || events[0].Weight != 0 || events[1].Weight != 0 {
			t.Errorf("stats = %+v, events = %+v; want everything zero", stats, events)
		}
	}
}
