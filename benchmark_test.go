package cres

import (
	"context"
	"math/rand"
	"testing"
)

// generateEvents returns n events of one or (every tenth event) two photons
// with Gaussian momenta. About a third of the weights are negative.
func generateEvents(n int, seed int64) []Event {
	rng := rand.New(rand.NewSource(seed))
	events := make([]Event, n)
	for i := range events {
		nphotons := 1
		if i%10 == 9 {
			nphotons = 2
		}
		ps := make([]Particle, nphotons)
		for j := range ps {
			ps[j] = photon(rng.NormFloat64()*50, rng.NormFloat64()*50, rng.NormFloat64()*50)
		}
		w := rng.NormFloat64() + 0.5
		events[i] = Event{
			Particles:       ps,
			Weight:          w,
			SecondaryWeight: 0.5*w + 0.1*rng.NormFloat64(),
		}
	}
	return events
}

func generateViews(n int, seed int64) []*EventView {
	events := generateEvents(n, seed)
	def := DefaultOptions().Observables
	views := make([]*EventView, n)
	for i := range events {
		views[i] = BuildView(&events[i], def)
	}
	return views
}

func copyEvents(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// --- Neighbour search ---

func benchNearest(b *testing.B, strategy SearchStrategy, n int) {
	b.Helper()
	views := generateViews(n, 42)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, err := NewNeighbourSearch(strategy, ScaledPtMetric{}, views, nil)
		if err != nil {
			b.Fatal(err)
		}
		for q := 0; q < n; q += 10 {
			if _, _, err := s.Nearest(q, 1e300); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkNearest_Linear_1000(b *testing.B) { benchNearest(b, SearchLinear, 1000) }
func BenchmarkNearest_Tree_1000(b *testing.B)   { benchNearest(b, SearchTree, 1000) }
func BenchmarkNearest_Linear_5000(b *testing.B) { benchNearest(b, SearchLinear, 5000) }
func BenchmarkNearest_Tree_5000(b *testing.B)   { benchNearest(b, SearchTree, 5000) }

// --- Full pipeline ---

func benchResample(b *testing.B, n, partitions int) {
	b.Helper()
	events := generateEvents(n, 42)
	opts := DefaultOptions()
	opts.NumPartitions = partitions
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		work := copyEvents(events)
		b.StartTimer()
		if _, err := Resample(context.Background(), work, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResample_1000(b *testing.B)    { benchResample(b, 1000, 1) }
func BenchmarkResample_5000(b *testing.B)    { benchResample(b, 5000, 1) }
func BenchmarkResample_5000_P4(b *testing.B) { benchResample(b, 5000, 4) }

// --- Jet clustering ---

func BenchmarkClusterJets_50(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	momenta := make([]FourVector, 50)
	for i := range momenta {
		momenta[i] = ptEtaPhi(1+rng.Float64()*100, rng.NormFloat64()*2, rng.Float64()*6.28)
	}
	def := JetDefinition{Algorithm: AntiKt, Radius: 0.4, MinPt: 20}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ClusterJets(momenta, def)
	}
}
