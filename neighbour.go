package cres

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
)

// Neighbour is a search result: an event index within the partition and its
// distance to the query.
type Neighbour struct {
	Index int
	Dist  float64
}

// closer orders neighbours by distance, ties by index.
func (n Neighbour) closer(o Neighbour) bool {
	if n.Dist != o.Dist {
		return n.Dist < o.Dist
	}
	return n.Index < o.Index
}

// NeighbourSearch finds the nearest still-available events of one
// partition. Indices are positions within the partition. Implementations are
// used from a single goroutine.
//
// Events at infinite distance from the query are never returned, and the
// query itself is never its own neighbour.
type NeighbourSearch interface {
	// NearestK returns up to k available events within maxDist of query,
	// ordered by distance, ties by index.
	NearestK(query, k int, maxDist float64) ([]Neighbour, error)

	// Nearest returns the closest available event within maxDist of query.
	Nearest(query int, maxDist float64) (Neighbour, bool, error)

	// Remove marks event i as no longer available.
	Remove(i int)

	// Available reports whether event i can still be returned.
	Available(i int) bool

	// Len returns the number of available events.
	Len() int
}

// NewNeighbourSearch builds the index selected by strategy over all views.
// An empty strategy selects the tree for symmetric distances and the linear
// scan otherwise. SearchTree with a distance that is not symmetric is a
// *ConfigError.
// ids maps positions to event IDs for error reports; nil means positions are
// the IDs.
func NewNeighbourSearch(strategy SearchStrategy, dist EventDistance, views []*EventView, ids []int) (NeighbourSearch, error) {
	if ids == nil {
		ids = make([]int, len(views))
		for i := range ids {
			ids[i] = i
		}
	}
	if strategy == "" {
		strategy = defaultSearch(dist)
	}
	m := &eventMetric{dist: dist, views: views, ids: ids}
	switch strategy {
	case SearchLinear:
		return newLinearSearch(m), nil
	case SearchTree:
		if !IsSymmetric(dist) {
			return nil, treeNeedsSymmetric(dist)
		}
		return newVPTree(m, defaultLeafSize)
	}
	return nil, &ConfigError{Field: "Search", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
}

// rowCache memoises the distances from the most recent query. Cells grow
// around a fixed seed, so consecutive queries usually share it.
type rowCache struct {
	query int
	row   []float64
	known *bitset.BitSet
}

func newRowCache(n int) rowCache {
	return rowCache{query: -1, row: make([]float64, n), known: bitset.New(uint(n))}
}

func (c *rowCache) distance(m *eventMetric, q, i int) (float64, error) {
	if q != c.query {
		c.query = q
		c.known.ClearAll()
	}
	if c.known.Test(uint(i)) {
		return c.row[i], nil
	}
	d, err := m.between(q, i)
	if err != nil {
		return 0, err
	}
	c.row[i] = d
	c.known.Set(uint(i))
	return d, nil
}

// knnHeap is a max-heap of neighbours (farthest on top) used as a bounded
// priority queue for k-nearest queries.
type knnHeap []Neighbour

func (h knnHeap) Len() int            { return len(h) }
func (h knnHeap) Less(i, j int) bool  { return h[j].closer(h[i]) }
func (h knnHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *knnHeap) Push(x interface{}) { *h = append(*h, x.(Neighbour)) }
func (h *knnHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// offer adds nb if it is among the k closest seen so far.
func (h *knnHeap) offer(k int, nb Neighbour) {
	if h.Len() < k {
		heap.Push(h, nb)
	} else if nb.closer((*h)[0]) {
		(*h)[0] = nb
		heap.Fix(h, 0)
	}
}

// bound reports the distance a candidate must not exceed to enter the heap.
func (h knnHeap) bound(k int, maxDist float64) float64 {
	if len(h) < k {
		return maxDist
	}
	return math.Min(maxDist, h[0].Dist)
}

// sorted drains the heap into ascending order.
func (h *knnHeap) sorted() []Neighbour {
	out := make([]Neighbour, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Neighbour)
	}
	return out
}

// admissible reports whether a candidate at distance d may be returned.
func admissible(d, maxDist float64) bool {
	return !math.IsInf(d, 1) && d <= maxDist
}

// linearSearch scans every available event.
type linearSearch struct {
	m     *eventMetric
	avail *bitset.BitSet
	cache rowCache
}

func newLinearSearch(m *eventMetric) *linearSearch {
	avail := bitset.New(uint(m.len()))
	for i := 0; i < m.len(); i++ {
		avail.Set(uint(i))
	}
	return &linearSearch{m: m, avail: avail, cache: newRowCache(m.len())}
}

func (s *linearSearch) NearestK(query, k int, maxDist float64) ([]Neighbour, error) {
	if k <= 0 {
		return nil, nil
	}
	h := &knnHeap{}
	for i, ok := s.avail.NextSet(0); ok; i, ok = s.avail.NextSet(i + 1) {
		if int(i) == query {
			continue
		}
		d, err := s.cache.distance(s.m, query, int(i))
		if err != nil {
			return nil, err
		}
		if admissible(d, maxDist) {
			h.offer(k, Neighbour{Index: int(i), Dist: d})
		}
	}
	return h.sorted(), nil
}

func (s *linearSearch) Nearest(query int, maxDist float64) (Neighbour, bool, error) {
	return nearestOf(s, query, maxDist)
}

func (s *linearSearch) Remove(i int)         { s.avail.Clear(uint(i)) }
func (s *linearSearch) Available(i int) bool { return s.avail.Test(uint(i)) }
func (s *linearSearch) Len() int             { return int(s.avail.Count()) }

func nearestOf(s NeighbourSearch, query int, maxDist float64) (Neighbour, bool, error) {
	nbs, err := s.NearestK(query, 1, maxDist)
	if err != nil || len(nbs) == 0 {
		return Neighbour{}, false, err
	}
	return nbs[0], true, nil
}
