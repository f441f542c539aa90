package cres

import (
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

const defaultLeafSize = 8

// vpNode is one node of a vantage-point tree over idxArray[IdxStart:IdxEnd].
// For an internal node idxArray[IdxStart] is the vantage point, the inside
// child holds the closer half of the remaining events and the outside child
// the farther half.
type vpNode struct {
	IdxStart, IdxEnd int
	IsLeaf           bool
	// InnerMax is the largest vantage distance in the inside child and
	// OuterMin the smallest in the outside child.
	InnerMax, OuterMin float64
	Inside, Outside    int // child node indices, -1 if empty
	Parent             int
	live               int // available events in this subtree
}

// vpTree is a vantage-point tree that supports removal. Every node tracks
// how many of its events are still available so that exhausted subtrees are
// skipped without visiting them.
type vpTree struct {
	m        *eventMetric
	leafSize int
	idxArray []int // permutation: tree-order position → partition index
	nodes    []vpNode
	owner    []int // node that holds each event
	avail    *bitset.BitSet
	cache    rowCache
}

func newVPTree(m *eventMetric, leafSize int) (*vpTree, error) {
	if leafSize < 1 {
		leafSize = 1
	}
	n := m.len()
	t := &vpTree{
		m:        m,
		leafSize: leafSize,
		idxArray: make([]int, n),
		owner:    make([]int, n),
		avail:    bitset.New(uint(n)),
		cache:    newRowCache(n),
	}
	for i := range t.idxArray {
		t.idxArray[i] = i
		t.avail.Set(uint(i))
	}
	if n > 0 {
		if _, err := t.buildNode(-1, 0, n); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// buildNode recursively builds the subtree for idxArray[start:end] and
// returns its node index.
func (t *vpTree) buildNode(parent, start, end int) (int, error) {
	id := len(t.nodes)
	t.nodes = append(t.nodes, vpNode{
		IdxStart: start, IdxEnd: end,
		Inside: -1, Outside: -1, Parent: parent,
		live: end - start,
	})

	if end-start <= t.leafSize {
		t.nodes[id].IsLeaf = true
		for _, i := range t.idxArray[start:end] {
			t.owner[i] = id
		}
		return id, nil
	}

	// The last event is the farthest from the parent's vantage point.
	sub := t.idxArray[start:end]
	sub[0], sub[len(sub)-1] = sub[len(sub)-1], sub[0]
	vantage := sub[0]
	t.owner[vantage] = id

	rest := sub[1:]
	dist := make([]float64, len(rest))
	for k, i := range rest {
		d, err := t.m.between(vantage, i)
		if err != nil {
			return 0, err
		}
		dist[k] = d
	}
	sort.Sort(byVantageDist{idx: rest, dist: dist})

	mid := (len(rest) + 1) / 2
	t.nodes[id].InnerMax = dist[mid-1]
	t.nodes[id].OuterMin = math.Inf(1)

	inside, err := t.buildNode(id, start+1, start+1+mid)
	if err != nil {
		return 0, err
	}
	t.nodes[id].Inside = inside
	if mid < len(rest) {
		t.nodes[id].OuterMin = dist[mid]
		outside, err := t.buildNode(id, start+1+mid, end)
		if err != nil {
			return 0, err
		}
		t.nodes[id].Outside = outside
	}
	return id, nil
}

// byVantageDist sorts event indices by distance, ties by index.
type byVantageDist struct {
	idx  []int
	dist []float64
}

func (s byVantageDist) Len() int { return len(s.idx) }
func (s byVantageDist) Less(i, j int) bool {
	if s.dist[i] != s.dist[j] {
		return s.dist[i] < s.dist[j]
	}
	return s.idx[i] < s.idx[j]
}
func (s byVantageDist) Swap(i, j int) {
	s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	s.dist[i], s.dist[j] = s.dist[j], s.dist[i]
}

func (t *vpTree) NearestK(query, k int, maxDist float64) ([]Neighbour, error) {
	if k <= 0 || len(t.nodes) == 0 {
		return nil, nil
	}
	h := &knnHeap{}
	if err := t.knnSearch(0, query, k, maxDist, h); err != nil {
		return nil, err
	}
	return h.sorted(), nil
}

// knnSearch visits the nearer child first and skips a child only when its
// lower bound is strictly beyond the current k-th distance, so equally
// distant events with lower index are never missed. The bounds compare
// d(query, vantage) with distances measured from the vantage point, which
// is only sound for a SymmetricDistance.
func (t *vpTree) knnSearch(nodeID, query, k int, maxDist float64, h *knnHeap) error {
	node := &t.nodes[nodeID]
	if node.live == 0 {
		return nil
	}

	if node.IsLeaf {
		for _, i := range t.idxArray[node.IdxStart:node.IdxEnd] {
			if i == query || !t.avail.Test(uint(i)) {
				continue
			}
			d, err := t.cache.distance(t.m, query, i)
			if err != nil {
				return err
			}
			if admissible(d, maxDist) {
				h.offer(k, Neighbour{Index: i, Dist: d})
			}
		}
		return nil
	}

	vantage := t.idxArray[node.IdxStart]
	dv, err := t.cache.distance(t.m, query, vantage)
	if err != nil {
		return err
	}
	if vantage != query && t.avail.Test(uint(vantage)) && admissible(dv, maxDist) {
		h.offer(k, Neighbour{Index: vantage, Dist: dv})
	}

	insideBound := lowerBound(dv, node.InnerMax)
	outsideBound := lowerBound(node.OuterMin, dv)
	first, second := node.Inside, node.Outside
	firstBound, secondBound := insideBound, outsideBound
	if outsideBound < insideBound {
		first, second = second, first
		firstBound, secondBound = secondBound, firstBound
	}

	if first >= 0 && !(firstBound > h.bound(k, maxDist)) {
		if err := t.knnSearch(first, query, k, maxDist, h); err != nil {
			return err
		}
	}
	if second >= 0 && !(secondBound > h.bound(k, maxDist)) {
		if err := t.knnSearch(second, query, k, maxDist, h); err != nil {
			return err
		}
	}
	return nil
}

// lowerBound returns max(a-b, 0), treating the undefined ∞-∞ as no bound.
func lowerBound(a, b float64) float64 {
	d := a - b
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

func (t *vpTree) Nearest(query int, maxDist float64) (Neighbour, bool, error) {
	return nearestOf(t, query, maxDist)
}

func (t *vpTree) Remove(i int) {
	if !t.avail.Test(uint(i)) {
		return
	}
	t.avail.Clear(uint(i))
	for n := t.owner[i]; n >= 0; n = t.nodes[n].Parent {
		t.nodes[n].live--
	}
}

func (t *vpTree) Available(i int) bool { return t.avail.Test(uint(i)) }
func (t *vpTree) Len() int             { return int(t.avail.Count()) }
