package cres

import (
	"sort"
	"sync"
)

// CellCollector is a CellObserver that keeps a bounded sample of cells for
// inspection: the first cells reported and the largest ones by radius, by
// member count and by pooled weight. It is safe for concurrent use. With
// several partitions the reporting order, and therefore First, depends on
// scheduling.
type CellCollector struct {
	limit int

	mu        sync.Mutex
	count     int
	first     []CellSummary
	byRadius  []CellSummary
	byMembers []CellSummary
	byWeight  []CellSummary
}

// NewCellCollector returns a collector keeping up to limit cells per
// category. limit <= 0 selects 10.
func NewCellCollector(limit int) *CellCollector {
	if limit <= 0 {
		limit = 10
	}
	return &CellCollector{limit: limit}
}

func (c *CellCollector) ObserveCell(s CellSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
	if len(c.first) < c.limit {
		c.first = append(c.first, s)
	}
	c.byRadius = keepLargest(c.byRadius, s, c.limit, func(s CellSummary) float64 { return s.Radius })
	c.byMembers = keepLargest(c.byMembers, s, c.limit, func(s CellSummary) float64 { return float64(len(s.Members)) })
	c.byWeight = keepLargest(c.byWeight, s, c.limit, func(s CellSummary) float64 { return s.WeightBefore })
}

// keepLargest inserts s into list, kept in descending key order, and trims
// it to limit entries. Among equal keys the earlier cell stays first.
func keepLargest(list []CellSummary, s CellSummary, limit int, key func(CellSummary) float64) []CellSummary {
	k := key(s)
	pos := sort.Search(len(list), func(i int) bool { return key(list[i]) < k })
	if pos >= limit {
		return list
	}
	list = append(list, CellSummary{})
	copy(list[pos+1:], list[pos:])
	list[pos] = s
	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

// Count returns the number of cells observed.
func (c *CellCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// First returns the first cells reported.
func (c *CellCollector) First() []CellSummary { return c.snapshot(&c.first) }

// LargestByRadius returns the cells with the largest radius, largest first.
func (c *CellCollector) LargestByRadius() []CellSummary { return c.snapshot(&c.byRadius) }

// LargestByMembers returns the cells with the most members, largest first.
func (c *CellCollector) LargestByMembers() []CellSummary { return c.snapshot(&c.byMembers) }

// LargestByWeight returns the cells with the largest pooled weight before
// resampling, largest first.
func (c *CellCollector) LargestByWeight() []CellSummary { return c.snapshot(&c.byWeight) }

func (c *CellCollector) snapshot(list *[]CellSummary) []CellSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CellSummary, len(*list))
	copy(out, *list)
	return out
}

// EventCells maps each event ID to the collected cells it belongs to,
// identified by their seed.
func (c *CellCollector) EventCells() map[int][]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[int]bool)
	out := make(map[int][]int)
	for _, list := range [][]CellSummary{c.first, c.byRadius, c.byMembers, c.byWeight} {
		for _, s := range list {
			if seen[s.Seed] {
				continue
			}
			seen[s.Seed] = true
			for _, m := range s.Members {
				out[m] = append(out[m], s.Seed)
			}
		}
	}
	return out
}
