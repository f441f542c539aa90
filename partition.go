package cres

import (
	"fmt"
	"math/bits"
	"sort"
)

// Partitioning assigns every event to exactly one partition.
type Partitioning struct {
	// Assignment[i] is the partition of event i.
	Assignment []int
	// Members[p] lists the events of partition p in ascending order.
	Members [][]int
}

// Partition splits the events behind views into n partitions. n must be a
// power of two. The result depends only on the views, their order and the
// distance, never on scheduling.
func Partition(views []*EventView, n int, strategy PartitionStrategy, dist EventDistance) (Partitioning, error) {
	if !isPowerOfTwo(n) {
		return Partitioning{}, &ConfigError{Field: "NumPartitions", Reason: fmt.Sprintf("must be a power of two, got %d", n)}
	}
	assignment := make([]int, len(views))
	switch strategy {
	case PartitionModulo:
		for i := range assignment {
			assignment[i] = i % n
		}
	case PartitionVPTree, "":
		if n > 1 {
			ids := make([]int, len(views))
			for i := range ids {
				ids[i] = i
			}
			m := &eventMetric{dist: dist, views: views, ids: ids}
			if err := bisectPartition(m, assignment, n); err != nil {
				return Partitioning{}, err
			}
		}
	default:
		return Partitioning{}, &ConfigError{Field: "Partitioning", Reason: fmt.Sprintf("unknown strategy %q", strategy)}
	}

	members := make([][]int, n)
	for i, p := range assignment {
		members[p] = append(members[p], i)
	}
	return Partitioning{Assignment: assignment, Members: members}, nil
}

// bisectPartition fills assignment by recursive vantage-point bisection with
// depth log2(n). The first vantage point is the event farthest from event 0.
func bisectPartition(m *eventMetric, assignment []int, n int) error {
	if m.len() == 0 {
		return nil
	}
	order := make([]int, m.len())
	for i := range order {
		order[i] = i
	}
	corner, err := findCorner(m, order)
	if err != nil {
		return err
	}
	last := len(order) - 1
	order[corner], order[last] = order[last], order[corner]

	depth := bits.TrailingZeros(uint(n))
	region := 0
	var split func(s []int, depth int) error
	split = func(s []int, depth int) error {
		if depth == 0 {
			for _, i := range s {
				assignment[i] = region
			}
			region++
			return nil
		}
		if len(s) >= 2 {
			// The last element is the farthest from the enclosing vantage
			// point and becomes the vantage point of this region.
			s[0], s[len(s)-1] = s[len(s)-1], s[0]
			if err := sortByDistance(m, s[0], s[1:]); err != nil {
				return err
			}
		}
		mid := len(s) / 2
		if err := split(s[:mid], depth-1); err != nil {
			return err
		}
		return split(s[mid:], depth-1)
	}
	return split(order, depth)
}

// findCorner returns the position in order of the event farthest from
// order[0], or 0 if there is only one event.
func findCorner(m *eventMetric, order []int) (int, error) {
	best, bestDist := 0, -1.0
	for pos := 1; pos < len(order); pos++ {
		d, err := m.between(order[0], order[pos])
		if err != nil {
			return 0, err
		}
		if d > bestDist {
			best, bestDist = pos, d
		}
	}
	return best, nil
}

// sortByDistance orders s by ascending distance to centre, ties by index.
func sortByDistance(m *eventMetric, centre int, s []int) error {
	dist := make(map[int]float64, len(s))
	for _, i := range s {
		d, err := m.between(centre, i)
		if err != nil {
			return err
		}
		dist[i] = d
	}
	sort.Slice(s, func(a, b int) bool {
		da, db := dist[s[a]], dist[s[b]]
		if da != db {
			return da < db
		}
		return s[a] < s[b]
	})
	return nil
}
