package cres

import "sort"

// selectSeeds returns the indices of the negative weights in the order in
// which they seed cells. Ties are broken by index.
func selectSeeds(weights []float64, strategy SeedStrategy) []int {
	var seeds []int
	for i, w := range weights {
		if w < 0 {
			seeds = append(seeds, i)
		}
	}
	switch strategy {
	case SeedMostNegative, "":
		sort.SliceStable(seeds, func(a, b int) bool { return weights[seeds[a]] < weights[seeds[b]] })
	case SeedLeastNegative:
		sort.SliceStable(seeds, func(a, b int) bool { return weights[seeds[a]] > weights[seeds[b]] })
	case SeedNext:
	}
	return seeds
}
