package cres

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
)

// SearchStrategy selects the nearest-neighbour index used within a partition.
type SearchStrategy string

const (
	// SearchTree uses a vantage-point tree. The distance must implement
	// SymmetricDistance.
	SearchTree SearchStrategy = "tree"
	// SearchLinear scans all available events. It works for any distance.
	SearchLinear SearchStrategy = "linear"
)

// PartitionStrategy selects how events are split into partitions.
type PartitionStrategy string

const (
	// PartitionVPTree splits by recursive vantage-point bisection so that
	// partitions are local in phase space.
	PartitionVPTree PartitionStrategy = "vptree"
	// PartitionModulo assigns event i to partition i mod n.
	PartitionModulo PartitionStrategy = "modulo"
)

// SeedStrategy orders the negative-weight events that seed cells.
type SeedStrategy string

const (
	SeedMostNegative  SeedStrategy = "most-negative"
	SeedLeastNegative SeedStrategy = "least-negative"
	SeedNext          SeedStrategy = "next"
)

// Redistribution selects how the pooled weight of a cell is shared among its
// members.
type Redistribution string

const (
	// RedistributeAbsolute gives each member a share proportional to its
	// absolute weight.
	RedistributeAbsolute Redistribution = "absolute"
	// RedistributeMean gives every member the same weight.
	RedistributeMean Redistribution = "mean"
)

// Options controls a resampling run.
// Start with [DefaultOptions] and override the fields you need.
type Options struct {
	// Observables controls jet clustering and which particles enter the
	// event views. Default: anti-kt, R = 0.4, MinPt = 30.
	Observables ObservableDefinition

	// WeightNorm is the factor applied to all output weights once
	// resampling is complete. Must be > 0. Default: 1.
	WeightNorm float64

	// MaxCellSize caps the cell radius: an event farther than this from the
	// seed is never absorbed. +Inf means unbounded. Must be > 0.
	// Default: +Inf.
	MaxCellSize float64

	// MaxCellMembers caps the number of events in a cell. 0 means
	// unbounded. Default: 0.
	MaxCellMembers int

	// Search selects the neighbour index. Default: "tree" when Distance is
	// symmetric (see IsSymmetric), "linear" otherwise.
	Search SearchStrategy

	// NumPartitions splits the sample into independently resampled parts.
	// Must be a power of two. Default: 1.
	NumPartitions int

	// Partitioning selects how events are assigned to partitions.
	// Default: "vptree".
	Partitioning PartitionStrategy

	// PtWeight is τ of the default distance. Ignored when Distance is set.
	// Must be >= 0. Default: 0.
	PtWeight float64

	// Distance overrides the default ScaledPtMetric. It must be safe for
	// concurrent use.
	Distance EventDistance

	// Seeds orders cell seeds. Default: "most-negative".
	Seeds SeedStrategy

	// Redistribution selects the resampling rule. Default: "absolute".
	Redistribution Redistribution

	// UnweightMinWeight enables unweighting after resampling: events with
	// smaller absolute weight are kept at this weight or discarded.
	// 0 disables it. Must be >= 0. Default: 0.
	UnweightMinWeight float64

	// UnweightSeed seeds the unweighting random generator.
	UnweightSeed uint64

	// Workers bounds the number of goroutines. 0 means runtime.NumCPU().
	Workers int

	// Logger receives progress and warnings. nil discards them.
	Logger *slog.Logger

	// Metrics, if set, is updated as the run progresses.
	Metrics *Metrics

	// Observer, if set, is called after each resampled cell.
	Observer CellObserver
}

// DefaultOptions returns Options with reasonable defaults.
func DefaultOptions() Options {
	return Options{
		Observables: ObservableDefinition{
			Jets: JetDefinition{Algorithm: AntiKt, Radius: 0.4, MinPt: 30},
		},
		WeightNorm:     1,
		MaxCellSize:    math.Inf(1),
		NumPartitions:  1,
		Partitioning:   PartitionVPTree,
		Seeds:          SeedMostNegative,
		Redistribution: RedistributeAbsolute,
	}
}

// applyDefaults fills in zero-valued option fields with their defaults.
func applyDefaults(opts *Options) {
	if opts.Observables.Jets.Algorithm == "" {
		opts.Observables.Jets.Algorithm = AntiKt
	}
	if opts.WeightNorm == 0 {
		opts.WeightNorm = 1
	}
	if opts.MaxCellSize == 0 {
		opts.MaxCellSize = math.Inf(1)
	}
	if opts.NumPartitions == 0 {
		opts.NumPartitions = 1
	}
	if opts.Partitioning == "" {
		opts.Partitioning = PartitionVPTree
	}
	if opts.Distance == nil {
		opts.Distance = ScaledPtMetric{PtWeight: opts.PtWeight}
	}
	if opts.Search == "" {
		opts.Search = defaultSearch(opts.Distance)
	}
	if opts.Seeds == "" {
		opts.Seeds = SeedMostNegative
	}
	if opts.Redistribution == "" {
		opts.Redistribution = RedistributeAbsolute
	}
	if opts.Workers == 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
}

// validateOptions checks that opts fields are valid and returns a
// *ConfigError describing the first problem found.
func validateOptions(opts *Options) error {
	if err := opts.Observables.validate(); err != nil {
		return err
	}
	if !(opts.WeightNorm > 0) || math.IsInf(opts.WeightNorm, 0) {
		return &ConfigError{Field: "WeightNorm", Reason: fmt.Sprintf("must be a positive finite number, got %g", opts.WeightNorm)}
	}
	if !(opts.MaxCellSize > 0) {
		return &ConfigError{Field: "MaxCellSize", Reason: fmt.Sprintf("must be > 0, got %g", opts.MaxCellSize)}
	}
	if opts.MaxCellMembers < 0 {
		return &ConfigError{Field: "MaxCellMembers", Reason: fmt.Sprintf("must be >= 0, got %d", opts.MaxCellMembers)}
	}
	switch opts.Search {
	case SearchTree, SearchLinear:
	default:
		return &ConfigError{Field: "Search", Reason: fmt.Sprintf("must be %q or %q, got %q", SearchTree, SearchLinear, opts.Search)}
	}
	if opts.Search == SearchTree && !IsSymmetric(opts.Distance) {
		return treeNeedsSymmetric(opts.Distance)
	}
	if !isPowerOfTwo(opts.NumPartitions) {
		return &ConfigError{Field: "NumPartitions", Reason: fmt.Sprintf("must be a power of two, got %d", opts.NumPartitions)}
	}
	switch opts.Partitioning {
	case PartitionVPTree, PartitionModulo:
	default:
		return &ConfigError{Field: "Partitioning", Reason: fmt.Sprintf("must be %q or %q, got %q", PartitionVPTree, PartitionModulo, opts.Partitioning)}
	}
	if !(opts.PtWeight >= 0) || math.IsInf(opts.PtWeight, 0) {
		return &ConfigError{Field: "PtWeight", Reason: fmt.Sprintf("must be a finite number >= 0, got %g", opts.PtWeight)}
	}
	switch opts.Seeds {
	case SeedMostNegative, SeedLeastNegative, SeedNext:
	default:
		return &ConfigError{Field: "Seeds", Reason: fmt.Sprintf("unknown seed strategy %q", opts.Seeds)}
	}
	switch opts.Redistribution {
	case RedistributeAbsolute, RedistributeMean:
	default:
		return &ConfigError{Field: "Redistribution", Reason: fmt.Sprintf("must be %q or %q, got %q", RedistributeAbsolute, RedistributeMean, opts.Redistribution)}
	}
	if !(opts.UnweightMinWeight >= 0) || math.IsInf(opts.UnweightMinWeight, 0) {
		return &ConfigError{Field: "UnweightMinWeight", Reason: fmt.Sprintf("must be a finite number >= 0, got %g", opts.UnweightMinWeight)}
	}
	if opts.Workers < 1 {
		return &ConfigError{Field: "Workers", Reason: fmt.Sprintf("must be >= 1, got %d", opts.Workers)}
	}
	return nil
}

// defaultSearch picks the tree for distances that declare symmetry.
func defaultSearch(d EventDistance) SearchStrategy {
	if IsSymmetric(d) {
		return SearchTree
	}
	return SearchLinear
}

func treeNeedsSymmetric(d EventDistance) error {
	return &ConfigError{Field: "Search", Reason: fmt.Sprintf("%q needs a symmetric distance, %T does not declare one", SearchTree, d)}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
