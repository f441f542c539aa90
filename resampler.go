package cres

import (
	"context"
	"fmt"
	"log/slog"
)

// CellSummary describes one resampled cell. Event references are event IDs.
type CellSummary struct {
	Partition    int
	Seed         int
	Members      []int
	Radius       float64
	WeightBefore float64
	Capped       bool
	Overflowed   bool
}

// CellObserver is notified after every resampled cell. Cells of different
// partitions are reported concurrently, so implementations must be safe for
// concurrent use.
type CellObserver interface {
	ObserveCell(CellSummary)
}

// CellObserverFunc adapts a plain function into a CellObserver.
type CellObserverFunc func(CellSummary)

func (f CellObserverFunc) ObserveCell(s CellSummary) { f(s) }

// partitionResult is the bookkeeping of one resampled partition.
type partitionResult struct {
	cells      int
	capped     int
	overflowed int
	radii      []float64
	warnings   []CellWarning
}

// resamplePartition runs cell resampling over the events of one partition,
// modifying their weights in place. events and views are aligned; positions
// within them are the partition-local indices used by the neighbour index.
// Cancellation is checked between cells.
func resamplePartition(ctx context.Context, part int, events []*Event, views []*EventView, opts *Options) (*partitionResult, error) {
	ids := make([]int, len(events))
	weights := make([]float64, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
		weights[i] = ev.Weight
	}
	log := opts.Logger.With(slog.Int("partition", part))

	search, err := NewNeighbourSearch(opts.Search, opts.Distance, views, ids)
	if err != nil {
		return nil, fmt.Errorf("cres: partition %d: building neighbour index: %w", part, err)
	}
	lim := cellLimits{maxRadius: opts.MaxCellSize, maxMembers: opts.MaxCellMembers}

	res := &partitionResult{}
	for _, seed := range selectSeeds(weights, opts.Seeds) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Only absorbed events change weight, and they are no longer
		// available.
		if !search.Available(seed) || events[seed].Weight >= 0 {
			continue
		}

		c, err := growCell(search, seed, weights, lim)
		if err != nil {
			return nil, fmt.Errorf("cres: partition %d, cell seeded by event %d: %w", part, ids[seed], err)
		}
		if err := resampleCell(c, events, opts.Redistribution); err != nil {
			return nil, fmt.Errorf("cres: partition %d, cell seeded by event %d: %w", part, ids[seed], err)
		}

		res.cells++
		res.radii = append(res.radii, c.Radius)
		if c.Capped {
			res.capped++
		}
		if c.Overflowed {
			res.overflowed++
			w := CellWarning{Partition: part, Seed: ids[seed], Message: "pooled weight overflowed and was saturated"}
			res.warnings = append(res.warnings, w)
			log.Warn("cell weight overflow", slog.Int("seed", ids[seed]), slog.Int("members", len(c.Members)))
		}
		log.Debug("resampled cell",
			slog.Int("seed", ids[seed]),
			slog.Int("members", len(c.Members)),
			slog.Float64("radius", c.Radius),
			slog.Float64("weight", c.WeightBefore),
			slog.Bool("capped", c.Capped))

		opts.Metrics.observeCell(c)
		if opts.Observer != nil {
			members := make([]int, len(c.Members))
			for i, m := range c.Members {
				members[i] = ids[m]
			}
			opts.Observer.ObserveCell(CellSummary{
				Partition:    part,
				Seed:         ids[seed],
				Members:      members,
				Radius:       c.Radius,
				WeightBefore: c.WeightBefore,
				Capped:       c.Capped,
				Overflowed:   c.Overflowed,
			})
		}
	}
	return res, nil
}
