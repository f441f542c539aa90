package cres

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Report summarises a resampling run.
type Report struct {
	// RunID identifies the run in logs.
	RunID string

	Events     int
	Partitions int

	// Cells counts resampled cells. CappedCells of them stopped growing
	// with a negative pooled weight and OverflowedCells had their pooled
	// weight saturated.
	Cells           int
	CappedCells     int
	OverflowedCells int

	// Warnings lists recoverable per-cell problems, ordered by partition.
	Warnings []CellWarning

	// Before and After describe the sample, normalized, before and after
	// resampling.
	Before XSection
	After  XSection

	// MedianCellRadius is the median radius over all cells, 0 without cells.
	MedianCellRadius float64

	// NormFactor is the factor applied to all output weights.
	NormFactor float64

	// Unweight is set when unweighting ran.
	Unweight *UnweightStats
}

// Engine runs cell resampling with a fixed set of options. It may be reused
// for several runs but not concurrently.
type Engine struct {
	opts Options

	mu      sync.Mutex
	lastErr error
}

// NewEngine applies defaults to opts and validates them. It returns a
// *ConfigError if an option is invalid.
func NewEngine(opts Options) (*Engine, error) {
	applyDefaults(&opts)
	if err := validateOptions(&opts); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// LastError returns the error of the most recent failed run, or nil if no
// run has failed.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Engine) fail(err error) error {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
	return err
}

// Run reads every event from src, resamples them and writes them to sink in
// input order. Nothing is written if the run fails.
func (e *Engine) Run(ctx context.Context, src EventSource, sink EventSink) (*Report, error) {
	start := time.Now()
	events, err := ReadAll(src)
	if err != nil {
		return nil, e.fail(fmt.Errorf("cres: reading events: %w", err))
	}
	e.opts.Metrics.observeStage("read", time.Since(start).Seconds())

	report, err := e.Resample(ctx, events)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	for i := range events {
		if err := sink.WriteEvent(&events[i]); err != nil {
			return nil, e.fail(fmt.Errorf("cres: writing events: %w", err))
		}
	}
	if err := sink.Flush(); err != nil {
		return nil, e.fail(fmt.Errorf("cres: writing events: %w", err))
	}
	e.opts.Metrics.observeStage("write", time.Since(start).Seconds())
	return report, nil
}

// Resample resamples events in place. Event IDs are overwritten with the
// position in events. If the run fails, both weights of every event are
// restored to their input values.
func (e *Engine) Resample(ctx context.Context, events []Event) (*Report, error) {
	saved := snapshotWeights(events)
	report, err := e.resample(ctx, events)
	if err != nil {
		saved.restore(events)
		return nil, e.fail(err)
	}
	return report, nil
}

// weightSnapshot holds the primary and secondary weight of each event,
// interleaved.
type weightSnapshot []float64

func snapshotWeights(events []Event) weightSnapshot {
	s := make(weightSnapshot, 2*len(events))
	for i := range events {
		s[2*i] = events[i].Weight
		s[2*i+1] = events[i].SecondaryWeight
	}
	return s
}

func (s weightSnapshot) restore(events []Event) {
	for i := range events {
		events[i].Weight = s[2*i]
		events[i].SecondaryWeight = s[2*i+1]
	}
}

// Resample is a convenience wrapper that runs a new Engine over events in
// memory.
func Resample(ctx context.Context, events []Event, opts Options) (*Report, error) {
	eng, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}
	return eng.Resample(ctx, events)
}

func (e *Engine) resample(ctx context.Context, events []Event) (*Report, error) {
	opts := &e.opts
	report := &Report{
		RunID:      uuid.NewString(),
		Events:     len(events),
		Partitions: opts.NumPartitions,
		NormFactor: opts.WeightNorm,
	}
	log := opts.Logger.With(slog.String("run_id", report.RunID))

	for i := range events {
		events[i].ID = i
		if w := events[i].Weight; math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: event %d has weight %g", ErrInvalidWeight, i, w)
		}
		if w := events[i].SecondaryWeight; math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: event %d has secondary weight %g", ErrInvalidWeight, i, w)
		}
	}
	opts.Metrics.addEvents(len(events))
	report.Before = CrossSection(events, opts.WeightNorm)
	opts.Metrics.setNegativeFraction("input", report.Before.NegativeFraction)
	log.Info("read events",
		slog.Int("events", len(events)),
		slog.Float64("xs", report.Before.Value),
		slog.Float64("xs_err", report.Before.Error),
		slog.Float64("negative_fraction", report.Before.NegativeFraction))

	start := time.Now()
	views, err := buildViews(ctx, events, opts.Observables, opts.Workers)
	if err != nil {
		return nil, err
	}
	opts.Metrics.observeStage("observables", time.Since(start).Seconds())

	start = time.Now()
	parts, err := Partition(views, opts.NumPartitions, opts.Partitioning, opts.Distance)
	if err != nil {
		return nil, fmt.Errorf("cres: partitioning: %w", err)
	}
	opts.Metrics.observeStage("partition", time.Since(start).Seconds())
	log.Info("partitioned events", slog.Int("partitions", len(parts.Members)), slog.String("strategy", string(opts.Partitioning)))

	start = time.Now()
	results, err := resamplePartitions(ctx, events, views, parts, opts)
	if err != nil {
		return nil, err
	}
	opts.Metrics.observeStage("resample", time.Since(start).Seconds())

	var radii []float64
	for _, r := range results {
		report.Cells += r.cells
		report.CappedCells += r.capped
		report.OverflowedCells += r.overflowed
		report.Warnings = append(report.Warnings, r.warnings...)
		radii = append(radii, r.radii...)
	}
	report.MedianCellRadius = medianRadius(radii)
	log.Info("resampled cells",
		slog.Int("cells", report.Cells),
		slog.Float64("median_radius", report.MedianCellRadius))
	if report.CappedCells > 0 {
		log.Warn("cells stopped growing with negative weight", slog.Int("capped", report.CappedCells))
	}

	if opts.UnweightMinWeight > 0 {
		start = time.Now()
		stats := NewUnweighter(opts.UnweightMinWeight, opts.UnweightSeed).Unweight(events)
		report.Unweight = &stats
		opts.Metrics.observeStage("unweight", time.Since(start).Seconds())
		log.Info("unweighted events", slog.Int("kept", stats.Kept), slog.Int("discarded", stats.Discarded))
		if stats.Rescale == 0 {
			log.Warn("sum of weights is zero after unweighting")
		}
	}

	start = time.Now()
	norm, err := NewNormalizer(opts.WeightNorm)
	if err != nil {
		return nil, err
	}
	if err := norm.Apply(events); err != nil {
		return nil, err
	}
	opts.Metrics.observeStage("normalize", time.Since(start).Seconds())

	report.After = CrossSection(events, 1)
	opts.Metrics.setNegativeFraction("output", report.After.NegativeFraction)
	log.Info("finished",
		slog.Float64("xs", report.After.Value),
		slog.Float64("xs_err", report.After.Error),
		slog.Float64("negative_fraction", report.After.NegativeFraction))
	return report, nil
}

// buildViews computes the event views using up to workers goroutines, each
// handling a contiguous range of events.
func buildViews(ctx context.Context, events []Event, def ObservableDefinition, workers int) ([]*EventView, error) {
	views := make([]*EventView, len(events))
	n := len(events)
	if n == 0 {
		return views, nil
	}
	per := (n + workers - 1) / workers

	g, gCtx := errgroup.WithContext(ctx)
	for start := 0; start < n; start += per {
		end := min(start+per, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%1024 == 0 {
					if err := gCtx.Err(); err != nil {
						return err
					}
				}
				views[i] = BuildView(&events[i], def)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// resamplePartitions resamples every partition on its own goroutine. The
// first failure cancels the remaining partitions.
func resamplePartitions(ctx context.Context, events []Event, views []*EventView, parts Partitioning, opts *Options) ([]*partitionResult, error) {
	results := make([]*partitionResult, len(parts.Members))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for p, members := range parts.Members {
		g.Go(func() error {
			pe := make([]*Event, len(members))
			pv := make([]*EventView, len(members))
			for i, idx := range members {
				pe[i] = &events[idx]
				pv[i] = views[idx]
			}
			res, err := resamplePartition(gCtx, p, pe, pv, opts)
			if err != nil {
				return err
			}
			results[p] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func medianRadius(radii []float64) float64 {
	if len(radii) == 0 {
		return 0
	}
	sorted := make([]float64, len(radii))
	copy(sorted, radii)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
