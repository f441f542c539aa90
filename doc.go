// Package cres implements cell resampling for weighted Monte Carlo event
// samples.
//
// Event generators at higher perturbative orders produce events with
// negative weights. Cell resampling groups each negative-weight event with
// its nearest neighbours in phase space until the summed weight of the group
// (a cell) is no longer negative, then shares that sum among the members.
// The total cross section is preserved exactly while most negative weights
// disappear.
//
// Basic usage:
//
//	opts := cres.DefaultOptions()
//	opts.PtWeight = 0.1
//	report, err := cres.Resample(ctx, events, opts)
//	// events now carry resampled weights
//	// report.After.NegativeFraction is the remaining negative-weight fraction
//
// For streaming input, build an Engine and pass an EventSource and
// EventSink:
//
//	eng, err := cres.NewEngine(opts)
//	report, err := eng.Run(ctx, cres.NewJSONLSource(in), cres.NewJSONLSink(out))
//
// # Distances
//
// Events are compared through their EventView, the final-state objects after
// jet clustering grouped by type. The default ScaledPtMetric sums momentum
// differences of optimally paired objects. Any EventDistance can be
// supplied instead; use WithContext to bind read-only data to a function.
// The tree search strategy assumes the distance satisfies the triangle
// inequality; use SearchLinear otherwise.
//
// # Partitions
//
// Set Options.NumPartitions to a power of two to split the sample into
// regions of phase space that are resampled in parallel:
//
//	opts.NumPartitions = 8
//	opts.Partitioning = cres.PartitionVPTree // default
package cres
