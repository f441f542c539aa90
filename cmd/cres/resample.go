package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/TrevorS/cres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	resampleConfig       string
	resampleOut          string
	resamplePartitions   int
	resampleSearch       string
	resampleMaxCellSize  string
	resamplePtWeight     float64
	resampleJetRadius    float64
	resampleJetMinPt     float64
	resampleJetAlgorithm string
	resampleSeeds        string
	resampleMetricsFile  string
)

var resampleCmd = &cobra.Command{
	Use:   "resample [flags] INPUT.jsonl...",
	Short: "Resample events read from JSON-lines files",
	Long: `Resample events read from JSON-lines files, one event per line, and
write them in the same format. With no input files, events are read from
standard input.

Flags override values from the configuration file.

Examples:
  cres resample events.jsonl --out resampled.jsonl
  cres resample --config run.yaml --partitions 8 a.jsonl b.jsonl
  cres resample --max-cell-size 50 --ptweight 0.1 < events.jsonl`,
	RunE: runResample,
}

func init() {
	f := resampleCmd.Flags()
	f.StringVar(&resampleConfig, "config", "", "YAML configuration file")
	f.StringVarP(&resampleOut, "out", "o", "", "output file (default stdout)")
	f.IntVar(&resamplePartitions, "partitions", 1, "number of partitions, a power of two")
	f.StringVar(&resampleSearch, "search", "", "neighbour search (tree, linear); default tree for symmetric distances")
	f.StringVar(&resampleMaxCellSize, "max-cell-size", "inf", "maximum cell radius")
	f.Float64Var(&resamplePtWeight, "ptweight", 0, "transverse momentum weight of the distance")
	f.Float64Var(&resampleJetRadius, "jet-radius", 0.4, "jet radius")
	f.Float64Var(&resampleJetMinPt, "jet-min-pt", 30, "minimum jet transverse momentum")
	f.StringVar(&resampleJetAlgorithm, "jet-algorithm", string(cres.AntiKt), "jet algorithm (anti-kt, kt, cambridge-aachen)")
	f.StringVar(&resampleSeeds, "seeds", string(cres.SeedMostNegative), "seed order (most-negative, least-negative, next)")
	f.StringVar(&resampleMetricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	rootCmd.AddCommand(resampleCmd)
}

// resampleFileConfig loads the configuration file, if any, and applies the
// flags that were set explicitly.
func resampleFileConfig(cmd *cobra.Command) (cres.FileConfig, error) {
	cfg := cres.DefaultFileConfig()
	if resampleConfig != "" {
		var err error
		if cfg, err = cres.LoadConfig(resampleConfig); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("partitions") {
		cfg.Partitions = resamplePartitions
	}
	if flags.Changed("search") {
		cfg.Search = cres.SearchStrategy(resampleSearch)
	}
	if flags.Changed("max-cell-size") {
		cfg.MaxCellSize = resampleMaxCellSize
	}
	if flags.Changed("ptweight") {
		cfg.PtWeight = resamplePtWeight
	}
	if flags.Changed("jet-radius") {
		cfg.Observables.Jets.Radius = resampleJetRadius
	}
	if flags.Changed("jet-min-pt") {
		cfg.Observables.Jets.MinPt = resampleJetMinPt
	}
	if flags.Changed("jet-algorithm") {
		cfg.Observables.Jets.Algorithm = cres.JetAlgorithm(resampleJetAlgorithm)
	}
	if flags.Changed("seeds") {
		cfg.Seeds = cres.SeedStrategy(resampleSeeds)
	}
	return cfg, nil
}

func runResample(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg, err := resampleFileConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Logger = logger

	var reg *prometheus.Registry
	if resampleMetricsFile != "" {
		reg = prometheus.NewRegistry()
		opts.Metrics = cres.NewMetrics(reg)
	}

	in, closeIn, err := openInputs(cmd, args)
	if err != nil {
		return err
	}
	defer closeIn()

	var (
		out  io.Writer = cmd.OutOrStdout()
		file *outputFile
	)
	if resampleOut != "" {
		if file, err = createOutput(resampleOut); err != nil {
			return err
		}
		defer file.Discard()
		out = file
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := cres.NewEngine(opts)
	if err != nil {
		return err
	}
	report, err := eng.Run(ctx, cres.NewJSONLSource(in), cres.NewJSONLSink(out))
	if err != nil {
		return err
	}
	if file != nil {
		if err := file.Commit(); err != nil {
			return err
		}
	}
	logger.Info("run complete",
		slog.String("run_id", report.RunID),
		slog.Int("events", report.Events),
		slog.Int("cells", report.Cells),
		slog.Int("capped_cells", report.CappedCells),
		slog.Float64("negative_fraction_before", report.Before.NegativeFraction),
		slog.Float64("negative_fraction_after", report.After.NegativeFraction))
	for _, w := range report.Warnings {
		logger.Warn(w.String())
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(resampleMetricsFile, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

// openInputs concatenates the input files, or returns standard input when
// there are none.
func openInputs(cmd *cobra.Command, paths []string) (io.Reader, func(), error) {
	if len(paths) == 0 {
		return cmd.InOrStdin(), func() {}, nil
	}
	var (
		readers []io.Reader
		files   []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("opening input: %w", err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}
	return io.MultiReader(readers...), closeAll, nil
}
