package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TrevorS/cres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEvents(t *testing.T, path string, weights []float64) {
	t.Helper()
	var buf bytes.Buffer
	sink := cres.NewJSONLSink(&buf)
	for i, w := range weights {
		ev := cres.Event{
			Particles: []cres.Particle{{ID: 22, P: cres.NewFourVector(float64(i+1), 0, 0, float64(i+1))}},
			Weight:    w,
		}
		require.NoError(t, sink.WriteEvent(&ev))
	}
	require.NoError(t, sink.Flush())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestResampleCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "events.jsonl")
	out := filepath.Join(dir, "out.jsonl")
	metrics := filepath.Join(dir, "metrics.prom")
	config := filepath.Join(dir, "run.yaml")
	writeEvents(t, in, []float64{-1, 3, 2, -0.5, 1, 4})
	require.NoError(t, os.WriteFile(config, []byte("redistribution: mean\n"), 0o644))

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{
		"resample", in,
		"--config", config,
		"--out", out,
		"--metrics-file", metrics,
		"--partitions", "2",
		"--log-format", "json",
	})
	require.NoError(t, rootCmd.Execute())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	events, err := cres.ReadAll(cres.NewJSONLSource(f))
	require.NoError(t, err)
	require.Len(t, events, 6)
	sum := 0.0
	for _, ev := range events {
		sum += ev.Weight
	}
	assert.InDelta(t, 8.5, sum, 1e-9)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "cres_events_total 6")
	assert.True(t, strings.Contains(stderr.String(), `"msg":"run complete"`), stderr.String())
}

func TestNewLogger(t *testing.T) {
	defer func(level, format string) { logLevel, logFormat = level, format }(logLevel, logFormat)

	logLevel, logFormat = "debug", "text"
	_, err := newLogger(&bytes.Buffer{})
	assert.NoError(t, err)

	logLevel = "verbose"
	_, err = newLogger(&bytes.Buffer{})
	assert.Error(t, err)

	logLevel, logFormat = "info", "xml"
	_, err = newLogger(&bytes.Buffer{})
	assert.Error(t, err)
}

func TestResampleCommand_FailureKeepsOutput(t *testing.T) {
	resampleConfig, resampleMetricsFile = "", ""
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.jsonl")
	require.NoError(t, os.WriteFile(in, []byte("{\"weight\": 1}\nnot json\n"), 0o644))

	fresh := filepath.Join(dir, "fresh.jsonl")
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"resample", in, "--out", fresh})
	require.Error(t, rootCmd.Execute())
	assert.NoFileExists(t, fresh)

	existing := filepath.Join(dir, "existing.jsonl")
	require.NoError(t, os.WriteFile(existing, []byte("previous run\n"), 0o644))
	rootCmd.SetArgs([]string{"resample", in, "--out", existing})
	require.Error(t, rootCmd.Execute())
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "previous run\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary output files are removed")
}
