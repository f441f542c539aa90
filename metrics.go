package cres

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "cres"

// Metrics holds the Prometheus instruments updated during a run. All
// operations are safe for concurrent use.
type Metrics struct {
	// EventsTotal counts events read from the source.
	EventsTotal prometheus.Counter

	// CellsTotal counts resampled cells by outcome.
	// Labels: outcome (balanced, capped)
	CellsTotal *prometheus.CounterVec

	// OverflowsTotal counts cells whose pooled weight was saturated.
	OverflowsTotal prometheus.Counter

	// CellMembers observes the number of events per cell.
	CellMembers prometheus.Histogram

	// CellRadius observes the distance from the seed to the farthest member.
	CellRadius prometheus.Histogram

	// NegativeWeightFraction is the fraction of events with negative weight.
	// Labels: stage (input, output)
	NegativeWeightFraction *prometheus.GaugeVec

	// StageDurationSeconds measures each pipeline stage.
	// Labels: stage (read, observables, partition, resample, unweight, normalize, write)
	StageDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates the run metrics and registers them on reg. It panics
// if the metrics are already registered there.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Total number of events read",
		}),
		CellsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cells_total",
			Help:      "Total number of resampled cells by outcome",
		}, []string{"outcome"}),
		OverflowsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "overflowed_cells_total",
			Help:      "Total number of cells whose pooled weight overflowed",
		}),
		CellMembers: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cell_members",
			Help:      "Number of events per cell",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		CellRadius: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cell_radius",
			Help:      "Distance from the seed to the farthest cell member",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
		}),
		NegativeWeightFraction: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "negative_weight_fraction",
			Help:      "Fraction of events with negative weight",
		}, []string{"stage"}),
		StageDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
}

// observeCell records one resampled cell. A nil receiver is a no-op.
func (m *Metrics) observeCell(c *Cell) {
	if m == nil {
		return
	}
	outcome := "balanced"
	if c.Capped {
		outcome = "capped"
	}
	m.CellsTotal.WithLabelValues(outcome).Inc()
	if c.Overflowed {
		m.OverflowsTotal.Inc()
	}
	m.CellMembers.Observe(float64(len(c.Members)))
	m.CellRadius.Observe(c.Radius)
}

func (m *Metrics) observeStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) setNegativeFraction(stage string, frac float64) {
	if m == nil {
		return
	}
	m.NegativeWeightFraction.WithLabelValues(stage).Set(frac)
}

func (m *Metrics) addEvents(n int) {
	if m == nil {
		return
	}
	m.EventsTotal.Add(float64(n))
}
