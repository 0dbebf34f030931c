// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_uploads_total",
			Help: "Uploaded PDFs by outcome (queued, duplicate, rejected).",
		},
		[]string{"outcome"},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_pipeline_runs_total",
			Help: "Finished pipeline runs by final status and error kind.",
		},
		[]string{"status", "kind"},
	)

	SummaryMergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_summary_merges_total",
			Help: "Discussion merges by outcome.",
		},
		[]string{"outcome"},
	)

	ChatTurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paper_chat_turns_total",
			Help: "Answered chat turns.",
		},
	)

	ChunksMaterializedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paper_chunks_materialized_total",
			Help: "Chunks rebuilt from full text during retrieval.",
		},
	)

	RetrievalSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paper_retrieval_seconds",
			Help:    "Time spent loading and ranking chunks for one query.",
			Buckets: prometheus.DefBuckets,
		},
	)

	GenerationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paper_generation_seconds",
			Help:    "Language model call latency by provider and purpose.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"provider", "purpose"},
	)
)

func init() {
	prometheus.MustRegister(
		UploadsTotal,
		PipelineRunsTotal,
		SummaryMergesTotal,
		ChatTurnsTotal,
		ChunksMaterializedTotal,
		RetrievalSeconds,
		GenerationSeconds,
	)
}

// ObserveSince records the elapsed time since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
