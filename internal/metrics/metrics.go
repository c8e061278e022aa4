package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pindiaqi_fetch_calls_total",
			Help: "Total upstream fetch attempts",
		},
		[]string{"source", "status"},
	)

	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pindiaqi_fetch_latency_seconds",
			Help:    "Upstream fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	RowsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pindiaqi_rows_ingested_total",
			Help: "Forecast rows successfully normalized and stored",
		},
		[]string{"location"},
	)

	RowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pindiaqi_rows_dropped_total",
			Help: "Raw rows dropped during normalization",
		},
		[]string{"location", "reason"},
	)

	AdvisoriesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pindiaqi_advisories_generated_total",
			Help: "Health advisories generated via the language model",
		},
		[]string{"status"},
	)
)
