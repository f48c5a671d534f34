package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pageFetchFailures counts fetches normalized to an empty page, by
	// operation ("fetch" or "probe").
	pageFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_page_fetch_failures_total",
			Help: "Total page fetches that failed and were treated as empty",
		},
		[]string{"op"},
	)

	nextPageProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_next_page_probes_total",
			Help: "Total next-page probes by result",
		},
		[]string{"result"}, // "true", "false"
	)

	retrieveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "records_retrieve_duration_seconds",
			Help:    "Duration of a full page retrieval including the probe",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	retrieveErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_retrieve_errors_total",
			Help: "Total retrievals that failed, by operation",
		},
		[]string{"op"},
	)
)
