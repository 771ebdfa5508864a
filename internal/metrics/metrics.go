// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transmission outcomes.
const (
	OutcomeStored    = "stored"
	OutcomeNoPayload = "no_payload"
	OutcomeDuplicate = "duplicate"
	OutcomeDecode    = "decode_error"
	OutcomeParse     = "parse_error"
	OutcomeStore     = "store_error"
)

var (
	Transmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stations_transmissions_total",
		Help: "Inbound transmissions by outcome",
	}, []string{"outcome"})
	SamplesAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stations_samples_added_total",
		Help: "Samples whose timestamp was new to the station series",
	}, []string{"station"})
	Discrepancies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stations_snapshot_discrepancies_total",
		Help: "Payloads whose snapshot disagreed with the indexed slot",
	})
	CycleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stations_cycle_failures_total",
		Help: "Ingest cycles that returned an error",
	})
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stations_cycle_duration_seconds",
		Help:    "Wall time of one ingest cycle",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stations_uploads_total",
		Help: "Artifact uploads by category and result",
	}, []string{"category", "result"})
)

func ObserveCycle(start time.Time) {
	CycleDuration.Observe(time.Since(start).Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
