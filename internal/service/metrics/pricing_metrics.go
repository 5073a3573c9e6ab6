package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EstimateLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agripull",
			Subsystem: "pricing",
			Name:      "estimate_latency_seconds",
			Help:      "Latency of the estimate path",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"cache"},
	)

	EstimateErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agripull",
			Subsystem: "pricing",
			Name:      "estimate_errors_total",
			Help:      "Errors on the estimate path",
		},
		[]string{"stage"},
	)

	CalibrationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agripull",
			Subsystem: "pricing",
			Name:      "calibration_locations_total",
			Help:      "Calibration outcomes per location",
		},
		[]string{"outcome"}, // updated | skipped | failed
	)

	CalibrationSigma = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "agripull",
			Subsystem: "pricing",
			Name:      "sigma",
			Help:      "Last calibrated residual sigma per location",
		},
		[]string{"location"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EstimateLatency, EstimateErrors, CalibrationRuns, CalibrationSigma)
	})
}
