// Package metrics declares the prometheus collectors of the capture station.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "podoscan_cycles_total",
		Help: "Total number of completed capture cycles (both cameras read and analyzed)",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "podoscan_cycle_duration_seconds",
		Help:    "Duration of one capture cycle",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	FeetDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podoscan_feet_detected_total",
		Help: "Frames in which a dominant contour was measured, by camera",
	}, []string{"camera"})

	CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podoscan_captures_total",
		Help: "Capture-and-persist requests, by outcome",
	}, []string{"outcome"})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podoscan_uploads_total",
		Help: "Artifact uploads, by status",
	}, []string{"status"})

	UploadRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "podoscan_upload_retries_total",
		Help: "Total number of upload retries",
	})
)
