package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeDetected labels detections that cleared the confidence floor.
	OutcomeDetected = "detected"
	// OutcomeUnclassified labels detections that stayed below the floor.
	OutcomeUnclassified = "unclassified"
)

var (
	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scanforge",
			Name:      "detections_total",
			Help:      "Total number of scanner type detections, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	formatDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scanforge",
			Name:      "format_seconds",
			Help:      "Format pipeline latency in seconds, partitioned by source.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scanforge",
			Name:      "scans_total",
			Help:      "Total number of scans reaching a terminal state, partitioned by state.",
		},
		[]string{"state"},
	)

	pollErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scanforge",
			Name:      "poll_errors_total",
			Help:      "Total number of failed execution backend status polls.",
		},
	)
)

// Register attaches scanforge collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		detectionsTotal,
		formatDurationSeconds,
		scansTotal,
		pollErrorsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDetection records one detection outcome.
func ObserveDetection(detected bool) {
	label := OutcomeUnclassified
	if detected {
		label = OutcomeDetected
	}
	detectionsTotal.WithLabelValues(label).Inc()
}

// ObserveFormat records a format pipeline duration and its source label.
func ObserveFormat(duration time.Duration, source string) {
	if duration < 0 {
		duration = 0
	}
	formatDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveScanTerminal records a scan reaching a terminal state.
func ObserveScanTerminal(state string) {
	scansTotal.WithLabelValues(state).Inc()
}

// ObservePollError records one failed status poll.
func ObservePollError() {
	pollErrorsTotal.Inc()
}
