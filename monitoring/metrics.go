package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Check-in attempts by outcome and method",
		},
		[]string{"result", "method"},
	)

	attendanceGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendance_current",
			Help: "Current overall headcount derived from the audit log",
		},
	)

	zoneAttendanceGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zone_attendance_current",
			Help: "Current headcount inside the privileged zone",
		},
	)

	issuesGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticket_issues_total",
			Help: "Open integrity anomalies by severity, from the last scan",
		},
		[]string{"severity"},
	)

	processorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_request_duration_seconds",
			Help:    "Duration of payment processor API calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		},
		[]string{"operation", "status"},
	)

	reconcileSyncPct = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconciliation_sync_percentage",
			Help: "Fraction of processor sessions with a matching local ticket",
		},
	)
)

// TrackCheckIn records one check-in attempt.
func TrackCheckIn(result, method string) {
	checkInsTotal.WithLabelValues(result, method).Inc()
}

// SetAttendance publishes the current headcount gauges.
func SetAttendance(total, zone int) {
	attendanceGauge.Set(float64(total))
	zoneAttendanceGauge.Set(float64(zone))
}

// SetIssueCounts publishes the anomaly gauges from an issue scan.
func SetIssueCounts(high, medium int) {
	issuesGauge.WithLabelValues("high").Set(float64(high))
	issuesGauge.WithLabelValues("medium").Set(float64(medium))
}

// TrackProcessorRequest records one processor API call.
func TrackProcessorRequest(operation, status string, duration time.Duration) {
	processorRequestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// SetSyncPercentage publishes the last reconciliation result.
func SetSyncPercentage(pct int) {
	reconcileSyncPct.Set(float64(pct))
}
