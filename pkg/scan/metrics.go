package scan

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scanning. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Frames pulled by the loop by result: decoded, duplicate, miss, error
	Frames *prometheus.CounterVec

	// Per-capability decode attempts and latency
	DecodeAttempts *prometheus.CounterVec
	DecodeLatency  *prometheus.HistogramVec

	// Payloads rejected after decoding, by reason
	Rejections *prometheus.CounterVec

	// Finished sessions by final state and error kind
	Sessions *prometheus.CounterVec

	// Time from Start to Success
	TimeToScan prometheus.Histogram

	// Sessions currently holding or acquiring the camera
	Active prometheus.Gauge
}

// NewMetrics registers scan metrics with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgescan_frames_total",
			Help: "Frames pulled by the sampling loop by result",
		}, []string{"result"}),

		DecodeAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgescan_decode_attempts_total",
			Help: "Decode attempts by capability and result",
		}, []string{"capability", "result"}),

		DecodeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "badgescan_decode_duration_seconds",
			Help:    "Duration of a single capability decode attempt",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.04, 0.08, 0.16},
		}, []string{"capability"}),

		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgescan_rejections_total",
			Help: "Decoded payloads rejected before Success by reason",
		}, []string{"reason"}),

		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "badgescan_sessions_total",
			Help: "Finished scan sessions by final state and error kind",
		}, []string{"state", "error"}),

		TimeToScan: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "badgescan_time_to_scan_seconds",
			Help:    "Time from session start to a successful scan",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),

		Active: f.NewGauge(prometheus.GaugeOpts{
			Name: "badgescan_active_sessions",
			Help: "Sessions currently acquiring or reading the camera",
		}),
	}
}

// ObserveDetect implements decode.Observer.
func (m *Metrics) ObserveDetect(capability string, d time.Duration, hit bool, err error) {
	if m == nil {
		return
	}
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	m.DecodeAttempts.WithLabelValues(capability, result).Inc()
	m.DecodeLatency.WithLabelValues(capability).Observe(d.Seconds())
}

// ObserveFrame counts a frame pulled by the loop.
func (m *Metrics) ObserveFrame(result string) {
	if m != nil {
		m.Frames.WithLabelValues(result).Inc()
	}
}

// ObserveRejection counts a payload that did not lead to Success.
func (m *Metrics) ObserveRejection(reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(reason).Inc()
	}
}

// ObserveSession records a finished session.
func (m *Metrics) ObserveSession(o Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(o.State.String(), o.Error.String()).Inc()
	if o.State == StateSuccess {
		m.TimeToScan.Observe(elapsed.Seconds())
	}
}

// SessionStarted increments the active gauge.
func (m *Metrics) SessionStarted() {
	if m != nil {
		m.Active.Inc()
	}
}

// SessionEnded decrements the active gauge.
func (m *Metrics) SessionEnded() {
	if m != nil {
		m.Active.Dec()
	}
}
