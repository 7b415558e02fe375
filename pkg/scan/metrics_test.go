package scan

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-badgescan/pkg/identifier"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveDetect("x", time.Millisecond, true, nil)
	m.ObserveFrame("decoded")
	m.ObserveRejection("cooldown")
	m.ObserveSession(Outcome{State: StateSuccess}, time.Second)
	m.SessionStarted()
	m.SessionEnded()
}

func TestMetrics_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveDetect("zxing", 3*time.Millisecond, true, nil)
	m.ObserveDetect("zxing", 3*time.Millisecond, false, errors.New("x"))
	m.ObserveDetect("opencv-qr", time.Millisecond, false, nil)
	m.ObserveFrame("decoded")
	m.ObserveRejection(KindInvalidIdentifierShape.String())
	m.ObserveSession(Outcome{State: StateSuccess, Identifier: identifier.MustParse("W001")}, 2*time.Second)
	m.ObserveSession(Outcome{State: StateError, Error: KindPermissionDenied}, time.Second)

	assert.Equal(t, 1.0, counterValue(t, m.DecodeAttempts.WithLabelValues("zxing", "hit")))
	assert.Equal(t, 1.0, counterValue(t, m.DecodeAttempts.WithLabelValues("zxing", "error")))
	assert.Equal(t, 1.0, counterValue(t, m.DecodeAttempts.WithLabelValues("opencv-qr", "miss")))
	assert.Equal(t, 1.0, counterValue(t, m.Rejections.WithLabelValues("invalid_identifier_shape")))
	assert.Equal(t, 1.0, counterValue(t, m.Sessions.WithLabelValues("error", "permission_denied")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["badgescan_decode_attempts_total"])
	assert.True(t, names["badgescan_time_to_scan_seconds"])
	assert.True(t, names["badgescan_sessions_total"])
}
