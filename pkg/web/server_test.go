package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-badgescan/pkg/attendance"
	"github.com/teslashibe/go-badgescan/pkg/camera"
	"github.com/teslashibe/go-badgescan/pkg/decode"
	"github.com/teslashibe/go-badgescan/pkg/scan"
)

type testEnv struct {
	srv      *Server
	src      *camera.MockSource
	recorder *attendance.MemoryRecorder
	cancel   context.CancelFunc
}

func newEnv(t *testing.T, factory scan.ChainFactory) *testEnv {
	t.Helper()
	rec := attendance.NewMemoryRecorder()
	env := newEnvWith(t, factory, rec)
	env.recorder = rec
	return env
}

func newEnvWith(t *testing.T, factory scan.ChainFactory, rec attendance.Recorder) *testEnv {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics := scan.NewMetrics(reg)
	src := camera.NewMockSource()
	cams := camera.NewManager()

	cfg := scan.DefaultConfig()
	cfg.GraceDelay = 10 * time.Millisecond
	scans := scan.NewManager(cfg, src, factory,
		scan.WithConstraints(cams.Constraints),
		scan.WithManagerMetrics(metrics),
		scan.WithSessionOptions(scan.WithPacer(func() scan.Pacer { return scan.NewRefreshPacer(1000) })),
	)

	srv := NewServer(Config{
		Scans:    scans,
		Cameras:  cams,
		Recorder: rec,
		Gatherer: reg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go srv.StatusHub().Run(ctx)

	t.Cleanup(func() {
		scans.Close(context.Background())
		cancel()
	})
	return &testEnv{srv: srv, src: src, cancel: cancel}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.App().Test(req, 2000)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func hitOn(n int, text string) scan.ChainFactory {
	return func() *decode.Chain {
		c := decode.NewChain(nil)
		c.Register(decode.DetectOn("mock", n, text), 1)
		return c
	}
}

func blind() *decode.Chain {
	c := decode.NewChain(nil)
	c.Register(decode.NewMock("blind"), 1)
	return c
}

func TestScanLifecycle_RecordsCheckIn(t *testing.T) {
	env := newEnv(t, hitOn(3, "worker:W003"))

	resp, body := env.do(t, http.MethodPost, "/api/scans", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var started ScanResponse
	require.NoError(t, json.Unmarshal(body, &started))
	require.NotEmpty(t, started.ID)

	require.Eventually(t, func() bool {
		_, body := env.do(t, http.MethodGet, "/api/scans/"+started.ID, "")
		var sr ScanResponse
		return json.Unmarshal(body, &sr) == nil && sr.State == scan.StateSuccess
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return len(env.recorder.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	rec := env.recorder.Records()[0]
	assert.Equal(t, "W003", rec.WorkerID.String())
	assert.Equal(t, started.ID, rec.Session)
	assert.Equal(t, "0", rec.Device)

	var entries []CheckInEntry
	require.Eventually(t, func() bool {
		_, body := env.do(t, http.MethodGet, "/api/checkins", "")
		entries = nil
		return json.Unmarshal(body, &entries) == nil && len(entries) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, attendance.ActionCheckIn, entries[0].Action)
	assert.Empty(t, entries[0].Error)
}

// blockingRecorder holds every check-in until release is closed.
type blockingRecorder struct {
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRecorder) Record(ctx context.Context, ci attendance.CheckIn) (attendance.Result, error) {
	close(r.entered)
	select {
	case <-r.release:
	case <-ctx.Done():
		return attendance.Result{}, ctx.Err()
	}
	return attendance.Result{WorkerID: ci.WorkerID.String(), Action: attendance.ActionCheckIn}, nil
}

func TestSlowAttendanceDoesNotHoldCamera(t *testing.T) {
	rec := &blockingRecorder{entered: make(chan struct{}), release: make(chan struct{})}
	env := newEnvWith(t, hitOn(1, "worker:W004"), rec)
	defer close(rec.release)

	resp, body := env.do(t, http.MethodPost, "/api/scans", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var started ScanResponse
	require.NoError(t, json.Unmarshal(body, &started))

	select {
	case <-rec.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("attendance service not called")
	}

	s, ok := env.srv.scans.Session(scan.SessionHandle(started.ID))
	require.True(t, ok)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("camera held while the attendance call is pending")
	}
	assert.Equal(t, 1, env.src.Releases())

	resp, _ = env.do(t, http.MethodGet, "/api/scans/"+started.ID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartScan_Conflict(t *testing.T) {
	env := newEnv(t, blind)

	resp, body := env.do(t, http.MethodPost, "/api/scans", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var started ScanResponse
	require.NoError(t, json.Unmarshal(body, &started))

	resp, body = env.do(t, http.MethodPost, "/api/scans", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "scan in progress")

	resp, body = env.do(t, http.MethodGet, "/api/scans/active", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), started.ID)

	resp, _ = env.do(t, http.MethodDelete, "/api/scans/"+started.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/scans/"+started.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"state":"idle"`)

	resp, _ = env.do(t, http.MethodGet, "/api/scans/active", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownSession(t *testing.T) {
	env := newEnv(t, blind)

	resp, body := env.do(t, http.MethodGet, "/api/scans/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "unknown session")

	resp, _ = env.do(t, http.MethodDelete, "/api/scans/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCameraSettings(t *testing.T) {
	env := newEnv(t, blind)

	resp, body := env.do(t, http.MethodGet, "/api/camera", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var c camera.Constraints
	require.NoError(t, json.Unmarshal(body, &c))
	assert.Equal(t, camera.DefaultConstraints(), c)

	resp, body = env.do(t, http.MethodPut, "/api/camera", `{"preset":"low"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &c))
	assert.Equal(t, 640, c.MaxWidth)
	assert.Equal(t, 15, c.FrameRate)

	resp, _ = env.do(t, http.MethodPut, "/api/camera", `{"zoom":3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/camera", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = env.do(t, http.MethodGet, "/api/camera/presets", "")
	assert.Contains(t, string(body), "fullhd")
}

func TestDecoders(t *testing.T) {
	env := newEnv(t, func() *decode.Chain {
		c := decode.NewChain(nil)
		c.Register(decode.Failing("opencv-qr", assert.AnError), 100)
		c.Register(decode.NewMock("zxing"), 50)
		return c
	})

	resp, body := env.do(t, http.MethodGet, "/api/decoders", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []decode.CapabilityInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "opencv-qr", infos[0].Name)
	assert.False(t, infos[0].Available)
	assert.True(t, infos[1].Available)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newEnv(t, hitOn(1, "W100"))

	resp, _ := env.do(t, http.MethodPost, "/api/scans", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Eventually(t, func() bool { return len(env.recorder.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)

	resp, body := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "badgescan_decode_attempts_total")
}

func TestHealthAndWebsocketGuard(t *testing.T) {
	env := newEnv(t, blind)

	resp, body := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	resp, _ = env.do(t, http.MethodGet, "/ws/status", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
