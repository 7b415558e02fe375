// Package attendance forwards validated badge scans to the attendance
// service, which decides between check-in and check-out.
package attendance

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-badgescan/internal/httpc"
	"github.com/teslashibe/go-badgescan/pkg/identifier"
)

// ErrNoWorker is returned when a check-in carries no identifier.
var ErrNoWorker = errors.New("attendance: missing worker identifier")

// Action is what the attendance service did with a scan.
type Action string

const (
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
)

// CheckIn is one validated scan.
type CheckIn struct {
	WorkerID  identifier.ID `json:"worker_id"`
	ScannedAt time.Time     `json:"scanned_at"`
	Session   string        `json:"session,omitempty"`
	Device    string        `json:"device,omitempty"`
}

// Result is the service's answer to a check-in.
type Result struct {
	WorkerID string    `json:"worker_id"`
	Action   Action    `json:"action"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Recorder records scans.
type Recorder interface {
	Record(ctx context.Context, in CheckIn) (Result, error)
}

// ScanPath is the attendance service endpoint for badge scans.
const ScanPath = "/api/attendance/scan"

// HTTPRecorder posts check-ins to the attendance service.
type HTTPRecorder struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPRecorder creates a recorder for the service at baseURL.
// client may be nil to use the shared client.
func NewHTTPRecorder(baseURL string, client *http.Client, logger *slog.Logger) *HTTPRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPRecorder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.With("component", "attendance"),
	}
}

// Record posts the check-in and returns the service's decision.
func (r *HTTPRecorder) Record(ctx context.Context, in CheckIn) (Result, error) {
	if in.WorkerID.IsZero() {
		return Result{}, ErrNoWorker
	}

	var res Result
	start := time.Now()
	if err := httpc.DoJSON(ctx, r.client, http.MethodPost, r.baseURL+ScanPath, in, &res); err != nil {
		r.logger.Warn("attendance call failed",
			"worker", in.WorkerID.String(),
			"error", err,
		)
		return Result{}, err
	}

	r.logger.Info("attendance recorded",
		"worker", in.WorkerID.String(),
		"action", res.Action,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// MemoryRecorder keeps check-ins in memory and alternates each worker
// between checked in and checked out. Used for offline mode and tests.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []CheckIn
	inside  map[string]bool
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{inside: make(map[string]bool)}
}

// Record stores the check-in.
func (m *MemoryRecorder) Record(ctx context.Context, in CheckIn) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if in.WorkerID.IsZero() {
		return Result{}, ErrNoWorker
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := in.WorkerID.String()
	action := ActionCheckIn
	if m.inside[id] {
		action = ActionCheckOut
	}
	m.inside[id] = !m.inside[id]
	m.records = append(m.records, in)

	return Result{WorkerID: id, Action: action, At: in.ScannedAt}, nil
}

// Records returns every stored check-in in order.
func (m *MemoryRecorder) Records() []CheckIn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CheckIn(nil), m.records...)
}
