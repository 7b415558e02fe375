// Package web serves the scanning HTTP API and the live status stream.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-badgescan/pkg/attendance"
	"github.com/teslashibe/go-badgescan/pkg/camera"
	"github.com/teslashibe/go-badgescan/pkg/hub"
	"github.com/teslashibe/go-badgescan/pkg/identifier"
	"github.com/teslashibe/go-badgescan/pkg/scan"
)

// maxCheckIns bounds the recent check-in buffer.
const maxCheckIns = 100

// StatusEvent is pushed to /ws/status on every session transition.
type StatusEvent struct {
	Session    string         `json:"session"`
	State      scan.State     `json:"state"`
	Identifier identifier.ID  `json:"identifier"`
	Error      scan.ErrorKind `json:"error,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Time       time.Time      `json:"time"`
}

// Event is the envelope written to /ws/status.
type Event struct {
	Type    string        `json:"type"`
	Status  *StatusEvent  `json:"status,omitempty"`
	CheckIn *CheckInEntry `json:"checkin,omitempty"`
}

// Event types.
const (
	EventStatus  = "status"
	EventCheckIn = "checkin"
)

// CheckInEntry is a recorded scan as shown by /api/checkins.
type CheckInEntry struct {
	Session  string            `json:"session"`
	WorkerID string            `json:"worker_id"`
	Action   attendance.Action `json:"action,omitempty"`
	Error    string            `json:"error,omitempty"`
	Time     time.Time         `json:"time"`
}

// Config wires the server to its collaborators.
type Config struct {
	Addr     string
	Scans    *scan.Manager
	Cameras  *camera.Manager
	Recorder attendance.Recorder // optional
	Gatherer prometheus.Gatherer // optional; /metrics is disabled when nil
	Logger   *slog.Logger
}

// Server is the HTTP front of the scanner.
type Server struct {
	app      *fiber.App
	addr     string
	logger   *slog.Logger
	scans    *scan.Manager
	cameras  *camera.Manager
	recorder attendance.Recorder

	statusHub *hub.Hub

	checkIns   []CheckInEntry
	checkInsMu sync.RWMutex

	// OnCheckIn, if set, is called after every attendance call.
	OnCheckIn func(CheckInEntry)
}

// NewServer creates the server and registers its routes.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:      cfg.Addr,
		logger:    logger.With("component", "web"),
		scans:     cfg.Scans,
		cameras:   cfg.Cameras,
		recorder:  cfg.Recorder,
		statusHub: hub.New("status", logger),
		checkIns:  make([]CheckInEntry, 0, maxCheckIns),
	}

	s.scans.OnStatus(s.broadcastStatus)

	app := fiber.New(fiber.Config{
		AppName:               "badgescan",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Post("/scans", s.handleStartScan)
	api.Get("/scans/active", s.handleActiveScan)
	api.Get("/scans/:id", s.handleScanStatus)
	api.Delete("/scans/:id", s.handleStopScan)
	api.Get("/decoders", s.handleDecoders)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleCameraPresets)
	api.Get("/checkins", s.handleCheckIns)

	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// StatusHub returns the hub carrying status events.
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

// Start runs the status hub and serves until the listener fails or
// Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	s.logger.Info("listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) broadcastStatus(h scan.SessionHandle, o scan.Outcome) {
	ev := StatusEvent{
		Session:    string(h),
		State:      o.State,
		Identifier: o.Identifier,
		Error:      o.Error,
		Reason:     o.Reason,
		Time:       o.Since,
	}
	if err := s.statusHub.BroadcastJSON(EventStatus, Event{Type: EventStatus, Status: &ev}); err != nil {
		s.logger.Warn("status broadcast failed", "error", err)
	}
}

// recordCheckIn forwards a successful scan to the attendance service.
func (s *Server) recordCheckIn(h scan.SessionHandle, id identifier.ID, device string) {
	entry := CheckInEntry{
		Session:  string(h),
		WorkerID: id.String(),
		Time:     time.Now(),
	}

	if s.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		res, err := s.recorder.Record(ctx, attendance.CheckIn{
			WorkerID:  id,
			ScannedAt: entry.Time,
			Session:   string(h),
			Device:    device,
		})
		cancel()
		if err != nil {
			entry.Error = err.Error()
			s.logger.Error("check-in failed", "worker", id.String(), "error", err)
		} else {
			entry.Action = res.Action
		}
	}

	s.checkInsMu.Lock()
	s.checkIns = append(s.checkIns, entry)
	if len(s.checkIns) > maxCheckIns {
		s.checkIns = s.checkIns[1:]
	}
	s.checkInsMu.Unlock()

	if err := s.statusHub.BroadcastJSON(EventCheckIn, Event{Type: EventCheckIn, CheckIn: &entry}); err != nil {
		s.logger.Warn("check-in broadcast failed", "error", err)
	}
	if s.OnCheckIn != nil {
		s.OnCheckIn(entry)
	}
}
