package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-badgescan/pkg/camera"
	"github.com/teslashibe/go-badgescan/pkg/hub"
	"github.com/teslashibe/go-badgescan/pkg/identifier"
	"github.com/teslashibe/go-badgescan/pkg/scan"
)

// ScanResponse describes a session.
type ScanResponse struct {
	ID string `json:"id"`
	scan.Outcome
}

// handleError renders errors as JSON.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": s.statusHub.ClientCount(),
	})
}

// handleStartScan starts a session; the result is recorded with the
// attendance service when the session succeeds.
func (s *Server) handleStartScan(c *fiber.Ctx) error {
	var (
		handle scan.SessionHandle
		ready  = make(chan struct{})
	)
	device := ""
	if s.cameras != nil {
		device = s.cameras.Constraints().Device
	}

	// Recorded off the session goroutine.
	onResult := func(id identifier.ID) {
		go func() {
			<-ready
			s.recordCheckIn(handle, id, device)
		}()
	}
	onError := func(kind scan.ErrorKind, err error) {
		<-ready
		s.logger.Warn("scan failed", "session", string(handle), "kind", kind.String(), "error", err)
	}

	h, err := s.scans.StartScan(c.UserContext(), onResult, onError)
	if err != nil {
		close(ready)
		if errors.Is(err, scan.ErrScanInProgress) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return err
	}
	handle = h
	close(ready)

	o, _ := s.scans.CurrentStatus(h)
	return c.Status(fiber.StatusCreated).JSON(ScanResponse{ID: string(h), Outcome: o})
}

func (s *Server) handleActiveScan(c *fiber.Ctx) error {
	h, ok := s.scans.Active()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no active scan")
	}
	o, err := s.scans.CurrentStatus(h)
	if err != nil {
		return err
	}
	return c.JSON(ScanResponse{ID: string(h), Outcome: o})
}

func (s *Server) handleScanStatus(c *fiber.Ctx) error {
	h := scan.SessionHandle(c.Params("id"))
	o, err := s.scans.CurrentStatus(h)
	if errors.Is(err, scan.ErrUnknownSession) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(ScanResponse{ID: string(h), Outcome: o})
}

func (s *Server) handleStopScan(c *fiber.Ctx) error {
	err := s.scans.StopScan(scan.SessionHandle(c.Params("id")))
	if errors.Is(err, scan.ErrUnknownSession) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDecoders(c *fiber.Ctx) error {
	return c.JSON(s.scans.Decoders(c.UserContext()))
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return fiber.NewError(fiber.StatusNotFound, "camera settings not available")
	}
	return c.JSON(s.cameras.Constraints())
}

// handleUpdateCamera applies a partial update, e.g. {"preset":"hd"} or
// {"device":"1","frame_rate":15}. It takes effect on the next scan.
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return fiber.NewError(fiber.StatusNotFound, "camera settings not available")
	}

	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := s.cameras.UpdateConstraints(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.cameras.Constraints())
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.PresetNames())
}

func (s *Server) handleCheckIns(c *fiber.Ctx) error {
	s.checkInsMu.RLock()
	defer s.checkInsMu.RUnlock()
	return c.JSON(s.checkIns)
}

// handleStatusWS streams status and check-in events.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewClient(s.statusHub, c).Run()
}
