// badgescan runs the badge scanning service: it owns the camera, exposes
// the scan API over HTTP and forwards every successful scan to the
// attendance service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-badgescan/internal/config"
	"github.com/teslashibe/go-badgescan/internal/log"
	"github.com/teslashibe/go-badgescan/pkg/attendance"
	"github.com/teslashibe/go-badgescan/pkg/camera"
	"github.com/teslashibe/go-badgescan/pkg/decode"
	"github.com/teslashibe/go-badgescan/pkg/identifier"
	"github.com/teslashibe/go-badgescan/pkg/scan"
	"github.com/teslashibe/go-badgescan/pkg/web"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	addr          string
	device        string
	preset        string
	wedge         string
	attendanceURL string
	logLevel      string
	cooldown      time.Duration
	grace         time.Duration
	every         int
	scale         float64
	once          bool
}

func main() {
	opts := parseFlags()
	log.Init(opts.logLevel)
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("badgescan stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags reads flags; unset flags fall back to SCAN_* environment variables.
func parseFlags() options {
	loop := scan.DefaultLoopConfig()
	var o options

	flag.StringVar(&o.addr, "addr", config.ListenAddr(), "HTTP listen address")
	flag.StringVar(&o.device, "device", config.CameraDevice(), "Camera index, device path or stream URL")
	flag.StringVar(&o.preset, "preset", camera.PresetDefault, "Camera preset: "+strings.Join(camera.PresetNames(), ", "))
	flag.StringVar(&o.wedge, "wedge", config.WedgeDevice(), "Line-based hardware scanner device (optional)")
	flag.StringVar(&o.attendanceURL, "attendance", config.AttendanceURL(), "Attendance service base URL (empty keeps check-ins in memory)")
	flag.StringVar(&o.logLevel, "log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	flag.DurationVar(&o.cooldown, "cooldown", config.Cooldown(), "Minimum time between accepted detections")
	flag.DurationVar(&o.grace, "grace", config.GraceDelay(), "How long the camera stays open after a successful scan")
	flag.IntVar(&o.every, "every", loop.DecodeEvery, "Decode every Nth presented frame")
	flag.Float64Var(&o.scale, "scale", loop.Scale, "Downsample factor applied before decoding")
	flag.BoolVar(&o.once, "once", false, "Scan a single badge, print its identifier and exit")
	flag.Parse()

	return o
}

func run(ctx context.Context, o options, logger *slog.Logger) error {
	cams := camera.NewManager()
	if err := cams.UpdateConstraints(map[string]any{"preset": o.preset, "device": o.device}); err != nil {
		return fmt.Errorf("camera settings: %w", err)
	}
	cams.OnChange = func(c camera.Constraints) error {
		logger.Info("camera settings changed",
			"device", c.Device,
			"ideal", fmt.Sprintf("%dx%d", c.IdealWidth, c.IdealHeight),
			"fps", c.FrameRate,
		)
		return nil
	}

	cfg := scan.DefaultConfig()
	cfg.Constraints = cams.Constraints()
	cfg.Cooldown = o.cooldown
	cfg.GraceDelay = o.grace
	cfg.Loop.DecodeEvery = o.every
	cfg.Loop.Scale = o.scale
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := scan.NewMetrics(reg)

	scans := scan.NewManager(cfg, camera.NewCaptureSource(logger), chainFactory(o.wedge, logger),
		scan.WithConstraints(cams.Constraints),
		scan.WithManagerMetrics(metrics),
		scan.WithManagerLogger(logger),
	)

	var recorder attendance.Recorder = attendance.NewMemoryRecorder()
	if o.attendanceURL != "" {
		recorder = attendance.NewHTTPRecorder(o.attendanceURL, nil, logger)
	}

	for _, info := range scans.Decoders(ctx) {
		logger.Info("decoder",
			"name", info.Name,
			"priority", info.Priority,
			"available", info.Available,
			"error", info.Error,
		)
	}

	if o.once {
		return scanOnce(ctx, scans, recorder, cams.Constraints().Device)
	}

	srv := web.NewServer(web.Config{
		Addr:     o.addr,
		Scans:    scans,
		Cameras:  cams,
		Recorder: recorder,
		Gatherer: reg,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := scans.Close(sctx); err != nil {
			logger.Warn("sessions did not release the camera in time", "error", err)
		}
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// chainFactory builds the decoder chain: OpenCV first, pure-Go ZXing as a
// fallback and an optional hardware scanner last.
func chainFactory(wedge string, logger *slog.Logger) scan.ChainFactory {
	return func() *decode.Chain {
		chain := decode.NewChain(logger)
		chain.Register(decode.NewOpenCVQR(), 100)
		chain.Register(decode.NewZXing(decode.FormatQR, decode.FormatCode128), 50)
		if wedge != "" {
			chain.Register(decode.NewWedge(wedge, logger), 10)
		}
		return chain
	}
}

// scanOnce runs a single session and prints the identifier on stdout.
func scanOnce(ctx context.Context, scans *scan.Manager, recorder attendance.Recorder, device string) error {
	type result struct {
		id  identifier.ID
		err error
	}
	done := make(chan result, 1)

	h, err := scans.StartScan(ctx,
		func(id identifier.ID) { done <- result{id: id} },
		func(kind scan.ErrorKind, err error) { done <- result{err: fmt.Errorf("%s: %w", kind, err)} },
	)
	if err != nil {
		return err
	}

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		scans.StopScan(h)
		res.err = ctx.Err()
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer scans.Close(sctx)

	if res.err != nil {
		if errors.Is(res.err, context.Canceled) {
			return nil
		}
		return res.err
	}

	fmt.Println(res.id)
	_, err = recorder.Record(sctx, attendance.CheckIn{
		WorkerID:  res.id,
		ScannedAt: time.Now(),
		Session:   string(h),
		Device:    device,
	})
	return err
}
