// Package config provides configuration helpers for the badgescan commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults used when the matching environment variable is unset.
const (
	DefaultListenAddr   = ":8090"
	DefaultCameraDevice = "0"
	DefaultLogLevel     = "info"
	DefaultCooldown     = 2 * time.Second
	DefaultGraceDelay   = time.Second
)

// ListenAddr returns the HTTP listen address from SCAN_LISTEN_ADDR.
func ListenAddr() string {
	return String("SCAN_LISTEN_ADDR", DefaultListenAddr)
}

// CameraDevice returns the capture device from SCAN_CAMERA_DEVICE.
// Numeric values select /dev/videoN, anything else is passed to the driver as-is.
func CameraDevice() string {
	return String("SCAN_CAMERA_DEVICE", DefaultCameraDevice)
}

// WedgeDevice returns the line-scanner device path from SCAN_WEDGE_DEVICE.
// Empty means no wedge scanner is attached.
func WedgeDevice() string {
	return String("SCAN_WEDGE_DEVICE", "")
}

// AttendanceURL returns the attendance service base URL from SCAN_ATTENDANCE_URL.
// Empty means check-ins are kept in memory only.
func AttendanceURL() string {
	return String("SCAN_ATTENDANCE_URL", "")
}

// LogLevel returns the log level from SCAN_LOG_LEVEL.
func LogLevel() string {
	return String("SCAN_LOG_LEVEL", DefaultLogLevel)
}

// Cooldown returns the dedup cooldown from SCAN_COOLDOWN.
func Cooldown() time.Duration {
	return Duration("SCAN_COOLDOWN", DefaultCooldown)
}

// GraceDelay returns the post-success release delay from SCAN_GRACE.
func GraceDelay() time.Duration {
	return Duration("SCAN_GRACE", DefaultGraceDelay)
}

// String returns the env var value or def when unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as an int, or def when unset or malformed.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Duration returns the env var parsed with time.ParseDuration, or def when
// unset or malformed. Bare integers are read as milliseconds.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
