// Package camera owns the live capture device used by the badge scanner.
// Constraints describe what the caller wants; a Source negotiates them with
// the hardware and hands back a Handle that it alone may release.
package camera

import (
	"fmt"
	"strings"
)

// Facing is the preferred direction of the camera relative to the operator.
type Facing string

const (
	// FacingEnvironment points away from the operator (rear camera).
	FacingEnvironment Facing = "environment"
	// FacingUser points at the operator (front camera).
	FacingUser Facing = "user"
	// FacingAny accepts whatever the device reports.
	FacingAny Facing = ""
)

// Constraints holds the capture request parameters.
// They can be modified via the camera API between sessions.
type Constraints struct {
	// Device selects the capture device. Numeric values map to /dev/videoN,
	// anything else (a path or a stream URL) is passed to the driver.
	Device string `json:"device"`

	// Facing is advisory; backends without facing metadata ignore it.
	Facing Facing `json:"facing"`

	// === Resolution ===
	MinWidth    int `json:"min_width"`
	MinHeight   int `json:"min_height"`
	IdealWidth  int `json:"ideal_width"`
	IdealHeight int `json:"ideal_height"`
	MaxWidth    int `json:"max_width"`
	MaxHeight   int `json:"max_height"`

	// FrameRate is a hint; the negotiated rate is reported on the Handle.
	FrameRate int `json:"frame_rate"`
}

// Hard limits accepted by Validate.
const (
	LimitMinWidth     = 160
	LimitMinHeight    = 120
	LimitMaxWidth     = 4096
	LimitMaxHeight    = 2160
	LimitMaxFrameRate = 120
)

// DefaultConstraints returns the recommended scanning setup:
// rear camera, 720p ideal, 30 fps.
func DefaultConstraints() Constraints {
	return Constraints{
		Device: "0",
		Facing: FacingEnvironment,

		MinWidth:    640,
		MinHeight:   480,
		IdealWidth:  1280,
		IdealHeight: 720,
		MaxWidth:    1920,
		MaxHeight:   1080,

		FrameRate: 30,
	}
}

// Validate checks if the constraint values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Constraints) Validate() []string {
	var errs []string

	if strings.TrimSpace(c.Device) == "" {
		errs = append(errs, "device must not be empty")
	}

	switch c.Facing {
	case FacingAny, FacingEnvironment, FacingUser:
	default:
		errs = append(errs, "facing must be environment, user, or empty")
	}

	if c.MinWidth < LimitMinWidth || c.MinHeight < LimitMinHeight {
		errs = append(errs, fmt.Sprintf("minimum resolution must be at least %dx%d", LimitMinWidth, LimitMinHeight))
	}
	if c.MaxWidth > LimitMaxWidth || c.MaxHeight > LimitMaxHeight {
		errs = append(errs, fmt.Sprintf("maximum resolution must be at most %dx%d", LimitMaxWidth, LimitMaxHeight))
	}
	if c.MinWidth > c.MaxWidth || c.MinHeight > c.MaxHeight {
		errs = append(errs, "minimum resolution must not exceed maximum")
	}
	if c.IdealWidth < c.MinWidth || c.IdealWidth > c.MaxWidth ||
		c.IdealHeight < c.MinHeight || c.IdealHeight > c.MaxHeight {
		errs = append(errs, "ideal resolution must lie between minimum and maximum")
	}

	if c.FrameRate < 1 || c.FrameRate > LimitMaxFrameRate {
		errs = append(errs, fmt.Sprintf("frame_rate must be between 1 and %d", LimitMaxFrameRate))
	}

	return errs
}

// Satisfies reports whether a negotiated resolution meets the minimum.
func (c *Constraints) Satisfies(width, height int) bool {
	return width >= c.MinWidth && height >= c.MinHeight
}

// Clamp limits a negotiated resolution to the maximum.
func (c *Constraints) Clamp(width, height int) (int, int) {
	return min(width, c.MaxWidth), min(height, c.MaxHeight)
}
