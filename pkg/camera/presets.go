package camera

// Preset names for common scanning setups
const (
	PresetDefault = "default"
	PresetLow     = "low"
	PresetHD      = "hd"
	PresetFullHD  = "fullhd"
	PresetFront   = "front"
)

// Presets returns all available preset constraints.
func Presets() map[string]Constraints {
	return map[string]Constraints{
		PresetDefault: DefaultConstraints(),
		PresetLow:     LowConstraints(),
		PresetHD:      HDConstraints(),
		PresetFullHD:  FullHDConstraints(),
		PresetFront:   FrontConstraints(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLow,
		PresetHD,
		PresetFullHD,
		PresetFront,
	}
}

// GetPreset returns a preset by name, or nil if not found.
func GetPreset(name string) *Constraints {
	if c, ok := Presets()[name]; ok {
		return &c
	}
	return nil
}

// LowConstraints targets VGA for slow single-board computers.
func LowConstraints() Constraints {
	c := DefaultConstraints()
	c.MinWidth = 320
	c.MinHeight = 240
	c.IdealWidth = 640
	c.IdealHeight = 480
	c.MaxWidth = 640
	c.MaxHeight = 480
	c.FrameRate = 15
	return c
}

// HDConstraints pins the ideal and maximum to 720p.
func HDConstraints() Constraints {
	c := DefaultConstraints()
	c.MaxWidth = 1280
	c.MaxHeight = 720
	return c
}

// FullHDConstraints asks for 1080p. Small printed badges decode better,
// at a higher per-frame cost.
func FullHDConstraints() Constraints {
	c := DefaultConstraints()
	c.IdealWidth = 1920
	c.IdealHeight = 1080
	return c
}

// FrontConstraints prefers the user-facing camera, for kiosks where the
// worker holds the badge up to the screen.
func FrontConstraints() Constraints {
	c := DefaultConstraints()
	c.Facing = FacingUser
	return c
}
