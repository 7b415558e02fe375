package camera

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager holds the constraints used for the next Open and handles updates.
// Sessions already running keep the constraints they were started with.
type Manager struct {
	constraints Constraints
	mu          sync.RWMutex

	// Callback when constraints change
	OnChange func(c Constraints) error
}

// NewManager creates a new manager with default constraints.
func NewManager() *Manager {
	return &Manager{
		constraints: DefaultConstraints(),
	}
}

// Constraints returns the current constraints.
func (m *Manager) Constraints() Constraints {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.constraints
}

// SetConstraints validates and stores new constraints.
func (m *Manager) SetConstraints(c Constraints) error {
	if errs := c.Validate(); len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConstraints, errs)
	}

	m.mu.Lock()
	m.constraints = c
	callback := m.OnChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(c); err != nil {
			return fmt.Errorf("failed to apply constraints: %w", err)
		}
	}

	return nil
}

// UpdateConstraints updates specific fields of the constraints.
// Accepts a map of JSON field names to values; "preset" replaces the base first.
func (m *Manager) UpdateConstraints(params map[string]any) error {
	c := m.Constraints()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		// Keep the selected device across presets
		device := c.Device
		c = *preset
		c.Device = device
	}

	for key, value := range params {
		switch key {
		case "preset":
		case "device":
			if v, ok := value.(string); ok {
				c.Device = v
			} else if n, ok := toInt(value); ok {
				c.Device = fmt.Sprint(n)
			}
		case "facing":
			if v, ok := value.(string); ok {
				c.Facing = Facing(v)
			}
		case "min_width":
			setInt(&c.MinWidth, value)
		case "min_height":
			setInt(&c.MinHeight, value)
		case "ideal_width":
			setInt(&c.IdealWidth, value)
		case "ideal_height":
			setInt(&c.IdealHeight, value)
		case "max_width":
			setInt(&c.MaxWidth, value)
		case "max_height":
			setInt(&c.MaxHeight, value)
		case "frame_rate":
			setInt(&c.FrameRate, value)
		default:
			return fmt.Errorf("unknown constraint: %s", key)
		}
	}

	return m.SetConstraints(c)
}

func setInt(dst *int, v any) {
	if n, ok := toInt(v); ok {
		*dst = n
	}
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
