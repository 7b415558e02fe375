package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets_AllValid(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			c := GetPreset(name)
			require.NotNil(t, c)
			assert.Empty(t, c.Validate())
		})
	}
}

func TestGetPreset_Unknown(t *testing.T) {
	assert.Nil(t, GetPreset("8k"))
}

func TestConstraints_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Constraints)
		want   string
	}{
		{
			name:   "empty device",
			mutate: func(c *Constraints) { c.Device = " " },
			want:   "device must not be empty",
		},
		{
			name:   "bad facing",
			mutate: func(c *Constraints) { c.Facing = "sideways" },
			want:   "facing must be environment, user, or empty",
		},
		{
			name:   "ideal above max",
			mutate: func(c *Constraints) { c.IdealWidth = 2560 },
			want:   "ideal resolution must lie between minimum and maximum",
		},
		{
			name:   "min above max",
			mutate: func(c *Constraints) { c.MinHeight = 1200 },
			want:   "minimum resolution must not exceed maximum",
		},
		{
			name:   "frame rate zero",
			mutate: func(c *Constraints) { c.FrameRate = 0 },
			want:   "frame_rate must be between 1 and 120",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConstraints()
			tc.mutate(&c)
			assert.Contains(t, c.Validate(), tc.want)
		})
	}
}

func TestConstraints_SatisfiesAndClamp(t *testing.T) {
	c := DefaultConstraints()

	assert.True(t, c.Satisfies(1280, 720))
	assert.False(t, c.Satisfies(320, 240))

	w, h := c.Clamp(3840, 2160)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}
