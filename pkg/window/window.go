// Package window bins a packet table into time windows, derives per-window
// labels and computes per-window traffic statistics.
package window

import (
	"math"

	"github.com/pkg/errors"
)

// Mode selects how windows are laid out.
type Mode string

const (
	// ModeSliding steps a window of Size seconds forward by Step seconds.
	// Windows overlap when Step < Size and empty windows are kept.
	ModeSliding Mode = "sliding"
	// ModeFixed truncates timestamps to whole seconds and groups them into
	// Size-second bins. Only bins holding packets produce rows.
	ModeFixed Mode = "fixed"
)

// ErrInvalidConfig is returned for unusable window geometry.
var ErrInvalidConfig = errors.New("invalid window config")

// Config describes the window geometry in seconds.
type Config struct {
	Size float64 `mapstructure:"size" yaml:"size"`
	Step float64 `mapstructure:"step" yaml:"step"`
	Mode Mode    `mapstructure:"mode" yaml:"mode"`
}

// DefaultConfig returns 5 second windows sliding by 1 second.
func DefaultConfig() Config {
	return Config{Size: 5, Step: 1, Mode: ModeSliding}
}

var profiles = map[string]Config{
	"sliding": {Size: 5, Step: 1, Mode: ModeSliding},
	"fixed":   {Size: 5, Step: 5, Mode: ModeFixed},
}

// Profile returns a named window layout.
func Profile(name string) (Config, error) {
	cfg, ok := profiles[name]
	if !ok {
		return Config{}, errors.Wrapf(ErrInvalidConfig, "unknown profile %q", name)
	}
	return cfg, nil
}

// Validate checks the geometry for the selected mode.
func (c Config) Validate() error {
	if !(c.Step > 0) || math.IsInf(c.Step, 0) {
		return errors.Wrapf(ErrInvalidConfig, "step must be positive, got %v", c.Step)
	}
	switch c.Mode {
	case ModeSliding:
		if !(c.Size > 0) || math.IsInf(c.Size, 0) {
			return errors.Wrapf(ErrInvalidConfig, "size must be positive, got %v", c.Size)
		}
	case ModeFixed:
		if c.Size < 1 || c.Size != math.Trunc(c.Size) {
			return errors.Wrapf(ErrInvalidConfig, "fixed bins need a whole number of seconds, got %v", c.Size)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown mode %q", c.Mode)
	}
	return nil
}

// NumBins returns how many step-wide bins cover span seconds.
func NumBins(span, step float64) int {
	if span <= 0 {
		return 0
	}
	return int(math.Ceil(span / step))
}

// BinOf returns the bin index of ts for bins of width step starting at start.
func BinOf(ts, start, step float64) int {
	return int(math.Floor((ts - start) / step))
}
