package decoder

import (
	"fmt"

	"tessera/internal/derivation"
	"tessera/internal/recomb"
)

// Defaults for Config fields left at zero.
const (
	DefaultBeamSize = 200
	DefaultNBest    = 1
)

// Config holds per-decoder search settings.
type Config struct {
	BeamSize int
	// DistortionLimit bounds how far past the first gap an option may
	// start; negative means unlimited.
	DistortionLimit int
	ITG             bool
	// DTU enables gapped options and floating target segments.
	DTU bool
	// Threads is the beam expansion worker count; zero means GOMAXPROCS.
	Threads int
	Filter  recomb.Filter
	NBest   int
	// MaxFloating and MaxTargetSpan bound pending DTU segments.
	MaxFloating      int
	MaxTargetSpan    int
	GapsInFutureCost bool
}

// Validate fills defaults and rejects contradictory settings.
func (c *Config) Validate() error {
	if c.BeamSize <= 0 {
		c.BeamSize = DefaultBeamSize
	}
	if c.NBest <= 0 {
		c.NBest = DefaultNBest
	}
	if c.MaxFloating <= 0 {
		c.MaxFloating = derivation.DefaultMaxFloating
	}
	if c.MaxTargetSpan <= 0 {
		c.MaxTargetSpan = derivation.DefaultMaxTargetSpan
	}
	if c.ITG && c.DTU && c.DistortionLimit < 0 {
		return fmt.Errorf("ITG constraints cannot be combined with unconstrained DTU decoding")
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", c.Threads)
	}
	return nil
}
