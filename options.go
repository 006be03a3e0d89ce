package synth

import (
	"github.com/la32core/synth/internal/analog"
	"github.com/la32core/synth/internal/reverb"
	"github.com/la32core/synth/internal/rom"
)

// defaultPartialCount is spec §1's "32 simultaneous partial voices."
const defaultPartialCount = 32

// defaultQueueCapacity is the bounded MIDI queue's power-of-two size
// (spec §5: "power-of-two sized").
const defaultQueueCapacity = 256

// openConfig collects Open's optional parameters, mirroring the
// teacher's playerConfig/PlayerOption shape (player.go).
type openConfig struct {
	controlROM   []byte
	pcmROM       []byte
	reverbModel  reverb.Model // explicit override; nil selects by compat mode
	analogMode   analog.Mode
	partialCount int
	listener     Listener
	newGen       *bool // override for rom-derived NewGenNoteCancellation
	reserve      *[9]uint8
}

func defaultConfig() openConfig {
	return openConfig{
		analogMode:   analog.DigitalOnly,
		partialCount: defaultPartialCount,
	}
}

// Option configures Open, mirroring the teacher's
// `type PlayerOption func(*playerConfig)`.
type Option func(*openConfig)

// WithControlROM supplies the 64 kB control ROM image spec §6
// describes. Absent, Open falls back to a reasonable default feature
// flag (old-gen) and reserve table (4 per melodic part, 0 rhythm),
// since internal/tables self-generates its LUTs rather than decoding
// them from ROM bytes (see DESIGN.md).
func WithControlROM(data []byte) Option {
	return func(c *openConfig) { c.controlROM = data }
}

// WithPCMROM supplies the PCM ROM image backing PCM-mode partials.
func WithPCMROM(data []byte) Option {
	return func(c *openConfig) { c.pcmROM = data }
}

// WithReverbOverride forces a specific reverb.Model instead of the
// one compatibility mode would otherwise select, per spec §4.6:
// "may be overridden."
func WithReverbOverride(m reverb.Model) Option {
	return func(c *openConfig) { c.reverbModel = m }
}

// WithAnalogMode selects one of the four analog post-stage
// configurations (spec §4.7), default DigitalOnly.
func WithAnalogMode(mode analog.Mode) Option {
	return func(c *openConfig) { c.analogMode = mode }
}

// WithPartialCount overrides the fixed partial pool size N (spec §1
// defaults to 32; §8 S3/S4 exercise a shrunk pool of 4).
func WithPartialCount(n int) Option {
	return func(c *openConfig) { c.partialCount = n }
}

// WithListener registers the one-way event sink (spec §7). Without
// one, Open installs a NopListener.
func WithListener(l Listener) Option {
	return func(c *openConfig) { c.listener = l }
}

// WithNewGenAllocator forces the allocator's reclaim-algorithm
// generation instead of deferring to the control ROM's feature flag.
func WithNewGenAllocator(newGen bool) Option {
	return func(c *openConfig) { c.newGen = &newGen }
}

// WithReserve overrides the 9-byte partial reservation table instead
// of deferring to the control ROM's default (spec §4.5).
func WithReserve(reserve [9]uint8) Option {
	return func(c *openConfig) { c.reserve = &reserve }
}

// resolveControlROM decodes the supplied control ROM bytes, if any,
// falling back to the documented defaults described on WithControlROM
// when none were supplied or decoding fails construction entirely only
// when bytes were explicitly supplied but malformed (spec §7: "ROM
// load failures... fatal for that session").
func (c *openConfig) resolveControlROM() (newGen bool, reserve [9]uint8, err error) {
	reserve = [9]uint8{4, 4, 4, 4, 4, 4, 4, 4, 0}
	if c.controlROM != nil {
		cr, rerr := rom.NewControlROM(c.controlROM)
		if rerr != nil {
			return false, reserve, rerr
		}
		newGen = cr.NewGenNoteCancellation
		reserve = cr.DefaultReserve
	}
	if c.newGen != nil {
		newGen = *c.newGen
	}
	if c.reserve != nil {
		reserve = *c.reserve
	}
	return newGen, reserve, nil
}
