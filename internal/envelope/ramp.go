// Package envelope implements the three per-partial ramp machines that
// drive a partial's wave generator every tick: TVA (amplitude), TVF
// (filter cutoff), and TVP (pitch). All three share the same
// underlying ramp contract described in spec §4.3 and grounded on
// TVA.cpp's startRamp/nextAmp/nextPhase trio; TVF and TVP each supply
// their own target/time computation on top of it.
package envelope

// Phase is the shared life-cycle every ramp machine walks through.
type Phase int

const (
	PhaseBasic Phase = iota
	PhaseAttack
	Phase2
	Phase3
	PhaseSustain
	PhaseRelease
	PhaseDead
)

func (p Phase) next() Phase { return p + 1 }

// interruptTime is the number of ticks the ramp waits, once its target
// is reached, before firing the phase-advance interrupt — emulating
// the delay between the LA32 reaching a target and the 8095 MCU
// noticing it.
//
// FIXME: should vary with sample rate; the reference never got around
// to it either, so neither do we.
const interruptTime = 7

// Ramp is the generic current-level-toward-target state machine shared
// by TVA, TVF and TVP. Level arithmetic happens in an arbitrary fixed
// multiple of the 0..255 target code (targetMult), matching the
// hardware's per-machine scaling (TVA: 0x40000, TVF: 0x800000, TVP has
// its own pitch-specific arithmetic layered on top — see tvp.go).
// incrementExpander turns a ramp's full increment byte (direction bit
// plus 7-bit magnitude) into the amount the current level moves by
// each tick. TVA and TVF each have their own curve (exp2-based and
// exp10-based respectively — see envmath.go) and only TVA applies the
// descending-ramp asymmetry.
type incrementExpander func(increment uint8) uint32

type Ramp struct {
	currentLevel uint32
	target       uint8
	increment    uint8 // bit 7: direction (1 = descending); bits 0-6: magnitude
	largeInc     uint32

	interruptCountdown int
	phase              Phase

	expand incrementExpander
}

// SetExpander installs the machine-specific magnitude curve. Must be
// called once before the first StartRamp.
func (r *Ramp) SetExpander(expand incrementExpander) { r.expand = expand }

func (r *Ramp) StartRamp(target uint8, increment uint8, phase Phase) {
	r.target = target
	r.increment = increment
	r.largeInc = r.expand(increment)
	r.phase = phase
	r.interruptCountdown = 0
}

func (r *Ramp) Phase() Phase { return r.phase }

func (r *Ramp) SetCurrentLevel(level uint32) { r.currentLevel = level }
func (r *Ramp) CurrentLevel() uint32         { return r.currentLevel }
func (r *Ramp) TargetCode() uint8            { return r.target }

// Tick advances the ramp by one sample and reports whether its
// interrupt just fired (the caller should then run its nextPhase
// logic and start a new ramp).
func (r *Ramp) Tick(targetMult, maxLevel uint32) (interruptFired bool) {
	target := uint32(r.target) * targetMult
	if r.interruptCountdown > 0 {
		r.interruptCountdown--
		if r.interruptCountdown == 0 {
			return true
		}
		return false
	}
	if r.increment == 0 {
		return false
	}
	if r.increment&0x80 != 0 {
		if r.largeInc > r.currentLevel {
			r.currentLevel = target
			r.interruptCountdown = interruptTime
		} else {
			r.currentLevel -= r.largeInc
			if r.currentLevel <= target {
				r.currentLevel = target
				r.interruptCountdown = interruptTime
			}
		}
	} else {
		if maxLevel-r.currentLevel < r.largeInc {
			r.currentLevel = target
			r.interruptCountdown = interruptTime
		} else {
			r.currentLevel += r.largeInc
			if r.currentLevel >= target {
				r.currentLevel = target
				r.interruptCountdown = interruptTime
			}
		}
	}
	return false
}
