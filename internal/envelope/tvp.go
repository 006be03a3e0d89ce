package envelope

import "github.com/la32core/synth/internal/tables"

// tvpTargetMult matches TVF's scaling convention; tvp.cpp itself
// wasn't available to ground this constant directly, so TVP reuses
// the TVF-style ramp arithmetic (same order of magnitude target
// range, same envLogarithmicTime-driven ramp times) per spec §4.3.
const tvpTargetMult = 0x800000

const maxCurrentPitch = 0xff * tvpTargetMult

// PitchParams holds the per-partial TVP parameters (spec §3's "TVP"
// row and spec §4.3's pitch-composition paragraph).
type PitchParams struct {
	PitchCoarse      uint8
	PitchFine        uint8
	PitchKeyfollow   uint8
	EnvTimeKeyfollow uint8
	EnvTime          [5]uint8
	EnvLevel         [4]uint8

	// LFODepth/LFORate are the patch's pitch-LFO controls (spec §4.3:
	// "TVP adds pitch-LFO... on top of a base pitch"). Depth is a
	// 0..100 code scaled to cents by the caller (internal/partial);
	// Rate is a 0..100 code the caller scales to Hz. Zero depth or
	// rate silences the LFO entirely.
	LFODepth uint8
	LFORate  uint8
}

// PitchContext supplies the live values composed into the final pitch
// every tick: LFO depth, pitch-bender position, and bender range.
type PitchContext struct {
	LFOOffset   int32 // cents-like offset from the partial's pitch LFO
	MidiBend    int32 // 0..16383, 8192 = center
	BenderRange uint8 // semitones
}

// TVP is the Time-Variant Pitch ramp machine: one per partial, driving
// the wave generator's pitch input every sample.
type TVP struct {
	ramp Ramp

	params    FilterTimeParams
	basePitch int32

	key                int
	keyTimeSubtraction int
}

// FilterTimeParams is the ramp-timing subset TVP shares with TVF: an
// envLevel/envTime table plus key-time-follow.
type FilterTimeParams struct {
	EnvTimeKeyfollow uint8
	EnvTime          [5]uint8
	EnvLevel         [4]int8 // TVP's envelope levels are signed pitch offsets
}

func NewTVP() *TVP {
	t := &TVP{}
	t.ramp.SetExpander(expandFilterIncrement)
	return t
}

// basePitchCents composes the static base pitch per spec §4.3:
// pitchCoarse + (pitchFine-50)/100 + 24, plus the bender contribution.
func basePitchCents(p PitchParams, ctx PitchContext) int32 {
	base := int32(p.PitchCoarse) + (int32(p.PitchFine)-50)/100 + 24
	bend := (ctx.MidiBend - 8192) * int32(ctx.BenderRange) >> 14
	return base + bend
}

// Reset establishes the static base pitch and starts the attack ramp.
func (p *TVP) Reset(tb *tables.Tables, pitch PitchParams, timing FilterTimeParams, ctx PitchContext, key int) {
	p.params = timing
	p.key = key
	p.basePitch = basePitchCents(pitch, ctx)

	if timing.EnvTimeKeyfollow != 0 {
		p.keyTimeSubtraction = (key - 60) >> (5 - timing.EnvTimeKeyfollow)
	} else {
		p.keyTimeSubtraction = 0
	}

	target := clip255sToOffset(timing.EnvLevel[0])
	envTimeSetting := int(timing.EnvTime[0]) - p.keyTimeSubtraction
	var inc uint8
	if envTimeSetting <= 0 {
		inc = 0x80 | 127
	} else {
		v := int(tb.EnvLogarithmicTime[clip255u(abs32(target))]) - envTimeSetting
		if v <= 0 {
			v = 1
		}
		inc = uint8(v)
	}
	p.ramp.SetCurrentLevel(0)
	p.ramp.StartRamp(uint8(target&0xff), inc, PhaseAttack)
}

func clip255sToOffset(v int8) int { return int(v) }

func abs32(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (p *TVP) StartDecay() {
	if p.ramp.Phase() >= PhaseRelease {
		return
	}
	var inc uint8
	if p.params.EnvTime[4] == 0 {
		inc = 1
	} else {
		inc = uint8(-int32(p.params.EnvTime[4]))
	}
	p.ramp.StartRamp(0, inc, PhaseRelease)
}

// Tick advances the pitch envelope ramp and composes the final
// 16-bit cents-like pitch the wave generator consumes (1 semitone =
// 4096), combining the static base pitch, the envelope ramp's current
// offset, and the live pitch-LFO offset.
func (p *TVP) Tick(tb *tables.Tables, ctx PitchContext, canSustain bool) uint16 {
	if p.ramp.Tick(tvpTargetMult, maxCurrentPitch) {
		p.nextPhase(tb, canSustain)
	}
	envOffset := int32(int8(p.ramp.CurrentLevel() / tvpTargetMult))
	total := p.basePitch*4096 + envOffset*4096 + ctx.LFOOffset
	if total < 0 {
		total = 0
	}
	if total > 0xffff {
		total = 0xffff
	}
	return uint16(total)
}

func (p *TVP) nextPhase(tb *tables.Tables, canSustain bool) {
	phase := p.ramp.Phase() + 1
	switch phase {
	case PhaseDead:
		p.ramp.StartRamp(0, 0, PhaseDead)
		return
	case PhaseSustain, PhaseRelease:
		if !canSustain {
			p.StartDecay()
			return
		}
		target := clip255sToOffset(p.params.EnvLevel[3])
		p.ramp.StartRamp(uint8(target&0xff), 0, PhaseSustain)
		return
	}

	envPointIndex := int(phase) - 1
	envTimeSetting := int(p.params.EnvTime[envPointIndex]) - p.keyTimeSubtraction
	newTarget := clip255sToOffset(p.params.EnvLevel[envPointIndex])

	var newInc int
	if envTimeSetting > 0 {
		delta := newTarget - int(int8(p.ramp.TargetCode()))
		if delta == 0 {
			delta = 1
			newTarget++
		}
		v := int(tb.EnvLogarithmicTime[clip255u(abs32(delta))]) - envTimeSetting
		if v <= 0 {
			v = 1
		}
		newInc = v
		if delta < 0 {
			newInc |= 0x80
		}
	} else {
		if newTarget >= int(int8(p.ramp.TargetCode())) {
			newInc = 0x80 | 127
		} else {
			newInc = 127
		}
	}
	p.ramp.StartRamp(uint8(newTarget&0xff), uint8(newInc), phase)
}
