package envelope

import "github.com/la32core/synth/internal/tables"

const tvfTargetMult = 0x800000

const maxCurrentFilter = 0xff * tvfTargetMult

// keyfollowMult21 and biasLevelToBiasMult are control-ROM tables with
// no known closed-form derivation (tvf.cpp keeps them as literal
// tables too).
var keyfollowMult21 = [17]int{-21, -10, -5, 0, 2, 5, 8, 10, 13, 16, 18, 21, 26, 32, 42, 21, 21}
var biasLevelToBiasMult = [15]int{85, 42, 21, 16, 10, 5, 2, 0, -2, -5, -10, -16, -21, -74, -85}

// FilterParams holds the per-partial TVF parameters from a patch's
// timbre (spec §3's "TVF" row, spec §4.3's base-cutoff paragraph).
type FilterParams struct {
	Cutoff            uint8
	Resonance         uint8
	Keyfollow         uint8 // index into keyfollowMult21
	WGPitchKeyfollow  uint8 // index into keyfollowMult21, subtracted from Keyfollow's contribution
	BiasPoint         uint8
	BiasLevel         uint8 // index into biasLevelToBiasMult
	EnvDepth          uint8
	EnvVeloSensitivity uint8
	EnvDepthKeyfollow uint8
	EnvTimeKeyfollow  uint8
	EnvTime           [5]uint8
	EnvLevel          [4]uint8
}

// calcBaseCutoff derives a partial's static cutoff floor from its
// key-follow, bias point, and cutoff parameter, clamped to 0..255.
// Grounded directly on tvf.cpp's calcBaseCutoff.
func calcBaseCutoff(p FilterParams, basePitch uint32, key int) uint8 {
	baseCutoff := keyfollowMult21[p.Keyfollow] - keyfollowMult21[p.WGPitchKeyfollow]
	baseCutoff *= key - 60

	biasPoint := int(p.BiasPoint)
	if biasPoint&0x40 == 0 {
		bias := biasPoint + 33 - key
		if bias > 0 {
			bias = -bias
			baseCutoff += bias * biasLevelToBiasMult[p.BiasLevel]
		}
	} else {
		bias := biasPoint - 31 - key
		if bias < 0 {
			baseCutoff += bias * biasLevelToBiasMult[p.BiasLevel]
		}
	}

	baseCutoff += (int(p.Cutoff) << 4) - 800
	if baseCutoff >= 0 {
		pitchDeltaThing := int(basePitch>>4) + baseCutoff - 3584
		if pitchDeltaThing > 0 {
			baseCutoff -= pitchDeltaThing
		}
	} else if baseCutoff < -2048 {
		baseCutoff = -2048
	}
	baseCutoff += 2056
	baseCutoff >>= 4
	if baseCutoff > 255 {
		baseCutoff = 255
	}
	if baseCutoff < 0 {
		baseCutoff = 0
	}
	return uint8(baseCutoff)
}

// TVF is the Time-Variant Filter ramp machine: one per partial,
// driving the wave generator's cutoffVal input every sample.
type TVF struct {
	ramp Ramp

	params     FilterParams
	baseCutoff uint8
	levelMult  int

	key                int
	keyTimeSubtraction int
}

func NewTVF() *TVF {
	t := &TVF{}
	t.ramp.SetExpander(expandFilterIncrement)
	return t
}

// Reset computes the static base cutoff and starts the first ramp
// phase, grounded on TVF::reset.
func (f *TVF) Reset(tb *tables.Tables, params FilterParams, basePitch uint32, key, velocity int) {
	f.params = params
	f.key = key
	f.baseCutoff = calcBaseCutoff(params, basePitch, key)

	newLevelMult := velocity * int(params.EnvVeloSensitivity)
	newLevelMult >>= 6
	newLevelMult += 109 - int(params.EnvVeloSensitivity)
	newLevelMult += (key - 60) >> (4 - params.EnvDepthKeyfollow)
	if newLevelMult < 0 {
		newLevelMult = 0
	}
	newLevelMult *= int(params.EnvDepth)
	newLevelMult >>= 6
	if newLevelMult > 255 {
		newLevelMult = 255
	}
	f.levelMult = newLevelMult

	if params.EnvTimeKeyfollow != 0 {
		f.keyTimeSubtraction = (key - 60) >> (5 - params.EnvTimeKeyfollow)
	} else {
		f.keyTimeSubtraction = 0
	}

	newTarget := (f.levelMult * int(params.EnvLevel[0])) >> 8
	envTimeSetting := int(params.EnvTime[0]) - f.keyTimeSubtraction
	var newInc uint8
	if envTimeSetting <= 0 {
		newInc = 0x80 | 127
	} else {
		v := int(tb.EnvLogarithmicTime[clip255u(newTarget)]) - envTimeSetting
		if v <= 0 {
			v = 1
		}
		newInc = uint8(v)
	}
	f.ramp.SetCurrentLevel(0)
	f.ramp.StartRamp(uint8(clip255(newTarget)), newInc, PhaseAttack)
}

func (f *TVF) BaseCutoff() uint8 { return f.baseCutoff }

func (f *TVF) StartDecay() {
	if f.ramp.Phase() >= PhaseRelease {
		return
	}
	var inc uint8
	if f.params.EnvTime[4] == 0 {
		inc = 1
	} else {
		inc = uint8(-int32(f.params.EnvTime[4]))
	}
	f.ramp.StartRamp(0, inc, PhaseRelease)
}

// Tick advances the cutoff ramp by one sample and returns the full
// cutoffVal wave-generator input: the static base cutoff plus the
// ramp's current envelope contribution, saturated per the wave
// generator's own 240<<18 ceiling (spec §4.1).
func (f *TVF) Tick(tb *tables.Tables, canSustain bool) uint32 {
	if f.ramp.Tick(tvfTargetMult, maxCurrentFilter) {
		f.nextPhase(tb, canSustain)
	}
	cutoffVal := (uint32(f.baseCutoff) << 18) + f.ramp.CurrentLevel()
	const maxCutoffValue = 240 << 18
	if cutoffVal > maxCutoffValue {
		cutoffVal = maxCutoffValue
	}
	return cutoffVal
}

func (f *TVF) nextPhase(tb *tables.Tables, canSustain bool) {
	phase := f.ramp.Phase() + 1

	switch phase {
	case PhaseDead:
		f.ramp.StartRamp(0, 0, PhaseDead)
		return
	case PhaseSustain, PhaseRelease:
		if !canSustain {
			f.StartDecay()
			return
		}
		target := (f.levelMult * int(f.params.EnvLevel[3])) >> 8
		f.ramp.StartRamp(uint8(clip255(target)), 0, PhaseSustain)
		return
	}

	envPointIndex := int(phase) - 1
	envTimeSetting := int(f.params.EnvTime[envPointIndex]) - f.keyTimeSubtraction
	newTarget := (f.levelMult * int(f.params.EnvLevel[envPointIndex])) >> 8

	var newInc int
	if envTimeSetting > 0 {
		targetDelta := newTarget - int(f.ramp.TargetCode())
		if targetDelta == 0 {
			if newTarget == 0 {
				targetDelta = 1
				newTarget = 1
			} else {
				targetDelta = -1
				newTarget--
			}
		}
		abs := targetDelta
		if abs < 0 {
			abs = -abs
		}
		newInc = int(tb.EnvLogarithmicTime[clip255u(abs)]) - envTimeSetting
		if newInc <= 0 {
			newInc = 1
		}
		if targetDelta < 0 {
			newInc |= 0x80
		}
	} else {
		if newTarget >= int(f.ramp.TargetCode()) {
			newInc = 0x80 | 127
		} else {
			newInc = 127
		}
	}
	f.ramp.StartRamp(uint8(clip255(newTarget)), uint8(newInc), phase)
}
