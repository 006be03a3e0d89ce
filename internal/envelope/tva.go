package envelope

import "github.com/la32core/synth/internal/tables"

// tvaAmpTargetMult scales an 8-bit amp code into the ramp's internal
// fixed-point units (semi-confirmed from sample analysis).
const tvaAmpTargetMult = 0x40000

const maxCurrentAmp = 0xff * tvaAmpTargetMult

// AmpParams holds the per-partial TVA parameters a patch/timbre
// carries (spec §3's "TVA" row). Field names follow the control ROM's
// layout rather than any particular struct shape in this repo's part
// package, which constructs one of these from its patch cache at
// note-on.
type AmpParams struct {
	Level             uint8
	VeloSensitivity   uint8
	BiasPoint1        uint8
	BiasLevel1        uint8
	BiasPoint2        uint8
	BiasLevel2        uint8
	EnvTimeKeyfollow  uint8
	EnvTimeVeloSens   uint8
	EnvTime           [5]uint8
	EnvLevel          [4]uint8
	Resonance         uint8 // TVF resonance; TVA's basicAmp also subtracts half of this.
}

// AmpContext supplies the live, frequently-changing values TVA needs
// on every recalc: system/part/poly state it doesn't own itself.
type AmpContext struct {
	MasterVol           uint8
	PatchOutputLevel    uint8
	RhythmOutputLevel   uint8
	HasRhythmTemp       bool
	Expression          uint8
	IsRingModulatingSlave bool
}

// TVA is the Time-Variant Amplitude ramp machine: one per partial,
// driving the wave generator's amp input every sample.
type TVA struct {
	ramp Ramp

	params AmpParams
	key    int
	velocity int

	keyTimeSubtraction int
	biasAmpSubtraction int
	veloAmpSubtraction int

	canSustain bool
	playing    bool
}

// NewTVA constructs an idle TVA; call Reset before the first Tick.
func NewTVA() *TVA {
	t := &TVA{}
	t.ramp.SetExpander(expandAmpIncrement)
	return t
}

// Reset starts the TVA ramp machine for a freshly allocated partial,
// grounded on TVA::reset.
func (t *TVA) Reset(tb *tables.Tables, params AmpParams, ctx AmpContext, key, velocity int, canSustain bool) {
	t.params = params
	t.key = key
	t.velocity = velocity
	t.canSustain = canSustain
	t.playing = true

	t.keyTimeSubtraction = calcKeyTimeSubtraction(params.EnvTimeKeyfollow, key)
	t.biasAmpSubtraction = calcBiasAmpSubtractions(params.BiasPoint1, params.BiasLevel1, params.BiasPoint2, params.BiasLevel2, key)
	t.veloAmpSubtraction = calcVeloAmpSubtraction(params.VeloSensitivity, velocity)

	newAmpTarget := t.calcBasicAmp(tb, ctx)
	var newPhase Phase
	if params.EnvTime[0] == 0 {
		newAmpTarget += int(params.EnvLevel[0])
		newPhase = PhaseAttack
	} else {
		newPhase = PhaseBasic
	}

	t.ramp.SetCurrentLevel(0)
	t.ramp.StartRamp(uint8(clip255(newAmpTarget)), 0x80|127, newPhase)
}

// StartAbort forces the TVA into a fast descending ramp toward
// silence, used when the partial manager preempts this partial.
func (t *TVA) StartAbort() {
	t.ramp.StartRamp(64, 0x80|127, PhaseRelease)
}

// StartDecay begins the release ramp following a note-off.
func (t *TVA) StartDecay() {
	if t.ramp.Phase() >= PhaseRelease {
		return
	}
	var inc uint8
	if t.params.EnvTime[4] == 0 {
		inc = 1
	} else {
		// Two's-complement negation of an unsigned byte, matching the
		// reference's `-envTime[4]` on a Bit8u field exactly (this is
		// not the same bit pattern as setting just the direction bit).
		inc = uint8(-int32(t.params.EnvTime[4]))
	}
	t.ramp.StartRamp(0, inc, PhaseRelease)
}

func (t *TVA) calcBasicAmp(tb *tables.Tables, ctx AmpContext) int {
	amp := 155
	if !ctx.IsRingModulatingSlave {
		amp -= int(tb.MasterVolToAmpSubtraction[clampIndex(ctx.MasterVol)])
		if amp < 0 {
			return 0
		}
		amp -= int(tb.LevelToAmpSubtraction[clampIndex(ctx.PatchOutputLevel)])
		if amp < 0 {
			return 0
		}
		amp -= int(tb.LevelToAmpSubtraction[clampIndex(ctx.Expression)])
		if amp < 0 {
			return 0
		}
		if ctx.HasRhythmTemp {
			amp -= int(tb.LevelToAmpSubtraction[clampIndex(ctx.RhythmOutputLevel)])
			if amp < 0 {
				return 0
			}
		}
	}
	amp -= t.biasAmpSubtraction
	if amp < 0 {
		return 0
	}
	amp -= int(tb.LevelToAmpSubtraction[clampIndex(t.params.Level)])
	if amp < 0 {
		return 0
	}
	amp -= t.veloAmpSubtraction
	if amp < 0 {
		return 0
	}
	if amp > 155 {
		amp = 155
	}
	amp -= int(t.params.Resonance) >> 1
	if amp < 0 {
		return 0
	}
	return amp
}

func clampIndex(v uint8) uint8 {
	if v > 100 {
		return 100
	}
	return v
}

// RecalcSustain re-evaluates the amp target while sustaining, so live
// volume/expression changes are heard without waiting for a note-off.
// Preserves the reference's quirk of skipping recalculation entirely
// when EnvLevel[3] == 0 (spec §9 flags this as unresolved but
// behavior-preserving).
func (t *TVA) RecalcSustain(tb *tables.Tables, ctx AmpContext) {
	if t.ramp.Phase() != PhaseSustain || t.params.EnvLevel[3] == 0 {
		return
	}
	newAmpTarget := t.calcBasicAmp(tb, ctx) + int(t.params.EnvLevel[3])
	ampDelta := newAmpTarget - int(t.ramp.TargetCode())

	var newInc uint8
	if ampDelta >= 0 {
		newInc = uint8(tb.EnvLogarithmicTime[clip255u(ampDelta)] - 2)
	} else {
		newInc = 0x80 | uint8(tb.EnvLogarithmicTime[clip255u(-ampDelta)]-2)
	}
	t.ramp.StartRamp(uint8(clip255(newAmpTarget)), newInc, PhaseSustain-1)
}

func clip255u(v int) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

// Tick advances the amp ramp by one sample and returns the current
// LA32 amp target (0..255, the wave generator's `amp` input scaled
// to its 24-bit form) along with whether the partial has finished
// (phase reached DEAD).
func (t *TVA) Tick(tb *tables.Tables, ctx AmpContext) (amp uint32, done bool) {
	if t.ramp.Tick(tvaAmpTargetMult, maxCurrentAmp) {
		t.nextPhase(tb, ctx)
	}
	return t.ramp.CurrentLevel(), t.ramp.Phase() == PhaseDead
}

func (t *TVA) nextPhase(tb *tables.Tables, ctx AmpContext) {
	phase := t.ramp.Phase()
	if phase >= PhaseDead || !t.playing {
		return
	}
	newPhase := phase.next()
	if newPhase == PhaseDead {
		t.playing = false
		t.ramp.StartRamp(t.ramp.TargetCode(), 0, PhaseDead)
		return
	}

	allLevelsZero := false
	if t.params.EnvLevel[3] == 0 {
		if newPhase == PhaseSustain {
			allLevelsZero = true
		} else if t.params.EnvLevel[2] == 0 {
			if newPhase == Phase3 {
				allLevelsZero = true
			} else if t.params.EnvLevel[1] == 0 {
				if newPhase == Phase2 {
					allLevelsZero = true
				} else if t.params.EnvLevel[0] == 0 && newPhase == PhaseAttack {
					allLevelsZero = true
				}
			}
		}
	}

	var newTarget int
	var newInc int
	envPointIndex := int(phase)

	if !allLevelsZero {
		newTarget = t.calcBasicAmp(tb, ctx)
		if newPhase == PhaseSustain || newPhase == PhaseRelease {
			if t.params.EnvLevel[3] == 0 {
				t.playing = false
				t.ramp.StartRamp(t.ramp.TargetCode(), 0, newPhase)
				return
			}
			if !t.canSustain {
				newPhase = PhaseRelease
				newTarget = 0
				newInc = -int(t.params.EnvTime[4])
				if newInc == 0 {
					newInc = 1
				}
			} else {
				newTarget += int(t.params.EnvLevel[3])
				newInc = 0
			}
		} else {
			newTarget += int(t.params.EnvLevel[envPointIndex])
		}
	}

	if (newPhase != PhaseSustain && newPhase != PhaseRelease) || allLevelsZero {
		envTimeSetting := int(t.params.EnvTime[envPointIndex])
		if newPhase == PhaseAttack {
			shift := uint(6 - int(t.params.EnvTimeVeloSens))
			envTimeSetting -= (t.velocity - 64) >> shift
			if envTimeSetting <= 0 && t.params.EnvTime[envPointIndex] != 0 {
				envTimeSetting = 1
			}
		} else {
			envTimeSetting -= t.keyTimeSubtraction
		}
		if envTimeSetting > 0 {
			ampDelta := newTarget - int(t.ramp.TargetCode())
			if ampDelta <= 0 {
				if ampDelta == 0 {
					ampDelta = -1
					newTarget--
					if newTarget < 0 {
						ampDelta = 1
						newTarget = -newTarget
					}
				}
				ampDelta = -ampDelta
				v := int(tb.EnvLogarithmicTime[clip255u(ampDelta)]) - envTimeSetting
				if v <= 0 {
					v = 1
				}
				newInc = v | 0x80
			} else {
				v := int(tb.EnvLogarithmicTime[clip255u(ampDelta)]) - envTimeSetting
				if v <= 0 {
					v = 1
				}
				newInc = v
			}
		} else {
			if newTarget >= int(t.ramp.TargetCode()) {
				newInc = 0x80 | 127
			} else {
				newInc = 127
			}
		}
		if newInc == 0 {
			newInc = 1
		}
	}

	t.ramp.StartRamp(uint8(clip255(newTarget)), uint8(newInc), newPhase)
}

// IsPlaying reports whether the partial's TVA has not yet reached DEAD.
func (t *TVA) IsPlaying() bool { return t.playing }

// GetPhase returns the current ramp phase.
func (t *TVA) GetPhase() Phase { return t.ramp.Phase() }
