package la32

import "github.com/la32core/synth/internal/tables"

// Phase is the six-segment square-wave phase machine described in
// spec §4.1.2. We use an explicit advance() rather than raw enum
// arithmetic on the underlying int (spec §9 flags the original's
// "++(*(int*)&phase)" trick as something to never reproduce).
type Phase int

const (
	PositiveRisingSine Phase = iota
	PositiveLinear
	PositiveFallingSine
	NegativeFallingSine
	NegativeLinear
	NegativeRisingSine
)

func (p Phase) advance() Phase {
	if p == NegativeRisingSine {
		return PositiveRisingSine
	}
	return p + 1
}

// ResonancePhase mirrors the square-wave phase but tracks the
// resonance sine's own quarter-cycle position.
type ResonancePhase int

const (
	PositiveRisingResonanceSine ResonancePhase = iota
	PositiveFallingResonanceSine
	NegativeRisingResonanceSine
	NegativeFallingResonanceSine
)

const (
	middleCutoffValue             = 128 << 18
	resonanceDecayThresholdCutoff = 144 << 18
	maxCutoffValue                = 240 << 18
)

// WaveGenerator is a single LA32 oscillator: one half of a
// la32.PartialPair. It runs in either synth mode (square/sawtooth +
// resonance sine, generated from the fixed-point counters) or PCM
// mode (stepping through a sampled waveform).
type WaveGenerator struct {
	tables *tables.Tables
	active bool

	// synth-mode parameters, latched by InitSynth.
	sawtoothWaveform bool
	pulseWidth       uint8
	resonance        uint8

	phase                 Phase
	resonancePhase         ResonancePhase
	squareWavePosition     uint32
	resonanceSinePosition  uint32
	sawtoothCosinePosition uint32

	sampleStep         uint32
	sawtoothCosineStep uint32
	highLen            uint32
	lowLen             uint32

	resonanceAmpSubtraction uint32
	resAmpDecayFactor       uint32

	squareLogSample    LogSample
	resonanceLogSample LogSample

	// per-tick inputs, latched by GenerateNextSample.
	amp       uint32
	pitch     uint16
	cutoffVal uint32

	// PCM-mode parameters, latched by InitPCM.
	pcmWave             []int16
	pcmWaveLooped       bool
	pcmWaveInterpolated bool
	pcmPosition         uint32 // 8.8 fixed point
	pcmSampleStep       uint32
	pcmInterpolationFactor uint32
	firstPCMLogSample      LogSample
	secondPCMLogSample     LogSample
}

// NewWaveGenerator creates an inactive wave generator bound to a
// shared Tables instance.
func NewWaveGenerator(t *tables.Tables) *WaveGenerator {
	return &WaveGenerator{tables: t}
}

// InitSynth configures the generator for oscillator (square/resonance)
// mode and activates it.
func (w *WaveGenerator) InitSynth(sawtoothWaveform bool, pulseWidth, resonance uint8) {
	w.sawtoothWaveform = sawtoothWaveform
	w.pulseWidth = pulseWidth
	w.resonance = resonance

	w.phase = PositiveRisingSine
	w.squareWavePosition = 0
	w.sawtoothCosinePosition = 1 << 18

	w.resonancePhase = PositiveRisingResonanceSine
	w.resonanceSinePosition = 0
	w.resonanceAmpSubtraction = uint32(32-resonance) << 10

	w.resAmpDecayFactor = w.tables.ResAmpDecayFactor[resonance>>2] << 2

	w.pcmWave = nil
	w.active = true
}

// InitPCM configures the generator for PCM playback and activates it.
// interpolated controls whether a second (lookahead) sample is
// fetched each tick for linear interpolation; per spec §4.2 this is
// disabled on a ring-modulating slave, whose interpolator is borrowed
// by the ring-mod multiplier instead.
func (w *WaveGenerator) InitPCM(wave []int16, looped, interpolated bool) {
	w.pcmWave = wave
	w.pcmWaveLooped = looped
	w.pcmWaveInterpolated = interpolated
	w.pcmPosition = 0
	w.active = true
}

func (w *WaveGenerator) IsActive() bool  { return w.active }
func (w *WaveGenerator) IsPCMWave() bool { return w.pcmWave != nil }
func (w *WaveGenerator) Deactivate()     { w.active = false }

// PCMInterpolationFactor returns the 7-bit interpolation weight the
// mixer should apply between the two PCM log samples.
func (w *WaveGenerator) PCMInterpolationFactor() uint32 { return w.pcmInterpolationFactor }

func (w *WaveGenerator) updateWaveGeneratorState() {
	if w.sawtoothWaveform {
		expArgInt := w.pitch >> 12
		w.sawtoothCosineStep = uint32(w.tables.InterpolateExp(^w.pitch & 4095))
		if expArgInt < 8 {
			w.sawtoothCosineStep >>= 8 - expArgInt
		} else {
			w.sawtoothCosineStep <<= expArgInt - 8
		}
	}

	var cosineLenFactor uint32
	if w.cutoffVal > middleCutoffValue {
		cosineLenFactor = (w.cutoffVal - middleCutoffValue) >> 10
	}

	expArg := uint32(w.pitch) + cosineLenFactor
	expArgInt := expArg >> 12
	w.sampleStep = uint32(w.tables.InterpolateExp(uint16(^expArg & 4095)))
	if expArgInt < 8 {
		w.sampleStep >>= 8 - expArgInt
	} else {
		w.sampleStep <<= expArgInt - 8
	}

	var pulseLenFactor uint32
	if w.pulseWidth > 128 {
		pulseLenFactor = uint32(w.pulseWidth-128) << 6
	}

	if pulseLenFactor < cosineLenFactor {
		arg := cosineLenFactor - pulseLenFactor
		argInt := arg >> 12
		w.highLen = uint32(w.tables.InterpolateExp(uint16(^arg & 4095)))
		w.highLen <<= 7 + argInt
		if w.highLen > (2 << 18) {
			w.highLen -= 2 << 18
		} else {
			w.highLen = 0
		}
	} else {
		w.highLen = 0
	}

	// lowLen is not clamped: like the hardware, an unsigned underflow
	// here wraps rather than saturates. Only highLen gets an explicit
	// floor per spec.
	w.lowLen = uint32(w.tables.InterpolateExp(uint16(^cosineLenFactor & 4095)))
	w.lowLen <<= 8 + (cosineLenFactor >> 12)
	w.lowLen -= (4 << 18) + w.highLen
}

func (w *WaveGenerator) advancePosition() {
	w.squareWavePosition += w.sampleStep
	w.resonanceSinePosition += w.sampleStep
	if w.sawtoothWaveform {
		w.sawtoothCosinePosition = (w.sawtoothCosinePosition + w.sawtoothCosineStep) & ((1 << 20) - 1)
	}
	for {
		switch w.phase {
		case PositiveLinear:
			if w.squareWavePosition < w.highLen {
				goto done
			}
			w.squareWavePosition -= w.highLen
			w.phase = PositiveFallingSine
		case NegativeLinear:
			if w.squareWavePosition < w.lowLen {
				goto done
			}
			w.squareWavePosition -= w.lowLen
			w.phase = NegativeRisingSine
		default:
			if w.squareWavePosition < (1 << 18) {
				goto done
			}
			w.squareWavePosition -= 1 << 18
			if w.phase == NegativeRisingSine {
				w.phase = PositiveRisingSine
				w.resonanceSinePosition = w.squareWavePosition
				w.sawtoothCosinePosition = 1 << 18
			} else {
				w.phase = w.phase.advance()
				if w.phase == NegativeFallingSine {
					w.resonanceSinePosition = w.squareWavePosition
				}
			}
		}
	}
done:
	rp := (w.resonanceSinePosition >> 18) & 1
	if w.phase > PositiveFallingSine {
		rp |= 2
	}
	w.resonancePhase = ResonancePhase(rp)
}

func (w *WaveGenerator) generateNextSquareWaveLogSample() {
	var logSampleValue uint32
	switch w.phase {
	case PositiveRisingSine:
		logSampleValue = uint32(w.tables.LogSinAt(w.squareWavePosition>>9, false))
	case PositiveLinear:
		logSampleValue = 0
	case PositiveFallingSine:
		logSampleValue = uint32(w.tables.LogSinAt(w.squareWavePosition>>9, true))
	case NegativeFallingSine:
		logSampleValue = uint32(w.tables.LogSinAt(w.squareWavePosition>>9, false))
	case NegativeLinear:
		logSampleValue = 0
	case NegativeRisingSine:
		logSampleValue = uint32(w.tables.LogSinAt(w.squareWavePosition>>9, true))
	}
	logSampleValue <<= 2
	logSampleValue += w.amp >> 10
	if w.cutoffVal < middleCutoffValue {
		logSampleValue += (middleCutoffValue - w.cutoffVal) >> 9
	}
	w.squareLogSample = saturate(logSampleValue, w.phase < NegativeFallingSine)
}

func (w *WaveGenerator) generateNextResonanceWaveLogSample() {
	var logSampleValue uint32
	if w.resonancePhase == PositiveFallingResonanceSine || w.resonancePhase == NegativeRisingResonanceSine {
		logSampleValue = uint32(w.tables.LogSinAt(w.resonanceSinePosition>>9, true))
	} else {
		logSampleValue = uint32(w.tables.LogSinAt(w.resonanceSinePosition>>9, false))
	}
	logSampleValue <<= 2
	logSampleValue += w.amp >> 10

	decayFactor := w.resAmpDecayFactor
	if w.phase >= NegativeFallingSine {
		decayFactor++
	}
	logSampleValue += w.resonanceAmpSubtraction + ((w.resonanceSinePosition * decayFactor) >> 12)

	if w.phase == PositiveRisingSine || w.phase == NegativeFallingSine {
		logSampleValue += uint32(w.tables.LogSinAt(w.squareWavePosition>>9, false)) << 2
	} else if w.phase == PositiveFallingSine || w.phase == NegativeRisingSine {
		logSampleValue += uint32(w.tables.LogSinAt(w.squareWavePosition>>9, true)) << 3
	}

	if w.cutoffVal < middleCutoffValue {
		logSampleValue += 31743 + ((middleCutoffValue - w.cutoffVal) >> 9)
	} else if w.cutoffVal < resonanceDecayThresholdCutoff {
		sineIx := (w.cutoffVal - middleCutoffValue) >> 13
		logSampleValue += uint32(w.tables.LogSin9[sineIx&511]) << 2
	}

	// Underflow here wraps (logSampleValue is unsigned) rather than
	// clamping to 0; saturate() then clips the wrapped value to 65535
	// (near-silence), matching the hardware's sign of saturation.
	logSampleValue -= 1 << 12
	w.resonanceLogSample = saturate(logSampleValue, w.resonancePhase < NegativeFallingResonanceSine)
}

func (w *WaveGenerator) nextSawtoothCosineLogSample() LogSample {
	var v uint32
	if w.sawtoothCosinePosition&(1<<18) > 0 {
		v = uint32(w.tables.LogSinAt(w.sawtoothCosinePosition>>9, true))
	} else {
		v = uint32(w.tables.LogSinAt(w.sawtoothCosinePosition>>9, false))
	}
	v <<= 2
	sign := w.sawtoothCosinePosition&(1<<19) != 0
	return saturate(v, !sign)
}

func saturate(v uint32, positive bool) LogSample {
	s := Positive
	if !positive {
		s = Negative
	}
	if v < 65536 {
		return LogSample{LogValue: uint16(v), Sign: s}
	}
	return LogSample{LogValue: 65535, Sign: s}
}

func (w *WaveGenerator) pcmSampleToLogSample(sample int16) LogSample {
	sign := Positive
	if sample < 0 {
		sign = Negative
	}
	logSampleValue := uint32(32787-(uint32(sample)&32767)) << 1
	logSampleValue += w.amp >> 10
	if logSampleValue >= 65536 {
		logSampleValue = 65535
	}
	return LogSample{LogValue: uint16(logSampleValue), Sign: sign}
}

func (w *WaveGenerator) generateNextPCMWaveLogSamples() {
	w.pcmSampleStep = uint32(w.tables.InterpolateExp(^w.pitch & 4095))
	w.pcmSampleStep <<= w.pitch >> 12
	w.pcmSampleStep >>= 9
	w.pcmInterpolationFactor = (w.pcmPosition & 255) >> 1

	wavLen := uint32(len(w.pcmWave))
	ix := w.pcmPosition >> 8
	w.firstPCMLogSample = w.pcmSampleToLogSample(w.pcmWave[ix%wavLen])
	if w.pcmWaveInterpolated {
		next := ix + 1
		if next < wavLen {
			w.secondPCMLogSample = w.pcmSampleToLogSample(w.pcmWave[next])
		} else if w.pcmWaveLooped {
			w.secondPCMLogSample = w.pcmSampleToLogSample(w.pcmWave[next-wavLen])
		} else {
			w.secondPCMLogSample = Silence
		}
	} else {
		w.secondPCMLogSample = Silence
	}
	w.pcmPosition += w.pcmSampleStep
	if w.pcmPosition >= wavLen<<8 {
		if w.pcmWaveLooped {
			w.pcmPosition -= wavLen << 8
		} else {
			w.active = false
		}
	}
}

// GenerateNextSample advances the generator by one tick given the
// current TVA amplitude, TVP pitch and TVF cutoff targets.
func (w *WaveGenerator) GenerateNextSample(amp uint32, pitch uint16, cutoffVal uint32) {
	if !w.active {
		return
	}
	w.amp = amp
	w.pitch = pitch

	if w.IsPCMWave() {
		w.generateNextPCMWaveLogSamples()
		return
	}

	if cutoffVal > maxCutoffValue {
		cutoffVal = maxCutoffValue
	}
	w.cutoffVal = cutoffVal

	w.updateWaveGeneratorState()
	w.generateNextSquareWaveLogSample()
	w.generateNextResonanceWaveLogSample()
	if w.sawtoothWaveform {
		cosine := w.nextSawtoothCosineLogSample()
		w.squareLogSample = AddLogSamples(w.squareLogSample, cosine)
		w.resonanceLogSample = AddLogSamples(w.resonanceLogSample, cosine)
	}
	w.advancePosition()
}

// GetOutputLogSample returns the square/resonance pair (synth mode) or
// the two adjacent PCM samples (PCM mode); first selects which of the
// pair.
func (w *WaveGenerator) GetOutputLogSample(first bool) LogSample {
	if !w.active {
		return Silence
	}
	if w.IsPCMWave() {
		if first {
			return w.firstPCMLogSample
		}
		return w.secondPCMLogSample
	}
	if first {
		return w.squareLogSample
	}
	return w.resonanceLogSample
}
