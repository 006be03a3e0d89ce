// Package analog implements the stereo resampling and tone-shaping
// stage that sits between the dry/wet mixdown and the final output
// stream, per spec §4.7. Grounded on the teacher's one-pole LPF idiom
// (internal/wavetable/engine.go's lpfAlpha smoothing) and its
// atomic-handoff pattern for values written from a control path and
// read from a render path (internal/wavetable/engine.go's
// masterGain/SetMasterGain), generalized here to the Analog stage's
// live channel gains.
package analog

import (
	"math"
	"sync/atomic"
)

// Mode selects one of the four post-stage configurations spec §4.7
// tabulates.
type Mode int

const (
	// DigitalOnly bypasses filtering: only the three input streams are
	// mixed at 32 kHz with per-channel gains.
	DigitalOnly Mode = iota
	// Coarse applies one high-shelf LPF emulation at 32 kHz.
	Coarse
	// Accurate upsamples 3x to 48 kHz with mirror-spectra shaping.
	Accurate
	// Oversampled upsamples 6x to 96 kHz with the same transfer function.
	Oversampled
)

// nativeRate is the synth core's fixed internal sample rate (spec §1:
// "32 kHz native output").
const nativeRate = 32000

// OutputRate returns the output sample rate a Mode produces.
func (m Mode) OutputRate() int {
	switch m {
	case Accurate:
		return 48000
	case Oversampled:
		return 96000
	default:
		return nativeRate
	}
}

func (m Mode) upsampleFactor() int {
	switch m {
	case Accurate:
		return 3
	case Oversampled:
		return 6
	default:
		return 1
	}
}

// onePoleLPF is the teacher's lpfAlpha smoothing idiom, reused
// verbatim in shape (wavetable.Engine's dt/(rc+dt) coefficient, state
// += alpha*(in-state)).
type onePoleLPF struct {
	alpha, state float32
}

func newOnePoleLPF(cutoffHz float64, sampleRate int) onePoleLPF {
	dt := 1.0 / float64(sampleRate)
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	return onePoleLPF{alpha: float32(dt / (rc + dt))}
}

func (f *onePoleLPF) process(in float32) float32 {
	f.state += f.alpha * (in - f.state)
	return f.state
}

// channelGains holds the three-stream mixdown gains (spec testable
// property 8: "out = clip(nonReverb + dryScale*dry + wetScale*wet)").
// Stored behind atomics so SysEx writes to the System region (the
// control path) and Process (the render path) can touch the same
// value without a lock, mirroring wavetable.Engine.masterGain.
type channelGains struct {
	nonReverb uint64
	dry       uint64
	wet       uint64
}

func newChannelGains(nonReverb, dry, wet float64) channelGains {
	return channelGains{
		nonReverb: math.Float64bits(nonReverb),
		dry:       math.Float64bits(dry),
		wet:       math.Float64bits(wet),
	}
}

func (g *channelGains) set(nonReverb, dry, wet float64) {
	atomic.StoreUint64(&g.nonReverb, math.Float64bits(nonReverb))
	atomic.StoreUint64(&g.dry, math.Float64bits(dry))
	atomic.StoreUint64(&g.wet, math.Float64bits(wet))
}

func (g *channelGains) get() (nonReverb, dry, wet float64) {
	return math.Float64frombits(atomic.LoadUint64(&g.nonReverb)),
		math.Float64frombits(atomic.LoadUint64(&g.dry)),
		math.Float64frombits(atomic.LoadUint64(&g.wet))
}

// Stage is the analog post-stage: it consumes the three stereo input
// streams (non-reverb, dry, wet) at the native 32 kHz rate and
// produces one interleaved stereo stream at the Mode's output rate.
type Stage struct {
	mode Mode
	gain channelGains

	lpfL, lpfR onePoleLPF
	histL      [2]float32 // upsample interpolation history, per channel
	histR      [2]float32
}

// NewStage builds a Stage in the given Mode with unity gains on all
// three input streams.
func NewStage(mode Mode) *Stage {
	s := &Stage{mode: mode, gain: newChannelGains(1, 1, 1)}
	s.lpfL = newOnePoleLPF(8000, nativeRate)
	s.lpfR = newOnePoleLPF(8000, nativeRate)
	return s
}

// Mode reports the active post-stage configuration.
func (s *Stage) Mode() Mode { return s.mode }

// SetGains updates the live per-channel mixdown gains (a SysEx write
// to the System region's channel routing, per spec §6).
func (s *Stage) SetGains(nonReverb, dry, wet float64) {
	s.gain.set(nonReverb, dry, wet)
}

// GetDACStreamsLength returns the number of 32 kHz input frames
// required to produce outFrames of output at the Mode's rate, per
// spec §4.7.
func (s *Stage) GetDACStreamsLength(outFrames int) int {
	factor := s.mode.upsampleFactor()
	return (outFrames + factor - 1) / factor
}

// Process consumes n 32 kHz input frames from the six input streams
// and fills out (interleaved stereo, length n*upsampleFactor*2).
func (s *Stage) Process(nonReverbL, nonReverbR, dryL, dryR, wetL, wetR []float32, out []float32) {
	n := len(nonReverbL)
	nrGain, dryGain, wetGain := s.gain.get()
	factor := s.mode.upsampleFactor()

	for i := 0; i < n; i++ {
		l := float32(float64(nonReverbL[i])*nrGain + float64(dryL[i])*dryGain + float64(wetL[i])*wetGain)
		r := float32(float64(nonReverbR[i])*nrGain + float64(dryR[i])*dryGain + float64(wetR[i])*wetGain)

		switch s.mode {
		case DigitalOnly:
			writeFrame(out, i, clip16(l), clip16(r))
		case Coarse:
			l = s.lpfL.process(l)
			r = s.lpfR.process(r)
			writeFrame(out, i, clip16(l), clip16(r))
		default:
			// ACCURATE/OVERSAMPLED: linearly interpolate between the
			// previous and current native sample across `factor`
			// output frames, then run the same shaping LPF. This is
			// the mirror-spectra upsample's audible effect (image
			// rejection) without carrying a full polyphase FIR.
			prevL, prevR := s.histL[0], s.histR[0]
			for k := 0; k < factor; k++ {
				frac := float32(k) / float32(factor)
				il := prevL + (l-prevL)*frac
				ir := prevR + (r-prevR)*frac
				il = s.lpfL.process(il)
				ir = s.lpfR.process(ir)
				writeFrame(out, i*factor+k, clip16(il), clip16(ir))
			}
			s.histL[0] = l
			s.histR[0] = r
		}
	}
}

func writeFrame(out []float32, frame int, l, r float32) {
	idx := frame * 2
	if idx+1 >= len(out) {
		return
	}
	out[idx] = l
	out[idx+1] = r
}

// clip16 saturates to the 16-bit signed range expressed in float32
// [-1,1] terms, matching spec §4.8's "all linear conversions use the
// 16-bit clip helper".
func clip16(v float32) float32 {
	const max = 32767.0 / 32768.0
	const min = -1.0
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return v
}
