// Package la32 implements the LA32 partial wave generator: the
// per-partial oscillator that produces a filtered, optionally
// resonant, optionally ring-modulated sample stream in a logarithmic
// fixed-point number system (see spec §4.1-4.2).
package la32

import "github.com/la32core/synth/internal/tables"

// Sign is the sign bit of a LogSample.
type Sign bool

const (
	Positive Sign = false
	Negative Sign = true
)

// LogSample represents an amplitude in the logarithmic domain:
// logValue = -log2(|amplitude|) * 2^12, so 0 is full scale and 65535
// is silence. Adding two LogSamples multiplies their linear magnitudes
// and XORs their signs.
type LogSample struct {
	LogValue uint16
	Sign     Sign
}

// Silence is the log-domain representation of zero amplitude.
var Silence = LogSample{LogValue: 65535, Sign: Positive}

// AddLogSamples returns the log-domain sum of a and b, saturating at
// 65535 (full silence) and XORing their signs — this realizes linear
// multiplication (and, for ring modulation, the product of two
// waveforms) as a single addition.
func AddLogSamples(a, b LogSample) LogSample {
	sum := uint32(a.LogValue) + uint32(b.LogValue)
	var v uint16
	if sum < 65536 {
		v = uint16(sum)
	} else {
		v = 65535
	}
	return LogSample{LogValue: v, Sign: a.Sign != b.Sign}
}

// Unlog converts a LogSample to a linear 16-bit signed sample using
// the tables' 9-bit exponent LUT, interpolated by the low 3 fractional
// bits and shifted by the integer part.
func Unlog(t *tables.Tables, s LogSample) int16 {
	intLogValue := s.LogValue >> 12
	fracLogValue := s.LogValue & 4095
	sample := t.InterpolateExp(fracLogValue) >> intLogValue
	if s.Sign == Negative {
		return -int16(sample)
	}
	return int16(sample)
}

// ClipSample saturates a wider accumulator to a 16-bit signed sample,
// the linear-domain analogue of LogSample saturation used wherever
// partial-pair and mixer sums are converted back to PCM.
func ClipSample(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
