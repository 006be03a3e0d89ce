package la32

import (
	"testing"

	"github.com/la32core/synth/internal/tables"
)

func TestAddLogSamplesSaturates(t *testing.T) {
	a := LogSample{LogValue: 60000, Sign: Positive}
	b := LogSample{LogValue: 10000, Sign: Negative}
	sum := AddLogSamples(a, b)
	if sum.LogValue != 65535 {
		t.Fatalf("expected saturation to 65535, got %d", sum.LogValue)
	}
	if sum.Sign != Negative {
		t.Fatalf("expected sign xor to be Negative")
	}
}

func TestAddLogSamplesSignXor(t *testing.T) {
	a := LogSample{LogValue: 100, Sign: Positive}
	b := LogSample{LogValue: 200, Sign: Positive}
	sum := AddLogSamples(a, b)
	if sum.LogValue != 300 || sum.Sign != Positive {
		t.Fatalf("got {%d %v}, want {300 Positive}", sum.LogValue, sum.Sign)
	}
}

func TestUnlogZeroIsFullScale(t *testing.T) {
	tb := tables.New()
	s := LogSample{LogValue: 0, Sign: Positive}
	v := Unlog(tb, s)
	if v <= 0 {
		t.Fatalf("Unlog(0) should be near full scale positive, got %d", v)
	}
}

func TestUnlogSilenceIsZero(t *testing.T) {
	tb := tables.New()
	v := Unlog(tb, Silence)
	if v != 0 {
		t.Fatalf("Unlog(Silence) = %d, want 0", v)
	}
}

func TestUnlogSignFlips(t *testing.T) {
	tb := tables.New()
	pos := Unlog(tb, LogSample{LogValue: 4096, Sign: Positive})
	neg := Unlog(tb, LogSample{LogValue: 4096, Sign: Negative})
	if neg != -pos {
		t.Fatalf("Unlog sign mismatch: pos=%d neg=%d", pos, neg)
	}
}

func TestClipSampleSaturates(t *testing.T) {
	if ClipSample(40000) != 32767 {
		t.Fatalf("expected clip to 32767")
	}
	if ClipSample(-40000) != -32768 {
		t.Fatalf("expected clip to -32768")
	}
	if ClipSample(123) != 123 {
		t.Fatalf("expected passthrough for in-range value")
	}
}

func TestWaveGeneratorSynthProducesNonSilentOutput(t *testing.T) {
	tb := tables.New()
	w := NewWaveGenerator(tb)
	w.InitSynth(false, 128, 0)
	if !w.IsActive() {
		t.Fatalf("expected generator active after InitSynth")
	}
	sawSound := false
	for i := 0; i < 200; i++ {
		w.GenerateNextSample(0, 8000, 100<<18)
		first := w.GetOutputLogSample(true)
		if first.LogValue != Silence.LogValue {
			sawSound = true
		}
	}
	if !sawSound {
		t.Fatalf("expected at least one non-silent tick")
	}
}

func TestWaveGeneratorPCMNonLoopedDeactivatesAtEnd(t *testing.T) {
	tb := tables.New()
	w := NewWaveGenerator(tb)
	wave := make([]int16, 4)
	for i := range wave {
		wave[i] = int16(1000 * (i + 1))
	}
	w.InitPCM(wave, false, true)
	for i := 0; i < 10000 && w.IsActive(); i++ {
		w.GenerateNextSample(0, 8000, 0)
	}
	if w.IsActive() {
		t.Fatalf("expected non-looped PCM generator to deactivate")
	}
}

func TestWaveGeneratorPCMLoopedStaysActive(t *testing.T) {
	tb := tables.New()
	w := NewWaveGenerator(tb)
	wave := []int16{100, 200, 300, 400}
	w.InitPCM(wave, true, true)
	for i := 0; i < 10000; i++ {
		w.GenerateNextSample(0, 8000, 0)
	}
	if !w.IsActive() {
		t.Fatalf("expected looped PCM generator to remain active")
	}
}

func TestPartialPairPlainSumModeMixesBothHalves(t *testing.T) {
	tb := tables.New()
	p := NewPartialPair(tb)
	p.Init(false, false)
	p.InitSynth(Master, false, 128, 0)
	p.InitSynth(Slave, false, 128, 0)
	for i := 0; i < 50; i++ {
		p.GenerateNextSample(Master, 0, 8000, 100<<18)
		p.GenerateNextSample(Slave, 0, 8000, 100<<18)
		_ = p.NextOutSample(tb)
	}
	if !p.IsActive(Master) || !p.IsActive(Slave) {
		t.Fatalf("expected both halves active")
	}
}

func TestPartialPairRingModulatedUsesSlaveAsModulator(t *testing.T) {
	tb := tables.New()
	p := NewPartialPair(tb)
	p.Init(true, false)
	p.InitSynth(Master, false, 128, 0)
	p.InitSynth(Slave, false, 128, 0)
	var sample int16
	for i := 0; i < 50; i++ {
		p.GenerateNextSample(Master, 0, 8000, 100<<18)
		p.GenerateNextSample(Slave, 0, 8000, 100<<18)
		sample = p.NextOutSample(tb)
	}
	_ = sample
}

func TestPartialPairDeactivateIsPerHalf(t *testing.T) {
	tb := tables.New()
	p := NewPartialPair(tb)
	p.Init(false, false)
	p.InitSynth(Master, false, 128, 0)
	p.InitSynth(Slave, false, 128, 0)
	p.Deactivate(Slave)
	if p.IsActive(Slave) {
		t.Fatalf("expected slave deactivated")
	}
	if !p.IsActive(Master) {
		t.Fatalf("expected master to remain active")
	}
}

func TestUnlogAndMixWGOutputSilentRingModulatorMutesOutput(t *testing.T) {
	tb := tables.New()
	w := NewWaveGenerator(tb)
	w.InitSynth(false, 128, 0)
	w.GenerateNextSample(0, 8000, 100<<18)
	silent := Silence
	if v := unlogAndMixWGOutput(tb, w, &silent); v != 0 {
		t.Fatalf("expected 0 when ring modulator is silent, got %d", v)
	}
}

func TestUnlogAndMixWGOutputInactiveGeneratorIsZero(t *testing.T) {
	tb := tables.New()
	w := NewWaveGenerator(tb)
	w.InitSynth(false, 128, 0)
	w.Deactivate()
	if v := unlogAndMixWGOutput(tb, w, nil); v != 0 {
		t.Fatalf("expected 0 for inactive generator, got %d", v)
	}
}
