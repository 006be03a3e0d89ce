package partial

import (
	"testing"

	"github.com/la32core/synth/internal/envelope"
	"github.com/la32core/synth/internal/tables"
)

func ampParams() envelope.AmpParams {
	return envelope.AmpParams{
		Level:           80,
		VeloSensitivity: 0,
		EnvTimeKeyfollow: 0,
		EnvTimeVeloSens: 0,
		EnvTime:         [5]uint8{0, 10, 10, 10, 30},
		EnvLevel:        [4]uint8{90, 80, 70, 60},
	}
}

func filterParams() envelope.FilterParams {
	return envelope.FilterParams{
		Cutoff:    128,
		Resonance: 0,
		Keyfollow: 3,
		BiasLevel: 7,
		EnvDepth:  20,
		EnvTime:   [5]uint8{0, 10, 10, 10, 30},
		EnvLevel:  [4]uint8{90, 80, 70, 60},
	}
}

func pitchParams() envelope.PitchParams {
	return envelope.PitchParams{
		PitchCoarse: 24,
		PitchFine:   50,
		EnvTime:     [5]uint8{0, 10, 10, 10, 30},
		EnvLevel:    [4]uint8{0, 0, 0, 0},
	}
}

func pitchTiming() envelope.FilterTimeParams {
	return envelope.FilterTimeParams{
		EnvTime:  [5]uint8{0, 10, 10, 10, 30},
		EnvLevel: [4]int8{0, 0, 0, 0},
	}
}

func synthCache() Cache {
	return Cache{
		Amp:              ampParams(),
		Filter:           filterParams(),
		Pitch:            pitchParams(),
		PitchTiming:      pitchTiming(),
		SawtoothWaveform: false,
		PulseWidth:       128,
		Resonance:        0,
	}
}

func startCtx() StartContext {
	return StartContext{
		Key:        60,
		Velocity:   100,
		CanSustain: true,
		Amp: envelope.AmpContext{
			MasterVol:        100,
			PatchOutputLevel: 100,
			Expression:       100,
		},
		Pitch: envelope.PitchContext{BenderRange: 2, MidiBend: 8192},
	}
}

func TestStartPartialActivatesAndTicksProduceOutput(t *testing.T) {
	tb := tables.New()
	p := New(tb)

	if p.IsActive() {
		t.Fatalf("freshly constructed partial should be inactive")
	}

	p.StartPartial(0, Handle{Index: 0, Generation: 1}, Invalid, PositionZero, synthCache(), startCtx())
	if !p.IsActive() {
		t.Fatalf("StartPartial should mark the partial active")
	}
	if p.OwnerPart() != 0 {
		t.Fatalf("OwnerPart() = %d, want 0", p.OwnerPart())
	}
	if p.Poly().Index != 0 || p.Poly().Generation != 1 {
		t.Fatalf("Poly() handle not retained: %+v", p.Poly())
	}
	if p.Pair().Valid() {
		t.Fatalf("unpaired partial should have an invalid Pair handle")
	}
	if p.Position() != PositionZero {
		t.Fatalf("Position() = %v, want PositionZero", p.Position())
	}

	sawNonZero := false
	for i := 0; i < 2000 && p.IsActive(); i++ {
		p.Tick(startCtx().Amp, startCtx().Pitch, true, nil)
		if p.OutputSample(nil) != 0 {
			sawNonZero = true
		}
	}
	if !sawNonZero {
		t.Fatalf("expected a non-silent oscillator to produce at least one non-zero sample")
	}
}

func TestTickDeactivatesOnTVADeathAndFiresCallback(t *testing.T) {
	tb := tables.New()
	p := New(tb)

	cache := synthCache()
	ctx := startCtx()
	ctx.CanSustain = false // forces release straight into decay once sustain is reached
	p.StartPartial(3, Handle{Index: 1}, Invalid, PositionZero, cache, ctx)

	deactivated := false
	for i := 0; i < 500000 && p.IsActive(); i++ {
		p.Tick(ctx.Amp, ctx.Pitch, ctx.CanSustain, func() { deactivated = true })
	}
	if p.IsActive() {
		t.Fatalf("partial never deactivated within the tick budget")
	}
	if !deactivated {
		t.Fatalf("onDeactivate callback was not invoked")
	}
	if p.OwnerPart() != -1 {
		t.Fatalf("OwnerPart() after Deactivate = %d, want -1", p.OwnerPart())
	}
	if p.OutputSample(nil) != 0 {
		t.Fatalf("an inactive partial must output silence")
	}
}

func TestTickDeactivatesOnNonLoopedPCMExhaustion(t *testing.T) {
	tb := tables.New()
	p := New(tb)

	cache := synthCache()
	cache.IsPCM = true
	cache.PCMWave = []int16{100, 200, 300, 200, 100, 0}
	cache.PCMLooped = false

	p.StartPartial(0, Handle{Index: 2}, Invalid, PositionZero, cache, startCtx())

	deactivated := false
	for i := 0; i < 10000 && p.IsActive(); i++ {
		p.Tick(startCtx().Amp, startCtx().Pitch, true, func() { deactivated = true })
	}
	if p.IsActive() {
		t.Fatalf("non-looped PCM partial never deactivated")
	}
	if !deactivated {
		t.Fatalf("onDeactivate callback was not invoked on PCM exhaustion")
	}
}

func TestOutputSamplePairedMixesBothHalves(t *testing.T) {
	tb := tables.New()
	master := New(tb)
	slave := New(tb)

	cache := synthCache()
	cache.RingModulated = false
	cache.Mixed = false

	master.StartPartial(0, Handle{Index: 0}, Handle{Index: 1}, PositionZero, cache, startCtx())
	slave.StartPartial(0, Handle{Index: 0}, Handle{Index: 0}, PositionOne, cache, startCtx())

	sawNonZero := false
	for i := 0; i < 2000 && master.IsActive() && slave.IsActive(); i++ {
		master.Tick(startCtx().Amp, startCtx().Pitch, true, nil)
		slave.Tick(startCtx().Amp, startCtx().Pitch, true, nil)
		if master.OutputSample(slave) != 0 {
			sawNonZero = true
		}
	}
	if !sawNonZero {
		t.Fatalf("paired mixdown should produce non-zero samples")
	}

	// The order of the receiver/argument pair shouldn't matter: calling
	// from either half's perspective mixes the same two generators.
	if master.OutputSample(slave) != slave.OutputSample(master) {
		t.Fatalf("mixdown should be symmetric regardless of which half calls OutputSample")
	}
}

func TestStartDecayAndStartAbortDoNotPanicOnIdlePartial(t *testing.T) {
	tb := tables.New()
	p := New(tb)
	p.StartPartial(0, Handle{Index: 0}, Invalid, PositionZero, synthCache(), startCtx())

	p.StartDecay()
	p.Tick(startCtx().Amp, startCtx().Pitch, true, nil)

	p.StartAbort()
	for i := 0; i < 2000 && p.IsActive(); i++ {
		p.Tick(startCtx().Amp, startCtx().Pitch, true, nil)
	}
	if p.IsActive() {
		t.Fatalf("StartAbort should force the partial to silence and deactivate")
	}
}

func TestDeactivateClearsHandles(t *testing.T) {
	tb := tables.New()
	p := New(tb)
	p.StartPartial(5, Handle{Index: 9, Generation: 2}, Handle{Index: 10}, PositionOne, synthCache(), startCtx())

	p.Deactivate()

	if p.IsActive() {
		t.Fatalf("Deactivate should clear active state")
	}
	if p.OwnerPart() != -1 {
		t.Fatalf("OwnerPart() after Deactivate = %d, want -1", p.OwnerPart())
	}
	// Deactivate intentionally leaves poly/pair/position untouched: the
	// allocator reads them to unlink the pool before recycling the slot.
	if p.Poly() != (Handle{Index: 9, Generation: 2}) {
		t.Fatalf("Poly() handle should survive Deactivate for the allocator to read")
	}
}
