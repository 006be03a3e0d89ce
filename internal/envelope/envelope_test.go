package envelope

import (
	"testing"

	"github.com/la32core/synth/internal/tables"
)

func defaultAmpParams() AmpParams {
	return AmpParams{
		Level:           100,
		VeloSensitivity: 50,
		EnvTimeKeyfollow: 0,
		EnvTimeVeloSens: 0,
		EnvTime:         [5]uint8{10, 20, 30, 40, 20},
		EnvLevel:        [4]uint8{100, 90, 80, 70},
	}
}

func defaultAmpContext() AmpContext {
	return AmpContext{
		MasterVol:        100,
		PatchOutputLevel: 100,
		Expression:       100,
	}
}

func TestTVAReachesSustainAndStaysPlaying(t *testing.T) {
	tb := tables.New()
	tva := NewTVA()
	tva.Reset(tb, defaultAmpParams(), defaultAmpContext(), 60, 100, true)

	for i := 0; i < 20000 && tva.GetPhase() != PhaseSustain; i++ {
		tva.Tick(tb, defaultAmpContext())
	}
	if tva.GetPhase() != PhaseSustain {
		t.Fatalf("TVA did not reach SUSTAIN within budget, stuck at phase %v", tva.GetPhase())
	}
	if !tva.IsPlaying() {
		t.Fatalf("expected TVA still playing in SUSTAIN")
	}
}

func TestTVADecayReachesDead(t *testing.T) {
	tb := tables.New()
	tva := NewTVA()
	params := defaultAmpParams()
	tva.Reset(tb, params, defaultAmpContext(), 60, 100, true)
	for i := 0; i < 20000 && tva.GetPhase() != PhaseSustain; i++ {
		tva.Tick(tb, defaultAmpContext())
	}
	tva.StartDecay()
	for i := 0; i < 200000 && tva.IsPlaying(); i++ {
		tva.Tick(tb, defaultAmpContext())
	}
	if tva.IsPlaying() {
		t.Fatalf("expected TVA to reach DEAD after decay")
	}
}

func TestTVAAbortForcesDescent(t *testing.T) {
	tb := tables.New()
	tva := NewTVA()
	tva.Reset(tb, defaultAmpParams(), defaultAmpContext(), 60, 100, true)
	for i := 0; i < 5000; i++ {
		tva.Tick(tb, defaultAmpContext())
	}
	tva.StartAbort()
	for i := 0; i < 200000 && tva.IsPlaying(); i++ {
		tva.Tick(tb, defaultAmpContext())
	}
	if tva.IsPlaying() {
		t.Fatalf("expected aborted TVA to reach DEAD")
	}
}

func TestTVANonSustainingReleasesOnSustainEntry(t *testing.T) {
	tb := tables.New()
	tva := NewTVA()
	tva.Reset(tb, defaultAmpParams(), defaultAmpContext(), 60, 100, false)
	for i := 0; i < 200000 && tva.IsPlaying(); i++ {
		tva.Tick(tb, defaultAmpContext())
	}
	if tva.IsPlaying() {
		t.Fatalf("expected non-sustaining TVA to self-terminate")
	}
}

func defaultFilterParams() FilterParams {
	return FilterParams{
		Cutoff:             100,
		Resonance:          0,
		Keyfollow:          3,
		WGPitchKeyfollow:   3,
		BiasPoint:          0,
		BiasLevel:          7,
		EnvDepth:           50,
		EnvVeloSensitivity: 50,
		EnvTime:            [5]uint8{10, 20, 30, 40, 20},
		EnvLevel:           [4]uint8{80, 60, 40, 20},
	}
}

func TestTVFBaseCutoffInRange(t *testing.T) {
	c := calcBaseCutoff(defaultFilterParams(), 0, 60)
	if c > 255 {
		t.Fatalf("base cutoff out of range: %d", c)
	}
}

func TestTVFTicksTowardSustainWithoutPanicking(t *testing.T) {
	tb := tables.New()
	tvf := NewTVF()
	tvf.Reset(tb, defaultFilterParams(), 0, 60, 100)
	for i := 0; i < 20000; i++ {
		v := tvf.Tick(tb, true)
		if v > (240 << 18) {
			t.Fatalf("cutoffVal exceeded ceiling: %d", v)
		}
	}
}

func defaultPitchParams() PitchParams {
	return PitchParams{PitchCoarse: 48, PitchFine: 50}
}

func defaultPitchTiming() FilterTimeParams {
	return FilterTimeParams{
		EnvTime:  [5]uint8{10, 20, 30, 40, 20},
		EnvLevel: [4]int8{12, -12, 0, 0},
	}
}

func TestTVPBasePitchComposition(t *testing.T) {
	ctx := PitchContext{BenderRange: 2, MidiBend: 8192}
	p := basePitchCents(defaultPitchParams(), ctx)
	if p != 48+24 {
		t.Fatalf("basePitchCents = %d, want %d", p, 48+24)
	}
}

func TestTVPBenderShiftsPitch(t *testing.T) {
	ctxCenter := PitchContext{BenderRange: 12, MidiBend: 8192}
	ctxUp := PitchContext{BenderRange: 12, MidiBend: 16383}
	center := basePitchCents(defaultPitchParams(), ctxCenter)
	up := basePitchCents(defaultPitchParams(), ctxUp)
	if up <= center {
		t.Fatalf("expected bending up to raise pitch: center=%d up=%d", center, up)
	}
}

func TestTVPTicksWithoutPanicking(t *testing.T) {
	tb := tables.New()
	tvp := NewTVP()
	tvp.Reset(tb, defaultPitchParams(), defaultPitchTiming(), PitchContext{BenderRange: 2, MidiBend: 8192}, 60)
	for i := 0; i < 20000; i++ {
		_ = tvp.Tick(tb, PitchContext{BenderRange: 2, MidiBend: 8192}, true)
	}
}
