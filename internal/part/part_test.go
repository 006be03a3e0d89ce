package part

import (
	"testing"

	"github.com/la32core/synth/internal/allocator"
	"github.com/la32core/synth/internal/envelope"
	"github.com/la32core/synth/internal/poly"
	"github.com/la32core/synth/internal/tables"
)

func evenReserve(n int) [allocator.NumParts]uint8 {
	var r [allocator.NumParts]uint8
	per := n / allocator.NumParts
	rem := n - per*allocator.NumParts
	for i := range r {
		r[i] = uint8(per)
	}
	r[allocator.RhythmPart] += uint8(rem)
	return r
}

func singlePartialTimbre() *Timbre {
	tm := &Timbre{}
	tm.Pairs[0] = PairSpec{
		Used: true,
		A: PartialSpec{
			Amp: envelope.AmpParams{
				Level:    80,
				EnvTime:  [5]uint8{0, 10, 10, 10, 30},
				EnvLevel: [4]uint8{90, 80, 70, 60},
			},
			Filter: envelope.FilterParams{
				Keyfollow: 3, BiasLevel: 7, Cutoff: 128, EnvDepth: 20,
				EnvTime: [5]uint8{0, 10, 10, 10, 30}, EnvLevel: [4]uint8{90, 80, 70, 60},
			},
			Pitch:       envelope.PitchParams{PitchCoarse: 24, PitchFine: 50, EnvTime: [5]uint8{0, 10, 10, 10, 30}},
			PitchTiming: envelope.FilterTimeParams{EnvTime: [5]uint8{0, 10, 10, 10, 30}},
			PulseWidth:  128,
		},
	}
	return tm
}

func pairedTimbre() *Timbre {
	tm := singlePartialTimbre()
	tm.Pairs[0].BUsed = true
	tm.Pairs[0].B = tm.Pairs[0].A
	tm.Pairs[0].RingModulated = false
	tm.Pairs[0].Mixed = false
	return tm
}

func testSys() SystemContext {
	return SystemContext{MasterVol: 100}
}

func TestNoteOnRequiresAProgram(t *testing.T) {
	tb := tables.New()
	mgr := allocator.New(tb, 8, evenReserve(8), false)
	p := New(0, mgr, tb)

	if p.NoteOn(60, 100, testSys()) {
		t.Fatalf("NoteOn without SetProgram should be refused")
	}
}

func TestNoteOnStartsAPolyBindingOnePartial(t *testing.T) {
	tb := tables.New()
	mgr := allocator.New(tb, 8, evenReserve(8), false)
	p := New(0, mgr, tb)
	p.SetProgram(singlePartialTimbre())

	if !p.NoteOn(60, 100, testSys()) {
		t.Fatalf("NoteOn should succeed with free partials available")
	}
	if len(p.activePolys) != 1 {
		t.Fatalf("expected one active poly, got %d", len(p.activePolys))
	}

	po := mgr.Poly(p.activePolys[0])
	if po == nil || !po.IsActive() {
		t.Fatalf("started poly should be active")
	}
	if po.NumPartials() != 1 {
		t.Fatalf("single-partial timbre should bind exactly one partial, got %d", po.NumPartials())
	}
}

func TestNoteOnWithPairedTimbreBindsTwoPartials(t *testing.T) {
	tb := tables.New()
	mgr := allocator.New(tb, 8, evenReserve(8), false)
	p := New(0, mgr, tb)
	p.SetProgram(pairedTimbre())

	if !p.NoteOn(60, 100, testSys()) {
		t.Fatalf("NoteOn should succeed")
	}
	po := mgr.Poly(p.activePolys[0])
	if po.NumPartials() != 2 {
		t.Fatalf("paired timbre should bind two partials, got %d", po.NumPartials())
	}
	master := mgr.Partial(po.PartialAt(0))
	slave := mgr.Partial(po.PartialAt(1))
	if master.Pair() != po.PartialAt(1) || slave.Pair() != po.PartialAt(0) {
		t.Fatalf("structure pair cross-links should point at each other")
	}
}

func TestSingleAssignStopsSameKeyBeforeRetriggering(t *testing.T) {
	tb := tables.New()
	mgr := allocator.New(tb, 8, evenReserve(8), false)
	p := New(0, mgr, tb)
	p.SetProgram(singlePartialTimbre())
	p.SetAssignMode(0) // single-assign: bit 0 clear

	p.NoteOn(60, 100, testSys())
	first := p.activePolys[0]

	p.NoteOn(60, 100, testSys())

	if po := mgr.Poly(first); po != nil && po.State() != poly.Releasing {
		t.Fatalf("single-assign retrigger should have released the prior poly on the same key")
	}
}

func TestNoteOffMovesToHeldWhenPedalDown(t *testing.T) {
	tb := tables.New()
	mgr := allocator.New(tb, 8, evenReserve(8), false)
	p := New(0, mgr, tb)
	p.SetProgram(singlePartialTimbre())
	p.SetHoldPedal(true)

	p.NoteOn(60, 100, testSys())
	p.NoteOff(60)

	po := mgr.Poly(p.activePolys[0])
	if po.State() != poly.Held {
		t.Fatalf("NoteOff with pedal down should move the poly to Held, got state %v", po.State())
	}
}

func TestSetHoldPedalUpReleasesHeldPolys(t *testing.T) {
	tb := tables.New()
	mgr := allocator.New(tb, 8, evenReserve(8), false)
	p := New(0, mgr, tb)
	p.SetProgram(singlePartialTimbre())
	p.SetHoldPedal(true)
	p.NoteOn(60, 100, testSys())
	p.NoteOff(60)

	p.SetHoldPedal(false)

	po := mgr.Poly(p.activePolys[0])
	if po.State() != poly.Releasing {
		t.Fatalf("pedal release should move Held polys to Releasing, got %v", po.State())
	}
}

func TestAllSoundOffAbortsEveryActivePoly(t *testing.T) {
	tb := tables.New()
	mgr := allocator.New(tb, 8, evenReserve(8), false)
	p := New(0, mgr, tb)
	p.SetProgram(singlePartialTimbre())
	p.NoteOn(60, 100, testSys())
	p.NoteOn(64, 100, testSys())

	po := mgr.Poly(p.activePolys[0])

	p.AllSoundOff()

	if po.State() != poly.Releasing {
		t.Fatalf("AllSoundOff should force every poly to Releasing, got %v", po.State())
	}
	if len(p.activePolys) != 0 {
		t.Fatalf("AllSoundOff should clear the part's active-poly bookkeeping")
	}
}

func TestSetVolumeAndExpressionAreRetained(t *testing.T) {
	tb := tables.New()
	mgr := allocator.New(tb, 8, evenReserve(8), false)
	p := New(0, mgr, tb)

	p.SetVolume(77)
	p.SetExpression(55)
	p.SetPan(10)

	if p.Volume() != 77 || p.Expression() != 55 || p.Pan() != 10 {
		t.Fatalf("setter values not retained: vol=%d exp=%d pan=%d", p.Volume(), p.Expression(), p.Pan())
	}
}
