package poly

import (
	"testing"

	"github.com/la32core/synth/internal/partial"
)

func TestStartActivatesAndBindsPartials(t *testing.T) {
	p := New()
	if p.IsActive() {
		t.Fatalf("fresh poly should be inactive")
	}

	handles := []partial.Handle{{Index: 0, Generation: 1}, {Index: 1, Generation: 1}}
	p.Start(2, 60, 100, true, 42, handles)

	if !p.IsActive() || p.State() != Playing {
		t.Fatalf("Start should leave the poly Playing, got %v", p.State())
	}
	if p.NumPartials() != 2 {
		t.Fatalf("NumPartials() = %d, want 2", p.NumPartials())
	}
	if p.PartialAt(0) != handles[0] || p.PartialAt(1) != handles[1] {
		t.Fatalf("partial handles not retained correctly")
	}
	if p.PartialAt(2).Valid() {
		t.Fatalf("PartialAt beyond numPartials should be invalid")
	}
	if p.Age() != 42 || p.Key() != 60 || p.Velocity() != 100 || !p.CanSustain() {
		t.Fatalf("Start did not retain note metadata: %+v", p)
	}
}

func TestNoteOffWithHoldPedalGoesHeldNotReleasing(t *testing.T) {
	p := New()
	p.Start(0, 60, 100, true, 1, []partial.Handle{{Index: 0}})

	fired := false
	p.NoteOff(true, func(partial.Handle) { fired = true })

	if p.State() != Held {
		t.Fatalf("NoteOff with hold pedal down should move to Held, got %v", p.State())
	}
	if fired {
		t.Fatalf("decay callback should not fire when moving to Held")
	}
}

func TestNoteOffWithoutHoldPedalReleases(t *testing.T) {
	p := New()
	handles := []partial.Handle{{Index: 0}, {Index: 1}}
	p.Start(0, 60, 100, true, 1, handles)

	var decayed []partial.Handle
	p.NoteOff(false, func(h partial.Handle) { decayed = append(decayed, h) })

	if p.State() != Releasing {
		t.Fatalf("NoteOff without hold should move to Releasing, got %v", p.State())
	}
	if len(decayed) != 2 {
		t.Fatalf("expected decay callback for both partials, got %d", len(decayed))
	}
}

func TestPedalUpReleasesHeldPoly(t *testing.T) {
	p := New()
	p.Start(0, 60, 100, true, 1, []partial.Handle{{Index: 0}})
	p.NoteOff(true, nil)
	if p.State() != Held {
		t.Fatalf("setup: expected Held")
	}

	fired := false
	p.PedalUp(func(partial.Handle) { fired = true })
	if p.State() != Releasing {
		t.Fatalf("PedalUp should move Held -> Releasing, got %v", p.State())
	}
	if !fired {
		t.Fatalf("PedalUp should fire the decay callback")
	}

	// Idempotent: calling PedalUp again on an already-Releasing poly
	// should not re-fire the callback (mirrors poly.cpp's isDecay guard).
	fired = false
	p.PedalUp(func(partial.Handle) { fired = true })
	if fired {
		t.Fatalf("PedalUp on an already-releasing poly must be a no-op")
	}
}

func TestAbortForcesReleasingFromAnyState(t *testing.T) {
	p := New()
	p.Start(0, 60, 100, true, 1, []partial.Handle{{Index: 0}, {Index: 1}})

	var aborted []partial.Handle
	p.Abort(func(h partial.Handle) { aborted = append(aborted, h) })

	if p.State() != Releasing {
		t.Fatalf("Abort should force Releasing, got %v", p.State())
	}
	if len(aborted) != 2 {
		t.Fatalf("Abort should notify every bound partial, got %d", len(aborted))
	}
}

func TestNotifyPartialDeactivatedReturnsAllDeadOnLastPartial(t *testing.T) {
	p := New()
	h0 := partial.Handle{Index: 0}
	h1 := partial.Handle{Index: 1}
	p.Start(0, 60, 100, true, 1, []partial.Handle{h0, h1})

	if p.NotifyPartialDeactivated(h0) {
		t.Fatalf("should not report allDead with one partial still bound")
	}
	if !p.IsActive() {
		t.Fatalf("poly should remain active with one partial still bound")
	}

	if !p.NotifyPartialDeactivated(h1) {
		t.Fatalf("should report allDead once the last partial deactivates")
	}
	if p.IsActive() {
		t.Fatalf("poly should be inactive after its last partial deactivates")
	}
	if p.OwnerPart() != -1 {
		t.Fatalf("OwnerPart() after full deactivation = %d, want -1", p.OwnerPart())
	}
}

func TestResetClearsPoolSlotForReuse(t *testing.T) {
	p := New()
	p.Start(3, 72, 90, false, 7, []partial.Handle{{Index: 0}})
	p.SetLinks(partial.Handle{Index: 5}, partial.Handle{Index: 6})

	p.Reset()

	if p.IsActive() {
		t.Fatalf("Reset should leave the poly inactive")
	}
	if p.PartialAt(0).Valid() || p.NumPartials() != 0 {
		t.Fatalf("Reset should clear bound partials")
	}
	if p.Prev().Valid() || p.Next().Valid() {
		t.Fatalf("Reset should clear active-list links")
	}
}
