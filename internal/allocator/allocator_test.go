package allocator

import (
	"testing"

	"github.com/la32core/synth/internal/tables"
)

func evenReserve(n int) [NumParts]uint8 {
	var r [NumParts]uint8
	per := n / NumParts
	rem := n - per*NumParts
	for i := range r {
		r[i] = uint8(per)
	}
	r[RhythmPart] += uint8(rem)
	return r
}

func TestAllocatePartialsAndPolysRoundTrip(t *testing.T) {
	tb := tables.New()
	m := New(tb, 8, evenReserve(8), false)

	handles := m.AllocatePartials(3)
	if len(handles) != 3 {
		t.Fatalf("expected 3 handles, got %d", len(handles))
	}
	if m.freeCount() != 5 {
		t.Fatalf("freeCount after allocating 3 of 8 = %d, want 5", m.freeCount())
	}

	polyHandle, ok := m.AllocatePoly()
	if !ok {
		t.Fatalf("AllocatePoly should succeed with free slots available")
	}
	if m.Poly(polyHandle) == nil {
		t.Fatalf("Poly() should resolve a freshly allocated handle")
	}

	m.ReleasePartial(handles[0])
	if m.freeCount() != 6 {
		t.Fatalf("freeCount after releasing one = %d, want 6", m.freeCount())
	}

	m.ReleasePoly(polyHandle)
	if m.Poly(polyHandle) != nil {
		t.Fatalf("Poly() must reject a handle once its slot is released and regeneration required")
	}
}

func TestStaleHandleIsDetectedAfterReuse(t *testing.T) {
	tb := tables.New()
	m := New(tb, 2, evenReserve(2), false)

	h := m.AllocatePartials(1)[0]
	m.ReleasePartial(h)
	h2 := m.AllocatePartials(1)[0]

	if h.Index != h2.Index {
		t.Fatalf("with only one free slot, the release/reallocate should reuse the same index")
	}
	if h.Generation == h2.Generation {
		t.Fatalf("reused slot must bump generation")
	}
	if m.Partial(h) != nil {
		t.Fatalf("a stale handle to a recycled slot must fail to resolve")
	}
	if m.Partial(h2) == nil {
		t.Fatalf("the fresh handle to the recycled slot must resolve")
	}
}

func TestFreePartialsSucceedsWithinReserveOldGen(t *testing.T) {
	tb := tables.New()
	m := New(tb, 8, evenReserve(8), false)

	if !m.FreePartials(4, 0, false) {
		t.Fatalf("should be able to free partials when the pool is entirely idle")
	}
}

func TestFreePartialsSucceedsWithinReserveNewGen(t *testing.T) {
	tb := tables.New()
	m := New(tb, 8, evenReserve(8), true)

	if !m.FreePartials(4, 0, false) {
		t.Fatalf("new-gen: should be able to free partials when the pool is entirely idle")
	}
}

func TestFreePartialsReclaimsFromLowerPriorityPartOldGen(t *testing.T) {
	tb := tables.New()
	var reserve [NumParts]uint8
	reserve[7] = 8 // part 7 (lowest priority) owns everything
	m := New(tb, 8, reserve, false)

	h := m.AllocatePartials(8)
	for i := 0; i < 2; i++ { // a poly binds at most 4 partials
		ph, ok := m.AllocatePoly()
		if !ok {
			t.Fatalf("setup: expected a free poly slot")
		}
		m.Poly(ph).Start(7, 60+i, 100, false, m.Tick(), h[i*4:i*4+4])
	}

	if !m.FreePartials(1, 0, false) {
		t.Fatalf("should reclaim from lower-priority part 7 to satisfy part 0's request")
	}
	if !m.IsAborting() {
		t.Fatalf("reclaiming should have put the manager into an aborting state")
	}
}

func TestFreePartialsRefusesWhenAssignModePrefersEarlierAndOverReserve(t *testing.T) {
	tb := tables.New()
	var reserve [NumParts]uint8
	reserve[0] = 2
	m := New(tb, 2, reserve, false) // part 0's note fills the whole pool

	h := m.AllocatePartials(2)
	ph, ok := m.AllocatePoly()
	if !ok {
		t.Fatalf("setup: expected a free poly slot")
	}
	m.Poly(ph).Start(0, 60, 100, false, m.Tick(), h)

	if m.FreePartials(1, 0, true) {
		t.Fatalf("assignMode preferring earlier polys should refuse once over its own reserve")
	}
}

func TestAbortOldestOnPartPrefersReleasingThenHeldThenPlaying(t *testing.T) {
	tb := tables.New()
	var reserve [NumParts]uint8
	reserve[0] = 8
	m := New(tb, 8, reserve, false)

	playingHandles := m.AllocatePartials(2)
	playingPoly, _ := m.AllocatePoly()
	m.Poly(playingPoly).Start(0, 60, 100, false, m.Tick(), playingHandles)

	heldHandles := m.AllocatePartials(2)
	heldPoly, _ := m.AllocatePoly()
	m.Poly(heldPoly).Start(0, 62, 100, true, m.Tick(), heldHandles)
	m.Poly(heldPoly).NoteOff(true, nil)

	if !m.abortOldestOnPart(0) {
		t.Fatalf("expected a poly to be found for abort")
	}
	if m.Poly(heldPoly).State() == m.Poly(heldPoly).State() && m.abortingPoly < 0 {
		t.Fatalf("abortOldestOnPart should mark abortingPoly")
	}
	abortedIdx := m.abortingPoly
	if m.polys[abortedIdx] != m.Poly(heldPoly) {
		t.Fatalf("abortOldestOnPart should prefer the HELD poly over the PLAYING one")
	}
}

func TestReserveSumReportsTotal(t *testing.T) {
	tb := tables.New()
	m := New(tb, 32, evenReserve(32), false)
	if m.ReserveSum() != 32 {
		t.Fatalf("ReserveSum() = %d, want 32", m.ReserveSum())
	}
	var skewed [NumParts]uint8
	skewed[0] = 40
	m.SetReserve(skewed)
	if m.ReserveSum() != 40 {
		t.Fatalf("ReserveSum() after SetReserve = %d, want 40", m.ReserveSum())
	}
}
