// Package allocator implements the partial manager: the fixed pools
// of partials and polys, and the contended-reclaim algorithm spec
// §4.5 specifies. Grounded structurally on partialManager.cpp's
// inactive-partials-stack/free-poly-stack shape; the reclaim
// algorithms themselves follow spec §4.5's explicit pseudocode, which
// diverges in detail from partialManager.cpp and is authoritative.
package allocator

import (
	"github.com/la32core/synth/internal/partial"
	"github.com/la32core/synth/internal/poly"
	"github.com/la32core/synth/internal/tables"
)

// NumParts is the part-priority domain: melodic parts 0-7 plus the
// rhythm part at index 8 (spec §4.5's "then 8 (rhythm = highest)").
const NumParts = 9

const RhythmPart = 8

// priorityLowToHigh lists parts in bus-priority order, lowest first, per
// spec §4.5: "parts 7, 6, 5, 4, 3, 2, 1, 0, then 8 (rhythm = highest)".
// Iterating in reverse gives "rhythm first, then 0..7" when a
// highest-priority-first sweep is needed.
var priorityLowToHigh = [NumParts]int{7, 6, 5, 4, 3, 2, 1, 0, RhythmPart}

// Manager owns the fixed partial and poly pools and decides, under
// contention, which partials a new note-on may reclaim. Synth
// exclusively owns a Manager; Part/Poly/Partial never reach back into
// it except through the handles it hands out (spec §3's ownership
// rule).
type Manager struct {
	tables *tables.Tables

	partials        []*partial.Partial
	partialGen      []uint32
	freePartialPool []int // stack of free indices, LIFO

	polys        []*poly.Poly
	polyGen      []uint32
	freePolyPool []int

	reserve [NumParts]uint8
	newGen  bool

	abortingPoly int // index into polys, or -1
	age          uint64

	// abortedPlayingCount counts polys aborted while still PLAYING
	// (not already HELD/RELEASING) since the last Consume call, for
	// the caller's PlayingPolySilenced event (spec §4.5/§7, scenario
	// S4: "the first poly on part 2 to be aborted... PlayingPolySilenced
	// reported").
	abortedPlayingCount int
}

// New builds a Manager with n partial slots (spec's N, default 32)
// and one poly slot per partial (a poly can own at most 4 partials, so
// n polys is always enough headroom). reserve is the 9-byte
// reservation table (spec §4.5); newGen selects the reclaim algorithm
// the ROM's newGenNoteCancellation flag would pick.
func New(t *tables.Tables, n int, reserve [NumParts]uint8, newGen bool) *Manager {
	m := &Manager{
		tables:       t,
		partials:     make([]*partial.Partial, n),
		partialGen:   make([]uint32, n),
		polys:        make([]*poly.Poly, n),
		polyGen:      make([]uint32, n),
		reserve:      reserve,
		newGen:       newGen,
		abortingPoly: -1,
	}
	for i := 0; i < n; i++ {
		m.partials[i] = partial.New(t)
		m.polys[i] = poly.New()
		m.freePartialPool = append(m.freePartialPool, n-1-i)
		m.freePolyPool = append(m.freePolyPool, n-1-i)
	}
	return m
}

// Partial returns the partial a handle refers to, or nil if the
// handle is stale (its slot has since been recycled).
func (m *Manager) Partial(h partial.Handle) *partial.Partial {
	if !h.Valid() || h.Index >= len(m.partials) || m.partialGen[h.Index] != h.Generation {
		return nil
	}
	return m.partials[h.Index]
}

// Poly returns the poly a handle refers to, or nil if stale.
func (m *Manager) Poly(h partial.Handle) *poly.Poly {
	if !h.Valid() || h.Index >= len(m.polys) || m.polyGen[h.Index] != h.Generation {
		return nil
	}
	return m.polys[h.Index]
}

// Tick advances the manager's monotonic age counter; call once per
// note-on so getAge()-style priority comparisons have a stable order.
func (m *Manager) Tick() uint64 {
	m.age++
	return m.age
}

func (m *Manager) freeCount() int { return len(m.freePartialPool) }

func (m *Manager) activeNonReleasing(part int) int {
	n := 0
	for _, p := range m.polys {
		if p.OwnerPart() == part && (p.State() == poly.Playing || p.State() == poly.Held) {
			n += p.NumPartials()
		}
	}
	return n
}

func (m *Manager) totalActive(part int) int {
	n := 0
	for _, p := range m.polys {
		if p.OwnerPart() == part && p.IsActive() {
			n += p.NumPartials()
		}
	}
	return n
}

// abortOldestOnPart aborts the first RELEASING poly on part, else the
// first HELD poly, else the first PLAYING poly (spec §4.5's "Abort
// choice prefers..."). Returns whether a poly was found and aborted.
func (m *Manager) abortOldestOnPart(part int) bool {
	for _, want := range []poly.State{poly.Releasing, poly.Held, poly.Playing} {
		var best *poly.Poly
		bestIdx := -1
		for i, p := range m.polys {
			if p.OwnerPart() == part && p.State() == want {
				if best == nil || p.Age() < best.Age() {
					best = p
					bestIdx = i
				}
			}
		}
		if best != nil {
			m.abortPoly(bestIdx)
			return true
		}
	}
	return false
}

// abortPoly drives every partial of polys[idx] into a forced-descending
// ramp and marks abortingPoly, per spec §4.5's aborting semantics. The
// poly itself transitions to RELEASING immediately; its partials (and
// therefore the poly) become free once the ramp reaches silence and
// Synth's per-sample tick calls ReleasePartial/ReleasePoly.
func (m *Manager) abortPoly(idx int) {
	if m.polys[idx].State() == poly.Playing {
		m.abortedPlayingCount++
	}
	m.abortingPoly = idx
	m.polys[idx].Abort(func(h partial.Handle) {
		if p := m.Partial(h); p != nil {
			p.StartAbort()
		}
	})
}

// IsAborting reports whether a previously-aborted poly's partials are
// still winding down. Spec §4.5: new MIDI events are held back while
// this is true, emulating the hardware's MCU busy-wait.
func (m *Manager) IsAborting() bool {
	if m.abortingPoly < 0 {
		return false
	}
	if !m.polys[m.abortingPoly].IsActive() {
		m.abortingPoly = -1
		return false
	}
	return true
}

// ConsumeAbortedPlayingCount reports and resets the number of polys
// aborted while still PLAYING since the last call, for the caller to
// raise one PlayingPolySilenced event per instance.
func (m *Manager) ConsumeAbortedPlayingCount() int {
	n := m.abortedPlayingCount
	m.abortedPlayingCount = 0
	return n
}

// FreePartials decides whether `needed` partials can be made available
// for a note-on targeting targetPart, aborting lower-priority voices as
// necessary. assignModePrefersEarlier mirrors the target part's
// assignMode bit that makes contention an outright refusal rather than
// a steal. Returns false when the note must be muted.
func (m *Manager) FreePartials(needed, targetPart int, assignModePrefersEarlier bool) bool {
	if m.newGen {
		return m.freePartialsNewGen(needed, targetPart, assignModePrefersEarlier)
	}
	return m.freePartialsOldGen(needed, targetPart, assignModePrefersEarlier)
}

// freePartialsOldGen implements spec §4.5's old-gen pseudocode.
func (m *Manager) freePartialsOldGen(needed, targetPart int, prefersEarlier bool) bool {
	for m.freeCount() < needed && !m.IsAborting() {
		if m.activeNonReleasing(targetPart)+needed > int(m.reserve[targetPart]) {
			if prefersEarlier {
				return false
			}
			if needed <= int(m.reserve[targetPart]) {
				if m.abortOldestOnPart(targetPart) {
					continue
				}
			}
			aborted := false
			for _, part := range priorityLowToHigh {
				if part == targetPart || part == RhythmPart {
					continue
				}
				if m.abortOldestOnPart(part) {
					aborted = true
					break
				}
			}
			if aborted {
				continue
			}
			if m.totalActive(RhythmPart) > int(m.reserve[RhythmPart]) && m.abortOldestOnPart(RhythmPart) {
				continue
			}
			return false
		}
		aborted := false
		for part := 0; part < NumParts; part++ {
			if part == RhythmPart {
				continue
			}
			if m.totalActive(part) > int(m.reserve[part]) && m.abortOldestOnPart(part) {
				aborted = true
				break
			}
		}
		if aborted {
			continue
		}
		if m.totalActive(RhythmPart) > int(m.reserve[RhythmPart]) && m.abortOldestOnPart(RhythmPart) {
			continue
		}
		if m.abortOldestOnPart(targetPart) {
			continue
		}
		return false
	}
	return m.freeCount() >= needed || m.IsAborting()
}

// freePartialsNewGen implements spec §4.5's new-gen pseudocode.
func (m *Manager) freePartialsNewGen(needed, targetPart int, prefersEarlier bool) bool {
	if m.freeCount() >= needed {
		return true
	}

	// 1) abort releasing polys on non-rhythm parts with reserve exceeded,
	// priority 7..0.
	for _, part := range priorityLowToHigh {
		if part == RhythmPart {
			continue
		}
		if m.totalActive(part) > int(m.reserve[part]) {
			for _, p := range m.polys {
				if p.OwnerPart() == part && p.State() == poly.Releasing {
					m.abortPoly(indexOfPoly(m.polys, p))
				}
			}
		}
	}
	if m.freeCount() >= needed || m.IsAborting() {
		return true
	}

	// 2) over target's reserve and assignMode prefers earlier polys: fail.
	if m.activeNonReleasing(targetPart)+needed > int(m.reserve[targetPart]) && prefersEarlier {
		return false
	}

	// 3) if exceeding reserve after this allocation, consider target and
	// lower-priority parts only, preferring HELD before PLAYING, never
	// touching RELEASING here.
	if m.activeNonReleasing(targetPart)+needed > int(m.reserve[targetPart]) {
		for _, part := range priorityLowToHigh {
			if part == RhythmPart {
				continue
			}
			if part != targetPart && partPriority(part) > partPriority(targetPart) {
				continue
			}
			if m.abortHeldThenPlaying(part) {
				if m.freeCount() >= needed {
					return true
				}
			}
		}
	}

	// 4) within reserve: sweep every part (including rhythm), preferring
	// HELD over PLAYING.
	for _, part := range priorityLowToHigh {
		if m.abortHeldThenPlaying(part) {
			if m.freeCount() >= needed {
				return true
			}
		}
	}

	// 5) lastly, abort polys on the target part itself.
	for m.freeCount() < needed {
		if !m.abortOldestOnPart(targetPart) {
			break
		}
	}
	return m.freeCount() >= needed
}

func (m *Manager) abortHeldThenPlaying(part int) bool {
	for _, want := range []poly.State{poly.Held, poly.Playing} {
		for i, p := range m.polys {
			if p.OwnerPart() == part && p.State() == want {
				m.abortPoly(i)
				return true
			}
		}
	}
	return false
}

// partPriority returns an ascending priority rank matching
// priorityLowToHigh (rhythm ranks highest).
func partPriority(part int) int {
	for i, p := range priorityLowToHigh {
		if p == part {
			return i
		}
	}
	return -1
}

func indexOfPoly(pool []*poly.Poly, target *poly.Poly) int {
	for i, p := range pool {
		if p == target {
			return i
		}
	}
	return -1
}

// AllocatePartials pops n free partial slots and returns fresh handles
// to them, bumping each slot's generation so any stale handle from its
// previous occupant is now detectably invalid. Caller must have
// already confirmed (via FreePartials) that n slots are available.
func (m *Manager) AllocatePartials(n int) []partial.Handle {
	handles := make([]partial.Handle, 0, n)
	for i := 0; i < n && len(m.freePartialPool) > 0; i++ {
		idx := m.freePartialPool[len(m.freePartialPool)-1]
		m.freePartialPool = m.freePartialPool[:len(m.freePartialPool)-1]
		m.partialGen[idx]++
		handles = append(handles, partial.Handle{Index: idx, Generation: m.partialGen[idx]})
	}
	return handles
}

// ReleasePartial returns a partial slot to the free stack. Per spec
// §3: "Freeing a Poly returns its partials to the free stack in
// reverse order of allocation" — callers release in the reverse order
// they were allocated to preserve that ordering.
func (m *Manager) ReleasePartial(h partial.Handle) {
	if m.partialGen[h.Index] != h.Generation {
		return
	}
	m.freePartialPool = append(m.freePartialPool, h.Index)
}

// AllocatePoly pops a free poly slot and returns a fresh handle to it.
func (m *Manager) AllocatePoly() (partial.Handle, bool) {
	if len(m.freePolyPool) == 0 {
		return partial.Invalid, false
	}
	idx := m.freePolyPool[len(m.freePolyPool)-1]
	m.freePolyPool = m.freePolyPool[:len(m.freePolyPool)-1]
	m.polyGen[idx]++
	return partial.Handle{Index: idx, Generation: m.polyGen[idx]}, true
}

// ReleasePoly returns a poly slot to the free-poly stack and bumps its
// generation, so the released handle no longer resolves through Poly.
func (m *Manager) ReleasePoly(h partial.Handle) {
	if m.polyGen[h.Index] != h.Generation {
		return
	}
	m.polyGen[h.Index]++
	m.freePolyPool = append(m.freePolyPool, h.Index)
}

// SetReserve replaces the 9-byte reservation table live, per spec
// §4.5: "The manager makes the table authoritative immediately; sum !=
// N is tolerated but logged." Logging the mismatch is the caller's
// responsibility (Synth has the logger); this just stores the table.
func (m *Manager) SetReserve(reserve [NumParts]uint8) {
	m.reserve = reserve
}

// ReserveSum returns the current reservation table's total, for the
// caller to compare against N and log a mismatch.
func (m *Manager) ReserveSum() int {
	sum := 0
	for _, r := range m.reserve {
		sum += int(r)
	}
	return sum
}

// FreeCount reports how many partial slots are currently free. Exported
// for introspection (spec §5's "getFreePartialCount" survival, e.g. S1's
// "32 free at open" and S3/S4's contention scenarios).
func (m *Manager) FreeCount() int { return m.freeCount() }

// PartsUsage reports the number of active partials owned by each part
// index (0-7 melodic, 8 rhythm), the Go analogue of the original's
// getPerPartPartialUsage, useful for a listener mirroring the
// hardware LCD's partial-usage display.
func (m *Manager) PartsUsage() [NumParts]int {
	var usage [NumParts]int
	for _, p := range m.polys {
		if p.IsActive() {
			usage[p.OwnerPart()] += p.NumPartials()
		}
	}
	return usage
}
