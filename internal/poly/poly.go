// Package poly implements the Poly state machine: one note event
// spanning 1-4 partials, tracked through PLAYING/HELD/RELEASING until
// its last partial deactivates. Grounded on poly.cpp's isActive/
// getAge/startDecay shape, generalized from the original's raw
// Partial* back-references to handle-based ones (spec §3's "no
// reference cycles" invariant).
package poly

import "github.com/la32core/synth/internal/partial"

// State is a Poly's position in the note lifecycle (spec §4.4).
type State int

const (
	Inactive State = iota
	Playing
	Held
	Releasing
)

const maxPartialsPerPoly = 4

// Poly is one pool slot. It holds up to four partial.Handle
// back-links — never pointers — plus the doubly-linked active-list
// neighbors within its owning part, also by handle.
type Poly struct {
	key      int
	velocity int
	state    State

	partials    [maxPartialsPerPoly]partial.Handle
	numPartials int

	canSustain bool
	age        uint64

	ownerPart int // -1 when free

	prev, next partial.Handle // active-list links within ownerPart, by poly handle
}

// New builds a free Poly slot.
func New() *Poly {
	p := &Poly{ownerPart: -1}
	for i := range p.partials {
		p.partials[i] = partial.Invalid
	}
	p.prev, p.next = partial.Invalid, partial.Invalid
	return p
}

func (p *Poly) IsActive() bool { return p.state != Inactive }
func (p *Poly) State() State   { return p.state }
func (p *Poly) Key() int       { return p.key }
func (p *Poly) Velocity() int  { return p.velocity }
func (p *Poly) OwnerPart() int { return p.ownerPart }
func (p *Poly) Age() uint64    { return p.age }
func (p *Poly) CanSustain() bool { return p.canSustain }
func (p *Poly) Prev() partial.Handle { return p.prev }
func (p *Poly) Next() partial.Handle { return p.next }
func (p *Poly) SetLinks(prev, next partial.Handle) { p.prev, p.next = prev, next }

// NumPartials reports how many of the 1-4 partial slots are bound.
func (p *Poly) NumPartials() int { return p.numPartials }

// PartialAt returns the handle of the i-th bound partial, or
// partial.Invalid if i is out of range.
func (p *Poly) PartialAt(i int) partial.Handle {
	if i < 0 || i >= p.numPartials {
		return partial.Invalid
	}
	return p.partials[i]
}

// Start begins a new note event, claiming ownerPart and binding the
// partial handles the allocator has just started. age is the caller's
// monotonic counter value at allocation time, used by the partial
// manager's priority sweeps (spec §4.5).
func (p *Poly) Start(ownerPart, key, velocity int, canSustain bool, age uint64, partials []partial.Handle) {
	p.ownerPart = ownerPart
	p.key = key
	p.velocity = velocity
	p.canSustain = canSustain
	p.age = age
	p.state = Playing

	p.numPartials = len(partials)
	for i := 0; i < maxPartialsPerPoly; i++ {
		if i < len(partials) {
			p.partials[i] = partials[i]
		} else {
			p.partials[i] = partial.Invalid
		}
	}
}

// NoteOff transitions PLAYING -> HELD (hold pedal down) or
// PLAYING -> RELEASING (hold pedal up), per spec §4.4's diagram.
// onDecay is invoked for each bound partial handle when a release
// ramp must actually start (i.e. not when moving to HELD).
func (p *Poly) NoteOff(holdPedal bool, onDecay func(partial.Handle)) {
	if p.state != Playing {
		return
	}
	if holdPedal {
		p.state = Held
		return
	}
	p.startDecay(onDecay)
}

// PedalUp releases a HELD poly into RELEASING once the sustain pedal
// comes up.
func (p *Poly) PedalUp(onDecay func(partial.Handle)) {
	if p.state != Held {
		return
	}
	p.startDecay(onDecay)
}

// Abort forces RELEASING regardless of current state, used by the
// partial manager when it needs this poly's voices back immediately
// (spec §4.5's abortingPoly mechanism). onAbort is invoked per bound
// partial so the caller can drive each one's TVA into StartAbort
// rather than the gentler StartDecay.
func (p *Poly) Abort(onAbort func(partial.Handle)) {
	if p.state == Inactive {
		return
	}
	p.state = Releasing
	for i := 0; i < p.numPartials; i++ {
		if onAbort != nil {
			onAbort(p.partials[i])
		}
	}
}

// startDecay is poly.cpp's startDecay: idempotent once already
// releasing, fires each bound partial's decay ramp exactly once.
func (p *Poly) startDecay(onDecay func(partial.Handle)) {
	if p.state == Releasing {
		return
	}
	p.state = Releasing
	for i := 0; i < p.numPartials; i++ {
		if onDecay != nil {
			onDecay(p.partials[i])
		}
	}
}

// NotifyPartialDeactivated is called by the owning Synth when one of
// this poly's partials finishes. It reports whether this was the last
// remaining partial, in which case the caller should return the poly
// to the free-poly stack (spec §4.4: "on the last one, the poly
// returns itself to the free-poly stack").
func (p *Poly) NotifyPartialDeactivated(h partial.Handle) (allDead bool) {
	remaining := 0
	for i := 0; i < p.numPartials; i++ {
		if p.partials[i] == h {
			p.partials[i] = partial.Invalid
		}
		if p.partials[i].Valid() {
			remaining++
		}
	}
	if remaining == 0 {
		p.Reset()
		return true
	}
	return false
}

// Reset returns the slot to the free-poly pool.
func (p *Poly) Reset() {
	p.state = Inactive
	p.ownerPart = -1
	p.numPartials = 0
	for i := range p.partials {
		p.partials[i] = partial.Invalid
	}
	p.prev, p.next = partial.Invalid, partial.Invalid
}
