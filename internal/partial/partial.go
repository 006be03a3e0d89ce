// Package partial implements the per-voice synthesis unit: one LA32
// wave generator driven by its own TVA/TVF/TVP envelope machines. A
// Partial holds no pointers to its owning Poly or structure-pair
// partner — only indices into the Synth's fixed pools, per spec §3's
// "no reference cycles" invariant — grounded on partial.cpp's
// activate/deactivate/startPartial shape, adapted from its legacy
// BlitSaw-oscillator design to this repo's LA32 log-domain model.
package partial

import (
	"github.com/la32core/synth/internal/envelope"
	"github.com/la32core/synth/internal/la32"
	"github.com/la32core/synth/internal/lfo"
	"github.com/la32core/synth/internal/tables"
)

// nativeSampleRate is the synth core's fixed internal sample rate
// (spec §1: "32 kHz native output"), the rate the per-partial pitch
// LFO advances at.
const nativeSampleRate = 32000

// pitchLFOMaxCents is the cents-like offset (spec §4.1's "1 semitone
// = 4096") a fully-depth pitch LFO can reach: roughly a semitone,
// matching the subtle vibrato the hardware's pitch LFO produces.
const pitchLFOMaxCents = 4096

// StructurePosition is 0 or 1: the two partials of a structure pair
// hold opposite positions (spec §3's pair invariant).
type StructurePosition int

const (
	PositionZero StructurePosition = iota
	PositionOne
)

// Handle identifies a partial or poly by pool index plus a generation
// counter, so a stale reference from a since-recycled slot is
// detectable instead of silently aliasing new state.
type Handle struct {
	Index      int
	Generation uint32
}

// Invalid is the zero-value sentinel for "no partial"/"no poly".
var Invalid = Handle{Index: -1}

func (h Handle) Valid() bool { return h.Index >= 0 }

// Cache bundles the three envelope machines' static parameters plus
// the pair's structure mode — precomputed once from a patch/timbre at
// note-on and held for the partial's lifetime. Both partials of a
// structure pair carry the same RingModulated/Mixed flags; only the
// partial in PositionZero (the master) consults them when mixing.
type Cache struct {
	Amp         envelope.AmpParams
	Filter      envelope.FilterParams
	Pitch       envelope.PitchParams
	PitchTiming envelope.FilterTimeParams

	SawtoothWaveform bool
	PulseWidth       uint8
	Resonance        uint8

	PCMWave   []int16
	PCMLooped bool
	IsPCM     bool

	RingModulated bool
	Mixed         bool

	// Pan and ReverbSend are captured from the owning part (or rhythm
	// slot) at note-on time, not read live from the part on every
	// sample: the hardware routes a partial's output using the pan/
	// reverb-switch state that was current when the note started, so a
	// live SetPan/SetReverbSwitch takes effect on the next note, not on
	// notes already sounding.
	Pan        uint8
	ReverbSend bool
}

// StartContext carries the live note-on-time values a Partial cannot
// derive from its own Cache: the key/velocity that triggered it and
// whether its poly can sustain via the hold pedal.
type StartContext struct {
	Key        int
	Velocity   int
	CanSustain bool
	Amp        envelope.AmpContext
	Pitch      envelope.PitchContext
}

// Partial is one voice slot in the Synth's fixed pool of N partials.
// It owns exactly one wave generator; a structure pair is two Partials
// cross-linked by pair, each holding one of PositionZero/PositionOne,
// whose generators are mixed together by OutputSample.
type Partial struct {
	tables *tables.Tables

	ownerPart int // -1 when inactive
	poly      Handle
	pair      Handle // the other partial of this structure pair, or Invalid
	position  StructurePosition

	cache Cache

	wave    la32.WaveGenerator
	tva     *envelope.TVA
	tvf     *envelope.TVF
	tvp     *envelope.TVP
	pitchLFO lfo.LFO

	active bool
}

// New builds an idle partial bound to the shared lookup tables.
func New(t *tables.Tables) *Partial {
	return &Partial{
		tables:    t,
		ownerPart: -1,
		poly:      Invalid,
		pair:      Invalid,
		wave:      *la32.NewWaveGenerator(t),
		tva:       envelope.NewTVA(),
		tvf:       envelope.NewTVF(),
		tvp:       envelope.NewTVP(),
	}
}

func (p *Partial) IsActive() bool              { return p.ownerPart >= 0 }
func (p *Partial) OwnerPart() int              { return p.ownerPart }
func (p *Partial) Poly() Handle                { return p.poly }
func (p *Partial) Pair() Handle                { return p.pair }
func (p *Partial) Position() StructurePosition { return p.position }

// IsRingModSlave reports whether this partial is the ring-modulation
// slave half of its structure pair (spec §4.2), the half the Synth's
// mixdown must skip outputting on its own since OutputSample already
// folds it into the master's sample.
func (p *Partial) IsRingModSlave() bool {
	return p.active && p.cache.RingModulated && p.position == PositionOne
}

// Pan reports the pan value captured at note-on, for the top-level
// Synth's mixdown.
func (p *Partial) Pan() uint8 { return p.cache.Pan }

// ReverbSend reports whether this partial's output was routed to the
// wet reverb bus at note-on.
func (p *Partial) ReverbSend() bool { return p.cache.ReverbSend }

// StartPartial begins playback: binds the patch cache, cross-links to
// the owning poly and pair partner, and resets all three envelope
// machines plus the wave generator. Grounded on Partial::startPartial's
// shape; the oscillator setup itself follows spec §4.1-4.2 rather than
// the legacy BlitSaw path.
func (p *Partial) StartPartial(ownerPart int, poly Handle, pair Handle, position StructurePosition, cache Cache, ctx StartContext) {
	p.ownerPart = ownerPart
	p.poly = poly
	p.pair = pair
	p.position = position
	p.cache = cache
	p.active = true

	p.tva.Reset(p.tables, cache.Amp, ctx.Amp, ctx.Key, ctx.Velocity, ctx.CanSustain)
	basePitch := uint32(basePitchQuarterCents(ctx.Pitch, cache.Pitch))
	p.tvf.Reset(p.tables, cache.Filter, basePitch, ctx.Key, ctx.Velocity)
	p.tvp.Reset(p.tables, cache.Pitch, cache.PitchTiming, ctx.Pitch, ctx.Key)

	p.pitchLFO.Reset()
	depthCents := float64(cache.Pitch.LFODepth) / 100 * pitchLFOMaxCents
	rateHz := float64(cache.Pitch.LFORate) / 100 * 10 // 0..10 Hz, typical vibrato range
	p.pitchLFO.Set(depthCents, rateHz, lfo.WaveTriangle)

	if cache.IsPCM {
		// A ring-modulating slave never interpolates its own PCM
		// samples — its interpolator is borrowed by the ring-mod
		// multiplier instead (spec §4.2).
		interpolated := !(cache.RingModulated && position == PositionOne)
		p.wave.InitPCM(cache.PCMWave, cache.PCMLooped, interpolated)
	} else {
		p.wave.InitSynth(cache.SawtoothWaveform, cache.PulseWidth, cache.Resonance)
	}
}

// basePitchQuarterCents composes TVF's basePitch input the same way
// TVP does for its own static base pitch, per spec §4.3.
func basePitchQuarterCents(ctx envelope.PitchContext, params envelope.PitchParams) int32 {
	base := int32(params.PitchCoarse) + (int32(params.PitchFine)-50)/100 + 24
	return base * 4096
}

// Tick advances this partial's envelopes and wave generator by one
// sample. onDeactivate, when non-nil, is invoked once, at the instant
// this partial's wave generator or TVA declares itself finished
// (either because a non-looping PCM wave ended or TVA reached DEAD).
func (p *Partial) Tick(ampCtx envelope.AmpContext, pitchCtx envelope.PitchContext, canSustain bool, onDeactivate func()) {
	if !p.active {
		return
	}
	amp, tvaDead := p.tva.Tick(p.tables, ampCtx)
	cutoff := p.tvf.Tick(p.tables, canSustain)
	pitchCtx.LFOOffset += int32(p.pitchLFO.Sample(nativeSampleRate))
	pitch := p.tvp.Tick(p.tables, pitchCtx, canSustain)

	p.wave.GenerateNextSample(amp, pitch, cutoff)

	waveDead := !p.wave.IsActive()
	if tvaDead || waveDead {
		p.Deactivate()
		if onDeactivate != nil {
			onDeactivate()
		}
	}
}

// OutputSample mixes this partial's structure pair down to one linear
// sample. pairPartner is the other half of the structure pair (nil for
// an unpaired partial, in which case this partial's generator is the
// whole voice). Only the PositionZero (master) half's RingModulated/
// Mixed flags are consulted, matching spec §4.2's structure-mode
// table, since both halves of a pair carry identical flags.
func (p *Partial) OutputSample(pairPartner *Partial) int16 {
	if !p.active {
		return 0
	}
	if pairPartner == nil {
		return la32.MixSingle(p.tables, &p.wave)
	}
	master, slave := p, pairPartner
	if p.position == PositionOne {
		master, slave = pairPartner, p
	}
	return la32.MixPair(p.tables, &master.wave, &slave.wave, p.cache.RingModulated, p.cache.Mixed)
}

// RecalcSustain re-evaluates the TVA's sustain target against a fresh
// AmpContext, so a live volume/expression change is audible on a
// sustaining note without waiting for note-off (spec §4.4).
func (p *Partial) RecalcSustain(ctx envelope.AmpContext) {
	if !p.active {
		return
	}
	p.tva.RecalcSustain(p.tables, ctx)
}

// StartDecay begins note-off release on all three envelope machines.
func (p *Partial) StartDecay() {
	p.tva.StartDecay()
	p.tvf.StartDecay()
	p.tvp.StartDecay()
}

// StartAbort forces a fast silence ramp, used by the partial manager
// when preempting this partial for a higher-priority note.
func (p *Partial) StartAbort() {
	p.tva.StartAbort()
}

// Deactivate releases this partial back to the inactive pool. It does
// not itself touch the pool or the pair partner's pair link — the
// caller (the allocator) is responsible for updating both, since
// Partial holds only indices, never pointers, to its neighbors.
func (p *Partial) Deactivate() {
	p.ownerPart = -1
	p.active = false
	p.wave.Deactivate()
}
