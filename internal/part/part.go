// Package part implements Part and RhythmPart: the eight melodic
// parts plus the rhythm part, each owning a slice of the shared
// partial/poly pools through the allocator. Grounded on part.cpp's
// Part/RhythmPart split (playNote/stopNote/allNotesOff/allSoundOff/
// setHoldPedal/setExpression/setVolume/setPan/setBend/setModulation/
// setProgram), adapted from its PatchCache[4]-of-pointers model to
// handle-based partial/poly pools (spec §3).
package part

import (
	"github.com/la32core/synth/internal/allocator"
	"github.com/la32core/synth/internal/envelope"
	"github.com/la32core/synth/internal/partial"
	"github.com/la32core/synth/internal/poly"
	"github.com/la32core/synth/internal/tables"
)

// RhythmIndex is the part index reserved for the rhythm part, matching
// allocator.RhythmPart.
const RhythmIndex = allocator.RhythmPart

// PartialSpec is one voice of a timbre: the static envelope parameters
// and oscillator/PCM configuration a partial.Cache is built from.
type PartialSpec struct {
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
}

// PairSpec is one structure pair of a timbre (up to two per timbre,
// covering up to four partials total). RingModulated/Mixed follow
// spec §4.2's structure-mode table; which of the original ROM's 13
// PartialStruct/PartialMixStruct codes produced them is resolved once
// at patch-load time rather than re-decoded per note (a documented
// simplification — see DESIGN.md).
type PairSpec struct {
	Used          bool
	A, B          PartialSpec
	BUsed         bool // false for a single-partial "pair" (only A plays)
	RingModulated bool
	Mixed         bool
}

// Timbre is a fully resolved patch/timbre cache: up to two structure
// pairs (spec §4.4's "1..4 Partials"), plus the coarse key shift a
// patch applies to incoming MIDI keys.
type Timbre struct {
	Pairs    [2]PairSpec
	KeyShift int
}

// NumPartialsUsed reports how many partial slots this timbre needs.
func (tm *Timbre) NumPartialsUsed() int {
	n := 0
	for _, p := range tm.Pairs {
		if !p.Used {
			continue
		}
		n++
		if p.BUsed {
			n++
		}
	}
	return n
}

// SystemContext carries the live system-wide values a Part cannot own
// itself: master volume and whatever rhythm-channel output level
// applies when this part is overridden by the rhythm part's per-key
// output level (spec §4.3's TVA basicAmp paragraph).
type SystemContext struct {
	MasterVol         uint8
	RhythmOutputLevel uint8
	HasRhythmTemp     bool
}

// Part is one of the eight melodic MIDI channels or the rhythm part
// (index allocator.RhythmPart). It owns no partials or polys directly
// — only handles into the shared allocator.Manager pools.
type Part struct {
	index int
	mgr   *allocator.Manager
	tb    *tables.Tables

	timbre     *Timbre
	assignMode uint8 // bit 0 clear = single-assign, prefers-earlier refusal on contention

	holdPedal  bool
	volume     uint8
	expression uint8
	pan        uint8
	bend       int32 // 0..16383, 8192 = center
	benderRange uint8
	modulation uint8
	reverbEnabled bool

	activePolys []partial.Handle
}

// New builds a Part bound to the given part index and shared
// allocator. index 0-7 selects a melodic part, allocator.RhythmPart
// (8) selects the rhythm part.
func New(index int, mgr *allocator.Manager, tb *tables.Tables) *Part {
	return &Part{
		index:         index,
		mgr:           mgr,
		tb:            tb,
		volume:        100,
		expression:    100,
		pan:           64,
		bend:          8192,
		benderRange:   2,
		reverbEnabled: true,
	}
}

func (p *Part) Index() int { return p.index }
func (p *Part) IsRhythm() bool { return p.index == RhythmIndex }

// ActivePolys returns the part's current live poly handles, for the
// top-level Synth's per-sample tick/mixdown loop.
func (p *Part) ActivePolys() []partial.Handle { return p.activePolys }

// SetProgram loads a new timbre, per spec §4.4: "loads patch +
// timbre, refreshes, silences." Silencing existing polys on this part
// mirrors setPatch's effect on playNote's patchCache.
func (p *Part) SetProgram(t *Timbre) {
	p.AllSoundOff()
	p.timbre = t
}

func (p *Part) singleAssign() bool { return p.assignMode&1 == 0 }

// SetAssignMode sets the raw assignMode byte (bit 0: single-assign).
func (p *Part) SetAssignMode(mode uint8) { p.assignMode = mode }

// AmpContext exposes ampContext for the top-level Synth's render loop,
// which must rebuild a playing poly's AmpContext every sample to
// reflect live volume/expression/master-volume changes.
func (p *Part) AmpContext(sys SystemContext, ringModSlave bool) envelope.AmpContext {
	return p.ampContext(sys, ringModSlave)
}

// PitchContext exposes pitchContext for the top-level Synth's render
// loop.
func (p *Part) PitchContext() envelope.PitchContext {
	return p.pitchContext()
}

func (p *Part) ampContext(sys SystemContext, ringModSlave bool) envelope.AmpContext {
	return envelope.AmpContext{
		MasterVol:             sys.MasterVol,
		PatchOutputLevel:      p.volume,
		RhythmOutputLevel:     sys.RhythmOutputLevel,
		HasRhythmTemp:         sys.HasRhythmTemp,
		Expression:            p.expression,
		IsRingModulatingSlave: ringModSlave,
	}
}

func (p *Part) pitchContext() envelope.PitchContext {
	return envelope.PitchContext{MidiBend: p.bend, BenderRange: p.benderRange}
}

// NoteOn maps midiKey through the timbre's key shift, stops any
// same-key poly first under single-assign, reserves partials via the
// allocator, and starts one poly spanning 1-4 partials. Returns false
// (note refused) if no timbre is loaded or partials cannot be freed.
func (p *Part) NoteOn(midiKey, velocity int, sys SystemContext) bool {
	if p.timbre == nil {
		return false
	}
	key := midiKey + p.timbre.KeyShift
	if p.singleAssign() {
		p.stopKey(key, false)
	}

	needed := p.timbre.NumPartialsUsed()
	if needed == 0 {
		return false
	}
	if !p.mgr.FreePartials(needed, p.index, p.singleAssign()) {
		return false
	}

	handles := p.mgr.AllocatePartials(needed)
	if len(handles) < needed {
		for _, h := range handles {
			p.mgr.ReleasePartial(h)
		}
		return false
	}
	polyHandle, ok := p.mgr.AllocatePoly()
	if !ok {
		for _, h := range handles {
			p.mgr.ReleasePartial(h)
		}
		return false
	}

	age := p.mgr.Tick()
	po := p.mgr.Poly(polyHandle)
	po.Start(p.index, key, velocity, p.holdPedal, age, handles)

	i := 0
	for pairIdx := range p.timbre.Pairs {
		spec := &p.timbre.Pairs[pairIdx]
		if !spec.Used {
			continue
		}
		aHandle := handles[i]
		i++
		var bHandle partial.Handle = partial.Invalid
		if spec.BUsed {
			bHandle = handles[i]
			i++
		}
		p.startPair(aHandle, bHandle, spec, polyHandle, key, velocity, sys)
	}

	p.activePolys = append(p.activePolys, polyHandle)
	return true
}

func (p *Part) startPair(aHandle, bHandle partial.Handle, spec *PairSpec, poly partial.Handle, key, velocity int, sys SystemContext) {
	a := p.mgr.Partial(aHandle)
	if a == nil {
		return
	}
	aCtx := partial.StartContext{
		Key: key, Velocity: velocity, CanSustain: p.holdPedal,
		Amp:   p.ampContext(sys, false),
		Pitch: p.pitchContext(),
	}
	a.StartPartial(p.index, poly, bHandle, partial.PositionZero, specToCache(spec.A, spec.RingModulated, spec.Mixed, p.pan, p.reverbEnabled), aCtx)

	if !spec.BUsed {
		return
	}
	b := p.mgr.Partial(bHandle)
	if b == nil {
		return
	}
	bCtx := aCtx
	bCtx.Amp = p.ampContext(sys, spec.RingModulated)
	b.StartPartial(p.index, poly, aHandle, partial.PositionOne, specToCache(spec.B, spec.RingModulated, spec.Mixed, p.pan, p.reverbEnabled), bCtx)
}

func specToCache(s PartialSpec, ringModulated, mixed bool, pan uint8, reverbSend bool) partial.Cache {
	return partial.Cache{
		Amp: s.Amp, Filter: s.Filter, Pitch: s.Pitch, PitchTiming: s.PitchTiming,
		SawtoothWaveform: s.SawtoothWaveform, PulseWidth: s.PulseWidth, Resonance: s.Resonance,
		PCMWave: s.PCMWave, PCMLooped: s.PCMLooped, IsPCM: s.IsPCM,
		RingModulated: ringModulated, Mixed: mixed,
		Pan: pan, ReverbSend: reverbSend,
	}
}

// NumPartialsNeeded reports how many partial slots the currently
// loaded timbre would require on the next NoteOn, for event reporting
// (spec §7's NoteOnIgnored(partialsNeeded, partialsFree)). 0 when no
// timbre is loaded.
func (p *Part) NumPartialsNeeded() int {
	if p.timbre == nil {
		return 0
	}
	return p.timbre.NumPartialsUsed()
}

// NoteOff moves matching PLAYING polys to HELD (hold pedal down) or
// RELEASING otherwise, per spec §4.4.
func (p *Part) NoteOff(midiKey int) {
	key := midiKey
	if p.timbre != nil {
		key += p.timbre.KeyShift
	}
	p.stopKey(key, p.holdPedal)
}

func (p *Part) stopKey(key int, holdPedal bool) {
	for _, h := range p.activePolys {
		po := p.mgr.Poly(h)
		if po == nil || po.Key() != key || po.State() != poly.Playing {
			continue
		}
		po.NoteOff(holdPedal, func(ph partial.Handle) {
			if pt := p.mgr.Partial(ph); pt != nil {
				pt.StartDecay()
			}
		})
	}
}

// AllSoundOff aborts every active poly on this part immediately,
// ignoring the hold pedal — spec §4.4: "abort-style commands do not"
// respect hold.
func (p *Part) AllSoundOff() {
	for _, h := range p.activePolys {
		po := p.mgr.Poly(h)
		if po == nil {
			continue
		}
		po.Abort(func(ph partial.Handle) {
			if pt := p.mgr.Partial(ph); pt != nil {
				pt.StartAbort()
			}
		})
	}
	p.activePolys = p.activePolys[:0]
}

// AllNotesOff releases every active poly as if each key had received a
// NoteOff — respecting the hold pedal, per spec §4.4.
func (p *Part) AllNotesOff() {
	for _, h := range p.activePolys {
		po := p.mgr.Poly(h)
		if po == nil {
			continue
		}
		po.NoteOff(p.holdPedal, func(ph partial.Handle) {
			if pt := p.mgr.Partial(ph); pt != nil {
				pt.StartDecay()
			}
		})
	}
}

// SetHoldPedal updates the hold-pedal state. Releasing the pedal
// (true -> false) immediately moves every HELD poly to RELEASING.
func (p *Part) SetHoldPedal(down bool) {
	wasDown := p.holdPedal
	p.holdPedal = down
	if wasDown && !down {
		for _, h := range p.activePolys {
			po := p.mgr.Poly(h)
			if po == nil {
				continue
			}
			po.PedalUp(func(ph partial.Handle) {
				if pt := p.mgr.Partial(ph); pt != nil {
					pt.StartDecay()
				}
			})
		}
	}
}

func (p *Part) SetExpression(v uint8)   { p.expression = v }
func (p *Part) SetVolume(v uint8)       { p.volume = v }
func (p *Part) SetPan(v uint8)          { p.pan = v }
func (p *Part) SetModulation(v uint8)   { p.modulation = v }

// SetReverbSwitch controls whether this part's partial output feeds
// the reverb model's input bus, per patch temp's per-part reverb
// switch (spec §6's PatchTemp region).
func (p *Part) SetReverbSwitch(on bool) { p.reverbEnabled = on }

// ReverbEnabled reports this part's current reverb-switch state, for
// Synth's render loop to route its partials' output to the wet bus.
func (p *Part) ReverbEnabled() bool { return p.reverbEnabled }
func (p *Part) SetBend(bend14bit int32, rangeSemitones uint8) {
	p.bend = bend14bit
	p.benderRange = rangeSemitones
}

// SetBendValue updates only the live 14-bit bend value from a MIDI
// Pitch Bend message, leaving the bender range (an RPN/SysEx-only
// setting) untouched.
func (p *Part) SetBendValue(bend14bit int32) { p.bend = bend14bit }

// SetBenderRange updates only the patch's bender range (a PatchTemp
// SysEx field), leaving the live bend position untouched.
func (p *Part) SetBenderRange(rangeSemitones uint8) { p.benderRange = rangeSemitones }

// BenderRange reports the part's current pitch-bend range in semitones.
func (p *Part) BenderRange() uint8 { return p.benderRange }

func (p *Part) Volume() uint8     { return p.volume }
func (p *Part) Expression() uint8 { return p.expression }
func (p *Part) Pan() uint8        { return p.pan }
func (p *Part) HoldPedal() bool   { return p.holdPedal }

// RecalcSustain re-evaluates every sustaining poly's TVA so that a
// live volume/expression/pan change is audible without a new note-on
// (spec §4.4: "TVA recalc picks them up on the next sustain tick").
func (p *Part) RecalcSustain(sys SystemContext) {
	for _, h := range p.activePolys {
		po := p.mgr.Poly(h)
		if po == nil {
			continue
		}
		for i := 0; i < po.NumPartials(); i++ {
			if pt := p.mgr.Partial(po.PartialAt(i)); pt != nil {
				pt.RecalcSustain(p.ampContext(sys, false))
			}
		}
	}
}

// PruneInactive drops handles to polys that have fully deactivated,
// keeping activePolys bounded to genuinely live notes. Call once per
// audio block after ticking the synth.
func (p *Part) PruneInactive() {
	live := p.activePolys[:0]
	for _, h := range p.activePolys {
		if po := p.mgr.Poly(h); po != nil && po.IsActive() {
			live = append(live, h)
		}
	}
	p.activePolys = live
}
