package part

import (
	"github.com/la32core/synth/internal/allocator"
	"github.com/la32core/synth/internal/tables"
)

// RhythmKeyBase is the lowest MIDI key the rhythm part's 85-slot table
// covers: MIDI key 24 (C1), the bottom of the hardware's rhythm key map.
const RhythmKeyBase = 24

// RhythmSlotCount is spec §3's "85 rhythm slots."
const RhythmSlotCount = 85

// RhythmSlot is one RhythmTemp entry, spec §6's RhythmTemp region: 4
// bytes/entry — timbre index, level, pan, reverb-enable — resolved
// here into a fully-built Timbre plus the three per-key fields spec
// §3 lists: "MIDI key -> timbre, level, pan, reverb-enable."
type RhythmSlot struct {
	Timbre        *Timbre
	Level         uint8
	Pan           uint8
	ReverbEnabled bool
}

// RhythmPart is the 9th part (spec §3/§4.4): a key->timbre map instead
// of one patch, highest allocator priority. It embeds *Part to reuse
// its poly-list bookkeeping, TVA recalc, and hold-pedal handling —
// NoteOn's timbre/level/pan resolution and NoteOff's key lookup are
// the only overrides.
type RhythmPart struct {
	*Part
	slots [RhythmSlotCount]RhythmSlot
}

// NewRhythmPart builds an empty rhythm part bound to the shared
// allocator, at the allocator's reserved rhythm index.
func NewRhythmPart(mgr *allocator.Manager, tb *tables.Tables) *RhythmPart {
	return &RhythmPart{Part: New(RhythmIndex, mgr, tb)}
}

// SetSlot configures one rhythm key's timbre/level/pan/reverb-enable,
// the logical decode of a RhythmTemp SysEx write (spec §6).
func (r *RhythmPart) SetSlot(key int, slot RhythmSlot) {
	idx := key - RhythmKeyBase
	if idx < 0 || idx >= RhythmSlotCount {
		return
	}
	r.slots[idx] = slot
}

// Slot returns the rhythm slot for a MIDI key, or false if the key is
// outside the 85-entry table or the slot has no timbre loaded.
func (r *RhythmPart) Slot(key int) (RhythmSlot, bool) {
	idx := key - RhythmKeyBase
	if idx < 0 || idx >= RhythmSlotCount || r.slots[idx].Timbre == nil {
		return RhythmSlot{}, false
	}
	return r.slots[idx], true
}

// NoteOn resolves midiKey through the 85-slot rhythm table (instead of
// a single loaded timbre) and delegates to Part.NoteOn with that key's
// timbre, level, and pan substituted in — spec §4.3's basicAmp
// consulting "rhythmTemp" output level in place of a part's patch
// volume when HasRhythmTemp is set.
func (r *RhythmPart) NoteOn(midiKey, velocity int, sys SystemContext) bool {
	slot, ok := r.Slot(midiKey)
	if !ok {
		return false
	}
	r.Part.timbre = slot.Timbre
	r.Part.pan = slot.Pan
	r.Part.reverbEnabled = slot.ReverbEnabled
	sys.RhythmOutputLevel = slot.Level
	sys.HasRhythmTemp = true
	return r.Part.NoteOn(midiKey, velocity, sys)
}

// NoteOff releases the poly playing midiKey directly, bypassing the
// embedded Part's NoteOff KeyShift addition. A melodic Part's NoteOff
// adds its one loaded timbre's KeyShift because NoteOn used the same
// shift; a rhythm key's timbre is resolved per-slot and r.Part.timbre
// only ever holds whichever slot's Timbre was loaded by the most
// recent NoteOn, so reusing it here could look up the wrong key
// (and potentially miss the poly entirely) when a different rhythm
// key is struck in between. The original's RhythmPart::noteOff has
// the same guard: it calls stopNote(midiKey) directly rather than
// going through midiKeyToKey.
func (r *RhythmPart) NoteOff(midiKey int) {
	r.Part.stopKey(midiKey, r.Part.holdPedal)
}

// SlotReverbEnabled reports whether the given rhythm key's hits should
// be sent to the wet reverb bus, per spec §6's per-slot reverb-enable
// flag. Named distinctly from the embedded Part's ReverbEnabled (which
// reports the last-played key's captured switch) since this one is
// keyed per rhythm slot rather than per part.
func (r *RhythmPart) SlotReverbEnabled(midiKey int) bool {
	slot, ok := r.Slot(midiKey)
	return ok && slot.ReverbEnabled
}

// NumPartialsNeededForKey reports how many partial slots a NoteOn at
// midiKey would require, for event reporting. 0 when the key has no
// slot.
func (r *RhythmPart) NumPartialsNeededForKey(midiKey int) int {
	slot, ok := r.Slot(midiKey)
	if !ok || slot.Timbre == nil {
		return 0
	}
	return slot.Timbre.NumPartialsUsed()
}
