// Package synth is the top-level LA32-style synthesis core: the
// public Synth type wiring together the wave generator, envelope
// machines, partial allocator, part/rhythm dispatch, reverb, and
// analog post-stage described in the internal packages. Grounded on
// the teacher's player.go/offline.go split (Open/Close with
// functional options, a render-on-demand entry point, one-way event
// reporting instead of returned errors for recoverable conditions).
package synth

import (
	"fmt"

	"github.com/la32core/synth/internal/allocator"
	"github.com/la32core/synth/internal/analog"
	"github.com/la32core/synth/internal/midimsg"
	"github.com/la32core/synth/internal/part"
	"github.com/la32core/synth/internal/reverb"
	"github.com/la32core/synth/internal/sysex"
	"github.com/la32core/synth/internal/tables"
)

// numMelodicParts is spec §1's "eight melodic parts."
const numMelodicParts = 8

// nativeSampleRate is the core's fixed internal rate (spec §1).
const nativeSampleRate = 32000

// noteTarget is the surface both *part.Part and *part.RhythmPart
// satisfy (RhythmPart overrides NoteOn and NoteOff; every other method
// is promoted from the embedded *Part), letting Synth's dispatcher
// treat a melodic channel and the rhythm channel uniformly.
type noteTarget interface {
	Index() int
	NoteOn(midiKey, velocity int, sys part.SystemContext) bool
	NoteOff(midiKey int)
	AllSoundOff()
	AllNotesOff()
	SetHoldPedal(down bool)
	SetExpression(v uint8)
	SetVolume(v uint8)
	SetPan(v uint8)
	SetModulation(v uint8)
	SetBendValue(bend14bit int32)
	BenderRange() uint8
	SetProgram(t *part.Timbre)
	ReverbEnabled() bool
}

// partSlot bundles one of the nine parts with its rhythm-specific view
// (nil for the eight melodic parts), so the render loop can special-case
// per-key pan/reverb lookups without a type switch at every sample.
type partSlot struct {
	p        *part.Part
	rhythm   *part.RhythmPart
	isRhythm bool
}

// Synth is the synthesis core: fixed partial/poly pools, eight melodic
// parts plus the rhythm part, one reverb model, one analog post-stage,
// and the SysEx-addressable memory map. Synth exclusively owns every
// pool (spec §3's ownership rule); Part/Poly/Partial reach back into
// it only through handles.
type Synth struct {
	tables *tables.Tables
	mgr    *allocator.Manager

	parts   [numMelodicParts]*part.Part
	rhythm  *part.RhythmPart
	allSlots [numMelodicParts + 1]partSlot

	channelAssign [numMelodicParts]uint8
	rhythmChannel uint8

	reverbModel reverb.Model
	analogStage *analog.Stage

	mem *sysex.Memory

	queue *MIDIQueue

	listener Listener

	masterVol   uint8
	reverbMode  int
	sampleCount uint64

	patchBank [128]*part.Timbre

	// Per-render scratch buses, grown on demand (never shrunk) so a
	// steady-state Render loop allocates nothing after warmup.
	nonReverbL, nonReverbR []float32
	dryL, dryR             []float32
	wetL, wetR             []float32
}

// Open builds a Synth: allocates the fixed partial/poly pools, the
// nine parts, the reverb model and analog stage, and the SysEx memory
// map. The only hard failure is a malformed control ROM image supplied
// via WithControlROM (spec §7: "only construction failure is a hard
// failure").
func Open(opts ...Option) (*Synth, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	newGen, reserve, err := cfg.resolveControlROM()
	if err != nil {
		return nil, fmt.Errorf("synth: open: %w", err)
	}

	var reserveArr [allocator.NumParts]uint8
	copy(reserveArr[:], reserve[:])

	tb := tables.New()
	mgr := allocator.New(tb, cfg.partialCount, reserveArr, newGen)

	s := &Synth{
		tables:        tb,
		mgr:           mgr,
		analogStage:   analog.NewStage(cfg.analogMode),
		mem:           sysex.NewMemory(nil),
		queue:         NewMIDIQueue(defaultQueueCapacity),
		listener:      cfg.listener,
		masterVol:     100,
		rhythmChannel: 9,
	}
	if s.listener == nil {
		s.listener = NopListener{}
	}
	for i := range s.channelAssign {
		s.channelAssign[i] = uint8(i)
	}

	for i := 0; i < numMelodicParts; i++ {
		s.parts[i] = part.New(i, mgr, tb)
		s.allSlots[i] = partSlot{p: s.parts[i]}
	}
	s.rhythm = part.NewRhythmPart(mgr, tb)
	s.allSlots[numMelodicParts] = partSlot{p: s.rhythm.Part, rhythm: s.rhythm, isRhythm: true}

	if cfg.reverbModel != nil {
		s.reverbModel = cfg.reverbModel
	} else {
		s.reverbModel = &reverb.Freeverb{}
	}
	s.reverbModel.Open(nativeSampleRate)

	return s, nil
}

// Close releases the reverb tail and analog history. A forced close
// would additionally abort every poly immediately (spec §5); letting
// the reverb model's own Close() run its course covers the
// non-forced path, since the core holds no other unmanaged resources
// (no file handles, no OS audio device — that's internal/audioout's
// concern).
func (s *Synth) Close() {
	s.reverbModel.Close()
}

// CloseForced immediately silences every part instead of letting
// releasing polys and the reverb tail finish naturally (spec §5:
// "Forced close aborts all polys immediately").
func (s *Synth) CloseForced() {
	for _, slot := range s.allSlots {
		slot.p.AllSoundOff()
	}
	s.reverbModel.Mute()
	s.Close()
}

// EnqueueMIDI appends a decoded, timestamped MIDI message to the
// bounded queue. It returns false and raises EventMidiQueueOverflow
// when the queue is full (spec §7: "never drops silently").
func (s *Synth) EnqueueMIDI(m midimsg.Message) bool {
	if s.queue.Enqueue(m) {
		return true
	}
	s.emit(Event{Kind: EventMidiQueueOverflow, Message: "MIDI queue full"})
	return false
}

// SetChannelAssign rebinds which MIDI channel (0-15) each melodic part
// listens on, per spec §6 System region's channel-assign bytes.
func (s *Synth) SetChannelAssign(assign [numMelodicParts]uint8) {
	s.channelAssign = assign
}

// Part returns one of the eight melodic parts for direct
// configuration (timbre loading, reserve-independent setup) by a
// caller that isn't driving the synth purely through MIDI/SysEx —
// e.g. a test harness building a patch programmatically instead of
// decoding it from raw TimbreTemp bytes (see DESIGN.md on why
// TimbreTemp/Patches/Timbres SysEx writes don't themselves synthesize
// a playable Timbre in this core).
func (s *Synth) Part(index int) *part.Part {
	if index < 0 || index >= numMelodicParts {
		return nil
	}
	return s.parts[index]
}

// Rhythm returns the rhythm part for direct slot configuration.
func (s *Synth) Rhythm() *part.RhythmPart { return s.rhythm }

// FreePartialCount exposes the allocator's free-partial count, per
// spec §8 property 1 and scenario S1's "32 free at open".
func (s *Synth) FreePartialCount() int { return s.mgr.FreeCount() }

// PartsUsage exposes per-part partial usage, per spec §8 S3/S4.
func (s *Synth) PartsUsage() [allocator.NumParts]int { return s.mgr.PartsUsage() }

// OutputRate reports the sample rate Render's output frames are at,
// per the analog post-stage's configured Mode (spec §4.7).
func (s *Synth) OutputRate() int { return s.analogStage.Mode().OutputRate() }
