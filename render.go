// Render's companion file: the per-sample MIDI dispatch loop and the
// partial tick/mixdown pipeline feeding the reverb and analog stages,
// grounded on the teacher's Sequencer.Process batch-render shape
// (internal/sequencer/sequencer.go), generalized from "advance the
// sequencer, mix one engine" to "drain due MIDI events, tick every
// active partial, mix three buses, post-process."
package synth

import (
	"github.com/la32core/synth/internal/midimsg"
	"github.com/la32core/synth/internal/part"
	"github.com/la32core/synth/internal/partial"
)

// Render fills dst (interleaved stereo float32, len(dst) must be even)
// with the next len(dst)/2 output frames at the analog stage's output
// rate, draining due MIDI events sample-accurately as it goes (spec
// §5: "an event scheduled at time t is guaranteed to be processed
// before sample t is emitted").
func (s *Synth) Render(dst []float32) {
	outFrames := len(dst) / 2
	if outFrames == 0 {
		return
	}
	inFrames := s.analogStage.GetDACStreamsLength(outFrames)
	s.ensureBuses(inFrames)

	for i := 0; i < inFrames; i++ {
		s.drainDueMIDI()
		s.tickSample()

		nrL, nrR, dL, dR := s.mixSample()
		s.nonReverbL[i], s.nonReverbR[i] = nrL, nrR
		s.dryL[i], s.dryR[i] = dL, dR

		s.sampleCount++
	}

	s.reverbModel.Process(s.dryL[:inFrames], s.dryR[:inFrames], s.wetL[:inFrames], s.wetR[:inFrames])
	s.analogStage.Process(
		s.nonReverbL[:inFrames], s.nonReverbR[:inFrames],
		s.dryL[:inFrames], s.dryR[:inFrames],
		s.wetL[:inFrames], s.wetR[:inFrames],
		dst,
	)

	for _, slot := range s.allSlots {
		slot.p.PruneInactive()
	}
}

// ensureBuses grows the reusable per-render scratch buffers to at
// least n frames, matching the teacher's pattern of growing a shared
// mix buffer instead of allocating fresh ones every render call.
func (s *Synth) ensureBuses(n int) {
	if cap(s.nonReverbL) >= n {
		s.nonReverbL = s.nonReverbL[:n]
		s.nonReverbR = s.nonReverbR[:n]
		s.dryL = s.dryL[:n]
		s.dryR = s.dryR[:n]
		s.wetL = s.wetL[:n]
		s.wetR = s.wetR[:n]
		return
	}
	s.nonReverbL = make([]float32, n)
	s.nonReverbR = make([]float32, n)
	s.dryL = make([]float32, n)
	s.dryR = make([]float32, n)
	s.wetL = make([]float32, n)
	s.wetR = make([]float32, n)
}

// drainDueMIDI pops and dispatches every queued message whose
// timestamp has already arrived, unless a poly is still winding down
// from an abort: spec §4.5: "abortingPoly != null ⇒ new MIDI events
// are held back until that poly's partials release," the Go
// expression of the hardware's MCU busy-wait.
func (s *Synth) drainDueMIDI() {
	for {
		if s.mgr.IsAborting() {
			return
		}
		m, ok := s.queue.PeekDue(s.sampleCount)
		if !ok {
			return
		}
		s.queue.Pop()
		s.dispatch(m)
	}
}

// dispatch routes one decoded MIDI message to its channel-voice
// handler or the SysEx memory-region dispatcher, per spec §4.4/§6.
// Unsupported commands are ignored with a debug event (spec §7).
func (s *Synth) dispatch(m midimsg.Message) {
	switch m.Classify() {
	case midimsg.KindNoteOn:
		ch, key, vel, _ := m.NoteOn()
		if vel == 0 {
			// MIDI convention: a Note On with velocity 0 is a Note Off.
			s.noteOff(ch, key)
			return
		}
		s.noteOn(ch, key, vel)
	case midimsg.KindNoteOff:
		ch, key, _, _ := m.NoteOff()
		s.noteOff(ch, key)
	case midimsg.KindControlChange:
		ch, cc, val, _ := m.ControlChange()
		s.controlChange(ch, cc, val)
	case midimsg.KindProgramChange:
		ch, program, _ := m.ProgramChange()
		s.programChange(ch, program)
	case midimsg.KindPitchBend:
		ch, rel, _ := m.PitchBend()
		s.pitchBend(ch, rel)
	case midimsg.KindSysEx:
		payload, _ := m.SysExPayload()
		s.handleSysEx(payload)
	default:
		s.emit(Event{Kind: EventDebugMessage, Message: "unsupported MIDI command"})
	}
}

// Standard MIDI controller numbers this core's CC setters respond to
// (spec §4.4's setHoldPedal/setExpression/setVolume/setPan/setModulation).
const (
	ccModulation = 1
	ccVolume     = 7
	ccPan        = 10
	ccExpression = 11
	ccHold       = 64
)

// targetForChannel resolves a 0-based MIDI channel to the part or
// rhythm part listening on it, or nil if no part claims the channel.
func (s *Synth) targetForChannel(ch uint8) noteTarget {
	if ch == s.rhythmChannel {
		return s.rhythm
	}
	for i, c := range s.channelAssign {
		if c == ch {
			return s.parts[i]
		}
	}
	return nil
}

func (s *Synth) sysContext() part.SystemContext {
	return part.SystemContext{MasterVol: s.masterVol}
}

func (s *Synth) noteOn(ch, key, velocity uint8) {
	target := s.targetForChannel(ch)
	if target == nil {
		return
	}
	needed := 0
	switch t := target.(type) {
	case *part.RhythmPart:
		needed = t.NumPartialsNeededForKey(int(key))
	case *part.Part:
		needed = t.NumPartialsNeeded()
	}
	freeBefore := s.mgr.FreeCount()
	ok := target.NoteOn(int(key), int(velocity), s.sysContext())
	for n := s.mgr.ConsumeAbortedPlayingCount(); n > 0; n-- {
		s.emit(Event{Kind: EventPlayingPolySilenced, Message: "poly aborted to make room"})
	}
	if !ok {
		s.emit(Event{Kind: EventNoteOnIgnored, PartialsNeeded: needed, PartialsFree: freeBefore})
	}
}

func (s *Synth) noteOff(ch, key uint8) {
	if target := s.targetForChannel(ch); target != nil {
		target.NoteOff(int(key))
	}
}

func (s *Synth) controlChange(ch, cc, val uint8) {
	target := s.targetForChannel(ch)
	if target == nil {
		return
	}
	switch cc {
	case ccHold:
		target.SetHoldPedal(val >= 64)
	case ccExpression:
		target.SetExpression(val)
	case ccVolume:
		target.SetVolume(val)
	case ccPan:
		target.SetPan(val)
	case ccModulation:
		target.SetModulation(val)
	default:
		s.emit(Event{Kind: EventDebugMessage, Message: "unsupported control change"})
	}
}

func (s *Synth) programChange(ch, program uint8) {
	target := s.targetForChannel(ch)
	if target == nil {
		return
	}
	t := s.patchBank[program]
	if t == nil {
		s.emit(Event{Kind: EventDebugMessage, Message: "program change: no timbre loaded for this program"})
		return
	}
	target.SetProgram(t)
}

func (s *Synth) pitchBend(ch uint8, rel int16) {
	target := s.targetForChannel(ch)
	if target == nil {
		return
	}
	target.SetBendValue(int32(rel) + 8192)
}

// SetPatchBank binds a Timbre to a 0-127 program number for Program
// Change dispatch. Building a playable Timbre from raw Patches/Timbres
// SysEx bytes is out of scope (see DESIGN.md); this is the
// programmatic equivalent a host uses instead, the same role Part()
// plays for direct per-part timbre loading.
func (s *Synth) SetPatchBank(program int, t *part.Timbre) {
	if program < 0 || program >= len(s.patchBank) {
		return
	}
	s.patchBank[program] = t
}

// tickSample advances every active partial's envelopes and wave
// generator by one sample, releasing partials/polys back to the
// allocator's pools the instant a wave generator or TVA reports
// itself finished (spec §4.8: "Non-looping PCM reaching end: partial
// deactivates, TVA forced to silence").
func (s *Synth) tickSample() {
	sys := s.sysContext()
	for _, slot := range s.allSlots {
		p := slot.p
		p.RecalcSustain(sys)
		for _, ph := range p.ActivePolys() {
			po := s.mgr.Poly(ph)
			if po == nil {
				continue
			}
			canSustain := po.CanSustain()
			for i := 0; i < po.NumPartials(); i++ {
				pth := po.PartialAt(i)
				pt := s.mgr.Partial(pth)
				if pt == nil {
					continue
				}
				ampCtx := p.AmpContext(sys, pt.IsRingModSlave())
				pitchCtx := p.PitchContext()
				pt.Tick(ampCtx, pitchCtx, canSustain, func() {
					s.onPartialDeactivated(ph, pth)
				})
			}
		}
	}
}

// onPartialDeactivated returns a finished partial to the allocator's
// free stack and, once every partial of its poly has deactivated,
// returns the poly too (spec §3: "Freeing a Poly returns its partials
// to the free stack"; spec §4.4: "on the last one, the poly returns
// itself to the free-poly stack").
func (s *Synth) onPartialDeactivated(polyHandle, partialHandle partial.Handle) {
	s.mgr.ReleasePartial(partialHandle)
	po := s.mgr.Poly(polyHandle)
	if po == nil {
		return
	}
	if po.NotifyPartialDeactivated(partialHandle) {
		s.mgr.ReleasePoly(polyHandle)
	}
}

// mixSample sums every structure pair's output sample into the
// non-reverb and dry buses, panned and routed per each pair's
// note-on-time captured Pan/ReverbSend (spec §4.2/§6). Ring-mod slave
// partials are skipped: their contribution is already folded into the
// master's OutputSample.
func (s *Synth) mixSample() (nonReverbL, nonReverbR, dryL, dryR float32) {
	for _, slot := range s.allSlots {
		p := slot.p
		for _, ph := range p.ActivePolys() {
			po := s.mgr.Poly(ph)
			if po == nil {
				continue
			}
			for i := 0; i < po.NumPartials(); i++ {
				pth := po.PartialAt(i)
				pt := s.mgr.Partial(pth)
				if pt == nil || pt.IsRingModSlave() {
					continue
				}
				out := pt.OutputSample(s.mgr.Partial(pt.Pair()))
				sample := float32(out) / 32768.0
				gL, gR := panGains(pt.Pan())
				if pt.ReverbSend() {
					dryL += sample * gL
					dryR += sample * gR
				} else {
					nonReverbL += sample * gL
					nonReverbR += sample * gR
				}
			}
		}
	}
	return
}

// panGains converts a 0-127 pan value (64 = center) to linear
// left/right gains, matching the hardware's panpot sweep: full left at
// 0, full right at 127.
func panGains(pan uint8) (left, right float32) {
	p := float32(pan) / 127
	return 1 - p, p
}
