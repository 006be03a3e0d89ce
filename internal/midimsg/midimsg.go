// Package midimsg represents decoded MIDI channel-voice and SysEx
// messages as the value type the bounded MIDI queue (spec §5) carries.
// Byte-stream parsing stays out of scope per spec §1; this package
// only builds and inspects already-decoded gitlab.com/gomidi/midi/v2
// messages, the same dependency icco-genidi and aaliyan1230-midi-mixer
// use for MIDI message representation.
package midimsg

import "gitlab.com/gomidi/midi/v2"

// Kind classifies a decoded message for the queue consumer's dispatch
// switch, avoiding a repeated type-switch/GetX probe at every
// consumption site.
type Kind int

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindControlChange
	KindProgramChange
	KindPitchBend
	KindSysEx
	KindUnsupported
)

// Message is one timestamped, decoded MIDI event as carried by the
// bounded single-producer queue (spec §5): a raw midi.Message plus the
// sample-count timestamp it's scheduled against.
type Message struct {
	Timestamp uint64 // sample count this event becomes visible at
	Raw       midi.Message
}

// NoteOn builds a decoded Note On message for channel ch (0-based),
// key, and velocity, timestamped at t.
func NoteOn(t uint64, ch, key, velocity uint8) Message {
	return Message{Timestamp: t, Raw: midi.NoteOn(ch, key, velocity)}
}

// NoteOff builds a decoded Note Off message.
func NoteOff(t uint64, ch, key uint8) Message {
	return Message{Timestamp: t, Raw: midi.NoteOff(ch, key)}
}

// ControlChange builds a decoded Control Change message (hold pedal,
// expression, pan, modulation, etc. per spec §4.4's CC setters).
func ControlChange(t uint64, ch, controller, value uint8) Message {
	return Message{Timestamp: t, Raw: midi.ControlChange(ch, controller, value)}
}

// ProgramChange builds a decoded Program Change message (Part.SetProgram).
func ProgramChange(t uint64, ch, program uint8) Message {
	return Message{Timestamp: t, Raw: midi.ProgramChange(ch, program)}
}

// PitchBend builds a decoded Pitch Bend message; rel is the signed
// 14-bit bend relative to center (0 = no bend), matching Part.SetBend's
// 0..16383/8192-center convention once re-based by the caller.
func PitchBend(t uint64, ch uint8, rel int16) Message {
	return Message{Timestamp: t, Raw: midi.Pitchbend(ch, rel)}
}

// SysEx builds a decoded SysEx message carrying the payload bytes
// (header/terminator excluded — internal/sysex.DecodeFrame further
// decodes the payload into a memory-region write).
func SysEx(t uint64, payload []byte) Message {
	return Message{Timestamp: t, Raw: midi.SysEx(payload)}
}

// Classify reports which spec §4.4/§6 dispatch path a Message
// belongs on. Messages midi/v2 recognizes but this core has no
// channel-voice handler for (e.g. aftertouch) report KindUnsupported,
// matching spec §7's "Unsupported MIDI command: silently ignored with
// a debug event."
func (m Message) Classify() Kind {
	switch {
	case m.Raw.Is(midi.NoteOnMsg):
		return KindNoteOn
	case m.Raw.Is(midi.NoteOffMsg):
		return KindNoteOff
	case m.Raw.Is(midi.ControlChangeMsg):
		return KindControlChange
	case m.Raw.Is(midi.ProgramChangeMsg):
		return KindProgramChange
	case m.Raw.Is(midi.PitchBendMsg):
		return KindPitchBend
	case m.Raw.Is(midi.SysExMsg):
		return KindSysEx
	default:
		return KindUnsupported
	}
}

// NoteOn extracts (channel, key, velocity) from a message classified
// KindNoteOn. ok is false for any other Kind.
func (m Message) NoteOn() (channel, key, velocity uint8, ok bool) {
	return m.Raw.GetNoteOn()
}

// NoteOff extracts (channel, key, velocity) from a message classified
// KindNoteOff.
func (m Message) NoteOff() (channel, key, velocity uint8, ok bool) {
	return m.Raw.GetNoteOff()
}

// ControlChange extracts (channel, controller, value).
func (m Message) ControlChange() (channel, controller, value uint8, ok bool) {
	return m.Raw.GetControlChange()
}

// ProgramChange extracts (channel, program).
func (m Message) ProgramChange() (channel, program uint8, ok bool) {
	return m.Raw.GetProgramChange()
}

// PitchBend extracts (channel, relative bend).
func (m Message) PitchBend() (channel uint8, rel int16, ok bool) {
	return m.Raw.GetPitchBend()
}

// SysExPayload extracts the raw SysEx payload bytes.
func (m Message) SysExPayload() (payload []byte, ok bool) {
	return m.Raw.GetSysEx()
}
