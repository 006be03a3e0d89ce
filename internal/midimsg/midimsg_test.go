package midimsg

import "testing"

func TestNoteOnRoundTrip(t *testing.T) {
	m := NoteOn(0, 0, 60, 127)
	if m.Classify() != KindNoteOn {
		t.Fatalf("Classify() = %v, want KindNoteOn", m.Classify())
	}
	ch, key, vel, ok := m.NoteOn()
	if !ok {
		t.Fatal("NoteOn() ok = false")
	}
	if ch != 0 || key != 60 || vel != 127 {
		t.Errorf("got ch=%d key=%d vel=%d", ch, key, vel)
	}
}

func TestNoteOffRoundTrip(t *testing.T) {
	m := NoteOff(5, 1, 64)
	if m.Classify() != KindNoteOff {
		t.Fatalf("Classify() = %v, want KindNoteOff", m.Classify())
	}
	ch, key, _, ok := m.NoteOff()
	if !ok || ch != 1 || key != 64 {
		t.Errorf("got ch=%d key=%d ok=%v", ch, key, ok)
	}
}

func TestControlChangeRoundTrip(t *testing.T) {
	m := ControlChange(0, 2, 0x40, 100)
	if m.Classify() != KindControlChange {
		t.Fatalf("Classify() = %v, want KindControlChange", m.Classify())
	}
	ch, cc, val, ok := m.ControlChange()
	if !ok || ch != 2 || cc != 0x40 || val != 100 {
		t.Errorf("got ch=%d cc=%d val=%d ok=%v", ch, cc, val, ok)
	}
}

func TestSysExRoundTrip(t *testing.T) {
	payload := []byte{0x41, 0x10, 0x16, 0x12}
	m := SysEx(0, payload)
	if m.Classify() != KindSysEx {
		t.Fatalf("Classify() = %v, want KindSysEx", m.Classify())
	}
	got, ok := m.SysExPayload()
	if !ok || len(got) != len(payload) {
		t.Fatalf("SysExPayload() = %v, ok=%v", got, ok)
	}
}

func TestTimestampPreserved(t *testing.T) {
	m := NoteOn(12345, 0, 60, 100)
	if m.Timestamp != 12345 {
		t.Errorf("Timestamp = %d, want 12345", m.Timestamp)
	}
}
