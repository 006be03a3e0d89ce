package rom

import "testing"

func TestIdentifyUnknown(t *testing.T) {
	data := make([]byte, 100)
	if _, ok := Identify(data); ok {
		t.Fatal("expected unknown ROM to not be identified")
	}
}

func TestMergeHalves(t *testing.T) {
	low := []byte{1, 2, 3}
	high := []byte{4, 5, 6}
	got := MergeHalves(low, high)
	want := []byte{1, 2, 3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMergeMux(t *testing.T) {
	even := []byte{1, 3}
	odd := []byte{2, 4}
	got := MergeMux(even, odd)
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNewControlROMRejectsShortImage(t *testing.T) {
	if _, err := NewControlROM(make([]byte, 10)); err == nil {
		t.Fatal("expected error for undersized control ROM")
	}
}

func TestNewControlROMReadsFlagsAndReserve(t *testing.T) {
	data := make([]byte, 65536)
	data[0x0020] = 0x01
	for i := 0; i < 9; i++ {
		data[0x0030+i] = 0 // overwritten below
	}
	reserve := [9]uint8{4, 4, 4, 4, 4, 4, 4, 4, 0}
	copy(data[0x0030:], reserve[:])
	c, err := NewControlROM(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.NewGenNoteCancellation {
		t.Error("expected NewGenNoteCancellation true")
	}
	if c.DefaultReserve != reserve {
		t.Errorf("DefaultReserve = %v, want %v", c.DefaultReserve, reserve)
	}
}

func TestNewPCMROMDecodesLittleEndian(t *testing.T) {
	data := []byte{0x00, 0x00, 0xff, 0x7f, 0x00, 0x80}
	p, err := NewPCMROM(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int16{0, 32767, -32768}
	if len(p.Samples) != len(want) {
		t.Fatalf("len = %d, want %d", len(p.Samples), len(want))
	}
	for i := range want {
		if p.Samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, p.Samples[i], want[i])
		}
	}
}

func TestPCMROMWaveBoundsChecked(t *testing.T) {
	p := &PCMROM{Samples: make([]int16, 10)}
	if w := p.Wave(5, 10); w != nil {
		t.Error("expected nil for out-of-range wave")
	}
	if w := p.Wave(2, 3); len(w) != 3 {
		t.Errorf("expected len 3, got %d", len(w))
	}
}
