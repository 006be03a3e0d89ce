package analog

import "testing"

func TestDigitalOnlyMixesLinearly(t *testing.T) {
	s := NewStage(DigitalOnly)
	s.SetGains(1.0, 0.5, 0.25)

	nr := []float32{0.1}
	dry := []float32{0.2}
	wet := []float32{0.4}
	out := make([]float32, 2)
	s.Process(nr, nr, dry, dry, wet, wet, out)

	want := float32(0.1*1.0 + 0.2*0.5 + 0.4*0.25)
	if diff := out[0] - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("out[0] = %v, want %v", out[0], want)
	}
	if out[0] != out[1] {
		t.Fatalf("left/right diverged for identical inputs: %v vs %v", out[0], out[1])
	}
}

func TestDigitalOnlyClips(t *testing.T) {
	s := NewStage(DigitalOnly)
	s.SetGains(1, 1, 1)
	nr := []float32{2.0}
	zero := []float32{0}
	out := make([]float32, 2)
	s.Process(nr, nr, zero, zero, zero, zero, out)
	if out[0] > 32767.0/32768.0 {
		t.Fatalf("expected clip, got %v", out[0])
	}
}

func TestGetDACStreamsLength(t *testing.T) {
	cases := []struct {
		mode      Mode
		outFrames int
		want      int
	}{
		{DigitalOnly, 256, 256},
		{Coarse, 256, 256},
		{Accurate, 300, 100},
		{Oversampled, 600, 100},
	}
	for _, c := range cases {
		s := NewStage(c.mode)
		if got := s.GetDACStreamsLength(c.outFrames); got != c.want {
			t.Errorf("%v GetDACStreamsLength(%d) = %d, want %d", c.mode, c.outFrames, got, c.want)
		}
	}
}

func TestOutputRate(t *testing.T) {
	if DigitalOnly.OutputRate() != 32000 {
		t.Error("DigitalOnly should be 32kHz")
	}
	if Accurate.OutputRate() != 48000 {
		t.Error("Accurate should be 48kHz")
	}
	if Oversampled.OutputRate() != 96000 {
		t.Error("Oversampled should be 96kHz")
	}
}

func TestSilenceStaysZero(t *testing.T) {
	s := NewStage(Coarse)
	zero := make([]float32, 256)
	out := make([]float32, 512)
	s.Process(zero, zero, zero, zero, zero, zero, out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want 0", i, v)
		}
	}
}
