// Command synthplay is a minimal headless demo host: it opens a Synth,
// loads one built-in timbre onto part 0, plays a short arpeggio over
// the rhythm of a flag-selectable tempo, and streams the result out
// through the system's audio device via internal/audioout. Grounded on
// the teacher's cmd/play_mml (same flag-driven main, same
// channel-of-events watch loop, same "block on a rune from stdin or a
// duration" shutdown).
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/la32core/synth"
	"github.com/la32core/synth/internal/analog"
	"github.com/la32core/synth/internal/audioout"
	"github.com/la32core/synth/internal/envelope"
	"github.com/la32core/synth/internal/midimsg"
	"github.com/la32core/synth/internal/part"
)

func main() {
	var (
		mode       = flag.String("mode", "digital", "analog post-stage: digital|coarse|accurate|oversampled")
		tempoMS    = flag.Int("tempo-ms", 250, "milliseconds between arpeggio notes")
		reverbMode = flag.Int("reverb-mode", 2, "reverb mode byte written to the System region (selects breverb/areverb/freeverb mod 3)")
	)
	flag.Parse()

	analogMode, err := parseAnalogMode(*mode)
	if err != nil {
		log.Fatal(err)
	}

	listener := &logListener{}
	s, err := synth.Open(
		synth.WithAnalogMode(analogMode),
		synth.WithListener(listener),
	)
	if err != nil {
		log.Fatalf("synth: open: %v", err)
	}
	defer s.Close()

	s.Part(0).SetProgram(demoTimbre())
	s.SetPatchBank(0, demoTimbre())

	player, err := audioout.NewPlayer(s.OutputRate(), s)
	if err != nil {
		log.Fatalf("audioout: %v", err)
	}
	player.Play()
	defer player.Stop()

	writeReverbSystem(s, *reverbMode)

	scale := []uint8{60, 64, 67, 72, 67, 64}
	tempo := time.Duration(*tempoMS) * time.Millisecond
	for i, key := range scale {
		t := uint64(i) * uint64(tempo.Seconds()*float64(s.OutputRate()))
		s.EnqueueMIDI(midimsg.NoteOn(t, 0, key, 100))
		s.EnqueueMIDI(midimsg.NoteOff(t+uint64(tempo.Seconds()*float64(s.OutputRate()))/2, 0, key))
	}

	time.Sleep(tempo * time.Duration(len(scale)+2))
}

func parseAnalogMode(name string) (analog.Mode, error) {
	switch name {
	case "digital":
		return analog.DigitalOnly, nil
	case "coarse":
		return analog.Coarse, nil
	case "accurate":
		return analog.Accurate, nil
	case "oversampled":
		return analog.Oversampled, nil
	default:
		return 0, fmt.Errorf("invalid -mode %q (expected digital|coarse|accurate|oversampled)", name)
	}
}

// writeReverbSystem is a stand-in for a real SysEx-sending host: it
// pokes the reverb-mode byte directly onto the queue as a decoded
// SysEx message, the same path a MIDI input device's bytes would take
// once decoded.
func writeReverbSystem(s *synth.Synth, reverbMode int) {
	data := make([]byte, 23)
	data[1] = byte(reverbMode)
	data[2] = 4
	data[3] = 5
	payload := buildSystemDT1(data)
	s.EnqueueMIDI(midimsg.SysEx(0, payload))
}

func buildSystemDT1(data []byte) []byte {
	const systemBase = 0x100000
	addr := [3]byte{
		byte((systemBase >> 16) & 0x7f),
		byte((systemBase >> 8) & 0x7f),
		byte(systemBase & 0x7f),
	}
	body := []byte{0x41, 0x10, 0x16, 0x12, addr[0], addr[1], addr[2]}
	body = append(body, data...)
	var sum byte
	for _, b := range addr {
		sum += b
	}
	for _, b := range data {
		sum += b
	}
	sum &= 0x7f
	if sum != 0 {
		sum = 0x80 - sum
	}
	return append(body, sum)
}

// demoTimbre builds a single-partial sawtooth voice with a modest
// filter sweep, standing in for a timbre a real SysEx Patches/Timbres
// write would otherwise assemble (see DESIGN.md on why that decode
// path isn't modeled).
func demoTimbre() *part.Timbre {
	tm := &part.Timbre{}
	tm.Pairs[0] = part.PairSpec{
		Used: true,
		A: part.PartialSpec{
			SawtoothWaveform: true,
			PulseWidth:       128,
			Amp: envelope.AmpParams{
				Level:    90,
				EnvTime:  [5]uint8{0, 10, 15, 20, 40},
				EnvLevel: [4]uint8{100, 85, 70, 50},
			},
			Filter: envelope.FilterParams{
				Cutoff:    160,
				Resonance: 10,
				Keyfollow: 4,
				BiasLevel: 7,
				EnvDepth:  30,
				EnvTime:   [5]uint8{0, 10, 15, 20, 40},
				EnvLevel:  [4]uint8{100, 85, 70, 50},
			},
			Pitch:       envelope.PitchParams{PitchCoarse: 24, PitchFine: 50, EnvTime: [5]uint8{0, 10, 15, 20, 40}},
			PitchTiming: envelope.FilterTimeParams{EnvTime: [5]uint8{0, 10, 15, 20, 40}},
		},
	}
	return tm
}

type logListener struct{}

func (logListener) OnEvent(e synth.Event) {
	log.Printf("event kind=%d message=%q needed=%d free=%d", e.Kind, e.Message, e.PartialsNeeded, e.PartialsFree)
}
