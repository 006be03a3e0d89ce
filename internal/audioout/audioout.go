// Package audioout adapts a render-side sample source to an ebiten
// audio context, so a headless CLI (or any host) can actually hear the
// synth. Adapted directly from the teacher's internal/audio/stream.go
// (same StreamReader/Player split, same shared-context-by-sample-rate
// guard), generalized from the teacher's mono-engine Process contract
// to Synth.Render's stereo frame contract. This is the one audio
// device I/O surface the core's domain stack exercises (spec §3's
// ebiten/oto wiring); actual device output stays ambient plumbing, not
// a core feature, per SPEC_FULL's Non-goals note.
package audioout

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Renderer is anything that can fill a stereo float32 buffer on
// demand, the role Synth.Render plays for this package.
type Renderer interface {
	Render(dst []float32)
}

// StreamReader adapts a Renderer to io.Reader for ebiten's
// NewPlayerF32, pulling interleaved stereo float32 samples one Read
// call at a time, exactly like the teacher's StreamReader over
// SampleSource.
type StreamReader struct {
	mu   sync.Mutex
	src  Renderer
	buf  []float32
}

// NewStreamReader wraps a Renderer for use as an ebiten audio source.
func NewStreamReader(src Renderer) *StreamReader {
	return &StreamReader{src: src}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.src.Render(r.buf)
	for i := 0; i < need; i++ {
		u := math.Float32bits(r.buf[i])
		binary.LittleEndian.PutUint32(p[i*4:], u)
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

// Player plays a Renderer's output through the shared ebiten audio
// context, mirroring the teacher's audio.Player.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextErr  error
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextErr != nil {
		return nil, contextErr
	}
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audioout: context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// NewPlayer builds a Player that pulls from src at sampleRate. Only
// one sample rate may be used per process, matching the teacher's
// single shared ebiten context guard — the analog post-stage's Mode
// determines sampleRate (32/48/96 kHz per spec §4.7).
func NewPlayer(sampleRate int, src Renderer) (*Player, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(src)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()            { p.player.Play() }
func (p *Player) Pause()           { p.player.Pause() }
func (p *Player) IsPlaying() bool  { return p.player.IsPlaying() }
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}
