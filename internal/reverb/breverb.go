package reverb

// Generation selects which tap set BReverb uses, per spec §4.6:
// "Delay-line tap set differing per generation (MT-32 old-gen vs
// CM-32L new-gen)".
type Generation int

const (
	OldGen Generation = iota
	NewGen
)

// BReverb is the hardware-accurate model: 8 delay-line taps with
// feedback plus a pair of allpass shaping stages, per spec §4.6.
// Structurally original (grounded on this package's own
// combFilter/allpassFilter primitives, consistent with Freeverb and
// AReverb) since no hardware-accurate tap-length table for either
// generation survived into original_source/.
type BReverb struct {
	gen        Generation
	sampleRate int
	tapsL, tapsR [8]combFilter
	allpassL, allpassR [2]allpassFilter
	wet        float32
	active     bool
}

var breverbOldGenTaps = [8]int{961, 839, 733, 647, 1213, 1097, 1009, 887}
var breverbNewGenTaps = [8]int{947, 827, 719, 631, 1187, 1069, 983, 863}

func NewBReverb(gen Generation) *BReverb { return &BReverb{gen: gen} }

func (r *BReverb) tapTable() [8]int {
	if r.gen == NewGen {
		return breverbNewGenTaps
	}
	return breverbOldGenTaps
}

func (r *BReverb) Open(sampleRate int) {
	r.sampleRate = sampleRate
	scale := float64(sampleRate) / 32000.0
	taps := r.tapTable()
	for i := 0; i < 8; i++ {
		r.tapsL[i] = combFilter{buf: make([]float32, scaledLen(taps[i], scale))}
		r.tapsR[i] = combFilter{buf: make([]float32, scaledLen(taps[i]+13, scale))}
	}
	r.allpassL[0] = allpassFilter{buf: make([]float32, scaledLen(389, scale)), fb: 0.5}
	r.allpassL[1] = allpassFilter{buf: make([]float32, scaledLen(149, scale)), fb: 0.5}
	r.allpassR[0] = allpassFilter{buf: make([]float32, scaledLen(401, scale)), fb: 0.5}
	r.allpassR[1] = allpassFilter{buf: make([]float32, scaledLen(163, scale)), fb: 0.5}
	r.active = true
	r.SetParameters(3, 3)
}

func (r *BReverb) Close() { r.active = false }

func (r *BReverb) Mute() {
	for i := range r.tapsL {
		r.tapsL[i].reset()
		r.tapsR[i].reset()
	}
	for i := range r.allpassL {
		r.allpassL[i].reset()
		r.allpassR[i].reset()
	}
}

func (r *BReverb) SetParameters(time, level int) {
	time = clampInt(time, 0, 7)
	level = clampInt(level, 0, 7)
	fb := 0.5 + 0.06*float32(time)
	for i := range r.tapsL {
		r.tapsL[i].fb = fb
		r.tapsR[i].fb = fb
	}
	r.wet = 0.1 + 0.11*float32(level)
}

func (r *BReverb) IsActive() bool { return r.active }

func (r *BReverb) Process(inL, inR, outL, outR []float32) {
	for i := range inL {
		outL[i], outR[i] = r.processSample(inL[i], inR[i])
	}
}

func (r *BReverb) processSample(l, rr float32) (float32, float32) {
	var wetL, wetR float32
	for i := range r.tapsL {
		wetL += r.tapsL[i].process(l)
		wetR += r.tapsR[i].process(rr)
	}
	wetL *= 0.125
	wetR *= 0.125
	for i := range r.allpassL {
		wetL = r.allpassL[i].process(wetL)
		wetR = r.allpassR[i].process(wetR)
	}
	return l*(1-r.wet) + wetL*r.wet, rr*(1-r.wet) + wetR*r.wet
}
