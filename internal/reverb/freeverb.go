package reverb

// Freeverb is the classic Schroeder topology: 8 combs feeding 4
// series allpasses, run independently per channel. Grounded directly
// on the teacher's internal/effects.Reverb (same comb/allpass types,
// same feedback-through-delay-line shape), generalized here to stereo
// and to spec's 0..7 time/level parameter pair instead of a
// continuous roomSize/feedback/wet constructor.
type Freeverb struct {
	sampleRate int
	combsL     [8]combFilter
	combsR     [8]combFilter
	allpassL   [4]allpassFilter
	allpassR   [4]allpassFilter
	wet        float32
	active     bool
}

var freeverbCombTuningL = [8]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
var freeverbCombTuningR = [8]int{1139, 1211, 1300, 1379, 1445, 1514, 1580, 1640}
var freeverbAllpassTuningL = [4]int{556, 441, 341, 225}
var freeverbAllpassTuningR = [4]int{579, 464, 364, 248}

func NewFreeverb() *Freeverb { return &Freeverb{} }

// Open allocates delay lines scaled to sampleRate (the tuning tables
// above are the canonical Freeverb lengths at 44100 Hz).
func (r *Freeverb) Open(sampleRate int) {
	r.sampleRate = sampleRate
	scale := float64(sampleRate) / 44100.0
	for i := 0; i < 8; i++ {
		r.combsL[i] = combFilter{buf: make([]float32, scaledLen(freeverbCombTuningL[i], scale))}
		r.combsR[i] = combFilter{buf: make([]float32, scaledLen(freeverbCombTuningR[i], scale))}
	}
	for i := 0; i < 4; i++ {
		r.allpassL[i] = allpassFilter{buf: make([]float32, scaledLen(freeverbAllpassTuningL[i], scale)), fb: 0.5}
		r.allpassR[i] = allpassFilter{buf: make([]float32, scaledLen(freeverbAllpassTuningR[i], scale)), fb: 0.5}
	}
	r.wet = 0.3
	r.active = true
	r.SetParameters(3, 3)
}

func scaledLen(base int, scale float64) int {
	n := int(float64(base) * scale)
	if n < 1 {
		n = 1
	}
	return n
}

func (r *Freeverb) Close() { r.active = false }

func (r *Freeverb) Mute() {
	for i := range r.combsL {
		r.combsL[i].reset()
		r.combsR[i].reset()
	}
	for i := range r.allpassL {
		r.allpassL[i].reset()
		r.allpassR[i].reset()
	}
}

// SetParameters maps spec's 0..7 time/level pair onto comb feedback
// (room size / decay time) and wet mix (level).
func (r *Freeverb) SetParameters(time, level int) {
	time = clampInt(time, 0, 7)
	level = clampInt(level, 0, 7)
	fb := 0.6 + 0.055*float32(time) // 0.6..0.985
	for i := range r.combsL {
		r.combsL[i].fb = fb
		r.combsR[i].fb = fb
	}
	r.wet = 0.15 + 0.1*float32(level)
}

func (r *Freeverb) IsActive() bool { return r.active }

func (r *Freeverb) Process(inL, inR, outL, outR []float32) {
	n := len(inL)
	for i := 0; i < n; i++ {
		outL[i], outR[i] = r.processSample(inL[i], inR[i])
	}
}

func (r *Freeverb) processSample(l, rr float32) (float32, float32) {
	var wetL, wetR float32
	for i := range r.combsL {
		wetL += r.combsL[i].process(l)
		wetR += r.combsR[i].process(rr)
	}
	wetL *= 0.125
	wetR *= 0.125
	for i := range r.allpassL {
		wetL = r.allpassL[i].process(wetL)
		wetR = r.allpassR[i].process(wetR)
	}
	return l*(1-r.wet) + wetL*r.wet, rr*(1-r.wet) + wetR*r.wet
}
