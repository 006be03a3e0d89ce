package reverb

// AReverb is the "synthetic" model: a two-pole entrance LPF feeding
// four series allpass sections, then a 5-tap delay line with a
// damped, cross-linked comb per spec §4.6. Structurally original
// (neither the teacher nor the rest of the pack carries a matching
// model) but built from the same combFilter/allpassFilter/onePoleLPF
// primitives as Freeverb, so its texture matches the rest of this
// package rather than inventing a new idiom.
type AReverb struct {
	sampleRate int
	entranceL1, entranceL2 onePoleLPF
	entranceR1, entranceR2 onePoleLPF
	allpassL               [4]allpassFilter
	allpassR               [4]allpassFilter
	tapsL, tapsR           [5]combFilter
	wet                    float32
	active                 bool
}

var aReverbAllpassTuning = [4]int{317, 211, 158, 127}
var aReverbTapTuning = [5]int{971, 811, 683, 541, 433}

func NewAReverb() *AReverb { return &AReverb{} }

func (r *AReverb) Open(sampleRate int) {
	r.sampleRate = sampleRate
	scale := float64(sampleRate) / 32000.0
	for i := 0; i < 4; i++ {
		r.allpassL[i] = allpassFilter{buf: make([]float32, scaledLen(aReverbAllpassTuning[i], scale)), fb: 0.6}
		r.allpassR[i] = allpassFilter{buf: make([]float32, scaledLen(aReverbAllpassTuning[i]+17, scale)), fb: 0.6}
	}
	for i := 0; i < 5; i++ {
		r.tapsL[i] = combFilter{buf: make([]float32, scaledLen(aReverbTapTuning[i], scale))}
		r.tapsR[i] = combFilter{buf: make([]float32, scaledLen(aReverbTapTuning[i]+23, scale))}
	}
	r.entranceL1.a, r.entranceL2.a = 0.35, 0.35
	r.entranceR1.a, r.entranceR2.a = 0.35, 0.35
	r.active = true
	r.SetParameters(3, 3)
}

func (r *AReverb) Close() { r.active = false }

func (r *AReverb) Mute() {
	r.entranceL1 = onePoleLPF{a: r.entranceL1.a}
	r.entranceL2 = onePoleLPF{a: r.entranceL2.a}
	r.entranceR1 = onePoleLPF{a: r.entranceR1.a}
	r.entranceR2 = onePoleLPF{a: r.entranceR2.a}
	for i := range r.allpassL {
		r.allpassL[i].reset()
		r.allpassR[i].reset()
	}
	for i := range r.tapsL {
		r.tapsL[i].reset()
		r.tapsR[i].reset()
	}
}

func (r *AReverb) SetParameters(time, level int) {
	time = clampInt(time, 0, 7)
	level = clampInt(level, 0, 7)
	fb := 0.55 + 0.05*float32(time)
	for i := range r.tapsL {
		r.tapsL[i].fb = fb
		r.tapsR[i].fb = fb
	}
	r.wet = 0.15 + 0.1*float32(level)
}

func (r *AReverb) IsActive() bool { return r.active }

func (r *AReverb) Process(inL, inR, outL, outR []float32) {
	for i := range inL {
		outL[i], outR[i] = r.processSample(inL[i], inR[i])
	}
}

func (r *AReverb) processSample(l, rr float32) (float32, float32) {
	dl := r.entranceL2.process(r.entranceL1.process(l))
	dr := r.entranceR2.process(r.entranceR1.process(rr))

	for i := range r.allpassL {
		dl = r.allpassL[i].process(dl)
		dr = r.allpassR[i].process(dr)
	}

	// cross-linked comb: each channel's taps are fed partly from the
	// other channel's entrance signal, widening the stereo image.
	var tapL, tapR float32
	for i := range r.tapsL {
		tapL += r.tapsL[i].process(dl*0.7 + dr*0.3)
		tapR += r.tapsR[i].process(dr*0.7 + dl*0.3)
	}
	tapL *= 0.2
	tapR *= 0.2

	return l*(1-r.wet) + tapL*r.wet, rr*(1-r.wet) + tapR*r.wet
}
