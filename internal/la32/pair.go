package la32

import "github.com/la32core/synth/internal/tables"

// PairType selects which half of a PartialPair an operation targets.
type PairType int

const (
	Master PairType = iota
	Slave
)

// PartialPair holds the two wave generators of a structure pair (see
// spec §3 "structure pair" and §4.2). ringModulated/mixed select one
// of the four output modes spec's table 4.2 lists.
type PartialPair struct {
	master WaveGenerator
	slave  WaveGenerator

	ringModulated bool
	mixed         bool
}

// NewPartialPair creates a pair with both generators bound to the
// shared table set.
func NewPartialPair(t *tables.Tables) *PartialPair {
	return &PartialPair{
		master: WaveGenerator{tables: t},
		slave:  WaveGenerator{tables: t},
	}
}

// Init configures the structure mode. ringModulated selects whether
// the slave modulates the master in the log domain; mixed (only
// meaningful when ringModulated) additionally adds the master's own
// unmodulated output.
func (p *PartialPair) Init(ringModulated, mixed bool) {
	p.ringModulated = ringModulated
	p.mixed = mixed
}

func (p *PartialPair) wg(which PairType) *WaveGenerator {
	if which == Master {
		return &p.master
	}
	return &p.slave
}

// InitSynth initializes one half of the pair for oscillator mode.
func (p *PartialPair) InitSynth(which PairType, sawtoothWaveform bool, pulseWidth, resonance uint8) {
	p.wg(which).InitSynth(sawtoothWaveform, pulseWidth, resonance)
}

// InitPCM initializes one half of the pair for PCM playback. Per spec
// §4.2, a ring-modulating slave never interpolates its own PCM samples
// — its interpolator is borrowed by the ring-mod multiplier instead.
func (p *PartialPair) InitPCM(which PairType, wave []int16, looped bool) {
	interpolated := true
	if which == Slave {
		interpolated = !p.ringModulated
	}
	p.wg(which).InitPCM(wave, looped, interpolated)
}

// GenerateNextSample advances one half of the pair by one tick.
func (p *PartialPair) GenerateNextSample(which PairType, amp uint32, pitch uint16, cutoff uint32) {
	p.wg(which).GenerateNextSample(amp, pitch, cutoff)
}

func (p *PartialPair) IsActive(which PairType) bool { return p.wg(which).IsActive() }
func (p *PartialPair) Deactivate(which PairType)    { p.wg(which).Deactivate() }

// unlogAndMixWGOutput converts wg's current output to a linear sample,
// optionally ring-modulating it first by a LogSample from the other
// half, and linearly interpolates between the two PCM halves when wg
// is a PCM generator.
func unlogAndMixWGOutput(t *tables.Tables, wg *WaveGenerator, ringModulating *LogSample) int16 {
	if !wg.IsActive() || (ringModulating != nil && ringModulating.LogValue == Silence.LogValue) {
		return 0
	}
	first := wg.GetOutputLogSample(true)
	second := wg.GetOutputLogSample(false)
	if ringModulating != nil {
		first = AddLogSamples(first, *ringModulating)
		second = AddLogSamples(second, *ringModulating)
	}
	firstSample := Unlog(t, first)
	secondSample := Unlog(t, second)
	if wg.IsPCMWave() {
		factor := int32(wg.PCMInterpolationFactor())
		return int16(int32(firstSample) + ((int32(secondSample-firstSample) * factor) >> 7))
	}
	return firstSample + secondSample
}

// NextOutSample mixes the pair down to one linear 16-bit sample per
// spec's structure-mode table: plain sum when not ring-modulated;
// ring product (optionally plus the master's own output, when mixed)
// otherwise.
func (p *PartialPair) NextOutSample(t *tables.Tables) int16 {
	return MixPair(t, &p.master, &p.slave, p.ringModulated, p.mixed)
}

// MixSingle converts one wave generator's current output to a linear
// sample on its own, with no ring modulation or pair partner.
func MixSingle(t *tables.Tables, wg *WaveGenerator) int16 {
	return unlogAndMixWGOutput(t, wg, nil)
}

// MixPair mixes two independently-owned wave generators down to one
// linear 16-bit sample, per spec §4.2's structure-mode table. Unlike
// PartialPair.NextOutSample this takes generator pointers directly, so
// two separately pool-allocated Partials can share the mixdown logic
// without either owning the other's generator.
func MixPair(t *tables.Tables, master, slave *WaveGenerator, ringModulated, mixed bool) int16 {
	if ringModulated {
		slaveFirst := slave.GetOutputLogSample(true)
		slaveSecond := slave.GetOutputLogSample(false)
		sample := unlogAndMixWGOutput(t, master, &slaveFirst)
		if !slave.IsPCMWave() {
			sample += unlogAndMixWGOutput(t, master, &slaveSecond)
		}
		if mixed {
			sample += unlogAndMixWGOutput(t, master, nil)
		}
		return sample
	}
	return unlogAndMixWGOutput(t, master, nil) + unlogAndMixWGOutput(t, slave, nil)
}
