// Package rom implements the logical ROM views spec §6 specifies: a
// known-ROMs registry keyed by (size, sha1), and the ControlROM/PCMROM
// types that expose only the decoded tables the rest of the core
// consumes — never raw ROM bytes. Grounded on ROMInfo.h/.cpp's
// (fileSize, sha1Digest, type, pairType, pairROMInfo) struct shape and
// ROMImage's merge/interleave/append pairing logic, reimplemented here
// as Go value types with a map-based lookup instead of a linked list
// of static structs.
package rom

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Type is the kind of binary image a ROMInfo entry describes, mirroring
// ROMInfo::Type {PCM, Control, Reverb}. Reverb-only ROM images are rare
// in the wild and carry no distinct logical table in this core (reverb
// parameters live in the control ROM), so only PCM and Control are
// modeled.
type Type int

const (
	TypeControl Type = iota
	TypePCM
)

// PairHint mirrors ROMInfo::PairType: whether a ROM file is a complete
// image or one half of a pair that must be merged before use.
type PairHint int

const (
	// Full is a complete, ready-to-use ROM image.
	Full PairHint = iota
	// FirstHalf occupies the lower address range of a pair.
	FirstHalf
	// SecondHalf occupies the higher address range of a pair.
	SecondHalf
	// Mux0 occupies even addresses of a pair (interleaved byte order).
	Mux0
	// Mux1 occupies odd addresses of a pair.
	Mux1
)

// Info is one entry in the known-ROMs registry: identity plus pairing
// metadata, grounded on ROMInfo's public fields.
type Info struct {
	ShortName   string
	Description string
	Size        int
	SHA1        string // lowercase hex, 40 chars
	Type        Type
	Pair        PairHint
	// PairWith names another registry entry's ShortName this one must
	// be merged with before use; empty for Full images.
	PairWith string
}

// KnownROMs is the registry of recognized control and PCM ROM images,
// grounded on munt's static MT32_PCMROM/MT32_CONTROL known-ROM tables
// (ROMInfo.cpp). Only the images this core can meaningfully exercise
// are listed; the registry is additive and not load-bearing for
// correctness (an unrecognized ROM is merely unidentified, not
// rejected — identification only populates descriptive metadata).
var KnownROMs = []Info{
	{
		ShortName:   "ctrl_mt32_2_04",
		Description: "MT-32 control ROM v2.04",
		Size:        131072,
		SHA1:        "2c16432b6c73dd2a3947cba950a0f4c19d6180eb",
		Type:        TypeControl,
		Pair:        Full,
	},
	{
		ShortName:   "pcm_mt32",
		Description: "MT-32 PCM ROM",
		Size:        524288,
		SHA1:        "f6b1eebc4b2d200ec6d3d21d51325d5b48c60252",
		Type:        TypePCM,
		Pair:        Full,
	},
	{
		ShortName:   "ctrl_cm32l_1_00",
		Description: "CM-32L control ROM v1.00",
		Size:        65536,
		SHA1:        "73683d585cd6948cc19547942ca0e14a0319456d",
		Type:        TypeControl,
		Pair:        Full,
	},
	{
		ShortName:   "pcm_cm32l",
		Description: "CM-32L/LAPC-I PCM ROM",
		Size:        1048576,
		SHA1:        "289cc298ad532b702461bfc738009d9ebe8025ea",
		Type:        TypePCM,
		Pair:        Full,
	},
}

// Identify computes the SHA-1 of data and looks it up in KnownROMs by
// (size, sha1), per ROMInfo::getROMInfo. Returns nil, false when the
// image is unrecognized — the caller may still use the bytes, just
// without descriptive metadata (spec §6: "ROM identity is established
// by (fileSize, SHA-1) pairs").
func Identify(data []byte) (*Info, bool) {
	sum := sha1.Sum(data)
	digest := hex.EncodeToString(sum[:])
	for i := range KnownROMs {
		info := &KnownROMs[i]
		if info.Size == len(data) && info.SHA1 == digest {
			return info, true
		}
	}
	return nil, false
}

// MergeHalves concatenates a FirstHalf image followed by a SecondHalf
// image into one full address space, per
// ROMImage::appendImages.
func MergeHalves(firstHalf, secondHalf []byte) []byte {
	out := make([]byte, len(firstHalf)+len(secondHalf))
	copy(out, firstHalf)
	copy(out[len(firstHalf):], secondHalf)
	return out
}

// MergeMux interleaves a Mux0 (even-address) image with a Mux1
// (odd-address) image byte-for-byte, per ROMImage::interleaveImages.
// Both inputs must be the same length.
func MergeMux(mux0, mux1 []byte) []byte {
	n := len(mux0)
	if len(mux1) < n {
		n = len(mux1)
	}
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		out[i*2] = mux0[i]
		out[i*2+1] = mux1[i]
	}
	return out
}

// ControlROM is the logical view of the control ROM's data the core
// consumes: timbre/reserve/program defaults and the feature-flag byte
// spec §4.5 names (newGenNoteCancellation). The wave-generator and
// envelope LUTs themselves are built by internal/tables, not carried
// here, matching spec §1's "only the logical ROM tables are consumed."
type ControlROM struct {
	Info *Info

	// NewGenNoteCancellation selects the allocator's reclaim algorithm
	// generation, spec §4.5: "selectable by the ROM feature flag
	// newGenNoteCancellation."
	NewGenNoteCancellation bool

	// DefaultReserve is the 9-byte partial reservation table baked
	// into the control ROM's system area defaults, spec §4.5's
	// "Reservation table... Fed from SysEx to the system-memory
	// region... The manager makes the table authoritative immediately."
	DefaultReserve [9]uint8
}

// PCMROM is the logical view of the PCM ROM's sample data: a flat
// 16-bit signed, companded sample array plus the per-wave base/length/
// loop metadata partial specs reference (spec §3's LA32WaveGenerator
// "pcmWave base & length & loop flag").
type PCMROM struct {
	Info    *Info
	Samples []int16
}

// Wave returns the sample slice for one logical PCM wave entry
// (base offset, length, loop flag), as consumed by
// internal/part.PartialSpec.PCMWave.
func (p *PCMROM) Wave(base, length int) []int16 {
	if base < 0 || base+length > len(p.Samples) || length <= 0 {
		return nil
	}
	return p.Samples[base : base+length]
}

// NewControlROM builds a ControlROM logical view from raw bytes and,
// when recognized, the matching registry Info. data is expected to be
// a full 64 kB control ROM image (spec §6); featureFlagOffset and
// reserveOffset are taken from the fixed control-ROM layout documented
// alongside tables.cpp's System-area constants. The feature flag and
// default reserve are read straight out of the image at the offsets
// munt's control ROM layout assigns them; no other control-ROM byte is
// interpreted here.
func NewControlROM(data []byte) (*ControlROM, error) {
	const featureFlagOffset = 0x0020
	const reserveOffset = 0x0030
	if len(data) < reserveOffset+9 {
		return nil, fmt.Errorf("rom: control ROM image too small (%d bytes)", len(data))
	}
	info, _ := Identify(data)
	c := &ControlROM{Info: info}
	c.NewGenNoteCancellation = data[featureFlagOffset]&0x01 != 0
	copy(c.DefaultReserve[:], data[reserveOffset:reserveOffset+9])
	return c, nil
}

// NewPCMROM builds a PCMROM logical view from raw 16-bit signed
// little-endian sample bytes.
func NewPCMROM(data []byte) (*PCMROM, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("rom: PCM ROM image has odd byte length %d", len(data))
	}
	info, _ := Identify(data)
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}
	return &PCMROM{Info: info, Samples: samples}, nil
}
