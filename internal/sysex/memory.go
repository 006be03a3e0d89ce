package sysex

// Memory is the writable logical address space SysEx DT1/RQ1 frames
// target: one flat byte store per region, clamped per-offset to
// maxima pulled from the control ROM, per spec §6: "Writes are
// clamped per-byte to per-offset maximum tables taken from the
// control ROM, and trigger refresh of the affected part(s)."
type Memory struct {
	data  map[Region][]byte
	clamp map[Region][]byte // per-offset maxima within one entry; nil = 0xff (no clamp)
}

// NewMemory builds a Memory with every writable region zero-filled.
// clampTables supplies the per-region, per-entry-offset maximum byte
// values (indexed 0..EntrySize-1); a region absent from clampTables is
// unclamped (every byte may be 0x00..0xff).
func NewMemory(clampTables map[Region][]byte) *Memory {
	m := &Memory{data: make(map[Region][]byte), clamp: clampTables}
	for _, r := range regions {
		size := regionByteSize(r)
		m.data[r.Region] = make([]byte, size)
	}
	return m
}

// WriteResult reports what a DT1 write touched, so the caller (Synth)
// can refresh the right Part(s) per spec §6's "trigger refresh of the
// affected part(s)."
type WriteResult struct {
	Region RegionInfo
	Entry  int
	Offset int
	Length int
}

// Write applies a DT1 write at addr, clamping each byte to the
// region's per-offset maximum table when one is configured. Returns
// an error for an address outside every known region or a write to a
// write-only region (Display/Reset accept writes by design — they
// just never participate in RQ1 reads — so "write-only" here is not
// an error condition, only a read restriction below).
func (m *Memory) Write(addr uint32, data []byte) (WriteResult, error) {
	info, entry, offset, ok := LookupRegion(addr)
	if !ok {
		return WriteResult{}, &DecodeFrameError{Reason: "unknown address"}
	}
	if !info.Writable {
		return WriteResult{}, &DecodeFrameError{Reason: "region not writable"}
	}
	store := m.data[info.Region]
	rel := int(addr - info.Base)
	clampTable := m.clamp[info.Region]
	for i, b := range data {
		pos := rel + i
		if pos >= len(store) {
			break
		}
		if clampTable != nil {
			entryOffset := pos
			if info.EntrySize > 0 {
				entryOffset = pos % info.EntrySize
			}
			if entryOffset < len(clampTable) && b > clampTable[entryOffset] {
				b = clampTable[entryOffset]
			}
		}
		store[pos] = b
	}
	return WriteResult{Region: info, Entry: entry, Offset: offset, Length: len(data)}, nil
}

// Read services an RQ1 request: n bytes starting at addr. Display and
// Reset are write-only per spec §6's table and return an error rather
// than stale/zero bytes.
func (m *Memory) Read(addr uint32, n int) ([]byte, error) {
	info, _, _, ok := LookupRegion(addr)
	if !ok {
		return nil, &DecodeFrameError{Reason: "unknown address"}
	}
	if info.WriteOnly {
		return nil, &DecodeFrameError{Reason: "region is write-only"}
	}
	store := m.data[info.Region]
	rel := int(addr - info.Base)
	if rel < 0 || rel+n > len(store) {
		return nil, &DecodeFrameError{Reason: "read out of range"}
	}
	out := make([]byte, n)
	copy(out, store[rel:rel+n])
	return out, nil
}
