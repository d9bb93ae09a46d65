package dmf2mod

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
)

// dmfMagic is the 16-byte ASCII literal every DMF file begins with, after
// zlib inflation.
const dmfMagic = ".DelekDefleMask."

// byteStreamReader provides little-endian typed reads, Pascal strings, and
// raw buffers over a forward-only byte source. No seeking is ever required
// downstream; the one place the importer needs to "skip" a previously-seen
// pattern it discards reads instead, since the underlying zlib stream
// cannot be seeked.
type byteStreamReader struct {
	r   io.Reader
	err error
}

func newByteStreamReader(r io.Reader) *byteStreamReader { return &byteStreamReader{r: r} }

var errIO = errors.New("dmf2mod: unexpected end of input")

func (b *byteStreamReader) fail() {
	if b.err == nil {
		b.err = errIO
	}
}

func (b *byteStreamReader) readBytes(n int) []byte {
	if b.err != nil {
		return make([]byte, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(b.r, buf); err != nil {
		b.fail()
	}
	return buf
}

// skip discards n bytes without retaining them, used when a previously
// seen DMF pattern must be skipped.
func (b *byteStreamReader) skip(n int) {
	if b.err != nil {
		return
	}
	if _, err := io.CopyN(io.Discard, b.r, int64(n)); err != nil {
		b.fail()
	}
}

func (b *byteStreamReader) readStr(n int) string { return string(b.readBytes(n)) }

func (b *byteStreamReader) readPStr() string {
	n := b.readUint8()
	if n == 0 {
		return ""
	}
	return b.readStr(int(n))
}

func (b *byteStreamReader) readUint8() uint8 {
	buf := b.readBytes(1)
	return buf[0]
}

func (b *byteStreamReader) readInt8() int8 { return int8(b.readUint8()) }

func (b *byteStreamReader) readUint16LE() uint16 {
	buf := b.readBytes(2)
	return uint16(buf[0]) | uint16(buf[1])<<8
}

func (b *byteStreamReader) readInt16LE() int16 { return int16(b.readUint16LE()) }

func (b *byteStreamReader) readUint32LE() uint32 {
	buf := b.readBytes(4)
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

func (b *byteStreamReader) readInt32LE() int32 { return int32(b.readUint32LE()) }

// inflate wraps the zlib (RFC 1950) stream, the other half of component A.
func inflate(data []byte) (io.Reader, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return zr, nil
}

func systemFromByte(b uint8) (System, bool) {
	sys := System(b)
	if sys > SystemYM2151 || sys == SystemError {
		return SystemError, false
	}
	return sys, true
}

// importDMF is a version-gated structural parse of an inflated DMF byte
// stream into a DMFModule.
func importDMF(m *DMFModule, raw []byte, st *Status) error {
	inflated, err := inflate(raw)
	if err != nil {
		return newError(CategoryImport, CodeFileOpen, "failed to inflate DMF stream: %v", err)
	}
	r := newByteStreamReader(inflated)

	magic := r.readStr(len(dmfMagic))
	if r.err != nil {
		return wrapError(CategoryImport, CodeUnexpectedEOF, r.err)
	}
	if magic != dmfMagic {
		return newError(CategoryImport, CodeBadMagic, "not a DMF file (bad magic %q)", magic)
	}

	version := r.readUint8()
	if version < 17 || version > 27 {
		return newError(CategoryImport, CodeUnsupportedVersion, "unsupported DMF version %d; need 17..27", version)
	}
	m.Version = version

	sysByte := r.readUint8()
	sys, ok := systemFromByte(sysByte)
	if !ok {
		return newError(CategoryImport, CodeUnknownSystem, "unknown DMF system byte 0x%02X", sysByte)
	}
	m.Sys = sys

	readVisualInfo(r, m)
	readModuleInfo(r, m, version)
	if r.err != nil {
		return wrapError(CategoryImport, CodeUnexpectedEOF, r.err)
	}

	numChannels := sys.Channels()
	readPatternMatrix(r, m, numChannels, version)
	readInstruments(r, m, version, sys)
	readWavetables(r, m, version, sys)
	readPatterns(r, m, numChannels, version)
	readPCMSamples(r, m, version)

	if r.err != nil {
		return wrapError(CategoryImport, CodeUnexpectedEOF, r.err)
	}
	return nil
}

func readVisualInfo(r *byteStreamReader, m *DMFModule) {
	m.Title = r.readPStr()
	m.Author = r.readPStr()
	m.HighlightA = r.readUint8()
	m.HighlightB = r.readUint8()
}

func readModuleInfo(r *byteStreamReader, m *DMFModule, version uint8) {
	m.TimeBase = r.readUint8()
	m.TickTime1 = r.readUint8()
	m.TickTime2 = r.readUint8()
	m.FramesMode = r.readUint8()
	m.UsingCustomHz = r.readUint8()
	hzDigits := r.readBytes(3)
	m.CustomHz = decodeHzDigit(hzDigits[0])*100 + decodeHzDigit(hzDigits[1])*10 + decodeHzDigit(hzDigits[2])

	if version >= 24 {
		m.RowsPerPattern = int(r.readUint32LE())
	} else {
		m.RowsPerPattern = int(r.readUint8())
	}
	m.OrdersCount = int(r.readUint8())

	if version <= 19 {
		m.ArpTickSpeed = r.readUint8()
	}
}

// decodeHzDigit reads one ASCII digit of the custom-Hz field, treating
// anything outside '0'-'9' (the blank-field case when no custom Hz is set)
// as 0 rather than underflowing the subtraction.
func decodeHzDigit(b byte) uint32 {
	if b < '0' || b > '9' {
		return 0
	}
	return uint32(b - '0')
}

func readPatternMatrix(r *byteStreamReader, m *DMFModule, numChannels int, version uint8) {
	m.Data.AllocatePatternMatrix(numChannels, m.OrdersCount)
	for c := 0; c < numChannels; c++ {
		for o := 0; o < m.OrdersCount; o++ {
			id := int(r.readUint8())
			m.Data.PatternMatrix[c][o] = id
			if version >= 25 {
				name := r.readPStr()
				if name != "" {
					m.Data.SetPatternName(c, id, name)
				}
			}
		}
	}
}

func readInstruments(r *byteStreamReader, m *DMFModule, version uint8, sys System) {
	total := r.readUint8()
	m.Instruments = make([]DMFInstrument, total)
	for i := range m.Instruments {
		m.Instruments[i] = readInstrument(r, version, sys)
	}
}

func readEnvelope(r *byteStreamReader) ([]int32, int8) {
	size := r.readUint8()
	values := make([]int32, size)
	for i := range values {
		values[i] = r.readInt32LE()
	}
	var loop int8
	if size > 0 {
		loop = r.readInt8()
	}
	return values, loop
}

func readInstrument(r *byteStreamReader, version uint8, sys System) DMFInstrument {
	var inst DMFInstrument
	inst.Name = r.readPStr()
	mode := r.readUint8()
	if mode == 1 {
		inst.Mode = InstrumentFM
		// FM parameter block: header (ALG, FB, LFO, LFO2) plus four
		// operators of twelve byte-sized parameters each. Exact FM field
		// semantics are never decoded - only the byte count, which keeps
		// the rest of the file in sync, matters here.
		r.readBytes(4)
		for op := 0; op < 4; op++ {
			r.readBytes(12)
		}
		return inst
	}

	inst.Mode = InstrumentStandard
	inst.VolEnv, inst.VolEnvLoop = readEnvelope(r)
	inst.ArpEnv, inst.ArpEnvLoop = readEnvelope(r)
	if len(inst.ArpEnv) > 0 {
		inst.ArpMacroMode = r.readUint8()
	}
	inst.DutyNoiseEnv, inst.DutyNoiseEnvLoop = readEnvelope(r)
	inst.WavetableEnv, inst.WavetableEnvLoop = readEnvelope(r)

	switch sys {
	case SystemC64SID8580, SystemC64SID6581:
		r.readBytes(14) // C64 waveform/ADSR/pulse/ring/sync/filter-routing bytes
		r.readBytes(5)  // C64 filter cutoff/resonance/high/low/ch2off bytes
	case SystemGameBoy:
		if version >= 18 {
			inst.GBEnvVolume = r.readUint8()
			inst.GBEnvDirection = r.readUint8()
			inst.GBEnvLength = r.readUint8()
			inst.GBSoundLength = r.readUint8()
		}
	}
	return inst
}

func readWavetables(r *byteStreamReader, m *DMFModule, version uint8, sys System) {
	total := r.readUint8()
	m.Wavetables = make([]DMFWavetable, total)
	bits := sys.wavetableBits()
	mask := uint32(1)<<uint(bits) - 1
	if bits >= 32 {
		mask = 0xFFFFFFFF
	}
	isFDS := sys == SystemNES
	for i := range m.Wavetables {
		size := r.readUint32LE()
		values := make([]uint32, size)
		for j := range values {
			v := r.readUint32LE() & mask
			if isFDS && version <= 25 {
				v <<= 2
			}
			values[j] = v
		}
		m.Wavetables[i] = DMFWavetable{Values: values}
	}
}

// readPatterns decodes the per-channel pattern blocks. The stream
// interleaves one effect-columns count byte per channel immediately before
// that channel's own order/pattern data, so each channel's rows have to be
// read (and buffered) before CORData knows every channel's effect-column
// count and can be allocated. The buffered rows are committed via SetRow
// once AllocateChannels/AllocatePatterns have run.
func readPatterns(r *byteStreamReader, m *DMFModule, numChannels int, version uint8) {
	effectCols := make([]int, numChannels)
	buffered := make([]map[int][]DMFRow, numChannels)

	for c := 0; c < numChannels; c++ {
		cols := int(r.readUint8())
		effectCols[c] = cols
		rowBytes := (8 + 4*cols) * m.RowsPerPattern

		rows := make(map[int][]DMFRow)
		seen := make(map[int]bool)
		for o := 0; o < m.OrdersCount; o++ {
			patternID := m.Data.PatternMatrix[c][o]
			if seen[patternID] {
				r.skip(rowBytes)
				continue
			}
			seen[patternID] = true
			patternRows := make([]DMFRow, m.RowsPerPattern)
			for row := 0; row < m.RowsPerPattern; row++ {
				patternRows[row] = readPatternRow(r, cols)
			}
			rows[patternID] = patternRows
		}
		buffered[c] = rows
	}

	m.Data.AllocateChannels(effectCols)
	m.Data.AllocatePatterns(m.RowsPerPattern)

	for c := 0; c < numChannels; c++ {
		for patternID, patternRows := range buffered[c] {
			for row, dr := range patternRows {
				m.Data.SetRow(c, patternID, row, dr)
			}
		}
	}
}

func readPatternRow(r *byteStreamReader, effectCols int) DMFRow {
	noteVal := r.readInt16LE()
	octaveVal := r.readInt16LE()
	row := DMFRow{Note: decodeDMFNote(noteVal, octaveVal)}
	row.Volume = r.readInt16LE()
	for i := 0; i < effectCols && i < MaxEffectsColumns; i++ {
		code := r.readInt16LE()
		value := r.readInt16LE()
		row.Effects[i] = Effect{Code: mapDMFEffect(code), Value: EffectValue(value)}
	}
	for i := effectCols; i < MaxEffectsColumns; i++ {
		row.Effects[i] = NoEffect
	}
	row.Instrument = r.readInt16LE()
	return row
}

// decodeDMFNote applies Deflemask's pitch/octave decode rules, including the
// historical pitch=12 -> pitch=0,octave+=1 quirk.
func decodeDMFNote(note, octave int16) NoteSlot {
	if note == 0 && octave == 0 {
		return EmptyNoteSlot()
	}
	if note == 100 {
		return OffNoteSlot()
	}
	pitch := NotePitch(note)
	oct := uint8(octave)
	if note == 12 {
		pitch = PitchC
		oct++
	}
	return PitchNoteSlot(Note{Pitch: pitch, Octave: oct})
}

func readPCMSamples(r *byteStreamReader, m *DMFModule, version uint8) {
	total := r.readUint8()
	m.PCMSamples = make([]DMFPCMSample, total)
	for i := range m.PCMSamples {
		m.PCMSamples[i] = readPCMSample(r, version)
	}
}

func readPCMSample(r *byteStreamReader, version uint8) DMFPCMSample {
	var s DMFPCMSample
	size := r.readUint32LE()
	s.Name = r.readPStr()
	s.Rate = r.readUint8()
	s.Pitch = r.readUint8()
	s.Amp = r.readUint8()
	s.Bits = r.readUint8()
	if version >= 27 {
		s.HasCutRange = true
		s.CutStart = r.readUint32LE()
		s.CutEnd = r.readUint32LE()
	}
	s.Data = make([]uint16, size)
	for i := range s.Data {
		s.Data[i] = r.readUint16LE()
	}
	return s
}
