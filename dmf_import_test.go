package dmf2mod

import (
	"bytes"
	"compress/zlib"
	"testing"
)

// dmfBuilder assembles a byte stream in DMF file order and can encode it as
// a real zlib-compressed DMF payload, the same shape importDMF expects.
type dmfBuilder struct {
	buf bytes.Buffer
}

func (b *dmfBuilder) u8(v uint8)  { b.buf.WriteByte(v) }
func (b *dmfBuilder) i8(v int8)   { b.u8(uint8(v)) }
func (b *dmfBuilder) bytes(v ...byte) { b.buf.Write(v) }

func (b *dmfBuilder) u16(v uint16) { b.bytes(byte(v), byte(v>>8)) }
func (b *dmfBuilder) i16(v int16)  { b.u16(uint16(v)) }
func (b *dmfBuilder) u32(v uint32) { b.bytes(byte(v), byte(v>>8), byte(v>>16), byte(v>>24)) }

func (b *dmfBuilder) pstr(s string) {
	b.u8(uint8(len(s)))
	b.buf.WriteString(s)
}

func (b *dmfBuilder) compress(t *testing.T) []byte {
	t.Helper()
	var out bytes.Buffer
	w := zlib.NewWriter(&out)
	if _, err := w.Write(b.buf.Bytes()); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}
	return out.Bytes()
}

// buildMinimalGameBoyDMF assembles a version-24 Game Boy module with 2
// orders per channel, both pointing at pattern id 0 on every channel - the
// shared-pattern-id scenario a dedup-aware importer must collapse into one
// backing row buffer per channel.
func buildMinimalGameBoyDMF(t *testing.T) []byte {
	t.Helper()
	const (
		rowsPerPattern = 2
		ordersCount    = 2
		numChannels    = 4 // SystemGameBoy
	)

	var b dmfBuilder
	b.buf.WriteString(dmfMagic)
	b.u8(24)               // version
	b.u8(uint8(SystemGameBoy)) // system

	// Visual info.
	b.pstr("Test Song")
	b.pstr("Test Author")
	b.u8(4) // highlight A
	b.u8(16) // highlight B

	// Module info (version >= 24: uint32LE rows per pattern).
	b.u8(24)            // time base
	b.u8(3)              // tick time 1
	b.u8(6)              // tick time 2
	b.u8(0)              // frames mode
	b.u8(0)              // using custom Hz
	b.bytes('0', '6', '0') // custom Hz digits (unused since UsingCustomHz == 0)
	b.u32(rowsPerPattern)
	b.u8(ordersCount)

	// Pattern matrix: every channel uses pattern id 0 for both orders, so
	// the importer must only keep one row buffer per channel despite two
	// orders each referencing it (version < 25, so no pattern name strings).
	for c := 0; c < numChannels; c++ {
		for o := 0; o < ordersCount; o++ {
			b.u8(0)
		}
	}

	// Instruments: one standard instrument, no envelopes, Game Boy fields
	// present (version >= 18).
	b.u8(1)
	b.pstr("Square")
	b.u8(0) // mode = standard
	b.u8(0) // vol env size 0
	b.u8(0) // arp env size 0
	b.u8(0) // duty/noise env size 0
	b.u8(0) // wavetable env size 0
	b.u8(15) // GB env volume
	b.u8(1)  // GB env direction
	b.u8(3)  // GB env length
	b.u8(0)  // GB sound length

	// Wavetables: none.
	b.u8(0)

	// Patterns: the stream interleaves one effect-columns count byte per
	// channel immediately before that channel's own order/pattern blocks -
	// every order on every channel names pattern id 0, so the reader's
	// per-channel "seen" set only keeps the first (order 0) occurrence's
	// rows; order 1's bytes are still present on the stream (matching how
	// a real DMF file lays out one row block per order reference) but are
	// read-and-discarded via skip rather than stored a second time.
	for c := 0; c < numChannels; c++ {
		b.u8(1) // this channel's effect column count

		if c == 0 {
			// Channel 0, order 0 (kept): two distinct rows, one effect
			// column with an arpeggio effect on row 0.
			b.i16(0)    // note = C
			b.i16(4)    // octave
			b.i16(64)   // volume
			b.i16(0x0)  // effect code 0 -> EffectArp
			b.i16(0x37) // arp value: +3/+7 semitones
			b.i16(0)    // instrument index

			b.i16(100) // note = note-off
			b.i16(0)
			b.i16(-1) // volume unset
			b.i16(0x0)
			b.i16(-1)
			b.i16(-1)
		} else {
			// Channels 1-3, order 0 (kept): both rows empty, no effect.
			for row := 0; row < rowsPerPattern; row++ {
				b.i16(0)  // note
				b.i16(0)  // octave
				b.i16(-1) // volume
				b.i16(0)  // effect code 0 -> EffectArp
				b.i16(-1) // effect value unset
				b.i16(-1)
			}
		}

		// Order 1 (discarded): distinct, deliberately bogus content so the
		// test fails loudly if it ever leaks into the stored pattern.
		for row := 0; row < rowsPerPattern; row++ {
			b.i16(11) // note
			b.i16(6)  // octave
			b.i16(20) // volume
			b.i16(0x9) // effect code -> EffectSpeedA
			b.i16(99)
			b.i16(5)
		}
	}

	// PCM samples: none.
	b.u8(0)

	return b.compress(t)
}

func TestImportDMFMinimalGameBoyModule(t *testing.T) {
	raw := buildMinimalGameBoyDMF(t)

	m := NewDMFModule()
	st := &Status{}
	if err := importDMF(m, raw, st); err != nil {
		t.Fatalf("importDMF: %v (warnings: %v)", err, st.Warnings)
	}

	if m.Version != 24 {
		t.Fatalf("Version = %d, want 24", m.Version)
	}
	if m.Sys != SystemGameBoy {
		t.Fatalf("Sys = %v, want Game Boy", m.Sys)
	}
	if m.Title != "Test Song" || m.Author != "Test Author" {
		t.Fatalf("Title/Author = %q/%q, want %q/%q", m.Title, m.Author, "Test Song", "Test Author")
	}
	if m.RowsPerPattern != 2 || m.OrdersCount != 2 {
		t.Fatalf("RowsPerPattern/OrdersCount = %d/%d, want 2/2", m.RowsPerPattern, m.OrdersCount)
	}
	if len(m.Instruments) != 1 || m.Instruments[0].Mode != InstrumentStandard {
		t.Fatalf("Instruments = %+v, want one standard instrument", m.Instruments)
	}

	row0 := m.Data.RowAt(0, 0, 0)
	if !row0.Note.HasPitch() || row0.Note.Note != (Note{Pitch: PitchC, Octave: 4}) {
		t.Fatalf("channel 0 row 0 note = %+v, want C-4", row0.Note)
	}
	if row0.Effects[0].Code != EffectArp || row0.Effects[0].Value != 0x37 {
		t.Fatalf("channel 0 row 0 effect = %+v, want arp 0x37", row0.Effects[0])
	}

	row1 := m.Data.RowAt(0, 0, 1)
	if !row1.Note.IsOff() {
		t.Fatalf("channel 0 row 1 note = %+v, want note-off", row1.Note)
	}

	// Both orders on channel 0 point at the same pattern id; only one
	// pattern's worth of rows should have been allocated, and order 1 must
	// read back identically to order 0 since they share a backing buffer.
	if got := m.Data.NumPatterns(0); got != 1 {
		t.Fatalf("NumPatterns(0) = %d, want 1 (both orders share pattern 0)", got)
	}
	order1Row0 := m.Data.RowAt(0, 1, 0)
	if order1Row0 != row0 {
		t.Fatalf("order 1 row 0 = %+v, want it identical to order 0 row 0 (shared pattern)", order1Row0)
	}
}

// TestImportDMFSharedPatternIsOneBackingBuffer is the dedup property: when
// two orders on a channel name the same pattern id, importDMF must only
// populate one row buffer, reachable and mutually consistent from both
// orders, rather than decoding (and re-allocating) the bytes twice.
func TestImportDMFSharedPatternIsOneBackingBuffer(t *testing.T) {
	raw := buildMinimalGameBoyDMF(t)
	m := NewDMFModule()
	st := &Status{}
	if err := importDMF(m, raw, st); err != nil {
		t.Fatalf("importDMF: %v", err)
	}

	for c := 0; c < 4; c++ {
		if got := m.Data.NumPatterns(c); got != 1 {
			t.Fatalf("channel %d: NumPatterns = %d, want 1", c, got)
		}
		a := m.Data.RowAt(c, 0, 0)
		b := m.Data.RowAt(c, 1, 0)
		if a != b {
			t.Fatalf("channel %d: order 0 row 0 (%+v) != order 1 row 0 (%+v), orders sharing a pattern id must read back identically", c, a, b)
		}
	}
}

func TestImportDMFRejectsBadMagic(t *testing.T) {
	var b dmfBuilder
	b.buf.WriteString("not a dmf file!!")
	raw := b.compress(t)

	m := NewDMFModule()
	st := &Status{}
	err := importDMF(m, raw, st)
	if err == nil {
		t.Fatalf("importDMF with bad magic: want error, got nil")
	}
}

func TestImportDMFRejectsUnsupportedVersion(t *testing.T) {
	var b dmfBuilder
	b.buf.WriteString(dmfMagic)
	b.u8(5) // below the supported 17..27 range
	b.u8(uint8(SystemGameBoy))
	raw := b.compress(t)

	m := NewDMFModule()
	st := &Status{}
	err := importDMF(m, raw, st)
	if err == nil {
		t.Fatalf("importDMF with version 5: want error, got nil")
	}
}
