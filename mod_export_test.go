package dmf2mod

import (
	"bytes"
	"testing"
)

func TestPatternCellRoundTrip(t *testing.T) {
	for sample := 0; sample <= 31; sample += 3 {
		for period := 0; period <= 0xFFF; period += 251 {
			for code := 0; code <= 0xF; code++ {
				for value := 0; value <= 0xFF; value += 17 {
					n := MODNote{
						Sample: sample,
						Period: period,
						Effect: Effect{Code: EffectCode(code), Value: EffectValue(value)},
					}
					var buf bytes.Buffer
					writePatternCell(&buf, n)
					got := buf.Bytes()
					gotSample, gotPeriod, gotCode, gotValue := unpackPatternCell(got)
					if gotSample != sample || gotPeriod != period&0xFFF || gotCode != code || gotValue != value {
						t.Fatalf("round trip mismatch: in=(%d,%d,%d,%d) bytes=%v out=(%d,%d,%d,%d)",
							sample, period, code, value, got, gotSample, gotPeriod, gotCode, gotValue)
					}
				}
			}
		}
	}
}

// unpackPatternCell is the reverse of writePatternCell, using the standard
// MOD pattern-byte nibble split.
func unpackPatternCell(b []byte) (sample, period, code, value int) {
	sample = int(b[0]&0xF0) | int(b[2]>>4)
	period = int(b[0]&0x0F)<<8 | int(b[1])
	code = int(b[2] & 0x0F)
	value = int(b[3])
	return
}

func TestPatternCellHighSampleNumber(t *testing.T) {
	n := MODNote{Sample: 31, Period: 113, Effect: Effect{Code: EffectCode(0xC), Value: EffectValue(0x40)}}
	var buf bytes.Buffer
	writePatternCell(&buf, n)
	gotSample, gotPeriod, gotCode, gotValue := unpackPatternCell(buf.Bytes())
	if gotSample != 31 || gotPeriod != 113 || gotCode != 0xC || gotValue != 0x40 {
		t.Fatalf("got (%d,%d,%d,%d)", gotSample, gotPeriod, gotCode, gotValue)
	}
}

// minimalConvertibleGameBoyDMF builds an empty, structurally valid Game Boy
// module (no notes played on any channel) that convertDMFToMOD can run end
// to end against, with the caller free to set the tempo fields before
// converting.
func minimalConvertibleGameBoyDMF(t *testing.T) *DMFModule {
	t.Helper()
	m := NewDMFModule()
	m.Sys = SystemGameBoy
	m.RowsPerPattern = 2
	m.OrdersCount = 1

	numChannels := m.Sys.Channels()
	m.Data.AllocatePatternMatrix(numChannels, m.OrdersCount)
	effectCols := make([]int, numChannels)
	for c := range effectCols {
		effectCols[c] = 1
	}
	m.Data.AllocateChannels(effectCols)
	m.Data.AllocatePatterns(m.RowsPerPattern)

	emptyRow := DMFRow{Note: EmptyNoteSlot(), Volume: -1, Instrument: -1}
	for c := 0; c < numChannels; c++ {
		for row := 0; row < m.RowsPerPattern; row++ {
			m.Data.SetRow(c, 0, row, emptyRow)
		}
	}
	return m
}

// TestConvertDMFToMODTempoS1 covers the solver-bounds scenario: time_base=1,
// tick_time1=tick_time2=6, frames_mode=1 (NTSC, global tick 60) must derive
// 75 BPM exactly, as 15*60/(1*(6+6)). The earlier numerator*=TimeBase,
// denominator=TimeBase formula collapsed this to 6 BPM instead.
func TestConvertDMFToMODTempoS1(t *testing.T) {
	dmf := minimalConvertibleGameBoyDMF(t)
	dmf.TimeBase = 1
	dmf.TickTime1 = 6
	dmf.TickTime2 = 6
	dmf.FramesMode = 1

	st := &Status{}
	mod, err := convertDMFToMOD(dmf, DefaultConversionOptions(), st)
	if err != nil {
		t.Fatalf("convertDMFToMOD: %v", err)
	}

	const wantBPM = 75.0
	gotBPM := 3 * float64(mod.SourceTempo) / float64(mod.SourceSpeed)
	if absFloat(gotBPM-wantBPM) > 0.001 {
		t.Fatalf("derived BPM = %v (tempo=%d speed=%d), want %v", gotBPM, mod.SourceTempo, mod.SourceSpeed, wantBPM)
	}
}

// TestGlobalTickSelectsRate covers the three global-tick branches a tempo
// derivation depends on.
func TestGlobalTickSelectsRate(t *testing.T) {
	cases := []struct {
		name                      string
		framesMode, usingCustomHz uint8
		customHz                  uint32
		want                      uint32
	}{
		{"PAL", 0, 0, 0, 50},
		{"NTSC", 1, 0, 0, 60},
		{"CustomHz", 0, 1, 120, 120},
	}
	for _, c := range cases {
		m := &DMFModule{FramesMode: c.framesMode, UsingCustomHz: c.usingCustomHz, CustomHz: c.customHz}
		if got := m.globalTick(); got != c.want {
			t.Errorf("%s: globalTick() = %d, want %d", c.name, got, c.want)
		}
	}
}

// TestConvertDMFToMODZeroTempoDenominator covers the division guard: a
// module whose tick fields reduce the row length to zero must fail the
// conversion instead of dividing by zero.
func TestConvertDMFToMODZeroTempoDenominator(t *testing.T) {
	dmf := minimalConvertibleGameBoyDMF(t)
	dmf.TimeBase = 0

	st := &Status{}
	if _, err := convertDMFToMOD(dmf, DefaultConversionOptions(), st); err == nil {
		t.Fatalf("convertDMFToMOD with time_base=0: want error, got nil")
	}
}

// TestConvertDMFToMODRefusesDownsampleWithoutConsent covers the opt-in gate:
// a wavetable needing downsampling below 32 entries must fail the
// conversion unless ConversionOptions.AllowDownsample consents.
func TestConvertDMFToMODRefusesDownsampleWithoutConsent(t *testing.T) {
	dmf := minimalConvertibleGameBoyDMF(t)
	dmf.TimeBase, dmf.TickTime1, dmf.TickTime2, dmf.FramesMode = 1, 6, 6, 1
	dmf.Wavetables = []DMFWavetable{{Values: make([]uint32, 32)}}

	// Channel 0 selects wavetable 0 and plays C-7 then C-1, a 72-semitone
	// span, so the sample mapper's three-way split kicks in and needs a
	// sub-32 length.
	dmf.Data.SetRow(0, 0, 0, DMFRow{
		Note:       PitchNoteSlot(Note{Pitch: PitchC, Octave: 7}),
		Volume:     -1,
		Instrument: -1,
		Effects:    [MaxEffectsColumns]Effect{{Code: dmfEffSetWave, Value: 0}},
	})
	dmf.Data.SetRow(0, 0, 1, DMFRow{
		Note:       PitchNoteSlot(Note{Pitch: PitchC, Octave: 1}),
		Volume:     -1,
		Instrument: -1,
	})

	opts := DefaultConversionOptions()
	opts.AllowDownsample = false
	st := &Status{}
	if _, err := convertDMFToMOD(dmf, opts, st); err == nil {
		t.Fatalf("convertDMFToMOD without AllowDownsample: want error, got nil")
	}

	opts.AllowDownsample = true
	st = &Status{}
	if _, err := convertDMFToMOD(dmf, opts, st); err != nil {
		t.Fatalf("convertDMFToMOD with AllowDownsample: %v", err)
	}
	found := false
	for _, w := range st.Warnings {
		if w == warnWaveDownsample(0) {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v, want a warnWaveDownsample(0) entry", st.Warnings)
	}
}
