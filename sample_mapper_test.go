package dmf2mod

import "testing"

// TestSampleMapperNoSplit is scenario S2: a square instrument spanning
// (C,2)..(B,4), three octaves, stays as a single MOD sample.
func TestSampleMapperNoSplit(t *testing.T) {
	low := Note{Pitch: PitchC, Octave: 2}
	high := Note{Pitch: PitchB, Octave: 4}
	m := MapInstrument(SampleSquare, 0, low, high)

	if m.NumModSamples != 1 {
		t.Fatalf("NumModSamples = %d, want 1", m.NumModSamples)
	}
	if m.ModOctaveShift != 0 {
		t.Fatalf("ModOctaveShift = %d, want 0", m.ModOctaveShift)
	}
	if m.ModSampleLengths[0] != 64 {
		t.Fatalf("ModSampleLengths[0] = %d, want 64", m.ModSampleLengths[0])
	}

	m.AssignModID(1)
	for oct := 2; oct <= 4; oct++ {
		for pitch := 0; pitch < 12; pitch++ {
			n := Note{Pitch: NotePitch(pitch), Octave: uint8(oct)}
			if n.Greater(high) {
				continue
			}
			modNote := m.ModNoteFor(n)
			if modNote.Octave < 1 || modNote.Octave > 3 {
				t.Fatalf("note %v mapped to out-of-range MOD octave %d", n, modNote.Octave)
			}
		}
	}
}

// TestSampleMapperThreeWaySplit is scenario S3: a wavetable spanning
// (C,1)..(C,7) needs all three MOD samples and downsampling.
func TestSampleMapperThreeWaySplit(t *testing.T) {
	low := Note{Pitch: PitchC, Octave: 1}
	high := Note{Pitch: PitchC, Octave: 7}
	m := MapInstrument(SampleWave, 0, low, high)

	if m.NumModSamples != 3 {
		t.Fatalf("NumModSamples = %d, want 3", m.NumModSamples)
	}
	want := [3]int{512, 128, 16}
	if m.ModSampleLengths != want {
		t.Fatalf("ModSampleLengths = %v, want %v", m.ModSampleLengths, want)
	}
	if !m.DownsamplingNeeded {
		t.Fatalf("DownsamplingNeeded = false, want true")
	}
}

func TestSampleMapperSilentInstrument(t *testing.T) {
	m := mapSilentInstrument(3)
	if m.Kind != SampleSilence || m.NumModSamples != 1 || m.ModSampleLengths[0] != 8 {
		t.Fatalf("unexpected silent mapping: %+v", m)
	}
	data := m.BuildSampleData()
	for _, b := range data[0] {
		if b != 0 {
			t.Fatalf("silent sample data must be all zero, got %v", data[0])
		}
	}
}

func TestSynthesizeSquareDutyShape(t *testing.T) {
	data := synthesizeSquare(8, 1) // duty index 1 -> 2/8 of the period high
	highCount := 0
	for _, b := range data {
		if b == 127 {
			highCount++
		} else if b != -10 {
			t.Fatalf("unexpected sample byte %d", b)
		}
	}
	if highCount != 2 {
		t.Fatalf("high sample count = %d, want 2", highCount)
	}
}
