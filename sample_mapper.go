package dmf2mod

// SampleKind distinguishes the three DMF timbre sources the mapper can turn
// into MOD sample data.
type SampleKind uint8

const (
	SampleSilence SampleKind = iota
	SampleSquare
	SampleWave
)

// modSampleLengths is the set of byte lengths MOD samples may use, smallest
// first.
var modSampleLengths = []int{8, 16, 32, 64, 128, 256, 512}

// octaveBaseLength maps a sample's starting octave to the base (1:1, no
// downsampling) MOD sample length.
var octaveBaseLength = map[uint8]int{0: 256, 1: 128, 2: 64, 3: 32, 4: 16, 5: 8}

// SampleMapping is the per-DMF-instrument (or per-wavetable) decision of how
// many MOD samples it expands into and their parameters.
type SampleMapping struct {
	Kind               SampleKind
	SourceID           uint8 // instrument or wavetable index this mapping came from
	NumModSamples      int
	RangeStarts        [3]Note // always octave-aligned (pitch C)
	ModSampleLengths   [3]int
	ModIDs             [3]int // 1-based MOD sample numbers; 0 means unused slot
	DownsamplingNeeded bool
	ModOctaveShift     int

	// DutyCycle/Wave carry the raw source data needed to synthesize
	// sample bytes (set by the caller before calling BuildSampleData).
	DutyCycle uint8
	Wave      []uint32
}

// mapSilentInstrument builds the fixed single-sample mapping used for a
// silent (no timbre) instrument.
func mapSilentInstrument(sourceID uint8) SampleMapping {
	return SampleMapping{
		Kind:             SampleSilence,
		SourceID:         sourceID,
		NumModSamples:    1,
		ModSampleLengths: [3]int{8, 0, 0},
	}
}

// roundDownToC returns the C note at or below n's octave.
func roundDownToC(n Note) Note { return Note{Pitch: PitchC, Octave: n.Octave} }

// MapInstrument partitions a square or wave instrument observed across the
// range [low, high] into one, two, or three MOD samples, applying the
// octave-shift optimization where it keeps a lower sample count.
func MapInstrument(kind SampleKind, sourceID uint8, low, high Note) SampleMapping {
	lowC := roundDownToC(low)
	rangeSemitones := high.Semitone() - lowC.Semitone()

	m := SampleMapping{Kind: kind, SourceID: sourceID}

	switch {
	case rangeSemitones < 36:
		m.NumModSamples = 1
		m.RangeStarts[0] = lowC
	case rangeSemitones < 72:
		m.NumModSamples = 2
		m.RangeStarts[0] = lowC
		m.RangeStarts[1] = Note{Pitch: PitchC, Octave: lowC.Octave + 3}
	default:
		m.NumModSamples = 3
		m.RangeStarts = [3]Note{
			{Pitch: PitchC, Octave: 0},
			{Pitch: PitchC, Octave: 2},
			{Pitch: PitchC, Octave: 5},
		}
		m.ModSampleLengths = [3]int{256, 64, 8}
		if kind == SampleWave {
			m.ModSampleLengths = [3]int{512, 128, 16}
		}
		m.finishLengths(kind)
		return m
	}

	// Octave-shift optimization: only applies to the
	// 1- or 2-sample cases. Shifting the range start down by an octave
	// costs 12 semitones of the bucket's ceiling, so it's only safe while
	// slack remains under that ceiling - otherwise the shift would force
	// the instrument into the next split tier.
	bucketMax := 36
	if m.NumModSamples == 2 {
		bucketMax = 72
	}
	headroom := bucketMax - rangeSemitones
	shift := 0
	switch {
	case headroom >= 24 && m.RangeStarts[0].Octave >= 2:
		shift = 2
	case headroom >= 12 && m.RangeStarts[0].Octave >= 1:
		shift = 1
	}
	if shift > 0 {
		m.ModOctaveShift = shift
		for i := 0; i < m.NumModSamples; i++ {
			m.RangeStarts[i].Octave -= uint8(shift)
		}
	}

	for i := 0; i < m.NumModSamples; i++ {
		base, ok := octaveBaseLength[m.RangeStarts[i].Octave]
		if !ok {
			base = 8
		}
		if kind == SampleWave {
			base *= 2
		}
		m.ModSampleLengths[i] = base
	}
	m.finishLengths(kind)
	return m
}

func (m *SampleMapping) finishLengths(kind SampleKind) {
	if kind != SampleWave {
		return
	}
	for i := 0; i < m.NumModSamples; i++ {
		if m.ModSampleLengths[i] < 32 {
			m.DownsamplingNeeded = true
		}
	}
}

// AssignModID records the 1-based MOD sample slot id this mapping's sample
// range (or ranges) occupies, starting at nextID, and returns the next free
// id after them.
func (m *SampleMapping) AssignModID(nextID int) int {
	for i := 0; i < m.NumModSamples; i++ {
		m.ModIDs[i] = nextID
		nextID++
	}
	return nextID
}

// ModSampleFor answers which of this mapping's (up to 3) MOD samples a DMF
// note falls into, and the range it was mapped from.
func (m *SampleMapping) ModSampleFor(dmfNote Note) (modID int, rangeStart Note) {
	idx := 0
	for i := 1; i < m.NumModSamples; i++ {
		if !dmfNote.Less(m.RangeStarts[i]) {
			idx = i
		}
	}
	return m.ModIDs[idx], m.RangeStarts[idx]
}

// ModNoteFor re-expresses a DMF note relative to the MOD sample range it
// falls in, clamped into ProTracker's representable octaves 1..3.
func (m *SampleMapping) ModNoteFor(dmfNote Note) Note {
	_, rangeStart := m.ModSampleFor(dmfNote)
	semitoneOffset := dmfNote.Semitone() - rangeStart.Semitone()
	n := Note{Pitch: NotePitch(semitoneOffset % 12), Octave: uint8(1 + semitoneOffset/12)}
	if n.Octave > 3 {
		n.Octave = 3
	}
	if int(n.Octave) < 1 {
		n.Octave = 1
	}
	return n
}

// BuildSampleData synthesizes the MOD sample byte buffers for every slot in
// this mapping.
func (m *SampleMapping) BuildSampleData() [3][]int8 {
	var out [3][]int8
	for i := 0; i < m.NumModSamples; i++ {
		length := m.ModSampleLengths[i]
		switch m.Kind {
		case SampleSilence:
			out[i] = make([]int8, length)
		case SampleSquare:
			out[i] = synthesizeSquare(length, m.DutyCycle)
		case SampleWave:
			out[i] = synthesizeWave(m.Wave, length)
		}
	}
	return out
}

// dutyEighths maps the 0-3 DMF duty index to the square-wave fraction of the
// period spent high, expressed as eighths (duty in {1, 2,
// 4, 6}).
var dutyEighths = [4]int{1, 2, 4, 6}

func synthesizeSquare(length int, duty uint8) []int8 {
	buf := make([]int8, length)
	eighths := dutyEighths[0]
	if int(duty) < len(dutyEighths) {
		eighths = dutyEighths[duty]
	}
	highSamples := length * eighths / 8
	for i := range buf {
		if i < highSamples {
			buf[i] = 127
		} else {
			buf[i] = -10
		}
	}
	return buf
}

// waveAttenuation caps synthesized wave amplitude at 12/15 of full scale to
// emulate the Game Boy wave channel's fixed master-volume ceiling.
const waveAttenuation = 12.0 / 15.0

func wave4BitToSigned8(v uint32) int8 {
	f := float64(v) / 15.0 * 255.0 * waveAttenuation
	return int8(f - 128)
}

// synthesizeWave upsamples or downsamples the 32-entry DMF wavetable to the
// requested MOD sample length.
func synthesizeWave(wave []uint32, length int) []int8 {
	base := make([]int8, len(wave))
	for i, v := range wave {
		base[i] = wave4BitToSigned8(v)
	}
	if length == len(base) {
		return base
	}
	if length > len(base) {
		return upsampleWave(base, length)
	}
	return downsampleWave(base, length)
}

func upsampleWave(base []int8, length int) []int8 {
	out := make([]int8, length)
	ratio := length / len(base)
	if ratio < 1 {
		ratio = 1
	}
	for i := range out {
		out[i] = base[(i/ratio)%len(base)]
	}
	return out
}

func downsampleWave(base []int8, length int) []int8 {
	factor := len(base) / length
	if factor < 1 {
		factor = 1
	}
	out := make([]int8, length)
	for i := range out {
		sum := 0
		count := 0
		for j := 0; j < factor; j++ {
			idx := i*factor + j
			if idx < len(base) {
				sum += int(base[idx])
				count++
			}
		}
		if count > 0 {
			out[i] = int8(sum / count)
		}
	}
	return out
}
