package dmf2mod

// tempoRational is a desired BPM expressed as a reduced fraction n/d; the
// caller is responsible for deriving n/d from a module's own tempo fields
// (time base, tick lengths, global tick).
type tempoRational struct {
	n, d int
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

func (r tempoRational) reduce() tempoRational {
	g := gcd(r.n, r.d)
	if g == 0 {
		return r
	}
	return tempoRational{n: r.n / g, d: r.d / g}
}

func (r tempoRational) bpm() float64 { return float64(r.n) / float64(r.d) }

// ModTempo is the solved MOD (tempo, speed) pair: playback runs at
// 3*tempo/speed BPM.
type ModTempo struct {
	Tempo int // 33..255
	Speed int // 1..32
}

func (t ModTempo) bpm() float64 { return 3 * float64(t.Tempo) / float64(t.Speed) }

const (
	modTempoMin = 33
	modTempoMax = 255
	modSpeedMin = 1
	modSpeedMax = 32
)

// SolveTempo converts a desired BPM, expressed as the fraction n/d, into the
// nearest representable MOD (tempo, speed) pair, warning st if the match is
// not exact. MOD playback runs at 3*tempo/speed BPM, so the n/d target is
// first re-expressed against that 3x relationship before any scaling or
// clamping is attempted.
func SolveTempo(n, d int, st *Status) ModTempo {
	wantBPM := tempoRational{n: n, d: d}.reduce().bpm()
	r := tempoRational{n: n, d: d * 3}.reduce()

	var result ModTempo
	switch {
	case r.n <= 0:
		result = bruteForceTempo(wantBPM)
	case r.n < modTempoMin && r.d <= modSpeedMax:
		// Numerator too low for a speed-1 mapping: scale both up until the
		// numerator clears the floor, or give up and use the low extreme.
		scale := (modTempoMin + r.n - 1) / r.n
		if scale*r.d <= modSpeedMax {
			result = ModTempo{Tempo: clampInt(r.n*scale, modTempoMin, modTempoMax), Speed: clampInt(r.d*scale, modSpeedMin, modSpeedMax)}
		} else {
			result = bruteForceTempo(wantBPM)
		}
	case r.n > modTempoMax:
		// Numerator too high: shrink by the same factor on both sides. The
		// integer division makes the shrunk pair inexact, so it is kept only
		// when the grid search does no better.
		scale := (r.n + modTempoMax - 1) / modTempoMax
		result = bruteForceTempo(wantBPM)
		if r.d/scale >= modSpeedMin {
			scaled := ModTempo{Tempo: clampInt(r.n/scale, modTempoMin, modTempoMax), Speed: clampInt(r.d/scale, modSpeedMin, modSpeedMax)}
			if absFloat(scaled.bpm()-wantBPM) <= absFloat(result.bpm()-wantBPM) {
				result = scaled
			}
		}
	case r.d > modSpeedMax:
		result = bruteForceTempo(wantBPM)
	case r.n >= modTempoMin && r.n <= modTempoMax && r.d >= modSpeedMin && r.d <= modSpeedMax:
		result = ModTempo{Tempo: r.n, Speed: r.d}
	default:
		result = bruteForceTempo(wantBPM)
	}

	gotBPM := result.bpm()
	switch {
	case gotBPM < wantBPM-0.001 && result.Tempo == modTempoMin && result.Speed == modSpeedMax:
		st.AddWarning(warnTempoLow(wantBPM))
	case gotBPM > wantBPM+0.001 && result.Tempo == modTempoMax && result.Speed == modSpeedMin:
		st.AddWarning(warnTempoHigh(wantBPM))
	case gotBPM < wantBPM-0.001 || gotBPM > wantBPM+0.001:
		st.AddWarning(warnTempoPrecision(wantBPM, gotBPM))
	}
	return result
}

// bruteForceTempo is the fallback grid search: minimize |desired - 3n/d|
// over the legal (tempo, speed) grid.
func bruteForceTempo(wantBPM float64) ModTempo {
	best := ModTempo{Tempo: modTempoMin, Speed: modSpeedMax}
	bestDiff := absFloat(best.bpm() - wantBPM)
	for speed := modSpeedMin; speed <= modSpeedMax; speed++ {
		for tempo := modTempoMin; tempo <= modTempoMax; tempo++ {
			candidate := ModTempo{Tempo: tempo, Speed: speed}
			diff := absFloat(candidate.bpm() - wantBPM)
			if diff < bestDiff {
				best, bestDiff = candidate, diff
			}
		}
	}
	return best
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
