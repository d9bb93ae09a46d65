package dmf2mod

import "testing"

// TestSolveTempoExactBPM covers scenarios S4 and S5: BPM values that are
// exactly representable as 3*tempo/speed must solve with no warning.
func TestSolveTempoExactBPM(t *testing.T) {
	cases := []struct {
		n, d                 int
		wantTempo, wantSpeed int
	}{
		{180, 1, 60, 1},
		{150, 1, 50, 1},
	}
	for _, c := range cases {
		st := &Status{}
		got := SolveTempo(c.n, c.d, st)
		if got.Tempo != c.wantTempo || got.Speed != c.wantSpeed {
			t.Fatalf("SolveTempo(%d,%d) = %+v, want {%d %d}", c.n, c.d, got, c.wantTempo, c.wantSpeed)
		}
		wantBPM := float64(c.n) / float64(c.d)
		if absFloat(got.bpm()-wantBPM) > 0.001 {
			t.Fatalf("SolveTempo(%d,%d) = %+v (bpm %v) does not reproduce the requested BPM %v", c.n, c.d, got, got.bpm(), wantBPM)
		}
		if len(st.Warnings) != 0 {
			t.Fatalf("SolveTempo(%d,%d) warned %v, want no warnings for an exact match", c.n, c.d, st.Warnings)
		}
	}
}

// TestSolveTempoAlwaysInRange is property 5: every solved (tempo, speed)
// pair must fall within ProTracker's representable bounds, however far the
// requested BPM sits from what the format can reproduce exactly.
func TestSolveTempoAlwaysInRange(t *testing.T) {
	for n := 1; n <= 400; n += 7 {
		for d := 1; d <= 48; d += 5 {
			st := &Status{}
			got := SolveTempo(n, d, st)
			if got.Tempo < modTempoMin || got.Tempo > modTempoMax {
				t.Fatalf("SolveTempo(%d,%d).Tempo = %d, out of [%d,%d]", n, d, got.Tempo, modTempoMin, modTempoMax)
			}
			if got.Speed < modSpeedMin || got.Speed > modSpeedMax {
				t.Fatalf("SolveTempo(%d,%d).Speed = %d, out of [%d,%d]", n, d, got.Speed, modSpeedMin, modSpeedMax)
			}
		}
	}
}

// TestSolveTempoMinimizesError checks that when a BPM cannot be represented
// exactly, SolveTempo's answer is at least as close as the brute-force grid
// search result - it must never leave precision on the table.
func TestSolveTempoMinimizesError(t *testing.T) {
	awkward := []struct{ n, d int }{
		{211, 9}, {1, 7}, {997, 11}, {333, 2},
	}
	for _, c := range awkward {
		st := &Status{}
		got := SolveTempo(c.n, c.d, st)
		wantBPM := tempoRational{n: c.n, d: c.d}.reduce().bpm()
		best := bruteForceTempo(wantBPM)
		gotErr := absFloat(got.bpm() - wantBPM)
		bestErr := absFloat(best.bpm() - wantBPM)
		if gotErr > bestErr+0.001 {
			t.Fatalf("SolveTempo(%d,%d) = %+v (err %v) is worse than brute force %+v (err %v)",
				c.n, c.d, got, gotErr, best, bestErr)
		}
	}
}
