package dmf2mod

import "math"

// DataFlags selects which generator behaviors are active for a given
// GeneratedData cache.
type DataFlags uint8

const (
	// FlagModPortamentos disables the DMF "port-to-note auto cancels future
	// notes" quirk, matching MOD's simpler portamento semantics.
	FlagModPortamentos DataFlags = 1 << 0
	// FlagModLoops is recorded in the cache key like any other flag. The
	// sweep does not read it: no NoteOff is inserted at loopback points.
	FlagModLoops DataFlags = 1 << 1
)

// generatorStatus bits, stored by generateDMF in GeneratedData.StatusWord.
const (
	genStatusOK                 uint8 = 0
	genStatusLoopbackInaccurate uint8 = 1 << 0
)

// NoteExtremes tracks the lowest and highest note observed for some scope
// (a channel, or a sound index) during the state-generator sweep.
type NoteExtremes struct {
	Low, High Note
	seen      bool
}

func (e *NoteExtremes) observe(n Note) {
	if !e.seen {
		e.Low, e.High, e.seen = n, n, true
		return
	}
	if n.Less(e.Low) {
		e.Low = n
	}
	if n.Greater(e.High) {
		e.High = n
	}
}

// GeneratedData is the derived-fact cache: everything the MOD emitter and
// sample mapper need that is not already sitting in raw pattern data,
// computed by a single sweep over the DMF module's patterns.
type GeneratedData struct {
	flags DataFlags
	valid bool

	TotalOrders            int
	NoteOffUsed            bool
	ChannelNoteExtremes    []NoteExtremes
	SoundIndexNoteExtremes map[SoundIndex]*NoteExtremes
	SoundIndexesUsed       map[SoundIndex]bool
	SoundIndexDutyCycle    map[SoundIndex]uint8
	Timeline               *Timeline
	StatusWord             uint8
}

// Generate returns g as is when it is already valid for flags; otherwise it
// runs a fresh sweep and returns a new GeneratedData, leaving g unmodified.
func (m *DMFModule) Generate(g *GeneratedData, flags DataFlags) (*GeneratedData, error) {
	if g.Valid(flags) {
		return g, nil
	}
	return generateDMF(m, flags)
}

func (g *GeneratedData) Valid(flags DataFlags) bool { return g != nil && g.valid && g.flags == flags }

// referencePeriod is dmf.h's period formula for a note, computed on demand
// rather than via a precomputed 12x9 table - the formula is cheap enough to
// call per row and needs no caching.
func referencePeriod(n Note) float64 {
	exp := (float64(n.Pitch) + 12*float64(n.Octave) + 3) / 12
	return 262144 / (27.5 * math.Pow(2, exp))
}

var (
	periodCeilingC8 = referencePeriod(Note{Pitch: PitchC, Octave: 8}) // lowest period (highest pitch)
	periodFloorC2   = referencePeriod(Note{Pitch: PitchC, Octave: 2}) // highest period (lowest pitch)
)

// structuralKind tags which of the two row-ending effects (if any) won
// arbitration for a row, across every channel.
type structuralKind uint8

const (
	structuralNone structuralKind = iota
	structuralPosJump
	structuralPatBreak
)

// orderStep describes one real order as the simulated single playthrough
// visits it: the real order it plays (its index in the step list is its
// generated order index), and the real row it starts reading from (nonzero
// only right after a mid-pattern PatBreak).
type orderStep struct {
	realOrder int
	startRow  int
}

// planOrders simulates one playthrough of the song to resolve PosJump/
// PatBreak structural effects into the generated order list. A real order
// is visited at most once: revisiting one is, by construction,
// the loop point, so the simulation stops there rather than tracing the
// loop body a second time.
func planOrders(m *DMFModule, numChannels int) (steps []orderStep, loopbackStep, loopbackSrc int, accurate bool) {
	visited := make(map[int]int) // realOrder -> index into steps
	loopbackStep = -1
	accurate = true

	realOrder := 0
	startRow := 0
	for {
		if idx, ok := visited[realOrder]; ok {
			loopbackStep = idx
			loopbackSrc = steps[len(steps)-1].realOrder
			break
		}
		if realOrder >= m.OrdersCount {
			// Fell off the end without an explicit jump; treat as an
			// implicit PosJump 0, the same as if one had loopbacked to order 0.
			loopbackStep = 0
			loopbackSrc = steps[len(steps)-1].realOrder
			break
		}
		visited[realOrder] = len(steps)
		steps = append(steps, orderStep{realOrder: realOrder, startRow: startRow})

		kind, value := resolveStructuralEffect(m, numChannels, realOrder, startRow)
		switch kind {
		case structuralPatBreak:
			if value >= m.RowsPerPattern {
				accurate = false
				value = 0
			}
			realOrder++
			startRow = value
		case structuralPosJump:
			realOrder = value
			startRow = 0
		default:
			realOrder++
			startRow = 0
		}
	}
	return steps, loopbackStep, loopbackSrc, accurate
}

// resolveStructuralEffect scans forward from fromRow across every channel
// and applies the arbitration rule: PatBreak wins over PosJump if both are
// present and valid in the same row.
func resolveStructuralEffect(m *DMFModule, numChannels, order, fromRow int) (structuralKind, int) {
	for row := fromRow; row < m.RowsPerPattern; row++ {
		kind, value := rowStructuralEffect(m, numChannels, order, row)
		if kind != structuralNone {
			return kind, value
		}
	}
	return structuralNone, 0
}

func rowStructuralEffect(m *DMFModule, numChannels, order, row int) (structuralKind, int) {
	bestKind := structuralNone
	bestValue := 0
	for ch := 0; ch < numChannels; ch++ {
		r := m.Data.RowAt(ch, order, row)
		for _, eff := range r.Effects {
			if eff.Value < 0 {
				continue // valueless: not a valid break or jump target
			}
			switch eff.Code {
			case EffectPatBreak:
				bestKind = structuralPatBreak
				bestValue = int(eff.Value)
			case EffectPosJump:
				if bestKind != structuralPatBreak {
					bestKind = structuralPosJump
					bestValue = int(eff.Value)
				}
			}
		}
	}
	return bestKind, bestValue
}

// channelSweepState is the per-channel running state the generator sweep
// carries from row to row as it tracks pitch and portamento.
type channelSweepState struct {
	period            float64
	portamento        PortamentoState
	targetPeriod      float64
	notePlaying       bool
	soundIdx          SoundIndex
	soundIdxWriteRow  OrderRowPosition
	notesCancelled    bool // Port2Note before any note has ever played
	everPlayedPitched bool
}

func generateDMF(m *DMFModule, flags DataFlags) (*GeneratedData, error) {
	if m.Sys != SystemGameBoy {
		return nil, newError(CategoryConvert, CodeUnsupportedInputType, "state generation only supports Game Boy modules")
	}

	numChannels := m.Sys.Channels()
	steps, loopbackStep, loopbackSrc, accurate := planOrders(m, numChannels)

	g := &GeneratedData{
		flags:                  flags,
		valid:                  true,
		TotalOrders:            len(steps),
		ChannelNoteExtremes:    make([]NoteExtremes, numChannels),
		SoundIndexNoteExtremes: make(map[SoundIndex]*NoteExtremes),
		SoundIndexesUsed:       make(map[SoundIndex]bool),
		SoundIndexDutyCycle:    make(map[SoundIndex]uint8),
		Timeline:               NewTimeline(numChannels),
	}
	if !accurate {
		g.StatusWord |= genStatusLoopbackInaccurate
	}

	tl := g.Timeline
	tl.Global.Tempo.SetInitial(m.TickTime1)
	tl.Global.SpeedA.SetInitial(m.TimeBase)
	tl.Global.SpeedB.SetInitial(m.TickTime2)

	chans := make([]channelSweepState, numChannels)
	for c := range chans {
		tl.Channels[c].SoundIndex.SetInitial(NoSoundIndex)
		tl.Channels[c].NoteSlotCol.SetInitial(EmptyNoteSlot())
		tl.Channels[c].NotePlaying.SetInitial(false)
		tl.Channels[c].Volume.SetInitial(15)
		tl.Channels[c].DutyCycle.SetInitial(2)
		tl.Channels[c].Portamento.SetInitial(PortamentoState{Kind: PortaNone})
		tl.Channels[c].Vibrato.SetInitial(VibratoState{})
		tl.Channels[c].Arp.SetInitial(0)
		chans[c].period = referencePeriod(Note{Pitch: PitchC, Octave: 4})
	}

	for i, step := range steps {
		rowsInStep := m.RowsPerPattern - step.startRow
		for vr := 0; vr < rowsInStep; vr++ {
			realRow := step.startRow + vr
			pos := PositionOf(i, vr)

			if i == loopbackStep && vr == 0 {
				tl.Global.Loopback.Set(pos, loopbackSrc)
			}

			for ch := 0; ch < numChannels; ch++ {
				row := m.Data.RowAt(ch, step.realOrder, realRow)
				applyChannelRow(m, tl, &chans[ch], g, ch, row, realRow, pos, flags)
			}

			kind, value := rowStructuralEffect(m, numChannels, step.realOrder, realRow)
			switch kind {
			case structuralPatBreak:
				tl.Global.PatBreak.Set(pos, value)
			case structuralPosJump:
				tl.Global.PosJump.Set(pos, value)
			}
		}
	}

	if loopbackStep >= 0 && len(steps) > 0 {
		lastOrder := len(steps) - 1
		lastRows := m.RowsPerPattern - steps[lastOrder].startRow
		finalPos := PositionOf(lastOrder, lastRows-1)
		if _, ok := tl.Global.PosJump.Read(finalPos); !ok {
			if _, ok := tl.Global.PatBreak.Read(finalPos); !ok {
				tl.Global.PosJump.Set(finalPos, loopbackStep)
			}
		}
	}

	return g, nil
}

// tickPair returns the active tick length for a row, alternating between
// Deflemask's two-element tick array by row parity.
func tickPair(m *DMFModule, row int) float64 {
	if row%2 == 0 {
		return float64(m.TimeBase) * float64(m.TickTime1)
	}
	return float64(m.TimeBase) * float64(m.TickTime2)
}

func clampPeriod(p float64) float64 {
	if p < periodCeilingC8 {
		return periodCeilingC8
	}
	if p > periodFloorC2 {
		return periodFloorC2
	}
	return p
}

// applyChannelRow is the per-channel, per-row body of the generator sweep:
// portamento-driven period update, effect arbitration, note and volume
// handling.
func applyChannelRow(m *DMFModule, tl *Timeline, cs *channelSweepState, g *GeneratedData, ch int, row DMFRow, realRow int, pos OrderRowPosition, flags DataFlags) {
	chState := &tl.Channels[ch]
	ticks := tickPair(m, realRow)

	// Any portamento effect on this row unconditionally cancels whatever
	// portamento was previously active.
	newPorta, portaTarget, hasPorta := classifyPortamento(row)
	if hasPorta {
		cs.portamento = newPorta
		chState.Portamento.Set(pos, newPorta, false)
		if newPorta.Kind == PortaToNote {
			cs.targetPeriod = referencePeriod(portaTarget)
			if !cs.everPlayedPitched && newPorta.Value > 0 && flags&FlagModPortamentos == 0 {
				cs.notesCancelled = true
			}
		}
	}

	switch cs.portamento.Kind {
	case PortaUp:
		cs.period = clampPeriod(cs.period - float64(cs.portamento.Value)*ticks*4/3)
	case PortaDown:
		cs.period = clampPeriod(cs.period + float64(cs.portamento.Value)*ticks)
	case PortaToNote:
		step := float64(cs.portamento.Value) * ticks
		if cs.period > cs.targetPeriod {
			cs.period = clampPeriod(math.Max(cs.period-step, cs.targetPeriod))
		} else if cs.period < cs.targetPeriod {
			cs.period = clampPeriod(math.Min(cs.period+step, cs.targetPeriod))
		}
	}

	for _, eff := range row.Effects {
		switch eff.Code {
		case dmfEffSetDutyCycle:
			chState.DutyCycle.Set(pos, uint8(eff.Value), false)
		case dmfEffSetWave:
			cs.soundIdx = SoundIndex{Kind: SoundWave, ID: uint8(eff.Value)}
			cs.soundIdxWriteRow = pos
		}
	}

	if row.Note.IsOff() {
		chState.NoteSlotCol.Set(pos, row.Note, false)
		chState.NotePlaying.Set(pos, false, false)
		cs.notePlaying = false
		g.NoteOffUsed = true
		cs.notesCancelled = false
	} else if row.Note.HasPitch() && !cs.notesCancelled {
		chState.NoteSlotCol.Set(pos, row.Note, false)
		chState.NotePlaying.Set(pos, true, false)
		cs.notePlaying = true
		cs.everPlayedPitched = true

		if cs.portamento.Kind == PortaToNote {
			cs.targetPeriod = referencePeriod(row.Note.Note)
		} else {
			cs.period = clampPeriod(referencePeriod(row.Note.Note))
		}

		if row.Instrument >= 0 && !isWaveChannel(m, ch) {
			cs.soundIdx = soundIndexForInstrument(m, row.Instrument)
			cs.soundIdxWriteRow = pos
		}
		chState.SoundIndex.Set(cs.soundIdxWriteRow, cs.soundIdx, true)

		g.ChannelNoteExtremes[ch].observe(row.Note.Note)
		extremes, ok := g.SoundIndexNoteExtremes[cs.soundIdx]
		if !ok {
			extremes = &NoteExtremes{}
			g.SoundIndexNoteExtremes[cs.soundIdx] = extremes
		}
		extremes.observe(row.Note.Note)
		g.SoundIndexesUsed[cs.soundIdx] = true
		if cs.soundIdx.Kind == SoundSquare {
			g.SoundIndexDutyCycle[cs.soundIdx] = chState.DutyCycle.ReadAt(pos)
		}
	}

	if row.Volume >= 0 {
		vol := row.Volume
		if isWaveChannel(m, ch) {
			vol = quantizeWaveVolume(vol)
		}
		chState.Volume.Set(pos, vol, false)
	}

	for _, eff := range row.Effects {
		switch eff.Code {
		case EffectNoteCut:
			chState.NoteCut.Set(pos, uint8(eff.Value))
		case EffectNoteDelay:
			chState.NoteDelay.Set(pos, uint8(eff.Value))
		case EffectRetrigger:
			chState.Retrigger.Set(pos, uint8(eff.Value))
		case EffectVibrato:
			chState.Vibrato.Set(pos, VibratoState{Speed: uint8(eff.Value >> 4), Depth: uint8(eff.Value & 0xF)}, false)
		case EffectArp:
			chState.Arp.Set(pos, uint8(eff.Value), false)
		}
	}
}

// classifyPortamento extracts the single winning portamento effect on a row,
// if any - a portamento effect unconditionally cancels any prior one active
// on the channel, so at most one matters per row.
func classifyPortamento(row DMFRow) (state PortamentoState, target Note, ok bool) {
	for _, eff := range row.Effects {
		switch eff.Code {
		case EffectPortUp:
			return PortamentoState{Kind: PortaUp, Value: uint8(eff.Value)}, Note{}, true
		case EffectPortDown:
			return PortamentoState{Kind: PortaDown, Value: uint8(eff.Value)}, Note{}, true
		case EffectPort2Note:
			if row.Note.HasPitch() {
				return PortamentoState{Kind: PortaToNote, Value: uint8(eff.Value)}, row.Note.Note, true
			}
			return PortamentoState{Kind: PortaToNote, Value: uint8(eff.Value)}, Note{}, true
		}
	}
	return PortamentoState{}, Note{}, false
}

// soundIndexForInstrument resolves an instrument reference to a SoundIndex
// for a square or noise channel (wave channels are retargeted explicitly via
// SetWave instead).
func soundIndexForInstrument(m *DMFModule, instrument int16) SoundIndex {
	if int(instrument) < 0 || int(instrument) >= len(m.Instruments) {
		return NoSoundIndex
	}
	return SoundIndex{Kind: SoundSquare, ID: uint8(instrument)}
}

// isWaveChannel reports whether channel ch is the Game Boy wave channel
// (channel index 2 of 4, per dmf.h's Game Boy channel ordering: square 1,
// square 2, wave, noise).
func isWaveChannel(m *DMFModule, ch int) bool {
	return m.Sys == SystemGameBoy && ch == 2
}

func quantizeWaveVolume(v int16) int16 {
	switch {
	case v >= 12:
		return 15
	case v >= 8:
		return 10
	case v >= 4:
		return 5
	default:
		return 0
	}
}
