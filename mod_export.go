package dmf2mod

import "bytes"

// effectPriority classes, highest first.
type effectPriority int

const (
	priStructural effectPriority = iota
	priSampleChange
	priTempo
	priVolume
	priOther
	priUnsupported
	priNone
)

// modEffect packs a MOD effect command (4-bit code, 8-bit value) distinct
// from the core's format-agnostic Effect, since MOD's on-disk nibble layout
// does not follow EffectCode's numbering.
type modEffect struct {
	code  uint8
	value uint8
}

var noModEffect = modEffect{}

const (
	modFxArpeggio    uint8 = 0x0
	modFxPortaUp     uint8 = 0x1
	modFxPortaDown   uint8 = 0x2
	modFxPorta2Note  uint8 = 0x3
	modFxVibrato     uint8 = 0x4
	modFxSetVolume   uint8 = 0xC
	modFxPatBreak    uint8 = 0xD
	modFxPosJump     uint8 = 0xB
	modFxSetSpeed    uint8 = 0xF
)

// convertDMFToMOD runs the whole import-complete to MOD-module pipeline:
// constraint checks, state generation, sample mapping, and row emission. It
// does not serialize to bytes; Export/exportMOD does that.
func convertDMFToMOD(dmf *DMFModule, opts ConversionOptions, st *Status) (*MODModule, error) {
	if dmf.Sys != SystemGameBoy {
		return nil, newError(CategoryExport, CodeNotGameBoy, "MOD export requires a Game Boy module, got %s", dmf.Sys)
	}

	const useSetupPattern = true
	maxOrders := modMaxOrders
	if useSetupPattern {
		maxOrders--
	}
	if dmf.OrdersCount > maxOrders {
		return nil, newError(CategoryExport, CodeTooManyOrders, "DMF has %d orders, MOD allows at most %d", dmf.OrdersCount, maxOrders)
	}
	if dmf.RowsPerPattern > modMaxRowsPerOrder {
		return nil, newError(CategoryExport, CodeTooManyRows, "DMF pattern has %d rows, MOD allows at most %d", dmf.RowsPerPattern, modMaxRowsPerOrder)
	}
	if dmf.Sys.Channels() != modNumChannels {
		return nil, newError(CategoryExport, CodeTooManyChannels, "MOD export requires exactly 4 channels, got %d", dmf.Sys.Channels())
	}

	flags := FlagModPortamentos | FlagModLoops
	gen, err := dmf.Generate(nil, flags)
	if err != nil {
		return nil, err
	}
	if gen.StatusWord&genStatusLoopbackInaccurate != 0 {
		st.AddWarning(warnLoopbackInaccuracy(dmf.OrdersCount - 1))
	}

	mappings, err := buildSampleMappings(dmf, gen, opts, st)
	if err != nil {
		return nil, err
	}

	mod := NewMODModule()
	mod.Title = dmf.Title
	populateModSamples(mod, mappings)

	denom := int(dmf.TimeBase) * (int(dmf.TickTime1) + int(dmf.TickTime2))
	if denom == 0 {
		return nil, newError(CategoryExport, CodeInvalidArgument, "tempo fields (time_base=%d, tick_time1=%d, tick_time2=%d) yield a zero-length row", dmf.TimeBase, dmf.TickTime1, dmf.TickTime2)
	}
	tempo := SolveTempo(15*int(dmf.globalTick()), denom, st)
	mod.SourceTempo, mod.SourceSpeed = tempo.Tempo, tempo.Speed

	patternOffset := 0
	if useSetupPattern {
		patternOffset = 1
	}
	totalOrders := gen.TotalOrders + patternOffset
	mod.Data.AllocatePatternMatrix(totalOrders)
	for modOrder := 0; modOrder < totalOrders; modOrder++ {
		mod.Data.PatternMatrix[modOrder] = modOrder
	}
	mod.Data.AllocateChannels(modNumChannels)
	mod.Data.AllocatePatterns(modMaxRowsPerOrder)

	if useSetupPattern {
		writeSetupPattern(mod, tempo)
	}

	for order := 0; order < gen.TotalOrders; order++ {
		emitOrder(dmf, gen, mod, mappings, order, order+patternOffset, opts, st)
	}

	return mod, nil
}

// writeSetupPattern synthesizes MOD pattern 0 carrying the three bootstrap
// effects: SetSpeed(tempo), SetSpeed(speed), PatBreak 0.
func writeSetupPattern(mod *MODModule, tempo ModTempo) {
	mod.Data.SetRow(0, 0, 0, MODNote{Effect: Effect{}})
	setModEffectOnNote(mod, 0, 0, 0, modEffect{code: modFxSetSpeed, value: uint8(tempo.Tempo)})
	setModEffectOnNote(mod, 0, 1, 0, modEffect{code: modFxSetSpeed, value: uint8(tempo.Speed)})
	setModEffectOnNote(mod, 0, 2, 0, modEffect{code: modFxPatBreak, value: 0})
}

func setModEffectOnNote(mod *MODModule, pattern, row, channel int, fx modEffect) {
	n := mod.Data.Row(pattern, row, channel)
	n.Effect = Effect{Code: EffectCode(fx.code), Value: EffectValue(fx.value)}
	mod.Data.SetRow(pattern, row, channel, n)
}

// channelEmitState carries per-channel bookkeeping the row emitter needs
// across the whole order.
type channelEmitState struct {
	lastSample  int
	lastVolume  int16
	notePlaying bool
}

func emitOrder(dmf *DMFModule, gen *GeneratedData, mod *MODModule, mappings map[SoundIndex]*SampleMapping, order, modOrder int, opts ConversionOptions, st *Status) {
	tl := gen.Timeline
	chStates := make([]channelEmitState, modNumChannels)
	for c := range chStates {
		chStates[c].lastVolume = 15
	}

	rows := dmf.RowsPerPattern
	truncated := rows < modMaxRowsPerOrder

	for row := 0; row < rows; row++ {
		pos := PositionOf(order, row)
		tl.Seek(order, row)

		candidates := make([]modEffect, modNumChannels)
		priorities := make([]effectPriority, modNumChannels)
		for c := range priorities {
			priorities[c] = priNone
		}

		var structuralEff modEffect
		var structuralPri effectPriority = priNone
		if v, ok := tl.Global.PatBreak.Read(pos); ok {
			structuralEff = modEffect{code: modFxPatBreak, value: uint8(v)}
			structuralPri = priStructural
		} else if v, ok := tl.Global.PosJump.Read(pos); ok {
			structuralEff = modEffect{code: modFxPosJump, value: uint8(v)}
			structuralPri = priStructural
		}

		for c := 0; c < modNumChannels; c++ {
			chState := &tl.Channels[c]
			note := MODNote{Sample: chStates[c].lastSample, Period: 0}

			noteSlot, noted := chState.NoteSlotCol.ReadImpulse()
			_, cut := chState.NoteCut.Read(pos)

			mapping := mappings[chState.SoundIndex.Read()]

			switch {
			case cut:
				note.Sample, note.Period = 1, 0 // silent sample
				chStates[c].notePlaying = false
			case noted && noteSlot.IsOff():
				note.Sample, note.Period = 1, 0 // silent sample
				chStates[c].notePlaying = false
			case noted && noteSlot.HasPitch():
				if noteSlot.Note.Pitch == PitchC && noteSlot.Note.Octave >= 8 {
					st.AddWarning(warnPitchHigh(c))
				}
				modID := 1
				modNote := Note{Pitch: PitchC, Octave: 3}
				if mapping != nil {
					modID, _ = mapping.ModSampleFor(noteSlot.Note)
					modNote = mapping.ModNoteFor(noteSlot.Note)
				}
				note.Sample = modID
				note.Period = periodForModNote(modNote)
				changedSample := modID != chStates[c].lastSample
				if changedSample || !chStates[c].notePlaying {
					candidates[c] = modEffect{code: modFxSetVolume, value: uint8(clampInt(int(chState.Volume.Read()), 0, 64))}
					priorities[c] = priVolume
				}
				chStates[c].lastSample = modID
				chStates[c].notePlaying = true
			}

			if vol, changed := chState.Volume.ReadImpulse(); changed && priorities[c] == priNone {
				if note.Sample != 0 || isWaveChannel(dmf, c) {
					candidates[c] = modEffect{code: modFxSetVolume, value: uint8(clampInt(int(vol), 0, 64))}
					priorities[c] = priVolume
				}
			}

			if eff, raw := otherEffectCandidate(chState, pos, opts); eff != noModEffect {
				if priorities[c] == priNone {
					candidates[c] = eff
					priorities[c] = priOther
				} else {
					st.AddWarning(warnEffectIgnored(c, row, raw))
				}
			}

			mod.Data.SetRow(modOrder, row, c, note)
		}

		if structuralPri == priStructural {
			slot := -1
			for c := 0; c < modNumChannels; c++ {
				if priorities[c] == priNone {
					slot = c
					break
				}
			}
			if slot == -1 {
				slot = 0
				st.AddWarning(warnMultipleEffects(slot, row))
			}
			candidates[slot] = structuralEff
			priorities[slot] = priStructural
		}

		for c := 0; c < modNumChannels; c++ {
			if priorities[c] != priNone {
				n := mod.Data.Row(modOrder, row, c)
				n.Effect = Effect{Code: EffectCode(candidates[c].code), Value: EffectValue(candidates[c].value)}
				mod.Data.SetRow(modOrder, row, c, n)
			}
		}
	}

	if truncated {
		last := rows - 1
		n := mod.Data.Row(modOrder, last, 0)
		n.Effect = Effect{Code: EffectCode(modFxPatBreak), Value: 0}
		mod.Data.SetRow(modOrder, last, 0, n)
	}
}

// otherEffectCandidate resolves the lowest-priority effect class: arpeggio,
// portamento, vibrato, each gated by its ConversionOptions toggle, only
// considered when something changed this exact row. It also returns the
// format-agnostic Effect the candidate came from, so a caller that has to
// drop it for lack of a free slot can still name it in a warning.
func otherEffectCandidate(chState *ChannelState, pos OrderRowPosition, opts ConversionOptions) (modEffect, Effect) {
	if porta, changed := chState.Portamento.ReadImpulse(); changed {
		switch porta.Kind {
		case PortaUp:
			if opts.AllowPort {
				return modEffect{code: modFxPortaUp, value: porta.Value}, Effect{Code: EffectPortUp, Value: EffectValue(porta.Value)}
			}
		case PortaDown:
			if opts.AllowPort {
				return modEffect{code: modFxPortaDown, value: porta.Value}, Effect{Code: EffectPortDown, Value: EffectValue(porta.Value)}
			}
		case PortaToNote:
			if opts.AllowPort2Note {
				return modEffect{code: modFxPorta2Note, value: porta.Value}, Effect{Code: EffectPort2Note, Value: EffectValue(porta.Value)}
			}
		}
	}
	if vib, changed := chState.Vibrato.ReadImpulse(); changed && opts.AllowVibrato {
		return modEffect{code: modFxVibrato, value: vib.Speed<<4 | vib.Depth}, Effect{Code: EffectVibrato, Value: EffectValue(vib.Speed<<4 | vib.Depth)}
	}
	if arp, changed := chState.Arp.ReadImpulse(); changed && opts.AllowArp && arp != 0 {
		return modEffect{code: modFxArpeggio, value: arp}, Effect{Code: EffectArp, Value: EffectValue(arp)}
	}
	return noModEffect, Effect{}
}

// buildSampleMappings groups every observed sound index into one
// SampleMapping and assigns 1-based MOD sample ids, starting from 2 so the
// silent/cut sample keeps id 1. A wavetable mapping that
// needs downsampling below 32 entries is refused unless opts.AllowDownsample
// consents to the quality loss.
func buildSampleMappings(dmf *DMFModule, gen *GeneratedData, opts ConversionOptions, st *Status) (map[SoundIndex]*SampleMapping, error) {
	mappings := make(map[SoundIndex]*SampleMapping)
	nextID := 2

	for idx := range gen.SoundIndexesUsed {
		extremes := gen.SoundIndexNoteExtremes[idx]
		if extremes == nil || !extremes.seen {
			continue
		}
		var m SampleMapping
		switch idx.Kind {
		case SoundSquare:
			m = MapInstrument(SampleSquare, idx.ID, extremes.Low, extremes.High)
			m.DutyCycle = 2
			if duty, ok := gen.SoundIndexDutyCycle[idx]; ok {
				m.DutyCycle = duty
			}
		case SoundWave:
			m = MapInstrument(SampleWave, idx.ID, extremes.Low, extremes.High)
			if int(idx.ID) < len(dmf.Wavetables) {
				m.Wave = dmf.Wavetables[idx.ID].Values
			}
			if m.DownsamplingNeeded {
				if !opts.AllowDownsample {
					return nil, newError(CategoryExport, CodeInvalidArgument, "wavetable %d needs downsampling below 32 entries; pass AllowDownsample to consent", idx.ID)
				}
				st.AddWarning(warnWaveDownsample(int(idx.ID)))
			}
		default:
			continue
		}
		nextID = m.AssignModID(nextID)
		mcopy := m
		mappings[idx] = &mcopy
	}
	return mappings, nil
}

func populateModSamples(mod *MODModule, mappings map[SoundIndex]*SampleMapping) {
	mod.Samples[0] = MODSample{Name: "silence", Length: 8, Volume: 0, Data: make([]int8, 8)}
	for _, m := range mappings {
		data := m.BuildSampleData()
		for i := 0; i < m.NumModSamples; i++ {
			id := m.ModIDs[i]
			if id < 1 || id > modNumSampleSlots {
				continue
			}
			mod.Samples[id-1] = MODSample{
				Name:   "sample",
				Length: m.ModSampleLengths[i],
				Volume: 64,
				Data:   data[i],
			}
		}
	}
}

// exportMOD serializes a MODModule to the ProTracker "M.K." byte layout.
func exportMOD(m *MODModule, st *Status) ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(padOrTruncate([]byte(m.Title), modTitleBytes))

	for i := 0; i < modNumSampleSlots; i++ {
		writeSampleInfo(&buf, m.Samples[i])
	}

	buf.WriteByte(uint8(m.Data.NumOrders))
	buf.WriteByte(0x7F)
	orderTable := make([]byte, 128)
	for i := 0; i < m.Data.NumOrders && i < 128; i++ {
		orderTable[i] = uint8(m.Data.PatternMatrix[i])
	}
	buf.Write(orderTable)
	buf.WriteString("M.K.")

	numPatterns := m.Data.NumPatterns()
	for p := 0; p < numPatterns; p++ {
		for row := 0; row < modMaxRowsPerOrder; row++ {
			for c := 0; c < modNumChannels; c++ {
				writePatternCell(&buf, m.Data.Row(p, row, c))
			}
		}
	}

	for i := 0; i < modNumSampleSlots; i++ {
		buf.Write(sampleDataBytes(m.Samples[i]))
	}

	return buf.Bytes(), nil
}

func padOrTruncate(b []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, b)
	return out
}

func padWithSpaces(s string, n int) []byte {
	out := make([]byte, n)
	copy(out, s)
	for i := len(s); i < n; i++ {
		out[i] = ' '
	}
	return out
}

func writeSampleInfo(buf *bytes.Buffer, s MODSample) {
	if s.Length == 0 && s.Name == "" {
		buf.Write(make([]byte, 29))
		buf.WriteByte(0x01)
		return
	}
	buf.Write(padWithSpaces(s.Name, modSampleNameBytes))
	writeWordBE(buf, s.Length/2)
	buf.WriteByte(uint8(s.FineTune) & 0x0F)
	buf.WriteByte(s.Volume)
	writeWordBE(buf, s.RepeatStart/2)
	writeWordBE(buf, s.RepeatLen/2)
}

func writeWordBE(buf *bytes.Buffer, v int) {
	buf.WriteByte(uint8(v >> 8))
	buf.WriteByte(uint8(v))
}

func sampleDataBytes(s MODSample) []byte {
	out := make([]byte, len(s.Data))
	for i, v := range s.Data {
		out[i] = byte(v)
	}
	return out
}

// writePatternCell packs one (sample, period, effect) cell into the four
// MOD pattern-stream bytes: the sample number's high nibble shares byte0
// with the period's high nibble, its low nibble shares byte2
// with the 4-bit effect command, and byte3 carries the full effect
// parameter byte (so a SetVolume value like 0x40 round-trips intact instead
// of being clipped to a nibble).
func writePatternCell(buf *bytes.Buffer, n MODNote) {
	sample := uint8(n.Sample)
	period := uint16(n.Period)
	code, value := packModEffect(n.Effect)

	byte0 := (sample & 0xF0) | uint8(period>>8&0x0F)
	byte1 := uint8(period & 0xFF)
	byte2 := (sample&0x0F)<<4 | code&0x0F
	byte3 := value

	buf.WriteByte(byte0)
	buf.WriteByte(byte1)
	buf.WriteByte(byte2)
	buf.WriteByte(byte3)
}

// packModEffect re-expresses an Effect already holding a MOD-domain modEffect
// code/value pair (set by emitOrder) as the 4-bit command plus full
// parameter byte the pattern stream wants.
func packModEffect(e Effect) (code, value uint8) {
	return uint8(e.Code) & 0x0F, uint8(e.Value)
}
