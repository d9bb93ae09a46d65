package dmf2mod

// System identifies which target chip a DMF module was authored for
// (dmf.h's SYSTEM_TYPE). Only SystemGameBoy can reach the MOD emitter;
// every other system round-trips through the importer only.
type System uint8

const (
	SystemError System = iota
	SystemGenesis
	SystemGenesisCh3
	SystemSMS
	SystemGameBoy
	SystemPCEngine
	SystemNES
	SystemC64SID8580
	SystemC64SID6581
	SystemYM2151
)

func (s System) String() string {
	switch s {
	case SystemGenesis:
		return "Genesis"
	case SystemGenesisCh3:
		return "Genesis (Ch3 special mode)"
	case SystemSMS:
		return "SMS"
	case SystemGameBoy:
		return "Game Boy"
	case SystemPCEngine:
		return "PC Engine"
	case SystemNES:
		return "NES"
	case SystemC64SID8580:
		return "C64 (SID 8580)"
	case SystemC64SID6581:
		return "C64 (SID 6581)"
	case SystemYM2151:
		return "YM2151"
	default:
		return "unknown"
	}
}

func (s System) Channels() int {
	switch s {
	case SystemGameBoy:
		return 4
	case SystemGenesis:
		return 10
	case SystemGenesisCh3:
		return 13
	case SystemSMS:
		return 4
	case SystemPCEngine:
		return 6
	case SystemNES:
		return 5
	case SystemC64SID8580, SystemC64SID6581:
		return 3
	case SystemYM2151:
		return 8
	default:
		return 0
	}
}

// wavetableBits returns the per-system mask width used when reading
// wavetable sample values.
func (s System) wavetableBits() int {
	switch s {
	case SystemGameBoy:
		return 4
	case SystemNES:
		return 6 // NES-FDS
	default:
		return 32
	}
}

// SoundIndexKind tags which timbre source a DMF channel is driving.
type SoundIndexKind uint8

const (
	SoundNone SoundIndexKind = iota
	SoundSquare
	SoundWave
	SoundNoise
)

// SoundIndex identifies a timbre source, e.g. "square duty preset 2" or
// "wavetable 0". It doubles as the type the state timeline's per-channel
// sticky column stores.
type SoundIndex struct {
	Kind SoundIndexKind
	ID   uint8
}

var NoSoundIndex = SoundIndex{Kind: SoundNone}

// DMF-specific effect codes: raw file values 0xE0-0xEF (less NOTECUT/
// NOTEDELAY, which map onto the common negative codes instead) and the
// Game Boy exclusive 0x10-0x14 range from dmf.h's DMF_GAMEBOY_EFFECT.
// These are positive, small, and disjoint from the common negative codes
// in note.go so they fit the signed 8-bit EffectCode space alongside them.
const (
	dmfEffArpTickSpeed    EffectCode = 1 // version <= 19 only
	dmfEffNoteSlideUp     EffectCode = 2
	dmfEffNoteSlideDown   EffectCode = 3
	dmfEffSetVibratoMode  EffectCode = 4
	dmfEffSetFineVibDepth EffectCode = 5
	dmfEffSetFineTune     EffectCode = 6
	dmfEffSetSamplesBank  EffectCode = 7
	dmfEffSyncSignal      EffectCode = 8
	dmfEffSetGlobalFTune  EffectCode = 9

	dmfEffSetWave          EffectCode = 10
	dmfEffSetNoisePolyMode EffectCode = 11
	dmfEffSetDutyCycle     EffectCode = 12
	dmfEffSetSweepTimeShft EffectCode = 13
	dmfEffSetSweepDir      EffectCode = 14
)

// mapDMFEffect translates a raw DMF effect code (as read from the file)
// into the Effect.Code space described above.
func mapDMFEffect(raw int16) EffectCode {
	switch raw {
	case 0x0:
		return EffectArp
	case 0x1:
		return EffectPortUp
	case 0x2:
		return EffectPortDown
	case 0x3:
		return EffectPort2Note
	case 0x4:
		return EffectVibrato
	case 0x5:
		return EffectPort2NoteVolSlide
	case 0x6:
		return EffectVibratoVolSlide
	case 0x7:
		return EffectTremolo
	case 0x8:
		return EffectPanning
	case 0x9:
		return EffectSpeedA
	case 0xA:
		return EffectVolSlide
	case 0xB:
		return EffectPosJump
	case 0xC:
		return EffectRetrigger
	case 0xD:
		return EffectPatBreak
	case 0xF:
		return EffectSpeedB
	case 0xE0:
		return dmfEffArpTickSpeed
	case 0xE1:
		return dmfEffNoteSlideUp
	case 0xE2:
		return dmfEffNoteSlideDown
	case 0xE3:
		return dmfEffSetVibratoMode
	case 0xE4:
		return dmfEffSetFineVibDepth
	case 0xE5:
		return dmfEffSetFineTune
	case 0xEB:
		return dmfEffSetSamplesBank
	case 0xEC:
		return EffectNoteCut
	case 0xED:
		return EffectNoteDelay
	case 0xEE:
		return dmfEffSyncSignal
	case 0xEF:
		return dmfEffSetGlobalFTune
	case 0x10:
		return dmfEffSetWave
	case 0x11:
		return dmfEffSetNoisePolyMode
	case 0x12:
		return dmfEffSetDutyCycle
	case 0x13:
		return dmfEffSetSweepTimeShft
	case 0x14:
		return dmfEffSetSweepDir
	default:
		return EffectNone
	}
}

// DMFRow is one cell of DMF pattern data for a single channel.
type DMFRow struct {
	Note       NoteSlot
	Volume     int16 // -1 = unset
	Effects    [MaxEffectsColumns]Effect
	Instrument int16 // -1 = none
}

// DMFInstrumentMode distinguishes FM vs. standard (PSG-style) instruments;
// only standard instruments matter for Game Boy export.
type DMFInstrumentMode uint8

const (
	InstrumentStandard DMFInstrumentMode = iota
	InstrumentFM
)

// DMFInstrument keeps the standard-instrument envelopes and the Game Boy
// envelope bytes. FM and C64 parameter bytes are read past to keep the
// stream in sync but are not stored.
type DMFInstrument struct {
	Name string
	Mode DMFInstrumentMode

	// Standard-instrument envelopes (volume, arpeggio, duty/noise, wave).
	VolEnv, ArpEnv, DutyNoiseEnv, WavetableEnv []int32
	VolEnvLoop, ArpEnvLoop, DutyNoiseEnvLoop, WavetableEnvLoop int8
	ArpMacroMode                                               uint8

	// Game Boy specific envelope bytes (version >= 18 only).
	GBEnvVolume, GBEnvDirection, GBEnvLength, GBSoundLength uint8
}

// DMFWavetable is one wavetable (FDS values shifted on old versions).
type DMFWavetable struct {
	Values []uint32 // entry count as stored in the file; not resized on import
}

// DMFPCMSample preserves the PCM sample fields dmf.h's PCMSample carries.
// cut_start/cut_end only exist for format version >= 27; MOD export never
// consumes PCM samples (Game Boy has none), so they are preserved on the
// struct and otherwise left alone.
type DMFPCMSample struct {
	Name           string
	Rate           uint8
	Pitch          uint8
	Amp            uint8
	Bits           uint8
	Data           []uint16
	CutStart       uint32
	CutEnd         uint32
	HasCutRange    bool
}

// DMFModule is the format-agnostic container specialized for DMF's
// channel -> order -> row (COR) layout.
type DMFModule struct {
	Version uint8
	Sys     System

	Title, Author           string
	HighlightA, HighlightB  uint8

	TimeBase, TickTime1, TickTime2 uint8
	FramesMode, UsingCustomHz      uint8
	CustomHz                       uint32
	RowsPerPattern                 int
	OrdersCount                    int
	ArpTickSpeed                   uint8 // version <= 19 only

	Instruments []DMFInstrument
	Wavetables  []DMFWavetable
	PCMSamples  []DMFPCMSample

	Data *CORData[DMFRow]

	Timeline *Timeline
}

func NewDMFModule() *DMFModule {
	return &DMFModule{Data: NewCORData[DMFRow]()}
}

func (m *DMFModule) Format() Format { return FormatDMF }

// globalTick returns the per-row tick rate the tempo solver derives BPM
// from: the custom Hz value when the module opted into one, else 60 for
// NTSC (frames_mode set) or 50 for PAL.
func (m *DMFModule) globalTick() uint32 {
	if m.UsingCustomHz != 0 && m.CustomHz != 0 {
		return m.CustomHz
	}
	if m.FramesMode != 0 {
		return 60
	}
	return 50
}
