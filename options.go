package dmf2mod

import clone "github.com/huandu/go-clone/generic"

// TempoStrategy selects whether the tempo solver favors BPM accuracy or
// effect-count compatibility with strict players.
type TempoStrategy int

const (
	TempoAccuracy TempoStrategy = iota
	TempoCompat
)

// ConversionOptions holds the typed, already-parsed option values a
// conversion needs. Command-line parsing into this struct is the external
// collaborator's job (cmd/dmf2mod); the core only ever sees this value.
type ConversionOptions struct {
	AllowArp        bool
	AllowPort       bool
	AllowPort2Note  bool
	AllowVibrato    bool
	Tempo           TempoStrategy
	AllowDownsample bool
}

// DefaultConversionOptions returns the conversion-option defaults as a
// fresh value a caller may freely mutate.
func DefaultConversionOptions() ConversionOptions {
	return ConversionOptions{
		AllowArp:        false,
		AllowPort:       false,
		AllowPort2Note:  false,
		AllowVibrato:    false,
		Tempo:           TempoAccuracy,
		AllowDownsample: false,
	}
}

// WithDefaults returns a deep copy of opts. Every default in
// DefaultConversionOptions is the Go zero value, so no field needs filling
// in; the clone exists so callers can share one options value across
// conversions without a downstream mutation leaking back.
func (o ConversionOptions) WithDefaults() ConversionOptions {
	return clone.Clone(o)
}

// GlobalOptions groups the options that apply regardless of target format.
// No function in this package takes it, and the dmf2mod command keeps its
// own package-level force/verbose flags.
type GlobalOptions struct {
	Force   bool
	Verbose bool
}
