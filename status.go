package dmf2mod

import "fmt"

// ErrorCategory tags which pipeline stage an error originated in.
type ErrorCategory int

const (
	CategoryNone ErrorCategory = iota
	CategoryImport
	CategoryExport
	CategoryConvert
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryImport:
		return "import"
	case CategoryExport:
		return "export"
	case CategoryConvert:
		return "convert"
	default:
		return "none"
	}
}

// ErrorCode is a per-category error enumeration. Positive values are
// format-specific; the universal, negative codes are listed below.
type ErrorCode int

const (
	CodeSuccess ErrorCode = 0

	// Universal codes, shared by every category.
	CodeFileOpen             ErrorCode = -1
	CodeInvalidArgument      ErrorCode = -2
	CodeUnsupportedInputType ErrorCode = -3
	CodeUnsuccessful         ErrorCode = -4
)

// DMF import error codes (positive, import-category only).
const (
	CodeBadMagic ErrorCode = iota + 1
	CodeUnsupportedVersion
	CodeUnknownSystem
	CodeUnexpectedEOF
)

// MOD export error codes (positive, export-category only).
const (
	CodeNotGameBoy ErrorCode = iota + 1
	CodeTooManyOrders
	CodeTooManyRows
	CodeTooManyChannels
)

// ConversionError is the core's single error type: a category+code pair
// plus a human-readable message, wrapping an inner error so callers can
// still errors.Is/errors.As through it.
type ConversionError struct {
	Category ErrorCategory
	Code     ErrorCode
	Message  string
	Err      error
}

func (e *ConversionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func newError(cat ErrorCategory, code ErrorCode, format string, args ...any) *ConversionError {
	return &ConversionError{Category: cat, Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(cat ErrorCategory, code ErrorCode, err error) *ConversionError {
	if err == nil {
		return nil
	}
	return &ConversionError{Category: cat, Code: code, Message: err.Error(), Err: err}
}

// Status accumulates the single error (if any) and the warnings produced by
// an import/convert/export call. The zero value is a clean status.
type Status struct {
	Err      error
	Warnings []string
}

// AddWarning appends an already formatted warning string (see the warn*
// builders below). It never fails the operation; warnings are advisory only.
func (s *Status) AddWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// SetError attaches the terminal error for this operation. Only the first
// call has effect, mirroring the source's "first error wins" status model.
func (s *Status) SetError(err error) {
	if s.Err == nil {
		s.Err = err
	}
}

func (s *Status) Failed() bool { return s.Err != nil }

// Representative warning message builders, kept as functions
// rather than bare strings so call sites can't typo a format placeholder.
func warnPitchHigh(ch int) string {
	return fmt.Sprintf("channel %d: note C-8 is not portable to MOD", ch)
}

func warnTempoLow(bpm float64) string {
	return fmt.Sprintf("tempo %.3f BPM is below the range MOD can represent; clamped", bpm)
}

func warnTempoHigh(bpm float64) string {
	return fmt.Sprintf("tempo %.3f BPM is above the range MOD can represent; clamped", bpm)
}

func warnTempoPrecision(wantBPM, gotBPM float64) string {
	return fmt.Sprintf("tempo %.3f BPM approximated as %.3f BPM", wantBPM, gotBPM)
}

func warnEffectIgnored(ch, row int, eff Effect) string {
	return fmt.Sprintf("channel %d row %d: effect %d (value %d) ignored, no free effect slot", ch, row, eff.Code, eff.Value)
}

func warnWaveDownsample(instrument int) string {
	return fmt.Sprintf("instrument %d: wavetable downsampled below 32 entries", instrument)
}

func warnMultipleEffects(ch, row int) string {
	return fmt.Sprintf("channel %d row %d: multiple effects present, only the highest priority was kept", ch, row)
}

func warnLoopbackInaccuracy(order int) string {
	return fmt.Sprintf("order %d: loopback could not be reproduced exactly in MOD", order)
}
