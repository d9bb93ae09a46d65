// Package options turns the command line's string and bool flags into the
// typed dmf2mod.ConversionOptions value the core consumes, the same
// flag-to-typed-value split the original cmd/internal/config package used
// for reverb settings.
package options

import (
	"fmt"

	"github.com/dmf2mod/dmf2mod"
)

// TempoStrategyFromFlag parses the --tempo flag value into a
// dmf2mod.TempoStrategy.
func TempoStrategyFromFlag(value string) (dmf2mod.TempoStrategy, error) {
	switch value {
	case "", "accuracy":
		return dmf2mod.TempoAccuracy, nil
	case "compat":
		return dmf2mod.TempoCompat, nil
	default:
		return 0, fmt.Errorf("unrecognized tempo strategy %q", value)
	}
}

// FlagSet is the raw set of effect/tempo/downsample flag values a cobra
// command collects before they are resolved into ConversionOptions.
type FlagSet struct {
	AllowArp        bool
	AllowPort       bool
	AllowPort2Note  bool
	AllowVibrato    bool
	Tempo           string
	AllowDownsample bool
}

// Resolve turns a FlagSet into a dmf2mod.ConversionOptions, the MOD-output
// counterpart of ReverbFromFlag.
func (f FlagSet) Resolve() (dmf2mod.ConversionOptions, error) {
	strategy, err := TempoStrategyFromFlag(f.Tempo)
	if err != nil {
		return dmf2mod.ConversionOptions{}, err
	}
	return dmf2mod.ConversionOptions{
		AllowArp:        f.AllowArp,
		AllowPort:       f.AllowPort,
		AllowPort2Note:  f.AllowPort2Note,
		AllowVibrato:    f.AllowVibrato,
		Tempo:           strategy,
		AllowDownsample: f.AllowDownsample,
	}, nil
}
