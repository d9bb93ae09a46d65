package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmf2mod/dmf2mod"
	"github.com/dmf2mod/dmf2mod/internal/options"
)

func newConvertCmd() *cobra.Command {
	var flags options.FlagSet

	cmd := &cobra.Command{
		Use:   "convert <input.dmf> <output.mod>",
		Short: "Convert a DMF module to a MOD file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(args[0], args[1], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.AllowArp, "arp", false, "allow arpeggio effects in output")
	cmd.Flags().BoolVar(&flags.AllowPort, "port", false, "allow portamento up/down effects")
	cmd.Flags().BoolVar(&flags.AllowPort2Note, "port2note", false, "allow port-to-note effects")
	cmd.Flags().BoolVar(&flags.AllowVibrato, "vib", false, "allow vibrato effects")
	cmd.Flags().StringVar(&flags.Tempo, "tempo", "accuracy", `tempo strategy: "accuracy" or "compat"`)
	cmd.Flags().BoolVar(&flags.AllowDownsample, "downsample", false, "consent to wavetable downsampling below 32 entries")

	return cmd
}

func runConvert(inPath, outPath string, flags options.FlagSet) error {
	if !globalForce {
		if _, err := os.Stat(outPath); err == nil {
			return fmt.Errorf("%s already exists, pass --force to overwrite", outPath)
		}
	}

	raw, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	opts, err := flags.Resolve()
	if err != nil {
		return err
	}

	dmfModule, err := dmf2mod.Create(dmf2mod.FormatDMF)
	if err != nil {
		return err
	}
	st, err := dmf2mod.Import(dmfModule, raw)
	printStatus(st)
	if err != nil {
		return err
	}

	modModule, st, err := dmf2mod.Convert(dmfModule, dmf2mod.FormatMOD, opts)
	printStatus(st)
	if err != nil {
		return err
	}

	out, st, err := dmf2mod.Export(modModule)
	printStatus(st)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return err
	}
	verbosef("wrote %d bytes to %s", len(out), outPath)
	return nil
}

func printStatus(st *dmf2mod.Status) {
	if st == nil {
		return
	}
	for _, w := range st.Warnings {
		fmt.Fprintln(os.Stderr, warnColor("warning: %s", w))
	}
}
