package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmf2mod/dmf2mod"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print structural information about a DMF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
}

func runInfo(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".dmf":
		return printDMFInfo(raw)
	default:
		return fmt.Errorf("unsupported file %q (only .dmf is inspectable)", path)
	}
}

func printDMFInfo(raw []byte) error {
	mod, err := dmf2mod.Create(dmf2mod.FormatDMF)
	if err != nil {
		return err
	}
	st, err := dmf2mod.Import(mod, raw)
	printStatus(st)
	if err != nil {
		return err
	}

	dmfMod := mod.(*dmf2mod.DMFModule)
	fmt.Printf("Title:    %s\n", dmfMod.Title)
	fmt.Printf("Author:   %s\n", dmfMod.Author)
	fmt.Printf("Version:  %d\n", dmfMod.Version)
	fmt.Printf("System:   %s\n", dmfMod.Sys)
	fmt.Printf("Orders:   %d\n", dmfMod.OrdersCount)
	fmt.Printf("Rows:     %d per pattern\n", dmfMod.RowsPerPattern)
	fmt.Printf("Channels: %d\n", dmfMod.Sys.Channels())
	fmt.Printf("Instruments: %d, Wavetables: %d, PCM samples: %d\n",
		len(dmfMod.Instruments), len(dmfMod.Wavetables), len(dmfMod.PCMSamples))
	return nil
}
