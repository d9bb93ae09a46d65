// Command dmf2mod converts Deflemask (.dmf) modules to ProTracker (.mod)
// files, and prints diagnostic info about .dmf files.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	warnColor  = color.New(color.FgYellow).SprintfFunc()
	errorColor = color.New(color.FgRed).SprintfFunc()
)

func main() {
	root := &cobra.Command{
		Use:           "dmf2mod",
		Short:         "Convert Deflemask modules to other tracker formats",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&globalForce, "force", false, "overwrite the output file if it exists")
	root.PersistentFlags().BoolVarP(&globalVerbose, "verbose", "v", false, "print diagnostic info to stderr")

	root.AddCommand(newConvertCmd())
	root.AddCommand(newInfoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor("dmf2mod: %v", err))
		os.Exit(1)
	}
}

var (
	globalForce   bool
	globalVerbose bool
)

func verbosef(format string, args ...any) {
	if globalVerbose {
		fmt.Fprintln(os.Stderr, fmt.Sprintf(format, args...))
	}
}
