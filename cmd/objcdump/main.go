// Command objcdump extracts and prints Objective-C runtime metadata from a
// Mach-O image.
package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	clilog "github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/coredump-labs/objcmeta/decl"
	"github.com/coredump-labs/objcmeta/image"
	"github.com/coredump-labs/objcmeta/parser"
)

var (
	verbose bool
	addrs   bool
	arch    string
)

func main() {
	log.SetHandler(clilog.Default)

	root := &cobra.Command{
		Use:          "objcdump <macho-file>",
		Short:        "Dump Objective-C classes and protocols from a Mach-O image",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "decode method signatures instead of printing bare selectors")
	root.Flags().BoolVarP(&addrs, "addrs", "a", false, "annotate methods with their resolved implementation address")
	root.Flags().StringVar(&arch, "arch", "", "preferred architecture slice for fat binaries (arm64, x86_64)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	pref := image.CPUTypeAny
	switch arch {
	case "arm64":
		pref = image.CPUTypeArm64
	case "x86_64":
		pref = image.CPUTypeX8664
	}

	cat, err := parser.ParsePath(args[0], pref)
	if err != nil {
		if cat == nil {
			return fmt.Errorf("objcdump: %w", err)
		}
		log.WithError(err).Warn("objcdump: parse completed with warnings")
	}

	fmt.Print(decl.Catalog(cat, decl.Options{Verbose: verbose, Addrs: addrs}))
	return nil
}
