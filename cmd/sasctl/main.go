// sasctl is the command line front end for the analysis engine. It
// analyzes SAS source files locally, without a server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "sasctl",
	Short:         "Static analysis for SAS programs",
	Long:          "sasctl scans SAS source code and reports database and table usage,\nmacro dependencies, complexity metrics, and LLM-sized chunks.\nNo SAS installation is required and nothing is executed.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
