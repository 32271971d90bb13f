package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codemorph-io/sas-engine/pkg/analyzer"
	"github.com/codemorph-io/sas-engine/pkg/logging"
	"github.com/codemorph-io/sas-engine/pkg/models"
)

var (
	databaseOnly   bool
	outputPath     string
	outputFormat   string
	maxChunkTokens int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a SAS source file",
	Long:  "Analyze a SAS source file and print the report. With no file\nargument the source is read from stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := readSource(args)
		if err != nil {
			return err
		}

		report, err := analyzer.Analyze(source, analyzer.Options{
			DatabasesOnly:  databaseOnly,
			MaxChunkTokens: maxChunkTokens,
		})
		if err != nil {
			return err
		}
		logging.SanitizeReport(report)

		rendered, err := renderReport(report, outputFormat, databaseOnly)
		if err != nil {
			return err
		}

		if outputPath != "" {
			return os.WriteFile(outputPath, rendered, 0o644)
		}
		_, err = cmd.OutOrStdout().Write(rendered)
		return err
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&databaseOnly, "database-only", false, "report only database and table usage")
	analyzeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report to a file instead of stdout")
	analyzeCmd.Flags().StringVar(&outputFormat, "format", "json", "report format: json or yaml")
	analyzeCmd.Flags().IntVar(&maxChunkTokens, "max-chunk-tokens", 0, "token budget per chunk (0 uses the default)")
	rootCmd.AddCommand(analyzeCmd)
}

func readSource(args []string) (string, error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read %s: %w", args[0], err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// renderReport serializes the report. With database-only the output is
// just the databases array, not the full report shell.
func renderReport(report *models.AnalysisReport, format string, databaseOnly bool) ([]byte, error) {
	var payload interface{} = report
	if databaseOnly {
		payload = report.Databases
	}

	switch format {
	case "json":
		return json.MarshalIndent(payload, "", "  ")
	case "yaml":
		return yaml.Marshal(payload)
	default:
		return nil, fmt.Errorf("unknown format %q: use json or yaml", format)
	}
}
