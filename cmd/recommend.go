package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/depintel/depintel/pkg/analyzer"
	"github.com/depintel/depintel/pkg/logger"
	"github.com/depintel/depintel/pkg/orchestrator"
	"github.com/depintel/depintel/pkg/output"
	"github.com/depintel/depintel/pkg/recommend"
)

var (
	recommendFormat string // output format: text, json, or sarif
	outputFile      string
)

// recommendCmd represents the recommend subcommand
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Generate ranked recommendations from all analyzers",
	Long:  "Run every analyzer over the project, merge their findings, and print a deduplicated recommendation list ranked by severity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, g, provider, err := loadProject()
		if err != nil {
			return err
		}

		orch := orchestrator.New(cfg, provider)
		ctx := cmd.Context()

		for _, t := range analyzer.Types() {
			jobID, err := orch.Submit(ctx, manifest.Project, t, g, jobConfigFor(t))
			if err != nil {
				return fmt.Errorf("failed to submit %s job: %w", t, err)
			}
			status, err := orch.Wait(ctx, jobID)
			if err != nil {
				return fmt.Errorf("failed waiting for %s job: %w", t, err)
			}
			if status.State == orchestrator.StateFailed {
				logger.Warnf("%s job failed and is excluded from recommendations: %s", t, status.Error)
			}
		}

		report, err := recommend.NewGenerator(cfg).Generate(manifest.Project, orch.LatestResults(manifest.Project))
		if err != nil {
			return fmt.Errorf("failed to generate recommendations: %w", err)
		}

		return writeReport(report)
	},
}

func writeReport(report *recommend.Report) error {
	switch recommendFormat {
	case "text":
		out := os.Stdout
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}
		output.PrintTextReport(out, report)
		return nil
	case "json":
		data, err := output.GenerateJSONReport(report)
		if err != nil {
			return fmt.Errorf("failed to generate JSON report: %w", err)
		}
		return emit(data)
	case "sarif":
		data, err := output.GenerateSarifReport(report, manifestPath)
		if err != nil {
			return fmt.Errorf("failed to generate SARIF report: %w", err)
		}
		return emit(data)
	default:
		return fmt.Errorf("unknown output format %q (known: text, json, sarif)", recommendFormat)
	}
}

func emit(data []byte) error {
	if outputFile == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	logger.Infof("report written to %s", outputFile)
	return nil
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "depintel.json", "Path to the project manifest")
	recommendCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "metadata.json", "Path to the package metadata snapshot")
	recommendCmd.Flags().StringVarP(&recommendFormat, "format", "f", "text", "Output format: text, json, or sarif")
	recommendCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the report to a file instead of stdout")
	recommendCmd.Flags().IntVar(&horizonDays, "time-horizon-days", 0, "Prediction horizon for compatibility analysis")
	recommendCmd.Flags().StringVar(&targetLicense, "target-license", "", "Target license for compliance checks")
	recommendCmd.Flags().StringVar(&profileMode, "profile-mode", "", "Performance profiling mode: bundle_size or runtime")
}
