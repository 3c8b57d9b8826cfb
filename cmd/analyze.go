package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/depintel/depintel/pkg/analyzer"
	"github.com/depintel/depintel/pkg/graph"
	"github.com/depintel/depintel/pkg/logger"
	"github.com/depintel/depintel/pkg/metadata"
	"github.com/depintel/depintel/pkg/orchestrator"
)

var (
	manifestPath  string
	snapshotPath  string
	analyzerNames []string

	horizonDays   int
	targetLicense string
	profileMode   string
)

// analyzeCmd represents the analyze subcommand
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run dependency analyzers over a project manifest",
	Long:  "Build the dependency graph from a manifest and metadata snapshot, run the selected analyzers as jobs, and print their results as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, g, provider, err := loadProject()
		if err != nil {
			return err
		}

		types, err := selectedTypes()
		if err != nil {
			return err
		}

		orch := orchestrator.New(cfg, provider)
		ctx := cmd.Context()

		for _, t := range types {
			jobID, err := orch.Submit(ctx, manifest.Project, t, g, jobConfigFor(t))
			if err != nil {
				return fmt.Errorf("failed to submit %s job: %w", t, err)
			}
			status, err := orch.Wait(ctx, jobID)
			if err != nil {
				return fmt.Errorf("failed waiting for %s job: %w", t, err)
			}
			if status.State == orchestrator.StateFailed {
				logger.Errorf("%s job failed: %s", t, status.Error)
				continue
			}

			result, err := orch.GetResult(jobID)
			if err != nil {
				return err
			}
			if err := printResult(result); err != nil {
				return err
			}
		}
		return nil
	},
}

// loadProject builds the dependency graph from the manifest and metadata
// snapshot flags.
func loadProject() (*graph.Manifest, *graph.DependencyGraph, metadata.Provider, error) {
	manifest, err := graph.LoadManifest(manifestPath)
	if err != nil {
		return nil, nil, nil, err
	}

	provider, err := metadata.LoadSnapshot(snapshotPath)
	if err != nil {
		return nil, nil, nil, err
	}

	builder := graph.NewBuilder(provider).WithMaxDepth(cfg.Graph.MaxDepth)
	g, err := builder.Build(manifest.Dependencies)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	logger.Infof("built dependency graph for %s: %d dependencies (%d direct)",
		manifest.Project, g.Size(), len(g.Direct()))
	return manifest, g, provider, nil
}

// selectedTypes resolves the --analyzers flag, defaulting to all analyzers.
func selectedTypes() ([]analyzer.Type, error) {
	if len(analyzerNames) == 0 {
		return analyzer.Types(), nil
	}
	types := make([]analyzer.Type, 0, len(analyzerNames))
	for _, name := range analyzerNames {
		t := analyzer.Type(strings.TrimSpace(name))
		if !t.Valid() {
			return nil, fmt.Errorf("unknown analyzer %q (known: %s)", name, joinTypes(analyzer.Types()))
		}
		types = append(types, t)
	}
	return types, nil
}

func joinTypes(types []analyzer.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// jobConfigFor maps the tuning flags onto the job config of each analyzer.
func jobConfigFor(t analyzer.Type) analyzer.JobConfig {
	jobCfg := analyzer.JobConfig{}
	switch t {
	case analyzer.TypeCompatibilityPrediction:
		if horizonDays > 0 {
			jobCfg["time_horizon_days"] = horizonDays
		}
	case analyzer.TypeLicenseCompliance:
		if targetLicense != "" {
			jobCfg["target_license"] = targetLicense
		}
	case analyzer.TypePerformanceProfiling:
		if profileMode != "" {
			jobCfg["mode"] = profileMode
		}
	}
	return jobCfg
}

func printResult(result *analyzer.Result) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s result to JSON: %w", result.Type, err)
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "depintel.json", "Path to the project manifest")
	analyzeCmd.Flags().StringVarP(&snapshotPath, "snapshot", "s", "metadata.json", "Path to the package metadata snapshot")
	analyzeCmd.Flags().StringSliceVarP(&analyzerNames, "analyzers", "a", nil, "Analyzers to run (default: all)")
	analyzeCmd.Flags().IntVar(&horizonDays, "time-horizon-days", 0, "Prediction horizon for compatibility analysis")
	analyzeCmd.Flags().StringVar(&targetLicense, "target-license", "", "Target license for compliance checks")
	analyzeCmd.Flags().StringVar(&profileMode, "profile-mode", "", "Performance profiling mode: bundle_size or runtime")
}
