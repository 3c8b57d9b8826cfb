package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/logger"
)

// Version is set during build using ldflags
var Version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "depintel",
	Short:   "Analyzes project dependencies for impact, health, and risk",
	Long:    `depintel builds a dependency graph from a project manifest and runs analyzers for business impact, compatibility trajectory, consolidation opportunities, maintenance health, license compliance, and performance cost, then merges the findings into ranked recommendations.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetVerbose(verbose)
		var err error
		if configPath != "" {
			cfg, err = config.LoadConfig(configPath)
		} else {
			cfg, err = config.FindAndLoadConfig(".")
		}
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a configuration file")
}
