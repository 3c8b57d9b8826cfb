package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine tunables. Every weighting constant and threshold
// the analyzers use lives here so callers can override them per deployment
// instead of relying on the built-in defaults.
type Config struct {
	// Graph controls dependency graph construction.
	Graph struct {
		MaxDepth int `yaml:"maxDepth"` // transitive expansion bound
	} `yaml:"graph"`

	// Impact holds the weights of the impact score components. They must
	// sum to 1.0; Validate enforces this within a small tolerance.
	Impact struct {
		BusinessValueWeight float64 `yaml:"businessValueWeight"`
		UsageWeight         float64 `yaml:"usageWeight"`
		ComplexityWeight    float64 `yaml:"complexityWeight"`
		HealthWeight        float64 `yaml:"healthWeight"`
	} `yaml:"impact"`

	// Prediction controls the compatibility predictor.
	Prediction struct {
		HorizonDays         int     `yaml:"horizonDays"`         // forecast window
		ReleaseSampleSize   int     `yaml:"releaseSampleSize"`   // releases used for cadence
		MajorBumpsPerYear   float64 `yaml:"majorBumpsPerYear"`   // above this a predicted release is flagged major
		MinorVersionsBehind int     `yaml:"minorVersionsBehind"` // declared more than this behind latest emits a deprecation risk
	} `yaml:"prediction"`

	// Consolidation controls duplicate/bloat detection.
	Consolidation struct {
		BloatThreshold int `yaml:"bloatThreshold"` // direct dependants before a transitive node is flagged
	} `yaml:"consolidation"`

	// Health holds the health-score bucket boundaries.
	Health struct {
		HealthyThreshold float64 `yaml:"healthyThreshold"`
		AtRiskThreshold  float64 `yaml:"atRiskThreshold"`
		StaleAfterDays   int     `yaml:"staleAfterDays"` // staleness component floors at 0 past this
	} `yaml:"health"`

	// License holds compliance defaults.
	License struct {
		TargetLicense string `yaml:"targetLicense"`
	} `yaml:"license"`

	// Performance holds the profiler classification thresholds.
	Performance struct {
		LargeSharePercent  float64 `yaml:"largeSharePercent"`  // bundle share above this is Large
		MediumSharePercent float64 `yaml:"mediumSharePercent"` // bundle share above this is Medium
		HighRuntimeMs      float64 `yaml:"highRuntimeMs"`
		MediumRuntimeMs    float64 `yaml:"mediumRuntimeMs"`
	} `yaml:"performance"`

	// Orchestrator controls job execution.
	Orchestrator struct {
		MaxConcurrentJobs int           `yaml:"maxConcurrentJobs"` // per project
		JobTimeout        time.Duration `yaml:"jobTimeout"`
	} `yaml:"orchestrator"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	config := &Config{}

	config.Graph.MaxDepth = 4

	config.Impact.BusinessValueWeight = 0.35
	config.Impact.UsageWeight = 0.25
	config.Impact.ComplexityWeight = 0.15
	config.Impact.HealthWeight = 0.25

	config.Prediction.HorizonDays = 180
	config.Prediction.ReleaseSampleSize = 10
	config.Prediction.MajorBumpsPerYear = 1.0
	config.Prediction.MinorVersionsBehind = 2

	config.Consolidation.BloatThreshold = 3

	config.Health.HealthyThreshold = 0.7
	config.Health.AtRiskThreshold = 0.4
	config.Health.StaleAfterDays = 730

	config.License.TargetLicense = "mit"

	config.Performance.LargeSharePercent = 10.0
	config.Performance.MediumSharePercent = 5.0
	config.Performance.HighRuntimeMs = 10.0
	config.Performance.MediumRuntimeMs = 5.0

	config.Orchestrator.MaxConcurrentJobs = 5
	config.Orchestrator.JobTimeout = 2 * time.Minute

	return config
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	sum := c.Impact.BusinessValueWeight + c.Impact.UsageWeight +
		c.Impact.ComplexityWeight + c.Impact.HealthWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("impact weights must sum to 1.0, got %.3f", sum)
	}
	if c.Graph.MaxDepth < 1 {
		return fmt.Errorf("graph.maxDepth must be at least 1, got %d", c.Graph.MaxDepth)
	}
	if c.Prediction.HorizonDays < 1 {
		return fmt.Errorf("prediction.horizonDays must be positive, got %d", c.Prediction.HorizonDays)
	}
	if c.Orchestrator.MaxConcurrentJobs < 1 {
		return fmt.Errorf("orchestrator.maxConcurrentJobs must be positive, got %d", c.Orchestrator.MaxConcurrentJobs)
	}
	return nil
}

// LoadConfig loads the configuration from the specified file path.
// If no path is provided, it looks for .depintel.yaml in the current directory.
// A missing file yields the defaults, not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		configPath = ".depintel.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return config, nil
}

// FindAndLoadConfig searches for a config file in the project directory and its parents.
func FindAndLoadConfig(projectPath string) (*Config, error) {
	currentDir := projectPath
	for {
		configPath := filepath.Join(currentDir, ".depintel.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return LoadConfig(configPath)
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return DefaultConfig(), nil
}
