package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/graph"
	"github.com/depintel/depintel/pkg/metadata"
)

// Type identifies one of the six analysis kinds.
type Type string

const (
	TypeImpactScoring           Type = "impact_scoring"
	TypeCompatibilityPrediction Type = "compatibility_prediction"
	TypeConsolidation           Type = "dependency_consolidation"
	TypeHealthMonitoring        Type = "health_monitoring"
	TypeLicenseCompliance       Type = "license_compliance"
	TypePerformanceProfiling    Type = "performance_profiling"
)

// Types lists every analysis kind in a stable order.
func Types() []Type {
	return []Type{
		TypeImpactScoring,
		TypeCompatibilityPrediction,
		TypeConsolidation,
		TypeHealthMonitoring,
		TypeLicenseCompliance,
		TypePerformanceProfiling,
	}
}

// Valid reports whether t is a known analysis kind.
func (t Type) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// ErrInvalidConfiguration rejects an unknown analysis type or a malformed
// job configuration before any work starts.
var ErrInvalidConfiguration = errors.New("invalid analysis configuration")

// Severity grades a finding. SeverityUnknown is reserved for dependencies
// the analyzer could not assess at all.
type Severity string

const (
	SeverityHigh    Severity = "high"
	SeverityMedium  Severity = "medium"
	SeverityLow     Severity = "low"
	SeverityUnknown Severity = "unknown"
)

// Rank orders severities for comparison; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the more severe of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// JobConfig is the opaque per-job key/value configuration attached to an
// analysis submission, e.g. {"time_horizon_days": 90} or
// {"target_license": "apache-2.0"}.
type JobConfig map[string]interface{}

// IntValue reads an integer key, tolerating JSON's float64 decoding.
func (c JobConfig) IntValue(key string, fallback int) (int, error) {
	raw, ok := c[key]
	if !ok {
		return fallback, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidConfiguration, key, raw)
	}
}

// StringValue reads a string key.
func (c JobConfig) StringValue(key, fallback string) (string, error) {
	raw, ok := c[key]
	if !ok {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidConfiguration, key, raw)
	}
	return s, nil
}

// Result is the document a completed analysis produces. Summary carries the
// cheap aggregate figures dashboards need; Details the full per-dependency
// breakdown. Both are plain structured records that serialize losslessly.
type Result struct {
	Type    Type        `json:"type"`
	Summary interface{} `json:"summary"`
	Details interface{} `json:"details"`
}

// Suggestion is one actionable finding an analyzer extracts from its result,
// the raw material of the recommendation generator.
type Suggestion struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"` // e.g. "consolidation", "health", "license"
	Severity    Severity `json:"severity"`
	Dependency  string   `json:"dependency,omitempty"`
	FromVersion string   `json:"from_version,omitempty"`
	ToVersion   string   `json:"to_version,omitempty"`
}

// Analyzer is one stateless transform from (graph, metadata, config) to a
// typed result document. Implementations must not mutate the graph and must
// produce identical results for identical inputs.
type Analyzer interface {
	Type() Type

	// Run executes the analysis. Errors abort the job; degraded input data
	// is reported as unknown fields inside the result instead.
	Run(ctx context.Context, g *graph.DependencyGraph, provider metadata.Provider, jobCfg JobConfig) (*Result, error)

	// Suggestions extracts recommendation records from a result this
	// analyzer produced.
	Suggestions(result *Result) []Suggestion
}

// New returns the analyzer for a type, or ErrInvalidConfiguration for an
// unknown one. This is the engine's single dispatch point.
func New(t Type, cfg *config.Config) (Analyzer, error) {
	switch t {
	case TypeImpactScoring:
		return NewImpactScorer(cfg), nil
	case TypeCompatibilityPrediction:
		return NewCompatibilityPredictor(cfg), nil
	case TypeConsolidation:
		return NewConsolidationAnalyzer(cfg), nil
	case TypeHealthMonitoring:
		return NewHealthMonitor(cfg), nil
	case TypeLicenseCompliance:
		return NewLicenseChecker(cfg), nil
	case TypePerformanceProfiling:
		return NewPerformanceProfiler(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown analysis type %q", ErrInvalidConfiguration, t)
	}
}
