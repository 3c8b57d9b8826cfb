package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depintel/depintel/pkg/analyzer"
	"github.com/depintel/depintel/pkg/config"
)

func TestGenerateEmptyWithoutResults(t *testing.T) {
	gen := NewGenerator(config.DefaultConfig())

	report, err := gen.Generate("storefront", nil)
	require.NoError(t, err)
	assert.Equal(t, "storefront", report.ProjectID)
	assert.NotNil(t, report.Recommendations)
	assert.Empty(t, report.Recommendations)
	assert.Empty(t, report.AnalyzersUsed)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestGenerateMergesAndRanks(t *testing.T) {
	gen := NewGenerator(config.DefaultConfig())

	results := map[analyzer.Type]*analyzer.Result{
		analyzer.TypeHealthMonitoring: {
			Type: analyzer.TypeHealthMonitoring,
			Details: &analyzer.HealthDetails{Reports: []analyzer.HealthReport{
				{Name: "request", Bucket: "at_risk", MaintenanceStatus: "abandoned", HealthScore: 0.1},
				{Name: "left-pad", Bucket: "moderate", MaintenanceStatus: "minimal", HealthScore: 0.5},
			}},
		},
		analyzer.TypeLicenseCompliance: {
			Type: analyzer.TypeLicenseCompliance,
			Details: &analyzer.LicenseDetails{Findings: []analyzer.LicenseFinding{
				{Name: "copyleft", RiskLevel: analyzer.SeverityHigh, Issue: "GPL-3.0 conflicts with the mit target license"},
			}},
		},
	}

	report, err := gen.Generate("storefront", results)
	require.NoError(t, err)

	require.Len(t, report.Recommendations, 3)
	assert.Len(t, report.AnalyzersUsed, 2)

	// Highest severity first, ties broken by dependency name.
	assert.Equal(t, analyzer.SeverityHigh, report.Recommendations[0].Severity)
	assert.Equal(t, "copyleft", report.Recommendations[0].Dependency)
	assert.Equal(t, analyzer.SeverityHigh, report.Recommendations[1].Severity)
	assert.Equal(t, "request", report.Recommendations[1].Dependency)
	assert.Equal(t, analyzer.SeverityMedium, report.Recommendations[2].Severity)
	assert.Equal(t, "left-pad", report.Recommendations[2].Dependency)

	assert.Equal(t, 2, report.SeverityCounts["high"])
	assert.Equal(t, 1, report.SeverityCounts["medium"])
	assert.Equal(t, analyzer.TypeHealthMonitoring, report.Recommendations[1].Source)
}

func TestGenerateDeduplicatesByDependencyAndCategory(t *testing.T) {
	gen := NewGenerator(config.DefaultConfig())

	// The same dependency shows up in two consolidation passes; only the
	// higher-severity item survives.
	results := map[analyzer.Type]*analyzer.Result{
		analyzer.TypeConsolidation: {
			Type: analyzer.TypeConsolidation,
			Details: &analyzer.ConsolidationDetails{
				Duplicates: []analyzer.DuplicateGroup{
					{Category: "http-client", Keep: "axios", Remove: []string{"got"}, Reason: "axios covers the most used features (5) in the http-client category"},
				},
				Bloat: []analyzer.BloatFinding{
					{Name: "axios", Depth: 2, DirectDependants: 4, Chain: []string{"a", "b", "axios"}},
				},
			},
		},
	}

	report, err := gen.Generate("storefront", results)
	require.NoError(t, err)

	require.Len(t, report.Recommendations, 1)
	item := report.Recommendations[0]
	assert.Equal(t, "axios", item.Dependency)
	assert.Equal(t, "consolidation", item.Category)
	assert.Equal(t, analyzer.SeverityMedium, item.Severity)
}
