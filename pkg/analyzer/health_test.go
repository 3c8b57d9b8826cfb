package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/metadata"
)

func TestHealthMonitorBuckets(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "fresh", Ecosystem: "npm", LatestVersion: "1.2.0",
		Health: metadata.HealthSignals{
			ContributorActivity: metadata.Float(0.9),
			IssueResponsiveness: metadata.Float(0.9),
		},
	}, cadence(5, 30, 10))
	snap.Add(&metadata.PackageMetadata{
		Name: "stale", Ecosystem: "npm", LatestVersion: "0.3.0",
		Health: metadata.HealthSignals{
			ContributorActivity: metadata.Float(0.2),
			IssueResponsiveness: metadata.Float(0.2),
		},
	}, []metadata.Release{release("0.3.0", 800)})
	snap.Add(&metadata.PackageMetadata{
		Name: "dead", Ecosystem: "npm", LatestVersion: "2.0.0", Deprecated: true,
		Health: metadata.HealthSignals{
			ContributorActivity: metadata.Float(0.9),
			IssueResponsiveness: metadata.Float(0.9),
		},
	}, cadence(3, 30, 5))

	g := buildGraph(t, snap, declare("fresh", "stale", "dead"))

	monitor := NewHealthMonitor(config.DefaultConfig())
	monitor.now = fixedNow

	result, err := monitor.Run(context.Background(), g, snap, nil)
	require.NoError(t, err)

	details := result.Details.(*HealthDetails)
	require.Len(t, details.Reports, 3)

	byName := map[string]HealthReport{}
	for _, report := range details.Reports {
		byName[report.Name] = report
	}

	assert.Equal(t, BucketHealthy, byName["fresh"].Bucket)
	assert.Equal(t, "active", byName["fresh"].MaintenanceStatus)
	assert.Equal(t, 10, byName["fresh"].DaysSinceRelease)

	assert.Equal(t, BucketAtRisk, byName["stale"].Bucket)
	assert.Equal(t, "abandoned", byName["stale"].MaintenanceStatus)
	assert.Contains(t, byName["stale"].RiskFactors, "outdated")

	// A deprecation flag caps the score regardless of the other signals.
	assert.True(t, byName["dead"].HealthScore <= 0.1)
	assert.Equal(t, BucketAtRisk, byName["dead"].Bucket)
	assert.Contains(t, byName["dead"].RiskFactors, "deprecated")
	assert.True(t, byName["dead"].Deprecated)

	summary := result.Summary.(*HealthSummary)
	assert.Equal(t, 3, summary.DependencyCount)
	assert.Equal(t, 1, summary.Distribution[BucketHealthy])
	assert.Equal(t, 2, summary.Distribution[BucketAtRisk])
	assert.Equal(t, 1, summary.DeprecatedCount)
}

func TestHealthMonitorUnknownSignals(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "opaque", Ecosystem: "npm", LatestVersion: "1.0.0",
	}, nil)

	g := buildGraph(t, snap, declare("opaque"))

	monitor := NewHealthMonitor(config.DefaultConfig())
	monitor.now = fixedNow

	result, err := monitor.Run(context.Background(), g, snap, nil)
	require.NoError(t, err)

	report := result.Details.(*HealthDetails).Reports[0]
	// Every unknown component contributes the neutral 0.5, landing the
	// package in the moderate bucket rather than at either extreme.
	assert.InDelta(t, 0.5, report.HealthScore, 0.01)
	assert.Equal(t, BucketModerate, report.Bucket)
	assert.Equal(t, -1, report.DaysSinceRelease)
	assert.Contains(t, report.RiskFactors, "no_release_history")
}

func TestHealthMonitorSuggestsAlternative(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "axios", Ecosystem: "npm", LatestVersion: "1.6.0", Category: "http-client",
		Health: metadata.HealthSignals{
			ContributorActivity: metadata.Float(0.9),
			IssueResponsiveness: metadata.Float(0.9),
		},
	}, cadence(6, 30, 7))
	snap.Add(&metadata.PackageMetadata{
		Name: "request", Ecosystem: "npm", LatestVersion: "2.88.0", Category: "http-client", Deprecated: true,
	}, []metadata.Release{release("2.88.0", 900)})

	g := buildGraph(t, snap, declare("axios", "request"))

	monitor := NewHealthMonitor(config.DefaultConfig())
	monitor.now = fixedNow

	result, err := monitor.Run(context.Background(), g, snap, nil)
	require.NoError(t, err)

	details := result.Details.(*HealthDetails)
	for _, report := range details.Reports {
		if report.Name == "request" {
			assert.Equal(t, "axios", report.Alternative)
		}
	}

	suggestions := monitor.Suggestions(result)
	require.NotEmpty(t, suggestions)
	found := false
	for _, s := range suggestions {
		if s.Dependency == "request" {
			found = true
			assert.Equal(t, SeverityHigh, s.Severity)
			assert.Equal(t, "health", s.Category)
			assert.Contains(t, s.Description, "axios")
		}
	}
	assert.True(t, found, "expected a suggestion for the at-risk dependency")
}

func TestHealthMonitorCancelled(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{Name: "a", Ecosystem: "npm", LatestVersion: "1.0.0"}, nil)
	g := buildGraph(t, snap, declare("a"))

	monitor := NewHealthMonitor(config.DefaultConfig())
	monitor.now = fixedNow

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := monitor.Run(ctx, g, snap, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
