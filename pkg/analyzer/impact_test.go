package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/metadata"
)

func TestImpactScorerScoresDirectOnly(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "web", Ecosystem: "npm", LatestVersion: "1.0.0",
		Requirements: map[string]string{"util": "^1.0.0"},
	}, nil)
	snap.Add(&metadata.PackageMetadata{
		Name: "util", Ecosystem: "npm", LatestVersion: "1.1.0",
	}, nil)

	g := buildGraph(t, snap, declare("web"))
	require.Equal(t, 2, g.Size())

	scorer := NewImpactScorer(config.DefaultConfig())
	scorer.now = fixedNow

	result, err := scorer.Run(context.Background(), g, snap, nil)
	require.NoError(t, err)

	details := result.Details.(*ImpactDetails)
	require.Len(t, details.Scores, 1)
	assert.Equal(t, "web", details.Scores[0].Name)

	summary := result.Summary.(*ImpactSummary)
	assert.Equal(t, 1, summary.DependencyCount)
}

func TestImpactScoreRisesWithWorseHealth(t *testing.T) {
	build := func(contributors float64) *ImpactScore {
		snap := metadata.NewSnapshot()
		snap.Add(&metadata.PackageMetadata{
			Name: "lib", Ecosystem: "npm", LatestVersion: "1.0.0",
			UsedFeatures:   []string{"get", "post"},
			UnusedFeatures: []string{"ws"},
			UsageScore:     metadata.Float(0.8),
			Health: metadata.HealthSignals{
				ContributorActivity: metadata.Float(contributors),
				IssueResponsiveness: metadata.Float(contributors),
			},
		}, cadence(4, 30, 10))

		g := buildGraph(t, snap, declare("lib"))
		scorer := NewImpactScorer(config.DefaultConfig())
		scorer.now = fixedNow

		result, err := scorer.Run(context.Background(), g, snap, nil)
		require.NoError(t, err)
		return &result.Details.(*ImpactDetails).Scores[0]
	}

	healthy := build(0.9)
	unhealthy := build(0.1)

	// The health component is inverted: a sicker dependency is a bigger
	// risk, so its overall impact must come out strictly higher.
	assert.Greater(t, unhealthy.OverallScore, healthy.OverallScore)
	assert.Less(t, unhealthy.HealthScore, healthy.HealthScore)
}

func TestImpactUnknownSignalsStayNeutral(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "mystery", Ecosystem: "npm", LatestVersion: "1.0.0",
	}, nil)

	g := buildGraph(t, snap, declare("mystery"))
	scorer := NewImpactScorer(config.DefaultConfig())
	scorer.now = fixedNow

	result, err := scorer.Run(context.Background(), g, snap, nil)
	require.NoError(t, err)

	score := result.Details.(*ImpactDetails).Scores[0]
	assert.InDelta(t, 0.5, score.BusinessValueScore, 0.01)
	assert.InDelta(t, 0.5, score.UsageScore, 0.01)
}

func TestImpactSuggestionsFlagLowUsage(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "barely-used", Ecosystem: "npm", LatestVersion: "1.0.0",
		UsageScore: metadata.Float(0.2),
	}, nil)

	g := buildGraph(t, snap, declare("barely-used"))
	scorer := NewImpactScorer(config.DefaultConfig())
	scorer.now = fixedNow

	result, err := scorer.Run(context.Background(), g, snap, nil)
	require.NoError(t, err)

	summary := result.Summary.(*ImpactSummary)
	assert.Equal(t, 1, summary.LowUsageCount)

	suggestions := scorer.Suggestions(result)
	found := false
	for _, s := range suggestions {
		if s.Category == "usage" && s.Dependency == "barely-used" {
			found = true
			assert.Equal(t, SeverityMedium, s.Severity)
		}
	}
	assert.True(t, found, "expected a low-usage suggestion")
}

func TestImpactRankingIsStable(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "core", Ecosystem: "npm", LatestVersion: "1.0.0",
		UsedFeatures: []string{"a", "b", "c", "d"},
		UsageScore:   metadata.Float(0.95),
	}, nil)
	snap.Add(&metadata.PackageMetadata{
		Name: "extra", Ecosystem: "npm", LatestVersion: "1.0.0",
		UsedFeatures:   []string{"a"},
		UnusedFeatures: []string{"b", "c", "d"},
		UsageScore:     metadata.Float(0.1),
	}, nil)

	g := buildGraph(t, snap, declare("core", "extra"))
	scorer := NewImpactScorer(config.DefaultConfig())
	scorer.now = fixedNow

	first, err := scorer.Run(context.Background(), g, snap, nil)
	require.NoError(t, err)
	second, err := scorer.Run(context.Background(), g, snap, nil)
	require.NoError(t, err)

	// Same input, same output: ranking must not depend on map iteration.
	assert.Equal(t, first.Details.(*ImpactDetails).Scores, second.Details.(*ImpactDetails).Scores)
	assert.Equal(t, "core", first.Details.(*ImpactDetails).Scores[0].Name)
}
