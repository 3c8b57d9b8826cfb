package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/metadata"
)

func TestPerformanceBundleShares(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "heavy", Ecosystem: "npm", LatestVersion: "1.0.0",
		Size: metadata.SizeMetrics{GzippedBytes: 880_000},
	}, nil)
	snap.Add(&metadata.PackageMetadata{
		Name: "middling", Ecosystem: "npm", LatestVersion: "1.0.0",
		Size: metadata.SizeMetrics{GzippedBytes: 80_000},
	}, nil)
	snap.Add(&metadata.PackageMetadata{
		Name: "tiny", Ecosystem: "npm", LatestVersion: "1.0.0",
		Size: metadata.SizeMetrics{GzippedBytes: 40_000},
	}, nil)

	g := buildGraph(t, snap, declare("heavy", "middling", "tiny"))
	profiler := NewPerformanceProfiler(config.DefaultConfig())

	result, err := profiler.Run(context.Background(), g, snap, nil)
	require.NoError(t, err)

	summary := result.Summary.(*PerformanceSummary)
	assert.Equal(t, ModeBundleSize, summary.Mode)
	assert.Equal(t, int64(1_000_000), summary.TotalGzipBytes)
	assert.Equal(t, 3, summary.MeasuredCount)
	assert.Equal(t, 1, summary.ImpactCounts[BundleLarge])
	assert.Equal(t, 1, summary.ImpactCounts[BundleMedium])
	assert.Equal(t, 1, summary.ImpactCounts[BundleSmall])

	entries := result.Details.(*PerformanceDetails).Bundle
	require.Len(t, entries, 3)
	// Largest contributor first.
	assert.Equal(t, "heavy", entries[0].Name)
	assert.Equal(t, BundleLarge, entries[0].Impact)
	assert.InDelta(t, 88.0, entries[0].SharePercent, 0.01)
	assert.Equal(t, BundleMedium, entries[1].Impact)
	assert.Equal(t, BundleSmall, entries[2].Impact)
}

func TestPerformanceBundleIncludesTransitives(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "app", Ecosystem: "npm", LatestVersion: "1.0.0",
		Size:         metadata.SizeMetrics{GzippedBytes: 10_000},
		Requirements: map[string]string{"dep": "^1.0.0"},
	}, nil)
	snap.Add(&metadata.PackageMetadata{
		Name: "dep", Ecosystem: "npm", LatestVersion: "1.0.0",
		Size: metadata.SizeMetrics{GzippedBytes: 90_000},
	}, nil)

	g := buildGraph(t, snap, declare("app"))
	profiler := NewPerformanceProfiler(config.DefaultConfig())

	result, err := profiler.Run(context.Background(), g, snap, JobConfig{"mode": ModeBundleSize})
	require.NoError(t, err)

	entries := result.Details.(*PerformanceDetails).Bundle
	require.Len(t, entries, 2)
	assert.Equal(t, "dep", entries[0].Name)
	assert.False(t, entries[0].Direct)
	assert.Equal(t, BundleLarge, entries[0].Impact)
}

func TestPerformanceRuntimeDirectOnly(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "slow", Ecosystem: "npm", LatestVersion: "1.0.0",
		Size:         metadata.SizeMetrics{RuntimeMs: 12.5, StartupMs: 40, MemoryMB: 18},
		Requirements: map[string]string{"hidden": "^1.0.0"},
	}, nil)
	snap.Add(&metadata.PackageMetadata{
		Name: "warm", Ecosystem: "npm", LatestVersion: "1.0.0",
		Size: metadata.SizeMetrics{RuntimeMs: 7},
	}, nil)
	snap.Add(&metadata.PackageMetadata{
		Name: "quick", Ecosystem: "npm", LatestVersion: "1.0.0",
		Size: metadata.SizeMetrics{RuntimeMs: 1},
	}, nil)
	snap.Add(&metadata.PackageMetadata{
		Name: "hidden", Ecosystem: "npm", LatestVersion: "1.0.0",
		Size: metadata.SizeMetrics{RuntimeMs: 50},
	}, nil)

	g := buildGraph(t, snap, declare("slow", "warm", "quick"))
	profiler := NewPerformanceProfiler(config.DefaultConfig())

	result, err := profiler.Run(context.Background(), g, snap, JobConfig{"mode": ModeRuntime})
	require.NoError(t, err)

	entries := result.Details.(*PerformanceDetails).Runtime
	// Runtime attribution only makes sense for packages the project calls
	// directly, so the transitive one stays out.
	require.Len(t, entries, 3)
	assert.Equal(t, "slow", entries[0].Name)
	assert.Equal(t, SeverityHigh, entries[0].Severity)
	assert.Equal(t, "warm", entries[1].Name)
	assert.Equal(t, SeverityMedium, entries[1].Severity)
	assert.Equal(t, "quick", entries[2].Name)
	assert.Equal(t, SeverityLow, entries[2].Severity)

	summary := result.Summary.(*PerformanceSummary)
	assert.Equal(t, ModeRuntime, summary.Mode)
	assert.InDelta(t, 20.5, summary.TotalRuntimeMs, 0.01)

	suggestions := profiler.Suggestions(result)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "slow", suggestions[0].Dependency)
}

func TestPerformanceUnknownMode(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{Name: "a", Ecosystem: "npm", LatestVersion: "1.0.0"}, nil)
	g := buildGraph(t, snap, declare("a"))

	profiler := NewPerformanceProfiler(config.DefaultConfig())
	_, err := profiler.Run(context.Background(), g, snap, JobConfig{"mode": "startup"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
