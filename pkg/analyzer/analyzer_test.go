package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/metadata"
)

func TestNewDispatchesEveryType(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, typ := range Types() {
		a, err := New(typ, cfg)
		require.NoError(t, err, "type %s", typ)
		assert.Equal(t, typ, a.Type())
	}

	_, err := New(Type("palm_reading"), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestAnalyzersAreIdempotent(t *testing.T) {
	snap := metadata.NewSnapshot()
	snap.Add(&metadata.PackageMetadata{
		Name: "axios", Ecosystem: "npm", LatestVersion: "1.6.0", Category: "http-client",
		Licenses:     []string{"MIT"},
		UsedFeatures: []string{"get", "post"},
		UsageScore:   metadata.Float(0.8),
		Requirements: map[string]string{"follow-redirects": "^1.15.0"},
		Health: metadata.HealthSignals{
			ContributorActivity: metadata.Float(0.9),
			IssueResponsiveness: metadata.Float(0.8),
		},
		Size: metadata.SizeMetrics{GzippedBytes: 120_000},
	}, cadence(6, 30, 15))
	snap.Add(&metadata.PackageMetadata{
		Name: "got", Ecosystem: "npm", LatestVersion: "13.0.0", Category: "http-client",
		Licenses:   []string{"GPL-3.0"},
		Deprecated: true,
		Size:       metadata.SizeMetrics{GzippedBytes: 40_000},
	}, []metadata.Release{release("13.0.0", 500)})
	snap.Add(&metadata.PackageMetadata{
		Name: "follow-redirects", Ecosystem: "npm", LatestVersion: "1.15.4",
		Licenses: []string{"MIT"},
		Size:     metadata.SizeMetrics{GzippedBytes: 6_000},
	}, cadence(4, 45, 20))

	g := buildGraph(t, snap, declare("axios", "got"))
	cfg := config.DefaultConfig()

	for _, typ := range Types() {
		first := newFixedClockAnalyzer(t, typ, cfg)
		second := newFixedClockAnalyzer(t, typ, cfg)

		r1, err := first.Run(context.Background(), g, snap, nil)
		require.NoError(t, err, "type %s", typ)
		r2, err := second.Run(context.Background(), g, snap, nil)
		require.NoError(t, err, "type %s", typ)

		assert.Equal(t, r1, r2, "type %s", typ)
		assert.Equal(t, first.Suggestions(r1), second.Suggestions(r2), "type %s", typ)
	}
}

func newFixedClockAnalyzer(t *testing.T, typ Type, cfg *config.Config) Analyzer {
	t.Helper()
	a, err := New(typ, cfg)
	require.NoError(t, err)
	switch impl := a.(type) {
	case *ImpactScorer:
		impl.now = fixedNow
	case *CompatibilityPredictor:
		impl.now = fixedNow
	case *ConsolidationAnalyzer:
		impl.now = fixedNow
	case *HealthMonitor:
		impl.now = fixedNow
	case *LicenseChecker:
		impl.now = fixedNow
	case *PerformanceProfiler:
		impl.now = fixedNow
	}
	return a
}

func TestSeverityOrdering(t *testing.T) {
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityLow, SeverityHigh))
	assert.Equal(t, SeverityHigh, MaxSeverity(SeverityHigh, SeverityMedium))
	assert.Equal(t, SeverityMedium, MaxSeverity(SeverityUnknown, SeverityMedium))
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Greater(t, SeverityLow.Rank(), SeverityUnknown.Rank())
}

func TestJobConfigValues(t *testing.T) {
	jobCfg := JobConfig{
		"days":   float64(90), // JSON numbers decode as float64
		"weeks":  12,
		"target": "apache-2.0",
	}

	days, err := jobCfg.IntValue("days", 180)
	require.NoError(t, err)
	assert.Equal(t, 90, days)

	weeks, err := jobCfg.IntValue("weeks", 1)
	require.NoError(t, err)
	assert.Equal(t, 12, weeks)

	missing, err := jobCfg.IntValue("absent", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, missing)

	target, err := jobCfg.StringValue("target", "mit")
	require.NoError(t, err)
	assert.Equal(t, "apache-2.0", target)

	_, err = jobCfg.IntValue("target", 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = jobCfg.StringValue("days", "")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
