package analyzer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/graph"
	"github.com/depintel/depintel/pkg/logger"
	"github.com/depintel/depintel/pkg/metadata"
)

// Health buckets.
const (
	BucketHealthy  = "healthy"
	BucketModerate = "moderate"
	BucketAtRisk   = "at_risk"
)

// HealthReport is the per-dependency breakdown of a health analysis.
type HealthReport struct {
	Name              string   `json:"name"`
	Ecosystem         string   `json:"ecosystem"`
	Version           string   `json:"version,omitempty"`
	Direct            bool     `json:"is_direct"`
	HealthScore       float64  `json:"health_score"`
	Bucket            string   `json:"bucket"`
	MaintenanceStatus string   `json:"maintenance_status"`
	DaysSinceRelease  int      `json:"days_since_release"` // -1 when unknown
	Deprecated        bool     `json:"deprecated"`
	RiskFactors       []string `json:"risk_factors,omitempty"`
	Alternative       string   `json:"alternative,omitempty"`
}

// RiskFactorCount is one aggregated risk factor in the summary.
type RiskFactorCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// HealthSummary carries the aggregate health figures.
type HealthSummary struct {
	DependencyCount    int                `json:"dependency_count"`
	AverageHealthScore float64            `json:"average_health_score"`
	Distribution       map[string]int     `json:"health_distribution"`
	DistributionPct    map[string]float64 `json:"health_distribution_pct"`
	DeprecatedCount    int                `json:"deprecated_count"`
	TopRiskFactors     []RiskFactorCount  `json:"top_risk_factors,omitempty"`
}

// HealthDetails wraps the per-dependency reports.
type HealthDetails struct {
	Reports []HealthReport `json:"reports"`
}

// HealthMonitor scores how actively maintained each dependency is.
type HealthMonitor struct {
	cfg *config.Config
	now func() time.Time
}

// NewHealthMonitor creates a health monitor with the engine config.
func NewHealthMonitor(cfg *config.Config) *HealthMonitor {
	return &HealthMonitor{cfg: cfg, now: time.Now}
}

func (m *HealthMonitor) Type() Type { return TypeHealthMonitoring }

// Run scores every resolved dependency, direct and transitive.
func (m *HealthMonitor) Run(ctx context.Context, g *graph.DependencyGraph, provider metadata.Provider, jobCfg JobConfig) (*Result, error) {
	now := m.now()
	nodes := g.Nodes()
	logger.Debugf("scoring health for %d dependencies", len(nodes))

	reports := make([]HealthReport, 0, len(nodes))
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reports = append(reports, m.scoreNode(node, provider, now))
	}

	// Second pass: suggest the healthiest same-category peer for anything
	// outside the healthy bucket.
	for i := range reports {
		if reports[i].Bucket == BucketHealthy {
			continue
		}
		reports[i].Alternative = bestPeer(g, reports, reports[i].Name)
	}

	return &Result{
		Type:    TypeHealthMonitoring,
		Summary: m.summarize(reports),
		Details: &HealthDetails{Reports: reports},
	}, nil
}

func (m *HealthMonitor) scoreNode(node *graph.DependencyNode, provider metadata.Provider, now time.Time) HealthReport {
	report := HealthReport{
		Name:             node.Name,
		Ecosystem:        node.Ecosystem,
		Version:          node.Resolved,
		Direct:           node.IsDirect(),
		DaysSinceRelease: -1,
	}

	score, daysSince, factors := healthScore(m.cfg, node, provider, now)
	report.HealthScore = score
	report.DaysSinceRelease = daysSince
	report.RiskFactors = factors
	if node.Metadata != nil {
		report.Deprecated = node.Metadata.Deprecated
	}

	report.Bucket = m.bucket(score)
	switch report.Bucket {
	case BucketHealthy:
		report.MaintenanceStatus = "active"
	case BucketAtRisk:
		report.MaintenanceStatus = "abandoned"
	default:
		report.MaintenanceStatus = "minimal"
	}
	return report
}

func (m *HealthMonitor) bucket(score float64) string {
	switch {
	case score >= m.cfg.Health.HealthyThreshold:
		return BucketHealthy
	case score < m.cfg.Health.AtRiskThreshold:
		return BucketAtRisk
	default:
		return BucketModerate
	}
}

// healthScore is the single source of truth for per-package health. The
// impact scorer reuses it so both reports stay consistent. It returns the
// composite score, days since the last release (-1 unknown) and the risk
// factors observed.
//
// The composite weighs release staleness at 0.4 and the two community
// signals at 0.3 each. Components that cannot be derived contribute the
// neutral 0.5 so missing data lands a package in the moderate bucket
// instead of biasing it up or down. A deprecation flag caps the score
// at 0.1 regardless of the other components.
func healthScore(cfg *config.Config, node *graph.DependencyNode, provider metadata.Provider, now time.Time) (float64, int, []string) {
	factors := []string{}

	staleness := metadata.UnknownScore
	daysSince := -1

	history, err := provider.VersionHistory(node.Name, node.Ecosystem)
	if err == nil && len(history) > 0 {
		last := history[len(history)-1].ReleasedAt
		daysSince = int(now.Sub(last).Hours() / 24)
		if daysSince < 0 {
			daysSince = 0
		}
		// Linear decay: fresh release scores 1.0, flooring at 0 once the
		// package has been silent past the staleness bound.
		staleness = 1.0 - float64(daysSince)/float64(cfg.Health.StaleAfterDays)
		if staleness < 0 {
			staleness = 0
		}
		if daysSince > 365 {
			factors = append(factors, "outdated")
		}
	} else {
		factors = append(factors, "no_release_history")
	}

	var contributors, issues float64
	if node.Metadata != nil {
		contributors = metadata.ScoreOrUnknown(node.Metadata.Health.ContributorActivity)
		issues = metadata.ScoreOrUnknown(node.Metadata.Health.IssueResponsiveness)
	} else {
		contributors = metadata.UnknownScore
		issues = metadata.UnknownScore
		factors = append(factors, "no_metadata")
	}

	score := 0.4*staleness + 0.3*contributors + 0.3*issues

	if node.Metadata != nil {
		if node.Metadata.Deprecated {
			factors = append(factors, "deprecated")
			if score > 0.1 {
				score = 0.1
			}
		}
		if len(node.Metadata.Vulnerabilities) > 0 {
			factors = append(factors, "known_vulnerabilities")
		}
	}

	return clamp01(score), daysSince, factors
}

// bestPeer returns the healthiest package sharing the target's category,
// or empty when no peer beats it.
func bestPeer(g *graph.DependencyGraph, reports []HealthReport, target string) string {
	node := g.Node(target)
	if node == nil || node.Metadata == nil || node.Metadata.Category == "" {
		return ""
	}
	category := node.Metadata.Category

	var targetScore float64
	for _, r := range reports {
		if r.Name == target {
			targetScore = r.HealthScore
			break
		}
	}

	best := ""
	bestScore := targetScore
	for _, r := range reports {
		if r.Name == target {
			continue
		}
		peer := g.Node(r.Name)
		if peer == nil || peer.Metadata == nil || peer.Metadata.Category != category {
			continue
		}
		if r.HealthScore > bestScore {
			best = r.Name
			bestScore = r.HealthScore
		}
	}
	return best
}

func (m *HealthMonitor) summarize(reports []HealthReport) *HealthSummary {
	summary := &HealthSummary{
		DependencyCount: len(reports),
		Distribution: map[string]int{
			BucketHealthy:  0,
			BucketModerate: 0,
			BucketAtRisk:   0,
		},
		DistributionPct: map[string]float64{},
	}
	if len(reports) == 0 {
		return summary
	}

	total := 0.0
	riskCounts := map[string]int{}
	for _, r := range reports {
		total += r.HealthScore
		summary.Distribution[r.Bucket]++
		if r.Deprecated {
			summary.DeprecatedCount++
		}
		for _, f := range r.RiskFactors {
			riskCounts[f]++
		}
	}
	summary.AverageHealthScore = round2(total / float64(len(reports)))

	for bucket, count := range summary.Distribution {
		summary.DistributionPct[bucket] = round1(float64(count) / float64(len(reports)) * 100)
	}

	factors := make([]RiskFactorCount, 0, len(riskCounts))
	for name, count := range riskCounts {
		factors = append(factors, RiskFactorCount{Name: name, Count: count})
	}
	sort.Slice(factors, func(i, j int) bool {
		if factors[i].Count != factors[j].Count {
			return factors[i].Count > factors[j].Count
		}
		return factors[i].Name < factors[j].Name
	})
	if len(factors) > 5 {
		factors = factors[:5]
	}
	summary.TopRiskFactors = factors
	return summary
}

// Suggestions emits one record per dependency outside the healthy bucket,
// urgency mirroring the bucket.
func (m *HealthMonitor) Suggestions(result *Result) []Suggestion {
	details, ok := result.Details.(*HealthDetails)
	if !ok {
		return nil
	}

	suggestions := make([]Suggestion, 0)
	for _, r := range details.Reports {
		if r.Bucket == BucketHealthy {
			continue
		}
		severity := SeverityMedium
		if r.Bucket == BucketAtRisk {
			severity = SeverityHigh
		}

		description := fmt.Sprintf(
			"%s has a health score of %.2f (%s). Review its maintenance outlook.",
			r.Name, r.HealthScore, r.MaintenanceStatus)
		if r.Alternative != "" {
			description = fmt.Sprintf("%s Consider %s as a better-maintained alternative.", description, r.Alternative)
		}

		suggestions = append(suggestions, Suggestion{
			Title:       fmt.Sprintf("Unhealthy dependency: %s", r.Name),
			Description: description,
			Category:    "health",
			Severity:    severity,
			Dependency:  r.Name,
		})
	}
	return suggestions
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
