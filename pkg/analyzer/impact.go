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

// Impact buckets.
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// ImpactScore is the per-dependency breakdown of an impact analysis.
type ImpactScore struct {
	Name               string  `json:"name"`
	Ecosystem          string  `json:"ecosystem"`
	Version            string  `json:"version,omitempty"`
	BusinessValueScore float64 `json:"business_value_score"`
	UsageScore         float64 `json:"usage_score"`
	ComplexityScore    float64 `json:"complexity_score"`
	HealthScore        float64 `json:"health_score"`
	OverallScore       float64 `json:"overall_score"`
	Bucket             string  `json:"bucket"`
	UsedFeatures       int     `json:"used_features"`
	UnusedFeatures     int     `json:"unused_features"`
}

// ImpactSummary carries the aggregate impact figures.
type ImpactSummary struct {
	DependencyCount   int                `json:"dependency_count"`
	AverageScore      float64            `json:"average_score"`
	BucketCounts      map[string]int     `json:"bucket_counts"`
	ComponentAverages map[string]float64 `json:"component_averages"`
	LowUsageCount     int                `json:"low_usage_count"`     // usage <= 0.3
	HealthIssuesCount int                `json:"health_issues_count"` // health <= 0.6
}

// ImpactDetails wraps the per-dependency scores, ranked most impactful first.
type ImpactDetails struct {
	Scores []ImpactScore `json:"scores"`
}

// ImpactScorer weighs how important and risky each direct dependency is.
type ImpactScorer struct {
	cfg *config.Config
	now func() time.Time
}

// NewImpactScorer creates an impact scorer with the engine config.
func NewImpactScorer(cfg *config.Config) *ImpactScorer {
	return &ImpactScorer{cfg: cfg, now: time.Now}
}

func (s *ImpactScorer) Type() Type { return TypeImpactScoring }

// Run scores every direct dependency.
func (s *ImpactScorer) Run(ctx context.Context, g *graph.DependencyGraph, provider metadata.Provider, jobCfg JobConfig) (*Result, error) {
	direct := g.Direct()
	logger.Debugf("scoring impact for %d direct dependencies", len(direct))

	now := s.now()
	scores := make([]ImpactScore, 0, len(direct))
	for _, node := range direct {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores = append(scores, s.scoreNode(g, node, provider, now))
	}

	// Rank most impactful first; business value breaks ties, then name for
	// a stable order.
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].OverallScore != scores[j].OverallScore {
			return scores[i].OverallScore > scores[j].OverallScore
		}
		if scores[i].BusinessValueScore != scores[j].BusinessValueScore {
			return scores[i].BusinessValueScore > scores[j].BusinessValueScore
		}
		return scores[i].Name < scores[j].Name
	})

	return &Result{
		Type:    TypeImpactScoring,
		Summary: s.summarize(scores),
		Details: &ImpactDetails{Scores: scores},
	}, nil
}

func (s *ImpactScorer) scoreNode(g *graph.DependencyGraph, node *graph.DependencyNode, provider metadata.Provider, now time.Time) ImpactScore {
	score := ImpactScore{
		Name:      node.Name,
		Ecosystem: node.Ecosystem,
		Version:   node.Resolved,
	}

	score.BusinessValueScore, score.UsedFeatures, score.UnusedFeatures = businessValue(node)
	score.UsageScore = usageScore(node)
	score.ComplexityScore = complexityScore(g, node, provider, now)

	health, _, _ := healthScore(s.cfg, node, provider, now)
	score.HealthScore = health

	// Low health increases impact risk, so the health term is inverted.
	w := s.cfg.Impact
	score.OverallScore = clamp01(
		w.BusinessValueWeight*score.BusinessValueScore +
			w.UsageWeight*score.UsageScore +
			w.ComplexityWeight*score.ComplexityScore +
			w.HealthWeight*(1-score.HealthScore))

	switch {
	case score.OverallScore >= 0.8:
		score.Bucket = ImpactHigh
	case score.OverallScore >= 0.5:
		score.Bucket = ImpactMedium
	default:
		score.Bucket = ImpactLow
	}
	return score
}

// businessValue is the fraction of the package's known feature surface the
// project exercises. Unknown usage stays neutral rather than dragging the
// composite down.
func businessValue(node *graph.DependencyNode) (float64, int, int) {
	if node.Metadata == nil {
		return metadata.UnknownScore, 0, 0
	}
	used := len(node.Metadata.UsedFeatures)
	unused := len(node.Metadata.UnusedFeatures)
	if used+unused == 0 {
		return metadata.UnknownScore, 0, 0
	}
	return float64(used) / float64(used+unused), used, unused
}

func usageScore(node *graph.DependencyNode) float64 {
	if node.Metadata == nil {
		return metadata.UnknownScore
	}
	return metadata.ScoreOrUnknown(node.Metadata.UsageScore)
}

// complexityScore grows monotonically with the package's own transitive
// footprint and its release churn.
func complexityScore(g *graph.DependencyGraph, node *graph.DependencyNode, provider metadata.Provider, now time.Time) float64 {
	// Transitive weight: size of the subtree hanging off this node.
	subtree := subtreeSize(g, node.Name)
	transitive := float64(subtree) / 20.0
	if transitive > 1 {
		transitive = 1
	}

	// Churn: releases over the trailing year.
	churnKnown := false
	churn := 0.0
	if history, err := provider.VersionHistory(node.Name, node.Ecosystem); err == nil && len(history) > 0 {
		churnKnown = true
		cutoff := now.AddDate(-1, 0, 0)
		recent := 0
		for _, release := range history {
			if release.ReleasedAt.After(cutoff) {
				recent++
			}
		}
		churn = float64(recent) / 24.0
		if churn > 1 {
			churn = 1
		}
	}

	if !churnKnown {
		return clamp01(0.5*transitive + 0.5*metadata.UnknownScore)
	}
	return clamp01(0.5*transitive + 0.5*churn)
}

func subtreeSize(g *graph.DependencyGraph, name string) int {
	seen := map[string]bool{}
	var walk func(string)
	walk = func(current string) {
		for _, child := range g.Children(current) {
			if seen[child] {
				continue
			}
			seen[child] = true
			walk(child)
		}
	}
	walk(name)
	return len(seen)
}

func (s *ImpactScorer) summarize(scores []ImpactScore) *ImpactSummary {
	summary := &ImpactSummary{
		DependencyCount: len(scores),
		BucketCounts: map[string]int{
			ImpactHigh:   0,
			ImpactMedium: 0,
			ImpactLow:    0,
		},
		ComponentAverages: map[string]float64{},
	}
	if len(scores) == 0 {
		return summary
	}

	var overall, bv, usage, complexity, health float64
	for _, sc := range scores {
		overall += sc.OverallScore
		bv += sc.BusinessValueScore
		usage += sc.UsageScore
		complexity += sc.ComplexityScore
		health += sc.HealthScore
		summary.BucketCounts[sc.Bucket]++
		if sc.UsageScore <= 0.3 {
			summary.LowUsageCount++
		}
		if sc.HealthScore <= 0.6 {
			summary.HealthIssuesCount++
		}
	}

	n := float64(len(scores))
	summary.AverageScore = round2(overall / n)
	summary.ComponentAverages["business_value"] = round2(bv / n)
	summary.ComponentAverages["usage"] = round2(usage / n)
	summary.ComponentAverages["complexity"] = round2(complexity / n)
	summary.ComponentAverages["health"] = round2(health / n)
	return summary
}

// Suggestions flags high-impact dependencies for monitoring and low-usage
// ones for trimming.
func (s *ImpactScorer) Suggestions(result *Result) []Suggestion {
	details, ok := result.Details.(*ImpactDetails)
	if !ok {
		return nil
	}

	suggestions := make([]Suggestion, 0)
	for _, sc := range details.Scores {
		if sc.Bucket == ImpactHigh {
			suggestions = append(suggestions, Suggestion{
				Title: fmt.Sprintf("High impact dependency: %s", sc.Name),
				Description: fmt.Sprintf(
					"%s has an impact score of %.2f, making it critical to the project. Make sure it stays well maintained and has a fallback plan.",
					sc.Name, sc.OverallScore),
				Category:   "impact",
				Severity:   SeverityHigh,
				Dependency: sc.Name,
			})
		}
		if sc.UsageScore <= 0.3 {
			suggestions = append(suggestions, Suggestion{
				Title: fmt.Sprintf("Low usage efficiency: %s", sc.Name),
				Description: fmt.Sprintf(
					"Only a small share of %s is exercised (usage score %.2f). Consider a lighter alternative or importing just what is needed.",
					sc.Name, sc.UsageScore),
				Category:   "usage",
				Severity:   SeverityMedium,
				Dependency: sc.Name,
			})
		}
	}
	return suggestions
}
