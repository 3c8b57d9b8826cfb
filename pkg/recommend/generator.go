// Package recommend merges analyzer findings into a single ranked list of
// actionable recommendations.
package recommend

import (
	"sort"
	"time"

	"github.com/depintel/depintel/pkg/analyzer"
	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/logger"
)

// Recommendation is one actionable item with the analyzer it came from.
type Recommendation struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Severity    analyzer.Severity `json:"severity"`
	Dependency  string            `json:"dependency,omitempty"`
	FromVersion string            `json:"from_version,omitempty"`
	ToVersion   string            `json:"to_version,omitempty"`
	Source      analyzer.Type     `json:"source"`
}

// Report is the merged recommendation set for one project.
type Report struct {
	ProjectID       string            `json:"project_id"`
	GeneratedAt     time.Time         `json:"generated_at"`
	AnalyzersUsed   []analyzer.Type   `json:"analyzers_used"`
	SeverityCounts  map[string]int    `json:"severity_counts"`
	Recommendations []*Recommendation `json:"recommendations"`
}

// Generator turns analysis results into a deduplicated report.
type Generator struct {
	cfg *config.Config
}

// NewGenerator creates a generator with the engine config.
func NewGenerator(cfg *config.Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate merges the given results, one per analyzer type, into a single
// report. Items targeting the same dependency in the same category collapse
// to the one with the higher severity. An empty result set yields a report
// with an empty recommendation list.
func (g *Generator) Generate(projectID string, results map[analyzer.Type]*analyzer.Result) (*Report, error) {
	report := &Report{
		ProjectID:   projectID,
		GeneratedAt: time.Now(),
		SeverityCounts: map[string]int{
			string(analyzer.SeverityHigh):   0,
			string(analyzer.SeverityMedium): 0,
			string(analyzer.SeverityLow):    0,
		},
		Recommendations: make([]*Recommendation, 0),
	}

	type key struct {
		dependency string
		category   string
		title      string
	}
	merged := map[key]*Recommendation{}

	for _, t := range analyzer.Types() {
		result, ok := results[t]
		if !ok || result == nil {
			continue
		}
		report.AnalyzersUsed = append(report.AnalyzersUsed, t)

		a, err := analyzer.New(t, g.cfg)
		if err != nil {
			return nil, err
		}
		for _, s := range a.Suggestions(result) {
			k := key{dependency: s.Dependency, category: s.Category}
			if s.Dependency == "" {
				k.title = s.Title
			}
			item := &Recommendation{
				Title:       s.Title,
				Description: s.Description,
				Category:    s.Category,
				Severity:    s.Severity,
				Dependency:  s.Dependency,
				FromVersion: s.FromVersion,
				ToVersion:   s.ToVersion,
				Source:      t,
			}
			existing, ok := merged[k]
			if !ok || item.Severity.Rank() > existing.Severity.Rank() {
				merged[k] = item
			}
		}
	}

	for _, item := range merged {
		report.Recommendations = append(report.Recommendations, item)
		report.SeverityCounts[string(item.Severity)]++
	}
	sort.Slice(report.Recommendations, func(i, j int) bool {
		ri, rj := report.Recommendations[i], report.Recommendations[j]
		if ri.Severity.Rank() != rj.Severity.Rank() {
			return ri.Severity.Rank() > rj.Severity.Rank()
		}
		if ri.Dependency != rj.Dependency {
			return ri.Dependency < rj.Dependency
		}
		return ri.Title < rj.Title
	})

	logger.Debugf("generated %d recommendations for project %s from %d analyzers",
		len(report.Recommendations), projectID, len(report.AnalyzersUsed))
	return report, nil
}
