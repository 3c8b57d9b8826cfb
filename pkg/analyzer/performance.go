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

// Profiling modes accepted through the job config.
const (
	ModeBundleSize = "bundle_size"
	ModeRuntime    = "runtime"
)

// Bundle impact classes.
const (
	BundleLarge  = "large"
	BundleMedium = "medium"
	BundleSmall  = "small"
)

// BundleEntry is one dependency's contribution to the bundle.
type BundleEntry struct {
	Name          string  `json:"name"`
	Ecosystem     string  `json:"ecosystem"`
	Direct        bool    `json:"is_direct"`
	MinifiedBytes int64   `json:"minified_bytes"`
	GzippedBytes  int64   `json:"gzipped_bytes"`
	SharePercent  float64 `json:"share_percent"`
	Impact        string  `json:"impact"`
}

// RuntimeEntry is one direct dependency's runtime cost.
type RuntimeEntry struct {
	Name      string   `json:"name"`
	Ecosystem string   `json:"ecosystem"`
	StartupMs float64  `json:"startup_ms"`
	RuntimeMs float64  `json:"runtime_ms"`
	MemoryMB  float64  `json:"memory_mb"`
	Severity  Severity `json:"severity"`
}

// PerformanceSummary carries the aggregate profiling figures for the
// selected mode.
type PerformanceSummary struct {
	Mode            string         `json:"mode"`
	DependencyCount int            `json:"dependency_count"`
	MeasuredCount   int            `json:"measured_count"`
	TotalGzipBytes  int64          `json:"total_gzip_bytes,omitempty"`
	TotalRuntimeMs  float64        `json:"total_runtime_ms,omitempty"`
	ImpactCounts    map[string]int `json:"impact_counts"`
}

// PerformanceDetails wraps the entries of the selected mode. Only one of the
// slices is populated per run.
type PerformanceDetails struct {
	Bundle  []BundleEntry  `json:"bundle,omitempty"`
	Runtime []RuntimeEntry `json:"runtime,omitempty"`
}

// PerformanceProfiler attributes bundle size or runtime cost to
// dependencies.
type PerformanceProfiler struct {
	cfg *config.Config
	now func() time.Time
}

// NewPerformanceProfiler creates a profiler with the engine config.
func NewPerformanceProfiler(cfg *config.Config) *PerformanceProfiler {
	return &PerformanceProfiler{cfg: cfg, now: time.Now}
}

func (p *PerformanceProfiler) Type() Type { return TypePerformanceProfiling }

// Run profiles the graph in the mode selected by the job config key "mode",
// defaulting to bundle size attribution.
func (p *PerformanceProfiler) Run(ctx context.Context, g *graph.DependencyGraph, provider metadata.Provider, jobCfg JobConfig) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode, err := jobCfg.StringValue("mode", ModeBundleSize)
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModeBundleSize:
		return p.profileBundle(g)
	case ModeRuntime:
		return p.profileRuntime(g)
	default:
		return nil, fmt.Errorf("%w: unknown profiling mode %q", ErrInvalidConfiguration, mode)
	}
}

// profileBundle attributes gzipped bundle bytes across every dependency in
// the graph, transitive ones included.
func (p *PerformanceProfiler) profileBundle(g *graph.DependencyGraph) (*Result, error) {
	entries := make([]BundleEntry, 0, g.Size())
	var totalGzip int64
	for _, node := range g.Nodes() {
		entry := BundleEntry{
			Name:      node.Name,
			Ecosystem: node.Ecosystem,
			Direct:    node.IsDirect(),
		}
		if node.Metadata != nil {
			entry.MinifiedBytes = node.Metadata.Size.MinifiedBytes
			entry.GzippedBytes = node.Metadata.Size.GzippedBytes
		}
		totalGzip += entry.GzippedBytes
		entries = append(entries, entry)
	}
	logger.Debugf("bundle profile over %d dependencies, %d gzipped bytes total", len(entries), totalGzip)

	measured := 0
	impactCounts := map[string]int{BundleLarge: 0, BundleMedium: 0, BundleSmall: 0}
	for i := range entries {
		if entries[i].GzippedBytes == 0 {
			entries[i].Impact = BundleSmall
			impactCounts[BundleSmall]++
			continue
		}
		measured++
		share := float64(entries[i].GzippedBytes) / float64(totalGzip) * 100
		entries[i].SharePercent = round1(share)
		switch {
		case share > p.cfg.Performance.LargeSharePercent:
			entries[i].Impact = BundleLarge
		case share >= p.cfg.Performance.MediumSharePercent:
			entries[i].Impact = BundleMedium
		default:
			entries[i].Impact = BundleSmall
		}
		impactCounts[entries[i].Impact]++
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].GzippedBytes != entries[j].GzippedBytes {
			return entries[i].GzippedBytes > entries[j].GzippedBytes
		}
		return entries[i].Name < entries[j].Name
	})

	summary := &PerformanceSummary{
		Mode:            ModeBundleSize,
		DependencyCount: len(entries),
		MeasuredCount:   measured,
		TotalGzipBytes:  totalGzip,
		ImpactCounts:    impactCounts,
	}
	return &Result{
		Type:    TypePerformanceProfiling,
		Summary: summary,
		Details: &PerformanceDetails{Bundle: entries},
	}, nil
}

// profileRuntime reports per-dependency runtime cost for direct
// dependencies only, where the attribution is meaningful.
func (p *PerformanceProfiler) profileRuntime(g *graph.DependencyGraph) (*Result, error) {
	entries := make([]RuntimeEntry, 0)
	var totalRuntime float64
	measured := 0
	impactCounts := map[string]int{
		string(SeverityHigh):   0,
		string(SeverityMedium): 0,
		string(SeverityLow):    0,
	}

	for _, node := range g.Direct() {
		entry := RuntimeEntry{Name: node.Name, Ecosystem: node.Ecosystem}
		if node.Metadata != nil {
			entry.StartupMs = node.Metadata.Size.StartupMs
			entry.RuntimeMs = node.Metadata.Size.RuntimeMs
			entry.MemoryMB = node.Metadata.Size.MemoryMB
		}
		if entry.RuntimeMs > 0 || entry.StartupMs > 0 {
			measured++
		}
		totalRuntime += entry.RuntimeMs

		switch {
		case entry.RuntimeMs > p.cfg.Performance.HighRuntimeMs:
			entry.Severity = SeverityHigh
		case entry.RuntimeMs > p.cfg.Performance.MediumRuntimeMs:
			entry.Severity = SeverityMedium
		default:
			entry.Severity = SeverityLow
		}
		impactCounts[string(entry.Severity)]++
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RuntimeMs != entries[j].RuntimeMs {
			return entries[i].RuntimeMs > entries[j].RuntimeMs
		}
		return entries[i].Name < entries[j].Name
	})

	summary := &PerformanceSummary{
		Mode:            ModeRuntime,
		DependencyCount: len(entries),
		MeasuredCount:   measured,
		TotalRuntimeMs:  round2(totalRuntime),
		ImpactCounts:    impactCounts,
	}
	return &Result{
		Type:    TypePerformanceProfiling,
		Summary: summary,
		Details: &PerformanceDetails{Runtime: entries},
	}, nil
}

// Suggestions surfaces the heaviest contributors in either mode.
func (p *PerformanceProfiler) Suggestions(result *Result) []Suggestion {
	details, ok := result.Details.(*PerformanceDetails)
	if !ok {
		return nil
	}

	suggestions := make([]Suggestion, 0)
	for _, entry := range details.Bundle {
		if entry.Impact != BundleLarge {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Title: fmt.Sprintf("Reduce the bundle footprint of %s", entry.Name),
			Description: fmt.Sprintf("%s accounts for %.1f%% of the gzipped bundle. Consider a lighter alternative or lazy loading.",
				entry.Name, entry.SharePercent),
			Category:   "performance",
			Severity:   SeverityMedium,
			Dependency: entry.Name,
		})
	}
	for _, entry := range details.Runtime {
		if entry.Severity == SeverityLow {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Title: fmt.Sprintf("High runtime cost from %s", entry.Name),
			Description: fmt.Sprintf("%s contributes %.1fms of runtime overhead per operation. Profile the call sites or replace it.",
				entry.Name, entry.RuntimeMs),
			Category:   "performance",
			Severity:   entry.Severity,
			Dependency: entry.Name,
		})
	}
	return suggestions
}
