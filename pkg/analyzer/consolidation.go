package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	semver "github.com/Masterminds/semver/v3"

	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/graph"
	"github.com/depintel/depintel/pkg/logger"
	"github.com/depintel/depintel/pkg/metadata"
)

// DuplicateGroup is a set of direct dependencies serving the same purpose.
type DuplicateGroup struct {
	Category string   `json:"category"`
	Keep     string   `json:"keep"`
	Remove   []string `json:"remove"`
	Reason   string   `json:"reason"`
}

// VersionInconsistency reports one package required at conflicting versions.
type VersionInconsistency struct {
	Name        string              `json:"name"`
	Ecosystem   string              `json:"ecosystem"`
	Versions    map[string][]string `json:"versions"`
	Recommended string              `json:"recommended_version"`
	// UnsatisfiedConstraints lists the requirements the recommended version
	// cannot meet; resolving them needs a manual decision.
	UnsatisfiedConstraints []string `json:"unsatisfied_constraints,omitempty"`
}

// BloatFinding reports a transitive dependency pulled in from many places.
type BloatFinding struct {
	Name             string   `json:"name"`
	Ecosystem        string   `json:"ecosystem"`
	Depth            int      `json:"depth"`
	DirectDependants int      `json:"direct_dependants"`
	Chain            []string `json:"chain"`
}

// ConsolidationSummary carries the aggregate consolidation figures.
type ConsolidationSummary struct {
	DependencyCount      int            `json:"dependency_count"`
	DuplicateGroups      int            `json:"duplicate_groups"`
	RemovableCount       int            `json:"removable_count"`
	InconsistencyCount   int            `json:"inconsistency_count"`
	BloatCount           int            `json:"bloat_count"`
	ConsolidationTargets int            `json:"consolidation_targets"`
	ReductionPercent     float64        `json:"reduction_percent"`
	EcosystemCounts      map[string]int `json:"ecosystem_counts"`
}

// ConsolidationDetails wraps the three consolidation passes.
type ConsolidationDetails struct {
	Duplicates      []DuplicateGroup       `json:"duplicates"`
	Inconsistencies []VersionInconsistency `json:"version_inconsistencies"`
	Bloat           []BloatFinding         `json:"transitive_bloat"`
}

// ConsolidationAnalyzer finds overlapping, conflicting, and bloating
// dependencies.
type ConsolidationAnalyzer struct {
	cfg *config.Config
	now func() time.Time
}

// NewConsolidationAnalyzer creates an analyzer with the engine config.
func NewConsolidationAnalyzer(cfg *config.Config) *ConsolidationAnalyzer {
	return &ConsolidationAnalyzer{cfg: cfg, now: time.Now}
}

func (a *ConsolidationAnalyzer) Type() Type { return TypeConsolidation }

// Run executes the duplicate, version-inconsistency, and transitive-bloat
// passes over the graph.
func (a *ConsolidationAnalyzer) Run(ctx context.Context, g *graph.DependencyGraph, provider metadata.Provider, jobCfg JobConfig) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	duplicates := a.findDuplicates(g, provider)
	inconsistencies := a.findInconsistencies(g)
	bloat := a.findBloat(g)

	removable := 0
	for _, group := range duplicates {
		removable += len(group.Remove)
	}
	logger.Debugf("consolidation found %d duplicate groups, %d inconsistencies, %d bloated transitives",
		len(duplicates), len(inconsistencies), len(bloat))

	ecosystems := map[string]int{}
	for _, node := range g.Nodes() {
		ecosystems[node.Ecosystem]++
	}

	reduction := 0.0
	if g.Size() > 0 {
		reduction = round1(float64(removable) / float64(g.Size()) * 100)
	}

	summary := &ConsolidationSummary{
		DependencyCount:      g.Size(),
		DuplicateGroups:      len(duplicates),
		RemovableCount:       removable,
		InconsistencyCount:   len(inconsistencies),
		BloatCount:           len(bloat),
		ConsolidationTargets: removable + len(inconsistencies) + len(bloat),
		ReductionPercent:     reduction,
		EcosystemCounts:      ecosystems,
	}

	return &Result{
		Type:    TypeConsolidation,
		Summary: summary,
		Details: &ConsolidationDetails{
			Duplicates:      duplicates,
			Inconsistencies: inconsistencies,
			Bloat:           bloat,
		},
	}, nil
}

// findDuplicates groups direct dependencies by category and elects a single
// keeper per group: the widest feature usage wins, health breaks ties, and
// names break remaining ties.
func (a *ConsolidationAnalyzer) findDuplicates(g *graph.DependencyGraph, provider metadata.Provider) []DuplicateGroup {
	byCategory := map[string][]*graph.DependencyNode{}
	for _, node := range g.Direct() {
		if node.Metadata == nil || node.Metadata.Category == "" {
			continue
		}
		byCategory[node.Metadata.Category] = append(byCategory[node.Metadata.Category], node)
	}

	categories := make([]string, 0, len(byCategory))
	for category, members := range byCategory {
		if len(members) > 1 {
			categories = append(categories, category)
		}
	}
	sort.Strings(categories)

	groups := make([]DuplicateGroup, 0, len(categories))
	for _, category := range categories {
		members := byCategory[category]
		sort.Slice(members, func(i, j int) bool {
			fi, fj := len(members[i].Metadata.UsedFeatures), len(members[j].Metadata.UsedFeatures)
			if fi != fj {
				return fi > fj
			}
			hi, _, _ := healthScore(a.cfg, members[i], provider, a.now())
			hj, _, _ := healthScore(a.cfg, members[j], provider, a.now())
			if hi != hj {
				return hi > hj
			}
			return members[i].Name < members[j].Name
		})

		keep := members[0]
		remove := make([]string, 0, len(members)-1)
		for _, node := range members[1:] {
			remove = append(remove, node.Name)
		}
		groups = append(groups, DuplicateGroup{
			Category: category,
			Keep:     keep.Name,
			Remove:   remove,
			Reason: fmt.Sprintf("%s covers the most used features (%d) in the %s category",
				keep.Name, len(keep.Metadata.UsedFeatures), category),
		})
	}
	return groups
}

// findInconsistencies reports packages required at more than one version
// across the graph, recommending the highest known version satisfying the
// most requirement constraints.
func (a *ConsolidationAnalyzer) findInconsistencies(g *graph.DependencyGraph) []VersionInconsistency {
	findings := make([]VersionInconsistency, 0)
	for _, node := range g.Nodes() {
		versions := node.VersionsInUse()
		if len(versions) < 2 {
			continue
		}

		byVersion := make(map[string][]string, len(versions))
		constraints := make([]string, 0, len(versions))
		for _, constraint := range versions {
			requesters := make([]string, 0, len(node.VersionUsage[constraint]))
			for requester := range node.VersionUsage[constraint] {
				requesters = append(requesters, requester)
			}
			sort.Strings(requesters)
			byVersion[constraint] = requesters
			constraints = append(constraints, constraint)
		}

		recommended, unsatisfied := recommendUnifiedVersion(node, constraints)
		findings = append(findings, VersionInconsistency{
			Name:                   node.Name,
			Ecosystem:              node.Ecosystem,
			Versions:               byVersion,
			Recommended:            recommended,
			UnsatisfiedConstraints: unsatisfied,
		})
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Name < findings[j].Name })
	return findings
}

// recommendUnifiedVersion picks the highest candidate version satisfying the
// most of the conflicting constraints, returning the constraints that pick
// still leaves unmet. Candidates are the resolved version plus each
// constraint parsed loosely.
func recommendUnifiedVersion(node *graph.DependencyNode, constraints []string) (string, []string) {
	type candidate struct {
		raw    string
		parsed *semver.Version
	}
	seen := map[string]bool{}
	candidates := make([]candidate, 0, len(constraints)+1)
	add := func(raw string) {
		v := parseLooseVersion(raw)
		if v == nil || seen[v.String()] {
			return
		}
		seen[v.String()] = true
		candidates = append(candidates, candidate{raw: raw, parsed: v})
	}
	add(node.Resolved)
	for _, constraint := range constraints {
		add(constraint)
	}
	if len(candidates) == 0 {
		return node.Resolved, nil
	}

	type requirement struct {
		raw    string
		parsed *semver.Constraints
	}
	requirements := make([]requirement, 0, len(constraints))
	for _, constraint := range constraints {
		c, err := semver.NewConstraint(constraint)
		if err != nil {
			continue
		}
		requirements = append(requirements, requirement{raw: constraint, parsed: c})
	}

	best := candidates[0]
	bestSatisfied := -1
	for _, cand := range candidates {
		satisfied := 0
		for _, r := range requirements {
			if r.parsed.Check(cand.parsed) {
				satisfied++
			}
		}
		if satisfied > bestSatisfied ||
			(satisfied == bestSatisfied && cand.parsed.GreaterThan(best.parsed)) {
			best = cand
			bestSatisfied = satisfied
		}
	}

	var unsatisfied []string
	for _, r := range requirements {
		if !r.parsed.Check(best.parsed) {
			unsatisfied = append(unsatisfied, r.raw)
		}
	}
	sort.Strings(unsatisfied)
	return best.parsed.String(), unsatisfied
}

// findBloat reports transitive dependencies reached from more direct
// dependencies than the configured threshold.
func (a *ConsolidationAnalyzer) findBloat(g *graph.DependencyGraph) []BloatFinding {
	findings := make([]BloatFinding, 0)
	for _, node := range g.Nodes() {
		if node.Depth <= 1 {
			continue
		}
		dependants := g.DirectDependants(node.Name)
		if len(dependants) <= a.cfg.Consolidation.BloatThreshold {
			continue
		}
		findings = append(findings, BloatFinding{
			Name:             node.Name,
			Ecosystem:        node.Ecosystem,
			Depth:            node.Depth,
			DirectDependants: len(dependants),
			Chain:            g.ShortestPath(node.Name),
		})
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].DirectDependants != findings[j].DirectDependants {
			return findings[i].DirectDependants > findings[j].DirectDependants
		}
		return findings[i].Name < findings[j].Name
	})
	return findings
}

// Suggestions turns consolidation findings into actionable items.
func (a *ConsolidationAnalyzer) Suggestions(result *Result) []Suggestion {
	details, ok := result.Details.(*ConsolidationDetails)
	if !ok {
		return nil
	}

	suggestions := make([]Suggestion, 0)
	for _, group := range details.Duplicates {
		suggestions = append(suggestions, Suggestion{
			Title: fmt.Sprintf("Consolidate %s dependencies onto %s", group.Category, group.Keep),
			Description: fmt.Sprintf("Remove %s and standardize on %s. %s",
				strings.Join(group.Remove, ", "), group.Keep, group.Reason),
			Category:   "consolidation",
			Severity:   SeverityMedium,
			Dependency: group.Keep,
		})
	}
	for _, finding := range details.Inconsistencies {
		description := fmt.Sprintf("%s is required at %d different versions. Align all requirements on %s.",
			finding.Name, len(finding.Versions), finding.Recommended)
		if len(finding.UnsatisfiedConstraints) > 0 {
			description += fmt.Sprintf(" Note that %s does not satisfy %s; those requirements need updating first.",
				finding.Recommended, strings.Join(finding.UnsatisfiedConstraints, ", "))
		}
		suggestions = append(suggestions, Suggestion{
			Title:       fmt.Sprintf("Unify versions of %s", finding.Name),
			Description: description,
			Category:    "consolidation",
			Severity:    SeverityMedium,
			Dependency:  finding.Name,
			ToVersion:   finding.Recommended,
		})
	}
	for _, finding := range details.Bloat {
		suggestions = append(suggestions, Suggestion{
			Title: fmt.Sprintf("Review transitive dependency %s", finding.Name),
			Description: fmt.Sprintf("%s is pulled in by %d direct dependencies (e.g. via %s). Consider whether the chains that drag it in are all needed.",
				finding.Name, finding.DirectDependants, strings.Join(finding.Chain, " > ")),
			Category:   "consolidation",
			Severity:   SeverityLow,
			Dependency: finding.Name,
		})
	}
	return suggestions
}
