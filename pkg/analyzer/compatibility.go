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

// Timeline event types.
const (
	EventPredictedRelease = "predicted_release"
	EventDeprecation      = "deprecation"
	EventBreakingChange   = "breaking_change"
)

const dateLayout = "2006-01-02"

// TimelineEvent is one dated prediction or recorded risk.
type TimelineEvent struct {
	Date       string `json:"date"`
	Dependency string `json:"dependency"`
	EventType  string `json:"event_type"`
	Version    string `json:"version,omitempty"`
	IsMajor    bool   `json:"is_major,omitempty"`
	// Confidence grows with the amount of release history behind a
	// prediction. Zero for recorded (non-predicted) events.
	Confidence float64 `json:"confidence,omitempty"`
	// CompatibilityScore is the fraction of the public API unchanged by a
	// breaking release. Only set on breaking_change events.
	CompatibilityScore float64 `json:"compatibility_score,omitempty"`
	Details            string  `json:"details,omitempty"`
}

// TimelineEntry groups the events of one calendar date.
type TimelineEntry struct {
	Date   string          `json:"date"`
	Events []TimelineEvent `json:"events"`
}

// IssueRecord is one finding inside a dependency's issue list.
type IssueRecord struct {
	Type    string `json:"type"`
	Version string `json:"version,omitempty"`
	Date    string `json:"date,omitempty"`
	Details string `json:"details,omitempty"`
}

// DependencyIssues aggregates a dependency's findings with one severity.
type DependencyIssues struct {
	Name           string        `json:"name"`
	CurrentVersion string        `json:"current_version,omitempty"`
	LatestVersion  string        `json:"latest_version,omitempty"`
	Direct         bool          `json:"is_direct"`
	Severity       Severity      `json:"severity"`
	Issues         []IssueRecord `json:"issues,omitempty"`
}

// CompatibilitySummary carries the aggregate prediction figures.
type CompatibilitySummary struct {
	HorizonDays     int            `json:"time_horizon_days"`
	DependencyCount int            `json:"dependency_count"`
	TimelineDates   int            `json:"timeline_dates"`
	EventCount      int            `json:"event_count"`
	IssueCounts     map[string]int `json:"issue_counts"`
}

// CompatibilityDetails wraps the timeline and per-dependency issues.
type CompatibilityDetails struct {
	Timeline         []TimelineEntry    `json:"timeline"`
	DependencyIssues []DependencyIssues `json:"dependency_issues"`
}

// CompatibilityPredictor forecasts breaking changes from release cadence.
type CompatibilityPredictor struct {
	cfg *config.Config
	now func() time.Time
}

// NewCompatibilityPredictor creates a predictor with the engine config.
func NewCompatibilityPredictor(cfg *config.Config) *CompatibilityPredictor {
	return &CompatibilityPredictor{cfg: cfg, now: time.Now}
}

func (p *CompatibilityPredictor) Type() Type { return TypeCompatibilityPrediction }

// Run builds the forward timeline and per-dependency issue records over the
// configured horizon. The job config may override the horizon via
// "time_horizon_days".
func (p *CompatibilityPredictor) Run(ctx context.Context, g *graph.DependencyGraph, provider metadata.Provider, jobCfg JobConfig) (*Result, error) {
	horizon, err := jobCfg.IntValue("time_horizon_days", p.cfg.Prediction.HorizonDays)
	if err != nil {
		return nil, err
	}
	if horizon < 1 {
		return nil, fmt.Errorf("%w: time_horizon_days must be positive, got %d", ErrInvalidConfiguration, horizon)
	}

	now := p.now()
	horizonEnd := now.AddDate(0, 0, horizon)
	logger.Debugf("predicting compatibility over %d days for %d dependencies", horizon, g.Size())

	byDate := map[string][]TimelineEvent{}
	issues := make([]DependencyIssues, 0, g.Size())

	for _, node := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		history, err := provider.VersionHistory(node.Name, node.Ecosystem)
		if err != nil {
			history = nil
		}

		record := DependencyIssues{
			Name:           node.Name,
			CurrentVersion: node.Constraint,
			LatestVersion:  node.Resolved,
			Direct:         node.IsDirect(),
		}

		if len(history) == 0 {
			// Nothing to extrapolate from: stays off the timeline but is
			// surfaced so the gap is visible.
			record.Severity = SeverityUnknown
			record.Issues = append(record.Issues, IssueRecord{
				Type:    "no_release_history",
				Details: "no release history available, trajectory cannot be predicted",
			})
			issues = append(issues, record)
			continue
		}

		severity := SeverityLow

		// Predicted releases from cadence.
		for _, event := range p.predictReleases(node, history, now, horizonEnd) {
			byDate[event.Date] = append(byDate[event.Date], event)
			if event.IsMajor {
				record.Issues = append(record.Issues, IssueRecord{
					Type:    "major_version_change",
					Version: event.Version,
					Date:    event.Date,
					Details: "predicted major release may contain breaking changes",
				})
			}
		}

		// Deprecation risks: an explicitly deprecated package, or a declared
		// version trailing far behind latest.
		if reason := p.deprecationReason(node); reason != "" {
			date := now.Format(dateLayout)
			byDate[date] = append(byDate[date], TimelineEvent{
				Date:       date,
				Dependency: node.Name,
				EventType:  EventDeprecation,
				Details:    reason,
			})
			record.Issues = append(record.Issues, IssueRecord{
				Type:    EventDeprecation,
				Date:    date,
				Details: reason,
			})
			severity = MaxSeverity(severity, SeverityMedium)
		}

		// Recorded breaking ranges, surfaced even when already in the past.
		if node.Metadata != nil {
			for _, br := range node.Metadata.BreakingRanges {
				date := releaseDateOf(history, br.Version)
				if date == "" {
					date = now.Format(dateLayout)
				}
				score := metadata.ScoreOrUnknown(br.APIUnchanged)
				byDate[date] = append(byDate[date], TimelineEvent{
					Date:               date,
					Dependency:         node.Name,
					EventType:          EventBreakingChange,
					Version:            br.Version,
					CompatibilityScore: score,
					Details:            fmt.Sprintf("version %s recorded as breaking", br.Version),
				})
				record.Issues = append(record.Issues, IssueRecord{
					Type:    EventBreakingChange,
					Version: br.Version,
					Date:    date,
					Details: fmt.Sprintf("recorded breaking change, %.0f%% of the API unchanged", score*100),
				})
				severity = MaxSeverity(severity, SeverityHigh)
			}
		}

		record.Severity = severity
		issues = append(issues, record)
	}

	timeline := materializeTimeline(byDate)
	sort.Slice(issues, func(i, j int) bool { return issues[i].Name < issues[j].Name })

	summary := &CompatibilitySummary{
		HorizonDays:     horizon,
		DependencyCount: g.Size(),
		TimelineDates:   len(timeline),
		IssueCounts: map[string]int{
			string(SeverityHigh):    0,
			string(SeverityMedium):  0,
			string(SeverityLow):     0,
			string(SeverityUnknown): 0,
		},
	}
	for _, entry := range timeline {
		summary.EventCount += len(entry.Events)
	}
	for _, record := range issues {
		summary.IssueCounts[string(record.Severity)]++
	}

	return &Result{
		Type:    TypeCompatibilityPrediction,
		Summary: summary,
		Details: &CompatibilityDetails{Timeline: timeline, DependencyIssues: issues},
	}, nil
}

// predictReleases extrapolates the release cadence forward. The mean
// inter-release interval over the trailing sample is projected from the last
// release until the horizon; projections that would land before now are
// rolled forward so the timeline stays predictive.
func (p *CompatibilityPredictor) predictReleases(node *graph.DependencyNode, history []metadata.Release, now, horizonEnd time.Time) []TimelineEvent {
	sample := history
	if n := p.cfg.Prediction.ReleaseSampleSize; len(sample) > n {
		sample = sample[len(sample)-n:]
	}
	if len(sample) < 2 {
		return nil
	}

	var totalDays float64
	intervals := 0
	for i := 1; i < len(sample); i++ {
		days := sample[i].ReleasedAt.Sub(sample[i-1].ReleasedAt).Hours() / 24
		if days <= 0 {
			continue
		}
		totalDays += days
		intervals++
	}
	if intervals == 0 {
		return nil
	}
	meanInterval := totalDays / float64(intervals)

	confidence := 0.3 + 0.05*float64(intervals)
	if confidence > 0.9 {
		confidence = 0.9
	}

	isMajor := p.majorBumpRate(history) > p.cfg.Prediction.MajorBumpsPerYear

	events := make([]TimelineEvent, 0)
	next := history[len(history)-1].ReleasedAt
	for {
		next = next.Add(time.Duration(meanInterval*24) * time.Hour)
		if next.After(horizonEnd) {
			break
		}
		if next.Before(now) {
			continue
		}
		events = append(events, TimelineEvent{
			Date:       next.Format(dateLayout),
			Dependency: node.Name,
			EventType:  EventPredictedRelease,
			IsMajor:    isMajor,
			Confidence: round2(confidence),
			Details:    fmt.Sprintf("release predicted from a %.0f-day mean interval", meanInterval),
		})
	}
	return events
}

// majorBumpRate returns historical major bumps per year over the full
// history span.
func (p *CompatibilityPredictor) majorBumpRate(history []metadata.Release) float64 {
	if len(history) < 2 {
		return 0
	}

	majors := 0
	var prev *semver.Version
	for _, release := range history {
		v, err := semver.NewVersion(release.Version)
		if err != nil {
			continue
		}
		if prev != nil && v.Major() > prev.Major() {
			majors++
		}
		prev = v
	}

	spanYears := history[len(history)-1].ReleasedAt.Sub(history[0].ReleasedAt).Hours() / 24 / 365
	if spanYears <= 0 {
		spanYears = 1.0 / 365
	}
	return float64(majors) / spanYears
}

// deprecationReason returns a human-readable reason when the dependency
// carries deprecation risk, or empty.
func (p *CompatibilityPredictor) deprecationReason(node *graph.DependencyNode) string {
	if node.Metadata != nil && node.Metadata.Deprecated {
		return fmt.Sprintf("%s is marked deprecated by its maintainers", node.Name)
	}

	declared := parseLooseVersion(node.Constraint)
	latest := parseLooseVersion(node.Resolved)
	if declared == nil || latest == nil {
		return ""
	}
	if latest.Major() == declared.Major() &&
		int(latest.Minor())-int(declared.Minor()) > p.cfg.Prediction.MinorVersionsBehind {
		return fmt.Sprintf("declared version %s is %d minor releases behind %s",
			node.Constraint, latest.Minor()-declared.Minor(), node.Resolved)
	}
	if latest.Major() > declared.Major() {
		return fmt.Sprintf("declared version %s is a major release behind %s", node.Constraint, node.Resolved)
	}
	return ""
}

// parseLooseVersion parses a version that may carry a range operator prefix.
func parseLooseVersion(v string) *semver.Version {
	trimmed := strings.TrimLeft(v, "^~><= v")
	if trimmed == "" {
		return nil
	}
	parsed, err := semver.NewVersion(trimmed)
	if err != nil {
		return nil
	}
	return parsed
}

func releaseDateOf(history []metadata.Release, version string) string {
	for _, release := range history {
		if release.Version == version {
			return release.ReleasedAt.Format(dateLayout)
		}
	}
	return ""
}

// materializeTimeline sorts the date-grouped events chronologically, and
// events within a date by dependency then type for a stable document.
func materializeTimeline(byDate map[string][]TimelineEvent) []TimelineEntry {
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	timeline := make([]TimelineEntry, 0, len(dates))
	for _, date := range dates {
		events := byDate[date]
		sort.Slice(events, func(i, j int) bool {
			if events[i].Dependency != events[j].Dependency {
				return events[i].Dependency < events[j].Dependency
			}
			return events[i].EventType < events[j].EventType
		})
		timeline = append(timeline, TimelineEntry{Date: date, Events: events})
	}
	return timeline
}

// Suggestions surfaces dependencies whose trajectory needs planning.
func (p *CompatibilityPredictor) Suggestions(result *Result) []Suggestion {
	details, ok := result.Details.(*CompatibilityDetails)
	if !ok {
		return nil
	}

	suggestions := make([]Suggestion, 0)
	for _, record := range details.DependencyIssues {
		switch record.Severity {
		case SeverityHigh:
			suggestions = append(suggestions, Suggestion{
				Title: fmt.Sprintf("Breaking changes expected for %s", record.Name),
				Description: fmt.Sprintf(
					"%s has recorded or predicted breaking changes. Review the compatibility timeline and plan the upgrade deliberately.",
					record.Name),
				Category:    "compatibility",
				Severity:    SeverityHigh,
				Dependency:  record.Name,
				FromVersion: record.CurrentVersion,
				ToVersion:   record.LatestVersion,
			})
		case SeverityMedium:
			suggestions = append(suggestions, Suggestion{
				Title: fmt.Sprintf("Update lag for %s", record.Name),
				Description: fmt.Sprintf(
					"%s is trailing its upstream releases. Catching up now avoids a harder migration later.",
					record.Name),
				Category:    "compatibility",
				Severity:    SeverityMedium,
				Dependency:  record.Name,
				FromVersion: record.CurrentVersion,
				ToVersion:   record.LatestVersion,
			})
		}
	}
	return suggestions
}
