package metadata

import (
	"errors"
	"time"
)

// ErrNotFound is returned by a Provider when it has no record of a package.
var ErrNotFound = errors.New("package not found")

// HealthSignals carries externally supplied community-strength figures,
// each normalized to [0,1]. Nil means the signal is unknown; a missing
// signal must never be read as zero.
type HealthSignals struct {
	ContributorActivity *float64 `json:"contributor_activity,omitempty"`
	IssueResponsiveness *float64 `json:"issue_responsiveness,omitempty"`
}

// SizeMetrics carries per-package size and runtime figures. Zero values mean
// the figure was not reported by the registry.
type SizeMetrics struct {
	MinifiedBytes int64   `json:"minified_bytes"`
	GzippedBytes  int64   `json:"gzipped_bytes"`
	StartupMs     float64 `json:"startup_ms"`
	RuntimeMs     float64 `json:"runtime_ms"`
	MemoryMB      float64 `json:"memory_mb"`
}

// Vulnerability identifies a known security issue in a package.
type Vulnerability struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Severity string `json:"severity"`
	FixedIn  string `json:"fixed_in,omitempty"`
}

// PackageMetadata is the per-package fact bundle supplied by a registry.
// Fields a registry could not produce stay at their zero value; score inputs
// that must distinguish missing from zero are pointers.
type PackageMetadata struct {
	Name          string   `json:"name"`
	Ecosystem     string   `json:"ecosystem"`
	LatestVersion string   `json:"latest_version"`
	Licenses      []string `json:"licenses"`
	Deprecated    bool     `json:"deprecated"`

	// Category is an externally supplied functional tag such as "http-client".
	Category string `json:"category,omitempty"`

	// UsedFeatures / UnusedFeatures come from usage extraction done outside
	// the engine. Both nil means usage is unknown.
	UsedFeatures   []string `json:"used_features,omitempty"`
	UnusedFeatures []string `json:"unused_features,omitempty"`

	// UsageScore is an opaque project-level usage signal in [0,1].
	UsageScore *float64 `json:"usage_score,omitempty"`

	// Requirements lists the package's own dependencies, name to constraint.
	Requirements map[string]string `json:"requirements,omitempty"`

	Health          HealthSignals   `json:"health"`
	Size            SizeMetrics     `json:"size"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`

	// BreakingRanges lists releases the registry has recorded as breaking
	// or yanked.
	BreakingRanges []BreakingRange `json:"breaking_ranges,omitempty"`
}

// BreakingRange marks a recorded breaking release.
type BreakingRange struct {
	Version string `json:"version"`
	// APIUnchanged is the fraction of the public API surface untouched by
	// the release, in [0,1]. Nil means unknown.
	APIUnchanged *float64 `json:"api_unchanged,omitempty"`
}

// Release is a single entry in a package's version history.
type Release struct {
	Version    string    `json:"version"`
	ReleasedAt time.Time `json:"released_at"`
	IsYanked   bool      `json:"is_yanked"`
}

// Provider supplies per-package facts. Implementations must be idempotent
// and side-effect-free from the engine's point of view: the engine may call
// either method any number of times for the same package during an analysis.
type Provider interface {
	// Lookup returns the metadata bundle for a package, or ErrNotFound.
	Lookup(name, ecosystem string) (*PackageMetadata, error)

	// VersionHistory returns the package's releases ordered oldest first.
	// An empty history is not an error.
	VersionHistory(name, ecosystem string) ([]Release, error)
}

// UnknownScore is the neutral stand-in for a score a provider could not
// supply. Keeping it at 0.5 rather than 0 avoids biasing composite scores.
const UnknownScore = 0.5

// ScoreOrUnknown maps an optional signal to a usable score, clamping to [0,1].
func ScoreOrUnknown(v *float64) float64 {
	if v == nil {
		return UnknownScore
	}
	if *v < 0 {
		return 0
	}
	if *v > 1 {
		return 1
	}
	return *v
}

// Float returns a pointer to v. Convenience for building metadata literally.
func Float(v float64) *float64 {
	return &v
}
