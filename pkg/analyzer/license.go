package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/depintel/depintel/pkg/config"
	"github.com/depintel/depintel/pkg/graph"
	"github.com/depintel/depintel/pkg/logger"
	"github.com/depintel/depintel/pkg/metadata"
)

// License families used by the compatibility matrix.
const (
	FamilyPermissive     = "permissive"
	FamilyWeakCopyleft   = "weak_copyleft"
	FamilyStrongCopyleft = "strong_copyleft"
	FamilyProprietary    = "proprietary"
	FamilyUnknown        = "unknown"
)

// LicenseFinding is the compliance verdict for one dependency.
type LicenseFinding struct {
	Name      string   `json:"name"`
	Ecosystem string   `json:"ecosystem"`
	Version   string   `json:"version"`
	Direct    bool     `json:"is_direct"`
	Licenses  []string `json:"licenses"`
	// Family of the most compatible license when several are offered.
	Family    string   `json:"family"`
	RiskLevel Severity `json:"risk_level"`
	Issue     string   `json:"issue,omitempty"`
}

// LicenseSummary carries the aggregate compliance figures.
type LicenseSummary struct {
	TargetLicense        string         `json:"target_license"`
	TargetFamily         string         `json:"target_family"`
	DependencyCount      int            `json:"dependency_count"`
	LicenseCounts        map[string]int `json:"license_counts"`
	RiskCounts           map[string]int `json:"risk_counts"`
	OverallRiskLevel     Severity       `json:"overall_risk_level"`
	CompliancePercentage float64        `json:"compliance_percentage"`
	// HighRiskDependencies lists the worst conflicts with their reasons,
	// capped at the five riskiest.
	HighRiskDependencies []LicenseFinding `json:"high_risk_dependencies"`
}

// highRiskLimit bounds the summary's high-risk list.
const highRiskLimit = 5

// LicenseDetails wraps the per-dependency findings.
type LicenseDetails struct {
	Findings []LicenseFinding `json:"findings"`
}

// LicenseChecker evaluates every dependency's license against the project's
// target license.
type LicenseChecker struct {
	cfg *config.Config
	now func() time.Time
}

// NewLicenseChecker creates a checker with the engine config.
func NewLicenseChecker(cfg *config.Config) *LicenseChecker {
	return &LicenseChecker{cfg: cfg, now: time.Now}
}

func (c *LicenseChecker) Type() Type { return TypeLicenseCompliance }

// Run classifies every dependency's licenses and scores them against the
// target license. The job config may override the target via
// "target_license".
func (c *LicenseChecker) Run(ctx context.Context, g *graph.DependencyGraph, provider metadata.Provider, jobCfg JobConfig) (*Result, error) {
	target, err := jobCfg.StringValue("target_license", c.cfg.License.TargetLicense)
	if err != nil {
		return nil, err
	}
	targetFamily := licenseFamily(target)
	if targetFamily == FamilyUnknown {
		return nil, fmt.Errorf("%w: unrecognized target license %q", ErrInvalidConfiguration, target)
	}
	logger.Debugf("checking license compliance against %s (%s)", target, targetFamily)

	findings := make([]LicenseFinding, 0, g.Size())
	licenseCounts := map[string]int{}
	riskCounts := map[string]int{
		string(SeverityHigh):   0,
		string(SeverityMedium): 0,
		string(SeverityLow):    0,
	}

	for _, node := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		finding := LicenseFinding{
			Name:      node.Name,
			Ecosystem: node.Ecosystem,
			Version:   node.Resolved,
			Direct:    node.IsDirect(),
		}
		if node.Metadata != nil {
			finding.Licenses = node.Metadata.Licenses
		}

		if len(finding.Licenses) == 0 {
			finding.Family = FamilyUnknown
			finding.RiskLevel = SeverityMedium
			finding.Issue = "license could not be determined and must be reviewed manually"
			licenseCounts[FamilyUnknown]++
		} else {
			// Dual-licensed packages may be used under whichever offered
			// license fits best, so the least risky one counts.
			finding.Family, finding.RiskLevel = bestLicenseChoice(targetFamily, finding.Licenses)
			if finding.RiskLevel != SeverityLow {
				finding.Issue = fmt.Sprintf("%s is %s and conflicts with the %s target license",
					strings.Join(finding.Licenses, " / "), finding.Family, target)
			}
			for _, license := range finding.Licenses {
				licenseCounts[normalizeLicense(license)]++
			}
		}

		riskCounts[string(finding.RiskLevel)]++
		findings = append(findings, finding)
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].RiskLevel.Rank() != findings[j].RiskLevel.Rank() {
			return findings[i].RiskLevel.Rank() > findings[j].RiskLevel.Rank()
		}
		return findings[i].Name < findings[j].Name
	})

	overall := SeverityLow
	if riskCounts[string(SeverityMedium)] > 0 {
		overall = SeverityMedium
	}
	if riskCounts[string(SeverityHigh)] > 0 {
		overall = SeverityHigh
	}

	compliance := 100.0
	if len(findings) > 0 {
		compliance = float64(riskCounts[string(SeverityLow)]) / float64(len(findings)) * 100
	}

	highRisk := make([]LicenseFinding, 0, highRiskLimit)
	for _, finding := range findings {
		if finding.RiskLevel != SeverityHigh {
			break
		}
		highRisk = append(highRisk, finding)
		if len(highRisk) == highRiskLimit {
			break
		}
	}

	summary := &LicenseSummary{
		TargetLicense:        target,
		TargetFamily:         targetFamily,
		DependencyCount:      len(findings),
		LicenseCounts:        licenseCounts,
		RiskCounts:           riskCounts,
		OverallRiskLevel:     overall,
		CompliancePercentage: round1(compliance),
		HighRiskDependencies: highRisk,
	}

	return &Result{
		Type:    TypeLicenseCompliance,
		Summary: summary,
		Details: &LicenseDetails{Findings: findings},
	}, nil
}

// bestLicenseChoice returns the family and risk of the most compatible
// license among the offered ones.
func bestLicenseChoice(targetFamily string, licenses []string) (string, Severity) {
	bestFamily := FamilyUnknown
	bestRisk := SeverityHigh
	for _, license := range licenses {
		family := licenseFamily(license)
		risk := familyRisk(targetFamily, family)
		if risk.Rank() < bestRisk.Rank() || bestFamily == FamilyUnknown {
			bestFamily = family
			bestRisk = risk
		}
	}
	return bestFamily, bestRisk
}

// licenseFamily maps an SPDX-style license identifier to its family.
func licenseFamily(license string) string {
	normalized := normalizeLicense(license)
	switch {
	case normalized == "":
		return FamilyUnknown
	case strings.HasPrefix(normalized, "agpl"),
		strings.HasPrefix(normalized, "gpl"):
		return FamilyStrongCopyleft
	case strings.HasPrefix(normalized, "lgpl"),
		strings.HasPrefix(normalized, "mpl"),
		strings.HasPrefix(normalized, "epl"),
		strings.HasPrefix(normalized, "cddl"):
		return FamilyWeakCopyleft
	case normalized == "mit",
		strings.HasPrefix(normalized, "apache"),
		strings.HasPrefix(normalized, "bsd"),
		normalized == "isc",
		normalized == "unlicense",
		strings.HasPrefix(normalized, "cc0"),
		normalized == "zlib":
		return FamilyPermissive
	case strings.Contains(normalized, "proprietary"),
		strings.Contains(normalized, "commercial"):
		return FamilyProprietary
	default:
		return FamilyUnknown
	}
}

func normalizeLicense(license string) string {
	return strings.ToLower(strings.TrimSpace(license))
}

// familyRisk implements the compatibility matrix: the risk of depending on
// a package of the given family under a project of the target family.
func familyRisk(targetFamily, depFamily string) Severity {
	if depFamily == FamilyUnknown {
		return SeverityMedium
	}
	switch targetFamily {
	case FamilyPermissive:
		switch depFamily {
		case FamilyPermissive:
			return SeverityLow
		case FamilyWeakCopyleft:
			return SeverityMedium
		default:
			return SeverityHigh
		}
	case FamilyWeakCopyleft:
		switch depFamily {
		case FamilyPermissive, FamilyWeakCopyleft:
			return SeverityLow
		case FamilyStrongCopyleft:
			return SeverityMedium
		default:
			return SeverityHigh
		}
	case FamilyStrongCopyleft:
		if depFamily == FamilyProprietary {
			return SeverityHigh
		}
		return SeverityLow
	case FamilyProprietary:
		switch depFamily {
		case FamilyPermissive, FamilyProprietary:
			return SeverityLow
		case FamilyWeakCopyleft:
			return SeverityMedium
		default:
			return SeverityHigh
		}
	}
	return SeverityMedium
}

// Suggestions surfaces the license conflicts worth acting on.
func (c *LicenseChecker) Suggestions(result *Result) []Suggestion {
	details, ok := result.Details.(*LicenseDetails)
	if !ok {
		return nil
	}

	suggestions := make([]Suggestion, 0)
	for _, finding := range details.Findings {
		switch finding.RiskLevel {
		case SeverityHigh:
			suggestions = append(suggestions, Suggestion{
				Title:       fmt.Sprintf("License conflict in %s", finding.Name),
				Description: fmt.Sprintf("%s. Replace it or obtain a compatible license.", finding.Issue),
				Category:    "license",
				Severity:    SeverityHigh,
				Dependency:  finding.Name,
			})
		case SeverityMedium:
			description := finding.Issue
			if finding.Family == FamilyUnknown {
				description = fmt.Sprintf("The license of %s could not be determined. Verify its terms before shipping.", finding.Name)
			}
			suggestions = append(suggestions, Suggestion{
				Title:       fmt.Sprintf("Review the license of %s", finding.Name),
				Description: description,
				Category:    "license",
				Severity:    SeverityMedium,
				Dependency:  finding.Name,
			})
		}
	}
	return suggestions
}
