package output

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/depintel/depintel/pkg/recommend"
)

// SARIF format specification: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

// SarifReport represents the top-level SARIF report structure
type SarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SarifRun `json:"runs"`
}

// SarifRun represents a single run of the analysis tool
type SarifRun struct {
	Tool        SarifTool         `json:"tool"`
	Results     []SarifResult     `json:"results"`
	Invocations []SarifInvocation `json:"invocations"`
}

// SarifTool represents the tool that performed the analysis
type SarifTool struct {
	Driver SarifDriver `json:"driver"`
}

// SarifDriver represents the driver of the tool
type SarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []SarifRule `json:"rules"`
}

// SarifRule represents a rule that was evaluated during the analysis
type SarifRule struct {
	ID               string            `json:"id"`
	ShortDescription SarifMessage      `json:"shortDescription"`
	FullDescription  SarifMessage      `json:"fullDescription"`
	Help             SarifMessage      `json:"help"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// SarifResult represents a result of the analysis
type SarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   SarifMessage    `json:"message"`
	Locations []SarifLocation `json:"locations"`
}

// SarifMessage represents a message in the SARIF report
type SarifMessage struct {
	Text string `json:"text"`
}

// SarifLocation represents a location in the code
type SarifLocation struct {
	PhysicalLocation SarifPhysicalLocation `json:"physicalLocation"`
}

// SarifPhysicalLocation represents a physical location in the code
type SarifPhysicalLocation struct {
	ArtifactLocation SarifArtifactLocation `json:"artifactLocation"`
	Region           SarifRegion           `json:"region,omitempty"`
}

// SarifArtifactLocation represents the location of an artifact
type SarifArtifactLocation struct {
	URI string `json:"uri"`
}

// SarifRegion represents a region in the code
type SarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

// SarifInvocation represents an invocation of the tool
type SarifInvocation struct {
	ExecutionSuccessful bool   `json:"executionSuccessful"`
	StartTimeUtc        string `json:"startTimeUtc"`
	EndTimeUtc          string `json:"endTimeUtc"`
}

// GenerateSarifReport converts a recommendation report to SARIF format
func GenerateSarifReport(report *recommend.Report, manifestPath string) ([]byte, error) {
	rules := []SarifRule{
		{
			ID:               "impact",
			ShortDescription: SarifMessage{Text: "High-impact dependency"},
			FullDescription:  SarifMessage{Text: "This dependency carries a high share of the project's business value or risk."},
			Help:             SarifMessage{Text: "Treat upgrades of this dependency with extra review and testing."},
		},
		{
			ID:               "usage",
			ShortDescription: SarifMessage{Text: "Underused dependency"},
			FullDescription:  SarifMessage{Text: "Only a small part of this dependency's surface is actually used."},
			Help:             SarifMessage{Text: "Consider inlining the used functionality or removing the dependency."},
		},
		{
			ID:               "compatibility",
			ShortDescription: SarifMessage{Text: "Compatibility risk"},
			FullDescription:  SarifMessage{Text: "This dependency's release trajectory points at breaking changes or deprecation."},
			Help:             SarifMessage{Text: "Review the compatibility timeline and plan the migration."},
		},
		{
			ID:               "consolidation",
			ShortDescription: SarifMessage{Text: "Consolidation opportunity"},
			FullDescription:  SarifMessage{Text: "Overlapping, conflicting, or bloating dependencies can be reduced."},
			Help:             SarifMessage{Text: "Standardize on a single package or version."},
		},
		{
			ID:               "health",
			ShortDescription: SarifMessage{Text: "Unhealthy dependency"},
			FullDescription:  SarifMessage{Text: "This dependency shows signs of abandonment, deprecation, or known vulnerabilities."},
			Help:             SarifMessage{Text: "Plan a migration to a maintained alternative."},
		},
		{
			ID:               "license",
			ShortDescription: SarifMessage{Text: "License risk"},
			FullDescription:  SarifMessage{Text: "This dependency's license conflicts with or is unclear under the project's target license."},
			Help:             SarifMessage{Text: "Replace the dependency or clarify its licensing terms."},
		},
		{
			ID:               "performance",
			ShortDescription: SarifMessage{Text: "Performance cost"},
			FullDescription:  SarifMessage{Text: "This dependency contributes disproportionately to bundle size or runtime cost."},
			Help:             SarifMessage{Text: "Consider a lighter alternative or lazy loading."},
		},
	}

	results := make([]SarifResult, 0, len(report.Recommendations))
	for _, r := range report.Recommendations {
		level := "note"
		switch r.Severity {
		case "high":
			level = "error"
		case "medium":
			level = "warning"
		}

		message := r.Title
		if r.Description != "" {
			message = fmt.Sprintf("%s: %s", r.Title, r.Description)
		}

		results = append(results, SarifResult{
			RuleID:  r.Category,
			Level:   level,
			Message: SarifMessage{Text: message},
			Locations: []SarifLocation{
				{
					PhysicalLocation: SarifPhysicalLocation{
						ArtifactLocation: SarifArtifactLocation{URI: manifestPath},
					},
				},
			},
		})
	}

	now := time.Now().UTC().Format(time.RFC3339)
	sarifReport := SarifReport{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []SarifRun{
			{
				Tool: SarifTool{
					Driver: SarifDriver{
						Name:           "depintel",
						Version:        "1.0.0",
						InformationURI: "https://github.com/depintel/depintel",
						Rules:          rules,
					},
				},
				Results: results,
				Invocations: []SarifInvocation{
					{
						ExecutionSuccessful: true,
						StartTimeUtc:        now,
						EndTimeUtc:          now,
					},
				},
			},
		},
	}

	return json.MarshalIndent(sarifReport, "", "  ")
}
