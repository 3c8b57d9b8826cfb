package output

import (
	"encoding/json"

	"github.com/depintel/depintel/pkg/recommend"
)

// GenerateJSONReport converts a recommendation report to indented JSON
func GenerateJSONReport(report *recommend.Report) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}
