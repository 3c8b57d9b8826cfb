package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/depintel/depintel/pkg/recommend"
)

// PrintTextReport prints the recommendation report in a tabular text format
func PrintTextReport(w io.Writer, report *recommend.Report) {
	const descriptionLimit = 70 // Max characters for the description column

	fmt.Fprintf(w, "Project: %s\n", report.ProjectID)
	fmt.Fprintf(w, "Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Recommendations: %d (high: %d, medium: %d, low: %d)\n\n",
		len(report.Recommendations),
		report.SeverityCounts["high"],
		report.SeverityCounts["medium"],
		report.SeverityCounts["low"],
	)

	if len(report.Recommendations) == 0 {
		fmt.Fprintln(w, "No recommendations. The dependency graph looks healthy.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "SEVERITY\tCATEGORY\tDEPENDENCY\tRECOMMENDATION")
	fmt.Fprintln(tw, "--------\t--------\t----------\t--------------")

	for _, r := range report.Recommendations {
		description := r.Description
		if runes := []rune(description); len(runes) > descriptionLimit {
			description = string(runes[:descriptionLimit-3]) + "..."
		}
		description = strings.ReplaceAll(description, "\t", " ") // Replace tabs to avoid breaking alignment

		dependency := r.Dependency
		if dependency == "" {
			dependency = "-"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			strings.ToUpper(string(r.Severity)),
			r.Category,
			dependency,
			description,
		)
	}

	tw.Flush()
}
