package analyzer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/depintel/depintel/pkg/graph"
	"github.com/depintel/depintel/pkg/metadata"
)

// testClock is the fixed reference time all analyzer tests run against.
var testClock = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testClock }

// release builds one history entry released the given number of days before
// the test clock.
func release(version string, daysAgo int) metadata.Release {
	return metadata.Release{
		Version:    version,
		ReleasedAt: testClock.AddDate(0, 0, -daysAgo),
	}
}

// cadence builds a history of count releases, one every intervalDays, ending
// lastDaysAgo before the test clock. Versions are minor bumps of 1.x.0.
func cadence(count, intervalDays, lastDaysAgo int) []metadata.Release {
	releases := make([]metadata.Release, 0, count)
	for i := 0; i < count; i++ {
		daysAgo := lastDaysAgo + (count-1-i)*intervalDays
		releases = append(releases, metadata.Release{
			Version:    versionForIndex(i),
			ReleasedAt: testClock.AddDate(0, 0, -daysAgo),
		})
	}
	return releases
}

func versionForIndex(i int) string {
	return fmt.Sprintf("1.%d.0", i)
}

func buildGraph(t *testing.T, snap *metadata.Snapshot, declared []graph.Declared) *graph.DependencyGraph {
	t.Helper()
	g, err := graph.NewBuilder(snap).Build(declared)
	require.NoError(t, err)
	return g
}

func declareWithConstraint(name, constraint string) []graph.Declared {
	return []graph.Declared{{Name: name, Ecosystem: "npm", Constraint: constraint}}
}

func declare(names ...string) []graph.Declared {
	declared := make([]graph.Declared, 0, len(names))
	for _, name := range names {
		declared = append(declared, graph.Declared{Name: name, Ecosystem: "npm", Constraint: "^1.0.0"})
	}
	return declared
}
