package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotLookup(t *testing.T) {
	snap := NewSnapshot()
	snap.Add(&PackageMetadata{Name: "axios", Ecosystem: "npm", LatestVersion: "1.6.0"}, nil)

	meta, err := snap.Lookup("axios", "npm")
	require.NoError(t, err)
	assert.Equal(t, "1.6.0", meta.LatestVersion)

	_, err = snap.Lookup("axios", "pypi")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = snap.Lookup("requests", "npm")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotSortsHistory(t *testing.T) {
	snap := NewSnapshot()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	snap.Add(&PackageMetadata{Name: "lib", Ecosystem: "npm", LatestVersion: "1.2.0"}, []Release{
		{Version: "1.2.0", ReleasedAt: base.AddDate(0, 6, 0)},
		{Version: "1.0.0", ReleasedAt: base},
		{Version: "1.1.0", ReleasedAt: base.AddDate(0, 3, 0)},
	})

	history, err := snap.VersionHistory("lib", "npm")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "1.0.0", history[0].Version)
	assert.Equal(t, "1.2.0", history[2].Version)

	// Unknown packages have an empty history, not an error.
	history, err = snap.VersionHistory("nothing", "npm")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLoadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	content := `{
		"packages": [
			{
				"name": "axios",
				"ecosystem": "npm",
				"latest_version": "1.6.0",
				"licenses": ["MIT"],
				"category": "http-client",
				"usage_score": 0.8,
				"requirements": {"follow-redirects": "^1.15.0"},
				"releases": [
					{"version": "1.5.0", "released_at": "2024-01-10T00:00:00Z"},
					{"version": "1.6.0", "released_at": "2024-04-02T00:00:00Z"}
				]
			}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)

	meta, err := snap.Lookup("axios", "npm")
	require.NoError(t, err)
	assert.Equal(t, []string{"MIT"}, meta.Licenses)
	assert.Equal(t, "http-client", meta.Category)
	require.NotNil(t, meta.UsageScore)
	assert.InDelta(t, 0.8, *meta.UsageScore, 0.001)
	assert.Equal(t, "^1.15.0", meta.Requirements["follow-redirects"])

	history, err := snap.VersionHistory("axios", "npm")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestScoreOrUnknown(t *testing.T) {
	assert.Equal(t, 0.5, ScoreOrUnknown(nil))
	assert.Equal(t, 0.8, ScoreOrUnknown(Float(0.8)))
	assert.Equal(t, 0.0, ScoreOrUnknown(Float(-2)))
	assert.Equal(t, 1.0, ScoreOrUnknown(Float(3)))
}
