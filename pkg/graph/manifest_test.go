package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "depintel.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `{
		"project": "storefront",
		"dependencies": [
			{"name": "axios", "ecosystem": "npm", "constraint": "^1.6.0"},
			{"name": "lodash", "ecosystem": "npm", "constraint": "~4.17.0"}
		]
	}`)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "storefront", manifest.Project)
	require.Len(t, manifest.Dependencies, 2)
	assert.Equal(t, "axios", manifest.Dependencies[0].Name)
	assert.Equal(t, "~4.17.0", manifest.Dependencies[1].Constraint)
}

func TestLoadManifestRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no project", `{"dependencies": [{"name": "axios"}]}`},
		{"no dependencies", `{"project": "storefront", "dependencies": []}`},
		{"unnamed dependency", `{"project": "storefront", "dependencies": [{"ecosystem": "npm"}]}`},
		{"not json", `version: 1`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
