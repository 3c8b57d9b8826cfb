package graph

import (
	"encoding/json"
	"fmt"
	"os"
)

// Manifest is the declared dependency set of a project.
type Manifest struct {
	Project      string     `json:"project"`
	Dependencies []Declared `json:"dependencies"`
}

// LoadManifest reads a project manifest from a JSON file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if manifest.Project == "" {
		return nil, fmt.Errorf("manifest %s has no project name", path)
	}
	if len(manifest.Dependencies) == 0 {
		return nil, fmt.Errorf("manifest %s declares no dependencies", path)
	}
	for i, dep := range manifest.Dependencies {
		if dep.Name == "" {
			return nil, fmt.Errorf("manifest %s: dependency %d has no name", path, i)
		}
	}
	return &manifest, nil
}
