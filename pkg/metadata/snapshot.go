package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Snapshot is a Provider backed by an in-memory set of package records,
// typically loaded from a JSON dump produced by the registry-scraping layer.
// It is the provider the CLI uses and the fixture provider the tests use.
type Snapshot struct {
	packages map[string]*PackageMetadata
	history  map[string][]Release
}

// snapshotFile is the on-disk shape of a metadata snapshot.
type snapshotFile struct {
	Packages []snapshotPackage `json:"packages"`
}

type snapshotPackage struct {
	PackageMetadata
	Releases []Release `json:"releases,omitempty"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		packages: make(map[string]*PackageMetadata),
		history:  make(map[string][]Release),
	}
}

// LoadSnapshot reads a snapshot from a JSON file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata snapshot: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid metadata snapshot: %w", err)
	}

	s := NewSnapshot()
	for i := range file.Packages {
		pkg := file.Packages[i]
		meta := pkg.PackageMetadata
		s.Add(&meta, pkg.Releases)
	}
	return s, nil
}

func key(name, ecosystem string) string {
	return ecosystem + "/" + name
}

// Add registers a package and its release history. Releases are kept sorted
// oldest first regardless of input order.
func (s *Snapshot) Add(meta *PackageMetadata, releases []Release) {
	k := key(meta.Name, meta.Ecosystem)
	s.packages[k] = meta

	if len(releases) > 0 {
		sorted := make([]Release, len(releases))
		copy(sorted, releases)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].ReleasedAt.Before(sorted[j].ReleasedAt)
		})
		s.history[k] = sorted
	}
}

// Lookup implements Provider.
func (s *Snapshot) Lookup(name, ecosystem string) (*PackageMetadata, error) {
	meta, ok := s.packages[key(name, ecosystem)]
	if !ok {
		return nil, fmt.Errorf("%s (%s): %w", name, ecosystem, ErrNotFound)
	}
	return meta, nil
}

// VersionHistory implements Provider.
func (s *Snapshot) VersionHistory(name, ecosystem string) ([]Release, error) {
	return s.history[key(name, ecosystem)], nil
}
