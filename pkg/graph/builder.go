package graph

import (
	"errors"
	"fmt"

	"github.com/depintel/depintel/pkg/logger"
	"github.com/depintel/depintel/pkg/metadata"
)

// DefaultMaxDepth bounds transitive expansion when the caller does not
// override it.
const DefaultMaxDepth = 4

// Declared is one dependency as stated in the project's manifests, already
// normalized by the upload/parsing layer.
type Declared struct {
	Name       string `json:"name"`
	Ecosystem  string `json:"ecosystem"`
	Constraint string `json:"constraint"`
}

// UnresolvedDependencyError reports that the metadata provider could not
// resolve a directly declared dependency. Missing metadata for transitive
// packages degrades to unknown fields instead.
type UnresolvedDependencyError struct {
	Name      string
	Ecosystem string
	Err       error
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("cannot resolve declared dependency %s (%s): %v", e.Name, e.Ecosystem, e.Err)
}

func (e *UnresolvedDependencyError) Unwrap() error {
	return e.Err
}

// Builder assembles a DependencyGraph from declared dependencies plus
// recursively resolved transitive requirements.
type Builder struct {
	provider metadata.Provider
	maxDepth int
}

// NewBuilder creates a Builder over the given metadata provider.
func NewBuilder(provider metadata.Provider) *Builder {
	return &Builder{provider: provider, maxDepth: DefaultMaxDepth}
}

// WithMaxDepth overrides the transitive expansion bound.
func (b *Builder) WithMaxDepth(depth int) *Builder {
	if depth > 0 {
		b.maxDepth = depth
	}
	return b
}

// Build resolves the declared dependencies into a graph. It fails with
// UnresolvedDependencyError only when a declared dependency has no metadata;
// transitive lookup failures leave the node with nil metadata so scores
// degrade to unknown rather than zero.
func (b *Builder) Build(declared []Declared) (*DependencyGraph, error) {
	g := &DependencyGraph{
		nodes: make(map[string]*DependencyNode),
		edges: make(map[string]map[string]bool),
	}

	// Depth 0: every declared dependency must resolve.
	for _, d := range declared {
		meta, err := b.provider.Lookup(d.Name, d.Ecosystem)
		if err != nil {
			return nil, &UnresolvedDependencyError{Name: d.Name, Ecosystem: d.Ecosystem, Err: err}
		}

		node := b.mergeNode(g, d.Name, d.Ecosystem, d.Constraint, RootName, 0)
		node.Constraint = d.Constraint
		node.Metadata = meta
		node.Resolved = meta.LatestVersion
		addEdge(g, RootName, d.Name)
	}

	// Breadth-first transitive expansion. Expanding level by level keeps
	// every node's recorded depth equal to its shortest distance from the
	// root, and re-encountered packages merge into the existing node.
	frontier := make([]string, 0, len(declared))
	for _, d := range declared {
		frontier = append(frontier, d.Name)
	}

	for depth := 1; depth <= b.maxDepth && len(frontier) > 0; depth++ {
		next := make([]string, 0)
		for _, parentName := range frontier {
			parent := g.nodes[parentName]
			if parent == nil || parent.Metadata == nil {
				continue
			}
			for childName, constraint := range parent.Metadata.Requirements {
				// A dropped back-edge must leave no trace in the child's
				// parent or version-usage sets.
				if !addEdge(g, parentName, childName) {
					continue
				}
				existed := g.nodes[childName] != nil
				child := b.mergeNode(g, childName, parent.Ecosystem, constraint, parentName, depth)
				if !existed {
					b.resolveTransitive(child)
					next = append(next, childName)
				}
			}
		}
		frontier = next
	}

	return g, nil
}

// mergeNode returns the node for a package, creating it at the given depth
// when first seen and otherwise folding the new usage into it. Depth only
// ever decreases, keeping the shortest-path invariant.
func (b *Builder) mergeNode(g *DependencyGraph, name, ecosystem, constraint, parent string, depth int) *DependencyNode {
	node, ok := g.nodes[name]
	if !ok {
		node = &DependencyNode{
			Name:         name,
			Ecosystem:    ecosystem,
			Depth:        depth,
			Parents:      make(map[string]bool),
			VersionUsage: make(map[string]map[string]bool),
		}
		g.nodes[name] = node
	}
	if depth < node.Depth {
		node.Depth = depth
	}
	node.Parents[parent] = true

	if constraint != "" {
		if node.VersionUsage[constraint] == nil {
			node.VersionUsage[constraint] = make(map[string]bool)
		}
		node.VersionUsage[constraint][parent] = true
	}
	return node
}

// resolveTransitive attaches metadata to a transitive node, tolerating
// lookup failures.
func (b *Builder) resolveTransitive(node *DependencyNode) {
	meta, err := b.provider.Lookup(node.Name, node.Ecosystem)
	if err != nil {
		if !errors.Is(err, metadata.ErrNotFound) {
			logger.Debugf("metadata lookup failed for transitive dependency %s: %v", node.Name, err)
		}
		return
	}
	node.Metadata = meta
	node.Resolved = meta.LatestVersion
}

// addEdge records parent → child, dropping back-edges that would form a
// cycle so expansion always terminates on malformed manifests.
func addEdge(g *DependencyGraph, parent, child string) bool {
	if createsCycle(g, parent, child) {
		logger.Debugf("dropping back-edge %s -> %s", parent, child)
		return false
	}
	if g.edges[parent] == nil {
		g.edges[parent] = make(map[string]bool)
	}
	g.edges[parent][child] = true
	return true
}

// createsCycle reports whether child already reaches parent.
func createsCycle(g *DependencyGraph, parent, child string) bool {
	if parent == child {
		return true
	}
	return g.reaches(child, parent, map[string]bool{})
}
