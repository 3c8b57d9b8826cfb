package graph

import (
	"sort"

	"github.com/depintel/depintel/pkg/metadata"
)

// RootName is the synthetic node every direct dependency hangs off.
const RootName = "project"

// DependencyNode is one logical package in the graph. A package referenced
// at multiple versions stays a single node; VersionUsage records which
// parents require which version.
type DependencyNode struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`

	// Constraint is the version constraint declared for this package by the
	// project itself. Empty for purely transitive nodes.
	Constraint string `json:"constraint,omitempty"`

	// Resolved is the latest version the metadata provider reports.
	Resolved string `json:"resolved,omitempty"`

	// Depth is the minimum number of edges from the root across all paths.
	// 0 means direct.
	Depth int `json:"depth"`

	// Parents holds the names of nodes that require this one. The root's
	// requirements appear as RootName.
	Parents map[string]bool `json:"-"`

	// VersionUsage maps each version constraint in use to the set of parents
	// requiring it.
	VersionUsage map[string]map[string]bool `json:"-"`

	// Metadata is the provider's fact bundle, nil when lookup failed for a
	// transitive node.
	Metadata *metadata.PackageMetadata `json:"-"`
}

// IsDirect reports whether the node is a direct dependency of the project.
func (n *DependencyNode) IsDirect() bool {
	return n.Depth == 0
}

// ParentNames returns the node's parents sorted by name.
func (n *DependencyNode) ParentNames() []string {
	names := make([]string, 0, len(n.Parents))
	for p := range n.Parents {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// VersionsInUse returns the distinct version constraints recorded for the
// node, sorted.
func (n *DependencyNode) VersionsInUse() []string {
	versions := make([]string, 0, len(n.VersionUsage))
	for v := range n.VersionUsage {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// DependencyGraph is the read-only dependency model every analyzer consumes.
// It is built once per analysis and never mutated afterwards.
type DependencyGraph struct {
	nodes map[string]*DependencyNode
	// edges maps a parent node name to the set of child node names it
	// requires. The root's edges are keyed by RootName.
	edges map[string]map[string]bool
}

// Node returns the node for a package name, or nil.
func (g *DependencyGraph) Node(name string) *DependencyNode {
	return g.nodes[name]
}

// Nodes returns all nodes sorted by name, for deterministic iteration.
func (g *DependencyGraph) Nodes() []*DependencyNode {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	nodes := make([]*DependencyNode, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, g.nodes[name])
	}
	return nodes
}

// Direct returns the direct dependencies sorted by name.
func (g *DependencyGraph) Direct() []*DependencyNode {
	direct := make([]*DependencyNode, 0)
	for _, n := range g.Nodes() {
		if n.IsDirect() {
			direct = append(direct, n)
		}
	}
	return direct
}

// Children returns the names of the nodes a parent requires, sorted.
func (g *DependencyGraph) Children(parent string) []string {
	children := make([]string, 0, len(g.edges[parent]))
	for c := range g.edges[parent] {
		children = append(children, c)
	}
	sort.Strings(children)
	return children
}

// Size returns the number of nodes in the graph, the root excluded.
func (g *DependencyGraph) Size() int {
	return len(g.nodes)
}

// ShortestPath returns the node names along a shortest root-to-target path,
// the root excluded, or nil if the target is unreachable. Used by the
// consolidation analyzer to surface a representative dependency chain.
func (g *DependencyGraph) ShortestPath(target string) []string {
	if g.nodes[target] == nil {
		return nil
	}

	// BFS from the root; predecessors give one shortest path.
	prev := map[string]string{RootName: ""}
	queue := []string{RootName}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == target {
			break
		}
		for _, child := range g.Children(current) {
			if _, seen := prev[child]; seen {
				continue
			}
			prev[child] = current
			queue = append(queue, child)
		}
	}

	if _, ok := prev[target]; !ok {
		return nil
	}

	path := []string{}
	for at := target; at != RootName; at = prev[at] {
		path = append([]string{at}, path...)
	}
	return path
}

// DirectDependants returns the names of direct dependencies whose subtrees
// reach the target node, sorted. A direct dependency named target does not
// count as its own dependant.
func (g *DependencyGraph) DirectDependants(target string) []string {
	dependants := make([]string, 0)
	for _, direct := range g.Direct() {
		if direct.Name == target {
			continue
		}
		if g.reaches(direct.Name, target, map[string]bool{}) {
			dependants = append(dependants, direct.Name)
		}
	}
	return dependants
}

func (g *DependencyGraph) reaches(from, target string, seen map[string]bool) bool {
	if from == target {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	for child := range g.edges[from] {
		if g.reaches(child, target, seen) {
			return true
		}
	}
	return false
}
