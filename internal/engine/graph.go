package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/picklr-io/ocrstack/internal/ir"
)

// DAG represents a directed acyclic graph of descriptors for dependency ordering.
type DAG struct {
	nodes map[string]*dagNode
	order []string // topological order (visit order)
}

type dagNode struct {
	name     string
	position int      // declaration order, used to break ties
	edges    []string // descriptors this node depends on
	revEdges []string // descriptors that depend on this node
}

// BuildDAG constructs a dependency graph from descriptors.
// It resolves both explicit DependsOn and implicit ptr:// references; a
// reference to an undeclared descriptor is an error.
func BuildDAG(descs []*ir.Descriptor) (*DAG, error) {
	dag := &DAG{
		nodes: make(map[string]*dagNode),
	}

	for i, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("descriptor %d has no name", i)
		}
		if _, dup := dag.nodes[d.Name]; dup {
			return nil, fmt.Errorf("duplicate descriptor name %q", d.Name)
		}
		dag.nodes[d.Name] = &dagNode{name: d.Name, position: i}
	}

	for _, d := range descs {
		node := dag.nodes[d.Name]
		seen := make(map[string]bool)
		add := func(dep string) error {
			if _, ok := dag.nodes[dep]; !ok {
				return fmt.Errorf("descriptor %q depends on unknown descriptor %q", d.Name, dep)
			}
			if !seen[dep] {
				seen[dep] = true
				node.edges = append(node.edges, dep)
			}
			return nil
		}

		for _, dep := range d.DependsOn {
			if err := add(dep); err != nil {
				return nil, err
			}
		}
		for _, ref := range extractPtrRefs(d.Properties) {
			name, _, ok := parsePtrRef(ref)
			if !ok {
				return nil, fmt.Errorf("descriptor %q has malformed reference %q", d.Name, ref)
			}
			if err := add(name); err != nil {
				return nil, err
			}
		}
	}

	for _, d := range descs {
		for _, dep := range dag.nodes[d.Name].edges {
			dag.nodes[dep].revEdges = append(dag.nodes[dep].revEdges, d.Name)
		}
	}

	order, err := dag.topoSort()
	if err != nil {
		return nil, err
	}
	dag.order = order

	return dag, nil
}

// Order returns descriptor names in dependency-respecting visit order.
func (d *DAG) Order() []string {
	return d.order
}

// Has reports whether a descriptor with the given name is in the graph.
func (d *DAG) Has(name string) bool {
	_, ok := d.nodes[name]
	return ok
}

// Dependencies returns the names a descriptor depends on.
func (d *DAG) Dependencies(name string) []string {
	if node, ok := d.nodes[name]; ok {
		return node.edges
	}
	return nil
}

// Roots returns descriptors without dependencies, in declaration order.
func (d *DAG) Roots() []string {
	var roots []string
	for _, name := range d.order {
		if len(d.nodes[name].edges) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}

// Sinks returns descriptors nothing depends on, in declaration order.
func (d *DAG) Sinks() []string {
	var sinks []string
	for _, name := range d.order {
		if len(d.nodes[name].revEdges) == 0 {
			sinks = append(sinks, name)
		}
	}
	return sinks
}

// topoSort performs Kahn's algorithm. The ready set is always drained in
// declaration order so the result is deterministic.
func (d *DAG) topoSort() ([]string, error) {
	inDegree := make(map[string]int)
	for name, node := range d.nodes {
		inDegree[name] = len(node.edges)
	}

	var ready []*dagNode
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, d.nodes[name])
		}
	}

	var sorted []string
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].position < ready[j].position })
		node := ready[0]
		ready = ready[1:]
		sorted = append(sorted, node.name)

		for _, dependent := range node.revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, d.nodes[dependent])
			}
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("dependency cycle detected in descriptor graph")
	}

	return sorted, nil
}

// extractPtrRefs extracts all ptr:// references from a property value.
func extractPtrRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, ir.RefPrefix) {
			refs = append(refs, val)
		}
	case []string:
		for _, s := range val {
			refs = append(refs, extractPtrRefs(s)...)
		}
	case map[string]any:
		for _, v := range val {
			refs = append(refs, extractPtrRefs(v)...)
		}
	case []any:
		for _, v := range val {
			refs = append(refs, extractPtrRefs(v)...)
		}
	}
	return refs
}

// parsePtrRef splits ptr://<name>/<attr>. Names may contain '/' (log group
// names do), so the attribute is everything after the last slash.
func parsePtrRef(ref string) (name, attr string, ok bool) {
	if !strings.HasPrefix(ref, ir.RefPrefix) {
		return "", "", false
	}
	path := ref[len(ir.RefPrefix):]
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", false
	}
	return path[:idx], path[idx+1:], true
}
