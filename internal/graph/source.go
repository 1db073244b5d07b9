package graph

import "sort"

// Tag is a scenario entry point found in a graph.
type Tag struct {
	GUID       string
	ScenarioID int
}

// Source is what the compiler needs from an authoring graph.
type Source interface {
	// Tags lists entry-point nodes in document order.
	Tags() []Tag
	// Node looks up a node by GUID.
	Node(guid string) (*Node, bool)
	// Outputs lists the node's outgoing edges ordered by output port.
	Outputs(guid string) []Edge
}

// Index is a Source over an in-memory Graph.
type Index struct {
	tags    []Tag
	nodes   map[string]*Node
	outputs map[string][]Edge
}

// NewIndex builds lookup tables for g. The graph must not be modified while
// the index is in use.
func NewIndex(g *Graph) *Index {
	idx := &Index{
		nodes:   make(map[string]*Node, len(g.Nodes)),
		outputs: make(map[string][]Edge),
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if _, dup := idx.nodes[n.GUID]; dup {
			continue
		}
		idx.nodes[n.GUID] = n
		if n.Kind == KindTag && n.Tag != nil {
			idx.tags = append(idx.tags, Tag{GUID: n.GUID, ScenarioID: n.Tag.ScenarioID})
		}
	}
	for _, e := range g.Edges {
		idx.outputs[e.OutputNode] = append(idx.outputs[e.OutputNode], e)
	}
	for guid := range idx.outputs {
		edges := idx.outputs[guid]
		sort.SliceStable(edges, func(i, j int) bool {
			if edges[i].OutputPort != edges[j].OutputPort {
				return edges[i].OutputPort < edges[j].OutputPort
			}
			return edges[i].InputPort < edges[j].InputPort
		})
	}
	return idx
}

func (idx *Index) Tags() []Tag {
	return append([]Tag(nil), idx.tags...)
}

func (idx *Index) Node(guid string) (*Node, bool) {
	n, ok := idx.nodes[guid]
	return n, ok
}

func (idx *Index) Outputs(guid string) []Edge {
	return idx.outputs[guid]
}
