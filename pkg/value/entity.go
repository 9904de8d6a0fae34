package value

import "fmt"

// NodeID and EdgeID are the stable integer identifiers spec.md §3.1 assigns
// to nodes and edges. They are store-issued and unique within a process
// lifetime; they may be reused after deletion but never while a live
// reference exists.
type NodeID int64
type EdgeID int64

// NodeRef is a lightweight handle into the store: the design-notes section
// of spec.md calls for replacing cyclic node/edge/transaction references
// with an arena of integer IDs plus a materialized properties snapshot, so
// a NodeRef never holds a live pointer back into the transaction.
type NodeRef struct {
	ID         NodeID
	Labels     []string
	Properties *OrderedMap
}

// HasLabel reports whether the node carries the given label.
func (n *NodeRef) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// EdgeRef is the handle equivalent for relationships. Direction is encoded
// by Start/End, not by a separate field; traversal direction is a query-time
// concept per spec.md §3.1, not a storage concept.
type EdgeRef struct {
	ID         EdgeID
	Type       string
	Start, End NodeID
	Properties *OrderedMap
}

// Other returns the endpoint opposite to `from`, used while walking a path.
func (e *EdgeRef) Other(from NodeID) NodeID {
	if e.Start == from {
		return e.End
	}
	return e.Start
}

// PathRef is a finite, non-empty alternating sequence of nodes and edges.
// The length invariant (len(Edges) == len(Nodes) - 1) is enforced by the
// smart constructor NewPath, never by ad hoc construction elsewhere.
type PathRef struct {
	Nodes []*NodeRef
	Edges []*EdgeRef
}

// NewPath is the smart constructor spec.md's design notes call for: it is
// the only way to build a PathRef, and it rejects any sequence that would
// violate the node/edge count invariant or the adjacency invariant (every
// edge must connect the two nodes flanking it, in either direction).
func NewPath(nodes []*NodeRef, edges []*EdgeRef) (*PathRef, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("path must contain at least one node")
	}
	if len(edges) != len(nodes)-1 {
		return nil, fmt.Errorf("path invariant violated: %d edges for %d nodes", len(edges), len(nodes))
	}
	for i, e := range edges {
		a, b := nodes[i].ID, nodes[i+1].ID
		if !((e.Start == a && e.End == b) || (e.Start == b && e.End == a)) {
			return nil, fmt.Errorf("edge %d does not connect adjacent nodes %d and %d", e.ID, a, b)
		}
	}
	return &PathRef{Nodes: nodes, Edges: edges}, nil
}

// Length is len(edges), per spec.md §3.1; a single-node path has length 0.
func (p *PathRef) Length() int { return len(p.Edges) }

func (p *PathRef) Equal(o *PathRef) bool {
	if p == o {
		return true
	}
	if p == nil || o == nil || len(p.Nodes) != len(o.Nodes) || len(p.Edges) != len(o.Edges) {
		return false
	}
	for i := range p.Nodes {
		if p.Nodes[i].ID != o.Nodes[i].ID {
			return false
		}
	}
	for i := range p.Edges {
		if p.Edges[i].ID != o.Edges[i].ID {
			return false
		}
	}
	return true
}

func (p *PathRef) String() string {
	s := ""
	for i, n := range p.Nodes {
		s += fmt.Sprintf("(%d)", n.ID)
		if i < len(p.Edges) {
			s += fmt.Sprintf("-[%d]-", p.Edges[i].ID)
		}
	}
	return s
}
