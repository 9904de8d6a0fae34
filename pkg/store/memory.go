package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/graphforge/graphforge/pkg/value"
)

var errReadOnly = errors.New("store: transaction is read-only")

// MemoryStore is a thread-safe in-memory graph store: no disk I/O, deep
// copies on read so callers can never mutate state behind the store's back,
// and label/outgoing/incoming edge indexes for O(1)/O(degree) lookups —
// the same shape as the teacher's storage.MemoryEngine, re-typed onto
// pkg/value and trimmed of the decay/embedding bookkeeping the query engine
// has no use for.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[value.NodeID]*value.NodeRef
	edges map[value.EdgeID]*value.EdgeRef

	nodesByLabel  map[string]map[value.NodeID]struct{}
	outgoingEdges map[value.NodeID]map[value.EdgeID]struct{}
	incomingEdges map[value.NodeID]map[value.EdgeID]struct{}

	nextNodeID int64
	nextEdgeID int64
	closed     bool
}

// NewMemoryStore returns an empty, ready-to-use in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:         make(map[value.NodeID]*value.NodeRef),
		edges:         make(map[value.EdgeID]*value.EdgeRef),
		nodesByLabel:  make(map[string]map[value.NodeID]struct{}),
		outgoingEdges: make(map[value.NodeID]map[value.EdgeID]struct{}),
		incomingEdges: make(map[value.NodeID]map[value.EdgeID]struct{}),
	}
}

func (m *MemoryStore) Begin(_ context.Context, writable bool) (Txn, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	return &memoryTxn{store: m, writable: writable, stats: m.snapshotStats()}, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStore) snapshotStats() GraphStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := GraphStatistics{
		TotalNodes:         int64(len(m.nodes)),
		TotalEdges:         int64(len(m.edges)),
		NodeCountsByLabel:  make(map[string]int64, len(m.nodesByLabel)),
		EdgeCountsByType:   make(map[string]int64),
		AvgOutDegreeByType: make(map[string]float64),
	}
	for label, set := range m.nodesByLabel {
		stats.NodeCountsByLabel[label] = int64(len(set))
	}
	edgesByType := make(map[string]int64)
	degreeSumByType := make(map[string]int64)
	nodesSeenByType := make(map[string]map[value.NodeID]struct{})
	for _, e := range m.edges {
		edgesByType[e.Type]++
		degreeSumByType[e.Type]++
		if nodesSeenByType[e.Type] == nil {
			nodesSeenByType[e.Type] = make(map[value.NodeID]struct{})
		}
		nodesSeenByType[e.Type][e.Start] = struct{}{}
	}
	stats.EdgeCountsByType = edgesByType
	for t, total := range degreeSumByType {
		if n := len(nodesSeenByType[t]); n > 0 {
			stats.AvgOutDegreeByType[t] = float64(total) / float64(n)
		}
	}
	return stats
}

// memoryTxn is a logical transaction over a MemoryStore. Reads see the
// store's live state, including this txn's own prior writes (applied
// directly; Rollback best-effort reverses the writes recorded in undo);
// only Statistics is a snapshot taken at Begin. This matches an in-process
// store's honest guarantees rather than pretending to serializable
// isolation it doesn't implement.
type memoryTxn struct {
	store    *MemoryStore
	writable bool
	stats    GraphStatistics
	undo     []func()
	done     bool
}

func (t *memoryTxn) Statistics() GraphStatistics { return t.stats }

func (t *memoryTxn) requireWritable() error {
	if !t.writable {
		return errReadOnly
	}
	return nil
}

func (t *memoryTxn) GetNode(id value.NodeID) (*value.NodeRef, bool, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	n, ok := t.store.nodes[id]
	if !ok {
		return nil, false, nil
	}
	return cloneNode(n), true, nil
}

func (t *memoryTxn) NodesByLabel(label string) ([]*value.NodeRef, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	ids := t.store.nodesByLabel[label]
	out := make([]*value.NodeRef, 0, len(ids))
	for id := range ids {
		out = append(out, cloneNode(t.store.nodes[id]))
	}
	return out, nil
}

func (t *memoryTxn) AllNodes() ([]*value.NodeRef, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := make([]*value.NodeRef, 0, len(t.store.nodes))
	for _, n := range t.store.nodes {
		out = append(out, cloneNode(n))
	}
	return out, nil
}

func (t *memoryTxn) GetEdge(id value.EdgeID) (*value.EdgeRef, bool, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	e, ok := t.store.edges[id]
	if !ok {
		return nil, false, nil
	}
	return cloneEdge(e), true, nil
}

func (t *memoryTxn) OutgoingEdges(node value.NodeID, types []string) ([]*value.EdgeRef, error) {
	t.store.mu.RLock()
	ids := t.store.outgoingEdges[node]
	t.store.mu.RUnlock()
	return t.filteredEdges(ids, types), nil
}

func (t *memoryTxn) IncomingEdges(node value.NodeID, types []string) ([]*value.EdgeRef, error) {
	t.store.mu.RLock()
	ids := t.store.incomingEdges[node]
	t.store.mu.RUnlock()
	return t.filteredEdges(ids, types), nil
}

func (t *memoryTxn) filteredEdges(ids map[value.EdgeID]struct{}, types []string) []*value.EdgeRef {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := make([]*value.EdgeRef, 0, len(ids))
	for id := range ids {
		e := t.store.edges[id]
		if e == nil {
			continue
		}
		if len(types) > 0 && !containsString(types, e.Type) {
			continue
		}
		out = append(out, cloneEdge(e))
	}
	return out
}

func (t *memoryTxn) AllEdges() ([]*value.EdgeRef, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := make([]*value.EdgeRef, 0, len(t.store.edges))
	for _, e := range t.store.edges {
		out = append(out, cloneEdge(e))
	}
	return out, nil
}

func (t *memoryTxn) CreateNode(labels []string, props *value.OrderedMap) (*value.NodeRef, error) {
	if err := t.requireWritable(); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	id := value.NodeID(atomic.AddInt64(&t.store.nextNodeID, 1))
	n := &value.NodeRef{ID: id, Labels: append([]string(nil), labels...), Properties: props.Clone()}
	t.store.nodes[id] = n
	for _, l := range n.Labels {
		if t.store.nodesByLabel[l] == nil {
			t.store.nodesByLabel[l] = make(map[value.NodeID]struct{})
		}
		t.store.nodesByLabel[l][id] = struct{}{}
	}
	t.undo = append(t.undo, func() { t.store.deleteNodeLocked(id) })
	return cloneNode(n), nil
}

func (t *memoryTxn) CreateEdge(edgeType string, from, to value.NodeID, props *value.OrderedMap) (*value.EdgeRef, error) {
	if err := t.requireWritable(); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.nodes[from]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := t.store.nodes[to]; !ok {
		return nil, ErrNotFound
	}
	id := value.EdgeID(atomic.AddInt64(&t.store.nextEdgeID, 1))
	e := &value.EdgeRef{ID: id, Type: edgeType, Start: from, End: to, Properties: props.Clone()}
	t.store.edges[id] = e
	if t.store.outgoingEdges[from] == nil {
		t.store.outgoingEdges[from] = make(map[value.EdgeID]struct{})
	}
	t.store.outgoingEdges[from][id] = struct{}{}
	if t.store.incomingEdges[to] == nil {
		t.store.incomingEdges[to] = make(map[value.EdgeID]struct{})
	}
	t.store.incomingEdges[to][id] = struct{}{}
	t.undo = append(t.undo, func() { t.store.deleteEdgeLocked(id) })
	return cloneEdge(e), nil
}

func (t *memoryTxn) SetNodeProperties(id value.NodeID, props *value.OrderedMap) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	n, ok := t.store.nodes[id]
	if !ok {
		return ErrNotFound
	}
	prev := n.Properties.Clone()
	n.Properties = props.Clone()
	t.undo = append(t.undo, func() { n.Properties = prev })
	return nil
}

func (t *memoryTxn) SetEdgeProperties(id value.EdgeID, props *value.OrderedMap) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	e, ok := t.store.edges[id]
	if !ok {
		return ErrNotFound
	}
	prev := e.Properties.Clone()
	e.Properties = props.Clone()
	t.undo = append(t.undo, func() { e.Properties = prev })
	return nil
}

func (t *memoryTxn) AddNodeLabel(id value.NodeID, label string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	n, ok := t.store.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if containsString(n.Labels, label) {
		return nil
	}
	n.Labels = append(n.Labels, label)
	if t.store.nodesByLabel[label] == nil {
		t.store.nodesByLabel[label] = make(map[value.NodeID]struct{})
	}
	t.store.nodesByLabel[label][id] = struct{}{}
	return nil
}

func (t *memoryTxn) RemoveNodeLabel(id value.NodeID, label string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	n, ok := t.store.nodes[id]
	if !ok {
		return ErrNotFound
	}
	n.Labels = removeString(n.Labels, label)
	delete(t.store.nodesByLabel[label], id)
	return nil
}

func (t *memoryTxn) RemoveNodeProperty(id value.NodeID, key string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	n, ok := t.store.nodes[id]
	if !ok {
		return ErrNotFound
	}
	n.Properties.Delete(key)
	return nil
}

func (t *memoryTxn) RemoveEdgeProperty(id value.EdgeID, key string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	e, ok := t.store.edges[id]
	if !ok {
		return ErrNotFound
	}
	e.Properties.Delete(key)
	return nil
}

func (t *memoryTxn) DeleteNode(id value.NodeID, detach bool) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.nodes[id]; !ok {
		return ErrNotFound
	}
	hasEdges := len(t.store.outgoingEdges[id]) > 0 || len(t.store.incomingEdges[id]) > 0
	if hasEdges && !detach {
		return ErrNodeHasEdges
	}
	if detach {
		for eid := range t.store.outgoingEdges[id] {
			t.store.deleteEdgeLocked(eid)
		}
		for eid := range t.store.incomingEdges[id] {
			t.store.deleteEdgeLocked(eid)
		}
	}
	t.store.deleteNodeLocked(id)
	return nil
}

func (t *memoryTxn) DeleteEdge(id value.EdgeID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.edges[id]; !ok {
		return ErrNotFound
	}
	t.store.deleteEdgeLocked(id)
	return nil
}

func (t *memoryTxn) Commit() error {
	t.done = true
	return nil
}

func (t *memoryTxn) Rollback() error {
	if t.done {
		return nil
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.done = true
	return nil
}

// deleteNodeLocked/deleteEdgeLocked assume store.mu is already held.

func (s *MemoryStore) deleteNodeLocked(id value.NodeID) {
	n := s.nodes[id]
	if n == nil {
		return
	}
	for _, l := range n.Labels {
		delete(s.nodesByLabel[l], id)
	}
	delete(s.nodes, id)
}

func (s *MemoryStore) deleteEdgeLocked(id value.EdgeID) {
	e := s.edges[id]
	if e == nil {
		return
	}
	delete(s.outgoingEdges[e.Start], id)
	delete(s.incomingEdges[e.End], id)
	delete(s.edges, id)
}

func cloneNode(n *value.NodeRef) *value.NodeRef {
	return &value.NodeRef{ID: n.ID, Labels: append([]string(nil), n.Labels...), Properties: n.Properties.Clone()}
}

func cloneEdge(e *value.EdgeRef) *value.EdgeRef {
	return &value.EdgeRef{ID: e.ID, Type: e.Type, Start: e.Start, End: e.End, Properties: e.Properties.Clone()}
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
