// Package store defines GraphForge's minimal property-graph storage
// interface (spec.md §6) and two implementations: an in-memory engine
// (memory.go) and an optional Badger-backed persisted engine (badger.go).
// Both are grounded in the teacher's pkg/storage package, trimmed to the
// property-graph operations the executor actually needs and re-typed onto
// pkg/value so node/edge/property data flows through the same typed value
// system the rest of the engine uses, instead of storage's own bespoke
// Node/Edge structs.
package store

import (
	"context"
	"errors"

	"github.com/graphforge/graphforge/pkg/value"
)

// Sentinel errors returned by every Store implementation, mirroring the
// teacher's pkg/storage error set.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrClosed        = errors.New("store: closed")
	// ErrNodeHasEdges is returned by DeleteNode when the node still has
	// incident edges and the caller did not request a detach delete.
	ErrNodeHasEdges = errors.New("store: node still has incident relationships")
)

// GraphStatistics is the explicit, immutable snapshot the optimizer
// consumes for cardinality estimation (spec.md §4.3). It is computed once
// per transaction rather than tracked as live mutable global state, so the
// optimizer's decisions are reproducible for a given snapshot.
type GraphStatistics struct {
	TotalNodes         int64
	TotalEdges         int64
	NodeCountsByLabel  map[string]int64
	EdgeCountsByType   map[string]int64
	AvgOutDegreeByType map[string]float64
}

// SelectivityForLabel estimates P(node has label) for a label with no
// recorded statistics as 1 (no filtering effect) rather than 0, since a
// label the store has never seen mid-transaction is more likely an
// optimizer edge case than proof the label matches nothing.
func (s GraphStatistics) SelectivityForLabel(label string) float64 {
	if s.TotalNodes == 0 {
		return 1
	}
	count, ok := s.NodeCountsByLabel[label]
	if !ok {
		return 1
	}
	return float64(count) / float64(s.TotalNodes)
}

// AvgDegreeForType estimates the fan-out of a single edge-type expansion,
// defaulting to 1 (no amplification) when the type is unseen.
func (s GraphStatistics) AvgDegreeForType(edgeType string) float64 {
	if d, ok := s.AvgOutDegreeByType[edgeType]; ok {
		return d
	}
	return 1
}

// Store opens transactions against a graph. Implementations: MemoryStore
// (in-process, no persistence) and BadgerStore (disk-backed via
// github.com/dgraph-io/badger/v4).
type Store interface {
	// Begin starts a new transaction. writable controls whether mutating
	// operations (CreateNode, SetProperty, DeleteNode, ...) are permitted;
	// per spec.md §5 there is exactly one such transaction per query, and
	// it is never shared across goroutines.
	Begin(ctx context.Context, writable bool) (Txn, error)
	Close() error
}

// Txn is the single transaction an executed query runs against. Whether
// reads observe a snapshot depends on the backend (BadgerStore reads
// through a Badger transaction; MemoryStore reads the store's live
// state); all writes are visible to later reads
// within the same Txn and become durable (or are discarded) on
// Commit/Rollback.
type Txn interface {
	// Statistics returns the snapshot the optimizer should estimate
	// against. For a freshly-opened Txn this reflects the graph state at
	// Begin; it does not change mid-transaction even if the same Txn later
	// mutates the graph (spec.md's Non-goal on online-collected stats).
	Statistics() GraphStatistics

	GetNode(id value.NodeID) (*value.NodeRef, bool, error)
	NodesByLabel(label string) ([]*value.NodeRef, error)
	AllNodes() ([]*value.NodeRef, error)

	GetEdge(id value.EdgeID) (*value.EdgeRef, bool, error)
	OutgoingEdges(node value.NodeID, types []string) ([]*value.EdgeRef, error)
	IncomingEdges(node value.NodeID, types []string) ([]*value.EdgeRef, error)
	AllEdges() ([]*value.EdgeRef, error)

	CreateNode(labels []string, props *value.OrderedMap) (*value.NodeRef, error)
	CreateEdge(edgeType string, from, to value.NodeID, props *value.OrderedMap) (*value.EdgeRef, error)

	SetNodeProperties(id value.NodeID, props *value.OrderedMap) error
	SetEdgeProperties(id value.EdgeID, props *value.OrderedMap) error
	AddNodeLabel(id value.NodeID, label string) error
	RemoveNodeLabel(id value.NodeID, label string) error
	RemoveNodeProperty(id value.NodeID, key string) error
	RemoveEdgeProperty(id value.EdgeID, key string) error

	// DeleteNode removes a node. detach also removes its incident edges;
	// without it, a node with remaining edges returns ErrNodeHasEdges.
	DeleteNode(id value.NodeID, detach bool) error
	DeleteEdge(id value.EdgeID) error

	Commit() error
	Rollback() error
}
