package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/graphforge/graphforge/pkg/value"
)

// Key layout mirrors the teacher's pkg/storage/badger.go: single-byte
// prefixes keep the keyspace cheap to range-scan for label/degree indexes.
const (
	prefixNode          = byte(0x01) // node:id -> json(nodeRecord)
	prefixEdge          = byte(0x02) // edge:id -> json(edgeRecord)
	prefixLabelIndex    = byte(0x03) // label:name\x00id -> ()
	prefixOutgoingIndex = byte(0x04) // out:nodeID\x00edgeID -> ()
	prefixIncomingIndex = byte(0x05) // in:nodeID\x00edgeID -> ()
	prefixCounter       = byte(0x06) // counter:node|edge -> uint64
)

// BadgerStore is a disk-persisted Store backed by
// github.com/dgraph-io/badger/v4, for deployments that need the graph to
// survive a process restart; MemoryStore remains the default for tests and
// purely in-process use.
type BadgerStore struct {
	db         *badger.DB
	nextNodeID int64
	nextEdgeID int64
}

// OpenBadgerStore opens (creating if absent) a Badger database at dir. Pass
// inMemory=true for an ephemeral Badger instance useful in tests that still
// want to exercise the Badger code path rather than MemoryStore.
func OpenBadgerStore(dir string, inMemory bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithInMemory(inMemory).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	s := &BadgerStore{db: db}
	if err := s.loadCounters(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) loadCounters() error {
	return s.db.View(func(txn *badger.Txn) error {
		if v, ok := readCounter(txn, []byte{prefixCounter, 'n'}); ok {
			s.nextNodeID = v
		}
		if v, ok := readCounter(txn, []byte{prefixCounter, 'e'}); ok {
			s.nextEdgeID = v
		}
		return nil
	})
}

func encodeCounter(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func readCounter(txn *badger.Txn, key []byte) (int64, bool) {
	item, err := txn.Get(key)
	if err != nil {
		return 0, false
	}
	var out int64
	err = item.Value(func(val []byte) error {
		out = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return out, err == nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) Begin(_ context.Context, writable bool) (Txn, error) {
	stats, err := s.computeStatistics()
	if err != nil {
		return nil, err
	}
	return &badgerTxn{store: s, txn: s.db.NewTransaction(writable), writable: writable, stats: stats}, nil
}

func (s *BadgerStore) computeStatistics() (GraphStatistics, error) {
	stats := GraphStatistics{
		NodeCountsByLabel:  make(map[string]int64),
		EdgeCountsByType:   make(map[string]int64),
		AvgOutDegreeByType: make(map[string]float64),
	}
	degreeSum := make(map[string]int64)
	nodesSeen := make(map[string]map[string]struct{})
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte{prefixNode}); it.ValidForPrefix([]byte{prefixNode}); it.Next() {
			stats.TotalNodes++
		}
		for it.Seek([]byte{prefixEdge}); it.ValidForPrefix([]byte{prefixEdge}); it.Next() {
			item := it.Item()
			var rec edgeRecord
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				continue
			}
			stats.TotalEdges++
			stats.EdgeCountsByType[rec.Type]++
			degreeSum[rec.Type]++
			if nodesSeen[rec.Type] == nil {
				nodesSeen[rec.Type] = make(map[string]struct{})
			}
			nodesSeen[rec.Type][rec.Start] = struct{}{}
		}
		for it.Seek([]byte{prefixLabelIndex}); it.ValidForPrefix([]byte{prefixLabelIndex}); it.Next() {
			label, _ := splitLabelIndexKey(it.Item().Key())
			stats.NodeCountsByLabel[label]++
		}
		return nil
	})
	for t, sum := range degreeSum {
		if n := len(nodesSeen[t]); n > 0 {
			stats.AvgOutDegreeByType[t] = float64(sum) / float64(n)
		}
	}
	return stats, err
}

// badgerTxn wraps a single *badger.Txn. ID allocation uses the store's
// atomic counters directly (committed immediately, independent of
// Commit/Rollback) so concurrent writers across transactions never collide,
// matching the teacher's badger.go approach of a dedicated counter key.
type badgerTxn struct {
	store    *BadgerStore
	txn      *badger.Txn
	writable bool
	stats    GraphStatistics
	done     bool
}

func (t *badgerTxn) Statistics() GraphStatistics { return t.stats }

func (t *badgerTxn) requireWritable() error {
	if !t.writable {
		return errReadOnly
	}
	return nil
}

type nodeRecord struct {
	Labels     []string          `json:"labels"`
	Properties map[string]any    `json:"properties"`
}

type edgeRecord struct {
	Type       string         `json:"type"`
	Start      string         `json:"start"`
	End        string         `json:"end"`
	Properties map[string]any `json:"properties"`
}

func nodeKey(id value.NodeID) []byte {
	return []byte(fmt.Sprintf("%c%d", prefixNode, id))
}

func edgeKey(id value.EdgeID) []byte {
	return []byte(fmt.Sprintf("%c%d", prefixEdge, id))
}

func labelIndexKey(label string, id value.NodeID) []byte {
	return []byte(fmt.Sprintf("%c%s\x00%d", prefixLabelIndex, label, id))
}

func labelIndexPrefix(label string) []byte {
	return []byte(fmt.Sprintf("%c%s\x00", prefixLabelIndex, label))
}

func splitLabelIndexKey(key []byte) (label string, id string) {
	rest := key[1:]
	for i, b := range rest {
		if b == 0 {
			return string(rest[:i]), string(rest[i+1:])
		}
	}
	return string(rest), ""
}

func outgoingIndexKey(node value.NodeID, edge value.EdgeID) []byte {
	return []byte(fmt.Sprintf("%c%d\x00%d", prefixOutgoingIndex, node, edge))
}

func outgoingIndexPrefix(node value.NodeID) []byte {
	return []byte(fmt.Sprintf("%c%d\x00", prefixOutgoingIndex, node))
}

func incomingIndexKey(node value.NodeID, edge value.EdgeID) []byte {
	return []byte(fmt.Sprintf("%c%d\x00%d", prefixIncomingIndex, node, edge))
}

func incomingIndexPrefix(node value.NodeID) []byte {
	return []byte(fmt.Sprintf("%c%d\x00", prefixIncomingIndex, node))
}

// wireValue is the JSON-safe encoding of a property value. Only the scalar
// kinds and homogeneous lists of them are supported as node/edge property
// values (spec.md §3.2); anything else (nested maps, nodes, edges, paths)
// is rejected at the executor before it ever reaches the store.
type wireValue struct {
	Kind  string      `json:"k"`
	Bool  bool        `json:"b,omitempty"`
	Int   int64       `json:"i,omitempty"`
	Float float64     `json:"f,omitempty"`
	Str   string      `json:"s,omitempty"`
	List  []wireValue `json:"l,omitempty"`
}

func toWire(v value.Value) wireValue {
	switch v.Kind() {
	case value.KindBoolean:
		return wireValue{Kind: "b", Bool: v.Bool()}
	case value.KindInt:
		return wireValue{Kind: "i", Int: v.Int()}
	case value.KindFloat:
		return wireValue{Kind: "f", Float: v.Float()}
	case value.KindString:
		return wireValue{Kind: "s", Str: v.String()}
	case value.KindList:
		items := v.List()
		list := make([]wireValue, len(items))
		for i, it := range items {
			list[i] = toWire(it)
		}
		return wireValue{Kind: "l", List: list}
	default:
		return wireValue{Kind: "n"}
	}
}

func fromWire(w wireValue) value.Value {
	switch w.Kind {
	case "b":
		return value.Bool(w.Bool)
	case "i":
		return value.Int(w.Int)
	case "f":
		return value.Float(w.Float)
	case "s":
		return value.Str(w.Str)
	case "l":
		items := make([]value.Value, len(w.List))
		for i, it := range w.List {
			items[i] = fromWire(it)
		}
		return value.ListOf(items)
	default:
		return value.Null
	}
}

func propsToGo(m *value.OrderedMap) map[string]any {
	out := make(map[string]any, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out[k] = toWire(v)
	}
	return out
}

func propsFromGo(m map[string]any) *value.OrderedMap {
	out := value.NewOrderedMap()
	for k, raw := range m {
		data, err := json.Marshal(raw)
		if err != nil {
			continue
		}
		var w wireValue
		if err := json.Unmarshal(data, &w); err != nil {
			continue
		}
		out.Set(k, fromWire(w))
	}
	return out
}

func (t *badgerTxn) GetNode(id value.NodeID) (*value.NodeRef, bool, error) {
	item, err := t.txn.Get(nodeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec nodeRecord
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
		return nil, false, err
	}
	return &value.NodeRef{ID: id, Labels: rec.Labels, Properties: propsFromGo(rec.Properties)}, true, nil
}

func (t *badgerTxn) NodesByLabel(label string) ([]*value.NodeRef, error) {
	var out []*value.NodeRef
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	prefix := labelIndexPrefix(label)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		_, idStr := splitLabelIndexKey(it.Item().Key())
		id := parseNodeID(idStr)
		n, ok, err := t.GetNode(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (t *badgerTxn) AllNodes() ([]*value.NodeRef, error) {
	var out []*value.NodeRef
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek([]byte{prefixNode}); it.ValidForPrefix([]byte{prefixNode}); it.Next() {
		item := it.Item()
		var rec nodeRecord
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
			return nil, err
		}
		id := parseNodeID(string(item.Key()[1:]))
		out = append(out, &value.NodeRef{ID: id, Labels: rec.Labels, Properties: propsFromGo(rec.Properties)})
	}
	return out, nil
}

func (t *badgerTxn) GetEdge(id value.EdgeID) (*value.EdgeRef, bool, error) {
	item, err := t.txn.Get(edgeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec edgeRecord
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
		return nil, false, err
	}
	return &value.EdgeRef{
		ID: id, Type: rec.Type,
		Start: parseNodeID(rec.Start), End: parseNodeID(rec.End),
		Properties: propsFromGo(rec.Properties),
	}, true, nil
}

func (t *badgerTxn) OutgoingEdges(node value.NodeID, types []string) ([]*value.EdgeRef, error) {
	return t.edgesByIndex(outgoingIndexPrefix(node), types)
}

func (t *badgerTxn) IncomingEdges(node value.NodeID, types []string) ([]*value.EdgeRef, error) {
	return t.edgesByIndex(incomingIndexPrefix(node), types)
}

func (t *badgerTxn) edgesByIndex(prefix []byte, types []string) ([]*value.EdgeRef, error) {
	var out []*value.EdgeRef
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		edgeIDStr := string(key[len(prefix):])
		e, ok, err := t.GetEdge(value.EdgeID(parseInt(edgeIDStr)))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if len(types) > 0 && !containsString(types, e.Type) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (t *badgerTxn) AllEdges() ([]*value.EdgeRef, error) {
	var out []*value.EdgeRef
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek([]byte{prefixEdge}); it.ValidForPrefix([]byte{prefixEdge}); it.Next() {
		var rec edgeRecord
		if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
			return nil, err
		}
		id := parseEdgeID(string(it.Item().Key()[1:]))
		out = append(out, &value.EdgeRef{ID: id, Type: rec.Type, Start: parseNodeID(rec.Start), End: parseNodeID(rec.End), Properties: propsFromGo(rec.Properties)})
	}
	return out, nil
}

func (t *badgerTxn) CreateNode(labels []string, props *value.OrderedMap) (*value.NodeRef, error) {
	if err := t.requireWritable(); err != nil {
		return nil, err
	}
	id := value.NodeID(atomic.AddInt64(&t.store.nextNodeID, 1))
	rec := nodeRecord{Labels: labels, Properties: propsToGo(props)}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := t.txn.Set(nodeKey(id), data); err != nil {
		return nil, err
	}
	if err := t.txn.Set([]byte{prefixCounter, 'n'}, encodeCounter(int64(id))); err != nil {
		return nil, err
	}
	for _, l := range labels {
		if err := t.txn.Set(labelIndexKey(l, id), []byte{}); err != nil {
			return nil, err
		}
	}
	return &value.NodeRef{ID: id, Labels: append([]string(nil), labels...), Properties: props.Clone()}, nil
}

func (t *badgerTxn) CreateEdge(edgeType string, from, to value.NodeID, props *value.OrderedMap) (*value.EdgeRef, error) {
	if err := t.requireWritable(); err != nil {
		return nil, err
	}
	if _, err := t.txn.Get(nodeKey(from)); err != nil {
		return nil, ErrNotFound
	}
	if _, err := t.txn.Get(nodeKey(to)); err != nil {
		return nil, ErrNotFound
	}
	id := value.EdgeID(atomic.AddInt64(&t.store.nextEdgeID, 1))
	rec := edgeRecord{Type: edgeType, Start: fmt.Sprint(from), End: fmt.Sprint(to), Properties: propsToGo(props)}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := t.txn.Set(edgeKey(id), data); err != nil {
		return nil, err
	}
	if err := t.txn.Set([]byte{prefixCounter, 'e'}, encodeCounter(int64(id))); err != nil {
		return nil, err
	}
	if err := t.txn.Set(outgoingIndexKey(from, id), []byte{}); err != nil {
		return nil, err
	}
	if err := t.txn.Set(incomingIndexKey(to, id), []byte{}); err != nil {
		return nil, err
	}
	return &value.EdgeRef{ID: id, Type: edgeType, Start: from, End: to, Properties: props.Clone()}, nil
}

func (t *badgerTxn) SetNodeProperties(id value.NodeID, props *value.OrderedMap) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	n, ok, err := t.GetNode(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	rec := nodeRecord{Labels: n.Labels, Properties: propsToGo(props)}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.txn.Set(nodeKey(id), data)
}

func (t *badgerTxn) SetEdgeProperties(id value.EdgeID, props *value.OrderedMap) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	e, ok, err := t.GetEdge(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	rec := edgeRecord{Type: e.Type, Start: fmt.Sprint(e.Start), End: fmt.Sprint(e.End), Properties: propsToGo(props)}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.txn.Set(edgeKey(id), data)
}

func (t *badgerTxn) AddNodeLabel(id value.NodeID, label string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	n, ok, err := t.GetNode(id)
	if err != nil || !ok {
		return firstErr(err, ErrNotFound)
	}
	if containsString(n.Labels, label) {
		return nil
	}
	n.Labels = append(n.Labels, label)
	rec := nodeRecord{Labels: n.Labels, Properties: propsToGo(n.Properties)}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := t.txn.Set(nodeKey(id), data); err != nil {
		return err
	}
	return t.txn.Set(labelIndexKey(label, id), []byte{})
}

func (t *badgerTxn) RemoveNodeLabel(id value.NodeID, label string) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	n, ok, err := t.GetNode(id)
	if err != nil || !ok {
		return firstErr(err, ErrNotFound)
	}
	n.Labels = removeString(n.Labels, label)
	rec := nodeRecord{Labels: n.Labels, Properties: propsToGo(n.Properties)}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := t.txn.Set(nodeKey(id), data); err != nil {
		return err
	}
	return t.txn.Delete(labelIndexKey(label, id))
}

func (t *badgerTxn) RemoveNodeProperty(id value.NodeID, key string) error {
	n, ok, err := t.GetNode(id)
	if err != nil || !ok {
		return firstErr(err, ErrNotFound)
	}
	n.Properties.Delete(key)
	return t.SetNodeProperties(id, n.Properties)
}

func (t *badgerTxn) RemoveEdgeProperty(id value.EdgeID, key string) error {
	e, ok, err := t.GetEdge(id)
	if err != nil || !ok {
		return firstErr(err, ErrNotFound)
	}
	e.Properties.Delete(key)
	return t.SetEdgeProperties(id, e.Properties)
}

func (t *badgerTxn) DeleteNode(id value.NodeID, detach bool) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	out, err := t.OutgoingEdges(id, nil)
	if err != nil {
		return err
	}
	in, err := t.IncomingEdges(id, nil)
	if err != nil {
		return err
	}
	if (len(out) > 0 || len(in) > 0) && !detach {
		return ErrNodeHasEdges
	}
	if detach {
		for _, e := range append(out, in...) {
			if err := t.DeleteEdge(e.ID); err != nil {
				return err
			}
		}
	}
	n, ok, err := t.GetNode(id)
	if err != nil || !ok {
		return firstErr(err, ErrNotFound)
	}
	for _, l := range n.Labels {
		if err := t.txn.Delete(labelIndexKey(l, id)); err != nil {
			return err
		}
	}
	return t.txn.Delete(nodeKey(id))
}

func (t *badgerTxn) DeleteEdge(id value.EdgeID) error {
	if err := t.requireWritable(); err != nil {
		return err
	}
	e, ok, err := t.GetEdge(id)
	if err != nil || !ok {
		return firstErr(err, ErrNotFound)
	}
	if err := t.txn.Delete(outgoingIndexKey(e.Start, id)); err != nil {
		return err
	}
	if err := t.txn.Delete(incomingIndexKey(e.End, id)); err != nil {
		return err
	}
	return t.txn.Delete(edgeKey(id))
}

func (t *badgerTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.txn.Commit()
}

func (t *badgerTxn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.txn.Discard()
	return nil
}

func firstErr(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}

func parseNodeID(s string) value.NodeID { return value.NodeID(parseInt(s)) }
func parseEdgeID(s string) value.EdgeID { return value.EdgeID(parseInt(s)) }

func parseInt(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
