package value

// OrderedMap is a string-keyed, insertion-order-preserving map, backing
// both Map values and node/edge property snapshots. It is the Go-native
// replacement for the teacher's dynamic `map[string]any` property bags,
// adapted to keep deterministic iteration order (openCypher map literals
// and RETURN projections preserve the order properties were written in).
type OrderedMap struct {
	keys   []string
	values map[string]Value
}

// NewOrderedMap creates an empty map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]Value)}
}

// Set inserts or updates a key, preserving the original position on update.
func (m *OrderedMap) Set(key string, v Value) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Delete removes a key if present.
func (m *OrderedMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order.
func (m *OrderedMap) Keys() []string { return m.keys }

// Len returns the number of entries.
func (m *OrderedMap) Len() int { return len(m.keys) }

// Clone returns a deep-enough copy safe to mutate independently; Values
// themselves are immutable so only the map's own bookkeeping is copied. A
// nil receiver clones to an empty map so callers never need a nil check
// before storing a property bag that may not have been set.
func (m *OrderedMap) Clone() *OrderedMap {
	out := NewOrderedMap()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

// MapFromGo builds an OrderedMap from a plain Go map, used when bridging
// store-layer property bags (map[string]any) into the value system. Key
// order is not guaranteed by a raw Go map, so callers that need a specific
// order should build the OrderedMap incrementally instead.
func MapFromGo(src map[string]any, convert func(any) Value) *OrderedMap {
	out := NewOrderedMap()
	for k, v := range src {
		out.Set(k, convert(v))
	}
	return out
}
