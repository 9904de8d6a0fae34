package optimizer

import "github.com/graphforge/graphforge/pkg/store"

// Statistics is the snapshot the cardinality model estimates against,
// supplied by the store per spec.md §4.3.1. It is a plain alias rather than
// a wrapper type: the optimizer has no statistics of its own to collect,
// only the ones the store already computed for this transaction.
type Statistics = store.GraphStatistics
