// Package engine provides the main API for embedded GraphForge usage.
//
// It wires together the parser, planner, optimizer, and executor packages
// behind a single Open/Execute/Close surface, the way the teacher's
// top-level database package wires storage, decay, inference, and search
// behind its own DB type — minus every concern outside GraphForge's scope
// (no decay, no embeddings, no inference).
//
// Example:
//
//	eng, err := engine.Open(engine.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Close()
//
//	result, err := eng.Execute(ctx, "MATCH (n:Person) RETURN n.name", nil)
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/graphforge/graphforge/pkg/ast"
	"github.com/graphforge/graphforge/pkg/cache"
	"github.com/graphforge/graphforge/pkg/config"
	"github.com/graphforge/graphforge/pkg/executor"
	"github.com/graphforge/graphforge/pkg/optimizer"
	"github.com/graphforge/graphforge/pkg/parser"
	"github.com/graphforge/graphforge/pkg/plan"
	"github.com/graphforge/graphforge/pkg/planner"
	"github.com/graphforge/graphforge/pkg/pool"
	"github.com/graphforge/graphforge/pkg/store"
	"github.com/graphforge/graphforge/pkg/value"
)

// Config configures an Engine: where its graph lives and how its query
// pipeline behaves. Distinct from config.Config (the process-wide,
// env-loaded configuration) — an embedding host may run several Engines
// with different Configs inside one process.
type Config struct {
	// DataDir selects Badger-backed persistence when non-empty, or an
	// in-memory store when empty — mirroring the teacher's Open(dataDir, ...)
	// persistent-vs-memory switch.
	DataDir string

	Optimizer optimizer.Options

	PlanCacheEnabled bool
	PlanCacheSize    int
	PlanCacheTTL     time.Duration

	// Now overrides the clock functions like now() and timestamp() read;
	// nil defaults to time.Now, tests supply a fixed clock.
	Now func() time.Time
}

// DefaultConfig returns an in-memory engine configuration with every
// optimizer rewrite enabled and plan caching on, mirroring
// optimizer.DefaultOptions() and a generously sized plan cache.
func DefaultConfig() Config {
	return Config{
		Optimizer:        optimizer.DefaultOptions(),
		PlanCacheEnabled: true,
		PlanCacheSize:    1000,
		PlanCacheTTL:     5 * time.Minute,
	}
}

// ConfigFromEnv builds an engine Config from a process-wide config.Config,
// the bridge between env-loaded settings and a single Engine instance.
func ConfigFromEnv(c *config.Config) Config {
	return Config{
		Optimizer: optimizer.Options{
			FilterPushdown:      c.Engine.FilterPushdown,
			PredicateReordering: c.Engine.PredicateReordering,
			JoinReordering:      c.Engine.JoinReordering,
			JoinReorderLimit:    c.Engine.JoinReorderLimit,
		},
		PlanCacheEnabled: c.Engine.PlanCacheEnabled,
		PlanCacheSize:    c.Engine.PlanCacheSize,
		PlanCacheTTL:     c.Engine.PlanCacheTTL,
	}
}

// Engine is a single embedded GraphForge instance: one graph store, one
// plan cache, one set of optimizer settings.
//
// Thread safety: Execute may be called concurrently; each call opens its
// own store.Txn.
type Engine struct {
	config Config
	mu     sync.RWMutex
	closed bool

	st    store.Store
	plans *cache.PlanCache
}

// Open opens or creates a GraphForge engine. cfg.DataDir selects
// Badger-backed persistence; an empty DataDir opens an in-memory store.
func Open(cfg Config) (*Engine, error) {
	pool.Configure(pool.PoolConfig{Enabled: true, MaxSize: 1000})

	var st store.Store
	if cfg.DataDir != "" {
		bs, err := store.OpenBadgerStore(cfg.DataDir, false)
		if err != nil {
			return nil, fmt.Errorf("opening persistent store: %w", err)
		}
		st = bs
	} else {
		st = store.NewMemoryStore()
	}

	e := &Engine{
		config: cfg,
		st:     st,
		plans:  cache.NewPlanCache(cfg.PlanCacheSize, cfg.PlanCacheTTL),
	}
	e.plans.SetEnabled(cfg.PlanCacheEnabled)
	return e, nil
}

// Close releases the underlying store. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.st.Close()
}

// Result holds the outcome of a single executed query: the projected
// column names, in RETURN/WITH order, and the bound rows.
type Result struct {
	Columns []string
	Rows    []executor.Binding
}

// Execute parses (or reuses a cached plan for), optimizes, and runs a
// single Cypher query against the engine's graph, inside its own
// transaction. A query containing any CREATE/MERGE/SET/REMOVE/DELETE clause
// (in any position, including inside a UNION branch) opens a writable
// transaction; every other query opens a read-only one.
func (e *Engine) Execute(ctx context.Context, query string, params map[string]value.Value) (*Result, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("engine: closed")
	}

	key := e.plans.Key(query)
	cached, hit := e.plans.Get(key)

	var parsed *ast.Query
	var root plan.Op
	if hit {
		parsed, root = cached.Query, cached.Root
	} else {
		p, perr := parser.Parse(query)
		if perr != nil {
			return nil, perr
		}
		r, plerr := planner.Plan(p)
		if plerr != nil {
			return nil, plerr
		}
		parsed, root = p, r
	}

	writable := isWriteQuery(parsed)

	txn, err := e.st.Begin(ctx, writable)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	optimized := optimizer.Optimize(root, txn.Statistics(), e.config.Optimizer)

	if !hit {
		e.plans.Put(key, &cache.CachedPlan{Query: parsed, Root: root})
	}

	now := e.config.Now
	if now == nil {
		now = time.Now
	}

	rows, err := executor.Run(ctx, optimized, txn, params, now)
	if err != nil {
		_ = txn.Rollback()
		return nil, err
	}

	if writable {
		if err := txn.Commit(); err != nil {
			return nil, fmt.Errorf("committing transaction: %w", err)
		}
	} else {
		_ = txn.Rollback()
	}

	return &Result{Columns: resultColumns(optimized), Rows: rows}, nil
}

// isWriteQuery reports whether any clause in q (across every UNION branch)
// mutates the graph, determining whether Execute opens a writable
// transaction.
func isWriteQuery(q *ast.Query) bool {
	for _, c := range q.Clauses {
		switch c.(type) {
		case *ast.CreateClause, *ast.MergeClause, *ast.SetClause, *ast.RemoveClause, *ast.DeleteClause:
			return true
		}
	}
	for _, branch := range q.Union {
		if isWriteQuery(branch.Query) {
			return true
		}
	}
	return false
}

// resultColumns walks down the optimized plan to the innermost
// Project/With/Aggregate/Union that fixes the output row shape, returning
// its column names in RETURN/WITH order. A RETURN */WITH * passthrough (or
// a plan with no projection, e.g. a bare write query) yields no column
// names; a caller wanting the bound variable names for such a query should
// read them off Result.Rows[i].Names() instead.
func resultColumns(op plan.Op) []string {
	for op != nil {
		switch o := op.(type) {
		case *plan.Project:
			if o.Passthrough {
				return nil
			}
			return itemNames(o.Items)
		case *plan.With:
			return itemNames(o.Items)
		case *plan.Aggregate:
			names := itemNames(o.GroupKeys)
			for _, a := range o.Aggregates {
				names = append(names, a.Alias)
			}
			return names
		case *plan.Union:
			return resultColumns(o.Left)
		default:
			children := op.Children()
			if len(children) != 1 {
				return nil
			}
			op = children[0]
		}
	}
	return nil
}

func itemNames(items []plan.ProjectItem) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Alias
	}
	return names
}
