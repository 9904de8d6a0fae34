// Package executor pulls rows through a pkg/plan operator tree (spec.md
// §4.4): a single-threaded, pull-style evaluator over one store.Txn per
// query, with immutable copy-on-write Binding rows and three-valued-logic
// filtering throughout.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/graphforge/graphforge/pkg/ast"
	"github.com/graphforge/graphforge/pkg/functions"
	"github.com/graphforge/graphforge/pkg/plan"
	"github.com/graphforge/graphforge/pkg/planner"
	"github.com/graphforge/graphforge/pkg/store"
	"github.com/graphforge/graphforge/pkg/value"
)

// ErrDone is returned by Next once an Iterator is exhausted, mirroring
// io.EOF's role: callers loop on the (Binding, error) pair rather than a
// separate "more rows" flag.
var ErrDone = errors.New("executor: no more rows")

// Iterator is the pull contract every compiled operator implements.
type Iterator interface {
	Next(ctx context.Context) (Binding, error)
	Close() error
}

// RuntimeError reports a type error or other failure discovered while
// evaluating an expression or driving an operator — the executor's
// equivalent of planner.PlanError, raised only once execution is underway.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string { return e.Message }

func errf(format string, args ...any) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}

// execCtx bundles the state every compiled operator and the expression
// evaluator need, threaded down through compile/evaluate rather than
// reopened per operator.
type execCtx struct {
	txn    store.Txn
	funcs  *functions.Registry
	params map[string]value.Value
	now    func() time.Time
}

// Run compiles root and drains every row it produces into a slice, applying
// the per-row cancellation check spec.md §5 requires. It is the engine's
// entry point for a single query's implicit transaction.
func Run(ctx context.Context, root plan.Op, txn store.Txn, params map[string]value.Value, now func() time.Time) ([]Binding, error) {
	ec := &execCtx{txn: txn, funcs: functions.NewRegistry(now), params: params, now: now}
	it, err := compile(root, Empty, ec)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows []Binding
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := it.Next(ctx)
		if err == ErrDone {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// funcIter adapts a pair of closures to the Iterator interface, the shape
// most of this package's operators use instead of a named struct per
// operator kind.
type funcIter struct {
	next  func(ctx context.Context) (Binding, error)
	close func() error
}

func (f *funcIter) Next(ctx context.Context) (Binding, error) { return f.next(ctx) }
func (f *funcIter) Close() error {
	if f.close == nil {
		return nil
	}
	return f.close()
}

// singleRowIter yields row exactly once. It is the leaf every Unary
// operator's nil Input compiles to: the seed row for a fresh top-level
// query (Empty) or the outer row of a correlated pattern/subquery fragment.
func singleRowIter(row Binding) Iterator {
	done := false
	return &funcIter{next: func(ctx context.Context) (Binding, error) {
		if done {
			return Binding{}, ErrDone
		}
		done = true
		return row, nil
	}}
}

func emptyIter() Iterator {
	return &funcIter{next: func(ctx context.Context) (Binding, error) { return Binding{}, ErrDone }}
}

// compile lowers one plan.Op into a running Iterator. seed is the row every
// leaf without its own data source (a nil Unary.Input, or a pattern
// fragment compiled via planner.CompilePattern) starts from; it is Empty
// for a fresh top-level query and the outer binding for a correlated
// subquery, pattern predicate, or pattern comprehension.
func compile(op plan.Op, seed Binding, ec *execCtx) (Iterator, error) {
	if op == nil {
		return singleRowIter(seed), nil
	}
	switch o := op.(type) {
	case *plan.ScanNodes:
		return compileScanNodes(o, seed, ec)
	case *plan.OptionalScanNodes:
		return compileOptionalScanNodes(o, seed, ec)
	case *plan.ExpandEdges:
		return compileExpandEdges(o, seed, ec)
	case *plan.OptionalExpandEdges:
		return compileOptionalExpandEdges(o, seed, ec)
	case *plan.ExpandVariableLength:
		return compileExpandVariableLength(o, seed, ec)
	case *plan.ExpandMultiHop:
		return compileExpandMultiHop(o, seed, ec)
	case *plan.CrossJoin:
		return compileCrossJoin(o, seed, ec)
	case *plan.Filter:
		return compileFilter(o, seed, ec)
	case *plan.Project:
		return compileProject(o, seed, ec)
	case *plan.Sort:
		return compileSort(o, seed, ec)
	case *plan.Skip:
		return compileSkip(o, seed, ec)
	case *plan.Limit:
		return compileLimit(o, seed, ec)
	case *plan.Aggregate:
		return compileAggregate(o, seed, ec)
	case *plan.With:
		return compileWith(o, seed, ec)
	case *plan.Unwind:
		return compileUnwind(o, seed, ec)
	case *plan.Union:
		return compileUnion(o, seed, ec)
	case *plan.Subquery:
		return compileSubquery(o, seed, ec)
	case *plan.Create:
		return compileCreate(o, seed, ec)
	case *plan.Merge:
		return compileMerge(o, seed, ec)
	case *plan.Set:
		return compileSet(o, seed, ec)
	case *plan.Remove:
		return compileRemove(o, seed, ec)
	case *plan.Delete:
		return compileDelete(o, seed, ec)
	default:
		return nil, errf("executor: unsupported operator %T", op)
	}
}

// compilePatternFragment plans and compiles an ast.PatternPath correlated
// against outer, used by pattern predicates, pattern comprehensions, and
// (via their Pattern field) nowhere else — MATCH/CREATE/MERGE patterns
// always go through the planner ahead of execution instead.
func compilePatternFragment(path ast.PatternPath, outer Binding, ec *execCtx) (Iterator, error) {
	bound := map[string]bool{}
	for _, n := range outer.Names() {
		bound[n] = true
	}
	frag, perr := planner.CompilePattern(path, bound)
	if perr != nil {
		return nil, errf("%s", perr.Error())
	}
	return compile(frag, outer, ec)
}
