// Package optimizer rewrites a planner-produced pkg/plan tree into an
// equivalent but cheaper-to-execute tree (spec.md §4.3). Every rewrite here
// preserves result semantics; none may cross a pipeline boundary (With,
// a Union branch, or any mutating operator), since those points are where
// the spec.md's variable-scoping and side-effect-ordering rules take over
// from pure data-flow reasoning.
package optimizer

import "github.com/graphforge/graphforge/pkg/plan"

// Options toggles each rewrite independently; all default to enabled. A
// disabled toggle is a debugging/benchmarking knob, not a correctness
// switch — the unoptimized plan is always valid, just potentially slower.
type Options struct {
	FilterPushdown     bool
	PredicateReordering bool
	JoinReordering     bool
	// JoinReorderLimit bounds how many topological orderings the join
	// reordering rewrite enumerates per segment; once the limit is reached
	// the cheapest order found so far is kept, per spec.md §4.3.5's
	// "configurable limit" clause.
	JoinReorderLimit int
}

// DefaultOptions enables every rewrite with a join-reorder search space
// generous enough for typical queries (a handful of pattern components)
// without risking factorial blowup on pathological ones.
func DefaultOptions() Options {
	return Options{
		FilterPushdown:      true,
		PredicateReordering: true,
		JoinReordering:      true,
		JoinReorderLimit:    720, // 6!
	}
}

// Optimize applies the enabled rewrites in sequence and returns the
// resulting plan. stats drives cardinality estimation throughout; a zero
// GraphStatistics is valid (every estimate falls back to its documented
// default) so callers without fresh statistics can still optimize.
func Optimize(root plan.Op, stats Statistics, opts Options) plan.Op {
	if opts.FilterPushdown {
		root = pushdownFilters(root)
	}
	if opts.PredicateReordering {
		root = reorderPredicates(root)
	}
	if opts.JoinReordering {
		limit := opts.JoinReorderLimit
		if limit <= 0 {
			limit = 1
		}
		root = reorderJoins(root, stats, limit)
	}
	return root
}

// rewriteChildren rebuilds op with each of its children replaced by f(child),
// preserving op's own type and fields. It is the traversal primitive every
// rewrite in this package uses so each rewrite file only needs to handle the
// operator shapes it actually changes.
func rewriteChildren(op plan.Op, f func(plan.Op) plan.Op) plan.Op {
	switch o := op.(type) {
	case nil:
		return nil
	case *plan.ScanNodes, *plan.OptionalScanNodes:
		return o
	case *plan.ExpandEdges:
		o.Input = f(o.Input)
		return o
	case *plan.OptionalExpandEdges:
		o.Input = f(o.Input)
		return o
	case *plan.ExpandVariableLength:
		o.Input = f(o.Input)
		return o
	case *plan.ExpandMultiHop:
		o.Input = f(o.Input)
		return o
	case *plan.CrossJoin:
		o.Left, o.Right = f(o.Left), f(o.Right)
		return o
	case *plan.Filter:
		o.Input = f(o.Input)
		return o
	case *plan.Project:
		o.Input = f(o.Input)
		return o
	case *plan.Sort:
		o.Input = f(o.Input)
		return o
	case *plan.Skip:
		o.Input = f(o.Input)
		return o
	case *plan.Limit:
		o.Input = f(o.Input)
		return o
	case *plan.Aggregate:
		o.Input = f(o.Input)
		return o
	case *plan.With:
		o.Input = f(o.Input)
		return o
	case *plan.Unwind:
		o.Input = f(o.Input)
		return o
	case *plan.Union:
		o.Left, o.Right = f(o.Left), f(o.Right)
		return o
	case *plan.Subquery:
		o.Input = f(o.Input)
		return o
	case *plan.Create:
		o.Input = f(o.Input)
		return o
	case *plan.Merge:
		o.Input = f(o.Input)
		return o
	case *plan.Set:
		o.Input = f(o.Input)
		return o
	case *plan.Remove:
		o.Input = f(o.Input)
		return o
	case *plan.Delete:
		o.Input = f(o.Input)
		return o
	default:
		return o
	}
}

// isPipelineBoundary reports whether op stops data-flow reasoning from
// passing through it: With and Union re-scope variables, and every mutating
// operator must keep its relative order (spec.md §4.3's boundary rule).
func isPipelineBoundary(op plan.Op) bool {
	switch op.(type) {
	case *plan.With, *plan.Union, *plan.Create, *plan.Merge, *plan.Set, *plan.Remove, *plan.Delete, *plan.Subquery:
		return true
	default:
		return false
	}
}

// supportsPredicate reports whether op is one filter pushdown may attach a
// conjunct to directly (spec.md §4.3.3).
func supportsPredicate(op plan.Op) bool {
	switch op.(type) {
	case *plan.ScanNodes, *plan.ExpandEdges, *plan.ExpandVariableLength, *plan.ExpandMultiHop:
		return true
	default:
		return false
	}
}

// boundVariables returns every variable op (and, transitively, its
// non-boundary children) binds into the row.
func boundVariables(op plan.Op) map[string]bool {
	out := map[string]bool{}
	collectBound(op, out)
	return out
}

func collectBound(op plan.Op, out map[string]bool) {
	switch o := op.(type) {
	case nil:
		return
	case *plan.ScanNodes:
		out[o.Variable] = true
	case *plan.OptionalScanNodes:
		out[o.Variable] = true
	case *plan.ExpandEdges:
		out[o.EdgeVar], out[o.ToVar] = true, true
		collectBound(o.Input, out)
	case *plan.OptionalExpandEdges:
		out[o.EdgeVar], out[o.ToVar] = true, true
		collectBound(o.Input, out)
	case *plan.ExpandVariableLength:
		out[o.ToVar] = true
		if o.PathVar != "" {
			out[o.PathVar] = true
		}
		collectBound(o.Input, out)
	case *plan.ExpandMultiHop:
		for _, step := range o.Steps {
			out[step.EdgeVar], out[step.ToVar] = true, true
		}
		collectBound(o.Input, out)
	case *plan.CrossJoin:
		collectBound(o.Left, out)
		collectBound(o.Right, out)
	case *plan.Unwind:
		out[o.Var] = true
		collectBound(o.Input, out)
	case *plan.Project:
		for _, item := range o.Items {
			out[item.Alias] = true
		}
	case *plan.With:
		for _, item := range o.Items {
			out[item.Alias] = true
		}
	case *plan.Aggregate:
		for _, k := range o.GroupKeys {
			out[k.Alias] = true
		}
		for _, a := range o.Aggregates {
			out[a.Alias] = true
		}
	default:
		for _, c := range op.Children() {
			collectBound(c, out)
		}
	}
}
