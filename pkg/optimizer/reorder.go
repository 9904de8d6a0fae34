package optimizer

import (
	"sort"

	"github.com/graphforge/graphforge/pkg/ast"
	"github.com/graphforge/graphforge/pkg/plan"
)

// reorderPredicates implements spec.md §4.3.4: within every AND-conjunction
// carried by a predicate-bearing operator (a Filter, or a Scan/Expand that
// already received conjuncts from pushdown), sort the conjuncts ascending
// by estimated selectivity so the cheapest-to-evaluate/most-discriminating
// tests run first. It never descends into an OR subtree, and it never
// changes operand order within a single conjunct.
func reorderPredicates(op plan.Op) plan.Op {
	op = rewriteChildren(op, reorderPredicates)
	if sq, ok := op.(*plan.Subquery); ok {
		sq.Inner = reorderPredicates(sq.Inner)
	}
	switch o := op.(type) {
	case *plan.ScanNodes:
		o.Predicate = sortConjuncts(o.Predicate)
	case *plan.ExpandEdges:
		o.Predicate = sortConjuncts(o.Predicate)
	case *plan.ExpandVariableLength:
		o.Predicate = sortConjuncts(o.Predicate)
	case *plan.ExpandMultiHop:
		o.Predicate = sortConjuncts(o.Predicate)
	case *plan.Filter:
		o.Predicate = sortConjuncts(o.Predicate)
	}
	return op
}

func sortConjuncts(pred ast.Expression) ast.Expression {
	if pred == nil {
		return nil
	}
	parts := conjuncts(pred)
	if len(parts) < 2 {
		return pred
	}
	sort.SliceStable(parts, func(i, j int) bool {
		return selectivity(parts[i]) < selectivity(parts[j])
	})
	return andAll(parts)
}

// reorderJoins implements spec.md §4.3.5, scoped to this planner's actual
// source of join-order freedom: a left-deep chain of CrossJoin nodes, one
// per comma-separated pattern component (or sequential MATCH clause) that
// shares no variable with what came before it. Those components have no
// dependency on one another's bindings, so every permutation is a valid
// topological order; the rewrite picks the one with lowest estimated plan
// cost, truncating the search at limit permutations for large chains.
func reorderJoins(op plan.Op, stats Statistics, limit int) plan.Op {
	if op == nil {
		return nil
	}
	if cj, ok := op.(*plan.CrossJoin); ok {
		components := flattenCrossJoins(cj)
		for i := range components {
			components[i] = reorderJoins(components[i], stats, limit)
		}
		if len(components) < 2 || containsMutation(components) {
			return rebuildCrossChain(components)
		}
		return rebuildCrossChain(bestOrder(components, stats, limit))
	}
	return rewriteChildren(op, func(c plan.Op) plan.Op { return reorderJoins(c, stats, limit) })
}

func flattenCrossJoins(op plan.Op) []plan.Op {
	cj, ok := op.(*plan.CrossJoin)
	if !ok {
		return []plan.Op{op}
	}
	return append(flattenCrossJoins(cj.Left), cj.Right)
}

func rebuildCrossChain(components []plan.Op) plan.Op {
	out := components[0]
	for _, c := range components[1:] {
		out = &plan.CrossJoin{Left: out, Right: c}
	}
	return out
}

func containsMutation(components []plan.Op) bool {
	for _, c := range components {
		if hasMutation(c) {
			return true
		}
	}
	return false
}

func hasMutation(op plan.Op) bool {
	if op == nil {
		return false
	}
	switch op.(type) {
	case *plan.Create, *plan.Merge, *plan.Set, *plan.Remove, *plan.Delete:
		return true
	}
	for _, c := range op.Children() {
		if hasMutation(c) {
			return true
		}
	}
	return false
}

// bestOrder enumerates permutations of components (bounded by limit) and
// returns the one whose rebuilt chain has the lowest estimated plan cost.
func bestOrder(components []plan.Op, stats Statistics, limit int) []plan.Op {
	best := components
	bestCost := planCost(rebuildCrossChain(components), stats)
	tried := 0
	var perm func(arr []plan.Op, k int) bool // returns false to stop early (limit reached)
	perm = func(arr []plan.Op, k int) bool {
		if k == len(arr) {
			tried++
			cost := planCost(rebuildCrossChain(arr), stats)
			if cost < bestCost {
				bestCost = cost
				best = append([]plan.Op{}, arr...)
			}
			return tried < limit
		}
		for i := k; i < len(arr); i++ {
			arr[k], arr[i] = arr[i], arr[k]
			if !perm(arr, k+1) {
				arr[k], arr[i] = arr[i], arr[k]
				return false
			}
			arr[k], arr[i] = arr[i], arr[k]
		}
		return true
	}
	work := append([]plan.Op{}, components...)
	perm(work, 0)
	return best
}
