package optimizer

import "github.com/graphforge/graphforge/pkg/ast"
import "github.com/graphforge/graphforge/pkg/plan"

// pushdownFilters implements spec.md §4.3.3: split every Filter's predicate
// into conjuncts and attach each one to the nearest preceding predicate-
// bearing operator whose bound variables already cover it, stopping at
// pipeline boundaries and never reaching into an Optional* operator (that
// would change which rows survive the outer join).
func pushdownFilters(op plan.Op) plan.Op {
	op = rewriteChildren(op, pushdownFilters)
	if sq, ok := op.(*plan.Subquery); ok {
		sq.Inner = pushdownFilters(sq.Inner)
	}
	if f, ok := op.(*plan.Filter); ok {
		return pushFilterConjuncts(f)
	}
	return op
}

func pushFilterConjuncts(f *plan.Filter) plan.Op {
	conjs := conjuncts(f.Predicate)
	var remaining []ast.Expression
	for _, c := range conjs {
		vars := freeVars(c)
		target := findPushTarget(f.Input, vars)
		if target == nil {
			remaining = append(remaining, c)
			continue
		}
		attachPredicate(target, c)
	}
	if len(remaining) == 0 {
		return f.Input
	}
	f.Predicate = andAll(remaining)
	return f
}

// findPushTarget walks the chain feeding op looking for the nearest operator
// that supports an attached predicate and already binds every variable in
// vars. It never crosses a pipeline boundary, and gives up as soon as it
// reaches a predicate-bearing operator that doesn't yet bind everything
// needed — an earlier operator in the chain binds a strict subset, so
// walking further back could never succeed either.
func findPushTarget(op plan.Op, vars map[string]bool) plan.Op {
	if op == nil || isPipelineBoundary(op) {
		return nil
	}
	switch o := op.(type) {
	case *plan.OptionalScanNodes, *plan.OptionalExpandEdges:
		return nil
	case *plan.CrossJoin:
		if t := findPushTarget(o.Left, vars); t != nil {
			return t
		}
		return findPushTarget(o.Right, vars)
	}
	if supportsPredicate(op) {
		if subsetOf(vars, boundVariables(op)) {
			return op
		}
		return nil
	}
	children := op.Children()
	if len(children) == 1 {
		return findPushTarget(children[0], vars)
	}
	return nil
}

func attachPredicate(op plan.Op, conjunct ast.Expression) {
	switch o := op.(type) {
	case *plan.ScanNodes:
		o.Predicate = andExpr(o.Predicate, conjunct)
	case *plan.ExpandEdges:
		o.Predicate = andExpr(o.Predicate, conjunct)
	case *plan.ExpandVariableLength:
		o.Predicate = andExpr(o.Predicate, conjunct)
	case *plan.ExpandMultiHop:
		o.Predicate = andExpr(o.Predicate, conjunct)
	}
}

func andExpr(existing, add ast.Expression) ast.Expression {
	if existing == nil {
		return add
	}
	return &ast.BinaryOp{Op: "AND", Left: existing, Right: add}
}

// freeVars collects every row-variable name an expression references,
// following PropertyAccess/Index chains back to their root Variable.
func freeVars(e ast.Expression) map[string]bool {
	out := map[string]bool{}
	collectFreeVars(e, out)
	return out
}

func collectFreeVars(e ast.Expression, out map[string]bool) {
	switch n := e.(type) {
	case nil:
	case *ast.Variable:
		out[n.Name] = true
	case *ast.PropertyAccess:
		collectFreeVars(n.Target, out)
	case *ast.Index:
		collectFreeVars(n.Target, out)
		collectFreeVars(n.Single, out)
		collectFreeVars(n.Lo, out)
		collectFreeVars(n.Hi, out)
	case *ast.BinaryOp:
		collectFreeVars(n.Left, out)
		collectFreeVars(n.Right, out)
	case *ast.UnaryOp:
		collectFreeVars(n.Operand, out)
	case *ast.FunctionCall:
		for _, a := range n.Args {
			collectFreeVars(a, out)
		}
	case *ast.ListLiteral:
		for _, it := range n.Items {
			collectFreeVars(it, out)
		}
	case *ast.MapLiteral:
		for _, v := range n.Values {
			collectFreeVars(v, out)
		}
	case *ast.ListComprehension:
		collectFreeVars(n.List, out)
		// n.Variable, n.Where, n.Project are scoped to the comprehension's
		// own binding and do not leak free variables into the outer scope.
	case *ast.Quantifier:
		collectFreeVars(n.List, out)
	case *ast.CaseExpression:
		collectFreeVars(n.Test, out)
		for _, w := range n.Whens {
			collectFreeVars(w.When, out)
			collectFreeVars(w.Then, out)
		}
		collectFreeVars(n.Default, out)
	case *ast.Parenthesized:
		collectFreeVars(n.Inner, out)
	}
}

func subsetOf(a, b map[string]bool) bool {
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
