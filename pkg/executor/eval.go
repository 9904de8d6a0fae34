package executor

import (
	"context"
	"strings"

	"github.com/graphforge/graphforge/pkg/ast"
	"github.com/graphforge/graphforge/pkg/functions"
	"github.com/graphforge/graphforge/pkg/planner"
	"github.com/graphforge/graphforge/pkg/value"
)

// evaluate computes an expression's value against the current row, per
// spec.md §4.5.1. Every NULL-propagation and three-valued-logic rule lives
// here rather than in the pkg/value helpers it calls, so those helpers stay
// pure value-to-value transforms.
func evaluate(e ast.Expression, b Binding, ec *execCtx) (value.Value, error) {
	switch n := e.(type) {
	case nil:
		return value.Null, nil
	case *ast.Literal:
		return literalValue(n.Value), nil
	case *ast.Variable:
		return b.MustGet(n.Name), nil
	case *ast.Parameter:
		if v, ok := ec.params[n.Name]; ok {
			return v, nil
		}
		return value.Null, nil
	case *ast.PropertyAccess:
		return evalPropertyAccess(n, b, ec)
	case *ast.Index:
		return evalIndex(n, b, ec)
	case *ast.BinaryOp:
		return evalBinary(n, b, ec)
	case *ast.UnaryOp:
		return evalUnary(n, b, ec)
	case *ast.FunctionCall:
		return evalFunctionCall(n, b, ec)
	case *ast.ListLiteral:
		items := make([]value.Value, len(n.Items))
		for i, it := range n.Items {
			v, err := evaluate(it, b, ec)
			if err != nil {
				return value.Null, err
			}
			items[i] = v
		}
		return value.ListOf(items), nil
	case *ast.MapLiteral:
		m := value.NewOrderedMap()
		for i, k := range n.Keys {
			v, err := evaluate(n.Values[i], b, ec)
			if err != nil {
				return value.Null, err
			}
			m.Set(k, v)
		}
		return value.MapOf(m), nil
	case *ast.ListComprehension:
		return evalListComprehension(n, b, ec)
	case *ast.PatternComprehension:
		return evalPatternComprehension(n, b, ec)
	case *ast.PatternPredicate:
		return evalPatternPredicate(n, b, ec)
	case *ast.Quantifier:
		return evalQuantifier(n, b, ec)
	case *ast.CaseExpression:
		return evalCase(n, b, ec)
	case *ast.Parenthesized:
		return evaluate(n.Inner, b, ec)
	case *ast.Subquery:
		return evalSubqueryExpr(n, b, ec)
	default:
		return value.Null, errf("executor: unsupported expression %T", e)
	}
}

func literalValue(v any) value.Value {
	switch x := v.(type) {
	case nil:
		return value.Null
	case bool:
		return value.Bool(x)
	case int64:
		return value.Int(x)
	case int:
		return value.Int(int64(x))
	case float64:
		return value.Float(x)
	case string:
		return value.Str(x)
	default:
		return value.Null
	}
}

func evalPropertyAccess(n *ast.PropertyAccess, b Binding, ec *execCtx) (value.Value, error) {
	target, err := evaluate(n.Target, b, ec)
	if err != nil {
		return value.Null, err
	}
	if target.IsNull() {
		return value.Null, nil
	}
	switch target.Kind() {
	case value.KindNode:
		if v, ok := target.Node().Properties.Get(n.Property); ok {
			return v, nil
		}
		return value.Null, nil
	case value.KindEdge:
		if v, ok := target.Edge().Properties.Get(n.Property); ok {
			return v, nil
		}
		return value.Null, nil
	case value.KindMap:
		if v, ok := target.Map().Get(n.Property); ok {
			return v, nil
		}
		return value.Null, nil
	case value.KindDate, value.KindDateTime, value.KindTime, value.KindDuration:
		if v, ok := value.Accessor(n.Property, target.Kind(), target.Temporal()); ok {
			return v, nil
		}
		return value.Null, nil
	default:
		return value.Null, errf("type mismatch: cannot access property %q of %s", n.Property, target.Kind())
	}
}

func evalIndex(n *ast.Index, b Binding, ec *execCtx) (value.Value, error) {
	target, err := evaluate(n.Target, b, ec)
	if err != nil {
		return value.Null, err
	}
	if target.IsNull() {
		return value.Null, nil
	}
	if n.Slice {
		if target.Kind() != value.KindList {
			return value.Null, errf("type mismatch: cannot slice %s", target.Kind())
		}
		items := target.List()
		lo, hi := 0, len(items)
		if n.Lo != nil {
			v, err := evaluate(n.Lo, b, ec)
			if err != nil {
				return value.Null, err
			}
			if v.IsNull() {
				return value.Null, nil
			}
			lo = normalizeIndex(int(v.Int()), len(items))
		}
		if n.Hi != nil {
			v, err := evaluate(n.Hi, b, ec)
			if err != nil {
				return value.Null, err
			}
			if v.IsNull() {
				return value.Null, nil
			}
			hi = normalizeIndex(int(v.Int()), len(items))
		}
		if lo < 0 {
			lo = 0
		}
		if hi > len(items) {
			hi = len(items)
		}
		if lo >= hi {
			return value.ListOf(nil), nil
		}
		return value.ListOf(append([]value.Value{}, items[lo:hi]...)), nil
	}

	idx, err := evaluate(n.Single, b, ec)
	if err != nil {
		return value.Null, err
	}
	if idx.IsNull() {
		return value.Null, nil
	}
	switch target.Kind() {
	case value.KindList:
		items := target.List()
		i := normalizeIndex(int(idx.Int()), len(items))
		if i < 0 || i >= len(items) {
			return value.Null, nil
		}
		return items[i], nil
	case value.KindMap:
		if idx.Kind() != value.KindString {
			return value.Null, errf("type mismatch: map index must be a string")
		}
		if v, ok := target.Map().Get(idx.String()); ok {
			return v, nil
		}
		return value.Null, nil
	default:
		return value.Null, errf("type mismatch: cannot index %s", target.Kind())
	}
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		return n + i
	}
	return i
}

func evalBinary(n *ast.BinaryOp, b Binding, ec *execCtx) (value.Value, error) {
	switch n.Op {
	case "AND":
		l, err := evalTri(n.Left, b, ec)
		if err != nil {
			return value.Null, err
		}
		if l == value.False {
			return value.Bool(false), nil
		}
		r, err := evalTri(n.Right, b, ec)
		if err != nil {
			return value.Null, err
		}
		return value.And(l, r).Value(), nil
	case "OR":
		l, err := evalTri(n.Left, b, ec)
		if err != nil {
			return value.Null, err
		}
		if l == value.True {
			return value.Bool(true), nil
		}
		r, err := evalTri(n.Right, b, ec)
		if err != nil {
			return value.Null, err
		}
		return value.Or(l, r).Value(), nil
	}

	left, err := evaluate(n.Left, b, ec)
	if err != nil {
		return value.Null, err
	}
	right, err := evaluate(n.Right, b, ec)
	if err != nil {
		return value.Null, err
	}
	switch n.Op {
	case "+":
		return value.Add(left, right)
	case "-", "*", "/", "%":
		return value.Arith(n.Op, left, right)
	case "=":
		return value.Equals(left, right).Value(), nil
	case "<>":
		return value.Not(value.Equals(left, right)).Value(), nil
	case "<", "<=", ">", ">=":
		return evalOrderingComparison(n.Op, left, right), nil
	case "STARTS WITH":
		return evalStringPredicate(left, right, strings.HasPrefix), nil
	case "ENDS WITH":
		return evalStringPredicate(left, right, strings.HasSuffix), nil
	case "CONTAINS":
		return evalStringPredicate(left, right, strings.Contains), nil
	case "IN":
		return evalIn(left, right), nil
	default:
		return value.Null, errf("executor: unsupported operator %q", n.Op)
	}
}

// evalTri evaluates a sub-expression of an AND/OR chain as Tri, rejecting
// non-Boolean/non-NULL results the way a WHERE clause would.
func evalTri(e ast.Expression, b Binding, ec *execCtx) (value.Tri, error) {
	v, err := evaluate(e, b, ec)
	if err != nil {
		return value.Unknown, err
	}
	t, ok := value.TriFromValue(v)
	if !ok {
		return value.Unknown, errf("type mismatch: expected Boolean, got %s", v.Kind())
	}
	return t, nil
}

// evalOrderingComparison yields NULL both for a NULL operand and for
// operands of incompatible kinds, matching openCypher's comparison
// semantics rather than raising a type error.
func evalOrderingComparison(op string, a, b value.Value) value.Value {
	if a.IsNull() || b.IsNull() {
		return value.Null
	}
	c, err := value.Compare(a, b)
	if err != nil {
		return value.Null
	}
	var result bool
	switch op {
	case "<":
		result = c < 0
	case "<=":
		result = c <= 0
	case ">":
		result = c > 0
	case ">=":
		result = c >= 0
	}
	return value.Bool(result)
}

func evalStringPredicate(a, b value.Value, f func(s, prefix string) bool) value.Value {
	if a.IsNull() || b.IsNull() {
		return value.Null
	}
	if a.Kind() != value.KindString || b.Kind() != value.KindString {
		return value.Null
	}
	return value.Bool(f(a.String(), b.String()))
}

// evalIn implements `a IN list` with three-valued semantics: True if an
// exact match is found, Unknown if no match is found but the list or some
// element compared Unknown against a, otherwise False.
func evalIn(a, list value.Value) value.Value {
	if list.IsNull() {
		return value.Null
	}
	if list.Kind() != value.KindList {
		return value.Null
	}
	sawUnknown := a.IsNull()
	for _, item := range list.List() {
		switch value.Equals(a, item) {
		case value.True:
			return value.Bool(true)
		case value.Unknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return value.Null
	}
	return value.Bool(false)
}

func evalUnary(n *ast.UnaryOp, b Binding, ec *execCtx) (value.Value, error) {
	switch n.Op {
	case "NOT":
		t, err := evalTri(n.Operand, b, ec)
		if err != nil {
			return value.Null, err
		}
		return value.Not(t).Value(), nil
	case "IS NULL":
		v, err := evaluate(n.Operand, b, ec)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(v.IsNull()), nil
	case "IS NOT NULL":
		v, err := evaluate(n.Operand, b, ec)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(!v.IsNull()), nil
	case "-":
		v, err := evaluate(n.Operand, b, ec)
		if err != nil {
			return value.Null, err
		}
		if v.IsNull() {
			return value.Null, nil
		}
		if !v.IsNumeric() {
			return value.Null, errf("type mismatch: cannot negate %s", v.Kind())
		}
		if v.Kind() == value.KindInt {
			return value.Int(-v.Int()), nil
		}
		return value.Float(-v.Float()), nil
	default:
		return value.Null, errf("executor: unsupported unary operator %q", n.Op)
	}
}

func evalFunctionCall(n *ast.FunctionCall, b Binding, ec *execCtx) (value.Value, error) {
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := evaluate(a, b, ec)
		if err != nil {
			return value.Null, err
		}
		args[i] = v
	}
	v, err, ok := ec.funcs.Call(n.Name, args)
	if !ok {
		return value.Null, errf("executor: unknown function %q", n.Name)
	}
	if err != nil {
		return value.Null, errf("%s: %s", n.Name, err.Error())
	}
	return v, nil
}

func evalListComprehension(n *ast.ListComprehension, b Binding, ec *execCtx) (value.Value, error) {
	list, err := evaluate(n.List, b, ec)
	if err != nil {
		return value.Null, err
	}
	if list.IsNull() {
		return value.Null, nil
	}
	if list.Kind() != value.KindList {
		return value.Null, errf("type mismatch: comprehension source must be a list")
	}
	var out []value.Value
	for _, item := range list.List() {
		inner := b.With(n.Variable, item)
		if n.Where != nil {
			t, err := evalTri(n.Where, inner, ec)
			if err != nil {
				return value.Null, err
			}
			if t != value.True {
				continue
			}
		}
		if n.Project == nil {
			out = append(out, item)
			continue
		}
		v, err := evaluate(n.Project, inner, ec)
		if err != nil {
			return value.Null, err
		}
		out = append(out, v)
	}
	return value.ListOf(out), nil
}

// evalPatternComprehension drives a small correlated plan fragment per
// spec.md §4.5.1, projecting Project for every match that passes Where.
// Without a Project expression nothing is collected and the result is an
// empty list.
func evalPatternComprehension(n *ast.PatternComprehension, b Binding, ec *execCtx) (value.Value, error) {
	it, err := compilePatternFragment(n.Pattern, b, ec)
	if err != nil {
		return value.Null, err
	}
	defer it.Close()
	var out []value.Value
	for {
		row, err := it.Next(context.Background())
		if err == ErrDone {
			break
		}
		if err != nil {
			return value.Null, err
		}
		if n.Where != nil {
			t, err := evalTri(n.Where, row, ec)
			if err != nil {
				return value.Null, err
			}
			if t != value.True {
				continue
			}
		}
		if n.Project == nil {
			continue
		}
		v, err := evaluate(n.Project, row, ec)
		if err != nil {
			return value.Null, err
		}
		out = append(out, v)
	}
	return value.ListOf(out), nil
}

func evalPatternPredicate(n *ast.PatternPredicate, b Binding, ec *execCtx) (value.Value, error) {
	it, err := compilePatternFragment(n.Pattern, b, ec)
	if err != nil {
		return value.Null, err
	}
	defer it.Close()
	_, err = it.Next(context.Background())
	matched := err != ErrDone
	if err != nil && err != ErrDone {
		return value.Null, err
	}
	if n.Negated {
		matched = !matched
	}
	return value.Bool(matched), nil
}

// evalQuantifier implements all/any/none/single, folding each element's
// 3-valued predicate result with the corresponding functions.*Tri combinator.
func evalQuantifier(n *ast.Quantifier, b Binding, ec *execCtx) (value.Value, error) {
	list, err := evaluate(n.List, b, ec)
	if err != nil {
		return value.Null, err
	}
	if list.IsNull() {
		return value.Null, nil
	}
	if list.Kind() != value.KindList {
		return value.Null, errf("type mismatch: quantifier source must be a list")
	}
	results := make([]value.Tri, 0, len(list.List()))
	for _, item := range list.List() {
		inner := b.With(n.Variable, item)
		t, err := evalTri(n.Where, inner, ec)
		if err != nil {
			return value.Null, err
		}
		results = append(results, t)
	}
	var combined value.Tri
	switch strings.ToLower(n.Kind) {
	case "all":
		combined = functions.AllTri(results)
	case "any":
		combined = functions.AnyTri(results)
	case "none":
		combined = functions.NoneTri(results)
	case "single":
		combined = functions.SingleTri(results)
	default:
		return value.Null, errf("executor: unknown quantifier %q", n.Kind)
	}
	return combined.Value(), nil
}

func evalCase(n *ast.CaseExpression, b Binding, ec *execCtx) (value.Value, error) {
	var testVal value.Value
	if n.Test != nil {
		v, err := evaluate(n.Test, b, ec)
		if err != nil {
			return value.Null, err
		}
		testVal = v
	}
	for _, w := range n.Whens {
		if n.Test != nil {
			cv, err := evaluate(w.When, b, ec)
			if err != nil {
				return value.Null, err
			}
			if value.Equals(testVal, cv) != value.True {
				continue
			}
		} else {
			t, err := evalTri(w.When, b, ec)
			if err != nil {
				return value.Null, err
			}
			if t != value.True {
				continue
			}
		}
		return evaluate(w.Then, b, ec)
	}
	if n.Default != nil {
		return evaluate(n.Default, b, ec)
	}
	return value.Null, nil
}

// evalSubqueryExpr handles EXISTS{...}/COUNT{...} used inline in an
// expression (as opposed to the plan.Subquery operator, used at clause
// level). It replans the inner query fresh each call since the planner has
// no cross-package dependency on the executor, keeping the two packages'
// import graph acyclic.
func evalSubqueryExpr(n *ast.Subquery, b Binding, ec *execCtx) (value.Value, error) {
	inner, perr := planner.Plan(n.Query)
	if perr != nil {
		return value.Null, errf("%s", perr.Error())
	}
	it, err := compile(inner, b, ec)
	if err != nil {
		return value.Null, err
	}
	defer it.Close()
	count := 0
	for {
		_, err := it.Next(context.Background())
		if err == ErrDone {
			break
		}
		if err != nil {
			return value.Null, err
		}
		count++
		if strings.EqualFold(n.Kind, "EXISTS") {
			break
		}
	}
	if strings.EqualFold(n.Kind, "EXISTS") {
		return value.Bool(count > 0), nil
	}
	return value.Int(int64(count)), nil
}
