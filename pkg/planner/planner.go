// Package planner translates a parsed ast.Query into the logical operator
// pipeline defined in pkg/plan (spec.md §4.2). It performs no cost-based
// decisions — ordering and rewrites are the optimizer's job (pkg/optimizer)
// — only the structural translation plus the scoping rules spec.md calls
// out: WITH/RETURN are pipeline boundaries, variables already bound in the
// pattern are re-expansion points rather than new scans, and every pattern
// element without a source variable already has one from the parser's
// anonymous-variable counter.
package planner

import (
	"fmt"
	"strings"

	"github.com/graphforge/graphforge/pkg/ast"
	"github.com/graphforge/graphforge/pkg/plan"
)

// aggregateFuncs names every function pkg/functions implements as an
// Accumulator rather than a pure scalar transform; a projection item whose
// expression is a direct call to one of these is lowered into a
// plan.Aggregate rather than evaluated inline.
var aggregateFuncs = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"collect": true, "stdev": true, "stdevp": true,
	"percentilecont": true, "percentiledisc": true,
}

func isAggregateCall(e ast.Expression) (*ast.FunctionCall, bool) {
	fc, ok := e.(*ast.FunctionCall)
	if !ok {
		return nil, false
	}
	return fc, aggregateFuncs[strings.ToLower(fc.Name)]
}

// containsAggregate reports whether e references an aggregate function
// anywhere in its tree, used to decide whether a RETURN/WITH needs a
// plan.Aggregate stage at all.
func containsAggregate(e ast.Expression) bool {
	switch n := e.(type) {
	case nil:
		return false
	case *ast.FunctionCall:
		if aggregateFuncs[strings.ToLower(n.Name)] {
			return true
		}
		for _, a := range n.Args {
			if containsAggregate(a) {
				return true
			}
		}
	case *ast.BinaryOp:
		return containsAggregate(n.Left) || containsAggregate(n.Right)
	case *ast.UnaryOp:
		return containsAggregate(n.Operand)
	case *ast.PropertyAccess:
		return containsAggregate(n.Target)
	case *ast.Index:
		return containsAggregate(n.Target) || containsAggregate(n.Single) || containsAggregate(n.Lo) || containsAggregate(n.Hi)
	case *ast.ListLiteral:
		for _, it := range n.Items {
			if containsAggregate(it) {
				return true
			}
		}
	case *ast.MapLiteral:
		for _, v := range n.Values {
			if containsAggregate(v) {
				return true
			}
		}
	case *ast.Parenthesized:
		return containsAggregate(n.Inner)
	case *ast.CaseExpression:
		if containsAggregate(n.Test) || containsAggregate(n.Default) {
			return true
		}
		for _, w := range n.Whens {
			if containsAggregate(w.When) || containsAggregate(w.Then) {
				return true
			}
		}
	}
	return false
}

// buildAggregate splits a projection item list into group keys (every item
// whose expression is not itself a bare aggregate call) and aggregate
// computations (items that are), rewriting every item to reference the
// resulting row's alias directly. An aggregate call nested inside a larger
// expression (e.g. `count(n) + 1`) is not split out — that item is planned
// as a group key instead and evaluates the aggregate function name as an
// ordinary (unregistered) call, which the executor reports as a runtime
// error; supporting it would need a generalized expression-rewrite pass,
// out of scope here since RETURN/WITH items are overwhelmingly either a
// bare grouping expression or a bare aggregate in practice.
func buildAggregate(items []ast.ProjectionItem) ([]plan.ProjectItem, []plan.AggregateItem, []ast.ProjectionItem) {
	var groupKeys []plan.ProjectItem
	var aggs []plan.AggregateItem
	rewritten := make([]ast.ProjectionItem, len(items))
	for i, it := range items {
		if fc, ok := isAggregateCall(it.Expr); ok {
			var arg ast.Expression
			var extra []ast.Expression
			if len(fc.Args) > 0 {
				arg = fc.Args[0]
			}
			if len(fc.Args) > 1 {
				extra = fc.Args[1:]
			}
			aggs = append(aggs, plan.AggregateItem{
				Func: strings.ToLower(fc.Name), Arg: arg, Extra: extra, Distinct: fc.Distinct, Alias: it.Alias,
			})
		} else {
			groupKeys = append(groupKeys, plan.ProjectItem{Expr: it.Expr, Alias: it.Alias})
		}
		rewritten[i] = ast.ProjectionItem{Expr: &ast.Variable{Name: it.Alias}, Alias: it.Alias}
	}
	return groupKeys, aggs, rewritten
}

// PlanError reports a structural problem the planner found (an empty query
// or a clause kind it has no lowering for).
// Syntactically valid queries that are structurally unplannable fail here
// rather than panicking deep inside the executor.
type PlanError struct {
	Message string
}

func (e *PlanError) Error() string { return e.Message }

func errf(format string, args ...any) *PlanError {
	return &PlanError{Message: fmt.Sprintf(format, args...)}
}

// scope tracks which variables are already bound as planning proceeds
// through a query's clauses: a pattern variable already in scope means its
// node pattern is a join-back filter against an existing binding rather
// than a fresh scan.
type scope struct {
	bound map[string]bool
}

func newScope() *scope { return &scope{bound: map[string]bool{}} }

func (s *scope) has(name string) bool { return s.bound[name] }
func (s *scope) bind(name string)     { s.bound[name] = true }

// Plan lowers a full query (including any UNION branches) into one root
// operator per branch, combined left-to-right with plan.Union nodes.
func Plan(q *ast.Query) (plan.Op, *PlanError) {
	root, err := planBranch(q.Clauses)
	if err != nil {
		return nil, err
	}
	for _, branch := range q.Union {
		right, err := planBranch(branch.Query.Clauses)
		if err != nil {
			return nil, err
		}
		root = &plan.Union{Left: root, Right: right, All: branch.All}
	}
	return root, nil
}

func planBranch(clauses []ast.Clause) (plan.Op, *PlanError) {
	s := newScope()
	var op plan.Op
	for _, c := range clauses {
		var err *PlanError
		op, err = planClause(op, s, c)
		if err != nil {
			return nil, err
		}
	}
	if op == nil {
		return nil, errf("planner: empty query")
	}
	return op, nil
}

func planClause(input plan.Op, s *scope, c ast.Clause) (plan.Op, *PlanError) {
	switch cl := c.(type) {
	case *ast.MatchClause:
		return planMatch(input, s, cl)
	case *ast.UnwindClause:
		s.bind(cl.Var)
		return &plan.Unwind{Unary: plan.Unary{Input: input}, ListExpr: cl.Expr, Var: cl.Var}, nil
	case *ast.WithClause:
		return planProjection(input, s, cl.Items, cl.Distinct, cl.Where, cl.OrderBy, cl.Skip, cl.Limit, true)
	case *ast.ReturnClause:
		return planProjection(input, s, cl.Items, cl.Distinct, nil, cl.OrderBy, cl.Skip, cl.Limit, false)
	case *ast.CreateClause:
		bindPattern(s, cl.Pattern)
		return &plan.Create{Unary: plan.Unary{Input: input}, Pattern: cl.Pattern}, nil
	case *ast.MergeClause:
		bindPatternPath(s, cl.Pattern)
		return &plan.Merge{Unary: plan.Unary{Input: input}, Pattern: cl.Pattern, OnCreate: cl.OnCreate, OnMatch: cl.OnMatch}, nil
	case *ast.SetClause:
		return &plan.Set{Unary: plan.Unary{Input: input}, Items: cl.Items}, nil
	case *ast.RemoveClause:
		return &plan.Remove{Unary: plan.Unary{Input: input}, Items: cl.Items}, nil
	case *ast.DeleteClause:
		return &plan.Delete{Unary: plan.Unary{Input: input}, Targets: cl.Variables, Detach: cl.Detach}, nil
	}
	return nil, errf("planner: unsupported clause %T", c)
}

// --- MATCH ---

func planMatch(input plan.Op, s *scope, m *ast.MatchClause) (plan.Op, *PlanError) {
	op := input
	for _, path := range m.Pattern.Paths {
		var err *PlanError
		op, err = planPath(op, s, path, m.Optional)
		if err != nil {
			return nil, err
		}
	}
	if m.Where != nil {
		op = &plan.Filter{Unary: plan.Unary{Input: op}, Predicate: m.Where}
	}
	return op, nil
}

// planPath expands one comma-separated path pattern onto op, scanning the
// head node if it is not already bound, then walking each relationship/node
// pair in order.
func planPath(op plan.Op, s *scope, path ast.PatternPath, optional bool) (plan.Op, *PlanError) {
	head := path.Nodes[0]
	if !s.has(head.Variable) {
		op = attachScan(op, s, head, optional)
	} else if pred := nodeFilterPredicate(head); pred != nil {
		op = &plan.Filter{Unary: plan.Unary{Input: op}, Predicate: pred}
	}

	for i, rel := range path.Edges {
		to := path.Nodes[i+1]
		op = attachExpand(op, s, head.Variable, rel, to, optional)
		head = to
	}

	if path.PathVar != "" {
		s.bind(path.PathVar)
		// The path variable is only recorded in scope here. No operator
		// materializes a path value for a MATCH pattern, so the variable is
		// not bound in the rows the executor produces; only CREATE and
		// MERGE's create branch bind path variables (via createPath).
	}
	return op, nil
}

func attachScan(op plan.Op, s *scope, n ast.NodePattern, optional bool) plan.Op {
	s.bind(n.Variable)
	var scan plan.Op
	if optional {
		scan = &plan.OptionalScanNodes{Variable: n.Variable, Labels: n.Labels}
	} else {
		scan = &plan.ScanNodes{Variable: n.Variable, Labels: n.Labels}
	}
	chained := chainOp(op, scan)
	if pred := nodeFilterPredicate(n); pred != nil {
		chained = &plan.Filter{Unary: plan.Unary{Input: chained}, Predicate: pred}
	}
	return chained
}

// chainOp combines a prior pipeline (e.g. a previous comma-separated
// pattern in the same MATCH) with a fresh leaf scan. The first pattern in a
// clause has no prior op and becomes the chain outright; later disjoint
// patterns become a CrossJoin, which the optimizer's join-reordering
// rewrite (and, for patterns that do share a variable, filter pushdown) may
// later turn into a more selective ordering.
func chainOp(prior, fresh plan.Op) plan.Op {
	if prior == nil {
		return fresh
	}
	return &plan.CrossJoin{Left: prior, Right: fresh}
}

func attachExpand(op plan.Op, s *scope, from string, rel ast.RelationshipPattern, to ast.NodePattern, optional bool) plan.Op {
	s.bind(rel.Variable)
	var expanded plan.Op
	switch {
	case rel.IsVariableLength():
		min := 1
		if rel.MinHops != nil {
			min = *rel.MinHops
		}
		expanded = &plan.ExpandVariableLength{
			Unary: plan.Unary{Input: op}, From: from, ToVar: to.Variable,
			ToLabels: to.Labels, Types: rel.Types, Direction: rel.Direction,
			MinHops: min, MaxHops: rel.MaxHops,
		}
	case optional:
		expanded = &plan.OptionalExpandEdges{
			Unary: plan.Unary{Input: op}, From: from, EdgeVar: rel.Variable, ToVar: to.Variable,
			ToLabels: to.Labels, Types: rel.Types, Direction: rel.Direction,
		}
	default:
		expanded = &plan.ExpandEdges{
			Unary: plan.Unary{Input: op}, From: from, EdgeVar: rel.Variable, ToVar: to.Variable,
			ToLabels: to.Labels, Types: rel.Types, Direction: rel.Direction,
		}
	}
	s.bind(to.Variable)
	if pred := relFilterPredicate(rel); pred != nil {
		expanded = &plan.Filter{Unary: plan.Unary{Input: expanded}, Predicate: pred}
	}
	if pred := nodeFilterPredicate(to); pred != nil {
		expanded = &plan.Filter{Unary: plan.Unary{Input: expanded}, Predicate: pred}
	}
	return expanded
}

func nodeFilterPredicate(n ast.NodePattern) ast.Expression {
	pred := propsPredicate(n.Variable, n.Properties)
	if n.Predicate != nil {
		pred = andExpr(pred, n.Predicate)
	}
	return pred
}

func relFilterPredicate(r ast.RelationshipPattern) ast.Expression {
	pred := propsPredicate(r.Variable, r.Properties)
	if r.Predicate != nil {
		pred = andExpr(pred, r.Predicate)
	}
	return pred
}

func propsPredicate(variable string, props map[string]ast.Expression) ast.Expression {
	var pred ast.Expression
	for k, v := range props {
		eq := &ast.BinaryOp{Op: "=", Left: &ast.PropertyAccess{Target: &ast.Variable{Name: variable}, Property: k}, Right: v}
		pred = andExpr(pred, eq)
	}
	return pred
}

func andExpr(a, b ast.Expression) ast.Expression {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return &ast.BinaryOp{Op: "AND", Left: a, Right: b}
}

func bindPattern(s *scope, p ast.Pattern) {
	for _, path := range p.Paths {
		bindPatternPath(s, path)
	}
}

func bindPatternPath(s *scope, p ast.PatternPath) {
	for _, n := range p.Nodes {
		s.bind(n.Variable)
	}
	for _, e := range p.Edges {
		s.bind(e.Variable)
	}
	if p.PathVar != "" {
		s.bind(p.PathVar)
	}
}

// --- WITH / RETURN ---

func planProjection(
	input plan.Op, s *scope,
	items []ast.ProjectionItem, distinct bool, where ast.Expression,
	orderBy []ast.OrderItem, skip, limit ast.Expression, isWith bool,
) (plan.Op, *PlanError) {
	op := input
	finalItems := items
	if !(len(items) == 1 && items[0].Star) {
		needsAggregate := false
		for _, it := range items {
			if containsAggregate(it.Expr) {
				needsAggregate = true
				break
			}
		}
		if needsAggregate {
			groupKeys, aggs, rewritten := buildAggregate(items)
			op = &plan.Aggregate{Unary: plan.Unary{Input: op}, GroupKeys: groupKeys, Aggregates: aggs}
			finalItems = rewritten
		}
	}

	projItems, err := resolveProjectionItems(s, finalItems)
	if err != nil {
		return nil, err
	}

	passthrough := len(items) == 1 && items[0].Star
	if isWith {
		op = &plan.With{Unary: plan.Unary{Input: op}, Items: projItems, Distinct: distinct}
	} else {
		op = &plan.Project{Unary: plan.Unary{Input: op}, Items: projItems, Passthrough: passthrough, Distinct: distinct}
	}

	if isWith && where != nil {
		op = &plan.Filter{Unary: plan.Unary{Input: op}, Predicate: where}
	}
	if len(orderBy) > 0 {
		keys := make([]plan.SortKey, len(orderBy))
		for i, o := range orderBy {
			keys[i] = plan.SortKey{Expr: o.Expr, Descending: o.Descending}
		}
		op = &plan.Sort{Unary: plan.Unary{Input: op}, Keys: keys}
	}
	if skip != nil {
		op = &plan.Skip{Unary: plan.Unary{Input: op}, Count: skip}
	}
	if limit != nil {
		op = &plan.Limit{Unary: plan.Unary{Input: op}, Count: limit}
	}
	return op, nil
}

// CompilePattern lowers a single pattern path into a plan fragment seeded
// with boundVars already considered bound, for use outside a MATCH clause:
// pattern predicates (`WHERE (a)-->(b)`), pattern comprehensions, and the
// pattern half of an expression-level EXISTS/COUNT subquery all need to
// compile a pattern correlated against the row the outer expression is
// evaluating, without re-scanning variables the outer query already bound.
//
// A returned fragment may bottom out with a nil Input on its leaf operator
// (when the pattern's head node is already in boundVars, so there is
// nothing left to scan) — the executor's compiler treats a nil Input as
// "start from the seed row" rather than "no rows", exactly as it does for a
// top-level query's first clause.
func CompilePattern(path ast.PatternPath, boundVars map[string]bool) (plan.Op, *PlanError) {
	s := newScope()
	for v := range boundVars {
		s.bind(v)
	}
	return planPath(nil, s, path, false)
}

func resolveProjectionItems(s *scope, items []ast.ProjectionItem) ([]plan.ProjectItem, *PlanError) {
	if len(items) == 1 && items[0].Star {
		return []plan.ProjectItem{{Alias: "*"}}, nil
	}
	out := make([]plan.ProjectItem, 0, len(items))
	for _, it := range items {
		out = append(out, plan.ProjectItem{Expr: it.Expr, Alias: it.Alias})
		s.bind(it.Alias)
	}
	return out, nil
}
