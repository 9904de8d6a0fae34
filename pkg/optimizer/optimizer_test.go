package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/graphforge/pkg/ast"
	"github.com/graphforge/graphforge/pkg/plan"
)

func eq(v string) *ast.BinaryOp {
	return &ast.BinaryOp{Op: "=", Left: &ast.PropertyAccess{Target: &ast.Variable{Name: "n"}, Property: "x"}, Right: &ast.Literal{Value: v}}
}

func TestPushdownAttachesToScan(t *testing.T) {
	scan := &plan.ScanNodes{Variable: "n", Labels: ast.LabelDNF{{"Person"}}}
	filter := &plan.Filter{Unary: plan.Unary{Input: scan}, Predicate: eq("a")}

	out := pushdownFilters(filter)

	s, ok := out.(*plan.ScanNodes)
	require.True(t, ok, "filter fully absorbed into the scan it sits over")
	require.NotNil(t, s.Predicate)
}

func TestPushdownStopsAtOptional(t *testing.T) {
	scan := &plan.OptionalScanNodes{Variable: "n"}
	filter := &plan.Filter{Unary: plan.Unary{Input: scan}, Predicate: eq("a")}

	out := pushdownFilters(filter)

	f, ok := out.(*plan.Filter)
	require.True(t, ok, "predicate must not be pushed into an optional scan")
	assert.NotNil(t, f.Predicate)
}

func TestPushdownSplitsConjunctsIndependently(t *testing.T) {
	scan := &plan.ScanNodes{Variable: "n"}
	expand := &plan.ExpandEdges{Unary: plan.Unary{Input: scan}, From: "n", EdgeVar: "r", ToVar: "m"}
	mPred := &ast.BinaryOp{Op: "=", Left: &ast.Variable{Name: "m"}, Right: &ast.Literal{Value: 1}}
	combined := &ast.BinaryOp{Op: "AND", Left: eq("a"), Right: mPred}
	filter := &plan.Filter{Unary: plan.Unary{Input: expand}, Predicate: combined}

	out := pushdownFilters(filter)

	e, ok := out.(*plan.ExpandEdges)
	require.True(t, ok, "both conjuncts push down, leaving no Filter operator")
	require.NotNil(t, e.Predicate)
	s, ok := e.Input.(*plan.ScanNodes)
	require.True(t, ok)
	require.Nil(t, s.Predicate, "the n.x=a conjunct attaches to the nearest predicate-bearing operator that binds n, the expand, not the scan below it")
}

func TestSelectivityTable(t *testing.T) {
	assert.Equal(t, 0.1, selectivity(&ast.BinaryOp{Op: "="}))
	assert.Equal(t, 0.5, selectivity(&ast.BinaryOp{Op: "<"}))
	assert.Equal(t, 0.9, selectivity(&ast.BinaryOp{Op: "<>"}))
	and := &ast.BinaryOp{Op: "AND", Left: &ast.BinaryOp{Op: "="}, Right: &ast.BinaryOp{Op: "<>"}}
	assert.Equal(t, 0.1, selectivity(and))
	or := &ast.BinaryOp{Op: "OR", Left: &ast.BinaryOp{Op: "="}, Right: &ast.BinaryOp{Op: "<>"}}
	assert.Equal(t, 0.9, selectivity(or))
}

func TestReorderPredicatesSortsBySelectivity(t *testing.T) {
	costly := &ast.BinaryOp{Op: "<>"} // selectivity 0.9, least discriminating
	cheap := &ast.BinaryOp{Op: "="}   // selectivity 0.1, most discriminating
	scan := &plan.ScanNodes{Variable: "n", Predicate: &ast.BinaryOp{Op: "AND", Left: costly, Right: cheap}}

	out := reorderPredicates(scan).(*plan.ScanNodes)

	top := out.Predicate.(*ast.BinaryOp)
	assert.Same(t, cheap, top.Left, "more selective conjunct sorts first")
}

func TestJoinReorderingMinimizesIntermediateCardinality(t *testing.T) {
	stats := Statistics{
		TotalNodes:        1000,
		NodeCountsByLabel: map[string]int64{"Rare": 2, "Mid": 50, "Common": 998},
	}
	rare := &plan.ScanNodes{Variable: "a", Labels: ast.LabelDNF{{"Rare"}}}
	mid := &plan.ScanNodes{Variable: "b", Labels: ast.LabelDNF{{"Mid"}}}
	common := &plan.ScanNodes{Variable: "c", Labels: ast.LabelDNF{{"Common"}}}
	// Left-deep chain in the worst order: the most expensive pairwise
	// intermediate (common x mid) is built first.
	worst := &plan.CrossJoin{Left: &plan.CrossJoin{Left: common, Right: mid}, Right: rare}
	baseline := planCost(worst, stats)

	out := reorderJoins(worst, stats, 100)

	assert.Less(t, planCost(out, stats), baseline, "reordering must not increase total plan cost")
	top := out.(*plan.CrossJoin)
	// The two smallest components end up paired together in the innermost
	// join, leaving the largest (Common) for the outermost step.
	inner := top.Left.(*plan.CrossJoin)
	innerVars := []string{inner.Left.(*plan.ScanNodes).Variable, inner.Right.(*plan.ScanNodes).Variable}
	assert.ElementsMatch(t, []string{"a", "b"}, innerVars, "the two cheapest scans are joined first")
	assert.Equal(t, "c", top.Right.(*plan.ScanNodes).Variable, "the most expensive scan is joined last")
}

func TestJoinReorderingSkipsMutatingSegments(t *testing.T) {
	scan := &plan.ScanNodes{Variable: "a"}
	create := &plan.Create{Unary: plan.Unary{Input: nil}}
	cross := &plan.CrossJoin{Left: scan, Right: create}

	out := reorderJoins(cross, Statistics{}, 100).(*plan.CrossJoin)

	assert.Same(t, scan, out.Left, "order is left untouched when a component contains a mutation")
}

func TestOptimizeEndToEnd(t *testing.T) {
	scan := &plan.ScanNodes{Variable: "n", Labels: ast.LabelDNF{{"Person"}}}
	filter := &plan.Filter{Unary: plan.Unary{Input: scan}, Predicate: eq("a")}
	proj := &plan.Project{Unary: plan.Unary{Input: filter}, Items: []plan.ProjectItem{{Expr: &ast.Variable{Name: "n"}, Alias: "n"}}}

	out := Optimize(proj, Statistics{TotalNodes: 10}, DefaultOptions())

	p, ok := out.(*plan.Project)
	require.True(t, ok)
	s, ok := p.Input.(*plan.ScanNodes)
	require.True(t, ok, "filter pushdown removes the standalone Filter node")
	assert.NotNil(t, s.Predicate)
}
