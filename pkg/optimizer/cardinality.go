package optimizer

import (
	"github.com/graphforge/graphforge/pkg/ast"
	"github.com/graphforge/graphforge/pkg/plan"
)

// selectivity estimates P(predicate holds) per spec.md §4.3.2's fixed
// heuristic table. It never inspects actual data — the whole point of a
// heuristic selectivity model is to avoid that cost at plan time.
func selectivity(pred ast.Expression) float64 {
	switch e := pred.(type) {
	case *ast.BinaryOp:
		switch e.Op {
		case "=":
			return 0.1
		case "<", ">", "<=", ">=":
			return 0.5
		case "<>":
			return 0.9
		case "AND":
			return minF(selectivity(e.Left), selectivity(e.Right))
		case "OR":
			return maxF(selectivity(e.Left), selectivity(e.Right))
		default:
			return 0.5
		}
	case *ast.UnaryOp:
		switch e.Op {
		case "IS NULL":
			return 0.1
		case "IS NOT NULL":
			return 0.9
		default:
			return 0.5
		}
	default:
		return 0.5
	}
}

// conjuncts flattens a binary-AND tree into its leaf conjuncts, preserving
// left-to-right operand order (required by the predicate-reordering
// rewrite, which must leave operand order within a conjunct untouched).
func conjuncts(pred ast.Expression) []ast.Expression {
	bin, ok := pred.(*ast.BinaryOp)
	if !ok || bin.Op != "AND" {
		return []ast.Expression{pred}
	}
	return append(conjuncts(bin.Left), conjuncts(bin.Right)...)
}

// andAll rebuilds a left-associative AND chain from conjuncts, the inverse
// of conjuncts.
func andAll(parts []ast.Expression) ast.Expression {
	if len(parts) == 0 {
		return nil
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out = &ast.BinaryOp{Op: "AND", Left: out, Right: p}
	}
	return out
}

// labelCardinality estimates row count for a ScanNodes-style label DNF
// filter per spec.md §4.3.2: sum over disjuncts of the min count over each
// disjunct's conjunction of labels; an empty DNF (no label requirement)
// scans every node.
func labelCardinality(labels ast.LabelDNF, stats Statistics) float64 {
	if len(labels) == 0 {
		return float64(stats.TotalNodes)
	}
	var total float64
	for _, conj := range labels {
		if len(conj) == 0 {
			continue
		}
		min := stats.SelectivityForLabel(conj[0]) * float64(stats.TotalNodes)
		for _, l := range conj[1:] {
			c := stats.SelectivityForLabel(l) * float64(stats.TotalNodes)
			if c < min {
				min = c
			}
		}
		total += min
	}
	return total
}

// edgeFanout estimates the average number of edges an ExpandEdges-style
// step produces per input row, summing avg_degree over the listed types
// (spec.md §4.3.2); an empty type list falls back to the graph-wide average
// degree.
func edgeFanout(types []string, stats Statistics) float64 {
	if len(types) == 0 {
		if stats.TotalNodes == 0 {
			return 1
		}
		return float64(stats.TotalEdges) / float64(stats.TotalNodes)
	}
	var sum float64
	for _, t := range types {
		sum += stats.AvgDegreeForType(t)
	}
	return sum
}

// cardinality estimates the row count op produces, per spec.md §4.3.2.
func cardinality(op plan.Op, stats Statistics) float64 {
	switch o := op.(type) {
	case *plan.ScanNodes:
		return labelCardinality(o.Labels, stats)
	case *plan.OptionalScanNodes:
		return labelCardinality(o.Labels, stats)
	case *plan.ExpandEdges:
		return cardinality(o.Input, stats) * edgeFanout(o.Types, stats)
	case *plan.OptionalExpandEdges:
		in := cardinality(o.Input, stats)
		return in * maxF(edgeFanout(o.Types, stats), 1)
	case *plan.ExpandVariableLength:
		hops := float64(o.MinHops + 1)
		if o.MaxHops != nil {
			hops = float64(*o.MaxHops)
		}
		return cardinality(o.Input, stats) * edgeFanout(o.Types, stats) * hops
	case *plan.ExpandMultiHop:
		c := cardinality(o.Input, stats)
		for _, step := range o.Steps {
			c *= edgeFanout(step.Types, stats)
		}
		return c
	case *plan.CrossJoin:
		return cardinality(o.Left, stats) * maxF(cardinality(o.Right, stats), 1)
	case *plan.Filter:
		return cardinality(o.Input, stats) * selectivity(o.Predicate)
	case *plan.Unwind:
		return cardinality(o.Input, stats) * 4 // no static list-length estimate; assume a small constant fan-out
	default:
		if len(op.Children()) == 1 {
			return cardinality(op.Children()[0], stats)
		}
		return 1
	}
}

// planCost is the sum of per-operator cardinalities across the whole tree,
// i.e. total rows processed — spec.md §4.3.2's plan cost. A scan with no
// preceding operator binding one of its variables (a disjoint pattern
// component, materialized as a CrossJoin) is charged by multiplying its own
// cardinality against the running cardinality up to that point, which is
// exactly what the CrossJoin case above already does by construction.
func planCost(op plan.Op, stats Statistics) float64 {
	if op == nil {
		return 0
	}
	total := cardinality(op, stats)
	for _, c := range op.Children() {
		total += planCost(c, stats)
	}
	return total
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
