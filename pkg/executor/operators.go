package executor

import (
	"context"
	"sort"
	"strings"

	"github.com/graphforge/graphforge/pkg/ast"
	"github.com/graphforge/graphforge/pkg/functions"
	"github.com/graphforge/graphforge/pkg/plan"
	"github.com/graphforge/graphforge/pkg/pool"
	"github.com/graphforge/graphforge/pkg/store"
	"github.com/graphforge/graphforge/pkg/value"
)

// passesPredicate evaluates an optional pushed-down conjunct, treating a nil
// predicate as always-pass; only a strict Tri true lets a row through, so an
// Unknown (NULL) result is filtered out exactly like WHERE's top-level rule.
func passesPredicate(pred ast.Expression, row Binding, ec *execCtx) (bool, error) {
	if pred == nil {
		return true, nil
	}
	t, err := evalTri(pred, row, ec)
	if err != nil {
		return false, err
	}
	return t == value.True, nil
}

// matchesLabelDNF reports whether n satisfies dnf; an empty DNF (no label
// restriction on the pattern) always matches.
func matchesLabelDNF(n *value.NodeRef, dnf ast.LabelDNF) bool {
	if len(dnf) == 0 {
		return true
	}
	for _, conj := range dnf {
		all := true
		for _, lbl := range conj {
			if !n.HasLabel(lbl) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// candidateNodes picks the cheapest available scan source for dnf: a single
// top-level label disjunct can be served straight from the label index, with
// matchesLabelDNF still applied downstream to cover any additional
// conjoined labels; anything broader falls back to a full scan.
func candidateNodes(txn store.Txn, dnf ast.LabelDNF) ([]*value.NodeRef, error) {
	if len(dnf) == 1 && len(dnf[0]) > 0 {
		return txn.NodesByLabel(dnf[0][0])
	}
	return txn.AllNodes()
}

func edgesForDirection(txn store.Txn, node value.NodeID, types []string, dir ast.Direction) ([]*value.EdgeRef, error) {
	switch dir {
	case ast.DirOut:
		return txn.OutgoingEdges(node, types)
	case ast.DirIn:
		return txn.IncomingEdges(node, types)
	default:
		out, err := txn.OutgoingEdges(node, types)
		if err != nil {
			return nil, err
		}
		in, err := txn.IncomingEdges(node, types)
		if err != nil {
			return nil, err
		}
		return append(append([]*value.EdgeRef{}, out...), in...), nil
	}
}

// drainCtx pulls every remaining row from it, honoring ctx cancellation
// between pulls the way Run does for the top-level driver.
func drainCtx(ctx context.Context, it Iterator) ([]Binding, error) {
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

// lazyRows materializes it on the first Next call (optionally running
// compute over the full row set, e.g. to sort or group it) and streams the
// result afterward. Every operator that needs every upstream row before it
// can produce its first output row — Sort, Aggregate, DISTINCT, WITH's
// pipeline-boundary materialization, UNION's dedup — is built on this.
func lazyRows(it Iterator, compute func([]Binding) ([]Binding, error)) Iterator {
	var rows []Binding
	idx := 0
	started := false
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			if !started {
				started = true
				all, err := drainCtx(ctx, it)
				if err != nil {
					return Binding{}, err
				}
				if compute != nil {
					all, err = compute(all)
					if err != nil {
						return Binding{}, err
					}
				}
				rows = all
			}
			if idx >= len(rows) {
				return Binding{}, ErrDone
			}
			row := rows[idx]
			idx++
			return row, nil
		},
		close: it.Close,
	}
}

func distinctWrap(it Iterator) Iterator {
	return lazyRows(it, func(rows []Binding) ([]Binding, error) {
		var out []Binding
		for _, r := range rows {
			dup := false
			for _, s := range out {
				if s.Equal(r) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, r)
			}
		}
		return out, nil
	})
}

// --- leaf scans ---

func compileScanNodes(o *plan.ScanNodes, seed Binding, ec *execCtx) (Iterator, error) {
	nodes, err := candidateNodes(ec.txn, o.Labels)
	if err != nil {
		return nil, errf("scan %s: %s", o.Variable, err.Error())
	}
	idx := 0
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			for idx < len(nodes) {
				n := nodes[idx]
				idx++
				if !matchesLabelDNF(n, o.Labels) {
					continue
				}
				row := seed.With(o.Variable, value.NodeOf(n))
				ok, err := passesPredicate(o.Predicate, row, ec)
				if err != nil {
					return Binding{}, err
				}
				if ok {
					return row, nil
				}
			}
			return Binding{}, ErrDone
		},
	}, nil
}

// compileOptionalScanNodes yields one row per matching node, or — the
// outer-join fallback for a fresh OPTIONAL MATCH head — exactly one row with
// Variable bound to NULL when nothing matches, so a CrossJoin pairing this
// leaf with a prior pipeline never drops the prior rows for lack of a match.
func compileOptionalScanNodes(o *plan.OptionalScanNodes, seed Binding, ec *execCtx) (Iterator, error) {
	nodes, err := candidateNodes(ec.txn, o.Labels)
	if err != nil {
		return nil, errf("scan %s: %s", o.Variable, err.Error())
	}
	var matched []*value.NodeRef
	for _, n := range nodes {
		if matchesLabelDNF(n, o.Labels) {
			matched = append(matched, n)
		}
	}
	idx := 0
	yieldedNull := false
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			if len(matched) == 0 {
				if yieldedNull {
					return Binding{}, ErrDone
				}
				yieldedNull = true
				return seed.With(o.Variable, value.Null), nil
			}
			if idx >= len(matched) {
				return Binding{}, ErrDone
			}
			n := matched[idx]
			idx++
			return seed.With(o.Variable, value.NodeOf(n)), nil
		},
	}, nil
}

// --- expansion ---

func compileExpandEdges(o *plan.ExpandEdges, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	var curEdges []*value.EdgeRef
	var curRow Binding
	idx := 0
	advance := func(ctx context.Context) error {
		row, err := input.Next(ctx)
		if err != nil {
			return err
		}
		from := row.MustGet(o.From)
		var edges []*value.EdgeRef
		if !from.IsNull() {
			edges, err = edgesForDirection(ec.txn, from.Node().ID, o.Types, o.Direction)
			if err != nil {
				return err
			}
		}
		curEdges, curRow, idx = edges, row, 0
		return nil
	}
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			for {
				for idx < len(curEdges) {
					e := curEdges[idx]
					idx++
					toID := e.Other(curRow.MustGet(o.From).Node().ID)
					toNode, ok, err := ec.txn.GetNode(toID)
					if err != nil {
						return Binding{}, err
					}
					if !ok || !matchesLabelDNF(toNode, o.ToLabels) {
						continue
					}
					outRow := curRow.With(o.EdgeVar, value.EdgeOf(e)).With(o.ToVar, value.NodeOf(toNode))
					ok2, err := passesPredicate(o.Predicate, outRow, ec)
					if err != nil {
						return Binding{}, err
					}
					if ok2 {
						return outRow, nil
					}
				}
				if err := advance(ctx); err != nil {
					if err == ErrDone {
						return Binding{}, ErrDone
					}
					return Binding{}, err
				}
			}
		},
		close: input.Close,
	}, nil
}

// compileOptionalExpandEdges passes every input row through at least once:
// with a bound EdgeVar/ToVar per matching edge, or once with both NULL if
// none match, per OPTIONAL MATCH's outer-join contract.
func compileOptionalExpandEdges(o *plan.OptionalExpandEdges, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	var curEdges []*value.EdgeRef
	var curRow Binding
	idx := 0
	haveRow := false
	yielded := false
	advance := func(ctx context.Context) error {
		row, err := input.Next(ctx)
		if err != nil {
			return err
		}
		from := row.MustGet(o.From)
		var edges []*value.EdgeRef
		if !from.IsNull() {
			edges, err = edgesForDirection(ec.txn, from.Node().ID, o.Types, o.Direction)
			if err != nil {
				return err
			}
		}
		curEdges, curRow, idx, haveRow, yielded = edges, row, 0, true, false
		return nil
	}
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			for {
				if haveRow {
					for idx < len(curEdges) {
						e := curEdges[idx]
						idx++
						toID := e.Other(curRow.MustGet(o.From).Node().ID)
						toNode, ok, err := ec.txn.GetNode(toID)
						if err != nil {
							return Binding{}, err
						}
						if !ok || !matchesLabelDNF(toNode, o.ToLabels) {
							continue
						}
						yielded = true
						return curRow.With(o.EdgeVar, value.EdgeOf(e)).With(o.ToVar, value.NodeOf(toNode)), nil
					}
					if !yielded {
						yielded = true
						return curRow.With(o.EdgeVar, value.Null).With(o.ToVar, value.Null), nil
					}
					haveRow = false
				}
				if err := advance(ctx); err != nil {
					if err == ErrDone {
						return Binding{}, ErrDone
					}
					return Binding{}, err
				}
			}
		},
		close: input.Close,
	}, nil
}

type hopPath struct {
	nodes []*value.NodeRef
	edges []*value.EdgeRef
}

// expandVariableLengthPaths enumerates every simple path (no repeated edge)
// from fromNode whose length falls in [minHops, maxHops] (maxHops nil =
// unbounded, relying on edge-uniqueness for termination).
func expandVariableLengthPaths(txn store.Txn, fromNode *value.NodeRef, types []string, dir ast.Direction, minHops int, maxHops *int) ([]hopPath, error) {
	var results []hopPath
	max := -1
	if maxHops != nil {
		max = *maxHops
	}
	used := map[value.EdgeID]bool{}
	cur := hopPath{nodes: []*value.NodeRef{fromNode}}

	var walk func(depth int) error
	walk = func(depth int) error {
		if depth >= minHops {
			results = append(results, hopPath{
				nodes: append([]*value.NodeRef{}, cur.nodes...),
				edges: append([]*value.EdgeRef{}, cur.edges...),
			})
		}
		if max >= 0 && depth >= max {
			return nil
		}
		tail := cur.nodes[len(cur.nodes)-1]
		edges, err := edgesForDirection(txn, tail.ID, types, dir)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if used[e.ID] {
				continue
			}
			nextID := e.Other(tail.ID)
			nextNode, ok, err := txn.GetNode(nextID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			used[e.ID] = true
			cur.nodes = append(cur.nodes, nextNode)
			cur.edges = append(cur.edges, e)
			if err := walk(depth + 1); err != nil {
				return err
			}
			cur.nodes = cur.nodes[:len(cur.nodes)-1]
			cur.edges = cur.edges[:len(cur.edges)-1]
			delete(used, e.ID)
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}
	return results, nil
}

func compileExpandVariableLength(o *plan.ExpandVariableLength, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	return lazyRows(input, func(in []Binding) ([]Binding, error) {
		var out []Binding
		for _, row := range in {
			from := row.MustGet(o.From)
			if from.IsNull() {
				continue
			}
			paths, err := expandVariableLengthPaths(ec.txn, from.Node(), o.Types, o.Direction, o.MinHops, o.MaxHops)
			if err != nil {
				return nil, err
			}
			for _, p := range paths {
				toNode := p.nodes[len(p.nodes)-1]
				if !matchesLabelDNF(toNode, o.ToLabels) {
					continue
				}
				outRow := row.With(o.ToVar, value.NodeOf(toNode))
				if o.PathVar != "" {
					pr, perr := value.NewPath(p.nodes, p.edges)
					if perr != nil {
						return nil, errf("%s", perr.Error())
					}
					outRow = outRow.With(o.PathVar, value.PathOf(pr))
				}
				ok, err := passesPredicate(o.Predicate, outRow, ec)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, outRow)
				}
			}
		}
		return out, nil
	}), nil
}

func expandHops(ec *execCtx, row Binding, steps []plan.HopStep, i int) ([]Binding, error) {
	if i >= len(steps) {
		return []Binding{row}, nil
	}
	step := steps[i]
	from := row.MustGet(step.From)
	if from.IsNull() {
		return nil, nil
	}
	edges, err := edgesForDirection(ec.txn, from.Node().ID, step.Types, step.Direction)
	if err != nil {
		return nil, err
	}
	var out []Binding
	for _, e := range edges {
		toID := e.Other(from.Node().ID)
		toNode, ok, err := ec.txn.GetNode(toID)
		if err != nil {
			return nil, err
		}
		if !ok || !matchesLabelDNF(toNode, step.ToLabels) {
			continue
		}
		next := row.With(step.EdgeVar, value.EdgeOf(e)).With(step.ToVar, value.NodeOf(toNode))
		rest, err := expandHops(ec, next, steps, i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, rest...)
	}
	return out, nil
}

func compileExpandMultiHop(o *plan.ExpandMultiHop, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	return lazyRows(input, func(in []Binding) ([]Binding, error) {
		var out []Binding
		for _, row := range in {
			expanded, err := expandHops(ec, row, o.Steps, 0)
			if err != nil {
				return nil, err
			}
			for _, r := range expanded {
				ok, err := passesPredicate(o.Predicate, r, ec)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, r)
				}
			}
		}
		return out, nil
	}), nil
}

// compileCrossJoin recompiles Right against each Left row in turn, so a
// Right leaf that merges seed into its rows (ScanNodes, OptionalScanNodes)
// correlates correctly with a comma-separated pattern's earlier components.
func compileCrossJoin(o *plan.CrossJoin, seed Binding, ec *execCtx) (Iterator, error) {
	leftIt, err := compile(o.Left, seed, ec)
	if err != nil {
		return nil, err
	}
	var rightIt Iterator
	haveLeft := false
	advance := func(ctx context.Context) error {
		row, err := leftIt.Next(ctx)
		if err != nil {
			return err
		}
		if rightIt != nil {
			rightIt.Close()
		}
		it, err := compile(o.Right, row, ec)
		if err != nil {
			return err
		}
		rightIt, haveLeft = it, true
		return nil
	}
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			for {
				if haveLeft {
					r, err := rightIt.Next(ctx)
					if err == nil {
						return r, nil
					}
					if err != ErrDone {
						return Binding{}, err
					}
					haveLeft = false
				}
				if err := advance(ctx); err != nil {
					if err == ErrDone {
						return Binding{}, ErrDone
					}
					return Binding{}, err
				}
			}
		},
		close: func() error {
			leftIt.Close()
			if rightIt != nil {
				rightIt.Close()
			}
			return nil
		},
	}, nil
}

func compileFilter(o *plan.Filter, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			for {
				row, err := input.Next(ctx)
				if err != nil {
					return Binding{}, err
				}
				ok, err := passesPredicate(o.Predicate, row, ec)
				if err != nil {
					return Binding{}, err
				}
				if ok {
					return row, nil
				}
			}
		},
		close: input.Close,
	}, nil
}

func compileProject(o *plan.Project, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	base := &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			row, err := input.Next(ctx)
			if err != nil {
				return Binding{}, err
			}
			if o.Passthrough {
				return row, nil
			}
			out := Empty
			for _, item := range o.Items {
				v, err := evaluate(item.Expr, row, ec)
				if err != nil {
					return Binding{}, err
				}
				out = out.With(item.Alias, v)
			}
			return out, nil
		},
		close: input.Close,
	}
	if !o.Distinct {
		return base, nil
	}
	return distinctWrap(base), nil
}

func compileSort(o *plan.Sort, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	return lazyRows(input, func(rows []Binding) ([]Binding, error) {
		type keyedRow struct {
			row  Binding
			keys []value.Value
		}
		ks := make([]keyedRow, len(rows))
		for i, r := range rows {
			keys := make([]value.Value, len(o.Keys))
			for j, k := range o.Keys {
				v, err := evaluate(k.Expr, r, ec)
				if err != nil {
					return nil, err
				}
				keys[j] = v
			}
			ks[i] = keyedRow{row: r, keys: keys}
		}
		sort.SliceStable(ks, func(a, b int) bool {
			for i, k := range o.Keys {
				c := value.SortKey(ks[a].keys[i], ks[b].keys[i], !k.Descending)
				if c != 0 {
					return c < 0
				}
			}
			return false
		})
		out := make([]Binding, len(ks))
		for i, kk := range ks {
			out[i] = kk.row
		}
		return out, nil
	}), nil
}

// evalCount resolves a SKIP/LIMIT count expression against seed (it never
// depends on the row stream), clamping a negative result to zero.
func evalCount(expr ast.Expression, seed Binding, ec *execCtx) (int, error) {
	v, err := evaluate(expr, seed, ec)
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return 0, nil
	}
	if v.Kind() != value.KindInt {
		return 0, errf("type mismatch: SKIP/LIMIT requires an integer, got %s", v.Kind())
	}
	n := v.Int()
	if n < 0 {
		n = 0
	}
	return int(n), nil
}

func compileSkip(o *plan.Skip, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	n, err := evalCount(o.Count, seed, ec)
	if err != nil {
		return nil, err
	}
	skipped := 0
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			for skipped < n {
				if _, err := input.Next(ctx); err != nil {
					return Binding{}, err
				}
				skipped++
			}
			return input.Next(ctx)
		},
		close: input.Close,
	}, nil
}

func compileLimit(o *plan.Limit, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	n, err := evalCount(o.Count, seed, ec)
	if err != nil {
		return nil, err
	}
	count := 0
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			if count >= n {
				return Binding{}, ErrDone
			}
			row, err := input.Next(ctx)
			if err != nil {
				return Binding{}, err
			}
			count++
			return row, nil
		},
		close: input.Close,
	}, nil
}

type aggGroup struct {
	keys []value.Value
	accs []functions.Accumulator
}

func findAggGroup(groups []*aggGroup, keys []value.Value) *aggGroup {
	for _, g := range groups {
		if len(g.keys) != len(keys) {
			continue
		}
		match := true
		for i := range keys {
			if !value.EqualsStrict(g.keys[i], keys[i]) {
				match = false
				break
			}
		}
		if match {
			return g
		}
	}
	return nil
}

func newAggGroup(keys []value.Value, items []plan.AggregateItem) (*aggGroup, error) {
	g := &aggGroup{keys: keys}
	for _, a := range items {
		acc, err := functions.NewAccumulator(a.Func, a.Distinct)
		if err != nil {
			return nil, errf("%s", err.Error())
		}
		g.accs = append(g.accs, acc)
	}
	return g, nil
}

// compileAggregate groups the fully materialized input by GroupKeys and
// folds Aggregates per group, applying spec.md's empty-input rule: zero
// input rows with no GroupKeys still yields one row (each aggregate's
// empty-group result: count() and sum() 0, collect() an empty list,
// stDev/stDevP 0, the others NULL); zero input rows with GroupKeys yields zero rows,
// since there is nothing to group.
func compileAggregate(o *plan.Aggregate, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	return lazyRows(input, func(rows []Binding) ([]Binding, error) {
		var groups []*aggGroup
		if len(rows) == 0 {
			if len(o.GroupKeys) > 0 {
				return nil, nil
			}
			g, err := newAggGroup(nil, o.Aggregates)
			if err != nil {
				return nil, err
			}
			groups = append(groups, g)
		}
		for _, row := range rows {
			keys := make([]value.Value, len(o.GroupKeys))
			for i, gk := range o.GroupKeys {
				v, err := evaluate(gk.Expr, row, ec)
				if err != nil {
					return nil, err
				}
				keys[i] = v
			}
			g := findAggGroup(groups, keys)
			if g == nil {
				g, err = newAggGroup(keys, o.Aggregates)
				if err != nil {
					return nil, err
				}
				groups = append(groups, g)
			}
			for i, a := range o.Aggregates {
				if a.Func == "count" && a.Arg == nil {
					g.accs[i].Accumulate(value.Bool(true))
					continue
				}
				v, err := evaluate(a.Arg, row, ec)
				if err != nil {
					return nil, err
				}
				if a.Func == "count" && v.IsNull() {
					continue
				}
				g.accs[i].Accumulate(v)
				if len(a.Extra) > 0 && (a.Func == "percentilecont" || a.Func == "percentiledisc") {
					pv, err := evaluate(a.Extra[0], row, ec)
					if err != nil {
						return nil, err
					}
					if !pv.IsNull() {
						functions.SetPercentile(g.accs[i], pv.AsFloat64())
					}
				}
			}
		}
		out := make([]Binding, 0, len(groups))
		for _, g := range groups {
			row := Empty
			for i, gk := range o.GroupKeys {
				row = row.With(gk.Alias, g.keys[i])
			}
			for i, a := range o.Aggregates {
				res, err := g.accs[i].Result()
				if err != nil {
					return nil, errf("%s: %s", a.Func, err.Error())
				}
				row = row.With(a.Alias, res)
			}
			out = append(out, row)
		}
		return out, nil
	}), nil
}

// compileWith always materializes its input first — the pipeline-boundary
// semantics spec.md §3.1 requires — then re-scopes to exactly Items.
func compileWith(o *plan.With, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	materialized := lazyRows(input, nil)
	project := &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			row, err := materialized.Next(ctx)
			if err != nil {
				return Binding{}, err
			}
			if len(o.Items) == 1 && o.Items[0].Expr == nil && o.Items[0].Alias == "*" {
				return row, nil
			}
			out := Empty
			for _, item := range o.Items {
				v, err := evaluate(item.Expr, row, ec)
				if err != nil {
					return Binding{}, err
				}
				out = out.With(item.Alias, v)
			}
			return out, nil
		},
		close: materialized.Close,
	}
	if !o.Distinct {
		return project, nil
	}
	return distinctWrap(project), nil
}

func compileUnwind(o *plan.Unwind, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	var items []value.Value
	var curRow Binding
	idx := 0
	haveRow := false
	advance := func(ctx context.Context) error {
		row, err := input.Next(ctx)
		if err != nil {
			return err
		}
		v, err := evaluate(o.ListExpr, row, ec)
		if err != nil {
			return err
		}
		switch {
		case v.IsNull():
			items = nil
		case v.Kind() == value.KindList:
			items = v.List()
		default:
			return errf("type mismatch: UNWIND requires a list, got %s", v.Kind())
		}
		curRow, idx, haveRow = row, 0, true
		return nil
	}
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			for {
				if haveRow {
					if idx < len(items) {
						v := items[idx]
						idx++
						return curRow.With(o.Var, v), nil
					}
					haveRow = false
				}
				if err := advance(ctx); err != nil {
					if err == ErrDone {
						return Binding{}, ErrDone
					}
					return Binding{}, err
				}
			}
		},
		close: input.Close,
	}, nil
}

func compileUnion(o *plan.Union, seed Binding, ec *execCtx) (Iterator, error) {
	left, err := compile(o.Left, seed, ec)
	if err != nil {
		return nil, err
	}
	right, err := compile(o.Right, seed, ec)
	if err != nil {
		return nil, err
	}
	onLeft := true
	combined := &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			if onLeft {
				row, err := left.Next(ctx)
				if err == nil {
					return row, nil
				}
				if err != ErrDone {
					return Binding{}, err
				}
				onLeft = false
			}
			return right.Next(ctx)
		},
		close: func() error {
			left.Close()
			right.Close()
			return nil
		},
	}
	if o.All {
		return combined, nil
	}
	return distinctWrap(combined), nil
}

// compileSubquery runs Inner once per outer row, correlated against it via
// seed, binding ResultVar to a boolean (EXISTS, short-circuiting on the
// first inner row) or an integer count (COUNT, draining Inner fully).
func compileSubquery(o *plan.Subquery, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	exists := strings.EqualFold(o.Kind, "EXISTS")
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			row, err := input.Next(ctx)
			if err != nil {
				return Binding{}, err
			}
			innerIt, err := compile(o.Inner, row, ec)
			if err != nil {
				return Binding{}, err
			}
			count := 0
			for {
				_, err := innerIt.Next(ctx)
				if err == ErrDone {
					break
				}
				if err != nil {
					innerIt.Close()
					return Binding{}, err
				}
				count++
				if exists {
					break
				}
			}
			innerIt.Close()
			if exists {
				return row.With(o.ResultVar, value.Bool(count > 0)), nil
			}
			return row.With(o.ResultVar, value.Int(int64(count))), nil
		},
		close: input.Close,
	}, nil
}

// --- mutations ---

// flattenLabels returns a pool-borrowed slice; callers must release it with
// pool.PutStringSlice once they're done with it (CreateNode clones its
// labels argument, so the slice is safe to recycle right after that call).
func flattenLabels(dnf ast.LabelDNF) []string {
	out := pool.GetStringSlice()
	seen := map[string]bool{}
	for _, conj := range dnf {
		for _, l := range conj {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

func evalPropMap(row Binding, props map[string]ast.Expression, ec *execCtx) (*value.OrderedMap, error) {
	m := value.NewOrderedMap()
	for k, expr := range props {
		v, err := evaluate(expr, row, ec)
		if err != nil {
			return nil, err
		}
		m.Set(k, v)
	}
	return m, nil
}

func createNode(row Binding, np ast.NodePattern, ec *execCtx) (*value.NodeRef, error) {
	props, err := evalPropMap(row, np.Properties, ec)
	if err != nil {
		return nil, err
	}
	labels := flattenLabels(np.Labels)
	defer pool.PutStringSlice(labels)
	return ec.txn.CreateNode(labels, props)
}

// createPath instantiates path's nodes/edges against the store, reusing any
// node variable already bound in row (CREATE attaching a new relationship to
// an existing, previously matched node) and creating the rest fresh.
func createPath(row Binding, path ast.PatternPath, ec *execCtx) (Binding, error) {
	nodeRefs := make([]*value.NodeRef, len(path.Nodes))
	for i, np := range path.Nodes {
		if np.Variable != "" {
			if existing, ok := row.Get(np.Variable); ok && !existing.IsNull() {
				nodeRefs[i] = existing.Node()
				continue
			}
		}
		n, err := createNode(row, np, ec)
		if err != nil {
			return row, err
		}
		nodeRefs[i] = n
		if np.Variable != "" {
			row = row.With(np.Variable, value.NodeOf(n))
		}
	}
	edgeRefs := make([]*value.EdgeRef, len(path.Edges))
	for i, rp := range path.Edges {
		from, to := nodeRefs[i], nodeRefs[i+1]
		start, end := from.ID, to.ID
		if rp.Direction == ast.DirIn {
			start, end = end, start
		}
		props, err := evalPropMap(row, rp.Properties, ec)
		if err != nil {
			return row, err
		}
		edgeType := ""
		if len(rp.Types) > 0 {
			edgeType = rp.Types[0]
		}
		e, err := ec.txn.CreateEdge(edgeType, start, end, props)
		if err != nil {
			return row, err
		}
		edgeRefs[i] = e
		if rp.Variable != "" {
			row = row.With(rp.Variable, value.EdgeOf(e))
		}
	}
	if path.PathVar != "" {
		pr, err := value.NewPath(nodeRefs, edgeRefs)
		if err != nil {
			return row, errf("%s", err.Error())
		}
		row = row.With(path.PathVar, value.PathOf(pr))
	}
	return row, nil
}

func compileCreate(o *plan.Create, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			row, err := input.Next(ctx)
			if err != nil {
				return Binding{}, err
			}
			out := row
			for _, path := range o.Pattern.Paths {
				out, err = createPath(out, path, ec)
				if err != nil {
					return Binding{}, err
				}
			}
			return out, nil
		},
		close: input.Close,
	}, nil
}

func setSingleProperty(target value.Value, key string, v value.Value, ec *execCtx) error {
	switch target.Kind() {
	case value.KindNode:
		n := target.Node()
		if v.IsNull() {
			if err := ec.txn.RemoveNodeProperty(n.ID, key); err != nil {
				return err
			}
			n.Properties.Delete(key)
			return nil
		}
		merged := n.Properties.Clone()
		merged.Set(key, v)
		if err := ec.txn.SetNodeProperties(n.ID, merged); err != nil {
			return err
		}
		n.Properties = merged
		return nil
	case value.KindEdge:
		e := target.Edge()
		if v.IsNull() {
			if err := ec.txn.RemoveEdgeProperty(e.ID, key); err != nil {
				return err
			}
			e.Properties.Delete(key)
			return nil
		}
		merged := e.Properties.Clone()
		merged.Set(key, v)
		if err := ec.txn.SetEdgeProperties(e.ID, merged); err != nil {
			return err
		}
		e.Properties = merged
		return nil
	default:
		return errf("type mismatch: cannot SET a property on %s", target.Kind())
	}
}

func replaceProperties(target value.Value, m *value.OrderedMap, merge bool, ec *execCtx) error {
	switch target.Kind() {
	case value.KindNode:
		n := target.Node()
		final := m.Clone()
		if merge {
			final = n.Properties.Clone()
			for _, k := range m.Keys() {
				v, _ := m.Get(k)
				final.Set(k, v)
			}
		}
		if err := ec.txn.SetNodeProperties(n.ID, final); err != nil {
			return err
		}
		n.Properties = final
		return nil
	case value.KindEdge:
		e := target.Edge()
		final := m.Clone()
		if merge {
			final = e.Properties.Clone()
			for _, k := range m.Keys() {
				v, _ := m.Get(k)
				final.Set(k, v)
			}
		}
		if err := ec.txn.SetEdgeProperties(e.ID, final); err != nil {
			return err
		}
		e.Properties = final
		return nil
	default:
		return errf("type mismatch: cannot SET properties on %s", target.Kind())
	}
}

func applySetItems(row *Binding, items []ast.SetItem, ec *execCtx) error {
	for _, item := range items {
		target, ok := row.Get(item.Variable)
		if !ok || target.IsNull() {
			continue
		}
		switch {
		case item.Label != "":
			if target.Kind() != value.KindNode {
				return errf("type mismatch: cannot SET a label on %s", target.Kind())
			}
			if err := ec.txn.AddNodeLabel(target.Node().ID, item.Label); err != nil {
				return err
			}
			n := target.Node()
			if !n.HasLabel(item.Label) {
				n.Labels = append(n.Labels, item.Label)
			}
		case item.Property != "":
			v, err := evaluate(item.Value, *row, ec)
			if err != nil {
				return err
			}
			if err := setSingleProperty(target, item.Property, v, ec); err != nil {
				return err
			}
		default:
			v, err := evaluate(item.Value, *row, ec)
			if err != nil {
				return err
			}
			if v.IsNull() {
				continue
			}
			if v.Kind() != value.KindMap {
				return errf("type mismatch: SET %s = ... requires a map", item.Variable)
			}
			if err := replaceProperties(target, v.Map(), item.Merge, ec); err != nil {
				return err
			}
		}
		*row = row.With(item.Variable, target)
	}
	return nil
}

func compileSet(o *plan.Set, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			row, err := input.Next(ctx)
			if err != nil {
				return Binding{}, err
			}
			if err := applySetItems(&row, o.Items, ec); err != nil {
				return Binding{}, err
			}
			return row, nil
		},
		close: input.Close,
	}, nil
}

func removeSingleProperty(target value.Value, key string, ec *execCtx) error {
	switch target.Kind() {
	case value.KindNode:
		n := target.Node()
		if err := ec.txn.RemoveNodeProperty(n.ID, key); err != nil {
			return err
		}
		n.Properties.Delete(key)
		return nil
	case value.KindEdge:
		e := target.Edge()
		if err := ec.txn.RemoveEdgeProperty(e.ID, key); err != nil {
			return err
		}
		e.Properties.Delete(key)
		return nil
	default:
		return errf("type mismatch: cannot REMOVE a property from %s", target.Kind())
	}
}

func compileRemove(o *plan.Remove, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			row, err := input.Next(ctx)
			if err != nil {
				return Binding{}, err
			}
			for _, item := range o.Items {
				target, ok := row.Get(item.Variable)
				if !ok || target.IsNull() {
					continue
				}
				switch {
				case item.Label != "":
					if target.Kind() != value.KindNode {
						return Binding{}, errf("type mismatch: cannot REMOVE a label from %s", target.Kind())
					}
					n := target.Node()
					if err := ec.txn.RemoveNodeLabel(n.ID, item.Label); err != nil {
						return Binding{}, err
					}
					filtered := n.Labels[:0]
					for _, l := range n.Labels {
						if l != item.Label {
							filtered = append(filtered, l)
						}
					}
					n.Labels = filtered
				case item.Property != "":
					if err := removeSingleProperty(target, item.Property, ec); err != nil {
						return Binding{}, err
					}
				}
				row = row.With(item.Variable, target)
			}
			return row, nil
		},
		close: input.Close,
	}, nil
}

// compileMerge matches Pattern against the current row's bound variables,
// scanning every candidate; each match gets OnMatch applied and is emitted
// as its own row. With no match it creates the pattern and applies OnCreate. NULL never equals NULL in the match predicate (the
// planner folds pattern property equality down to ordinary `=` comparisons),
// so a MERGE with a NULL-valued property reliably falls through to create.
func compileMerge(o *plan.Merge, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	var pending []Binding
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			if len(pending) > 0 {
				next := pending[0]
				pending = pending[1:]
				return next, nil
			}
			row, err := input.Next(ctx)
			if err != nil {
				return Binding{}, err
			}
			matchIt, merr := compilePatternFragment(o.Pattern, row, ec)
			if merr != nil {
				return Binding{}, merr
			}
			matches, nerr := drainCtx(ctx, matchIt)
			matchIt.Close()
			if nerr != nil {
				return Binding{}, nerr
			}
			if len(matches) > 0 {
				for i := range matches {
					if err := applySetItems(&matches[i], o.OnMatch, ec); err != nil {
						return Binding{}, err
					}
				}
				pending = matches[1:]
				return matches[0], nil
			}
			created, err := createPath(row, o.Pattern, ec)
			if err != nil {
				return Binding{}, err
			}
			if err := applySetItems(&created, o.OnCreate, ec); err != nil {
				return Binding{}, err
			}
			return created, nil
		},
		close: input.Close,
	}, nil
}

func compileDelete(o *plan.Delete, seed Binding, ec *execCtx) (Iterator, error) {
	input, err := compile(o.Input, seed, ec)
	if err != nil {
		return nil, err
	}
	return &funcIter{
		next: func(ctx context.Context) (Binding, error) {
			row, err := input.Next(ctx)
			if err != nil {
				return Binding{}, err
			}
			for _, target := range o.Targets {
				v, err := evaluate(target, row, ec)
				if err != nil {
					return Binding{}, err
				}
				if v.IsNull() {
					continue
				}
				if err := deleteValue(v, o.Detach, ec); err != nil {
					return Binding{}, err
				}
			}
			return row, nil
		},
		close: input.Close,
	}, nil
}

func deleteValue(v value.Value, detach bool, ec *execCtx) error {
	switch v.Kind() {
	case value.KindNode:
		return ec.txn.DeleteNode(v.Node().ID, detach)
	case value.KindEdge:
		return ec.txn.DeleteEdge(v.Edge().ID)
	case value.KindPath:
		p := v.Path()
		for _, e := range p.Edges {
			if err := ec.txn.DeleteEdge(e.ID); err != nil {
				return err
			}
		}
		for _, n := range p.Nodes {
			if err := ec.txn.DeleteNode(n.ID, detach); err != nil {
				return err
			}
		}
		return nil
	default:
		return errf("type mismatch: cannot DELETE a %s", v.Kind())
	}
}
