// Package plan defines GraphForge's logical operator pipeline: the tagged-
// variant IR the planner builds from an ast.Query and the optimizer
// rewrites before the executor pulls rows through it. Like pkg/ast, each
// operator is its own Go struct implementing a marker interface rather than
// a generic node with a string tag, so a missing case in a type switch is a
// compile error, not a runtime surprise.
package plan

import "github.com/graphforge/graphforge/pkg/ast"

// Op is the marker interface every logical operator implements.
type Op interface {
	opNode()
	// Children returns this operator's inputs, outermost-first. Leaf
	// operators (ScanNodes, Unwind with no prior pipe, ...) return nil.
	Children() []Op
}

// Unary embeds a single child pipeline; most operators have exactly one.
type Unary struct {
	Input Op
}

func (u Unary) Children() []Op {
	if u.Input == nil {
		return nil
	}
	return []Op{u.Input}
}

// ScanNodes yields every node matching Labels (nil/empty = all nodes),
// bound to Variable. It is the leaf of a fresh pattern.
type ScanNodes struct {
	Variable string
	Labels   ast.LabelDNF
	// Predicate is an optional conjunct the filter-pushdown rewrite has
	// attached to this scan (spec.md §4.3.3); nil until pushdown runs. The
	// executor applies it to each candidate row before yielding it, exactly
	// as if a Filter sat immediately downstream.
	Predicate ast.Expression
}

func (*ScanNodes) opNode()          {}
func (*ScanNodes) Children() []Op   { return nil }

// OptionalScanNodes is ScanNodes under OPTIONAL MATCH with no prior bound
// variable in the pattern: it still yields one row per existing node, but
// the surrounding clause is executed with optional (outer-join) semantics
// by virtue of being wrapped in an Optional-aware operator upstream.
type OptionalScanNodes struct {
	Variable string
	Labels   ast.LabelDNF
}

func (*OptionalScanNodes) opNode()        {}
func (*OptionalScanNodes) Children() []Op { return nil }

// ExpandEdges expands, for every input row's From binding, the set of edges
// matching Types/Direction, binding EdgeVar and ToVar. Rows with no matching
// edge are dropped (inner join semantics).
type ExpandEdges struct {
	Unary
	From      string
	EdgeVar   string
	ToVar     string
	ToLabels  ast.LabelDNF
	Types     []string
	Direction ast.Direction
	// Predicate is an optional pushed-down conjunct (spec.md §4.3.3),
	// evaluated against EdgeVar/ToVar (and any earlier-bound variable) as
	// each candidate edge is produced.
	Predicate ast.Expression
}

func (*ExpandEdges) opNode() {}

// OptionalExpandEdges is ExpandEdges with outer-join semantics: an input row
// with no matching edge still passes through once, with EdgeVar/ToVar bound
// to NULL, per spec.md's OPTIONAL MATCH contract.
type OptionalExpandEdges struct {
	Unary
	From      string
	EdgeVar   string
	ToVar     string
	ToLabels  ast.LabelDNF
	Types     []string
	Direction ast.Direction
}

func (*OptionalExpandEdges) opNode() {}

// ExpandVariableLength walks MinHops..MaxHops (MaxHops nil = unbounded)
// simple paths (no repeated edge) from From, binding PathVar (may be "" if
// the pattern has no path variable) and ToVar. Direction/Types restrict
// which edges extend the walk at each step.
type ExpandVariableLength struct {
	Unary
	From      string
	ToVar     string
	PathVar   string
	ToLabels  ast.LabelDNF
	Types     []string
	Direction ast.Direction
	MinHops   int
	MaxHops   *int
	// Predicate is an optional pushed-down conjunct evaluated against the
	// destination binding (and ToVar/PathVar) at each reached depth.
	Predicate ast.Expression
}

func (*ExpandVariableLength) opNode() {}

// ExpandMultiHop is a planner/optimizer convenience: two or more fixed-hop
// ExpandEdges steps fused into a single operator so the executor can share
// intermediate edge lookups instead of materializing every intermediate
// binding set. Steps are applied in order, each consuming the previous
// step's ToVar as its From.
type ExpandMultiHop struct {
	Unary
	Steps []HopStep
	// Predicate is an optional pushed-down conjunct evaluated once the
	// final step's ToVar is bound.
	Predicate ast.Expression
}

// HopStep is one leg of an ExpandMultiHop.
type HopStep struct {
	From      string
	EdgeVar   string
	ToVar     string
	ToLabels  ast.LabelDNF
	Types     []string
	Direction ast.Direction
}

func (*ExpandMultiHop) opNode() {}

// CrossJoin pairs every row of Left with every row of Right: the planner
// emits this for comma-separated pattern components (`MATCH (a), (b)`) that
// share no variable, and the optimizer's join-reordering rewrite is free to
// interleave it with other pattern-introducing operators in its segment.
type CrossJoin struct {
	Left, Right Op
}

func (*CrossJoin) opNode() {}
func (c *CrossJoin) Children() []Op { return []Op{c.Left, c.Right} }

// Filter drops rows where Predicate does not evaluate to Tri true.
type Filter struct {
	Unary
	Predicate ast.Expression
}

func (*Filter) opNode() {}

// Project computes a new row shape from Items, replacing the binding set.
// Passthrough is true for RETURN */WITH * (no computation, just a pipeline
// boundary marker).
type Project struct {
	Unary
	Items       []ProjectItem
	Passthrough bool
	// Distinct dedups the projected rows by full-row value equality (RETURN
	// DISTINCT), using the same NULL-equals-NULL rule as grouping.
	Distinct bool
}

// ProjectItem is one computed output column.
type ProjectItem struct {
	Expr  ast.Expression
	Alias string
}

func (*Project) opNode() {}

// Sort orders rows by Keys, stably, NULL ordered per spec.md §4.5.1.
type Sort struct {
	Unary
	Keys []SortKey
}

type SortKey struct {
	Expr       ast.Expression
	Descending bool
}

func (*Sort) opNode() {}

// Skip discards the first Count rows (Count may be a parameter/expression
// resolved at execution time against the empty/outer binding).
type Skip struct {
	Unary
	Count ast.Expression
}

func (*Skip) opNode() {}

// Limit caps the number of rows pulled from Input.
type Limit struct {
	Unary
	Count ast.Expression
}

func (*Limit) opNode() {}

// Aggregate groups by GroupKeys and computes Aggregates per group. An empty
// GroupKeys with an empty input still yields exactly one row per spec.md's
// empty-input aggregate rule (count() and sum() 0, collect() an empty list,
// stDev/stDevP 0, the others NULL).
type Aggregate struct {
	Unary
	GroupKeys  []ProjectItem
	Aggregates []AggregateItem
}

type AggregateItem struct {
	Func string // "count", "sum", "avg", "min", "max", "collect", ...
	Arg  ast.Expression // nil for count(*)
	// Extra holds any arguments after the first — only percentileCont/Disc's
	// percentile fraction uses this.
	Extra    []ast.Expression
	Distinct bool
	Alias    string
}

func (*Aggregate) opNode() {}

// With is a pipeline boundary: everything upstream is fully materialized
// and pruned to the WITH items' bindings before continuing, matching
// spec.md §3.1's WITH semantics (variables not re-listed go out of scope).
type With struct {
	Unary
	Items    []ProjectItem
	Distinct bool
}

func (*With) opNode() {}

// Unwind expands ListExpr into one row per element, binding Var; an empty
// or NULL list yields zero rows.
type Unwind struct {
	Unary
	ListExpr ast.Expression
	Var      string
}

func (*Unwind) opNode() {}

// Union combines two branch pipelines. All=false dedups by row equality
// across the combined stream.
type Union struct {
	Left, Right Op
	All         bool
}

func (*Union) opNode() {}
func (u *Union) Children() []Op {
	return []Op{u.Left, u.Right}
}

// Subquery evaluates Inner once per outer row (with the outer binding
// visible to Inner), producing a scalar result bound to ResultVar: boolean
// existence for EXISTS, an integer count for COUNT. A reusable
// SubqueryExecutor (pkg/executor) drives Inner rather than the engine
// re-entering its own public API, per spec.md's Non-goals on recursive
// query re-entry.
type Subquery struct {
	Unary
	Kind      string // "EXISTS" or "COUNT"
	Inner     Op
	ResultVar string
}

func (*Subquery) opNode() {}

// Create instantiates new nodes/edges from Pattern for every input row
// (once, with an implicit single empty row, if Input is nil).
type Create struct {
	Unary
	Pattern ast.Pattern
}

func (*Create) opNode() {}

// Merge matches Pattern against the current graph for every input row;
// on no match it creates the pattern and runs OnCreate, otherwise it runs
// OnMatch against the matched bindings.
type Merge struct {
	Unary
	Pattern  ast.PatternPath
	OnCreate []ast.SetItem
	OnMatch  []ast.SetItem
}

func (*Merge) opNode() {}

// Set applies property/label mutations to already-bound entities.
type Set struct {
	Unary
	Items []ast.SetItem
}

func (*Set) opNode() {}

// Remove removes properties or labels from already-bound entities.
type Remove struct {
	Unary
	Items []ast.RemoveItem
}

func (*Remove) opNode() {}

// Delete removes bound nodes/edges. Detach also removes a node's incident
// edges; without it, deleting a node with remaining edges is an error.
type Delete struct {
	Unary
	Targets []ast.Expression
	Detach  bool
}

func (*Delete) opNode() {}
