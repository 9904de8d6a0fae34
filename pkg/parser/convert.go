package parser

import (
	"strings"

	"github.com/graphforge/graphforge/pkg/ast"
)

// converter lowers one parsed CST into pkg/ast, tracking per-query state
// (currently just the anonymous-variable counter) so concurrent Parse calls
// never share mutable state. Every convertX method mirrors one production in
// grammar.go/patterns.go/expr_grammar.go; keeping the split 1:1 with the
// grammar files makes it easy to check a given clause's shape and its
// conversion side by side.
type converter struct {
	anon int
}

// nextAnonVar assigns a stable, source-unreachable name to pattern elements
// with no bound variable, as spec.md §4.2 requires so the planner can still
// address them as columns. The leading space keeps it out of the namespace
// any legal Cypher identifier could occupy.
func (c *converter) nextAnonVar() string {
	c.anon++
	return " anon" + itoa(c.anon)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

func convertGrammar(g *GrammarAST) (*ast.Query, *ParseError) {
	c := &converter{}
	return c.convertQuery(g.Query)
}

func (c *converter) convertQuery(q *QueryAST) (*ast.Query, *ParseError) {
	clauses, err := c.convertClauses(q.Clauses)
	if err != nil {
		return nil, err
	}
	query := &ast.Query{Clauses: clauses}
	for _, u := range q.Unions {
		branchClauses, err := c.convertClauses(u.Clauses)
		if err != nil {
			return nil, err
		}
		query.Union = append(query.Union, ast.UnionBranch{
			Query: &ast.Query{Clauses: branchClauses},
			All:   u.All,
		})
	}
	return query, nil
}

func (c *converter) convertClauses(cs []*ClauseAST) ([]ast.Clause, *ParseError) {
	out := make([]ast.Clause, 0, len(cs))
	for _, cl := range cs {
		clause, err := c.convertClause(cl)
		if err != nil {
			return nil, err
		}
		out = append(out, clause)
	}
	return out, nil
}

func (c *converter) convertClause(cl *ClauseAST) (ast.Clause, *ParseError) {
	switch {
	case cl.Match != nil:
		return c.convertMatch(cl.Match)
	case cl.Unwind != nil:
		return c.convertUnwind(cl.Unwind)
	case cl.With != nil:
		return c.convertWith(cl.With)
	case cl.Return != nil:
		return c.convertReturn(cl.Return)
	case cl.Merge != nil:
		return c.convertMerge(cl.Merge)
	case cl.Create != nil:
		return c.convertCreate(cl.Create)
	case cl.Set != nil:
		return c.convertSet(cl.Set)
	case cl.Remove != nil:
		return c.convertRemove(cl.Remove)
	case cl.Delete != nil:
		return c.convertDelete(cl.Delete)
	}
	return nil, newParseError(0, 0, "empty clause")
}

// --- MATCH / UNWIND ---

func (c *converter) convertMatch(m *MatchAST) (ast.Clause, *ParseError) {
	pattern, err := c.convertPattern(m.Pattern)
	if err != nil {
		return nil, err
	}
	where, err := c.convertExprOpt(m.Where)
	if err != nil {
		return nil, err
	}
	return &ast.MatchClause{Optional: m.Optional, Pattern: pattern, Where: where}, nil
}

func (c *converter) convertUnwind(u *UnwindAST) (ast.Clause, *ParseError) {
	expr, err := c.convertExpr(u.Expr)
	if err != nil {
		return nil, err
	}
	return &ast.UnwindClause{Expr: expr, Var: u.Var}, nil
}

// --- WITH / RETURN ---

func (c *converter) convertWith(w *WithAST) (ast.Clause, *ParseError) {
	items, err := c.convertProjectionList(w.Items)
	if err != nil {
		return nil, err
	}
	where, err := c.convertExprOpt(w.Where)
	if err != nil {
		return nil, err
	}
	order, err := c.convertOrderBy(w.Order)
	if err != nil {
		return nil, err
	}
	skip, err := c.convertExprOpt(w.Skip)
	if err != nil {
		return nil, err
	}
	limit, err := c.convertExprOpt(w.Limit)
	if err != nil {
		return nil, err
	}
	return &ast.WithClause{
		Distinct: w.Distinct,
		Items:    items,
		Where:    where,
		OrderBy:  order,
		Skip:     skip,
		Limit:    limit,
	}, nil
}

func (c *converter) convertReturn(r *ReturnAST) (ast.Clause, *ParseError) {
	items, err := c.convertProjectionList(r.Items)
	if err != nil {
		return nil, err
	}
	order, err := c.convertOrderBy(r.Order)
	if err != nil {
		return nil, err
	}
	skip, err := c.convertExprOpt(r.Skip)
	if err != nil {
		return nil, err
	}
	limit, err := c.convertExprOpt(r.Limit)
	if err != nil {
		return nil, err
	}
	return &ast.ReturnClause{
		Distinct: r.Distinct,
		Items:    items,
		OrderBy:  order,
		Skip:     skip,
		Limit:    limit,
	}, nil
}

func (c *converter) convertProjectionList(p *ProjectionListAST) ([]ast.ProjectionItem, *ParseError) {
	if p == nil {
		return nil, nil
	}
	if p.Star {
		return []ast.ProjectionItem{{Star: true}}, nil
	}
	out := make([]ast.ProjectionItem, 0, len(p.Items))
	for _, it := range p.Items {
		expr, err := c.convertExpr(it.Expr)
		if err != nil {
			return nil, err
		}
		alias := it.Alias
		if alias == "" {
			if v, ok := expr.(*ast.Variable); ok {
				alias = v.Name
			}
		}
		out = append(out, ast.ProjectionItem{Expr: expr, Alias: alias})
	}
	return out, nil
}

func (c *converter) convertOrderBy(o *OrderByAST) ([]ast.OrderItem, *ParseError) {
	if o == nil {
		return nil, nil
	}
	out := make([]ast.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		expr, err := c.convertExpr(it.Expr.Expr)
		if err != nil {
			return nil, err
		}
		out = append(out, ast.OrderItem{Expr: expr, Descending: it.Expr.Desc})
	}
	return out, nil
}

// --- CREATE / MERGE / SET / REMOVE / DELETE ---

func (c *converter) convertCreate(cr *CreateAST) (ast.Clause, *ParseError) {
	pattern, err := c.convertPattern(cr.Pattern)
	if err != nil {
		return nil, err
	}
	return &ast.CreateClause{Pattern: pattern}, nil
}

func (c *converter) convertMerge(m *MergeAST) (ast.Clause, *ParseError) {
	path, err := c.convertPathPattern(m.Pattern)
	if err != nil {
		return nil, err
	}
	onCreate, err := c.convertSetItems(m.OnCreate)
	if err != nil {
		return nil, err
	}
	onMatch, err := c.convertSetItems(m.OnMatch)
	if err != nil {
		return nil, err
	}
	return &ast.MergeClause{Pattern: path, OnCreate: onCreate, OnMatch: onMatch}, nil
}

func (c *converter) convertSet(s *SetAST) (ast.Clause, *ParseError) {
	items, err := c.convertSetItems(s.Items)
	if err != nil {
		return nil, err
	}
	return &ast.SetClause{Items: items}, nil
}

// convertSetItems expands each SetItemAST into one or more ast.SetItem —
// `var:A:B` fans out into two label-assignment items so the executor never
// has to special-case a multi-label SET.
func (c *converter) convertSetItems(items []*SetItemAST) ([]ast.SetItem, *ParseError) {
	out := make([]ast.SetItem, 0, len(items))
	for _, it := range items {
		switch {
		case it.Prop != nil:
			val, err := c.convertExpr(it.Prop.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, ast.SetItem{Variable: it.Variable, Property: it.Prop.Property, Value: val, Merge: it.Prop.Merge})
		case it.Whole != nil:
			val, err := c.convertExpr(it.Whole.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, ast.SetItem{Variable: it.Variable, Value: val, Merge: it.Whole.Merge})
		case it.Label != nil:
			for _, l := range it.Label.Labels {
				out = append(out, ast.SetItem{Variable: it.Variable, Label: l})
			}
		default:
			return nil, newParseError(0, 0, "empty SET item")
		}
	}
	return out, nil
}

func (c *converter) convertRemove(r *RemoveAST) (ast.Clause, *ParseError) {
	out := make([]ast.RemoveItem, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, ast.RemoveItem{Variable: it.Variable, Property: it.Property, Label: it.Label})
	}
	return &ast.RemoveClause{Items: out}, nil
}

func (c *converter) convertDelete(d *DeleteAST) (ast.Clause, *ParseError) {
	vars := make([]ast.Expression, 0, len(d.Vars))
	for _, v := range d.Vars {
		expr, err := c.convertExpr(v)
		if err != nil {
			return nil, err
		}
		vars = append(vars, expr)
	}
	return &ast.DeleteClause{Variables: vars, Detach: d.Detach}, nil
}

// --- patterns ---

func (c *converter) convertPattern(p *PatternAST) (ast.Pattern, *ParseError) {
	out := ast.Pattern{Paths: make([]ast.PatternPath, 0, len(p.Paths))}
	for _, path := range p.Paths {
		converted, err := c.convertPathPattern(path)
		if err != nil {
			return ast.Pattern{}, err
		}
		out.Paths = append(out.Paths, converted)
	}
	return out, nil
}

func (c *converter) convertPathPattern(p *PathPatternAST) (ast.PatternPath, *ParseError) {
	head, err := c.convertNodePattern(p.Head)
	if err != nil {
		return ast.PatternPath{}, err
	}
	nodes := []ast.NodePattern{head}
	edges := make([]ast.RelationshipPattern, 0, len(p.Tail))
	for _, tail := range p.Tail {
		rel, err := c.convertRelPattern(tail.Rel)
		if err != nil {
			return ast.PatternPath{}, err
		}
		node, err := c.convertNodePattern(tail.Node)
		if err != nil {
			return ast.PatternPath{}, err
		}
		edges = append(edges, rel)
		nodes = append(nodes, node)
	}
	return ast.PatternPath{Nodes: nodes, Edges: edges, PathVar: p.PathVar}, nil
}

func (c *converter) convertNodePattern(n *NodePatternAST) (ast.NodePattern, *ParseError) {
	props, err := c.convertMapLiteralAsExprs(n.Props)
	if err != nil {
		return ast.NodePattern{}, err
	}
	pred, err := c.convertExprOpt(n.Where)
	if err != nil {
		return ast.NodePattern{}, err
	}
	var dnf ast.LabelDNF
	if len(n.Labels) > 0 {
		dnf = ast.LabelDNF{append([]string(nil), n.Labels...)}
	}
	variable := n.Variable
	if variable == "" {
		variable = c.nextAnonVar()
	}
	return ast.NodePattern{Variable: variable, Labels: dnf, Properties: props, Predicate: pred}, nil
}

func (c *converter) convertRelPattern(r *RelPatternAST) (ast.RelationshipPattern, *ParseError) {
	dir := ast.DirUndirected
	switch {
	case r.LeftArrow && r.RightArrow:
		return ast.RelationshipPattern{}, newParseError(0, 0, "relationship cannot point both directions")
	case r.LeftArrow:
		dir = ast.DirIn
	case r.RightArrow:
		dir = ast.DirOut
	}
	if r.Detail == nil {
		return ast.RelationshipPattern{Variable: c.nextAnonVar(), Direction: dir}, nil
	}
	d := r.Detail
	props, err := c.convertMapLiteralAsExprs(d.Props)
	if err != nil {
		return ast.RelationshipPattern{}, err
	}
	pred, err := c.convertExprOpt(d.Where)
	if err != nil {
		return ast.RelationshipPattern{}, err
	}
	variable := d.Variable
	if variable == "" {
		variable = c.nextAnonVar()
	}
	rel := ast.RelationshipPattern{
		Variable:   variable,
		Types:      append([]string(nil), d.Types...),
		Direction:  dir,
		Properties: props,
		Predicate:  pred,
	}
	if d.VarLength != nil {
		rel.MinHops, rel.MaxHops = convertVarLength(d.VarLength)
	}
	return rel, nil
}

// convertVarLength turns `*`, `*3`, `*3..5`, `*..5`, `*3..` into (min, max).
// A bare `*` has min==max==nil meaning 1..unbounded (spec.md §3.3).
func convertVarLength(v *VarLengthAST) (min, max *int) {
	if v.Range == nil {
		if v.Min != nil {
			return v.Min, v.Min
		}
		return nil, nil
	}
	min = v.Min
	if min == nil {
		one := 1
		min = &one
	}
	max = v.Range.Max
	return min, max
}

func (c *converter) convertMapLiteralAsExprs(m *MapLiteralAST) (map[string]ast.Expression, *ParseError) {
	if m == nil || len(m.Pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]ast.Expression, len(m.Pairs))
	for _, pair := range m.Pairs {
		val, err := c.convertExpr(pair.Value)
		if err != nil {
			return nil, err
		}
		out[pair.Key] = val
	}
	return out, nil
}

// --- expressions ---

func (c *converter) convertExprOpt(e *ExprAST) (ast.Expression, *ParseError) {
	if e == nil {
		return nil, nil
	}
	return c.convertExpr(e)
}

func (c *converter) convertExpr(e *ExprAST) (ast.Expression, *ParseError) {
	return c.convertOr(e.Or)
}

func (c *converter) convertOr(o *OrExprAST) (ast.Expression, *ParseError) {
	left, err := c.convertAnd(o.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range o.Rest {
		right, err := c.convertAnd(r)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (c *converter) convertAnd(a *AndExprAST) (ast.Expression, *ParseError) {
	left, err := c.convertComparison(a.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range a.Rest {
		right, err := c.convertComparison(r)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (c *converter) convertComparison(cmp *ComparisonExprAST) (ast.Expression, *ParseError) {
	left, err := c.convertStringOp(cmp.Left)
	if err != nil {
		return nil, err
	}
	for _, t := range cmp.Tail {
		switch {
		case t.IsNull:
			left = &ast.UnaryOp{Op: "IS NULL", Operand: left}
		case t.IsNotNull:
			left = &ast.UnaryOp{Op: "IS NOT NULL", Operand: left}
		default:
			right, err := c.convertStringOp(t.Right)
			if err != nil {
				return nil, err
			}
			left = &ast.BinaryOp{Op: t.Op, Left: left, Right: right}
		}
	}
	return left, nil
}

func (c *converter) convertStringOp(s *StringOpExprAST) (ast.Expression, *ParseError) {
	left, err := c.convertAdditive(s.Left)
	if err != nil {
		return nil, err
	}
	for _, t := range s.Tail {
		right, err := c.convertAdditive(t.Right)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: normalizeStringOp(t.Op), Left: left, Right: right}
	}
	return left, nil
}

func normalizeStringOp(raw string) string {
	switch strings.ToUpper(strings.Join(strings.Fields(raw), " ")) {
	case "STARTSWITH", "STARTS WITH":
		return "STARTS WITH"
	case "ENDSWITH", "ENDS WITH":
		return "ENDS WITH"
	default:
		return "CONTAINS"
	}
}

func (c *converter) convertAdditive(a *AdditiveExprAST) (ast.Expression, *ParseError) {
	left, err := c.convertMultiplicative(a.Left)
	if err != nil {
		return nil, err
	}
	for _, t := range a.Tail {
		right, err := c.convertMultiplicative(t.Right)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: t.Op, Left: left, Right: right}
	}
	return left, nil
}

func (c *converter) convertMultiplicative(m *MultiplicativeExprAST) (ast.Expression, *ParseError) {
	left, err := c.convertUnary(m.Left)
	if err != nil {
		return nil, err
	}
	for _, t := range m.Tail {
		right, err := c.convertUnary(t.Right)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: t.Op, Left: left, Right: right}
	}
	return left, nil
}

func (c *converter) convertUnary(u *UnaryExprAST) (ast.Expression, *ParseError) {
	operand, err := c.convertPostfix(u.Operand)
	if err != nil {
		return nil, err
	}
	switch {
	case u.Not:
		return &ast.UnaryOp{Op: "NOT", Operand: operand}, nil
	case u.Minus:
		return &ast.UnaryOp{Op: "-", Operand: operand}, nil
	}
	return operand, nil
}

func (c *converter) convertPostfix(p *PostfixExprAST) (ast.Expression, *ParseError) {
	expr, err := c.convertPrimary(p.Primary)
	if err != nil {
		return nil, err
	}
	for _, op := range p.Ops {
		switch {
		case op.Prop != "":
			expr = &ast.PropertyAccess{Target: expr, Property: op.Prop}
		case op.Index != nil:
			idx := op.Index
			if idx.Slice {
				lo, err := c.convertExprOpt(idx.Lo)
				if err != nil {
					return nil, err
				}
				hi, err := c.convertExprOpt(idx.Hi)
				if err != nil {
					return nil, err
				}
				expr = &ast.Index{Target: expr, Slice: true, Lo: lo, Hi: hi}
			} else {
				single, err := c.convertExprOpt(idx.Lo)
				if err != nil {
					return nil, err
				}
				expr = &ast.Index{Target: expr, Single: single}
			}
		}
	}
	return expr, nil
}

func (c *converter) convertPrimary(p *PrimaryExprAST) (ast.Expression, *ParseError) {
	switch {
	case p.Null:
		return &ast.Literal{Value: nil}, nil
	case p.True:
		return &ast.Literal{Value: true}, nil
	case p.False:
		return &ast.Literal{Value: false}, nil
	case p.Float != nil:
		return &ast.Literal{Value: *p.Float}, nil
	case p.Int != nil:
		return &ast.Literal{Value: *p.Int}, nil
	case p.Str != nil:
		return &ast.Literal{Value: unquote(*p.Str)}, nil
	case p.Param != nil:
		return &ast.Parameter{Name: strings.TrimPrefix(*p.Param, "$")}, nil
	case p.Case != nil:
		return c.convertCase(p.Case)
	case p.Quantifier != nil:
		return c.convertQuantifier(p.Quantifier)
	case p.ListCompr != nil:
		return c.convertListCompr(p.ListCompr)
	case p.Subquery != nil:
		return c.convertSubquery(p.Subquery)
	case p.Call != nil:
		return c.convertCall(p.Call)
	case p.PatternPred != nil:
		return c.convertPatternPred(p.PatternPred)
	case p.Paren != nil:
		inner, err := c.convertExpr(p.Paren)
		if err != nil {
			return nil, err
		}
		return &ast.Parenthesized{Inner: inner}, nil
	case p.List != nil:
		items := make([]ast.Expression, 0, len(p.List.Items))
		for _, it := range p.List.Items {
			conv, err := c.convertExpr(it)
			if err != nil {
				return nil, err
			}
			items = append(items, conv)
		}
		return &ast.ListLiteral{Items: items}, nil
	case p.Map != nil:
		return c.convertMapLiteralExpr(p.Map)
	case p.Ident != nil:
		return &ast.Variable{Name: *p.Ident}, nil
	}
	return nil, newParseError(0, 0, "empty primary expression")
}

// unquote strips the surrounding quote characters and resolves the small set
// of backslash escapes Cypher string literals support.
func unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	body := raw[1 : len(raw)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

func (c *converter) convertMapLiteralExpr(m *MapLiteralAST) (ast.Expression, *ParseError) {
	keys := make([]string, 0, len(m.Pairs))
	values := make([]ast.Expression, 0, len(m.Pairs))
	for _, pair := range m.Pairs {
		val, err := c.convertExpr(pair.Value)
		if err != nil {
			return nil, err
		}
		keys = append(keys, pair.Key)
		values = append(values, val)
	}
	return &ast.MapLiteral{Keys: keys, Values: values}, nil
}

func (c *converter) convertCall(call *FunctionCallAST) (ast.Expression, *ParseError) {
	if call.Star {
		return &ast.FunctionCall{Name: call.Name, Args: []ast.Expression{&ast.Literal{Value: "*"}}}, nil
	}
	if call.Normal == nil {
		return &ast.FunctionCall{Name: call.Name}, nil
	}
	args := make([]ast.Expression, 0, len(call.Normal.Args))
	for _, a := range call.Normal.Args {
		conv, err := c.convertExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, conv)
	}
	return &ast.FunctionCall{Name: call.Name, Args: args, Distinct: call.Normal.Distinct}, nil
}

func (c *converter) convertCase(ce *CaseExprAST) (ast.Expression, *ParseError) {
	test, err := c.convertExprOpt(ce.Test)
	if err != nil {
		return nil, err
	}
	whens := make([]ast.CaseWhen, 0, len(ce.Whens))
	for _, w := range ce.Whens {
		when, err := c.convertExpr(w.When)
		if err != nil {
			return nil, err
		}
		then, err := c.convertExpr(w.Then)
		if err != nil {
			return nil, err
		}
		whens = append(whens, ast.CaseWhen{When: when, Then: then})
	}
	def, err := c.convertExprOpt(ce.Default)
	if err != nil {
		return nil, err
	}
	return &ast.CaseExpression{Test: test, Whens: whens, Default: def}, nil
}

func (c *converter) convertQuantifier(q *QuantifierAST) (ast.Expression, *ParseError) {
	list, err := c.convertExpr(q.List)
	if err != nil {
		return nil, err
	}
	where, err := c.convertExprOpt(q.Where)
	if err != nil {
		return nil, err
	}
	return &ast.Quantifier{
		Kind:     strings.ToLower(q.Kind),
		Variable: q.Variable,
		List:     list,
		Where:    where,
	}, nil
}

func (c *converter) convertListCompr(l *ListComprAST) (ast.Expression, *ParseError) {
	list, err := c.convertExpr(l.List)
	if err != nil {
		return nil, err
	}
	where, err := c.convertExprOpt(l.Where)
	if err != nil {
		return nil, err
	}
	project, err := c.convertExprOpt(l.Project)
	if err != nil {
		return nil, err
	}
	return &ast.ListComprehension{Variable: l.Variable, List: list, Where: where, Project: project}, nil
}

func (c *converter) convertSubquery(s *SubqueryAST) (ast.Expression, *ParseError) {
	q, err := c.convertQuery(s.Query)
	if err != nil {
		return nil, err
	}
	return &ast.Subquery{Kind: strings.ToUpper(s.Kind), Query: q}, nil
}

func (c *converter) convertPatternPred(p *PatternPredAST) (ast.Expression, *ParseError) {
	variable := p.Head
	if variable == "" {
		variable = c.nextAnonVar()
	}
	nodes := []ast.NodePattern{{Variable: variable}}
	edges := make([]ast.RelationshipPattern, 0, len(p.Tail))
	for _, tail := range p.Tail {
		rel, err := c.convertRelPattern(tail.Rel)
		if err != nil {
			return nil, err
		}
		node, err := c.convertNodePattern(tail.Node)
		if err != nil {
			return nil, err
		}
		edges = append(edges, rel)
		nodes = append(nodes, node)
	}
	return &ast.PatternPredicate{Pattern: ast.PatternPath{Nodes: nodes, Edges: edges}}, nil
}
