package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/graphforge/pkg/ast"
)

func TestParseSimpleMatchReturn(t *testing.T) {
	q, err := Parse(`MATCH (n:Person) WHERE n.age > 30 RETURN n.name AS name ORDER BY name LIMIT 10`)
	require.Nil(t, err)
	require.Len(t, q.Clauses, 2)

	match, ok := q.Clauses[0].(*ast.MatchClause)
	require.True(t, ok)
	require.False(t, match.Optional)
	require.Len(t, match.Pattern.Paths, 1)
	require.Len(t, match.Pattern.Paths[0].Nodes, 1)
	assert.Equal(t, "n", match.Pattern.Paths[0].Nodes[0].Variable)
	assert.Equal(t, ast.LabelDNF{{"Person"}}, match.Pattern.Paths[0].Nodes[0].Labels)
	require.NotNil(t, match.Where)

	ret, ok := q.Clauses[1].(*ast.ReturnClause)
	require.True(t, ok)
	require.Len(t, ret.Items, 1)
	assert.Equal(t, "name", ret.Items[0].Alias)
	require.Len(t, ret.OrderBy, 1)
	require.NotNil(t, ret.Limit)
}

func TestParseOptionalMatchWithRelationship(t *testing.T) {
	q, err := Parse(`OPTIONAL MATCH (a)-[r:KNOWS]->(b) RETURN a, r, b`)
	require.Nil(t, err)
	match := q.Clauses[0].(*ast.MatchClause)
	assert.True(t, match.Optional)
	path := match.Pattern.Paths[0]
	require.Len(t, path.Edges, 1)
	assert.Equal(t, ast.DirOut, path.Edges[0].Direction)
	assert.Equal(t, []string{"KNOWS"}, path.Edges[0].Types)
	assert.Equal(t, "r", path.Edges[0].Variable)
}

func TestParseVariableLengthRelationship(t *testing.T) {
	q, err := Parse(`MATCH (a)-[:KNOWS*1..3]->(b) RETURN b`)
	require.Nil(t, err)
	match := q.Clauses[0].(*ast.MatchClause)
	rel := match.Pattern.Paths[0].Edges[0]
	require.NotNil(t, rel.MinHops)
	require.NotNil(t, rel.MaxHops)
	assert.Equal(t, 1, *rel.MinHops)
	assert.Equal(t, 3, *rel.MaxHops)
	assert.True(t, rel.IsVariableLength())
}

func TestParseCreateMergeSetDelete(t *testing.T) {
	q, err := Parse(`CREATE (a:Person {name: "Ada"})`)
	require.Nil(t, err)
	create := q.Clauses[0].(*ast.CreateClause)
	require.Len(t, create.Pattern.Paths, 1)
	assert.Equal(t, ast.LabelDNF{{"Person"}}, create.Pattern.Paths[0].Nodes[0].Labels)

	q, err = Parse(`MERGE (a:Person {id: 1}) ON CREATE SET a.created = true ON MATCH SET a.seen = a.seen + 1`)
	require.Nil(t, err)
	merge := q.Clauses[0].(*ast.MergeClause)
	require.Len(t, merge.OnCreate, 1)
	require.Len(t, merge.OnMatch, 1)

	q, err = Parse(`MATCH (a) DETACH DELETE a`)
	require.Nil(t, err)
	del := q.Clauses[1].(*ast.DeleteClause)
	assert.True(t, del.Detach)
	require.Len(t, del.Variables, 1)
}

func TestParseWithUnwindAggregation(t *testing.T) {
	q, err := Parse(`UNWIND [1, 2, 3] AS x WITH x WHERE x > 1 RETURN count(x) AS c`)
	require.Nil(t, err)
	require.Len(t, q.Clauses, 3)
	unwind := q.Clauses[0].(*ast.UnwindClause)
	list, ok := unwind.Expr.(*ast.ListLiteral)
	require.True(t, ok)
	assert.Len(t, list.Items, 3)

	ret := q.Clauses[2].(*ast.ReturnClause)
	call, ok := ret.Items[0].Expr.(*ast.FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "count", call.Name)
}

func TestParseUnionAll(t *testing.T) {
	q, err := Parse(`MATCH (a:Person) RETURN a.name AS name UNION ALL MATCH (b:Company) RETURN b.name AS name`)
	require.Nil(t, err)
	require.Len(t, q.Union, 1)
	assert.True(t, q.Union[0].All)
}

func TestParseThreeValuedExpression(t *testing.T) {
	q, err := Parse(`MATCH (n) WHERE n.a IS NULL OR (n.b = 1 AND NOT n.c) RETURN n`)
	require.Nil(t, err)
	match := q.Clauses[0].(*ast.MatchClause)
	or, ok := match.Where.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "OR", or.Op)
}

func TestParseCaseExpressionAndQuantifier(t *testing.T) {
	q, err := Parse(`RETURN CASE WHEN true THEN 1 ELSE 0 END AS v, any(x IN [1,2] WHERE x > 1) AS hasBig`)
	require.Nil(t, err)
	ret := q.Clauses[0].(*ast.ReturnClause)
	_, ok := ret.Items[0].Expr.(*ast.CaseExpression)
	require.True(t, ok)
	quant, ok := ret.Items[1].Expr.(*ast.Quantifier)
	require.True(t, ok)
	assert.Equal(t, "any", quant.Kind)
}

func TestParsePatternPredicateAndSubquery(t *testing.T) {
	q, err := Parse(`MATCH (a) WHERE (a)-[:KNOWS]->() RETURN EXISTS { MATCH (a)-[:KNOWS]->(b) RETURN b }`)
	require.Nil(t, err)
	match := q.Clauses[0].(*ast.MatchClause)
	_, ok := match.Where.(*ast.PatternPredicate)
	require.True(t, ok)
	ret := q.Clauses[1].(*ast.ReturnClause)
	sub, ok := ret.Items[0].Expr.(*ast.Subquery)
	require.True(t, ok)
	assert.Equal(t, "EXISTS", sub.Kind)
}

func TestParseSyntaxErrorHasPosition(t *testing.T) {
	_, err := Parse(`MATCH (n) RETURN WHERE`)
	require.NotNil(t, err)
	assert.NotEmpty(t, err.Error())
	assert.Greater(t, err.Line, 0)
}

func TestAnonymousVariablesAreDistinct(t *testing.T) {
	q, err := Parse(`MATCH (a)-->() RETURN a`)
	require.Nil(t, err)
	match := q.Clauses[0].(*ast.MatchClause)
	path := match.Pattern.Paths[0]
	require.Len(t, path.Nodes, 2)
	assert.NotEmpty(t, path.Nodes[1].Variable)
	assert.NotEmpty(t, path.Edges[0].Variable)
	assert.NotEqual(t, path.Nodes[1].Variable, path.Edges[0].Variable)
}
