package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/graphforge/pkg/optimizer"
	"github.com/graphforge/graphforge/pkg/parser"
	"github.com/graphforge/graphforge/pkg/planner"
	"github.com/graphforge/graphforge/pkg/store"
	"github.com/graphforge/graphforge/pkg/value"
)

func fixedNow() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

// run parses, plans, optimizes, and executes query against txn in one shot,
// the same pipeline the engine facade wires together.
func run(t *testing.T, txn store.Txn, query string, params map[string]value.Value) []Binding {
	t.Helper()
	q, perr := parser.Parse(query)
	require.Nil(t, perr, "parse: %v", perr)
	op, plerr := planner.Plan(q)
	require.Nil(t, plerr, "plan: %v", plerr)
	op = optimizer.Optimize(op, store.GraphStatistics{}, optimizer.DefaultOptions())
	rows, err := Run(context.Background(), op, txn, params, fixedNow)
	require.NoError(t, err)
	return rows
}

func newTxn(t *testing.T) store.Txn {
	t.Helper()
	s := store.NewMemoryStore()
	txn, err := s.Begin(context.Background(), true)
	require.NoError(t, err)
	return txn
}

func TestMatchEmptyGraph(t *testing.T) {
	txn := newTxn(t)
	rows := run(t, txn, "MATCH (n) RETURN n", nil)
	assert.Empty(t, rows)
}

func TestCreateAndMatchByLabel(t *testing.T) {
	txn := newTxn(t)
	run(t, txn, `CREATE (:Person {name: "Alice"})`, nil)
	run(t, txn, `CREATE (:Company {name: "Acme"})`, nil)

	rows := run(t, txn, "MATCH (n:Person) RETURN n.name AS name", nil)
	require.Len(t, rows, 1)
	name, _ := rows[0].Get("name")
	assert.Equal(t, value.Str("Alice"), name)
}

func TestCreateRelationshipAndExpand(t *testing.T) {
	txn := newTxn(t)
	run(t, txn, `CREATE (:Person {name: "Alice"})-[:KNOWS]->(:Person {name: "Bob"})`, nil)

	rows := run(t, txn, "MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a.name AS a, b.name AS b", nil)
	require.Len(t, rows, 1)
	a, _ := rows[0].Get("a")
	b, _ := rows[0].Get("b")
	assert.Equal(t, value.Str("Alice"), a)
	assert.Equal(t, value.Str("Bob"), b)
}

func TestOptionalMatchFallsBackToNull(t *testing.T) {
	txn := newTxn(t)
	run(t, txn, `CREATE (:Person {name: "Alice"})`, nil)

	rows := run(t, txn, "MATCH (a:Person) OPTIONAL MATCH (a)-[:KNOWS]->(b) RETURN a.name AS a, b", nil)
	require.Len(t, rows, 1)
	b, ok := rows[0].Get("b")
	require.True(t, ok)
	assert.True(t, b.IsNull())
}

func TestWhereFiltersRows(t *testing.T) {
	txn := newTxn(t)
	run(t, txn, `CREATE (:Person {name: "Alice", age: 30})`, nil)
	run(t, txn, `CREATE (:Person {name: "Bob", age: 20})`, nil)

	rows := run(t, txn, "MATCH (n:Person) WHERE n.age > 25 RETURN n.name AS name", nil)
	require.Len(t, rows, 1)
	name, _ := rows[0].Get("name")
	assert.Equal(t, value.Str("Alice"), name)
}

func TestOrderBySkipLimit(t *testing.T) {
	txn := newTxn(t)
	for _, n := range []string{"Carol", "Alice", "Bob"} {
		run(t, txn, `CREATE (:Person {name: $name})`, map[string]value.Value{"name": value.Str(n)})
	}

	rows := run(t, txn, "MATCH (n:Person) RETURN n.name AS name ORDER BY name SKIP 1 LIMIT 1", nil)
	require.Len(t, rows, 1)
	name, _ := rows[0].Get("name")
	assert.Equal(t, value.Str("Bob"), name)
}

func TestAggregateCountAndGroupBy(t *testing.T) {
	txn := newTxn(t)
	run(t, txn, `CREATE (:Person {city: "NYC"})`, nil)
	run(t, txn, `CREATE (:Person {city: "NYC"})`, nil)
	run(t, txn, `CREATE (:Person {city: "LA"})`, nil)

	rows := run(t, txn, "MATCH (n:Person) RETURN n.city AS city, count(*) AS c ORDER BY city", nil)
	require.Len(t, rows, 2)
	c0, _ := rows[0].Get("c")
	c1, _ := rows[1].Get("c")
	assert.Equal(t, value.Int(1), c0)
	assert.Equal(t, value.Int(2), c1)
}

func TestAggregateEmptyInputYieldsOneRow(t *testing.T) {
	txn := newTxn(t)
	rows := run(t, txn, "MATCH (n:Person) RETURN count(n) AS c", nil)
	require.Len(t, rows, 1)
	c, _ := rows[0].Get("c")
	assert.Equal(t, value.Int(0), c)
}

func TestUnwindExpandsList(t *testing.T) {
	txn := newTxn(t)
	rows := run(t, txn, "UNWIND [1, 2, 3] AS x RETURN x", nil)
	require.Len(t, rows, 3)
	x0, _ := rows[0].Get("x")
	assert.Equal(t, value.Int(1), x0)
}

func TestSetAndRemoveProperty(t *testing.T) {
	txn := newTxn(t)
	run(t, txn, `CREATE (:Person {name: "Alice", age: 30})`, nil)
	run(t, txn, `MATCH (n:Person) SET n.age = 31`, nil)

	rows := run(t, txn, "MATCH (n:Person) RETURN n.age AS age", nil)
	require.Len(t, rows, 1)
	age, _ := rows[0].Get("age")
	assert.Equal(t, value.Int(31), age)

	run(t, txn, `MATCH (n:Person) REMOVE n.age`, nil)
	rows = run(t, txn, "MATCH (n:Person) RETURN n.age AS age", nil)
	require.Len(t, rows, 1)
	age, _ = rows[0].Get("age")
	assert.True(t, age.IsNull())
}

func TestMergeCreatesOnceThenMatches(t *testing.T) {
	txn := newTxn(t)
	run(t, txn, `MERGE (n:Person {name: "Alice"}) ON CREATE SET n.created = true`, nil)
	run(t, txn, `MERGE (n:Person {name: "Alice"}) ON MATCH SET n.seen = true`, nil)

	rows := run(t, txn, "MATCH (n:Person) RETURN n.created AS created, n.seen AS seen", nil)
	require.Len(t, rows, 1)
	created, _ := rows[0].Get("created")
	seen, _ := rows[0].Get("seen")
	assert.Equal(t, value.Bool(true), created)
	assert.Equal(t, value.Bool(true), seen)
}

func TestDeleteDetachRemovesNodeAndEdges(t *testing.T) {
	txn := newTxn(t)
	run(t, txn, `CREATE (:Person {name: "Alice"})-[:KNOWS]->(:Person {name: "Bob"})`, nil)
	run(t, txn, `MATCH (n:Person {name: "Alice"}) DETACH DELETE n`, nil)

	rows := run(t, txn, "MATCH (n:Person) RETURN n.name AS name", nil)
	require.Len(t, rows, 1)
	name, _ := rows[0].Get("name")
	assert.Equal(t, value.Str("Bob"), name)
}

func TestUnionAllConcatenates(t *testing.T) {
	txn := newTxn(t)
	rows := run(t, txn, "RETURN 1 AS x UNION ALL RETURN 2 AS x", nil)
	require.Len(t, rows, 2)
}

func TestUnionDedups(t *testing.T) {
	txn := newTxn(t)
	rows := run(t, txn, "RETURN 1 AS x UNION RETURN 1 AS x", nil)
	require.Len(t, rows, 1)
}

func TestWithPipelineBoundaryReshapesVariables(t *testing.T) {
	txn := newTxn(t)
	run(t, txn, `CREATE (:Person {name: "Alice", age: 30})`, nil)

	rows := run(t, txn, "MATCH (n:Person) WITH n.name AS name RETURN name", nil)
	require.Len(t, rows, 1)
	_, hasN := rows[0].Get("n")
	assert.False(t, hasN)
	name, _ := rows[0].Get("name")
	assert.Equal(t, value.Str("Alice"), name)
}
