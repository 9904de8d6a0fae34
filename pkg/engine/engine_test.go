package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/graphforge/pkg/value"
)

func fixedNow() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

func newEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Now = fixedNow
	eng, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestExecuteCreateAndMatch(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.Execute(ctx, `CREATE (:Person {name: "Alice"})`, nil)
	require.NoError(t, err)

	result, err := eng.Execute(ctx, "MATCH (n:Person) RETURN n.name AS name", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"name"}, result.Columns)
	require.Len(t, result.Rows, 1)
	v, ok := result.Rows[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, value.Str("Alice"), v)
}

func TestExecuteUsesParams(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.Execute(ctx, `CREATE (:Person {name: $name})`, map[string]value.Value{
		"name": value.Str("Bob"),
	})
	require.NoError(t, err)

	result, err := eng.Execute(ctx, "MATCH (n:Person) RETURN n.name AS name", nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	v, _ := result.Rows[0].Get("name")
	assert.Equal(t, value.Str("Bob"), v)
}

func TestExecuteReusesCachedPlan(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	query := "MATCH (n:Person) RETURN n.name AS name"
	_, err := eng.Execute(ctx, query, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), eng.plans.Stats().Hits)

	_, err = eng.Execute(ctx, query, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), eng.plans.Stats().Hits)
}

func TestExecuteInvalidQueryReturnsError(t *testing.T) {
	eng := newEngine(t)
	_, err := eng.Execute(context.Background(), "MATCH (n RETURN n", nil)
	assert.Error(t, err)
}

func TestExecuteDeleteRequiresWritableTxn(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.Execute(ctx, `CREATE (:Person {name: "Carl"})`, nil)
	require.NoError(t, err)

	_, err = eng.Execute(ctx, "MATCH (n:Person) DETACH DELETE n", nil)
	require.NoError(t, err)

	result, err := eng.Execute(ctx, "MATCH (n:Person) RETURN n", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
}

func TestCloseIsIdempotentAndRejectsFurtherExecute(t *testing.T) {
	eng, err := Open(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())

	_, err = eng.Execute(context.Background(), "MATCH (n) RETURN n", nil)
	assert.Error(t, err)
}
