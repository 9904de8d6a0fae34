package functions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphforge/graphforge/pkg/value"
)

func fixedNow() func() time.Time {
	t := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func call(t *testing.T, r *Registry, name string, args ...value.Value) value.Value {
	t.Helper()
	v, err, ok := r.Call(name, args)
	require.True(t, ok, "function %q must be registered", name)
	require.NoError(t, err)
	return v
}

func TestCoalesceReturnsFirstNonNull(t *testing.T) {
	r := NewRegistry(fixedNow())
	got := call(t, r, "coalesce", value.Null, value.Null, value.Int(3), value.Int(4))
	assert.Equal(t, value.Int(3), got)
}

func TestSizeOnStringAndList(t *testing.T) {
	r := NewRegistry(fixedNow())
	assert.Equal(t, value.Int(5), call(t, r, "size", value.Str("hello")))
	assert.Equal(t, value.Int(2), call(t, r, "size", value.ListOf([]value.Value{value.Int(1), value.Int(2)})))
}

func TestHeadLastTailOnEmptyList(t *testing.T) {
	r := NewRegistry(fixedNow())
	empty := value.ListOf(nil)
	assert.Equal(t, value.Null, call(t, r, "head", empty))
	assert.Equal(t, value.Null, call(t, r, "last", empty))
	tail := call(t, r, "tail", empty)
	assert.Equal(t, value.KindList, tail.Kind())
	assert.Empty(t, tail.List())
}

func TestRangeInclusiveWithStep(t *testing.T) {
	r := NewRegistry(fixedNow())
	got := call(t, r, "range", value.Int(0), value.Int(10), value.Int(3))
	want := []value.Value{value.Int(0), value.Int(3), value.Int(6), value.Int(9)}
	assert.Equal(t, want, got.List())
}

func TestReverseDispatchesByKind(t *testing.T) {
	r := NewRegistry(fixedNow())
	s := call(t, r, "reverse", value.Str("abc"))
	assert.Equal(t, "cba", s.String())
	l := call(t, r, "reverse", value.ListOf([]value.Value{value.Int(1), value.Int(2), value.Int(3)}))
	assert.Equal(t, []value.Value{value.Int(3), value.Int(2), value.Int(1)}, l.List())
}

func TestAbsPreservesIntegerKind(t *testing.T) {
	r := NewRegistry(fixedNow())
	got := call(t, r, "abs", value.Int(-7))
	assert.Equal(t, value.KindInt, got.Kind())
	assert.Equal(t, int64(7), got.Int())
}

func TestToIntegerFromFloatString(t *testing.T) {
	r := NewRegistry(fixedNow())
	assert.Equal(t, int64(42), call(t, r, "tointeger", value.Str("42")).Int())
	assert.Equal(t, int64(3), call(t, r, "tointeger", value.Float(3.9)).Int())
	assert.Equal(t, value.Null, call(t, r, "tointeger", value.Str("not a number")))
}

func TestExistsAndIsEmpty(t *testing.T) {
	r := NewRegistry(fixedNow())
	assert.Equal(t, value.Bool(false), call(t, r, "exists", value.Null))
	assert.Equal(t, value.Bool(true), call(t, r, "exists", value.Int(1)))
	assert.Equal(t, value.Bool(true), call(t, r, "isempty", value.Str("")))
	assert.Equal(t, value.Bool(false), call(t, r, "isempty", value.Str("x")))
}

func TestQuantifierCombinators(t *testing.T) {
	assert.Equal(t, value.True, AllTri([]value.Tri{value.True, value.True}))
	assert.Equal(t, value.False, AllTri([]value.Tri{value.True, value.False}))
	assert.Equal(t, value.Unknown, AllTri([]value.Tri{value.True, value.Unknown}))

	assert.Equal(t, value.True, AnyTri([]value.Tri{value.False, value.True}))
	assert.Equal(t, value.Unknown, AnyTri([]value.Tri{value.False, value.Unknown}))
	assert.Equal(t, value.False, AnyTri([]value.Tri{value.False, value.False}))

	assert.Equal(t, value.True, SingleTri([]value.Tri{value.False, value.True, value.False}))
	assert.Equal(t, value.False, SingleTri([]value.Tri{value.True, value.True}))
}

func TestDurationRoundTripsThroughStringify(t *testing.T) {
	r := NewRegistry(fixedNow())
	d := call(t, r, "duration", value.Str("P1Y2M3DT4H5M6S"))
	assert.Equal(t, value.KindDuration, d.Kind())
	assert.Equal(t, "P1Y2M3DT4H5M6S", value.Stringify(d))
}

func TestDistanceBetweenCartesianPoints(t *testing.T) {
	r := NewRegistry(fixedNow())
	m1 := value.NewOrderedMap()
	m1.Set("x", value.Float(0))
	m1.Set("y", value.Float(0))
	m2 := value.NewOrderedMap()
	m2.Set("x", value.Float(3))
	m2.Set("y", value.Float(4))
	p1 := call(t, r, "point", value.MapOf(m1))
	p2 := call(t, r, "point", value.MapOf(m2))
	d := call(t, r, "distance", p1, p2)
	assert.InDelta(t, 5.0, d.Float(), 1e-9)
}

func TestUnknownFunctionNotOk(t *testing.T) {
	r := NewRegistry(fixedNow())
	_, _, ok := r.Call("notafunction", nil)
	assert.False(t, ok)
}

func TestAggregateSumIgnoresNullAndEmptyIsZero(t *testing.T) {
	acc, err := NewAccumulator("sum", false)
	require.NoError(t, err)
	empty, err := acc.Result()
	require.NoError(t, err)
	assert.Equal(t, value.Int(0), empty)

	acc2, _ := NewAccumulator("sum", false)
	acc2.Accumulate(value.Int(1))
	acc2.Accumulate(value.Null)
	acc2.Accumulate(value.Int(2))
	got, err := acc2.Result()
	require.NoError(t, err)
	assert.Equal(t, value.Int(3), got)
}

func TestAggregateAvgEmptyGroupIsNull(t *testing.T) {
	acc, _ := NewAccumulator("avg", false)
	got, err := acc.Result()
	require.NoError(t, err)
	assert.Equal(t, value.Null, got)
}

func TestAggregateCollectSkipsNullAndPreservesOrder(t *testing.T) {
	acc, _ := NewAccumulator("collect", false)
	acc.Accumulate(value.Int(3))
	acc.Accumulate(value.Null)
	acc.Accumulate(value.Int(1))
	got, err := acc.Result()
	require.NoError(t, err)
	assert.Equal(t, []value.Value{value.Int(3), value.Int(1)}, got.List())
}

func TestAggregateDistinctCollapsesDuplicates(t *testing.T) {
	acc, err := NewAccumulator("count", true)
	require.NoError(t, err)
	acc.Accumulate(value.Int(1))
	acc.Accumulate(value.Int(1))
	acc.Accumulate(value.Int(2))
	got, err := acc.Result()
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), got)
}

func TestAggregateMinMaxIgnoreNull(t *testing.T) {
	min, _ := NewAccumulator("min", false)
	max, _ := NewAccumulator("max", false)
	for _, v := range []value.Value{value.Int(5), value.Null, value.Int(1), value.Int(9)} {
		min.Accumulate(v)
		max.Accumulate(v)
	}
	minV, _ := min.Result()
	maxV, _ := max.Result()
	assert.Equal(t, value.Int(1), minV)
	assert.Equal(t, value.Int(9), maxV)
}

func TestAggregatePercentileDiscPicksActualValue(t *testing.T) {
	acc, err := NewAccumulator("percentiledisc", false)
	require.NoError(t, err)
	pa := acc.(*percentileAcc)
	pa.WithPercentile(0.5)
	for _, f := range []float64{10, 20, 30} {
		acc.Accumulate(value.Float(f))
	}
	got, err := acc.Result()
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.Float())
}

func TestAggregatePercentileContInterpolates(t *testing.T) {
	acc, err := NewAccumulator("percentilecont", false)
	require.NoError(t, err)
	pa := acc.(*percentileAcc)
	pa.WithPercentile(0.5)
	for _, f := range []float64{10, 20} {
		acc.Accumulate(value.Float(f))
	}
	got, err := acc.Result()
	require.NoError(t, err)
	assert.InDelta(t, 15.0, got.Float(), 1e-9)
}

func TestAggregateStdevSampleVsPopulation(t *testing.T) {
	sample, _ := NewAccumulator("stdev", false)
	pop, _ := NewAccumulator("stdevp", false)
	for _, f := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		sample.Accumulate(value.Float(f))
		pop.Accumulate(value.Float(f))
	}
	s, _ := sample.Result()
	p, _ := pop.Result()
	assert.InDelta(t, 2.13809, s.Float(), 1e-4)
	assert.InDelta(t, 2.0, p.Float(), 1e-4)
}

func TestUnknownAggregateErrors(t *testing.T) {
	_, err := NewAccumulator("notafunction", false)
	assert.Error(t, err)
}
