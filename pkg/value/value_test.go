package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualsReflexiveAndNull(t *testing.T) {
	cases := []Value{Bool(true), Int(42), Float(3.14), Str("hi"), DistanceOf(1.5)}
	for _, v := range cases {
		assert.Equal(t, True, Equals(v, v), "%v should equal itself", v)
		assert.Equal(t, Unknown, Equals(v, Null), "%v vs NULL should be Unknown", v)
	}
}

func TestIntFloatEquality(t *testing.T) {
	assert.Equal(t, True, Equals(Int(2), Float(2.0)))
	assert.Equal(t, False, Equals(Int(2), Float(2.5)))
}

func TestDifferentKindsUnequal(t *testing.T) {
	assert.Equal(t, False, Equals(Int(1), Str("1")))
	assert.Equal(t, False, Equals(Bool(true), Int(1)))
}

func TestThreeValuedAnd(t *testing.T) {
	// true AND null -> null ; false AND null -> false ; null AND null -> null
	assert.Equal(t, Unknown, And(True, Unknown))
	assert.Equal(t, False, And(False, Unknown))
	assert.Equal(t, Unknown, And(Unknown, Unknown))
}

func TestThreeValuedOr(t *testing.T) {
	assert.Equal(t, True, Or(True, Unknown))
	assert.Equal(t, Unknown, Or(False, Unknown))
}

func TestArithDivisionByZero(t *testing.T) {
	v, err := Arith("/", Int(1), Int(0))
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = Arith("%", Int(1), Int(0))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestDivisionAlwaysFloat(t *testing.T) {
	v, err := Arith("/", Int(4), Int(2))
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind())
	assert.Equal(t, 2.0, v.Float())
}

func TestStringConcatenation(t *testing.T) {
	v, err := Add(Str("age: "), Int(5))
	require.NoError(t, err)
	assert.Equal(t, "age: 5", v.String())
}

func TestCompareIncompatibleKinds(t *testing.T) {
	_, err := Compare(Str("x"), Int(1))
	require.Error(t, err)
	var ce *CompareError
	require.ErrorAs(t, err, &ce)
}

func TestSortKeyNullOrdering(t *testing.T) {
	assert.Equal(t, 1, SortKey(Null, Int(1), true))
	assert.Equal(t, -1, SortKey(Null, Int(1), false))
}

func TestPathInvariant(t *testing.T) {
	n1 := &NodeRef{ID: 1}
	n2 := &NodeRef{ID: 2}
	e := &EdgeRef{ID: 1, Start: 1, End: 2}
	p, err := NewPath([]*NodeRef{n1, n2}, []*EdgeRef{e})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Length())

	_, err = NewPath([]*NodeRef{n1}, []*EdgeRef{e})
	require.Error(t, err)
}

func TestListReverseRoundTrip(t *testing.T) {
	l := []Value{Int(1), Int(2), Int(3)}
	rev := make([]Value, len(l))
	for i, v := range l {
		rev[len(l)-1-i] = v
	}
	rev2 := make([]Value, len(rev))
	for i, v := range rev {
		rev2[len(rev)-1-i] = v
	}
	for i := range l {
		assert.Equal(t, True, Equals(l[i], rev2[i]))
	}
}
