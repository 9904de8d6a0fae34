// Package value implements GraphForge's typed value system: the closed set
// of kinds a Cypher expression can evaluate to, together with the equality,
// ordering, and three-valued-logic rules spec.md §3.2 requires of them.
//
// Values are immutable. A Value is a small tagged union (Kind plus a single
// payload field selected by that kind) rather than an interface, so the
// executor never pays for a dynamic dispatch on the hot path of comparing
// or hashing a row of bindings.
package value

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/graphforge/graphforge/pkg/pool"
)

// Kind tags the concrete type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindInt
	KindFloat
	KindString
	KindDate
	KindDateTime
	KindTime
	KindDuration
	KindPoint
	KindDistance
	KindList
	KindMap
	KindNode
	KindEdge
	KindPath
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBoolean:
		return "Boolean"
	case KindInt:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindDate:
		return "Date"
	case KindDateTime:
		return "DateTime"
	case KindTime:
		return "Time"
	case KindDuration:
		return "Duration"
	case KindPoint:
		return "Point"
	case KindDistance:
		return "Distance"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindNode:
		return "Node"
	case KindEdge:
		return "Relationship"
	case KindPath:
		return "Path"
	default:
		return "Unknown"
	}
}

// Value is an immutable, exactly-one-kind datum.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	tmp  Temporal
	pt   Point
	list []Value
	mp   *OrderedMap
	node *NodeRef
	edge *EdgeRef
	path *PathRef
}

// Null is the single NULL value (absence of value).
var Null = Value{kind: KindNull}

func Bool(b bool) Value           { return Value{kind: KindBoolean, b: b} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func Str(s string) Value          { return Value{kind: KindString, s: s} }
func DistanceOf(d float64) Value  { return Value{kind: KindDistance, f: d} }
func ListOf(items []Value) Value  { return Value{kind: KindList, list: items} }
func MapOf(m *OrderedMap) Value   { return Value{kind: KindMap, mp: m} }
func NodeOf(n *NodeRef) Value     { return Value{kind: KindNode, node: n} }
func EdgeOf(e *EdgeRef) Value     { return Value{kind: KindEdge, edge: e} }
func PathOf(p *PathRef) Value     { return Value{kind: KindPath, path: p} }
func TemporalOf(k Kind, t Temporal) Value {
	return Value{kind: k, tmp: t}
}
func PointOf(p Point) Value { return Value{kind: KindPoint, pt: p} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) Bool() bool      { return v.b }
func (v Value) Int() int64      { return v.i }
func (v Value) Float() float64  { return v.f }
func (v Value) String() string  { return v.s }
func (v Value) List() []Value   { return v.list }
func (v Value) Map() *OrderedMap { return v.mp }
func (v Value) Node() *NodeRef  { return v.node }
func (v Value) Edge() *EdgeRef  { return v.edge }
func (v Value) Path() *PathRef  { return v.path }
func (v Value) Temporal() Temporal { return v.tmp }
func (v Value) Point() Point    { return v.pt }

// IsNumeric reports whether the value is Int or Float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsFloat64 returns the numeric value as a float64, coercing Int to Float.
// Callers must check IsNumeric first.
func (v Value) AsFloat64() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Tri is three-valued logic's truth domain: True, False, or Unknown (NULL).
type Tri int

const (
	Unknown Tri = iota
	False
	True
)

// TriFromValue maps a Boolean/NULL value onto Tri; any other kind is an
// error the caller (the evaluator) must raise as a TypeError.
func TriFromValue(v Value) (Tri, bool) {
	switch v.kind {
	case KindNull:
		return Unknown, true
	case KindBoolean:
		if v.b {
			return True, true
		}
		return False, true
	default:
		return Unknown, false
	}
}

func (t Tri) Value() Value {
	switch t {
	case True:
		return Bool(true)
	case False:
		return Bool(false)
	default:
		return Null
	}
}

// And implements three-valued AND: short-circuits to False when either
// operand is known False, otherwise Unknown propagates, otherwise True.
func And(a, b Tri) Tri {
	if a == False || b == False {
		return False
	}
	if a == Unknown || b == Unknown {
		return Unknown
	}
	return True
}

// Or implements three-valued OR: short-circuits to True when either operand
// is known True.
func Or(a, b Tri) Tri {
	if a == True || b == True {
		return True
	}
	if a == Unknown || b == Unknown {
		return Unknown
	}
	return False
}

// Not implements three-valued NOT; Unknown maps to Unknown.
func Not(a Tri) Tri {
	switch a {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// Truthy implements filter truthiness: only True passes a WHERE/Filter.
func Truthy(v Value) bool {
	return v.kind == KindBoolean && v.b
}

// Equals implements value equality per spec.md §3.2: values of different
// kinds compare unequal except Int vs Float, which compare numerically; any
// comparison touching NULL yields Unknown (NULL), never True or False.
func Equals(a, b Value) Tri {
	if a.kind == KindNull || b.kind == KindNull {
		return Unknown
	}
	if a.IsNumeric() && b.IsNumeric() {
		return triBool(a.AsFloat64() == b.AsFloat64())
	}
	if a.kind != b.kind {
		return False
	}
	switch a.kind {
	case KindBoolean:
		return triBool(a.b == b.b)
	case KindString:
		return triBool(a.s == b.s)
	case KindDistance:
		return triBool(a.f == b.f)
	case KindDate, KindDateTime, KindTime, KindDuration:
		return triBool(a.tmp.Equal(b.tmp))
	case KindPoint:
		return triBool(a.pt.Equal(b.pt))
	case KindList:
		if len(a.list) != len(b.list) {
			return False
		}
		result := True
		for i := range a.list {
			switch Equals(a.list[i], b.list[i]) {
			case False:
				return False
			case Unknown:
				result = Unknown
			}
		}
		return result
	case KindMap:
		return equalsMap(a.mp, b.mp)
	case KindNode:
		return triBool(a.node != nil && b.node != nil && a.node.ID == b.node.ID)
	case KindEdge:
		return triBool(a.edge != nil && b.edge != nil && a.edge.ID == b.edge.ID)
	case KindPath:
		return triBool(a.path.Equal(b.path))
	default:
		return False
	}
}

func equalsMap(a, b *OrderedMap) Tri {
	if a.Len() != b.Len() {
		return False
	}
	result := True
	for _, k := range a.Keys() {
		bv, ok := b.Get(k)
		if !ok {
			return False
		}
		av, _ := a.Get(k)
		switch Equals(av, bv) {
		case False:
			return False
		case Unknown:
			result = Unknown
		}
	}
	return result
}

func triBool(b bool) Tri {
	if b {
		return True
	}
	return False
}

// EqualsStrict is used for grouping/DISTINCT/ORDER-BY-key comparisons, where
// openCypher treats NULL as equal to NULL (unlike predicate Equals).
func EqualsStrict(a, b Value) bool {
	if a.kind == KindNull && b.kind == KindNull {
		return true
	}
	return Equals(a, b) == True
}

// CompareError signals an ordering comparison between incompatible kinds.
type CompareError struct {
	A, B Kind
}

func (e *CompareError) Error() string {
	return fmt.Sprintf("cannot compare %s and %s", e.A, e.B)
}

// Compare implements ordering per spec.md §3.2: defined between two numbers
// (Int and Float compare by value) and within a single kind for strings,
// booleans (false before true), temporal values, distances and lists
// (element by element, then by length). NULL comparisons are handled by the
// caller (sort positions NULL first/last; comparisons otherwise yield NULL).
// Returns -1, 0, or 1, or a *CompareError for incompatible kinds.
func Compare(a, b Value) (int, error) {
	if a.IsNumeric() && b.IsNumeric() {
		af, bf := a.AsFloat64(), b.AsFloat64()
		return cmpFloat(af, bf), nil
	}
	if a.kind != b.kind {
		return 0, &CompareError{a.kind, b.kind}
	}
	switch a.kind {
	case KindString:
		return strings.Compare(a.s, b.s), nil
	case KindBoolean:
		if a.b == b.b {
			return 0, nil
		}
		if !a.b {
			return -1, nil
		}
		return 1, nil
	case KindDate, KindDateTime, KindTime, KindDuration:
		return a.tmp.Compare(b.tmp), nil
	case KindDistance:
		return cmpFloat(a.f, b.f), nil
	case KindList:
		n := len(a.list)
		if len(b.list) < n {
			n = len(b.list)
		}
		for i := 0; i < n; i++ {
			c, err := Compare(a.list[i], b.list[i])
			if err != nil {
				return 0, err
			}
			if c != 0 {
				return c, nil
			}
		}
		return cmpInt(len(a.list), len(b.list)), nil
	default:
		return 0, &CompareError{a.kind, b.kind}
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Add implements `+`: numeric addition with Int/Float coercion, string
// concatenation (stringifying the non-string operand), and list
// concatenation. NULL propagates.
func Add(a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null, nil
	}
	if a.kind == KindString || b.kind == KindString {
		return Str(Stringify(a) + Stringify(b)), nil
	}
	if a.kind == KindList || b.kind == KindList {
		return ListOf(append(append([]Value{}, listOrSingle(a)...), listOrSingle(b)...)), nil
	}
	if a.IsNumeric() && b.IsNumeric() {
		if a.kind == KindInt && b.kind == KindInt {
			return Int(a.i + b.i), nil
		}
		return Float(a.AsFloat64() + b.AsFloat64()), nil
	}
	return Null, &TypeMismatchError{Op: "+", A: a.kind, B: b.kind}
}

func listOrSingle(v Value) []Value {
	if v.kind == KindList {
		return v.list
	}
	return []Value{v}
}

// TypeMismatchError signals an arithmetic or comparison operator applied to
// incompatible kinds.
type TypeMismatchError struct {
	Op   string
	A, B Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: %s %s %s", e.A, e.Op, e.B)
}

// Arith implements -, *, /, %. Division/modulo by zero returns NULL per
// spec.md §3.2, never an error. Mixed Int/Float yields Float; division
// always yields Float.
func Arith(op string, a, b Value) (Value, error) {
	if a.IsNull() || b.IsNull() {
		return Null, nil
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return Null, &TypeMismatchError{Op: op, A: a.kind, B: b.kind}
	}
	bothInt := a.kind == KindInt && b.kind == KindInt
	switch op {
	case "-":
		if bothInt {
			return Int(a.i - b.i), nil
		}
		return Float(a.AsFloat64() - b.AsFloat64()), nil
	case "*":
		if bothInt {
			return Int(a.i * b.i), nil
		}
		return Float(a.AsFloat64() * b.AsFloat64()), nil
	case "/":
		bf := b.AsFloat64()
		if bf == 0 {
			return Null, nil
		}
		return Float(a.AsFloat64() / bf), nil
	case "%":
		if bothInt {
			if b.i == 0 {
				return Null, nil
			}
			return Int(a.i % b.i), nil
		}
		bf := b.AsFloat64()
		if bf == 0 {
			return Null, nil
		}
		return Float(math.Mod(a.AsFloat64(), bf)), nil
	default:
		return Null, fmt.Errorf("unknown arithmetic operator %q", op)
	}
}

// Stringify implements default stringification used by `+` string
// concatenation and toString() on non-structural kinds.
func Stringify(v Value) string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBoolean:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.s
	case KindDate, KindDateTime, KindTime, KindDuration:
		return v.tmp.StringForKind(v.kind)
	case KindDistance:
		return formatFloat(v.f)
	case KindPoint:
		return v.pt.String()
	case KindList:
		parts := pool.GetStringSlice()
		defer pool.PutStringSlice(parts)
		for _, e := range v.list {
			parts = append(parts, Stringify(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := pool.GetStringSlice()
		defer pool.PutStringSlice(parts)
		for _, k := range v.mp.Keys() {
			val, _ := v.mp.Get(k)
			parts = append(parts, k+": "+Stringify(val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if math.IsNaN(f) {
		return "NaN"
	}
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// SortKey orders a pair of values for Sort operator output, implementing the
// NULL-last-ASC / NULL-first-DESC rule from spec.md §4.4.2. Returns -1, 0, 1.
func SortKey(a, b Value, ascending bool) int {
	aNull, bNull := a.IsNull(), b.IsNull()
	if aNull && bNull {
		return 0
	}
	if aNull {
		if ascending {
			return 1
		}
		return -1
	}
	if bNull {
		if ascending {
			return -1
		}
		return 1
	}
	c, err := Compare(a, b)
	if err != nil {
		// Incompatible kinds sort by Kind ordinal as a stable fallback;
		// the evaluator already rejected this at Filter/WHERE time.
		c = cmpInt(int(a.kind), int(b.kind))
	}
	if !ascending {
		c = -c
	}
	return c
}

// SortStable sorts values with SortKey, used by tests and simple callers;
// the executor's Sort operator sorts row tuples with a multi-key comparator
// built the same way.
func SortStable(values []Value, ascending bool) {
	sort.SliceStable(values, func(i, j int) bool {
		return SortKey(values[i], values[j], ascending) < 0
	})
}
