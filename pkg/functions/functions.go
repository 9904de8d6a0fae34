// Package functions implements GraphForge's built-in scalar, predicate,
// list, numeric, string, temporal, spatial, and path functions (spec.md
// §4.5.2), plus the aggregate accumulators in aggregate.go. Every function
// here is a pure Value-in/Value-out transform; the evaluator (pkg/executor)
// is responsible for evaluating argument expressions against a binding
// before calling into the registry, and for the handful of forms — the
// quantifiers and the temporal field accessors — that need more than plain
// values to evaluate.
package functions

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/graphforge/graphforge/pkg/value"
)

// Func is a built-in function's implementation: it receives already-
// evaluated arguments and returns a Value or an error. Type errors on
// structurally wrong arguments are returned as *value.TypeMismatchError-
// style plain errors; the executor prefixes them with the function name.
type Func func(args []value.Value) (value.Value, error)

// Registry holds every built-in function, keyed by lowercase name (Cypher
// function names are case-insensitive by convention in this implementation).
type Registry struct {
	funcs map[string]Func
	now   func() time.Time
	rng   *rand.Rand
}

// NewRegistry builds the full built-in function set. now is injected so
// timestamp()/date()/datetime()/time() with no argument are deterministic
// under test; production callers pass time.Now.
func NewRegistry(now func() time.Time) *Registry {
	r := &Registry{funcs: map[string]Func{}, now: now, rng: rand.New(rand.NewSource(now().UnixNano()))}
	r.registerScalar()
	r.registerPredicate()
	r.registerList()
	r.registerNumeric()
	r.registerString()
	r.registerTemporal()
	r.registerSpatial()
	r.registerPath()
	return r
}

// Call invokes the named function. ok is false for an unregistered name, so
// the evaluator can distinguish "unknown function" from a function error.
func (r *Registry) Call(name string, args []value.Value) (value.Value, error, bool) {
	f, ok := r.funcs[strings.ToLower(name)]
	if !ok {
		return value.Null, nil, false
	}
	v, err := f(args)
	return v, err, true
}

func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Null
}

// --- Scalar ---

func (r *Registry) registerScalar() {
	r.funcs["coalesce"] = func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return value.Null, nil
	}
	r.funcs["id"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindNode:
			return value.Int(int64(v.Node().ID)), nil
		case value.KindEdge:
			return value.Int(int64(v.Edge().ID)), nil
		case value.KindNull:
			return value.Null, nil
		default:
			return value.Null, fmt.Errorf("id() expects a node or relationship")
		}
	}
	r.funcs["type"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		if v.Kind() == value.KindNull {
			return value.Null, nil
		}
		if v.Kind() != value.KindEdge {
			return value.Null, fmt.Errorf("type() expects a relationship")
		}
		return value.Str(v.Edge().Type), nil
	}
	r.funcs["labels"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		if v.Kind() == value.KindNull {
			return value.Null, nil
		}
		if v.Kind() != value.KindNode {
			return value.Null, fmt.Errorf("labels() expects a node")
		}
		out := make([]value.Value, len(v.Node().Labels))
		for i, l := range v.Node().Labels {
			out[i] = value.Str(l)
		}
		return value.ListOf(out), nil
	}
	r.funcs["properties"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindNode:
			return value.MapOf(v.Node().Properties.Clone()), nil
		case value.KindEdge:
			return value.MapOf(v.Edge().Properties.Clone()), nil
		case value.KindMap:
			return v, nil
		case value.KindNull:
			return value.Null, nil
		default:
			return value.Null, fmt.Errorf("properties() expects a node, relationship, or map")
		}
	}
	r.funcs["keys"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		var m *value.OrderedMap
		switch v.Kind() {
		case value.KindNode:
			m = v.Node().Properties
		case value.KindEdge:
			m = v.Edge().Properties
		case value.KindMap:
			m = v.Map()
		case value.KindNull:
			return value.Null, nil
		default:
			return value.Null, fmt.Errorf("keys() expects a node, relationship, or map")
		}
		out := make([]value.Value, m.Len())
		for i, k := range m.Keys() {
			out[i] = value.Str(k)
		}
		return value.ListOf(out), nil
	}
	r.funcs["timestamp"] = func(args []value.Value) (value.Value, error) {
		return value.Int(r.now().UnixMilli()), nil
	}
	r.funcs["toboolean"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindBoolean:
			return v, nil
		case value.KindString:
			switch strings.ToLower(v.String()) {
			case "true":
				return value.Bool(true), nil
			case "false":
				return value.Bool(false), nil
			default:
				return value.Null, nil
			}
		case value.KindNull:
			return value.Null, nil
		default:
			return value.Null, nil
		}
	}
	r.funcs["tointeger"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindInt:
			return v, nil
		case value.KindFloat:
			return value.Int(int64(v.Float())), nil
		case value.KindString:
			i, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
			if err != nil {
				if f, ferr := strconv.ParseFloat(strings.TrimSpace(v.String()), 64); ferr == nil {
					return value.Int(int64(f)), nil
				}
				return value.Null, nil
			}
			return value.Int(i), nil
		default:
			return value.Null, nil
		}
	}
	r.funcs["tofloat"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindFloat:
			return v, nil
		case value.KindInt:
			return value.Float(float64(v.Int())), nil
		case value.KindString:
			f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
			if err != nil {
				return value.Null, nil
			}
			return value.Float(f), nil
		default:
			return value.Null, nil
		}
	}
	r.funcs["tostring"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindNull:
			return value.Null, nil
		case value.KindList, value.KindMap, value.KindNode, value.KindEdge, value.KindPath:
			return value.Null, nil
		default:
			return value.Str(value.Stringify(v)), nil
		}
	}
}

// --- Predicate ---

func (r *Registry) registerPredicate() {
	r.funcs["exists"] = func(args []value.Value) (value.Value, error) {
		return value.Bool(!arg(args, 0).IsNull()), nil
	}
	r.funcs["isempty"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindString:
			return value.Bool(v.String() == ""), nil
		case value.KindList:
			return value.Bool(len(v.List()) == 0), nil
		case value.KindMap:
			return value.Bool(v.Map().Len() == 0), nil
		case value.KindNull:
			return value.Null, nil
		default:
			return value.Null, fmt.Errorf("isEmpty() expects a string, list, or map")
		}
	}
}

// AllTri, AnyTri, NoneTri, SingleTri combine the per-element three-valued
// predicate results of the all/any/none/single quantifiers (spec.md
// §4.5.2); the evaluator computes one Tri for every list element and
// folds the slice with these.
func AllTri(results []value.Tri) value.Tri {
	sawUnknown := false
	for _, t := range results {
		if t == value.False {
			return value.False
		}
		if t == value.Unknown {
			sawUnknown = true
		}
	}
	if sawUnknown {
		return value.Unknown
	}
	return value.True
}

func AnyTri(results []value.Tri) value.Tri {
	sawUnknown := false
	for _, t := range results {
		if t == value.True {
			return value.True
		}
		if t == value.Unknown {
			sawUnknown = true
		}
	}
	if sawUnknown {
		return value.Unknown
	}
	return value.False
}

func NoneTri(results []value.Tri) value.Tri {
	return value.Not(AnyTri(results))
}

func SingleTri(results []value.Tri) value.Tri {
	count := 0
	sawUnknown := false
	for _, t := range results {
		switch t {
		case value.True:
			count++
		case value.Unknown:
			sawUnknown = true
		}
	}
	if count > 1 {
		return value.False
	}
	if sawUnknown {
		return value.Unknown
	}
	if count == 1 {
		return value.True
	}
	return value.False
}

// --- List ---

func (r *Registry) registerList() {
	r.funcs["size"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindList:
			return value.Int(int64(len(v.List()))), nil
		case value.KindString:
			return value.Int(int64(len([]rune(v.String())))), nil
		case value.KindNull:
			return value.Null, nil
		default:
			return value.Null, fmt.Errorf("size() expects a list or string")
		}
	}
	r.funcs["head"] = func(args []value.Value) (value.Value, error) {
		l := arg(args, 0)
		if l.Kind() == value.KindNull {
			return value.Null, nil
		}
		items := l.List()
		if len(items) == 0 {
			return value.Null, nil
		}
		return items[0], nil
	}
	r.funcs["last"] = func(args []value.Value) (value.Value, error) {
		l := arg(args, 0)
		if l.Kind() == value.KindNull {
			return value.Null, nil
		}
		items := l.List()
		if len(items) == 0 {
			return value.Null, nil
		}
		return items[len(items)-1], nil
	}
	r.funcs["tail"] = func(args []value.Value) (value.Value, error) {
		l := arg(args, 0)
		if l.Kind() == value.KindNull {
			return value.Null, nil
		}
		items := l.List()
		if len(items) <= 1 {
			return value.ListOf(nil), nil
		}
		return value.ListOf(append([]value.Value{}, items[1:]...)), nil
	}
	r.funcs["range"] = func(args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.Null, fmt.Errorf("range() requires start and end")
		}
		start, end := arg(args, 0).Int(), arg(args, 1).Int()
		step := int64(1)
		if len(args) > 2 {
			step = arg(args, 2).Int()
		}
		if step == 0 {
			return value.Null, fmt.Errorf("range() step must not be 0")
		}
		var out []value.Value
		if step > 0 {
			for i := start; i <= end; i += step {
				out = append(out, value.Int(i))
			}
		} else {
			for i := start; i >= end; i += step {
				out = append(out, value.Int(i))
			}
		}
		return value.ListOf(out), nil
	}
}

// --- Numeric ---

func (r *Registry) registerNumeric() {
	r.funcs["abs"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		if v.Kind() == value.KindInt {
			n := v.Int()
			if n < 0 {
				n = -n
			}
			return value.Int(n), nil
		}
		return value.Float(math.Abs(v.AsFloat64())), nil
	}
	r.funcs["ceil"] = func(args []value.Value) (value.Value, error) {
		return value.Float(math.Ceil(arg(args, 0).AsFloat64())), nil
	}
	r.funcs["floor"] = func(args []value.Value) (value.Value, error) {
		return value.Float(math.Floor(arg(args, 0).AsFloat64())), nil
	}
	r.funcs["round"] = func(args []value.Value) (value.Value, error) {
		return value.Float(math.Round(arg(args, 0).AsFloat64())), nil
	}
	r.funcs["sign"] = func(args []value.Value) (value.Value, error) {
		f := arg(args, 0).AsFloat64()
		switch {
		case f > 0:
			return value.Int(1), nil
		case f < 0:
			return value.Int(-1), nil
		default:
			return value.Int(0), nil
		}
	}
	r.funcs["sqrt"] = func(args []value.Value) (value.Value, error) {
		return value.Float(math.Sqrt(arg(args, 0).AsFloat64())), nil
	}
	r.funcs["rand"] = func(args []value.Value) (value.Value, error) {
		return value.Float(r.rng.Float64()), nil
	}
}

// --- String ---

func (r *Registry) registerString() {
	r.funcs["substring"] = func(args []value.Value) (value.Value, error) {
		s := []rune(arg(args, 0).String())
		start := int(arg(args, 1).Int())
		if start < 0 {
			start = 0
		}
		if start > len(s) {
			start = len(s)
		}
		end := len(s)
		if len(args) > 2 {
			length := int(arg(args, 2).Int())
			if start+length < end {
				end = start + length
			}
		}
		return value.Str(string(s[start:end])), nil
	}
	r.funcs["trim"] = func(args []value.Value) (value.Value, error) {
		return value.Str(strings.TrimSpace(arg(args, 0).String())), nil
	}
	r.funcs["ltrim"] = func(args []value.Value) (value.Value, error) {
		return value.Str(strings.TrimLeft(arg(args, 0).String(), " \t\n\r")), nil
	}
	r.funcs["rtrim"] = func(args []value.Value) (value.Value, error) {
		return value.Str(strings.TrimRight(arg(args, 0).String(), " \t\n\r")), nil
	}
	r.funcs["upper"] = func(args []value.Value) (value.Value, error) {
		return value.Str(strings.ToUpper(arg(args, 0).String())), nil
	}
	r.funcs["lower"] = func(args []value.Value) (value.Value, error) {
		return value.Str(strings.ToLower(arg(args, 0).String())), nil
	}
	r.funcs["split"] = func(args []value.Value) (value.Value, error) {
		parts := strings.Split(arg(args, 0).String(), arg(args, 1).String())
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.Str(p)
		}
		return value.ListOf(out), nil
	}
	r.funcs["replace"] = func(args []value.Value) (value.Value, error) {
		return value.Str(strings.ReplaceAll(arg(args, 0).String(), arg(args, 1).String(), arg(args, 2).String())), nil
	}
	r.funcs["left"] = func(args []value.Value) (value.Value, error) {
		s := []rune(arg(args, 0).String())
		n := int(arg(args, 1).Int())
		if n < 0 {
			n = 0
		}
		if n > len(s) {
			n = len(s)
		}
		return value.Str(string(s[:n])), nil
	}
	r.funcs["right"] = func(args []value.Value) (value.Value, error) {
		s := []rune(arg(args, 0).String())
		n := int(arg(args, 1).Int())
		if n < 0 {
			n = 0
		}
		if n > len(s) {
			n = len(s)
		}
		return value.Str(string(s[len(s)-n:])), nil
	}
	// reverse is dispatched by operand kind: string reverse or list reverse
	// share one openCypher function name.
	r.funcs["reverse"] = func(args []value.Value) (value.Value, error) {
		v := arg(args, 0)
		switch v.Kind() {
		case value.KindString:
			runes := []rune(v.String())
			for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
				runes[i], runes[j] = runes[j], runes[i]
			}
			return value.Str(string(runes)), nil
		case value.KindList:
			items := v.List()
			out := make([]value.Value, len(items))
			for i, it := range items {
				out[len(items)-1-i] = it
			}
			return value.ListOf(out), nil
		case value.KindNull:
			return value.Null, nil
		default:
			return value.Null, fmt.Errorf("reverse() expects a string or list")
		}
	}
}

// --- Temporal ---

func (r *Registry) registerTemporal() {
	r.funcs["date"] = func(args []value.Value) (value.Value, error) {
		t, err := value.ParseDate(stringArgOrEmpty(args), r.now)
		if err != nil {
			return value.Null, err
		}
		return value.TemporalOf(value.KindDate, t), nil
	}
	r.funcs["datetime"] = func(args []value.Value) (value.Value, error) {
		t, err := value.ParseDateTime(stringArgOrEmpty(args), r.now)
		if err != nil {
			return value.Null, err
		}
		return value.TemporalOf(value.KindDateTime, t), nil
	}
	r.funcs["time"] = func(args []value.Value) (value.Value, error) {
		t, err := value.ParseTime(stringArgOrEmpty(args), r.now)
		if err != nil {
			return value.Null, err
		}
		return value.TemporalOf(value.KindTime, t), nil
	}
	r.funcs["duration"] = func(args []value.Value) (value.Value, error) {
		t, err := value.ParseDuration(arg(args, 0).String())
		if err != nil {
			return value.Null, err
		}
		return value.TemporalOf(value.KindDuration, t), nil
	}
}

func stringArgOrEmpty(args []value.Value) string {
	if len(args) == 0 || arg(args, 0).IsNull() {
		return ""
	}
	return arg(args, 0).String()
}

// --- Spatial ---

func (r *Registry) registerSpatial() {
	r.funcs["point"] = func(args []value.Value) (value.Value, error) {
		m := arg(args, 0)
		if m.Kind() != value.KindMap {
			return value.Null, fmt.Errorf("point() expects a map")
		}
		p, err := value.NewPointFromMap(m.Map().Get)
		if err != nil {
			return value.Null, err
		}
		return value.PointOf(p), nil
	}
	r.funcs["distance"] = func(args []value.Value) (value.Value, error) {
		a, b := arg(args, 0), arg(args, 1)
		if a.Kind() != value.KindPoint || b.Kind() != value.KindPoint {
			return value.Null, fmt.Errorf("distance() expects two points")
		}
		return value.DistanceOf(value.Distance(a.Point(), b.Point())), nil
	}
}

// --- Path ---

func (r *Registry) registerPath() {
	r.funcs["length"] = func(args []value.Value) (value.Value, error) {
		p := arg(args, 0)
		if p.Kind() == value.KindNull {
			return value.Null, nil
		}
		if p.Kind() != value.KindPath {
			return value.Null, fmt.Errorf("length() expects a path")
		}
		return value.Int(int64(p.Path().Length())), nil
	}
	r.funcs["nodes"] = func(args []value.Value) (value.Value, error) {
		p := arg(args, 0)
		if p.Kind() != value.KindPath {
			return value.Null, fmt.Errorf("nodes() expects a path")
		}
		out := make([]value.Value, len(p.Path().Nodes))
		for i, n := range p.Path().Nodes {
			out[i] = value.NodeOf(n)
		}
		return value.ListOf(out), nil
	}
	r.funcs["relationships"] = func(args []value.Value) (value.Value, error) {
		p := arg(args, 0)
		if p.Kind() != value.KindPath {
			return value.Null, fmt.Errorf("relationships() expects a path")
		}
		out := make([]value.Value, len(p.Path().Edges))
		for i, e := range p.Path().Edges {
			out[i] = value.EdgeOf(e)
		}
		return value.ListOf(out), nil
	}
}
