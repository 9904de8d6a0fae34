package functions

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/graphforge/graphforge/pkg/value"
)

// Accumulator folds a stream of argument values (one call to Accumulate per
// input row) into a single result, implementing one of the aggregate
// functions in spec.md §4.5.2. The Aggregate operator (pkg/executor) creates
// one Accumulator per group per aggregate expression, feeds it every row in
// the group, and reads Result() once the group is exhausted.
type Accumulator interface {
	Accumulate(v value.Value)
	Result() (value.Value, error)
}

// NewAccumulator constructs the accumulator for the named aggregate
// function. distinct wraps it so repeated equal values (by EqualsStrict,
// i.e. NULL-equals-NULL) are only accumulated once.
func NewAccumulator(name string, distinct bool) (Accumulator, error) {
	var acc Accumulator
	switch strings.ToLower(name) {
	case "count":
		acc = &countAcc{}
	case "sum":
		acc = &sumAcc{}
	case "avg":
		acc = &avgAcc{}
	case "min":
		acc = &extremeAcc{pickMin: true}
	case "max":
		acc = &extremeAcc{pickMin: false}
	case "collect":
		acc = &collectAcc{}
	case "stdev":
		acc = &stdevAcc{sample: true}
	case "stdevp":
		acc = &stdevAcc{sample: false}
	case "percentilecont":
		acc = &percentileAcc{continuous: true}
	case "percentiledisc":
		acc = &percentileAcc{continuous: false}
	default:
		return nil, fmt.Errorf("unknown aggregate function %q", name)
	}
	if distinct {
		return &distinctAcc{inner: acc}, nil
	}
	return acc, nil
}

type distinctAcc struct {
	inner Accumulator
	seen  []value.Value
}

func (d *distinctAcc) Accumulate(v value.Value) {
	for _, s := range d.seen {
		if value.EqualsStrict(s, v) {
			return
		}
	}
	d.seen = append(d.seen, v)
	d.inner.Accumulate(v)
}

func (d *distinctAcc) Result() (value.Value, error) { return d.inner.Result() }

// countAcc implements count(*) (every row, including NULL) and count(expr)
// (NULL rows excluded) — the Aggregate operator distinguishes the two by
// whether it feeds this accumulator NULLs at all for count(*); for count(expr)
// it skips calling Accumulate on a NULL argument entirely.
type countAcc struct{ n int64 }

func (c *countAcc) Accumulate(v value.Value) { c.n++ }
func (c *countAcc) Result() (value.Value, error) { return value.Int(c.n), nil }

// sumAcc ignores NULL inputs and yields 0 for an empty group, per spec.md
// §4.5.2's explicit empty-group rule for sum.
type sumAcc struct {
	total   value.Value
	started bool
}

func (s *sumAcc) Accumulate(v value.Value) {
	if v.IsNull() {
		return
	}
	if !s.started {
		s.total = v
		s.started = true
		return
	}
	sum, err := value.Add(s.total, v)
	if err == nil {
		s.total = sum
	}
}

func (s *sumAcc) Result() (value.Value, error) {
	if !s.started {
		return value.Int(0), nil
	}
	return s.total, nil
}

// avgAcc ignores NULL inputs and yields NULL for an empty group.
type avgAcc struct {
	total value.Value
	count int64
}

func (a *avgAcc) Accumulate(v value.Value) {
	if v.IsNull() || !v.IsNumeric() {
		return
	}
	if a.count == 0 {
		a.total = v
	} else {
		sum, err := value.Add(a.total, v)
		if err != nil {
			return
		}
		a.total = sum
	}
	a.count++
}

func (a *avgAcc) Result() (value.Value, error) {
	if a.count == 0 {
		return value.Null, nil
	}
	return value.Float(a.total.AsFloat64() / float64(a.count)), nil
}

// extremeAcc implements min/max, comparing with value.Compare and ignoring
// NULL inputs; an empty group yields NULL.
type extremeAcc struct {
	pickMin bool
	best    value.Value
	has     bool
}

func (e *extremeAcc) Accumulate(v value.Value) {
	if v.IsNull() {
		return
	}
	if !e.has {
		e.best, e.has = v, true
		return
	}
	c, err := value.Compare(v, e.best)
	if err != nil {
		return
	}
	if (e.pickMin && c < 0) || (!e.pickMin && c > 0) {
		e.best = v
	}
}

func (e *extremeAcc) Result() (value.Value, error) {
	if !e.has {
		return value.Null, nil
	}
	return e.best, nil
}

// collectAcc gathers every non-NULL input into a list, in row order; an
// empty group yields an empty list, not NULL, per spec.md §4.5.2.
type collectAcc struct{ items []value.Value }

func (c *collectAcc) Accumulate(v value.Value) {
	if v.IsNull() {
		return
	}
	c.items = append(c.items, v)
}

func (c *collectAcc) Result() (value.Value, error) { return value.ListOf(c.items), nil }

// stdevAcc implements stDev (sample, n-1 denominator) and stDevP (population,
// n denominator), ignoring NULL inputs. Fewer than two samples yields 0 for
// the sample variant (no meaningful sample standard deviation); stDevP with
// zero samples yields 0.
type stdevAcc struct {
	sample bool
	values []float64
}

func (s *stdevAcc) Accumulate(v value.Value) {
	if v.IsNull() || !v.IsNumeric() {
		return
	}
	s.values = append(s.values, v.AsFloat64())
}

func (s *stdevAcc) Result() (value.Value, error) {
	n := len(s.values)
	if n == 0 {
		return value.Float(0), nil
	}
	var mean float64
	for _, f := range s.values {
		mean += f
	}
	mean /= float64(n)
	var sq float64
	for _, f := range s.values {
		d := f - mean
		sq += d * d
	}
	denom := float64(n)
	if s.sample {
		if n < 2 {
			return value.Float(0), nil
		}
		denom = float64(n - 1)
	}
	return value.Float(math.Sqrt(sq / denom)), nil
}

// percentileAcc implements percentileCont (linear interpolation between
// adjacent ranks) and percentileDisc (nearest actual value, rounding the
// rank up), per spec.md §4.5.2. Accumulate receives only the value; the
// percentile argument is supplied separately through SetPercentile (which
// calls WithPercentile) on every row, and the last one observed is used.
type percentileAcc struct {
	continuous bool
	values     []float64
	percentile float64
	hasPct     bool
}

func (p *percentileAcc) Accumulate(v value.Value) {
	if v.IsNull() || !v.IsNumeric() {
		return
	}
	p.values = append(p.values, v.AsFloat64())
}

// WithPercentile records the percentile argument for this row;
// NewAccumulator's Accumulator interface only threads a single value, so
// the executor reaches this method through SetPercentile.
func (p *percentileAcc) WithPercentile(pct float64) {
	p.percentile = pct
	p.hasPct = true
}

// SetPercentile assigns the percentile fraction to acc if it is (possibly
// under a distinct wrapper) a percentileCont/Disc accumulator, reporting
// whether acc accepted it. The executor calls this once per row alongside
// Accumulate, since percentileAcc isn't exported for a direct type assertion.
func SetPercentile(acc Accumulator, pct float64) bool {
	switch a := acc.(type) {
	case *distinctAcc:
		return SetPercentile(a.inner, pct)
	case *percentileAcc:
		a.WithPercentile(pct)
		return true
	default:
		return false
	}
}

func (p *percentileAcc) Result() (value.Value, error) {
	if len(p.values) == 0 {
		return value.Null, nil
	}
	vs := append([]float64{}, p.values...)
	sort.Float64s(vs)
	pct := p.percentile
	if pct < 0 || pct > 1 {
		return value.Null, fmt.Errorf("percentile must be between 0.0 and 1.0")
	}
	if len(vs) == 1 {
		return value.Float(vs[0]), nil
	}
	if !p.continuous {
		idx := int(math.Ceil(pct*float64(len(vs)))) - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(vs) {
			idx = len(vs) - 1
		}
		return value.Float(vs[idx]), nil
	}
	pos := pct * float64(len(vs)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return value.Float(vs[lo]), nil
	}
	frac := pos - float64(lo)
	return value.Float(vs[lo] + (vs[hi]-vs[lo])*frac), nil
}
