package executor

import "github.com/graphforge/graphforge/pkg/value"

// Binding is an immutable row of variable bindings. Extending it with With
// never mutates or copies the existing chain, so two iterators that forked
// from the same prefix (the common case: every row an Expand produces
// shares its input row's bindings) can hold onto that prefix independently.
type Binding struct {
	top *frame
}

type frame struct {
	parent *frame
	name   string
	value  value.Value
}

// Empty is the starting row every top-level query and leaf pattern scan
// begins from.
var Empty = Binding{}

// With returns a new Binding equal to b plus (or overriding) one variable.
func (b Binding) With(name string, v value.Value) Binding {
	return Binding{top: &frame{parent: b.top, name: name, value: v}}
}

// Get looks up a variable, walking from the most recently bound frame
// backward so a re-bound name shadows its earlier value.
func (b Binding) Get(name string) (value.Value, bool) {
	for f := b.top; f != nil; f = f.parent {
		if f.name == name {
			return f.value, true
		}
	}
	return value.Null, false
}

// MustGet returns the bound value or value.Null if name was never bound.
func (b Binding) MustGet(name string) value.Value {
	v, _ := b.Get(name)
	return v
}

// Names returns every distinct variable name currently bound, most
// recently bound first. Used by Project "*" expansion and row equality for
// DISTINCT/UNION dedup.
func (b Binding) Names() []string {
	seen := map[string]bool{}
	var out []string
	for f := b.top; f != nil; f = f.parent {
		if !seen[f.name] {
			seen[f.name] = true
			out = append(out, f.name)
		}
	}
	return out
}

// Project builds a fresh binding containing exactly the given names, taken
// from b (or NULL if a name was never bound) — the re-scoping WITH performs
// at its pipeline boundary (spec.md §3.1): names it doesn't re-list drop out
// of scope even though this Binding's underlying frames could still reach
// them.
func (b Binding) Project(names []string) Binding {
	out := Empty
	for _, n := range names {
		out = out.With(n, b.MustGet(n))
	}
	return out
}

// Equal implements the row-equality DISTINCT/UNION/grouping need: same
// bound names, same values under value.EqualsStrict (NULL equals NULL).
func (a Binding) Equal(b Binding) bool {
	an, bn := a.Names(), b.Names()
	if len(an) != len(bn) {
		return false
	}
	for _, n := range an {
		av, aok := a.Get(n)
		bv, bok := b.Get(n)
		if aok != bok {
			return false
		}
		if !value.EqualsStrict(av, bv) {
			return false
		}
	}
	return true
}
