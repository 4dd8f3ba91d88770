// Package keyspace implements compound-key arithmetic over a table's
// primary key columns: ordered tuples, half-open ranges, and the mesh
// construction used to cover the union of two tables' observed key ranges.
package keyspace

import (
	"fmt"
	"time"
)

// Key is an ordered tuple of primary-key column values, compared
// component-wise (lexicographic order). Supported component types are
// int64, float64, string, and time.Time — the key-eligible types named in
// spec.md §3.
type Key []any

// Compare returns -1, 0, or 1 as k is less than, equal to, or greater than
// other. Keys being compared must have the same length and, component-wise,
// the same concrete type; mismatches panic, since a schema mismatch between
// the two sides must be caught by internal/reconcile before bisection
// begins, not discovered mid-comparison.
func (k Key) Compare(other Key) int {
	if len(k) != len(other) {
		panic(fmt.Sprintf("keyspace: key arity mismatch: %d vs %d", len(k), len(other)))
	}
	for i := range k {
		c := compareComponent(k[i], other[i])
		if c != 0 {
			return c
		}
	}
	return 0
}

// Less reports whether k sorts strictly before other.
func (k Key) Less(other Key) bool {
	return k.Compare(other) < 0
}

// Equal reports whether k and other compare equal component-wise.
func (k Key) Equal(other Key) bool {
	return k.Compare(other) == 0
}

// String renders the key as a parenthesized tuple, for logging and for the
// presentation-only InfoTree key_range string (spec.md §9).
func (k Key) String() string {
	s := "("
	for i, v := range k {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%v", v)
	}
	return s + ")"
}

func compareComponent(a, b any) int {
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		default:
			return 0
		}
	default:
		panic(fmt.Sprintf("keyspace: unsupported key component type %T", a))
	}
}

// Successor returns the smallest key strictly greater than k under the
// per-component successor function for its concrete type (spec.md §3: for
// numeric keys, max_key = observed_max + 1). Only the last component is
// advanced; compound-key successor is rarely needed since ranges are built
// from observed boundaries rather than by incrementing a max key, but
// new_key_bounds callers that want a half-open upper bound from an observed
// maximum value use this.
func (k Key) Successor() Key {
	out := make(Key, len(k))
	copy(out, k)
	last := len(out) - 1
	switch v := out[last].(type) {
	case int64:
		out[last] = v + 1
	case float64:
		out[last] = v + 1
	case string:
		out[last] = v + "\x00"
	case time.Time:
		out[last] = v.Add(time.Nanosecond)
	default:
		panic(fmt.Sprintf("keyspace: unsupported key component type %T", v))
	}
	return out
}
