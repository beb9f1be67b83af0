package core

import (
	"cmp"
	"fmt"
	"iter"

	"skipdb/pkg/common"
	"skipdb/pkg/core/skiplist"
	"skipdb/pkg/query"
)

// Accessor is a named field of R that a store can index, filter and sort
// on. Build one with NewField, NewOptionalField or NewFieldFunc.
type Accessor[R comparable] interface {
	Name() string

	predicate(op query.Op, v any) (func(R) bool, error)
	order(a, b R) int
	newIndex(unique bool, opts []skiplist.Option) fieldIndex[R]
}

// Field reads a key of type K from a record. The second result of the
// getter reports whether the value is present; absent values are never
// indexed and compare only under = NULL and != NULL.
type Field[R comparable, K any] struct {
	name    string
	get     func(R) (K, bool)
	compare func(a, b K) int
}

// NewField declares an always-present field with a naturally ordered key.
func NewField[R comparable, K cmp.Ordered](name string, get func(R) K) *Field[R, K] {
	return &Field[R, K]{
		name:    name,
		get:     func(r R) (K, bool) { return get(r), true },
		compare: cmp.Compare[K],
	}
}

// NewOptionalField declares a nullable field with a naturally ordered key.
func NewOptionalField[R comparable, K cmp.Ordered](name string, get func(R) (K, bool)) *Field[R, K] {
	return &Field[R, K]{name: name, get: get, compare: cmp.Compare[K]}
}

// NewFieldFunc declares a field whose keys are ordered by compare, which
// must be a total order.
func NewFieldFunc[R comparable, K any](name string, get func(R) (K, bool), compare func(a, b K) int) *Field[R, K] {
	return &Field[R, K]{name: name, get: get, compare: compare}
}

func (f *Field[R, K]) Name() string { return f.name }

// Value returns the field value of r and whether it is present.
func (f *Field[R, K]) Value(r R) (K, bool) { return f.get(r) }

// literal is a predicate value converted for comparison with keys of one
// field. A fractional number against an integer key has no exact key; it
// sits strictly between the keys lo and hi.
type literal[K any] struct {
	key     K
	lo, hi  K
	between bool
}

func (f *Field[R, K]) literal(v any) (literal[K], error) {
	if k, ok := common.Convert[K](v); ok {
		return literal[K]{key: k}, nil
	}
	if lo, hi, ok := common.Bracket[K](v); ok {
		return literal[K]{lo: lo, hi: hi, between: true}, nil
	}
	var zero K
	return literal[K]{}, fmt.Errorf("%w: %s expects %T, got %T", ErrInvalidLiteral, f.name, zero, v)
}

// compareTo orders key x against the literal; never 0 when between.
func (l literal[K]) compareTo(compare func(a, b K) int, x K) int {
	if !l.between {
		return compare(x, l.key)
	}
	if compare(x, l.lo) <= 0 {
		return -1
	}
	return 1
}

// bounds returns the key range satisfying "key op l" for a range operator.
func (l literal[K]) bounds(op query.Op) (lo, hi skiplist.Bound[K]) {
	lo, hi = skiplist.Unbounded[K](), skiplist.Unbounded[K]()
	if l.between {
		switch op {
		case query.OpEq:
			return skiplist.Exclusive(l.lo), skiplist.Exclusive(l.hi)
		case query.OpGt, query.OpGte:
			return skiplist.Exclusive(l.lo), hi
		case query.OpLt, query.OpLte:
			return lo, skiplist.Exclusive(l.hi)
		}
		return lo, hi
	}
	switch op {
	case query.OpEq:
		return skiplist.Inclusive(l.key), skiplist.Inclusive(l.key)
	case query.OpGt:
		return skiplist.Exclusive(l.key), hi
	case query.OpGte:
		return skiplist.Inclusive(l.key), hi
	case query.OpLt:
		return lo, skiplist.Exclusive(l.key)
	case query.OpLte:
		return lo, skiplist.Inclusive(l.key)
	}
	return lo, hi
}

// predicate builds the residual matcher of "f op v". The literal is
// converted once, here.
func (f *Field[R, K]) predicate(op query.Op, v any) (func(R) bool, error) {
	if v == nil {
		switch op {
		case query.OpEq:
			return func(r R) bool { _, ok := f.get(r); return !ok }, nil
		case query.OpNe:
			return func(r R) bool { _, ok := f.get(r); return ok }, nil
		default:
			return func(R) bool { return false }, nil
		}
	}
	lit, err := f.literal(v)
	if err != nil {
		return nil, err
	}
	return func(r R) bool {
		x, ok := f.get(r)
		if !ok {
			return op == query.OpNe
		}
		return holds(op, lit.compareTo(f.compare, x))
	}, nil
}

func holds(op query.Op, c int) bool {
	switch op {
	case query.OpEq:
		return c == 0
	case query.OpNe:
		return c != 0
	case query.OpGt:
		return c > 0
	case query.OpGte:
		return c >= 0
	case query.OpLt:
		return c < 0
	case query.OpLte:
		return c <= 0
	}
	return false
}

// order sorts absent values before present ones.
func (f *Field[R, K]) order(a, b R) int {
	x, okx := f.get(a)
	y, oky := f.get(b)
	switch {
	case !okx && !oky:
		return 0
	case !okx:
		return -1
	case !oky:
		return 1
	}
	return f.compare(x, y)
}

func (f *Field[R, K]) newIndex(unique bool, opts []skiplist.Option) fieldIndex[R] {
	if unique {
		opts = append(opts[:len(opts):len(opts)], skiplist.WithUnique())
	}
	return newKeyIndex(f, opts)
}

// fieldIndex is the type-erased view of a secondary index the store and
// planner work with.
type fieldIndex[R comparable] interface {
	name() string
	unique() bool
	conflicts(r R) bool
	insert(r R) error
	remove(r R) bool
	// scan returns the records satisfying every condition, each a range
	// operator on this field with a non-nil literal.
	scan(conds []*query.Condition) (iter.Seq[R], string, error)
	fresh() fieldIndex[R]
	len() int
	keyCount() int
}

type keyIndex[R comparable, K any] struct {
	field *Field[R, K]
	list  *skiplist.Index[K, R]
	opts  []skiplist.Option
	// key each record was filed under
	keys map[R]K
}

func newKeyIndex[R comparable, K any](f *Field[R, K], opts []skiplist.Option) *keyIndex[R, K] {
	return &keyIndex[R, K]{
		field: f,
		list:  skiplist.NewFunc[K, R](f.compare, opts...),
		opts:  opts,
		keys:  make(map[R]K),
	}
}

func (ix *keyIndex[R, K]) name() string { return ix.field.name }
func (ix *keyIndex[R, K]) unique() bool { return ix.list.Unique() }
func (ix *keyIndex[R, K]) len() int     { return ix.list.Len() }

func (ix *keyIndex[R, K]) keyCount() int { return ix.list.KeyCount() }

func (ix *keyIndex[R, K]) conflicts(r R) bool {
	k, ok := ix.field.get(r)
	return ok && ix.list.Conflicts(k)
}

func (ix *keyIndex[R, K]) insert(r R) error {
	k, ok := ix.field.get(r)
	if !ok {
		return nil
	}
	if err := ix.list.Insert(k, r); err != nil {
		return err
	}
	ix.keys[r] = k
	return nil
}

func (ix *keyIndex[R, K]) remove(r R) bool {
	k, ok := ix.keys[r]
	if !ok {
		return false
	}
	delete(ix.keys, r)
	return ix.list.Remove(k, r)
}

func (ix *keyIndex[R, K]) fresh() fieldIndex[R] {
	return newKeyIndex(ix.field, ix.opts)
}

// scan returns the records whose key satisfies every condition in conds,
// tightening one range over all of them.
func (ix *keyIndex[R, K]) scan(conds []*query.Condition) (iter.Seq[R], string, error) {
	lo, hi := skiplist.Unbounded[K](), skiplist.Unbounded[K]()
	for _, c := range conds {
		if !rangeOp(c.Op) {
			return nil, "", fmt.Errorf("%w: %s on index %s", ErrUnsupportedOperator, c.Op, ix.field.name)
		}
		lit, err := ix.field.literal(c.Value)
		if err != nil {
			return nil, "", err
		}
		l, h := lit.bounds(c.Op)
		if l.Bounded {
			lo = ix.tighter(lo, l, 1)
		}
		if h.Bounded {
			hi = ix.tighter(hi, h, -1)
		}
	}
	desc := fmt.Sprintf("INDEX_RANGE(%s, %s, %s)", ix.field.name, lo.LowerString(), hi.UpperString())
	return ix.list.RangeScan(lo, hi), desc, nil
}

// tighter picks the more restrictive of two bounds on the same side; dir
// is 1 for lower bounds and -1 for upper bounds.
func (ix *keyIndex[R, K]) tighter(cur, next skiplist.Bound[K], dir int) skiplist.Bound[K] {
	if !cur.Bounded {
		return next
	}
	c := ix.field.compare(next.Value, cur.Value) * dir
	if c > 0 || (c == 0 && !next.Inclusive) {
		return next
	}
	return cur
}

// rangeOp reports whether op maps onto an index range.
func rangeOp(op query.Op) bool {
	switch op {
	case query.OpEq, query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		return true
	}
	return false
}
