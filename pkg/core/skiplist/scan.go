package skiplist

import (
	"fmt"
	"iter"
	"slices"
)

// Bound is one end of a range scan. The zero value is unbounded.
type Bound[K any] struct {
	Value     K
	Inclusive bool
	Bounded   bool
}

// Unbounded returns an open end.
func Unbounded[K any]() Bound[K] { return Bound[K]{} }

// Inclusive returns a bound that admits v.
func Inclusive[K any](v K) Bound[K] { return Bound[K]{Value: v, Inclusive: true, Bounded: true} }

// Exclusive returns a bound that stops short of v.
func Exclusive[K any](v K) Bound[K] { return Bound[K]{Value: v, Bounded: true} }

// LowerString renders b as the left end of an interval, e.g. "[8" or "(-inf".
func (b Bound[K]) LowerString() string {
	switch {
	case !b.Bounded:
		return "(-inf"
	case b.Inclusive:
		return fmt.Sprintf("[%v", b.Value)
	default:
		return fmt.Sprintf("(%v", b.Value)
	}
}

// UpperString renders b as the right end of an interval.
func (b Bound[K]) UpperString() string {
	switch {
	case !b.Bounded:
		return "+inf)"
	case b.Inclusive:
		return fmt.Sprintf("%v]", b.Value)
	default:
		return fmt.Sprintf("%v)", b.Value)
	}
}

// RangeScan yields, in ascending key order, every record whose key lies
// between lo and hi. The sequence is lazy and restartable: each iteration
// descends from the head again and follows live links, so the index must
// not change while it is consumed.
func (l *Index[K, R]) RangeScan(lo, hi Bound[K]) iter.Seq[R] {
	return func(yield func(R) bool) {
		x := l.head
		if lo.Bounded {
			for i := l.level; i >= 0; i-- {
				for x.forward[i] != nil && l.compare(x.forward[i].key, lo.Value) < 0 {
					x = x.forward[i]
				}
			}
		}
		for x = x.forward[0]; x != nil; x = x.forward[0] {
			if lo.Bounded && !lo.Inclusive && l.compare(x.key, lo.Value) == 0 {
				continue
			}
			if hi.Bounded {
				c := l.compare(x.key, hi.Value)
				if c > 0 || (c == 0 && !hi.Inclusive) {
					return
				}
			}
			for _, rec := range x.bucket {
				if !yield(rec) {
					return
				}
			}
		}
	}
}

// Keys yields the distinct keys in ascending order.
func (l *Index[K, R]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for x := l.head.forward[0]; x != nil; x = x.forward[0] {
			if !yield(x.key) {
				return
			}
		}
	}
}

// Entries yields each key with its bucket. The bucket slice is shared with
// the index and must not be modified.
func (l *Index[K, R]) Entries() iter.Seq2[K, []R] {
	return func(yield func(K, []R) bool) {
		for x := l.head.forward[0]; x != nil; x = x.forward[0] {
			if !yield(x.key, x.bucket) {
				return
			}
		}
	}
}

// Entry is a detached copy of one key and its bucket.
type Entry[K any, R any] struct {
	Key     K
	Records []R
}

// Snapshot copies the level-0 sequence so it can be consumed after the
// caller releases whatever lock guards the index.
func (l *Index[K, R]) Snapshot() []Entry[K, R] {
	out := make([]Entry[K, R], 0, l.keys)
	for x := l.head.forward[0]; x != nil; x = x.forward[0] {
		out = append(out, Entry[K, R]{Key: x.key, Records: slices.Clone(x.bucket)})
	}
	return out
}

// MergeJoin pairs the records of left and right that share a key. Both
// level-0 sequences are walked once with a cursor each, so the cost is
// linear in the number of keys plus the size of the output; equal keys
// emit the cartesian product of the two buckets.
func MergeJoin[K any, L, R comparable](left *Index[K, L], right *Index[K, R]) iter.Seq2[L, R] {
	return func(yield func(L, R) bool) {
		ln, rn := left.head.forward[0], right.head.forward[0]
		for ln != nil && rn != nil {
			switch c := left.compare(ln.key, rn.key); {
			case c == 0:
				for _, a := range ln.bucket {
					for _, b := range rn.bucket {
						if !yield(a, b) {
							return
						}
					}
				}
				ln, rn = ln.forward[0], rn.forward[0]
			case c < 0:
				ln = ln.forward[0]
			default:
				rn = rn.forward[0]
			}
		}
	}
}

// Group holds both buckets for one key matched by MergeJoinGroups.
type Group[K any, L, R any] struct {
	Key   K
	Left  []L
	Right []R
}

// MergeJoinGroups is MergeJoin without the cartesian expansion: one Group
// per key present on both sides.
func MergeJoinGroups[K any, L, R comparable](left *Index[K, L], right *Index[K, R]) iter.Seq[Group[K, L, R]] {
	return func(yield func(Group[K, L, R]) bool) {
		ln, rn := left.head.forward[0], right.head.forward[0]
		for ln != nil && rn != nil {
			switch c := left.compare(ln.key, rn.key); {
			case c == 0:
				g := Group[K, L, R]{Key: ln.key, Left: slices.Clone(ln.bucket), Right: slices.Clone(rn.bucket)}
				if !yield(g) {
					return
				}
				ln, rn = ln.forward[0], rn.forward[0]
			case c < 0:
				ln = ln.forward[0]
			default:
				rn = rn.forward[0]
			}
		}
	}
}

// MergeEntries runs the merge-join over two snapshots ordered by compare.
func MergeEntries[K any, L, R any](compare func(a, b K) int, left []Entry[K, L], right []Entry[K, R]) iter.Seq2[L, R] {
	return func(yield func(L, R) bool) {
		i, j := 0, 0
		for i < len(left) && j < len(right) {
			switch c := compare(left[i].Key, right[j].Key); {
			case c == 0:
				for _, a := range left[i].Records {
					for _, b := range right[j].Records {
						if !yield(a, b) {
							return
						}
					}
				}
				i++
				j++
			case c < 0:
				i++
			default:
				j++
			}
		}
	}
}
