// Package memory holds a store's records in insertion order.
package memory

import (
	"github.com/google/btree"
)

type item[R any] struct {
	seq uint64
	rec R
}

func lessItem[R any](a, b item[R]) bool { return a.seq < b.seq }

// Table is an insertion-ordered set of records keyed by identity. Every
// record gets a sequence number on Put; iteration follows it. Table is
// not safe for concurrent use.
type Table[R comparable] struct {
	tree *btree.BTreeG[item[R]]
	seqs map[R]uint64
	next uint64
}

func NewTable[R comparable](degree int) *Table[R] {
	return &Table[R]{
		tree: btree.NewG(degree, lessItem[R]),
		seqs: make(map[R]uint64),
	}
}

// Put appends rec and returns its sequence number. ok is false when rec is
// already present.
func (t *Table[R]) Put(rec R) (seq uint64, ok bool) {
	if _, found := t.seqs[rec]; found {
		return 0, false
	}
	t.next++
	t.seqs[rec] = t.next
	t.tree.ReplaceOrInsert(item[R]{seq: t.next, rec: rec})
	return t.next, true
}

func (t *Table[R]) Has(rec R) bool {
	_, ok := t.seqs[rec]
	return ok
}

// Seq returns the sequence number rec was stored under.
func (t *Table[R]) Seq(rec R) (uint64, bool) {
	seq, ok := t.seqs[rec]
	return seq, ok
}

func (t *Table[R]) Delete(rec R) bool {
	seq, ok := t.seqs[rec]
	if !ok {
		return false
	}
	delete(t.seqs, rec)
	t.tree.Delete(item[R]{seq: seq})
	return true
}

// Iterator visits records in insertion order until fn returns false.
func (t *Table[R]) Iterator(fn func(rec R) bool) {
	t.tree.Ascend(func(i item[R]) bool {
		return fn(i.rec)
	})
}

// Records returns a snapshot in insertion order.
func (t *Table[R]) Records() []R {
	out := make([]R, 0, t.tree.Len())
	t.Iterator(func(rec R) bool {
		out = append(out, rec)
		return true
	})
	return out
}

func (t *Table[R]) Count() int {
	return t.tree.Len()
}
