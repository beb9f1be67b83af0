package core

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"skipdb/pkg/core/skiplist"
)

// JoinStrategy names how Join pairs records.
type JoinStrategy string

const (
	// JoinMerge walks both key indexes in order.
	JoinMerge JoinStrategy = "merge"
	// JoinProbe looks every left key up in the right index.
	JoinProbe JoinStrategy = "probe"
	// JoinNested compares every pair of records.
	JoinNested JoinStrategy = "nested"
)

// resolveKey checks that f is declared on s with key type K and returns
// its index, nil when the field is not indexed.
func resolveKey[R comparable, K any](s *Store[R], f *Field[R, K]) (*Field[R, K], *keyIndex[R, K], error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	acc, ok := s.fields[f.Name()]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnregisteredField, s.name, f.Name())
	}
	declared, ok := acc.(*Field[R, K])
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s is declared with another key type", ErrKeyTypeMismatch, s.name, f.Name())
	}
	idx, ok := s.indexes[f.Name()]
	if !ok {
		return declared, nil, nil
	}
	ki, ok := idx.(*keyIndex[R, K])
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s index", ErrKeyTypeMismatch, s.name, f.Name())
	}
	return declared, ki, nil
}

func chooseStrategy(leftIndexed, rightIndexed bool) JoinStrategy {
	switch {
	case leftIndexed && rightIndexed:
		return JoinMerge
	case rightIndexed:
		return JoinProbe
	default:
		return JoinNested
	}
}

// ExplainJoin reports the strategy Join would use.
func ExplainJoin[L, R comparable, K any](left *Store[L], lk *Field[L, K], right *Store[R], rk *Field[R, K]) (JoinStrategy, error) {
	_, li, err := resolveKey(left, lk)
	if err != nil {
		return "", err
	}
	_, ri, err := resolveKey(right, rk)
	if err != nil {
		return "", err
	}
	return chooseStrategy(li != nil, ri != nil), nil
}

// Join pairs every left record with every right record whose key is equal
// and projects each pair through sel. Records with an absent key never
// join.
//
// A merge join returns pairs in key order, then bucket order. Probe and
// nested-loop joins follow left insertion order. Each store is read under
// its own lock; the two locks are never held together.
func Join[L, R comparable, K, T any](left *Store[L], lk *Field[L, K], right *Store[R], rk *Field[R, K], sel func(L, R) T) ([]T, error) {
	lf, li, err := resolveKey(left, lk)
	if err != nil {
		return nil, err
	}
	rf, ri, err := resolveKey(right, rk)
	if err != nil {
		return nil, err
	}

	strategy := chooseStrategy(li != nil, ri != nil)
	var out []T
	emit := func(l L, r R) {
		out = append(out, sel(l, r))
	}

	switch strategy {
	case JoinMerge:
		var le []skiplist.Entry[K, L]
		var re []skiplist.Entry[K, R]
		var g errgroup.Group
		g.Go(func() error {
			left.mutex.RLock()
			defer left.mutex.RUnlock()
			le = li.list.Snapshot()
			return nil
		})
		g.Go(func() error {
			right.mutex.RLock()
			defer right.mutex.RUnlock()
			re = ri.list.Snapshot()
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for l, r := range skiplist.MergeEntries(lf.compare, le, re) {
			emit(l, r)
		}

	case JoinProbe:
		type pair struct {
			l L
			r R
		}
		lrecs := left.All()
		var pairs []pair
		right.mutex.RLock()
		for _, l := range lrecs {
			k, ok := lf.get(l)
			if !ok {
				continue
			}
			for r := range ri.list.RangeScan(skiplist.Inclusive(k), skiplist.Inclusive(k)) {
				pairs = append(pairs, pair{l, r})
			}
		}
		right.mutex.RUnlock()
		for _, p := range pairs {
			emit(p.l, p.r)
		}

	case JoinNested:
		var lrecs []L
		var rrecs []R
		var g errgroup.Group
		g.Go(func() error {
			lrecs = left.All()
			return nil
		})
		g.Go(func() error {
			rrecs = right.All()
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		rkeys := make([]K, len(rrecs))
		rok := make([]bool, len(rrecs))
		for j, r := range rrecs {
			rkeys[j], rok[j] = rf.get(r)
		}
		for _, l := range lrecs {
			k, ok := lf.get(l)
			if !ok {
				continue
			}
			for j, r := range rrecs {
				if rok[j] && lf.compare(k, rkeys[j]) == 0 {
					emit(l, r)
				}
			}
		}
	}

	left.mon.Join(string(strategy))
	left.log.Debug("join", "strategy", strategy, "right", right.name, "key", lf.Name(), "rows", len(out))
	return out, nil
}
