package core

import (
	"cmp"
	"slices"
	"time"

	"skipdb/pkg/query"
)

// Explain plans q without executing it.
func (s *Store[R]) Explain(q Query) (*Plan[R], error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.planLocked(q)
}

// Find returns the records matching q. Without an ordering the result
// follows insertion order.
func (s *Store[R]) Find(q Query) ([]R, error) {
	out, _, err := s.FindPlan(q)
	return out, err
}

// FindPlan is Find that also returns the plan the records came from.
func (s *Store[R]) FindPlan(q Query) ([]R, *Plan[R], error) {
	start := time.Now()

	s.mutex.RLock()
	plan, err := s.planLocked(q)
	if err != nil {
		s.mutex.RUnlock()
		return nil, nil, err
	}
	out := s.executeLocked(plan)
	s.mutex.RUnlock()

	out = arrange(out, plan)
	s.mon.Query(s.name, plan.Kind(), time.Since(start))
	s.log.Debug("query", "plan", plan.String(), "rows", len(out))
	return out, plan, nil
}

// Count returns the number of records matching filter.
func (s *Store[R]) Count(filter query.Node) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	plan, err := s.planLocked(Query{Filter: filter})
	if err != nil {
		return 0, err
	}
	if plan.root.indexed() {
		n := 0
		for _, rec := range plan.root.scan() {
			if s.table.Has(rec) {
				n++
			}
		}
		return n, nil
	}
	n := 0
	s.table.Iterator(func(rec R) bool {
		if plan.root.match(rec) {
			n++
		}
		return true
	})
	return n, nil
}

// Select runs q on s and projects every result through fn.
func Select[R comparable, T any](s *Store[R], q Query, fn func(R) T) ([]T, error) {
	recs, err := s.Find(q)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(recs))
	for i, r := range recs {
		out[i] = fn(r)
	}
	return out, nil
}

// First returns the first record matching q, if any.
func (s *Store[R]) First(q Query) (R, bool, error) {
	q.Limit = 1
	recs, err := s.Find(q)
	if err != nil || len(recs) == 0 {
		var zero R
		return zero, false, err
	}
	return recs[0], true, nil
}

func (s *Store[R]) executeLocked(plan *Plan[R]) []R {
	if !plan.root.indexed() {
		var out []R
		s.table.Iterator(func(rec R) bool {
			if plan.root.match(rec) {
				out = append(out, rec)
			}
			return true
		})
		return out
	}

	recs := plan.root.scan()
	type ranked struct {
		seq uint64
		rec R
	}
	rs := make([]ranked, 0, len(recs))
	for _, r := range recs {
		// an index hit the table no longer holds is stale
		if seq, ok := s.table.Seq(r); ok {
			rs = append(rs, ranked{seq: seq, rec: r})
		}
	}
	slices.SortFunc(rs, func(a, b ranked) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]R, len(rs))
	for i := range rs {
		out[i] = rs[i].rec
	}
	return out
}

// arrange orders and paginates an owned result slice.
func arrange[R comparable](recs []R, plan *Plan[R]) []R {
	if len(plan.order) > 0 {
		slices.SortStableFunc(recs, func(a, b R) int {
			for _, k := range plan.order {
				c := k.field.order(a, b)
				if k.desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	if plan.skip >= len(recs) {
		return recs[:0]
	}
	recs = recs[plan.skip:]
	if plan.limit > 0 && plan.limit < len(recs) {
		recs = recs[:plan.limit]
	}
	return recs
}
