package core

import (
	"fmt"

	"skipdb/pkg/query"
)

// Query is a filter plus ordering and paging. A nil Filter selects every
// record; Limit 0 means no limit.
type Query struct {
	Filter query.Node
	Order  []query.OrderBy
	Skip   int
	Limit  int
}

// Where is shorthand for a Query with only a filter.
func Where(filter query.Node) Query {
	return Query{Filter: filter}
}

type planner[R comparable] struct {
	store *Store[R]
	plan  *Plan[R]
}

// planLocked builds the plan for q. The caller holds at least the read
// lock.
func (s *Store[R]) planLocked(q Query) (*Plan[R], error) {
	pl := &planner[R]{
		store: s,
		plan:  &Plan[R]{skip: max(q.Skip, 0), limit: max(q.Limit, 0), fields: make(map[string]struct{})},
	}

	root, err := pl.node(q.Filter)
	if err != nil {
		return nil, err
	}
	pl.plan.root = root

	for _, o := range q.Order {
		f, ok := s.fields[o.Field]
		if !ok {
			return nil, fmt.Errorf("%w: order by %s.%s", ErrUnregisteredField, s.name, o.Field)
		}
		pl.plan.fields[o.Field] = struct{}{}
		pl.plan.order = append(pl.plan.order, orderKey[R]{field: f, desc: o.Desc})
	}
	return pl.plan, nil
}

func (pl *planner[R]) node(n query.Node) (step[R], error) {
	switch n := n.(type) {
	case nil:
		return allStep[R]{}, nil
	case *query.Condition:
		return pl.condition(n)
	case *query.Group:
		return pl.group(n)
	}
	return nil, fmt.Errorf("unknown predicate node %T", n)
}

func (pl *planner[R]) group(g *query.Group) (step[R], error) {
	if g == nil || len(g.Children) == 0 {
		return allStep[R]{}, nil
	}
	if len(g.Children) == 1 {
		return pl.node(g.Children[0])
	}

	var shared map[string][]*query.Condition
	if g.Logic == query.LogicAnd {
		shared = pl.sharedRanges(g.Children)
	}

	children := make([]step[R], 0, len(g.Children))
	for _, c := range g.Children {
		if cond, ok := c.(*query.Condition); ok && shared[cond.Field] != nil {
			conds := shared[cond.Field]
			if conds[0] != cond {
				continue
			}
			st, err := pl.indexRange(conds)
			if err != nil {
				return nil, err
			}
			children = append(children, st)
			continue
		}
		st, err := pl.node(c)
		if err != nil {
			return nil, err
		}
		if isAll(st) {
			pl.plan.residual++
		}
		children = append(children, st)
	}
	if len(children) == 1 {
		return children[0], nil
	}

	switch g.Logic {
	case query.LogicAnd:
		return &andStep[R]{children: children, group: g}, nil
	case query.LogicOr:
		return &orStep[R]{children: children, group: g}, nil
	}
	return nil, fmt.Errorf("%w: logic %q", ErrUnsupportedOperator, g.Logic)
}

func (pl *planner[R]) condition(c *query.Condition) (step[R], error) {
	s := pl.store
	f, ok := s.fields[c.Field]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnregisteredField, s.name, c.Field)
	}
	pl.plan.fields[c.Field] = struct{}{}

	if !c.Op.Valid() {
		if s.conf.Query.StrictOperators {
			return nil, fmt.Errorf("%w: %q in %s", ErrUnsupportedOperator, c.Op, c)
		}
		s.log.Warn("unsupported operator evaluates to false", "condition", c.String())
		pl.plan.residual++
		return &filterStep[R]{pred: func(R) bool { return false }, cond: c}, nil
	}

	if pl.indexable(c) {
		return pl.indexRange([]*query.Condition{c})
	}
	pred, err := f.predicate(c.Op, c.Value)
	if err != nil {
		return nil, err
	}

	pl.plan.residual++
	return &filterStep[R]{pred: pred, cond: c}, nil
}

func (pl *planner[R]) indexable(c *query.Condition) bool {
	_, ok := pl.store.indexes[c.Field]
	return ok && c.Value != nil && rangeOp(c.Op)
}

// sharedRanges finds indexed fields constrained by more than one range
// condition among the children of an AND; those collapse into one scan.
func (pl *planner[R]) sharedRanges(children []query.Node) map[string][]*query.Condition {
	byField := make(map[string][]*query.Condition)
	for _, c := range children {
		if cond, ok := c.(*query.Condition); ok && pl.indexable(cond) {
			byField[cond.Field] = append(byField[cond.Field], cond)
		}
	}
	for field, conds := range byField {
		if len(conds) < 2 {
			delete(byField, field)
		}
	}
	return byField
}

// indexRange plans conditions on one indexed field as a single range scan.
func (pl *planner[R]) indexRange(conds []*query.Condition) (step[R], error) {
	s := pl.store
	field := conds[0].Field
	preds := make([]func(R) bool, len(conds))
	for i, c := range conds {
		pred, err := s.fields[field].predicate(c.Op, c.Value)
		if err != nil {
			return nil, err
		}
		preds[i] = pred
	}
	seq, desc, err := s.indexes[field].scan(conds)
	if err != nil {
		return nil, err
	}
	pl.plan.fields[field] = struct{}{}
	pl.plan.ranges++

	pred := preds[0]
	if len(preds) > 1 {
		pred = func(r R) bool {
			for _, p := range preds {
				if !p(r) {
					return false
				}
			}
			return true
		}
	}
	return &rangeStep[R]{seq: seq, pred: pred, desc: desc}, nil
}
