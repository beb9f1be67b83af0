package core

import (
	"iter"
	"maps"
	"slices"
	"strconv"
	"strings"

	"skipdb/pkg/monitor"
	"skipdb/pkg/query"
)

// step is one node of an execution plan. An indexed step can produce its
// matching records from index scans alone; every step can test a single
// record, which is how residual parts of the tree are evaluated.
type step[R comparable] interface {
	indexed() bool
	scan() []R
	match(r R) bool
	String() string
}

// rangeStep answers a condition from an index range.
type rangeStep[R comparable] struct {
	seq  iter.Seq[R]
	pred func(R) bool
	desc string
}

func (st *rangeStep[R]) indexed() bool  { return true }
func (st *rangeStep[R]) scan() []R      { return slices.Collect(st.seq) }
func (st *rangeStep[R]) match(r R) bool { return st.pred(r) }
func (st *rangeStep[R]) String() string { return st.desc }

// filterStep evaluates a condition record by record.
type filterStep[R comparable] struct {
	pred func(R) bool
	cond *query.Condition
}

func (st *filterStep[R]) indexed() bool  { return false }
func (st *filterStep[R]) scan() []R      { return nil }
func (st *filterStep[R]) match(r R) bool { return st.pred(r) }
func (st *filterStep[R]) String() string { return "FILTER(" + st.cond.String() + ")" }

// allStep is an empty group: every record qualifies.
type allStep[R comparable] struct{}

func (allStep[R]) indexed() bool  { return false }
func (allStep[R]) scan() []R      { return nil }
func (allStep[R]) match(R) bool   { return true }
func (allStep[R]) String() string { return "ALL" }

type andStep[R comparable] struct {
	children []step[R]
	group    *query.Group
}

func (st *andStep[R]) indexed() bool {
	return slices.ContainsFunc(st.children, step[R].indexed)
}

func (st *andStep[R]) split() (idx, rest []step[R]) {
	for _, c := range st.children {
		if c.indexed() {
			idx = append(idx, c)
		} else {
			rest = append(rest, c)
		}
	}
	return idx, rest
}

// scan intersects the indexed children, smallest result first, then
// applies the residual children.
func (st *andStep[R]) scan() []R {
	idx, rest := st.split()
	sets := make([][]R, len(idx))
	for i, c := range idx {
		sets[i] = c.scan()
	}
	slices.SortStableFunc(sets, func(a, b []R) int { return len(a) - len(b) })

	out := sets[0]
	for _, other := range sets[1:] {
		if len(out) == 0 {
			break
		}
		member := make(map[R]struct{}, len(other))
		for _, r := range other {
			member[r] = struct{}{}
		}
		out = slices.DeleteFunc(out, func(r R) bool {
			_, ok := member[r]
			return !ok
		})
	}
	if len(rest) == 0 {
		return out
	}
	return slices.DeleteFunc(out, func(r R) bool {
		for _, c := range rest {
			if !c.match(r) {
				return true
			}
		}
		return false
	})
}

func (st *andStep[R]) match(r R) bool {
	for _, c := range st.children {
		if !c.match(r) {
			return false
		}
	}
	return true
}

func (st *andStep[R]) String() string {
	if !st.indexed() {
		return "FILTER(" + st.group.String() + ")"
	}
	idx, rest := st.split()
	head := joinSteps("INTERSECT", idx)
	if len(rest) == 0 {
		return head
	}
	return "AND(" + head + ", " + strings.Join(stepStrings(rest), ", ") + ")"
}

type orStep[R comparable] struct {
	children []step[R]
	group    *query.Group
}

// indexed holds only when every child is: one residual child already
// forces a full scan, and the scan then evaluates the whole group.
func (st *orStep[R]) indexed() bool {
	for _, c := range st.children {
		if !c.indexed() {
			return false
		}
	}
	return len(st.children) > 0
}

func (st *orStep[R]) scan() []R {
	seen := make(map[R]struct{})
	var out []R
	for _, c := range st.children {
		for _, r := range c.scan() {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func (st *orStep[R]) match(r R) bool {
	for _, c := range st.children {
		if c.match(r) {
			return true
		}
	}
	return false
}

func (st *orStep[R]) String() string {
	if !st.indexed() {
		return "FILTER(" + st.group.String() + ")"
	}
	return joinSteps("UNION", st.children)
}

func stepStrings[R comparable](steps []step[R]) []string {
	out := make([]string, len(steps))
	for i, st := range steps {
		out[i] = st.String()
	}
	return out
}

func joinSteps[R comparable](name string, steps []step[R]) string {
	if len(steps) == 1 {
		return steps[0].String()
	}
	return name + "(" + strings.Join(stepStrings(steps), ", ") + ")"
}

type orderKey[R comparable] struct {
	field Accessor[R]
	desc  bool
}

// Plan is the access path chosen for a query. It is only valid while the
// store it was built on is unchanged; Explain returns it for inspection.
type Plan[R comparable] struct {
	root     step[R]
	order    []orderKey[R]
	skip     int
	limit    int
	ranges   int
	residual int
	fields   map[string]struct{}
}

// UsesIndex reports whether execution starts from index scans instead of
// a full scan.
func (p *Plan[R]) UsesIndex() bool { return p.root.indexed() }

// Kind classifies the plan as monitor.PlanIndex, PlanScan or PlanMixed.
func (p *Plan[R]) Kind() string {
	switch {
	case !p.root.indexed():
		return monitor.PlanScan
	case p.residual > 0:
		return monitor.PlanMixed
	default:
		return monitor.PlanIndex
	}
}

// IndexRanges is the number of conditions answered from an index.
func (p *Plan[R]) IndexRanges() int { return p.ranges }

// Fields lists the fields the filter and ordering touch, sorted.
func (p *Plan[R]) Fields() []string {
	return slices.Sorted(maps.Keys(p.fields))
}

func (p *Plan[R]) String() string {
	var b strings.Builder
	switch {
	case p.root.indexed():
		b.WriteString(p.root.String())
	case isAll(p.root):
		b.WriteString("FULL_SCAN")
	default:
		b.WriteString("FULL_SCAN + " + p.root.String())
	}
	if len(p.order) > 0 {
		keys := make([]string, len(p.order))
		for i, k := range p.order {
			keys[i] = query.OrderBy{Field: k.field.Name(), Desc: k.desc}.String()
		}
		b.WriteString(" ORDER BY " + strings.Join(keys, ", "))
	}
	if p.skip > 0 || p.limit > 0 {
		b.WriteString(" PAGE(")
		b.WriteString(strconv.Itoa(p.skip))
		b.WriteString(", ")
		if p.limit > 0 {
			b.WriteString(strconv.Itoa(p.limit))
		} else {
			b.WriteString("ALL")
		}
		b.WriteString(")")
	}
	return b.String()
}

func isAll[R comparable](st step[R]) bool {
	_, ok := st.(allStep[R])
	return ok
}
