// Package query defines the predicate tree handed to a store by a front
// end, plus the ordering clauses that accompany it.
//
// A tree is built once (see pkg/sql, or the constructors below) and never
// mutated afterwards; the planner only reads it.
package query

import (
	"slices"
	"strings"

	"skipdb/pkg/common"
)

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Valid reports whether o is one of the supported comparison operators.
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Logic combines the children of a Group.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Node is either a *Condition or a *Group.
type Node interface {
	String() string
	node()
}

// Condition compares one field against a literal. A nil Value stands for
// an absent value.
type Condition struct {
	Field string
	Op    Op
	Value any
}

func (*Condition) node() {}

func (c *Condition) String() string {
	return c.Field + " " + string(c.Op) + " " + common.Literal(c.Value)
}

// Group combines its children with AND or OR. A group without children
// filters nothing.
type Group struct {
	Logic    Logic
	Children []Node
}

func (*Group) node() {}

func (g *Group) String() string {
	if len(g.Children) == 0 {
		return "TRUE"
	}
	if len(g.Children) == 1 {
		return g.Children[0].String()
	}
	parts := make([]string, len(g.Children))
	for i, c := range g.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+string(g.Logic)+" ") + ")"
}

func cond(field string, op Op, v any) *Condition {
	return &Condition{Field: field, Op: op, Value: v}
}

func Eq(field string, v any) *Condition  { return cond(field, OpEq, v) }
func Ne(field string, v any) *Condition  { return cond(field, OpNe, v) }
func Gt(field string, v any) *Condition  { return cond(field, OpGt, v) }
func Gte(field string, v any) *Condition { return cond(field, OpGte, v) }
func Lt(field string, v any) *Condition  { return cond(field, OpLt, v) }
func Lte(field string, v any) *Condition { return cond(field, OpLte, v) }

// And groups children that must all hold.
func And(children ...Node) *Group {
	return &Group{Logic: LogicAnd, Children: slices.Clone(children)}
}

// Or groups children of which at least one must hold.
func Or(children ...Node) *Group {
	return &Group{Logic: LogicOr, Children: slices.Clone(children)}
}

// Walk visits every condition of the tree in depth-first order.
func Walk(n Node, fn func(*Condition)) {
	switch n := n.(type) {
	case *Condition:
		fn(n)
	case *Group:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	}
}

// OrderBy is one ordering key.
type OrderBy struct {
	Field string
	Desc  bool
}

func Asc(field string) OrderBy  { return OrderBy{Field: field} }
func Desc(field string) OrderBy { return OrderBy{Field: field, Desc: true} }

func (o OrderBy) String() string {
	if o.Desc {
		return o.Field + " DESC"
	}
	return o.Field + " ASC"
}
