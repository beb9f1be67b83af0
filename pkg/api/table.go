package api

import (
	"skipdb/pkg/core"
)

// Table is a store seen through the API: rows come back as JSON-ready
// values.
type Table interface {
	Explain(q core.Query) (string, error)
	// Find returns the rows and the plan that produced them.
	Find(q core.Query) ([]any, string, error)
	Len() int
	Indexes() []core.IndexStats
}

type boundTable[R comparable] struct {
	store *core.Store[R]
	view  func(R) any
}

// Bind exposes s as a Table, rendering each record with view.
func Bind[R comparable](s *core.Store[R], view func(R) any) Table {
	return &boundTable[R]{store: s, view: view}
}

func (t *boundTable[R]) Explain(q core.Query) (string, error) {
	plan, err := t.store.Explain(q)
	if err != nil {
		return "", err
	}
	return plan.String(), nil
}

func (t *boundTable[R]) Find(q core.Query) ([]any, string, error) {
	recs, plan, err := t.store.FindPlan(q)
	if err != nil {
		return nil, "", err
	}
	rows := make([]any, len(recs))
	for i, r := range recs {
		rows[i] = t.view(r)
	}
	return rows, plan.String(), nil
}

func (t *boundTable[R]) Len() int                   { return t.store.Len() }
func (t *boundTable[R]) Indexes() []core.IndexStats { return t.store.IndexStats() }
