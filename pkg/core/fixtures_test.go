package core

import (
	"testing"

	"skipdb/pkg/config"
	"skipdb/pkg/logger"
	"skipdb/pkg/monitor"
	"skipdb/pkg/query"
)

type person struct {
	ID     int
	Name   string
	Numero int
	City   string // empty means absent
}

var (
	idField     = NewField("id", func(p *person) int { return p.ID })
	nameField   = NewField("name", func(p *person) string { return p.Name })
	numeroField = NewField("numero", func(p *person) int { return p.Numero })
	cityField   = NewOptionalField("city", func(p *person) (string, bool) { return p.City, p.City != "" })
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Index.Seed = 7
	return cfg
}

func newPeople(t *testing.T, opts ...Option) *Store[*person] {
	t.Helper()
	base := []Option{WithConfig(testConfig()), WithLogger(logger.Discard())}
	s := NewStore[*person]("people", append(base, opts...)...)
	s.Declare(idField, nameField, numeroField, cityField)
	return s
}

func newMonitored(t *testing.T) (*Store[*person], *monitor.Monitor) {
	t.Helper()
	m := monitor.New("skipdb", nil)
	return newPeople(t, WithMonitor(m)), m
}

func ids(recs []*person) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func mustSave(t *testing.T, s *Store[*person], recs ...*person) {
	t.Helper()
	for _, r := range recs {
		if err := s.Save(r); err != nil {
			t.Fatalf("save %+v: %v", r, err)
		}
	}
}

func numeroGte(v int) query.Node { return query.Gte("numero", v) }
