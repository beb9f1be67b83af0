package core

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"skipdb/pkg/query"
)

func TestSaveKeepsInsertionOrder(t *testing.T) {
	s := newPeople(t)
	if err := s.RegisterIndex("numero", false); err != nil {
		t.Fatalf("register: %v", err)
	}
	mustSave(t, s, &person{ID: 3, Numero: 30}, &person{ID: 1, Numero: 10}, &person{ID: 2, Numero: 20})

	if got := ids(s.All()); !slices.Equal(got, []int{3, 1, 2}) {
		t.Fatalf("All order: got %v", got)
	}
	if s.Len() != 3 {
		t.Fatalf("Len: got %d", s.Len())
	}
}

func TestSaveRejectsSameRecordTwice(t *testing.T) {
	s := newPeople(t)
	p := &person{ID: 1}
	mustSave(t, s, p)
	if err := s.Save(p); !errors.Is(err, ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len: got %d", s.Len())
	}
}

func TestUniqueIndexRejectsDuplicate(t *testing.T) {
	s, m := newMonitored(t)
	if err := s.RegisterIndex("id", true); err != nil {
		t.Fatalf("register id: %v", err)
	}
	if err := s.RegisterIndex("numero", false); err != nil {
		t.Fatalf("register numero: %v", err)
	}
	mustSave(t, s, &person{ID: 1, Numero: 5})

	err := s.Save(&person{ID: 1, Numero: 6})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("store changed after rejected save: %d records", s.Len())
	}
	for _, st := range s.IndexStats() {
		if st.Records != 1 {
			t.Fatalf("index %s changed after rejected save: %+v", st.Field, st)
		}
	}
	if got := testutil.ToFloat64(m.DuplicateKeys.WithLabelValues("people")); got != 1 {
		t.Fatalf("duplicate counter: got %v", got)
	}
	if got := testutil.ToFloat64(m.RecordsSaved.WithLabelValues("people")); got != 1 {
		t.Fatalf("saved counter: got %v", got)
	}
}

func TestSaveAllIsAtomic(t *testing.T) {
	s := newPeople(t)
	if err := s.RegisterIndex("id", true); err != nil {
		t.Fatalf("register: %v", err)
	}
	mustSave(t, s, &person{ID: 1})

	err := s.SaveAll(&person{ID: 2}, &person{ID: 3}, &person{ID: 2})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("intra-batch duplicate: got %v", err)
	}
	err = s.SaveAll(&person{ID: 4}, &person{ID: 1})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("duplicate of stored record: got %v", err)
	}
	p := &person{ID: 5}
	if err := s.SaveAll(p, p); !errors.Is(err, ErrRecordExists) {
		t.Fatalf("repeated record: got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("failed batches leaked records: %v", ids(s.All()))
	}

	if err := s.SaveAll(&person{ID: 2}, &person{ID: 3}); err != nil {
		t.Fatalf("valid batch: %v", err)
	}
	if got := ids(s.All()); !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("after batch: got %v", got)
	}
}

func TestRegisterIndex(t *testing.T) {
	s := newPeople(t)
	mustSave(t, s,
		&person{ID: 1, Numero: 7},
		&person{ID: 2, Numero: 7},
		&person{ID: 3, Numero: 8},
	)

	if err := s.RegisterIndex("missing", false); !errors.Is(err, ErrUnregisteredField) {
		t.Fatalf("expected ErrUnregisteredField, got %v", err)
	}
	if err := s.RegisterIndex("numero", true); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("unique index over duplicates: got %v", err)
	}
	if len(s.Indexes()) != 0 {
		t.Fatalf("failed index was registered: %v", s.Indexes())
	}

	if err := s.RegisterIndex("numero", false); err != nil {
		t.Fatalf("register numero: %v", err)
	}
	if err := s.RegisterIndex("numero", false); err != nil {
		t.Fatalf("second registration should be a no-op: %v", err)
	}
	stats := s.IndexStats()
	if len(stats) != 1 || stats[0].Keys != 2 || stats[0].Records != 3 {
		t.Fatalf("index over existing records: %+v", stats)
	}
}

func TestIndexDeclaresField(t *testing.T) {
	s := newPeople(t)
	extra := NewField("double", func(p *person) int { return p.Numero * 2 })
	if err := s.Index(extra, false); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if !slices.Contains(s.Fields(), "double") || !slices.Equal(s.Indexes(), []string{"double"}) {
		t.Fatalf("fields %v indexes %v", s.Fields(), s.Indexes())
	}
}

func TestDeclareKeepsFirstAccessor(t *testing.T) {
	s := newPeople(t)
	s.Declare(NewField("numero", func(p *person) int { return -p.Numero }))
	if got := s.Fields(); !slices.Equal(got, []string{"id", "name", "numero", "city"}) {
		t.Fatalf("fields: %v", got)
	}
}

func TestAbsentValuesAreNotIndexed(t *testing.T) {
	s := newPeople(t)
	if err := s.RegisterIndex("city", true); err != nil {
		t.Fatalf("register: %v", err)
	}
	mustSave(t, s, &person{ID: 1}, &person{ID: 2}, &person{ID: 3, City: "Oslo"})

	stats := s.IndexStats()
	if stats[0].Records != 1 {
		t.Fatalf("absent cities were indexed: %+v", stats[0])
	}
}

func TestDelete(t *testing.T) {
	s, m := newMonitored(t)
	if err := s.RegisterIndex("id", true); err != nil {
		t.Fatalf("register id: %v", err)
	}
	if err := s.RegisterIndex("numero", false); err != nil {
		t.Fatalf("register numero: %v", err)
	}
	a := &person{ID: 1, Numero: 5}
	b := &person{ID: 2, Numero: 5}
	mustSave(t, s, a, b)

	if !s.Delete(a) {
		t.Fatal("delete of stored record returned false")
	}
	if s.Delete(a) {
		t.Fatal("second delete returned true")
	}
	if s.Delete(&person{ID: 2, Numero: 5}) {
		t.Fatal("delete matched an equal but distinct record")
	}

	stats := s.IndexStats()
	for _, st := range stats {
		if st.Records != 1 {
			t.Fatalf("index %s after delete: %+v", st.Field, st)
		}
	}
	// the unique key is free again
	mustSave(t, s, &person{ID: 1, Numero: 6})
	if got := testutil.ToFloat64(m.RecordsDeleted.WithLabelValues("people")); got != 1 {
		t.Fatalf("deleted counter: got %v", got)
	}
}

func TestDeleteAfterIndexedFieldChanged(t *testing.T) {
	s := newPeople(t)
	if err := s.RegisterIndex("id", true); err != nil {
		t.Fatalf("register id: %v", err)
	}
	if err := s.RegisterIndex("numero", false); err != nil {
		t.Fatalf("register numero: %v", err)
	}
	p := &person{ID: 1, Numero: 5}
	mustSave(t, s, p)

	p.ID, p.Numero = 2, 6
	if !s.Delete(p) {
		t.Fatal("delete of stored record returned false")
	}
	if s.Len() != 0 {
		t.Fatalf("len after delete: %d", s.Len())
	}
	for _, st := range s.IndexStats() {
		if st.Records != 0 || st.Keys != 0 {
			t.Fatalf("index %s still holds the record: %+v", st.Field, st)
		}
	}
	for _, q := range []query.Node{query.Eq("numero", 5), query.Eq("numero", 6), numeroGte(0)} {
		got, err := s.Find(Where(q))
		if err != nil {
			t.Fatalf("find %s: %v", q, err)
		}
		if len(got) != 0 {
			t.Fatalf("find %s after delete: %v", q, ids(got))
		}
		n, err := s.Count(q)
		if err != nil || n != 0 {
			t.Fatalf("count %s after delete: %d, %v", q, n, err)
		}
	}
	// the old unique key is free again
	mustSave(t, s, &person{ID: 1, Numero: 5})
}

func TestConcurrentSaveAndFind(t *testing.T) {
	s := newPeople(t)
	if err := s.RegisterIndex("numero", false); err != nil {
		t.Fatalf("register: %v", err)
	}

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 250 {
				if err := s.Save(&person{ID: w*1000 + i, Numero: i % 50}); err != nil {
					t.Errorf("save: %v", err)
					return
				}
			}
		}()
	}
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := s.Find(Where(numeroGte(25))); err != nil {
					t.Errorf("find: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	n, err := s.Count(numeroGte(25))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4*125 {
		t.Fatalf("count: got %d, want %d", n, 4*125)
	}
}
