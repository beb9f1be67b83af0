package memory

import "testing"

type rec struct{ id int }

func TestTableInsertionOrder(t *testing.T) {
	tbl := NewTable[*rec](4)
	var recs []*rec
	for i := range 100 {
		r := &rec{id: i}
		recs = append(recs, r)
		if _, ok := tbl.Put(r); !ok {
			t.Fatalf("put %d rejected", i)
		}
	}
	for i := 0; i < 100; i += 3 {
		if !tbl.Delete(recs[i]) {
			t.Fatalf("delete %d failed", i)
		}
	}
	got := tbl.Records()
	if len(got) != tbl.Count() {
		t.Fatalf("count %d, records %d", tbl.Count(), len(got))
	}
	prev := -1
	for _, r := range got {
		if r.id%3 == 0 {
			t.Fatalf("deleted record %d still present", r.id)
		}
		if r.id <= prev {
			t.Fatalf("order broken: %d after %d", r.id, prev)
		}
		prev = r.id
	}
}

func TestTableIdentity(t *testing.T) {
	tbl := NewTable[*rec](4)
	a, b := &rec{id: 1}, &rec{id: 1}
	s1, ok := tbl.Put(a)
	if !ok {
		t.Fatal("first put rejected")
	}
	if _, ok := tbl.Put(a); ok {
		t.Fatal("same pointer stored twice")
	}
	s2, ok := tbl.Put(b)
	if !ok || s2 <= s1 {
		t.Fatalf("distinct record: ok=%v seq=%d after %d", ok, s2, s1)
	}
	if seq, _ := tbl.Seq(b); seq != s2 {
		t.Fatalf("seq lookup: got %d want %d", seq, s2)
	}
	if tbl.Delete(&rec{id: 1}) {
		t.Fatal("delete matched by value instead of identity")
	}
	if !tbl.Delete(a) || tbl.Delete(a) {
		t.Fatal("delete should succeed once")
	}
	if tbl.Has(a) || !tbl.Has(b) {
		t.Fatal("membership wrong after delete")
	}
}

func TestTableIteratorStops(t *testing.T) {
	tbl := NewTable[int](2)
	for i := range 10 {
		tbl.Put(i)
	}
	n := 0
	tbl.Iterator(func(int) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Fatalf("iterator visited %d, want 3", n)
	}
}
