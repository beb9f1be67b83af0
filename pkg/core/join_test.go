package core

import (
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skipdb/pkg/logger"
	"skipdb/pkg/monitor"
	"skipdb/pkg/query"
)

type ticket struct {
	ID    int
	Label string
}

var ticketID = NewField("id", func(t *ticket) int { return t.ID })

func newTickets(t *testing.T, opts ...Option) *Store[*ticket] {
	t.Helper()
	base := []Option{WithConfig(testConfig()), WithLogger(logger.Discard())}
	s := NewStore[*ticket]("tickets", append(base, opts...)...)
	s.Declare(ticketID)
	return s
}

func TestJoinNumeroWithID(t *testing.T) {
	m := monitor.New("skipdb", nil)
	a := newPeople(t, WithMonitor(m))
	require.NoError(t, a.RegisterIndex("numero", false))
	seedNumeros(t, a)

	b := newTickets(t)
	require.NoError(t, b.RegisterIndex("id", true))
	for id := 2; id <= 5; id++ {
		require.NoError(t, b.Save(&ticket{ID: id}))
	}

	strategy, err := ExplainJoin(a, numeroField, b, ticketID)
	require.NoError(t, err)
	assert.Equal(t, JoinMerge, strategy)

	pairs, err := Join(a, numeroField, b, ticketID, func(p *person, tk *ticket) [2]int {
		return [2]int{p.Numero, tk.ID}
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{2, 2}, {3, 3}, {4, 4}, {5, 5}}, pairs)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Joins.WithLabelValues("merge")))

	got, err := a.Find(Where(query.Gte("numero", 8)))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestJoinStrategySelection(t *testing.T) {
	tests := []struct {
		name         string
		leftIndexed  bool
		rightIndexed bool
		want         JoinStrategy
	}{
		{"both", true, true, JoinMerge},
		{"right only", false, true, JoinProbe},
		{"left only", true, false, JoinNested},
		{"neither", false, false, JoinNested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newPeople(t)
			b := newTickets(t)
			if tt.leftIndexed {
				require.NoError(t, a.RegisterIndex("numero", false))
			}
			if tt.rightIndexed {
				require.NoError(t, b.RegisterIndex("id", false))
			}
			got, err := ExplainJoin(a, numeroField, b, ticketID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type item struct {
	ID     int
	Key    int
	HasKey bool
}

var itemKey = NewOptionalField("key", func(it *item) (int, bool) { return it.Key, it.HasKey })

func newItems(t *testing.T, name string, indexed bool, recs []*item) *Store[*item] {
	t.Helper()
	s := NewStore[*item](name, WithConfig(testConfig()), WithLogger(logger.Discard()))
	s.Declare(itemKey)
	if indexed {
		require.NoError(t, s.RegisterIndex("key", false))
	}
	require.NoError(t, s.SaveAll(recs...))
	return s
}

func randomItems(rng *rand.Rand, n, base int) []*item {
	out := make([]*item, n)
	for i := range out {
		out[i] = &item{ID: base + i, Key: rng.IntN(15), HasKey: rng.IntN(6) != 0}
	}
	return out
}

// TestJoinMatchesNestedLoop checks every strategy against a plain
// cartesian product filtered on key equality.
func TestJoinMatchesNestedLoop(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	left := randomItems(rng, 60, 0)
	right := randomItems(rng, 40, 1000)

	var want [][2]int
	for _, l := range left {
		for _, r := range right {
			if l.HasKey && r.HasKey && l.Key == r.Key {
				want = append(want, [2]int{l.ID, r.ID})
			}
		}
	}
	require.NotEmpty(t, want)

	sel := func(l, r *item) [2]int { return [2]int{l.ID, r.ID} }
	for _, cfg := range []struct {
		left, right bool
		strategy    JoinStrategy
	}{
		{true, true, JoinMerge},
		{false, true, JoinProbe},
		{true, false, JoinNested},
		{false, false, JoinNested},
	} {
		ls := newItems(t, "left", cfg.left, left)
		rs := newItems(t, "right", cfg.right, right)

		strategy, err := ExplainJoin(ls, itemKey, rs, itemKey)
		require.NoError(t, err)
		require.Equal(t, cfg.strategy, strategy)

		got, err := Join(ls, itemKey, rs, itemKey, sel)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, got, "strategy %s", strategy)

		switch strategy {
		case JoinMerge:
			for i := 1; i < len(got); i++ {
				prev, cur := left[got[i-1][0]], left[got[i][0]]
				assert.LessOrEqual(t, prev.Key, cur.Key, "merge output must follow key order")
			}
		default:
			for i := 1; i < len(got); i++ {
				assert.LessOrEqual(t, got[i-1][0], got[i][0], "%s output must follow left insertion order", strategy)
			}
		}
	}
}

func TestJoinErrors(t *testing.T) {
	a := newPeople(t)
	b := newTickets(t)

	missing := NewField("missing", func(tk *ticket) int { return tk.ID })
	_, err := Join(a, numeroField, b, missing, func(*person, *ticket) int { return 0 })
	assert.ErrorIs(t, err, ErrUnregisteredField)

	_, err = ExplainJoin(a, NewField("nope", func(p *person) int { return 0 }), b, ticketID)
	assert.ErrorIs(t, err, ErrUnregisteredField)

	wide := NewField("wide", func(tk *ticket) int64 { return int64(tk.ID) })
	b.Declare(wide)
	narrow := NewField("wide", func(tk *ticket) int { return tk.ID })
	_, err = Join(a, numeroField, b, narrow, func(*person, *ticket) int { return 0 })
	assert.ErrorIs(t, err, ErrKeyTypeMismatch)
}

func TestJoinEmptyStores(t *testing.T) {
	a := newPeople(t)
	b := newTickets(t)
	require.NoError(t, a.RegisterIndex("numero", false))
	require.NoError(t, b.RegisterIndex("id", true))

	got, err := Join(a, numeroField, b, ticketID, func(*person, *ticket) int { return 1 })
	require.NoError(t, err)
	assert.Empty(t, got)
}
