package core

import (
	"database/sql"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"skipdb/pkg/query"
)

// sqlOracle mirrors a people store in an in-memory SQLite table so that
// query results can be checked against an independent engine.
type sqlOracle struct {
	db *sql.DB
}

func newSQLOracle(t *testing.T, people []*person) *sqlOracle {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE people (id INTEGER, name TEXT, numero INTEGER, city TEXT)`)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	stmt, err := tx.Prepare(`INSERT INTO people (id, name, numero, city) VALUES (?, ?, ?, ?)`)
	require.NoError(t, err)
	for _, p := range people {
		var city any
		if p.City != "" {
			city = p.City
		}
		_, err := stmt.Exec(p.ID, p.Name, p.Numero, city)
		require.NoError(t, err)
	}
	require.NoError(t, stmt.Close())
	require.NoError(t, tx.Commit())
	return &sqlOracle{db: db}
}

// where renders n with the store's absent-value rules spelled out, so that
// SQL three-valued logic never leaks into the comparison.
func where(n query.Node, args *[]any) string {
	switch n := n.(type) {
	case *query.Condition:
		col := n.Field
		if n.Value == nil {
			switch n.Op {
			case query.OpEq:
				return col + " IS NULL"
			case query.OpNe:
				return col + " IS NOT NULL"
			default:
				return "0"
			}
		}
		*args = append(*args, n.Value)
		switch n.Op {
		case query.OpNe:
			return "(" + col + " IS NULL OR " + col + " <> ?)"
		default:
			return "(" + col + " IS NOT NULL AND " + col + " " + string(n.Op) + " ?)"
		}
	case *query.Group:
		if len(n.Children) == 0 {
			return "1"
		}
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = where(c, args)
		}
		return "(" + strings.Join(parts, " "+string(n.Logic)+" ") + ")"
	}
	return "1"
}

func (o *sqlOracle) ids(t *testing.T, n query.Node) []int {
	t.Helper()
	var args []any
	stmt := fmt.Sprintf("SELECT id FROM people WHERE %s ORDER BY id", where(n, &args))
	rows, err := o.db.Query(stmt, args...)
	require.NoError(t, err, stmt)
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var id int
		require.NoError(t, rows.Scan(&id))
		out = append(out, id)
	}
	require.NoError(t, rows.Err())
	return out
}

var (
	cities = []string{"", "Bergen", "Oslo", "Tromso"}
	names  = []string{"ada", "bob", "cy", "dee"}
	ops    = []query.Op{query.OpEq, query.OpNe, query.OpGt, query.OpGte, query.OpLt, query.OpLte}
)

func randomCondition(rng *rand.Rand) query.Node {
	op := ops[rng.IntN(len(ops))]
	switch rng.IntN(4) {
	case 0:
		return &query.Condition{Field: "id", Op: op, Value: rng.IntN(220)}
	case 1:
		return &query.Condition{Field: "numero", Op: op, Value: rng.IntN(25)}
	case 2:
		return &query.Condition{Field: "name", Op: op, Value: names[rng.IntN(len(names))]}
	default:
		var v any
		if c := cities[rng.IntN(len(cities))]; c != "" {
			v = c
		}
		return &query.Condition{Field: "city", Op: op, Value: v}
	}
}

func randomTree(rng *rand.Rand, depth int) query.Node {
	if depth == 0 || rng.IntN(3) == 0 {
		return randomCondition(rng)
	}
	children := make([]query.Node, rng.IntN(4))
	for i := range children {
		children[i] = randomTree(rng, depth-1)
	}
	if rng.IntN(2) == 0 {
		return query.And(children...)
	}
	return query.Or(children...)
}

// TestPlansMatchSQLite checks that indexed execution, a pure full scan and
// SQLite agree on every generated predicate tree.
func TestPlansMatchSQLite(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 42))
	var people []*person
	for i := range 200 {
		people = append(people, &person{
			ID:     i,
			Name:   names[rng.IntN(len(names))],
			Numero: rng.IntN(25),
			City:   cities[rng.IntN(len(cities))],
		})
	}

	indexed := newPeople(t)
	require.NoError(t, indexed.RegisterIndex("id", true))
	require.NoError(t, indexed.RegisterIndex("numero", false))
	require.NoError(t, indexed.RegisterIndex("city", false))
	require.NoError(t, indexed.SaveAll(people...))

	scan := newPeople(t)
	require.NoError(t, scan.SaveAll(people...))

	oracle := newSQLOracle(t, people)
	byID := []query.OrderBy{query.Asc("id")}

	for i := range 300 {
		tree := randomTree(rng, 3)
		want := oracle.ids(t, tree)

		got, err := indexed.Find(Query{Filter: tree, Order: byID})
		require.NoError(t, err, "tree %d: %s", i, tree)
		require.Equal(t, want, ids(got), "indexed, tree %d: %s", i, tree)

		got, err = scan.Find(Query{Filter: tree, Order: byID})
		require.NoError(t, err, "tree %d: %s", i, tree)
		require.Equal(t, want, ids(got), "scan, tree %d: %s", i, tree)

		n, err := indexed.Count(tree)
		require.NoError(t, err)
		require.Equal(t, len(want), n, "count, tree %d: %s", i, tree)
	}
}
