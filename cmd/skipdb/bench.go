package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"skipdb/pkg/core"
	"skipdb/pkg/query"
)

var (
	benchRows    int
	benchWorkers int
	benchQueries int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure concurrent inserts, indexed range queries against full scans, and joins",
	Args:  cobra.NoArgs,
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchRows, "rows", "n", 100000, "records to insert")
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", 4, "concurrent writers")
	benchCmd.Flags().IntVarP(&benchQueries, "queries", "q", 200, "queries per measurement")
}

func runBench(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	indexed, err := openPeople(registry)
	if err != nil {
		return err
	}
	plain, err := core.Open[*Person](registry, "people_noindex")
	if err != nil {
		return err
	}
	plain.Declare(personID, personNumero, personName, personCity)

	fmt.Fprintf(out, "skipdb benchmark (rows=%d, workers=%d)\n", benchRows, benchWorkers)
	fmt.Fprintln(out, "---------------------------------------------------")

	elapsed, err := insertConcurrently(cmd.Context(), indexed, plain)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, ">> Insert: %v | %.0f records/s (x2 stores)\n", elapsed, float64(benchRows)/elapsed.Seconds())

	rng := rand.New(rand.NewPCG(1, 2))
	filters := make([]query.Node, benchQueries)
	for i := range filters {
		lo := rng.IntN(max(benchRows, 1))
		filters[i] = query.And(query.Gte("numero", lo), query.Lt("numero", lo+100))
	}

	idxTime, idxRows, err := timeQueries(indexed, filters)
	if err != nil {
		return err
	}
	scanTime, scanRows, err := timeQueries(plain, filters)
	if err != nil {
		return err
	}
	if idxRows != scanRows {
		return fmt.Errorf("indexed and scan results differ: %d vs %d rows", idxRows, scanRows)
	}
	fmt.Fprintf(out, ">> Range (index): %v | QPS: %.0f\n", idxTime, float64(len(filters))/idxTime.Seconds())
	fmt.Fprintf(out, ">> Range (scan):  %v | QPS: %.0f\n", scanTime, float64(len(filters))/scanTime.Seconds())

	tickets, err := openTickets(registry)
	if err != nil {
		return err
	}
	for i := range 1000 {
		if err := tickets.Save(&Ticket{RowID: uuid.New(), ID: i * 7, Title: "bench"}); err != nil {
			return err
		}
	}
	start := time.Now()
	n, err := core.Join(indexed, personNumero, tickets, ticketID, func(*Person, *Ticket) struct{} { return struct{}{} })
	if err != nil {
		return err
	}
	fmt.Fprintf(out, ">> Merge join: %v | %d pairs\n", time.Since(start), len(n))

	fmt.Fprintln(out, "---------------------------------------------------")
	if scanTime > 0 && idxTime > 0 {
		fmt.Fprintf(out, "Conclusion: index ranges are %.2fx faster than full scans\n", scanTime.Seconds()/idxTime.Seconds())
	}
	return nil
}

// insertConcurrently splits the rows across workers; each worker saves
// its share into both stores in batches.
func insertConcurrently(ctx context.Context, stores ...*core.Store[*Person]) (time.Duration, error) {
	const batchSize = 500
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	per := (benchRows + benchWorkers - 1) / max(benchWorkers, 1)

	for w := range max(benchWorkers, 1) {
		lo, hi := w*per, min((w+1)*per, benchRows)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			batch := make([]*Person, 0, batchSize)
			flush := func() error {
				for _, s := range stores {
					if err := s.SaveAll(batch...); err != nil {
						return err
					}
				}
				batch = batch[:0]
				return ctx.Err()
			}
			for i := lo; i < hi; i++ {
				batch = append(batch, newPerson(i))
				if len(batch) == batchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			return flush()
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func timeQueries(s *core.Store[*Person], filters []query.Node) (time.Duration, int, error) {
	start := time.Now()
	rows := 0
	for _, f := range filters {
		n, err := s.Count(f)
		if err != nil {
			return 0, 0, err
		}
		rows += n
	}
	return time.Since(start), rows, nil
}
