package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"skipdb/pkg/core"
	"skipdb/pkg/query"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Load the sample tables, run a range query and join people.numero with tickets.id",
	Args:  cobra.NoArgs,
	RunE:  runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	people, tickets, err := seed(registry, 10)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d people, %d tickets\n", people.Len(), tickets.Len())
	fmt.Fprintln(out, "---------------------------------------------------")

	q := core.Where(query.Gte("numero", 8))
	rows, plan, err := people.FindPlan(q)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, ">> %s\n   plan: %s\n", q.Filter, plan)
	for _, p := range rows {
		fmt.Fprintf(out, "   id=%d numero=%d name=%s\n", p.ID, p.Numero, p.Name)
	}

	strategy, err := core.ExplainJoin(people, personNumero, tickets, ticketID)
	if err != nil {
		return err
	}
	pairs, err := core.Join(people, personNumero, tickets, ticketID, func(p *Person, t *Ticket) string {
		return fmt.Sprintf("numero=%d -> %s", p.Numero, t.Title)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, ">> people.numero = tickets.id (%s join): %d pairs\n", strategy, len(pairs))
	for _, line := range pairs {
		fmt.Fprintf(out, "   %s\n", line)
	}

	fmt.Fprintln(out, "---------------------------------------------------")
	for _, st := range people.IndexStats() {
		fmt.Fprintf(out, "index people.%s unique=%v keys=%d records=%d\n", st.Field, st.Unique, st.Keys, st.Records)
	}
	fmt.Fprintf(out, "reads=%d writes=%d index hit ratio=%.2f\n",
		mon.Stats.Reads(), mon.Stats.Writes(), mon.Stats.IndexHitRatio())
	return nil
}
