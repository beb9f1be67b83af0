package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"skipdb/pkg/core"
	"skipdb/pkg/sql"
)

const Prompt = "skipdb> "

var (
	seedRows int
	explain  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Run SELECT statements against the sample tables",
	Long: `Runs one SELECT statement, or starts a prompt when none is given.
Tables: people(row_id, id, numero, name, city) and tickets(id, title).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&seedRows, "rows", "n", 1000, "number of people to load")
	queryCmd.Flags().BoolVar(&explain, "explain", false, "print the plan instead of the rows")
}

func runQuery(cmd *cobra.Command, args []string) error {
	people, tickets, err := seed(registry, seedRows)
	if err != nil {
		return err
	}
	cat := catalog{people: people, tickets: tickets}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		return cat.exec(out, args[0], explain)
	}

	fmt.Fprintf(out, "skipdb (%d people, %d tickets). Type 'help' for commands.\n", people.Len(), tickets.Len())
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, Prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		word := strings.ToLower(strings.Fields(line)[0])
		switch word {
		case "help":
			printHelp(out)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case "explain":
			if err := cat.exec(out, strings.TrimSpace(line[len(word):]), true); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		default:
			if err := cat.exec(out, line, false); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		}
	}
	return scanner.Err()
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  SELECT * FROM <table> [WHERE ...] [ORDER BY ...] [LIMIT n] [OFFSET n]")
	fmt.Fprintln(out, "  EXPLAIN SELECT ...")
	fmt.Fprintln(out, "  exit")
}

type catalog struct {
	people  *core.Store[*Person]
	tickets *core.Store[*Ticket]
}

func (c catalog) exec(out io.Writer, text string, explainOnly bool) error {
	stmt, err := sql.Parse(text)
	if err != nil {
		return err
	}
	switch strings.ToLower(stmt.Table) {
	case "people":
		return run(out, c.people, stmt, explainOnly, func(p *Person) string {
			city := p.City
			if city == "" {
				city = "NULL"
			}
			return fmt.Sprintf("%s  id=%d numero=%d name=%s city=%s", p.RowID, p.ID, p.Numero, p.Name, city)
		})
	case "tickets":
		return run(out, c.tickets, stmt, explainOnly, func(t *Ticket) string {
			return fmt.Sprintf("%s  id=%d title=%s", t.RowID, t.ID, t.Title)
		})
	}
	return fmt.Errorf("unknown table %q", stmt.Table)
}

func run[R comparable](out io.Writer, s *core.Store[R], stmt *sql.SelectStmt, explainOnly bool, format func(R) string) error {
	q := stmt.ToQuery()
	if explainOnly {
		plan, err := s.Explain(q)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "plan: %s\n", plan)
		return nil
	}

	start := time.Now()
	rows, plan, err := s.FindPlan(q)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "plan: %s\n", plan)
	for _, row := range rows {
		fmt.Fprintln(out, format(row))
	}
	fmt.Fprintf(out, "(%d rows, %v)\n", len(rows), time.Since(start))
	return nil
}
