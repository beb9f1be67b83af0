package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"skipdb/pkg/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sample tables over HTTP",
	Long: `Loads the sample tables and answers
  GET /api/query?sql=SELECT ...
  GET /api/explain?sql=SELECT ...
  GET /api/stats
  GET /metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVarP(&seedRows, "rows", "n", 1000, "number of people to load")
}

func newAPI() (*api.Server, error) {
	people, tickets, err := seed(registry, seedRows)
	if err != nil {
		return nil, err
	}
	srv := api.NewServer(mon, promReg)
	srv.Register("people", api.Bind(people, func(p *Person) any { return p }))
	srv.Register("tickets", api.Bind(tickets, func(t *Ticket) any { return t }))
	return srv, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := newAPI()
	if err != nil {
		return err
	}
	slog.Info("tables loaded", "people", seedRows)
	if err := srv.Start(serveAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
