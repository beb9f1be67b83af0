package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"skipdb/pkg/config"
	"skipdb/pkg/core"
	"skipdb/pkg/logger"
	"skipdb/pkg/monitor"
)

var (
	configPath  string
	logLevel    string
	metricsAddr string

	conf     *config.Config
	promReg  *prometheus.Registry
	mon      *monitor.Monitor
	registry *core.Registry
	shutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "skipdb",
	Short: "In-memory record store with skip-list indexes and a query planner",
	Long: `skipdb keeps typed records in memory, indexes fields with skip lists,
plans predicate trees onto index ranges and joins stores on equal keys.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdown == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return shutdown(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: configs/skipdb.yaml or skipdb.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	rootCmd.AddCommand(demoCmd, queryCmd, serveCmd, benchCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	conf, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		conf.Logging.Level = logLevel
	}
	logger.Setup(conf.Logging.Level, conf.Logging.Format)

	promReg = prometheus.NewRegistry()
	mon = monitor.New(conf.Metrics.Namespace, promReg)
	registry = core.NewRegistry(
		core.WithConfig(conf),
		core.WithLogger(logger.WithComponent("store")),
		core.WithMonitor(mon),
	)
	if metricsAddr != "" {
		shutdown = monitor.StartServer(metricsAddr, promReg)
	}
	slog.Debug("configured", "max_level", conf.Index.MaxLevel, "strict_operators", conf.Query.StrictOperators)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
