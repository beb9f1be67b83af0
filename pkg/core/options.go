package core

import (
	"log/slog"

	"skipdb/pkg/config"
	"skipdb/pkg/core/skiplist"
	"skipdb/pkg/logger"
	"skipdb/pkg/monitor"
)

// Option configures a Store or a Registry.
type Option func(*settings)

type settings struct {
	cfg *config.Config
	log *slog.Logger
	mon *monitor.Monitor
}

// WithConfig sets index shape and query strictness.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithMonitor routes store metrics to m. Without it nothing is recorded.
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *settings) { s.mon = m }
}

func newSettings(opts []Option) settings {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.log == nil {
		s.log = logger.WithComponent("store")
	}
	return s
}

func (s settings) indexOptions() []skiplist.Option {
	opts := []skiplist.Option{skiplist.WithProbability(s.cfg.Index.Probability)}
	if s.cfg.Index.MaxLevel > 0 {
		opts = append(opts, skiplist.WithMaxLevel(s.cfg.Index.MaxLevel))
	}
	if s.cfg.Index.Seed != 0 {
		opts = append(opts, skiplist.WithSeed(s.cfg.Index.Seed))
	}
	return opts
}
