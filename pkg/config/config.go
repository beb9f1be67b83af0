package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Query   QueryConfig   `yaml:"query"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type IndexConfig struct {
	MaxLevel    int     `yaml:"max_level"`   // skip list height cap, 1..16
	Probability float64 `yaml:"probability"` // level promotion probability
	Seed        uint64  `yaml:"seed"`        // 0 = time seeded
}

type QueryConfig struct {
	StrictOperators bool `yaml:"strict_operators"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			MaxLevel:    16,
			Probability: 0.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "skipdb",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/skipdb.yaml", "skipdb.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Index.MaxLevel <= 0 || cfg.Index.MaxLevel > 16 {
		cfg.Index.MaxLevel = 16
	}
	if cfg.Index.Probability <= 0 || cfg.Index.Probability >= 1 {
		cfg.Index.Probability = 0.5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format != "json" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "skipdb"
	}
}
