package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rubric sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Rubric   RubricConfig   `yaml:"rubric"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Signing  SigningConfig  `yaml:"signing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int `yaml:"port"`
	MetricsPort  int `yaml:"metrics_port"`
	RateLimitRPM int `yaml:"rate_limit_rpm"`
}

type RubricConfig struct {
	Source  string `yaml:"source"`
	Path    string `yaml:"path"`
	Version string `yaml:"version"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type SigningConfig struct {
	Secret string `yaml:"secret"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8700,
			MetricsPort:  8701,
			RateLimitRPM: 120,
		},
		Rubric: RubricConfig{
			Source: SourceFile,
			Path:   "config.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	switch cfg.Rubric.Source {
	case SourceFile:
		if cfg.Rubric.Path == "" {
			return nil, fmt.Errorf("rubric.path required for source %q", SourceFile)
		}
	case SourcePostgres:
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("database.url required for source %q", SourcePostgres)
		}
	default:
		return nil, fmt.Errorf("unknown rubric source %q", cfg.Rubric.Source)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BURSARY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("BURSARY_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("BURSARY_RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitRPM = n
		}
	}
	if v := os.Getenv("BURSARY_RUBRIC_SOURCE"); v != "" {
		cfg.Rubric.Source = v
	}
	if v := os.Getenv("BURSARY_RUBRIC_PATH"); v != "" {
		cfg.Rubric.Path = v
	}
	if v := os.Getenv("BURSARY_RUBRIC_VERSION"); v != "" {
		cfg.Rubric.Version = v
	}
	if v := os.Getenv("BURSARY_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("BURSARY_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	// the signing secret keeps its historical variable name
	if v := os.Getenv("SCORING_HMAC_SECRET"); v != "" {
		cfg.Signing.Secret = v
	}
	if v := os.Getenv("BURSARY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BURSARY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// NewLogger builds the process logger from the logging section.
func (c LoggingConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
