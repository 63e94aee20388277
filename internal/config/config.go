package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	DBPath       string        `yaml:"db_path"` // file path or postgres:// DSN
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	Output       string        `yaml:"output"`
	DefaultActor string        `yaml:"default_actor"`
	MergeTimeout time.Duration `yaml:"merge_timeout"`
	MergeRetries int           `yaml:"merge_retries"`
	OTelEnabled  bool          `yaml:"otel_enabled"`
	OTelStdout   bool          `yaml:"otel_stdout"`
}

// Defaults
const (
	DefaultMergeTimeout = 30 * time.Second
	DefaultMergeRetries = 3
)

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. ~/.config/roster/config.yaml (YAML)
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:     "info",
		LogFormat:    "console",
		Output:       "table",
		MergeTimeout: DefaultMergeTimeout,
		MergeRetries: DefaultMergeRetries,
	}

	// godotenv.Load never overrides variables already set in the environment
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	if err := loadYAMLConfig(cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if dbPath := getEnvOrFile("ROSTER_DB_PATH", "ROSTER_DB_PATH_FILE"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel := os.Getenv("ROSTER_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat := os.Getenv("ROSTER_LOG_FORMAT"); logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if output := os.Getenv("ROSTER_OUTPUT"); output != "" {
		cfg.Output = output
	}
	if actor := os.Getenv("ROSTER_ACTOR"); actor != "" {
		cfg.DefaultActor = actor
	}
	if v := os.Getenv("ROSTER_MERGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ROSTER_MERGE_TIMEOUT %q: %w", v, err)
		}
		cfg.MergeTimeout = d
	}
	if v := os.Getenv("ROSTER_MERGE_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ROSTER_MERGE_RETRIES %q: %w", v, err)
		}
		cfg.MergeRetries = n
	}
	if v := os.Getenv("ROSTER_OTEL_ENABLED"); v != "" {
		cfg.OTelEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("ROSTER_OTEL_STDOUT"); v != "" {
		cfg.OTelStdout = v == "true" || v == "1"
	}

	if cfg.DBPath == "" {
		// Check for project-local database first
		if _, err := os.Stat(".roster/roster.db"); err == nil {
			cfg.DBPath = ".roster/roster.db"
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			cfg.DBPath = filepath.Join(homeDir, ".local", "share", "roster", "roster.db")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.MergeTimeout < 0 {
		return fmt.Errorf("merge timeout must not be negative")
	}
	if c.MergeRetries < 0 {
		return fmt.Errorf("merge retries must not be negative")
	}
	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("invalid output %q: must be table, json or yaml", c.Output)
	}
	return nil
}

// loadYAMLConfig loads configuration from ~/.config/roster/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "roster", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		if dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// GetActor returns the acting account selector.
// Priority: ROSTER_ACTOR > config.default_actor
func (c *Config) GetActor() string {
	if actor := os.Getenv("ROSTER_ACTOR"); actor != "" {
		return actor
	}
	return c.DefaultActor
}
