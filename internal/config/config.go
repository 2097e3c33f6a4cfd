package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file.
const FileName = "bankrec.yaml"

// Environment overrides.
const (
	EnvDBPath   = "BANKREC_DB_PATH"
	EnvLogLevel = "BANKREC_LOG_LEVEL"
	EnvOrgID    = "BANKREC_ORG_ID"
)

// Config represents the top-level bankrec.yaml configuration.
type Config struct {
	Business     BusinessConfig `yaml:"business"`
	Organization string         `yaml:"organization"`
	Database     DatabaseConfig `yaml:"database"`
	Log          LogConfig      `yaml:"log"`
	Matching     MatchingConfig `yaml:"matching"`
	Archive      ArchiveConfig  `yaml:"archive"`
	BankAccounts []BankAccount  `yaml:"bank_accounts,omitempty"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name       string `yaml:"name"`
	EntityType string `yaml:"entity_type"`
}

// DatabaseConfig locates the SQLite database. Relative paths resolve
// against the project directory.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MatchingConfig tunes suggestion fan-out and reconciliation auto-matching.
type MatchingConfig struct {
	Concurrency    int `yaml:"concurrency"`
	AutoMatchScore int `yaml:"auto_match_score"`
}

// ArchiveConfig controls where finalized audit reports are exported and
// whether they are committed to git.
type ArchiveConfig struct {
	Dir         string `yaml:"dir"`
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// BankAccount maps a bank feed to a chart-of-accounts entry.
type BankAccount struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	LastFour  string `yaml:"last_four"`
	AccountID string `yaml:"account_id"`
}

// Load reads a bankrec.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// LoadDir reads <dir>/bankrec.yaml, loads an optional <dir>/.env into the
// process environment and applies the BANKREC_* overrides.
func LoadDir(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file settings with BANKREC_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvOrgID); v != "" {
		c.Organization = v
	}
	if v := os.Getenv("BANKREC_MATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Matching.Concurrency = n
		}
	}
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Organization == "" {
		return fmt.Errorf("organization is required (set it in %s or %s)", FileName, EnvOrgID)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required (set it in %s or %s)", FileName, EnvDBPath)
	}
	if c.Matching.Concurrency < 0 {
		return fmt.Errorf("matching.concurrency must not be negative")
	}
	return nil
}

// DatabasePath resolves the configured database path against dir.
func (c *Config) DatabasePath(dir string) string {
	if filepath.IsAbs(c.Database.Path) {
		return c.Database.Path
	}
	return filepath.Join(dir, c.Database.Path)
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(businessName, entityType string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name:       businessName,
			EntityType: entityType,
		},
		Organization: "default",
		Database: DatabaseConfig{
			Path: "bankrec.db",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Matching: MatchingConfig{
			Concurrency:    10,
			AutoMatchScore: 90,
		},
		Archive: ArchiveConfig{
			Dir:         "exports/reconciliations",
			AutoCommit:  true,
			AuthorName:  "Bankrec",
			AuthorEmail: "bankrec@localhost",
		},
	}
}
