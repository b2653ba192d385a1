// Package config loads the YAML configuration file shared by the CLI
// commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the trove commands.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig locates the on-disk store.
type StoreConfig struct {
	Dir         string `yaml:"dir"`
	RowDB       string `yaml:"row_db"`
	Compression bool   `yaml:"compression"`
	SyncWrites  bool   `yaml:"sync_writes"`
}

// EmbeddingConfig selects and configures the text encoder.
type EmbeddingConfig struct {
	Provider  string  `yaml:"provider"` // "openai" or "hash"
	Model     string  `yaml:"model"`
	APIKeyEnv string  `yaml:"api_key_env"`
	BaseURL   string  `yaml:"base_url"`
	Dimension int     `yaml:"dimension"`
	RateRPS   float64 `yaml:"rate_rps"`
	RateBurst int     `yaml:"rate_burst"`
}

// APIKey reads the provider API key from the configured environment
// variable.
func (c EmbeddingConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	BatchSize      int    `yaml:"batch_size"`
	CheckpointPath string `yaml:"checkpoint_path"`
	SourceName     string `yaml:"source_name"`
	CSVGlob        string `yaml:"csv_glob"`
	SQLPath        string `yaml:"sql_path"`
	SQLTable       string `yaml:"sql_table"`
}

// HTTPConfig configures the query service listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:         "trove-data",
			RowDB:       filepath.Join("trove-data", "rows.db"),
			Compression: false,
			SyncWrites:  true,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
			RateRPS:   5,
			RateBurst: 5,
		},
		Ingest: IngestConfig{
			BatchSize:      1000,
			CheckpointPath: filepath.Join("trove-data", "checkpoints.db"),
			SourceName:     "default",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks fields that would otherwise fail deep inside a
// command.
func (c *Config) Validate() error {
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir must not be empty")
	}
	switch c.Embedding.Provider {
	case "openai", "hash":
	default:
		return fmt.Errorf("embedding.provider %q not supported", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive")
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
