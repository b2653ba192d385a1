// Package cli implements the trove command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/trovedb/trove"
	"github.com/trovedb/trove/config"
	"github.com/trovedb/trove/embed"
	"github.com/trovedb/trove/rowstore"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "trove",
	Short: "Exact vector similarity store for retail transactions",
	Long: `Trove maintains three aligned feature spaces over a retail
transaction stream (product text embeddings, financial features and
invoice timestamps) and answers exact nearest-neighbour queries in any
of them.

Example usage:
  trove generate --rows 5000   # Seed a synthetic dataset
  trove ingest --csv 'data/*.csv'
  trove query "ceramic teapot" -k 5
  trove serve`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "trove.yaml", "config file")
}

func buildLogger() *trove.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.Logging.Format == "json" {
		return trove.NewJSONLogger(level)
	}
	return trove.NewTextLogger(level)
}

func openStore(logger *trove.Logger) (*trove.Store, error) {
	return trove.Open(cfg.Store.Dir,
		trove.WithLogger(logger),
		trove.WithSnapshotCompression(cfg.Store.Compression),
		trove.WithSyncWrites(cfg.Store.SyncWrites),
	)
}

func openRows() (*rowstore.SQLite, error) {
	return rowstore.OpenSQLite(cfg.Store.RowDB)
}

func newEmbedder() (embed.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "hash":
		return embed.NewHash(cfg.Embedding.Dimension), nil
	case "openai":
		key := cfg.Embedding.APIKey()
		if key == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.Embedding.APIKeyEnv)
		}
		opts := []embed.Option{
			embed.WithModel(cfg.Embedding.Model),
			embed.WithDimension(cfg.Embedding.Dimension),
			embed.WithRateLimit(cfg.Embedding.RateRPS, cfg.Embedding.RateBurst),
		}
		if cfg.Embedding.BaseURL != "" {
			opts = append(opts, embed.WithBaseURL(cfg.Embedding.BaseURL))
		}
		return embed.NewOpenAI(key, opts...), nil
	default:
		return nil, fmt.Errorf("embedding provider %q not supported", cfg.Embedding.Provider)
	}
}
