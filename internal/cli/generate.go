package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/trovedb/trove/fixture"
	"github.com/trovedb/trove/ingest"
)

var (
	generateRows int
	generateSeed int64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and ingest a synthetic retail dataset",
	Long: `Generate creates a deterministic synthetic dataset (products,
customers and transactions), seeds the row store reference tables and
ingests the transactions. Useful for local development without real
data.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVar(&generateRows, "rows", 5000, "number of transaction rows")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 1, "random seed")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logger := buildLogger()
	store, err := openStore(logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	rows, err := openRows()
	if err != nil {
		return fmt.Errorf("open row store: %w", err)
	}
	defer rows.Close()

	embedder, err := newEmbedder()
	if err != nil {
		return err
	}

	gen := fixture.New(fixture.WithSeed(generateSeed))
	if err := gen.SeedReference(ctx, rows); err != nil {
		return err
	}

	bar := progressbar.NewOptions(generateRows,
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("generating"),
	)

	pipeline := ingest.NewPipeline(store, embedder, rows,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithProgress(func(batch, rows int) {
			_ = bar.Add(rows)
		}),
	)

	total, err := pipeline.Run(ctx, gen.Source(generateRows))
	_ = bar.Finish()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\ngenerated %d rows\n", total)
	return nil
}
