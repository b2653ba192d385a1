package cli

import (
	"database/sql"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/trovedb/trove/ingest"
)

var (
	ingestCSVGlob  string
	ingestSQLPath  string
	ingestSQLTable string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest transaction rows into the store",
	Long: `Ingest reads transaction rows from a CSV glob or a staging SQLite
table, embeds them and appends them to all three feature spaces.

Progress is checkpointed per batch, so an interrupted run resumes where
it stopped.

Examples:
  trove ingest --csv 'data/**/*.csv'
  trove ingest --sql staging.db --table retail_staging`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSVGlob, "csv", "", "CSV file glob to ingest")
	ingestCmd.Flags().StringVar(&ingestSQLPath, "sql", "", "SQLite database with a staging table")
	ingestCmd.Flags().StringVar(&ingestSQLTable, "table", "", "staging table name")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	csvGlob := cfg.Ingest.CSVGlob
	if ingestCSVGlob != "" {
		csvGlob = ingestCSVGlob
	}
	sqlPath := cfg.Ingest.SQLPath
	if ingestSQLPath != "" {
		sqlPath = ingestSQLPath
	}
	sqlTable := cfg.Ingest.SQLTable
	if ingestSQLTable != "" {
		sqlTable = ingestSQLTable
	}

	var source ingest.Source
	switch {
	case csvGlob != "" && sqlPath != "":
		return fmt.Errorf("--csv and --sql are mutually exclusive")
	case csvGlob != "":
		src, err := ingest.NewCSVSource(csvGlob)
		if err != nil {
			return err
		}
		defer src.Close()
		source = src
	case sqlPath != "":
		if sqlTable == "" {
			return fmt.Errorf("--table is required with --sql")
		}
		db, err := sql.Open("sqlite", sqlPath)
		if err != nil {
			return fmt.Errorf("open staging database: %w", err)
		}
		defer db.Close()
		source = ingest.NewSQLSource(db, sqlTable)
	default:
		return fmt.Errorf("a source is required: pass --csv or --sql, or set one in the config")
	}

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

	cp, err := ingest.OpenCheckpoint(cfg.Ingest.CheckpointPath)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer cp.Close()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("ingesting"),
	)

	pipeline := ingest.NewPipeline(store, embedder, rows,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithCheckpoint(cp, cfg.Ingest.SourceName),
		ingest.WithProgress(func(batch, rows int) {
			_ = bar.Add(rows)
		}),
	)

	total, err := pipeline.Run(cmd.Context(), source)
	_ = bar.Finish()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\ningested %d rows\n", total)
	return nil
}
