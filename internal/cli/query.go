package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trovedb/trove/llm"
	"github.com/trovedb/trove/query"
)

var (
	queryK        int
	queryCategory string
	queryAnswer   bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the product space",
	Long: `Query embeds the given text and returns the nearest transactions
in the product space, optionally filtered by category.

With --answer, a grounded natural-language answer is generated from the
retrieved rows. This requires the embedding API key environment
variable to be set.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "top", "k", 5, "number of results")
	queryCmd.Flags().StringVar(&queryCategory, "category", "", "restrict results to a product category")
	queryCmd.Flags().BoolVar(&queryAnswer, "answer", false, "generate a grounded answer")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	text := args[0]

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

	var completer llm.Completer
	if key := cfg.Embedding.APIKey(); key != "" {
		completer = llm.NewOpenAI(key)
	}

	service := query.NewService(store, embedder, rows, completer)

	if queryAnswer {
		answer, results, err := service.Answer(ctx, text, queryK)
		if err != nil {
			return err
		}
		printResults(cmd, results)
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", answer)
		return nil
	}

	var opts []query.ProductOption
	if queryCategory != "" {
		opts = append(opts, query.WithCategory(queryCategory))
	}
	results, err := service.SearchProduct(ctx, text, queryK, opts...)
	if err != nil {
		return err
	}
	printResults(cmd, results)
	return nil
}

func printResults(cmd *cobra.Command, results []query.RankedResult) {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return
	}
	for i, r := range results {
		tx := r.Transaction
		fmt.Fprintf(out, "%2d. [%.4f] %s (%s) x%d @ %.2f on %s\n",
			i+1, r.Distance,
			strings.TrimSpace(tx.Description), tx.Category,
			tx.Quantity, tx.UnitPrice,
			tx.InvoiceDate.Format(time.DateOnly),
		)
	}
}
