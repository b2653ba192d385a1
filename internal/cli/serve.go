package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/trovedb/trove/httpapi"
	"github.com/trovedb/trove/llm"
	"github.com/trovedb/trove/query"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP query API",
	Long: `Serve starts the HTTP query service over an existing store.

Answer generation on /search/product is enabled when the embedding
API key environment variable is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewServer(service, rows, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
