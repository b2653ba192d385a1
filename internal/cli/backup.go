package cli

import (
	"context"
	"fmt"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/trovedb/trove"
	"github.com/trovedb/trove/blobstore"
	miniostore "github.com/trovedb/trove/blobstore/minio"
	s3store "github.com/trovedb/trove/blobstore/s3"
)

var (
	backupS3Bucket      string
	backupMinioEndpoint string
	backupMinioBucket   string
	backupPrefix        string
)

var backupCmd = &cobra.Command{
	Use:   "backup [dir]",
	Short: "Copy the store's snapshot files to a backup target",
	Long: `Backup copies every feature space's snapshot files to a local
directory or, with --s3-bucket, to an S3 bucket.

Examples:
  trove backup /mnt/backups
  trove backup --s3-bucket my-backups --prefix nightly
  trove backup --minio-endpoint localhost:9000 --minio-bucket backups`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore [dir]",
	Short: "Restore the store from a backup target",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRestore,
}

func init() {
	for _, c := range []*cobra.Command{backupCmd, restoreCmd} {
		c.Flags().StringVar(&backupS3Bucket, "s3-bucket", "", "S3 bucket to use instead of a local directory")
		c.Flags().StringVar(&backupMinioEndpoint, "minio-endpoint", "", "MinIO endpoint, e.g. localhost:9000")
		c.Flags().StringVar(&backupMinioBucket, "minio-bucket", "", "MinIO bucket, used with --minio-endpoint")
		c.Flags().StringVar(&backupPrefix, "prefix", "", "key prefix inside the backup target")
	}
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

func backupTarget(ctx context.Context, args []string) (blobstore.Store, error) {
	switch {
	case backupS3Bucket != "":
		return s3store.NewStore(ctx, backupS3Bucket)
	case backupMinioEndpoint != "":
		if backupMinioBucket == "" {
			return nil, fmt.Errorf("--minio-bucket is required with --minio-endpoint")
		}
		client, err := miniogo.New(backupMinioEndpoint, &miniogo.Options{
			Creds: credentials.NewEnvMinio(),
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, backupMinioBucket, ""), nil
	case len(args) > 0:
		return blobstore.NewLocalStore(args[0])
	default:
		return nil, fmt.Errorf("a backup directory, --s3-bucket or --minio-endpoint is required")
	}
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dst, err := backupTarget(ctx, args)
	if err != nil {
		return err
	}

	logger := buildLogger()
	store, err := openStore(logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if err := store.Backup(ctx, dst, backupPrefix); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "backup complete")
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	src, err := backupTarget(ctx, args)
	if err != nil {
		return err
	}

	store, err := trove.Restore(ctx, cfg.Store.Dir, src, backupPrefix,
		trove.WithLogger(buildLogger()),
		trove.WithSnapshotCompression(cfg.Store.Compression),
	)
	if err != nil {
		return err
	}
	for _, space := range trove.Spaces() {
		n, err := store.Count(space)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", space, n)
	}
	return nil
}
