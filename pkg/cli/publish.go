package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bstardust/trip-backfill/internal/cluster"
	"github.com/bstardust/trip-backfill/internal/config"
	"github.com/bstardust/trip-backfill/internal/journal"
	"github.com/bstardust/trip-backfill/internal/logger"
	"github.com/bstardust/trip-backfill/internal/progress"
	"github.com/bstardust/trip-backfill/internal/uploader"
	"github.com/bstardust/trip-backfill/pkg/s3client"
)

func newPublishCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [flags] <dir | archive.zip | photo | glob>...",
		Short: "Scan photos and upload the selected trip stops to S3",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, "publish.concurrency")
			if err != nil {
				return err
			}
			if err := cfg.ValidatePublish(); err != nil {
				return err
			}
			return runPublish(cmd.Context(), cfg, args, cmd.OutOrStdout())
		},
	}

	d := config.New()

	// S3 connection flags
	cmd.Flags().String("endpoint", d.S3.Endpoint, "S3 endpoint URL (required)")
	cmd.Flags().String("region", d.S3.Region, "S3 region")
	cmd.Flags().String("bucket", d.S3.Bucket, "S3 bucket name (required)")
	cmd.Flags().String("access-key", d.S3.AccessKey, "S3 access key (required)")
	cmd.Flags().String("secret-key", d.S3.SecretKey, "S3 secret key (required)")
	cmd.Flags().Bool("use-ssl", d.S3.UseSSL, "Use SSL for S3 connection")
	cmd.Flags().String("prefix", d.S3.Prefix, "Prefix for S3 object keys")
	cmd.Flags().Bool("disable-checksums", d.S3.DisableChecksums, "Use the AWS SDK without request checksums (for stores that reject them)")

	// Selection
	cmd.Flags().StringSlice("cluster", d.Publish.Clusters, "Cluster key or id to publish (repeatable, default all dated clusters)")
	cmd.Flags().Bool("include-unsorted", d.Publish.IncludeUnsorted, "Also publish photos without a capture date")

	// Upload options
	cmd.Flags().Int("concurrency", d.Publish.Concurrency, "Number of concurrent uploads")
	cmd.Flags().Bool("dry-run", d.Publish.DryRun, "Simulate upload without actually uploading")
	cmd.Flags().Bool("resume", d.Publish.Resume, "Resume previous upload if interrupted")
	cmd.Flags().String("journal", d.Publish.JournalPath, "Path to journal file for resumable uploads")
	cmd.Flags().Bool("preserve-metadata", d.Publish.PreserveMetadata, "Store capture time, location and camera as S3 object metadata")
	cmd.Flags().Bool("skip-existing", d.Publish.SkipExisting, "Skip files that already exist in the bucket")
	cmd.Flags().Float64("rate-limit", d.Publish.RateLimit, "Maximum uploads started per second (0 = unlimited)")
	cmd.Flags().Int("max-retries", d.Publish.MaxRetries, "Retries per upload on transient errors")
	cmd.Flags().Duration("timeout", d.Publish.Timeout, "Timeout per upload")

	return cmd
}

func runPublish(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	set, res, err := scanPaths(ctx, cfg, args)
	if err != nil {
		return err
	}
	defer set.Close()

	selected, err := cluster.Select(res.Clusters, cfg.Publish.Clusters, cfg.Publish.IncludeUnsorted)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		logger.Warn("No clusters selected, nothing to publish")
		return nil
	}
	for _, c := range selected {
		logger.Info("Selected %s: %s", c.Title, c.Summary())
	}

	var client s3client.S3Interface
	if !cfg.Publish.DryRun {
		client, err = s3client.New(ctx, s3client.Config{
			Endpoint:         cfg.S3.Endpoint,
			Region:           cfg.S3.Region,
			Bucket:           cfg.S3.Bucket,
			AccessKey:        cfg.S3.AccessKey,
			SecretKey:        cfg.S3.SecretKey,
			UseSSL:           cfg.S3.UseSSL,
			Prefix:           cfg.S3.Prefix,
			DisableChecksums: cfg.S3.DisableChecksums,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		logger.Info("Publishing to %s/%s", client.GetEndpoint(), client.GetBucketName())
	}

	jnl, err := openJournal(cfg)
	if err != nil {
		return err
	}

	summary, err := uploader.New(client, set, jnl, progress.New(), cfg).Run(ctx, res, selected)

	verb := "Published"
	if cfg.Publish.DryRun {
		verb = "Would publish"
	}
	fmt.Fprintf(out, "%s %d of %d photos from %d clusters (%d skipped, %d failed, %s)\n",
		verb, summary.Uploaded, summary.Planned, len(selected), summary.Skipped, summary.Failed,
		humanize.Bytes(uint64(summary.Bytes)))
	return err
}

// openJournal loads the journal when resuming. Otherwise a real run starts
// from an empty journal on disk.
func openJournal(cfg *config.Config) (*journal.Journal, error) {
	jnl := journal.New(cfg.Publish.JournalPath)
	switch {
	case cfg.Publish.Resume:
		if err := jnl.Load(); err != nil {
			logger.Warn("Could not load journal: %v", err)
		}
		total, uploaded := jnl.Stats()
		logger.Info("Resuming with %d of %d journal entries published", uploaded, total)
	case !cfg.Publish.DryRun:
		if err := jnl.Clear(); err != nil {
			return nil, fmt.Errorf("failed to reset journal: %w", err)
		}
	}
	return jnl, nil
}
