package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bstardust/trip-backfill/internal/adapter/photoset"
	"github.com/bstardust/trip-backfill/internal/config"
	"github.com/bstardust/trip-backfill/internal/logger"
	"github.com/bstardust/trip-backfill/internal/progress"
	"github.com/bstardust/trip-backfill/internal/report"
	"github.com/bstardust/trip-backfill/internal/scanner"
)

func newScanCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [flags] <dir | archive.zip | photo | glob>...",
		Short: "Group photos into trips by capture day and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, "scan.concurrency")
			if err != nil {
				return err
			}
			if err := cfg.ValidateScan(); err != nil {
				return err
			}
			return runScan(cmd.Context(), cfg, args, cmd.OutOrStdout())
		},
	}

	defaults := config.New()
	cmd.Flags().Int("concurrency", defaults.Scan.Concurrency, "Number of files read in parallel (0 = one per CPU)")
	cmd.Flags().String("format", defaults.Scan.Format, "Output format (text, json)")
	cmd.Flags().StringP("output", "o", defaults.Scan.Output, "Also write the JSON report to this file (.zst compresses it)")

	return cmd
}

func runScan(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	set, res, err := scanPaths(ctx, cfg, args)
	if err != nil {
		return err
	}
	defer set.Close()

	rep := report.New(res, time.Now())
	if cfg.Scan.Output != "" {
		if err := rep.WriteFile(cfg.Scan.Output); err != nil {
			return err
		}
		logger.Info("Wrote report to %s", cfg.Scan.Output)
	}

	if cfg.Scan.Format == "json" {
		return rep.WriteJSON(out)
	}
	return rep.WriteText(out)
}

// scanPaths indexes the photos under args and clusters them
func scanPaths(ctx context.Context, cfg *config.Config, args []string) (*photoset.Set, *scanner.Result, error) {
	set, err := photoset.Open(ctx, args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open photos: %w", err)
	}

	logger.Info("Indexed %d photos (%s)", len(set.IDs()), humanize.Bytes(uint64(set.TotalSize())))
	if logger.IsDebug() {
		for _, f := range set.ListFiles() {
			logger.Debug("  %s (%s)", f.ID, humanize.Bytes(uint64(f.Size)))
		}
	}

	s := scanner.New(
		scanner.WithConcurrency(cfg.Scan.Concurrency),
		scanner.WithProgress(progress.New()),
	)
	res, err := s.Scan(ctx, set)
	if err != nil {
		set.Close()
		return nil, nil, fmt.Errorf("scan failed: %w", err)
	}

	logger.Info("Found %d clusters in %d photos", len(res.Clusters), len(res.Records))
	return set, res, nil
}
