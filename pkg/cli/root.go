// pkg/cli/root.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bstardust/trip-backfill/internal/config"
	"github.com/bstardust/trip-backfill/internal/logger"
)

// globalOptions holds the persistent flags that are not configuration keys
type globalOptions struct {
	configFile string
	envFile    string
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interruption signals
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("Error executing command: %v", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the trip-backfill command tree
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	defaults := config.New()

	rootCmd := &cobra.Command{
		Use:   "trip-backfill",
		Short: "Group old photos into trips and publish them to S3",
		Long: `Reads capture time and GPS position from the EXIF data of old photos,
groups them into one trip stop per calendar day and publishes the
selected stops to S3-compatible storage.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.loadEnvFile(cmd.Flags().Changed("env-file"))
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Config file (yaml, json or toml)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "File of BACKFILL_* variables loaded into the environment if present")
	pf.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	pf.String("log-format", defaults.LogFormat, "Log format (text, json)")

	rootCmd.AddCommand(newScanCommand(opts), newPublishCommand(opts))
	return rootCmd
}

// loadEnvFile loads the env file. A missing default file is fine; a missing
// file named on the command line is not.
func (o *globalOptions) loadEnvFile(explicit bool) error {
	if o.envFile == "" {
		return nil
	}
	if _, err := os.Stat(o.envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read env file: %w", err)
	}
	if err := godotenv.Load(o.envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", o.envFile, err)
	}
	logger.Debug("Loaded environment from %s", o.envFile)
	return nil
}

// load resolves the configuration for cmd and applies the log settings.
// concurrencyKey is the key the command's --concurrency flag sets.
func (o *globalOptions) load(cmd *cobra.Command, concurrencyKey string) (*config.Config, error) {
	cfg, err := config.Load(o.configFile, cmd.Flags(), concurrencyKey)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)
	logger.SetFormat(cfg.LogFormat)
	return cfg, nil
}
