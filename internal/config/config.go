package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bstardust/trip-backfill/internal/utils"
	"github.com/bstardust/trip-backfill/pkg/common"
)

// EnvPrefix prefixes every environment variable the configuration reads,
// e.g. BACKFILL_S3_BUCKET or BACKFILL_PUBLISH_DRY_RUN.
const EnvPrefix = "BACKFILL"

// Config represents the application configuration
type Config struct {
	LogLevel  string        `mapstructure:"log-level"`
	LogFormat string        `mapstructure:"log-format"`
	Scan      ScanConfig    `mapstructure:"scan"`
	S3        S3Config      `mapstructure:"s3"`
	Publish   PublishConfig `mapstructure:"publish"`
}

// ScanConfig controls metadata extraction and reporting
type ScanConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	Format      string `mapstructure:"format"`
	Output      string `mapstructure:"output"`
}

// S3Config represents S3 connection configuration
type S3Config struct {
	Endpoint         string `mapstructure:"endpoint"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	AccessKey        string `mapstructure:"access-key"`
	SecretKey        string `mapstructure:"secret-key"`
	UseSSL           bool   `mapstructure:"use-ssl"`
	Prefix           string `mapstructure:"prefix"`
	DisableChecksums bool   `mapstructure:"disable-checksums"`
}

// PublishConfig represents upload configuration
type PublishConfig struct {
	Clusters         []string      `mapstructure:"cluster"`
	IncludeUnsorted  bool          `mapstructure:"include-unsorted"`
	Concurrency      int           `mapstructure:"concurrency"`
	DryRun           bool          `mapstructure:"dry-run"`
	Resume           bool          `mapstructure:"resume"`
	JournalPath      string        `mapstructure:"journal"`
	PreserveMetadata bool          `mapstructure:"preserve-metadata"`
	SkipExisting     bool          `mapstructure:"skip-existing"`
	RateLimit        float64       `mapstructure:"rate-limit"`
	MaxRetries       int           `mapstructure:"max-retries"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// New creates a new configuration with default values
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Scan: ScanConfig{
			Format: "text",
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Publish: PublishConfig{
			Concurrency:      4,
			Resume:           true,
			PreserveMetadata: true,
			SkipExisting:     true,
			MaxRetries:       5,
			Timeout:          30 * time.Minute,
		},
	}
}

// FlagKeys maps command line flag names to configuration keys
var FlagKeys = map[string]string{
	"log-level":         "log-level",
	"log-format":        "log-format",
	"format":            "scan.format",
	"output":            "scan.output",
	"endpoint":          "s3.endpoint",
	"region":            "s3.region",
	"bucket":            "s3.bucket",
	"access-key":        "s3.access-key",
	"secret-key":        "s3.secret-key",
	"use-ssl":           "s3.use-ssl",
	"prefix":            "s3.prefix",
	"disable-checksums": "s3.disable-checksums",
	"cluster":           "publish.cluster",
	"include-unsorted":  "publish.include-unsorted",
	"dry-run":           "publish.dry-run",
	"resume":            "publish.resume",
	"journal":           "publish.journal",
	"preserve-metadata": "publish.preserve-metadata",
	"skip-existing":     "publish.skip-existing",
	"rate-limit":        "publish.rate-limit",
	"max-retries":       "publish.max-retries",
	"timeout":           "publish.timeout",
}

// Load layers, lowest first: defaults, the config file at path (if any),
// BACKFILL_* environment variables, then flags changed on the command line.
// concurrencyKey names the key the --concurrency flag sets, since scan and
// publish both have one.
func Load(path string, flags *pflag.FlagSet, concurrencyKey string) (*Config, error) {
	v := viper.New()
	setDefaults(v, New())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		keys := FlagKeys
		if concurrencyKey != "" {
			keys = make(map[string]string, len(FlagKeys)+1)
			for k, val := range FlagKeys {
				keys[k] = val
			}
			keys["concurrency"] = concurrencyKey
		}
		for name, key := range keys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)

	v.SetDefault("scan.concurrency", d.Scan.Concurrency)
	v.SetDefault("scan.format", d.Scan.Format)
	v.SetDefault("scan.output", d.Scan.Output)

	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.bucket", d.S3.Bucket)
	v.SetDefault("s3.access-key", d.S3.AccessKey)
	v.SetDefault("s3.secret-key", d.S3.SecretKey)
	v.SetDefault("s3.use-ssl", d.S3.UseSSL)
	v.SetDefault("s3.prefix", d.S3.Prefix)
	v.SetDefault("s3.disable-checksums", d.S3.DisableChecksums)

	v.SetDefault("publish.cluster", d.Publish.Clusters)
	v.SetDefault("publish.include-unsorted", d.Publish.IncludeUnsorted)
	v.SetDefault("publish.concurrency", d.Publish.Concurrency)
	v.SetDefault("publish.dry-run", d.Publish.DryRun)
	v.SetDefault("publish.resume", d.Publish.Resume)
	v.SetDefault("publish.journal", d.Publish.JournalPath)
	v.SetDefault("publish.preserve-metadata", d.Publish.PreserveMetadata)
	v.SetDefault("publish.skip-existing", d.Publish.SkipExisting)
	v.SetDefault("publish.rate-limit", d.Publish.RateLimit)
	v.SetDefault("publish.max-retries", d.Publish.MaxRetries)
	v.SetDefault("publish.timeout", d.Publish.Timeout)
}

// ValidateScan checks the settings the scan command uses
func (c *Config) ValidateScan() error {
	switch c.Scan.Format {
	case "text", "json":
	default:
		return common.NewConfigError(fmt.Sprintf("unknown report format %q (want text or json)", c.Scan.Format))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return common.NewConfigError(fmt.Sprintf("unknown log format %q (want text or json)", c.LogFormat))
	}
	if c.Scan.Concurrency < 0 {
		return common.NewConfigError("scan concurrency cannot be negative")
	}
	return nil
}

// ValidatePublish checks the settings the publish command uses. Connection
// settings are not needed for a dry run.
func (c *Config) ValidatePublish() error {
	var errs []error
	if c.Publish.Concurrency < 0 {
		errs = append(errs, common.NewConfigError("publish concurrency cannot be negative"))
	}
	if c.Publish.RateLimit < 0 {
		errs = append(errs, common.NewConfigError("rate limit cannot be negative"))
	}
	if c.Publish.MaxRetries < 0 {
		errs = append(errs, common.NewConfigError("max retries cannot be negative"))
	}
	if !c.Publish.DryRun {
		if c.S3.Endpoint == "" {
			errs = append(errs, common.NewConfigError("S3 endpoint is required"))
		}
		if err := utils.ValidateS3BucketName(c.S3.Bucket); err != nil {
			errs = append(errs, common.NewConfigError(fmt.Sprintf("invalid bucket %q: %v", c.S3.Bucket, err)))
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			errs = append(errs, common.NewConfigError("S3 access key and secret key are required"))
		}
	}
	return errors.Join(errs...)
}
