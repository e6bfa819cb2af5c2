package s3client

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Config represents the configuration for an S3 client
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
	// DisableChecksums selects the AWS SDK back end with request checksums
	// turned off, for providers such as Backblaze B2 that reject them.
	DisableChecksums bool
}

// Constructors used by New. Tests replace them.
var (
	NewMinIOFunc = NewMinIO
	NewAWSFunc   = NewAWS
)

// New creates the S3 client matching cfg
func New(ctx context.Context, cfg Config) (S3Interface, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.DisableChecksums {
		return NewAWSFunc(ctx, cfg)
	}
	return NewMinIOFunc(ctx, cfg)
}

func (cfg Config) validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("S3 endpoint is required")
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("S3 bucket name is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return fmt.Errorf("S3 access key and secret key are required")
	}
	return nil
}

// hostOnly strips any scheme from the endpoint
func (cfg Config) hostOnly() string {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}

// endpointURL returns the endpoint with a scheme matching UseSSL
func (cfg Config) endpointURL() string {
	if strings.HasPrefix(cfg.Endpoint, "http://") || strings.HasPrefix(cfg.Endpoint, "https://") {
		return cfg.Endpoint
	}
	if cfg.UseSSL {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}

// objectKey returns the full object key with prefix. Keys always use
// forward slashes.
func (cfg Config) objectKey(key string) string {
	if cfg.Prefix == "" {
		return key
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	key = strings.TrimPrefix(key, "/")
	return path.Join(prefix, key)
}
