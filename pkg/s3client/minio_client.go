package s3client

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bstardust/trip-backfill/internal/logger"
)

// MinioClient represents an S3 client using the MinIO SDK
type MinioClient struct {
	client *minio.Client
	config Config
}

// NewMinIO creates a new MinIO S3 client and checks the bucket exists
func NewMinIO(ctx context.Context, cfg Config) (S3Interface, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	endpoint := cfg.hostOnly()

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, ErrBucketNotFound)
	}

	logger.WithField("backend", "minio").Infof("Connected to %s, bucket %s", endpoint, cfg.Bucket)

	return &MinioClient{
		client: client,
		config: cfg,
	}, nil
}

// UploadFile uploads one object
func (c *MinioClient) UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error {
	objectKey = c.config.objectKey(objectKey)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	opts := minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	}
	// Photos are small: one request with an MD5 the server can verify.
	// RAW files past the threshold are sent in parts of that size.
	if size >= 0 && size < multipartThreshold {
		opts.DisableMultipart = true
		opts.SendContentMd5 = true
	} else {
		opts.PartSize = multipartThreshold
	}

	info, err := c.client.PutObject(ctx, c.config.Bucket, objectKey, reader, size, opts)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}
	if size >= 0 && info.Size != size {
		return fmt.Errorf("upload of %s stored %d of %d bytes", objectKey, info.Size, size)
	}

	logger.Debug("Stored %s (%d bytes, etag %s)", objectKey, info.Size, info.ETag)
	return nil
}

// ObjectExists checks if an object exists in the bucket
func (c *MinioClient) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	objectKey = c.config.objectKey(objectKey)

	_, err := c.client.StatObject(ctx, c.config.Bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if object exists: %w", err)
	}

	return true, nil
}

// GetBucketName returns the bucket name
func (c *MinioClient) GetBucketName() string {
	return c.config.Bucket
}

// GetEndpoint returns the endpoint
func (c *MinioClient) GetEndpoint() string {
	return c.config.Endpoint
}

// GetPrefix returns the prefix
func (c *MinioClient) GetPrefix() string {
	return c.config.Prefix
}
