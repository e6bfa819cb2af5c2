package s3client

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bstardust/trip-backfill/internal/logger"
)

// Objects below this size go up in a single PutObject. Backblaze B2 rejects
// multipart bodies with parts under 5MB.
const multipartThreshold = 10 * 1024 * 1024

// objectAPI is the subset of *s3.Client used outside the multipart path
type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AWSClient represents an S3 client using the AWS SDK v2 with request
// checksums only sent when an operation requires them.
type AWSClient struct {
	api      objectAPI
	uploader *manager.Uploader
	config   Config
}

// NewAWS creates a new AWS S3 client and checks the bucket is reachable
func NewAWS(ctx context.Context, cfg Config) (S3Interface, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	endpoint := cfg.endpointURL()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	logger.Info("Connected to S3 endpoint %s, bucket %s using AWS SDK", endpoint, cfg.Bucket)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartThreshold
		u.Concurrency = 4
		u.LeavePartsOnError = false
	})

	return &AWSClient{
		api:      client,
		uploader: uploader,
		config:   cfg,
	}, nil
}

// UploadFile uploads one object
func (c *AWSClient) UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error {
	objectKey = c.config.objectKey(objectKey)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.config.Bucket),
		Key:         aws.String(objectKey),
		Body:        reader,
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	}

	var err error
	if size < multipartThreshold || c.uploader == nil {
		input.ContentLength = aws.Int64(size)
		_, err = c.api.PutObject(ctx, input)
	} else {
		_, err = c.uploader.Upload(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}

	logger.Debug("Uploaded file to %s (%d bytes)", objectKey, size)
	return nil
}

// ObjectExists checks if an object exists in the bucket
func (c *AWSClient) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	objectKey = c.config.objectKey(objectKey)

	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if object exists: %w", err)
	}

	return true, nil
}

// GetBucketName returns the bucket name
func (c *AWSClient) GetBucketName() string {
	return c.config.Bucket
}

// GetEndpoint returns the endpoint
func (c *AWSClient) GetEndpoint() string {
	return c.config.Endpoint
}

// GetPrefix returns the prefix
func (c *AWSClient) GetPrefix() string {
	return c.config.Prefix
}
