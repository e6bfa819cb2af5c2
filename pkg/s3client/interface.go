package s3client

import (
	"context"
	"io"
)

// S3Interface defines the operations that an S3 client must implement
type S3Interface interface {
	UploadFile(ctx context.Context, reader io.Reader, objectKey string, size int64, metadata map[string]string, contentType string) error
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	GetBucketName() string
	GetEndpoint() string
	GetPrefix() string
}
