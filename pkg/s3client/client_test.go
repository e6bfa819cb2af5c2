package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockObjectAPI is a mock implementation of the AWS object calls
type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func testConfig() Config {
	return Config{
		Endpoint:  "test-endpoint",
		Region:    "test-region",
		Bucket:    "test-bucket",
		AccessKey: "test-access-key",
		SecretKey: "test-secret-key",
		UseSSL:    true,
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig()

	origNewMinIO := NewMinIOFunc
	origNewAWS := NewAWSFunc
	defer func() {
		NewMinIOFunc = origNewMinIO
		NewAWSFunc = origNewAWS
	}()

	var usedMinIO, usedAWS bool
	NewMinIOFunc = func(ctx context.Context, cfg Config) (S3Interface, error) {
		usedMinIO = true
		return &MinioClient{config: cfg}, nil
	}
	NewAWSFunc = func(ctx context.Context, cfg Config) (S3Interface, error) {
		usedAWS = true
		return &AWSClient{config: cfg}, nil
	}

	client, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.True(t, usedMinIO)
	assert.False(t, usedAWS)

	usedMinIO, usedAWS = false, false

	cfg.DisableChecksums = true
	client, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "test-bucket", client.GetBucketName())
	assert.False(t, usedMinIO)
	assert.True(t, usedAWS)
}

func TestNew_Validation(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"no endpoint": func(c *Config) { c.Endpoint = "" },
		"no bucket":   func(c *Config) { c.Bucket = "" },
		"no secret":   func(c *Config) { c.SecretKey = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			_, err := New(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestConfig_ObjectKey(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, "2025-10-01/a.jpg", cfg.objectKey("2025-10-01/a.jpg"))

	cfg.Prefix = "/trips/"
	assert.Equal(t, "trips/2025-10-01/a.jpg", cfg.objectKey("/2025-10-01/a.jpg"))
}

func TestConfig_Endpoints(t *testing.T) {
	cfg := Config{Endpoint: "s3.example.com", UseSSL: false}
	assert.Equal(t, "http://s3.example.com", cfg.endpointURL())
	assert.Equal(t, "s3.example.com", cfg.hostOnly())

	cfg = Config{Endpoint: "https://s3.example.com"}
	assert.Equal(t, "https://s3.example.com", cfg.endpointURL())
	assert.Equal(t, "s3.example.com", cfg.hostOnly())
}

func TestAWSClient_UploadFile(t *testing.T) {
	api := new(MockObjectAPI)
	cfg := testConfig()
	cfg.Prefix = "trips"
	client := &AWSClient{api: api, config: cfg}

	meta := map[string]string{"cluster-key": "2025-10-01"}
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "trips/2025-10-01/a.jpg" &&
			*in.Bucket == "test-bucket" &&
			*in.ContentType == "image/jpeg" &&
			*in.ContentLength == 4 &&
			in.Metadata["cluster-key"] == "2025-10-01"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	err := client.UploadFile(context.Background(), bytes.NewReader([]byte("data")), "2025-10-01/a.jpg", 4, meta, "image/jpeg")
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestAWSClient_UploadFileError(t *testing.T) {
	api := new(MockObjectAPI)
	client := &AWSClient{api: api, config: testConfig()}

	api.On("PutObject", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"}).Once()

	err := client.UploadFile(context.Background(), bytes.NewReader(nil), "k", 0, nil, "")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, "S3 error: nope (code: AccessDenied)", FormatError(err))
}

func TestAWSClient_ObjectExists(t *testing.T) {
	api := new(MockObjectAPI)
	client := &AWSClient{api: api, config: testConfig()}

	api.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return *in.Key == "present.jpg"
	})).Return(&s3.HeadObjectOutput{}, nil)
	api.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return *in.Key == "missing.jpg"
	})).Return(nil, &types.NotFound{})
	api.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return *in.Key == "broken.jpg"
	})).Return(nil, errors.New("connection reset"))

	ok, err := client.ObjectExists(context.Background(), "present.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.ObjectExists(context.Background(), "missing.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.ObjectExists(context.Background(), "broken.jpg")
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	minioMissing := minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	minioDenied := minio.ErrorResponse{Code: "InvalidAccessKeyId", Message: "bad key"}

	assert.True(t, IsNotFoundError(fmt.Errorf("stat: %w", minioMissing)))
	assert.True(t, IsNotFoundError(&types.NoSuchKey{}))
	assert.True(t, IsNotFoundError(ErrBucketNotFound))
	assert.False(t, IsNotFoundError(nil))
	assert.False(t, IsNotFoundError(io.ErrUnexpectedEOF))

	assert.True(t, IsAuthError(minioDenied))
	assert.True(t, IsAuthError(fmt.Errorf("wrapped: %w", ErrPermissionDenied)))
	assert.False(t, IsAuthError(minioMissing))
	assert.False(t, IsAuthError(nil))

	assert.Equal(t, "S3 error: bad key (code: InvalidAccessKeyId)", FormatError(minioDenied))
	assert.Equal(t, "", FormatError(nil))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectContentType("trip/IMG_0001.JPG"))
	assert.Equal(t, "image/heic", DetectContentType("a.heic"))
	assert.Equal(t, "image/x-adobe-dng", DetectContentType("raw.dng"))
	assert.Equal(t, "application/octet-stream", DetectContentType("blob.unknownext"))
}

func TestClients_ImplementInterface(t *testing.T) {
	var _ S3Interface = (*MinioClient)(nil)
	var _ S3Interface = (*AWSClient)(nil)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "SlowDown", ErrorCode(fmt.Errorf("put: %w", minio.ErrorResponse{Code: "SlowDown"})))
	assert.Equal(t, "AccessDenied", ErrorCode(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.Equal(t, "", ErrorCode(io.EOF))
}
