package s3client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

// Common errors
var (
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrObjectNotFound     = errors.New("object not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")
)

// ErrorCode extracts the S3 error code from either SDK
func ErrorCode(err error) string {
	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		return minioErr.Code
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrBucketNotFound) || errors.Is(err, ErrObjectNotFound) {
		return true
	}

	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}

	switch ErrorCode(err) {
	case "NoSuchBucket", "NoSuchKey", "NotFound":
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "not found") || strings.Contains(errStr, "no such")
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrPermissionDenied) {
		return true
	}

	switch ErrorCode(err) {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AuthorizationHeaderMalformed", "Forbidden":
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "access denied") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid credential") ||
		strings.Contains(errStr, "permission denied")
}

// FormatError formats an error for display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		return fmt.Sprintf("S3 error: %s (code: %s)", minioErr.Message, minioErr.Code)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("S3 error: %s (code: %s)", apiErr.ErrorMessage(), apiErr.ErrorCode())
	}

	return err.Error()
}
