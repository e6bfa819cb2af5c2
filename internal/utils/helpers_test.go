package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateS3BucketName(t *testing.T) {
	valid := []string{"trips", "my-photo-backup", "photos.2025", "abc"}
	for _, name := range valid {
		assert.NoError(t, ValidateS3BucketName(name), name)
	}

	invalid := []string{
		"",
		"ab",
		strings.Repeat("a", 64),
		"My-Bucket",
		"has space",
		"-leading",
		"trailing-",
		"under_score",
		"two..dots",
	}
	for _, name := range invalid {
		assert.Error(t, ValidateS3BucketName(name), name)
	}
}
