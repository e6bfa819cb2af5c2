package utils

import (
	"errors"
	"strings"
)

// ValidateS3BucketName checks if the provided S3 bucket name is valid according to AWS naming conventions.
func ValidateS3BucketName(bucketName string) error {
	if len(bucketName) < 3 || len(bucketName) > 63 {
		return errors.New("bucket name must be between 3 and 63 characters")
	}
	if strings.Contains(bucketName, " ") {
		return errors.New("bucket name cannot contain spaces")
	}
	if !isDNSCompatible(bucketName) {
		return errors.New("bucket name must be DNS compliant")
	}
	if strings.Contains(bucketName, "..") {
		return errors.New("bucket name cannot contain consecutive dots")
	}
	return nil
}

// isDNSCompatible checks if the bucket name is DNS compliant: lowercase
// letters, digits, hyphens and dots, starting and ending with a letter or
// digit.
func isDNSCompatible(name string) bool {
	for _, char := range name {
		if !isAlnum(char) && char != '-' && char != '.' {
			return false
		}
	}
	return isAlnum(rune(name[0])) && isAlnum(rune(name[len(name)-1]))
}

func isAlnum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
