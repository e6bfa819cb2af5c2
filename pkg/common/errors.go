package common

import "fmt"

// ConfigError reports an invalid or missing setting
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Configuration Error: %s", e.Message)
}

func NewConfigError(message string) error {
	return &ConfigError{Message: message}
}
