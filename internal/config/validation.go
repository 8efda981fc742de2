package config

import (
	"fmt"
	"strings"

	"github.com/yoanbernabeu/sshrun/internal/constants"
	"github.com/yoanbernabeu/sshrun/internal/security"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ValidateHostConfig validates a saved host
func ValidateHostConfig(config *HostConfig) ValidationErrors {
	var errors ValidationErrors

	if config.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "host",
			Message: "host is required",
		})
	} else if err := security.ValidateHostname(config.Host); err != nil {
		errors = append(errors, ValidationError{
			Field:   "host",
			Message: err.Error(),
		})
	}

	if config.User != "" {
		if err := security.ValidateUnixUser(config.User); err != nil {
			errors = append(errors, ValidationError{
				Field:   "user",
				Message: err.Error(),
			})
		}
	}

	if err := security.ValidatePort(config.Port); err != nil {
		errors = append(errors, ValidationError{
			Field:   "port",
			Message: err.Error(),
		})
	}

	return errors
}

// ValidateGlobalConfig validates the global configuration, including every
// saved host
func ValidateGlobalConfig(config *GlobalConfig) ValidationErrors {
	var errors ValidationErrors

	if config.DefaultUser != "" {
		if err := security.ValidateUnixUser(config.DefaultUser); err != nil {
			errors = append(errors, ValidationError{
				Field:   "default_user",
				Message: err.Error(),
			})
		}
	}

	if err := security.ValidatePort(config.DefaultPort); err != nil {
		errors = append(errors, ValidationError{
			Field:   "default_port",
			Message: err.Error(),
		})
	}

	if config.DialTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "dial_timeout",
			Message: "dial_timeout cannot be negative",
		})
	}

	if config.ReadTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "read_timeout",
			Message: "read_timeout cannot be negative",
		})
	}

	if config.Concurrency < 0 || config.Concurrency > constants.MaxConcurrency {
		errors = append(errors, ValidationError{
			Field:   "concurrency",
			Message: fmt.Sprintf("concurrency must be between 1 and %d", constants.MaxConcurrency),
		})
	}

	for _, alias := range config.ListHosts() {
		if err := security.ValidateHostAlias(alias); err != nil {
			errors = append(errors, ValidationError{
				Field:   "hosts." + alias,
				Message: err.Error(),
			})
			continue
		}
		host := config.Hosts[alias]
		for _, e := range ValidateHostConfig(&host) {
			e.Field = "hosts." + alias + "." + e.Field
			errors = append(errors, e)
		}
	}

	return errors
}
