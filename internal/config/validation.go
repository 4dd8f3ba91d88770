package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if err := c.validateDatabase("left", &c.Left); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateDatabase("right", &c.Right); err != nil {
		errors = append(errors, err...)
	}

	if len(c.Jobs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "jobs",
			Message: "at least one job must be defined",
		})
	}
	for name, job := range c.Jobs {
		if err := c.validateJob(name, &job); err != nil {
			errors = append(errors, err...)
		}
	}

	if err := c.validateBisection("bisection", &c.Bisect); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateJob(name string, job *DiffJob) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("jobs.%s", name)

	if job.LeftTable == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".left_table",
			Message: "left_table is required",
		})
	}

	if job.RightTable == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".right_table",
			Message: "right_table is required",
		})
	}

	if len(job.KeyColumns) == 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".key_columns",
			Message: "at least one key column is required",
		})
	}

	for _, dep := range job.DependsOn {
		if dep == name {
			errors = append(errors, ValidationError{
				Field:   prefix + ".depends_on",
				Message: "a job cannot depend on itself",
			})
		}
	}

	if job.Bisect != nil {
		if err := c.validateBisection(prefix+".bisection", job.Bisect); err != nil {
			errors = append(errors, err...)
		}
	}

	return errors
}

func (c *Config) validateBisection(prefix string, b *BisectionConfig) ValidationErrors {
	var errors ValidationErrors

	if b.Factor < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".factor",
			Message: "factor cannot be negative",
		})
	}
	if !b.Disabled && b.Factor == 1 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".factor",
			Message: "factor of 1 never narrows a mismatched range; set disabled instead",
		})
	}

	if b.Threshold < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".threshold",
			Message: "threshold cannot be negative",
		})
	}

	if b.MaxThreadpoolSize < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_threadpool_size",
			Message: "max_threadpool_size cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
