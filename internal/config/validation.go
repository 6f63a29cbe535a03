package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ValidationError is a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError collects every invalid field of a config.
type MultiValidationError struct {
	Errors []ValidationError
}

func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "validation failed with %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

var validOutputFormats = map[string]bool{"text": true, "json": true, "csv": true}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
			add("log.level", "unknown level %q", c.Log.Level)
		}
	}
	if c.Analysis.CacheSize < 0 {
		add("analysis.cache_size", "must not be negative, got %d", c.Analysis.CacheSize)
	}
	if c.Analysis.MaxReferenceDepth < 0 {
		add("analysis.max_reference_depth", "must not be negative, got %d", c.Analysis.MaxReferenceDepth)
	}
	if !validOutputFormats[strings.ToLower(c.Output.Format)] {
		add("output.format", "must be text, json or csv, got %q", c.Output.Format)
	}
	if c.Output.Limit < 0 {
		add("output.limit", "must not be negative, got %d", c.Output.Limit)
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}
