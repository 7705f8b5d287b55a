// Package analytics turns the raw event log into dashboard reports and owns
// the ingestion, live feed and export paths.
package analytics

import (
	"errors"
	"sort"
	"strings"
)

// Common errors returned by the analytics service.
var (
	// ErrNotFound covers both missing pages and pages owned by someone else.
	ErrNotFound = errors.New("page not found")
	// ErrUpgradeRequired means the caller's plan lacks a required feature.
	ErrUpgradeRequired = errors.New("upgrade required")
)

// ValidationError reports malformed request fields, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
