// Package errors provides the error taxonomy for the lumea pipeline.
// Typed errors carry enough context to produce a readable end-of-run
// summary and support errors.Is / errors.As for programmatic checks.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As mirror the standard library so callers need one errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Common sentinel errors for the lumea pipeline
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceUnreadable indicates a source table is structurally unusable
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrLoadIntegrity indicates a constraint violation the loader did not anticipate
	ErrLoadIntegrity = errors.New("load integrity violation")

	// ErrSourceUnavailable indicates a remote source could not be reached
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// SourceUnreadableError reports a source table that is missing every
// expected column or could not be fetched at all. It is fatal for that
// source only; the pipeline continues with the remaining sources.
type SourceUnreadableError struct {
	Source   string
	Expected []string
	Message  string
	Err      error
}

// Error implements the error interface
func (e *SourceUnreadableError) Error() string {
	if len(e.Expected) > 0 {
		return fmt.Sprintf("source %s unreadable: %s (expected one of: %s)",
			e.Source, e.Message, strings.Join(e.Expected, ", "))
	}
	return fmt.Sprintf("source %s unreadable: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *SourceUnreadableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SourceUnreadableError) Is(target error) bool {
	return target == ErrSourceUnreadable
}

// NewSourceUnreadableError creates a new SourceUnreadableError
func NewSourceUnreadableError(source string, expected []string, message string, err error) *SourceUnreadableError {
	return &SourceUnreadableError{
		Source:   source,
		Expected: expected,
		Message:  message,
		Err:      err,
	}
}

// LoadIntegrityError reports a constraint violation during the load phase.
// Committed and RolledBack name the tables on either side of the failure.
type LoadIntegrityError struct {
	Table      string
	Key        string
	Committed  []string
	RolledBack []string
	Err        error
}

// Error implements the error interface
func (e *LoadIntegrityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "load integrity violation on %s", e.Table)
	if e.Key != "" {
		fmt.Fprintf(&b, " (key %q)", e.Key)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Committed) > 0 {
		fmt.Fprintf(&b, "; committed: %s", strings.Join(e.Committed, ", "))
	}
	if len(e.RolledBack) > 0 {
		fmt.Fprintf(&b, "; rolled back: %s", strings.Join(e.RolledBack, ", "))
	}
	return b.String()
}

// Unwrap implements errors.Unwrap
func (e *LoadIntegrityError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *LoadIntegrityError) Is(target error) bool {
	return target == ErrLoadIntegrity
}

// NewLoadIntegrityError creates a new LoadIntegrityError
func NewLoadIntegrityError(table, key string, err error) *LoadIntegrityError {
	return &LoadIntegrityError{
		Table: table,
		Key:   key,
		Err:   err,
	}
}

// APIError represents an error from a remote source API
type APIError struct {
	Source     string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	return e.StatusCode >= 500 && target == ErrSourceUnavailable
}

// NewAPIError creates a new APIError
func NewAPIError(source string, statusCode int, message string) *APIError {
	return &APIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "csv", "yaml", "json", "html"
	File    string
	Line    int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d: %s", e.Format, e.File, e.Line, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "create", "query", "insert", "fetch"
	Resource  string // "schema", "department", "commune", "site", "source"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsSourceUnreadable checks if an error marks an unusable source
func IsSourceUnreadable(err error) bool {
	return errors.Is(err, ErrSourceUnreadable)
}

// IsLoadIntegrity checks if an error is a load integrity violation
func IsLoadIntegrity(err error) bool {
	return errors.Is(err, ErrLoadIntegrity)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
