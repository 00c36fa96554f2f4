// Package errors provides standardized error types and helpers for the CedarBib codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidName indicates a value could not be coerced to a symbolic name
	ErrInvalidName = errors.New("invalid name")
	// ErrUnknownField indicates a query referenced a field the element does not have
	ErrUnknownField = errors.New("unknown field")
	// ErrMalformedQuery indicates a query string could not be parsed
	ErrMalformedQuery = errors.New("malformed query")
	// ErrAttached indicates an element already belongs to a bibliography
	ErrAttached = errors.New("element already attached")
	// ErrNotAttached indicates an element does not belong to the given bibliography
	ErrNotAttached = errors.New("element not attached")
)

// CoercionError represents a failure to coerce a value to a symbolic name,
// such as assigning an empty or unquotable key to a string constant.
type CoercionError struct {
	Value  string // Value that could not be coerced
	Reason string // Why coercion failed
	Err    error  // Underlying error, if any
}

func (e *CoercionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot coerce %q to a symbolic name: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("cannot coerce %q to a symbolic name", e.Value)
}

func (e *CoercionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidName
}

// UnknownFieldError represents a query condition naming a field the target
// element does not define. It propagates to the caller so malformed queries
// stay observable instead of silently failing the predicate.
type UnknownFieldError struct {
	ElementType string // Type of the element being queried (e.g., "article", "string_constant")
	Field       string // Field name that was requested
}

func (e *UnknownFieldError) Error() string {
	if e.ElementType != "" {
		return fmt.Sprintf("%s has no field %q", e.ElementType, e.Field)
	}
	return fmt.Sprintf("no field %q", e.Field)
}

func (e *UnknownFieldError) Unwrap() error {
	return ErrUnknownField
}

// QueryError represents an unparseable query, such as a /pattern/ form whose
// pattern is not a valid regular expression.
type QueryError struct {
	Query  string // The query string as given
	Reason string // Error details
	Err    error  // Underlying error, if any
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("malformed query %q: %s", e.Query, e.Reason)
}

func (e *QueryError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedQuery
}

// ParseError represents a failure in the BibTeX grammar.
type ParseError struct {
	Path    string // File path, if parsing a file
	Line    int    // 1-indexed line of the failure, 0 if unknown
	Column  int    // 1-indexed column of the failure, 0 if unknown
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "entry", "string constant")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// Helper functions for creating common errors

// NewCoercion creates a CoercionError
func NewCoercion(value, reason string) *CoercionError {
	return &CoercionError{
		Value:  value,
		Reason: reason,
	}
}

// NewUnknownField creates an UnknownFieldError
func NewUnknownField(elementType, field string) *UnknownFieldError {
	return &UnknownFieldError{
		ElementType: elementType,
		Field:       field,
	}
}

// NewQuery creates a QueryError
func NewQuery(query, reason string, err error) *QueryError {
	return &QueryError{
		Query:  query,
		Reason: reason,
		Err:    err,
	}
}

// NewParse creates a ParseError
func NewParse(path string, line, column int, message string) *ParseError {
	return &ParseError{
		Path:    path,
		Line:    line,
		Column:  column,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
