// Package store defines the record and error contract shared by table adapters.
package store

import (
	"context"
	"errors"
	"fmt"
)

// DefaultKeyAttribute is the primary key field used when none is configured.
const DefaultKeyAttribute = "ID"

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("item not found")

// Record is an untyped item as supplied by the caller.
// Values are string, json.Number, bool, nil, map[string]any or []any.
type Record map[string]any

// Table reads and writes single records in one remote table.
type Table interface {
	// Put writes the record, replacing any record stored under the same key.
	Put(ctx context.Context, record Record) error

	// Get returns the record stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
}

// Key returns the string value of the primary key attribute.
func (r Record) Key(attribute string) (string, error) {
	raw, ok := r[attribute]
	if !ok {
		return "", &ValidationError{Message: fmt.Sprintf("Missing the key %s in the item", attribute)}
	}
	key, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Message: fmt.Sprintf("Type mismatch for key %s expected: S actual: %s", attribute, kindOf(raw))}
	}
	if key == "" {
		return "", &ValidationError{Message: fmt.Sprintf("The AttributeValue for a key attribute cannot contain an empty string value. Key: %s", attribute)}
	}
	return key, nil
}

// ClientError is a request the remote store received and rejected.
// Validation failures, throttling and access denial all surface as ClientError.
type ClientError struct {
	Operation string
	Code      string
	Message   string
	Err       error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("An error occurred (%s) when calling the %s operation: %s", e.Code, e.Operation, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// ValidationError is a record rejected locally before reaching the store.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "One or more parameter values were invalid: " + e.Message
}

// IsClientError reports whether err was raised by the store for a rejected request.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsValidationError reports whether err is a local record validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "NULL"
	case bool:
		return "BOOL"
	case map[string]any, Record:
		return "M"
	case []any:
		return "L"
	case string:
		return "S"
	default:
		return "N"
	}
}
