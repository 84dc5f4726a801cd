package model

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed identity or out-of-range parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a well-formed identity with no readable pool state.
type NotFoundError struct {
	Resource string
	Key      string
	Reason   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found: %s", e.Resource, e.Key, e.Reason)
}

// IsNotFound reports whether err marks missing pool state.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// ExternalServiceError reports a failed state read after retries.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// PartialReadError reports that some batches of a bulk read yielded no data.
// Results returned alongside it are usable but incomplete.
type PartialReadError struct {
	Stage  string
	Failed int
	Total  int
	Err    error
}

func (e *PartialReadError) Error() string {
	return fmt.Sprintf("%s: %d of %d batches failed: %v", e.Stage, e.Failed, e.Total, e.Err)
}

func (e *PartialReadError) Unwrap() error {
	return e.Err
}

// IsPartialRead reports whether err marks a degraded bulk read.
func IsPartialRead(err error) bool {
	var partial *PartialReadError
	return errors.As(err, &partial)
}
