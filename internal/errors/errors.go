// Package errors defines the failure taxonomy for a price-export run.
// Every failure surfaced to the user is classified into one of a small set
// of kinds so the CLI can report a human-readable diagnostic per kind.
// There is no retry machinery here: a run either completes or fails outright.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a run failure.
type Kind int

const (
	// KindUnclassified covers any failure during read, transform or write
	// that does not match a more specific kind.
	KindUnclassified Kind = iota
	// KindMissingInputFile means the input CSV could not be located.
	KindMissingInputFile
	// KindMissingRequiredColumn means one or more mandatory input columns
	// are absent from the CSV header.
	KindMissingRequiredColumn
	// KindEmptyAfterNormalization means no rows survived timestamp parsing,
	// so there is nothing to transform.
	KindEmptyAfterNormalization
	// KindUnknownTimezone means the configured target timezone identifier
	// is not a known IANA zone.
	KindUnknownTimezone
	// KindNoData means the market-data provider returned an empty result.
	KindNoData
)

// String returns the kind's name as shown in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindMissingInputFile:
		return "missing_input_file"
	case KindMissingRequiredColumn:
		return "missing_required_column"
	case KindEmptyAfterNormalization:
		return "empty_after_normalization"
	case KindUnknownTimezone:
		return "unknown_timezone"
	case KindNoData:
		return "no_data"
	default:
		return "unclassified"
	}
}

// RunError is a failure tagged with its kind and the operation that raised
// it. It wraps the underlying cause when there is one.
type RunError struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// Is matches RunErrors by kind so callers can use errors.Is with a
// kind-only target.
func (e *RunError) Is(target error) bool {
	t, ok := target.(*RunError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// E builds a RunError wrapping err.
func E(kind Kind, op string, err error) *RunError {
	return &RunError{Kind: kind, Op: op, Err: err}
}

// Errorf builds a RunError from a formatted message with no wrapped cause.
func Errorf(kind Kind, op, format string, args ...any) *RunError {
	return &RunError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from an error chain, defaulting to unclassified.
func KindOf(err error) Kind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnclassified
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}
