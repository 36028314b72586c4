package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrInvalidInput marks caller mistakes (empty batch, no usable columns, bad order_by).
// Wrap it with detail: fmt.Errorf("%w: ...", ErrInvalidInput).
var ErrInvalidInput = errors.New("invalid input")

// StorageError carries any failure raised by an underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Op == "" {
		return "storage error: " + e.Err.Error()
	}
	return fmt.Sprintf("storage error (%s): %s", e.Op, e.Err.Error())
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as a StorageError. nil, invalid-input, not-found and
// already wrapped storage errors pass through unchanged.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrorRecordNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrorRecordNotFound, fmt.Sprintf(format, args...))
}

// JoinErrors joins the non-nil errors, nil when there are none.
func JoinErrors(errs []error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return fmt.Errorf("%d failures: %w", len(kept), errors.Join(kept...))
}
