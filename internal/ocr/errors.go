package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when the request carries no image or an
	// image that cannot be decoded. It maps to a 400 response.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEngineFailed is returned when the OCR engine itself fails. It maps
	// to a 500 response.
	ErrEngineFailed = errors.New("OCR engine failed")

	// ErrEngineUnavailable is returned when an engine cannot be constructed,
	// for example when the tesseract binary is not on PATH.
	ErrEngineUnavailable = errors.New("OCR engine unavailable")
)

// Error wraps an extraction failure with the operation that produced it.
type Error struct {
	// Op is the operation that failed (e.g. "Extract", "Normalize").
	Op string

	// Err is the underlying error, usually one of the sentinels above.
	Err error

	// Details is a human readable description of the failure.
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// WrapError wraps err as an *Error unless it already is one.
func WrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var ocrErr *Error
	if errors.As(err, &ocrErr) {
		return err
	}
	return NewError(op, err, details)
}

// Details returns the most specific human readable message for err.
func Details(err error) string {
	var ocrErr *Error
	if errors.As(err, &ocrErr) && ocrErr.Details != "" {
		return ocrErr.Details
	}
	return err.Error()
}
