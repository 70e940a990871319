package source

import (
	"fmt"

	"github.com/pkg/errors"
)

// DecodeError is returned when a file is not a supported image or document, or is corrupt.
type DecodeError struct {
	error
}

func NewDecodeError(format string, args ...any) *DecodeError {
	return &DecodeError{fmt.Errorf(format, args...)}
}

func wrapDecode(err error, format string, args ...any) *DecodeError {
	return &DecodeError{errors.Wrapf(err, format, args...)}
}

// Unwrap exposes the underlying cause.
func (e *DecodeError) Unwrap() error { return e.error }

// TooLargeError is returned when an image declares more pixels than allowed.
type TooLargeError struct {
	error
}

func NewTooLargeError(format string, args ...any) *TooLargeError {
	return &TooLargeError{fmt.Errorf(format, args...)}
}

// checkPixels rejects a width x height raster above maxPixels. Zero disables the check.
func checkPixels(name string, width, height int, maxPixels int64) error {
	if maxPixels <= 0 {
		return nil
	}
	if px := int64(width) * int64(height); px > maxPixels {
		return NewTooLargeError("%s is %dx%d (%d pixels), above the limit of %d pixels",
			name, width, height, px, maxPixels)
	}
	return nil
}
