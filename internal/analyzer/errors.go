package analyzer

import "fmt"

// InvalidImageError is returned when an image cannot be measured, e.g. it has no pixels.
type InvalidImageError struct {
	error
}

func NewInvalidImageError(format string, args ...any) *InvalidImageError {
	return &InvalidImageError{fmt.Errorf(format, args...)}
}
