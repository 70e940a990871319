package roi

import "fmt"

// InvalidParameterError is returned when an economic input is out of range.
type InvalidParameterError struct {
	error
}

func NewInvalidParameterError(format string, args ...any) *InvalidParameterError {
	return &InvalidParameterError{fmt.Errorf(format, args...)}
}
