package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ivlev/solarscope/internal/analyzer"
	"github.com/ivlev/solarscope/internal/roi"
	"github.com/ivlev/solarscope/internal/source"
	"github.com/ivlev/solarscope/pkg/metrics"
)

// requestError is a malformed request that never reached the domain layer.
type requestError struct {
	error
	status int
}

func newBadRequestError(format string, args ...any) *requestError {
	return &requestError{error: fmt.Errorf(format, args...), status: http.StatusBadRequest}
}

func newTooLargeError(limit int64) *requestError {
	return &requestError{
		error:  fmt.Errorf("upload exceeds the limit of %d bytes", limit),
		status: http.StatusRequestEntityTooLarge,
	}
}

// statusFor maps an error to the HTTP status shown to the client.
func statusFor(err error) int {
	var (
		reqErr       *requestError
		decodeErr    *source.DecodeError
		tooLarge     *source.TooLargeError
		invalidImage *analyzer.InvalidImageError
		invalidParam *roi.InvalidParameterError
		validation   validator.ValidationErrors
	)

	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &decodeErr):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &invalidImage):
		return http.StatusUnprocessableEntity
	case errors.As(err, &invalidParam), errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// resultFor returns the metrics label of an outcome.
func resultFor(err error) string {
	if err == nil {
		return metrics.ResultOK
	}

	var (
		reqErr       *requestError
		decodeErr    *source.DecodeError
		tooLarge     *source.TooLargeError
		invalidImage *analyzer.InvalidImageError
		invalidParam *roi.InvalidParameterError
	)

	switch {
	case errors.As(err, &reqErr):
		return metrics.ResultBadRequest
	case errors.As(err, &tooLarge):
		return metrics.ResultTooLarge
	case errors.As(err, &decodeErr):
		return metrics.ResultDecodeError
	case errors.As(err, &invalidImage):
		return metrics.ResultInvalidImage
	case errors.As(err, &invalidParam):
		return metrics.ResultInvalidParams
	default:
		return metrics.ResultError
	}
}

// describeValidation turns validator output into one readable sentence per field.
func describeValidation(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed the %s check", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
