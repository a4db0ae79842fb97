package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used to classify failures raised by pipeline stages and
// external collaborators.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind labels the classification of a wrapped error.
type ErrorKind string

const (
	KindExternalTool  ErrorKind = "external_tool"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindTransient     ErrorKind = "transient"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails carries the decomposed view of a classified error used for
// structured logging and user-facing messages.
type ErrorDetails struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Details classifies err against the sentinel taxonomy and strips the marker
// prefix from the message so it reads cleanly in job records and logs.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindTransient}
	}

	details := ErrorDetails{Kind: classify(err), Cause: err}
	message := err.Error()
	for _, marker := range []error{ErrExternalTool, ErrValidation, ErrConfiguration, ErrNotFound, ErrTimeout, ErrTransient} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(message, prefix) {
			message = strings.TrimPrefix(message, prefix)
			break
		}
	}
	details.Message = strings.TrimSpace(message)
	return details
}

// IsTimeout reports whether err carries timeout semantics, including context
// deadline expiry from a stage budget.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	default:
		return KindTransient
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
