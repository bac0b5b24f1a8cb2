package bifrost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	CodeInvalidArgument    ErrorCode = "invalid_argument"
	CodeFailedPrecondition ErrorCode = "failed_precondition"
	CodeUnauthenticated    ErrorCode = "unauthenticated"
	CodePermissionDenied   ErrorCode = "permission_denied"
	CodeNotFound           ErrorCode = "not_found"
	CodeMethodNotAllowed   ErrorCode = "method_not_allowed"
	CodeConflict           ErrorCode = "conflict"
	CodeGone               ErrorCode = "gone"
	CodeResourceExhausted  ErrorCode = "resource_exhausted"
	CodeCanceled           ErrorCode = "canceled"
	CodeInternal           ErrorCode = "internal"
	CodeNotImplemented     ErrorCode = "not_implemented"
	CodeUnavailable        ErrorCode = "unavailable"
	CodeDeadlineExceeded   ErrorCode = "deadline_exceeded"
)

// Configuration errors. They indicate a missing collaborator rather than a
// failed call.
var (
	// ErrNoDispatcher is returned when calling a zero Node.
	ErrNoDispatcher = NewError(CodeFailedPrecondition, "node has no dispatcher")

	// ErrNoTransport is returned by NewClient when neither a base URL nor a
	// transport is configured.
	ErrNoTransport = NewError(CodeFailedPrecondition, "a base URL must be supplied if no transport is provided")

	// ErrNoCache is reported by the cache-dependent dispatchers when no
	// cache or query client was configured.
	ErrNoCache = NewError(CodeFailedPrecondition, "no query client provided")

	// ErrNoRequestBody is returned by a mounted route when the request has no
	// parsed body.
	ErrNoRequestBody = NewError(CodeFailedPrecondition, "unable to find request body; ensure the server parses the body and attaches it to the request")

	// ErrNoResponder is returned by a mounted route when the response object
	// exposes neither Send nor JSON.
	ErrNoResponder = NewError(CodeInternal, "unable to find a method to send the response")
)

// Error is the standard JSON error envelope.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// WithDetails returns a new Error with the provided map merged into details.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: merged,
	}
}

// ErrorTransformer maps an application error to an *Error.
// If it returns nil, DefaultErrorTransformer is applied.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer maps standard Go errors to an *Error.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeDeadlineExceeded, "request timeout")
	}

	if errors.Is(err, context.Canceled) {
		return NewError(CodeCanceled, "context canceled")
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		details := make(map[string]any)
		messages := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			msg := formatValidationError(ve)
			details[ve.Field()] = msg
			messages = append(messages, ve.Field()+": "+msg)
		}
		return &Error{
			Code:    CodeInvalidArgument,
			Message: strings.Join(messages, "; "),
			Details: details,
		}
	}

	// errors.Join: the first error decides the code, every message is kept.
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		errs := u.Unwrap()
		if len(errs) > 0 {
			firstMapped := DefaultErrorTransformer(errs[0])
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return &Error{
				Code:    firstMapped.Code,
				Message: strings.Join(msgs, "; "),
				Details: firstMapped.Details,
			}
		}
	}

	return NewError(CodeInternal, err.Error())
}

// HTTPStatus maps an ErrorCode to an HTTP status code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument, CodeFailedPrecondition:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeConflict:
		return http.StatusConflict
	case CodeGone:
		return http.StatusGone
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	case CodeCanceled:
		return 499 // Client Closed Request (Nginx standard)
	case CodeInternal:
		return http.StatusInternalServerError
	case CodeNotImplemented:
		return http.StatusNotImplemented
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// codeFromHTTPStatus is the inverse of HTTPStatus, used by transports when
// the server did not send an error envelope.
func codeFromHTTPStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidArgument
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusConflict:
		return CodeConflict
	case http.StatusGone:
		return CodeGone
	case http.StatusTooManyRequests:
		return CodeResourceExhausted
	case 499:
		return CodeCanceled
	case http.StatusNotImplemented:
		return CodeNotImplemented
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return CodeUnavailable
	case http.StatusGatewayTimeout:
		return CodeDeadlineExceeded
	default:
		return CodeInternal
	}
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "url", "http_url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	case "hostname_port":
		return "must be a host:port address"
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

func writeError(w http.ResponseWriter, svcErr *Error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.Code.HTTPStatus())
	if err := encodeErrorResponse(w, svcErr); err != nil {
		// Headers already sent, nothing we can do. Log for debugging.
		logger.Error("failed to encode error response",
			slog.String("code", string(svcErr.Code)),
			slog.String("message", svcErr.Message),
			slog.Any("error", err))
	}
}
