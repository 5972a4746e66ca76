package ablypush

import (
	"errors"
	"fmt"
)

// Error kinds. An *ErrorInfo unwraps to one of these, so callers can test
// the kind with errors.Is regardless of the code and message.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrService              = errors.New("service error")
	ErrPlatformRegistration = errors.New("platform push registration failed")
	ErrUpdateFailed         = errors.New("device registration update failed")
	ErrNotRegistered        = errors.New("device not registered")
	ErrUnsupported          = errors.New("push activation not supported on this platform")
	ErrInvalidState         = errors.New("operation not allowed in current state")
)

// Service error codes used for errors raised on the client side.
const (
	CodeBadRequest        = 40000
	CodeInvalidArgument   = 40003
	CodeInvalidCredential = 40005
	CodeUnsupported       = 40020
	CodeInvalidState      = 40090
	CodeNotFound          = 40400
	CodeConnectionFailed  = 80000
)

// ErrorInfo is the error type of the service. It is decoded from error
// responses and also built locally for argument and state errors.
type ErrorInfo struct {
	Code       int    `json:"code"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	HRef       string `json:"href,omitempty"`

	kind  error
	cause error
}

func (e *ErrorInfo) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ErrorInfo) Unwrap() []error {
	var errs []error
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// Cause returns the error that triggered this one, if any.
func (e *ErrorInfo) Cause() error {
	return e.cause
}

func newErrorInfo(kind error, code, status int, cause error, format string, args ...interface{}) *ErrorInfo {
	return &ErrorInfo{
		Code:       code,
		StatusCode: status,
		Message:    fmt.Sprintf(format, args...),
		kind:       kind,
		cause:      cause,
	}
}

func InvalidArgumentf(format string, args ...interface{}) *ErrorInfo {
	return newErrorInfo(ErrInvalidArgument, CodeInvalidArgument, 400, nil, format, args...)
}

// ServiceError builds the error for a failed response. code and message
// come from the response body when it carried one.
func ServiceError(code, status int, message string) *ErrorInfo {
	if code == 0 {
		code = status * 100
	}
	return newErrorInfo(ErrService, code, status, nil, "%s", message)
}

// AsServiceError marks a decoded error body as a service error.
func AsServiceError(info *ErrorInfo) *ErrorInfo {
	info.kind = ErrService
	if info.Code == 0 {
		info.Code = info.StatusCode * 100
	}
	return info
}

// TransportError is a service error for a request that never got a
// response. The network error stays reachable through errors.Is/As.
func TransportError(cause error) *ErrorInfo {
	return newErrorInfo(ErrService, CodeConnectionFailed, 0, cause, "%v", cause)
}

func PlatformRegistrationError(cause error) *ErrorInfo {
	return newErrorInfo(ErrPlatformRegistration, CodeBadRequest, 400, cause,
		"platform registration failed: %v", cause)
}

func UpdateFailure(cause error) *ErrorInfo {
	return newErrorInfo(ErrUpdateFailed, CodeBadRequest, 400, cause,
		"failed updating device registration: %v", cause)
}

func NotRegisteredError() *ErrorInfo {
	return newErrorInfo(ErrNotRegistered, CodeNotFound, 404, nil, "device is not registered")
}

func UnsupportedError() *ErrorInfo {
	return newErrorInfo(ErrUnsupported, CodeUnsupported, 400, nil, "no push platform configured")
}

func InvalidStatef(format string, args ...interface{}) *ErrorInfo {
	return newErrorInfo(ErrInvalidState, CodeInvalidState, 400, nil, format, args...)
}

func NoCredentialsError() *ErrorInfo {
	return newErrorInfo(ErrInvalidArgument, CodeInvalidCredential, 401, nil,
		"no key or token provided to authenticate")
}
