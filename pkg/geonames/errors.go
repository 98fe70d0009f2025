package geonames

import (
	"errors"
	"fmt"
)

// ErrClient is the root of every error returned by this package.
var ErrClient = errors.New("geonames")

// Category sentinels. Each wraps ErrClient.
var (
	ErrService           = fmt.Errorf("%w: service error", ErrClient)
	ErrTransport         = fmt.Errorf("%w: transport failure", ErrClient)
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrClient)
	ErrUnclassifiedCode  = fmt.Errorf("%w: unclassified service code", ErrClient)
	ErrInvalidArgument   = fmt.Errorf("%w: invalid argument", ErrClient)
)

// ErrorKind is one of the fourteen service-level failures geonames reports
// inside an otherwise successful response.
type ErrorKind struct {
	code int
	name string
}

// Code returns the numeric status value geonames uses for the kind.
func (k *ErrorKind) Code() int {
	if k == nil {
		return 0
	}
	return k.code
}

// Error handles internal error behavior.
func (k *ErrorKind) Error() string {
	if k == nil {
		return "geonames: unknown service error"
	}
	return "geonames: " + k.name
}

// Unwrap places every kind under ErrService.
func (k *ErrorKind) Unwrap() error { return ErrService }

var (
	ErrAuthorizationFailure      = &ErrorKind{code: 10, name: "authorization failure"}
	ErrRecordNotFound            = &ErrorKind{code: 11, name: "record does not exist"}
	ErrOtherServiceError         = &ErrorKind{code: 12, name: "other error"}
	ErrDatabaseTimeout           = &ErrorKind{code: 13, name: "database timeout"}
	ErrInvalidParameter          = &ErrorKind{code: 14, name: "invalid parameter"}
	ErrNoResultFound             = &ErrorKind{code: 15, name: "no result found"}
	ErrDuplicateRecord           = &ErrorKind{code: 16, name: "duplicate record"}
	ErrPostalCodeNotFound        = &ErrorKind{code: 17, name: "postal code not found"}
	ErrDailyCreditLimitExceeded  = &ErrorKind{code: 18, name: "daily limit of credits exceeded"}
	ErrHourlyCreditLimitExceeded = &ErrorKind{code: 19, name: "hourly limit of credits exceeded"}
	ErrWeeklyCreditLimitExceeded = &ErrorKind{code: 20, name: "weekly limit of credits exceeded"}
	ErrInvalidInput              = &ErrorKind{code: 21, name: "invalid input"}
	ErrServerOverloaded          = &ErrorKind{code: 22, name: "server overloaded"}
	ErrServiceNotImplemented     = &ErrorKind{code: 23, name: "service not implemented"}
)

const (
	minServiceCode = 10
	maxServiceCode = 23
)

// kindsByCode is indexed by code-minServiceCode.
var kindsByCode = [...]*ErrorKind{
	ErrAuthorizationFailure,
	ErrRecordNotFound,
	ErrOtherServiceError,
	ErrDatabaseTimeout,
	ErrInvalidParameter,
	ErrNoResultFound,
	ErrDuplicateRecord,
	ErrPostalCodeNotFound,
	ErrDailyCreditLimitExceeded,
	ErrHourlyCreditLimitExceeded,
	ErrWeeklyCreditLimitExceeded,
	ErrInvalidInput,
	ErrServerOverloaded,
	ErrServiceNotImplemented,
}

// Classify maps a geonames status value to its error kind. Codes outside
// 10..23 yield an *UnclassifiedCodeError.
func Classify(code int) (*ErrorKind, error) {
	if code < minServiceCode || code > maxServiceCode {
		return nil, &UnclassifiedCodeError{Code: code}
	}
	return kindsByCode[code-minServiceCode], nil
}

// ServiceError is returned when a 200 response carries a status envelope.
type ServiceError struct {
	Kind    *ErrorKind
	Message string
}

// Error handles internal error behavior.
func (e *ServiceError) Error() string {
	if e == nil {
		return "geonames: service error"
	}
	return fmt.Sprintf("%s (code %d): %s", e.Kind.Error(), e.Kind.Code(), e.Message)
}

func (e *ServiceError) Unwrap() error {
	if e == nil || e.Kind == nil {
		return ErrService
	}
	return e.Kind
}

// TransportError reports a non-200 HTTP status. Body holds the start of the
// response for diagnostics and is never parsed.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	if e == nil {
		return "geonames: transport failure"
	}
	if e.Body == "" {
		return fmt.Sprintf("geonames: status code %d", e.StatusCode)
	}
	return fmt.Sprintf("geonames: status code %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return ErrTransport }

// MalformedResponseError represents a body that is not JSON or matches neither
// the success shape nor the error envelope.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e == nil {
		return "geonames: malformed response"
	}
	if e.Err != nil {
		return fmt.Sprintf("geonames: malformed response: %s: %v", e.Reason, e.Err)
	}
	return "geonames: malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() []error {
	if e == nil || e.Err == nil {
		return []error{ErrMalformedResponse}
	}
	return []error{ErrMalformedResponse, e.Err}
}

// UnclassifiedCodeError is returned for a status value outside 10..23, which
// usually means the service added a code this client does not know.
type UnclassifiedCodeError struct {
	Code    int
	Message string
}

func (e *UnclassifiedCodeError) Error() string {
	if e == nil {
		return "geonames: invalid code"
	}
	if e.Message != "" {
		return fmt.Sprintf("geonames: invalid code: %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("geonames: invalid code: %d", e.Code)
}

func (e *UnclassifiedCodeError) Unwrap() error { return ErrUnclassifiedCode }

// InvalidArgumentError is returned before any request is made.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e == nil {
		return "geonames: invalid argument"
	}
	if e.Field == "" {
		return "geonames: invalid argument: " + e.Reason
	}
	return fmt.Sprintf("geonames: invalid argument %s: %s", e.Field, e.Reason)
}

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// IsCreditLimit reports whether err is one of the daily, hourly or weekly
// credit limit errors.
func IsCreditLimit(err error) bool {
	return errors.Is(err, ErrDailyCreditLimitExceeded) ||
		errors.Is(err, ErrHourlyCreditLimitExceeded) ||
		errors.Is(err, ErrWeeklyCreditLimitExceeded)
}
