package errors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindTransport
	KindData
	KindBusinessRule
	KindTimeout
	KindCanceled
	KindJobFailed
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindData:
		return "data"
	case KindBusinessRule:
		return "business_rule"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindJobFailed:
		return "job_failed"
	default:
		return "internal"
	}
}

type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error should abort a run. Data errors are
// collected per record and never abort.
func (e *AppError) Fatal() bool {
	return e.Kind != KindData
}

func E(kind Kind, op string, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Configuration(op string, err error, message string) *AppError {
	return E(KindConfiguration, op, err, message)
}

func Transport(op string, err error, message string) *AppError {
	return E(KindTransport, op, err, message)
}

func Data(op string, err error, message string) *AppError {
	return E(KindData, op, err, message)
}

func BusinessRule(op string, err error, message string) *AppError {
	return E(KindBusinessRule, op, err, message)
}

func Timeout(op string, err error, message string) *AppError {
	return E(KindTimeout, op, err, message)
}

func Canceled(op string, err error, message string) *AppError {
	return E(KindCanceled, op, err, message)
}

func JobFailed(op string, err error, message string) *AppError {
	return E(KindJobFailed, op, err, message)
}

func Internal(op string, err error, message string) *AppError {
	return E(KindInternal, op, err, message)
}

// KindOf returns the kind of the outermost AppError in the chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsFatal reports whether err should fail the process. Errors outside the
// AppError taxonomy are fatal; nil is not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Fatal()
	}
	return true
}

func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func IsConfiguration(err error) bool { return IsKind(err, KindConfiguration) }
func IsTransport(err error) bool     { return IsKind(err, KindTransport) }
func IsData(err error) bool          { return IsKind(err, KindData) }
func IsBusinessRule(err error) bool  { return IsKind(err, KindBusinessRule) }
func IsTimeout(err error) bool       { return IsKind(err, KindTimeout) }
func IsCanceled(err error) bool      { return IsKind(err, KindCanceled) }
func IsJobFailed(err error) bool     { return IsKind(err, KindJobFailed) }

// Common business-rule sentinels, matched with errors.Is through AppError.Err.
var (
	ErrBelowMinimum   = errors.New("minimum batch size not met")
	ErrAboveMaximum   = errors.New("maximum batch size exceeded")
	ErrOversized      = errors.New("resource exceeds size ceiling")
	ErrUnsupported    = errors.New("unsupported media format")
	ErrNotRetrievable = errors.New("job is not in a retrievable state")
)
