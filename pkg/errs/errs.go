package errs

import (
	"errors"
	"fmt"
)

// Code identifies a single licensing decision or failure.
type Code string

const (
	CodeInvalidRequest       Code = "invalid_request"
	CodeMalformed            Code = "malformed"
	CodeLicenseTypeChange    Code = "license_type_change"
	CodeUnsupportedAlgorithm Code = "unsupported_algorithm"
	CodeWeakKey              Code = "weak_key"
	CodeInvalidKeyMaterial   Code = "invalid_key_material"

	CodeNotFound               Code = "not_found"
	CodeLicenseRevoked         Code = "license_revoked"
	CodeLicenseExpired         Code = "license_expired"
	CodeConflictingActiveKey   Code = "conflicting_active_key"
	CodeAlreadyRevoked         Code = "already_revoked"
	CodeInvalidTransition      Code = "invalid_transition"
	CodeConcurrentModification Code = "concurrent_modification"
	CodeNoActiveKey            Code = "no_active_key"
	CodeExpired                Code = "expired"

	CodeBadSignature        Code = "bad_signature"
	CodeFingerprintMismatch Code = "fingerprint_mismatch"
	CodeRevoked             Code = "revoked"
	CodeGracePeriodExceeded Code = "grace_period_exceeded"

	CodeStorageUnavailable Code = "storage_unavailable"
	CodeNotificationFailed Code = "notification_failed"
)

var kinds = map[Code]Kind{
	CodeInvalidRequest:       KindInput,
	CodeMalformed:            KindInput,
	CodeLicenseTypeChange:    KindInput,
	CodeUnsupportedAlgorithm: KindInput,
	CodeWeakKey:              KindInput,
	CodeInvalidKeyMaterial:   KindInput,

	CodeNotFound:               KindState,
	CodeLicenseRevoked:         KindState,
	CodeLicenseExpired:         KindState,
	CodeConflictingActiveKey:   KindState,
	CodeAlreadyRevoked:         KindState,
	CodeInvalidTransition:      KindState,
	CodeConcurrentModification: KindState,
	CodeNoActiveKey:            KindState,
	CodeExpired:                KindState,

	CodeBadSignature:        KindSecurity,
	CodeFingerprintMismatch: KindSecurity,
	CodeRevoked:             KindSecurity,
	CodeGracePeriodExceeded: KindSecurity,

	CodeStorageUnavailable: KindInfrastructure,
	CodeNotificationFailed: KindInfrastructure,
}

// Kind returns the family the code belongs to.
func (c Code) Kind() Kind {
	if k, ok := kinds[c]; ok {
		return k
	}
	return KindUnknown
}

// Error is the concrete error type returned by licensing components.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so sentinels
// match regardless of Op, Message or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Kind returns the family of the error code.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// New creates an error with a code and a formatted message.
func New(code Code, op string, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying cause.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Storage wraps a persistence failure as StorageUnavailable.
func Storage(op string, err error) *Error {
	return &Error{Code: CodeStorageUnavailable, Op: op, Message: "storage unavailable", Err: err}
}

// CodeOf extracts the code of the first *Error in the chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf extracts the kind of the first *Error in the chain. Errors outside the
// taxonomy are reported as KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindUnknown
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidRequest       = &Error{Code: CodeInvalidRequest}
	ErrMalformed            = &Error{Code: CodeMalformed}
	ErrLicenseTypeChange    = &Error{Code: CodeLicenseTypeChange}
	ErrUnsupportedAlgorithm = &Error{Code: CodeUnsupportedAlgorithm}
	ErrWeakKey              = &Error{Code: CodeWeakKey}
	ErrInvalidKeyMaterial   = &Error{Code: CodeInvalidKeyMaterial}

	ErrNotFound               = &Error{Code: CodeNotFound}
	ErrLicenseRevoked         = &Error{Code: CodeLicenseRevoked}
	ErrLicenseExpired         = &Error{Code: CodeLicenseExpired}
	ErrConflictingActiveKey   = &Error{Code: CodeConflictingActiveKey}
	ErrAlreadyRevoked         = &Error{Code: CodeAlreadyRevoked}
	ErrInvalidTransition      = &Error{Code: CodeInvalidTransition}
	ErrConcurrentModification = &Error{Code: CodeConcurrentModification}
	ErrNoActiveKey            = &Error{Code: CodeNoActiveKey}
	ErrExpired                = &Error{Code: CodeExpired}

	ErrBadSignature        = &Error{Code: CodeBadSignature}
	ErrFingerprintMismatch = &Error{Code: CodeFingerprintMismatch}
	ErrRevoked             = &Error{Code: CodeRevoked}
	ErrGracePeriodExceeded = &Error{Code: CodeGracePeriodExceeded}

	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable}
	ErrNotificationFailed = &Error{Code: CodeNotificationFailed}
)
