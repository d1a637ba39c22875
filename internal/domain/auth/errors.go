package auth

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable code attached to every authentication failure
type ErrorCode string

const (
	CodeEmailRequired    ErrorCode = "EMAIL_REQUIRED"
	CodeDomainNotAllowed ErrorCode = "DOMAIN_NOT_ALLOWED"
	CodeNotInAllowlist   ErrorCode = "NOT_IN_ALLOWLIST"
	CodeTokenInvalid     ErrorCode = "TOKEN_INVALID"
	CodeTokenExpired     ErrorCode = "TOKEN_EXPIRED"
	CodeAPIUnavailable   ErrorCode = "API_UNAVAILABLE"
	CodeAuthUnavailable  ErrorCode = "AUTH_UNAVAILABLE"

	// Route guard codes
	CodeInsufficientPermissions ErrorCode = "INSUFFICIENT_PERMISSIONS"
	CodeInsufficientRole        ErrorCode = "INSUFFICIENT_ROLE"
)

// IsPolicyRejection reports whether the code is an authorization policy rejection
func (c ErrorCode) IsPolicyRejection() bool {
	return c == CodeEmailRequired || c == CodeDomainNotAllowed || c == CodeNotInAllowlist
}

// IsCredentialFailure reports whether the code is a failure of the presented credential
func (c ErrorCode) IsCredentialFailure() bool {
	return c == CodeTokenInvalid || c == CodeTokenExpired
}

// IsUnavailable reports whether the code is an infrastructure outage
func (c ErrorCode) IsUnavailable() bool {
	return c == CodeAPIUnavailable || c == CodeAuthUnavailable
}

var (
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenInvalid        = errors.New("token invalid")
	ErrVerifierUnavailable = errors.New("identity verifier unavailable")
	ErrIdentityNotFound    = errors.New("identity not found")
	ErrNoResponseWriter    = errors.New("session store has no response writer")
)

// VerifyErrorKind classifies a token verification failure
type VerifyErrorKind int

const (
	VerifyInvalid VerifyErrorKind = iota
	VerifyExpired
	VerifyUnavailable
)

func (k VerifyErrorKind) String() string {
	switch k {
	case VerifyExpired:
		return "expired"
	case VerifyUnavailable:
		return "unavailable"
	default:
		return "invalid"
	}
}

// VerifyError is returned by token verifiers.
// Subject is only set when the token signature was trusted, so it can be used for cleanup.
type VerifyError struct {
	Kind    VerifyErrorKind
	Subject string
	Err     error
}

// NewVerifyError wraps err with a verification kind
func NewVerifyError(kind VerifyErrorKind, subject string, err error) *VerifyError {
	return &VerifyError{Kind: kind, Subject: subject, Err: err}
}

func (e *VerifyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("token verification failed: %s", e.Kind)
	}
	return fmt.Sprintf("token verification failed (%s): %v", e.Kind, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Is matches the sentinel error of the verification kind
func (e *VerifyError) Is(target error) bool {
	switch e.Kind {
	case VerifyExpired:
		return target == ErrTokenExpired
	case VerifyUnavailable:
		return target == ErrVerifierUnavailable
	default:
		return target == ErrTokenInvalid
	}
}

// Code maps the verification kind to its error code
func (e *VerifyError) Code() ErrorCode {
	switch e.Kind {
	case VerifyExpired:
		return CodeTokenExpired
	case VerifyUnavailable:
		return CodeAuthUnavailable
	default:
		return CodeTokenInvalid
	}
}

// AsVerifyError extracts a VerifyError from err, treating unknown errors as invalid tokens
func AsVerifyError(err error) *VerifyError {
	var verr *VerifyError
	if errors.As(err, &verr) {
		return verr
	}
	return NewVerifyError(VerifyInvalid, "", err)
}
