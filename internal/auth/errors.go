// Package auth validates bearer tokens and carries the authentication error
// taxonomy used by the request pipeline.
package auth

import "errors"

// Reason is a stable machine-readable code attached to authentication
// failures. Reasons are safe to return to clients; they never carry
// database or engine detail.
type Reason string

const (
	ReasonExpired                  Reason = "expired"
	ReasonInvalidSignature         Reason = "invalid_signature"
	ReasonInvalidIssuer            Reason = "invalid_issuer"
	ReasonInvalidAudience          Reason = "invalid_audience"
	ReasonMalformed                Reason = "malformed"
	ReasonMissingClaim             Reason = "missing_claim"
	ReasonJWKSFetchFailed          Reason = "jwks_fetch_failed"
	ReasonAPIKeyVerificationFailed Reason = "api_key_verification_failed"
	ReasonNoCredentials            Reason = "no_credentials"
)

// Sentinels for the pipeline-level outcomes. Handlers map these to status
// codes: 401, 403 and 400 respectively.
var (
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrTenantContextMissing = errors.New("tenant context missing")
)

// Error is an authentication failure with its reason code. It unwraps to
// ErrUnauthenticated so callers can match the class without caring about
// the reason.
type Error struct {
	Reason Reason
	cause  error
}

func unauthenticated(reason Reason, cause error) *Error {
	return &Error{Reason: reason, cause: cause}
}

// NewError builds an authentication Error with the given reason.
func NewError(reason Reason) *Error {
	return unauthenticated(reason, nil)
}

func (e *Error) Error() string {
	if e.cause != nil {
		return "unauthenticated (" + string(e.Reason) + "): " + e.cause.Error()
	}
	return "unauthenticated (" + string(e.Reason) + ")"
}

func (e *Error) Unwrap() error { return ErrUnauthenticated }

// ReasonOf extracts the reason code from an authentication error chain,
// empty when the error is not an authentication failure.
func ReasonOf(err error) Reason {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return ""
}
