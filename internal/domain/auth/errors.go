package auth

import (
	"errors"
	"fmt"
)

// FailureKind tags why an identity could not be established.
type FailureKind string

const (
	// FailureInvalidToken means the provider rejected the token (expired, revoked, malformed).
	FailureInvalidToken FailureKind = "invalid_token"
	// FailureProviderUnreachable means the provider could not be reached or timed out.
	FailureProviderUnreachable FailureKind = "provider_unreachable"
	// FailureMalformedResponse means the provider answered with an unusable payload.
	FailureMalformedResponse FailureKind = "malformed_response"
	// FailureIncompleteClaims means the provider claims carry no email.
	FailureIncompleteClaims FailureKind = "incomplete_claims"
	// FailureNoLocalAccount means the provider identity has no directory record.
	FailureNoLocalAccount FailureKind = "no_local_account"
	// FailureDirectoryUnavailable means the directory lookup failed in transport.
	FailureDirectoryUnavailable FailureKind = "directory_unavailable"
	// FailureNoToken means no token was presented.
	FailureNoToken FailureKind = "no_token"
)

// Transient reports whether the kind is an availability problem that a later
// attempt may resolve. Transient kinds never end a session.
func (k FailureKind) Transient() bool {
	return k == FailureProviderUnreachable || k == FailureDirectoryUnavailable
}

// ErrUserNotFound is returned by directory resolvers when no record matches.
var ErrUserNotFound = errors.New("user not found in directory")

// Failure is the tagged error returned by claims fetchers.
type Failure struct {
	Kind    FailureKind
	Details string
	Cause   error
}

func (f *Failure) Error() string {
	msg := string(f.Kind)
	if f.Details != "" {
		msg += ": " + f.Details
	}
	if f.Cause != nil {
		msg += ": " + f.Cause.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Cause }

// NewFailure builds a Failure with formatted details.
func NewFailure(kind FailureKind, cause error, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Details: fmt.Sprintf(format, args...), Cause: cause}
}

// RejectReason is the validator-level outcome class.
type RejectReason string

const (
	ReasonNoToken              RejectReason = "no_token"
	ReasonUpstreamInvalid      RejectReason = "upstream_invalid"
	ReasonIncompleteClaims     RejectReason = "incomplete_claims"
	ReasonNoLocalAccount       RejectReason = "no_local_account"
	ReasonDirectoryUnavailable RejectReason = "directory_unavailable"
)

// Rejection is the error returned when a token cannot be turned into an Identity.
// Kind keeps the underlying cause so callers can tell transient from terminal.
type Rejection struct {
	Reason RejectReason
	Kind   FailureKind
	// Email is the provider-asserted email, set for no_local_account.
	Email string
	Cause error
}

func (r *Rejection) Error() string {
	msg := "token rejected: " + string(r.Reason)
	if r.Kind != "" && string(r.Kind) != string(r.Reason) {
		msg += " (" + string(r.Kind) + ")"
	}
	if r.Email != "" {
		msg += " for " + r.Email
	}
	if r.Cause != nil {
		msg += ": " + r.Cause.Error()
	}
	return msg
}

func (r *Rejection) Unwrap() error { return r.Cause }

// Transient reports whether the rejection reflects an outage rather than a verdict.
func (r *Rejection) Transient() bool { return r.Kind.Transient() }

// Reject builds a Rejection for kind, deriving the validator-level reason.
func Reject(kind FailureKind, cause error) *Rejection {
	return &Rejection{Reason: ReasonFor(kind), Kind: kind, Cause: cause}
}

// ReasonFor maps a failure kind to its validator-level reason.
func ReasonFor(kind FailureKind) RejectReason {
	switch kind {
	case FailureNoToken:
		return ReasonNoToken
	case FailureIncompleteClaims:
		return ReasonIncompleteClaims
	case FailureNoLocalAccount:
		return ReasonNoLocalAccount
	case FailureDirectoryUnavailable:
		return ReasonDirectoryUnavailable
	default:
		return ReasonUpstreamInvalid
	}
}

// AsRejection extracts a Rejection from err, if any.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// KindOf returns the failure kind carried by err. Untagged errors are treated
// as provider_unreachable so that unknown transport problems never end a session.
func KindOf(err error) FailureKind {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Kind
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureProviderUnreachable
}
