// Package service implements the election coordination core: the signature
// gate, eligibility checks, the election and vote coordinators, results
// aggregation, voter enrollment, and the background reconciler that repairs
// divergence between the ledger and the record store.
package service

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code identifies the logical outcome of a failed operation. The values
// match the codes the API returns to clients.
type Code string

const (
	CodeInvalidPayload     Code = "INVALID_PAYLOAD"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"
	CodeNotEligible        Code = "VOTER_NOT_ELIGIBLE"
	CodeAlreadyVoted       Code = "ALREADY_VOTED"
	CodeAlreadyEnrolled    Code = "VOTER_ALREADY_REGISTERED"
	CodeElectionNotFound   Code = "ELECTION_NOT_FOUND"
	CodeElectionNotStarted Code = "ELECTION_NOT_STARTED"
	CodeElectionExpired    Code = "ELECTION_EXPIRED"
	CodeCandidateNotFound  Code = "CANDIDATE_NOT_FOUND"
	CodeTransactionFailed  Code = "TRANSACTION_FAILED"
	CodeIndeterminate      Code = "VOTE_INDETERMINATE"
	CodeUnavailable        Code = "SERVICE_UNAVAILABLE"
)

// Error is a classified failure. Coordinators map every collaborator error
// into one of these; raw infrastructure errors never reach the caller.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError builds a classified error.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error.
func WrapError(cause error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf extracts the classification of err, or CodeUnavailable when err is
// not a classified error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnavailable
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func asErr(err error, target any) bool {
	return errors.As(err, target)
}
