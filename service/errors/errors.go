package errors

import (
	"errors"
	"fmt"
)

// Business rule rejections. These are terminal for the request that hit them
// and are never retried internally.
var (
	ErrNotFound         = errors.New("pool drop not found")
	ErrDuplicateID      = errors.New("pool drop id already exists")
	ErrDuplicateClaim   = errors.New("already claimed")
	ErrPoolDropFull     = errors.New("pool drop is fully claimed")
	ErrAlreadyCancelled = errors.New("pool drop is already cancelled")
	ErrAlreadyExecuted  = errors.New("pool drop is already executed")
	ErrNotCreator       = errors.New("not the creator of this pool drop")
	ErrNotAuthorized    = errors.New("not authorized")
)

// ErrVersionConflict signals that a conditional update lost a race against a
// concurrent writer. It is retriable: re-read the record and re-apply.
var ErrVersionConflict = errors.New("version conflict")

// Input validation failures, rejected before any state change.
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidParticipantCount = errors.New("invalid number of participants")
)

// ErrNoContractForNetwork means no pool drop contract address is configured
// for the requested network. Fatal for that network.
var ErrNoContractForNetwork = errors.New("no pool drop contract for network")

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%q must be provided", e.Field)
}

// MissingField returns a ValidationError for a required field.
func MissingField(field string) error {
	return &ValidationError{Field: field}
}

// IsValidation reports whether err is a validation failure of any kind.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidParticipantCount)
}

// ChainError wraps a blockchain RPC or contract call failure. Chain errors are
// surfaced as-is: resubmitting a chain transaction risks a double spend, so
// nothing on this path retries automatically.
type ChainError struct {
	Op  string
	Err error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain error in %s: %s", e.Op, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// Chain wraps err as a ChainError for the given operation.
func Chain(op string, err error) error {
	return &ChainError{Op: op, Err: err}
}

// IsChain reports whether err is a ChainError.
func IsChain(err error) bool {
	var c *ChainError
	return errors.As(err, &c)
}
