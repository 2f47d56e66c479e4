package models

import "errors"

// Domain error taxonomy. Services wrap these with fmt.Errorf("%w: ...") and
// callers match with errors.Is. Everything here is recoverable at the caller
// boundary; internal invariant violations surface as plain errors instead.
var (
	// ErrValidation marks malformed or policy-violating input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks an actor lacking rights over the target record.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound marks a record that is missing or inaccessible to the
	// actor. Inaccessible records report ErrNotFound rather than
	// ErrUnauthorized so callers cannot probe for existence.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation precluded by record state, such as
	// mutating an expense that already has paid non-payer shares.
	ErrConflict = errors.New("conflict with current state")

	// ErrExpired marks a settlement mutation outside the grace window.
	ErrExpired = errors.New("settlement grace window elapsed")

	// ErrInvalidAmount marks a settlement amount exceeding the unpaid
	// share balance.
	ErrInvalidAmount = errors.New("amount exceeds unpaid balance")

	// ErrAlreadySettled marks operations defined to fail on a settled
	// record. Idempotent paths (re-marking a paid share) do not use it.
	ErrAlreadySettled = errors.New("already settled")
)
