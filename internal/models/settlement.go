package models

import "github.com/divvyhq/divvy/internal/money"

// Settlement is a direct payment from FromUserID to ToUserID. It references
// but does not own shares: creating a linked settlement marks the payer's
// covered shares paid, deleting it reverses exactly those marks.
//
// A settlement is mutable and deletable by its creator only while
// now − SettledAt is inside the configured grace window; afterwards it is
// frozen.
type Settlement struct {
	// ID is the unique identifier (UUID format).
	ID string

	// GroupID is the group the payment belongs to.
	GroupID string

	// FromUserID is the payer (debtor settling up) and the only actor
	// allowed to mutate the settlement.
	FromUserID string

	// ToUserID is the recipient.
	ToUserID string

	// Amount paid, always positive.
	Amount money.Money

	// ExpenseID optionally links the payment to one expense; empty when
	// the payment is free-standing.
	ExpenseID string

	// SettledAt is the Unix timestamp fixing the payment as settled. The
	// grace window and share reversal matching are both keyed off it.
	SettledAt int64

	// Note is an optional description.
	Note string

	// CreatedAt is the Unix timestamp when the record was stored.
	CreatedAt int64
}

// SettlementUpdate is a tagged field update for a settlement. Nil fields
// are no-ops.
type SettlementUpdate struct {
	Amount *money.Money
	Note   *string
}
