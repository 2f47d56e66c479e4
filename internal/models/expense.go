package models

import (
	"github.com/divvyhq/divvy/internal/money"
	"github.com/divvyhq/divvy/internal/split"
)

// Expense is a shared cost paid by one member of a group. The expense owns
// its Shares: they are created atomically with it, always sum exactly to
// Amount, and never outlive it.
type Expense struct {
	// ID is the unique identifier (UUID format).
	ID string

	// GroupID is the owning group.
	GroupID string

	// PaidBy is the user who paid the full amount.
	PaidBy string

	// Description is set by the payer.
	Description string

	// Amount is the full expense amount, always positive.
	Amount money.Money

	// Category is an optional label used by balance reports.
	Category string

	// Policy is the split policy the shares were allocated under.
	Policy split.Policy

	// Shares are the per-member owed portions. sum(Shares.Amount) == Amount.
	Shares []Share

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// Share is one member's owed portion of an expense. There is exactly one
// share per (expense, member).
type Share struct {
	// ID is the unique identifier (UUID format).
	ID string

	// ExpenseID is the owning expense.
	ExpenseID string

	// UserID is the member who owes this portion.
	UserID string

	// Amount owed, never negative.
	Amount money.Money

	// Paid reports whether this share has been discharged.
	Paid bool

	// SettledAt is the Unix timestamp stamped when Paid flips true and
	// cleared to zero when it flips back false.
	SettledAt int64
}

// Participants returns the share owners in share order.
func (e *Expense) Participants() []string {
	users := make([]string, len(e.Shares))
	for i, s := range e.Shares {
		users[i] = s.UserID
	}
	return users
}

// ShareOf returns the share owned by userID, or nil.
func (e *Expense) ShareOf(userID string) *Share {
	for i := range e.Shares {
		if e.Shares[i].UserID == userID {
			return &e.Shares[i]
		}
	}
	return nil
}

// HasPaidNonPayerShare reports whether any share other than the payer's own
// is already paid. Expenses in that state are frozen against mutation and
// deletion.
func (e *Expense) HasPaidNonPayerShare() bool {
	for _, s := range e.Shares {
		if s.Paid && s.UserID != e.PaidBy {
			return true
		}
	}
	return false
}

// ExpenseUpdate is a tagged field update for an expense. Nil fields are
// no-ops. Setting Amount, Policy, or Inputs triggers share re-allocation
// over the existing participant set.
type ExpenseUpdate struct {
	Description *string
	Category    *string
	Amount      *money.Money
	Policy      *split.Policy
	Inputs      []split.Input
}

// Reallocates reports whether applying the update requires re-running the
// split allocator.
func (u ExpenseUpdate) Reallocates() bool {
	return u.Amount != nil || u.Policy != nil || len(u.Inputs) > 0
}
