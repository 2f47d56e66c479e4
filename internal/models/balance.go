package models

import (
	"github.com/divvyhq/divvy/internal/ledger"
	"github.com/divvyhq/divvy/internal/money"
)

// MemberTotals aggregates one member's activity inside a group.
type MemberTotals struct {
	UserID string `json:"user_id"`

	// Paid is the total of expenses this member paid for.
	Paid money.Money `json:"paid"`

	// Owed is the total of this member's shares across all expenses.
	Owed money.Money `json:"owed"`

	// Net is the member's signed balance: positive = owed to the member.
	Net money.Money `json:"net"`
}

// GroupBalances is the read-only netted view of a group's ledger.
type GroupBalances struct {
	GroupID string `json:"group_id"`

	// Edges is the minimal set of debts after netting, sorted by
	// (debtor, creditor).
	Edges []ledger.Edge `json:"edges"`

	// PerUser is the signed net balance per member.
	PerUser map[string]money.Money `json:"per_user"`

	// TotalUnsettled is the sum of netted debt across all pairs.
	TotalUnsettled money.Money `json:"total_unsettled"`

	// TotalSpent is the sum of all expense amounts in the group.
	TotalSpent money.Money `json:"total_spent"`

	// ByCategory sums expense amounts per category; uncategorized
	// expenses land under the empty key.
	ByCategory map[string]money.Money `json:"by_category"`

	// Members lists per-member aggregates, sorted by user ID.
	Members []MemberTotals `json:"members"`
}

// FriendBalance is the net position against a single other user, aggregated
// across every shared group.
type FriendBalance struct {
	UserID string `json:"user_id"`

	// Amount is signed: positive = the friend owes the user.
	Amount money.Money `json:"amount"`
}

// OverallBalances is one user's position across all their groups.
type OverallBalances struct {
	// TotalOwed is what others owe the user.
	TotalOwed money.Money `json:"total_owed"`

	// TotalOwing is what the user owes others.
	TotalOwing money.Money `json:"total_owing"`

	// Friends lists nonzero per-friend balances, sorted by user ID.
	Friends []FriendBalance `json:"friends"`
}
