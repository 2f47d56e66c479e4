// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/divvyhq/divvy/internal/models"
)

// ErrNotFound is returned when a requested record does not exist. Services
// translate it into the domain taxonomy before it reaches callers.
var ErrNotFound = errors.New("record not found")

// Store is the persistence collaborator consumed by the engine. Each method
// is atomic: composite operations (expense plus its shares, settlement plus
// the share marks it causes) run inside a single transaction so the
// sum-equals-total invariant and the unpaid-balance check are never
// observable as violated, and two concurrent writers cannot interleave a
// read-then-conditional-write.
//
// Implementations: sqlite (default), postgres, memory (tests).
type Store interface {
	// CreateGroup persists a new group with its members. ID and
	// CreatedAt are assigned when empty.
	CreateGroup(ctx context.Context, g *models.Group) error

	// GetGroup retrieves a group with its member list.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// AddGroupMembers adds the given users, skipping existing members.
	AddGroupMembers(ctx context.Context, groupID string, userIDs []string) error

	// RemoveGroupMember removes one member.
	RemoveGroupMember(ctx context.Context, groupID, userID string) error

	// DeleteGroup removes the group, its membership rows, and its
	// expenses and settlements in one transaction.
	DeleteGroup(ctx context.Context, groupID string) error

	// ListGroupsByMember retrieves every group the user belongs to.
	ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)

	// IsActiveMember reports whether the user is an active member of the
	// group. Unknown groups report false, not an error.
	IsActiveMember(ctx context.Context, groupID, userID string) (bool, error)

	// CanSettle reports whether two users share at least one group.
	CanSettle(ctx context.Context, userA, userB string) (bool, error)

	// CreateExpense persists the expense and all its shares in one
	// transaction. IDs and CreatedAt are assigned when empty.
	CreateExpense(ctx context.Context, e *models.Expense) error

	// GetExpense retrieves an expense with its shares.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// UpdateExpense rewrites the expense fields and replaces its share
	// set in one transaction.
	UpdateExpense(ctx context.Context, e *models.Expense) error

	// DeleteExpense removes the expense and its shares.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListExpensesByGroup retrieves all expenses of a group, shares
	// included, newest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)

	// GetShare retrieves a single share.
	GetShare(ctx context.Context, shareID string) (*models.Share, error)

	// SharesSettledAt retrieves the user's paid shares in the group whose
	// settled-at equals the given timestamp, ordered by share ID
	// ascending. Used for deterministic settlement reversal.
	SharesSettledAt(ctx context.Context, groupID, userID string, settledAt int64) ([]*models.Share, error)

	// CountUnpaidShares counts unpaid non-payer shares in the group.
	// With a non-empty userID it counts only shares the user owes or is
	// owed (as expense payer). Payer-own shares are self-debt and do not
	// count.
	CountUnpaidShares(ctx context.Context, groupID, userID string) (int, error)

	// MarkSharesPaid marks the given shares paid with the settled-at
	// timestamp, in one transaction. Already-paid shares are skipped;
	// the count of shares actually flipped is returned.
	MarkSharesPaid(ctx context.Context, shareIDs []string, settledAt int64) (int, error)

	// MarkShareUnpaid resets one share to unpaid and clears settled-at.
	MarkShareUnpaid(ctx context.Context, shareID string) error

	// CreateSettlement persists the settlement and marks the covered
	// shares paid (stamped with the settlement's settled-at) in one
	// transaction.
	CreateSettlement(ctx context.Context, s *models.Settlement, paidShareIDs []string) error

	// GetSettlement retrieves a settlement.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// UpdateSettlement rewrites the settlement's mutable fields.
	UpdateSettlement(ctx context.Context, s *models.Settlement) error

	// DeleteSettlement removes the settlement and resets the given
	// shares to unpaid in one transaction.
	DeleteSettlement(ctx context.Context, settlementID string, revertShareIDs []string) error

	// ListSettlementsByGroup retrieves all settlements of a group,
	// newest first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// Close releases any resources held by the store.
	Close() error
}
