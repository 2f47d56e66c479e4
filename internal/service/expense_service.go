package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/divvyhq/divvy/internal/cache"
	"github.com/divvyhq/divvy/internal/metrics"
	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/money"
	"github.com/divvyhq/divvy/internal/split"
	"github.com/divvyhq/divvy/internal/storage"
)

// ExpenseService manages expense lifecycle: allocation into shares,
// mutation while still fully unsettled, and deletion.
type ExpenseService struct {
	store storage.Store
	cache cache.Cache
}

// NewExpenseService creates a new ExpenseService with the given storage
// backend.
func NewExpenseService(store storage.Store, c cache.Cache) *ExpenseService {
	return &ExpenseService{store: store, cache: c}
}

// CreateExpenseInput carries everything needed to record a shared expense.
// PaidBy defaults to the actor. Inputs are required for the amount and
// percentage policies.
type CreateExpenseInput struct {
	GroupID      string
	PaidBy       string
	Description  string
	Amount       money.Money
	Category     string
	Policy       split.Policy
	Participants []string
	Inputs       []split.Input
}

// Create allocates the expense into shares and persists expense + shares as
// one unit. The actor must be an active group member, as must the payer and
// every participant.
func (s *ExpenseService) Create(ctx context.Context, actor string, in CreateExpenseInput) (*models.Expense, error) {
	member, err := s.store.IsActiveMember(ctx, in.GroupID, actor)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("group %s: %w", in.GroupID, models.ErrNotFound)
	}

	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: expense amount must be positive", models.ErrValidation)
	}
	payer := in.PaidBy
	if payer == "" {
		payer = actor
	}
	for _, userID := range append([]string{payer}, in.Participants...) {
		member, err := s.store.IsActiveMember(ctx, in.GroupID, userID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, fmt.Errorf("%w: %s is not an active group member", models.ErrValidation, userID)
		}
	}

	shareAmounts, err := split.Allocate(in.Amount, in.Policy, in.Participants, in.Inputs)
	if err != nil {
		return nil, asValidation(err)
	}

	expense := &models.Expense{
		GroupID:     in.GroupID,
		PaidBy:      payer,
		Description: in.Description,
		Amount:      in.Amount,
		Category:    in.Category,
		Policy:      in.Policy,
		Shares:      make([]models.Share, len(shareAmounts)),
	}
	for i, sa := range shareAmounts {
		expense.Shares[i] = models.Share{UserID: sa.UserID, Amount: sa.Amount}
	}
	if err := verifyShareSum(expense); err != nil {
		return nil, err
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		slog.Error("CreateExpense failed", "group_id", in.GroupID, "error", err)
		return nil, err
	}
	s.invalidate(ctx, in.GroupID)
	metrics.ExpensesCreated.Inc()

	slog.Info("Expense created",
		"expense_id", expense.ID,
		"group_id", expense.GroupID,
		"amount", expense.Amount.String(),
		"policy", expense.Policy,
	)
	return expense, nil
}

// Get retrieves an expense with its shares. Non-members of the owning group
// get ErrNotFound.
func (s *ExpenseService) Get(ctx context.Context, actor, expenseID string) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, asNotFound(err)
	}
	member, err := s.store.IsActiveMember(ctx, expense.GroupID, actor)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("expense %s: %w", expenseID, models.ErrNotFound)
	}
	return expense, nil
}

// ListByGroup retrieves the group's expenses, newest first.
func (s *ExpenseService) ListByGroup(ctx context.Context, actor, groupID string) ([]*models.Expense, error) {
	member, err := s.store.IsActiveMember(ctx, groupID, actor)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("group %s: %w", groupID, models.ErrNotFound)
	}
	return s.store.ListExpensesByGroup(ctx, groupID)
}

// Update applies a tagged field update. Payer only, and blocked with
// ErrConflict once any non-payer share is paid. Amount, policy, or input
// changes re-run the allocator over the existing participant set; each
// member's paid state carries over to their new share.
func (s *ExpenseService) Update(ctx context.Context, actor, expenseID string, upd models.ExpenseUpdate) (*models.Expense, error) {
	expense, err := s.Get(ctx, actor, expenseID)
	if err != nil {
		return nil, err
	}
	if actor != expense.PaidBy {
		return nil, fmt.Errorf("only the payer mutates an expense: %w", models.ErrUnauthorized)
	}
	if expense.HasPaidNonPayerShare() {
		return nil, fmt.Errorf("expense %s has paid shares: %w", expenseID, models.ErrConflict)
	}

	if upd.Description != nil {
		expense.Description = *upd.Description
	}
	if upd.Category != nil {
		expense.Category = *upd.Category
	}
	if upd.Amount != nil {
		if !upd.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: expense amount must be positive", models.ErrValidation)
		}
		expense.Amount = *upd.Amount
	}
	if upd.Policy != nil {
		expense.Policy = *upd.Policy
	}

	if upd.Reallocates() {
		shareAmounts, err := split.Allocate(expense.Amount, expense.Policy, expense.Participants(), upd.Inputs)
		if err != nil {
			return nil, asValidation(err)
		}

		// Carry IDs and paid state over so settlements keyed to share
		// IDs and timestamps keep matching.
		old := make(map[string]models.Share, len(expense.Shares))
		for _, share := range expense.Shares {
			old[share.UserID] = share
		}
		shares := make([]models.Share, len(shareAmounts))
		for i, sa := range shareAmounts {
			shares[i] = models.Share{
				UserID: sa.UserID,
				Amount: sa.Amount,
			}
			if prev, ok := old[sa.UserID]; ok {
				shares[i].ID = prev.ID
				shares[i].Paid = prev.Paid
				shares[i].SettledAt = prev.SettledAt
			}
		}
		expense.Shares = shares
	}

	if err := verifyShareSum(expense); err != nil {
		return nil, err
	}
	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		slog.Error("UpdateExpense failed", "expense_id", expenseID, "error", err)
		return nil, asNotFound(err)
	}
	s.invalidate(ctx, expense.GroupID)

	slog.Info("Expense updated", "expense_id", expenseID)
	return expense, nil
}

// Delete removes the expense and its shares. Payer only, same Conflict rule
// as Update.
func (s *ExpenseService) Delete(ctx context.Context, actor, expenseID string) error {
	expense, err := s.Get(ctx, actor, expenseID)
	if err != nil {
		return err
	}
	if actor != expense.PaidBy {
		return fmt.Errorf("only the payer deletes an expense: %w", models.ErrUnauthorized)
	}
	if expense.HasPaidNonPayerShare() {
		return fmt.Errorf("expense %s has paid shares: %w", expenseID, models.ErrConflict)
	}

	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		return asNotFound(err)
	}
	s.invalidate(ctx, expense.GroupID)

	slog.Info("Expense deleted", "expense_id", expenseID)
	return nil
}

func (s *ExpenseService) invalidate(ctx context.Context, groupID string) {
	if err := s.cache.InvalidateGroup(ctx, groupID); err != nil {
		slog.Warn("Failed to invalidate balance cache", "group_id", groupID, "error", err)
	}
}

// asValidation tags an allocator rejection as a caller error. The allocator's
// own sentinel stays in the chain for callers that switch on it.
func asValidation(err error) error {
	return fmt.Errorf("%w: %w", models.ErrValidation, err)
}

// verifyShareSum aborts before persistence if the allocation invariant does
// not hold. This is an internal failure, not a caller error.
func verifyShareSum(e *models.Expense) error {
	var sum money.Money
	for _, share := range e.Shares {
		if share.Amount < 0 {
			return fmt.Errorf("internal: negative share for %s", share.UserID)
		}
		sum += share.Amount
	}
	if sum != e.Amount {
		return fmt.Errorf("internal: shares sum to %s, expense amount is %s", sum, e.Amount)
	}
	return nil
}
