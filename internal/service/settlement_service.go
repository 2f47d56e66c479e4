package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/divvyhq/divvy/internal/cache"
	"github.com/divvyhq/divvy/internal/metrics"
	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/money"
	"github.com/divvyhq/divvy/internal/storage"
)

// DefaultGraceWindow is how long a settlement stays mutable after its
// settled-at timestamp.
const DefaultGraceWindow = 24 * time.Hour

// SettlementService manages the settlement lifecycle: creation with share
// discharge, mutation inside the grace window, deletion with deterministic
// share reversal, and bulk share marking.
type SettlementService struct {
	store       storage.Store
	cache       cache.Cache
	graceWindow time.Duration

	// now is swapped out in tests to step across the grace window.
	now func() time.Time
}

// NewSettlementService creates a new SettlementService. A non-positive
// graceWindow falls back to DefaultGraceWindow.
func NewSettlementService(store storage.Store, c cache.Cache, graceWindow time.Duration) *SettlementService {
	if graceWindow <= 0 {
		graceWindow = DefaultGraceWindow
	}
	return &SettlementService{
		store:       store,
		cache:       c,
		graceWindow: graceWindow,
		now:         time.Now,
	}
}

// CreateSettlementInput carries a payment from the actor to ToUserID.
// ExpenseID optionally links the payment to one expense.
type CreateSettlementInput struct {
	GroupID   string
	ToUserID  string
	Amount    money.Money
	ExpenseID string
	Note      string
}

// Create records a payment from the actor. When linked to an expense, the
// actor must own a share on it, the amount must not exceed that unpaid
// share, and a share fully covered by the amount is marked paid atomically
// with the settlement insert.
func (s *SettlementService) Create(ctx context.Context, actor string, in CreateSettlementInput) (*models.Settlement, error) {
	if actor == in.ToUserID {
		return nil, fmt.Errorf("%w: cannot settle with yourself", models.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: settlement amount must be positive", models.ErrValidation)
	}

	member, err := s.store.IsActiveMember(ctx, in.GroupID, actor)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("group %s: %w", in.GroupID, models.ErrNotFound)
	}
	canSettle, err := s.store.CanSettle(ctx, actor, in.ToUserID)
	if err != nil {
		return nil, err
	}
	if !canSettle {
		return nil, fmt.Errorf("no settle relation with %s: %w", in.ToUserID, models.ErrUnauthorized)
	}

	settledAt := s.now().Unix()
	var covered []string
	if in.ExpenseID != "" {
		expense, err := s.store.GetExpense(ctx, in.ExpenseID)
		if err != nil {
			return nil, asNotFound(err)
		}
		if expense.GroupID != in.GroupID {
			return nil, fmt.Errorf("%w: expense belongs to another group", models.ErrValidation)
		}
		share := expense.ShareOf(actor)
		if share == nil {
			return nil, fmt.Errorf("no share on expense %s: %w", in.ExpenseID, models.ErrUnauthorized)
		}
		if share.Paid {
			return nil, fmt.Errorf("share on expense %s: %w", in.ExpenseID, models.ErrAlreadySettled)
		}
		if in.Amount > share.Amount {
			return nil, fmt.Errorf("settlement %s exceeds unpaid share %s: %w",
				in.Amount, share.Amount, models.ErrInvalidAmount)
		}
		// Only a fully covered share is discharged; a partial payment
		// stands on its own in the ledger.
		if share.Amount <= in.Amount {
			covered = append(covered, share.ID)
		}
	}

	settlement := &models.Settlement{
		GroupID:    in.GroupID,
		FromUserID: actor,
		ToUserID:   in.ToUserID,
		Amount:     in.Amount,
		ExpenseID:  in.ExpenseID,
		SettledAt:  settledAt,
		Note:       in.Note,
	}
	if err := s.store.CreateSettlement(ctx, settlement, covered); err != nil {
		slog.Error("CreateSettlement failed", "group_id", in.GroupID, "error", err)
		return nil, err
	}
	s.invalidate(ctx, in.GroupID)
	metrics.SettlementsCreated.Inc()
	metrics.SharesMarkedPaid.Add(float64(len(covered)))

	slog.Info("Settlement created",
		"settlement_id", settlement.ID,
		"group_id", settlement.GroupID,
		"from", settlement.FromUserID,
		"to", settlement.ToUserID,
		"amount", settlement.Amount.String(),
		"covered_shares", len(covered),
	)
	return settlement, nil
}

// Get retrieves a settlement. Only group members see it.
func (s *SettlementService) Get(ctx context.Context, actor, settlementID string) (*models.Settlement, error) {
	settlement, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, asNotFound(err)
	}
	member, err := s.store.IsActiveMember(ctx, settlement.GroupID, actor)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, models.ErrNotFound)
	}
	return settlement, nil
}

// ListByGroup retrieves the group's settlements, newest first.
func (s *SettlementService) ListByGroup(ctx context.Context, actor, groupID string) ([]*models.Settlement, error) {
	member, err := s.store.IsActiveMember(ctx, groupID, actor)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("group %s: %w", groupID, models.ErrNotFound)
	}
	return s.store.ListSettlementsByGroup(ctx, groupID)
}

// Update rewrites the settlement's amount or note. Creator only, inside the
// grace window only.
func (s *SettlementService) Update(ctx context.Context, actor, settlementID string, upd models.SettlementUpdate) (*models.Settlement, error) {
	settlement, err := s.Get(ctx, actor, settlementID)
	if err != nil {
		return nil, err
	}
	if err := s.mutable(actor, settlement); err != nil {
		return nil, err
	}

	if upd.Amount != nil {
		if !upd.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: settlement amount must be positive", models.ErrValidation)
		}
		settlement.Amount = *upd.Amount
	}
	if upd.Note != nil {
		settlement.Note = *upd.Note
	}

	if err := s.store.UpdateSettlement(ctx, settlement); err != nil {
		return nil, asNotFound(err)
	}
	s.invalidate(ctx, settlement.GroupID)

	slog.Info("Settlement updated", "settlement_id", settlementID)
	return settlement, nil
}

// Delete removes the settlement and reverses exactly the shares it paid:
// the creator's shares whose settled-at equals the settlement's settled-at,
// scoped to the linked expense when set, processed in share-ID ascending
// order. Creator only, inside the grace window only.
func (s *SettlementService) Delete(ctx context.Context, actor, settlementID string) error {
	settlement, err := s.Get(ctx, actor, settlementID)
	if err != nil {
		return err
	}
	if err := s.mutable(actor, settlement); err != nil {
		return err
	}

	shares, err := s.store.SharesSettledAt(ctx, settlement.GroupID, settlement.FromUserID, settlement.SettledAt)
	if err != nil {
		return err
	}
	var revert []string
	for _, share := range shares {
		if settlement.ExpenseID != "" && share.ExpenseID != settlement.ExpenseID {
			continue
		}
		revert = append(revert, share.ID)
	}

	if err := s.store.DeleteSettlement(ctx, settlementID, revert); err != nil {
		return asNotFound(err)
	}
	s.invalidate(ctx, settlement.GroupID)

	slog.Info("Settlement deleted",
		"settlement_id", settlementID,
		"reverted_shares", len(revert),
	)
	return nil
}

// mutable rejects mutation by anyone but the creator and anything outside
// the grace window.
func (s *SettlementService) mutable(actor string, settlement *models.Settlement) error {
	if actor != settlement.FromUserID {
		return fmt.Errorf("only the settlement creator mutates it: %w", models.ErrUnauthorized)
	}
	age := s.now().Unix() - settlement.SettledAt
	if age >= int64(s.graceWindow/time.Second) {
		return fmt.Errorf("settlement %s: %w", settlement.ID, models.ErrExpired)
	}
	return nil
}

// MarkPaid marks the given shares paid. Authorization is all-or-nothing:
// every share must be owed by the actor or owed to them as expense payer,
// or nothing is marked. The mark itself is idempotent per ID; the returned
// count covers only shares actually flipped.
func (s *SettlementService) MarkPaid(ctx context.Context, actor string, shareIDs []string) (int, error) {
	if len(shareIDs) == 0 {
		return 0, nil
	}

	groups := make(map[string]bool)
	for _, shareID := range shareIDs {
		share, err := s.store.GetShare(ctx, shareID)
		if err != nil {
			return 0, asNotFound(err)
		}
		expense, err := s.store.GetExpense(ctx, share.ExpenseID)
		if err != nil {
			return 0, asNotFound(err)
		}
		if actor != share.UserID && actor != expense.PaidBy {
			return 0, fmt.Errorf("share %s: %w", shareID, models.ErrUnauthorized)
		}
		groups[expense.GroupID] = true
	}

	updated, err := s.store.MarkSharesPaid(ctx, shareIDs, s.now().Unix())
	if err != nil {
		return 0, err
	}
	for groupID := range groups {
		s.invalidate(ctx, groupID)
	}
	metrics.SharesMarkedPaid.Add(float64(updated))

	slog.Info("Shares marked paid", "requested", len(shareIDs), "updated", updated)
	return updated, nil
}

// MarkUnpaid resets one share to unpaid. Same authorization as MarkPaid;
// an already-unpaid share is a no-op, not an error.
func (s *SettlementService) MarkUnpaid(ctx context.Context, actor, shareID string) error {
	share, err := s.store.GetShare(ctx, shareID)
	if err != nil {
		return asNotFound(err)
	}
	expense, err := s.store.GetExpense(ctx, share.ExpenseID)
	if err != nil {
		return asNotFound(err)
	}
	if actor != share.UserID && actor != expense.PaidBy {
		return fmt.Errorf("share %s: %w", shareID, models.ErrUnauthorized)
	}
	if !share.Paid {
		return nil
	}

	if err := s.store.MarkShareUnpaid(ctx, shareID); err != nil {
		return asNotFound(err)
	}
	s.invalidate(ctx, expense.GroupID)
	return nil
}

func (s *SettlementService) invalidate(ctx context.Context, groupID string) {
	if err := s.cache.InvalidateGroup(ctx, groupID); err != nil {
		slog.Warn("Failed to invalidate balance cache", "group_id", groupID, "error", err)
	}
}
