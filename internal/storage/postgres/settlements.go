package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/money"
	"github.com/divvyhq/divvy/internal/storage"
)

// CreateSettlement persists the settlement and marks the covered shares
// paid in one transaction. Covered shares get the settlement's settled-at
// timestamp, which is what later ties them to it for reversal.
func (s *PostgresStore) CreateSettlement(ctx context.Context, settlement *models.Settlement, paidShareIDs []string) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}
	if settlement.SettledAt == 0 {
		settlement.SettledAt = settlement.CreatedAt
	}

	var expenseID any
	if settlement.ExpenseID != "" {
		expenseID = settlement.ExpenseID
	}
	var note any
	if settlement.Note != "" {
		note = settlement.Note
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements (id, group_id, from_user_id, to_user_id, amount, expense_id, settled_at, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		settlement.ID, settlement.GroupID, settlement.FromUserID, settlement.ToUserID,
		int64(settlement.Amount), expenseID, settlement.SettledAt, note, settlement.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	for _, shareID := range paidShareIDs {
		_, err = tx.ExecContext(ctx,
			"UPDATE shares SET paid = TRUE, settled_at = $1 WHERE id = $2 AND NOT paid",
			settlement.SettledAt, shareID,
		)
		if err != nil {
			return fmt.Errorf("failed to mark share paid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *PostgresStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var amount int64
	var expenseID, note sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, from_user_id, to_user_id, amount, expense_id, settled_at, note, created_at
		 FROM settlements WHERE id = $1`,
		settlementID,
	).Scan(&settlement.ID, &settlement.GroupID, &settlement.FromUserID, &settlement.ToUserID,
		&amount, &expenseID, &settlement.SettledAt, &note, &settlement.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}

	settlement.Amount = money.Money(amount)
	if expenseID.Valid {
		settlement.ExpenseID = expenseID.String
	}
	if note.Valid {
		settlement.Note = note.String
	}
	return settlement, nil
}

// UpdateSettlement rewrites the settlement's mutable fields.
func (s *PostgresStore) UpdateSettlement(ctx context.Context, settlement *models.Settlement) error {
	var note any
	if settlement.Note != "" {
		note = settlement.Note
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE settlements SET amount = $1, note = $2 WHERE id = $3",
		int64(settlement.Amount), note, settlement.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("settlement %s: %w", settlement.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteSettlement removes the settlement and resets the given shares to
// unpaid in one transaction.
func (s *PostgresStore) DeleteSettlement(ctx context.Context, settlementID string, revertShareIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM settlements WHERE id = $1", settlementID)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}

	for _, shareID := range revertShareIDs {
		_, err = tx.ExecContext(ctx,
			"UPDATE shares SET paid = FALSE, settled_at = 0 WHERE id = $1",
			shareID,
		)
		if err != nil {
			return fmt.Errorf("failed to revert share: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListSettlementsByGroup retrieves all settlements for a group, newest
// first.
func (s *PostgresStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, from_user_id, to_user_id, amount, expense_id, settled_at, note, created_at
		 FROM settlements WHERE group_id = $1 ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement := &models.Settlement{}
		var amount int64
		var expenseID, note sql.NullString

		if err := rows.Scan(&settlement.ID, &settlement.GroupID, &settlement.FromUserID, &settlement.ToUserID,
			&amount, &expenseID, &settlement.SettledAt, &note, &settlement.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}

		settlement.Amount = money.Money(amount)
		if expenseID.Valid {
			settlement.ExpenseID = expenseID.String
		}
		if note.Valid {
			settlement.Note = note.String
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}
