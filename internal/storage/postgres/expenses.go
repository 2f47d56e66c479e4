package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/money"
	"github.com/divvyhq/divvy/internal/split"
	"github.com/divvyhq/divvy/internal/storage"
)

// CreateExpense persists the expense and all its shares in one transaction,
// so the shares-sum-to-amount invariant is never observable as violated.
func (s *PostgresStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	if e.UpdatedAt == 0 {
		e.UpdatedAt = e.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, paid_by, description, amount, category, split_policy, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.GroupID, e.PaidBy, e.Description, int64(e.Amount), e.Category, string(e.Policy), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertShares(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertShares(ctx context.Context, tx *sql.Tx, e *models.Expense) error {
	for i := range e.Shares {
		share := &e.Shares[i]
		if share.ID == "" {
			share.ID = uuid.New().String()
		}
		share.ExpenseID = e.ID

		_, err := tx.ExecContext(ctx,
			"INSERT INTO shares (id, expense_id, user_id, amount, paid, settled_at) VALUES ($1, $2, $3, $4, $5, $6)",
			share.ID, share.ExpenseID, share.UserID, int64(share.Amount), share.Paid, share.SettledAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert share: %w", err)
		}
	}
	return nil
}

// GetExpense retrieves an expense by ID, including all its shares.
func (s *PostgresStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	e := &models.Expense{}
	var amount int64
	var policy string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, paid_by, description, amount, category, split_policy, created_at, updated_at
		 FROM expenses WHERE id = $1`,
		expenseID,
	).Scan(&e.ID, &e.GroupID, &e.PaidBy, &e.Description, &amount, &e.Category, &policy, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	e.Amount = money.Money(amount)
	e.Policy = split.Policy(policy)

	shares, err := s.sharesForExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	e.Shares = shares
	return e, nil
}

func (s *PostgresStore) sharesForExpense(ctx context.Context, expenseID string) ([]models.Share, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, expense_id, user_id, amount, paid, settled_at FROM shares WHERE expense_id = $1 ORDER BY user_id",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get shares: %w", err)
	}
	defer rows.Close()

	var shares []models.Share
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, *share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}
	return shares, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShare(row rowScanner) (*models.Share, error) {
	share := &models.Share{}
	var amount int64
	if err := row.Scan(&share.ID, &share.ExpenseID, &share.UserID, &amount, &share.Paid, &share.SettledAt); err != nil {
		return nil, fmt.Errorf("failed to scan share: %w", err)
	}
	share.Amount = money.Money(amount)
	return share, nil
}

// UpdateExpense rewrites the expense fields and replaces its share set in
// one transaction.
func (s *PostgresStore) UpdateExpense(ctx context.Context, e *models.Expense) error {
	e.UpdatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET description = $1, amount = $2, category = $3, split_policy = $4, updated_at = $5
		 WHERE id = $6`,
		e.Description, int64(e.Amount), e.Category, string(e.Policy), e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %s: %w", e.ID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM shares WHERE expense_id = $1", e.ID); err != nil {
		return fmt.Errorf("failed to delete old shares: %w", err)
	}
	if err := insertShares(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes the expense; shares go with it via cascade.
func (s *PostgresStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = $1", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return nil
}

// ListExpensesByGroup retrieves all expenses of a group with their shares,
// newest first.
func (s *PostgresStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM expenses WHERE group_id = $1 ORDER BY created_at DESC, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expense id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	expenses := make([]*models.Expense, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetExpense(ctx, id)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

// GetShare retrieves a single share by ID.
func (s *PostgresStore) GetShare(ctx context.Context, shareID string) (*models.Share, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, expense_id, user_id, amount, paid, settled_at FROM shares WHERE id = $1",
		shareID,
	)
	share, err := scanShare(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("share %s: %w", shareID, storage.ErrNotFound)
		}
		return nil, err
	}
	return share, nil
}

// SharesSettledAt retrieves the user's paid shares in the group whose
// settled-at equals the given timestamp, ordered by share ID ascending.
func (s *PostgresStore) SharesSettledAt(ctx context.Context, groupID, userID string, settledAt int64) ([]*models.Share, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sh.id, sh.expense_id, sh.user_id, sh.amount, sh.paid, sh.settled_at
		 FROM shares sh JOIN expenses e ON e.id = sh.expense_id
		 WHERE e.group_id = $1 AND sh.user_id = $2 AND sh.paid AND sh.settled_at = $3
		 ORDER BY sh.id`,
		groupID, userID, settledAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query settled shares: %w", err)
	}
	defer rows.Close()

	var shares []*models.Share
	for rows.Next() {
		share, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settled shares: %w", err)
	}
	return shares, nil
}

// CountUnpaidShares counts unpaid non-payer shares in the group, optionally
// restricted to shares the given user owes or is owed as expense payer.
func (s *PostgresStore) CountUnpaidShares(ctx context.Context, groupID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shares sh JOIN expenses e ON e.id = sh.expense_id
		 WHERE e.group_id = $1 AND NOT sh.paid AND sh.user_id != e.paid_by
		   AND ($2 = '' OR sh.user_id = $2 OR e.paid_by = $2)`,
		groupID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unpaid shares: %w", err)
	}
	return count, nil
}

// MarkSharesPaid marks the given shares paid in one transaction. Shares
// already paid are skipped, keeping the operation idempotent per ID.
func (s *PostgresStore) MarkSharesPaid(ctx context.Context, shareIDs []string, settledAt int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updated := 0
	for _, id := range shareIDs {
		res, err := tx.ExecContext(ctx,
			"UPDATE shares SET paid = TRUE, settled_at = $1 WHERE id = $2 AND NOT paid",
			settledAt, id,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to mark share paid: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

// MarkShareUnpaid resets one share to unpaid and clears its settled-at.
func (s *PostgresStore) MarkShareUnpaid(ctx context.Context, shareID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE shares SET paid = FALSE, settled_at = 0 WHERE id = $1",
		shareID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark share unpaid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("share %s: %w", shareID, storage.ErrNotFound)
	}
	return nil
}
