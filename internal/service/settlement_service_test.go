package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/money"
)

func TestSettlementCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := env.newTestGroup(t, "alice", "bob")

	t.Run("self settlement rejected", func(t *testing.T) {
		_, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
			GroupID: group.ID, ToUserID: "bob", Amount: 1000,
		})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		_, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
			GroupID: group.ID, ToUserID: "alice", Amount: 0,
		})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
	})

	t.Run("unrelated recipient rejected", func(t *testing.T) {
		_, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
			GroupID: group.ID, ToUserID: "zoe", Amount: 1000,
		})
		if !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("linked settlement discharges the covered share", func(t *testing.T) {
		expense := env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")
		settlement, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
			GroupID:   group.ID,
			ToUserID:  "alice",
			Amount:    1000,
			ExpenseID: expense.ID,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := env.expenses.Get(ctx, "bob", expense.ID)
		if err != nil {
			t.Fatalf("Get expense failed: %v", err)
		}
		share := got.ShareOf("bob")
		if !share.Paid {
			t.Error("Expected bob's share to be paid")
		}
		if share.SettledAt != settlement.SettledAt {
			t.Errorf("Share settled-at %d, want settlement's %d", share.SettledAt, settlement.SettledAt)
		}
	})

	t.Run("amount above unpaid share rejected", func(t *testing.T) {
		expense := env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")
		_, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
			GroupID:   group.ID,
			ToUserID:  "alice",
			Amount:    1500,
			ExpenseID: expense.ID,
		})
		if !errors.Is(err, models.ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("already settled share rejected", func(t *testing.T) {
		expense := env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")
		if _, err := env.settlements.MarkPaid(ctx, "bob", []string{expense.ShareOf("bob").ID}); err != nil {
			t.Fatalf("MarkPaid failed: %v", err)
		}
		_, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
			GroupID:   group.ID,
			ToUserID:  "alice",
			Amount:    1000,
			ExpenseID: expense.ID,
		})
		if !errors.Is(err, models.ErrAlreadySettled) {
			t.Errorf("Expected ErrAlreadySettled, got %v", err)
		}
	})

	t.Run("no share on linked expense rejected", func(t *testing.T) {
		if err := env.groups.AddMembers(ctx, "alice", group.ID, []string{"carol"}); err != nil {
			t.Fatalf("AddMembers failed: %v", err)
		}
		expense := env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")
		_, err := env.settlements.Create(ctx, "carol", CreateSettlementInput{
			GroupID:   group.ID,
			ToUserID:  "alice",
			Amount:    1000,
			ExpenseID: expense.ID,
		})
		if !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestSettlementGraceWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := env.newTestGroup(t, "alice", "bob")

	// Control the clock so the window boundary is exact.
	base := time.Now()
	env.settlements.now = func() time.Time { return base }

	settlement, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
		GroupID: group.ID, ToUserID: "alice", Amount: 1000,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("mutable inside the window", func(t *testing.T) {
		env.settlements.now = func() time.Time { return base.Add(23 * time.Hour) }
		amount := money.Money(900)
		updated, err := env.settlements.Update(ctx, "bob", settlement.ID, models.SettlementUpdate{Amount: &amount})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if updated.Amount != 900 {
			t.Errorf("Amount = %d, want 900", updated.Amount)
		}
	})

	t.Run("creator only", func(t *testing.T) {
		env.settlements.now = func() time.Time { return base.Add(time.Hour) }
		note := "oops"
		_, err := env.settlements.Update(ctx, "alice", settlement.ID, models.SettlementUpdate{Note: &note})
		if !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("frozen after the window", func(t *testing.T) {
		env.settlements.now = func() time.Time { return base.Add(24*time.Hour + time.Second) }
		note := "too late"
		_, err := env.settlements.Update(ctx, "bob", settlement.ID, models.SettlementUpdate{Note: &note})
		if !errors.Is(err, models.ErrExpired) {
			t.Errorf("Expected ErrExpired on update, got %v", err)
		}
		if err := env.settlements.Delete(ctx, "bob", settlement.ID); !errors.Is(err, models.ErrExpired) {
			t.Errorf("Expected ErrExpired on delete, got %v", err)
		}
	})
}

func TestSettlementDeleteReversal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := env.newTestGroup(t, "alice", "bob")

	base := time.Now()
	env.settlements.now = func() time.Time { return base }

	// Two expenses; only one is discharged by the settlement.
	settled := env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")
	untouched := env.newEqualExpense(t, group.ID, "alice", 4000, "alice", "bob")

	settlement, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
		GroupID:   group.ID,
		ToUserID:  "alice",
		Amount:    1000,
		ExpenseID: settled.ID,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Mark the other expense's share paid at a different timestamp.
	env.settlements.now = func() time.Time { return base.Add(time.Minute) }
	if _, err := env.settlements.MarkPaid(ctx, "bob", []string{untouched.ShareOf("bob").ID}); err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}

	if err := env.settlements.Delete(ctx, "bob", settlement.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := env.expenses.Get(ctx, "bob", settled.ID)
	if err != nil {
		t.Fatalf("Get expense failed: %v", err)
	}
	if share := got.ShareOf("bob"); share.Paid || share.SettledAt != 0 {
		t.Errorf("Expected discharged share reverted, got paid:%v settledAt:%d", share.Paid, share.SettledAt)
	}

	got, err = env.expenses.Get(ctx, "bob", untouched.ID)
	if err != nil {
		t.Fatalf("Get expense failed: %v", err)
	}
	if share := got.ShareOf("bob"); !share.Paid {
		t.Error("Expected the unrelated paid share to stay paid")
	}

	if _, err := env.settlements.Get(ctx, "bob", settlement.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestMarkPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := env.newTestGroup(t, "alice", "bob", "carol")
	expense := env.newEqualExpense(t, group.ID, "alice", 3000, "alice", "bob", "carol")

	bobShare := expense.ShareOf("bob").ID
	carolShare := expense.ShareOf("carol").ID

	t.Run("authorization is all-or-nothing", func(t *testing.T) {
		// bob cannot mark carol's share, so nothing is marked.
		_, err := env.settlements.MarkPaid(ctx, "bob", []string{bobShare, carolShare})
		if !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
		got, err := env.expenses.Get(ctx, "bob", expense.ID)
		if err != nil {
			t.Fatalf("Get expense failed: %v", err)
		}
		if got.ShareOf("bob").Paid {
			t.Error("Expected no share marked after failed authorization")
		}
	})

	t.Run("payer marks any share, marking is idempotent", func(t *testing.T) {
		n, err := env.settlements.MarkPaid(ctx, "alice", []string{bobShare, carolShare})
		if err != nil {
			t.Fatalf("MarkPaid failed: %v", err)
		}
		if n != 2 {
			t.Errorf("Expected 2 shares marked, got %d", n)
		}

		n, err = env.settlements.MarkPaid(ctx, "alice", []string{bobShare, carolShare})
		if err != nil {
			t.Fatalf("MarkPaid failed: %v", err)
		}
		if n != 0 {
			t.Errorf("Expected 0 on repeat, got %d", n)
		}
	})

	t.Run("unknown share is NotFound", func(t *testing.T) {
		_, err := env.settlements.MarkPaid(ctx, "alice", []string{"nonexistent-id"})
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestMarkUnpaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := env.newTestGroup(t, "alice", "bob")
	expense := env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")
	bobShare := expense.ShareOf("bob").ID

	t.Run("unpaid share is a no-op", func(t *testing.T) {
		if err := env.settlements.MarkUnpaid(ctx, "bob", bobShare); err != nil {
			t.Fatalf("Expected no-op, got %v", err)
		}
	})

	t.Run("resets a paid share", func(t *testing.T) {
		if _, err := env.settlements.MarkPaid(ctx, "bob", []string{bobShare}); err != nil {
			t.Fatalf("MarkPaid failed: %v", err)
		}
		if err := env.settlements.MarkUnpaid(ctx, "alice", bobShare); err != nil {
			t.Fatalf("MarkUnpaid failed: %v", err)
		}
		got, err := env.expenses.Get(ctx, "bob", expense.ID)
		if err != nil {
			t.Fatalf("Get expense failed: %v", err)
		}
		if share := got.ShareOf("bob"); share.Paid || share.SettledAt != 0 {
			t.Errorf("Expected unpaid share, got paid:%v settledAt:%d", share.Paid, share.SettledAt)
		}
	})

	t.Run("outsider rejected", func(t *testing.T) {
		if err := env.settlements.MarkUnpaid(ctx, "zoe", bobShare); !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})
}
