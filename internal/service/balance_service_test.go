package service

import (
	"context"
	"errors"
	"testing"

	"github.com/divvyhq/divvy/internal/ledger"
	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/money"
)

func findEdge(edges []ledger.Edge, debtor, creditor string) (money.Money, bool) {
	for _, e := range edges {
		if e.Debtor == debtor && e.Creditor == creditor {
			return e.Amount, true
		}
	}
	return 0, false
}

func TestGroupBalances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("empty group yields empty aggregates", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		balances, err := env.balances.GroupBalances(ctx, "alice", group.ID)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		if len(balances.Edges) != 0 || balances.TotalUnsettled != 0 || balances.TotalSpent != 0 {
			t.Errorf("Expected empty aggregates, got %+v", balances)
		}
		if balances.PerUser["alice"] != 0 || balances.PerUser["bob"] != 0 {
			t.Errorf("Expected zero per-user balances, got %v", balances.PerUser)
		}
	})

	t.Run("non-member gets NotFound", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		_, err := env.balances.GroupBalances(ctx, "mallory", group.ID)
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unsettled shares become netted edges", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob", "carol")
		env.newEqualExpense(t, group.ID, "alice", 9000, "alice", "bob", "carol")

		balances, err := env.balances.GroupBalances(ctx, "alice", group.ID)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		if amount, ok := findEdge(balances.Edges, "bob", "alice"); !ok || amount != 3000 {
			t.Errorf("Expected bob->alice 3000, got %v", balances.Edges)
		}
		if amount, ok := findEdge(balances.Edges, "carol", "alice"); !ok || amount != 3000 {
			t.Errorf("Expected carol->alice 3000, got %v", balances.Edges)
		}
		if balances.TotalUnsettled != 6000 {
			t.Errorf("TotalUnsettled = %d, want 6000", balances.TotalUnsettled)
		}
		if balances.TotalSpent != 9000 {
			t.Errorf("TotalSpent = %d, want 9000", balances.TotalSpent)
		}
		if balances.PerUser["alice"] != 6000 || balances.PerUser["bob"] != -3000 {
			t.Errorf("Per-user balances wrong: %v", balances.PerUser)
		}

		// Member totals include the payer's own share.
		var alice models.MemberTotals
		for _, m := range balances.Members {
			if m.UserID == "alice" {
				alice = m
			}
		}
		if alice.Paid != 9000 || alice.Owed != 3000 || alice.Net != 6000 {
			t.Errorf("alice totals = %+v", alice)
		}
	})

	t.Run("linked settlement removes the debt without double counting", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		expense := env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")

		if _, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
			GroupID:   group.ID,
			ToUserID:  "alice",
			Amount:    1000,
			ExpenseID: expense.ID,
		}); err != nil {
			t.Fatalf("Create settlement failed: %v", err)
		}

		balances, err := env.balances.GroupBalances(ctx, "alice", group.ID)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		// The discharged share left the unsettled set; the settlement must
		// not also inject a counter-edge, or bob would end up owed 1000.
		if len(balances.Edges) != 0 {
			t.Errorf("Expected no edges after full settlement, got %v", balances.Edges)
		}
		if balances.TotalUnsettled != 0 {
			t.Errorf("TotalUnsettled = %d, want 0", balances.TotalUnsettled)
		}
	})

	t.Run("free-standing settlement offsets debt as a counter-edge", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		env.newEqualExpense(t, group.ID, "alice", 6000, "alice", "bob")

		// bob pays back 1000 without linking an expense.
		if _, err := env.settlements.Create(ctx, "bob", CreateSettlementInput{
			GroupID:  group.ID,
			ToUserID: "alice",
			Amount:   1000,
		}); err != nil {
			t.Fatalf("Create settlement failed: %v", err)
		}

		balances, err := env.balances.GroupBalances(ctx, "alice", group.ID)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		if amount, ok := findEdge(balances.Edges, "bob", "alice"); !ok || amount != 2000 {
			t.Errorf("Expected bob->alice 2000 after partial payback, got %v", balances.Edges)
		}
	})

	t.Run("cache served on repeat reads and invalidated on writes", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")

		first, err := env.balances.GroupBalances(ctx, "alice", group.ID)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		second, err := env.balances.GroupBalances(ctx, "bob", group.ID)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		if first != second {
			t.Error("Expected the second read to come from cache")
		}

		env.newEqualExpense(t, group.ID, "alice", 4000, "alice", "bob")
		third, err := env.balances.GroupBalances(ctx, "alice", group.ID)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		if third == second {
			t.Error("Expected the write to invalidate the cached report")
		}
		if third.TotalSpent != 6000 {
			t.Errorf("TotalSpent = %d, want 6000", third.TotalSpent)
		}
	})

	t.Run("categories aggregate per label", func(t *testing.T) {
		env := newTestEnv(t)
		group := env.newTestGroup(t, "alice", "bob")
		for _, e := range []struct {
			amount   money.Money
			category string
		}{
			{2000, "food"},
			{3000, "food"},
			{5000, ""},
		} {
			if _, err := env.expenses.Create(ctx, "alice", CreateExpenseInput{
				GroupID:      group.ID,
				Amount:       e.amount,
				Category:     e.category,
				Policy:       "equal",
				Participants: []string{"alice", "bob"},
			}); err != nil {
				t.Fatalf("Create expense failed: %v", err)
			}
		}

		balances, err := env.balances.GroupBalances(ctx, "alice", group.ID)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		if balances.ByCategory["food"] != 5000 {
			t.Errorf("food = %d, want 5000", balances.ByCategory["food"])
		}
		if balances.ByCategory[""] != 5000 {
			t.Errorf("uncategorized = %d, want 5000", balances.ByCategory[""])
		}
	})
}

func TestOverallBalances(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Group 1: bob owes alice 3000. Group 2: alice owes carol 1000.
	g1 := env.newTestGroup(t, "alice", "bob")
	env.newEqualExpense(t, g1.ID, "alice", 6000, "alice", "bob")

	g2 := env.newTestGroup(t, "carol", "alice")
	env.newEqualExpense(t, g2.ID, "carol", 2000, "carol", "alice")

	overall, err := env.balances.OverallBalances(ctx, "alice")
	if err != nil {
		t.Fatalf("OverallBalances failed: %v", err)
	}

	if overall.TotalOwed != 3000 {
		t.Errorf("TotalOwed = %d, want 3000", overall.TotalOwed)
	}
	if overall.TotalOwing != 1000 {
		t.Errorf("TotalOwing = %d, want 1000", overall.TotalOwing)
	}
	if len(overall.Friends) != 2 {
		t.Fatalf("Expected 2 friends, got %+v", overall.Friends)
	}
	// Sorted by user ID: bob owes alice, alice owes carol.
	if overall.Friends[0].UserID != "bob" || overall.Friends[0].Amount != 3000 {
		t.Errorf("Friends[0] = %+v, want bob 3000", overall.Friends[0])
	}
	if overall.Friends[1].UserID != "carol" || overall.Friends[1].Amount != -1000 {
		t.Errorf("Friends[1] = %+v, want carol -1000", overall.Friends[1])
	}

	t.Run("no groups yields empty totals", func(t *testing.T) {
		overall, err := env.balances.OverallBalances(ctx, "zoe")
		if err != nil {
			t.Fatalf("OverallBalances failed: %v", err)
		}
		if overall.TotalOwed != 0 || overall.TotalOwing != 0 || len(overall.Friends) != 0 {
			t.Errorf("Expected empty overall balances, got %+v", overall)
		}
	})
}
