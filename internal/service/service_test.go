package service

import (
	"context"
	"testing"
	"time"

	"github.com/divvyhq/divvy/internal/cache"
	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/money"
	"github.com/divvyhq/divvy/internal/split"
	"github.com/divvyhq/divvy/internal/storage/memory"
)

// testEnv wires every service over one in-memory store and cache.
type testEnv struct {
	store       *memory.MemoryStore
	cache       *cache.MemoryCache
	groups      *GroupService
	expenses    *ExpenseService
	settlements *SettlementService
	balances    *BalanceService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	c := cache.NewMemory(time.Minute)
	return &testEnv{
		store:       store,
		cache:       c,
		groups:      NewGroupService(store, c),
		expenses:    NewExpenseService(store, c),
		settlements: NewSettlementService(store, c, 24*time.Hour),
		balances:    NewBalanceService(store, c),
	}
}

// newTestGroup creates a group owned by the first member.
func (env *testEnv) newTestGroup(t *testing.T, members ...string) *models.Group {
	t.Helper()

	group, err := env.groups.Create(context.Background(), members[0], "test group", members)
	if err != nil {
		t.Fatalf("Create group failed: %v", err)
	}
	return group
}

// newEqualExpense records an equal-split expense paid by payer.
func (env *testEnv) newEqualExpense(t *testing.T, groupID, payer string, amount money.Money, participants ...string) *models.Expense {
	t.Helper()

	expense, err := env.expenses.Create(context.Background(), payer, CreateExpenseInput{
		GroupID:      groupID,
		Description:  "test expense",
		Amount:       amount,
		Policy:       split.PolicyEqual,
		Participants: participants,
	})
	if err != nil {
		t.Fatalf("Create expense failed: %v", err)
	}
	return expense
}
