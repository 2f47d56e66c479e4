package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/divvyhq/divvy/internal/cache"
	"github.com/divvyhq/divvy/internal/ledger"
	"github.com/divvyhq/divvy/internal/metrics"
	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/money"
	"github.com/divvyhq/divvy/internal/storage"
)

// BalanceService renders read-only netted views of group ledgers. Balances
// are always recomputed from one consistent snapshot of expenses and
// settlements; the cache in front only short-circuits repeat reads.
type BalanceService struct {
	store storage.Store
	cache cache.Cache
}

// NewBalanceService creates a new BalanceService with the given storage
// backend.
func NewBalanceService(store storage.Store, c cache.Cache) *BalanceService {
	return &BalanceService{store: store, cache: c}
}

// GroupBalances computes the group's netted pairwise debts plus aggregate
// totals. A group without expenses yields empty aggregates, never an error.
func (s *BalanceService) GroupBalances(ctx context.Context, actor, groupID string) (*models.GroupBalances, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, asNotFound(err)
	}
	if !group.HasMember(actor) {
		return nil, fmt.Errorf("group %s: %w", groupID, models.ErrNotFound)
	}

	if cached, err := s.cache.GetGroupBalances(ctx, groupID); err == nil {
		metrics.BalanceCacheHits.Inc()
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("Balance cache read failed", "group_id", groupID, "error", err)
	}
	metrics.BalanceCacheMisses.Inc()

	balances, err := s.computeGroupBalances(ctx, group)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetGroupBalances(ctx, groupID, balances); err != nil {
		slog.Warn("Balance cache write failed", "group_id", groupID, "error", err)
	}
	return balances, nil
}

// OverallBalances aggregates the actor's position against each friend
// across every group they belong to.
func (s *BalanceService) OverallBalances(ctx context.Context, actor string) (*models.OverallBalances, error) {
	groups, err := s.store.ListGroupsByMember(ctx, actor)
	if err != nil {
		return nil, err
	}

	perFriend := make(map[string]money.Money)
	for _, group := range groups {
		balances, err := s.computeGroupBalances(ctx, group)
		if err != nil {
			return nil, err
		}
		for _, edge := range balances.Edges {
			switch actor {
			case edge.Creditor:
				perFriend[edge.Debtor] += edge.Amount
			case edge.Debtor:
				perFriend[edge.Creditor] -= edge.Amount
			}
		}
	}

	overall := &models.OverallBalances{}
	friends := make([]string, 0, len(perFriend))
	for userID, amount := range perFriend {
		if amount == 0 {
			continue
		}
		friends = append(friends, userID)
		if amount > 0 {
			overall.TotalOwed += amount
		} else {
			overall.TotalOwing += amount.Abs()
		}
	}
	sort.Strings(friends)
	for _, userID := range friends {
		overall.Friends = append(overall.Friends, models.FriendBalance{
			UserID: userID,
			Amount: perFriend[userID],
		})
	}
	return overall, nil
}

// computeGroupBalances assembles raw edges from unsettled shares and
// settlements, nets them, and layers the aggregate totals on top.
func (s *BalanceService) computeGroupBalances(ctx context.Context, group *models.Group) (*models.GroupBalances, error) {
	expenses, err := s.store.ListExpensesByGroup(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	settlements, err := s.store.ListSettlementsByGroup(ctx, group.ID)
	if err != nil {
		return nil, err
	}

	edges := rawEdges(expenses, settlements)
	netted := ledger.Net(edges)
	perUser := ledger.NetBalances(netted)
	// Every member appears in the report, including payer-only members
	// whose position netted out to zero.
	for _, userID := range group.Members {
		if _, ok := perUser[userID]; !ok {
			perUser[userID] = 0
		}
	}

	balances := &models.GroupBalances{
		GroupID:        group.ID,
		Edges:          netted,
		PerUser:        perUser,
		TotalUnsettled: ledger.TotalOutstanding(netted),
		ByCategory:     make(map[string]money.Money),
	}

	paid := make(map[string]money.Money)
	owed := make(map[string]money.Money)
	for _, expense := range expenses {
		balances.TotalSpent += expense.Amount
		balances.ByCategory[expense.Category] += expense.Amount
		paid[expense.PaidBy] += expense.Amount
		for _, share := range expense.Shares {
			owed[share.UserID] += share.Amount
		}
	}

	members := append([]string(nil), group.Members...)
	sort.Strings(members)
	for _, userID := range members {
		balances.Members = append(balances.Members, models.MemberTotals{
			UserID: userID,
			Paid:   paid[userID],
			Owed:   owed[userID],
			Net:    perUser[userID],
		})
	}
	return balances, nil
}

// rawEdges turns unsettled shares and settlements into directed debt edges.
// A share is a debt from its owner to the expense payer. A settlement is a
// payment, so it enters as a counter-edge from recipient to payer — minus
// the amounts of shares the settlement itself discharged, which already
// left the unsettled set when they were marked paid.
func rawEdges(expenses []*models.Expense, settlements []*models.Settlement) []ledger.Edge {
	var edges []ledger.Edge
	for _, expense := range expenses {
		for _, share := range expense.Shares {
			if share.Paid || share.UserID == expense.PaidBy || share.Amount == 0 {
				continue
			}
			edges = append(edges, ledger.Edge{
				Debtor:   share.UserID,
				Creditor: expense.PaidBy,
				Amount:   share.Amount,
			})
		}
	}

	for _, settlement := range settlements {
		counter := settlement.Amount - dischargedAmount(settlement, expenses)
		if counter <= 0 {
			continue
		}
		edges = append(edges, ledger.Edge{
			Debtor:   settlement.ToUserID,
			Creditor: settlement.FromUserID,
			Amount:   counter,
		})
	}
	return edges
}

// dischargedAmount sums the shares a settlement marked paid, identified by
// the same rule the reversal uses: the creator's paid shares stamped with
// the settlement's settled-at, scoped to the linked expense when set.
func dischargedAmount(settlement *models.Settlement, expenses []*models.Expense) money.Money {
	var total money.Money
	for _, expense := range expenses {
		if settlement.ExpenseID != "" && expense.ID != settlement.ExpenseID {
			continue
		}
		for _, share := range expense.Shares {
			if share.Paid && share.UserID == settlement.FromUserID && share.SettledAt == settlement.SettledAt {
				total += share.Amount
			}
		}
	}
	return total
}
