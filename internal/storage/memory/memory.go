// Package memory provides an in-memory implementation of storage.Store.
// It backs service tests and small single-process deployments; a mutex per
// store stands in for the transaction boundary the SQL stores get from
// their database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/storage"
)

// Ensure MemoryStore implements storage.Store
var _ storage.Store = (*MemoryStore)(nil)

// MemoryStore implements storage.Store with plain maps.
type MemoryStore struct {
	mu          sync.Mutex
	groups      map[string]*models.Group
	expenses    map[string]*models.Expense
	settlements map[string]*models.Settlement
	shareIndex  map[string]string // share ID -> expense ID
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		groups:      make(map[string]*models.Group),
		expenses:    make(map[string]*models.Expense),
		settlements: make(map[string]*models.Settlement),
		shareIndex:  make(map[string]string),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func copyGroup(g *models.Group) *models.Group {
	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	return &cp
}

func copyExpense(e *models.Expense) *models.Expense {
	cp := *e
	cp.Shares = append([]models.Share(nil), e.Shares...)
	return &cp
}

func copySettlement(st *models.Settlement) *models.Settlement {
	cp := *st
	return &cp
}

// CreateGroup stores a new group, assigning ID and CreatedAt when empty.
func (s *MemoryStore) CreateGroup(_ context.Context, g *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt == 0 {
		g.CreatedAt = time.Now().Unix()
	}
	s.groups[g.ID] = copyGroup(g)
	return nil
}

// GetGroup retrieves a group by ID.
func (s *MemoryStore) GetGroup(_ context.Context, groupID string) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return copyGroup(g), nil
}

// AddGroupMembers adds users to a group, skipping existing members.
func (s *MemoryStore) AddGroupMembers(_ context.Context, groupID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	for _, userID := range userIDs {
		if !g.HasMember(userID) {
			g.Members = append(g.Members, userID)
		}
	}
	sort.Strings(g.Members)
	return nil
}

// RemoveGroupMember removes one member from a group.
func (s *MemoryStore) RemoveGroupMember(_ context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	for i, m := range g.Members {
		if m == userID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("member %s in group %s: %w", userID, groupID, storage.ErrNotFound)
}

// DeleteGroup removes the group and everything that hangs off it.
func (s *MemoryStore) DeleteGroup(_ context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[groupID]; !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	delete(s.groups, groupID)
	for id, e := range s.expenses {
		if e.GroupID == groupID {
			for _, share := range e.Shares {
				delete(s.shareIndex, share.ID)
			}
			delete(s.expenses, id)
		}
	}
	for id, st := range s.settlements {
		if st.GroupID == groupID {
			delete(s.settlements, id)
		}
	}
	return nil
}

// ListGroupsByMember retrieves every group the user belongs to, newest
// first.
func (s *MemoryStore) ListGroupsByMember(_ context.Context, userID string) ([]*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var groups []*models.Group
	for _, g := range s.groups {
		if g.HasMember(userID) {
			groups = append(groups, copyGroup(g))
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].CreatedAt != groups[j].CreatedAt {
			return groups[i].CreatedAt > groups[j].CreatedAt
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// IsActiveMember reports whether the user belongs to the group.
func (s *MemoryStore) IsActiveMember(_ context.Context, groupID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return false, nil
	}
	return g.HasMember(userID), nil
}

// CanSettle reports whether two users share at least one group.
func (s *MemoryStore) CanSettle(_ context.Context, userA, userB string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.groups {
		if g.HasMember(userA) && g.HasMember(userB) {
			return true, nil
		}
	}
	return false, nil
}

// CreateExpense stores the expense and all its shares as one unit.
func (s *MemoryStore) CreateExpense(_ context.Context, e *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	if e.UpdatedAt == 0 {
		e.UpdatedAt = e.CreatedAt
	}
	for i := range e.Shares {
		if e.Shares[i].ID == "" {
			e.Shares[i].ID = uuid.New().String()
		}
		e.Shares[i].ExpenseID = e.ID
	}

	s.expenses[e.ID] = copyExpense(e)
	for _, share := range e.Shares {
		s.shareIndex[share.ID] = e.ID
	}
	return nil
}

// GetExpense retrieves an expense with its shares.
func (s *MemoryStore) GetExpense(_ context.Context, expenseID string) (*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[expenseID]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	return copyExpense(e), nil
}

// UpdateExpense rewrites the expense fields and replaces its share set.
func (s *MemoryStore) UpdateExpense(_ context.Context, e *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.expenses[e.ID]
	if !ok {
		return fmt.Errorf("expense %s: %w", e.ID, storage.ErrNotFound)
	}
	for _, share := range old.Shares {
		delete(s.shareIndex, share.ID)
	}

	e.UpdatedAt = time.Now().Unix()
	for i := range e.Shares {
		if e.Shares[i].ID == "" {
			e.Shares[i].ID = uuid.New().String()
		}
		e.Shares[i].ExpenseID = e.ID
	}
	s.expenses[e.ID] = copyExpense(e)
	for _, share := range e.Shares {
		s.shareIndex[share.ID] = e.ID
	}
	return nil
}

// DeleteExpense removes the expense and its shares.
func (s *MemoryStore) DeleteExpense(_ context.Context, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[expenseID]
	if !ok {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	for _, share := range e.Shares {
		delete(s.shareIndex, share.ID)
	}
	delete(s.expenses, expenseID)
	return nil
}

// ListExpensesByGroup retrieves all expenses of a group, newest first.
func (s *MemoryStore) ListExpensesByGroup(_ context.Context, groupID string) ([]*models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expenses []*models.Expense
	for _, e := range s.expenses {
		if e.GroupID == groupID {
			expenses = append(expenses, copyExpense(e))
		}
	}
	sort.Slice(expenses, func(i, j int) bool {
		if expenses[i].CreatedAt != expenses[j].CreatedAt {
			return expenses[i].CreatedAt > expenses[j].CreatedAt
		}
		return expenses[i].ID < expenses[j].ID
	})
	return expenses, nil
}

// GetShare retrieves a single share by ID.
func (s *MemoryStore) GetShare(_ context.Context, shareID string) (*models.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	share := s.findShare(shareID)
	if share == nil {
		return nil, fmt.Errorf("share %s: %w", shareID, storage.ErrNotFound)
	}
	cp := *share
	return &cp, nil
}

// findShare returns the live share record; callers hold the lock.
func (s *MemoryStore) findShare(shareID string) *models.Share {
	expenseID, ok := s.shareIndex[shareID]
	if !ok {
		return nil
	}
	e := s.expenses[expenseID]
	for i := range e.Shares {
		if e.Shares[i].ID == shareID {
			return &e.Shares[i]
		}
	}
	return nil
}

// SharesSettledAt retrieves the user's paid shares in the group whose
// settled-at equals the timestamp, ordered by share ID ascending.
func (s *MemoryStore) SharesSettledAt(_ context.Context, groupID, userID string, settledAt int64) ([]*models.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var shares []*models.Share
	for _, e := range s.expenses {
		if e.GroupID != groupID {
			continue
		}
		for _, share := range e.Shares {
			if share.UserID == userID && share.Paid && share.SettledAt == settledAt {
				cp := share
				shares = append(shares, &cp)
			}
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].ID < shares[j].ID })
	return shares, nil
}

// CountUnpaidShares counts unpaid non-payer shares in the group, optionally
// restricted to shares the user owes or is owed as expense payer.
func (s *MemoryStore) CountUnpaidShares(_ context.Context, groupID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.expenses {
		if e.GroupID != groupID {
			continue
		}
		for _, share := range e.Shares {
			if share.Paid || share.UserID == e.PaidBy {
				continue
			}
			if userID == "" || share.UserID == userID || e.PaidBy == userID {
				count++
			}
		}
	}
	return count, nil
}

// MarkSharesPaid marks the given shares paid, skipping already-paid ones.
func (s *MemoryStore) MarkSharesPaid(_ context.Context, shareIDs []string, settledAt int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, id := range shareIDs {
		share := s.findShare(id)
		if share == nil || share.Paid {
			continue
		}
		share.Paid = true
		share.SettledAt = settledAt
		updated++
	}
	return updated, nil
}

// MarkShareUnpaid resets one share to unpaid and clears settled-at.
func (s *MemoryStore) MarkShareUnpaid(_ context.Context, shareID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	share := s.findShare(shareID)
	if share == nil {
		return fmt.Errorf("share %s: %w", shareID, storage.ErrNotFound)
	}
	share.Paid = false
	share.SettledAt = 0
	return nil
}

// CreateSettlement stores the settlement and marks the covered shares paid
// as one unit.
func (s *MemoryStore) CreateSettlement(_ context.Context, settlement *models.Settlement, paidShareIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}
	if settlement.SettledAt == 0 {
		settlement.SettledAt = settlement.CreatedAt
	}

	s.settlements[settlement.ID] = copySettlement(settlement)
	for _, shareID := range paidShareIDs {
		share := s.findShare(shareID)
		if share == nil || share.Paid {
			continue
		}
		share.Paid = true
		share.SettledAt = settlement.SettledAt
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *MemoryStore) GetSettlement(_ context.Context, settlementID string) (*models.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.settlements[settlementID]
	if !ok {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	return copySettlement(st), nil
}

// UpdateSettlement rewrites the settlement's mutable fields.
func (s *MemoryStore) UpdateSettlement(_ context.Context, settlement *models.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settlements[settlement.ID]; !ok {
		return fmt.Errorf("settlement %s: %w", settlement.ID, storage.ErrNotFound)
	}
	s.settlements[settlement.ID] = copySettlement(settlement)
	return nil
}

// DeleteSettlement removes the settlement and resets the given shares to
// unpaid as one unit.
func (s *MemoryStore) DeleteSettlement(_ context.Context, settlementID string, revertShareIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.settlements[settlementID]; !ok {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	delete(s.settlements, settlementID)
	for _, shareID := range revertShareIDs {
		share := s.findShare(shareID)
		if share == nil {
			continue
		}
		share.Paid = false
		share.SettledAt = 0
	}
	return nil
}

// ListSettlementsByGroup retrieves all settlements of a group, newest
// first.
func (s *MemoryStore) ListSettlementsByGroup(_ context.Context, groupID string) ([]*models.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settlements []*models.Settlement
	for _, st := range s.settlements {
		if st.GroupID == groupID {
			settlements = append(settlements, copySettlement(st))
		}
	}
	sort.Slice(settlements, func(i, j int) bool {
		if settlements[i].CreatedAt != settlements[j].CreatedAt {
			return settlements[i].CreatedAt > settlements[j].CreatedAt
		}
		return settlements[i].ID < settlements[j].ID
	})
	return settlements, nil
}
