package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/divvyhq/divvy/internal/cache"
	"github.com/divvyhq/divvy/internal/models"
	"github.com/divvyhq/divvy/internal/storage"
)

// GroupService manages group lifecycle and membership.
type GroupService struct {
	store storage.Store
	cache cache.Cache
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, c cache.Cache) *GroupService {
	return &GroupService{store: store, cache: c}
}

// Create creates a group owned by the actor. The actor is always a member.
func (s *GroupService) Create(ctx context.Context, actor, name string, members []string) (*models.Group, error) {
	if actor == "" {
		return nil, fmt.Errorf("%w: actor required", models.ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: group name required", models.ErrValidation)
	}

	group := &models.Group{
		Name:      name,
		CreatedBy: actor,
		Members:   appendUnique(members, actor),
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, err
	}

	slog.Info("Group created", "group_id", group.ID, "members", len(group.Members))
	return group, nil
}

// Get retrieves a group. Non-members get ErrNotFound rather than
// ErrUnauthorized so they cannot probe for existence.
func (s *GroupService) Get(ctx context.Context, actor, groupID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, asNotFound(err)
	}
	if !group.HasMember(actor) {
		return nil, fmt.Errorf("group %s: %w", groupID, models.ErrNotFound)
	}
	return group, nil
}

// List retrieves all groups the actor belongs to.
func (s *GroupService) List(ctx context.Context, actor string) ([]*models.Group, error) {
	return s.store.ListGroupsByMember(ctx, actor)
}

// AddMembers adds users to the group. Any member may invite.
func (s *GroupService) AddMembers(ctx context.Context, actor, groupID string, userIDs []string) error {
	if _, err := s.Get(ctx, actor, groupID); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return fmt.Errorf("%w: no members given", models.ErrValidation)
	}
	if err := s.store.AddGroupMembers(ctx, groupID, userIDs); err != nil {
		slog.Error("AddGroupMembers failed", "group_id", groupID, "error", err)
		return err
	}
	return nil
}

// RemoveMember removes a user from the group. Members may leave on their
// own; only the group's creator removes others. Removal is rejected with
// ErrConflict while the user has any unpaid share, owed or owing.
func (s *GroupService) RemoveMember(ctx context.Context, actor, groupID, userID string) error {
	group, err := s.Get(ctx, actor, groupID)
	if err != nil {
		return err
	}
	if actor != userID && actor != group.CreatedBy {
		return fmt.Errorf("only the group creator removes other members: %w", models.ErrUnauthorized)
	}
	if !group.HasMember(userID) {
		return fmt.Errorf("member %s: %w", userID, models.ErrNotFound)
	}

	unpaid, err := s.store.CountUnpaidShares(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if unpaid > 0 {
		return fmt.Errorf("member %s has %d unpaid shares: %w", userID, unpaid, models.ErrConflict)
	}

	if err := s.store.RemoveGroupMember(ctx, groupID, userID); err != nil {
		return asNotFound(err)
	}
	slog.Info("Member removed", "group_id", groupID, "user_id", userID)
	return nil
}

// Delete removes the group and everything in it. Creator only, and rejected
// with ErrConflict while any share in the group is unpaid.
func (s *GroupService) Delete(ctx context.Context, actor, groupID string) error {
	group, err := s.Get(ctx, actor, groupID)
	if err != nil {
		return err
	}
	if actor != group.CreatedBy {
		return fmt.Errorf("only the group creator deletes the group: %w", models.ErrUnauthorized)
	}

	unpaid, err := s.store.CountUnpaidShares(ctx, groupID, "")
	if err != nil {
		return err
	}
	if unpaid > 0 {
		return fmt.Errorf("group has %d unpaid shares: %w", unpaid, models.ErrConflict)
	}

	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return asNotFound(err)
	}
	if err := s.cache.InvalidateGroup(ctx, groupID); err != nil {
		slog.Warn("Failed to invalidate balance cache", "group_id", groupID, "error", err)
	}
	slog.Info("Group deleted", "group_id", groupID)
	return nil
}

// appendUnique returns members with userID included exactly once.
func appendUnique(members []string, userID string) []string {
	out := make([]string, 0, len(members)+1)
	seen := make(map[string]bool, len(members)+1)
	for _, m := range append(members, userID) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// asNotFound maps storage misses onto the domain taxonomy, leaving other
// errors untouched.
func asNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%v: %w", err, models.ErrNotFound)
	}
	return err
}
