package service

import (
	"context"
	"errors"
	"testing"

	"github.com/divvyhq/divvy/internal/models"
)

func TestGroupCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("actor becomes a member", func(t *testing.T) {
		group, err := env.groups.Create(ctx, "alice", "Trip", []string{"bob"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if !group.HasMember("alice") || !group.HasMember("bob") {
			t.Errorf("Expected alice and bob as members, got %v", group.Members)
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := env.groups.Create(ctx, "alice", "", nil)
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
	})
}

func TestGroupAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	group := env.newTestGroup(t, "alice", "bob")

	t.Run("member reads the group", func(t *testing.T) {
		got, err := env.groups.Get(ctx, "bob", group.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ID != group.ID {
			t.Errorf("ID mismatch: got %s, want %s", got.ID, group.ID)
		}
	})

	t.Run("non-member gets NotFound, not Unauthorized", func(t *testing.T) {
		_, err := env.groups.Get(ctx, "mallory", group.ID)
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if errors.Is(err, models.ErrUnauthorized) {
			t.Error("Existence must not leak through ErrUnauthorized")
		}
	})

	t.Run("List returns only memberships", func(t *testing.T) {
		groups, err := env.groups.List(ctx, "bob")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(groups) != 1 {
			t.Errorf("Expected 1 group for bob, got %d", len(groups))
		}
	})
}

func TestGroupMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("any member invites", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		if err := env.groups.AddMembers(ctx, "bob", group.ID, []string{"carol"}); err != nil {
			t.Fatalf("AddMembers failed: %v", err)
		}
		got, err := env.groups.Get(ctx, "carol", group.ID)
		if err != nil {
			t.Fatalf("Get as new member failed: %v", err)
		}
		if !got.HasMember("carol") {
			t.Error("Expected carol to be a member")
		}
	})

	t.Run("member leaves on their own", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		if err := env.groups.RemoveMember(ctx, "bob", group.ID, "bob"); err != nil {
			t.Fatalf("RemoveMember failed: %v", err)
		}
	})

	t.Run("only creator removes others", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob", "carol")
		err := env.groups.RemoveMember(ctx, "bob", group.ID, "carol")
		if !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
		if err := env.groups.RemoveMember(ctx, "alice", group.ID, "carol"); err != nil {
			t.Fatalf("RemoveMember by creator failed: %v", err)
		}
	})

	t.Run("removal blocked while member has unpaid shares", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")

		err := env.groups.RemoveMember(ctx, "alice", group.ID, "bob")
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}

		// The payer is tied to bob's unpaid share too.
		err = env.groups.RemoveMember(ctx, "alice", group.ID, "alice")
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("Expected ErrConflict for payer, got %v", err)
		}
	})
}

func TestGroupDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("creator only", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		err := env.groups.Delete(ctx, "bob", group.ID)
		if !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("blocked while any share is unpaid", func(t *testing.T) {
		group := env.newTestGroup(t, "alice", "bob")
		expense := env.newEqualExpense(t, group.ID, "alice", 2000, "alice", "bob")

		err := env.groups.Delete(ctx, "alice", group.ID)
		if !errors.Is(err, models.ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}

		// Settle bob's share, then deletion goes through.
		bobShare := expense.ShareOf("bob")
		if _, err := env.settlements.MarkPaid(ctx, "bob", []string{bobShare.ID}); err != nil {
			t.Fatalf("MarkPaid failed: %v", err)
		}
		if err := env.groups.Delete(ctx, "alice", group.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := env.groups.Get(ctx, "alice", group.ID); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
	})
}
