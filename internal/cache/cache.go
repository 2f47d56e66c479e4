// Package cache provides a read-through cache for group balance reports.
// Balances are derived data, so every expense, share, or settlement write
// invalidates the owning group's entry rather than trying to patch it.
package cache

import (
	"context"
	"errors"

	"github.com/divvyhq/divvy/internal/models"
)

// ErrMiss is returned when the requested entry is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores computed group balances keyed by group ID.
type Cache interface {
	// GetGroupBalances returns the cached report or ErrMiss.
	GetGroupBalances(ctx context.Context, groupID string) (*models.GroupBalances, error)

	// SetGroupBalances stores the report under the cache's TTL.
	SetGroupBalances(ctx context.Context, groupID string, balances *models.GroupBalances) error

	// InvalidateGroup drops the group's entry. Missing entries are not an
	// error.
	InvalidateGroup(ctx context.Context, groupID string) error
}
