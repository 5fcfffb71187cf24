// Package authz resolves the authoritative role for a user, fronted by a
// read-through cache. Role assignment and user deletion invalidate the
// cached entry.
package authz

import (
	"context"
	"log/slog"

	"github.com/utafrali/identity-service/internal/repository"
)

// Cache stores resolved role names keyed by user ID. Implementations must
// be safe for concurrent use. Misses are cheap; the cache is an
// optimization, never the source of truth.
type Cache interface {
	Get(ctx context.Context, userID int64) (string, bool)
	Set(ctx context.Context, userID int64, role string)
	Remove(ctx context.Context, userID int64)
	Clear(ctx context.Context)
}

// Resolver answers "what is this user's role" from cache or storage.
type Resolver struct {
	roles  repository.UserRoleRepository
	cache  Cache
	logger *slog.Logger
}

// NewResolver creates a role resolver over the given repository and cache.
func NewResolver(roles repository.UserRoleRepository, cache Cache, logger *slog.Logger) *Resolver {
	return &Resolver{
		roles:  roles,
		cache:  cache,
		logger: logger,
	}
}

// Resolve returns the user's current role name. A user without a role row
// yields the repository's not-found error.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (string, error) {
	if role, ok := r.cache.Get(ctx, userID); ok {
		return role, nil
	}

	row, err := r.roles.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}

	r.cache.Set(ctx, userID, row.Name)

	r.logger.DebugContext(ctx, "role resolved from storage",
		slog.Int64("user_id", userID),
		slog.String("role", row.Name),
	)

	return row.Name, nil
}

// Invalidate drops the cached role for the given user.
func (r *Resolver) Invalidate(ctx context.Context, userID int64) {
	r.cache.Remove(ctx, userID)
}

// Reset drops every cached role.
func (r *Resolver) Reset(ctx context.Context) {
	r.cache.Clear(ctx)
}
