package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/identity-service/internal/domain"
	"github.com/utafrali/identity-service/pkg/database"
	apperrors "github.com/utafrali/identity-service/pkg/errors"
)

// UserRoleRepository implements repository.UserRoleRepository using PostgreSQL.
type UserRoleRepository struct {
	pool database.DBTX
}

// NewUserRoleRepository creates a new PostgreSQL-backed role repository.
func NewUserRoleRepository(pool database.DBTX) *UserRoleRepository {
	return &UserRoleRepository{pool: pool}
}

// Upsert inserts or replaces the user's role row. UNIQUE(user_id) makes
// the conflict target the user, so assigning a role overwrites the
// previous one instead of accumulating rows.
func (r *UserRoleRepository) Upsert(ctx context.Context, role *domain.UserRole) (*domain.UserRole, error) {
	query := `
		INSERT INTO user_roles (id, user_id, name, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name, data = EXCLUDED.data
		RETURNING id, user_id, name, data, created_at, updated_at`

	stored := &domain.UserRole{}
	err := r.pool.QueryRow(ctx, query, role.ID, role.UserID, role.Name, role.Data).Scan(
		&stored.ID,
		&stored.UserID,
		&stored.Name,
		&stored.Data,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperrors.NotFound("user", strconv.FormatInt(role.UserID, 10))
		}
		return nil, fmt.Errorf("upsert role: %w", err)
	}

	return stored, nil
}

// GetByUserID retrieves the role row for the given user.
func (r *UserRoleRepository) GetByUserID(ctx context.Context, userID int64) (*domain.UserRole, error) {
	query := `
		SELECT id, user_id, name, data, created_at, updated_at
		FROM user_roles
		WHERE user_id = $1`

	var role domain.UserRole
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&role.ID,
		&role.UserID,
		&role.Name,
		&role.Data,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}

	return &role, nil
}
