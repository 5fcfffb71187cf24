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

// IdentityRepository implements repository.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool database.DBTX
}

// NewIdentityRepository creates a new PostgreSQL-backed identity repository.
func NewIdentityRepository(pool database.DBTX) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// GetByEmail retrieves an identity by its email address.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	query := `SELECT user_id, email, password, provider FROM identities WHERE email = $1`
	return r.scanIdentity(ctx, query, email)
}

// GetByUserID retrieves the identity belonging to the given user.
func (r *IdentityRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Identity, error) {
	query := `SELECT user_id, email, password, provider FROM identities WHERE user_id = $1`
	return r.scanIdentity(ctx, query, userID)
}

// Upsert inserts or replaces the user's sole identity. user_id is the
// primary key, so the conflict target replaces in place.
func (r *IdentityRepository) Upsert(ctx context.Context, ident *domain.Identity) error {
	query := `
		INSERT INTO identities (user_id, email, password, provider)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email, password = EXCLUDED.password, provider = EXCLUDED.provider`

	_, err := r.pool.Exec(ctx, query, ident.UserID, ident.Email, ident.PasswordHash, ident.Provider)
	if err != nil {
		if isUniqueViolation(err) {
			// user_id conflicts are absorbed above, so this is the
			// email uniqueness constraint.
			return apperrors.DuplicateEmail(ident.Email)
		}
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("user", strconv.FormatInt(ident.UserID, 10))
		}
		return fmt.Errorf("upsert identity: %w", err)
	}

	return nil
}

// UpdatePassword replaces the stored password hash for the given user.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	query := `UPDATE identities SET password = $1 WHERE user_id = $2`

	ct, err := r.pool.Exec(ctx, query, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("identity", strconv.FormatInt(userID, 10))
	}
	return nil
}

func (r *IdentityRepository) scanIdentity(ctx context.Context, query string, arg any) (*domain.Identity, error) {
	var ident domain.Identity

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ident.UserID,
		&ident.Email,
		&ident.PasswordHash,
		&ident.Provider,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	return &ident, nil
}
