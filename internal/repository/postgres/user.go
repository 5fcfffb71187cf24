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

const userColumns = `id, email, email_verified, phone, phone_verified, is_active,
		first_name, last_name, middle_name, gender, birthdate, avatar,
		last_login_at, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	pool database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool database.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateAccount inserts the user, identity and role rows in one transaction.
func (r *UserRepository) CreateAccount(ctx context.Context, u *domain.User, ident *domain.Identity, role *domain.UserRole) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userQuery := `
		INSERT INTO users (email, email_verified, phone, first_name, last_name, middle_name, gender, birthdate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, is_active, last_login_at, created_at, updated_at`

	err = tx.QueryRow(ctx, userQuery,
		u.Email,
		u.EmailVerified,
		u.Phone,
		u.FirstName,
		u.LastName,
		u.MiddleName,
		u.Gender,
		u.Birthdate,
	).Scan(&u.ID, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.DuplicateEmail(u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	ident.UserID = u.ID
	identityQuery := `
		INSERT INTO identities (user_id, email, password, provider)
		VALUES ($1, $2, $3, $4)`

	if _, err = tx.Exec(ctx, identityQuery, ident.UserID, ident.Email, ident.PasswordHash, ident.Provider); err != nil {
		if isUniqueViolation(err) {
			return apperrors.DuplicateEmail(ident.Email)
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	role.UserID = u.ID
	roleQuery := `
		INSERT INTO user_roles (id, user_id, name, data)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	if err = tx.QueryRow(ctx, roleQuery, role.ID, role.UserID, role.Name, role.Data).Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by their (normalized) email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, query, email)
}

// UpdateProfile modifies the mutable profile fields of an existing user.
// updated_at is refreshed by the table trigger.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	query := `
		UPDATE users
		SET phone = $1, first_name = $2, last_name = $3, middle_name = $4,
		    gender = $5, birthdate = $6, avatar = $7
		WHERE id = $8`

	ct, err := r.pool.Exec(ctx, query,
		u.Phone,
		u.FirstName,
		u.LastName,
		u.MiddleName,
		u.Gender,
		u.Birthdate,
		u.Avatar,
		u.ID,
	)
	if err != nil {
		if isNotNullViolation(err) {
			return apperrors.InvalidInput("required profile field is missing")
		}
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", strconv.FormatInt(u.ID, 10))
	}

	return nil
}

// SetEmailVerified marks the user's email address as verified.
func (r *UserRepository) SetEmailVerified(ctx context.Context, id int64) error {
	return r.execOnUser(ctx, `UPDATE users SET email_verified = TRUE WHERE id = $1`, id, "verify email")
}

// SetActive toggles the soft-delete flag on the user.
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users SET is_active = $1 WHERE id = $2`

	ct, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// TouchLastLogin records a successful authentication.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64) error {
	return r.execOnUser(ctx, `UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1`, id, "touch last login")
}

// Delete physically removes a user from the database. Dependent identity
// and role rows go with it via ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.execOnUser(ctx, `DELETE FROM users WHERE id = $1`, id, "delete user")
}

func (r *UserRepository) execOnUser(ctx context.Context, query string, id int64, op string) error {
	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.EmailVerified,
		&u.Phone,
		&u.PhoneVerified,
		&u.IsActive,
		&u.FirstName,
		&u.LastName,
		&u.MiddleName,
		&u.Gender,
		&u.Birthdate,
		&u.Avatar,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}
