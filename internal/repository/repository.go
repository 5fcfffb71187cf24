package repository

import (
	"context"

	"github.com/utafrali/identity-service/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// CreateAccount inserts the user, their identity and their initial role
	// atomically. The generated user ID is written back into user and
	// propagated to the identity and role rows.
	CreateAccount(ctx context.Context, user *domain.User, identity *domain.Identity, role *domain.UserRole) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by their email address. The caller is
	// expected to pass a normalized (lower-case) email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateProfile modifies the mutable profile fields of an existing user.
	UpdateProfile(ctx context.Context, user *domain.User) error

	// SetEmailVerified marks the user's email address as verified.
	SetEmailVerified(ctx context.Context, id int64) error

	// SetActive toggles the soft-delete flag on the user.
	SetActive(ctx context.Context, id int64, active bool) error

	// TouchLastLogin records a successful authentication.
	TouchLastLogin(ctx context.Context, id int64) error

	// Delete physically removes a user. Identities and roles are removed
	// by ON DELETE CASCADE.
	Delete(ctx context.Context, id int64) error
}

// IdentityRepository defines the interface for credential persistence.
type IdentityRepository interface {
	// GetByEmail retrieves an identity by its email address.
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)

	// GetByUserID retrieves the identity belonging to the given user.
	GetByUserID(ctx context.Context, userID int64) (*domain.Identity, error)

	// Upsert inserts or replaces the user's sole identity.
	Upsert(ctx context.Context, identity *domain.Identity) error

	// UpdatePassword replaces the stored password hash for the given user.
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// UserRoleRepository defines the interface for role persistence.
type UserRoleRepository interface {
	// Upsert inserts or replaces the user's role row, keyed on user_id.
	// The stored row is returned with generated fields populated.
	Upsert(ctx context.Context, role *domain.UserRole) (*domain.UserRole, error)

	// GetByUserID retrieves the role row for the given user.
	GetByUserID(ctx context.Context, userID int64) (*domain.UserRole, error)
}

// ResetTokenRepository defines the interface for one-time token persistence.
type ResetTokenRepository interface {
	// Replace atomically deletes any live token for (email, token_type)
	// and inserts the given one, superseding the old value.
	Replace(ctx context.Context, token *domain.ResetToken) error

	// Consume removes the token row and returns it. A token can be
	// consumed exactly once; a second call reports not found.
	Consume(ctx context.Context, token, tokenType string) (*domain.ResetToken, error)
}
