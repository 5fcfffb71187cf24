package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/identity-service/internal/authz"
	"github.com/utafrali/identity-service/internal/domain"
	"github.com/utafrali/identity-service/internal/repository"
	apperrors "github.com/utafrali/identity-service/pkg/errors"
	"github.com/utafrali/identity-service/pkg/validator"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// DefaultTokenTTL bounds the lifetime of issued reset tokens.
const DefaultTokenTTL = time.Hour

// Publisher publishes identity domain events. Satisfied by *event.Producer.
type Publisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User, identity *domain.Identity, role *domain.UserRole) error
	PublishUserEmailVerified(ctx context.Context, userID int64, email string) error
	PublishUserRoleChanged(ctx context.Context, role *domain.UserRole) error
	PublishUserDeleted(ctx context.Context, userID int64, email string) error
	PublishResetRequested(ctx context.Context, token *domain.ResetToken) error
}

// IdentityService implements the business logic for accounts, credentials,
// roles and one-time tokens.
type IdentityService struct {
	users      repository.UserRepository
	identities repository.IdentityRepository
	roles      repository.UserRoleRepository
	tokens     repository.ResetTokenRepository
	resolver   *authz.Resolver
	producer   Publisher
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// NewIdentityService creates the identity service. A tokenTTL of zero
// falls back to DefaultTokenTTL.
func NewIdentityService(
	users repository.UserRepository,
	identities repository.IdentityRepository,
	roles repository.UserRoleRepository,
	tokens repository.ResetTokenRepository,
	resolver *authz.Resolver,
	producer Publisher,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *IdentityService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &IdentityService{
		users:      users,
		identities: identities,
		roles:      roles,
		tokens:     tokens,
		resolver:   resolver,
		producer:   producer,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email     string     `validate:"required,email"`
	Password  string     `validate:"required,min=8,max=72"`
	FirstName *string    `validate:"omitempty,max=100"`
	LastName  *string    `validate:"omitempty,max=100"`
	Phone     *string    `validate:"omitempty,e164"`
	Gender    *string    `validate:"omitempty,oneof=male female undefined"`
	Birthdate *time.Time `validate:"omitempty"`
}

// UpdateProfileInput holds the parameters for updating a user's profile.
// Nil fields are left unchanged.
type UpdateProfileInput struct {
	Phone      *string    `validate:"omitempty,e164"`
	FirstName  *string    `validate:"omitempty,max=100"`
	LastName   *string    `validate:"omitempty,max=100"`
	MiddleName *string    `validate:"omitempty,max=100"`
	Gender     *string    `validate:"omitempty,oneof=male female undefined"`
	Birthdate  *time.Time `validate:"omitempty"`
	Avatar     *string    `validate:"omitempty,max=512"`
}

// --- Account operations ---

// Register creates a new user account with its email identity and the
// default role in one atomic step.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := validator.Validate(input); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	passwordHash := string(hashed)

	user := &domain.User{
		Email:     domain.NormalizeEmail(input.Email),
		Phone:     input.Phone,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Gender:    input.Gender,
		Birthdate: input.Birthdate,
	}
	ident := &domain.Identity{
		Email:        user.Email,
		PasswordHash: &passwordHash,
		Provider:     domain.DefaultProvider,
	}
	role := &domain.UserRole{
		ID:   uuid.New(),
		Name: domain.DefaultRole,
	}

	if err := s.users.CreateAccount(ctx, user, ident, role); err != nil {
		return nil, err
	}

	// Event delivery is best effort; registration already committed.
	if err := s.producer.PublishUserRegistered(ctx, user, ident, role); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// LinkIdentity replaces the user's sole identity with the given credential.
// An empty password leaves the account external-provider only.
func (s *IdentityService) LinkIdentity(ctx context.Context, userID int64, email, provider, password string) (*domain.Identity, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if provider == "" {
		provider = domain.DefaultProvider
	}

	ident := &domain.Identity{
		UserID:   userID,
		Email:    email,
		Provider: provider,
	}
	if password != "" {
		if len(password) < 8 {
			return nil, apperrors.InvalidInput("password must be at least 8 characters")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		h := string(hashed)
		ident.PasswordHash = &h
	}

	if err := s.identities.Upsert(ctx, ident); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "identity linked",
		slog.Int64("user_id", userID),
		slog.String("provider", provider),
	)

	return ident, nil
}

// Authenticate verifies an email/password pair and records the login.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)

	ident, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if ident.PasswordHash == nil {
		// External-provider accounts have no password to compare.
		return nil, apperrors.InvalidCredential()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*ident.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.InvalidCredential()
	}

	user, err := s.users.GetByID(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.InvalidCredential()
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to record login",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastLoginAt = time.Now().UTC()
	}

	s.logger.InfoContext(ctx, "user authenticated",
		slog.Int64("user_id", user.ID),
	)

	return user, nil
}

// --- Token operations ---

// IssueResetToken creates a fresh one-time token for (email, tokenType),
// superseding any live one. The token value is a random uuid-v4 string.
func (s *IdentityService) IssueResetToken(ctx context.Context, email, tokenType string) (*domain.ResetToken, error) {
	email = domain.NormalizeEmail(email)
	if tokenType == "" {
		return nil, apperrors.InvalidInput("token type is required")
	}

	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, err
	}

	token := &domain.ResetToken{
		Token:     uuid.New().String(),
		Email:     email,
		TokenType: tokenType,
	}

	err := s.tokens.Replace(ctx, token)
	if errors.Is(err, apperrors.ErrDuplicateEmail) {
		// Lost a race with a concurrent issuer; the other token now
		// occupies the slot, supersede it once more.
		token.Token = uuid.New().String()
		err = s.tokens.Replace(ctx, token)
	}
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishResetRequested(ctx, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish reset_requested event",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "reset token issued",
		slog.String("email", email),
		slog.String("token_type", tokenType),
	)

	return token, nil
}

// ConsumeResetToken redeems a token exactly once and returns the owning
// email. A token past its TTL is gone either way; the caller gets Expired
// instead of the email.
func (s *IdentityService) ConsumeResetToken(ctx context.Context, token, tokenType string) (string, error) {
	row, err := s.tokens.Consume(ctx, token, tokenType)
	if err != nil {
		return "", err
	}

	if row.Expired(s.tokenTTL, time.Now().UTC()) {
		s.logger.InfoContext(ctx, "expired token consumed",
			slog.String("email", row.Email),
			slog.String("token_type", tokenType),
		)
		return "", apperrors.Expired("reset token")
	}

	return row.Email, nil
}

// VerifyEmail redeems an email verification token and marks the owning
// account verified.
func (s *IdentityService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	email, err := s.ConsumeResetToken(ctx, token, domain.TokenTypeEmailVerify)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	user.EmailVerified = true

	if err := s.producer.PublishUserEmailVerified(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish email_verified event",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.Int64("user_id", user.ID),
	)

	return user, nil
}

// ResetPassword redeems a password token and stores the new credential.
func (s *IdentityService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.InvalidInput("password must be at least 8 characters")
	}

	email, err := s.ConsumeResetToken(ctx, token, domain.TokenTypePasswordReset)
	if err != nil {
		return err
	}

	ident, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.identities.UpdatePassword(ctx, ident.UserID, string(hashed)); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset",
		slog.Int64("user_id", ident.UserID),
	)

	return nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.InvalidInput("password must be at least 8 characters")
	}

	ident, err := s.identities.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if ident.PasswordHash == nil {
		return apperrors.InvalidCredential()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*ident.PasswordHash), []byte(oldPassword)); err != nil {
		return apperrors.InvalidCredential()
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.identities.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.Int64("user_id", userID),
	)

	return nil
}

// --- Role operations ---

// AssignRole sets the user's role, overwriting any previous assignment,
// and invalidates the cached resolution.
func (s *IdentityService) AssignRole(ctx context.Context, userID int64, name string, data json.RawMessage) (*domain.UserRole, error) {
	if name == "" {
		return nil, apperrors.InvalidInput("role name is required")
	}

	role := &domain.UserRole{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Data:   data,
	}

	stored, err := s.roles.Upsert(ctx, role)
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate(ctx, userID)

	if err := s.producer.PublishUserRoleChanged(ctx, stored); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish role_changed event",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "role assigned",
		slog.Int64("user_id", userID),
		slog.String("role", stored.Name),
	)

	return stored, nil
}

// --- Profile and lifecycle operations ---

// GetUser retrieves a user by ID.
func (s *IdentityService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// FindByEmail retrieves a user by email, normalizing first so mixed-case
// input finds the lower-cased stored row.
func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
}

// UpdateProfile applies the non-nil fields of input to the user's profile.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID int64, input UpdateProfileInput) (*domain.User, error) {
	if err := validator.Validate(input); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Phone != nil {
		user.Phone = input.Phone
	}
	if input.FirstName != nil {
		user.FirstName = input.FirstName
	}
	if input.LastName != nil {
		user.LastName = input.LastName
	}
	if input.MiddleName != nil {
		user.MiddleName = input.MiddleName
	}
	if input.Gender != nil {
		user.Gender = input.Gender
	}
	if input.Birthdate != nil {
		user.Birthdate = input.Birthdate
	}
	if input.Avatar != nil {
		user.Avatar = input.Avatar
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.Int64("user_id", userID),
	)

	return user, nil
}

// Deactivate soft-disables the account; data and identity stay in place.
func (s *IdentityService) Deactivate(ctx context.Context, userID int64) error {
	if err := s.users.SetActive(ctx, userID, false); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user deactivated",
		slog.Int64("user_id", userID),
	)

	return nil
}

// Delete removes the account permanently. Identity and role rows are
// dropped by the storage cascade; the cached role is invalidated here.
func (s *IdentityService) Delete(ctx context.Context, userID int64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	s.resolver.Invalidate(ctx, userID)

	if err := s.producer.PublishUserDeleted(ctx, userID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user deleted",
		slog.Int64("user_id", userID),
	)

	return nil
}
