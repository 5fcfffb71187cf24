package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/identity-service/internal/authz"
	"github.com/utafrali/identity-service/internal/domain"
	apperrors "github.com/utafrali/identity-service/pkg/errors"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) CreateAccount(ctx context.Context, user *domain.User, identity *domain.Identity, role *domain.UserRole) error {
	args := m.Called(ctx, user, identity, role)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) SetEmailVerified(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *mockUserRepository) TouchLastLogin(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Identity Repository ---

type mockIdentityRepository struct {
	mock.Mock
}

func (m *mockIdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *mockIdentityRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Identity, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *mockIdentityRepository) Upsert(ctx context.Context, identity *domain.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *mockIdentityRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

// --- Mock Role Repository ---

type mockRoleRepository struct {
	mock.Mock
}

func (m *mockRoleRepository) Upsert(ctx context.Context, role *domain.UserRole) (*domain.UserRole, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserRole), args.Error(1)
}

func (m *mockRoleRepository) GetByUserID(ctx context.Context, userID int64) (*domain.UserRole, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserRole), args.Error(1)
}

// --- Mock Token Repository ---

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Replace(ctx context.Context, token *domain.ResetToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepository) Consume(ctx context.Context, token, tokenType string) (*domain.ResetToken, error) {
	args := m.Called(ctx, token, tokenType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResetToken), args.Error(1)
}

// --- Mock Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUserRegistered(ctx context.Context, user *domain.User, identity *domain.Identity, role *domain.UserRole) error {
	args := m.Called(ctx, user, identity, role)
	return args.Error(0)
}

func (m *mockPublisher) PublishUserEmailVerified(ctx context.Context, userID int64, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

func (m *mockPublisher) PublishUserRoleChanged(ctx context.Context, role *domain.UserRole) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *mockPublisher) PublishUserDeleted(ctx context.Context, userID int64, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

func (m *mockPublisher) PublishResetRequested(ctx context.Context, token *domain.ResetToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// --- Fixture ---

type fixture struct {
	svc        *IdentityService
	users      *mockUserRepository
	identities *mockIdentityRepository
	roles      *mockRoleRepository
	tokens     *mockTokenRepository
	producer   *mockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:      new(mockUserRepository),
		identities: new(mockIdentityRepository),
		roles:      new(mockRoleRepository),
		tokens:     new(mockTokenRepository),
		producer:   new(mockPublisher),
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cache, err := authz.NewRistrettoCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	resolver := authz.NewResolver(f.roles, cache, logger)

	f.svc = NewIdentityService(f.users, f.identities, f.roles, f.tokens, resolver, f.producer, time.Hour, logger)
	return f
}

func hashOf(t *testing.T, password string) *string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(h)
	return &s
}

func ptr[T any](v T) *T { return &v }

// --- Register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("CreateAccount", ctx, mock.AnythingOfType("*domain.User"), mock.AnythingOfType("*domain.Identity"), mock.AnythingOfType("*domain.UserRole")).
		Run(func(args mock.Arguments) {
			u := args.Get(1).(*domain.User)
			u.ID = 7
			u.IsActive = true
		}).
		Return(nil)
	f.producer.On("PublishUserRegistered", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	user, err := f.svc.Register(ctx, RegisterInput{
		Email:     "Alice@Example.COM",
		Password:  "s3cretpass",
		FirstName: ptr("Alice"),
	})
	require.NoError(t, err)

	// The stored email is lower-case regardless of input casing.
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, int64(7), user.ID)

	call := f.users.Calls[0]
	ident := call.Arguments.Get(2).(*domain.Identity)
	role := call.Arguments.Get(3).(*domain.UserRole)

	assert.Equal(t, "alice@example.com", ident.Email)
	assert.Equal(t, domain.ProviderEmail, ident.Provider)
	require.NotNil(t, ident.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*ident.PasswordHash), []byte("s3cretpass")))
	assert.NotContains(t, *ident.PasswordHash, "s3cretpass")

	assert.Equal(t, domain.RoleUser, role.Name)
	assert.NotEqual(t, uuid.Nil, role.ID)

	f.users.AssertExpectations(t)
}

func TestRegister_InvalidInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"missing email", RegisterInput{Password: "s3cretpass"}},
		{"malformed email", RegisterInput{Email: "not-an-email", Password: "s3cretpass"}},
		{"short password", RegisterInput{Email: "a@example.com", Password: "short"}},
		{"bad gender", RegisterInput{Email: "a@example.com", Password: "s3cretpass", Gender: ptr("other")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.input)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	f.users.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("CreateAccount", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(apperrors.DuplicateEmail("alice@example.com"))

	_, err := f.svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "s3cretpass"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	f.producer.AssertNotCalled(t, "PublishUserRegistered", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- LinkIdentity ---

func TestLinkIdentity_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.identities.On("Upsert", ctx, mock.AnythingOfType("*domain.Identity")).Return(nil)

	ident, err := f.svc.LinkIdentity(ctx, 7, "New@Example.com", domain.ProviderGoogle, "")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", ident.Email)
	assert.Equal(t, domain.ProviderGoogle, ident.Provider)
	assert.Nil(t, ident.PasswordHash, "no password means provider-only login")

	f.identities.AssertExpectations(t)
}

func TestLinkIdentity_EmailBoundElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.identities.On("Upsert", ctx, mock.Anything).Return(apperrors.DuplicateEmail("taken@example.com"))

	_, err := f.svc.LinkIdentity(ctx, 7, "taken@example.com", "", "s3cretpass")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
}

// --- Authenticate ---

func TestAuthenticate_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash := hashOf(t, "s3cretpass")

	f.identities.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.Identity{UserID: 7, Email: "alice@example.com", PasswordHash: hash, Provider: domain.ProviderEmail}, nil)
	f.users.On("GetByID", ctx, int64(7)).
		Return(&domain.User{ID: 7, Email: "alice@example.com", IsActive: true}, nil)
	f.users.On("TouchLastLogin", ctx, int64(7)).Return(nil)

	// Mixed-case input matches the lower-case stored identity.
	user, err := f.svc.Authenticate(ctx, "ALICE@example.com", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.False(t, user.LastLoginAt.IsZero())

	f.users.AssertExpectations(t)
}

func TestAuthenticate_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.identities.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.Authenticate(ctx, "ghost@example.com", "whatever1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.identities.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.Identity{UserID: 7, Email: "alice@example.com", PasswordHash: hashOf(t, "s3cretpass")}, nil)

	_, err := f.svc.Authenticate(ctx, "alice@example.com", "wrongpass1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)

	f.users.AssertNotCalled(t, "TouchLastLogin", mock.Anything, mock.Anything)
}

func TestAuthenticate_NoPasswordOnIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.identities.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.Identity{UserID: 7, Email: "alice@example.com", Provider: domain.ProviderGoogle}, nil)

	_, err := f.svc.Authenticate(ctx, "alice@example.com", "anything1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)
}

func TestAuthenticate_DeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.identities.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.Identity{UserID: 7, Email: "alice@example.com", PasswordHash: hashOf(t, "s3cretpass")}, nil)
	f.users.On("GetByID", ctx, int64(7)).
		Return(&domain.User{ID: 7, Email: "alice@example.com", IsActive: false}, nil)

	_, err := f.svc.Authenticate(ctx, "alice@example.com", "s3cretpass")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)
}

// --- IssueResetToken ---

func TestIssueResetToken_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.User{ID: 7, Email: "alice@example.com", IsActive: true}, nil)
	f.tokens.On("Replace", ctx, mock.AnythingOfType("*domain.ResetToken")).Return(nil)
	f.producer.On("PublishResetRequested", ctx, mock.Anything).Return(nil)

	token, err := f.svc.IssueResetToken(ctx, "Alice@Example.com", domain.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", token.Email)
	assert.Equal(t, domain.TokenTypePasswordReset, token.TokenType)

	// Token value is a well-formed uuid-v4 string.
	parsed, err := uuid.Parse(token.Token)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())

	f.tokens.AssertExpectations(t)
}

func TestIssueResetToken_UnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.IssueResetToken(ctx, "ghost@example.com", domain.TokenTypePasswordReset)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	f.tokens.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything)
}

func TestIssueResetToken_RetriesOnceOnRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.User{ID: 7, Email: "alice@example.com", IsActive: true}, nil)

	var attempts []string
	f.tokens.On("Replace", ctx, mock.AnythingOfType("*domain.ResetToken")).
		Run(func(args mock.Arguments) {
			attempts = append(attempts, args.Get(1).(*domain.ResetToken).Token)
		}).
		Return(apperrors.DuplicateEmail("alice@example.com")).Once()
	f.tokens.On("Replace", ctx, mock.AnythingOfType("*domain.ResetToken")).
		Run(func(args mock.Arguments) {
			attempts = append(attempts, args.Get(1).(*domain.ResetToken).Token)
		}).
		Return(nil).Once()
	f.producer.On("PublishResetRequested", ctx, mock.Anything).Return(nil)

	token, err := f.svc.IssueResetToken(ctx, "alice@example.com", domain.TokenTypePasswordReset)
	require.NoError(t, err)

	require.Len(t, attempts, 2)
	assert.NotEqual(t, attempts[0], attempts[1], "the retry must mint a fresh value")
	assert.Equal(t, attempts[1], token.Token)

	f.tokens.AssertExpectations(t)
}

func TestIssueResetToken_SecondRaceGivesUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.User{ID: 7, Email: "alice@example.com", IsActive: true}, nil)
	f.tokens.On("Replace", ctx, mock.Anything).
		Return(apperrors.DuplicateEmail("alice@example.com")).Twice()

	_, err := f.svc.IssueResetToken(ctx, "alice@example.com", domain.TokenTypePasswordReset)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	f.tokens.AssertExpectations(t)
}

// --- ConsumeResetToken ---

func TestConsumeResetToken_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	value := uuid.New().String()

	f.tokens.On("Consume", ctx, value, domain.TokenTypePasswordReset).
		Return(&domain.ResetToken{
			Token:     value,
			Email:     "alice@example.com",
			TokenType: domain.TokenTypePasswordReset,
			CreatedAt: time.Now().UTC().Add(-10 * time.Minute),
		}, nil)

	email, err := f.svc.ConsumeResetToken(ctx, value, domain.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}

func TestConsumeResetToken_AlreadyConsumed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	value := uuid.New().String()

	f.tokens.On("Consume", ctx, value, domain.TokenTypePasswordReset).Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.ConsumeResetToken(ctx, value, domain.TokenTypePasswordReset)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConsumeResetToken_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	value := uuid.New().String()

	f.tokens.On("Consume", ctx, value, domain.TokenTypePasswordReset).
		Return(&domain.ResetToken{
			Token:     value,
			Email:     "alice@example.com",
			TokenType: domain.TokenTypePasswordReset,
			CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		}, nil)

	email, err := f.svc.ConsumeResetToken(ctx, value, domain.TokenTypePasswordReset)
	assert.Empty(t, email)
	assert.ErrorIs(t, err, apperrors.ErrExpired)
}

// --- VerifyEmail ---

func TestVerifyEmail_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	value := uuid.New().String()

	f.tokens.On("Consume", ctx, value, domain.TokenTypeEmailVerify).
		Return(&domain.ResetToken{
			Token:     value,
			Email:     "alice@example.com",
			TokenType: domain.TokenTypeEmailVerify,
			CreatedAt: time.Now().UTC(),
		}, nil)
	f.users.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.User{ID: 7, Email: "alice@example.com", IsActive: true}, nil)
	f.users.On("SetEmailVerified", ctx, int64(7)).Return(nil)
	f.producer.On("PublishUserEmailVerified", ctx, int64(7), "alice@example.com").Return(nil)

	user, err := f.svc.VerifyEmail(ctx, value)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	f.users.AssertExpectations(t)
}

// --- ResetPassword / ChangePassword ---

func TestResetPassword_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	value := uuid.New().String()

	f.tokens.On("Consume", ctx, value, domain.TokenTypePasswordReset).
		Return(&domain.ResetToken{
			Token:     value,
			Email:     "alice@example.com",
			TokenType: domain.TokenTypePasswordReset,
			CreatedAt: time.Now().UTC(),
		}, nil)
	f.identities.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.Identity{UserID: 7, Email: "alice@example.com", PasswordHash: hashOf(t, "oldpassword")}, nil)
	f.identities.On("UpdatePassword", ctx, int64(7), mock.AnythingOfType("string")).Return(nil)

	require.NoError(t, f.svc.ResetPassword(ctx, value, "newpassword1"))

	newHash := f.identities.Calls[1].Arguments.String(2)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("newpassword1")))

	f.identities.AssertExpectations(t)
}

func TestResetPassword_TooShort(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ResetPassword(context.Background(), uuid.New().String(), "short")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	f.tokens.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.identities.On("GetByUserID", ctx, int64(7)).
		Return(&domain.Identity{UserID: 7, Email: "alice@example.com", PasswordHash: hashOf(t, "rightpass")}, nil)

	err := f.svc.ChangePassword(ctx, 7, "wrongpass", "newpassword1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredential)

	f.identities.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.identities.On("GetByUserID", ctx, int64(7)).
		Return(&domain.Identity{UserID: 7, Email: "alice@example.com", PasswordHash: hashOf(t, "rightpass")}, nil)
	f.identities.On("UpdatePassword", ctx, int64(7), mock.AnythingOfType("string")).Return(nil)

	require.NoError(t, f.svc.ChangePassword(ctx, 7, "rightpass", "newpassword1"))
	f.identities.AssertExpectations(t)
}

// --- AssignRole ---

func TestAssignRole_OverwritesAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := json.RawMessage(`{"scope": "billing"}`)

	f.roles.On("Upsert", ctx, mock.AnythingOfType("*domain.UserRole")).
		Return(&domain.UserRole{ID: uuid.New(), UserID: 7, Name: domain.RoleAdmin, Data: data}, nil)
	f.producer.On("PublishUserRoleChanged", ctx, mock.Anything).Return(nil)

	role, err := f.svc.AssignRole(ctx, 7, domain.RoleAdmin, data)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, role.Name)

	f.roles.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func TestAssignRole_UnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.roles.On("Upsert", ctx, mock.Anything).Return(nil, apperrors.NotFound("user", "404"))

	_, err := f.svc.AssignRole(ctx, 404, domain.RoleAdmin, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	f.producer.AssertNotCalled(t, "PublishUserRoleChanged", mock.Anything, mock.Anything)
}

func TestAssignRole_EmptyName(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AssignRole(context.Background(), 7, "", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Profile and lifecycle ---

func TestUpdateProfile_MergesNonNilFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByID", ctx, int64(7)).
		Return(&domain.User{ID: 7, Email: "alice@example.com", FirstName: ptr("Alice"), LastName: ptr("Liddell"), IsActive: true}, nil)
	f.users.On("UpdateProfile", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	user, err := f.svc.UpdateProfile(ctx, 7, UpdateProfileInput{
		LastName: ptr("Kingsleigh"),
		Gender:   ptr(domain.GenderFemale),
	})
	require.NoError(t, err)

	assert.Equal(t, "Alice", *user.FirstName, "untouched field survives")
	assert.Equal(t, "Kingsleigh", *user.LastName)
	assert.Equal(t, domain.GenderFemale, *user.Gender)

	f.users.AssertExpectations(t)
}

func TestUpdateProfile_InvalidPhone(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateProfile(context.Background(), 7, UpdateProfileInput{Phone: ptr("not-a-phone")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDeactivate_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("SetActive", ctx, int64(7), false).Return(nil)

	require.NoError(t, f.svc.Deactivate(ctx, 7))
	f.users.AssertExpectations(t)
}

func TestDelete_PublishesAndSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByID", ctx, int64(7)).
		Return(&domain.User{ID: 7, Email: "alice@example.com", IsActive: true}, nil)
	f.users.On("Delete", ctx, int64(7)).Return(nil)
	f.producer.On("PublishUserDeleted", ctx, int64(7), "alice@example.com").Return(nil)

	require.NoError(t, f.svc.Delete(ctx, 7))

	f.users.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func TestDelete_UnknownUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByID", ctx, int64(404)).Return(nil, apperrors.ErrNotFound)

	err := f.svc.Delete(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	f.users.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestFindByEmail_Normalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "alice@example.com").
		Return(&domain.User{ID: 7, Email: "alice@example.com", IsActive: true}, nil)

	user, err := f.svc.FindByEmail(ctx, "  ALICE@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)

	f.users.AssertExpectations(t)
}
