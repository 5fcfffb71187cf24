package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/identity-service/internal/domain"
	"github.com/utafrali/identity-service/pkg/database"
	apperrors "github.com/utafrali/identity-service/pkg/errors"
)

func newTokenRepo(t *testing.T) (*ResetTokenRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewResetTokenRepository(mock), mock
}

func TestResetTokenRepository_Replace_Success(t *testing.T) {
	repo, mock := newTokenRepo(t)
	now := time.Now().UTC()
	token := &domain.ResetToken{
		Token:     "3f0e8a1c-9d2b-4f6e-8a7c-1b5d9e3f0a2c",
		Email:     "alice@example.com",
		TokenType: domain.TokenTypePasswordReset,
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reset_tokens").
		WithArgs(token.Email, token.TokenType).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery("INSERT INTO reset_tokens").
		WithArgs(token.Token, token.Email, token.TokenType).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectCommit()

	err := repo.Replace(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, now, token.CreatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetTokenRepository_Replace_NothingToSupersede(t *testing.T) {
	repo, mock := newTokenRepo(t)
	now := time.Now().UTC()
	token := &domain.ResetToken{
		Token:     "7d4f2e1a-0b3c-4d5e-9f8a-6c7b8d9e0f1a",
		Email:     "bob@example.com",
		TokenType: domain.TokenTypeEmailVerify,
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reset_tokens").
		WithArgs(token.Email, token.TokenType).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("INSERT INTO reset_tokens").
		WithArgs(token.Token, token.Email, token.TokenType).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectCommit()

	assert.NoError(t, repo.Replace(context.Background(), token))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetTokenRepository_Replace_UniqueRace(t *testing.T) {
	repo, mock := newTokenRepo(t)
	token := &domain.ResetToken{
		Token:     "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d",
		Email:     "alice@example.com",
		TokenType: domain.TokenTypePasswordReset,
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reset_tokens").
		WithArgs(token.Email, token.TokenType).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("INSERT INTO reset_tokens").
		WithArgs(token.Token, token.Email, token.TokenType).
		WillReturnError(errUnique)
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), token)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetTokenRepository_Consume_Success(t *testing.T) {
	repo, mock := newTokenRepo(t)
	created := time.Now().UTC().Add(-10 * time.Minute)

	mock.ExpectQuery("DELETE FROM reset_tokens").
		WithArgs("3f0e8a1c-9d2b-4f6e-8a7c-1b5d9e3f0a2c", domain.TokenTypePasswordReset).
		WillReturnRows(pgxmock.NewRows([]string{"token", "email", "token_type", "created_at"}).
			AddRow("3f0e8a1c-9d2b-4f6e-8a7c-1b5d9e3f0a2c", "alice@example.com", domain.TokenTypePasswordReset, created))

	token, err := repo.Consume(context.Background(), "3f0e8a1c-9d2b-4f6e-8a7c-1b5d9e3f0a2c", domain.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", token.Email)
	assert.Equal(t, created, token.CreatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetTokenRepository_Consume_SecondCallNotFound(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectQuery("DELETE FROM reset_tokens").
		WithArgs("3f0e8a1c-9d2b-4f6e-8a7c-1b5d9e3f0a2c", domain.TokenTypePasswordReset).
		WillReturnError(pgx.ErrNoRows)

	token, err := repo.Consume(context.Background(), "3f0e8a1c-9d2b-4f6e-8a7c-1b5d9e3f0a2c", domain.TokenTypePasswordReset)
	assert.Nil(t, token)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetTokenRepository_Consume_TypeMismatchNotFound(t *testing.T) {
	repo, mock := newTokenRepo(t)

	// A password token consumed as email_verify must not match.
	mock.ExpectQuery("DELETE FROM reset_tokens").
		WithArgs("3f0e8a1c-9d2b-4f6e-8a7c-1b5d9e3f0a2c", domain.TokenTypeEmailVerify).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Consume(context.Background(), "3f0e8a1c-9d2b-4f6e-8a7c-1b5d9e3f0a2c", domain.TokenTypeEmailVerify)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
