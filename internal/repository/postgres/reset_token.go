package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/identity-service/internal/domain"
	"github.com/utafrali/identity-service/pkg/database"
	apperrors "github.com/utafrali/identity-service/pkg/errors"
)

// ResetTokenRepository implements repository.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool database.DBTX
}

// NewResetTokenRepository creates a new PostgreSQL-backed token repository.
func NewResetTokenRepository(pool database.DBTX) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

// Replace deletes any live token for (email, token_type) and inserts the
// given one in a single transaction, so at most one token per pair is ever
// live. Concurrent issuers can still collide on the unique constraint
// between the delete and the insert; that surfaces as ErrDuplicateEmail
// and the caller retries once.
func (r *ResetTokenRepository) Replace(ctx context.Context, token *domain.ResetToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deleteQuery := `DELETE FROM reset_tokens WHERE email = $1 AND token_type = $2`
	if _, err = tx.Exec(ctx, deleteQuery, token.Email, token.TokenType); err != nil {
		return fmt.Errorf("delete superseded token: %w", err)
	}

	insertQuery := `
		INSERT INTO reset_tokens (token, email, token_type)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	if err = tx.QueryRow(ctx, insertQuery, token.Token, token.Email, token.TokenType).Scan(&token.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.DuplicateEmail(token.Email)
		}
		return fmt.Errorf("insert token: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Consume removes the token row and returns it. DELETE ... RETURNING makes
// removal and retrieval one atomic statement, so a token can be consumed
// exactly once even under concurrent calls.
func (r *ResetTokenRepository) Consume(ctx context.Context, token, tokenType string) (*domain.ResetToken, error) {
	query := `
		DELETE FROM reset_tokens
		WHERE token = $1 AND token_type = $2
		RETURNING token, email, token_type, created_at`

	var t domain.ResetToken
	err := r.pool.QueryRow(ctx, query, token, tokenType).Scan(
		&t.Token,
		&t.Email,
		&t.TokenType,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("consume token: %w", err)
	}

	return &t, nil
}
