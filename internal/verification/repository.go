package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/proflinker/api/internal/database"
	"github.com/proflinker/api/internal/models"
)

// PostgresRepository stores codes in the verification_codes table
type PostgresRepository struct {
	db *database.Postgres
}

func NewPostgresRepository(db *database.Postgres) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, code models.VerificationCode) error {
	query := `
		INSERT INTO verification_codes (id, email, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.Pool().Exec(ctx, query, code.ID, code.Email, code.CodeHash, code.ExpiresAt, code.CreatedAt); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, email, codeHash string, now time.Time, maxAttempts int) (bool, error) {
	query := `
		WITH target AS (
			SELECT id, code_hash = $2 AS matched
			FROM verification_codes
			WHERE email = $1 AND used_at IS NULL AND expires_at > $3
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE
		)
		UPDATE verification_codes v SET
			attempts = v.attempts + CASE WHEN t.matched THEN 0 ELSE 1 END,
			used_at = CASE WHEN t.matched OR v.attempts + 1 >= $4 THEN $3 ELSE NULL END
		FROM target t
		WHERE v.id = t.id
		RETURNING t.matched
	`
	var matched bool
	err := r.db.Pool().QueryRow(ctx, query, email, codeHash, now, maxAttempts).Scan(&matched)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume verification code: %w", err)
	}
	return matched, nil
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, email string) error {
	_, err := r.db.Pool().Exec(ctx,
		`UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE email = $1`, email)
	return err
}
