package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-transfer-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ChallengeRepo implements ports.ChallengeRepository. Every state mutation is
// guarded by `state = 'PENDING'`, so a challenge that has reached a terminal
// state can never be mutated again regardless of interleaving.
type ChallengeRepo struct {
	pool Pool
}

// NewChallengeRepo creates a new ChallengeRepo.
func NewChallengeRepo(pool Pool) *ChallengeRepo {
	return &ChallengeRepo{pool: pool}
}

// Create persists a freshly issued challenge.
func (r *ChallengeRepo) Create(ctx context.Context, c *domain.Challenge) error {
	query := `INSERT INTO otp_challenges (id, owner_id, code, state, attempts, recipient_id, amount, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.OwnerID, c.Code, string(c.State), c.Attempts,
		c.Intent.RecipientID, c.Intent.Amount.String(), c.CreatedAt, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

// GetByID fetches a challenge without locking.
func (r *ChallengeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Challenge, error) {
	query := `SELECT id, owner_id, code, state, attempts, recipient_id, amount::text, created_at, expires_at
		FROM otp_challenges WHERE id = $1`

	return scanChallenge(r.pool.QueryRow(ctx, query, id), "get challenge by id")
}

// GetByIDForUpdate locks the challenge row for the duration of tx, serializing
// concurrent verification attempts against the same challenge.
func (r *ChallengeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Challenge, error) {
	query := `SELECT id, owner_id, code, state, attempts, recipient_id, amount::text, created_at, expires_at
		FROM otp_challenges WHERE id = $1 FOR UPDATE`

	return scanChallenge(tx.QueryRow(ctx, query, id), "get challenge for update")
}

// RecordMismatch increments the attempt counter and locks the challenge when
// the counter reaches maxAttempts. Only a PENDING row is touched.
func (r *ChallengeRepo) RecordMismatch(ctx context.Context, tx pgx.Tx, id uuid.UUID, maxAttempts int) (int, domain.ChallengeState, error) {
	query := `UPDATE otp_challenges
		SET attempts = attempts + 1,
		    state = CASE WHEN attempts + 1 >= $2 THEN 'LOCKED' ELSE state END
		WHERE id = $1 AND state = 'PENDING'
		RETURNING attempts, state`

	var attempts int
	var state string
	err := tx.QueryRow(ctx, query, id, maxAttempts).Scan(&attempts, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", fmt.Errorf("challenge not pending: %s", id)
		}
		return 0, "", fmt.Errorf("record mismatch: %w", err)
	}
	return attempts, domain.ChallengeState(state), nil
}

// MarkExpired transitions PENDING -> EXPIRED. Already-terminal rows are left
// untouched.
func (r *ChallengeRepo) MarkExpired(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE otp_challenges SET state = 'EXPIRED' WHERE id = $1 AND state = 'PENDING'`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark challenge expired: %w", err)
	}
	return nil
}

// Consume performs the PENDING -> VERIFIED compare-and-set. Exactly one caller
// can win; the return value reports whether this one did.
func (r *ChallengeRepo) Consume(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	query := `UPDATE otp_challenges SET state = 'VERIFIED' WHERE id = $1 AND state = 'PENDING'`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanChallenge(row pgx.Row, op string) (*domain.Challenge, error) {
	c := &domain.Challenge{}
	var state, amount string
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Code, &state, &c.Attempts,
		&c.Intent.RecipientID, &amount, &c.CreatedAt, &c.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.State = domain.ChallengeState(state)
	c.Intent.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%s: parse amount: %w", op, err)
	}
	return c, nil
}
