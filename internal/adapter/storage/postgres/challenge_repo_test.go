package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-transfer-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChallenge() *domain.Challenge {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Challenge{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Code:    "428117",
		State:   domain.ChallengeStatePending,
		Intent: domain.TransferIntent{
			RecipientID: uuid.New(),
			Amount:      decimal.RequireFromString("40.00"),
		},
		CreatedAt: now,
		ExpiresAt: now.Add(5 * time.Minute),
	}
}

func challengeColumns() []string {
	return []string{"id", "owner_id", "code", "state", "attempts", "recipient_id", "amount", "created_at", "expires_at"}
}

func challengeRow(c *domain.Challenge) *pgxmock.Rows {
	return pgxmock.NewRows(challengeColumns()).AddRow(
		c.ID, c.OwnerID, c.Code, string(c.State), c.Attempts,
		c.Intent.RecipientID, c.Intent.Amount.String(), c.CreatedAt, c.ExpiresAt,
	)
}

func TestChallengeRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChallengeRepo(mock)
	c := newTestChallenge()

	mock.ExpectExec("INSERT INTO otp_challenges").
		WithArgs(c.ID, c.OwnerID, c.Code, "PENDING", 0,
			c.Intent.RecipientID, c.Intent.Amount.String(), c.CreatedAt, c.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), c)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChallengeRepo(mock)
	c := newTestChallenge()

	mock.ExpectQuery("SELECT .+ FROM otp_challenges WHERE id").
		WithArgs(c.ID).
		WillReturnRows(challengeRow(c))

	result, err := repo.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, c.ID, result.ID)
	assert.Equal(t, domain.ChallengeStatePending, result.State)
	assert.True(t, result.Intent.Amount.Equal(c.Intent.Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChallengeRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM otp_challenges WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(challengeColumns()))

	result, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepo_RecordMismatch_Increments(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChallengeRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE otp_challenges").
		WithArgs(id, 3).
		WillReturnRows(pgxmock.NewRows([]string{"attempts", "state"}).AddRow(1, "PENDING"))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	attempts, state, err := repo.RecordMismatch(context.Background(), tx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, domain.ChallengeStatePending, state)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepo_RecordMismatch_LocksOnThird(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChallengeRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE otp_challenges").
		WithArgs(id, 3).
		WillReturnRows(pgxmock.NewRows([]string{"attempts", "state"}).AddRow(3, "LOCKED"))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	attempts, state, err := repo.RecordMismatch(context.Background(), tx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, domain.ChallengeStateLocked, state)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepo_Consume_Wins(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChallengeRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE otp_challenges SET state = 'VERIFIED'").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	won, err := repo.Consume(context.Background(), tx, id)
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepo_Consume_LosesWhenNotPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChallengeRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE otp_challenges SET state = 'VERIFIED'").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	won, err := repo.Consume(context.Background(), tx, id)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChallengeRepo_MarkExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChallengeRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE otp_challenges SET state = 'EXPIRED'").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkExpired(context.Background(), tx, id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
