package ports

import (
	"context"
	"time"

	"wallet-transfer-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository defines persistence operations for account holders.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	UpdateTransferPinHash(ctx context.Context, id uuid.UUID, pinHash string) error
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside the transfer's atomic unit and take a
// pessimistic row lock where noted.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
}

// LedgerRepository is the append-only record of balance-affecting events.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
	// SumByWallet returns the signed sum of the wallet's entries
	// (TRANSFER_OUT negative, FUND and TRANSFER_IN positive).
	SumByWallet(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	ListWalletIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ChallengeRepository persists OTP challenges. State transitions are guarded
// compare-and-set updates: each mutation applies only while the row is still
// PENDING, so exactly one concurrent verifier can win.
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *domain.Challenge) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Challenge, error)
	// GetByIDForUpdate locks the challenge row for the duration of tx.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Challenge, error)
	// RecordMismatch increments attempts and transitions to LOCKED when the
	// configured maximum is reached. Returns the updated attempts and state.
	RecordMismatch(ctx context.Context, tx pgx.Tx, id uuid.UUID, maxAttempts int) (int, domain.ChallengeState, error)
	// MarkExpired transitions PENDING -> EXPIRED. No-op if already terminal.
	MarkExpired(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	// Consume transitions PENDING -> VERIFIED. Returns false if the challenge
	// was not PENDING (the compare-and-set lost).
	Consume(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// AuditRepository appends audit rows.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// AttemptLimiter bounds repeated attempts against a key within a rolling
// window (transfer-PIN checks, OTP re-delivery).
type AttemptLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
	// Reset clears the counter for key so earlier successful attempts do not
	// count toward the limit.
	Reset(ctx context.Context, key string, window time.Duration) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
