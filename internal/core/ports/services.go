package ports

import (
	"context"

	"wallet-transfer-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Identity is the authenticated caller as supplied by the transport layer.
// The core trusts it and performs no independent credential check.
type Identity struct {
	UserID uuid.UUID
	Role   domain.Role
}

// AuthContext supplies the authenticated identity for a request.
type AuthContext interface {
	CurrentUser(ctx context.Context) (Identity, error)
}

// NotificationSink delivers one-time codes out of band (email, SMS).
// A delivery failure fails initiation but leaves the challenge intact;
// a resend reuses the same challenge id.
type NotificationSink interface {
	Deliver(ctx context.Context, destination string, code string) error
}

// HashService handles transfer-PIN hashing (Argon2id).
type HashService interface {
	Hash(pin string) (string, error)
	Verify(pin string, hash string) (bool, error)
}

// AuditService records audit events best-effort: failures fall back to the
// process log and never abort the surrounding operation.
type AuditService interface {
	Record(ctx context.Context, userID uuid.UUID, action domain.AuditAction, metadata map[string]any)
}

// --- Service Ports (Business Logic) ---

// ChallengeService is the OTP issuance/verification state machine.
type ChallengeService interface {
	// Issue creates a PENDING challenge bound to the intent and dispatches the
	// code to destination. On delivery failure the persisted challenge is
	// returned alongside a DELIVERY_FAILED error so the caller can re-request
	// delivery without re-issuing.
	Issue(ctx context.Context, ownerID uuid.UUID, destination string, intent domain.TransferIntent) (*domain.Challenge, error)
	// Resend re-delivers the existing challenge's code, throttled per
	// challenge. ownerID must match the challenge owner.
	Resend(ctx context.Context, challengeID, ownerID uuid.UUID, destination string) error
	// Verify runs one verification attempt inside tx. State transitions
	// (attempt counts, expiry, lock, consumption) are written through tx so the
	// caller controls their commit boundary. On success the PENDING->VERIFIED
	// compare-and-set has been applied within tx and the consumed challenge,
	// carrying its intent, is returned.
	Verify(ctx context.Context, tx pgx.Tx, challengeID uuid.UUID, suppliedCode string) (*domain.Challenge, error)
}

// TransferService coordinates the two-phase OTP-guarded transfer.
type TransferService interface {
	Initiate(ctx context.Context, caller Identity, req InitiateRequest) (*domain.ChallengeHandle, error)
	Complete(ctx context.Context, challengeID uuid.UUID, suppliedCode string) (*TransferReceipt, error)
	ResendCode(ctx context.Context, caller Identity, challengeID uuid.UUID) error
}

// InitiateRequest holds validated input for transfer initiation.
type InitiateRequest struct {
	RecipientPhone string
	Amount         decimal.Decimal
	Pin            string
}

// TransferReceipt is returned once the transfer has committed.
type TransferReceipt struct {
	Amount         decimal.Decimal `json:"amount"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	NewBalance     decimal.Decimal `json:"new_balance"`
}

// WalletService covers funding, balance reads, history, and reconciliation.
type WalletService interface {
	Fund(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	Balance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, string, error)
	History(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.LedgerEntry, error)
	Reconcile(ctx context.Context, walletID uuid.UUID) (*ReconcileReport, error)
	SetTransferPin(ctx context.Context, userID uuid.UUID, pin string) error
}

// ReconcileReport compares a wallet balance against its ledger sum.
type ReconcileReport struct {
	WalletID   uuid.UUID       `json:"wallet_id"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Consistent bool            `json:"consistent"`
}
