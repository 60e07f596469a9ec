package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChallengeState is the lifecycle state of an OTP challenge.
// PENDING is the only non-terminal state; every challenge reaches exactly one
// of VERIFIED, EXPIRED, or LOCKED.
type ChallengeState string

const (
	ChallengeStatePending  ChallengeState = "PENDING"
	ChallengeStateVerified ChallengeState = "VERIFIED"
	ChallengeStateExpired  ChallengeState = "EXPIRED"
	ChallengeStateLocked   ChallengeState = "LOCKED"
)

// TransferIntent is the payload bound to a transfer challenge at issuance.
// It is validated once at construction, not sniffed at use time.
type TransferIntent struct {
	RecipientID uuid.UUID       `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
}

// Challenge tracks one OTP from issuance through verification.
// ExpiresAt is fixed at creation and never moves.
type Challenge struct {
	ID        uuid.UUID      `json:"id"`
	OwnerID   uuid.UUID      `json:"owner_id"`
	Code      string         `json:"-"` // 6-digit secret, never serialized
	State     ChallengeState `json:"state"`
	Attempts  int            `json:"attempts"`
	Intent    TransferIntent `json:"intent"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// IsTerminal reports whether the challenge can no longer be verified.
func (c *Challenge) IsTerminal() bool {
	return c.State != ChallengeStatePending
}

// ExpiredBy reports whether the challenge's TTL has elapsed at the given
// instant. Expiry is evaluated lazily inside verification; there is no
// background sweeper.
func (c *Challenge) ExpiredBy(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ChallengeHandle is what initiation returns to the caller: enough to complete
// or re-request delivery, never the code itself.
type ChallengeHandle struct {
	ChallengeID uuid.UUID `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}
