package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind classifies a balance-affecting event.
type EntryKind string

const (
	EntryKindFund        EntryKind = "FUND"
	EntryKindTransferOut EntryKind = "TRANSFER_OUT"
	EntryKindTransferIn  EntryKind = "TRANSFER_IN"
)

// LedgerEntry is an immutable record of one balance-affecting event.
// Entries are append-only; nothing ever updates or deletes them.
type LedgerEntry struct {
	ID             uuid.UUID       `json:"id"`
	WalletID       uuid.UUID       `json:"wallet_id"`
	Kind           EntryKind       `json:"kind"`
	Amount         decimal.Decimal `json:"amount"` // always positive; sign comes from Kind
	CounterpartyID *uuid.UUID      `json:"counterparty_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Signed returns the entry's contribution to the wallet balance.
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.Kind == EntryKindTransferOut {
		return e.Amount.Neg()
	}
	return e.Amount
}

// SumEntries computes the signed sum of a set of ledger entries. For a
// consistent wallet this equals its balance at all times.
func SumEntries(entries []LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for i := range entries {
		sum = sum.Add(entries[i].Signed())
	}
	return sum
}
