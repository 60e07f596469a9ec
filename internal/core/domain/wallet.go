package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencyExponent is the number of decimal places amounts may carry.
const CurrencyExponent = 2

// Wallet holds one user's spendable balance. The balance is only ever mutated
// through WalletRepository's in-transaction update; no other code path writes it.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ValidAmount reports whether amount is positive and representable at
// currency precision. Compared by value, so trailing zeros such as "0.010"
// are fine while "1.005" is not.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(CurrencyExponent))
}

// LockOrder returns the two wallets sorted by ascending id. Both-wallet
// updates must acquire row locks in this order to avoid deadlock between
// concurrent opposite-direction transfers.
func LockOrder(a, b *Wallet) (*Wallet, *Wallet) {
	if a.ID.String() <= b.ID.String() {
		return a, b
	}
	return b, a
}
