package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   bool
	}{
		{"positive integer", "40", true},
		{"two decimal places", "40.25", true},
		{"zero", "0", false},
		{"negative", "-1.00", false},
		{"sub-cent precision", "0.001", false},
		{"sub-cent over a dollar", "1.005", false},
		{"trailing zero beyond cents", "0.010", true},
		{"integer with trailing zeros", "5.00000", true},
		{"large", "1000000.99", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidAmount(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestLockOrder(t *testing.T) {
	a := &Wallet{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001")}
	b := &Wallet{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002")}

	first, second := LockOrder(a, b)
	assert.Same(t, a, first)
	assert.Same(t, b, second)

	// Order is independent of argument order.
	first, second = LockOrder(b, a)
	assert.Same(t, a, first)
	assert.Same(t, b, second)
}

func TestLedgerEntry_Signed(t *testing.T) {
	amount := decimal.RequireFromString("40.00")

	out := LedgerEntry{Kind: EntryKindTransferOut, Amount: amount}
	assert.True(t, out.Signed().Equal(amount.Neg()))

	in := LedgerEntry{Kind: EntryKindTransferIn, Amount: amount}
	assert.True(t, in.Signed().Equal(amount))

	fund := LedgerEntry{Kind: EntryKindFund, Amount: amount}
	assert.True(t, fund.Signed().Equal(amount))
}

func TestSumEntries(t *testing.T) {
	entries := []LedgerEntry{
		{Kind: EntryKindFund, Amount: decimal.RequireFromString("100.00")},
		{Kind: EntryKindTransferOut, Amount: decimal.RequireFromString("40.00")},
		{Kind: EntryKindTransferIn, Amount: decimal.RequireFromString("15.50")},
	}

	assert.True(t, SumEntries(entries).Equal(decimal.RequireFromString("75.50")))
	assert.True(t, SumEntries(nil).IsZero())
}

func TestChallenge_IsTerminal(t *testing.T) {
	c := &Challenge{State: ChallengeStatePending}
	assert.False(t, c.IsTerminal())

	for _, state := range []ChallengeState{ChallengeStateVerified, ChallengeStateExpired, ChallengeStateLocked} {
		c.State = state
		assert.True(t, c.IsTerminal(), "state %s should be terminal", state)
	}
}

func TestChallenge_ExpiredBy(t *testing.T) {
	now := time.Now().UTC()
	c := &Challenge{ExpiresAt: now.Add(5 * time.Minute)}

	assert.False(t, c.ExpiredBy(now))
	assert.False(t, c.ExpiredBy(c.ExpiresAt)) // boundary: not yet past expiry
	assert.True(t, c.ExpiredBy(c.ExpiresAt.Add(time.Second)))
}
