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

func ledgerColumns() []string {
	return []string{"id", "wallet_id", "kind", "amount", "counterparty_id", "created_at"}
}

func TestLedgerRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	counterparty := uuid.New()
	entry := &domain.LedgerEntry{
		ID:             uuid.New(),
		WalletID:       uuid.New(),
		Kind:           domain.EntryKindTransferOut,
		Amount:         decimal.RequireFromString("40.00"),
		CounterpartyID: &counterparty,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(entry.ID, entry.WalletID, "TRANSFER_OUT", "40", entry.CounterpartyID, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, entry)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()
	now := time.Now().UTC()

	rows := pgxmock.NewRows(ledgerColumns()).
		AddRow(uuid.New(), walletID, "TRANSFER_IN", "15.50", nil, now).
		AddRow(uuid.New(), walletID, "FUND", "100.00", nil, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE wallet_id").
		WithArgs(walletID, 50).
		WillReturnRows(rows)

	entries, err := repo.ListByWallet(context.Background(), walletID, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EntryKindTransferIn, entries[0].Kind)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("15.50")))
	assert.Equal(t, domain.EntryKindFund, entries[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_SumByWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow("75.50"))

	sum, err := repo.SumByWallet(context.Background(), walletID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("75.50")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_ListWalletIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	rows := pgxmock.NewRows([]string{"wallet_id"}).AddRow(ids[0]).AddRow(ids[1])
	mock.ExpectQuery("SELECT DISTINCT wallet_id FROM ledger_entries").
		WillReturnRows(rows)

	result, err := repo.ListWalletIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
