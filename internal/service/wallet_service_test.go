package service

import (
	"context"
	"testing"

	"wallet-transfer-service/internal/core/domain"
	"wallet-transfer-service/internal/core/ports/mocks"
	"wallet-transfer-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	users      *mocks.MockUserRepository
	wallets    *mocks.MockWalletRepository
	ledger     *mocks.MockLedgerRepository
	hash       *mocks.MockHashService
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		users:      mocks.NewMockUserRepository(ctrl),
		wallets:    mocks.NewMockWalletRepository(ctrl),
		ledger:     mocks.NewMockLedgerRepository(ctrl),
		hash:       mocks.NewMockHashService(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewWalletService(d.users, d.wallets, d.ledger, d.hash, d.transactor, zerolog.Nop())
	return d
}

func TestWalletService_Fund_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ownerID := uuid.New()
	wallet := &domain.Wallet{ID: uuid.New(), OwnerID: ownerID, Balance: money("10.00")}
	tx := &mockTx{}

	d.wallets.EXPECT().GetByOwnerID(ctx, ownerID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.wallets.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)
	d.wallets.EXPECT().UpdateBalance(ctx, tx, wallet.ID, money("110.00")).Return(nil)
	d.ledger.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
			assert.Equal(t, domain.EntryKindFund, e.Kind)
			assert.Equal(t, wallet.ID, e.WalletID)
			assert.True(t, e.Amount.Equal(money("100.00")))
			assert.Nil(t, e.CounterpartyID)
			assert.False(t, e.CreatedAt.IsZero())
			return nil
		})

	newBalance, err := d.svc.Fund(ctx, ownerID, money("100.00"))
	require.NoError(t, err)
	assert.True(t, newBalance.Equal(money("110.00")))
}

func TestWalletService_Fund_InvalidAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Fund(context.Background(), uuid.New(), money("-1"))
	assert.Equal(t, "INVALID_AMOUNT", apperror.CodeOf(err))
}

func TestWalletService_Fund_WalletNotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ownerID := uuid.New()
	d.wallets.EXPECT().GetByOwnerID(ctx, ownerID).Return(nil, nil)

	_, err := d.svc.Fund(ctx, ownerID, money("10.00"))
	assert.Equal(t, "WALLET_NOT_FOUND", apperror.CodeOf(err))
}

func TestWalletService_Balance(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ownerID := uuid.New()
	d.wallets.EXPECT().GetByOwnerID(ctx, ownerID).Return(&domain.Wallet{
		Balance:  money("42.50"),
		Currency: "VND",
	}, nil)

	balance, currency, err := d.svc.Balance(ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(money("42.50")))
	assert.Equal(t, "VND", currency)
}

func TestWalletService_History_DefaultLimit(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ownerID := uuid.New()
	wallet := &domain.Wallet{ID: uuid.New(), OwnerID: ownerID}

	d.wallets.EXPECT().GetByOwnerID(ctx, ownerID).Return(wallet, nil)
	d.ledger.EXPECT().ListByWallet(ctx, wallet.ID, 50).Return([]domain.LedgerEntry{}, nil)

	_, err := d.svc.History(ctx, ownerID, 0)
	require.NoError(t, err)
}

func TestWalletService_Reconcile(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.wallets.EXPECT().GetByID(ctx, walletID).Return(&domain.Wallet{ID: walletID, Balance: money("60.00")}, nil)
	d.ledger.EXPECT().SumByWallet(ctx, walletID).Return(money("60.00"), nil)

	report, err := d.svc.Reconcile(ctx, walletID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.True(t, report.Balance.Equal(report.LedgerSum))
}

func TestWalletService_Reconcile_Drift(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.wallets.EXPECT().GetByID(ctx, walletID).Return(&domain.Wallet{ID: walletID, Balance: money("60.00")}, nil)
	d.ledger.EXPECT().SumByWallet(ctx, walletID).Return(money("55.00"), nil)

	report, err := d.svc.Reconcile(ctx, walletID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
}

func TestWalletService_SetTransferPin(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.users.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID}, nil)
	d.hash.EXPECT().Hash("4321").Return("argon2hash", nil)
	d.users.EXPECT().UpdateTransferPinHash(ctx, userID, "argon2hash").Return(nil)

	err := d.svc.SetTransferPin(ctx, userID, "4321")
	require.NoError(t, err)
}

func TestWalletService_SetTransferPin_RejectsBadFormat(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	for _, pin := range []string{"", "123", "1234567", "12ab", "12 34"} {
		err := d.svc.SetTransferPin(context.Background(), uuid.New(), pin)
		assert.Equal(t, "INVALID_PIN_FORMAT", apperror.CodeOf(err), "pin %q", pin)
	}
}
