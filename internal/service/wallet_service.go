package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"wallet-transfer-service/internal/core/domain"
	"wallet-transfer-service/internal/core/ports"
	"wallet-transfer-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultHistoryLimit = 50

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

// WalletServiceImpl covers wallet funding, balance reads, transfer history,
// reconciliation, and transfer-PIN setup.
type WalletServiceImpl struct {
	users      ports.UserRepository
	wallets    ports.WalletRepository
	ledger     ports.LedgerRepository
	hash       ports.HashService
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	users ports.UserRepository,
	wallets ports.WalletRepository,
	ledger ports.LedgerRepository,
	hash ports.HashService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		users:      users,
		wallets:    wallets,
		ledger:     ledger,
		hash:       hash,
		transactor: transactor,
		log:        log,
	}
}

// Fund credits the owner's wallet and appends a FUND ledger entry in one
// transaction. Returns the new balance.
func (s *WalletServiceImpl) Fund(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !domain.ValidAmount(amount) {
		return decimal.Zero, apperror.ErrInvalidAmount()
	}

	wallet, err := s.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return decimal.Zero, apperror.ErrWalletNotFound()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx)

	locked, err := s.wallets.GetByIDForUpdate(ctx, dbTx, wallet.ID)
	if err != nil {
		return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}

	newBalance := locked.Balance.Add(amount)
	if err := s.wallets.UpdateBalance(ctx, dbTx, locked.ID, newBalance); err != nil {
		return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("credit wallet: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:        uuid.New(),
		WalletID:  locked.ID,
		Kind:      domain.EntryKindFund,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.ledger.Create(ctx, dbTx, entry); err != nil {
		return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("append fund entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Str("wallet_id", locked.ID.String()).
		Str("amount", amount.String()).
		Msg("wallet funded")

	return newBalance, nil
}

// Balance returns the owner's current balance and currency.
func (s *WalletServiceImpl) Balance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, string, error) {
	wallet, err := s.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return decimal.Zero, "", apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return decimal.Zero, "", apperror.ErrWalletNotFound()
	}
	return wallet.Balance, wallet.Currency, nil
}

// History returns the owner's most recent ledger entries, newest first.
func (s *WalletServiceImpl) History(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	wallet, err := s.wallets.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries, err := s.ledger.ListByWallet(ctx, wallet.ID, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list entries: %w", err))
	}
	return entries, nil
}

// Reconcile compares a wallet's stored balance against the signed sum of its
// ledger entries.
func (s *WalletServiceImpl) Reconcile(ctx context.Context, walletID uuid.UUID) (*ports.ReconcileReport, error) {
	wallet, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	sum, err := s.ledger.SumByWallet(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("sum entries: %w", err))
	}

	report := &ports.ReconcileReport{
		WalletID:   walletID,
		Balance:    wallet.Balance,
		LedgerSum:  sum,
		Consistent: wallet.Balance.Equal(sum),
	}
	if !report.Consistent {
		s.log.Error().
			Str("wallet_id", walletID.String()).
			Str("balance", wallet.Balance.String()).
			Str("ledger_sum", sum.String()).
			Msg("wallet drifted from ledger")
	}
	return report, nil
}

// SetTransferPin hashes and stores the user's transfer PIN. PINs are 4 to 6
// digits.
func (s *WalletServiceImpl) SetTransferPin(ctx context.Context, userID uuid.UUID, pin string) error {
	if !pinPattern.MatchString(pin) {
		return apperror.ErrInvalidPinFormat()
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return apperror.ErrUserNotFound()
	}

	pinHash, err := s.hash.Hash(pin)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash pin: %w", err))
	}
	if err := s.users.UpdateTransferPinHash(ctx, userID, pinHash); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("store pin hash: %w", err))
	}
	return nil
}
