package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-transfer-service/config"
	"wallet-transfer-service/internal/core/domain"
	"wallet-transfer-service/internal/core/ports"
	"wallet-transfer-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// TransferServiceImpl coordinates the two-phase OTP-guarded transfer:
// Initiate validates the request and issues a challenge, Complete verifies the
// code and moves the money atomically.
type TransferServiceImpl struct {
	users      ports.UserRepository
	wallets    ports.WalletRepository
	ledger     ports.LedgerRepository
	challenges ports.ChallengeService
	hash       ports.HashService
	audit      ports.AuditService
	limiter    ports.AttemptLimiter
	transactor ports.DBTransactor
	pinCfg     config.PinConfig
	log        zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	users ports.UserRepository,
	wallets ports.WalletRepository,
	ledger ports.LedgerRepository,
	challenges ports.ChallengeService,
	hash ports.HashService,
	audit ports.AuditService,
	limiter ports.AttemptLimiter,
	transactor ports.DBTransactor,
	pinCfg config.PinConfig,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		users:      users,
		wallets:    wallets,
		ledger:     ledger,
		challenges: challenges,
		hash:       hash,
		audit:      audit,
		limiter:    limiter,
		transactor: transactor,
		pinCfg:     pinCfg,
		log:        log,
	}
}

// Initiate validates the transfer request, checks the caller's transfer PIN,
// and issues an OTP challenge bound to the recipient and amount. No balance is
// reserved: the check here is advisory, the authoritative check happens under
// row locks in Complete.
func (s *TransferServiceImpl) Initiate(ctx context.Context, caller ports.Identity, req ports.InitiateRequest) (*domain.ChallengeHandle, error) {
	if !domain.ValidAmount(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}

	sender, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get sender: %w", err))
	}
	if sender == nil {
		return nil, apperror.ErrUserNotFound()
	}

	if err := s.checkPin(ctx, sender, req.Pin); err != nil {
		return nil, err
	}

	recipient, err := s.users.GetByPhone(ctx, req.RecipientPhone)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get recipient: %w", err))
	}
	if recipient == nil {
		return nil, apperror.ErrRecipientNotFound()
	}
	if recipient.ID == sender.ID {
		return nil, apperror.ErrSelfTransfer()
	}

	senderWallet, err := s.wallets.GetByOwnerID(ctx, sender.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get sender wallet: %w", err))
	}
	if senderWallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if senderWallet.Balance.LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	intent := domain.TransferIntent{RecipientID: recipient.ID, Amount: req.Amount}
	challenge, err := s.challenges.Issue(ctx, sender.ID, sender.Email, intent)
	if err != nil {
		if challenge != nil && apperror.CodeOf(err) == "DELIVERY_FAILED" {
			// The challenge exists; the caller can ask for re-delivery.
			return &domain.ChallengeHandle{ChallengeID: challenge.ID, ExpiresAt: challenge.ExpiresAt}, err
		}
		return nil, err
	}

	s.log.Info().
		Str("challenge_id", challenge.ID.String()).
		Str("sender_id", sender.ID.String()).
		Str("recipient_id", recipient.ID.String()).
		Msg("transfer initiated")

	return &domain.ChallengeHandle{ChallengeID: challenge.ID, ExpiresAt: challenge.ExpiresAt}, nil
}

// Complete verifies the supplied code and, on success, executes the bound
// transfer atomically: challenge consumption, both balance updates, and both
// ledger entries commit or roll back as one unit. Verification bookkeeping
// (attempt counts, expiry, lock) is committed even when verification fails.
func (s *TransferServiceImpl) Complete(ctx context.Context, challengeID uuid.UUID, suppliedCode string) (*ports.TransferReceipt, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx)

	challenge, verr := s.challenges.Verify(ctx, dbTx, challengeID, suppliedCode)
	if verr != nil {
		// Attempt counters and expiry transitions must survive the failed
		// verification, so this path commits instead of rolling back.
		if err := dbTx.Commit(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.log.Error().Err(err).Str("challenge_id", challengeID.String()).Msg("failed to persist verification bookkeeping")
		}
		return nil, verr
	}

	receipt, err := s.execute(ctx, dbTx, challenge)
	if err != nil {
		s.audit.Record(ctx, challenge.OwnerID, domain.AuditActionTransferFailed, map[string]any{
			"challenge_id": challengeID.String(),
			"reason":       apperror.CodeOf(err),
		})
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		s.audit.Record(ctx, challenge.OwnerID, domain.AuditActionTransferFailed, map[string]any{
			"challenge_id": challengeID.String(),
			"reason":       "COMMIT_FAILED",
		})
		return nil, apperror.ErrTransferAborted(fmt.Errorf("commit: %w", err))
	}

	s.audit.Record(ctx, challenge.OwnerID, domain.AuditActionTransferCompleted, map[string]any{
		"challenge_id": challengeID.String(),
		"recipient_id": challenge.Intent.RecipientID.String(),
		"amount":       challenge.Intent.Amount.String(),
	})

	s.log.Info().
		Str("challenge_id", challengeID.String()).
		Str("amount", challenge.Intent.Amount.String()).
		Msg("transfer completed")

	return receipt, nil
}

// execute moves the money inside dbTx. Any failure means the whole tx,
// including the challenge consumption, rolls back and the challenge stays
// PENDING and retryable.
func (s *TransferServiceImpl) execute(ctx context.Context, dbTx pgx.Tx, challenge *domain.Challenge) (*ports.TransferReceipt, error) {
	amount := challenge.Intent.Amount

	senderWallet, err := s.wallets.GetByOwnerID(ctx, challenge.OwnerID)
	if err != nil {
		return nil, apperror.ErrTransferAborted(fmt.Errorf("get sender wallet: %w", err))
	}
	recipientWallet, err := s.wallets.GetByOwnerID(ctx, challenge.Intent.RecipientID)
	if err != nil {
		return nil, apperror.ErrTransferAborted(fmt.Errorf("get recipient wallet: %w", err))
	}
	if senderWallet == nil || recipientWallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	// Row locks are taken in ascending wallet-id order regardless of transfer
	// direction, so opposite-direction transfers cannot deadlock.
	first, second := domain.LockOrder(senderWallet, recipientWallet)
	lockedFirst, err := s.wallets.GetByIDForUpdate(ctx, dbTx, first.ID)
	if err != nil {
		return nil, apperror.ErrTransferAborted(fmt.Errorf("lock wallet: %w", err))
	}
	lockedSecond, err := s.wallets.GetByIDForUpdate(ctx, dbTx, second.ID)
	if err != nil {
		return nil, apperror.ErrTransferAborted(fmt.Errorf("lock wallet: %w", err))
	}

	locked := map[uuid.UUID]*domain.Wallet{lockedFirst.ID: lockedFirst, lockedSecond.ID: lockedSecond}
	senderWallet = locked[senderWallet.ID]
	recipientWallet = locked[recipientWallet.ID]

	// Authoritative balance check, under the lock. A shortfall here rolls the
	// whole tx back; the challenge remains PENDING for a later retry.
	if senderWallet.Balance.LessThan(amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	newSenderBalance := senderWallet.Balance.Sub(amount)
	newRecipientBalance := recipientWallet.Balance.Add(amount)

	if err := s.wallets.UpdateBalance(ctx, dbTx, senderWallet.ID, newSenderBalance); err != nil {
		return nil, apperror.ErrTransferAborted(fmt.Errorf("debit sender: %w", err))
	}
	if err := s.wallets.UpdateBalance(ctx, dbTx, recipientWallet.ID, newRecipientBalance); err != nil {
		return nil, apperror.ErrTransferAborted(fmt.Errorf("credit recipient: %w", err))
	}

	recipientID := challenge.Intent.RecipientID
	ownerID := challenge.OwnerID
	now := time.Now().UTC()
	out := &domain.LedgerEntry{
		ID:             uuid.New(),
		WalletID:       senderWallet.ID,
		Kind:           domain.EntryKindTransferOut,
		Amount:         amount,
		CounterpartyID: &recipientID,
		CreatedAt:      now,
	}
	in := &domain.LedgerEntry{
		ID:             uuid.New(),
		WalletID:       recipientWallet.ID,
		Kind:           domain.EntryKindTransferIn,
		Amount:         amount,
		CounterpartyID: &ownerID,
		CreatedAt:      now,
	}
	if err := s.ledger.Create(ctx, dbTx, out); err != nil {
		return nil, apperror.ErrTransferAborted(fmt.Errorf("append debit entry: %w", err))
	}
	if err := s.ledger.Create(ctx, dbTx, in); err != nil {
		return nil, apperror.ErrTransferAborted(fmt.Errorf("append credit entry: %w", err))
	}

	return &ports.TransferReceipt{
		Amount:         amount,
		CounterpartyID: recipientID,
		NewBalance:     newSenderBalance,
	}, nil
}

// ResendCode re-delivers the code for a challenge owned by the caller.
func (s *TransferServiceImpl) ResendCode(ctx context.Context, caller ports.Identity, challengeID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return apperror.ErrUserNotFound()
	}
	return s.challenges.Resend(ctx, challengeID, caller.UserID, user.Email)
}

// checkPin verifies the caller's transfer PIN under the attempt limiter.
// Limiter outages degrade to allowing the check; the PIN itself still gates.
func (s *TransferServiceImpl) checkPin(ctx context.Context, sender *domain.User, pin string) error {
	allowed, err := s.limiter.Allow(ctx, "pin:"+sender.ID.String(), s.pinCfg.MaxAttempts, s.pinCfg.AttemptWindow)
	if err != nil {
		s.log.Warn().Err(err).Msg("pin attempt limiter unavailable")
	} else if !allowed {
		return apperror.ErrPinThrottled()
	}

	ok, err := s.hash.Verify(pin, sender.TransferPinHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify pin: %w", err))
	}
	if !ok {
		s.audit.Record(ctx, sender.ID, domain.AuditActionTransferFailed, map[string]any{
			"reason": "INVALID_PIN",
		})
		return apperror.ErrInvalidPin()
	}

	// A correct PIN clears the counter so only consecutive failures throttle.
	if err := s.limiter.Reset(ctx, "pin:"+sender.ID.String(), s.pinCfg.AttemptWindow); err != nil {
		s.log.Warn().Err(err).Msg("pin attempt limiter reset failed")
	}
	return nil
}
