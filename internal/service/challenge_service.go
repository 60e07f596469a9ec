package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"wallet-transfer-service/config"
	"wallet-transfer-service/internal/core/domain"
	"wallet-transfer-service/internal/core/ports"
	"wallet-transfer-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const otpCodeDigits = 6

// ChallengeServiceImpl implements ports.ChallengeService: the OTP
// issuance/verification state machine.
type ChallengeServiceImpl struct {
	repo     ports.ChallengeRepository
	notifier ports.NotificationSink
	audit    ports.AuditService
	limiter  ports.AttemptLimiter
	cfg      config.OTPConfig
	log      zerolog.Logger
}

// NewChallengeService creates a new ChallengeServiceImpl.
func NewChallengeService(
	repo ports.ChallengeRepository,
	notifier ports.NotificationSink,
	audit ports.AuditService,
	limiter ports.AttemptLimiter,
	cfg config.OTPConfig,
	log zerolog.Logger,
) *ChallengeServiceImpl {
	return &ChallengeServiceImpl{
		repo:     repo,
		notifier: notifier,
		audit:    audit,
		limiter:  limiter,
		cfg:      cfg,
		log:      log,
	}
}

// Issue creates a PENDING challenge bound to the intent and dispatches its
// code. The challenge is persisted before dispatch: a delivery failure returns
// the challenge together with a DELIVERY_FAILED error so the caller can
// re-request delivery against the same challenge id.
func (s *ChallengeServiceImpl) Issue(ctx context.Context, ownerID uuid.UUID, destination string, intent domain.TransferIntent) (*domain.Challenge, error) {
	code, err := generateCode()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate code: %w", err))
	}

	now := time.Now().UTC()
	challenge := &domain.Challenge{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Code:      code,
		State:     domain.ChallengeStatePending,
		Attempts:  0,
		Intent:    intent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	if err := s.repo.Create(ctx, challenge); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create challenge: %w", err))
	}

	s.audit.Record(ctx, ownerID, domain.AuditActionOTPCreated, map[string]any{
		"challenge_id": challenge.ID.String(),
		"recipient_id": intent.RecipientID.String(),
		"amount":       intent.Amount.String(),
	})

	if err := s.notifier.Deliver(ctx, destination, code); err != nil {
		s.log.Warn().Err(err).Str("challenge_id", challenge.ID.String()).Msg("code delivery failed")
		return challenge, apperror.ErrDeliveryFailed(err)
	}

	s.log.Info().
		Str("challenge_id", challenge.ID.String()).
		Time("expires_at", challenge.ExpiresAt).
		Msg("challenge issued")

	return challenge, nil
}

// Resend re-delivers an existing challenge's code, throttled per challenge.
// The challenge id never changes across re-deliveries.
func (s *ChallengeServiceImpl) Resend(ctx context.Context, challengeID, ownerID uuid.UUID, destination string) error {
	allowed, err := s.limiter.Allow(ctx, "resend:"+challengeID.String(), s.cfg.ResendLimit, s.cfg.ResendWindow)
	if err != nil {
		// Limiter outage degrades to allowing the resend; the challenge TTL
		// still bounds exposure.
		s.log.Warn().Err(err).Msg("resend limiter unavailable")
	} else if !allowed {
		return apperror.ErrResendThrottled()
	}

	challenge, err := s.repo.GetByID(ctx, challengeID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get challenge: %w", err))
	}
	if challenge == nil || challenge.OwnerID != ownerID {
		return apperror.ErrChallengeNotFound()
	}
	if err := terminalStateError(challenge); err != nil {
		return err
	}
	if challenge.ExpiredBy(time.Now().UTC()) {
		return apperror.ErrChallengeExpired()
	}

	if err := s.notifier.Deliver(ctx, destination, challenge.Code); err != nil {
		return apperror.ErrDeliveryFailed(err)
	}

	s.log.Info().Str("challenge_id", challengeID.String()).Msg("challenge code re-sent")
	return nil
}

// Verify runs one verification attempt inside tx.
//
// The challenge row is locked for the duration of tx, serializing concurrent
// attempts; the PENDING->VERIFIED transition is additionally a guarded
// compare-and-set, so exactly one concurrent caller with the correct code can
// succeed. Every outcome emits an audit event.
func (s *ChallengeServiceImpl) Verify(ctx context.Context, tx pgx.Tx, challengeID uuid.UUID, suppliedCode string) (*domain.Challenge, error) {
	challenge, err := s.repo.GetByIDForUpdate(ctx, tx, challengeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get challenge: %w", err))
	}
	if challenge == nil {
		return nil, apperror.ErrChallengeNotFound()
	}

	if err := terminalStateError(challenge); err != nil {
		s.auditVerify(ctx, challenge, false, apperror.CodeOf(err))
		return nil, err
	}

	// Lazy expiry: there is no background sweeper, the TTL is enforced here.
	if challenge.ExpiredBy(time.Now().UTC()) {
		if err := s.repo.MarkExpired(ctx, tx, challengeID); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark expired: %w", err))
		}
		s.auditVerify(ctx, challenge, false, "CHALLENGE_EXPIRED")
		return nil, apperror.ErrChallengeExpired()
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(suppliedCode)) != 1 {
		attempts, state, err := s.repo.RecordMismatch(ctx, tx, challengeID, s.cfg.MaxAttempts)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record mismatch: %w", err))
		}
		challenge.Attempts = attempts
		challenge.State = state
		s.auditVerify(ctx, challenge, false, "CODE_MISMATCH")
		if state == domain.ChallengeStateLocked {
			return nil, apperror.ErrChallengeLocked()
		}
		return nil, apperror.ErrCodeMismatch(s.cfg.MaxAttempts - attempts)
	}

	won, err := s.repo.Consume(ctx, tx, challengeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("consume challenge: %w", err))
	}
	if !won {
		// Unreachable while the row lock is held, kept as a backstop.
		s.auditVerify(ctx, challenge, false, "CHALLENGE_CONSUMED")
		return nil, apperror.ErrChallengeConsumed()
	}

	challenge.State = domain.ChallengeStateVerified
	s.auditVerify(ctx, challenge, true, "")
	return challenge, nil
}

func (s *ChallengeServiceImpl) auditVerify(ctx context.Context, c *domain.Challenge, success bool, reason string) {
	meta := map[string]any{
		"challenge_id": c.ID.String(),
		"success":      success,
		"attempts":     c.Attempts,
	}
	if reason != "" {
		meta["reason"] = reason
	}
	s.audit.Record(ctx, c.OwnerID, domain.AuditActionOTPVerified, meta)
}

func terminalStateError(c *domain.Challenge) error {
	switch c.State {
	case domain.ChallengeStateVerified:
		return apperror.ErrChallengeConsumed()
	case domain.ChallengeStateLocked:
		return apperror.ErrChallengeLocked()
	case domain.ChallengeStateExpired:
		return apperror.ErrChallengeExpired()
	default:
		return nil
	}
}

// generateCode draws a uniformly random 6-digit code from crypto/rand.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpCodeDigits, n), nil
}
