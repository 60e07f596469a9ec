package service

import (
	"context"
	"encoding/json"
	"time"

	"wallet-transfer-service/internal/core/domain"
	"wallet-transfer-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit events are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Record appends an audit entry asynchronously (fire-and-forget). A persistence
// failure never aborts the caller; the event falls back to the process log.
func (s *auditService) Record(ctx context.Context, userID uuid.UUID, action domain.AuditAction, metadata map[string]any) {
	details, err := json.Marshal(metadata)
	if err != nil {
		s.log.Warn().Err(err).Str("action", string(action)).Msg("failed to encode audit metadata")
		details = []byte("{}")
	}

	entry := &domain.AuditLog{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Details:   string(details),
		CreatedAt: time.Now().UTC(),
	}

	go func() {
		s.log.Info().
			Str("action", string(action)).
			Str("user_id", userID.String()).
			RawJSON("details", details).
			Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), entry); err != nil {
				// Fallback channel: the event survives in the process log above.
				s.log.Warn().Err(err).Str("action", string(action)).Msg("failed to persist audit log")
			}
		}
	}()
}
