package postgres

import (
	"context"

	"wallet-transfer-service/internal/core/domain"
	"wallet-transfer-service/internal/core/ports"
)

type auditRepo struct {
	pool Pool
}

// NewAuditRepository creates a PostgreSQL-backed AuditRepository.
func NewAuditRepository(pool Pool) ports.AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, user_id, action, details, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		log.ID, log.UserID, string(log.Action), log.Details, log.CreatedAt,
	)
	return err
}
