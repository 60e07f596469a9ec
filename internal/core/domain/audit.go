package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited transfer event.
type AuditAction string

const (
	AuditActionOTPCreated        AuditAction = "OTP_CREATED"
	AuditActionOTPVerified       AuditAction = "OTP_VERIFIED"
	AuditActionTransferCompleted AuditAction = "TRANSFER_COMPLETED"
	AuditActionTransferFailed    AuditAction = "TRANSFER_FAILED"
)

// AuditLog records a single audited action. Writes are best-effort: a failed
// append must not abort the transfer, only fall back to the process log.
type AuditLog struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	Action    AuditAction `json:"action"`
	Details   string      `json:"details,omitempty"` // JSON metadata
	CreatedAt time.Time   `json:"created_at"`
}
