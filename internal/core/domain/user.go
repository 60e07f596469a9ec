package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the coarse authorization role attached to an identity.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is an account holder. The transfer PIN hash gates outgoing transfers;
// the core never sees the raw PIN after hashing.
type User struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
	Role            Role      `json:"role"`
	TransferPinHash string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}
