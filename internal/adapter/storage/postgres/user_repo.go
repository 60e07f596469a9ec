package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-transfer-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new user.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (id, name, phone, email, role, transfer_pin_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Name, u.Phone, u.Email, string(u.Role), u.TransferPinHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, name, phone, email, role, transfer_pin_hash, created_at
		FROM users WHERE id = $1`

	return scanUser(r.pool.QueryRow(ctx, query, id), "get user by id")
}

// GetByPhone resolves a user by phone number, the external recipient reference.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := `SELECT id, name, phone, email, role, transfer_pin_hash, created_at
		FROM users WHERE phone = $1`

	return scanUser(r.pool.QueryRow(ctx, query, phone), "get user by phone")
}

// UpdateTransferPinHash replaces the stored transfer-PIN hash.
func (r *UserRepo) UpdateTransferPinHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	query := `UPDATE users SET transfer_pin_hash = $1 WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, pinHash, id)
	if err != nil {
		return fmt.Errorf("update transfer pin hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

func scanUser(row pgx.Row, op string) (*domain.User, error) {
	u := &domain.User{}
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &role, &u.TransferPinHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.Role = domain.Role(role)
	return u, nil
}
