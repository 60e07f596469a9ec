package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet-transfer-service/internal/core/domain"
	"wallet-transfer-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Journaled In-Memory Transaction ---

// memTx emulates a database transaction over the in-memory repos: each write
// registers an undo closure, Rollback replays the undos in reverse, Commit
// discards them. Unexported pgx.Tx methods are satisfied by embedding.
type memTx struct {
	pgx.Tx
	mu   sync.Mutex
	undo []func()
	done bool
}

func newMemTx() *memTx { return &memTx{} }

func (t *memTx) onRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

func (t *memTx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	return nil
}

type memTransactor struct{}

func (memTransactor) Begin(_ context.Context) (pgx.Tx, error) { return newMemTx(), nil }

func asMemTx(tx pgx.Tx) *memTx {
	mt, ok := tx.(*memTx)
	if !ok {
		panic(fmt.Sprintf("expected *memTx, got %T", tx))
	}
	return mt
}

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Phone == u.Phone {
			return fmt.Errorf("phone already exists")
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) UpdateTransferPinHash(_ context.Context, id uuid.UUID, pinHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.TransferPinHash = pinHash
	return nil
}

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(_ context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByOwnerID(_ context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.OwnerID == ownerID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) UpdateBalance(_ context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	prev := w.Balance
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	asMemTx(tx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		w.Balance = prev
	})
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo { return &inMemoryLedgerRepo{} }

func (r *inMemoryLedgerRepo) Create(_ context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Timestamps are the caller's responsibility, as with the SQL repo.
	e := *entry
	r.entries = append(r.entries, e)
	id := e.ID
	asMemTx(tx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i := range r.entries {
			if r.entries[i].ID == id {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *inMemoryLedgerRepo) ListByWallet(_ context.Context, walletID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LedgerEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].WalletID == walletID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *inMemoryLedgerRepo) SumByWallet(_ context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for i := range r.entries {
		if r.entries[i].WalletID == walletID {
			sum = sum.Add(r.entries[i].Signed())
		}
	}
	return sum, nil
}

func (r *inMemoryLedgerRepo) ListWalletIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for i := range r.entries {
		if !seen[r.entries[i].WalletID] {
			seen[r.entries[i].WalletID] = true
			out = append(out, r.entries[i].WalletID)
		}
	}
	return out, nil
}

// --- In-Memory Challenge Repo ---

type inMemoryChallengeRepo struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]*domain.Challenge
}

func newInMemoryChallengeRepo() *inMemoryChallengeRepo {
	return &inMemoryChallengeRepo{challenges: make(map[uuid.UUID]*domain.Challenge)}
}

func (r *inMemoryChallengeRepo) Create(_ context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.challenges[c.ID] = &cp
	return nil
}

func (r *inMemoryChallengeRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *inMemoryChallengeRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *inMemoryChallengeRepo) RecordMismatch(_ context.Context, tx pgx.Tx, id uuid.UUID, maxAttempts int) (int, domain.ChallengeState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok || c.State != domain.ChallengeStatePending {
		if !ok {
			return 0, "", fmt.Errorf("challenge not found")
		}
		return c.Attempts, c.State, nil
	}
	prevAttempts, prevState := c.Attempts, c.State
	c.Attempts++
	if c.Attempts >= maxAttempts {
		c.State = domain.ChallengeStateLocked
	}
	asMemTx(tx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		c.Attempts, c.State = prevAttempts, prevState
	})
	return c.Attempts, c.State, nil
}

func (r *inMemoryChallengeRepo) MarkExpired(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok || c.State != domain.ChallengeStatePending {
		return nil
	}
	c.State = domain.ChallengeStateExpired
	asMemTx(tx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		c.State = domain.ChallengeStatePending
	})
	return nil
}

func (r *inMemoryChallengeRepo) Consume(_ context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok || c.State != domain.ChallengeStatePending {
		return false, nil
	}
	c.State = domain.ChallengeStateVerified
	asMemTx(tx).onRollback(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		c.State = domain.ChallengeStatePending
	})
	return true, nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo { return &inMemoryAuditRepo{} }

func (r *inMemoryAuditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

// --- In-Memory Attempt Limiter ---

type inMemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newInMemoryLimiter() *inMemoryLimiter {
	return &inMemoryLimiter{counts: make(map[string]int64)}
}

func (l *inMemoryLimiter) Allow(_ context.Context, key string, limit int64, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

func (l *inMemoryLimiter) Reset(_ context.Context, key string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
	return nil
}

// --- Recording Notification Sink ---

// recordingSink captures delivered codes so tests can complete transfers the
// way a user reading their inbox would.
type recordingSink struct {
	mu    sync.Mutex
	codes map[string][]string // destination -> delivered codes
	fail  bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{codes: make(map[string][]string)}
}

func (s *recordingSink) Deliver(_ context.Context, destination, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("delivery channel down")
	}
	s.codes[destination] = append(s.codes[destination], code)
	return nil
}

func (s *recordingSink) lastCode(destination string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	delivered := s.codes[destination]
	if len(delivered) == 0 {
		return ""
	}
	return delivered[len(delivered)-1]
}

var _ ports.UserRepository = (*inMemoryUserRepo)(nil)
var _ ports.WalletRepository = (*inMemoryWalletRepo)(nil)
var _ ports.LedgerRepository = (*inMemoryLedgerRepo)(nil)
var _ ports.ChallengeRepository = (*inMemoryChallengeRepo)(nil)
var _ ports.AuditRepository = (*inMemoryAuditRepo)(nil)
var _ ports.AttemptLimiter = (*inMemoryLimiter)(nil)
var _ ports.DBTransactor = (*memTransactor)(nil)
var _ ports.NotificationSink = (*recordingSink)(nil)
