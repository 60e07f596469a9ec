package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet-transfer-service/internal/core/domain"
	"wallet-transfer-service/internal/core/ports/mocks"
	"wallet-transfer-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

// syncBuffer guards the log buffer because Record persists from a goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAuditService_Record_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(repo, zerolog.Nop())

	userID := uuid.New()
	done := make(chan struct{})
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionTransferCompleted, entry.Action)
			assert.Equal(t, userID, entry.UserID)
			assert.JSONEq(t, `{"amount":"40.00"}`, entry.Details)
			assert.False(t, entry.CreatedAt.IsZero())
			close(done)
			return nil
		},
	)

	svc.Record(context.Background(), userID, domain.AuditActionTransferCompleted, map[string]any{
		"amount": "40.00",
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Record_RepoFailureFallsBackToLog(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var buf syncBuffer
	repo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(repo, logger.NewWithWriter("info", &buf))

	done := make(chan struct{})
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *domain.AuditLog) error {
			defer close(done)
			return errors.New("connection refused")
		},
	)

	svc.Record(context.Background(), uuid.New(), domain.AuditActionTransferFailed, map[string]any{
		"reason": "INSUFFICIENT_FUNDS",
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit repo was never called")
	}

	// The event must survive in the process log: the info line written before
	// the persistence attempt plus the warn about the failure.
	assert.Eventually(t, func() bool {
		out := buf.String()
		return bytes.Contains([]byte(out), []byte("failed to persist audit log")) &&
			bytes.Contains([]byte(out), []byte(string(domain.AuditActionTransferFailed)))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAuditService_Record_NilRepo(t *testing.T) {
	var buf syncBuffer
	svc := NewAuditService(nil, logger.NewWithWriter("info", &buf))

	// Must not panic; the event still reaches the log.
	svc.Record(context.Background(), uuid.New(), domain.AuditActionOTPCreated, nil)

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(buf.String()), []byte(string(domain.AuditActionOTPCreated)))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAuditService_Record_UnencodableMetadata(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(repo, zerolog.Nop())

	done := make(chan struct{})
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			// Metadata that cannot be encoded degrades to an empty object.
			assert.Equal(t, "{}", entry.Details)
			close(done)
			return nil
		},
	)

	svc.Record(context.Background(), uuid.New(), domain.AuditActionTransferFailed, map[string]any{
		"bad": make(chan int),
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}
