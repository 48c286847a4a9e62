package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/queue"
)

type mockAccountRepository struct {
	GetFunc         func(ctx context.Context, ownerID string) (*models.Account, error)
	ListExpiredFunc func(ctx context.Context, now time.Time) ([]string, error)
}

func (m *mockAccountRepository) Create(context.Context, string, string) error { return nil }

func (m *mockAccountRepository) Get(ctx context.Context, ownerID string) (*models.Account, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, ownerID)
	}
	return &models.Account{OwnerID: ownerID, State: models.Active{}}, nil
}

func (m *mockAccountRepository) ScheduleDeletion(context.Context, string, time.Time) error {
	return nil
}

func (m *mockAccountRepository) ClearDeletion(context.Context, string) error { return nil }

func (m *mockAccountRepository) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	if m.ListExpiredFunc != nil {
		return m.ListExpiredFunc(ctx, now)
	}
	return nil, nil
}

func (m *mockAccountRepository) DeleteAll(context.Context, string) error { return nil }

var _ database.AccountRepositoryInterface = (*mockAccountRepository)(nil)

type mockEraser struct {
	mu        sync.Mutex
	EraseFunc func(ctx context.Context, ownerID string) error
	erased    []string
}

func (m *mockEraser) Erase(ctx context.Context, ownerID string) error {
	m.mu.Lock()
	m.erased = append(m.erased, ownerID)
	m.mu.Unlock()
	if m.EraseFunc != nil {
		return m.EraseFunc(ctx, ownerID)
	}
	return nil
}

type mockIdentityDeleter struct {
	DeleteIdentityFunc func(ctx context.Context, ownerID string) error
}

func (m *mockIdentityDeleter) DeleteIdentity(ctx context.Context, ownerID string) error {
	if m.DeleteIdentityFunc != nil {
		return m.DeleteIdentityFunc(ctx, ownerID)
	}
	return nil
}

type mockJobQueue struct {
	mu          sync.Mutex
	enqueueFunc func(ctx context.Context, job *queue.Job) error
	jobs        []*queue.Job
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	return nil
}

func (m *mockJobQueue) Consume(context.Context, int) (<-chan *queue.Delivery, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(context.Context) error { return nil }

var _ queue.JobQueue = (*mockJobQueue)(nil)

type mockReceipt struct {
	job          *queue.Job
	acked        bool
	deadLettered bool
}

func (m *mockReceipt) Job() *queue.Job { return m.job }

func (m *mockReceipt) Ack() error {
	m.acked = true
	return nil
}

func (m *mockReceipt) DeadLetter() error {
	m.deadLettered = true
	return nil
}

var _ queue.Receipt = (*mockReceipt)(nil)
