package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/internal/models"
)

type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) AppendBatch(ctx context.Context, transfers []models.Transfer) error {
	args := m.Called(ctx, transfers)
	return args.Error(0)
}

func (m *MockTransferRepository) ExistingIDs(ctx context.Context, candidateIDs []string) (map[string]struct{}, error) {
	args := m.Called(ctx, candidateIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockTransferRepository) AllRecords(ctx context.Context) ([]models.Transfer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transfer), args.Error(1)
}

func (m *MockTransferRepository) Close() error {
	return m.Called().Error(0)
}

// memRepository is an in-memory store honoring transaction id uniqueness.
type memRepository struct {
	mu        sync.Mutex
	rows      []models.Transfer
	ids       map[string]struct{}
	appends   int
	lookups   int
	failBatch func(batch []models.Transfer) error
}

func newMemRepository(seed ...models.Transfer) *memRepository {
	r := &memRepository{ids: make(map[string]struct{})}
	for _, t := range seed {
		r.rows = append(r.rows, t)
		r.ids[t.TransactionID] = struct{}{}
	}
	return r
}

func (r *memRepository) AppendBatch(ctx context.Context, transfers []models.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appends++
	if r.failBatch != nil {
		if err := r.failBatch(transfers); err != nil {
			return err
		}
	}
	for _, t := range transfers {
		if _, ok := r.ids[t.TransactionID]; ok {
			return custom_err.ErrDuplicateTransfer
		}
	}
	for _, t := range transfers {
		r.rows = append(r.rows, t)
		r.ids[t.TransactionID] = struct{}{}
	}
	return nil
}

func (r *memRepository) ExistingIDs(ctx context.Context, candidateIDs []string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lookups++
	found := make(map[string]struct{})
	for _, id := range candidateIDs {
		if _, ok := r.ids[id]; ok {
			found[id] = struct{}{}
		}
	}
	return found, nil
}

func (r *memRepository) AllRecords(ctx context.Context) ([]models.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Transfer, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

func (r *memRepository) Close() error { return nil }

func (r *memRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) SendRunCompleted(ctx context.Context, event models.RunCompletedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockProducer) Close() error {
	return m.Called().Error(0)
}

type MockRunJournal struct {
	mock.Mock
}

func (m *MockRunJournal) SaveRun(ctx context.Context, report *models.RunReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockRunJournal) GetRunByID(ctx context.Context, runID string) (*models.RunReport, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RunReport), args.Error(1)
}

func (m *MockRunJournal) Close() error {
	return m.Called().Error(0)
}

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) ProcessFile(ctx context.Context, log *slog.Logger, inputPath string, runAt time.Time) (*models.RunReport, error) {
	args := m.Called(ctx, log, inputPath, runAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RunReport), args.Error(1)
}

func (m *MockPipeline) GenerateSummary(ctx context.Context, log *slog.Logger, outputPath string) (*SummaryResult, error) {
	args := m.Called(ctx, log, outputPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SummaryResult), args.Error(1)
}
