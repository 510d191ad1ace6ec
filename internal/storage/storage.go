package storage

import (
	"context"

	"gw-transfer-batch/internal/models"
)

// TransferRepository is everything the pipeline needs from the store.
// Implementations must tolerate concurrent AppendBatch calls from one run.
type TransferRepository interface {
	AppendBatch(ctx context.Context, transfers []models.Transfer) error
	ExistingIDs(ctx context.Context, candidateIDs []string) (map[string]struct{}, error)
	AllRecords(ctx context.Context) ([]models.Transfer, error)
	Close() error
}

// RunJournal keeps the report of every executed run.
type RunJournal interface {
	SaveRun(ctx context.Context, report *models.RunReport) error
	GetRunByID(ctx context.Context, runID string) (*models.RunReport, error)
	Close() error
}
