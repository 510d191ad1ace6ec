package storage

import (
	"context"
	"log/slog"

	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/internal/models"
)

// NopRunJournal is used when no journal backend is configured.
type NopRunJournal struct {
	log *slog.Logger
}

func NewNopRunJournal(log *slog.Logger) RunJournal {
	return &NopRunJournal{log: log}
}

func (j *NopRunJournal) SaveRun(ctx context.Context, report *models.RunReport) error {
	j.log.Debug("run journal disabled, report not stored", slog.String("run_id", report.RunID))
	return nil
}

func (j *NopRunJournal) GetRunByID(ctx context.Context, runID string) (*models.RunReport, error) {
	return nil, custom_err.ErrNotFound
}

func (j *NopRunJournal) Close() error {
	return nil
}
