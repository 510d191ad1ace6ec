package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/internal/storage"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLite caps bound parameters per statement; ExistingIDs splits larger sets.
const maxIDsPerQuery = 500

// TransferRecord is the gorm mapping of the transfers table.
type TransferRecord struct {
	ID            uint            `gorm:"primaryKey"`
	SenderID      string          `gorm:"not null"`
	SenderName    string          `gorm:"not null"`
	TransactionID string          `gorm:"not null;uniqueIndex"`
	ReceiverID    string          `gorm:"not null"`
	ReceiverName  string          `gorm:"not null"`
	BankCode      string          `gorm:"not null"`
	BankName      string          `gorm:"not null"`
	Amount        decimal.Decimal `gorm:"type:text;not null"`
	Currency      string          `gorm:"not null"`
	TransferredAt time.Time       `gorm:"not null"`
	CreatedAt     time.Time
}

func (TransferRecord) TableName() string {
	return storage.TransfersTable
}

type TransferRepository struct {
	db *gorm.DB
}

// NewTransferRepository opens (and migrates) a SQLite database at path.
func NewTransferRepository(path string) (*TransferRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	// one writer at a time, concurrent chunks queue on the pool
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&TransferRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &TransferRepository{db: db}, nil
}

func (r *TransferRepository) AppendBatch(ctx context.Context, transfers []models.Transfer) error {
	const op = "sqlite.AppendBatch"

	if len(transfers) == 0 {
		return nil
	}

	records := make([]TransferRecord, len(transfers))
	for i, t := range transfers {
		records[i] = toRecord(t)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%s: %w", op, custom_err.ErrDuplicateTransfer)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *TransferRepository) ExistingIDs(ctx context.Context, candidateIDs []string) (map[string]struct{}, error) {
	const op = "sqlite.ExistingIDs"

	found := make(map[string]struct{})
	for start := 0; start < len(candidateIDs); start += maxIDsPerQuery {
		end := min(start+maxIDsPerQuery, len(candidateIDs))

		var ids []string
		err := r.db.WithContext(ctx).
			Model(&TransferRecord{}).
			Where("transaction_id IN ?", candidateIDs[start:end]).
			Pluck("transaction_id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, id := range ids {
			found[id] = struct{}{}
		}
	}

	return found, nil
}

func (r *TransferRepository) AllRecords(ctx context.Context) ([]models.Transfer, error) {
	const op = "sqlite.AllRecords"

	var records []TransferRecord
	if err := r.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transfers := make([]models.Transfer, len(records))
	for i, rec := range records {
		transfers[i] = fromRecord(rec)
	}
	return transfers, nil
}

func (r *TransferRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(t models.Transfer) TransferRecord {
	return TransferRecord{
		SenderID:      t.SenderID,
		SenderName:    t.SenderName,
		TransactionID: t.TransactionID,
		ReceiverID:    t.ReceiverID,
		ReceiverName:  t.ReceiverName,
		BankCode:      t.BankCode,
		BankName:      t.BankName,
		Amount:        t.Amount,
		Currency:      t.Currency,
		TransferredAt: t.Date,
	}
}

func fromRecord(r TransferRecord) models.Transfer {
	return models.Transfer{
		SenderID:      r.SenderID,
		SenderName:    r.SenderName,
		TransactionID: r.TransactionID,
		ReceiverID:    r.ReceiverID,
		ReceiverName:  r.ReceiverName,
		BankCode:      r.BankCode,
		BankName:      r.BankName,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Date:          r.TransferredAt.UTC(),
	}
}
