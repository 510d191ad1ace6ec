package service

import (
	"cmp"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/internal/storage"

	"github.com/shopspring/decimal"
)

const summaryDateLayout = "20060102"

var summaryHeader = []string{"receiver_id", "receiver_name", "bank_name", "total_amount", "currency"}

// SummaryFileName returns the default summary file name for the day of runAt.
func SummaryFileName(runAt time.Time) string {
	return "summary." + runAt.Format(summaryDateLayout) + ".csv"
}

type summaryKey struct {
	receiverID   string
	receiverName string
	bankName     string
	currency     string
}

// Aggregate groups transfers by receiver, bank and currency and sums their
// amounts. Lines are ordered by bank name and currency, then by receiver.
func Aggregate(transfers []models.Transfer) []models.SummaryLine {
	totals := make(map[summaryKey]decimal.Decimal)
	for _, t := range transfers {
		k := summaryKey{
			receiverID:   t.ReceiverID,
			receiverName: t.ReceiverName,
			bankName:     t.BankName,
			currency:     t.Currency,
		}
		totals[k] = totals[k].Add(t.Amount)
	}

	lines := make([]models.SummaryLine, 0, len(totals))
	for k, total := range totals {
		lines = append(lines, models.SummaryLine{
			ReceiverID:   k.receiverID,
			ReceiverName: k.receiverName,
			BankName:     k.bankName,
			Currency:     k.currency,
			Total:        total,
		})
	}

	slices.SortFunc(lines, func(a, b models.SummaryLine) int {
		return cmp.Or(
			cmp.Compare(a.BankName, b.BankName),
			cmp.Compare(a.Currency, b.Currency),
			cmp.Compare(a.ReceiverID, b.ReceiverID),
			cmp.Compare(a.ReceiverName, b.ReceiverName),
		)
	})
	return lines
}

type SummaryResult struct {
	Path  string
	Lines []models.SummaryLine
}

type SummaryAggregator struct {
	repo      storage.TransferRepository
	delimiter rune
}

func NewSummaryAggregator(repo storage.TransferRepository, delimiter rune) *SummaryAggregator {
	return &SummaryAggregator{repo: repo, delimiter: delimiter}
}

// Generate reads every persisted transfer and writes the summary to
// outputPath, replacing any previous file.
func (s *SummaryAggregator) Generate(ctx context.Context, log *slog.Logger, outputPath string) (*SummaryResult, error) {
	const op = "service.SummaryAggregator.Generate"

	transfers, err := s.repo.AllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lines := Aggregate(transfers)
	if err := s.write(outputPath, lines); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("summary file generated",
		slog.String("op", op),
		slog.String("path", outputPath),
		slog.Int("persisted_records", len(transfers)),
		slog.Int("lines", len(lines)))

	return &SummaryResult{Path: outputPath, Lines: lines}, nil
}

func (s *SummaryAggregator) write(path string, lines []models.SummaryLine) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(file)
	w.Comma = s.delimiter
	records := make([][]string, 0, len(lines)+1)
	records = append(records, summaryHeader)
	for _, l := range lines {
		records = append(records, []string{l.ReceiverID, l.ReceiverName, l.BankName, FormatAmount(l.Total), l.Currency})
	}
	if err := w.WriteAll(records); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// FormatAmount prints at least two decimal places and never rounds.
func FormatAmount(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}
