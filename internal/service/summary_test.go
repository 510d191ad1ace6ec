package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func transfer(txID, receiverID, receiverName, bank, currency, amount string) models.Transfer {
	return models.Transfer{
		TransactionID: txID,
		ReceiverID:    receiverID,
		ReceiverName:  receiverName,
		BankName:      bank,
		Currency:      currency,
		Amount:        decimal.RequireFromString(amount),
	}
}

func TestAggregate_ExactDecimalSum(t *testing.T) {
	lines := Aggregate([]models.Transfer{
		transfer("1", "R1", "Luis", "Banco Uno", "CLP", "10.10"),
		transfer("2", "R1", "Luis", "Banco Uno", "CLP", "0.05"),
		transfer("3", "R1", "Luis", "Banco Uno", "CLP", "100.00"),
	})

	require.Len(t, lines, 1)
	assert.True(t, decimal.RequireFromString("110.15").Equal(lines[0].Total), lines[0].Total.String())
	assert.Equal(t, "110.15", FormatAmount(lines[0].Total))
}

func TestAggregate_ManySmallAmountsDoNotDrift(t *testing.T) {
	var transfers []models.Transfer
	for i := 0; i < 10000; i++ {
		transfers = append(transfers, transfer("x", "R1", "Luis", "B", "USD", "0.01"))
	}

	lines := Aggregate(transfers)
	require.Len(t, lines, 1)
	assert.Equal(t, "100.00", FormatAmount(lines[0].Total))
}

func TestAggregate_GroupsAndOrders(t *testing.T) {
	lines := Aggregate([]models.Transfer{
		transfer("1", "R2", "Eva", "Banco Zeta", "CLP", "5"),
		transfer("2", "R1", "Luis", "Banco Alfa", "USD", "1"),
		transfer("3", "R1", "Luis", "Banco Alfa", "CLP", "2"),
		transfer("4", "R3", "Ana", "Banco Alfa", "CLP", "3"),
		transfer("5", "R1", "Luis", "Banco Alfa", "CLP", "4"),
		transfer("6", "R1", "Luis B", "Banco Alfa", "CLP", "7"),
	})

	require.Len(t, lines, 5)

	type key struct{ bank, currency, receiver, name, total string }
	var got []key
	for _, l := range lines {
		got = append(got, key{l.BankName, l.Currency, l.ReceiverID, l.ReceiverName, l.Total.String()})
	}
	assert.Equal(t, []key{
		{"Banco Alfa", "CLP", "R1", "Luis", "6"},
		{"Banco Alfa", "CLP", "R1", "Luis B", "7"},
		{"Banco Alfa", "CLP", "R3", "Ana", "3"},
		{"Banco Alfa", "USD", "R1", "Luis", "1"},
		{"Banco Zeta", "CLP", "R2", "Eva", "5"},
	}, got)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100.00", FormatAmount(decimal.RequireFromString("100")))
	assert.Equal(t, "10.50", FormatAmount(decimal.RequireFromString("10.5")))
	assert.Equal(t, "1.50", FormatAmount(decimal.RequireFromString("1.500")))
	assert.Equal(t, "0.125", FormatAmount(decimal.RequireFromString("0.125")))
}

func TestSummaryAggregator_Generate(t *testing.T) {
	repo := newMemRepository(
		transfer("1", "R1", "Luis", "Banco Uno", "CLP", "10.10"),
		transfer("2", "R1", "Luis", "Banco Uno", "CLP", "0.05"),
		transfer("3", "R2", "Eva", "Banco Dos", "USD", "20"),
	)
	path := filepath.Join(t.TempDir(), "out", "summary.20250709.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale content that must disappear\n"), 0o644))

	res, err := NewSummaryAggregator(repo, ',').Generate(context.Background(), logger.Discard(), path)
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Len(t, res.Lines, 2)

	records := readCSV(t, path, ',')
	assert.Equal(t, [][]string{
		{"receiver_id", "receiver_name", "bank_name", "total_amount", "currency"},
		{"R2", "Eva", "Banco Dos", "20.00", "USD"},
		{"R1", "Luis", "Banco Uno", "10.15", "CLP"},
	}, records)
}

func TestSummaryAggregator_EmptyStoreWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")

	res, err := NewSummaryAggregator(newMemRepository(), ',').Generate(context.Background(), logger.Discard(), path)
	require.NoError(t, err)
	assert.Empty(t, res.Lines)

	records := readCSV(t, path, ',')
	require.Len(t, records, 1)
	assert.Equal(t, "receiver_id", records[0][0])
}

func TestSummaryAggregator_ReadError(t *testing.T) {
	repo := new(MockTransferRepository)
	repo.On("AllRecords", mock.Anything).Return(nil, errors.New("timeout"))
	path := filepath.Join(t.TempDir(), "summary.csv")

	_, err := NewSummaryAggregator(repo, ',').Generate(context.Background(), logger.Discard(), path)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSummaryFileName(t *testing.T) {
	assert.Equal(t, "summary.20250709.csv", SummaryFileName(runAt))
}
