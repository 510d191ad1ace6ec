package postgres

import (
	"context"
	"errors"
	"fmt"

	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// PgxPoolIface is the subset of *pgxpool.Pool used by the repository.
type PgxPoolIface interface {
	TxBeginner
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

type PgTransferRepository struct {
	db        PgxPoolIface
	txManager TxManager
}

func NewTransferRepository(db PgxPoolIface) *PgTransferRepository {
	return &PgTransferRepository{
		db:        db,
		txManager: NewPgxTxManager(db),
	}
}

// AppendBatch copies the transfers in a single transaction: either the whole
// batch lands or none of it does.
func (r *PgTransferRepository) AppendBatch(ctx context.Context, transfers []models.Transfer) error {
	const op = "storage.AppendBatch"

	if len(transfers) == 0 {
		return nil
	}

	err := r.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		copied, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{storage.TransfersTable},
			storage.TransferColumns,
			pgx.CopyFromSlice(len(transfers), func(i int) ([]any, error) {
				t := transfers[i]
				return []any{
					t.SenderID,
					t.SenderName,
					t.TransactionID,
					t.ReceiverID,
					t.ReceiverName,
					t.BankCode,
					t.BankName,
					toNumeric(t.Amount),
					t.Currency,
					t.Date,
				}, nil
			}),
		)
		if err != nil {
			return err
		}
		if int(copied) != len(transfers) {
			return fmt.Errorf("copied %d of %d rows", copied, len(transfers))
		}
		return nil
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, custom_err.ErrDuplicateTransfer)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PgTransferRepository) ExistingIDs(ctx context.Context, candidateIDs []string) (map[string]struct{}, error) {
	const op = "storage.ExistingIDs"

	found := make(map[string]struct{})
	if len(candidateIDs) == 0 {
		return found, nil
	}

	rows, err := r.db.Query(ctx, storage.ExistingTransactionIDsQuery, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return found, nil
}

func (r *PgTransferRepository) AllRecords(ctx context.Context) ([]models.Transfer, error) {
	const op = "storage.AllRecords"

	rows, err := r.db.Query(ctx, storage.AllTransfersQuery)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var (
			t      models.Transfer
			amount string
		)
		err := rows.Scan(
			&t.SenderID,
			&t.SenderName,
			&t.TransactionID,
			&t.ReceiverID,
			&t.ReceiverName,
			&t.BankCode,
			&t.BankName,
			&amount,
			&t.Currency,
			&t.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan error: %w", op, err)
		}

		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("%s: bad amount %q for %s: %w", op, amount, t.TransactionID, err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return transfers, nil
}

func (r *PgTransferRepository) Close() error {
	r.db.Close()
	return nil
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
