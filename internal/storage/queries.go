package storage

const TransfersTable = "transfers"

// TransferColumns is the column order used by AppendBatch.
var TransferColumns = []string{
	"sender_id",
	"sender_name",
	"transaction_id",
	"receiver_id",
	"receiver_name",
	"bank_code",
	"bank_name",
	"amount",
	"currency",
	"transferred_at",
}

const (
	// Existing transaction ids among a candidate set, one round trip.
	ExistingTransactionIDsQuery = `
		SELECT transaction_id
		FROM transfers
		WHERE transaction_id = ANY($1)
	`

	// amount is read as text to keep it exact.
	AllTransfersQuery = `
		SELECT sender_id, sender_name, transaction_id, receiver_id, receiver_name,
		       bank_code, bank_name, amount::text, currency, transferred_at
		FROM transfers
		ORDER BY id
	`
)
