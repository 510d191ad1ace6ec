package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column positions of the headerless input file. The order is the schema.
const (
	ColSenderID = iota
	ColSenderName
	ColTransactionID
	ColReceiverID
	ColReceiverName
	ColBankCode
	ColBankName
	ColAmount
	ColCurrency
	ColDate

	ColumnCount
)

// DateLayout is the only accepted format of the date column (DD/MM/YYYY).
const DateLayout = "02/01/2006"

// RawRow is one input line in its original positional form.
type RawRow [ColumnCount]string

// TransactionID returns the dedup key of the row.
func (r RawRow) TransactionID() string {
	return strings.TrimSpace(r[ColTransactionID])
}

// Fields returns the row as a slice, ready for csv.Writer.
func (r RawRow) Fields() []string {
	out := make([]string, ColumnCount)
	copy(out, r[:])
	return out
}

// DecodedRow is a RawRow plus what the decoder could type up front.
// Malformed marks a line that could not be read as CSV.
type DecodedRow struct {
	Line       int
	Raw        RawRow
	Date       time.Time
	DateParsed bool
	Malformed  bool
}

// Transfer is the validated, typed form of a row.
type Transfer struct {
	SenderID      string          `json:"sender_id" db:"sender_id"`
	SenderName    string          `json:"sender_name" db:"sender_name"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	ReceiverID    string          `json:"receiver_id" db:"receiver_id"`
	ReceiverName  string          `json:"receiver_name" db:"receiver_name"`
	BankCode      string          `json:"bank_code" db:"bank_code"`
	BankName      string          `json:"bank_name" db:"bank_name"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	Date          time.Time       `json:"date" db:"transferred_at"`
}

// ValidRecord keeps a typed transfer next to the row it came from, so
// rejections can be written back in their original form.
type ValidRecord struct {
	Line     int
	Raw      RawRow
	Transfer Transfer
}

type RejectionReason string

const (
	RejectionInvalid          RejectionReason = "invalid"
	RejectionFileDuplicate    RejectionReason = "file_duplicate"
	RejectionAlreadyPersisted RejectionReason = "already_persisted"
)

// RejectionEntry is a row excluded from commit.
type RejectionEntry struct {
	Line   int
	Raw    RawRow
	Reason RejectionReason
	// Rules lists the failed validation rules, only set for invalid rows.
	Rules []string
}

// SummaryLine aggregates persisted transfers sharing receiver, bank and currency.
type SummaryLine struct {
	ReceiverID   string          `json:"receiver_id"`
	ReceiverName string          `json:"receiver_name"`
	BankName     string          `json:"bank_name"`
	Currency     string          `json:"currency"`
	Total        decimal.Decimal `json:"total_amount"`
}
