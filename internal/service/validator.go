package service

import (
	"strings"

	"gw-transfer-batch/internal/models"

	"github.com/shopspring/decimal"
)

// Validation rule names, reported on invalid rejections.
const (
	RuleSenderID      = "sender_id_blank"
	RuleSenderName    = "sender_name_blank"
	RuleTransactionID = "transaction_id_blank"
	RuleReceiverID    = "receiver_id_blank"
	RuleReceiverName  = "receiver_name_blank"
	RuleBankCode      = "bank_code_blank"
	RuleBankName      = "bank_name_blank"
	RuleAmount        = "amount_not_positive_decimal"
	RuleCurrency      = "currency_blank"
	RuleDate          = "date_unparsed"
	RuleMalformed     = "line_malformed"
)

var requiredText = []struct {
	col  int
	rule string
}{
	{models.ColSenderID, RuleSenderID},
	{models.ColSenderName, RuleSenderName},
	{models.ColTransactionID, RuleTransactionID},
	{models.ColReceiverID, RuleReceiverID},
	{models.ColReceiverName, RuleReceiverName},
	{models.ColBankCode, RuleBankCode},
	{models.ColBankName, RuleBankName},
	{models.ColCurrency, RuleCurrency},
}

// Validate partitions decoded rows into typed transfers and invalid rejections,
// keeping input order inside each partition.
func Validate(rows []models.DecodedRow) ([]models.ValidRecord, []models.RejectionEntry) {
	valid := make([]models.ValidRecord, 0, len(rows))
	var invalid []models.RejectionEntry

	for _, row := range rows {
		transfer, failed := validateRow(row)
		if len(failed) > 0 {
			invalid = append(invalid, models.RejectionEntry{
				Line:   row.Line,
				Raw:    row.Raw,
				Reason: models.RejectionInvalid,
				Rules:  failed,
			})
			continue
		}
		valid = append(valid, models.ValidRecord{Line: row.Line, Raw: row.Raw, Transfer: transfer})
	}

	return valid, invalid
}

func validateRow(row models.DecodedRow) (models.Transfer, []string) {
	var failed []string

	field := func(col int) string { return strings.TrimSpace(row.Raw[col]) }

	if row.Malformed {
		failed = append(failed, RuleMalformed)
	}

	for _, req := range requiredText {
		if field(req.col) == "" {
			failed = append(failed, req.rule)
		}
	}

	amount, err := decimal.NewFromString(field(models.ColAmount))
	if err != nil || !amount.IsPositive() {
		failed = append(failed, RuleAmount)
	}

	if !row.DateParsed {
		failed = append(failed, RuleDate)
	}

	if len(failed) > 0 {
		return models.Transfer{}, failed
	}

	return models.Transfer{
		SenderID:      field(models.ColSenderID),
		SenderName:    field(models.ColSenderName),
		TransactionID: field(models.ColTransactionID),
		ReceiverID:    field(models.ColReceiverID),
		ReceiverName:  field(models.ColReceiverName),
		BankCode:      field(models.ColBankCode),
		BankName:      field(models.ColBankName),
		Amount:        amount,
		Currency:      field(models.ColCurrency),
		Date:          row.Date,
	}, nil
}
