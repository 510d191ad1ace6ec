package service

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/internal/models"
)

// ParseTransferDate parses the date column in DD/MM/YYYY, normalized to UTC midnight.
func ParseTransferDate(text string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", text, err)
	}
	return t.UTC(), nil
}

// DecodeFile loads the whole input file.
func DecodeFile(path string, delimiter rune) ([]models.DecodedRow, error) {
	const op = "service.DecodeFile"

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %s: %w", op, path, custom_err.ErrInputNotFound)
		}
		return nil, fmt.Errorf("%s: %s: %w: %v", op, path, custom_err.ErrInputUnreadable, err)
	}
	defer file.Close()

	return Decode(file, delimiter)
}

// maxLineSize bounds a single physical line.
const maxLineSize = 1 << 20

// Decode reads every physical line of a headerless file into one positional
// row. Short lines are padded with empty fields and surplus fields are
// dropped. A line whose quoting is broken is split verbatim on the delimiter
// and flagged Malformed; nothing short of an I/O failure aborts the read.
func Decode(r io.Reader, delimiter rune) ([]models.DecodedRow, error) {
	const op = "service.Decode"

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var rows []models.DecodedRow
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if text == "" {
			continue
		}

		fields, ok := parseLine(text, delimiter)

		var raw models.RawRow
		copy(raw[:], fields)

		row := models.DecodedRow{Line: line, Raw: raw, Malformed: !ok}
		if date, err := ParseTransferDate(raw[models.ColDate]); err == nil {
			row.Date = date
			row.DateParsed = true
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: line %d: %w: %v", op, line+1, custom_err.ErrInputUnreadable, err)
	}

	return rows, nil
}

// parseLine splits one line as CSV. ok is false when the quoting is broken, in
// which case the line is split on the bare delimiter.
func parseLine(text string, delimiter rune) ([]string, bool) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	record, err := reader.Read()
	if err != nil {
		return strings.Split(text, string(delimiter)), false
	}
	return record, true
}
