package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gw-transfer-batch/internal/models"
)

const rejectionTimestampLayout = "20060102150405"

// RejectionFileName returns the name of the rejection file for a run started at runAt.
func RejectionFileName(runAt time.Time) string {
	return "rejected." + runAt.Format(rejectionTimestampLayout) + ".csv"
}

// MergeRejections joins rejection groups into one sequence ordered by input line.
// Entries on the same line keep the order of their groups.
func MergeRejections(groups ...[]models.RejectionEntry) []models.RejectionEntry {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	merged := make([]models.RejectionEntry, 0, n)
	for _, g := range groups {
		merged = append(merged, g...)
	}
	slices.SortStableFunc(merged, func(a, b models.RejectionEntry) int {
		return a.Line - b.Line
	})
	return merged
}

type RejectionReporter struct {
	delimiter    rune
	reasonColumn bool
}

// NewRejectionReporter writes rows with the input delimiter. With reasonColumn
// an 11th column carries the rejection reason.
func NewRejectionReporter(delimiter rune, reasonColumn bool) *RejectionReporter {
	return &RejectionReporter{delimiter: delimiter, reasonColumn: reasonColumn}
}

// Write creates a new rejection file in dir. It returns an empty path and no
// error when there is nothing to write.
func (r *RejectionReporter) Write(dir string, runAt time.Time, entries []models.RejectionEntry) (string, error) {
	const op = "service.RejectionReporter.Write"

	if len(entries) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	path, file, err := createRejectionFile(dir, runAt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	w := csv.NewWriter(file)
	w.Comma = r.delimiter
	for _, e := range entries {
		fields := e.Raw.Fields()
		if r.reasonColumn {
			fields = append(fields, FormatReason(e))
		}
		if err := w.Write(fields); err != nil {
			file.Close()
			return "", fmt.Errorf("%s: line %d: %w", op, e.Line, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return path, nil
}

// maxRejectionFiles bounds the runs sharing one timestamp in a directory.
const maxRejectionFiles = 1000

// createRejectionFile never reuses an existing file: a second run within the
// same second gets rejected.<ts>.1.csv, then .2 and so on.
func createRejectionFile(dir string, runAt time.Time) (string, *os.File, error) {
	name := RejectionFileName(runAt)
	base := strings.TrimSuffix(name, ".csv")

	for i := 0; i < maxRejectionFiles; i++ {
		if i > 0 {
			name = fmt.Sprintf("%s.%d.csv", base, i)
		}
		path := filepath.Join(dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return path, file, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", nil, err
		}
	}
	return "", nil, fmt.Errorf("no free rejection file name for %s", base)
}

// FormatReason renders the reason of an entry, failed rules included.
func FormatReason(e models.RejectionEntry) string {
	if len(e.Rules) == 0 {
		return string(e.Reason)
	}
	return string(e.Reason) + ":" + strings.Join(e.Rules, "|")
}
