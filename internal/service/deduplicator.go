package service

import (
	"context"
	"fmt"

	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/internal/storage"
)

type DedupResult struct {
	Unique          []models.ValidRecord
	FileDuplicates  []models.RejectionEntry
	StoreDuplicates []models.RejectionEntry
}

// Transfers returns the records left to commit, in input order.
func (r *DedupResult) Transfers() []models.Transfer {
	out := make([]models.Transfer, len(r.Unique))
	for i, rec := range r.Unique {
		out[i] = rec.Transfer
	}
	return out
}

type Deduplicator struct {
	repo storage.TransferRepository
}

func NewDeduplicator(repo storage.TransferRepository) *Deduplicator {
	return &Deduplicator{repo: repo}
}

// Deduplicate drops repeated transaction ids inside the file (first wins),
// then drops ids the store already holds, using one batched lookup.
func (d *Deduplicator) Deduplicate(ctx context.Context, records []models.ValidRecord) (*DedupResult, error) {
	const op = "service.Deduplicate"

	kept, fileDups := RemoveFileDuplicates(records)
	res := &DedupResult{FileDuplicates: fileDups}

	if len(kept) == 0 {
		res.Unique = kept
		return res, nil
	}

	ids := make([]string, len(kept))
	for i, rec := range kept {
		ids[i] = rec.Transfer.TransactionID
	}

	existing, err := d.repo.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res.Unique = make([]models.ValidRecord, 0, len(kept))
	for _, rec := range kept {
		if _, ok := existing[rec.Transfer.TransactionID]; ok {
			res.StoreDuplicates = append(res.StoreDuplicates, models.RejectionEntry{
				Line:   rec.Line,
				Raw:    rec.Raw,
				Reason: models.RejectionAlreadyPersisted,
			})
			continue
		}
		res.Unique = append(res.Unique, rec)
	}

	return res, nil
}

// RemoveFileDuplicates keeps the first record of every transaction id.
func RemoveFileDuplicates(records []models.ValidRecord) ([]models.ValidRecord, []models.RejectionEntry) {
	seen := make(map[string]struct{}, len(records))
	kept := make([]models.ValidRecord, 0, len(records))
	var dups []models.RejectionEntry

	for _, rec := range records {
		id := rec.Transfer.TransactionID
		if _, ok := seen[id]; ok {
			dups = append(dups, models.RejectionEntry{
				Line:   rec.Line,
				Raw:    rec.Raw,
				Reason: models.RejectionFileDuplicate,
			})
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, rec)
	}

	return kept, dups
}
