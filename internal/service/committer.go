package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/internal/storage"

	"golang.org/x/sync/errgroup"
)

const DefaultChunkSize = 100

type CommitExecutor struct {
	repo        storage.TransferRepository
	chunkSize   int
	parallelism int
}

// NewCommitExecutor falls back to DefaultChunkSize and runtime.NumCPU for
// non-positive arguments.
func NewCommitExecutor(repo storage.TransferRepository, chunkSize, parallelism int) *CommitExecutor {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	if parallelism < 1 {
		parallelism = runtime.NumCPU()
	}
	return &CommitExecutor{
		repo:        repo,
		chunkSize:   chunkSize,
		parallelism: parallelism,
	}
}

func (e *CommitExecutor) Parallelism() int { return e.parallelism }

// Commit appends every chunk independently and waits for all of them. A
// failed chunk is recorded in the result and never stops the others.
func (e *CommitExecutor) Commit(ctx context.Context, log *slog.Logger, transfers []models.Transfer) *models.CommitResult {
	const op = "service.Commit"

	if len(transfers) == 0 {
		log.Info("no valid records to commit, store untouched", slog.String("op", op))
		return &models.CommitResult{Skipped: true}
	}

	chunks := Chunk(transfers, e.chunkSize)
	results := make([]models.ChunkResult, len(chunks))

	log.Info("committing chunks",
		slog.String("op", op),
		slog.Int("records", len(transfers)),
		slog.Int("chunks", len(chunks)),
		slog.Int("chunk_size", e.chunkSize),
		slog.Int("parallelism", e.parallelism))

	var g errgroup.Group
	g.SetLimit(e.parallelism)

	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = models.ChunkResult{Index: i, Size: len(chunk), Err: e.commitChunk(ctx, chunk)}
			return nil
		})
	}
	_ = g.Wait()

	res := &models.CommitResult{Chunks: results}
	for _, r := range results {
		if r.Err != nil {
			res.FailedRecords += r.Size
			log.Error("chunk commit failed",
				slog.String("op", op),
				slog.Int("chunk", r.Index),
				slog.Int("size", r.Size),
				slog.String("error", r.Err.Error()))
			continue
		}
		res.Committed += r.Size
	}

	log.Info("commit finished",
		slog.String("op", op),
		slog.Int("committed", res.Committed),
		slog.Int("chunks_failed", res.FailedChunks()),
		slog.Int("failed_records", res.FailedRecords))

	return res
}

func (e *CommitExecutor) commitChunk(ctx context.Context, chunk []models.Transfer) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during append: %v", p)
		}
	}()
	return e.repo.AppendBatch(ctx, chunk)
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
