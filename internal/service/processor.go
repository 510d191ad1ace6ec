package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/internal/storage"
)

type Pipeline interface {
	ProcessFile(ctx context.Context, log *slog.Logger, inputPath string, runAt time.Time) (*models.RunReport, error)
	GenerateSummary(ctx context.Context, log *slog.Logger, outputPath string) (*SummaryResult, error)
}

type ProcessorConfig struct {
	Delimiter    rune
	RejectionDir string
	ChunkSize    int
	Parallelism  int
	ReasonColumn bool
}

type Processor struct {
	delimiter    rune
	rejectionDir string

	dedup      *Deduplicator
	committer  *CommitExecutor
	reporter   *RejectionReporter
	aggregator *SummaryAggregator
}

func NewProcessor(repo storage.TransferRepository, cfg ProcessorConfig) *Processor {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	return &Processor{
		delimiter:    cfg.Delimiter,
		rejectionDir: cfg.RejectionDir,
		dedup:        NewDeduplicator(repo),
		committer:    NewCommitExecutor(repo, cfg.ChunkSize, cfg.Parallelism),
		reporter:     NewRejectionReporter(cfg.Delimiter, cfg.ReasonColumn),
		aggregator:   NewSummaryAggregator(repo, cfg.Delimiter),
	}
}

func (p *Processor) Parallelism() int { return p.committer.Parallelism() }

// ProcessFile runs decode, validation, dedup, commit and rejection reporting
// for one input file. The returned report is filled as far as the run got,
// also when an error is returned.
func (p *Processor) ProcessFile(ctx context.Context, log *slog.Logger, inputPath string, runAt time.Time) (*models.RunReport, error) {
	const op = "service.ProcessFile"

	report := &models.RunReport{InputPath: inputPath}

	rows, err := DecodeFile(inputPath, p.delimiter)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	report.Decoded = len(rows)
	log.Info("rows decoded", slog.String("op", op), slog.Int("decoded", report.Decoded))

	valid, invalid := Validate(rows)
	report.Valid = len(valid)
	report.Invalid = len(invalid)
	log.Info("rows validated",
		slog.String("op", op),
		slog.Int("valid", report.Valid),
		slog.Int("invalid", report.Invalid))
	for _, e := range invalid {
		log.Debug("invalid row",
			slog.Int("line", e.Line),
			slog.String("transaction_id", e.Raw.TransactionID()),
			slog.Any("rules", e.Rules))
	}

	dedup, err := p.dedup.Deduplicate(ctx, valid)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	report.FileDuplicates = len(dedup.FileDuplicates)
	report.StoreDuplicates = len(dedup.StoreDuplicates)
	log.Info("duplicates removed",
		slog.String("op", op),
		slog.Int("file_duplicates", report.FileDuplicates),
		slog.Int("store_duplicates", report.StoreDuplicates),
		slog.Int("to_commit", len(dedup.Unique)))

	commit := p.committer.Commit(ctx, log, dedup.Transfers())
	report.Committed = commit.Committed
	report.ChunksTotal = len(commit.Chunks)
	report.ChunksFailed = commit.FailedChunks()
	report.FailedRecords = commit.FailedRecords
	if err := commit.Err(); err != nil {
		report.Error = err.Error()
	}

	rejections := MergeRejections(invalid, dedup.FileDuplicates, dedup.StoreDuplicates)
	report.Rejected = len(rejections)

	path, err := p.reporter.Write(p.rejectionDir, runAt, rejections)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	report.RejectionPath = path
	if path == "" {
		log.Info("no rejected rows, rejection file not created", slog.String("op", op))
	} else {
		log.Info("rejection file written",
			slog.String("op", op),
			slog.String("path", path),
			slog.Int("rejected", report.Rejected))
	}

	return report, nil
}

func (p *Processor) GenerateSummary(ctx context.Context, log *slog.Logger, outputPath string) (*SummaryResult, error) {
	return p.aggregator.Generate(ctx, log, outputPath)
}
