package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/internal/kafka"
	"gw-transfer-batch/internal/models"
	"gw-transfer-batch/internal/storage"
	"gw-transfer-batch/pkg/logger"

	"github.com/google/uuid"
)

const defaultNotifyTimeout = 5 * time.Second

type RunRequest struct {
	InputPath   string `json:"input_path,omitempty"`
	SummaryPath string `json:"summary_path,omitempty"`
}

type Runner interface {
	Run(ctx context.Context, req RunRequest) (*models.RunReport, error)
	GetRun(ctx context.Context, runID string) (*models.RunReport, error)
}

type RunnerConfig struct {
	DataDir      string
	DefaultInput string
	LogDir       string
	// Location is used for file name timestamps. Defaults to time.Local.
	Location      *time.Location
	NotifyTimeout time.Duration
	Now           func() time.Time
	Parallelism   int
}

// BatchRunner executes one full pipeline run at a time.
type BatchRunner struct {
	pipeline Pipeline
	producer kafka.Producer
	journal  storage.RunJournal
	log      *slog.Logger
	cfg      RunnerConfig

	mu sync.Mutex
}

func NewBatchRunner(
	pipeline Pipeline,
	producer kafka.Producer,
	journal storage.RunJournal,
	log *slog.Logger,
	cfg RunnerConfig,
) *BatchRunner {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &BatchRunner{
		pipeline: pipeline,
		producer: producer,
		journal:  journal,
		log:      log,
		cfg:      cfg,
	}
}

// Run processes the input file and regenerates the summary. Empty request
// fields fall back to the configured defaults. A run already in progress
// makes Run fail fast with ErrRunInProgress.
func (r *BatchRunner) Run(ctx context.Context, req RunRequest) (*models.RunReport, error) {
	const op = "service.BatchRunner.Run"

	requestedInput, err := resolveDataPath(r.cfg.DataDir, req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("%s: input: %w", op, err)
	}
	requestedSummary, err := resolveDataPath(r.cfg.DataDir, req.SummaryPath)
	if err != nil {
		return nil, fmt.Errorf("%s: summary: %w", op, err)
	}

	if !r.mu.TryLock() {
		return nil, custom_err.ErrRunInProgress
	}
	defer r.mu.Unlock()

	startedAt := r.now()
	runID := uuid.NewString()
	inputPath := cmp.Or(requestedInput, r.cfg.DefaultInput)
	summaryPath := cmp.Or(requestedSummary, filepath.Join(r.cfg.DataDir, SummaryFileName(startedAt)))

	logPath := filepath.Join(r.cfg.LogDir, "run."+startedAt.Format(rejectionTimestampLayout)+".log")
	runLog := r.log
	if fileLog, err := logger.NewRunLogger(r.log, logPath); err != nil {
		r.log.Warn("run log file unavailable, using process log only",
			slog.String("op", op),
			slog.String("error", err.Error()))
		logPath = ""
	} else {
		defer fileLog.Close()
		runLog = fileLog.Logger
	}
	runLog = runLog.With(slog.String("run_id", runID))

	runLog.Info("batch run started",
		slog.String("op", op),
		slog.String("input", inputPath),
		slog.String("summary", summaryPath),
		slog.Int("parallelism", r.cfg.Parallelism),
		slog.Time("started_at", startedAt))

	stopwatch := time.Now()
	report, runErr := r.execute(ctx, runLog, inputPath, summaryPath, startedAt)

	report.RunID = runID
	report.InputPath = inputPath
	report.LogPath = logPath
	report.StartedAt = startedAt
	report.FinishedAt = r.now()
	report.DurationMS = time.Since(stopwatch).Milliseconds()

	switch {
	case runErr != nil:
		report.Status = models.RunStatusFailed
		report.Error = runErr.Error()
		runLog.Error("batch run failed",
			slog.String("op", op),
			slog.String("error", runErr.Error()))
		if path, err := r.writeFailureRecord(report.FinishedAt, runErr); err != nil {
			runLog.Error("failed to write failure record", slog.String("error", err.Error()))
		} else {
			runLog.Info("failure record written", slog.String("path", path))
		}
	case report.ChunksFailed > 0:
		report.Status = models.RunStatusPartial
	default:
		report.Status = models.RunStatusSucceeded
	}

	runLog.Info("batch run finished",
		slog.String("op", op),
		slog.String("status", string(report.Status)),
		slog.Time("finished_at", report.FinishedAt),
		slog.Int64("duration_ms", report.DurationMS),
		slog.Int("decoded", report.Decoded),
		slog.Int("valid", report.Valid),
		slog.Int("invalid", report.Invalid),
		slog.Int("file_duplicates", report.FileDuplicates),
		slog.Int("store_duplicates", report.StoreDuplicates),
		slog.Int("committed", report.Committed),
		slog.Int("rejected", report.Rejected),
		slog.Int("chunks_failed", report.ChunksFailed))

	r.notify(ctx, runLog, report)

	if runErr != nil {
		return report, fmt.Errorf("%s: %w", op, runErr)
	}
	return report, nil
}

func (r *BatchRunner) GetRun(ctx context.Context, runID string) (*models.RunReport, error) {
	const op = "service.BatchRunner.GetRun"

	report, err := r.journal.GetRunByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return report, nil
}

func (r *BatchRunner) execute(ctx context.Context, log *slog.Logger, inputPath, summaryPath string, startedAt time.Time) (report *models.RunReport, err error) {
	report = &models.RunReport{}

	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p, stack: debug.Stack()}
		}
	}()

	processed, err := r.pipeline.ProcessFile(ctx, log, inputPath, startedAt)
	if processed != nil {
		report = processed
	}
	if err != nil {
		return report, err
	}

	summary, err := r.pipeline.GenerateSummary(ctx, log, summaryPath)
	if err != nil {
		return report, err
	}
	report.SummaryPath = summary.Path
	report.SummaryLines = len(summary.Lines)

	return report, nil
}

// notify publishes the run event and journals the report. Both are best effort.
func (r *BatchRunner) notify(ctx context.Context, log *slog.Logger, report *models.RunReport) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.NotifyTimeout)
	defer cancel()

	if err := r.producer.SendRunCompleted(ctx, models.NewRunCompletedEvent(report)); err != nil {
		log.Warn("failed to publish run event", slog.String("error", err.Error()))
	}
	if err := r.journal.SaveRun(ctx, report); err != nil {
		log.Warn("failed to journal run report", slog.String("error", err.Error()))
	}
}

func (r *BatchRunner) writeFailureRecord(at time.Time, runErr error) (string, error) {
	if err := os.MkdirAll(r.cfg.LogDir, 0o755); err != nil {
		return "", err
	}

	stack := debug.Stack()
	var pe *panicError
	if errors.As(runErr, &pe) {
		stack = pe.stack
	}

	path := filepath.Join(r.cfg.LogDir, "run."+at.Format(rejectionTimestampLayout)+".FAILED.log")
	content := fmt.Sprintf("FATAL ERROR: %s\n%s", runErr.Error(), stack)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (r *BatchRunner) now() time.Time {
	return r.cfg.Now().In(r.cfg.Location)
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// resolveDataPath confines a requested path to dataDir. Relative paths are
// taken from dataDir; an empty path stays empty.
func resolveDataPath(dataDir, path string) (string, error) {
	if path == "" {
		return "", nil
	}

	base, err := filepath.Abs(dataDir)
	if err != nil {
		return "", fmt.Errorf("data dir %q: %w", dataDir, err)
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", path, custom_err.ErrPathOutsideData)
	}
	return target, nil
}
