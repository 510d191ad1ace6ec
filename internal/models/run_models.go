package models

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// ChunkResult is the outcome of committing one chunk.
type ChunkResult struct {
	Index int
	Size  int
	Err   error
}

// CommitResult collects every chunk outcome of one commit.
type CommitResult struct {
	// Skipped is set when there was nothing to commit.
	Skipped       bool
	Chunks        []ChunkResult
	Committed     int
	FailedRecords int
}

func (r *CommitResult) FailedChunks() int {
	n := 0
	for _, c := range r.Chunks {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Err combines the errors of all failed chunks, nil when every chunk succeeded.
func (r *CommitResult) Err() error {
	var err error
	for _, c := range r.Chunks {
		if c.Err != nil {
			err = multierr.Append(err, fmt.Errorf("chunk %d (%d records): %w", c.Index, c.Size, c.Err))
		}
	}
	return err
}

type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// RunReport is the log trail of one pipeline run.
type RunReport struct {
	RunID         string `json:"run_id" bson:"run_id"`
	InputPath     string `json:"input_path" bson:"input_path"`
	SummaryPath   string `json:"summary_path,omitempty" bson:"summary_path,omitempty"`
	RejectionPath string `json:"rejection_path,omitempty" bson:"rejection_path,omitempty"`
	LogPath       string `json:"log_path,omitempty" bson:"log_path,omitempty"`

	StartedAt  time.Time `json:"started_at" bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" bson:"finished_at"`
	DurationMS int64     `json:"duration_ms" bson:"duration_ms"`

	Decoded         int `json:"decoded" bson:"decoded"`
	Valid           int `json:"valid" bson:"valid"`
	Invalid         int `json:"invalid" bson:"invalid"`
	FileDuplicates  int `json:"file_duplicates" bson:"file_duplicates"`
	StoreDuplicates int `json:"store_duplicates" bson:"store_duplicates"`
	Committed       int `json:"committed" bson:"committed"`
	Rejected        int `json:"rejected" bson:"rejected"`

	ChunksTotal   int `json:"chunks_total" bson:"chunks_total"`
	ChunksFailed  int `json:"chunks_failed" bson:"chunks_failed"`
	FailedRecords int `json:"failed_records" bson:"failed_records"`
	SummaryLines  int `json:"summary_lines" bson:"summary_lines"`

	Status RunStatus `json:"status" bson:"status"`
	Error  string    `json:"error,omitempty" bson:"error,omitempty"`
}
