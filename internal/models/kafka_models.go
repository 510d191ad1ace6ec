package models

import "time"

// RunCompletedEvent is published after every batch run, successful or not.
type RunCompletedEvent struct {
	RunID           string    `json:"run_id"`
	Status          RunStatus `json:"status"`
	InputPath       string    `json:"input_path"`
	SummaryPath     string    `json:"summary_path,omitempty"`
	RejectionPath   string    `json:"rejection_path,omitempty"`
	Committed       int       `json:"committed"`
	Rejected        int       `json:"rejected"`
	StoreDuplicates int       `json:"store_duplicates"`
	ChunksFailed    int       `json:"chunks_failed"`
	Error           string    `json:"error,omitempty"`
	FinishedAt      time.Time `json:"finished_at"`
}

func NewRunCompletedEvent(r *RunReport) RunCompletedEvent {
	return RunCompletedEvent{
		RunID:           r.RunID,
		Status:          r.Status,
		InputPath:       r.InputPath,
		SummaryPath:     r.SummaryPath,
		RejectionPath:   r.RejectionPath,
		Committed:       r.Committed,
		Rejected:        r.Rejected,
		StoreDuplicates: r.StoreDuplicates,
		ChunksFailed:    r.ChunksFailed,
		Error:           r.Error,
		FinishedAt:      r.FinishedAt,
	}
}
