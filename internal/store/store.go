// Package store persists enrichment run history.
package store

import (
	"context"
	"time"
)

// Run summarizes one pipeline execution.
type Run struct {
	ID         string    `json:"id"`
	InputFile  string    `json:"input_file"`
	OutputFile string    `json:"output_file"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RecordError is one failed record within a run.
type RecordError struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

// Store defines the persistence interface for run history.
type Store interface {
	RecordRun(ctx context.Context, run Run, errs []RecordError) error
	GetRun(ctx context.Context, runID string) (*Run, []RecordError, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
