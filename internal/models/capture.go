package models

import (
	"time"

	"github.com/google/uuid"
)

// CaptureRecord represents one completed full-resolution capture
type CaptureRecord struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	FilePath   string     `json:"filePath" db:"file_path"`
	Downloaded bool       `json:"downloaded" db:"downloaded"`
	Source     string     `json:"source" db:"source"` // "single" or "timelapse"
	RunID      *uuid.UUID `json:"runId,omitempty" db:"run_id"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}

// Capture sources
const (
	CaptureSourceSingle    = "single"
	CaptureSourceTimelapse = "timelapse"
)

// Timelapse run states
const (
	RunStateRunning   = "running"
	RunStateCompleted = "completed"
	RunStateCancelled = "cancelled"
	RunStateError     = "error"
)

// TimelapseRun represents one timelapse sequence run
type TimelapseRun struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Folder     string     `json:"folder" db:"folder"`
	Total      int        `json:"total" db:"total"`
	Interval   int        `json:"interval" db:"interval_seconds"`
	Captured   int        `json:"captured" db:"captured"`
	State      string     `json:"state" db:"state"`
	Message    string     `json:"message" db:"message"`
	StartedAt  time.Time  `json:"startedAt" db:"started_at"`
	FinishedAt *time.Time `json:"finishedAt,omitempty" db:"finished_at"`
}
