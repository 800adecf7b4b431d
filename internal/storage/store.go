// Package storage persists capture history and timelapse run records.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tethercam/camera-server/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Store defines the storage interface
type Store interface {
	// Capture history methods
	RecordCapture(ctx context.Context, record *models.CaptureRecord) error
	GetCapture(ctx context.Context, id uuid.UUID) (*models.CaptureRecord, error)
	ListCaptures(ctx context.Context, limit, offset int) ([]*models.CaptureRecord, int64, error)

	// Timelapse run methods
	CreateTimelapseRun(ctx context.Context, run *models.TimelapseRun) error
	UpdateTimelapseRun(ctx context.Context, run *models.TimelapseRun) error
	GetTimelapseRun(ctx context.Context, id uuid.UUID) (*models.TimelapseRun, error)
	ListTimelapseRuns(ctx context.Context, limit, offset int) ([]*models.TimelapseRun, int64, error)

	Close() error
}
