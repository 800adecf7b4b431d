package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tethercam/camera-server/internal/models"
)

// MemoryStore implements Store in memory. It backs deployments without a
// database and is used in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	captures map[uuid.UUID]*models.CaptureRecord
	runs     map[uuid.UUID]*models.TimelapseRun
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		captures: make(map[uuid.UUID]*models.CaptureRecord),
		runs:     make(map[uuid.UUID]*models.TimelapseRun),
	}
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// RecordCapture stores a capture record
func (s *MemoryStore) RecordCapture(ctx context.Context, record *models.CaptureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	stored := *record
	s.captures[record.ID] = &stored
	return nil
}

// GetCapture returns a capture record by ID
func (s *MemoryStore) GetCapture(ctx context.Context, id uuid.UUID) (*models.CaptureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.captures[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

// ListCaptures lists capture records, newest first
func (s *MemoryStore) ListCaptures(ctx context.Context, limit, offset int) ([]*models.CaptureRecord, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.CaptureRecord, 0, len(s.captures))
	for _, record := range s.captures {
		copied := *record
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	return page(all, limit, offset), int64(len(all)), nil
}

// CreateTimelapseRun stores a timelapse run record
func (s *MemoryStore) CreateTimelapseRun(ctx context.Context, run *models.TimelapseRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

// UpdateTimelapseRun updates a stored timelapse run
func (s *MemoryStore) UpdateTimelapseRun(ctx context.Context, run *models.TimelapseRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return ErrNotFound
	}

	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

// GetTimelapseRun returns a timelapse run by ID
func (s *MemoryStore) GetTimelapseRun(ctx context.Context, id uuid.UUID) (*models.TimelapseRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *run
	return &copied, nil
}

// ListTimelapseRuns lists timelapse runs, newest first
func (s *MemoryStore) ListTimelapseRuns(ctx context.Context, limit, offset int) ([]*models.TimelapseRun, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.TimelapseRun, 0, len(s.runs))
	for _, run := range s.runs {
		copied := *run
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartedAt.After(all[j].StartedAt)
	})

	return page(all, limit, offset), int64(len(all)), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
