package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/tethercam/camera-server/internal/models"
)

// PostgresStore implements Store interface for PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string, maxOpen, maxIdle int, connLifetime time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// RecordCapture inserts a capture record
func (s *PostgresStore) RecordCapture(ctx context.Context, record *models.CaptureRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO captures (
            id, file_path, downloaded, source, run_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.FilePath, record.Downloaded,
		record.Source, record.RunID, record.CreatedAt,
	)

	return err
}

// GetCapture returns a capture record by ID
func (s *PostgresStore) GetCapture(ctx context.Context, id uuid.UUID) (*models.CaptureRecord, error) {
	query := `
        SELECT id, file_path, downloaded, source, run_id, created_at
        FROM captures WHERE id = $1`

	record := &models.CaptureRecord{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.FilePath, &record.Downloaded,
		&record.Source, &record.RunID, &record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListCaptures lists capture records, newest first
func (s *PostgresStore) ListCaptures(ctx context.Context, limit, offset int) ([]*models.CaptureRecord, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM captures").Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, file_path, downloaded, source, run_id, created_at
        FROM captures
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := []*models.CaptureRecord{}
	for rows.Next() {
		record := &models.CaptureRecord{}
		if err := rows.Scan(
			&record.ID, &record.FilePath, &record.Downloaded,
			&record.Source, &record.RunID, &record.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}

	return records, total, rows.Err()
}

// CreateTimelapseRun inserts a timelapse run record
func (s *PostgresStore) CreateTimelapseRun(ctx context.Context, run *models.TimelapseRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `
        INSERT INTO timelapse_runs (
            id, folder, total, interval_seconds, captured,
            state, message, started_at, finished_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Folder, run.Total, run.Interval, run.Captured,
		run.State, run.Message, run.StartedAt, run.FinishedAt,
	)

	return err
}

// UpdateTimelapseRun updates a timelapse run record
func (s *PostgresStore) UpdateTimelapseRun(ctx context.Context, run *models.TimelapseRun) error {
	query := `
        UPDATE timelapse_runs SET
            captured = $2, state = $3, message = $4, finished_at = $5
        WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query,
		run.ID, run.Captured, run.State, run.Message, run.FinishedAt,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetTimelapseRun returns a timelapse run by ID
func (s *PostgresStore) GetTimelapseRun(ctx context.Context, id uuid.UUID) (*models.TimelapseRun, error) {
	query := `
        SELECT id, folder, total, interval_seconds, captured,
               state, message, started_at, finished_at
        FROM timelapse_runs WHERE id = $1`

	run := &models.TimelapseRun{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Folder, &run.Total, &run.Interval, &run.Captured,
		&run.State, &run.Message, &run.StartedAt, &run.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

// ListTimelapseRuns lists timelapse runs, newest first
func (s *PostgresStore) ListTimelapseRuns(ctx context.Context, limit, offset int) ([]*models.TimelapseRun, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM timelapse_runs").Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, folder, total, interval_seconds, captured,
               state, message, started_at, finished_at
        FROM timelapse_runs
        ORDER BY started_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	runs := []*models.TimelapseRun{}
	for rows.Next() {
		run := &models.TimelapseRun{}
		if err := rows.Scan(
			&run.ID, &run.Folder, &run.Total, &run.Interval, &run.Captured,
			&run.State, &run.Message, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}

	return runs, total, rows.Err()
}
