package editor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"audioedit/internal/models"
)

const jobColumns = `id, client, mode, method, output_format, quality, crossfade, target_seconds,
	file_count, normalize, status, message, template, output_size, download_name, created_at, updated_at`

// CreateJob inserts job as queued and fills in its timestamps.
func (s *Service) CreateJob(ctx context.Context, job *models.Job) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errors.New("job id is required")
	}
	now := time.Now().UTC()
	job.Status = models.JobQueued
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Client, job.Mode, job.Method, job.OutputFormat, job.Quality, job.Crossfade, job.TargetSeconds,
		job.FileCount, job.Normalize, job.Status, job.Message, job.Template, job.OutputSize, job.DownloadName,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *Service) setJobStatus(ctx context.Context, job *models.Job, status models.JobStatus, message string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, message = ?, updated_at = ? WHERE id = ?`,
		status, message, now, job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	job.Status = status
	job.Message = message
	job.UpdatedAt = now
	return nil
}

func (s *Service) finishJob(ctx context.Context, job *models.Job, status models.JobStatus, message, template string, size int64, downloadName string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, message = ?, template = ?, output_size = ?, download_name = ?, updated_at = ? WHERE id = ?`,
		status, message, template, size, downloadName, now, job.ID,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	job.Status = status
	job.Message = message
	job.Template = template
	job.OutputSize = size
	job.DownloadName = downloadName
	job.UpdatedAt = now
	return nil
}

// FailJob marks a job that never reached a worker as failed.
func (s *Service) FailJob(ctx context.Context, job *models.Job, message string) error {
	return s.finishJob(ctx, job, models.JobFailed, message, "", 0, "")
}

// GetJob returns one job or sql.ErrNoRows.
func (s *Service) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the newest jobs first. An empty client lists every client.
func (s *Service) ListJobs(ctx context.Context, client string, limit int) ([]models.Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if client != "" {
		query += ` WHERE client = ?`
		args = append(args, client)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.Client, &j.Mode, &j.Method, &j.OutputFormat, &j.Quality, &j.Crossfade,
		&j.TargetSeconds, &j.FileCount, &j.Normalize, &j.Status, &j.Message, &j.Template, &j.OutputSize,
		&j.DownloadName, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
