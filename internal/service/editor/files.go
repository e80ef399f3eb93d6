package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audioedit/internal/models"
)

// StageUpload copies an upload into the job directory and records it as an
// input temp file.
func (s *Service) StageUpload(ctx context.Context, jobID, fileName, mimeType string, src io.Reader) (*models.TempFile, error) {
	if jobID == "" {
		return nil, errors.New("job id is required")
	}
	dir := s.jobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}
	dst, err := os.CreateTemp(dir, "input-*"+safeExt(fileName))
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst.Name())
		return nil, fmt.Errorf("store upload: %w", err)
	}
	return s.RecordTempFile(ctx, &models.TempFile{
		JobID:      jobID,
		Role:       models.TempFileInput,
		FileName:   filepath.Base(fileName),
		StoredPath: dst.Name(),
		MimeType:   mimeType,
		Size:       size,
	})
}

// RecordTempFile inserts a temp file row expiring after the service TTL.
func (s *Service) RecordTempFile(ctx context.Context, f *models.TempFile) (*models.TempFile, error) {
	now := time.Now().UTC()
	f.CreatedAt = now
	f.ExpiresAt = now.Add(s.tempTTL)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO temp_files (job_id, role, file_name, stored_path, mime_type, size, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.JobID, f.Role, f.FileName, f.StoredPath, f.MimeType, f.Size, f.CreatedAt, f.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("record temp file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("temp file id: %w", err)
	}
	f.ID = id
	return f, nil
}

// ListTempFiles returns the files recorded for a job.
func (s *Service) ListTempFiles(ctx context.Context, jobID string) ([]*models.TempFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, role, file_name, stored_path, mime_type, size, created_at, expires_at
		 FROM temp_files WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list temp files: %w", err)
	}
	defer rows.Close()

	var files []*models.TempFile
	for rows.Next() {
		f := new(models.TempFile)
		if err := rows.Scan(&f.ID, &f.JobID, &f.Role, &f.FileName, &f.StoredPath, &f.MimeType, &f.Size, &f.CreatedAt, &f.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan temp file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DiscardJob drops the staged files of a job that never reached Run.
func (s *Service) DiscardJob(jobID string) {
	s.discardJobFiles(jobID)
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, r := range ext[min(1, len(ext)):] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
