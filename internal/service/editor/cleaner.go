package editor

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultTempFileTTL             = time.Hour
	DefaultTempFileCleanupInterval = 15 * time.Minute
)

// StartTempFileCleaner sweeps temp files left behind by interrupted runs.
func (s *Service) StartTempFileCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTempFileCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.cleanupExpiredFiles(time.Now().UTC()); err != nil {
				s.logger.Error().Err(err).Msg("cleanup temp files")
			}
		}
	}
}

func (s *Service) cleanupExpiredFiles(now time.Time) (int, error) {
	rows, err := s.db.Query(`SELECT id, stored_path FROM temp_files WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type fileRow struct {
		id   int64
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			return 0, err
		}
		files = append(files, fr)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	removed := 0
	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", f.path).Msg("remove temp file")
			continue
		}
		if err := s.deleteTempFileRecord(f.id); err != nil {
			s.logger.Warn().Err(err).Int64("id", f.id).Msg("delete temp file record")
			continue
		}
		removed++

		// prune empty job directories
		_ = os.Remove(filepath.Dir(f.path))
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("expired temp files cleaned")
	}
	return removed, nil
}

func (s *Service) deleteTempFileRecord(id int64) error {
	_, err := s.db.Exec(`DELETE FROM temp_files WHERE id = ?`, id)
	return err
}
