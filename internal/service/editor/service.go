package editor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"audioedit/internal/logging"
	"audioedit/internal/media"
	"audioedit/internal/models"
)

// Service stages uploads, runs the media processor and keeps job records.
type Service struct {
	db        *sql.DB
	processor *media.Processor
	fileBase  string
	tempTTL   time.Duration
	logger    zerolog.Logger
}

// NewService builds the editor service. fileBase holds one directory per job.
func NewService(db *sql.DB, processor *media.Processor, fileBase string, tempTTL time.Duration) (*Service, error) {
	if db == nil {
		return nil, errors.New("editor: db is required")
	}
	if processor == nil {
		return nil, errors.New("editor: processor is required")
	}
	if fileBase == "" {
		fileBase = "./data/work"
	}
	if tempTTL <= 0 {
		tempTTL = DefaultTempFileTTL
	}
	if err := os.MkdirAll(fileBase, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &Service{
		db:        db,
		processor: processor,
		fileBase:  fileBase,
		tempTTL:   tempTTL,
		logger:    logging.Component("editor"),
	}, nil
}

func (s *Service) Processor() *media.Processor {
	return s.processor
}

func (s *Service) jobDir(jobID string) string {
	return filepath.Join(s.fileBase, jobID)
}

// RunRequest is a job whose uploads have been staged.
type RunRequest struct {
	Job    *models.Job
	Inputs []*models.TempFile
	Target time.Duration
	Suffix string
}

// Output is a finished result ready to be handed to the client.
type Output struct {
	JobID    string  `json:"job"`
	Message  string  `json:"message"`
	FileName string  `json:"filename"`
	MimeType string  `json:"mime"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"`
	Template string  `json:"template"`
	Data     []byte  `json:"-"`
}

// Run processes req.Job to completion. The job row is updated with the
// outcome and every staged file is removed before Run returns.
func (s *Service) Run(ctx context.Context, req RunRequest, progress media.ProgressFunc) (*Output, error) {
	job := req.Job
	if job == nil {
		return nil, errors.New("job is required")
	}
	defer s.discardJobFiles(job.ID)

	if err := s.setJobStatus(ctx, job, models.JobRunning, ""); err != nil {
		return nil, err
	}

	out, err := s.run(ctx, req, progress)
	if err != nil {
		msg := media.UserMessage(err)
		if uerr := s.finishJob(context.WithoutCancel(ctx), job, models.JobFailed, msg, "", 0, ""); uerr != nil {
			s.logger.Error().Err(uerr).Str("job", job.ID).Msg("record failed job")
		}
		return nil, err
	}
	if err := s.finishJob(context.WithoutCancel(ctx), job, models.JobSucceeded, out.Message, out.Template, out.Size, out.FileName); err != nil {
		s.logger.Error().Err(err).Str("job", job.ID).Msg("record finished job")
	}
	return out, nil
}

func (s *Service) run(ctx context.Context, req RunRequest, progress media.ProgressFunc) (*Output, error) {
	job := req.Job
	mode := media.Mode(job.Mode)
	format := media.OutputFormat(job.OutputFormat)

	names := make([]string, 0, len(req.Inputs))
	paths := make([]string, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		names = append(names, in.FileName)
		paths = append(paths, in.StoredPath)
	}
	downloadName := media.DownloadFilename(names, req.Suffix, mode, format)
	outputPath := filepath.Join(s.jobDir(job.ID), "output."+string(format))

	switch mode {
	case media.ModeExtend:
		if len(paths) != 1 {
			return nil, media.ValidateRequest(mode, len(paths), req.Target, job.Crossfade)
		}
		if _, err := s.RecordTempFile(ctx, &models.TempFile{
			JobID:      job.ID,
			Role:       models.TempFileOutput,
			FileName:   downloadName,
			StoredPath: outputPath,
			MimeType:   format.MimeType(),
		}); err != nil {
			return nil, err
		}
		res, err := s.processor.Extend(ctx, media.ExtendRequest{
			Input:     paths[0],
			Output:    outputPath,
			Target:    req.Target,
			Crossfade: job.Crossfade,
			Method:    media.Method(job.Method),
			Format:    format,
			Quality:   job.Quality,
		}, progress)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(outputPath)
		if err != nil {
			return nil, fmt.Errorf("read output: %w", err)
		}
		return &Output{
			JobID:    job.ID,
			Message:  res.Message,
			FileName: downloadName,
			MimeType: format.MimeType(),
			Size:     int64(len(data)),
			Duration: req.Target.Seconds(),
			Template: string(res.Plan.Template),
			Data:     data,
		}, nil
	case media.ModeCombine:
		return nil, s.processor.Combine(ctx, media.CombineRequest{
			Inputs:    paths,
			Output:    outputPath,
			Crossfade: job.Crossfade,
			Method:    media.Method(job.Method),
			Format:    format,
			Quality:   job.Quality,
		}, progress)
	case media.ModeCombineExtend:
		return nil, s.processor.CombineExtend(ctx, media.CombineRequest{
			Inputs:    paths,
			Output:    outputPath,
			Target:    req.Target,
			Crossfade: job.Crossfade,
			Method:    media.Method(job.Method),
			Format:    format,
			Quality:   job.Quality,
		}, progress)
	}
	return nil, fmt.Errorf("unknown mode %q", job.Mode)
}

// discardJobFiles removes the job directory and its temp file rows.
func (s *Service) discardJobFiles(jobID string) {
	if err := os.RemoveAll(s.jobDir(jobID)); err != nil {
		s.logger.Warn().Err(err).Str("job", jobID).Msg("remove job dir")
	}
	if _, err := s.db.Exec(`DELETE FROM temp_files WHERE job_id = ?`, jobID); err != nil {
		s.logger.Warn().Err(err).Str("job", jobID).Msg("delete temp file rows")
	}
}
