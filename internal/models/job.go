package models

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job records one processing request and how it ended.
type Job struct {
	ID            string    `json:"id"`
	Client        string    `json:"client"`
	Mode          string    `json:"mode"`
	Method        string    `json:"method"`
	OutputFormat  string    `json:"output_format"`
	Quality       string    `json:"quality"`
	Crossfade     float64   `json:"crossfade"`
	TargetSeconds int64     `json:"target_seconds"`
	FileCount     int       `json:"file_count"`
	Normalize     bool      `json:"normalize"`
	Status        JobStatus `json:"status"`
	Message       string    `json:"message"`
	Template      string    `json:"template"`
	OutputSize    int64     `json:"output_size"`
	DownloadName  string    `json:"download_name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
