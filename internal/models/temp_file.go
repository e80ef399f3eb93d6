package models

import "time"

// TempFileRole tells whether a temp file is an upload copy or tool output.
type TempFileRole string

const (
	TempFileInput  TempFileRole = "input"
	TempFileOutput TempFileRole = "output"
)

// TempFile represents a transient file on local disk owned by a job.
type TempFile struct {
	ID         int64        `json:"id"`
	JobID      string       `json:"job_id"`
	Role       TempFileRole `json:"role"`
	FileName   string       `json:"file_name"`
	StoredPath string       `json:"stored_path"`
	MimeType   string       `json:"mime_type"`
	Size       int64        `json:"size"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}
