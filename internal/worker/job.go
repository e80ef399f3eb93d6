package worker

import (
	"context"

	"audioedit/internal/media"
	"audioedit/internal/service/editor"
)

type JobType string

const (
	Process JobType = "process"
	Stop    JobType = "stop"
)

// Job is the unit handed from the dispatcher to a pool worker.
type Job struct {
	Type        JobType
	ProcessTask *processTask
}

// ProcessRequest asks the manager to run one staged editor job.
type ProcessRequest struct {
	Context  context.Context
	Client   string
	Run      editor.RunRequest
	Progress media.ProgressFunc
}

type workerReturn struct {
	output *editor.Output
	err    error
}

type processTask struct {
	req      ProcessRequest
	resultCh chan workerReturn
}

func (job Job) clientKey() string {
	if job.Type == Process && job.ProcessTask != nil {
		return job.ProcessTask.req.Client
	}
	return ""
}

func (job Job) jobID() string {
	if job.ProcessTask != nil && job.ProcessTask.req.Run.Job != nil {
		return job.ProcessTask.req.Run.Job.ID
	}
	return ""
}
