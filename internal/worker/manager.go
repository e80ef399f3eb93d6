package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"audioedit/internal/logging"
	"audioedit/internal/media"
	"audioedit/internal/redis"
	"audioedit/internal/service/editor"
)

const queueLen = 16

// JobRunner executes a staged job. *editor.Service implements it.
type JobRunner interface {
	Run(ctx context.Context, req editor.RunRequest, progress media.ProgressFunc) (*editor.Output, error)
}

type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
	ResultTTL         time.Duration
}

// Manager bounds how many ffmpeg runs execute at once and keeps finished
// results around for download.
type Manager struct {
	runner     JobRunner
	dispatcher *Dispatcher
	results    *resultStore
	cache      *stateRedis
	logger     zerolog.Logger

	mu     sync.Mutex
	state  map[string]*clientState
	remote map[string]JobProgress
}

func NewManager(runner JobRunner, cfg DispatcherConfig, progressStore *redis.ProgressStore) *Manager {
	m := &Manager{
		runner:  runner,
		results: newResultStore(cfg.ResultTTL),
		cache:   newStateCache(progressStore),
		logger:  logging.Component("worker"),
		state:   make(map[string]*clientState),
		remote:  make(map[string]JobProgress),
	}
	m.dispatcher = NewDispatcher(cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, m, cfg.WorkerIdleTimeout)
	m.cache.startListener(m.applyRemoteProgress)
	return m
}

// Process queues req and blocks until it finishes or req.Context ends.
func (m *Manager) Process(req ProcessRequest) (*editor.Output, error) {
	if req.Run.Job == nil {
		return nil, errors.New("job is required")
	}
	if req.Context == nil {
		req.Context = context.Background()
	}
	jobID := req.Run.Job.ID
	m.track(req.Client, jobID, 0, "Queued")

	task := &processTask{req: req, resultCh: make(chan workerReturn, 1)}
	if err := m.dispatcher.Submit(Job{Type: Process, ProcessTask: task}); err != nil {
		m.forget(req.Client, jobID)
		return nil, err
	}

	select {
	case ret := <-task.resultCh:
		return ret.output, ret.err
	case <-req.Context.Done():
		return nil, req.Context.Err()
	}
}

func (m *Manager) handleProcess(task *processTask) {
	req := task.req
	jobID := req.Run.Job.ID

	if err := req.Context.Err(); err != nil {
		m.forget(req.Client, jobID)
		task.resultCh <- workerReturn{err: err}
		return
	}

	progress := func(percent int, message string) {
		p := m.track(req.Client, jobID, percent, message)
		m.cache.cacheProgress(p)
		if req.Progress != nil {
			req.Progress(percent, message)
		}
	}

	start := time.Now()
	out, err := m.runner.Run(req.Context, req.Run, progress)
	m.forget(req.Client, jobID)
	m.cache.finishProgress(jobID)
	if err != nil {
		m.logger.Warn().Err(err).Str("job", jobID).Str("client", req.Client).Dur("elapsed", time.Since(start)).Msg("job failed")
		task.resultCh <- workerReturn{err: err}
		return
	}
	m.results.put(out)
	m.logger.Info().Str("job", jobID).Str("client", req.Client).Dur("elapsed", time.Since(start)).Int64("size", out.Size).Msg("job finished")
	task.resultCh <- workerReturn{output: out}
}

// Progress returns the last progress of a job that is queued or running.
func (m *Manager) Progress(jobID string) (JobProgress, bool) {
	m.mu.Lock()
	states := make([]*clientState, 0, len(m.state))
	for _, s := range m.state {
		states = append(states, s)
	}
	remote, ok := m.remote[jobID]
	m.mu.Unlock()
	for _, s := range states {
		if p, found := s.get(jobID); found {
			return p, true
		}
	}
	if ok {
		return remote, true
	}
	return m.cache.loadProgress(jobID)
}

// Result returns a finished output that has not expired yet.
func (m *Manager) Result(jobID string) (*editor.Output, bool) {
	return m.results.get(jobID)
}

// CancelClient drops jobs a client still has queued.
func (m *Manager) CancelClient(client string) {
	m.dispatcher.CancelClient(client)
}

type Stats struct {
	Workers int `json:"workers"`
	Busy    int `json:"busy"`
	Queued  int `json:"queued"`
	Results int `json:"results"`
}

func (m *Manager) Stats() Stats {
	running, busy := m.dispatcher.pool.stats()
	return Stats{
		Workers: running,
		Busy:    busy,
		Queued:  m.dispatcher.Pending(),
		Results: m.results.len(),
	}
}

// Close stops the dispatcher; queued jobs fail with ErrDispatcherClosed.
func (m *Manager) Close() {
	m.dispatcher.Close()
	m.results.close()
	m.cache.close()
}

func (m *Manager) track(client, jobID string, percent int, message string) JobProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state[client]
	if !ok {
		s = newClientState()
		m.state[client] = s
	}
	return s.track(jobID, percent, message)
}

// forget drops a job and the state of a client with nothing left in flight.
func (m *Manager) forget(client, jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state[client]
	if !ok {
		return
	}
	s.forget(jobID)
	if s.empty() {
		delete(m.state, client)
	}
}

// applyRemoteProgress mirrors progress published by any instance.
func (m *Manager) applyRemoteProgress(p JobProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Done {
		delete(m.remote, p.JobID)
		return
	}
	m.remote[p.JobID] = p
	cutoff := time.Now().Add(-remoteProgressTTL)
	for id, rp := range m.remote {
		if rp.UpdatedAt.Before(cutoff) {
			delete(m.remote, id)
		}
	}
}
