package worker

import (
	"sync"
	"time"

	"audioedit/internal/service/editor"
)

// JobProgress is the latest progress report of an unfinished job.
type JobProgress struct {
	JobID     string    `json:"job"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
	Done      bool      `json:"done,omitempty"`
}

type clientState struct {
	mu     sync.RWMutex
	active map[string]JobProgress
}

func newClientState() *clientState {
	return &clientState{active: make(map[string]JobProgress)}
}

func (s *clientState) track(jobID string, percent int, message string) JobProgress {
	p := JobProgress{JobID: jobID, Percent: percent, Message: message, UpdatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.active[jobID] = p
	s.mu.Unlock()
	return p
}

func (s *clientState) get(jobID string) (JobProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.active[jobID]
	return p, ok
}

func (s *clientState) forget(jobID string) {
	s.mu.Lock()
	delete(s.active, jobID)
	s.mu.Unlock()
}

func (s *clientState) empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active) == 0
}

const defaultResultTTL = 30 * time.Minute

type storedResult struct {
	output    *editor.Output
	expiresAt time.Time
}

// resultStore keeps finished outputs in memory until they expire.
type resultStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]storedResult
	now     func() time.Time
	quit    chan struct{}
	once    sync.Once
}

func newResultStore(ttl time.Duration) *resultStore {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	s := &resultStore{
		ttl:     ttl,
		entries: make(map[string]storedResult),
		now:     time.Now,
		quit:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *resultStore) put(out *editor.Output) {
	if out == nil || out.JobID == "" {
		return
	}
	s.mu.Lock()
	s.entries[out.JobID] = storedResult{output: out, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
}

func (s *resultStore) get(jobID string) (*editor.Output, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[jobID]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, jobID)
		return nil, false
	}
	return e.output, true
}

func (s *resultStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *resultStore) sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *resultStore) sweepLoop() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				debugLog("[results] swept %d expired results", n)
			}
		}
	}
}

func (s *resultStore) close() {
	s.once.Do(func() { close(s.quit) })
}
