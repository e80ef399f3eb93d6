package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"audioedit/internal/media"
	"audioedit/internal/models"
	"audioedit/internal/service/editor"
)

type mockRunner struct {
	mu      sync.Mutex
	order   []string
	block   chan struct{}
	started chan string
	fail    error
}

func newMockRunner() *mockRunner {
	return &mockRunner{started: make(chan string, 32)}
}

func (r *mockRunner) Run(ctx context.Context, req editor.RunRequest, progress media.ProgressFunc) (*editor.Output, error) {
	id := req.Job.ID
	r.started <- id
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if progress != nil {
		progress(50, "Running FFmpeg...")
	}
	r.mu.Lock()
	r.order = append(r.order, id)
	r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	return &editor.Output{JobID: id, Message: "Success! Simple Loop", Data: []byte(id), Size: int64(len(id))}, nil
}

func (r *mockRunner) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func processReq(client, id string) ProcessRequest {
	return ProcessRequest{
		Context: context.Background(),
		Client:  client,
		Run:     editor.RunRequest{Job: &models.Job{ID: id}},
	}
}

func waitStarted(t *testing.T, r *mockRunner) string {
	t.Helper()
	select {
	case id := <-r.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("job did not start")
	}
	return ""
}

func TestManagerProcessStoresResult(t *testing.T) {
	runner := newMockRunner()
	manager := NewManager(runner, DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 4}, nil)
	defer manager.Close()

	var got []int
	req := processReq("1.1.1.1", "job-a")
	req.Progress = func(p int, _ string) { got = append(got, p) }

	out, err := manager.Process(req)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if out == nil || string(out.Data) != "job-a" {
		t.Fatalf("unexpected output: %#v", out)
	}
	if len(got) != 1 || got[0] != 50 {
		t.Fatalf("progress not forwarded: %v", got)
	}
	stored, ok := manager.Result("job-a")
	if !ok || stored != out {
		t.Fatalf("result not stored")
	}
	if _, ok := manager.Progress("job-a"); ok {
		t.Fatalf("finished job should not report progress")
	}
}

func TestManagerProcessError(t *testing.T) {
	runner := newMockRunner()
	runner.fail = media.ErrToolTimeout
	manager := NewManager(runner, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, nil)
	defer manager.Close()

	_, err := manager.Process(processReq("c", "job-err"))
	if !errors.Is(err, media.ErrToolTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if _, ok := manager.Result("job-err"); ok {
		t.Fatalf("failed job must not have a result")
	}
}

func TestManagerProgressWhileRunning(t *testing.T) {
	runner := newMockRunner()
	runner.block = make(chan struct{})
	manager := NewManager(runner, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, nil)
	defer manager.Close()

	done := make(chan error, 1)
	go func() {
		_, err := manager.Process(processReq("c", "job-run"))
		done <- err
	}()
	waitStarted(t, runner)

	p, ok := manager.Progress("job-run")
	if !ok || p.Message != "Queued" {
		t.Fatalf("expected queued progress, got %#v ok=%v", p, ok)
	}
	if stats := manager.Stats(); stats.Busy != 1 || stats.Workers != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	close(runner.block)
	if err := <-done; err != nil {
		t.Fatalf("Process error: %v", err)
	}
}

func TestDispatcherRotatesClients(t *testing.T) {
	runner := newMockRunner()
	runner.block = make(chan struct{})
	manager := NewManager(runner, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10}, nil)
	defer manager.Close()

	var wg sync.WaitGroup
	submit := func(client, id string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := manager.Process(processReq(client, id)); err != nil {
				t.Errorf("Process %s: %v", id, err)
			}
		}()
	}

	// occupy the only worker, then queue two jobs for A and one for B
	submit("A", "a0")
	waitStarted(t, runner)
	submit("A", "a1")
	waitQueued(t, manager, 1)
	submit("A", "a2")
	waitQueued(t, manager, 2)
	submit("B", "b1")
	waitQueued(t, manager, 3)

	close(runner.block)
	wg.Wait()

	got := runner.executed()
	want := []string{"a0", "a1", "b1", "a2"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected execution order %v, got %v", want, got)
		}
	}
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	runner := newMockRunner()
	runner.block = make(chan struct{})
	manager := NewManager(runner, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1}, nil)
	defer manager.Close()

	results := make(chan error, 2)
	go func() {
		_, err := manager.Process(processReq("c", "first"))
		results <- err
	}()
	waitStarted(t, runner)
	go func() {
		_, err := manager.Process(processReq("c", "second"))
		results <- err
	}()
	waitQueued(t, manager, 1)

	if _, err := manager.Process(processReq("c", "third")); !errors.Is(err, ErrDispatcherBusy) {
		t.Fatalf("expected ErrDispatcherBusy, got %v", err)
	}
	close(runner.block)
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			t.Fatalf("queued job failed: %v", err)
		}
	}
}

func TestProcessReturnsWhenContextCancelled(t *testing.T) {
	runner := newMockRunner()
	runner.block = make(chan struct{})
	manager := NewManager(runner, DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 2}, nil)
	defer manager.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := processReq("c", "cancel-me")
	req.Context = ctx
	done := make(chan error, 1)
	go func() {
		_, err := manager.Process(req)
		done <- err
	}()
	waitStarted(t, runner)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Process did not return after cancel")
	}
}

func TestResultStoreExpires(t *testing.T) {
	store := newResultStore(time.Minute)
	defer store.close()
	now := time.Now()
	store.now = func() time.Time { return now }

	store.put(&editor.Output{JobID: "x"})
	if _, ok := store.get("x"); !ok {
		t.Fatalf("result should be available")
	}
	now = now.Add(2 * time.Minute)
	if removed := store.sweep(); removed != 1 {
		t.Fatalf("expected 1 swept result, got %d", removed)
	}
	if _, ok := store.get("x"); ok {
		t.Fatalf("result should have expired")
	}
}

func TestPoolShrinksToMinimum(t *testing.T) {
	runner := newMockRunner()
	manager := NewManager(runner, DispatcherConfig{MinWorkers: 1, MaxWorkers: 3, QueueSize: 4, WorkerIdleTimeout: time.Hour}, nil)
	defer manager.Close()

	pool := manager.dispatcher.pool
	pool.spawnWorker()
	pool.spawnWorker()
	waitWorkers(t, pool, 3)

	pool.mu.Lock()
	for _, meta := range pool.idle {
		meta.lastUsed = time.Now().Add(-2 * time.Hour)
	}
	pool.mu.Unlock()
	pool.shutdownExpired()

	waitWorkers(t, pool, 1)
}

func waitQueued(t *testing.T, m *Manager, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.dispatcher.Pending() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d queued jobs, have %d", n, m.dispatcher.Pending())
}

func waitWorkers(t *testing.T, p *jobChannelPool, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		running, idle := p.running, len(p.idle)
		p.mu.Unlock()
		if running == n && idle == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	running, _ := p.stats()
	t.Fatalf("expected %d workers, have %d", n, running)
}
