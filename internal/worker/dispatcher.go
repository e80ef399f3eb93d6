package worker

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

var (
	ErrDispatcherBusy   = errors.New("dispatcher queue full")
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

type clientQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher hands jobs to pool workers, rotating between clients so one
// client's backlog cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher
	Manager  *Manager

	mu        sync.Mutex
	queues    map[string]*clientQueue // job queue for each client
	ready     *list.List              // round-robin queue of client keys
	positions map[string]*list.Element
	pending   int
	limit     int
	quit      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = queueLen
	}
	pool := newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager)

	d := &Dispatcher{
		queues:    make(map[string]*clientQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		pool:      pool,
		JobQueue:  make(chan Job, queueSize),
		Manager:   manager,
		limit:     queueSize,
		quit:      make(chan struct{}),
	}

	// warm up the minimum number of workers
	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues job without blocking. It fails with ErrDispatcherBusy when
// queueSize jobs are already waiting for a worker.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.Lock()
	if d.pending >= d.limit {
		d.mu.Unlock()
		return ErrDispatcherBusy
	}
	d.pending++
	d.mu.Unlock()

	select {
	case <-d.quit:
		d.release()
		return ErrDispatcherClosed
	case d.JobQueue <- job:
		return nil
	default:
		d.release()
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) release() {
	d.mu.Lock()
	if d.pending > 0 {
		d.pending--
	}
	d.mu.Unlock()
}

// Pending returns the number of jobs not yet handed to a worker.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.pool.close()
	})
}

func (d *Dispatcher) run() {
	for {
		d.drainQueue()
		if !d.hasReady() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				d.failQueued()
				return
			}
			continue
		}
		if !d.dispatchOne() {
			d.failQueued()
			return
		}
	}
}

// drainQueue moves every submitted job into its client queue
func (d *Dispatcher) drainQueue() {
	for {
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		default:
			return
		}
	}
}

func (d *Dispatcher) hasReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready.Len() > 0
}

// CancelClient drops every job a client still has waiting.
func (d *Dispatcher) CancelClient(client string) {
	d.mu.Lock()
	q := d.queues[client]
	delete(d.queues, client)
	if elem, ok := d.positions[client]; ok {
		d.ready.Remove(elem)
		delete(d.positions, client)
	}
	if q != nil {
		d.pending -= len(q.jobs)
	}
	d.mu.Unlock()

	if q != nil {
		for _, job := range q.jobs {
			failJob(job, ErrDispatcherClosed)
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	client := job.clientKey()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[client]
	if q == nil {
		q = &clientQueue{}
		d.queues[client] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[client] = d.ready.PushBack(client)
}

// dispatchOne waits for a worker, then hands it the job of the client in
// front of the ready queue. Picking after the wait lets clients that submitted
// meanwhile take their turn. It reports false once the pool is closed.
func (d *Dispatcher) dispatchOne() bool {
	workerChan := d.pool.acquire()
	if workerChan == nil {
		return false
	}
	d.drainQueue()

	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		// queued jobs were cancelled while waiting
		d.mu.Unlock()
		d.pool.Release(workerChan)
		return true
	}
	client := elem.Value.(string)
	q := d.queues[client]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		// the client leaves the ready queue until it submits again
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, client)
		delete(d.queues, client)
	} else {
		d.ready.MoveToBack(elem)
	}
	if d.pending > 0 {
		d.pending--
	}
	d.mu.Unlock()

	debugLog("[dispatcher] assign job %s for client %s to worker-%d", job.jobID(), client, d.pool.workerID(workerChan))
	workerChan <- job
	return true
}

func (d *Dispatcher) failQueued() {
	d.mu.Lock()
	var jobs []Job
	for _, q := range d.queues {
		jobs = append(jobs, q.jobs...)
	}
	d.queues = make(map[string]*clientQueue)
	d.ready.Init()
	d.positions = make(map[string]*list.Element)
	d.pending = 0
	d.mu.Unlock()

	for {
		select {
		case job := <-d.JobQueue:
			jobs = append(jobs, job)
			continue
		default:
		}
		break
	}
	for _, job := range jobs {
		failJob(job, ErrDispatcherClosed)
	}
}

func failJob(job Job, err error) {
	if job.ProcessTask != nil && job.ProcessTask.resultCh != nil {
		job.ProcessTask.resultCh <- workerReturn{err: err}
	}
}
