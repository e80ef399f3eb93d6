package worker

// Worker runs jobs received on its own channel and returns itself to the
// pool after each one.
type Worker struct {
	id         int
	manager    *Manager
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		id:         id,
		manager:    manager,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		debugLog("[worker-%d] started", w.id)
		if !w.pool.Release(w.jobChannel) {
			return
		}
		for job := range w.jobChannel {
			switch job.Type {
			case Process:
				debugLog("[worker-%d] running job %s", w.id, job.jobID())
				w.manager.handleProcess(job.ProcessTask)
				if !w.pool.Release(w.jobChannel) {
					debugLog("[worker-%d] pool closed, exiting", w.id)
					return
				}
			case Stop:
				debugLog("[worker-%d] stopping", w.id)
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}
