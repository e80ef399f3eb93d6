package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"audioedit/internal/redis"
)

const (
	redisOpTimeout    = 2 * time.Second
	// remote entries older than this are dropped when the next one arrives
	remoteProgressTTL = 30 * time.Minute
)

// stateRedis shares job progress between instances. With no store every
// method is a no-op and progress stays local to this process.
type stateRedis struct {
	store *redis.ProgressStore
	stop  context.CancelFunc
}

func newStateCache(store *redis.ProgressStore) *stateRedis {
	return &stateRedis{store: store}
}

func (r *stateRedis) enabled() bool {
	return r != nil && r.store != nil
}

// startListener feeds progress published by any instance to handler
func (r *stateRedis) startListener(handler func(JobProgress)) {
	if !r.enabled() || handler == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	err := r.store.Subscribe(ctx, func(payload []byte) {
		var p JobProgress
		if err := json.Unmarshal(payload, &p); err != nil {
			debugLog("[redis] progress decode failed: %v", err)
			return
		}
		handler(p)
	})
	if err != nil {
		cancel()
		debugLog("[redis] progress subscribe failed: %v", err)
		return
	}
	r.stop = cancel
}

// cacheProgress stores p under its job and broadcasts it
func (r *stateRedis) cacheProgress(p JobProgress) {
	if !r.enabled() || p.JobID == "" {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		debugLog("[redis] progress marshal failed: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.store.SaveProgress(ctx, p.JobID, data); err != nil {
		debugLog("[redis] cache progress failed: %v", err)
	}
}

func (r *stateRedis) loadProgress(jobID string) (JobProgress, bool) {
	if !r.enabled() || jobID == "" {
		return JobProgress{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	raw, err := r.store.LoadProgress(ctx, jobID)
	if err != nil {
		if !errors.Is(err, redis.ErrNoProgress) {
			debugLog("[redis] load progress failed: %v", err)
		}
		return JobProgress{}, false
	}
	var p JobProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		debugLog("[redis] progress decode failed: %v", err)
		return JobProgress{}, false
	}
	return p, true
}

// finishProgress drops the job and tells listeners it is over
func (r *stateRedis) finishProgress(jobID string) {
	if !r.enabled() || jobID == "" {
		return
	}
	data, err := json.Marshal(JobProgress{JobID: jobID, Percent: 100, Done: true, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.store.ClearProgress(ctx, jobID, data); err != nil {
		debugLog("[redis] invalidate progress failed: %v", err)
	}
}

func (r *stateRedis) close() {
	if r != nil && r.stop != nil {
		r.stop()
	}
}
