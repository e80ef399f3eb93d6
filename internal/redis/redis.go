package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audioedit/internal/config"

	redis "github.com/redis/go-redis/v9"
)

const (
	progressChannel = "audioedit:progress"
	progressPrefix  = "audioedit:progress:"
	defaultTTL      = 30 * time.Minute
)

// ErrNoProgress is returned by LoadProgress when no snapshot is stored for a job.
var ErrNoProgress = errors.New("no progress stored for job")

// ProgressStore keeps job progress snapshots in redis and fans updates out
// to every instance over pub/sub. Payloads are opaque to the store.
type ProgressStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect dials redis when it is enabled. A nil store and nil error mean
// redis is switched off and progress stays in process.
func Connect(cfg config.RedisConfig, ttl time.Duration) (*ProgressStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s:%d: %w", host, port, err)
	}
	return &ProgressStore{rdb: rdb, ttl: ttl}, nil
}

func progressKey(jobID string) string {
	return progressPrefix + jobID
}

// SaveProgress stores the latest snapshot for jobID and broadcasts it.
func (s *ProgressStore) SaveProgress(ctx context.Context, jobID string, payload []byte) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, progressKey(jobID), payload, s.ttl)
	pipe.Publish(ctx, progressChannel, payload)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadProgress returns the stored snapshot or ErrNoProgress.
func (s *ProgressStore) LoadProgress(ctx context.Context, jobID string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, progressKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoProgress
	}
	return data, err
}

// ClearProgress drops the snapshot and broadcasts the final payload.
func (s *ProgressStore) ClearProgress(ctx context.Context, jobID string, final []byte) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, progressKey(jobID))
	pipe.Publish(ctx, progressChannel, final)
	_, err := pipe.Exec(ctx)
	return err
}

// Subscribe calls fn with every payload broadcast by any instance until ctx
// is done. It returns once the subscription is registered.
func (s *ProgressStore) Subscribe(ctx context.Context, fn func([]byte)) error {
	pubsub := s.rdb.Subscribe(ctx, progressChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", progressChannel, err)
	}
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fn([]byte(msg.Payload))
			}
		}
	}()
	return nil
}

// Close releases the connection pool.
func (s *ProgressStore) Close() error {
	if s == nil {
		return nil
	}
	return s.rdb.Close()
}
