package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for job status records
	keyStatusPrefix = "jobstatus:"

	// channel prefix for per-job progress events
	channelProgressPrefix = "jobprogress:"

	// TTL for status records; jobs older than this are cold and their
	// stage is recoverable from whether a transcript artifact exists
	statusTTL = 24 * time.Hour
)

// RedisRegistry backs the registry with a shared Redis instance so status
// is visible across horizontally scaled processes. Every Put is also
// published on a per-job channel for push consumers.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry connects to Redis and verifies the connection
func NewRedisRegistry(redisURL string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRegistry{client: client}, nil
}

// Close closes the Redis connection
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// Client exposes the underlying connection for components that share it,
// like health checks and the transcript cache.
func (r *RedisRegistry) Client() *redis.Client {
	return r.client
}

func statusKey(jobID string) string {
	return keyStatusPrefix + jobID
}

func progressChannel(jobID string) string {
	return channelProgressPrefix + jobID
}

// Put stores the record and publishes it to the job's progress channel
func (r *RedisRegistry) Put(ctx context.Context, record StatusRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal status record: %w", err)
	}

	if err := r.client.Set(ctx, statusKey(record.JobID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to store status record: %w", err)
	}

	// Publish failures do not invalidate the write; pollers still see it.
	r.client.Publish(ctx, progressChannel(record.JobID), data)

	return nil
}

// Get returns the record for a job, or ErrNotFound
func (r *RedisRegistry) Get(ctx context.Context, jobID string) (StatusRecord, error) {
	data, err := r.client.Get(ctx, statusKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return StatusRecord{}, ErrNotFound
		}
		return StatusRecord{}, fmt.Errorf("failed to get status record: %w", err)
	}

	var record StatusRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return StatusRecord{}, fmt.Errorf("failed to unmarshal status record: %w", err)
	}

	return record, nil
}

// Delete removes a job's record
func (r *RedisRegistry) Delete(ctx context.Context, jobID string) error {
	if err := r.client.Del(ctx, statusKey(jobID)).Err(); err != nil {
		return fmt.Errorf("failed to delete status record: %w", err)
	}
	return nil
}

// Subscribe streams status updates for one job until ctx is cancelled.
// The returned channel is closed on cancellation.
func (r *RedisRegistry) Subscribe(ctx context.Context, jobID string) <-chan StatusRecord {
	sub := r.client.Subscribe(ctx, progressChannel(jobID))
	out := make(chan StatusRecord)

	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var record StatusRecord
				if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
					continue
				}
				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
