// Package mirror publishes job snapshots to Redis for external consumers.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vidrelay/internal/config"
	"vidrelay/internal/models"
)

// Redis writes the latest snapshot of every job under task:<id> with a TTL and
// publishes each task_update on the owning session's channel. It never feeds
// state back into the service.
type Redis struct {
	client        *redis.Client
	taskPrefix    string
	channelPrefix string
	ttl           time.Duration
}

// NewRedis builds a mirror client from config.
func NewRedis(cfg config.Config) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisWithClient(client, cfg.MirrorTTL)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{
		client:        client,
		taskPrefix:    "task:",
		channelPrefix: "session:",
		ttl:           ttl,
	}
}

// Ping checks connectivity.
func (m *Redis) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *Redis) Close() error {
	return m.client.Close()
}

// TaskKey is the key holding a job snapshot.
func (m *Redis) TaskKey(taskID string) string {
	return m.taskPrefix + taskID
}

// Channel is the pub/sub channel carrying a session's task updates.
func (m *Redis) Channel(sessionID string) string {
	return fmt.Sprintf("%s%s:updates", m.channelPrefix, sessionID)
}

// Record stores the snapshot and publishes the update in one pipeline.
func (m *Redis) Record(ctx context.Context, sessionID string, job models.Job) error {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	update, err := json.Marshal(models.NewTaskUpdate(job))
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.TaskKey(job.ID), snapshot, m.ttl)
	pipe.Publish(ctx, m.Channel(sessionID), update)
	_, err = pipe.Exec(ctx)
	return err
}

// Snapshot reads back a mirrored job, for operators and tests.
func (m *Redis) Snapshot(ctx context.Context, taskID string) (models.Job, error) {
	raw, err := m.client.Get(ctx, m.TaskKey(taskID)).Bytes()
	if err != nil {
		return models.Job{}, err
	}
	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return models.Job{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return job, nil
}
