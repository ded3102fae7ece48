package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "zipwire:pending:"

// RedisQueue stores pending updates in Redis lists so the collaborative
// document store and the hub can run as separate processes.
type RedisQueue struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisQueue connects to Redis using a redis:// URL.
func NewRedisQueue(ctx context.Context, logger *slog.Logger, redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &RedisQueue{client: client, logger: logger.With("module", "pending")}, nil
}

func (q *RedisQueue) key(workflowID string) string {
	return keyPrefix + workflowID
}

func (q *RedisQueue) Push(ctx context.Context, workflowID string, update Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to serialize update: %w", err)
	}

	return q.client.RPush(ctx, q.key(workflowID), payload).Err()
}

// Drain fetches and deletes the workflow's queue atomically. Entries that
// fail to decode are dropped with a log line; a bad entry must not wedge the
// queue.
func (q *RedisQueue) Drain(ctx context.Context, workflowID string) ([]Update, error) {
	key := q.key(workflowID)

	pipe := q.client.TxPipeline()
	entries := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to drain pending queue: %w", err)
	}

	raw, err := entries.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pending queue: %w", err)
	}

	updates := make([]Update, 0, len(raw))

	for _, entry := range raw {
		var update Update

		err := json.Unmarshal([]byte(entry), &update)
		if err != nil {
			q.logger.WarnContext(ctx, "Dropping undecodable pending update",
				"workflow_id", workflowID, "error", err)

			continue
		}

		updates = append(updates, update)
	}

	return updates, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
