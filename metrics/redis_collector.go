package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCollector implements the Collector interface for Redis-backed storage
type RedisCollector struct {
	client *redis.Client
}

// NewRedisCollector creates a new Redis metrics collector
func NewRedisCollector(client *redis.Client) *RedisCollector {
	return &RedisCollector{
		client: client,
	}
}

// Collect gathers all metrics from Redis
func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	queueDepths, err := c.GetQueueDepths(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue depths: %w", err)
	}

	statusCounts, err := c.GetStatusCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting status counts: %w", err)
	}

	throughput, err := c.GetThroughput(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting throughput: %w", err)
	}

	workers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}

	return Metrics{
		QueueDepths:  queueDepths,
		StatusCounts: statusCounts,
		Throughput:   throughput,
		Workers:      workers,
		Timestamp:    time.Now(),
	}, nil
}

// GetQueueDepths returns the cardinality of each retry sorted set
func (c *RedisCollector) GetQueueDepths(ctx context.Context) (QueueDepthMetrics, error) {
	pipe := c.client.Pipeline()
	queuedCmd := pipe.ZCard(ctx, "retry:due")
	inFlightCmd := pipe.ZCard(ctx, "retry:inflight")
	deadCmd := pipe.ZCard(ctx, "retry:dead")

	if _, err := pipe.Exec(ctx); err != nil {
		return QueueDepthMetrics{}, fmt.Errorf("reading retry sets: %w", err)
	}

	return QueueDepthMetrics{
		Queued:     queuedCmd.Val(),
		InFlight:   inFlightCmd.Val(),
		DeadLetter: deadCmd.Val(),
	}, nil
}

// GetStatusCounts returns counts of audit records grouped by status
func (c *RedisCollector) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	statusCounts := map[string]int64{
		"pending":    0,
		"processing": 0,
		"completed":  0,
		"failed":     0,
	}

	var cursor uint64
	var keys []string

	for {
		var scanKeys []string
		var err error

		scanKeys, cursor, err = c.client.Scan(ctx, cursor, "webhooklog:*", 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning webhook log keys: %w", err)
		}

		keys = append(keys, scanKeys...)

		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return statusCounts, nil
	}

	// Use pipeline for efficient batch operations
	pipe := c.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))

	for i, key := range keys {
		cmds[i] = pipe.HGet(ctx, key, "status")
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("executing pipeline: %w", err)
	}

	for _, cmd := range cmds {
		status, err := cmd.Result()
		if err != nil {
			continue
		}
		if _, exists := statusCounts[status]; exists {
			statusCounts[status]++
		}
	}

	return statusCounts, nil
}

// GetThroughput sums the per-minute delivery counters over each window
func (c *RedisCollector) GetThroughput(ctx context.Context) (ThroughputMetrics, error) {
	currentMinute := time.Now().Unix() / 60

	keys := make([]string, 0, 15)
	for i := int64(0); i < 15; i++ {
		keys = append(keys, fmt.Sprintf("stats:completed:%d", currentMinute-i))
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return ThroughputMetrics{}, fmt.Errorf("reading delivery counters: %w", err)
	}

	var throughput ThroughputMetrics
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var count int64
		fmt.Sscanf(s, "%d", &count)

		throughput.LastFifteenMinutes += count
		if i < 5 {
			throughput.LastFiveMinutes += count
		}
		if i < 1 {
			throughput.LastMinute += count
		}
	}

	return throughput, nil
}

// GetActiveWorkers returns information about active retry workers
func (c *RedisCollector) GetActiveWorkers(ctx context.Context) ([]WorkerInfo, error) {
	var workers []WorkerInfo

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, "retryworker:heartbeat:*", 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning worker heartbeat keys: %w", err)
		}

		for _, key := range keys {
			data, err := c.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}

			var workerInfo WorkerInfo
			if err := json.Unmarshal([]byte(data), &workerInfo); err != nil {
				continue
			}

			workers = append(workers, workerInfo)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return workers, nil
}
