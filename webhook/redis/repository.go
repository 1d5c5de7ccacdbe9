package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/restaurant-platform/webhook-gateway/order"
	"github.com/restaurant-platform/webhook-gateway/retry"
	"github.com/restaurant-platform/webhook-gateway/webhook"
)

/* Redis implementation of webhook.Repository and retry.Queue.
 * Log records and retry items live in hashes; the retry schedule is a
 * sorted set scored by next-retry time, with a second sorted set holding
 * in-flight claims scored by claim time. All state transitions that need
 * exclusivity run as Lua scripts, so they are atomic on the server even
 * with multiple gateway instances sharing the store.
 */

const (
	logPrefix      = "webhooklog"  // webhooklog:{log_id}
	itemPrefix     = "retryitem"   // retryitem:{item_id}
	dueKey         = "retry:due"   // zset: item_id scored by next_retry_at
	inFlightKey    = "retry:inflight"
	deadLetterKey  = "retry:dead"
	statsPrefix    = "stats:completed" // stats:completed:{unix_minute}
	statsRetention = 20 * time.Minute
)

/* statusScript applies a log status transition only when the current
 * status is in the allowed set, keeping the forward-only invariant even
 * under concurrent writers. ARGV[1] is a comma-separated allowed list,
 * the rest are field/value pairs. Returns 1 when applied.
 */
var statusScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then return -1 end
local allowed = false
for s in string.gmatch(ARGV[1], '([^,]+)') do
  if s == cur then allowed = true end
end
if not allowed then return 0 end
for i = 2, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
return 1
`)

/* claimScript is the compare-and-swap claim. It first requeues stale
 * in-flight items (claims older than ARGV[3]), then moves up to ARGV[2]
 * due items from the due set to the in-flight set, stamping state and
 * claim time in the item hash. Returns the claimed ids.
 * KEYS: due zset, in-flight zset. ARGV: now, limit, stale-before, item
 * key prefix.
 */
var claimScript = redis.NewScript(`
local stale = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[3], 'LIMIT', 0, ARGV[2])
for _, id in ipairs(stale) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('ZADD', KEYS[1], ARGV[1], id)
  redis.call('HSET', ARGV[4] .. ':' .. id, 'state', 'queued')
end
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[1], id)
  redis.call('HSET', ARGV[4] .. ':' .. id, 'state', 'in_flight', 'claimed_at', ARGV[1])
end
return due
`)

// requeueScript resets a dead-letter item back to queued; a no-op unless
// the item really is dead-lettered. KEYS: dead zset, due zset, item hash.
var requeueScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[3], 'state')
if state ~= 'dead_letter' then return 0 end
redis.call('ZREM', KEYS[1], ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[3], 'state', 'queued', 'attempt_count', 0, 'next_retry_at', ARGV[1], 'updated_at', ARGV[1])
return 1
`)

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{client: client}, nil
}

// NewRepositoryWithClient wraps an existing client, used by tests
func NewRepositoryWithClient(client *redis.Client) *Repository {
	return &Repository{client: client}
}

// CreateLog persists a new audit record
func (r *Repository) CreateLog(ctx context.Context, rec webhook.LogRecord) (string, error) {
	err := r.client.HSet(ctx, logKey(rec.ID), map[string]interface{}{
		"id":               rec.ID,
		"provider":         rec.Provider,
		"event_type":       rec.EventType,
		"payload":          rec.Payload,
		"signature_valid":  strconv.FormatBool(rec.SignatureValid),
		"status_code":      rec.StatusCode,
		"response_time_ms": rec.ResponseTimeMs,
		"status":           rec.Status.String(),
		"retry_count":      rec.RetryCount,
		"created_at":       rec.CreatedAt.Unix(),
		"updated_at":       rec.UpdatedAt.Unix(),
	}).Err()
	if err != nil {
		return "", fmt.Errorf("storing webhook log: %w", err)
	}
	return rec.ID, nil
}

// GetLog retrieves an audit record by ID
func (r *Repository) GetLog(ctx context.Context, id string) (webhook.LogRecord, error) {
	data, err := r.client.HGetAll(ctx, logKey(id)).Result()
	if err != nil {
		return webhook.LogRecord{}, fmt.Errorf("getting webhook log: %w", err)
	}
	if len(data) == 0 {
		return webhook.LogRecord{}, fmt.Errorf("webhook log not found: %s", id)
	}

	return webhook.LogRecord{
		ID:             data["id"],
		Provider:       data["provider"],
		EventType:      data["event_type"],
		Payload:        []byte(data["payload"]),
		SignatureValid: data["signature_valid"] == "true",
		StatusCode:     int(parseInt64(data["status_code"])),
		ResponseTimeMs: parseInt64(data["response_time_ms"]),
		Status:         webhook.NewStatus(data["status"]),
		RetryCount:     int(parseInt64(data["retry_count"])),
		CreatedAt:      time.Unix(parseInt64(data["created_at"]), 0),
		UpdatedAt:      time.Unix(parseInt64(data["updated_at"]), 0),
	}, nil
}

// MarkProcessing moves a pending record to processing
func (r *Repository) MarkProcessing(ctx context.Context, id string) error {
	return r.transition(ctx, id, "pending",
		"status", webhook.Processing.String(),
		"updated_at", time.Now().Unix(),
	)
}

// MarkCompleted records the delivery outcome. Valid from processing and,
// for retry resolution, from failed.
func (r *Repository) MarkCompleted(ctx context.Context, id string, statusCode int, responseTime time.Duration) error {
	err := r.transition(ctx, id, "pending,processing,failed",
		"status", webhook.Completed.String(),
		"status_code", statusCode,
		"response_time_ms", responseTime.Milliseconds(),
		"updated_at", time.Now().Unix(),
	)
	if err != nil {
		return err
	}

	// Per-minute delivery counter for throughput metrics
	minuteKey := fmt.Sprintf("%s:%d", statsPrefix, time.Now().Unix()/60)
	pipe := r.client.Pipeline()
	pipe.Incr(ctx, minuteKey)
	pipe.Expire(ctx, minuteKey, statsRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording throughput: %w", err)
	}
	return nil
}

// MarkFailed records a failure with the rejection reason
func (r *Repository) MarkFailed(ctx context.Context, id string, statusCode int, reason string) error {
	return r.transition(ctx, id, "pending,processing",
		"status", webhook.Failed.String(),
		"status_code", statusCode,
		"failure_reason", reason,
		"updated_at", time.Now().Unix(),
	)
}

// IncrementRetry increments the retry count for a log record
func (r *Repository) IncrementRetry(ctx context.Context, id string) error {
	key := logKey(id)
	if err := r.client.HIncrBy(ctx, key, "retry_count", 1).Err(); err != nil {
		return fmt.Errorf("incrementing retry count: %w", err)
	}
	if err := r.client.HSet(ctx, key, "updated_at", time.Now().Unix()).Err(); err != nil {
		return fmt.Errorf("updating timestamp: %w", err)
	}
	return nil
}

// SetLogTTL sets an expiration on a log record hash
func (r *Repository) SetLogTTL(ctx context.Context, id string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, logKey(id), ttl).Err(); err != nil {
		return fmt.Errorf("setting TTL on webhook log: %w", err)
	}
	return nil
}

func (r *Repository) transition(ctx context.Context, id, allowed string, fields ...interface{}) error {
	argv := make([]interface{}, 0, len(fields)+1)
	argv = append(argv, allowed)
	argv = append(argv, fields...)

	res, err := statusScript.Run(ctx, r.client, []string{logKey(id)}, argv...).Int()
	if err != nil {
		return fmt.Errorf("updating log status: %w", err)
	}
	if res == -1 {
		return fmt.Errorf("webhook log not found: %s", id)
	}
	// res == 0: transition would regress, idempotent no-op
	return nil
}

// --- retry.Queue ---

// Enqueue adds a queued retry item scheduled at item.NextRetryAt
func (r *Repository) Enqueue(ctx context.Context, item retry.Item) error {
	orderJSON, err := json.Marshal(item.Order)
	if err != nil {
		return fmt.Errorf("marshaling canonical order: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, itemKey(item.ID), map[string]interface{}{
		"id":             item.ID,
		"webhook_log_id": item.WebhookLogID,
		"order":          string(orderJSON),
		"attempt_count":  item.AttemptCount,
		"next_retry_at":  item.NextRetryAt.Unix(),
		"last_error":     item.LastError,
		"state":          retry.Queued.String(),
		"created_at":     item.CreatedAt.Unix(),
		"updated_at":     item.UpdatedAt.Unix(),
	})
	pipe.ZAdd(ctx, dueKey, redis.Z{Score: float64(item.NextRetryAt.Unix()), Member: item.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueueing retry item: %w", err)
	}
	return nil
}

// ClaimDue atomically claims due items, reclaiming stale in-flight ones
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int, staleAfter time.Duration) ([]retry.Item, error) {
	ids, err := claimScript.Run(ctx, r.client,
		[]string{dueKey, inFlightKey},
		now.Unix(), limit, now.Add(-staleAfter).Unix(), itemPrefix,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("claiming due items: %w", err)
	}

	items := make([]retry.Item, 0, len(ids))
	for _, id := range ids {
		item, err := r.getItem(ctx, id)
		if err != nil {
			// Claimed but unreadable; the stale-claim sweep will recover it
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Resolve removes a delivered item entirely
func (r *Repository) Resolve(ctx context.Context, id string) error {
	pipe := r.client.Pipeline()
	pipe.ZRem(ctx, inFlightKey, id)
	pipe.ZRem(ctx, dueKey, id)
	pipe.Del(ctx, itemKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("resolving retry item: %w", err)
	}
	return nil
}

// Release returns a claimed item to the queue for another attempt
func (r *Repository) Release(ctx context.Context, id string, attemptCount int, nextRetryAt time.Time, lastError string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, itemKey(id), map[string]interface{}{
		"state":         retry.Queued.String(),
		"attempt_count": attemptCount,
		"next_retry_at": nextRetryAt.Unix(),
		"last_error":    lastError,
		"updated_at":    time.Now().Unix(),
	})
	pipe.ZRem(ctx, inFlightKey, id)
	pipe.ZAdd(ctx, dueKey, redis.Z{Score: float64(nextRetryAt.Unix()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("releasing retry item: %w", err)
	}
	return nil
}

// MarkDead moves an exhausted item to the dead-letter set
func (r *Repository) MarkDead(ctx context.Context, id string, lastError string) error {
	now := time.Now()
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, itemKey(id), map[string]interface{}{
		"state":      retry.DeadLetter.String(),
		"last_error": lastError,
		"updated_at": now.Unix(),
	})
	pipe.ZRem(ctx, inFlightKey, id)
	pipe.ZAdd(ctx, deadLetterKey, redis.Z{Score: float64(now.Unix()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dead-lettering retry item: %w", err)
	}
	return nil
}

// ListDead returns dead-letter items, oldest first
func (r *Repository) ListDead(ctx context.Context, limit int) ([]retry.Item, error) {
	ids, err := r.client.ZRange(ctx, deadLetterKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}

	items := make([]retry.Item, 0, len(ids))
	for _, id := range ids {
		item, err := r.getItem(ctx, id)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Requeue resets a dead-letter item back to queued
func (r *Repository) Requeue(ctx context.Context, id string, nextRetryAt time.Time) error {
	res, err := requeueScript.Run(ctx, r.client,
		[]string{deadLetterKey, dueKey, itemKey(id)},
		nextRetryAt.Unix(), id,
	).Int()
	if err != nil {
		return fmt.Errorf("requeueing dead letter: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("retry item %s is not dead-lettered", id)
	}
	return nil
}

// QueueDepths returns the size of each retry set, used by metrics
func (r *Repository) QueueDepths(ctx context.Context) (queued, inFlight, dead int64, err error) {
	pipe := r.client.Pipeline()
	dueCmd := pipe.ZCard(ctx, dueKey)
	inFlightCmd := pipe.ZCard(ctx, inFlightKey)
	deadCmd := pipe.ZCard(ctx, deadLetterKey)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("reading queue depths: %w", err)
	}
	return dueCmd.Val(), inFlightCmd.Val(), deadCmd.Val(), nil
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (r *Repository) GetClient() *redis.Client {
	return r.client
}

func (r *Repository) getItem(ctx context.Context, id string) (retry.Item, error) {
	data, err := r.client.HGetAll(ctx, itemKey(id)).Result()
	if err != nil {
		return retry.Item{}, fmt.Errorf("getting retry item: %w", err)
	}
	if len(data) == 0 {
		return retry.Item{}, fmt.Errorf("retry item not found: %s", id)
	}

	var canonical order.CanonicalOrder
	if raw := data["order"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &canonical); err != nil {
			return retry.Item{}, fmt.Errorf("unmarshaling canonical order: %w", err)
		}
	}

	return retry.Item{
		ID:           data["id"],
		WebhookLogID: data["webhook_log_id"],
		Order:        canonical,
		AttemptCount: int(parseInt64(data["attempt_count"])),
		NextRetryAt:  time.Unix(parseInt64(data["next_retry_at"]), 0),
		LastError:    data["last_error"],
		State:        retry.NewState(data["state"]),
		ClaimedAt:    time.Unix(parseInt64(data["claimed_at"]), 0),
		CreatedAt:    time.Unix(parseInt64(data["created_at"]), 0),
		UpdatedAt:    time.Unix(parseInt64(data["updated_at"]), 0),
	}, nil
}

// Helper functions

func logKey(id string) string  { return fmt.Sprintf("%s:%s", logPrefix, id) }
func itemKey(id string) string { return fmt.Sprintf("%s:%s", itemPrefix, id) }

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
