package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/restaurant-platform/webhook-gateway/order"
	"github.com/restaurant-platform/webhook-gateway/retry"
	"github.com/restaurant-platform/webhook-gateway/webhook"
)

/* PostgreSQL implementation of webhook.Repository and retry.Queue.
 *
 * Status transitions are conditional UPDATEs guarded by the current
 * status, so the forward-only invariant holds under concurrent writers.
 * Queue claims run in a transaction with FOR UPDATE SKIP LOCKED, which
 * lets multiple gateway instances scan the same table without handing
 * the same item to two workers.
 */

type Repository struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// NewRepository opens a PostgreSQL repository with the default pool (25, 5, 5 min)
func NewRepository(connectionString string) (*Repository, error) {
	return NewRepositoryWithPoolConfig(connectionString, 25, 5, 5)
}

// NewRepositoryWithPoolConfig opens a PostgreSQL repository with a custom pool.
// maxOpenConns: maximum simultaneous connections (0 = unlimited)
// maxIdleConns: maximum idle connections kept in the pool
// maxLifeMinutes: maximum minutes a connection may be reused
func NewRepositoryWithPoolConfig(connectionString string, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*Repository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if maxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(maxLifeMinutes) * time.Minute)
	}

	return &Repository{DB: db}, nil
}

// CreateLog persists a new audit record
func (r *Repository) CreateLog(ctx context.Context, rec webhook.LogRecord) (string, error) {
	query := `
		INSERT INTO webhook_logs
			(id, provider, event_type, payload, signature_valid, status_code,
			 response_time_ms, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.DB.ExecContext(ctx, query,
		rec.ID, rec.Provider, rec.EventType, rec.Payload, rec.SignatureValid,
		rec.StatusCode, rec.ResponseTimeMs, rec.Status.String(), rec.RetryCount,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("inserting webhook log: %w", err)
	}
	return rec.ID, nil
}

// GetLog retrieves an audit record by ID
func (r *Repository) GetLog(ctx context.Context, id string) (webhook.LogRecord, error) {
	query := `
		SELECT id, provider, event_type, payload, signature_valid, status_code,
		       response_time_ms, status, retry_count, created_at, updated_at
		FROM webhook_logs
		WHERE id = $1
	`

	var (
		rec    webhook.LogRecord
		status string
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Provider, &rec.EventType, &rec.Payload, &rec.SignatureValid,
		&rec.StatusCode, &rec.ResponseTimeMs, &status, &rec.RetryCount,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return webhook.LogRecord{}, fmt.Errorf("webhook log not found: %s", id)
	}
	if err != nil {
		return webhook.LogRecord{}, fmt.Errorf("selecting webhook log: %w", err)
	}

	rec.Status = webhook.NewStatus(status)
	return rec, nil
}

// MarkProcessing moves a pending record to processing
func (r *Repository) MarkProcessing(ctx context.Context, id string) error {
	query := `
		UPDATE webhook_logs
		SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	return r.transition(ctx, id, query)
}

// MarkCompleted records the delivery outcome. Valid from processing and,
// for retry resolution, from failed.
func (r *Repository) MarkCompleted(ctx context.Context, id string, statusCode int, responseTime time.Duration) error {
	query := `
		UPDATE webhook_logs
		SET status = 'completed', status_code = $2, response_time_ms = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing', 'failed')
	`
	return r.transition(ctx, id, query, statusCode, responseTime.Milliseconds())
}

// MarkFailed records a failure with the rejection reason
func (r *Repository) MarkFailed(ctx context.Context, id string, statusCode int, reason string) error {
	query := `
		UPDATE webhook_logs
		SET status = 'failed', status_code = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`
	return r.transition(ctx, id, query, statusCode, reason)
}

// IncrementRetry increments the retry count for a log record
func (r *Repository) IncrementRetry(ctx context.Context, id string) error {
	query := `
		UPDATE webhook_logs
		SET retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("incrementing retry count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("webhook log not found: %s", id)
	}
	return nil
}

// SetLogTTL stamps an expiry time on a log record. PostgreSQL has no key
// expiry, so PurgeExpiredLogs sweeps stamped rows on a timer.
func (r *Repository) SetLogTTL(ctx context.Context, id string, ttl time.Duration) error {
	query := `UPDATE webhook_logs SET expires_at = $2 WHERE id = $1`
	if _, err := r.DB.ExecContext(ctx, query, id, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("setting log expiry: %w", err)
	}
	return nil
}

// PurgeExpiredLogs deletes completed logs whose expiry has passed
func (r *Repository) PurgeExpiredLogs(ctx context.Context) (int64, error) {
	query := `DELETE FROM webhook_logs WHERE expires_at IS NOT NULL AND expires_at <= NOW()`
	result, err := r.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("purging expired logs: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return rows, nil
}

// transition runs a guarded status UPDATE. Zero rows affected means the
// record is either missing or the transition would regress; a regress is
// an idempotent no-op, so we only report missing records.
func (r *Repository) transition(ctx context.Context, id, query string, args ...interface{}) error {
	all := append([]interface{}{id}, args...)
	result, err := r.DB.ExecContext(ctx, query, all...)
	if err != nil {
		return fmt.Errorf("updating log status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		check := `SELECT EXISTS(SELECT 1 FROM webhook_logs WHERE id = $1)`
		if err := r.DB.QueryRowContext(ctx, check, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking log existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("webhook log not found: %s", id)
		}
	}
	return nil
}

// --- retry.Queue ---

// Enqueue adds a queued retry item scheduled at item.NextRetryAt
func (r *Repository) Enqueue(ctx context.Context, item retry.Item) error {
	orderJSON, err := json.Marshal(item.Order)
	if err != nil {
		return fmt.Errorf("marshaling canonical order: %w", err)
	}

	query := `
		INSERT INTO retry_items
			(id, webhook_log_id, order_payload, attempt_count, next_retry_at,
			 last_error, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'queued', $7, $8)
	`
	_, err = r.DB.ExecContext(ctx, query,
		item.ID, item.WebhookLogID, orderJSON, item.AttemptCount,
		item.NextRetryAt, item.LastError, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueueing retry item: %w", err)
	}
	return nil
}

// ClaimDue atomically claims due items, reclaiming stale in-flight ones
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int, staleAfter time.Duration) ([]retry.Item, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	// Workers that died mid-attempt leave claims behind; put those back
	reclaim := `
		UPDATE retry_items
		SET state = 'queued', claimed_at = NULL, updated_at = $1
		WHERE state = 'in_flight' AND claimed_at <= $2
	`
	if _, err := tx.ExecContext(ctx, reclaim, now, now.Add(-staleAfter)); err != nil {
		return nil, fmt.Errorf("reclaiming stale items: %w", err)
	}

	selectDue := `
		SELECT id FROM retry_items
		WHERE state = 'queued' AND next_retry_at <= $1
		ORDER BY next_retry_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.QueryContext(ctx, selectDue, now, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting due items: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning due item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating due items: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	claim := `
		UPDATE retry_items
		SET state = 'in_flight', claimed_at = $1, updated_at = $1
		WHERE id = ANY($2)
	`
	if _, err := tx.ExecContext(ctx, claim, now, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("claiming due items: %w", err)
	}

	items, err := r.selectItemsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return items, nil
}

// Resolve removes a delivered item entirely
func (r *Repository) Resolve(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM retry_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("resolving retry item: %w", err)
	}
	return nil
}

// Release returns a claimed item to the queue for another attempt
func (r *Repository) Release(ctx context.Context, id string, attemptCount int, nextRetryAt time.Time, lastError string) error {
	query := `
		UPDATE retry_items
		SET state = 'queued', claimed_at = NULL, attempt_count = $2,
		    next_retry_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.DB.ExecContext(ctx, query, id, attemptCount, nextRetryAt, lastError); err != nil {
		return fmt.Errorf("releasing retry item: %w", err)
	}
	return nil
}

// MarkDead moves an exhausted item to the dead letter state
func (r *Repository) MarkDead(ctx context.Context, id string, lastError string) error {
	query := `
		UPDATE retry_items
		SET state = 'dead_letter', claimed_at = NULL, last_error = $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.DB.ExecContext(ctx, query, id, lastError); err != nil {
		return fmt.Errorf("dead-lettering retry item: %w", err)
	}
	return nil
}

// ListDead returns dead-letter items, oldest first
func (r *Repository) ListDead(ctx context.Context, limit int) ([]retry.Item, error) {
	query := `
		SELECT id, webhook_log_id, order_payload, attempt_count, next_retry_at,
		       last_error, state, claimed_at, created_at, updated_at
		FROM retry_items
		WHERE state = 'dead_letter'
		ORDER BY updated_at
		LIMIT $1
	`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// Requeue resets a dead-letter item back to queued
func (r *Repository) Requeue(ctx context.Context, id string, nextRetryAt time.Time) error {
	query := `
		UPDATE retry_items
		SET state = 'queued', attempt_count = 0, next_retry_at = $2,
		    claimed_at = NULL, updated_at = NOW()
		WHERE id = $1 AND state = 'dead_letter'
	`
	result, err := r.DB.ExecContext(ctx, query, id, nextRetryAt)
	if err != nil {
		return fmt.Errorf("requeueing dead letter: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("retry item %s is not dead-lettered", id)
	}
	return nil
}

// QueueDepths returns the size of each retry state, used by metrics
func (r *Repository) QueueDepths(ctx context.Context) (queued, inFlight, dead int64, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE state = 'queued'),
			COUNT(*) FILTER (WHERE state = 'in_flight'),
			COUNT(*) FILTER (WHERE state = 'dead_letter')
		FROM retry_items
	`
	if err = r.DB.QueryRowContext(ctx, query).Scan(&queued, &inFlight, &dead); err != nil {
		return 0, 0, 0, fmt.Errorf("reading queue depths: %w", err)
	}
	return queued, inFlight, dead, nil
}

// Close closes the database connection
func (r *Repository) Close(ctx context.Context) error {
	if r.DB != nil {
		return r.DB.Close()
	}
	return nil
}

func (r *Repository) selectItemsTx(ctx context.Context, tx *sql.Tx, ids []string) ([]retry.Item, error) {
	query := `
		SELECT id, webhook_log_id, order_payload, attempt_count, next_retry_at,
		       last_error, state, claimed_at, created_at, updated_at
		FROM retry_items
		WHERE id = ANY($1)
		ORDER BY next_retry_at
	`
	rows, err := tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("selecting claimed items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]retry.Item, error) {
	var items []retry.Item
	for rows.Next() {
		var (
			item      retry.Item
			orderJSON []byte
			state     string
			claimedAt sql.NullTime
		)
		err := rows.Scan(
			&item.ID, &item.WebhookLogID, &orderJSON, &item.AttemptCount,
			&item.NextRetryAt, &item.LastError, &state, &claimedAt,
			&item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning retry item: %w", err)
		}

		var canonical order.CanonicalOrder
		if len(orderJSON) > 0 {
			if err := json.Unmarshal(orderJSON, &canonical); err != nil {
				return nil, fmt.Errorf("unmarshaling canonical order: %w", err)
			}
		}
		item.Order = canonical
		item.State = retry.NewState(state)
		if claimedAt.Valid {
			item.ClaimedAt = claimedAt.Time
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating retry items: %w", err)
	}
	return items, nil
}

// CreateTables creates the gateway schema (useful for tests)
func (r *Repository) CreateTables(ctx context.Context) error {
	logs := `
		CREATE TABLE IF NOT EXISTS webhook_logs (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			event_type TEXT NOT NULL DEFAULT '',
			payload BYTEA,
			signature_valid BOOLEAN NOT NULL DEFAULT FALSE,
			status_code INTEGER NOT NULL DEFAULT 0,
			response_time_ms BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			failure_reason TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := r.DB.ExecContext(ctx, logs); err != nil {
		return fmt.Errorf("creating webhook_logs table: %w", err)
	}

	items := `
		CREATE TABLE IF NOT EXISTS retry_items (
			id TEXT PRIMARY KEY,
			webhook_log_id TEXT NOT NULL,
			order_payload JSONB NOT NULL,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			next_retry_at TIMESTAMPTZ NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			claimed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := r.DB.ExecContext(ctx, items); err != nil {
		return fmt.Errorf("creating retry_items table: %w", err)
	}

	index := `
		CREATE INDEX IF NOT EXISTS idx_retry_items_due
		ON retry_items (next_retry_at)
		WHERE state = 'queued'
	`
	if _, err := r.DB.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("creating due index: %w", err)
	}
	return nil
}

// DropTables removes the gateway schema (useful for tests)
func (r *Repository) DropTables(ctx context.Context) error {
	for _, query := range []string{
		"DROP TABLE IF EXISTS retry_items CASCADE",
		"DROP TABLE IF EXISTS webhook_logs CASCADE",
	} {
		if _, err := r.DB.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("dropping table: %w", err)
		}
	}
	return nil
}
