package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresCollector implements the Collector interface for
// PostgreSQL-backed storage
type PostgresCollector struct {
	db *sql.DB
}

// NewPostgresCollector creates a new PostgreSQL metrics collector
func NewPostgresCollector(db *sql.DB) *PostgresCollector {
	return &PostgresCollector{
		db: db,
	}
}

// Collect gathers all metrics from PostgreSQL
func (c *PostgresCollector) Collect(ctx context.Context) (Metrics, error) {
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

	return Metrics{
		QueueDepths:  queueDepths,
		StatusCounts: statusCounts,
		Throughput:   throughput,
		Workers:      nil,
		Timestamp:    time.Now(),
	}, nil
}

// GetQueueDepths returns retry item counts per state
func (c *PostgresCollector) GetQueueDepths(ctx context.Context) (QueueDepthMetrics, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE state = 'queued'),
			COUNT(*) FILTER (WHERE state = 'in_flight'),
			COUNT(*) FILTER (WHERE state = 'dead_letter')
		FROM retry_items
	`

	var depths QueueDepthMetrics
	err := c.db.QueryRowContext(ctx, query).Scan(&depths.Queued, &depths.InFlight, &depths.DeadLetter)
	if err != nil {
		return QueueDepthMetrics{}, fmt.Errorf("counting retry items: %w", err)
	}
	return depths, nil
}

// GetStatusCounts returns counts of audit records grouped by status
func (c *PostgresCollector) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	statusCounts := map[string]int64{
		"pending":    0,
		"processing": 0,
		"completed":  0,
		"failed":     0,
	}

	rows, err := c.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM webhook_logs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting webhook logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		if _, exists := statusCounts[status]; exists {
			statusCounts[status] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}

	return statusCounts, nil
}

// GetThroughput counts completions by update time over each window
func (c *PostgresCollector) GetThroughput(ctx context.Context) (ThroughputMetrics, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE updated_at >= NOW() - INTERVAL '1 minute'),
			COUNT(*) FILTER (WHERE updated_at >= NOW() - INTERVAL '5 minutes'),
			COUNT(*) FILTER (WHERE updated_at >= NOW() - INTERVAL '15 minutes')
		FROM webhook_logs
		WHERE status = 'completed'
	`

	var throughput ThroughputMetrics
	err := c.db.QueryRowContext(ctx, query).Scan(
		&throughput.LastMinute,
		&throughput.LastFiveMinutes,
		&throughput.LastFifteenMinutes,
	)
	if err != nil {
		return ThroughputMetrics{}, fmt.Errorf("counting completions: %w", err)
	}
	return throughput, nil
}

// GetActiveWorkers is not tracked for PostgreSQL-backed deployments;
// worker heartbeats live in Redis
func (c *PostgresCollector) GetActiveWorkers(ctx context.Context) ([]WorkerInfo, error) {
	return nil, nil
}
