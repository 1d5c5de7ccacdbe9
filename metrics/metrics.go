package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the gateway.
type Metrics struct {
	// QueueDepths holds the size of each retry queue state
	QueueDepths QueueDepthMetrics `json:"queue_depths"`

	// StatusCounts maps audit log status name to record count
	StatusCounts map[string]int64 `json:"status_counts"`

	// Throughput represents orders delivered per time window
	Throughput ThroughputMetrics `json:"throughput"`

	// Workers lists the active retry workers
	Workers []WorkerInfo `json:"workers"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// QueueDepthMetrics represents the retry queue broken down by state.
type QueueDepthMetrics struct {
	Queued     int64 `json:"queued"`
	InFlight   int64 `json:"in_flight"`
	DeadLetter int64 `json:"dead_letter"`
}

// ThroughputMetrics represents orders delivered over different time windows.
type ThroughputMetrics struct {
	// LastMinute is orders delivered in the last 1 minute
	LastMinute int64 `json:"last_minute"`

	// LastFiveMinutes is orders delivered in the last 5 minutes
	LastFiveMinutes int64 `json:"last_five_minutes"`

	// LastFifteenMinutes is orders delivered in the last 15 minutes
	LastFifteenMinutes int64 `json:"last_fifteen_minutes"`
}

// WorkerInfo represents information about an active retry worker.
type WorkerInfo struct {
	// WorkerID is a unique identifier for the worker
	WorkerID string `json:"worker_id"`

	// Status is the current status of the worker (e.g., "idle", "processing")
	Status string `json:"status"`

	// LastHeartbeat is the timestamp of the last heartbeat
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Collector defines the interface for collecting metrics from the gateway.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetQueueDepths returns the retry queue size per state
	GetQueueDepths(ctx context.Context) (QueueDepthMetrics, error)

	// GetStatusCounts returns the count of audit records by status
	GetStatusCounts(ctx context.Context) (map[string]int64, error)

	// GetThroughput returns orders delivered over time windows
	GetThroughput(ctx context.Context) (ThroughputMetrics, error)

	// GetActiveWorkers returns information about active retry workers
	GetActiveWorkers(ctx context.Context) ([]WorkerInfo, error)
}
