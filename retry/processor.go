package retry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/restaurant-platform/webhook-gateway/order"
)

/* Small consumer-side interfaces: the processor names only the behavior
 * it needs from its collaborators.
 */

// Sender redelivers a canonical order to the internal backend. It is the
// same circuit-breaker-guarded path the ingestion service uses.
type Sender interface {
	Forward(ctx context.Context, o order.CanonicalOrder) (int, error)
}

// LogStore is the slice of the webhook log the processor touches
type LogStore interface {
	MarkCompleted(ctx context.Context, id string, statusCode int, responseTime time.Duration) error
	IncrementRetry(ctx context.Context, id string) error
}

// MetricsSink records processor outcomes. Implementations must be
// non-blocking; nil disables metrics.
type MetricsSink interface {
	RetryAttempt(success bool)
	DeadLettered()
}

// Config tunes the processor. Zero values fall back to defaults.
type Config struct {
	Interval     time.Duration // scan cadence (default 5s)
	BatchSize    int           // max items claimed per cycle (default 50)
	Workers      int           // concurrent delivery workers (default 4)
	MaxAttempts  int           // dead-letter threshold (default 10)
	Backoff      Backoff       // default 1s initial, 24h cap
	StaleClaim   time.Duration // reclaim in_flight older than this (default 5m)
	DrainTimeout time.Duration // shutdown drain budget (default 30s)
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff.Initial = time.Second
	}
	if c.Backoff.Max <= 0 {
		c.Backoff.Max = 24 * time.Hour
	}
	if c.StaleClaim <= 0 {
		c.StaleClaim = 5 * time.Minute
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
	return c
}

/* Processor is the background scheduler: a ticker-driven scan feeding a
 * bounded worker pool over a channel. Per item, attempts are serialized
 * by the storage claim; across items there is no ordering guarantee.
 */
type Processor struct {
	queue   Queue
	logs    LogStore
	sender  Sender
	metrics MetricsSink // optional, nil = disabled
	cfg     Config

	// now is swappable for tests
	now func() time.Time
}

// NewProcessor creates a retry processor
func NewProcessor(queue Queue, logs LogStore, sender Sender, cfg Config) *Processor {
	return &Processor{
		queue:  queue,
		logs:   logs,
		sender: sender,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// WithMetrics attaches a metrics sink to the processor
func (p *Processor) WithMetrics(sink MetricsSink) *Processor {
	p.metrics = sink
	return p
}

/* Run scans for due items until ctx is cancelled, then drains: claimed
 * items already handed to workers finish against a fresh drain context
 * before Run returns, so no claim is abandoned mid-flight.
 */
func (p *Processor) Run(ctx context.Context) {
	items := make(chan Item)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				p.process(ctx, item)
			}
		}()
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			p.scan(ctx, items)
		}
	}

	close(items)
	wg.Wait()
}

// RunCycle performs a single scan synchronously. Exposed for tests and
// one-shot tooling.
func (p *Processor) RunCycle(ctx context.Context) {
	claimed, err := p.queue.ClaimDue(ctx, p.now(), p.cfg.BatchSize, p.cfg.StaleClaim)
	if err != nil {
		log.Printf("retry: claiming due items: %v", err)
		return
	}
	for _, item := range claimed {
		p.process(ctx, item)
	}
}

func (p *Processor) scan(ctx context.Context, items chan<- Item) {
	claimed, err := p.queue.ClaimDue(ctx, p.now(), p.cfg.BatchSize, p.cfg.StaleClaim)
	if err != nil {
		log.Printf("retry: claiming due items: %v", err)
		return
	}

	for _, item := range claimed {
		select {
		case items <- item:
		case <-ctx.Done():
			// Shutdown mid-batch: release unclaimed work immediately so
			// another instance can pick it up without waiting for the
			// stale-claim threshold.
			p.releaseUndispatched(item)
		}
	}
}

func (p *Processor) releaseUndispatched(item Item) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.queue.Release(ctx, item.ID, item.AttemptCount, p.now(), item.LastError); err != nil {
		log.Printf("retry: releasing item %s on shutdown: %v", item.ID, err)
	}
}

/* process runs one delivery attempt for a claimed item. When the parent
 * context is already cancelled (drain), storage updates run against a
 * bounded background context so the outcome is still recorded.
 */
func (p *Processor) process(ctx context.Context, item Item) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), p.cfg.DrainTimeout)
		defer cancel()
	}

	started := p.now()
	statusCode, err := p.sender.Forward(ctx, item.Order)
	took := time.Since(started)

	if err == nil {
		if p.metrics != nil {
			p.metrics.RetryAttempt(true)
		}
		if err := p.logs.MarkCompleted(ctx, item.WebhookLogID, statusCode, took); err != nil {
			log.Printf("retry: marking log %s completed: %v", item.WebhookLogID, err)
		}
		if err := p.queue.Resolve(ctx, item.ID); err != nil {
			log.Printf("retry: resolving item %s: %v", item.ID, err)
		}
		return
	}

	if p.metrics != nil {
		p.metrics.RetryAttempt(false)
	}
	if logErr := p.logs.IncrementRetry(ctx, item.WebhookLogID); logErr != nil {
		log.Printf("retry: incrementing retry count for log %s: %v", item.WebhookLogID, logErr)
	}

	attempt := item.AttemptCount + 1
	if attempt >= p.cfg.MaxAttempts {
		log.Printf("retry: item %s exhausted after %d attempts, dead-lettering: %v", item.ID, attempt, err)
		if p.metrics != nil {
			p.metrics.DeadLettered()
		}
		if dlErr := p.queue.MarkDead(ctx, item.ID, err.Error()); dlErr != nil {
			log.Printf("retry: dead-lettering item %s: %v", item.ID, dlErr)
		}
		return
	}

	next := p.now().Add(p.cfg.Backoff.Delay(attempt))
	if relErr := p.queue.Release(ctx, item.ID, attempt, next, err.Error()); relErr != nil {
		log.Printf("retry: releasing item %s: %v", item.ID, relErr)
	}
}
