package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/textproto"
	"time"

	"github.com/google/uuid"

	"github.com/restaurant-platform/webhook-gateway/order"
	"github.com/restaurant-platform/webhook-gateway/providers"
	"github.com/restaurant-platform/webhook-gateway/retry"
	"github.com/restaurant-platform/webhook-gateway/webhook/signature"
)

/* Service represents the ingestion business logic layer.
 * Uses pointer semantics as it's an API, not data.
 */

// Forwarder delivers a canonical order to the internal backend through
// the circuit breaker. Returns the backend status code, 0 when no
// response was obtained.
type Forwarder interface {
	Forward(ctx context.Context, o order.CanonicalOrder) (int, error)
}

// RateLimiter caps requests per provider within the configured window
type RateLimiter interface {
	Allow(provider string) bool
}

// UseCase defines the operations the HTTP layer consumes
type UseCase interface {
	Ingest(ctx context.Context, provider string, body []byte, headers map[string]string, remoteAddr string) (Result, error)
	Log(ctx context.Context, id string) (LogRecord, error)
	DeadLetters(ctx context.Context, limit int) ([]retry.Item, error)
	RequeueDeadLetter(ctx context.Context, id string) error
}

// Result reports the outcome of one ingested webhook
type Result struct {
	LogID string
	// Queued is true when delivery failed transiently and the order was
	// handed to the retry queue
	Queued bool
}

// Options tunes the ingestion service
type Options struct {
	// InitialRetryDelay schedules the first asynchronous retry
	// (default 1s)
	InitialRetryDelay time.Duration
	// CompletedTTL expires completed audit records; 0 keeps them forever
	CompletedTTL time.Duration
}

type Service struct {
	repo     Repository
	queue    retry.Queue
	forward  Forwarder
	limiter  RateLimiter
	registry *providers.Registry
	opts     Options
}

// NewService creates the ingestion service with dependency injection
func NewService(repo Repository, queue retry.Queue, forward Forwarder, limiter RateLimiter, registry *providers.Registry, opts Options) *Service {
	if opts.InitialRetryDelay <= 0 {
		opts.InitialRetryDelay = time.Second
	}
	return &Service{
		repo:     repo,
		queue:    queue,
		forward:  forward,
		limiter:  limiter,
		registry: registry,
		opts:     opts,
	}
}

/* Ingest runs the pipeline for one inbound webhook:
 * adapter lookup, allow-list, rate limit, signature verification, audit
 * logging, normalization, circuit-breaker-guarded delivery, and retry
 * enqueueing for transient failures.
 *
 * The raw body bytes are used for both signature verification and
 * parsing; nothing is re-serialized in between.
 */
func (s *Service) Ingest(ctx context.Context, provider string, body []byte, headers map[string]string, remoteAddr string) (Result, error) {
	adapter, settings, err := s.registry.Get(provider)
	if err != nil {
		return Result{}, err
	}

	if !settings.AllowsAddr(remoteAddr) {
		return Result{}, fmt.Errorf("%w: %s", ErrAddrNotAllowed, remoteAddr)
	}

	if !s.limiter.Allow(provider) {
		return Result{}, fmt.Errorf("%w: provider %s", ErrRateLimited, provider)
	}

	sigHeader := headerValue(headers, adapter.SignatureHeader())
	if !signature.Validate(body, sigHeader, settings.Secret, adapter.SignatureEncoding()) {
		// Logged for audit, never forwarded or retried
		rec := s.newLogRecord(provider, adapter.EventType(body), body)
		rec.SignatureValid = false
		rec.Status = Failed
		if _, logErr := s.repo.CreateLog(ctx, rec); logErr != nil {
			log.Printf("webhook: logging rejected signature for %s: %v", provider, logErr)
		}
		return Result{}, ErrInvalidSignature
	}

	rec := s.newLogRecord(provider, adapter.EventType(body), body)
	rec.SignatureValid = true
	logID, err := s.repo.CreateLog(ctx, rec)
	if err != nil {
		return Result{}, fmt.Errorf("creating webhook log: %w", err)
	}
	if err := s.repo.MarkProcessing(ctx, logID); err != nil {
		return Result{}, fmt.Errorf("marking log processing: %w", err)
	}

	canonical, err := adapter.Parse(body)
	if err != nil {
		if markErr := s.repo.MarkFailed(ctx, logID, 0, err.Error()); markErr != nil {
			log.Printf("webhook: marking log %s failed: %v", logID, markErr)
		}
		return Result{LogID: logID}, err
	}

	started := time.Now()
	statusCode, err := s.forward.Forward(ctx, canonical)
	took := time.Since(started)

	if err == nil {
		if err := s.repo.MarkCompleted(ctx, logID, statusCode, took); err != nil {
			return Result{LogID: logID}, fmt.Errorf("marking log completed: %w", err)
		}
		if s.opts.CompletedTTL > 0 {
			if ttlErr := s.repo.SetLogTTL(ctx, logID, s.opts.CompletedTTL); ttlErr != nil {
				log.Printf("webhook: setting TTL on log %s: %v", logID, ttlErr)
			}
		}
		return Result{LogID: logID}, nil
	}

	if markErr := s.repo.MarkFailed(ctx, logID, statusCode, err.Error()); markErr != nil {
		log.Printf("webhook: marking log %s failed: %v", logID, markErr)
	}

	// A backend response that rejects the payload outright will reject
	// it on every replay too; retrying would only burn attempts.
	var permanent interface{ Retryable() bool }
	if errors.As(err, &permanent) && !permanent.Retryable() {
		return Result{LogID: logID}, fmt.Errorf("backend rejected order: %w", err)
	}

	item := retry.Item{
		ID:           uuid.New().String(),
		WebhookLogID: logID,
		Order:        canonical,
		AttemptCount: 0,
		NextRetryAt:  time.Now().Add(s.opts.InitialRetryDelay),
		LastError:    err.Error(),
		State:        retry.Queued,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.queue.Enqueue(ctx, item); err != nil {
		return Result{LogID: logID}, fmt.Errorf("enqueueing retry item: %w", err)
	}

	return Result{LogID: logID, Queued: true}, &DeliveryError{LogID: logID, Err: err}
}

// Log returns an audit record by ID
func (s *Service) Log(ctx context.Context, id string) (LogRecord, error) {
	rec, err := s.repo.GetLog(ctx, id)
	if err != nil {
		return LogRecord{}, fmt.Errorf("getting webhook log: %w", err)
	}
	return rec, nil
}

// DeadLetters lists items that exhausted their retry budget
func (s *Service) DeadLetters(ctx context.Context, limit int) ([]retry.Item, error) {
	items, err := s.queue.ListDead(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}
	return items, nil
}

// RequeueDeadLetter puts a dead-letter item back in the queue with a
// fresh attempt budget
func (s *Service) RequeueDeadLetter(ctx context.Context, id string) error {
	if err := s.queue.Requeue(ctx, id, time.Now()); err != nil {
		return fmt.Errorf("requeueing dead letter: %w", err)
	}
	return nil
}

func (s *Service) newLogRecord(provider, eventType string, body []byte) LogRecord {
	now := time.Now()
	return LogRecord{
		ID:        uuid.New().String(),
		Provider:  provider,
		EventType: eventType,
		Payload:   body,
		Status:    Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// headerValue does a case-insensitive header lookup on the flattened map
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	canonical := textproto.CanonicalMIMEHeaderKey(name)
	if v, ok := headers[canonical]; ok {
		return v
	}
	for k, v := range headers {
		if textproto.CanonicalMIMEHeaderKey(k) == canonical {
			return v
		}
	}
	return ""
}
