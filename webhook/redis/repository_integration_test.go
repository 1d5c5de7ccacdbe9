//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restaurant-platform/webhook-gateway/order"
	"github.com/restaurant-platform/webhook-gateway/retry"
	"github.com/restaurant-platform/webhook-gateway/webhook"
)

func testOrder() order.CanonicalOrder {
	return order.CanonicalOrder{
		ExternalID: "TEST123",
		Provider:   "careem",
		Customer: order.Customer{
			Name:    "John Doe",
			Phone:   "+971501234567",
			Address: "Building 5, Street 12, Dubai",
		},
		Items: []order.Item{
			{Name: "Burger", Qty: 2, Price: 5.99},
		},
		TotalAmount: 11.98,
	}
}

func testLogRecord(id string) webhook.LogRecord {
	now := time.Now()
	return webhook.LogRecord{
		ID:             id,
		Provider:       "careem",
		EventType:      "order.created",
		Payload:        []byte(`{"order_id": "TEST123"}`),
		SignatureValid: true,
		Status:         webhook.Pending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestRepository_Logs_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("store and retrieve webhook log", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		rec := testLogRecord(GenerateID(t, 1))
		id, err := repo.CreateLog(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, id)

		retrieved, err := repo.GetLog(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "careem", retrieved.Provider)
		assert.Equal(t, "order.created", retrieved.EventType)
		assert.True(t, retrieved.SignatureValid)
		assert.Equal(t, webhook.Pending, retrieved.Status)
		assert.Equal(t, 0, retrieved.RetryCount)
	})

	t.Run("status follows the processing lifecycle", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		rec := testLogRecord(GenerateID(t, 2))
		_, err := repo.CreateLog(ctx, rec)
		require.NoError(t, err)

		require.NoError(t, repo.MarkProcessing(ctx, rec.ID))
		retrieved, err := repo.GetLog(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Processing, retrieved.Status)

		require.NoError(t, repo.MarkCompleted(ctx, rec.ID, 200, 150*time.Millisecond))
		retrieved, err = repo.GetLog(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Completed, retrieved.Status)
		assert.Equal(t, 200, retrieved.StatusCode)
		assert.Equal(t, int64(150), retrieved.ResponseTimeMs)
	})

	t.Run("completed log never regresses", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		rec := testLogRecord(GenerateID(t, 3))
		_, err := repo.CreateLog(ctx, rec)
		require.NoError(t, err)

		require.NoError(t, repo.MarkProcessing(ctx, rec.ID))
		require.NoError(t, repo.MarkCompleted(ctx, rec.ID, 200, 10*time.Millisecond))

		// A late failure report is a no-op, not an error
		require.NoError(t, repo.MarkFailed(ctx, rec.ID, 502, "bad gateway"))

		retrieved, err := repo.GetLog(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Completed, retrieved.Status)
		assert.Equal(t, 200, retrieved.StatusCode)
	})

	t.Run("failed log can complete after retry", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		rec := testLogRecord(GenerateID(t, 4))
		_, err := repo.CreateLog(ctx, rec)
		require.NoError(t, err)

		require.NoError(t, repo.MarkProcessing(ctx, rec.ID))
		require.NoError(t, repo.MarkFailed(ctx, rec.ID, 503, "backend unavailable"))
		require.NoError(t, repo.MarkCompleted(ctx, rec.ID, 200, 20*time.Millisecond))

		retrieved, err := repo.GetLog(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Completed, retrieved.Status)
	})

	t.Run("increment retry count", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		rec := testLogRecord(GenerateID(t, 5))
		_, err := repo.CreateLog(ctx, rec)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			require.NoError(t, repo.IncrementRetry(ctx, rec.ID))
		}

		retrieved, err := repo.GetLog(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, retrieved.RetryCount)
	})

	t.Run("set TTL on log record", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		rec := testLogRecord(GenerateID(t, 6))
		_, err := repo.CreateLog(ctx, rec)
		require.NoError(t, err)

		require.NoError(t, repo.SetLogTTL(ctx, rec.ID, time.Hour))

		ttl := GetKeyTTL(t, redisContainer.Addr, "webhooklog:"+rec.ID)
		assert.Greater(t, ttl, int64(3500))
		assert.LessOrEqual(t, ttl, int64(3600))
	})

	t.Run("get non-existent log", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		_, err := repo.GetLog(ctx, "non-existent-id")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestRepository_Queue_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueue and claim due item", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		item := retry.Item{
			ID:           GenerateID(t, 1),
			WebhookLogID: "log-1",
			Order:        testOrder(),
			AttemptCount: 0,
			NextRetryAt:  now.Add(-time.Second),
			State:        retry.Queued,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, repo.Enqueue(ctx, item))

		claimed, err := repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, item.ID, claimed[0].ID)
		assert.Equal(t, retry.InFlight, claimed[0].State)
		assert.Equal(t, "TEST123", claimed[0].Order.ExternalID)
		require.Len(t, claimed[0].Order.Items, 1)
		assert.Equal(t, 2, claimed[0].Order.Items[0].Qty)

		// Second claim finds nothing, the item is in flight
		claimed, err = repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("future item is not claimable", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		item := retry.Item{
			ID:           GenerateID(t, 2),
			WebhookLogID: "log-2",
			Order:        testOrder(),
			NextRetryAt:  now.Add(time.Hour),
			State:        retry.Queued,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, repo.Enqueue(ctx, item))

		claimed, err := repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("stale claim is reclaimed", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		item := retry.Item{
			ID:           GenerateID(t, 3),
			WebhookLogID: "log-3",
			Order:        testOrder(),
			NextRetryAt:  now.Add(-time.Second),
			State:        retry.Queued,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, repo.Enqueue(ctx, item))

		claimed, err := repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		// A scan far enough in the future treats the claim as stale:
		// the sweep requeues it and the same scan claims it again.
		later := now.Add(10 * time.Minute)
		claimed, err = repo.ClaimDue(ctx, later, 10, 5*time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, item.ID, claimed[0].ID)
	})

	t.Run("resolve removes the item", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		item := retry.Item{
			ID:           GenerateID(t, 4),
			WebhookLogID: "log-4",
			Order:        testOrder(),
			NextRetryAt:  now.Add(-time.Second),
			State:        retry.Queued,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, repo.Enqueue(ctx, item))

		claimed, err := repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		require.NoError(t, repo.Resolve(ctx, item.ID))
		assert.False(t, KeyExists(t, redisContainer.Addr, "retryitem:"+item.ID))
	})

	t.Run("release schedules the next attempt", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		item := retry.Item{
			ID:           GenerateID(t, 5),
			WebhookLogID: "log-5",
			Order:        testOrder(),
			NextRetryAt:  now.Add(-time.Second),
			State:        retry.Queued,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, repo.Enqueue(ctx, item))

		claimed, err := repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		next := now.Add(2 * time.Second)
		require.NoError(t, repo.Release(ctx, item.ID, 1, next, "connection refused"))

		// Not due until the backoff elapses
		claimed, err = repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		assert.Empty(t, claimed)

		claimed, err = repo.ClaimDue(ctx, next.Add(time.Second), 10, 5*time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, 1, claimed[0].AttemptCount)
		assert.Equal(t, "connection refused", claimed[0].LastError)
	})

	t.Run("dead letter and requeue", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		item := retry.Item{
			ID:           GenerateID(t, 6),
			WebhookLogID: "log-6",
			Order:        testOrder(),
			NextRetryAt:  now.Add(-time.Second),
			State:        retry.Queued,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, repo.Enqueue(ctx, item))

		claimed, err := repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		require.NoError(t, repo.MarkDead(ctx, item.ID, "max attempts exhausted"))

		dead, err := repo.ListDead(ctx, 10)
		require.NoError(t, err)
		require.Len(t, dead, 1)
		assert.Equal(t, item.ID, dead[0].ID)
		assert.Equal(t, retry.DeadLetter, dead[0].State)
		assert.Equal(t, "max attempts exhausted", dead[0].LastError)

		// No longer claimable while dead-lettered
		claimed, err = repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		assert.Empty(t, claimed)

		// Requeue resets the attempt counter and makes it due again
		require.NoError(t, repo.Requeue(ctx, item.ID, now))

		dead, err = repo.ListDead(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, dead)

		claimed, err = repo.ClaimDue(ctx, now, 10, 5*time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, 0, claimed[0].AttemptCount)
	})

	t.Run("requeue rejects non dead-letter item", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		err := repo.Requeue(ctx, "nope", time.Now())
		require.Error(t, err)
	})

	t.Run("queue depths", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		now := time.Now()
		for i := 0; i < 3; i++ {
			item := retry.Item{
				ID:           GenerateID(t, 10+i),
				WebhookLogID: "log-depth",
				Order:        testOrder(),
				NextRetryAt:  now.Add(time.Hour),
				State:        retry.Queued,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			require.NoError(t, repo.Enqueue(ctx, item))
		}

		queued, inFlight, dead, err := repo.QueueDepths(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), queued)
		assert.Equal(t, int64(0), inFlight)
		assert.Equal(t, int64(0), dead)
	})
}

func TestRepository_Heartbeat_Integration(t *testing.T) {
	ctx := context.Background()

	t.Run("set and list worker heartbeats", func(t *testing.T) {
		redisContainer, cleanup := SetupRedisContainer(t, ctx)
		defer cleanup()

		repo := CreateTestRepository(t, redisContainer.Addr)
		defer repo.Close(ctx)

		require.NoError(t, repo.SetWorkerHeartbeat(ctx, "worker-1", "idle"))
		require.NoError(t, repo.SetWorkerHeartbeat(ctx, "worker-2", "processing"))

		workers, err := repo.GetActiveWorkers(ctx)
		require.NoError(t, err)
		require.Len(t, workers, 2)

		ttl := GetKeyTTL(t, redisContainer.Addr, "retryworker:heartbeat:worker-1")
		assert.Greater(t, ttl, int64(0))
		assert.LessOrEqual(t, ttl, int64(60))
	})
}
