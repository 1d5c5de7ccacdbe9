package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/restaurant-platform/webhook-gateway/providers"
	"github.com/restaurant-platform/webhook-gateway/retry"
	"github.com/restaurant-platform/webhook-gateway/webhook"
)

/* HTTP layer DTOs for the gateway API
 * Separate from domain entities to avoid leaking internal structure
 */

// maxBodyBytes caps inbound webhook payloads at 1 MiB
const maxBodyBytes = 1 << 20

// ingestResponse represents the API response for an ingested webhook
type ingestResponse struct {
	LogID  string `json:"log_id"`
	Status string `json:"status"`
}

// errorResponse is the uniform error body
type errorResponse struct {
	Error string `json:"error"`
}

// logResponse represents an audit record in the API
type logResponse struct {
	ID             string    `json:"id"`
	Provider       string    `json:"provider"`
	EventType      string    `json:"event_type"`
	SignatureValid bool      `json:"signature_valid"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	Status         string    `json:"status"`
	RetryCount     int       `json:"retry_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// deadLetterResponse represents an exhausted retry item in the API
type deadLetterResponse struct {
	ID           string    `json:"id"`
	WebhookLogID string    `json:"webhook_log_id"`
	Provider     string    `json:"provider"`
	ExternalID   string    `json:"external_id"`
	AttemptCount int       `json:"attempt_count"`
	LastError    string    `json:"last_error"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// postWebhook handles POST /api/webhooks/{provider}
func postWebhook(webhookService webhook.UseCase, fastAck bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		if provider == "" {
			writeError(w, http.StatusBadRequest, "provider is required")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		defer r.Body.Close()

		headers := make(map[string]string)
		for key, values := range r.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}

		result, err := webhookService.Ingest(r.Context(), provider, body, headers, r.RemoteAddr)
		if err != nil {
			status, queued := ingestErrorStatus(err, fastAck)
			if !queued {
				writeError(w, status, err.Error())
				return
			}
			// Transient delivery failure: the order sits in the retry
			// queue, so the webhook itself has been accepted
			writeJSON(w, status, ingestResponse{LogID: result.LogID, Status: "queued"})
			return
		}

		writeJSON(w, http.StatusOK, ingestResponse{LogID: result.LogID, Status: "delivered"})
	})
}

// ingestErrorStatus maps pipeline errors to HTTP status codes. The
// second return is true for transient failures that were queued.
func ingestErrorStatus(err error, fastAck bool) (int, bool) {
	var (
		parseErr    *providers.ParseError
		deliveryErr *webhook.DeliveryError
	)
	switch {
	case errors.Is(err, providers.ErrUnsupportedProvider):
		return http.StatusNotFound, false
	case errors.Is(err, webhook.ErrRateLimited):
		return http.StatusTooManyRequests, false
	case errors.Is(err, webhook.ErrInvalidSignature):
		return http.StatusUnauthorized, false
	case errors.Is(err, webhook.ErrAddrNotAllowed):
		return http.StatusForbidden, false
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, false
	case errors.As(err, &deliveryErr):
		if fastAck {
			return http.StatusOK, true
		}
		return http.StatusServiceUnavailable, true
	default:
		return http.StatusInternalServerError, false
	}
}

// getLog handles GET /api/webhooks/logs/{id}
func getLog(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := webhookService.Log(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, logResponse{
			ID:             rec.ID,
			Provider:       rec.Provider,
			EventType:      rec.EventType,
			SignatureValid: rec.SignatureValid,
			StatusCode:     rec.StatusCode,
			ResponseTimeMs: rec.ResponseTimeMs,
			Status:         rec.Status.String(),
			RetryCount:     rec.RetryCount,
			CreatedAt:      rec.CreatedAt,
			UpdatedAt:      rec.UpdatedAt,
		})
	})
}

// getDeadLetters handles GET /api/webhooks/deadletter
func getDeadLetters(webhookService webhook.UseCase, limit int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items, err := webhookService.DeadLetters(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]deadLetterResponse, 0, len(items))
		for _, item := range items {
			responses = append(responses, toDeadLetterResponse(item))
		}
		writeJSON(w, http.StatusOK, responses)
	})
}

// postRequeue handles POST /api/webhooks/deadletter/{id}/requeue
func postRequeue(webhookService webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := webhookService.RequeueDeadLetter(r.Context(), id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "requeued"})
	})
}

func toDeadLetterResponse(item retry.Item) deadLetterResponse {
	return deadLetterResponse{
		ID:           item.ID,
		WebhookLogID: item.WebhookLogID,
		Provider:     item.Order.Provider,
		ExternalID:   item.Order.ExternalID,
		AttemptCount: item.AttemptCount,
		LastError:    item.LastError,
		UpdatedAt:    item.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
