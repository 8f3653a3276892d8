package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/brgate/pix-gateway/internal/domain"
	"github.com/brgate/pix-gateway/internal/logging"
	"github.com/brgate/pix-gateway/internal/metrics"
	"github.com/brgate/pix-gateway/internal/service"
)

type webhookProcessor interface {
	HandleWebhook(ctx context.Context, n domain.WebhookNotification) (service.Result, bool, error)
}

type acquirerDirectory interface {
	Names() []string
}

type WebhookHandler struct {
	payments  webhookProcessor
	acquirers acquirerDirectory
	secret    string
}

func NewWebhookHandler(payments webhookProcessor, acquirers acquirerDirectory, secret string) *WebhookHandler {
	return &WebhookHandler{payments: payments, acquirers: acquirers, secret: secret}
}

// webhookPayload is the normalized shape adapters post. Acquirer-specific
// field names are translated before reaching this endpoint; the raw status
// string stays untouched for the status mapper.
type webhookPayload struct {
	EventID     string `json:"event_id"`
	ExternalID  string `json:"external_id"`
	Status      string `json:"status"`
	AmountCents *int64 `json:"amount_cents,omitempty"`
}

func (p webhookPayload) validate() []FieldError {
	var errs []FieldError

	if p.EventID == "" {
		errs = append(errs, FieldError{Field: "event_id", Message: "required"})
	}
	if p.ExternalID == "" {
		errs = append(errs, FieldError{Field: "external_id", Message: "required"})
	}
	if p.Status == "" {
		errs = append(errs, FieldError{Field: "status", Message: "required"})
	}

	return errs
}

// ReceiveAcquirerWebhook authenticates, normalizes, and hands the event to
// the payment service. A processing error answers 500 so the acquirer
// redelivers; the idempotency gate makes the redelivery safe.
func (h *WebhookHandler) ReceiveAcquirerWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	acquirerName := r.PathValue("acquirer")

	if !h.knownAcquirer(acquirerName) {
		RespondAppError(w, ErrUnknownAcquirer, nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sig := r.Header.Get("X-Webhook-Signature")
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("webhook signature verification failed", "acquirer", acquirerName)
		metrics.WebhooksTotal.WithLabelValues(acquirerName, "bad_signature").Inc()
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	result, replayed, err := h.payments.HandleWebhook(r.Context(), domain.WebhookNotification{
		Acquirer:       acquirerName,
		EventKey:       payload.EventID,
		ExternalID:     payload.ExternalID,
		RawStatus:      payload.Status,
		ConfirmedCents: payload.AmountCents,
	})
	if err != nil {
		log.Error("webhook processing failed",
			"acquirer", acquirerName,
			"event_id", payload.EventID,
			"error", err,
		)
		metrics.WebhooksTotal.WithLabelValues(acquirerName, "error").Inc()
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	outcome := result.Status
	if replayed {
		outcome = ResultReplayed
	}
	metrics.WebhooksTotal.WithLabelValues(acquirerName, outcome).Inc()

	log.Info("webhook handled",
		"acquirer", acquirerName,
		"event_id", payload.EventID,
		"external_id", payload.ExternalID,
		"result", result.Status,
		"replayed", replayed,
	)

	RespondSuccess(w, http.StatusOK, result)
}

// ResultReplayed is the metrics label for a redelivered event answered from
// the idempotency record.
const ResultReplayed = "replayed"

func (h *WebhookHandler) knownAcquirer(name string) bool {
	for _, n := range h.acquirers.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
