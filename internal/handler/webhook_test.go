package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brgate/pix-gateway/internal/domain"
	"github.com/brgate/pix-gateway/internal/service"
)

const testWebhookSecret = "test-secret-key"

type mockProcessor struct {
	got      *domain.WebhookNotification
	result   service.Result
	replayed bool
	err      error
}

func (m *mockProcessor) HandleWebhook(_ context.Context, n domain.WebhookNotification) (service.Result, bool, error) {
	m.got = &n
	return m.result, m.replayed, m.err
}

type mockDirectory struct{ names []string }

func (m *mockDirectory) Names() []string { return m.names }

func signPayload(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func validWebhookBody() string {
	p := webhookPayload{
		EventID:    uuid.NewString(),
		ExternalID: uuid.NewString(),
		Status:     "CONCLUIDA",
	}
	b, _ := json.Marshal(p)
	return string(b)
}

func TestVerifyHMAC(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      `{"event_id":"abc"}`,
			signature: signPayload(`{"event_id":"abc"}`, testWebhookSecret),
			secret:    testWebhookSecret,
			want:      true,
		},
		{
			name:      "wrong signature",
			body:      `{"event_id":"abc"}`,
			signature: "deadbeef",
			secret:    testWebhookSecret,
			want:      false,
		},
		{
			name:      "empty signature",
			body:      `{"event_id":"abc"}`,
			signature: "",
			secret:    testWebhookSecret,
			want:      false,
		},
		{
			name:      "wrong secret",
			body:      `{"event_id":"abc"}`,
			signature: signPayload(`{"event_id":"abc"}`, "other-secret"),
			secret:    testWebhookSecret,
			want:      false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := verifyHMAC([]byte(tc.body), tc.signature, tc.secret)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReceiveAcquirerWebhook(t *testing.T) {
	tests := []struct {
		name       string
		acquirer   string
		body       string
		setupSig   func(body string) string
		processor  mockProcessor
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid signed webhook",
			acquirer:   "treeal",
			body:       validWebhookBody(),
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			processor:  mockProcessor{result: service.Result{Status: service.ResultProcessed}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "redelivered webhook",
			acquirer:   "treeal",
			body:       validWebhookBody(),
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			processor:  mockProcessor{result: service.Result{Status: service.ResultProcessed}, replayed: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing signature header",
			acquirer:   "treeal",
			body:       validWebhookBody(),
			setupSig:   nil,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "tampered body",
			acquirer:   "treeal",
			body:       validWebhookBody(),
			setupSig:   func(body string) string { return signPayload(body+"x", testWebhookSecret) },
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name:       "unregistered acquirer",
			acquirer:   "unknownpay",
			body:       validWebhookBody(),
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			wantStatus: http.StatusNotFound,
			wantCode:   "UNKNOWN_ACQUIRER",
		},
		{
			name:       "malformed json",
			acquirer:   "treeal",
			body:       `{"event_id":`,
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "missing fields",
			acquirer:   "treeal",
			body:       `{"status":"CONCLUIDA"}`,
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "processing error answers 500 for redelivery",
			acquirer:   "treeal",
			body:       validWebhookBody(),
			setupSig:   func(body string) string { return signPayload(body, testWebhookSecret) },
			processor:  mockProcessor{err: errors.New("db down")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			processor := tc.processor
			h := NewWebhookHandler(&processor, &mockDirectory{names: []string{"treeal", "pagarme"}}, testWebhookSecret)

			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/v1/webhooks/{acquirer}", h.ReceiveAcquirerWebhook)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+tc.acquirer, strings.NewReader(tc.body))
			if tc.setupSig != nil {
				req.Header.Set("X-Webhook-Signature", tc.setupSig(tc.body))
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)

			var resp APIResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			if tc.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
			} else {
				assert.True(t, resp.Success)
			}
		})
	}
}

func TestReceiveAcquirerWebhook_PassesNormalizedNotification(t *testing.T) {
	processor := &mockProcessor{result: service.Result{Status: service.ResultProcessed}}
	h := NewWebhookHandler(processor, &mockDirectory{names: []string{"pagarme"}}, testWebhookSecret)

	amount := int64(10000)
	body, _ := json.Marshal(webhookPayload{
		EventID:     "evt-1",
		ExternalID:  "ext-1",
		Status:      "paid",
		AmountCents: &amount,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/webhooks/{acquirer}", h.ReceiveAcquirerWebhook)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/pagarme", strings.NewReader(string(body)))
	req.Header.Set("X-Webhook-Signature", signPayload(string(body), testWebhookSecret))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, processor.got)
	assert.Equal(t, "pagarme", processor.got.Acquirer)
	assert.Equal(t, "evt-1", processor.got.EventKey)
	assert.Equal(t, "ext-1", processor.got.ExternalID)
	assert.Equal(t, "paid", processor.got.RawStatus)
	require.NotNil(t, processor.got.ConfirmedCents)
	assert.Equal(t, amount, *processor.got.ConfirmedCents)
}
