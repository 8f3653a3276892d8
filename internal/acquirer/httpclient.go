package acquirer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brgate/pix-gateway/internal/logging"
)

// HTTPClient talks to one acquirer's REST API. All eight production
// acquirers expose the same normalized surface behind their adapters, so a
// single client type configured per acquirer covers them.
type HTTPClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(name, baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) Name() string { return c.name }

type chargePayload struct {
	AmountCents   int64  `json:"amount_cents"`
	Description   string `json:"description,omitempty"`
	ExpirySeconds int    `json:"expiry_seconds,omitempty"`
}

type chargeResponse struct {
	ID        string `json:"id"`
	QRPayload string `json:"qr_payload"`
}

func (c *HTTPClient) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var resp chargeResponse
	err := c.post(ctx, "/v1/charges", chargePayload{
		AmountCents:   req.AmountCents,
		Description:   req.Description,
		ExpirySeconds: req.ExpirySeconds,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("CreateCharge: %s: %w", c.name, err)
	}
	return &ChargeResult{ExternalID: resp.ID, QRPayload: resp.QRPayload}, nil
}

type withdrawalPayload struct {
	AmountCents    int64  `json:"amount_cents"`
	PixKeyValue    string `json:"pix_key_value"`
	PixKeyType     string `json:"pix_key_type"`
	IdempotencyKey string `json:"idempotency_key"`
	Description    string `json:"description,omitempty"`
}

type withdrawalResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *HTTPClient) CreateWithdrawal(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error) {
	var resp withdrawalResponse
	err := c.post(ctx, "/v1/withdrawals", withdrawalPayload{
		AmountCents:    req.AmountCents,
		PixKeyValue:    req.PixKeyValue,
		PixKeyType:     req.PixKeyType,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("CreateWithdrawal: %s: %w", c.name, err)
	}
	return &WithdrawalResult{ExternalID: resp.ID, RawStatus: resp.Status}, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

func (c *HTTPClient) GetStatus(ctx context.Context, externalID string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/charges/"+externalID, nil)
	if err != nil {
		return "", fmt.Errorf("GetStatus: %s: build request: %w", c.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("GetStatus: %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GetStatus: %s: unexpected status %d", c.name, resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("GetStatus: %s: decode: %w", c.name, err)
	}
	return body.Status, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("acquirer response received",
		"acquirer", c.name,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
