// mock-acquirer is a local stand-in for an acquirer API. It accepts charges
// and withdrawals, immediately marks them paid, and posts a signed webhook
// back to the gateway so the full settlement path can be exercised without
// external credentials.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brgate/pix-gateway/internal/logging"
)

type server struct {
	mu       sync.Mutex
	statuses map[string]string

	callbackURL string
	secret      string
	acquirer    string
}

type chargeRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type withdrawalRequest struct {
	AmountCents    int64  `json:"amount_cents"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (s *server) createCharge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	id := uuid.New().String()
	s.setStatus(id, "ATIVA")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"id":         id,
		"qr_payload": "00020126580014BR.GOV.BCB.PIX" + id,
	})

	go s.settle(id, req.AmountCents)
}

func (s *server) createWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	id := uuid.New().String()
	s.setStatus(id, "EM_PROCESSAMENTO")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"id":     id,
		"status": "EM_PROCESSAMENTO",
	})

	go s.settle(id, req.AmountCents)
}

func (s *server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, ok := s.statuses[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *server) setStatus(id, status string) {
	s.mu.Lock()
	s.statuses[id] = status
	s.mu.Unlock()
}

// settle flips the charge to paid after a short delay and notifies the
// gateway the way a real acquirer would.
func (s *server) settle(externalID string, amountCents int64) {
	time.Sleep(2 * time.Second)
	s.setStatus(externalID, "CONCLUIDA")

	if s.callbackURL == "" {
		return
	}

	body, _ := json.Marshal(map[string]any{
		"event_id":     uuid.New().String(),
		"external_id":  externalID,
		"status":       "CONCLUIDA",
		"amount_cents": amountCents,
	})

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)

	req, err := http.NewRequest(http.MethodPost, s.callbackURL+"/api/v1/webhooks/"+s.acquirer, bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build webhook request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Error("webhook delivery failed", "external_id", externalID, "error", err)
		return
	}
	resp.Body.Close()
	slog.Info("webhook delivered", "external_id", externalID, "status", resp.StatusCode)
}

func main() {
	logging.Init("mock-acquirer", "info", os.Getenv("APP_ENV"))

	s := &server{
		statuses:    make(map[string]string),
		callbackURL: os.Getenv("GATEWAY_URL"),
		secret:      os.Getenv("WEBHOOK_SECRET"),
		acquirer:    envOr("ACQUIRER_NAME", "treeal"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /v1/charges", s.createCharge)
	mux.HandleFunc("POST /v1/withdrawals", s.createWithdrawal)
	mux.HandleFunc("GET /v1/charges/{id}", s.getStatus)

	addr := envOr("ADDR", ":8081")
	slog.Info("mock acquirer started", "addr", addr, "acquirer", s.acquirer)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
