package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/brgate/pix-gateway/internal/domain"
	"github.com/brgate/pix-gateway/internal/logging"
	"github.com/brgate/pix-gateway/internal/metrics"
	"github.com/brgate/pix-gateway/internal/service"
)

type depositService interface {
	CreateDeposit(ctx context.Context, in service.CreateDepositInput) (*domain.Transaction, error)
}

type withdrawalService interface {
	CreateWithdrawal(ctx context.Context, in service.CreateWithdrawalInput) (*domain.Transaction, error)
	ApproveWithdrawal(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
}

type transactionReader interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
}

type TransactionHandler struct {
	deposits     depositService
	withdrawals  withdrawalService
	transactions transactionReader
}

func NewTransactionHandler(deposits depositService, withdrawals withdrawalService, transactions transactionReader) *TransactionHandler {
	return &TransactionHandler{
		deposits:     deposits,
		withdrawals:  withdrawals,
		transactions: transactions,
	}
}

type createDepositRequest struct {
	MerchantID    string `json:"merchant_id"`
	AmountCents   int64  `json:"amount_cents"`
	Acquirer      string `json:"acquirer"`
	Description   string `json:"description,omitempty"`
	ExpirySeconds int    `json:"expiry_seconds,omitempty"`
}

func (r createDepositRequest) Validate() []FieldError {
	var errs []FieldError

	if r.MerchantID == "" {
		errs = append(errs, FieldError{Field: "merchant_id", Message: "required"})
	} else if _, err := uuid.Parse(r.MerchantID); err != nil {
		errs = append(errs, FieldError{Field: "merchant_id", Message: "must be a valid UUID"})
	}
	if r.AmountCents <= 0 {
		errs = append(errs, FieldError{Field: "amount_cents", Message: "must be greater than 0"})
	}
	if r.Acquirer == "" {
		errs = append(errs, FieldError{Field: "acquirer", Message: "required"})
	}

	return errs
}

type createWithdrawalRequest struct {
	MerchantID  string `json:"merchant_id"`
	AmountCents int64  `json:"amount_cents"`
	Channel     string `json:"channel"`
	Acquirer    string `json:"acquirer"`
	PixKeyValue string `json:"pix_key_value"`
	PixKeyType  string `json:"pix_key_type"`
	Description string `json:"description,omitempty"`
}

func (r createWithdrawalRequest) Validate() []FieldError {
	var errs []FieldError

	if r.MerchantID == "" {
		errs = append(errs, FieldError{Field: "merchant_id", Message: "required"})
	} else if _, err := uuid.Parse(r.MerchantID); err != nil {
		errs = append(errs, FieldError{Field: "merchant_id", Message: "must be a valid UUID"})
	}
	if r.AmountCents <= 0 {
		errs = append(errs, FieldError{Field: "amount_cents", Message: "must be greater than 0"})
	}
	if r.Channel != string(domain.ChannelWeb) && r.Channel != string(domain.ChannelAPI) {
		errs = append(errs, FieldError{Field: "channel", Message: "must be web or api"})
	}
	if r.Acquirer == "" {
		errs = append(errs, FieldError{Field: "acquirer", Message: "required"})
	}
	if r.PixKeyValue == "" {
		errs = append(errs, FieldError{Field: "pix_key_value", Message: "required"})
	}
	if r.PixKeyType == "" {
		errs = append(errs, FieldError{Field: "pix_key_type", Message: "required"})
	}

	return errs
}

type transactionDTO struct {
	ID              uuid.UUID  `json:"id"`
	MerchantID      uuid.UUID  `json:"merchant_id"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"`
	Acquirer        string     `json:"acquirer"`
	ExternalID      *string    `json:"external_id,omitempty"`
	Channel         string     `json:"channel"`
	GrossCents      int64      `json:"gross_cents"`
	FeeCents        int64      `json:"fee_cents"`
	NetCents        int64      `json:"net_cents"`
	TierDescription string     `json:"tier_description"`
	QRPayload       *string    `json:"qr_payload,omitempty"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:              t.ID,
		MerchantID:      t.MerchantID,
		Kind:            string(t.Kind),
		Status:          string(t.Status),
		Acquirer:        t.Acquirer,
		ExternalID:      t.ExternalID,
		Channel:         string(t.Channel),
		GrossCents:      t.GrossCents,
		FeeCents:        t.FeeCents,
		NetCents:        t.NetCents,
		TierDescription: t.TierDescription,
		QRPayload:       t.QRPayload,
		FailureReason:   t.FailureReason,
		CreatedAt:       t.CreatedAt,
		PaidAt:          t.PaidAt,
	}
}

func (h *TransactionHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	merchantID, _ := uuid.Parse(req.MerchantID)
	txn, err := h.deposits.CreateDeposit(r.Context(), service.CreateDepositInput{
		MerchantID:    merchantID,
		AmountCents:   req.AmountCents,
		Acquirer:      req.Acquirer,
		Description:   req.Description,
		ExpirySeconds: req.ExpirySeconds,
	})
	if err != nil {
		log.Error("deposit creation failed", "merchant_id", merchantID, "error", err)
		RespondDomainError(w, err)
		return
	}

	metrics.TransactionsTotal.WithLabelValues(string(txn.Kind), txn.Acquirer).Inc()
	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}

func (h *TransactionHandler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	merchantID, _ := uuid.Parse(req.MerchantID)
	txn, err := h.withdrawals.CreateWithdrawal(r.Context(), service.CreateWithdrawalInput{
		MerchantID:  merchantID,
		AmountCents: req.AmountCents,
		Channel:     domain.Channel(req.Channel),
		Acquirer:    req.Acquirer,
		PixKeyValue: req.PixKeyValue,
		PixKeyType:  req.PixKeyType,
		Description: req.Description,
	})
	if err != nil {
		log.Error("withdrawal creation failed", "merchant_id", merchantID, "error", err)
		RespondDomainError(w, err)
		return
	}

	metrics.TransactionsTotal.WithLabelValues(string(txn.Kind), txn.Acquirer).Inc()
	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}

func (h *TransactionHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	txn, err := h.withdrawals.ApproveWithdrawal(r.Context(), id)
	if err != nil {
		log.Error("withdrawal approval failed", "transaction_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTO(txn))
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	txn, err := h.transactions.GetTransaction(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTO(txn))
}
