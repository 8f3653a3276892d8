package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/brgate/pix-gateway/internal/domain"
)

type accountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

type ledgerReader interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type AccountHandler struct {
	accounts accountReader
	entries  ledgerReader
}

func NewAccountHandler(accounts accountReader, entries ledgerReader) *AccountHandler {
	return &AccountHandler{accounts: accounts, entries: entries}
}

type balanceDTO struct {
	AccountID    uuid.UUID `json:"account_id"`
	MerchantID   uuid.UUID `json:"merchant_id"`
	BalanceCents int64     `json:"balance_cents"`
	AsOf         time.Time `json:"as_of"`
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, balanceDTO{
		AccountID:    account.ID,
		MerchantID:   account.MerchantID,
		BalanceCents: account.BalanceCents,
		AsOf:         time.Now().UTC(),
	})
}

type ledgerEntryDTO struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Type          string    `json:"type"`
	AmountCents   int64     `json:"amount_cents"`
	Reason        string    `json:"reason"`
	BalanceBefore int64     `json:"balance_before_cents"`
	BalanceAfter  int64     `json:"balance_after_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *AccountHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	limit, offset := parsePagination(r)
	entries, total, err := h.entries.GetByAccountID(r.Context(), id, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]ledgerEntryDTO, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		dtos = append(dtos, ledgerEntryDTO{
			ID:            e.ID,
			TransactionID: e.TransactionID,
			Type:          string(e.EntryType),
			AmountCents:   e.AmountCents,
			Reason:        e.Reason,
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			CreatedAt:     e.CreatedAt,
		})
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"entries": dtos,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
