package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrMerchantBlocked     = errors.New("merchant blocked")
	ErrAccountNotFound     = errors.New("account not found")
	ErrUnknownAcquirer     = errors.New("unknown acquirer")
	ErrTransactionTerminal = errors.New("transaction already in terminal state")
	ErrDuplicateWebhook    = errors.New("webhook already processed")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrAcquirerCallFailed  = errors.New("acquirer call failed")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
	ErrNotWaitingApproval  = errors.New("withdrawal is not waiting approval")
)
