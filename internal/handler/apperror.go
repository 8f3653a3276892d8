package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidSignature    = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is missing or invalid"}
	ErrUnknownAcquirer     = &AppError{http.StatusNotFound, "UNKNOWN_ACQUIRER", "Acquirer is not registered"}
	ErrInsufficientBalance = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Balance does not cover amount plus fee"}
	ErrMerchantBlocked     = &AppError{http.StatusUnprocessableEntity, "MERCHANT_BLOCKED", "Merchant is blocked"}
	ErrAccountNotFound     = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrTransactionTerminal = &AppError{http.StatusConflict, "TRANSACTION_TERMINAL", "Transaction is already in a terminal status"}
	ErrNotWaitingApproval  = &AppError{http.StatusConflict, "NOT_WAITING_APPROVAL", "Transaction is not waiting for approval"}
	ErrVersionConflict     = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrAcquirerCallFailed  = &AppError{http.StatusBadGateway, "ACQUIRER_CALL_FAILED", "Acquirer did not accept the request"}
)
