package acquirer

import "github.com/brgate/pix-gateway/internal/domain"

// statusTables maps each acquirer's raw status vocabulary to the canonical
// enum. Tables are flat and explicit; there is no fuzzy matching. A raw
// status missing from its table maps to Processing so unrecognized vocabulary
// can never credit funds on its own.
var statusTables = map[string]map[string]domain.Status{
	Treeal: {
		"CRIADA":            domain.StatusCreated,
		"EM_PROCESSAMENTO":  domain.StatusProcessing,
		"CONCLUIDA":         domain.StatusPaid,
		"REJEITADA":         domain.StatusFailed,
		"CANCELADA":         domain.StatusCancelled,
		"DEVOLVIDA":         domain.StatusRefunded,
		"DEVOLVIDA_PARCIAL": domain.StatusPartiallyRefunded,
	},
	Pagarme: {
		"pending":            domain.StatusCreated,
		"processing":         domain.StatusProcessing,
		"paid":               domain.StatusPaid,
		"failed":             domain.StatusFailed,
		"canceled":           domain.StatusCancelled,
		"refunded":           domain.StatusRefunded,
		"partially_refunded": domain.StatusPartiallyRefunded,
		"chargedback":        domain.StatusChargeback,
		"in_dispute":         domain.StatusMediation,
	},
	Woovi: {
		"ACTIVE":                   domain.StatusCreated,
		"OPENPIX:CHARGE_CREATED":   domain.StatusCreated,
		"OPENPIX:CHARGE_COMPLETED": domain.StatusPaid,
		"OPENPIX:CHARGE_EXPIRED":   domain.StatusCancelled,
		"COMPLETED":                domain.StatusPaid,
		"EXPIRED":                  domain.StatusCancelled,
		"REFUNDED":                 domain.StatusRefunded,
	},
	Asaas: {
		"PENDING":                      domain.StatusCreated,
		"AWAITING_RISK_ANALYSIS":       domain.StatusProcessing,
		"CONFIRMED":                    domain.StatusProcessing,
		"RECEIVED":                     domain.StatusPaid,
		"OVERDUE":                      domain.StatusCancelled,
		"REFUNDED":                     domain.StatusRefunded,
		"REFUND_REQUESTED":             domain.StatusProcessing,
		"CHARGEBACK_REQUESTED":         domain.StatusChargeback,
		"CHARGEBACK_DISPUTE":           domain.StatusMediation,
		"AWAITING_CHARGEBACK_REVERSAL": domain.StatusMediation,
	},
	PrimePay7: {
		"WAITING_PAYMENT": domain.StatusCreated,
		"PROCESSING":      domain.StatusProcessing,
		"PAID":            domain.StatusPaid,
		"FAILED":          domain.StatusFailed,
		"CANCELED":        domain.StatusCancelled,
		"REFUNDED":        domain.StatusRefunded,
	},
	BSPay: {
		"PENDING":  domain.StatusCreated,
		"PAID_OUT": domain.StatusPaid,
		"PAID":     domain.StatusPaid,
		"CANCELED": domain.StatusCancelled,
		"RETURNED": domain.StatusRefunded,
		"MED":      domain.StatusMediation,
	},
	XDPag: {
		"pending":    domain.StatusCreated,
		"processing": domain.StatusProcessing,
		"completed":  domain.StatusPaid,
		"error":      domain.StatusFailed,
		"canceled":   domain.StatusCancelled,
		"refunded":   domain.StatusRefunded,
	},
	Pixup: {
		"PENDING":      domain.StatusCreated,
		"IN_PROCESS":   domain.StatusProcessing,
		"APPROVED":     domain.StatusPaid,
		"REPROVED":     domain.StatusFailed,
		"CANCELED":     domain.StatusCancelled,
		"RETURNED":     domain.StatusRefunded,
		"IN_MEDIATION": domain.StatusMediation,
	},
}

// MapStatus translates an acquirer's raw status into the canonical one.
// Unknown acquirers and unknown raw statuses both resolve to Processing, a
// safe non-terminal default; ok is false so callers can log the gap.
func MapStatus(acquirerName, rawStatus string) (status domain.Status, ok bool) {
	table, found := statusTables[acquirerName]
	if !found {
		return domain.StatusProcessing, false
	}
	status, found = table[rawStatus]
	if !found {
		return domain.StatusProcessing, false
	}
	return status, true
}
