package domain

import (
	"encoding/json"
	"time"
)

// WebhookNotification is the normalized shape every acquirer adapter hands to
// the processing core. EventKey together with the acquirer name is the
// idempotency key for at-most-once processing.
type WebhookNotification struct {
	Acquirer       string
	EventKey       string
	ExternalID     string
	RawStatus      string
	ConfirmedCents *int64
}

// IdempotencyRecord marks a webhook event as processed. Records are kept
// forever: the at-most-once guarantee has no expiry, and the rows double as
// an audit trail.
type IdempotencyRecord struct {
	Acquirer    string
	EventKey    string
	Result      json.RawMessage
	FirstSeenAt time.Time
}
