package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ModeTest = "test"
	ModeLive = "live"
)

// ProcessorSession is the payment processor's own record of a completed
// purchase. It is fetched live as reconciliation input and never persisted.
type ProcessorSession struct {
	SessionID       string            `json:"session_id"`
	PaymentIntentID string            `json:"payment_intent_id"`
	CustomerEmail   string            `json:"customer_email"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"` // complete, open, expired
	CreatedAt       time.Time         `json:"created_at"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type ModeInfo struct {
	Mode       string `json:"mode"`
	IsTestMode bool   `json:"is_test_mode"`
	AccountID  string `json:"account_id"`
}

// MissingTicket is a processor session with no local ticket, annotated for
// manual follow-up.
type MissingTicket struct {
	SessionID     string          `json:"session_id"`
	CustomerEmail string          `json:"customer_email"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ReconcileReport struct {
	TotalProcessorSessions int             `json:"total_processor_sessions"`
	TotalLocalTickets      int             `json:"total_local_tickets"`
	MissingTickets         []MissingTicket `json:"missing_tickets"`
	SyncPercentage         int             `json:"sync_percentage"`
}

// PaymentEvent is an out-of-band notification from the processor, consumed
// by the payment-event listener to set refund and chargeback flags.
type PaymentEvent struct {
	Type       string    `json:"type"` // refund, chargeback
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
