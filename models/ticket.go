package models

import (
	"time"
)

const (
	TicketStatusValid     = "valid"
	TicketStatusUsed      = "used"
	TicketStatusCancelled = "cancelled"
)

type Ticket struct {
	ID                 string     `json:"id"`
	TicketCode         string     `json:"ticket_code"`
	TicketTypeID       string     `json:"ticket_type_id"`
	EventID            string     `json:"event_id"`
	BuyerName          string     `json:"buyer_name"`
	BuyerEmail         string     `json:"buyer_email"`
	Status             string     `json:"status"` // valid, used, cancelled
	ProcessorSessionID string     `json:"processor_session_id"`
	PaymentIntentID    string     `json:"payment_intent_id,omitempty"`
	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy        string     `json:"checked_in_by,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
	ChargebackAt       *time.Time `json:"chargeback_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Redeemable reports whether the ticket can still be admitted: it must be
// valid and carry no refund or chargeback flag.
func (t *Ticket) Redeemable() bool {
	return t.Status == TicketStatusValid && t.RefundedAt == nil && t.ChargebackAt == nil
}

// Sold reports whether the ticket counts towards capacity and revenue.
// Used tickets still count; refunded and charged-back ones do not.
func (t *Ticket) Sold() bool {
	if t.Status == TicketStatusCancelled {
		return false
	}
	return t.RefundedAt == nil && t.ChargebackAt == nil
}

type TicketType struct {
	ID         string `json:"id"`
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	Code       string `json:"code"`
	Price      int64  `json:"price"` // minor units
	Capacity   int    `json:"capacity"`
	ZoneAccess bool   `json:"zone_access"`
}

type Event struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // draft, published, started, ended
}
