package models

import (
	"time"
)

const (
	CheckInMethodManual   = "manual"
	CheckInMethodQR       = "qr"
	CheckInMethodOverride = "manual_override"
	CheckInMethodReset    = "reset"
)

// CheckInEvent is one row of the append-only audit log. It survives admin
// resets of the ticket itself, so attendance can always be recomputed from
// the log alone.
type CheckInEvent struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	OperatorID string    `json:"operator_id"`
	Method     string    `json:"method"` // manual, qr, manual_override, reset
	Note       string    `json:"note,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type CheckInOutcome string

const (
	CheckInSuccess     CheckInOutcome = "success"
	CheckInAlreadyUsed CheckInOutcome = "already_used"
	CheckInInvalid     CheckInOutcome = "invalid"
	CheckInRefunded    CheckInOutcome = "refunded"
	CheckInWrongEvent  CheckInOutcome = "wrong_event"
	CheckInError       CheckInOutcome = "error"
)

// Denial reports whether the outcome is a server-evaluated admission denial.
// Denials are ordinary results shown to the operator; only CheckInError is
// an application failure and safe to retry.
func (o CheckInOutcome) Denial() bool {
	switch o {
	case CheckInAlreadyUsed, CheckInInvalid, CheckInRefunded, CheckInWrongEvent:
		return true
	}
	return false
}

// CheckInResult is the tagged outcome of a check-in attempt. Outcome decides
// which of the optional sections is populated.
type CheckInResult struct {
	Outcome    CheckInOutcome `json:"result"`
	TicketCode string         `json:"ticket_code"`

	// set for success, already_used and refunded
	Ticket *TicketInfo `json:"ticket,omitempty"`

	// set for success
	CheckedInAt         *time.Time `json:"checked_in_at,omitempty"`
	AttendanceCount     int        `json:"attendance_count,omitempty"`
	ZoneAttendanceCount int        `json:"zone_attendance_count,omitempty"`

	// set for already_used: the original redemption
	FirstUsedAt *time.Time `json:"first_used_at,omitempty"`
	FirstUsedBy string     `json:"first_used_by,omitempty"`

	// set for refunded
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`
	ChargebackAt *time.Time `json:"chargeback_at,omitempty"`

	// set for error only; transport or store failure, retryable
	Err string `json:"error,omitempty"`
}

// TicketInfo is the operator-facing slice of a ticket, enough to render the
// confirmation screen.
type TicketInfo struct {
	BuyerName     string `json:"buyer_name"`
	BuyerEmail    string `json:"buyer_email"`
	TicketType    string `json:"ticket_type"`
	EventName     string `json:"event_name"`
	HasZoneAccess bool   `json:"has_zone_access"`
}

type Attendance struct {
	Total     int       `json:"total"`
	Zone      int       `json:"zone"`
	UpdatedAt time.Time `json:"updated_at"`
}
