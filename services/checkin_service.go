package services

import (
	"context"
	"errors"
	"fmt"
	"gigg-ticketing/models"
	"gigg-ticketing/monitoring"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go"
)

// ErrNotCheckedIn is returned by Reset when the ticket is not currently used.
var ErrNotCheckedIn = errors.New("ticket is not checked in")

// ErrNoteRequired is returned when an override or reset arrives without an
// audit note.
var ErrNoteRequired = errors.New("a note is required for this operation")

type checkInStore interface {
	FindByCode(ctx context.Context, code string) (*models.Ticket, error)
	MarkUsed(ctx context.Context, ticketID, operatorID string, at time.Time) (bool, error)
	ResetCheckIn(ctx context.Context, ticketID string) (bool, error)
	InsertCheckInEvent(ctx context.Context, ev *models.CheckInEvent) error
	TicketTypeByID(ctx context.Context, id string) (*models.TicketType, error)
	EventName(ctx context.Context, eventID string) string
}

// CheckInService coordinates the one-time redemption of tickets. The
// VALID->USED transition itself lives in the store as a conditional update;
// this service decides the outcome tag, writes the audit log and keeps the
// counters and broadcast channel in step.
type CheckInService struct {
	store         checkInStore
	attendance    *AttendanceService
	pn            *pubnub.PubNub
	activeEventID string
}

func NewCheckInService(store checkInStore, attendance *AttendanceService, pn *pubnub.PubNub, activeEventID string) *CheckInService {
	return &CheckInService{
		store:         store,
		attendance:    attendance,
		pn:            pn,
		activeEventID: activeEventID,
	}
}

// CheckIn redeems a ticket scanned or typed by a crew device. method must be
// "manual" or "qr". Every outcome except CheckInError is a final evaluation
// safe to show to the operator; CheckInError alone is retryable, because the
// underlying transition is idempotent on already-used.
func (s *CheckInService) CheckIn(ctx context.Context, raw, method, operatorID string) *models.CheckInResult {
	code, err := NormalizeCode(ExtractScannedCode(raw))
	if err != nil {
		monitoring.TrackCheckIn(string(models.CheckInInvalid), method)
		return &models.CheckInResult{Outcome: models.CheckInInvalid, TicketCode: raw}
	}

	ticket, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			monitoring.TrackCheckIn(string(models.CheckInInvalid), method)
			return &models.CheckInResult{Outcome: models.CheckInInvalid, TicketCode: code}
		}
		return s.errorResult(code, method, err)
	}

	info := s.ticketInfo(ctx, ticket)

	if s.activeEventID != "" && ticket.EventID != s.activeEventID {
		monitoring.TrackCheckIn(string(models.CheckInWrongEvent), method)
		return &models.CheckInResult{Outcome: models.CheckInWrongEvent, TicketCode: code, Ticket: info}
	}

	if ticket.RefundedAt != nil || ticket.ChargebackAt != nil {
		monitoring.TrackCheckIn(string(models.CheckInRefunded), method)
		return &models.CheckInResult{
			Outcome:      models.CheckInRefunded,
			TicketCode:   code,
			Ticket:       info,
			RefundedAt:   ticket.RefundedAt,
			ChargebackAt: ticket.ChargebackAt,
		}
	}

	if ticket.Status == models.TicketStatusCancelled {
		monitoring.TrackCheckIn(string(models.CheckInInvalid), method)
		return &models.CheckInResult{Outcome: models.CheckInInvalid, TicketCode: code, Ticket: info}
	}

	if ticket.Status == models.TicketStatusUsed {
		return s.alreadyUsed(code, method, ticket, info)
	}

	now := time.Now().UTC()
	ok, err := s.store.MarkUsed(ctx, ticket.ID, operatorID, now)
	if err != nil {
		return s.errorResult(code, method, err)
	}
	if !ok {
		// another device won the race between our read and the update;
		// refetch for the original timestamp and operator
		fresh, err := s.store.FindByCode(ctx, code)
		if err != nil {
			return s.errorResult(code, method, err)
		}
		return s.alreadyUsed(code, method, fresh, info)
	}

	return s.completeCheckIn(ctx, ticket, info, code, method, operatorID, now)
}

// Override forces a ticket to used regardless of refund or chargeback
// flags. Operator-initiated and exempt from the race rule, but always
// audited with a note.
func (s *CheckInService) Override(ctx context.Context, raw, operatorID, note string) (*models.CheckInResult, error) {
	if note == "" {
		return nil, ErrNoteRequired
	}

	code, err := NormalizeCode(ExtractScannedCode(raw))
	if err != nil {
		return &models.CheckInResult{Outcome: models.CheckInInvalid, TicketCode: raw}, nil
	}

	ticket, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return &models.CheckInResult{Outcome: models.CheckInInvalid, TicketCode: code}, nil
		}
		return nil, err
	}

	info := s.ticketInfo(ctx, ticket)

	if ticket.Status == models.TicketStatusUsed {
		return s.alreadyUsed(code, models.CheckInMethodOverride, ticket, info), nil
	}

	now := time.Now().UTC()
	ok, err := s.store.MarkUsed(ctx, ticket.ID, operatorID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		fresh, err := s.store.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		return s.alreadyUsed(code, models.CheckInMethodOverride, fresh, info), nil
	}

	if err := s.store.InsertCheckInEvent(ctx, &models.CheckInEvent{
		TicketID:   ticket.ID,
		OperatorID: operatorID,
		Method:     models.CheckInMethodOverride,
		Note:       note,
		Timestamp:  now,
	}); err != nil {
		// overrides are audited or they do not happen; roll the flip back
		if _, undoErr := s.store.ResetCheckIn(ctx, ticket.ID); undoErr != nil {
			slog.Error("override rollback failed", "ticket", ticket.ID, "error", undoErr)
		}
		return nil, fmt.Errorf("override audit: %w", err)
	}

	return s.finishCheckIn(ctx, info, code, models.CheckInMethodOverride, now), nil
}

// Reset flips a used ticket back to valid, adjusting counters through the
// audit log. The original check-in events are preserved.
func (s *CheckInService) Reset(ctx context.Context, raw, operatorID, note string) (*models.Attendance, error) {
	if note == "" {
		return nil, ErrNoteRequired
	}

	code, err := NormalizeCode(ExtractScannedCode(raw))
	if err != nil {
		return nil, ErrInvalidFormat
	}

	ticket, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.ResetCheckIn(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCheckedIn
	}

	if err := s.store.InsertCheckInEvent(ctx, &models.CheckInEvent{
		TicketID:   ticket.ID,
		OperatorID: operatorID,
		Method:     models.CheckInMethodReset,
		Note:       note,
	}); err != nil {
		// resets are audited or they do not happen; restore the check-in so
		// ticket state and the log-derived counters stay in step
		restoreAt := time.Now().UTC()
		if ticket.CheckedInAt != nil {
			restoreAt = *ticket.CheckedInAt
		}
		if _, undoErr := s.store.MarkUsed(ctx, ticket.ID, ticket.CheckedInBy, restoreAt); undoErr != nil {
			slog.Error("reset rollback failed", "ticket", ticket.ID, "error", undoErr)
		}
		return nil, fmt.Errorf("reset audit: %w", err)
	}

	counts, err := s.attendance.Refresh(ctx)
	if err != nil {
		slog.Warn("attendance refresh after reset failed", "error", err)
		counts = &models.Attendance{}
	}
	return counts, nil
}

func (s *CheckInService) completeCheckIn(ctx context.Context, ticket *models.Ticket, info *models.TicketInfo, code, method, operatorID string, at time.Time) *models.CheckInResult {
	if err := s.store.InsertCheckInEvent(ctx, &models.CheckInEvent{
		TicketID:   ticket.ID,
		OperatorID: operatorID,
		Method:     method,
		Timestamp:  at,
	}); err != nil {
		// the transition is committed; losing the audit row is a defect we
		// surface loudly but it must not fail the admission
		slog.Error("check-in audit write failed", "ticket", ticket.ID, "error", err)
	}

	return s.finishCheckIn(ctx, info, code, method, at)
}

func (s *CheckInService) finishCheckIn(ctx context.Context, info *models.TicketInfo, code, method string, at time.Time) *models.CheckInResult {
	counts, err := s.attendance.Refresh(ctx)
	if err != nil {
		slog.Warn("attendance refresh after check-in failed", "error", err)
		counts = &models.Attendance{}
	}

	monitoring.TrackCheckIn(string(models.CheckInSuccess), method)
	monitoring.SetAttendance(counts.Total, counts.Zone)
	s.broadcast(code, info, counts)

	return &models.CheckInResult{
		Outcome:             models.CheckInSuccess,
		TicketCode:          code,
		Ticket:              info,
		CheckedInAt:         &at,
		AttendanceCount:     counts.Total,
		ZoneAttendanceCount: counts.Zone,
	}
}

func (s *CheckInService) alreadyUsed(code, method string, ticket *models.Ticket, info *models.TicketInfo) *models.CheckInResult {
	monitoring.TrackCheckIn(string(models.CheckInAlreadyUsed), method)
	return &models.CheckInResult{
		Outcome:     models.CheckInAlreadyUsed,
		TicketCode:  code,
		Ticket:      info,
		FirstUsedAt: ticket.CheckedInAt,
		FirstUsedBy: ticket.CheckedInBy,
	}
}

func (s *CheckInService) errorResult(code, method string, err error) *models.CheckInResult {
	slog.Error("check-in failed", "code", code, "method", method, "error", err)
	monitoring.TrackCheckIn(string(models.CheckInError), method)
	return &models.CheckInResult{
		Outcome:    models.CheckInError,
		TicketCode: code,
		Err:        fmt.Sprintf("check-in unavailable: %v", err),
	}
}

func (s *CheckInService) ticketInfo(ctx context.Context, ticket *models.Ticket) *models.TicketInfo {
	info := &models.TicketInfo{
		BuyerName:  ticket.BuyerName,
		BuyerEmail: ticket.BuyerEmail,
		EventName:  s.store.EventName(ctx, ticket.EventID),
	}
	if tt, err := s.store.TicketTypeByID(ctx, ticket.TicketTypeID); err == nil && tt != nil {
		info.TicketType = tt.Name
		info.HasZoneAccess = tt.ZoneAccess
	} else {
		info.TicketType = "(unknown type)"
	}
	return info
}

func (s *CheckInService) broadcast(code string, info *models.TicketInfo, counts *models.Attendance) {
	if s.pn == nil {
		return
	}
	go func() {
		_, _, err := s.pn.Publish().
			Channel("gigg-checkins").
			Message(map[string]interface{}{
				"type":        "checkin",
				"ticket_code": code,
				"ticket_type": info.TicketType,
				"attendance":  counts.Total,
				"zone":        counts.Zone,
			}).
			Execute()
		if err != nil {
			slog.Warn("check-in broadcast failed", "error", err)
		}
	}()
}
