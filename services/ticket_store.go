package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"gigg-ticketing/models"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// ErrTicketNotFound is returned when no ticket carries the requested code.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketStore is the authoritative record per ticket. All writes that decide
// admission go through single conditional UPDATEs so that any number of
// stateless instances can race on the same code safely.
type TicketStore struct {
	app core.App
}

func NewTicketStore(app core.App) *TicketStore {
	return &TicketStore{app: app}
}

// ticketRow mirrors the tickets table. PocketBase stores empty dates as
// empty strings, so nullable timestamps scan through sql.NullString.
type ticketRow struct {
	ID                 string         `db:"id"`
	TicketCode         string         `db:"ticket_code"`
	TicketTypeID       string         `db:"ticket_type"`
	EventID            string         `db:"event"`
	BuyerName          string         `db:"buyer_name"`
	BuyerEmail         string         `db:"buyer_email"`
	Status             string         `db:"status"`
	ProcessorSessionID string         `db:"processor_session_id"`
	PaymentIntentID    sql.NullString `db:"payment_intent_id"`
	CheckedInAt        sql.NullString `db:"checked_in_at"`
	CheckedInBy        sql.NullString `db:"checked_in_by"`
	RefundedAt         sql.NullString `db:"refunded_at"`
	ChargebackAt       sql.NullString `db:"chargeback_at"`
	Created            string         `db:"created"`
}

const ticketColumns = `id, ticket_code, ticket_type, event, buyer_name, buyer_email,
	status, processor_session_id, payment_intent_id,
	checked_in_at, checked_in_by, refunded_at, chargeback_at, created`

const dateLayout = "2006-01-02 15:04:05.000Z"

func parseDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		// older rows were written without millis
		t, err = time.Parse("2006-01-02 15:04:05Z", s.String)
		if err != nil {
			return nil
		}
	}
	return &t
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func (r *ticketRow) toModel() models.Ticket {
	t := models.Ticket{
		ID:                 r.ID,
		TicketCode:         r.TicketCode,
		TicketTypeID:       r.TicketTypeID,
		EventID:            r.EventID,
		BuyerName:          r.BuyerName,
		BuyerEmail:         r.BuyerEmail,
		Status:             r.Status,
		ProcessorSessionID: r.ProcessorSessionID,
		CheckedInAt:        parseDate(r.CheckedInAt),
		RefundedAt:         parseDate(r.RefundedAt),
		ChargebackAt:       parseDate(r.ChargebackAt),
	}
	if r.PaymentIntentID.Valid {
		t.PaymentIntentID = r.PaymentIntentID.String
	}
	if r.CheckedInBy.Valid {
		t.CheckedInBy = r.CheckedInBy.String
	}
	if created := parseDate(sql.NullString{String: r.Created, Valid: true}); created != nil {
		t.CreatedAt = *created
	}
	return t
}

// FindByCode looks a ticket up by its canonical code.
func (s *TicketStore) FindByCode(ctx context.Context, code string) (*models.Ticket, error) {
	row := ticketRow{}
	err := s.app.DB().NewQuery(
		"SELECT "+ticketColumns+" FROM tickets WHERE ticket_code = {:code}",
	).Bind(dbx.Params{"code": code}).WithContext(ctx).One(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("find ticket by code: %w", err)
	}
	t := row.toModel()
	return &t, nil
}

// MarkUsed performs the atomic VALID->USED transition. It returns false when
// the conditional update matched no row, which means another device got
// there first (or the ticket was never redeemable). This is the only code
// path that flips a ticket to used outside an audited override.
func (s *TicketStore) MarkUsed(ctx context.Context, ticketID, operatorID string, at time.Time) (bool, error) {
	res, err := s.app.DB().NewQuery(`
		UPDATE tickets
		SET status = {:used}, checked_in_at = {:at}, checked_in_by = {:op}
		WHERE id = {:id}
		  AND status = {:valid}
		  AND (checked_in_at IS NULL OR checked_in_at = '')`,
	).Bind(dbx.Params{
		"used":  models.TicketStatusUsed,
		"valid": models.TicketStatusValid,
		"at":    formatDate(at),
		"op":    operatorID,
		"id":    ticketID,
	}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("mark used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ResetCheckIn flips a used ticket back to valid. Single-writer and
// operator-initiated; the audit log keeps the history.
func (s *TicketStore) ResetCheckIn(ctx context.Context, ticketID string) (bool, error) {
	res, err := s.app.DB().NewQuery(`
		UPDATE tickets
		SET status = {:valid}, checked_in_at = '', checked_in_by = ''
		WHERE id = {:id} AND status = {:used}`,
	).Bind(dbx.Params{
		"valid": models.TicketStatusValid,
		"used":  models.TicketStatusUsed,
		"id":    ticketID,
	}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("reset check-in: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkRefunded sets the refund flag on every ticket of a processor session.
// The flag never reverses a stored check-in record.
func (s *TicketStore) MarkRefunded(ctx context.Context, sessionID string, at time.Time) (int, error) {
	return s.markPaymentFlag(ctx, "refunded_at", sessionID, at)
}

// MarkChargeback sets the chargeback flag on every ticket of a processor
// session.
func (s *TicketStore) MarkChargeback(ctx context.Context, sessionID string, at time.Time) (int, error) {
	return s.markPaymentFlag(ctx, "chargeback_at", sessionID, at)
}

func (s *TicketStore) markPaymentFlag(ctx context.Context, column, sessionID string, at time.Time) (int, error) {
	res, err := s.app.DB().NewQuery(fmt.Sprintf(`
		UPDATE tickets
		SET %s = {:at}
		WHERE processor_session_id = {:sid}
		  AND (%s IS NULL OR %s = '')`, column, column, column),
	).Bind(dbx.Params{
		"at":  formatDate(at),
		"sid": sessionID,
	}).WithContext(ctx).Execute()
	if err != nil {
		return 0, fmt.Errorf("mark %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// InsertCheckInEvent appends one row to the audit log. The log is
// append-only; nothing ever updates or deletes these rows.
func (s *TicketStore) InsertCheckInEvent(ctx context.Context, ev *models.CheckInEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	_, err := s.app.DB().NewQuery(`
		INSERT INTO checkin_events (id, ticket, operator_id, method, note, timestamp, created, updated)
		VALUES ({:id}, {:ticket}, {:op}, {:method}, {:note}, {:ts}, {:ts}, {:ts})`,
	).Bind(dbx.Params{
		"id":     ev.ID,
		"ticket": ev.TicketID,
		"op":     ev.OperatorID,
		"method": ev.Method,
		"note":   ev.Note,
		"ts":     formatDate(ev.Timestamp),
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("insert check-in event: %w", err)
	}
	return nil
}

// AttendanceFromLog recomputes the live headcount from the audit log:
// check-ins minus resets, overall and for zone-granting ticket types. Any
// cached counter must agree with this.
func (s *TicketStore) AttendanceFromLog(ctx context.Context) (total int, zone int, err error) {
	err = s.app.DB().NewQuery(`
		SELECT
			COALESCE(SUM(CASE WHEN e.method != {:reset} THEN 1 ELSE -1 END), 0) AS total
		FROM checkin_events e`,
	).Bind(dbx.Params{"reset": models.CheckInMethodReset}).WithContext(ctx).Row(&total)
	if err != nil {
		return 0, 0, fmt.Errorf("attendance from log: %w", err)
	}

	err = s.app.DB().NewQuery(`
		SELECT
			COALESCE(SUM(CASE WHEN e.method != {:reset} THEN 1 ELSE -1 END), 0) AS zone
		FROM checkin_events e
		JOIN tickets t ON t.id = e.ticket
		JOIN ticket_types tt ON tt.id = t.ticket_type
		WHERE tt.zone_access = TRUE`,
	).Bind(dbx.Params{"reset": models.CheckInMethodReset}).WithContext(ctx).Row(&zone)
	if err != nil {
		return 0, 0, fmt.Errorf("zone attendance from log: %w", err)
	}

	if total < 0 {
		total = 0
	}
	if zone < 0 {
		zone = 0
	}
	return total, zone, nil
}

// ListTickets returns the full ticket set, including refunded, charged-back
// and cancelled rows. Long scans hold no locks.
func (s *TicketStore) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	rows := []ticketRow{}
	err := s.app.DB().NewQuery(
		"SELECT " + ticketColumns + " FROM tickets ORDER BY created",
	).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	tickets := make([]models.Ticket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, rows[i].toModel())
	}
	return tickets, nil
}

// Search runs a case-insensitive substring match over buyer name, buyer
// email, ticket code and processor session id, bounded by limit.
func (s *TicketStore) Search(ctx context.Context, query string, limit int) ([]models.Ticket, error) {
	needle := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows := []ticketRow{}
	err := s.app.DB().NewQuery(`
		SELECT `+ticketColumns+` FROM tickets
		WHERE LOWER(buyer_name) LIKE {:q}
		   OR LOWER(buyer_email) LIKE {:q}
		   OR LOWER(ticket_code) LIKE {:q}
		   OR LOWER(processor_session_id) LIKE {:q}
		ORDER BY created DESC
		LIMIT {:limit}`,
	).Bind(dbx.Params{"q": needle, "limit": limit}).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("search tickets: %w", err)
	}
	tickets := make([]models.Ticket, 0, len(rows))
	for i := range rows {
		tickets = append(tickets, rows[i].toModel())
	}
	return tickets, nil
}

// SessionIDs returns the processor session ids present locally with the
// number of ticket rows under each, keyed for the reconciliation diff. A
// duplicate-session defect shows up here as a count above one.
func (s *TicketStore) SessionIDs(ctx context.Context) (map[string]int, error) {
	type sessionRow struct {
		SessionID string `db:"processor_session_id"`
		Tickets   int    `db:"tickets"`
	}
	rows := []sessionRow{}
	err := s.app.DB().NewQuery(`
		SELECT processor_session_id, COUNT(*) AS tickets
		FROM tickets
		WHERE processor_session_id != ''
		GROUP BY processor_session_id`,
	).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("session ids: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.SessionID] = r.Tickets
	}
	return counts, nil
}

// TicketTypes returns every ticket type keyed by id.
func (s *TicketStore) TicketTypes(ctx context.Context) (map[string]models.TicketType, error) {
	type typeRow struct {
		ID         string `db:"id"`
		EventID    string `db:"event"`
		Name       string `db:"name"`
		Code       string `db:"code"`
		Price      int64  `db:"price"`
		Capacity   int    `db:"capacity"`
		ZoneAccess bool   `db:"zone_access"`
	}
	rows := []typeRow{}
	err := s.app.DB().NewQuery(
		"SELECT id, event, name, code, price, capacity, zone_access FROM ticket_types",
	).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("ticket types: %w", err)
	}
	types := make(map[string]models.TicketType, len(rows))
	for _, r := range rows {
		types[r.ID] = models.TicketType{
			ID:         r.ID,
			EventID:    r.EventID,
			Name:       r.Name,
			Code:       r.Code,
			Price:      r.Price,
			Capacity:   r.Capacity,
			ZoneAccess: r.ZoneAccess,
		}
	}
	return types, nil
}

// TicketTypeByID looks one ticket type up. Types referenced by a ticket but
// deleted afterwards come back as ErrTicketNotFound; callers display an
// unknown bucket instead of dropping the ticket.
func (s *TicketStore) TicketTypeByID(ctx context.Context, id string) (*models.TicketType, error) {
	type typeRow struct {
		ID         string `db:"id"`
		EventID    string `db:"event"`
		Name       string `db:"name"`
		Code       string `db:"code"`
		Price      int64  `db:"price"`
		Capacity   int    `db:"capacity"`
		ZoneAccess bool   `db:"zone_access"`
	}
	row := typeRow{}
	err := s.app.DB().NewQuery(
		"SELECT id, event, name, code, price, capacity, zone_access FROM ticket_types WHERE id = {:id}",
	).Bind(dbx.Params{"id": id}).WithContext(ctx).One(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("ticket type by id: %w", err)
	}
	return &models.TicketType{
		ID:         row.ID,
		EventID:    row.EventID,
		Name:       row.Name,
		Code:       row.Code,
		Price:      row.Price,
		Capacity:   row.Capacity,
		ZoneAccess: row.ZoneAccess,
	}, nil
}

// EventName resolves an event id for display. Unknown ids come back empty
// rather than failing the check-in.
func (s *TicketStore) EventName(ctx context.Context, eventID string) string {
	var name string
	err := s.app.DB().NewQuery(
		"SELECT name FROM events WHERE id = {:id}",
	).Bind(dbx.Params{"id": eventID}).WithContext(ctx).Row(&name)
	if err != nil {
		return ""
	}
	return name
}
