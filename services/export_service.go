package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"gigg-ticketing/models"
	"io"
	"time"
)

const searchLimit = 20

type searchStore interface {
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	TicketTypes(ctx context.Context) (map[string]models.TicketType, error)
	Search(ctx context.Context, query string, limit int) ([]models.Ticket, error)
	EventName(ctx context.Context, eventID string) string
}

// SearchResult is one row of the ad-hoc lookup, trimmed for display.
type SearchResult struct {
	TicketCode string `json:"ticket_code"`
	Status     string `json:"status"`
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	TicketType string `json:"ticket_type"`
	EventName  string `json:"event_name"`
}

// ExportService serves ad-hoc search and the point-in-time CSV snapshot.
// Both are read-only scans that hold no locks and freely overlap check-ins.
type ExportService struct {
	store searchStore
}

func NewExportService(store searchStore) *ExportService {
	return &ExportService{store: store}
}

// Search runs the bounded free-text lookup.
func (s *ExportService) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if query == "" {
		return []SearchResult{}, nil
	}

	tickets, err := s.store.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	types, err := s.store.TicketTypes(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(tickets))
	for _, t := range tickets {
		typeName := "(unknown type)"
		if tt, ok := types[t.TicketTypeID]; ok {
			typeName = tt.Name
		}
		results = append(results, SearchResult{
			TicketCode: t.TicketCode,
			Status:     t.Status,
			BuyerName:  t.BuyerName,
			BuyerEmail: t.BuyerEmail,
			TicketType: typeName,
			EventName:  s.store.EventName(ctx, t.EventID),
		})
	}
	return results, nil
}

// ExportFilename names the snapshot after the export date.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("gigg-tickets-%s.csv", now.Format("2006-01-02"))
}

var exportHeader = []string{
	"ticket_code", "status", "buyer_name", "buyer_email",
	"ticket_type", "event",
	"processor_session_id", "payment_intent_id",
	"checked_in_at", "checked_in_by",
	"refunded", "refunded_at", "chargeback", "chargeback_at",
	"created_at",
}

// WriteCSV streams the full ticket set as a snapshot, including refunded
// and charged-back rows so settlement sees the complete picture.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer) error {
	tickets, err := s.store.ListTickets(ctx)
	if err != nil {
		return fmt.Errorf("export tickets: %w", err)
	}
	types, err := s.store.TicketTypes(ctx)
	if err != nil {
		return fmt.Errorf("export tickets: %w", err)
	}

	eventNames := map[string]string{}
	eventName := func(id string) string {
		if name, ok := eventNames[id]; ok {
			return name
		}
		name := s.store.EventName(ctx, id)
		eventNames[id] = name
		return name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	for _, t := range tickets {
		typeName := "(unknown type)"
		if tt, ok := types[t.TicketTypeID]; ok {
			typeName = tt.Name
		}

		row := []string{
			t.TicketCode,
			t.Status,
			t.BuyerName,
			t.BuyerEmail,
			typeName,
			eventName(t.EventID),
			t.ProcessorSessionID,
			t.PaymentIntentID,
			formatOptTime(t.CheckedInAt),
			t.CheckedInBy,
			flag(t.RefundedAt != nil),
			formatOptTime(t.RefundedAt),
			flag(t.ChargebackAt != nil),
			formatOptTime(t.ChargebackAt),
			t.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func flag(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
