package services

import (
	"context"
	"fmt"
	"gigg-ticketing/models"
	"gigg-ticketing/monitoring"
	"sort"
)

type issueStore interface {
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	TicketTypes(ctx context.Context) (map[string]models.TicketType, error)
}

// IssueService is a read-only anomaly scan over the full ticket set. It
// takes no locks, has no side effects beyond metrics, and is safe to run on
// a short polling interval. Anomalies are never auto-corrected; they are
// surfaced for human review.
type IssueService struct {
	store issueStore
}

func NewIssueService(store issueStore) *IssueService {
	return &IssueService{store: store}
}

// Scan fetches the ticket set and detects anomalies.
func (s *IssueService) Scan(ctx context.Context) (*models.IssueReport, error) {
	tickets, err := s.store.ListTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue scan: %w", err)
	}
	types, err := s.store.TicketTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue scan: %w", err)
	}

	report := DetectIssues(tickets, types)

	high := 0
	medium := 0
	for _, is := range report.Issues {
		if is.Severity == models.SeverityHigh {
			high++
		} else {
			medium++
		}
	}
	monitoring.SetIssueCounts(high, medium)

	return report, nil
}

// DetectIssues is the pure scan core. Deterministic regardless of input
// order: issues come out sorted by kind then detail.
func DetectIssues(tickets []models.Ticket, types map[string]models.TicketType) *models.IssueReport {
	report := &models.IssueReport{}

	bySession := map[string][]string{}
	soldByType := map[string]int{}

	for _, t := range tickets {
		if t.ProcessorSessionID != "" {
			bySession[t.ProcessorSessionID] = append(bySession[t.ProcessorSessionID], t.TicketCode)
		}
		if t.Sold() {
			soldByType[t.TicketTypeID]++
		}

		if t.RefundedAt != nil {
			report.Issues = append(report.Issues, models.Issue{
				Kind:     models.IssueRefunded,
				Severity: models.SeverityMedium,
				Detail:   fmt.Sprintf("ticket %s was refunded at %s", t.TicketCode, t.RefundedAt.Format("2006-01-02 15:04")),
				Tickets:  []string{t.TicketCode},
			})
		}
		if t.ChargebackAt != nil {
			report.Issues = append(report.Issues, models.Issue{
				Kind:     models.IssueChargeback,
				Severity: models.SeverityHigh,
				Detail:   fmt.Sprintf("ticket %s has a chargeback from %s", t.TicketCode, t.ChargebackAt.Format("2006-01-02 15:04")),
				Tickets:  []string{t.TicketCode},
			})
		}
		if t.Status == models.TicketStatusValid && t.PaymentIntentID == "" {
			report.Issues = append(report.Issues, models.Issue{
				Kind:     models.IssuePaymentIssue,
				Severity: models.SeverityMedium,
				Detail:   fmt.Sprintf("ticket %s is valid but has no payment intent linked", t.TicketCode),
				Tickets:  []string{t.TicketCode},
			})
		}
		if _, ok := types[t.TicketTypeID]; !ok {
			report.Issues = append(report.Issues, models.Issue{
				Kind:     models.IssueOrphanedType,
				Severity: models.SeverityMedium,
				Detail:   fmt.Sprintf("ticket %s references a deleted ticket type %q", t.TicketCode, t.TicketTypeID),
				Tickets:  []string{t.TicketCode},
			})
		}
	}

	// a session id shared by two or more tickets is a double-issuance defect
	sessions := make([]string, 0, len(bySession))
	for sid, codes := range bySession {
		if len(codes) >= 2 {
			sessions = append(sessions, sid)
		}
	}
	sort.Strings(sessions)
	for _, sid := range sessions {
		codes := bySession[sid]
		sort.Strings(codes)
		report.Issues = append(report.Issues, models.Issue{
			Kind:     models.IssueDuplicateSession,
			Severity: models.SeverityHigh,
			Detail:   fmt.Sprintf("%d tickets share processor session %s", len(codes), sid),
			Tickets:  codes,
			Count:    len(codes),
		})
	}

	// oversold capacity is reported, never blocked: the tickets exist and
	// finance still has to reconcile them
	typeIDs := make([]string, 0, len(soldByType))
	for id := range soldByType {
		typeIDs = append(typeIDs, id)
	}
	sort.Strings(typeIDs)
	for _, id := range typeIDs {
		tt, ok := types[id]
		if !ok || tt.Capacity <= 0 {
			continue
		}
		if sold := soldByType[id]; sold > tt.Capacity {
			report.Issues = append(report.Issues, models.Issue{
				Kind:     models.IssueOversold,
				Severity: models.SeverityMedium,
				Detail:   fmt.Sprintf("ticket type %q sold %d of %d capacity", tt.Name, sold, tt.Capacity),
				Count:    sold,
			})
		}
	}

	sort.SliceStable(report.Issues, func(i, j int) bool {
		if report.Issues[i].Kind != report.Issues[j].Kind {
			return report.Issues[i].Kind < report.Issues[j].Kind
		}
		return report.Issues[i].Detail < report.Issues[j].Detail
	})

	return report
}
