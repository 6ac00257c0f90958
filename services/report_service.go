package services

import (
	"context"
	"fmt"
	"gigg-ticketing/models"
	"sort"

	"github.com/shopspring/decimal"
)

// ReportService computes the gross/fee/net settlement view over valid
// tickets (valid or used, neither refunded nor charged back). Amounts stay
// in minor units throughout; the fee is rounded per ticket, so aggregates
// are exact sums with no rounding drift.
type ReportService struct {
	store issueStore

	// feeRate is the processor's percentage component as a fraction,
	// e.g. 0.014 for 1.4%.
	feeRate decimal.Decimal

	// feeFixed is the per-ticket fixed component in minor units. It does
	// not scale with the amount.
	feeFixed decimal.Decimal
}

func NewReportService(store issueStore, feeRate, feeFixed decimal.Decimal) *ReportService {
	return &ReportService{store: store, feeRate: feeRate, feeFixed: feeFixed}
}

// FeeFor returns the processor fee for one ticket price, rounded to whole
// minor units.
func (s *ReportService) FeeFor(price int64) int64 {
	fee := decimal.NewFromInt(price).Mul(s.feeRate).Add(s.feeFixed)
	return fee.Round(0).IntPart()
}

// Build produces the per-type and aggregate revenue report.
func (s *ReportService) Build(ctx context.Context) (*models.RevenueReport, error) {
	tickets, err := s.store.ListTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("revenue report: %w", err)
	}
	types, err := s.store.TicketTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("revenue report: %w", err)
	}

	perType := map[string]*models.TypeRevenue{}
	for _, t := range tickets {
		if t.Status == models.TicketStatusCancelled || t.RefundedAt != nil || t.ChargebackAt != nil {
			continue
		}

		row, ok := perType[t.TicketTypeID]
		if !ok {
			row = &models.TypeRevenue{TicketTypeID: t.TicketTypeID, Name: "(unknown type)"}
			if tt, known := types[t.TicketTypeID]; known {
				row.Name = tt.Name
				row.Capacity = tt.Capacity
			}
			perType[t.TicketTypeID] = row
		}

		price := int64(0)
		if tt, known := types[t.TicketTypeID]; known {
			price = tt.Price
		}
		fee := s.FeeFor(price)

		row.SoldCount++
		row.Gross += price
		row.Fee += fee
		row.Net += price - fee
	}

	report := &models.RevenueReport{}
	ids := make([]string, 0, len(perType))
	for id := range perType {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		row := perType[id]
		if row.Capacity > 0 {
			row.CapacityUsage = float64(row.SoldCount) / float64(row.Capacity)
		}
		report.Types = append(report.Types, *row)
		report.TotalGross += row.Gross
		report.TotalFee += row.Fee
		report.TotalNet += row.Net
	}

	return report, nil
}
