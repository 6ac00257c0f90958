package services

import (
	"gigg-ticketing/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueTypes() map[string]models.TicketType {
	return map[string]models.TicketType{
		"std": {ID: "std", Name: "Standard", Price: 120, Capacity: 2},
	}
}

func TestDetectIssues_Clean(t *testing.T) {
	tickets := []models.Ticket{
		{TicketCode: "GIGG-0000-0001", TicketTypeID: "std", Status: models.TicketStatusValid, ProcessorSessionID: "cs_1", PaymentIntentID: "pi_1"},
		{TicketCode: "GIGG-0000-0002", TicketTypeID: "std", Status: models.TicketStatusUsed, ProcessorSessionID: "cs_2", PaymentIntentID: "pi_2"},
	}

	report := DetectIssues(tickets, issueTypes())
	assert.False(t, report.HasIssues())
	assert.Equal(t, 0, report.CriticalCount())
}

func TestDetectIssues_DuplicateSession(t *testing.T) {
	tickets := []models.Ticket{
		{TicketCode: "GIGG-0000-0001", TicketTypeID: "std", Status: models.TicketStatusValid, ProcessorSessionID: "cs_dup", PaymentIntentID: "pi_1"},
		{TicketCode: "GIGG-0000-0002", TicketTypeID: "std", Status: models.TicketStatusValid, ProcessorSessionID: "cs_dup", PaymentIntentID: "pi_1"},
	}

	// scan order must not matter
	for _, order := range [][]models.Ticket{tickets, {tickets[1], tickets[0]}} {
		report := DetectIssues(order, issueTypes())

		dups := []models.Issue{}
		for _, is := range report.Issues {
			if is.Kind == models.IssueDuplicateSession {
				dups = append(dups, is)
			}
		}
		require.Len(t, dups, 1)
		assert.Equal(t, 2, dups[0].Count)
		assert.Equal(t, models.SeverityHigh, dups[0].Severity)
		assert.Equal(t, []string{"GIGG-0000-0001", "GIGG-0000-0002"}, dups[0].Tickets)
	}
}

func TestDetectIssues_FlagsAndSeverities(t *testing.T) {
	now := time.Now()
	tickets := []models.Ticket{
		{TicketCode: "GIGG-0000-0001", TicketTypeID: "std", Status: models.TicketStatusUsed, ProcessorSessionID: "cs_1", PaymentIntentID: "pi_1", RefundedAt: &now},
		{TicketCode: "GIGG-0000-0002", TicketTypeID: "std", Status: models.TicketStatusValid, ProcessorSessionID: "cs_2", PaymentIntentID: "pi_2", ChargebackAt: &now},
		{TicketCode: "GIGG-0000-0003", TicketTypeID: "std", Status: models.TicketStatusValid, ProcessorSessionID: "cs_3"},
		{TicketCode: "GIGG-0000-0004", TicketTypeID: "gone", Status: models.TicketStatusValid, ProcessorSessionID: "cs_4", PaymentIntentID: "pi_4"},
	}

	report := DetectIssues(tickets, issueTypes())

	kinds := map[string]models.Issue{}
	for _, is := range report.Issues {
		kinds[is.Kind] = is
	}

	assert.Equal(t, models.SeverityMedium, kinds[models.IssueRefunded].Severity)
	assert.Equal(t, models.SeverityHigh, kinds[models.IssueChargeback].Severity)
	assert.Equal(t, models.SeverityMedium, kinds[models.IssuePaymentIssue].Severity)
	assert.Equal(t, models.SeverityMedium, kinds[models.IssueOrphanedType].Severity)
	assert.Equal(t, 1, report.CriticalCount())
}

func TestDetectIssues_Oversold(t *testing.T) {
	tickets := []models.Ticket{
		{TicketCode: "GIGG-0000-0001", TicketTypeID: "std", Status: models.TicketStatusValid, ProcessorSessionID: "cs_1", PaymentIntentID: "pi_1"},
		{TicketCode: "GIGG-0000-0002", TicketTypeID: "std", Status: models.TicketStatusUsed, ProcessorSessionID: "cs_2", PaymentIntentID: "pi_2"},
		{TicketCode: "GIGG-0000-0003", TicketTypeID: "std", Status: models.TicketStatusValid, ProcessorSessionID: "cs_3", PaymentIntentID: "pi_3"},
	}

	report := DetectIssues(tickets, issueTypes())

	found := false
	for _, is := range report.Issues {
		if is.Kind == models.IssueOversold {
			found = true
			assert.Equal(t, 3, is.Count)
			assert.Equal(t, models.SeverityMedium, is.Severity)
		}
	}
	assert.True(t, found)

	// a refunded ticket frees the seat again
	now := time.Now()
	tickets[2].RefundedAt = &now
	report = DetectIssues(tickets, issueTypes())
	for _, is := range report.Issues {
		assert.NotEqual(t, models.IssueOversold, is.Kind)
	}
}
