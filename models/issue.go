package models

const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const (
	IssueDuplicateSession = "duplicate_session"
	IssueRefunded         = "refunded"
	IssueChargeback       = "chargeback"
	IssuePaymentIssue     = "payment_issue"
	IssueOrphanedType     = "orphaned_type"
	IssueOversold         = "oversold"
)

type Issue struct {
	Kind     string   `json:"kind"`
	Severity string   `json:"severity"`
	Detail   string   `json:"detail"`
	Tickets  []string `json:"tickets,omitempty"` // ticket codes involved
	Count    int      `json:"count,omitempty"`
}

// IssueReport is derived on every scan and never persisted.
type IssueReport struct {
	Issues []Issue `json:"issues"`
}

func (r *IssueReport) HasIssues() bool { return len(r.Issues) > 0 }

func (r *IssueReport) CriticalCount() int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == SeverityHigh {
			n++
		}
	}
	return n
}
