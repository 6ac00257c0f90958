package models

// TypeRevenue is the gross/fee/net breakdown for one ticket type, amounts in
// minor units.
type TypeRevenue struct {
	TicketTypeID  string  `json:"ticket_type_id"`
	Name          string  `json:"name"`
	SoldCount     int     `json:"sold_count"`
	Capacity      int     `json:"capacity"`
	CapacityUsage float64 `json:"capacity_usage"` // sold/capacity, display only
	Gross         int64   `json:"gross"`
	Fee           int64   `json:"fee"`
	Net           int64   `json:"net"`
}

type RevenueReport struct {
	Types      []TypeRevenue `json:"types"`
	TotalGross int64         `json:"total_gross"`
	TotalFee   int64         `json:"total_fee"`
	TotalNet   int64         `json:"total_net"`
}
