package domain

import "time"

// StatusCount is one column of the kanban summary.
type StatusCount struct {
	StatusMeta
	Count int `json:"count"`
}

// UpcomingDeparture is a lead leaving within the dashboard horizon.
type UpcomingDeparture struct {
	LeadID        string `json:"lead_id"`
	Name          string `json:"name"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	DaysUntil     int    `json:"days_until"`
}

// Dashboard is the response of GET /v1/dashboard.
type Dashboard struct {
	TotalLeads          int                 `json:"total_leads"`
	ByStatus            []StatusCount       `json:"by_status"`
	Revenue             float64             `json:"revenue"`
	Commission          float64             `json:"commission"`
	OutstandingDeposits int                 `json:"outstanding_deposits"`
	OutstandingAmount   float64             `json:"outstanding_deposit_amount"`
	UpcomingDepartures  []UpcomingDeparture `json:"upcoming_departures"`
	ConversionRate      float64             `json:"conversion_rate"`
	Documents           ExpirySummary       `json:"documents"`
	UnreadNotifications int                 `json:"unread_notifications"`
	GeneratedAt         time.Time           `json:"generated_at"`
}
