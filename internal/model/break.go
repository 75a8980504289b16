package model

import "time"

type BreakStatus string

const (
	BreakScheduled BreakStatus = "scheduled"
	BreakActive    BreakStatus = "active"
	BreakCompleted BreakStatus = "completed"
	BreakCanceled  BreakStatus = "canceled"
)

// Break is a sender-declared inclusive date range during which no check-in
// is required. Only scheduled and active breaks suppress pings.
type Break struct {
	ID        int64       `json:"id"`
	SenderID  int64       `json:"sender_id"`
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Status    BreakStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Covers reports whether date (YYYY-MM-DD) falls inside the break range.
// ISO date strings compare correctly as plain strings.
func (b Break) Covers(date string) bool {
	return b.StartDate <= date && date <= b.EndDate
}
