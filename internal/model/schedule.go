package model

import "time"

// TimeLayout is the local time-of-day format stored on a schedule.
const TimeLayout = "15:04:05"

// Schedule is a sender's daily check-in configuration. Timezone holds the
// sender's most recently synced IANA zone; the generator always reads the
// latest value, so the scheduled local time tracks the sender's current
// location.
type Schedule struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"sender_id"`
	CheckinTime string    `json:"checkin_time"`
	Timezone    string    `json:"timezone"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
