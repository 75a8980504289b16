package model

import "time"

type PingStatus string

const (
	PingPending   PingStatus = "pending"
	PingCompleted PingStatus = "completed"
	PingMissed    PingStatus = "missed"
	PingOnBreak   PingStatus = "on_break"
)

type CompletionMethod string

const (
	CompletionTap      CompletionMethod = "tap"
	CompletionInPerson CompletionMethod = "in_person"
)

// Ping is one expected daily check-in for a sender/receiver connection.
// Sender and receiver ids are denormalized from the connection so lifecycle
// queries never need a join. At most one ping exists per (connection,
// ping_date); the storage layer enforces this with a uniqueness constraint.
type Ping struct {
	ID               int64             `json:"id"`
	ConnectionID     int64             `json:"connection_id"`
	SenderID         int64             `json:"sender_id"`
	ReceiverID       int64             `json:"receiver_id"`
	PingDate         string            `json:"ping_date"`
	ScheduledTime    time.Time         `json:"scheduled_time"`
	DeadlineTime     time.Time         `json:"deadline_time"`
	Status           PingStatus        `json:"status"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CompletionMethod *CompletionMethod `json:"completion_method,omitempty"`
	Latitude         *float64          `json:"latitude,omitempty"`
	Longitude        *float64          `json:"longitude,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
