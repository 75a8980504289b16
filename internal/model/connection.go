package model

import "time"

// DateLayout is the calendar-date format used for ping dates and break ranges.
const DateLayout = "2006-01-02"

type ConnectionStatus string

const (
	ConnectionPending ConnectionStatus = "pending"
	ConnectionActive  ConnectionStatus = "active"
	ConnectionPaused  ConnectionStatus = "paused"
	ConnectionDeleted ConnectionStatus = "deleted"
)

// Connection is an ordered sender/receiver pair. Only active connections
// participate in daily ping generation.
type Connection struct {
	ID         int64            `json:"id"`
	SenderID   int64            `json:"sender_id"`
	ReceiverID int64            `json:"receiver_id"`
	Status     ConnectionStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
