package model

import "time"

// Notification types dispatched by the ping engine.
const (
	NotifTypeCheckinOnTime = "checkin_confirmed"
	NotifTypeCheckinLate   = "checkin_late"
	NotifTypePingMissed    = "ping_missed"
)

type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}
