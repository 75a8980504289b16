package store

import (
	"database/sql"
	"fmt"

	"github.com/vigilapp/vigil/internal/model"
)

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

func scanSchedule(scanner interface{ Scan(...any) error }) (*model.Schedule, error) {
	var sc model.Schedule
	var enabled int
	err := scanner.Scan(&sc.ID, &sc.SenderID, &sc.CheckinTime, &sc.Timezone, &enabled, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sc.Enabled = enabled != 0
	return &sc, nil
}

const scheduleCols = `id, sender_id, checkin_time, timezone, enabled, created_at, updated_at`

// Upsert creates or replaces a sender's schedule.
func (s *ScheduleStore) Upsert(senderID int64, checkinTime, timezone string, enabled bool) (*model.Schedule, error) {
	var enabledInt int
	if enabled {
		enabledInt = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO schedules (sender_id, checkin_time, timezone, enabled) VALUES (?, ?, ?, ?)
		 ON CONFLICT(sender_id) DO UPDATE SET
		   checkin_time = excluded.checkin_time,
		   timezone = excluded.timezone,
		   enabled = excluded.enabled,
		   updated_at = datetime('now')`,
		senderID, checkinTime, timezone, enabledInt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert schedule: %w", err)
	}
	return s.GetBySender(senderID)
}

func (s *ScheduleStore) GetBySender(senderID int64) (*model.Schedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleCols+` FROM schedules WHERE sender_id = ?`, senderID)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sc, nil
}

// UpdateTimezone records the sender's current IANA zone. Called on every app
// foreground sync; the next generation run picks it up.
func (s *ScheduleStore) UpdateTimezone(senderID int64, timezone string) error {
	_, err := s.db.Exec(
		`UPDATE schedules SET timezone = ?, updated_at = datetime('now') WHERE sender_id = ?`,
		timezone, senderID,
	)
	if err != nil {
		return fmt.Errorf("update schedule timezone: %w", err)
	}
	return nil
}

func (s *ScheduleStore) SetEnabled(senderID int64, enabled bool) error {
	var enabledInt int
	if enabled {
		enabledInt = 1
	}
	_, err := s.db.Exec(
		`UPDATE schedules SET enabled = ?, updated_at = datetime('now') WHERE sender_id = ?`,
		enabledInt, senderID,
	)
	if err != nil {
		return fmt.Errorf("set schedule enabled: %w", err)
	}
	return nil
}
