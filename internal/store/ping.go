package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vigilapp/vigil/internal/model"
)

type PingStore struct {
	db *sql.DB
}

func NewPingStore(db *sql.DB) *PingStore {
	return &PingStore{db: db}
}

func scanPing(scanner interface{ Scan(...any) error }) (*model.Ping, error) {
	var p model.Ping
	var completedAt sql.NullTime
	var method sql.NullString
	var lat, lon sql.NullFloat64

	err := scanner.Scan(
		&p.ID, &p.ConnectionID, &p.SenderID, &p.ReceiverID, &p.PingDate,
		&p.ScheduledTime, &p.DeadlineTime, &p.Status,
		&completedAt, &method, &lat, &lon,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	if method.Valid {
		m := model.CompletionMethod(method.String)
		p.CompletionMethod = &m
	}
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	return &p, nil
}

const pingCols = `id, connection_id, sender_id, receiver_id, ping_date, scheduled_time, deadline_time, status, completed_at, completion_method, latitude, longitude, created_at, updated_at`

func (s *PingStore) GetByID(id int64) (*model.Ping, error) {
	row := s.db.QueryRow(`SELECT `+pingCols+` FROM pings WHERE id = ?`, id)
	p, err := scanPing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ping: %w", err)
	}
	return p, nil
}

func (s *PingStore) ExistsForDate(connectionID int64, date string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM pings WHERE connection_id = ? AND ping_date = ?`,
		connectionID, date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check ping exists: %w", err)
	}
	return count > 0, nil
}

// InsertBatch inserts the given pings in one transaction and returns how many
// rows were actually created. Rows colliding with an existing
// (connection, ping_date) pair are silently ignored, so concurrent or
// re-invoked generation runs converge on the same ping set.
func (s *PingStore) InsertBatch(pings []model.Ping) (int, error) {
	if len(pings) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	created := 0
	for _, p := range pings {
		result, err := tx.Exec(
			`INSERT INTO pings (connection_id, sender_id, receiver_id, ping_date, scheduled_time, deadline_time, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(connection_id, ping_date) DO NOTHING`,
			p.ConnectionID, p.SenderID, p.ReceiverID, p.PingDate,
			p.ScheduledTime.UTC(), p.DeadlineTime.UTC(), p.Status,
		)
		if err != nil {
			return 0, fmt.Errorf("insert ping: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		created += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return created, nil
}

// ListPendingBySenderSince returns the sender's pending pings scheduled at or
// after the given instant, across all of their receivers.
func (s *PingStore) ListPendingBySenderSince(senderID int64, since time.Time) ([]model.Ping, error) {
	rows, err := s.db.Query(
		`SELECT `+pingCols+` FROM pings
		 WHERE sender_id = ? AND status = 'pending' AND scheduled_time >= ?
		 ORDER BY scheduled_time ASC`,
		senderID, since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending pings: %w", err)
	}
	defer rows.Close()
	return collectPings(rows)
}

// CompletePings transitions the given pings to completed, recording the
// completion instant, method, and optional geolocation. Each update is
// guarded on status = 'pending', so retried or concurrent completions find
// nothing left to change. Returns the pings that actually transitioned.
func (s *PingStore) CompletePings(ids []int64, completedAt time.Time, method model.CompletionMethod, lat, lon *float64) ([]model.Ping, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var latVal, lonVal sql.NullFloat64
	if lat != nil {
		latVal = sql.NullFloat64{Float64: *lat, Valid: true}
	}
	if lon != nil {
		lonVal = sql.NullFloat64{Float64: *lon, Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var updated []int64
	for _, id := range ids {
		result, err := tx.Exec(
			`UPDATE pings
			 SET status = 'completed', completed_at = ?, completion_method = ?,
			     latitude = ?, longitude = ?, updated_at = datetime('now')
			 WHERE id = ? AND status = 'pending'`,
			completedAt.UTC(), method, latVal, lonVal, id,
		)
		if err != nil {
			return nil, fmt.Errorf("complete ping: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			updated = append(updated, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit completions: %w", err)
	}

	return s.listByIDs(updated)
}

// MarkMissed transitions pending pings whose deadline has elapsed to missed
// and returns them. The status guard keeps concurrent sweeps from
// transitioning the same ping twice.
func (s *PingStore) MarkMissed(now time.Time) ([]model.Ping, error) {
	rows, err := s.db.Query(
		`SELECT id FROM pings WHERE status = 'pending' AND deadline_time < ?`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list expired pings: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan ping id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired pings: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var missed []int64
	for _, id := range ids {
		result, err := tx.Exec(
			`UPDATE pings SET status = 'missed', updated_at = datetime('now')
			 WHERE id = ? AND status = 'pending'`,
			id,
		)
		if err != nil {
			return nil, fmt.Errorf("mark ping missed: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			missed = append(missed, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit missed sweep: %w", err)
	}

	return s.listByIDs(missed)
}

// ListRecentBySender returns the sender's most recent pings ordered by date
// descending, optionally scoped to a single receiver.
func (s *PingStore) ListRecentBySender(senderID int64, receiverID *int64, limit int) ([]model.Ping, error) {
	query := `SELECT ` + pingCols + ` FROM pings WHERE sender_id = ?`
	args := []any{senderID}
	if receiverID != nil {
		query += ` AND receiver_id = ?`
		args = append(args, *receiverID)
	}
	query += ` ORDER BY ping_date DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent pings: %w", err)
	}
	defer rows.Close()
	return collectPings(rows)
}

func (s *PingStore) ListByConnection(connectionID int64) ([]model.Ping, error) {
	rows, err := s.db.Query(
		`SELECT `+pingCols+` FROM pings WHERE connection_id = ? ORDER BY ping_date DESC`,
		connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pings by connection: %w", err)
	}
	defer rows.Close()
	return collectPings(rows)
}

func (s *PingStore) listByIDs(ids []int64) ([]model.Ping, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(
		`SELECT `+pingCols+` FROM pings WHERE id IN (`+placeholders+`) ORDER BY id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list pings by ids: %w", err)
	}
	defer rows.Close()
	return collectPings(rows)
}

func collectPings(rows *sql.Rows) ([]model.Ping, error) {
	var pings []model.Ping
	for rows.Next() {
		p, err := scanPing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		pings = append(pings, *p)
	}
	return pings, rows.Err()
}
