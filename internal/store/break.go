package store

import (
	"database/sql"
	"fmt"

	"github.com/vigilapp/vigil/internal/model"
)

type BreakStore struct {
	db *sql.DB
}

func NewBreakStore(db *sql.DB) *BreakStore {
	return &BreakStore{db: db}
}

func scanBreak(scanner interface{ Scan(...any) error }) (*model.Break, error) {
	var b model.Break
	err := scanner.Scan(&b.ID, &b.SenderID, &b.StartDate, &b.EndDate, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

const breakCols = `id, sender_id, start_date, end_date, status, created_at, updated_at`

func (s *BreakStore) Create(senderID int64, startDate, endDate string) (*model.Break, error) {
	result, err := s.db.Exec(
		`INSERT INTO breaks (sender_id, start_date, end_date) VALUES (?, ?, ?)`,
		senderID, startDate, endDate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert break: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BreakStore) GetByID(id int64) (*model.Break, error) {
	row := s.db.QueryRow(`SELECT `+breakCols+` FROM breaks WHERE id = ?`, id)
	b, err := scanBreak(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get break: %w", err)
	}
	return b, nil
}

func (s *BreakStore) ListBySender(senderID int64) ([]model.Break, error) {
	rows, err := s.db.Query(
		`SELECT `+breakCols+` FROM breaks WHERE sender_id = ? ORDER BY start_date DESC`,
		senderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list breaks: %w", err)
	}
	defer rows.Close()

	var breaks []model.Break
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, fmt.Errorf("scan break: %w", err)
		}
		breaks = append(breaks, *b)
	}
	return breaks, rows.Err()
}

func (s *BreakStore) UpdateStatus(id int64, status model.BreakStatus) error {
	_, err := s.db.Exec(
		`UPDATE breaks SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update break status: %w", err)
	}
	return nil
}

// IsOnBreak reports whether the sender has a scheduled or active break
// covering the given calendar date. Overlapping breaks act as a union;
// absence of rows simply means not on break.
func (s *BreakStore) IsOnBreak(senderID int64, date string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM breaks
		 WHERE sender_id = ? AND status IN ('scheduled', 'active')
		   AND start_date <= ? AND end_date >= ?`,
		senderID, date, date,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check break: %w", err)
	}
	return count > 0, nil
}
