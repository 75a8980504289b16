package store

import (
	"database/sql"
	"fmt"

	"github.com/vigilapp/vigil/internal/model"
)

type ConnectionStore struct {
	db *sql.DB
}

func NewConnectionStore(db *sql.DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

func scanConnection(scanner interface{ Scan(...any) error }) (*model.Connection, error) {
	var c model.Connection
	err := scanner.Scan(&c.ID, &c.SenderID, &c.ReceiverID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const connectionCols = `id, sender_id, receiver_id, status, created_at, updated_at`

func (s *ConnectionStore) Create(senderID, receiverID int64) (*model.Connection, error) {
	result, err := s.db.Exec(
		`INSERT INTO connections (sender_id, receiver_id) VALUES (?, ?)`,
		senderID, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert connection: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ConnectionStore) GetByID(id int64) (*model.Connection, error) {
	row := s.db.QueryRow(`SELECT `+connectionCols+` FROM connections WHERE id = ?`, id)
	c, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

// ListActive returns every connection currently eligible for ping generation.
func (s *ConnectionStore) ListActive() ([]model.Connection, error) {
	rows, err := s.db.Query(`SELECT ` + connectionCols + ` FROM connections WHERE status = 'active' ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

func (s *ConnectionStore) ListByUser(userID int64) ([]model.Connection, error) {
	rows, err := s.db.Query(
		`SELECT `+connectionCols+` FROM connections
		 WHERE (sender_id = ? OR receiver_id = ?) AND status != 'deleted' ORDER BY id ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list connections by user: %w", err)
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}

func (s *ConnectionStore) UpdateStatus(id int64, status model.ConnectionStatus) error {
	_, err := s.db.Exec(
		`UPDATE connections SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update connection status: %w", err)
	}
	return nil
}

// SoftDelete marks the connection deleted and voids its future-dated pings
// in the same transaction. Past pings stay untouched so streak history
// survives the deletion.
func (s *ConnectionStore) SoftDelete(id int64, today string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE connections SET status = 'deleted', updated_at = datetime('now') WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("soft delete connection: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM pings WHERE connection_id = ? AND ping_date > ?`, id, today,
	); err != nil {
		return fmt.Errorf("void future pings: %w", err)
	}

	return tx.Commit()
}
