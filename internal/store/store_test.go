package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/vigilapp/vigil/internal/database"
	"github.com/vigilapp/vigil/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// activeConnection creates a connection and promotes it to active.
func activeConnection(t *testing.T, cs *ConnectionStore, senderID, receiverID int64) *model.Connection {
	t.Helper()
	conn, err := cs.Create(senderID, receiverID)
	if err != nil {
		t.Fatalf("create connection: %v", err)
	}
	if err := cs.UpdateStatus(conn.ID, model.ConnectionActive); err != nil {
		t.Fatalf("activate connection: %v", err)
	}
	conn.Status = model.ConnectionActive
	return conn
}

func testPing(connID, senderID, receiverID int64, date string, scheduled time.Time) model.Ping {
	return model.Ping{
		ConnectionID:  connID,
		SenderID:      senderID,
		ReceiverID:    receiverID,
		PingDate:      date,
		ScheduledTime: scheduled,
		DeadlineTime:  scheduled.Add(90 * time.Minute),
		Status:        model.PingPending,
	}
}
