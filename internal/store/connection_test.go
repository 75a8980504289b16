package store

import (
	"testing"
	"time"

	"github.com/vigilapp/vigil/internal/model"
)

func TestSoftDeleteVoidsFuturePingsOnly(t *testing.T) {
	db := setupTestDB(t)
	cs := NewConnectionStore(db)
	ps := NewPingStore(db)

	conn := activeConnection(t, cs, 1, 2)
	scheduled := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	if _, err := ps.InsertBatch([]model.Ping{
		testPing(conn.ID, 1, 2, "2024-06-04", scheduled.AddDate(0, 0, -1)),
		testPing(conn.ID, 1, 2, "2024-06-05", scheduled),
		testPing(conn.ID, 1, 2, "2024-06-06", scheduled.AddDate(0, 0, 1)),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := cs.SoftDelete(conn.ID, "2024-06-05"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	got, err := cs.GetByID(conn.ID)
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if got == nil || got.Status != model.ConnectionDeleted {
		t.Fatalf("status = %v, want deleted", got)
	}

	pings, err := ps.ListByConnection(conn.ID)
	if err != nil {
		t.Fatalf("list pings: %v", err)
	}
	if len(pings) != 2 {
		t.Fatalf("pings after delete = %d, want 2 (history kept, future removed)", len(pings))
	}
	for _, p := range pings {
		if p.PingDate > "2024-06-05" {
			t.Errorf("future ping %s survived soft delete", p.PingDate)
		}
	}
}

func TestListActiveExcludesOtherStatuses(t *testing.T) {
	db := setupTestDB(t)
	cs := NewConnectionStore(db)

	activeConnection(t, cs, 1, 2)
	if _, err := cs.Create(3, 4); err != nil { // stays pending
		t.Fatalf("create pending: %v", err)
	}
	paused := activeConnection(t, cs, 5, 6)
	if err := cs.UpdateStatus(paused.ID, model.ConnectionPaused); err != nil {
		t.Fatalf("pause: %v", err)
	}

	conns, err := cs.ListActive()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(conns) != 1 {
		t.Fatalf("active = %d, want 1", len(conns))
	}
	if conns[0].SenderID != 1 {
		t.Errorf("active sender = %d, want 1", conns[0].SenderID)
	}
}

func TestCreateDuplicatePairFails(t *testing.T) {
	db := setupTestDB(t)
	cs := NewConnectionStore(db)

	if _, err := cs.Create(1, 2); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := cs.Create(1, 2); err == nil {
		t.Fatal("expected duplicate (sender, receiver) pair to fail")
	}
}
