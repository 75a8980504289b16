package ping

import (
	"log/slog"
	"testing"
	"time"

	"github.com/vigilapp/vigil/internal/database"
	"github.com/vigilapp/vigil/internal/entitlement"
	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/store"
)

type dispatchCall struct {
	notifType string
	senderID  int64
	receivers []int64
}

type fakeDispatcher struct {
	calls []dispatchCall
}

func (f *fakeDispatcher) Dispatch(notifType string, senderID int64, receiverIDs []int64, payload map[string]string) error {
	f.calls = append(f.calls, dispatchCall{notifType: notifType, senderID: senderID, receivers: receiverIDs})
	return nil
}

type engine struct {
	conns      *store.ConnectionStore
	schedules  *store.ScheduleStore
	breaks     *store.BreakStore
	pings      *store.PingStore
	push       *store.PushStore
	ents       *store.EntitlementStore
	gate       *entitlement.Gate
	gen        *Generator
	dispatcher *fakeDispatcher
}

func newEngine(t *testing.T, now time.Time) *engine {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	e := &engine{
		conns:      store.NewConnectionStore(db),
		schedules:  store.NewScheduleStore(db),
		breaks:     store.NewBreakStore(db),
		pings:      store.NewPingStore(db),
		push:       store.NewPushStore(db),
		ents:       store.NewEntitlementStore(db),
		dispatcher: &fakeDispatcher{},
	}
	e.gate = entitlement.NewGate(e.ents, logger)
	e.gate.SetNow(func() time.Time { return now })
	e.gen = NewGenerator(e.conns, e.schedules, e.breaks, e.pings, e.gate, logger)
	e.gen.SetNow(func() time.Time { return now })
	return e
}

// addSender wires a sender/receiver pair: active connection, enabled daily
// schedule, and a trial entitlement valid through the end of 2024.
func (e *engine) addSender(t *testing.T, senderID, receiverID int64, checkin, timezone string) *model.Connection {
	t.Helper()
	conn, err := e.conns.Create(senderID, receiverID)
	if err != nil {
		t.Fatalf("create connection: %v", err)
	}
	if err := e.conns.UpdateStatus(conn.ID, model.ConnectionActive); err != nil {
		t.Fatalf("activate connection: %v", err)
	}
	if _, err := e.schedules.Upsert(senderID, checkin, timezone, true); err != nil {
		t.Fatalf("upsert schedule: %v", err)
	}
	if _, err := e.ents.CreateTrial(receiverID, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("create trial: %v", err)
	}
	return conn
}
