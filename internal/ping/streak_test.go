package ping

import (
	"testing"
	"time"

	"github.com/vigilapp/vigil/internal/model"
)

func newStreaks(e *engine, now time.Time) *StreakCalculator {
	c := NewStreakCalculator(e.pings)
	c.SetNow(func() time.Time { return now })
	return c
}

// seedDay inserts one ping for the date with the given terminal status.
func seedDay(t *testing.T, e *engine, conn *model.Connection, date string, status model.PingStatus) {
	t.Helper()
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	scheduled := day.Add(9 * time.Hour)
	created, err := e.pings.InsertBatch([]model.Ping{{
		ConnectionID:  conn.ID,
		SenderID:      conn.SenderID,
		ReceiverID:    conn.ReceiverID,
		PingDate:      date,
		ScheduledTime: scheduled,
		DeadlineTime:  scheduled.Add(DeadlineGrace),
		Status:        status,
	}})
	if err != nil || created != 1 {
		t.Fatalf("seed %s: created=%d err=%v", date, created, err)
	}
}

func TestStreakResetOnMiss(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	e := newEngine(t, now)
	conn := e.addSender(t, 1, 2, "09:00:00", "UTC")

	for _, d := range []string{"2024-06-10", "2024-06-09", "2024-06-08"} {
		seedDay(t, e, conn, d, model.PingCompleted)
	}
	seedDay(t, e, conn, "2024-06-07", model.PingMissed)
	for _, d := range []string{"2024-06-06", "2024-06-05", "2024-06-04", "2024-06-03", "2024-06-02"} {
		seedDay(t, e, conn, d, model.PingCompleted)
	}

	result, err := newStreaks(e, now).Calculate(1, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Count != 3 {
		t.Fatalf("streak = %d, want 3 (miss resets)", result.Count)
	}
	if result.AnchorDate != "2024-06-10" {
		t.Errorf("anchor = %s, want 2024-06-10", result.AnchorDate)
	}
}

func TestStreakContinuesThroughBreak(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	e := newEngine(t, now)
	conn := e.addSender(t, 1, 2, "09:00:00", "UTC")

	seedDay(t, e, conn, "2024-06-10", model.PingCompleted)
	seedDay(t, e, conn, "2024-06-09", model.PingOnBreak)
	seedDay(t, e, conn, "2024-06-08", model.PingOnBreak)
	seedDay(t, e, conn, "2024-06-07", model.PingCompleted)
	seedDay(t, e, conn, "2024-06-06", model.PingCompleted)

	result, err := newStreaks(e, now).Calculate(1, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Count != 5 {
		t.Fatalf("streak = %d, want 5 (break days count)", result.Count)
	}
}

func TestStreakTodayMissedIsZero(t *testing.T) {
	// Today's ping is still pending but its deadline (10:30) is behind the
	// clock, so the day already reads as missed.
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	e := newEngine(t, now)
	conn := e.addSender(t, 1, 2, "09:00:00", "UTC")

	seedDay(t, e, conn, "2024-06-10", model.PingPending)
	seedDay(t, e, conn, "2024-06-09", model.PingCompleted)
	seedDay(t, e, conn, "2024-06-08", model.PingCompleted)

	result, err := newStreaks(e, now).Calculate(1, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Count != 0 {
		t.Fatalf("streak = %d, want 0 when today is missed", result.Count)
	}
	if result.TodayStatus != "missed" {
		t.Errorf("today = %s, want missed", result.TodayStatus)
	}
}

func TestStreakTodayOpenAnchorsYesterday(t *testing.T) {
	// 09:30 is before today's 10:30 deadline, so today is open and the
	// count anchors on yesterday.
	now := time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)
	e := newEngine(t, now)
	conn := e.addSender(t, 1, 2, "09:00:00", "UTC")

	seedDay(t, e, conn, "2024-06-10", model.PingPending)
	seedDay(t, e, conn, "2024-06-09", model.PingCompleted)
	seedDay(t, e, conn, "2024-06-08", model.PingCompleted)

	result, err := newStreaks(e, now).Calculate(1, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("streak = %d, want 2", result.Count)
	}
	if result.AnchorDate != "2024-06-09" {
		t.Errorf("anchor = %s, want 2024-06-09", result.AnchorDate)
	}
	if result.TodayStatus != "open" {
		t.Errorf("today = %s, want open", result.TodayStatus)
	}
}

func TestStreakGapEndsCount(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	e := newEngine(t, now)
	conn := e.addSender(t, 1, 2, "09:00:00", "UTC")

	seedDay(t, e, conn, "2024-06-10", model.PingCompleted)
	// No record for 06-09.
	seedDay(t, e, conn, "2024-06-08", model.PingCompleted)

	result, err := newStreaks(e, now).Calculate(1, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("streak = %d, want 1 (gap ends the run)", result.Count)
	}
}

func TestStreakNoHistory(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	e := newEngine(t, now)

	result, err := newStreaks(e, now).Calculate(1, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Count != 0 {
		t.Fatalf("streak = %d, want 0", result.Count)
	}
	if result.TodayStatus != "none" {
		t.Errorf("today = %s, want none", result.TodayStatus)
	}
}

func TestStreakScopedToReceiver(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	e := newEngine(t, now)
	connA := e.addSender(t, 1, 2, "09:00:00", "UTC")
	connB, err := e.conns.Create(1, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.conns.UpdateStatus(connB.ID, model.ConnectionActive); err != nil {
		t.Fatalf("activate: %v", err)
	}
	connB.Status = model.ConnectionActive

	seedDay(t, e, connA, "2024-06-10", model.PingCompleted)
	seedDay(t, e, connA, "2024-06-09", model.PingCompleted)
	seedDay(t, e, connB, "2024-06-10", model.PingMissed)

	receiver := int64(2)
	result, err := newStreaks(e, now).Calculate(1, &receiver)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("scoped streak = %d, want 2", result.Count)
	}

	// Unscoped, the other receiver's missed ping collapses today. The
	// completed ping still wins the day, so the combined streak holds.
	result, err = newStreaks(e, now).Calculate(1, nil)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("combined streak = %d, want 2 (completed wins the day)", result.Count)
	}
}
