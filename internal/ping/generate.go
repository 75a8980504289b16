package ping

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vigilapp/vigil/internal/entitlement"
	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/store"
)

// SkipReason explains why the generator produced no ping for a connection.
type SkipReason string

const (
	SkipExists             SkipReason = "already_exists"
	SkipNoSchedule         SkipReason = "no_schedule"
	SkipScheduleDisabled   SkipReason = "schedule_disabled"
	SkipNoEntitlement      SkipReason = "no_entitlement"
	SkipEntitlementBlocked SkipReason = "entitlement_blocked"
)

// GenerateReport summarizes one generation run.
type GenerateReport struct {
	Date    string             `json:"date"`
	Created int                `json:"created"`
	Skipped map[SkipReason]int `json:"skipped"`
	Errors  int                `json:"errors"`
}

// Generator produces each day's expected pings. It is idempotent per
// calendar date: the per-connection existence check plus the storage
// uniqueness constraint make re-invocation and concurrent runs safe.
type Generator struct {
	connections *store.ConnectionStore
	schedules   *store.ScheduleStore
	breaks      *store.BreakStore
	pings       *store.PingStore
	gate        *entitlement.Gate
	logger      *slog.Logger
	now         func() time.Time
}

func NewGenerator(
	cs *store.ConnectionStore,
	ss *store.ScheduleStore,
	bs *store.BreakStore,
	ps *store.PingStore,
	gate *entitlement.Gate,
	logger *slog.Logger,
) *Generator {
	return &Generator{
		connections: cs,
		schedules:   ss,
		breaks:      bs,
		pings:       ps,
		gate:        gate,
		logger:      logger,
		now:         time.Now,
	}
}

// SetNow overrides the clock. Tests use this to pin the generation day.
func (g *Generator) SetNow(now func() time.Time) {
	g.now = now
}

// Run generates pings for the target date, or for the current UTC day when
// target is nil. The whole batch is computed first and written in one
// transaction; a failed write fails the run and is safe to retry.
func (g *Generator) Run(target *time.Time) (*GenerateReport, error) {
	day := startOfUTCDay(g.now())
	if target != nil {
		day = startOfUTCDay(*target)
	}
	date := day.Format(model.DateLayout)

	runID := uuid.NewString()[:8]
	log := g.logger.With("run_id", runID, "date", date)

	conns, err := g.connections.ListActive()
	if err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}

	report := &GenerateReport{Date: date, Skipped: make(map[SkipReason]int)}
	var batch []model.Ping

	for _, conn := range conns {
		exists, err := g.pings.ExistsForDate(conn.ID, date)
		if err != nil {
			return nil, fmt.Errorf("check existing ping: %w", err)
		}
		if exists {
			report.Skipped[SkipExists]++
			continue
		}

		sched, err := g.schedules.GetBySender(conn.SenderID)
		if err != nil {
			return nil, fmt.Errorf("get schedule: %w", err)
		}
		if sched == nil {
			report.Skipped[SkipNoSchedule]++
			continue
		}
		if !sched.Enabled {
			report.Skipped[SkipScheduleDisabled]++
			continue
		}

		ent, allowed, err := g.gate.Resolve(conn.ReceiverID)
		if err != nil {
			return nil, fmt.Errorf("resolve entitlement: %w", err)
		}
		if ent == nil {
			report.Skipped[SkipNoEntitlement]++
			continue
		}
		if !allowed {
			report.Skipped[SkipEntitlementBlocked]++
			continue
		}

		onBreak, err := g.breaks.IsOnBreak(conn.SenderID, date)
		if err != nil {
			return nil, fmt.Errorf("check break: %w", err)
		}

		scheduled, err := localInstant(day, sched.CheckinTime, sched.Timezone)
		if err != nil {
			log.Error("compute scheduled time", "connection_id", conn.ID, "error", err)
			report.Errors++
			continue
		}

		status := model.PingPending
		if onBreak {
			status = model.PingOnBreak
		}

		batch = append(batch, model.Ping{
			ConnectionID:  conn.ID,
			SenderID:      conn.SenderID,
			ReceiverID:    conn.ReceiverID,
			PingDate:      date,
			ScheduledTime: scheduled,
			DeadlineTime:  scheduled.Add(DeadlineGrace),
			Status:        status,
		})
	}

	created, err := g.pings.InsertBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("insert pings: %w", err)
	}
	report.Created = created

	log.Info("generation run finished",
		"connections", len(conns),
		"created", report.Created,
		"skipped", len(conns)-report.Created-report.Errors,
		"errors", report.Errors,
	)
	return report, nil
}

// localInstant interprets a wall-clock time on the given calendar day in the
// named IANA zone and returns the matching absolute instant. time.Date does
// the DST-aware resolution: the instant's local representation in that zone
// equals the configured hour, minute, and second on that day.
func localInstant(day time.Time, clock, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load zone %q: %w", zone, err)
	}
	t, err := time.Parse(model.TimeLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse check-in time %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}
