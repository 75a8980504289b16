package ping

import (
	"testing"
	"time"

	"github.com/vigilapp/vigil/internal/model"
)

func TestCollapseDayOrdering(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	deadlinePast := now.Add(-time.Hour)
	deadlineFuture := now.Add(time.Hour)

	cases := []struct {
		name  string
		pings []model.Ping
		want  DayStatus
	}{
		{"no pings", nil, DayNone},
		{"single completed", []model.Ping{{Status: model.PingCompleted}}, DayCompleted},
		{"single on break", []model.Ping{{Status: model.PingOnBreak}}, DayOnBreak},
		{"single missed", []model.Ping{{Status: model.PingMissed}}, DayMissed},
		{"pending before deadline", []model.Ping{{Status: model.PingPending, DeadlineTime: deadlineFuture}}, DayOpen},
		{"pending past deadline", []model.Ping{{Status: model.PingPending, DeadlineTime: deadlinePast}}, DayMissed},
		{
			"completed beats missed",
			[]model.Ping{{Status: model.PingMissed}, {Status: model.PingCompleted}},
			DayCompleted,
		},
		{
			"on break beats open",
			[]model.Ping{{Status: model.PingPending, DeadlineTime: deadlineFuture}, {Status: model.PingOnBreak}},
			DayOnBreak,
		},
		{
			"open beats missed",
			[]model.Ping{{Status: model.PingMissed}, {Status: model.PingPending, DeadlineTime: deadlineFuture}},
			DayOpen,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CollapseDay(tc.pings, now); got != tc.want {
				t.Errorf("CollapseDay = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDayStatusQualifies(t *testing.T) {
	qualifying := map[DayStatus]bool{
		DayNone:      false,
		DayMissed:    false,
		DayOpen:      false,
		DayOnBreak:   true,
		DayCompleted: true,
	}
	for status, want := range qualifying {
		if got := status.Qualifies(); got != want {
			t.Errorf("%s.Qualifies() = %v, want %v", status, got, want)
		}
	}
}
