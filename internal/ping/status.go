package ping

import (
	"time"

	"github.com/vigilapp/vigil/internal/model"
)

// DeadlineGrace is the fixed window after the scheduled time during which a
// completion still counts as on time. A pending ping past its deadline is
// late if completed and missed if not.
const DeadlineGrace = 90 * time.Minute

// DayStatus is the collapsed status of one calendar day across all of a
// sender's pings. The constants form a total order: when several pings fall
// on the same day, the highest value wins. This single ordering drives both
// the generator's status assignment and the streak walk, so the two can
// never disagree about what a day means.
type DayStatus int

const (
	// DayNone means no ping record exists for the day.
	DayNone DayStatus = iota
	// DayMissed means the day's obligations lapsed: a ping is missed, or
	// still pending with its deadline already behind us.
	DayMissed
	// DayOpen means a ping is pending and its deadline has not yet passed.
	DayOpen
	// DayOnBreak means the sender was excused for the day.
	DayOnBreak
	// DayCompleted means at least one ping that day was completed.
	DayCompleted
)

func (d DayStatus) String() string {
	switch d {
	case DayMissed:
		return "missed"
	case DayOpen:
		return "open"
	case DayOnBreak:
		return "on_break"
	case DayCompleted:
		return "completed"
	default:
		return "none"
	}
}

// CollapseDay reduces all pings for one calendar day to a single DayStatus.
func CollapseDay(pings []model.Ping, now time.Time) DayStatus {
	day := DayNone
	for _, p := range pings {
		var st DayStatus
		switch p.Status {
		case model.PingCompleted:
			st = DayCompleted
		case model.PingOnBreak:
			st = DayOnBreak
		case model.PingPending:
			if now.After(p.DeadlineTime) {
				st = DayMissed
			} else {
				st = DayOpen
			}
		case model.PingMissed:
			st = DayMissed
		}
		if st > day {
			day = st
		}
	}
	return day
}

// Qualifies reports whether the day keeps a streak alive.
func (d DayStatus) Qualifies() bool {
	return d == DayCompleted || d == DayOnBreak
}

func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
