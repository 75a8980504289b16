package ping

import (
	"fmt"
	"time"

	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/store"
)

// streakWindow bounds how much history one streak calculation reads. Two
// years of daily pings per connection is well past any plausible display
// value, so the walk never loads an unbounded result set.
const streakWindow = 730

// StreakResult is the computed streak plus the day it was anchored on.
type StreakResult struct {
	Count       int    `json:"count"`
	AnchorDate  string `json:"anchor_date"`
	TodayStatus string `json:"today_status"`
}

// StreakCalculator derives the current consecutive-day streak for a sender,
// optionally scoped to a single receiver. Streaks are computed on demand
// from ping history rather than stored, so a late completion or a swept
// miss is reflected immediately.
type StreakCalculator struct {
	pings *store.PingStore
	now   func() time.Time
}

func NewStreakCalculator(ps *store.PingStore) *StreakCalculator {
	return &StreakCalculator{pings: ps, now: time.Now}
}

func (c *StreakCalculator) SetNow(now func() time.Time) {
	c.now = now
}

// Calculate walks backward from today counting qualifying days. Today counts
// when completed or on break; a today that is still open, or has no ping at
// all, is skipped and the count anchors on yesterday instead. Once counting
// has begun, the first missed day or gap ends the streak.
func (c *StreakCalculator) Calculate(senderID int64, receiverID *int64) (*StreakResult, error) {
	pings, err := c.pings.ListRecentBySender(senderID, receiverID, streakWindow)
	if err != nil {
		return nil, fmt.Errorf("list recent pings: %w", err)
	}

	now := c.now().UTC()
	today := startOfUTCDay(now)

	byDate := make(map[string][]model.Ping, len(pings))
	earliest := today.Format(model.DateLayout)
	for _, p := range pings {
		byDate[p.PingDate] = append(byDate[p.PingDate], p)
		if p.PingDate < earliest {
			earliest = p.PingDate
		}
	}

	result := &StreakResult{
		TodayStatus: CollapseDay(byDate[today.Format(model.DateLayout)], now).String(),
	}

	counting := false
	day := today
	for i := 0; i < streakWindow; i++ {
		date := day.Format(model.DateLayout)
		if date < earliest {
			break
		}
		status := CollapseDay(byDate[date], now)

		switch {
		case status.Qualifies():
			if !counting {
				counting = true
				result.AnchorDate = date
			}
			result.Count++
		case status == DayMissed:
			// A miss breaks the streak whether or not counting has begun.
			// Today counting as missed means the current streak is zero.
			return result, nil
		default:
			// An open or absent day before counting starts just moves the
			// anchor back a day. After counting starts it is a gap.
			if counting {
				return result, nil
			}
		}

		day = day.AddDate(0, 0, -1)
	}

	return result, nil
}
