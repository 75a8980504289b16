package ping

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/notify"
	"github.com/vigilapp/vigil/internal/store"
)

// Sweeper marks pending pings whose deadline has elapsed as missed and
// alerts each receiver. The sent-notification log keeps the alert to exactly
// one per ping even when sweeps are re-run or overlap.
type Sweeper struct {
	pings      *store.PingStore
	push       *store.PushStore
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewSweeper(ps *store.PingStore, push *store.PushStore, dispatcher notify.Dispatcher, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		pings:      ps,
		push:       push,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Sweeper) SetNow(now func() time.Time) {
	s.now = now
}

// Run performs one missed-detection sweep and returns how many pings were
// newly marked missed.
func (s *Sweeper) Run() (int, error) {
	now := s.now().UTC()

	missed, err := s.pings.MarkMissed(now)
	if err != nil {
		return 0, fmt.Errorf("mark missed: %w", err)
	}

	for _, p := range missed {
		refID := fmt.Sprintf("ping-%d", p.ID)
		sent, err := s.push.WasSent(model.NotifTypePingMissed, refID)
		if err != nil {
			s.logger.Error("check sent notification", "ping_id", p.ID, "error", err)
			continue
		}
		if sent {
			continue
		}

		payload := map[string]string{
			"sender_id": strconv.FormatInt(p.SenderID, 10),
			"ping_date": p.PingDate,
		}
		if err := s.dispatcher.Dispatch(model.NotifTypePingMissed, p.SenderID, []int64{p.ReceiverID}, payload); err != nil {
			s.logger.Error("dispatch missed notification", "ping_id", p.ID, "error", err)
		}

		if err := s.push.RecordSent(model.NotifTypePingMissed, refID); err != nil {
			s.logger.Error("record sent notification", "ping_id", p.ID, "error", err)
		}
	}

	if len(missed) > 0 {
		s.logger.Info("missed sweep finished", "missed", len(missed))
	}
	return len(missed), nil
}
