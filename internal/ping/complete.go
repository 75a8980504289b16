package ping

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/notify"
	"github.com/vigilapp/vigil/internal/store"
)

var (
	// ErrLocationRequired is returned when an in-person completion carries
	// no geolocation reading.
	ErrLocationRequired = errors.New("in-person check-in requires a location")
	// ErrUnknownMethod is returned for completion methods other than tap
	// and in_person.
	ErrUnknownMethod = errors.New("unknown completion method")
	// ErrPingNotFound is returned when an explicit ping id does not resolve
	// to one of the sender's pings.
	ErrPingNotFound = errors.New("ping not found")
)

// CompleteRequest describes one check-in action by a sender.
type CompleteRequest struct {
	SenderID  int64
	Method    model.CompletionMethod
	PingID    *int64
	Latitude  *float64
	Longitude *float64
}

// CompleteResult reports what a completion actually did.
type CompleteResult struct {
	CompletedCount int `json:"completed_count"`
	OnTimeCount    int `json:"on_time_count"`
	LateCount      int `json:"late_count"`
}

// Completer runs the pending→completed transition. It only touches pings in
// pending status, so a double-tapped or retried completion finds nothing
// left to update and succeeds as a no-op.
type Completer struct {
	pings      *store.PingStore
	dispatcher notify.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewCompleter(ps *store.PingStore, dispatcher notify.Dispatcher, logger *slog.Logger) *Completer {
	return &Completer{
		pings:      ps,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

func (c *Completer) SetNow(now func() time.Time) {
	c.now = now
}

// Complete validates the request, transitions the selected pending pings to
// completed, and notifies each affected receiver once. A completion after
// the deadline still completes; lateness only changes which notification
// the receiver gets.
func (c *Completer) Complete(req CompleteRequest) (*CompleteResult, error) {
	switch req.Method {
	case model.CompletionTap:
	case model.CompletionInPerson:
		if req.Latitude == nil || req.Longitude == nil {
			return nil, ErrLocationRequired
		}
	default:
		return nil, ErrUnknownMethod
	}

	now := c.now().UTC()

	var candidates []model.Ping
	if req.PingID != nil {
		p, err := c.pings.GetByID(*req.PingID)
		if err != nil {
			return nil, fmt.Errorf("get ping: %w", err)
		}
		if p == nil || p.SenderID != req.SenderID {
			return nil, ErrPingNotFound
		}
		if p.Status == model.PingPending {
			candidates = []model.Ping{*p}
		}
	} else {
		var err error
		candidates, err = c.pings.ListPendingBySenderSince(req.SenderID, startOfUTCDay(now))
		if err != nil {
			return nil, fmt.Errorf("list pending pings: %w", err)
		}
	}

	if len(candidates) == 0 {
		return &CompleteResult{}, nil
	}

	ids := make([]int64, len(candidates))
	for i, p := range candidates {
		ids[i] = p.ID
	}

	completed, err := c.pings.CompletePings(ids, now, req.Method, req.Latitude, req.Longitude)
	if err != nil {
		return nil, fmt.Errorf("complete pings: %w", err)
	}

	result := &CompleteResult{CompletedCount: len(completed)}

	// One notification per receiver, not per ping, so a sender with several
	// receivers completing at once does not fan out duplicates.
	type receiverOutcome struct {
		anyLate   bool
		anyOnTime bool
	}
	outcomes := make(map[int64]*receiverOutcome)
	for _, p := range completed {
		late := now.After(p.DeadlineTime)
		if late {
			result.LateCount++
		} else {
			result.OnTimeCount++
		}
		o, ok := outcomes[p.ReceiverID]
		if !ok {
			o = &receiverOutcome{}
			outcomes[p.ReceiverID] = o
		}
		if late {
			o.anyLate = true
		} else {
			o.anyOnTime = true
		}
	}

	for receiverID, o := range outcomes {
		kind := model.NotifTypeCheckinOnTime
		if o.anyLate && !o.anyOnTime {
			kind = model.NotifTypeCheckinLate
		}
		payload := map[string]string{
			"sender_id": strconv.FormatInt(req.SenderID, 10),
			"method":    string(req.Method),
		}
		if err := c.dispatcher.Dispatch(kind, req.SenderID, []int64{receiverID}, payload); err != nil {
			// Check-in correctness never depends on push delivery.
			c.logger.Error("dispatch completion notification", "receiver_id", receiverID, "error", err)
		}
	}

	return result, nil
}
