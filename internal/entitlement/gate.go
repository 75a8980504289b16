package entitlement

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/store"
)

// PastDueGrace is how long a past_due entitlement keeps generating pings
// while payment retries run, measured from when the status was set.
const PastDueGrace = 3 * 24 * time.Hour

// GenerationAllowed reports whether an entitlement permits ping generation
// at the given instant. It is a pure function of the row and the clock.
func GenerationAllowed(ent *model.Entitlement, now time.Time) bool {
	if ent == nil {
		return false
	}
	switch ent.Status {
	case model.EntitlementActive:
		return ent.SubscriptionEndDate == nil || now.Before(*ent.SubscriptionEndDate)
	case model.EntitlementTrial:
		return ent.TrialEndDate == nil || now.Before(*ent.TrialEndDate)
	case model.EntitlementPastDue:
		return now.Sub(ent.UpdatedAt) <= PastDueGrace
	default:
		return false
	}
}

// Effective maps a stored status to what it means right now. A trial past
// its end date, an active subscription past its end date, and a past_due
// row past its grace window all read as expired without waiting for a
// write to land.
func Effective(ent *model.Entitlement, now time.Time) model.EntitlementStatus {
	if ent == nil {
		return model.EntitlementExpired
	}
	switch ent.Status {
	case model.EntitlementActive:
		if ent.SubscriptionEndDate != nil && !now.Before(*ent.SubscriptionEndDate) {
			return model.EntitlementExpired
		}
	case model.EntitlementTrial:
		if ent.TrialEndDate != nil && !now.Before(*ent.TrialEndDate) {
			return model.EntitlementExpired
		}
	case model.EntitlementPastDue:
		if now.Sub(ent.UpdatedAt) > PastDueGrace {
			return model.EntitlementExpired
		}
	}
	return ent.Status
}

// CheckResult is the gate's answer for one receiver.
type CheckResult struct {
	Status              model.EntitlementStatus `json:"status"`
	Valid               bool                    `json:"valid"`
	TrialDaysRemaining  int                     `json:"trial_days_remaining,omitempty"`
	SubscriptionEndDate *time.Time              `json:"subscription_end_date,omitempty"`
}

// Gate answers entitlement questions for the ping engine. It also performs
// the lazy expiry write-back: when a stored status no longer matches its
// effective meaning, the row is corrected on read so later queries and the
// payment feed see a consistent state.
type Gate struct {
	store  *store.EntitlementStore
	logger *slog.Logger
	now    func() time.Time
}

func NewGate(es *store.EntitlementStore, logger *slog.Logger) *Gate {
	return &Gate{store: es, logger: logger, now: time.Now}
}

func (g *Gate) SetNow(now func() time.Time) {
	g.now = now
}

// Resolve loads a receiver's entitlement and reports whether generation is
// allowed. A missing row returns (nil, false, nil); callers distinguish
// "never entitled" from "entitled but blocked" by the pointer.
func (g *Gate) Resolve(receiverID int64) (*model.Entitlement, bool, error) {
	ent, err := g.store.GetByReceiver(receiverID)
	if err != nil {
		return nil, false, fmt.Errorf("get entitlement: %w", err)
	}
	if ent == nil {
		return nil, false, nil
	}

	now := g.now().UTC()
	effective := Effective(ent, now)
	if effective != ent.Status {
		if err := g.store.UpdateStatus(ent.ID, effective); err != nil {
			// The in-memory answer is still correct; only the write-back
			// failed, so log and carry on.
			g.logger.Error("entitlement expiry write-back", "receiver_id", receiverID, "error", err)
		} else {
			g.logger.Info("entitlement expired", "receiver_id", receiverID, "was", ent.Status)
		}
		ent.Status = effective
	}

	return ent, GenerationAllowed(ent, now), nil
}

// Check is the read-only API view of a receiver's standing.
func (g *Gate) Check(receiverID int64) (*CheckResult, error) {
	ent, allowed, err := g.Resolve(receiverID)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	result := &CheckResult{Status: model.EntitlementExpired, Valid: allowed}
	if ent == nil {
		return result, nil
	}
	result.Status = ent.Status

	if ent.Status == model.EntitlementTrial && ent.TrialEndDate != nil {
		remaining := ent.TrialEndDate.Sub(now)
		if remaining > 0 {
			// Partial days round up: a trial ending in 4h still has a day left.
			result.TrialDaysRemaining = int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
		}
	}
	result.SubscriptionEndDate = ent.SubscriptionEndDate
	return result, nil
}
