package model

import "time"

type EntitlementStatus string

const (
	EntitlementTrial    EntitlementStatus = "trial"
	EntitlementActive   EntitlementStatus = "active"
	EntitlementPastDue  EntitlementStatus = "past_due"
	EntitlementCanceled EntitlementStatus = "canceled"
	EntitlementExpired  EntitlementStatus = "expired"
)

// Entitlement is a receiver's subscription standing. Rows are written by the
// payment webhook feed and by the gate's expiry write-back; the ping engine
// otherwise only reads them. UpdatedAt marks when the current status began,
// which anchors the past_due grace window.
type Entitlement struct {
	ID                   int64             `json:"id"`
	ReceiverID           int64             `json:"receiver_id"`
	Status               EntitlementStatus `json:"status"`
	TrialEndDate         *time.Time        `json:"trial_end_date,omitempty"`
	SubscriptionEndDate  *time.Time        `json:"subscription_end_date,omitempty"`
	StripeCustomerID     *string           `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string           `json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
