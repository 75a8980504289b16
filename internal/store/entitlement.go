package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vigilapp/vigil/internal/model"
)

type EntitlementStore struct {
	db *sql.DB
}

func NewEntitlementStore(db *sql.DB) *EntitlementStore {
	return &EntitlementStore{db: db}
}

func scanEntitlement(scanner interface{ Scan(...any) error }) (*model.Entitlement, error) {
	var e model.Entitlement
	var trialEnd, subEnd sql.NullTime
	var custID, subID sql.NullString

	err := scanner.Scan(
		&e.ID, &e.ReceiverID, &e.Status, &trialEnd, &subEnd,
		&custID, &subID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if trialEnd.Valid {
		e.TrialEndDate = &trialEnd.Time
	}
	if subEnd.Valid {
		e.SubscriptionEndDate = &subEnd.Time
	}
	if custID.Valid {
		e.StripeCustomerID = &custID.String
	}
	if subID.Valid {
		e.StripeSubscriptionID = &subID.String
	}
	return &e, nil
}

const entitlementCols = `id, receiver_id, status, trial_end_date, subscription_end_date, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

// CreateTrial starts a trial entitlement for a receiver.
func (s *EntitlementStore) CreateTrial(receiverID int64, trialEnd time.Time) (*model.Entitlement, error) {
	_, err := s.db.Exec(
		`INSERT INTO entitlements (receiver_id, status, trial_end_date) VALUES (?, 'trial', ?)
		 ON CONFLICT(receiver_id) DO NOTHING`,
		receiverID, trialEnd.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert entitlement: %w", err)
	}
	return s.GetByReceiver(receiverID)
}

func (s *EntitlementStore) GetByReceiver(receiverID int64) (*model.Entitlement, error) {
	row := s.db.QueryRow(`SELECT `+entitlementCols+` FROM entitlements WHERE receiver_id = ?`, receiverID)
	e, err := scanEntitlement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	return e, nil
}

func (s *EntitlementStore) GetByStripeSubscription(stripeSubID string) (*model.Entitlement, error) {
	row := s.db.QueryRow(
		`SELECT `+entitlementCols+` FROM entitlements WHERE stripe_subscription_id = ?`,
		stripeSubID,
	)
	e, err := scanEntitlement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entitlement by stripe subscription: %w", err)
	}
	return e, nil
}

// UpdateStatus sets the status and bumps updated_at, which anchors the
// past_due grace window when the new status is past_due.
func (s *EntitlementStore) UpdateStatus(id int64, status model.EntitlementStatus) error {
	_, err := s.db.Exec(
		`UPDATE entitlements SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update entitlement status: %w", err)
	}
	return nil
}

func (s *EntitlementStore) SetStripeIDs(id int64, customerID, subscriptionID string) error {
	_, err := s.db.Exec(
		`UPDATE entitlements SET stripe_customer_id = ?, stripe_subscription_id = ?, updated_at = datetime('now') WHERE id = ?`,
		customerID, subscriptionID, id,
	)
	if err != nil {
		return fmt.Errorf("set stripe ids: %w", err)
	}
	return nil
}

func (s *EntitlementStore) SetSubscriptionEnd(id int64, end *time.Time) error {
	var endVal sql.NullTime
	if end != nil {
		endVal = sql.NullTime{Time: end.UTC(), Valid: true}
	}
	_, err := s.db.Exec(
		`UPDATE entitlements SET subscription_end_date = ?, updated_at = datetime('now') WHERE id = ?`,
		endVal, id,
	)
	if err != nil {
		return fmt.Errorf("set subscription end: %w", err)
	}
	return nil
}
