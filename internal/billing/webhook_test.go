package billing

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/vigilapp/vigil/internal/database"
	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/store"
)

func setupWebhook(t *testing.T) (*store.EntitlementStore, *WebhookHandler) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	es := store.NewEntitlementStore(db)
	return es, NewWebhookHandler(es, "whsec_test", slog.Default())
}

func event(t *testing.T, eventType stripe.EventType, payload string) stripe.Event {
	t.Helper()
	return stripe.Event{
		Type: eventType,
		Data: &stripe.EventData{Raw: json.RawMessage(payload)},
	}
}

func TestCheckoutCompletedActivates(t *testing.T) {
	es, h := setupWebhook(t)

	err := h.ProcessEvent(event(t, "checkout.session.completed", `{
		"client_reference_id": "7",
		"customer": {"id": "cus_123"},
		"subscription": {"id": "sub_123"}
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	ent, err := es.GetByReceiver(7)
	if err != nil || ent == nil {
		t.Fatalf("get entitlement: %v", err)
	}
	if ent.Status != model.EntitlementActive {
		t.Errorf("status = %s, want active", ent.Status)
	}
	if ent.StripeCustomerID == nil || *ent.StripeCustomerID != "cus_123" {
		t.Errorf("customer id = %v, want cus_123", ent.StripeCustomerID)
	}
	if ent.StripeSubscriptionID == nil || *ent.StripeSubscriptionID != "sub_123" {
		t.Errorf("subscription id = %v, want sub_123", ent.StripeSubscriptionID)
	}
}

func TestCheckoutCompletedBadReference(t *testing.T) {
	_, h := setupWebhook(t)

	err := h.ProcessEvent(event(t, "checkout.session.completed", `{"client_reference_id": "not-a-number"}`))
	if err == nil {
		t.Fatal("expected error for non-numeric client_reference_id")
	}
}

// subscribedReceiver seeds an active entitlement linked to sub_123.
func subscribedReceiver(t *testing.T, es *store.EntitlementStore, h *WebhookHandler) *model.Entitlement {
	t.Helper()
	err := h.ProcessEvent(event(t, "checkout.session.completed", `{
		"client_reference_id": "7",
		"customer": {"id": "cus_123"},
		"subscription": {"id": "sub_123"}
	}`))
	if err != nil {
		t.Fatalf("seed checkout: %v", err)
	}
	ent, err := es.GetByReceiver(7)
	if err != nil || ent == nil {
		t.Fatalf("seed entitlement: %v", err)
	}
	return ent
}

func TestInvoicePaidExtendsSubscription(t *testing.T) {
	es, h := setupWebhook(t)
	subscribedReceiver(t, es, h)

	periodEnd := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	err := h.ProcessEvent(event(t, "invoice.paid", `{
		"parent": {"subscription_details": {"subscription": {"id": "sub_123"}}},
		"period_end": `+formatUnix(periodEnd)+`
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	ent, _ := es.GetByReceiver(7)
	if ent.Status != model.EntitlementActive {
		t.Errorf("status = %s, want active", ent.Status)
	}
	if ent.SubscriptionEndDate == nil {
		t.Fatal("subscription end not set")
	}
	want := periodEnd.Add(3 * 24 * time.Hour)
	if !ent.SubscriptionEndDate.Equal(want) {
		t.Errorf("subscription end = %v, want %v", ent.SubscriptionEndDate, want)
	}
}

func TestInvoicePaymentFailedMarksPastDue(t *testing.T) {
	es, h := setupWebhook(t)
	subscribedReceiver(t, es, h)

	err := h.ProcessEvent(event(t, "invoice.payment_failed", `{
		"parent": {"subscription_details": {"subscription": {"id": "sub_123"}}}
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	ent, _ := es.GetByReceiver(7)
	if ent.Status != model.EntitlementPastDue {
		t.Errorf("status = %s, want past_due", ent.Status)
	}
}

func TestSubscriptionDeletedCancels(t *testing.T) {
	es, h := setupWebhook(t)
	subscribedReceiver(t, es, h)

	err := h.ProcessEvent(event(t, "customer.subscription.deleted", `{"id": "sub_123"}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	ent, _ := es.GetByReceiver(7)
	if ent.Status != model.EntitlementCanceled {
		t.Errorf("status = %s, want canceled", ent.Status)
	}
	if ent.SubscriptionEndDate == nil {
		t.Error("subscription end should be set on cancel")
	}
}

func TestSubscriptionUpdatedMapsStatus(t *testing.T) {
	es, h := setupWebhook(t)
	subscribedReceiver(t, es, h)

	err := h.ProcessEvent(event(t, "customer.subscription.updated", `{"id": "sub_123", "status": "past_due"}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	ent, _ := es.GetByReceiver(7)
	if ent.Status != model.EntitlementPastDue {
		t.Errorf("status = %s, want past_due", ent.Status)
	}
}

func TestUnknownSubscriptionIgnored(t *testing.T) {
	_, h := setupWebhook(t)

	err := h.ProcessEvent(event(t, "invoice.paid", `{
		"parent": {"subscription_details": {"subscription": {"id": "sub_unknown"}}}
	}`))
	if err != nil {
		t.Fatalf("unknown subscription should be a no-op, got %v", err)
	}
}

func TestUnhandledEventTypeIgnored(t *testing.T) {
	_, h := setupWebhook(t)

	if err := h.ProcessEvent(event(t, "payment_intent.created", `{}`)); err != nil {
		t.Fatalf("unhandled event should be a no-op, got %v", err)
	}
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
