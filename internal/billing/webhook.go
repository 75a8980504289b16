package billing

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/store"
)

// WebhookHandler translates Stripe's event feed into entitlement rows. The
// checkout session's client_reference_id carries the receiver id, which is
// the only link between a Stripe customer and a local user.
type WebhookHandler struct {
	entitlements *store.EntitlementStore
	secret       string
	logger       *slog.Logger
}

func NewWebhookHandler(es *store.EntitlementStore, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		entitlements: es,
		secret:       secret,
		logger:       logger.With("component", "billing"),
	}
}

// HandleStripeWebhook verifies the event signature and applies it. Handler
// errors still return 200 for recognized events; Stripe retries on non-2xx
// and a poison event should not wedge the whole feed.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.ProcessEvent(event); err != nil {
		h.logger.Error("process webhook event", "type", event.Type, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

// ProcessEvent applies one verified Stripe event. Split from the HTTP layer
// so event handling is testable without signature plumbing.
func (h *WebhookHandler) ProcessEvent(event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return h.checkoutCompleted(event)
	case "invoice.paid":
		return h.invoicePaid(event)
	case "invoice.payment_failed":
		return h.invoicePaymentFailed(event)
	case "customer.subscription.updated":
		return h.subscriptionUpdated(event)
	case "customer.subscription.deleted":
		return h.subscriptionDeleted(event)
	}
	return nil
}

func (h *WebhookHandler) checkoutCompleted(event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	receiverID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil {
		return fmt.Errorf("checkout session client_reference_id %q: %w", sess.ClientReferenceID, err)
	}

	ent, err := h.entitlements.GetByReceiver(receiverID)
	if err != nil {
		return fmt.Errorf("get entitlement: %w", err)
	}
	if ent == nil {
		ent, err = h.entitlements.CreateTrial(receiverID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("create entitlement: %w", err)
		}
	}

	if sess.Customer != nil && sess.Subscription != nil {
		if err := h.entitlements.SetStripeIDs(ent.ID, sess.Customer.ID, sess.Subscription.ID); err != nil {
			return fmt.Errorf("set stripe ids: %w", err)
		}
	}
	if err := h.entitlements.UpdateStatus(ent.ID, model.EntitlementActive); err != nil {
		return fmt.Errorf("activate entitlement: %w", err)
	}

	h.logger.Info("checkout completed", "receiver_id", receiverID)
	return nil
}

// subscriptionIDFromInvoice extracts the subscription ID from an invoice's parent.
func subscriptionIDFromInvoice(invoice stripe.Invoice) string {
	if invoice.Parent != nil &&
		invoice.Parent.SubscriptionDetails != nil &&
		invoice.Parent.SubscriptionDetails.Subscription != nil {
		return invoice.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

func (h *WebhookHandler) invoicePaid(event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("unmarshal invoice: %w", err)
	}

	subID := subscriptionIDFromInvoice(invoice)
	if subID == "" {
		return nil
	}

	ent, err := h.entitlements.GetByStripeSubscription(subID)
	if err != nil || ent == nil {
		return err
	}

	if err := h.entitlements.UpdateStatus(ent.ID, model.EntitlementActive); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	// Paid through period end plus a small buffer for the next invoice.
	if invoice.PeriodEnd > 0 {
		end := time.Unix(invoice.PeriodEnd, 0).UTC().Add(3 * 24 * time.Hour)
		if err := h.entitlements.SetSubscriptionEnd(ent.ID, &end); err != nil {
			return fmt.Errorf("set subscription end: %w", err)
		}
	}
	return nil
}

func (h *WebhookHandler) invoicePaymentFailed(event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("unmarshal invoice: %w", err)
	}

	subID := subscriptionIDFromInvoice(invoice)
	if subID == "" {
		return nil
	}

	ent, err := h.entitlements.GetByStripeSubscription(subID)
	if err != nil || ent == nil {
		return err
	}

	if err := h.entitlements.UpdateStatus(ent.ID, model.EntitlementPastDue); err != nil {
		return fmt.Errorf("update status to past_due: %w", err)
	}
	h.logger.Warn("payment failed", "receiver_id", ent.ReceiverID)
	return nil
}

func (h *WebhookHandler) subscriptionUpdated(event stripe.Event) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	ent, err := h.entitlements.GetByStripeSubscription(stripeSub.ID)
	if err != nil || ent == nil {
		return err
	}

	if err := h.entitlements.UpdateStatus(ent.ID, statusFromStripe(stripeSub.Status)); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if stripeSub.CancelAtPeriodEnd && stripeSub.CancelAt > 0 {
		end := time.Unix(stripeSub.CancelAt, 0).UTC()
		if err := h.entitlements.SetSubscriptionEnd(ent.ID, &end); err != nil {
			return fmt.Errorf("set subscription end: %w", err)
		}
	}
	return nil
}

func (h *WebhookHandler) subscriptionDeleted(event stripe.Event) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	ent, err := h.entitlements.GetByStripeSubscription(stripeSub.ID)
	if err != nil || ent == nil {
		return err
	}

	if err := h.entitlements.UpdateStatus(ent.ID, model.EntitlementCanceled); err != nil {
		return fmt.Errorf("update status to canceled: %w", err)
	}

	end := time.Now().UTC()
	if stripeSub.CancelAt > 0 {
		end = time.Unix(stripeSub.CancelAt, 0).UTC()
	}
	if err := h.entitlements.SetSubscriptionEnd(ent.ID, &end); err != nil {
		return fmt.Errorf("set subscription end: %w", err)
	}
	h.logger.Info("subscription canceled", "receiver_id", ent.ReceiverID)
	return nil
}

func statusFromStripe(status stripe.SubscriptionStatus) model.EntitlementStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return model.EntitlementActive
	case stripe.SubscriptionStatusTrialing:
		return model.EntitlementTrial
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return model.EntitlementPastDue
	case stripe.SubscriptionStatusCanceled:
		return model.EntitlementCanceled
	default:
		return model.EntitlementExpired
	}
}
