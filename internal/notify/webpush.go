package notify

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sethvargo/go-retry"

	"github.com/vigilapp/vigil/internal/model"
	"github.com/vigilapp/vigil/internal/store"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Tag   string            `json:"tag,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// WebPush delivers notifications over the Web Push protocol. Expired
// subscriptions reported by the push service are pruned on the spot.
type WebPush struct {
	publicKey  string
	privateKey string
	subscriber string
	push       *store.PushStore
	logger     *slog.Logger
}

func NewWebPush(publicKey, privateKey, subscriber string, push *store.PushStore, logger *slog.Logger) *WebPush {
	return &WebPush{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		push:       push,
		logger:     logger,
	}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (w *WebPush) VAPIDPublicKey() string {
	return w.publicKey
}

// Dispatch sends the notification to every push subscription each receiver
// holds. Failures are per-subscription; one bad endpoint never blocks the
// rest of the fan-out.
func (w *WebPush) Dispatch(notifType string, senderID int64, receiverIDs []int64, payload map[string]string) error {
	body := Payload{
		Title: titleFor(notifType),
		Body:  bodyFor(notifType),
		Tag:   notifType,
		Data:  payload,
	}

	for _, receiverID := range receiverIDs {
		subs, err := w.push.ListByUser(receiverID)
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		for _, sub := range subs {
			if err := w.send(&sub, body); err != nil {
				if errors.Is(err, ErrExpired) {
					w.logger.Info("pruning expired push subscription", "user_id", sub.UserID, "subscription_id", sub.ID)
					if err := w.push.DeleteByEndpoint(sub.Endpoint); err != nil {
						w.logger.Error("delete expired subscription", "error", err)
					}
					continue
				}
				w.logger.Error("send push", "type", notifType, "subscription_id", sub.ID, "error", err)
			}
		}
	}
	return nil
}

// send pushes one payload to one subscription, retrying transient push
// service errors with a short fibonacci backoff. Client errors and expired
// endpoints are not retried.
func (w *WebPush) send(sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		resp, err := webpush.SendNotification(data, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dhKey,
				Auth:   sub.AuthKey,
			},
		}, &webpush.Options{
			VAPIDPublicKey:  w.publicKey,
			VAPIDPrivateKey: w.privateKey,
			Subscriber:      w.subscriber,
			TTL:             86400,
		})
		if err != nil {
			return retry.RetryableError(fmt.Errorf("send push: %w", err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusGone:
			return ErrExpired
		case resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("push service returned %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			return fmt.Errorf("push service returned %d", resp.StatusCode)
		}
		return nil
	})
}

func titleFor(notifType string) string {
	switch notifType {
	case model.NotifTypeCheckinOnTime:
		return "Check-in received"
	case model.NotifTypeCheckinLate:
		return "Late check-in"
	case model.NotifTypePingMissed:
		return "Missed check-in"
	default:
		return "Vigil"
	}
}

func bodyFor(notifType string) string {
	switch notifType {
	case model.NotifTypeCheckinOnTime:
		return "They checked in on time today."
	case model.NotifTypeCheckinLate:
		return "They checked in, but after the deadline."
	case model.NotifTypePingMissed:
		return "Today's check-in deadline passed with no response."
	default:
		return ""
	}
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.Bytes())

	return publicKey, privateKey, nil
}
