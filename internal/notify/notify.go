// Package notify pushes alerts and reminders to an operator webhook.
//
// Delivery is best-effort and asynchronous: callers never block on, or
// learn about, a failed delivery beyond the log line. Payloads are signed
// with HMAC-SHA256 when a secret is configured.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tkaster/sentrypay/internal/idgen"
	"github.com/tkaster/sentrypay/internal/payments"
	"github.com/tkaster/sentrypay/internal/retry"
)

const (
	deliveryAttempts  = 3
	deliveryBaseDelay = 500 * time.Millisecond
)

// EventType labels a webhook payload.
type EventType string

const (
	EventRiskAlert       EventType = "risk.alert"
	EventPaymentReminder EventType = "payment.reminder"
	EventPaymentExecuted EventType = "payment.executed"
	EventPaymentFailed   EventType = "payment.failed"
)

// Event is the webhook payload envelope.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Webhook delivers signed events to a single configured endpoint.
type Webhook struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates a webhook notifier. An empty URL yields a disabled
// notifier whose sends are silent no-ops.
func NewWebhook(url, secret string, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

// NotifyRiskAlert pushes a high-risk assessment to the webhook.
func (w *Webhook) NotifyRiskAlert(userID string, score int, recommendation, summary string) {
	w.emit(EventRiskAlert, map[string]interface{}{
		"userId":         userID,
		"riskScore":      score,
		"recommendation": recommendation,
		"summary":        summary,
	})
}

// PaymentReminder pushes an upcoming-payment reminder.
func (w *Webhook) PaymentReminder(_ context.Context, p *payments.ScheduledPayment) error {
	w.emit(EventPaymentReminder, map[string]interface{}{
		"paymentId": p.ID,
		"userId":    p.UserID,
		"payee":     p.Payee,
		"amount":    p.Amount,
		"currency":  p.Currency,
		"dueAt":     p.ScheduledDate,
	})
	return nil
}

// PaymentExecuted pushes a completed-payment notification.
func (w *Webhook) PaymentExecuted(p *payments.ScheduledPayment) {
	w.emit(EventPaymentExecuted, map[string]interface{}{
		"paymentId": p.ID,
		"userId":    p.UserID,
		"payee":     p.Payee,
		"amount":    p.Amount,
		"txHash":    p.TxHash,
	})
}

// PaymentFailed pushes a failed-payment notification.
func (w *Webhook) PaymentFailed(p *payments.ScheduledPayment) {
	w.emit(EventPaymentFailed, map[string]interface{}{
		"paymentId": p.ID,
		"userId":    p.UserID,
		"payee":     p.Payee,
		"amount":    p.Amount,
		"reason":    p.FailureReason,
	})
}

func (w *Webhook) emit(eventType EventType, data map[string]interface{}) {
	if w.url == "" {
		return
	}

	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Async so emitters never block on the receiver.
	go w.send(event)
}

func (w *Webhook) send(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		w.logger.Warn("failed to marshal webhook event", "type", string(event.Type), "error", err)
		return
	}

	// Total window covers all attempts including backoff.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = retry.Do(ctx, deliveryAttempts, deliveryBaseDelay, func() error {
		return w.deliver(ctx, event, payload)
	})
	if err != nil {
		w.logger.Warn("webhook delivery failed", "type", string(event.Type), "error", err)
	}
}

func (w *Webhook) deliver(ctx context.Context, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sentrypay-Event", string(event.Type))
	req.Header.Set("X-Sentrypay-Timestamp", fmt.Sprintf("%d", event.Timestamp.Unix()))
	if w.secret != "" {
		req.Header.Set("X-Sentrypay-Signature", Sign(payload, w.secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err = fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	// A 4xx means the receiver rejected the payload; retrying won't help.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Permanent(err)
	}
	return err
}

// Sign computes the hex HMAC-SHA256 signature of a payload. Receivers
// verify with the shared secret.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
