// Package notify delivers webhook events about completed refresh cycles.
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

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

// EventRunCompleted fires after every refresh cycle, successful or not.
const EventRunCompleted = "run.completed"

// Event is the payload POSTed to the webhook endpoint.
type Event struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewRunCompleted wraps a run summary into a deliverable event.
func NewRunCompleted(s models.RunSummary) *Event {
	return &Event{
		Type:      EventRunCompleted,
		Timestamp: time.Now().Unix(),
		Data:      s,
	}
}

// Notifier posts events to a single configured endpoint.
type Notifier struct {
	url     string
	secret  string
	timeout time.Duration
	client  *http.Client
}

// New builds a Notifier from config. Returns nil when no webhook URL is
// configured; a nil Notifier ignores all deliveries.
func New(cfg config.NotifyConfig) *Notifier {
	if cfg.WebhookURL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		url:     cfg.WebhookURL,
		secret:  cfg.Secret,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Deliver sends an event synchronously.
// The request body is signed with HMAC-SHA256 if a secret is configured.
// Header: X-Pricewatch-Signature: sha256=<hex>
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pricewatch-Webhook/1.0")

	if n.secret != "" {
		mac := hmac.New(sha256.New, []byte(n.secret))
		mac.Write(body)
		sig := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("X-Pricewatch-Signature", "sha256="+sig)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends an event in the background with up to 3 retries.
// Retry intervals: 1s, 5s, 30s. Safe to call on a nil Notifier.
func (n *Notifier) DeliverAsync(event *Event) {
	if n == nil {
		return
	}
	go func() {
		delays := []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}
		for attempt, delay := range delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			err := n.Deliver(ctx, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.url,
					"event", event.Type,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"event", event.Type,
		)
	}()
}
