package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
)

func TestNew_DisabledWithoutURL(t *testing.T) {
	if n := New(config.NotifyConfig{}); n != nil {
		t.Error("New() without a webhook URL should return nil")
	}

	// A nil notifier swallows deliveries instead of panicking.
	var n *Notifier
	n.DeliverAsync(NewRunCompleted(models.RunSummary{}))
}

func TestNotifier_Deliver_PostsEvent(t *testing.T) {
	var (
		gotBody      []byte
		gotSignature string
		gotUA        string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Pricewatch-Signature")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{WebhookURL: srv.URL, Secret: "hunter2"})
	summary := models.RunSummary{Total: 3, Updated: 2, Skipped: 1}

	if err := n.Deliver(context.Background(), NewRunCompleted(summary)); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	var event struct {
		Type      string            `json:"type"`
		Timestamp int64             `json:"timestamp"`
		Data      models.RunSummary `json:"data"`
	}
	if err := json.Unmarshal(gotBody, &event); err != nil {
		t.Fatalf("unmarshal delivered body: %v", err)
	}
	if event.Type != EventRunCompleted {
		t.Errorf("event type = %q, want %q", event.Type, EventRunCompleted)
	}
	if event.Timestamp == 0 {
		t.Error("event timestamp missing")
	}
	if event.Data.Updated != 2 || event.Data.Total != 3 {
		t.Errorf("event data = %+v", event.Data)
	}
	if gotUA != "Pricewatch-Webhook/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	mac := hmac.New(sha256.New, []byte("hunter2"))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSignature != want {
		t.Errorf("signature = %q, want %q", gotSignature, want)
	}
}

func TestNotifier_Deliver_NoSignatureWithoutSecret(t *testing.T) {
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Pricewatch-Signature")
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{WebhookURL: srv.URL})
	if err := n.Deliver(context.Background(), NewRunCompleted(models.RunSummary{})); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if gotSignature != "" {
		t.Errorf("signature = %q, want none", gotSignature)
	}
}

func TestNotifier_Deliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{WebhookURL: srv.URL})
	if err := n.Deliver(context.Background(), NewRunCompleted(models.RunSummary{})); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestNotifier_Deliver_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{WebhookURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := n.Deliver(ctx, NewRunCompleted(models.RunSummary{})); err == nil {
		t.Error("expected error when context expires mid-delivery")
	}
}
